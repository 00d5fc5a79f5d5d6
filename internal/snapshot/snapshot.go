// Package snapshot provides the system-facts collaborator that flattens
// into every outgoing event's properties.
package snapshot

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/fleetsignal/idsclient/internal/model"
)

// Snapshotter produces the current system-facts snapshot, flattened into
// every event's properties at the moment the Collator builds the event.
type Snapshotter interface {
	Snapshot() *model.Map[any]
}

// Generic collects host/CPU/memory facts via gopsutil. It caches the
// mostly-static facts (host name, OS, processor count, boot time) at
// construction and recomputes only stdin-is-terminal, is_ci, and the
// process name per call,
// since those can change across a process's lifetime in tests.
type Generic struct {
	hostName        string
	operatingSystem string
	osVersion       string
	processorCount  *uint64
	physicalMemory  uint64
	bootTime        uint64
	targetTriple    string
}

// NewGeneric builds a Generic snapshotter, best-effort: any individual
// gopsutil call that fails simply leaves that field empty rather than
// failing construction.
func NewGeneric() *Generic {
	g := &Generic{
		targetTriple: runtime.GOOS + "/" + runtime.GOARCH,
	}

	if info, err := host.Info(); err == nil {
		g.hostName = info.Hostname
		g.operatingSystem = info.Platform
		g.osVersion = info.PlatformVersion
		g.bootTime = info.BootTime
	}

	if counts, err := cpu.Counts(true); err == nil {
		c := uint64(counts)
		g.processorCount = &c
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		g.physicalMemory = vm.Total
	}

	return g
}

func isCI() bool {
	if os.Getenv("DETSYS_IDS_IN_CI") == "1" {
		return true
	}
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "BUILDKITE"} {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

// Snapshot implements Snapshotter.
func (g *Generic) Snapshot() *model.Map[any] {
	m := model.NewMap[any]()
	if g.hostName != "" {
		m.Set("host_name", g.hostName)
	}
	if g.operatingSystem != "" {
		m.Set("$os", g.operatingSystem)
	}
	if g.osVersion != "" {
		m.Set("$os_version", g.osVersion)
	}
	m.Set("target_triple", g.targetTriple)
	m.Set("stdin_is_terminal", stdinIsTerminal())
	m.Set("is_ci", isCI())
	if g.processorCount != nil {
		m.Set("processor_count", *g.processorCount)
	}
	m.Set("physical_memory_bytes", g.physicalMemory)
	m.Set("boot_time", g.bootTime)
	if name, ok := processName(); ok {
		m.Set("process_name", name)
	}
	return m
}

func processName() (string, bool) {
	if len(os.Args) == 0 {
		return "", false
	}
	return os.Args[0], true
}

func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
