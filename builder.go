package idsclient

import (
	"context"
	"net/url"
	"time"

	"github.com/fleetsignal/idsclient/internal/collator"
	"github.com/fleetsignal/idsclient/internal/configproxy"
	"github.com/fleetsignal/idsclient/internal/correlation"
	"github.com/fleetsignal/idsclient/internal/logging"
	"github.com/fleetsignal/idsclient/internal/model"
	"github.com/fleetsignal/idsclient/internal/signal"
	"github.com/fleetsignal/idsclient/internal/snapshot"
	"github.com/fleetsignal/idsclient/internal/storage"
	"github.com/fleetsignal/idsclient/internal/submitter"
	"github.com/fleetsignal/idsclient/internal/transport"
	"github.com/fleetsignal/idsclient/internal/worker"
)

// channel capacities per the pipeline's stated flow-control design.
const (
	collatorChanCapacity    = 1000
	configProxyChanCapacity = 1000
	collatedChanCapacity    = 1000
)

const defaultTransportTimeout = 3 * time.Second

// Builder configures and constructs a Recorder/Worker pair.
type Builder struct {
	distinctID *model.DistinctId
	deviceID   *model.DeviceId
	facts      *model.Map[any]
	groups     *model.Map[string]

	endpoint    string
	checkinFile string
	timeout     time.Duration
	rootCAPEM   []byte
	proxyURL    *url.URL

	storage storage.Storage
	log     logging.Component
}

// NewBuilder returns an empty Builder. Every setter is optional; omitted
// fields fall back to environment variables (DETSYS_IDS_TRANSPORT,
// DETSYS_IDS_CHECKIN_FILE, DETSYS_IDS_TELEMETRY, DETSYS_CORRELATION) or
// generated defaults.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) SetDistinctID(id model.DistinctId) *Builder {
	b.distinctID = &id
	return b
}

func (b *Builder) SetDeviceID(id model.DeviceId) *Builder {
	b.deviceID = &id
	return b
}

func (b *Builder) SetFacts(facts *model.Map[any]) *Builder {
	b.facts = facts
	return b
}

func (b *Builder) SetGroups(groups *model.Map[string]) *Builder {
	b.groups = groups
	return b
}

func (b *Builder) AddFact(key string, value any) *Builder {
	if b.facts == nil {
		b.facts = model.NewMap[any]()
	}
	b.facts.Set(key, value)
	return b
}

// SetEndpoint selects the transport backend: an http(s) URL, a file path
// (bare or "file://"), or left empty for DNS SRV discovery against the
// production backend.
func (b *Builder) SetEndpoint(endpoint string) *Builder {
	b.endpoint = endpoint
	return b
}

// SetCheckinFile sets the secondary document the File transport reads
// check-in responses from.
func (b *Builder) SetCheckinFile(path string) *Builder {
	b.checkinFile = path
	return b
}

func (b *Builder) SetTimeout(d time.Duration) *Builder {
	b.timeout = d
	return b
}

func (b *Builder) SetRootCAPEM(pem []byte) *Builder {
	b.rootCAPEM = pem
	return b
}

func (b *Builder) SetProxy(u *url.URL) *Builder {
	b.proxyURL = u
	return b
}

// SetStorage overrides the default on-disk JSON identity store, e.g. with
// an in-memory store for tests.
func (b *Builder) SetStorage(s storage.Storage) *Builder {
	b.storage = s
	return b
}

func (b *Builder) SetLogger(log logging.Component) *Builder {
	b.log = log
	return b
}

// Build constructs a Recorder and Worker using a gopsutil-backed system
// snapshotter.
func (b *Builder) Build(ctx context.Context) (*Recorder, *worker.Worker, error) {
	return b.BuildWithSnapshotter(ctx, snapshot.NewGeneric())
}

// BuildWithSnapshotter constructs a Recorder and Worker using the given
// Snapshotter, wiring the transport, storage, correlation seed, and the
// three actor tasks, and spawning them on their own goroutines.
func (b *Builder) BuildWithSnapshotter(ctx context.Context, snapshotter snapshot.Snapshotter) (*Recorder, *worker.Worker, error) {
	log := b.log
	if log == nil {
		log = logging.NewNop()
	}

	timeout := b.timeout
	if timeout == 0 {
		timeout = defaultTransportTimeout
	}

	tr, err := transport.BuildFromEnvironment(transport.Config{
		Endpoint:    b.endpoint,
		CheckinFile: b.checkinFile,
		HTTPOptions: transport.HTTPOptions{
			Timeout:   timeout,
			RootCAPEM: b.rootCAPEM,
			ProxyURL:  b.proxyURL,
		},
		Log: log,
	})
	if err != nil {
		return nil, nil, err
	}

	store := b.storage
	if store == nil {
		js, err := storage.DefaultJSONFile()
		if err != nil {
			log.Debugf("builder: falling back to in-memory storage: %v", err)
			store = storage.NewMemory()
		} else {
			store = js
		}
	}

	corr := correlation.Import(log)

	collatorChan := make(chan signal.RawSignal, collatorChanCapacity)
	configProxyChan := make(chan signal.ConfigurationProxySignal, configProxyChanCapacity)
	collatedChan := make(chan signal.CollatedSignal, collatedChanCapacity)

	c := collator.New(ctx, snapshotter, store, collatorChan, collatedChan, collator.Seed{
		DistinctID:  b.distinctID,
		DeviceID:    b.deviceID,
		Facts:       b.facts,
		Groups:      b.groups,
		Correlation: corr,
	}, log)

	p := configproxy.New(tr, configProxyChan, collatorChan, log)
	s := submitter.New(tr, collatedChan, log)

	w := worker.Spawn(ctx, c, p, s, log)
	rec := newRecorder(collatorChan, configProxyChan, log)

	// the startup refresh holds its own clone so a caller's Close can't
	// close the channels while the refresh is still sending on them
	refreshRec := rec.Clone()
	go func() {
		defer refreshRec.Close()
		refreshCtx, cancel := context.WithTimeout(context.Background(), timeout+2*time.Second)
		defer cancel()
		if err := refreshRec.TriggerConfigurationRefresh(refreshCtx); err != nil {
			log.Debugf("builder: initial configuration refresh failed: %v", err)
		}
	}()

	return rec, w, nil
}
