package transport

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/miekg/dns"
)

// publicResolver is used when the system resolver configuration cannot be
// loaded (e.g. a missing or unreadable /etc/resolv.conf).
const publicResolver = "8.8.8.8:53"

// SRVTarget is one resolved backend host:port pair.
type SRVTarget struct {
	Host     string
	Port     uint16
	Priority uint16
	Weight   uint16
}

// resolveSRV queries the SRV record and returns targets ordered by
// priority (ascending) then weight (descending), the conventional SRV
// selection order.
func resolveSRV(ctx context.Context, record string) ([]SRVTarget, error) {
	server := systemResolver()

	client := new(dns.Client)
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(record), dns.TypeSRV)
	msg.RecursionDesired = true

	resp, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, fmt.Errorf("transport: SRV query for %q failed: %w", record, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("transport: SRV query for %q returned rcode %d", record, resp.Rcode)
	}

	var targets []SRVTarget
	for _, rr := range resp.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		targets = append(targets, SRVTarget{
			Host:     strings.TrimSuffix(srv.Target, "."),
			Port:     srv.Port,
			Priority: srv.Priority,
			Weight:   srv.Weight,
		})
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("transport: no SRV records found for %q", record)
	}

	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].Priority != targets[j].Priority {
			return targets[i].Priority < targets[j].Priority
		}
		return targets[i].Weight > targets[j].Weight
	})
	return targets, nil
}

// systemResolver reads /etc/resolv.conf, falling back to a well-known
// public resolver when that isn't available (e.g. on platforms without
// one, or in a locked-down container).
func systemResolver() string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return publicResolver
	}
	return cfg.Servers[0] + ":" + cfg.Port
}

// allowedSuffix reports whether host matches one of the allow-listed
// domain suffixes. An empty allow-list permits everything.
func allowedSuffix(host string, suffixes []string) bool {
	if len(suffixes) == 0 {
		return true
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, suffix := range suffixes {
		suffix = strings.ToLower(strings.TrimSuffix(suffix, "."))
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
