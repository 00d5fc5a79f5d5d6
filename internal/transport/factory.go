package transport

import (
	"fmt"
	"net/url"
	"os"

	"github.com/fleetsignal/idsclient/internal/logging"
)

// DefaultSRVRecord and DefaultFallback describe the production
// backend used when no explicit endpoint is configured.
const (
	DefaultSRVRecord  = "_detsys_ids._tcp.install.determinate.systems."
	DefaultFallback   = "https://install.determinate.systems"
)

// DefaultAllowedSuffixes restricts SRV-resolved targets to hosts under
// these domains.
var DefaultAllowedSuffixes = []string{
	"install.determinate.systems",
	"install.detsys.dev",
}

// Config selects and configures a Transport.
type Config struct {
	// Endpoint is a URL (http/https/file) or bare file path. Empty means
	// "use SRV discovery against the default backend."
	Endpoint string
	// CheckinFile, when set, is read by the File transport for check-in
	// documents (DETSYS_IDS_CHECKIN_FILE).
	CheckinFile string
	HTTPOptions HTTPOptions
	Log         logging.Component
}

// Build selects a Transport implementation per the endpoint's URL scheme:
// https/http select Http, file selects File, an endpoint with no scheme
// is treated as a bare file path, and an empty endpoint selects SrvHttp
// against the default production backend.
func Build(cfg Config) (Transport, error) {
	if cfg.Log == nil {
		cfg.Log = logging.NewNop()
	}

	if cfg.Endpoint == "" {
		fallback, err := url.Parse(DefaultFallback)
		if err != nil {
			return nil, fmt.Errorf("transport: parse default fallback URL: %w", err)
		}
		return NewSrvHttp(DefaultSRVRecord, fallback, DefaultAllowedSuffixes, cfg.HTTPOptions, cfg.Log)
	}

	parsed, err := url.Parse(cfg.Endpoint)
	if err != nil || parsed.Scheme == "" {
		// no scheme: treat the whole value as a file path
		return NewFile(cfg.Endpoint, cfg.CheckinFile)
	}

	switch parsed.Scheme {
	case "https", "http":
		return NewHttp(parsed, cfg.HTTPOptions)
	case "file":
		return NewFile(parsed.Path, cfg.CheckinFile)
	default:
		return nil, fmt.Errorf("transport: unsupported URL scheme %q (only http, https, and file are supported)", parsed.Scheme)
	}
}

// BuildFromEnvironment applies the module's documented environment
// variables on top of an explicit Config, matching the builder's
// fallback precedence (explicit config wins, then environment).
func BuildFromEnvironment(cfg Config) (Transport, error) {
	if os.Getenv("DETSYS_IDS_TELEMETRY") == "disabled" {
		return None{}, nil
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = os.Getenv("DETSYS_IDS_TRANSPORT")
	}
	if cfg.CheckinFile == "" {
		cfg.CheckinFile = os.Getenv("DETSYS_IDS_CHECKIN_FILE")
	}
	return Build(cfg)
}
