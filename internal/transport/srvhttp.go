package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/fleetsignal/idsclient/internal/logging"
	"github.com/fleetsignal/idsclient/internal/model"
)

// SrvHttp resolves its backend via DNS SRV, falling back to a fixed URL,
// and negotiates event-submission compression with the resolved server,
// evicting algorithms the server rejects with HTTP 415.
type SrvHttp struct {
	record          string
	fallback        *url.URL
	allowedSuffixes []string
	client          *http.Client
	log             logging.Component

	mu          sync.RWMutex
	compression model.CompressionSet
}

// NewSrvHttp builds an SrvHttp transport. record is the SRV name to
// query (e.g. "_detsys_ids._tcp.install.determinate.systems."); fallback
// is used whenever resolution fails or yields no allow-listed host.
func NewSrvHttp(record string, fallback *url.URL, allowedSuffixes []string, opts HTTPOptions, log logging.Component) (*SrvHttp, error) {
	h, err := NewHttp(fallback, opts) // borrow Http's client construction
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &SrvHttp{
		record:          record,
		fallback:        fallback,
		allowedSuffixes: allowedSuffixes,
		client:          h.client,
		log:             log,
		compression:     model.DefaultCompressionSet(),
	}, nil
}

func (s *SrvHttp) resolveBaseURL(ctx context.Context) *url.URL {
	targets, err := resolveSRV(ctx, s.record)
	if err != nil {
		s.log.Debugf("SRV resolution for %q failed, using fallback: %v", s.record, err)
		return s.fallback
	}

	for _, t := range targets {
		if !allowedSuffix(t.Host, s.allowedSuffixes) {
			s.log.Tracef("SRV target %q not in allow-list, skipping", t.Host)
			continue
		}
		return &url.URL{
			Scheme: s.fallback.Scheme,
			Host:   t.Host + ":" + strconv.Itoa(int(t.Port)),
		}
	}

	s.log.Debugf("no allow-listed SRV target for %q, using fallback", s.record)
	return s.fallback
}

func (s *SrvHttp) urlFor(base *url.URL, path string) string {
	u := *base
	u.Path = path
	return u.String()
}

func (s *SrvHttp) Submit(ctx context.Context, batch model.Batch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("transport: marshal batch: %w", err)
	}

	base := s.resolveBaseURL(ctx)
	endpoint := s.urlFor(base, "/events/batch")

	s.mu.RLock()
	algorithms := s.compression.Algorithms()
	s.mu.RUnlock()

	var lastErr error
	for _, algo := range algorithms {
		body, err := compress(algo, payload)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("transport: build submit request: %w", err)
		}
		req.Header.Set("Content-Type", applicationJSON)
		if enc := algo.ContentEncoding(); enc != "" {
			req.Header.Set("Content-Encoding", enc)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("transport: submit: %w", err)
		}
		status := resp.StatusCode
		resp.Body.Close()

		if status >= 200 && status < 300 {
			return nil
		}

		if status == http.StatusUnsupportedMediaType {
			s.log.Debugf("server rejected compression algorithm %q, evicting and retrying", algo)
			s.mu.Lock()
			s.compression = s.compression.Without(algo)
			s.mu.Unlock()
			lastErr = fmt.Errorf("transport: submit returned status %d for algorithm %q", status, algo)
			continue
		}

		return fmt.Errorf("transport: submit returned status %d", status)
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrNoCompressionMode, lastErr)
	}
	return ErrNoCompressionMode
}

func (s *SrvHttp) Checkin(ctx context.Context, sessionProperties *model.Map[any]) (*model.Checkin, error) {
	data, err := json.Marshal(sessionProperties)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal session properties: %w", err)
	}

	base := s.resolveBaseURL(ctx)
	endpoint := s.urlFor(base, "/check-in")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("transport: build check-in request: %w", err)
	}
	req.Header.Set("Content-Type", applicationJSON)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: check-in: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("transport: check-in returned status %d", resp.StatusCode)
	}

	var checkin model.Checkin
	if err := json.NewDecoder(resp.Body).Decode(&checkin); err != nil {
		return nil, fmt.Errorf("transport: decode check-in response: %w", err)
	}

	s.mu.Lock()
	s.compression = checkin.ServerOptions.CompressionAlgorithms
	s.mu.Unlock()

	return &checkin, nil
}
