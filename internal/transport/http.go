package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fleetsignal/idsclient/internal/model"
)

// HTTPOptions configures an Http transport's underlying client.
type HTTPOptions struct {
	Timeout    time.Duration
	RootCAPEM  []byte
	ProxyURL   *url.URL
}

// Http posts batches and fetches check-ins against a single fixed host.
type Http struct {
	host   *url.URL
	client *http.Client
}

// NewHttp builds an Http transport targeting host.
func NewHttp(host *url.URL, opts HTTPOptions) (*Http, error) {
	transport := &http.Transport{}

	if len(opts.RootCAPEM) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(opts.RootCAPEM) {
			return nil, fmt.Errorf("transport: no certificates parsed from provided root CA PEM")
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}

	if opts.ProxyURL != nil {
		fixedProxy := opts.ProxyURL
		transport.Proxy = func(*http.Request) (*url.URL, error) { return fixedProxy, nil }
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &Http{
		host:   host,
		client: &http.Client{Transport: transport, Timeout: timeout},
	}, nil
}

func (h *Http) urlFor(path string) string {
	u := *h.host
	u.Path = path
	return u.String()
}

func (h *Http) Submit(ctx context.Context, batch model.Batch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("transport: marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.urlFor("/events/batch"), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("transport: build submit request: %w", err)
	}
	req.Header.Set("Content-Type", applicationJSON)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("transport: submit returned status %d", resp.StatusCode)
	}
	return nil
}

func (h *Http) Checkin(ctx context.Context, sessionProperties *model.Map[any]) (*model.Checkin, error) {
	data, err := json.Marshal(sessionProperties)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal session properties: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.urlFor("/check-in"), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("transport: build check-in request: %w", err)
	}
	req.Header.Set("Content-Type", applicationJSON)

	resp, err := h.client.Do(req)
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
	return &checkin, nil
}
