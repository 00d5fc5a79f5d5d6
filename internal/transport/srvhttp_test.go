package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetsignal/idsclient/internal/logging/logtest"
	"github.com/fleetsignal/idsclient/internal/model"
)

func newTestSrvHttp(t *testing.T, fallbackURL string) *SrvHttp {
	t.Helper()
	fallback, err := url.Parse(fallbackURL)
	require.NoError(t, err)

	s, err := NewSrvHttp("_nonexistent._tcp.invalid.", fallback, nil, HTTPOptions{}, logtest.New(t))
	require.NoError(t, err)
	return s
}

func TestSrvHttpFallsBackWhenSRVUnresolvable(t *testing.T) {
	var gotEncoding string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Content-Encoding")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := newTestSrvHttp(t, server.URL)
	batch := model.Batch{SentAt: "now", Batch: []model.Event{{Name: "e"}}}
	require.NoError(t, s.Submit(context.Background(), batch))
	assert.Equal(t, "zstd", gotEncoding)
}

func TestSrvHttpEvictsAlgorithmOn415(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			assert.Equal(t, "zstd", r.Header.Get("Content-Encoding"))
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		assert.Equal(t, "", r.Header.Get("Content-Encoding"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := newTestSrvHttp(t, server.URL)
	batch := model.Batch{SentAt: "now", Batch: []model.Event{{Name: "e"}}}
	require.NoError(t, s.Submit(context.Background(), batch))
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))

	gotEncoding := ""
	server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Content-Encoding")
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, s.Submit(context.Background(), batch))
	assert.Equal(t, "", gotEncoding, "identity should remain cached after the zstd eviction")
}

func TestSrvHttpCheckinReplacesCompressionCacheEvenIfSmaller(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", applicationJSON)
		w.Write([]byte(`{"server_options":{"compression_algorithms":[]},"options":{}}`))
	}))
	defer server.Close()

	s := newTestSrvHttp(t, server.URL)
	checkin, err := s.Checkin(context.Background(), model.NewMap[any]())
	require.NoError(t, err)
	assert.Equal(t, []model.CompressionAlgorithm{model.CompressionIdentity}, checkin.ServerOptions.CompressionAlgorithms.Algorithms())

	s.mu.RLock()
	cached := s.compression
	s.mu.RUnlock()
	assert.Equal(t, []model.CompressionAlgorithm{model.CompressionIdentity}, cached.Algorithms())
}
