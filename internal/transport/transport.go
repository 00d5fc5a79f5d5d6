// Package transport implements wire delivery for check-in and event
// submission: a no-op sink, a file-based transport for local testing and
// diagnostics, a plain HTTP transport, and an HTTP transport fronted by
// DNS SRV discovery with compression negotiation.
package transport

import (
	"context"
	"errors"

	"github.com/fleetsignal/idsclient/internal/model"
)

const applicationJSON = "application/json"

// ErrNoCompressionMode is returned when every compression algorithm the
// server once accepted has been evicted by repeated 415 responses.
var ErrNoCompressionMode = errors.New("transport: server rejected every available compression algorithm")

// Transport is the wire-I/O boundary: fetch the check-in document and
// submit a batch of events. Implementations never mutate the session
// properties or Batch passed to them.
type Transport interface {
	Checkin(ctx context.Context, sessionProperties *model.Map[any]) (*model.Checkin, error)
	Submit(ctx context.Context, batch model.Batch) error
}
