// Package storage persists StoredProperties across process restarts.
package storage

import (
	"context"

	"github.com/fleetsignal/idsclient/internal/model"
)

// Storage loads and stores the identity document. Implementations must be
// safe to call serially from a single caller (the Collator never calls
// concurrently, but never blocks for long either).
type Storage interface {
	Load(ctx context.Context) (*model.StoredProperties, error)
	Store(ctx context.Context, props model.StoredProperties) error
}
