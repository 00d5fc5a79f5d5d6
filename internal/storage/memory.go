package storage

import (
	"context"
	"sync"

	"github.com/fleetsignal/idsclient/internal/model"
)

// Memory is an infallible, process-local Storage, used when no persistent
// identity is wanted (e.g. short-lived CLI invocations).
type Memory struct {
	mu    sync.Mutex
	props *model.StoredProperties
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(context.Context) (*model.StoredProperties, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.props, nil
}

func (m *Memory) Store(_ context.Context, props model.StoredProperties) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.props = &props
	return nil
}
