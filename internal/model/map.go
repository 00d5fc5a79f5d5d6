// Package model holds the wire-level data types shared by every actor:
// identifiers, the insertion-ordered Map, check-in/event/batch shapes, and
// the persisted StoredProperties document.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Map is a string-keyed JSON object that preserves insertion order on
// marshal, unlike a plain Go map. Server-side consumers of the check-in
// and event wire formats rely on stable field ordering for human-readable
// diffing, so this type exists instead of map[string]V.
type Map[V any] struct {
	keys   []string
	values map[string]V
}

// NewMap returns an empty ordered map.
func NewMap[V any]() *Map[V] {
	return &Map[V]{values: make(map[string]V)}
}

// Set inserts or updates key. Updating an existing key does not change its
// position.
func (m *Map[V]) Set(key string, value V) {
	if m.values == nil {
		m.values = make(map[string]V)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key and whether it was present.
func (m *Map[V]) Get(key string) (V, bool) {
	if m == nil || m.values == nil {
		var zero V
		return zero, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Delete removes key, if present.
func (m *Map[V]) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len reports the number of entries.
func (m *Map[V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. The returned slice must not be
// mutated by callers.
func (m *Map[V]) Keys() []string {
	if m == nil {
		return nil
	}
	return m.keys
}

// Range calls fn for every entry in insertion order, stopping early if fn
// returns false.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Merge copies every entry of other into m, overwriting on key collision.
// Keys new to m are appended in other's iteration order.
func (m *Map[V]) Merge(other *Map[V]) {
	other.Range(func(k string, v V) bool {
		m.Set(k, v)
		return true
	})
}

// Clone returns a deep-enough copy: a new backing map and key slice sharing
// values by reference, matching Go's usual shallow-copy semantics for maps.
func (m *Map[V]) Clone() *Map[V] {
	clone := NewMap[V]()
	m.Range(func(k string, v V) bool {
		clone.Set(k, v)
		return true
	})
	return clone
}

// MarshalJSON implements json.Marshaler, emitting keys in insertion order.
func (m *Map[V]) MarshalJSON() ([]byte, error) {
	if m == nil || len(m.keys) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("model: marshal map key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("model: marshal map value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, recording keys in the order
// they appear in the input document.
func (m *Map[V]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("model: expected JSON object, got %v", tok)
	}

	m.keys = nil
	m.values = make(map[string]V)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("model: expected string key, got %v", keyTok)
		}
		var value V
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("model: decode value for key %q: %w", key, err)
		}
		m.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
