package model

import (
	"encoding/json"
	"fmt"
)

// Feature is one flag's record: a JSON variant value and an optional
// payload. On the wire, payload is itself a JSON-encoded string (so the
// server can store arbitrary schema-less payload shapes without a
// migration); DecodePayload reverses that double-encoding.
type Feature struct {
	Variant json.RawMessage `json:"variant"`
	Payload *string         `json:"payload,omitempty"`
}

// DecodeVariant unmarshals the feature's variant into T.
func DecodeVariant[T any](f Feature) (T, error) {
	var v T
	if len(f.Variant) == 0 {
		return v, nil
	}
	err := json.Unmarshal(f.Variant, &v)
	return v, err
}

// DecodePayload parses the feature's double-encoded payload string into T.
// A missing payload decodes to the zero value of T with ok=false.
func DecodePayload[T any](f Feature) (value T, ok bool, err error) {
	if f.Payload == nil {
		return value, false, nil
	}
	if err := json.Unmarshal([]byte(*f.Payload), &value); err != nil {
		return value, false, fmt.Errorf("model: decode feature payload: %w", err)
	}
	return value, true, nil
}

// ServerOptions is policy the server attaches to a check-in response.
type ServerOptions struct {
	CompressionAlgorithms CompressionSet `json:"compression_algorithms"`
}

// Checkin is the cached configuration document: server policy plus the
// current feature-flag option set.
type Checkin struct {
	ServerOptions ServerOptions `json:"server_options"`
	Options       *Map[Feature] `json:"options"`
}

// NewEmptyCheckin returns a Checkin with no feature flags, used by the
// None transport. Before any successful refresh the ConfigurationProxy's
// cache is nil, not an empty Checkin.
func NewEmptyCheckin() *Checkin {
	return &Checkin{Options: NewMap[Feature]()}
}

// Equal reports whether c and other carry the same server options and
// feature-flag options, comparing via their canonical JSON encoding (the
// insertion-ordered Map type makes this a faithful structural comparison
// as long as both checkins were decoded from freshly received documents).
func (c *Checkin) Equal(other *Checkin) bool {
	if c == nil || other == nil {
		return c == other
	}
	a, errA := json.Marshal(c)
	b, errB := json.Marshal(other)
	if errA != nil || errB != nil {
		return false
	}
	return string(a) == string(b)
}

// AsFeatureFacts derives the per-event feature-facts snapshot from the
// current checkin: the list of active flag names plus one $feature/<name>
// entry per flag holding that flag's variant.
func (c *Checkin) AsFeatureFacts() *Map[any] {
	facts := NewMap[any]()
	if c == nil || c.Options == nil {
		facts.Set("$active_feature_flags", []string{})
		return facts
	}

	names := c.Options.Keys()
	activeFlags := make([]string, len(names))
	copy(activeFlags, names)
	facts.Set("$active_feature_flags", activeFlags)

	for _, name := range names {
		feat, _ := c.Options.Get(name)
		var variant any
		if len(feat.Variant) > 0 {
			_ = json.Unmarshal(feat.Variant, &variant)
		}
		facts.Set("$feature/"+name, variant)
	}
	return facts
}
