package model

// Correlation is a startup identity/session seed, imported from an
// environment variable or an identity file before the Collator
// constructs its initial state.
type Correlation struct {
	DistinctID     *DistinctId
	AnonDistinctID *string
	SessionID      *string
	WindowID       *string
	DeviceID       *DeviceId

	// Groups allows a null value during parsing (meaning: "drop this
	// group"); GroupsAsMap resolves that before it reaches the Collator.
	Groups map[string]*string

	Properties *Map[any]
}

// GroupsAsMap filters out group entries with a nil value and returns the
// rest as an ordered map, ready to merge into Collator state.
func (c *Correlation) GroupsAsMap() *Map[string] {
	out := NewMap[string]()
	if c == nil {
		return out
	}
	for k, v := range c.Groups {
		if v != nil {
			out.Set(k, *v)
		}
	}
	return out
}
