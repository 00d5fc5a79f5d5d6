package model

import "encoding/json"

// LibName and LibVersion identify this client in every emitted event's
// $lib/$lib_version properties.
const (
	LibName    = "idsclient"
	LibVersion = "0.1.0"
)

// Event is one analytics record, built by the Collator at the moment it
// processes a RawSignal and shipped to the Submitter.
type Event struct {
	Name       string          `json:"name"`
	DistinctID string          `json:"distinct_id"`
	UUID       string          `json:"uuid"`
	Timestamp  string          `json:"timestamp"`
	Properties *EventProperties `json:"properties"`
}

// EventProperties holds the event's fixed identity/session fields plus
// whatever facts, feature-facts, system snapshot, and caller-supplied
// properties were current when the event was built. MarshalJSON flattens
// all of these into one JSON object, matching the wire format's single
// "properties" document.
type EventProperties struct {
	AnonDistinctID string
	DeviceID       string
	SessionID      string
	Groups         *Map[string]

	Snapshot       *Map[any]
	Facts          *Map[any]
	FeatureFacts   *Map[any]
	UserProperties *Map[any]
}

func (p *EventProperties) MarshalJSON() ([]byte, error) {
	out := NewMap[any]()
	out.Set("$anon_distinct_id", p.AnonDistinctID)
	out.Set("$device_id", p.DeviceID)
	out.Set("$lib", LibName)
	out.Set("$lib_version", LibVersion)
	out.Set("$session_id", p.SessionID)
	if p.Groups != nil {
		out.Set("$groups", p.Groups)
	} else {
		out.Set("$groups", NewMap[string]())
	}

	flatten := func(m *Map[any]) {
		if m == nil {
			return
		}
		m.Range(func(k string, v any) bool {
			out.Set(k, v)
			return true
		})
	}
	flatten(p.Snapshot)
	flatten(p.Facts)
	flatten(p.FeatureFacts)
	flatten(p.UserProperties)

	return json.Marshal(out)
}

// Batch is one delivery envelope carrying several events under a single
// sent_at timestamp.
type Batch struct {
	SentAt string  `json:"sent_at"`
	Batch  []Event `json:"batch"`
}
