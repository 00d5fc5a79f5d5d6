package model

// StoredProperties is the identity document persisted by Storage and
// reloaded across process restarts.
type StoredProperties struct {
	AnonymousDistinctID AnonymousDistinctId `json:"anonymous_distinct_id"`
	DistinctID          *DistinctId         `json:"distinct_id,omitempty"`
	DeviceID            DeviceId            `json:"device_id"`
	Groups              *Map[string]        `json:"groups"`
	Checkin             *Checkin            `json:"checkin,omitempty"`
}
