package model

import "github.com/google/uuid"

// DistinctId identifies an application-known user. It is unset until
// Identify is called.
type DistinctId string

// AnonymousDistinctId identifies a caller before (or instead of) an
// application identity. It is always present once the Collator has
// constructed its state.
type AnonymousDistinctId string

// DeviceId identifies one installation, stable across Reset.
type DeviceId string

// SessionId identifies one process lifetime. It is never persisted.
type SessionId string

// WindowId, when present, scopes a session further (e.g. one CI job
// attempt). It originates only from a correlation seed.
type WindowId string

// NewAnonymousDistinctId mints a time-ordered identifier so that anonymous
// ids sort and read naturally, mirroring the session/device id scheme.
func NewAnonymousDistinctId() AnonymousDistinctId {
	return AnonymousDistinctId(timeOrderedUUID())
}

// NewSessionId mints a time-ordered per-process session identifier.
func NewSessionId() SessionId {
	return SessionId(timeOrderedUUID())
}

// NewDeviceId mints a "DIDS-DEV-<uuid>" installation identifier.
func NewDeviceId() DeviceId {
	return DeviceId("DIDS-DEV-" + timeOrderedUUID())
}

// NewEventUUID mints a random (not time-ordered) identifier for one event,
// matching the wire format's plain UUID field.
func NewEventUUID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		// crypto/rand failure; fall back to a v7 id rather than panic so a
		// starved entropy pool never crashes the recording path.
		return timeOrderedUUID()
	}
	return id.String()
}

func timeOrderedUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
