// Package signal defines the typed messages exchanged between the
// Recorder, Collator, ConfigurationProxy, and Submitter actors.
package signal

import "github.com/fleetsignal/idsclient/internal/model"

// RawSignal is one message the Collator consumes from its incoming
// channel. The interface is sealed to this package: every variant is a
// struct defined here.
type RawSignal interface {
	isRawSignal()
}

type Fact struct {
	Key   string
	Value any
}

func (Fact) isRawSignal() {}

// UpdateFeatureFacts replaces the Collator's cached feature-facts. The
// Recorder sends it after every CheckInNow reply from the
// ConfigurationProxy (a failed check-in still replies with the cached
// document's feature-facts), and the ConfigurationProxy's periodic
// refresh sends it directly.
type UpdateFeatureFacts struct {
	FeatureFacts *model.Map[any]
}

func (UpdateFeatureFacts) isRawSignal() {}

type Event struct {
	Name       string
	Properties *model.Map[any]
}

func (Event) isRawSignal() {}

type Identify struct {
	NewDistinctID model.DistinctId
	Properties    *IdentifyProperties
}

func (Identify) isRawSignal() {}

// IdentifyProperties carries optional $set/$set_once person properties
// alongside an Identify or SetPersonProperties signal.
type IdentifyProperties struct {
	Set     *model.Map[any]
	SetOnce *model.Map[any]
}

// AsMap flattens $set/$set_once into one map suitable as event
// properties, mirroring the wire shape {"$set": ..., "$set_once": ...}.
func (p *IdentifyProperties) AsMap() *model.Map[any] {
	out := model.NewMap[any]()
	if p == nil {
		return out
	}
	if p.Set != nil {
		out.Set("$set", p.Set)
	}
	if p.SetOnce != nil {
		out.Set("$set_once", p.SetOnce)
	}
	return out
}

// SetPersonProperties updates identify-adjacent person properties without
// changing the distinct id.
type SetPersonProperties struct {
	Properties *IdentifyProperties
}

func (SetPersonProperties) isRawSignal() {}

type Alias struct {
	Alias string
}

func (Alias) isRawSignal() {}

type AddGroup struct {
	GroupName     string
	GroupMemberID string
}

func (AddGroup) isRawSignal() {}

type Reset struct{}

func (Reset) isRawSignal() {}

// GetSessionProperties requests the Collator's current identity snapshot,
// used both by the Recorder's refresh orchestration and by the
// ConfigurationProxy's periodic refresh sub-task.
type GetSessionProperties struct {
	Reply chan *model.Map[any]
}

func (GetSessionProperties) isRawSignal() {}

type FlushNow struct{}

func (FlushNow) isRawSignal() {}

// CollatedSignal is one message the Submitter consumes.
type CollatedSignal interface {
	isCollatedSignal()
}

type CollatedEvent struct {
	Event model.Event
}

func (CollatedEvent) isCollatedSignal() {}

type CollatedFlushNow struct{}

func (CollatedFlushNow) isCollatedSignal() {}

// CheckinStatus reports whether the ConfigurationProxy's cache has ever
// been populated by a successful refresh.
type CheckinStatus int

const (
	NotCheckedIn CheckinStatus = iota
	CheckedIn
)

// CheckInReply is the result of a refresh attempt: the cache's current
// Checkin (nil if never populated) and the feature-facts derived from it.
type CheckInReply struct {
	Checkin      *model.Checkin
	FeatureFacts *model.Map[any]
}

// ConfigurationProxySignal is one message the ConfigurationProxy's
// incoming worker consumes.
type ConfigurationProxySignal interface {
	isConfigurationProxySignal()
}

type QueryIfCheckedIn struct {
	Reply chan CheckinStatus
}

func (QueryIfCheckedIn) isConfigurationProxySignal() {}

type GetFeature struct {
	Name  string
	Reply chan *model.Feature
}

func (GetFeature) isConfigurationProxySignal() {}

type CheckInNow struct {
	SessionProperties *model.Map[any]
	Reply             chan CheckInReply
}

func (CheckInNow) isConfigurationProxySignal() {}

type Subscribe struct {
	Reply chan *ChangeSubscription
}

func (Subscribe) isConfigurationProxySignal() {}
