// Package collator implements the Collator actor: sole owner of
// identity/session/fact/group state, and the sole builder of outgoing
// Event records.
package collator

import (
	"context"
	"time"

	"github.com/fleetsignal/idsclient/internal/logging"
	"github.com/fleetsignal/idsclient/internal/model"
	"github.com/fleetsignal/idsclient/internal/signal"
	"github.com/fleetsignal/idsclient/internal/snapshot"
	"github.com/fleetsignal/idsclient/internal/storage"
)

// Seed carries the construction-time inputs the Collator merges into its
// initial state. For the identifiers the priority order is: builder-supplied
// values win over persisted StoredProperties, which win over the
// correlation seed, which wins over a freshly generated default. Groups
// are merged persisted, then builder, then correlation, and Facts builder,
// then correlation, so correlation values win on key collision.
type Seed struct {
	DistinctID *model.DistinctId
	DeviceID   *model.DeviceId
	Facts      *model.Map[any]
	Groups     *model.Map[string]

	Correlation *model.Correlation
}

// Collator is the single-threaded actor consuming RawSignals in FIFO
// order. It must run via Execute on its own goroutine.
type Collator struct {
	snapshotter snapshot.Snapshotter
	store       storage.Storage
	log         logging.Component

	incoming <-chan signal.RawSignal
	outgoing chan<- signal.CollatedSignal

	sessionID      model.SessionId
	anonDistinctID model.AnonymousDistinctId
	distinctID     *model.DistinctId
	deviceID       model.DeviceId

	facts        *model.Map[any]
	featureFacts *model.Map[any]
	groups       *model.Map[string]
}

// New constructs a Collator, loading persisted state from store (a load
// failure is logged and treated as "no persisted state", never fatal).
func New(
	ctx context.Context,
	snapshotter snapshot.Snapshotter,
	store storage.Storage,
	incoming <-chan signal.RawSignal,
	outgoing chan<- signal.CollatedSignal,
	seed Seed,
	log logging.Component,
) *Collator {
	if log == nil {
		log = logging.NewNop()
	}
	if seed.Correlation == nil {
		seed.Correlation = &model.Correlation{Properties: model.NewMap[any]()}
	}

	stored, err := store.Load(ctx)
	if err != nil {
		log.Debugf("collator: loading persisted properties failed: %v", err)
		stored = nil
	}

	c := &Collator{
		snapshotter:  snapshotter,
		store:        store,
		log:          log,
		incoming:     incoming,
		outgoing:     outgoing,
		featureFacts: model.NewMap[any](),
	}

	c.anonDistinctID = firstAnonymousDistinctID(seed, stored)
	c.distinctID = firstDistinctID(seed, stored)
	c.deviceID = firstDeviceID(seed, stored)

	if seed.Correlation.SessionID != nil {
		c.sessionID = model.SessionId(*seed.Correlation.SessionID)
	} else {
		c.sessionID = model.NewSessionId()
	}

	c.groups = model.NewMap[string]()
	if stored != nil && stored.Groups != nil {
		c.groups.Merge(stored.Groups)
	}
	if seed.Groups != nil {
		c.groups.Merge(seed.Groups)
	}
	c.groups.Merge(seed.Correlation.GroupsAsMap())

	c.facts = model.NewMap[any]()
	if seed.Facts != nil {
		c.facts.Merge(seed.Facts)
	}
	if seed.Correlation.Properties != nil {
		c.facts.Merge(seed.Correlation.Properties)
	}

	return c
}

func firstAnonymousDistinctID(seed Seed, stored *model.StoredProperties) model.AnonymousDistinctId {
	if stored != nil && stored.AnonymousDistinctID != "" {
		return stored.AnonymousDistinctID
	}
	if seed.Correlation != nil && seed.Correlation.AnonDistinctID != nil {
		return model.AnonymousDistinctId(*seed.Correlation.AnonDistinctID)
	}
	return model.NewAnonymousDistinctId()
}

func firstDistinctID(seed Seed, stored *model.StoredProperties) *model.DistinctId {
	if seed.DistinctID != nil {
		return seed.DistinctID
	}
	if stored != nil && stored.DistinctID != nil {
		return stored.DistinctID
	}
	if seed.Correlation != nil && seed.Correlation.DistinctID != nil {
		return seed.Correlation.DistinctID
	}
	return nil
}

func firstDeviceID(seed Seed, stored *model.StoredProperties) model.DeviceId {
	if seed.DeviceID != nil {
		return *seed.DeviceID
	}
	if stored != nil && stored.DeviceID != "" {
		return stored.DeviceID
	}
	if seed.Correlation != nil && seed.Correlation.DeviceID != nil {
		return *seed.Correlation.DeviceID
	}
	return model.NewDeviceId()
}

func (c *Collator) distinctIDOrAnon() string {
	if c.distinctID != nil {
		return string(*c.distinctID)
	}
	return string(c.anonDistinctID)
}

// Execute runs the Collator's receive loop until incoming is closed, then
// emits a final FlushNow to the Submitter and closes outgoing so the
// Submitter can exit. A failure to forward that final flush is the only
// fatal error this actor produces.
func (c *Collator) Execute(ctx context.Context) error {
	defer close(c.outgoing)
	for {
		select {
		case sig, ok := <-c.incoming:
			if !ok {
				return c.forwardFinal(ctx)
			}
			c.handle(ctx, sig)
		case <-ctx.Done():
			return c.forwardFinal(ctx)
		}
	}
}

func (c *Collator) forwardFinal(ctx context.Context) error {
	select {
	case c.outgoing <- signal.CollatedFlushNow{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Collator) handle(ctx context.Context, sig signal.RawSignal) {
	switch s := sig.(type) {
	case signal.Fact:
		c.facts.Set(s.Key, s.Value)

	case signal.UpdateFeatureFacts:
		c.featureFacts = s.FeatureFacts

	case signal.Event:
		c.emit(ctx, s.Name, s.Properties)

	case signal.Identify:
		c.handleIdentify(ctx, s)

	case signal.SetPersonProperties:
		// no identity change; just re-emit the $set/$set_once payload as
		// facts for the next event to pick up, matching the supplemental
		// identify-with-properties behavior without rotating anything.
		if s.Properties != nil {
			s.Properties.AsMap().Range(func(k string, v any) bool {
				c.facts.Set(k, v)
				return true
			})
		}

	case signal.Alias:
		props := model.NewMap[any]()
		props.Set("alias", s.Alias)
		c.emit(ctx, "$create_alias", props)

	case signal.AddGroup:
		c.groups.Set(s.GroupName, s.GroupMemberID)
		c.persist(ctx)

	case signal.Reset:
		c.distinctID = nil
		c.anonDistinctID = model.NewAnonymousDistinctId()
		c.persist(ctx)

	case signal.GetSessionProperties:
		c.replySessionProperties(s.Reply)

	case signal.FlushNow:
		c.forward(ctx, signal.CollatedFlushNow{})
	}
}

func (c *Collator) handleIdentify(ctx context.Context, s signal.Identify) {
	changed := c.distinctID == nil || *c.distinctID != s.NewDistinctID
	hadPrevious := c.distinctID != nil
	c.distinctID = &s.NewDistinctID

	if hadPrevious && changed {
		// regenerate so the old and new identities can't be cross-correlated;
		// re-identifying with the same value is a no-op on the anon id
		c.anonDistinctID = model.NewAnonymousDistinctId()
	}

	c.persist(ctx)

	var props *model.Map[any]
	if s.Properties != nil {
		props = s.Properties.AsMap()
	}
	c.emit(ctx, "$identify", props)
}

func (c *Collator) replySessionProperties(reply chan *model.Map[any]) {
	props := model.NewMap[any]()
	props.Set("distinct_id", c.distinctIDOrAnon())
	props.Set("$anon_distinct_id", string(c.anonDistinctID))
	props.Set("groups", c.groups)

	select {
	case reply <- props:
	default:
		c.log.Tracef("collator: GetSessionProperties reply dropped (caller gone)")
	}
}

func (c *Collator) emit(ctx context.Context, name string, properties *model.Map[any]) {
	snap := c.snapshotter.Snapshot()

	event := model.Event{
		Name:       name,
		DistinctID: c.distinctIDOrAnon(),
		UUID:       model.NewEventUUID(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Properties: &model.EventProperties{
			AnonDistinctID: string(c.anonDistinctID),
			DeviceID:       string(c.deviceID),
			SessionID:      string(c.sessionID),
			Groups:         c.groups.Clone(),
			Snapshot:       snap,
			Facts:          c.facts.Clone(),
			FeatureFacts:   c.featureFacts.Clone(),
			UserProperties: properties,
		},
	}

	c.forward(ctx, signal.CollatedEvent{Event: event})
}

func (c *Collator) forward(ctx context.Context, sig signal.CollatedSignal) {
	select {
	case c.outgoing <- sig:
	case <-ctx.Done():
		c.log.Tracef("collator: forwarding %T cancelled by shutdown", sig)
	}
}

func (c *Collator) persist(ctx context.Context) {
	props := model.StoredProperties{
		AnonymousDistinctID: c.anonDistinctID,
		DistinctID:          c.distinctID,
		DeviceID:            c.deviceID,
		Groups:              c.groups.Clone(),
	}
	if err := c.store.Store(ctx, props); err != nil {
		c.log.Debugf("collator: persisting identity failed: %v", err)
	}
}
