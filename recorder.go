// Package idsclient is an in-process analytics client: record events,
// manage caller identity, and read server-controlled feature flags, all
// batched and delivered in the background by a Worker spawned alongside
// the returned Recorder.
package idsclient

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fleetsignal/idsclient/internal/logging"
	"github.com/fleetsignal/idsclient/internal/model"
	"github.com/fleetsignal/idsclient/internal/signal"
)

// Recorder is a cheap, clone-able façade over the Collator and
// ConfigurationProxy send channels. Every operation is non-blocking from
// the caller's perspective except those that explicitly await a reply.
//
// Go has no destructor to mirror "all Recorder clones dropped": Clone and
// Close together implement the same lifecycle with an explicit refcount,
// closing the underlying channels only once the last clone is closed.
type Recorder struct {
	shared *recorderShared

	// refreshPaused suppresses the automatic configuration refresh that
	// Identify, Alias, AddGroup, and Reset normally trigger. It lives on
	// the handle, not on shared: cloning always starts unpaused, and a
	// pause set through WithPausedRefresh only affects the handle passed
	// into its closure.
	refreshPaused bool
}

type recorderShared struct {
	collatorChan    chan signal.RawSignal
	configProxyChan chan signal.ConfigurationProxySignal
	log             logging.Component

	refcount  int32
	closeOnce sync.Once
}

func newRecorder(collatorChan chan signal.RawSignal, configProxyChan chan signal.ConfigurationProxySignal, log logging.Component) *Recorder {
	if log == nil {
		log = logging.NewNop()
	}
	return &Recorder{shared: &recorderShared{
		collatorChan:    collatorChan,
		configProxyChan: configProxyChan,
		log:             log,
		refcount:        1,
	}}
}

// Clone returns a new handle sharing the same underlying channels. Each
// clone must eventually be Closed.
func (r *Recorder) Clone() *Recorder {
	atomic.AddInt32(&r.shared.refcount, 1)
	return &Recorder{shared: r.shared}
}

// Close releases this handle. Once every clone (including the original)
// has been closed, the underlying channels close, which drives the
// Collator and ConfigurationProxy tasks toward their final flush and
// exit.
func (r *Recorder) Close() error {
	if atomic.AddInt32(&r.shared.refcount, -1) == 0 {
		r.shared.closeOnce.Do(func() {
			close(r.shared.collatorChan)
			close(r.shared.configProxyChan)
		})
	}
	return nil
}

func (r *Recorder) sendRaw(ctx context.Context, sig signal.RawSignal) error {
	select {
	case r.shared.collatorChan <- sig:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) sendConfig(ctx context.Context, sig signal.ConfigurationProxySignal) error {
	select {
	case r.shared.configProxyChan <- sig:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetFact records a fact merged into every subsequently emitted event.
func (r *Recorder) SetFact(ctx context.Context, key string, value any) error {
	return r.sendRaw(ctx, signal.Fact{Key: key, Value: value})
}

// Record enqueues an event. properties may be nil.
func (r *Recorder) Record(ctx context.Context, name string, properties *model.Map[any]) error {
	return r.sendRaw(ctx, signal.Event{Name: name, Properties: properties})
}

// Identify sets the caller's distinct id, rotating the anonymous distinct
// id if a different distinct id was previously set, then awaits a
// configuration refresh (feature-flag evaluation depends on identity).
// The refresh is skipped while the handle is paused, see WithPausedRefresh.
func (r *Recorder) Identify(ctx context.Context, newDistinctID model.DistinctId, properties *signal.IdentifyProperties) error {
	if err := r.sendRaw(ctx, signal.Identify{NewDistinctID: newDistinctID, Properties: properties}); err != nil {
		return err
	}
	return r.maybeTriggerRefresh(ctx)
}

// SetPersonProperties updates $set/$set_once person properties without
// changing identity.
func (r *Recorder) SetPersonProperties(ctx context.Context, properties *signal.IdentifyProperties) error {
	return r.sendRaw(ctx, signal.SetPersonProperties{Properties: properties})
}

// Alias emits a $create_alias event linking the current identity to s,
// then awaits a configuration refresh unless the handle is paused.
func (r *Recorder) Alias(ctx context.Context, s string) error {
	if err := r.sendRaw(ctx, signal.Alias{Alias: s}); err != nil {
		return err
	}
	return r.maybeTriggerRefresh(ctx)
}

// AddGroup associates the current identity with a group membership, then
// awaits a configuration refresh unless the handle is paused.
func (r *Recorder) AddGroup(ctx context.Context, groupName, memberID string) error {
	if err := r.sendRaw(ctx, signal.AddGroup{GroupName: groupName, GroupMemberID: memberID}); err != nil {
		return err
	}
	return r.maybeTriggerRefresh(ctx)
}

// Reset clears the distinct id and rotates the anonymous distinct id,
// leaving device id unchanged, then awaits a configuration refresh unless
// the handle is paused.
func (r *Recorder) Reset(ctx context.Context) error {
	if err := r.sendRaw(ctx, signal.Reset{}); err != nil {
		return err
	}
	return r.maybeTriggerRefresh(ctx)
}

// FlushNow asks the Submitter to flush its buffer immediately.
func (r *Recorder) FlushNow(ctx context.Context) error {
	return r.sendRaw(ctx, signal.FlushNow{})
}

func (r *Recorder) maybeTriggerRefresh(ctx context.Context) error {
	if r.refreshPaused {
		return nil
	}
	return r.TriggerConfigurationRefresh(ctx)
}

// WithPausedRefresh runs f against a handle that skips the automatic
// configuration refresh Identify, Alias, AddGroup, and Reset normally
// perform, then performs exactly one refresh after f returns nil. If f
// returns an error, that error is returned and no refresh runs. Use this to
// batch several identity-changing calls (e.g. Identify followed by several
// AddGroup calls) behind a single round-trip to the server.
func (r *Recorder) WithPausedRefresh(ctx context.Context, f func(*Recorder) error) error {
	paused := r.Clone()
	paused.refreshPaused = true
	defer paused.Close()

	if err := f(paused); err != nil {
		return err
	}
	return r.TriggerConfigurationRefresh(ctx)
}

// TriggerConfigurationRefresh runs the full refresh orchestration: it
// requests the current session properties from the Collator, hands them
// to the ConfigurationProxy's CheckInNow, and forwards the resulting
// feature-facts back to the Collator. Every Recorder-initiated refresh
// takes this path; only the ConfigurationProxy's periodic refresh
// sub-task talks to the Collator directly. The flow must stay one-way to
// avoid deadlocking the bounded channels.
func (r *Recorder) TriggerConfigurationRefresh(ctx context.Context) error {
	props, err := r.getSessionProperties(ctx)
	if err != nil {
		return err
	}

	reply := make(chan signal.CheckInReply, 1)
	if err := r.sendConfig(ctx, signal.CheckInNow{SessionProperties: props, Reply: reply}); err != nil {
		return err
	}

	select {
	case result := <-reply:
		return r.sendRaw(ctx, signal.UpdateFeatureFacts{FeatureFacts: result.FeatureFacts})
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) getSessionProperties(ctx context.Context) (*model.Map[any], error) {
	reply := make(chan *model.Map[any], 1)
	if err := r.sendRaw(ctx, signal.GetSessionProperties{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case props := <-reply:
		return props, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitForCheckin blocks until the ConfigurationProxy has completed at
// least one successful check-in, or timeout elapses (timeout <= 0 waits
// indefinitely). It subscribes before querying the checked-in status so
// a change landing between the two can't be missed.
func (r *Recorder) WaitForCheckin(ctx context.Context, timeout time.Duration) bool {
	sub, err := r.subscribeToChanges(ctx)
	if err != nil {
		return false
	}
	defer sub.Unsubscribe()

	if status, err := r.queryCheckedIn(ctx); err == nil && status == signal.CheckedIn {
		return true
	}

	var timerC <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timerC = t.C
	}

	select {
	case <-sub.Recv():
		return true
	case <-timerC:
		return false
	case <-ctx.Done():
		return false
	}
}

// SubscribeToFeatureChanges returns a subscription notified whenever the
// cached check-in document changes. Callers must Unsubscribe when done.
func (r *Recorder) SubscribeToFeatureChanges(ctx context.Context) (*signal.ChangeSubscription, error) {
	return r.subscribeToChanges(ctx)
}

func (r *Recorder) subscribeToChanges(ctx context.Context) (*signal.ChangeSubscription, error) {
	reply := make(chan *signal.ChangeSubscription, 1)
	if err := r.sendConfig(ctx, signal.Subscribe{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case sub := <-reply:
		return sub, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Recorder) queryCheckedIn(ctx context.Context) (signal.CheckinStatus, error) {
	reply := make(chan signal.CheckinStatus, 1)
	if err := r.sendConfig(ctx, signal.QueryIfCheckedIn{Reply: reply}); err != nil {
		return signal.NotCheckedIn, err
	}
	select {
	case status := <-reply:
		return status, nil
	case <-ctx.Done():
		return signal.NotCheckedIn, ctx.Err()
	}
}
