package configproxy

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetsignal/idsclient/internal/logging/logtest"
	"github.com/fleetsignal/idsclient/internal/model"
	"github.com/fleetsignal/idsclient/internal/signal"
)

// fakeTransport lets each test script exactly what Checkin returns, and
// counts calls so tests can assert a transport failure didn't touch the
// cache.
type fakeTransport struct {
	mu        sync.Mutex
	checkins  []*model.Checkin
	errs      []error
	callCount int
}

func (f *fakeTransport) Checkin(context.Context, *model.Map[any]) (*model.Checkin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.callCount
	f.callCount++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.checkins) {
		return f.checkins[i], nil
	}
	return f.checkins[len(f.checkins)-1], nil
}

func (f *fakeTransport) Submit(context.Context, model.Batch) error { return nil }

func newCheckin(flagKey string, variant bool) *model.Checkin {
	opts := model.NewMap[model.Feature]()
	opts.Set(flagKey, model.Feature{Variant: mustRaw(variant)})
	return &model.Checkin{
		ServerOptions: model.ServerOptions{CompressionAlgorithms: model.CompressionSet{}},
		Options:       opts,
	}
}

func mustRaw(v bool) json.RawMessage {
	if v {
		return json.RawMessage(`true`)
	}
	return json.RawMessage(`false`)
}

func newTestProxy(t *testing.T, tr *fakeTransport) (*ConfigurationProxy, chan signal.ConfigurationProxySignal, chan signal.RawSignal) {
	t.Helper()
	incoming := make(chan signal.ConfigurationProxySignal, 10)
	collatorChan := make(chan signal.RawSignal, 10)
	p := New(tr, incoming, collatorChan, logtest.New(t))
	return p, incoming, collatorChan
}

func TestConfigProxyCheckInNowUpdatesCacheAndReplies(t *testing.T) {
	tr := &fakeTransport{checkins: []*model.Checkin{newCheckin("flag_a", true)}}
	p, incoming, _ := newTestProxy(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Execute(ctx)

	reply := make(chan signal.CheckInReply, 1)
	incoming <- signal.CheckInNow{SessionProperties: model.NewMap[any](), Reply: reply}

	select {
	case r := <-reply:
		require.NotNil(t, r.Checkin)
		feat, ok := r.Checkin.Options.Get("flag_a")
		require.True(t, ok)
		assert.NotNil(t, feat.Variant)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for CheckInNow reply")
	}
}

func TestConfigProxyQueryIfCheckedInBeforeAnyRefresh(t *testing.T) {
	tr := &fakeTransport{checkins: []*model.Checkin{newCheckin("flag_a", true)}}
	p, incoming, _ := newTestProxy(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Execute(ctx)

	reply := make(chan signal.CheckinStatus, 1)
	incoming <- signal.QueryIfCheckedIn{Reply: reply}
	select {
	case status := <-reply:
		assert.Equal(t, signal.NotCheckedIn, status)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for status reply")
	}
}

func TestConfigProxyQueryIfCheckedInAfterRefresh(t *testing.T) {
	tr := &fakeTransport{checkins: []*model.Checkin{newCheckin("flag_a", true)}}
	p, incoming, _ := newTestProxy(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Execute(ctx)

	checkinReply := make(chan signal.CheckInReply, 1)
	incoming <- signal.CheckInNow{SessionProperties: model.NewMap[any](), Reply: checkinReply}
	<-checkinReply

	statusReply := make(chan signal.CheckinStatus, 1)
	incoming <- signal.QueryIfCheckedIn{Reply: statusReply}
	select {
	case status := <-statusReply:
		assert.Equal(t, signal.CheckedIn, status)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for status reply")
	}
}

func TestConfigProxyTransportErrorLeavesCacheUntouched(t *testing.T) {
	tr := &fakeTransport{
		checkins: []*model.Checkin{newCheckin("flag_a", true)},
		errs:     []error{nil, errors.New("network down")},
	}
	p, incoming, _ := newTestProxy(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Execute(ctx)

	first := make(chan signal.CheckInReply, 1)
	incoming <- signal.CheckInNow{SessionProperties: model.NewMap[any](), Reply: first}
	firstReply := <-first

	second := make(chan signal.CheckInReply, 1)
	incoming <- signal.CheckInNow{SessionProperties: model.NewMap[any](), Reply: second}
	secondReply := <-second

	assert.True(t, firstReply.Checkin.Equal(secondReply.Checkin),
		"a failed refresh must return the previously cached document unchanged")
}

func TestConfigProxyGetFeatureReturnsNilWhenUnknown(t *testing.T) {
	tr := &fakeTransport{checkins: []*model.Checkin{newCheckin("flag_a", true)}}
	p, incoming, _ := newTestProxy(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Execute(ctx)

	checkinReply := make(chan signal.CheckInReply, 1)
	incoming <- signal.CheckInNow{SessionProperties: model.NewMap[any](), Reply: checkinReply}
	<-checkinReply

	reply := make(chan *model.Feature, 1)
	incoming <- signal.GetFeature{Name: "unknown_flag", Reply: reply}
	select {
	case feat := <-reply:
		assert.Nil(t, feat)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for GetFeature reply")
	}
}

func TestConfigProxySubscribeReceivesNotificationOnChange(t *testing.T) {
	tr := &fakeTransport{checkins: []*model.Checkin{newCheckin("flag_a", true), newCheckin("flag_a", false)}}
	p, incoming, _ := newTestProxy(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Execute(ctx)

	subReply := make(chan *signal.ChangeSubscription, 1)
	incoming <- signal.Subscribe{Reply: subReply}
	sub := <-subReply
	defer sub.Unsubscribe()

	first := make(chan signal.CheckInReply, 1)
	incoming <- signal.CheckInNow{SessionProperties: model.NewMap[any](), Reply: first}
	<-first

	select {
	case <-sub.Recv():
	case <-time.After(time.Second):
		t.Fatal("expected a notification after the first successful check-in")
	}

	second := make(chan signal.CheckInReply, 1)
	incoming <- signal.CheckInNow{SessionProperties: model.NewMap[any](), Reply: second}
	<-second

	select {
	case <-sub.Recv():
	case <-time.After(time.Second):
		t.Fatal("expected a notification after the check-in document changed")
	}
}

func TestConfigProxyClosingIncomingStopsExecute(t *testing.T) {
	tr := &fakeTransport{checkins: []*model.Checkin{newCheckin("flag_a", true)}}
	incoming := make(chan signal.ConfigurationProxySignal)
	collatorChan := make(chan signal.RawSignal, 10)
	p := New(tr, incoming, collatorChan, logtest.New(t))

	done := make(chan error, 1)
	go func() { done <- p.Execute(context.Background()) }()

	close(incoming)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Execute did not return after incoming was closed")
	}
}
