package submitter

import (
	"context"
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

type fakeTransport struct {
	mu      sync.Mutex
	batches []model.Batch
	failN   int
}

func (f *fakeTransport) Submit(_ context.Context, batch model.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return errors.New("submit failed")
	}
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeTransport) Checkin(context.Context, *model.Map[any]) (*model.Checkin, error) {
	return model.NewEmptyCheckin(), nil
}

func (f *fakeTransport) submitted() []model.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Batch, len(f.batches))
	copy(out, f.batches)
	return out
}

func TestSubmitterFlushNowSendsBufferedEvents(t *testing.T) {
	tr := &fakeTransport{}
	incoming := make(chan signal.CollatedSignal, 10)
	s := New(tr, incoming, logtest.New(t))

	done := make(chan error, 1)
	go func() { done <- s.Execute(context.Background()) }()

	incoming <- signal.CollatedEvent{Event: model.Event{Name: "e1"}}
	incoming <- signal.CollatedEvent{Event: model.Event{Name: "e2"}}
	incoming <- signal.CollatedFlushNow{}

	require.Eventually(t, func() bool { return len(tr.submitted()) == 1 }, time.Second, 5*time.Millisecond)
	batch := tr.submitted()[0]
	assert.Len(t, batch.Batch, 2)

	close(incoming)
	require.NoError(t, <-done)
}

func TestSubmitterRetainsBufferOnFailedFlush(t *testing.T) {
	tr := &fakeTransport{failN: 1}
	incoming := make(chan signal.CollatedSignal, 10)
	s := New(tr, incoming, logtest.New(t))

	done := make(chan error, 1)
	go func() { done <- s.Execute(context.Background()) }()

	incoming <- signal.CollatedEvent{Event: model.Event{Name: "e1"}}
	incoming <- signal.CollatedFlushNow{}
	incoming <- signal.CollatedFlushNow{}

	require.Eventually(t, func() bool { return len(tr.submitted()) == 1 }, time.Second, 5*time.Millisecond)
	batch := tr.submitted()[0]
	require.Len(t, batch.Batch, 1)
	assert.Equal(t, "e1", batch.Batch[0].Name, "the event dropped on the first failed attempt must survive to the next flush")

	close(incoming)
	require.NoError(t, <-done)
}

func TestSubmitterEmptyBufferDoesNotSubmit(t *testing.T) {
	tr := &fakeTransport{}
	incoming := make(chan signal.CollatedSignal, 10)
	s := New(tr, incoming, logtest.New(t))

	done := make(chan error, 1)
	go func() { done <- s.Execute(context.Background()) }()

	incoming <- signal.CollatedFlushNow{}
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, tr.submitted())

	close(incoming)
	require.NoError(t, <-done)
}

func TestSubmitterClosingIncomingFlushesFinalBuffer(t *testing.T) {
	tr := &fakeTransport{}
	incoming := make(chan signal.CollatedSignal, 10)
	s := New(tr, incoming, logtest.New(t))

	done := make(chan error, 1)
	go func() { done <- s.Execute(context.Background()) }()

	incoming <- signal.CollatedEvent{Event: model.Event{Name: "last"}}
	close(incoming)

	require.NoError(t, <-done)
	require.Len(t, tr.submitted(), 1)
	assert.Equal(t, "last", tr.submitted()[0].Batch[0].Name)
}

func TestSubmitterContextCancellationFlushesFinalBuffer(t *testing.T) {
	tr := &fakeTransport{}
	incoming := make(chan signal.CollatedSignal, 10)
	s := New(tr, incoming, logtest.New(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Execute(ctx) }()

	incoming <- signal.CollatedEvent{Event: model.Event{Name: "e"}}
	time.Sleep(10 * time.Millisecond)
	cancel()

	require.NoError(t, <-done)
	require.Len(t, tr.submitted(), 1)
}
