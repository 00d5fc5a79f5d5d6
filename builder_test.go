package idsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetsignal/idsclient/internal/logging/logtest"
	"github.com/fleetsignal/idsclient/internal/model"
	"github.com/fleetsignal/idsclient/internal/storage"
)

// disableTelemetry makes transport.BuildFromEnvironment select the None
// transport so Build never touches the network in tests.
func disableTelemetry(t *testing.T) {
	t.Helper()
	t.Setenv("DETSYS_IDS_TELEMETRY", "disabled")
	t.Setenv("DETSYS_IDS_TRANSPORT", "")
	t.Setenv("DETSYS_IDS_CHECKIN_FILE", "")
	t.Setenv("DETSYS_CORRELATION", "")
}

func TestBuilderBuildProducesWorkingRecorder(t *testing.T) {
	disableTelemetry(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	distinctID := model.DistinctId("builder-user")
	rec, w, err := NewBuilder().
		SetStorage(storage.NewMemory()).
		SetDistinctID(distinctID).
		SetLogger(logtest.New(t)).
		SetTimeout(50 * time.Millisecond).
		Build(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.NotNil(t, w)

	require.NoError(t, rec.Record(ctx, "started", nil))
	require.NoError(t, rec.FlushNow(ctx))
	require.NoError(t, rec.Close())

	done := make(chan error, 1)
	go func() { done <- w.Join() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not shut down after the recorder was closed")
	}
}

func TestBuilderAddFactAccumulates(t *testing.T) {
	b := NewBuilder().AddFact("a", 1).AddFact("b", 2)
	v, ok := b.facts.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = b.facts.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestBuilderSettersReturnSameBuilderForChaining(t *testing.T) {
	b := NewBuilder()
	assert.Same(t, b, b.SetEndpoint("file:///tmp/x"))
	assert.Same(t, b, b.SetCheckinFile("/tmp/checkin.json"))
	assert.Same(t, b, b.SetTimeout(time.Second))
}
