package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetsignal/idsclient/internal/model"
)

func TestFileSubmitWritesOneLinePerBatch(t *testing.T) {
	dir := t.TempDir()
	outputPath := filepath.Join(dir, "events.jsonl")

	f, err := NewFile(outputPath, "")
	require.NoError(t, err)
	defer f.Close()

	batch := model.Batch{SentAt: "2024-01-01T00:00:00Z", Batch: []model.Event{{Name: "e1"}}}
	require.NoError(t, f.Submit(context.Background(), batch))
	require.NoError(t, f.Submit(context.Background(), batch))

	file, err := os.Open(outputPath)
	require.NoError(t, err)
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var lines int
	for scanner.Scan() {
		var decoded model.Batch
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &decoded))
		assert.Equal(t, "e1", decoded.Batch[0].Name)
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestFileCheckinWithoutFileReturnsSentinel(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(filepath.Join(dir, "events.jsonl"), "")
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Checkin(context.Background(), model.NewMap[any]())
	assert.ErrorIs(t, err, ErrNoCheckinFile)
}

func TestFileCheckinReReadsFromStart(t *testing.T) {
	dir := t.TempDir()
	checkinPath := filepath.Join(dir, "checkin.json")
	require.NoError(t, os.WriteFile(checkinPath, []byte(`{"server_options":{"compression_algorithms":["zstd"]},"options":{}}`), 0o600))

	f, err := NewFile(filepath.Join(dir, "events.jsonl"), checkinPath)
	require.NoError(t, err)
	defer f.Close()

	c1, err := f.Checkin(context.Background(), model.NewMap[any]())
	require.NoError(t, err)
	c2, err := f.Checkin(context.Background(), model.NewMap[any]())
	require.NoError(t, err)

	assert.True(t, c1.Equal(c2))
	assert.Equal(t, []model.CompressionAlgorithm{model.CompressionZstd, model.CompressionIdentity}, c1.ServerOptions.CompressionAlgorithms.Algorithms())
}
