package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionSetDefaultPrefersZstd(t *testing.T) {
	s := DefaultCompressionSet()
	assert.Equal(t, []CompressionAlgorithm{CompressionZstd, CompressionIdentity}, s.Algorithms())
}

func TestCompressionSetWithoutZstd(t *testing.T) {
	s := DefaultCompressionSet().Without(CompressionZstd)
	assert.Equal(t, []CompressionAlgorithm{CompressionIdentity}, s.Algorithms())
}

func TestCompressionSetUnmarshalIgnoresUnknownAlgorithms(t *testing.T) {
	var s CompressionSet
	require.NoError(t, json.Unmarshal([]byte(`["zstd","brotli"]`), &s))
	assert.Equal(t, []CompressionAlgorithm{CompressionZstd, CompressionIdentity}, s.Algorithms())
}

func TestCompressionSetUnmarshalEmptyMeansIdentityOnly(t *testing.T) {
	var s CompressionSet
	require.NoError(t, json.Unmarshal([]byte(`[]`), &s))
	assert.Equal(t, []CompressionAlgorithm{CompressionIdentity}, s.Algorithms())
}

func TestCompressionSetRoundTrip(t *testing.T) {
	s := DefaultCompressionSet()
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded CompressionSet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, s.Algorithms(), decoded.Algorithms())
}
