package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPreservesInsertionOrder(t *testing.T) {
	m := NewMap[int]()
	m.Set("z", 1)
	m.Set("a", 2)
	m.Set("m", 3)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":2,"m":3}`, string(data))
}

func TestMapSetExistingKeyKeepsPosition(t *testing.T) {
	m := NewMap[string]()
	m.Set("a", "1")
	m.Set("b", "2")
	m.Set("a", "overwritten")

	assert.Equal(t, []string{"a", "b"}, m.Keys())
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, "overwritten", v)
}

func TestMapUnmarshalPreservesOrder(t *testing.T) {
	var m Map[int]
	require.NoError(t, json.Unmarshal([]byte(`{"b":2,"a":1,"c":3}`), &m))
	assert.Equal(t, []string{"b", "a", "c"}, m.Keys())
}

func TestMapMergeOverwritesOnCollision(t *testing.T) {
	a := NewMap[int]()
	a.Set("x", 1)
	a.Set("y", 2)

	b := NewMap[int]()
	b.Set("y", 20)
	b.Set("z", 30)

	a.Merge(b)

	assert.Equal(t, []string{"x", "y", "z"}, a.Keys())
	v, _ := a.Get("y")
	assert.Equal(t, 20, v)
}

func TestMapCloneIsIndependent(t *testing.T) {
	a := NewMap[int]()
	a.Set("x", 1)

	clone := a.Clone()
	clone.Set("y", 2)

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 2, clone.Len())
}
