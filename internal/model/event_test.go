package model

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPropertiesMarshalFlattensInWireOrder(t *testing.T) {
	groups := NewMap[string]()
	groups.Set("org", "acme")

	facts := NewMap[any]()
	facts.Set("os", "linux")

	userProps := NewMap[any]()
	userProps.Set("clicked", true)

	props := &EventProperties{
		AnonDistinctID: "anon-1",
		DeviceID:       "dev-1",
		SessionID:      "sess-1",
		Groups:         groups,
		Facts:          facts,
		UserProperties: userProps,
	}

	data, err := json.Marshal(props)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Contains(t, string(data), `"$anon_distinct_id":"anon-1"`)
	assert.JSONEq(t, `"idsclient"`, string(decoded["$lib"]))
	assert.JSONEq(t, `"linux"`, string(decoded["os"]))
	assert.JSONEq(t, `true`, string(decoded["clicked"]))
	assert.JSONEq(t, `{"org":"acme"}`, string(decoded["$groups"]))

	keys := orderedKeys(t, data)
	assert.Equal(t, []string{
		"$anon_distinct_id", "$device_id", "$lib", "$lib_version",
		"$session_id", "$groups", "os", "clicked",
	}, keys)
}

func TestEventPropertiesMarshalDefaultsGroupsToEmptyObject(t *testing.T) {
	props := &EventProperties{AnonDistinctID: "a", DeviceID: "d", SessionID: "s"}
	data, err := json.Marshal(props)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"$groups":{}`)
}

func orderedKeys(t *testing.T, data []byte) []string {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	require.NoError(t, err)
	require.Equal(t, json.Delim('{'), tok)

	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		require.NoError(t, err)
		keys = append(keys, keyTok.(string))
		var raw json.RawMessage
		require.NoError(t, dec.Decode(&raw))
	}
	return keys
}
