// Package correlation imports a startup identity/session seed from an
// environment variable or an on-disk identity file, as written by CI
// systems that wrap application invocations.
package correlation

import (
	"encoding/json"
	"os"

	"github.com/fleetsignal/idsclient/internal/logging"
	"github.com/fleetsignal/idsclient/internal/model"
)

const (
	envVar       = "DETSYS_CORRELATION"
	identityFile = "/var/lib/determinate/identity.json"
)

// Import tries the environment variable first, then the identity file,
// returning an empty Correlation if neither is present or parseable.
func Import(log logging.Component) *model.Correlation {
	if c := importFromEnv(log); c != nil {
		return c
	}
	if c := importFromFile(log); c != nil {
		return c
	}
	return &model.Correlation{Properties: model.NewMap[any]()}
}

func importFromEnv(log logging.Component) *model.Correlation {
	raw, ok := os.LookupEnv(envVar)
	if !ok || raw == "" {
		return nil
	}
	c, err := parse([]byte(raw))
	if err != nil {
		log.Tracef("%s contained a malformed document: %v", envVar, err)
		return nil
	}
	return c
}

func importFromFile(log logging.Component) *model.Correlation {
	content, err := os.ReadFile(identityFile)
	if err != nil {
		log.Tracef("error loading the identity file %s: %v", identityFile, err)
		return nil
	}
	c, err := parse(content)
	if err != nil {
		log.Tracef("identity file %s contained a malformed document: %v", identityFile, err)
		return nil
	}
	return c
}

// legacyGitHubAction is the pre-existing CI envelope shape: an untagged
// alternative to the direct Correlation shape, disambiguated by the
// presence of a required "repository" field.
type legacyGitHubAction struct {
	Repository        string             `json:"repository"`
	Run               *string            `json:"run"`
	RunDifferentiator *string            `json:"run_differentiator"`
	Workflow          *string            `json:"workflow"`
	Groups            map[string]*string `json:"groups"`
	Extra             directCorrelation  `json:"-"`
}

// directCorrelation mirrors model.Correlation's JSON shape.
type directCorrelation struct {
	DistinctID     *string            `json:"distinct_id"`
	AnonDistinctID *string            `json:"$anon_distinct_id"`
	SessionID      *string            `json:"$session_id"`
	WindowID       *string            `json:"$window_id"`
	DeviceID       *string            `json:"$device_id"`
	Groups         map[string]*string `json:"$groups"`
	Properties     *model.Map[any]    `json:"-"`
}

// parse disambiguates the untagged union by checking for the legacy
// shape's required "repository" field, matching serde(untagged)'s
// try-in-order semantics where the legacy variant is declared first.
func parse(data []byte) (*model.Correlation, error) {
	var probe struct {
		Repository *string `json:"repository"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	if probe.Repository != nil {
		var legacy legacyGitHubAction
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, err
		}
		var extra directCorrelation
		if err := json.Unmarshal(data, &extra); err != nil {
			return nil, err
		}
		extra.Properties = extractExtraProperties(data)
		legacy.Extra = extra
		return legacy.intoCorrelation(), nil
	}

	var direct directCorrelation
	if err := json.Unmarshal(data, &direct); err != nil {
		return nil, err
	}
	direct.Properties = extractExtraProperties(data)
	return direct.intoCorrelation(), nil
}

// knownFields lists every field consumed by either untagged shape;
// whatever remains after removing them is flattened into Properties,
// mirroring serde's #[serde(flatten)] catch-all.
var knownFields = map[string]bool{
	"repository": true, "run": true, "run_differentiator": true, "workflow": true,
	"groups": true, "distinct_id": true, "$anon_distinct_id": true, "$session_id": true,
	"$window_id": true, "$device_id": true, "$groups": true,
}

func extractExtraProperties(data []byte) *model.Map[any] {
	props := model.NewMap[any]()
	var ordered model.Map[json.RawMessage]
	if err := json.Unmarshal(data, &ordered); err != nil {
		return props
	}
	for _, key := range ordered.Keys() {
		if knownFields[key] {
			continue
		}
		raw, _ := ordered.Get(key)
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			props.Set(key, v)
		}
	}
	return props
}

func (d directCorrelation) intoCorrelation() *model.Correlation {
	c := &model.Correlation{
		AnonDistinctID: d.AnonDistinctID,
		SessionID:      d.SessionID,
		WindowID:       d.WindowID,
		Groups:         d.Groups,
		Properties:     d.Properties,
	}
	if d.DistinctID != nil {
		id := model.DistinctId(*d.DistinctID)
		c.DistinctID = &id
	}
	if d.DeviceID != nil {
		id := model.DeviceId(*d.DeviceID)
		c.DeviceID = &id
	}
	if c.Groups == nil {
		c.Groups = map[string]*string{}
	}
	if c.Properties == nil {
		c.Properties = model.NewMap[any]()
	}
	return c
}

func (l legacyGitHubAction) intoCorrelation() *model.Correlation {
	groups := map[string]*string{}
	for k, v := range l.Groups {
		if v != nil {
			groups[k] = v
		}
	}
	// overlay wins on key collision, matching the original's chain order
	// (legacy groups first, then extra_properties.groups, last write wins)
	for k, v := range l.Extra.Groups {
		if v != nil {
			groups[k] = v
		}
	}

	c := &model.Correlation{
		AnonDistinctID: l.Extra.AnonDistinctID,
		SessionID:      firstNonNil(l.Extra.SessionID, l.Run),
		WindowID:       firstNonNil(l.Extra.WindowID, l.RunDifferentiator),
		Groups:         groups,
		Properties:     l.Extra.Properties,
	}

	if l.Extra.DistinctID != nil {
		id := model.DistinctId(*l.Extra.DistinctID)
		c.DistinctID = &id
	} else {
		id := model.DistinctId(l.Repository)
		c.DistinctID = &id
	}

	if l.Extra.DeviceID != nil {
		id := model.DeviceId(*l.Extra.DeviceID)
		c.DeviceID = &id
	} else if l.Workflow != nil {
		id := model.DeviceId(*l.Workflow)
		c.DeviceID = &id
	}

	if c.Properties == nil {
		c.Properties = model.NewMap[any]()
	}
	return c
}

func firstNonNil(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}
