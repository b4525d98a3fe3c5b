package aether_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/aether/pkg/aether"
)

func TestConfig_Enabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  aether.Config
		rule string
		want bool
	}{
		{"default enables", aether.DefaultConfig(), aether.RuleOID, true},
		{"all false disables", aether.AllRules(false), aether.RuleOID, false},
		{"listed rule", aether.OnlyRules(aether.RuleStripComments), aether.RuleStripComments, true},
		{"unlisted rule", aether.OnlyRules(aether.RuleStripComments), aether.RuleOID, false},
		{"zero value", aether.Config{}, aether.RuleOID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.cfg.Enabled(tt.rule))
		})
	}
}

func TestConfig_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		payload string
		want    aether.Config
	}{
		{`{"all":true}`, aether.AllRules(true)},
		{`{"all":false}`, aether.AllRules(false)},
		{`{"rules":["oid","strip-comments"]}`, aether.OnlyRules("oid", "strip-comments")},
		{`{"rules":[]}`, aether.OnlyRules()},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			t.Parallel()

			var got aether.Config

			require.NoError(t, json.Unmarshal([]byte(tt.payload), &got))
			assert.Equal(t, tt.want.Kind, got.Kind)
			assert.Equal(t, tt.want.All, got.All)
			assert.ElementsMatch(t, tt.want.Rules, got.Rules)

			encoded, err := json.Marshal(got)
			require.NoError(t, err)
			assert.JSONEq(t, tt.payload, string(encoded))
			assert.JSONEq(t, tt.payload, got.String())
		})
	}
}

func TestConfig_UnmarshalRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		variant bool
	}{
		{"empty object", `{}`, true},
		{"two tags", `{"all":true,"rules":["oid"]}`, true},
		{"unknown tag", `{"targets":{"web":true}}`, true},
		{"wrong payload type", `{"all":"yes"}`, false},
		{"null payload", `{"all":null}`, false},
		{"rules not a list", `{"rules":"oid"}`, false},
		{"array", `[true]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got aether.Config

			err := json.Unmarshal([]byte(tt.payload), &got)
			require.Error(t, err)

			if tt.variant {
				require.ErrorIs(t, err, aether.ErrUnknownVariant)
			}
		})
	}
}

func TestConfig_MarshalUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := json.Marshal(aether.Config{Kind: "bogus"})
	require.ErrorIs(t, err, aether.ErrUnknownVariant)
	assert.Equal(t, []aether.Kind{aether.KindAll, aether.KindRules}, aether.Kinds())
}

func TestValidateSchema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		payload string
		valid   bool
	}{
		{`null`, true},
		{`{"all": true}`, true},
		{`{"rules": ["oid", "strip-test-ids"]}`, true},
		{`{"all": 1}`, false},
		{`{"rules": ["nope"]}`, false},
		{`{"rules": ["oid", "oid"]}`, false},
		{`{"all": true, "extra": 1}`, false},
		{`{}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			t.Parallel()

			violations, err := aether.ValidateSchema([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, len(violations) == 0, "violations: %v", violations)

			checkErr := aether.CheckSchema([]byte(tt.payload))
			if tt.valid {
				assert.NoError(t, checkErr)
			} else {
				assert.ErrorIs(t, checkErr, aether.ErrSchemaViolation)
			}
		})
	}

	_, err := aether.ValidateSchema([]byte(`{not json`))
	require.Error(t, err)
}

func TestSchemaListsEveryRule(t *testing.T) {
	t.Parallel()

	for _, name := range aether.RuleNames() {
		payload := `{"rules":["` + name + `"]}`
		assert.NoError(t, aether.CheckSchema([]byte(payload)), name)
	}
}
