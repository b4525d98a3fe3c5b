package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Sumatoshi-tech/aether/pkg/aether"
)

// ResolveConfig decodes the configuration channel's content. present is false
// when the host sent no payload at all.
//
// Absent, blank, null and {} payloads resolve to aether.DefaultConfig. A
// well-formed payload is returned exactly as decoded. Anything else fails with
// ErrConfigMalformed; a malformed payload never falls back to the default.
func ResolveConfig(raw string, present bool) (aether.Config, error) {
	if !present {
		return aether.DefaultConfig(), nil
	}

	payload := bytes.TrimSpace([]byte(raw))
	if len(payload) == 0 {
		return aether.DefaultConfig(), nil
	}

	if !json.Valid(payload) {
		return aether.Config{}, fmt.Errorf("%w: not valid JSON: %q", ErrConfigMalformed, truncate(raw))
	}

	if isEmptyValue(payload) {
		return aether.DefaultConfig(), nil
	}

	var cfg aether.Config

	err := json.Unmarshal(payload, &cfg)
	if err != nil {
		return aether.Config{}, fmt.Errorf("%w: %w", ErrConfigMalformed, err)
	}

	return cfg, nil
}

// IsEmptyPayload reports whether raw is blank, null or {}: the payloads that
// resolve to the default configuration without being decoded.
func IsEmptyPayload(raw string) bool {
	payload := bytes.TrimSpace([]byte(raw))

	return len(payload) == 0 || (json.Valid(payload) && isEmptyValue(payload))
}

// isEmptyValue reports whether a valid JSON payload is null or an empty object.
func isEmptyValue(payload []byte) bool {
	if bytes.Equal(payload, []byte("null")) {
		return true
	}

	var object map[string]json.RawMessage

	err := json.Unmarshal(payload, &object)

	return err == nil && object != nil && len(object) == 0
}

const maxQuotedPayload = 64

func truncate(raw string) string {
	if len(raw) <= maxQuotedPayload {
		return raw
	}

	return raw[:maxQuotedPayload] + "..."
}
