// Package aether is the transform engine run by the plugin: the rule
// configuration type, the built-in rule set and the visitor that applies the
// enabled rules during a single pass over a program tree.
package aether

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
)

// ErrUnknownVariant is returned when a configuration payload does not carry
// exactly one known variant tag.
var ErrUnknownVariant = errors.New("unknown configuration variant")

var errTrailingData = errors.New("unexpected data after JSON value")

// Kind tags a Config variant. The tag is also the JSON key of the variant.
type Kind string

// Configuration variants.
const (
	// KindAll enables (true) or disables (false) every registered rule.
	KindAll Kind = "all"
	// KindRules enables exactly the listed rules.
	KindRules Kind = "rules"
)

// Config selects which rules apply to one compilation unit. It is a tagged
// union: Kind says which of the payload fields is meaningful.
type Config struct {
	Kind  Kind
	All   bool
	Rules []string
}

// DefaultConfig is the configuration used when the host supplies none: every rule enabled.
func DefaultConfig() Config {
	return AllRules(true)
}

// AllRules builds the KindAll variant.
func AllRules(enabled bool) Config {
	return Config{Kind: KindAll, All: enabled}
}

// OnlyRules builds the KindRules variant.
func OnlyRules(names ...string) Config {
	return Config{Kind: KindRules, Rules: slices.Clone(names)}
}

// Enabled reports whether the named rule is active under the configuration.
func (cfg Config) Enabled(name string) bool {
	switch cfg.Kind {
	case KindAll:
		return cfg.All
	case KindRules:
		return slices.Contains(cfg.Rules, name)
	default:
		return false
	}
}

// String renders the configuration as its JSON payload.
func (cfg Config) String() string {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Sprintf("<invalid config: %v>", err)
	}

	return string(data)
}

// variantCodec encodes and decodes one Config variant's payload.
type variantCodec struct {
	encode func(cfg Config) (any, error)
	decode func(raw json.RawMessage) (Config, error)
}

// variants lists every known Config variant keyed by its tag. A new variant
// needs a Kind constant, an entry here and a branch in the JSON schema.
var variants = map[Kind]variantCodec{ //nolint:gochecknoglobals // static variant table.
	KindAll: {
		encode: func(cfg Config) (any, error) { return cfg.All, nil },
		decode: func(raw json.RawMessage) (Config, error) {
			var enabled bool

			err := strictUnmarshal(raw, &enabled)
			if err != nil {
				return Config{}, fmt.Errorf("%q expects a boolean: %w", KindAll, err)
			}

			return AllRules(enabled), nil
		},
	},
	KindRules: {
		encode: func(cfg Config) (any, error) {
			if cfg.Rules == nil {
				return []string{}, nil
			}

			return cfg.Rules, nil
		},
		decode: func(raw json.RawMessage) (Config, error) {
			var names []string

			err := strictUnmarshal(raw, &names)
			if err != nil {
				return Config{}, fmt.Errorf("%q expects a list of rule names: %w", KindRules, err)
			}

			return OnlyRules(names...), nil
		},
	},
}

// Kinds returns the known variant tags, sorted.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(variants))
	for kind := range variants {
		kinds = append(kinds, kind)
	}

	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	return kinds
}

// MarshalJSON encodes the configuration as {"<kind>": <payload>}.
func (cfg Config) MarshalJSON() ([]byte, error) {
	codec, ok := variants[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, cfg.Kind)
	}

	payload, err := codec.encode(cfg)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(map[Kind]any{cfg.Kind: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %q config: %w", cfg.Kind, err)
	}

	return data, nil
}

// UnmarshalJSON decodes a single-tag object into the matching variant.
func (cfg *Config) UnmarshalJSON(data []byte) error {
	var tagged map[Kind]json.RawMessage

	err := strictUnmarshal(data, &tagged)
	if err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	if len(tagged) != 1 {
		return fmt.Errorf("%w: expected exactly one tag, got %d", ErrUnknownVariant, len(tagged))
	}

	for kind, raw := range tagged {
		codec, ok := variants[kind]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownVariant, kind)
		}

		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return fmt.Errorf("%q must not be null", kind)
		}

		decoded, decodeErr := codec.decode(raw)
		if decodeErr != nil {
			return decodeErr
		}

		*cfg = decoded
	}

	return nil
}

// strictUnmarshal decodes exactly one JSON value and rejects trailing data.
func strictUnmarshal(data []byte, target any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	err := dec.Decode(target)
	if err != nil {
		return err
	}

	_, err = dec.Token()
	if !errors.Is(err, io.EOF) {
		return errTrailingData
	}

	return nil
}
