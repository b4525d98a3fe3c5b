// Package plugin is the boundary a host compiler calls once per compilation
// unit. Transform resolves the rule configuration, shares the unit's position
// map with the transform engine and runs exactly one mutating pass over the
// program tree.
package plugin

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/aether/pkg/aether"
	"github.com/Sumatoshi-tech/aether/pkg/node"
	"github.com/Sumatoshi-tech/aether/pkg/sourcemap"
)

// Sentinel errors. Every error returned by this package wraps exactly one of them.
var (
	// ErrConfigChannelMissing means the host metadata has no configuration channel at all.
	ErrConfigChannelMissing = errors.New("plugin config channel missing")
	// ErrConfigMalformed means the configuration payload could not be decoded.
	ErrConfigMalformed = errors.New("plugin config malformed")
	// ErrTransformFailure means the mutating pass could not complete.
	ErrTransformFailure = errors.New("transform failed")
)

// Metadata is the per-invocation bundle a host passes next to the program tree.
type Metadata interface {
	// SourceMap returns the unit's position table.
	SourceMap() *sourcemap.Map
}

// ConfigProvider is implemented by metadata that carries a configuration
// channel. ok is false when the channel exists but holds no payload.
type ConfigProvider interface {
	PluginConfig() (raw string, ok bool)
}

// Stats describes one completed invocation.
type Stats struct {
	// Rules lists the enabled rules in application order.
	Rules []string
	// Applied counts tree changes per rule.
	Applied map[string]int
}

// Transform runs the plugin on one compilation unit. On success the returned
// tree is program, mutated in place (or its replacement if a rule replaced the
// root). On failure the returned tree is nil and the error wraps one of the
// package sentinels. The transform engine is never built when configuration
// resolution fails.
func Transform(program *node.Node, meta Metadata) (*node.Node, error) {
	root, _, err := TransformWithStats(program, meta)

	return root, err
}

// TransformWithStats is Transform that also reports what the rules did.
func TransformWithStats(program *node.Node, meta Metadata) (*node.Node, Stats, error) {
	if typed, isOwn := meta.(*InvocationMetadata); meta == nil || (isOwn && typed == nil) {
		return nil, Stats{}, fmt.Errorf("%w: nil metadata", ErrConfigChannelMissing)
	}

	provider, ok := meta.(ConfigProvider)
	if !ok {
		return nil, Stats{}, ErrConfigChannelMissing
	}

	cfg, err := ResolveConfig(provider.PluginConfig())
	if err != nil {
		return nil, Stats{}, err
	}

	positions, err := sourcemap.Share(meta.SourceMap())
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: %w", ErrTransformFailure, err)
	}
	defer positions.Release()

	return invoke(cfg, positions, program)
}

// Invoke builds the visitor for cfg and walks tree once. Failures from the
// visitor are returned wrapped in ErrTransformFailure with their cause intact;
// nothing is retried or recovered.
func Invoke(cfg aether.Config, positions *sourcemap.Handle, tree *node.Node) (*node.Node, error) {
	root, _, err := invoke(cfg, positions, tree)

	return root, err
}

func invoke(cfg aether.Config, positions *sourcemap.Handle, tree *node.Node) (*node.Node, Stats, error) {
	if tree == nil {
		return nil, Stats{}, fmt.Errorf("%w: nil program", ErrTransformFailure)
	}

	visitor, err := aether.Preprocess(cfg, positions)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: %w", ErrTransformFailure, err)
	}

	root, err := node.Walk(tree, visitor)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: %w", ErrTransformFailure, err)
	}

	return root, Stats{Rules: visitor.EnabledRules(), Applied: visitor.Applied()}, nil
}
