package aether

import (
	"errors"
	"fmt"
	"maps"

	"github.com/Sumatoshi-tech/aether/pkg/node"
	"github.com/Sumatoshi-tech/aether/pkg/sourcemap"
)

// Sentinel errors raised while building or running a visitor.
var (
	ErrUnknownRule     = errors.New("unknown rule")
	ErrMalformedTree   = errors.New("malformed tree")
	ErrMissingPosition = errors.New("missing position handle")
)

// Visitor applies the rules enabled by a Config to every node it enters.
// A Visitor serves exactly one invocation and is not safe for concurrent use.
type Visitor struct {
	scope   *Scope
	enabled []string
	byKind  map[node.Type][]Rule
	applied map[string]int
}

// Preprocess builds the visitor for one invocation. Every rule named by cfg
// must be registered; rules are applied in registration order.
func Preprocess(cfg Config, positions *sourcemap.Handle) (*Visitor, error) {
	if positions == nil {
		return nil, ErrMissingPosition
	}

	if _, ok := variants[cfg.Kind]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, cfg.Kind)
	}

	for _, name := range cfg.Rules {
		if _, ok := LookupRule(name); !ok {
			if suggestion, found := SuggestRule(name); found {
				return nil, fmt.Errorf("%w: %q (did you mean %q?)", ErrUnknownRule, name, suggestion)
			}

			return nil, fmt.Errorf("%w: %q", ErrUnknownRule, name)
		}
	}

	visitor := &Visitor{
		scope:   &Scope{positions: positions, oids: make(map[string]int)},
		byKind:  make(map[node.Type][]Rule),
		applied: make(map[string]int),
	}

	for _, rule := range builtinRules {
		if !cfg.Enabled(rule.Name) {
			continue
		}

		visitor.enabled = append(visitor.enabled, rule.Name)

		for _, kind := range rule.Kinds {
			visitor.byKind[kind] = append(visitor.byKind[kind], rule)
		}
	}

	return visitor, nil
}

// EnabledRules returns the names of the rules this visitor applies.
func (visitor *Visitor) EnabledRules() []string {
	return visitor.enabled
}

// Applied returns how many times each rule changed the tree.
func (visitor *Visitor) Applied() map[string]int {
	return maps.Clone(visitor.applied)
}

// Enter validates the node and runs the rules registered for its type. Rules
// after one that removed the node are skipped.
func (visitor *Visitor) Enter(cursor *node.Cursor) error {
	current := cursor.Node()

	err := checkShape(current)
	if err != nil {
		return err
	}

	for _, rule := range visitor.byKind[current.Type] {
		changed, applyErr := rule.Apply(visitor.scope, cursor)
		if applyErr != nil {
			return fmt.Errorf("rule %s: %w", rule.Name, applyErr)
		}

		if changed {
			visitor.applied[rule.Name]++
		}

		if cursor.Node() == nil {
			return nil
		}
	}

	return nil
}

// Leave is a no-op; all built-in rules act on the way down.
func (visitor *Visitor) Leave(*node.Cursor) error {
	return nil
}

func checkShape(current *node.Node) error {
	switch {
	case current.Type == "":
		return fmt.Errorf("%w: node without type", ErrMalformedTree)
	case current.Type == node.TypeError:
		return fmt.Errorf("%w: syntax error%s", ErrMalformedTree, describePos(current.Pos))
	case current.Pos != nil && current.Pos.StartOffset > current.Pos.EndOffset:
		return fmt.Errorf("%w: %s ends before it starts%s", ErrMalformedTree, current.Type, describePos(current.Pos))
	default:
		return nil
	}
}

func describePos(pos *node.Positions) string {
	if pos == nil {
		return ""
	}

	return fmt.Sprintf(" at %d:%d", pos.StartLine, pos.StartCol)
}
