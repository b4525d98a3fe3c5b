package aether

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/aether/pkg/alg/levenshtein"
	"github.com/Sumatoshi-tech/aether/pkg/node"
	"github.com/Sumatoshi-tech/aether/pkg/sourcemap"
)

// Built-in rule names.
const (
	RuleOID            = "oid"
	RuleSourceLocation = "source-location"
	RuleStripTestIDs   = "strip-test-ids"
	RuleStripComments  = "strip-comments"
)

// Attribute and property names written or matched by the built-in rules.
const (
	AttrOID      = "data-oid"
	AttrTestID   = "data-testid"
	PropLocation = "data-loc"
)

// Rule is one rewrite. Apply runs when the visitor enters a node whose type is
// listed in Kinds, and reports whether it changed the tree.
type Rule struct {
	Name        string
	Description string
	Kinds       []node.Type
	Apply       func(scope *Scope, cursor *node.Cursor) (bool, error)
}

// Scope is the per-invocation state shared by all rules of one visitor.
type Scope struct {
	positions *sourcemap.Handle
	oids      map[string]int
}

// Positions returns the invocation's shared position handle.
func (scope *Scope) Positions() *sourcemap.Handle {
	return scope.positions
}

//nolint:gochecknoglobals // immutable rule table and UUID namespace.
var (
	builtinRules = []Rule{
		{
			Name:        RuleOID,
			Description: "Add a stable data-oid attribute to every JSX element",
			Kinds:       []node.Type{node.TypeJSXOpeningElement, node.TypeJSXSelfClosing},
			Apply:       applyOID,
		},
		{
			Name:        RuleSourceLocation,
			Description: "Record the original file:line:col of every JSX element",
			Kinds:       []node.Type{node.TypeJSXOpeningElement, node.TypeJSXSelfClosing},
			Apply:       applySourceLocation,
		},
		{
			Name:        RuleStripTestIDs,
			Description: "Remove data-testid attributes",
			Kinds:       []node.Type{node.TypeJSXAttribute},
			Apply:       applyStripTestIDs,
		},
		{
			Name:        RuleStripComments,
			Description: "Remove comments",
			Kinds:       []node.Type{node.TypeComment},
			Apply:       applyStripComments,
		},
	}

	oidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/Sumatoshi-tech/aether/oid"))
)

// Rules returns the registered rules in application order.
func Rules() []Rule {
	return slices.Clone(builtinRules)
}

// RuleNames returns the registered rule names in application order.
func RuleNames() []string {
	names := make([]string, len(builtinRules))
	for idx, rule := range builtinRules {
		names[idx] = rule.Name
	}

	return names
}

// LookupRule finds a registered rule by name.
func LookupRule(name string) (Rule, bool) {
	idx := slices.IndexFunc(builtinRules, func(rule Rule) bool { return rule.Name == name })
	if idx < 0 {
		return Rule{}, false
	}

	return builtinRules[idx], true
}

// suggestDistance bounds how far a misspelled rule name may be from a
// registered one to be suggested.
const suggestDistance = 3

// SuggestRule returns the registered rule name closest to name.
func SuggestRule(name string) (string, bool) {
	return levenshtein.Closest(name, RuleNames(), suggestDistance)
}

func applyOID(scope *Scope, cursor *node.Cursor) (bool, error) {
	element := cursor.Node()

	nameIdx, err := elementNameIndex(element)
	if err != nil || nameIdx < 0 {
		return false, err
	}

	if element.Pos == nil || FindAttribute(element, AttrOID) != nil {
		return false, nil
	}

	span, err := scope.positions.SpanOf(element)
	if err != nil {
		return false, fmt.Errorf("locate %s: %w", element.Type, err)
	}

	element.InsertChild(nameIdx+1, NewAttribute(AttrOID, scope.uniqueOID(span.Start)))

	return true, nil
}

// uniqueOID derives a UUIDv5 from the original position. Elements that map to
// the same original position get a per-invocation ordinal mixed in.
func (scope *Scope) uniqueOID(pos sourcemap.Position) string {
	key := pos.String()

	seen := scope.oids[key]
	scope.oids[key] = seen + 1

	if seen > 0 {
		key = fmt.Sprintf("%s#%d", key, seen)
	}

	return uuid.NewSHA1(oidNamespace, []byte(key)).String()
}

func applySourceLocation(scope *Scope, cursor *node.Cursor) (bool, error) {
	element := cursor.Node()
	if element.Pos == nil {
		return false, nil
	}

	span, err := scope.positions.SpanOf(element)
	if err != nil {
		return false, fmt.Errorf("locate %s: %w", element.Type, err)
	}

	element.SetProp(PropLocation, span.Start.String())

	return true, nil
}

func applyStripTestIDs(_ *Scope, cursor *node.Cursor) (bool, error) {
	name, err := AttributeName(cursor.Node())
	if err != nil {
		return false, err
	}

	if name != AttrTestID {
		return false, nil
	}

	return true, cursor.Remove()
}

func applyStripComments(_ *Scope, cursor *node.Cursor) (bool, error) {
	return true, cursor.Remove()
}

// elementNameIndex returns the child index of a JSX element's tag name, or -1
// for fragments.
func elementNameIndex(element *node.Node) (int, error) {
	if len(element.Children) == 0 {
		return 0, fmt.Errorf("%w: %s without children", ErrMalformedTree, element.Type)
	}

	for idx, child := range element.Children {
		if !child.Named {
			continue
		}

		if child.Type == node.TypeJSXAttribute {
			return -1, nil
		}

		return idx, nil
	}

	return -1, nil
}

// AttributeName returns the name of a jsx_attribute node.
func AttributeName(attribute *node.Node) (string, error) {
	for _, child := range attribute.Children {
		if child.Named {
			return child.Text(), nil
		}
	}

	return "", fmt.Errorf("%w: %s without a name", ErrMalformedTree, attribute.Type)
}

// FindAttribute returns the element's attribute with the given name, or nil.
func FindAttribute(element *node.Node, name string) *node.Node {
	for _, child := range element.Children {
		if child.Type != node.TypeJSXAttribute {
			continue
		}

		if attrName, err := AttributeName(child); err == nil && attrName == name {
			return child
		}
	}

	return nil
}

// AttributeValue returns the unquoted string value of a jsx_attribute.
func AttributeValue(attribute *node.Node) (string, bool) {
	value := attribute.ChildOfType(node.TypeString)
	if value == nil {
		return "", false
	}

	return strings.Trim(value.Text(), `"'`), true
}

// NewAttribute builds a synthesized name="value" JSX attribute. Double quotes
// in value are dropped since JSX attribute strings have no escapes.
func NewAttribute(name, value string) *node.Node {
	value = strings.ReplaceAll(value, `"`, "")

	str := node.NewNamed(node.TypeString, "",
		node.NewLeaf(`"`, `"`),
		node.NewNamed("string_fragment", value),
		node.NewLeaf(`"`, `"`),
	)

	return node.NewNamed(node.TypeJSXAttribute, "",
		node.NewNamed(node.TypePropertyIdentifier, name),
		node.NewLeaf("=", "="),
		str,
	)
}
