// Package node provides the program tree handed between host and plugin: the
// node structure, positions, traversal helpers and the mutating Walk.
package node

import (
	"fmt"
	"strconv"
	"strings"
)

// Well-known node kinds shared by the frontend and the built-in rules.
// They follow the tree-sitter JavaScript/TypeScript grammar names.
const (
	TypeProgram            Type = "program"
	TypeComment            Type = "comment"
	TypeJSXElement         Type = "jsx_element"
	TypeJSXOpeningElement  Type = "jsx_opening_element"
	TypeJSXSelfClosing     Type = "jsx_self_closing_element"
	TypeJSXAttribute       Type = "jsx_attribute"
	TypePropertyIdentifier Type = "property_identifier"
	TypeIdentifier         Type = "identifier"
	TypeString             Type = "string"
	TypeError              Type = "ERROR"
)

// Type is the grammar kind of a node.
type Type string

// Positions represents the byte and line/col offsets for a node.
// All fields are 1-based except StartOffset/EndOffset, which are byte offsets.
type Positions struct {
	StartLine   uint `json:"start_line,omitempty"   yaml:"start_line,omitempty"`
	StartCol    uint `json:"start_col,omitempty"    yaml:"start_col,omitempty"`
	StartOffset uint `json:"start_offset,omitempty" yaml:"start_offset,omitempty"`
	EndLine     uint `json:"end_line,omitempty"     yaml:"end_line,omitempty"`
	EndCol      uint `json:"end_col,omitempty"      yaml:"end_col,omitempty"`
	EndOffset   uint `json:"end_offset,omitempty"   yaml:"end_offset,omitempty"`
}

// Node is one element of a program tree.
//
// Fields:
//
//	ID: caller-assigned identifier (optional).
//	Type: grammar kind (e.g. "jsx_element", "identifier").
//	Token: source text for leaf nodes.
//	Named: false for anonymous punctuation and keyword leaves.
//	Pos: original source position; nil for nodes synthesized by a transform.
//	Props: free-form annotations attached by rules.
//	Children: ordered child nodes.
type Node struct {
	ID       string            `json:"id,omitempty"       yaml:"id,omitempty"`
	Type     Type              `json:"type,omitempty"     yaml:"type,omitempty"`
	Token    string            `json:"token,omitempty"    yaml:"token,omitempty"`
	Named    bool              `json:"named,omitempty"    yaml:"named,omitempty"`
	Pos      *Positions        `json:"pos,omitempty"      yaml:"pos,omitempty"`
	Props    map[string]string `json:"props,omitempty"    yaml:"props,omitempty"`
	Children []*Node           `json:"children,omitempty" yaml:"children,omitempty"`
}

const defaultStackCap = 64

// NewLeaf creates an anonymous leaf with the given kind and token.
func NewLeaf(nodeType Type, token string) *Node {
	return &Node{Type: nodeType, Token: token}
}

// NewNamed creates a named node with the given children.
func NewNamed(nodeType Type, token string, children ...*Node) *Node {
	return &Node{Type: nodeType, Token: token, Named: true, Children: children}
}

// IsLeaf reports whether the node has no children.
func (targetNode *Node) IsLeaf() bool {
	return len(targetNode.Children) == 0
}

// SetProp sets a property, allocating the map on first use.
func (targetNode *Node) SetProp(key, value string) {
	if targetNode.Props == nil {
		targetNode.Props = make(map[string]string)
	}

	targetNode.Props[key] = value
}

// Find returns all nodes in the tree (including root) for which predicate(node) is true.
// Traversal is pre-order. Returns nil if n is nil.
func (targetNode *Node) Find(predicate func(*Node) bool) []*Node {
	if targetNode == nil {
		return nil
	}

	var result []*Node

	targetNode.VisitPreOrder(func(curr *Node) {
		if predicate(curr) {
			result = append(result, curr)
		}
	})

	return result
}

// FindByType returns all nodes of the given kinds in pre-order.
func (targetNode *Node) FindByType(nodeTypes ...Type) []*Node {
	return targetNode.Find(func(curr *Node) bool {
		return curr.HasAnyType(nodeTypes...)
	})
}

// HasAnyType checks if the node has any of the given types.
func (targetNode *Node) HasAnyType(nodeTypes ...Type) bool {
	if targetNode == nil {
		return false
	}

	for _, nodeType := range nodeTypes {
		if targetNode.Type == nodeType {
			return true
		}
	}

	return false
}

// ChildOfType returns the first direct child of the given kind, or nil.
func (targetNode *Node) ChildOfType(nodeType Type) *Node {
	for _, child := range targetNode.Children {
		if child.Type == nodeType {
			return child
		}
	}

	return nil
}

// IndexOf returns the index of child in Children, or -1.
func (targetNode *Node) IndexOf(child *Node) int {
	for idx, candidate := range targetNode.Children {
		if candidate == child {
			return idx
		}
	}

	return -1
}

// InsertChild inserts child at index, shifting later children right.
// Index is clamped to [0, len(Children)].
func (targetNode *Node) InsertChild(index int, child *Node) {
	index = max(0, min(index, len(targetNode.Children)))

	targetNode.Children = append(targetNode.Children, nil)
	copy(targetNode.Children[index+1:], targetNode.Children[index:])
	targetNode.Children[index] = child
}

// VisitPreOrder visits all nodes in pre-order (root, then children left-to-right).
func (targetNode *Node) VisitPreOrder(fn func(*Node)) {
	if targetNode == nil {
		return
	}

	stack := make([]*Node, 0, defaultStackCap)
	stack = append(stack, targetNode)

	for len(stack) > 0 {
		curr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if curr == nil {
			continue
		}

		fn(curr)

		for idx := len(curr.Children) - 1; idx >= 0; idx-- {
			stack = append(stack, curr.Children[idx])
		}
	}
}

// Text concatenates the tokens of all leaves in document order.
func (targetNode *Node) Text() string {
	var buf strings.Builder

	targetNode.VisitPreOrder(func(curr *Node) {
		if curr.IsLeaf() {
			buf.WriteString(curr.Token)
		}
	})

	return buf.String()
}

// Clone returns a deep copy of the tree. Positions are copied, not shared.
func (targetNode *Node) Clone() *Node {
	if targetNode == nil {
		return nil
	}

	type cloneFrame struct {
		src *Node
		dst *Node
	}

	root := cloneShallow(targetNode)
	stack := []cloneFrame{{src: targetNode, dst: root}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(top.src.Children) == 0 {
			continue
		}

		top.dst.Children = make([]*Node, len(top.src.Children))

		for idx, child := range top.src.Children {
			if child == nil {
				continue
			}

			copied := cloneShallow(child)
			top.dst.Children[idx] = copied
			stack = append(stack, cloneFrame{src: child, dst: copied})
		}
	}

	return root
}

func cloneShallow(src *Node) *Node {
	dst := &Node{
		ID:    src.ID,
		Type:  src.Type,
		Token: src.Token,
		Named: src.Named,
	}

	if src.Pos != nil {
		pos := *src.Pos
		dst.Pos = &pos
	}

	if src.Props != nil {
		dst.Props = make(map[string]string, len(src.Props))
		for key, value := range src.Props {
			dst.Props[key] = value
		}
	}

	return dst
}

// String returns a string representation of the node.
func (targetNode *Node) String() string {
	if targetNode == nil {
		return "nil"
	}

	var buf strings.Builder

	buf.WriteString("Node{Type:")
	buf.WriteString(string(targetNode.Type))

	if targetNode.Token != "" {
		buf.WriteString(",Token:")
		buf.WriteString(targetNode.Token)
	}

	if len(targetNode.Props) > 0 {
		fmt.Fprintf(&buf, ",Props:%v", targetNode.Props)
	}

	if len(targetNode.Children) > 0 {
		buf.WriteString(",Children:")
		buf.WriteString(strconv.Itoa(len(targetNode.Children)))
	}

	buf.WriteString("}")

	return buf.String()
}
