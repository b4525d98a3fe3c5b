package node

import (
	"errors"
)

// Sentinel errors for mutating walks.
var (
	// SkipChildren may be returned from Visitor.Enter to skip the subtree of
	// the current node. Leave is still called for that node.
	SkipChildren = errors.New("skip children") //nolint:errname,revive // control-flow sentinel, mirrors filepath.SkipDir.

	// ErrCursorDetached is returned by cursor edits after the current node was removed.
	ErrCursorDetached = errors.New("cursor node was removed")

	// ErrNoParent is returned when removing or inserting around the root.
	ErrNoParent = errors.New("root node has no parent")

	// ErrNilNode is returned when a nil node is passed to a cursor edit.
	ErrNilNode = errors.New("nil node")
)

// Visitor receives every node of a walk twice: on the way down and on the way up.
type Visitor interface {
	// Enter is called before the node's children are walked.
	Enter(cursor *Cursor) error
	// Leave is called after the node's children are walked.
	Leave(cursor *Cursor) error
}

// Funcs adapts plain functions to a Visitor. Nil functions are no-ops.
type Funcs struct {
	OnEnter func(cursor *Cursor) error
	OnLeave func(cursor *Cursor) error
}

// Enter calls OnEnter.
func (funcs Funcs) Enter(cursor *Cursor) error {
	if funcs.OnEnter == nil {
		return nil
	}

	return funcs.OnEnter(cursor)
}

// Leave calls OnLeave.
func (funcs Funcs) Leave(cursor *Cursor) error {
	if funcs.OnLeave == nil {
		return nil
	}

	return funcs.OnLeave(cursor)
}

// walkFrame is one level of the explicit walk stack.
type walkFrame struct {
	node *Node
	// index of node within the parent frame's children.
	index int
	// pending count of siblings inserted after node by Enter.
	after int
	// next child index to visit.
	next int
}

// Cursor describes the node currently being visited and lets the visitor
// edit the tree around it. A cursor is only valid during the callback it was
// passed to.
type Cursor struct {
	walker  *walker
	parent  *Node
	node    *Node
	index   int
	after   int
	removed bool
}

// Node returns the current node, or nil after Remove.
func (cursor *Cursor) Node() *Node {
	if cursor.removed {
		return nil
	}

	return cursor.node
}

// Parent returns the parent of the current node, or nil for the root.
func (cursor *Cursor) Parent() *Node {
	return cursor.parent
}

// Index returns the current node's index within its parent's children.
func (cursor *Cursor) Index() int {
	return cursor.index
}

// Depth returns the number of ancestors of the current node.
func (cursor *Cursor) Depth() int {
	if cursor.parent == nil {
		return 0
	}

	return len(cursor.walker.stack)
}

// Ancestors returns the path from the root to the parent of the current node.
func (cursor *Cursor) Ancestors() []*Node {
	if cursor.parent == nil {
		return nil
	}

	path := make([]*Node, len(cursor.walker.stack))

	for idx, frame := range cursor.walker.stack {
		path[idx] = frame.node
	}

	return path
}

// Replace swaps the current node for replacement. When called from Enter, the
// replacement's children are walked in place of the old node's children.
func (cursor *Cursor) Replace(replacement *Node) error {
	if cursor.removed {
		return ErrCursorDetached
	}

	if replacement == nil {
		return ErrNilNode
	}

	if cursor.parent == nil {
		cursor.walker.root = replacement
	} else {
		cursor.parent.Children[cursor.index] = replacement
	}

	cursor.node = replacement

	return nil
}

// Remove deletes the current node from its parent. Its subtree is not walked
// and Leave is not called for it.
func (cursor *Cursor) Remove() error {
	if cursor.removed {
		return ErrCursorDetached
	}

	if cursor.parent == nil {
		return ErrNoParent
	}

	children := cursor.parent.Children
	cursor.parent.Children = append(children[:cursor.index], children[cursor.index+1:]...)
	cursor.removed = true

	return nil
}

// InsertBefore inserts sibling immediately before the current node.
// Inserted nodes are not visited by the current walk.
func (cursor *Cursor) InsertBefore(sibling *Node) error {
	if err := cursor.checkInsert(sibling); err != nil {
		return err
	}

	cursor.parent.InsertChild(cursor.index, sibling)
	cursor.index++

	return nil
}

// InsertAfter inserts sibling immediately after the current node.
// Inserted nodes are not visited by the current walk.
func (cursor *Cursor) InsertAfter(sibling *Node) error {
	if err := cursor.checkInsert(sibling); err != nil {
		return err
	}

	cursor.parent.InsertChild(cursor.index+1, sibling)
	cursor.after++

	return nil
}

func (cursor *Cursor) checkInsert(sibling *Node) error {
	switch {
	case cursor.removed:
		return ErrCursorDetached
	case sibling == nil:
		return ErrNilNode
	case cursor.parent == nil:
		return ErrNoParent
	default:
		return nil
	}
}

// nextIndex is the parent's index of the first sibling not yet visited.
func (cursor *Cursor) nextIndex() int {
	if cursor.removed {
		return cursor.index + cursor.after
	}

	return cursor.index + 1 + cursor.after
}

type walker struct {
	root    *Node
	visitor Visitor
	stack   []walkFrame
}

// Walk performs one depth-first pass over the tree rooted at root, mutating it
// in place through the cursor handed to visitor. Every node present when its
// parent is reached is entered exactly once. Siblings inserted through
// InsertBefore or InsertAfter are not entered, but children added to the
// current node during Enter are, since its child list is read afterwards.
// The first error from the visitor stops the walk and is returned as is.
//
// Walk returns the root, which differs from the argument only when the visitor
// replaced it.
func Walk(root *Node, visitor Visitor) (*Node, error) {
	if root == nil {
		return nil, nil
	}

	wlk := &walker{root: root, visitor: visitor, stack: make([]walkFrame, 0, defaultStackCap)}

	err := wlk.run()
	if err != nil {
		return wlk.root, err
	}

	return wlk.root, nil
}

func (wlk *walker) run() error {
	rootCursor := &Cursor{walker: wlk, node: wlk.root}

	descend, err := wlk.enter(rootCursor)
	if err != nil {
		return err
	}

	if !descend {
		return wlk.leave(rootCursor)
	}

	wlk.stack = append(wlk.stack, walkFrame{node: rootCursor.node})

	for len(wlk.stack) > 0 {
		top := &wlk.stack[len(wlk.stack)-1]

		if top.next < len(top.node.Children) {
			err = wlk.visitChild(top)
			if err != nil {
				return err
			}

			continue
		}

		err = wlk.popFrame()
		if err != nil {
			return err
		}
	}

	return nil
}

// visitChild enters the next child of top and either pushes a frame for it or
// finishes it immediately.
func (wlk *walker) visitChild(top *walkFrame) error {
	parent := top.node
	cursor := &Cursor{walker: wlk, parent: parent, node: parent.Children[top.next], index: top.next}

	if cursor.node == nil {
		return ErrNilNode
	}

	descend, err := wlk.enter(cursor)
	if err != nil {
		return err
	}

	// top may be invalidated by the append below.
	top.next = cursor.nextIndex()

	if cursor.removed {
		return nil
	}

	if !descend {
		err = wlk.leave(cursor)
		if err != nil {
			return err
		}

		wlk.stack[len(wlk.stack)-1].next = cursor.nextIndex()

		return nil
	}

	wlk.stack = append(wlk.stack, walkFrame{node: cursor.node, index: cursor.index, after: cursor.after})

	return nil
}

// popFrame calls Leave for the exhausted top frame and advances its parent.
func (wlk *walker) popFrame() error {
	done := wlk.stack[len(wlk.stack)-1]
	wlk.stack = wlk.stack[:len(wlk.stack)-1]

	var parent *Node
	if len(wlk.stack) > 0 {
		parent = wlk.stack[len(wlk.stack)-1].node
	}

	cursor := &Cursor{walker: wlk, parent: parent, node: done.node, index: done.index, after: done.after}

	err := wlk.leave(cursor)
	if err != nil {
		return err
	}

	if parent != nil {
		wlk.stack[len(wlk.stack)-1].next = cursor.nextIndex()
	}

	return nil
}

// enter runs Visitor.Enter and reports whether the children should be walked.
func (wlk *walker) enter(cursor *Cursor) (bool, error) {
	err := wlk.visitor.Enter(cursor)
	if errors.Is(err, SkipChildren) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	if cursor.removed {
		return false, nil
	}

	return len(cursor.node.Children) > 0, nil
}

func (wlk *walker) leave(cursor *Cursor) error {
	if cursor.removed {
		return nil
	}

	return wlk.visitor.Leave(cursor)
}
