package node

// Allocator is a free-list allocator for [Node] and [Positions]. Trees given
// back through ReleaseTree feed later allocations. Not safe for concurrent use.
type Allocator struct {
	nodes []*Node
	pos   []*Positions
}

// GetNode returns a zeroed Node, reusing from the free list if available.
func (a *Allocator) GetNode() *Node {
	if count := len(a.nodes); count > 0 {
		nd := a.nodes[count-1]
		a.nodes = a.nodes[:count-1]

		return nd
	}

	return &Node{}
}

// PutNode clears the node and returns it to the free list.
func (a *Allocator) PutNode(target *Node) {
	*target = Node{}
	a.nodes = append(a.nodes, target)
}

// NewNode creates a Node from the free list and initializes it.
func (a *Allocator) NewNode(nodeType Type, token string, named bool, positions *Positions) *Node {
	nd := a.GetNode()
	nd.Type = nodeType
	nd.Token = token
	nd.Named = named
	nd.Pos = positions

	return nd
}

// NewPositions creates a Positions from the free list and initializes all fields.
func (a *Allocator) NewPositions(
	startLine, startCol, startOffset, endLine, endCol, endOffset uint,
) *Positions {
	var positions *Positions

	if count := len(a.pos); count > 0 {
		positions = a.pos[count-1]
		a.pos = a.pos[:count-1]
	} else {
		positions = &Positions{}
	}

	positions.StartLine = startLine
	positions.StartCol = startCol
	positions.StartOffset = startOffset
	positions.EndLine = endLine
	positions.EndCol = endCol
	positions.EndOffset = endOffset

	return positions
}

// ReleaseTree iteratively returns all nodes and positions in the tree to the
// allocator's free lists. The tree must not be used afterwards.
func (a *Allocator) ReleaseTree(root *Node) {
	if root == nil {
		return
	}

	stack := make([]*Node, 0, defaultStackCap)
	stack = append(stack, root)

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range current.Children {
			if child != nil {
				stack = append(stack, child)
			}
		}

		if current.Pos != nil {
			*current.Pos = Positions{}
			a.pos = append(a.pos, current.Pos)
		}

		a.PutNode(current)
	}
}
