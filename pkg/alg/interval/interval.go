// Package interval provides an insert-only augmented interval tree keyed by
// byte ranges. Each entry carries an arbitrary payload.
//
// The tree is a red-black tree where each node stores the maximum right
// endpoint (maxHigh) in its subtree, so overlap queries prune whole subtrees.
// Insert is O(log N); queries are O(log N + k) for k results.
package interval

// Interval is a closed range [Low, High] with an associated Value.
type Interval[V any] struct {
	Low   uint32
	High  uint32
	Value V
}

// Contains reports whether point lies in the interval.
func (iv Interval[V]) Contains(point uint32) bool {
	return iv.Low <= point && point <= iv.High
}

// Width returns High-Low.
func (iv Interval[V]) Width() uint32 {
	return iv.High - iv.Low
}

// Tree is an augmented interval tree. The zero value is empty and ready to use.
// A Tree is safe for concurrent queries once no more inserts happen.
type Tree[V any] struct {
	root *treeNode[V]
	size int
}

type treeNode[V any] struct {
	interval            Interval[V]
	maxHigh             uint32
	left, right, parent *treeNode[V]
	black               bool
}

// New creates an empty interval tree.
func New[V any]() *Tree[V] {
	return &Tree[V]{}
}

// Len returns the number of intervals in the tree.
func (tree *Tree[V]) Len() int {
	return tree.size
}

// Insert adds [low, high] with value. Ranges with low > high are swapped.
func (tree *Tree[V]) Insert(low, high uint32, value V) {
	if low > high {
		low, high = high, low
	}

	inserted := &treeNode[V]{
		interval: Interval[V]{Low: low, High: high, Value: value},
		maxHigh:  high,
	}

	tree.bstInsert(inserted)
	tree.insertFixup(inserted)
	tree.size++
}

// QueryOverlap returns all intervals overlapping [low, high], ordered by Low then High.
func (tree *Tree[V]) QueryOverlap(low, high uint32) []Interval[V] {
	var results []Interval[V]

	collectOverlap(tree.root, low, high, &results)

	return results
}

// QueryPoint returns all intervals containing point.
func (tree *Tree[V]) QueryPoint(point uint32) []Interval[V] {
	return tree.QueryOverlap(point, point)
}

// Innermost returns the narrowest interval containing point. Ties go to the
// interval inserted with the greatest Low.
func (tree *Tree[V]) Innermost(point uint32) (Interval[V], bool) {
	var (
		best  Interval[V]
		found bool
	)

	for _, candidate := range tree.QueryPoint(point) {
		if !found || candidate.Width() < best.Width() ||
			(candidate.Width() == best.Width() && candidate.Low >= best.Low) {
			best = candidate
			found = true
		}
	}

	return best, found
}

func (tree *Tree[V]) bstInsert(inserted *treeNode[V]) {
	if tree.root == nil {
		tree.root = inserted

		return
	}

	current := tree.root

	for {
		if inserted.interval.High > current.maxHigh {
			current.maxHigh = inserted.interval.High
		}

		goLeft := inserted.interval.Low < current.interval.Low ||
			(inserted.interval.Low == current.interval.Low && inserted.interval.High < current.interval.High)

		next := childOf(current, goLeft)
		if next == nil {
			if goLeft {
				current.left = inserted
			} else {
				current.right = inserted
			}

			inserted.parent = current

			return
		}

		current = next
	}
}

// insertFixup restores red-black properties after insertion.
func (tree *Tree[V]) insertFixup(current *treeNode[V]) {
	for current != tree.root && !isBlack(current.parent) {
		parent := current.parent

		grandparent := parent.parent
		if grandparent == nil {
			break
		}

		leftCase := parent == grandparent.left
		uncle := childOf(grandparent, !leftCase)

		if !isBlack(uncle) {
			parent.black = true
			uncle.black = true
			grandparent.black = false
			current = grandparent

			continue
		}

		// Inner child: rotate it to the outside first.
		if current == childOf(parent, !leftCase) {
			tree.rotate(parent, leftCase)
			current, parent = parent, current
		}

		parent.black = true
		grandparent.black = false
		tree.rotate(grandparent, !leftCase)
	}

	tree.root.black = true
}

// rotate performs a rotation at pivotParent, left when left is true.
// Maintains the maxHigh augmentation.
func (tree *Tree[V]) rotate(pivotParent *treeNode[V], left bool) {
	var pivot *treeNode[V]

	if left {
		pivot = pivotParent.right
		pivotParent.right = pivot.left

		if pivot.left != nil {
			pivot.left.parent = pivotParent
		}

		pivot.left = pivotParent
	} else {
		pivot = pivotParent.left
		pivotParent.left = pivot.right

		if pivot.right != nil {
			pivot.right.parent = pivotParent
		}

		pivot.right = pivotParent
	}

	pivot.parent = pivotParent.parent

	switch {
	case pivotParent.parent == nil:
		tree.root = pivot
	case pivotParent == pivotParent.parent.left:
		pivotParent.parent.left = pivot
	default:
		pivotParent.parent.right = pivot
	}

	pivotParent.parent = pivot

	recalcMaxHigh(pivotParent)
	recalcMaxHigh(pivot)
}

func collectOverlap[V any](current *treeNode[V], low, high uint32, results *[]Interval[V]) {
	if current == nil || current.maxHigh < low {
		return
	}

	collectOverlap(current.left, low, high, results)

	if current.interval.Low <= high && current.interval.High >= low {
		*results = append(*results, current.interval)
	}

	if current.interval.Low > high {
		return
	}

	collectOverlap(current.right, low, high, results)
}

func isBlack[V any](current *treeNode[V]) bool {
	return current == nil || current.black
}

func childOf[V any](current *treeNode[V], left bool) *treeNode[V] {
	if current == nil {
		return nil
	}

	if left {
		return current.left
	}

	return current.right
}

func recalcMaxHigh[V any](current *treeNode[V]) {
	highest := current.interval.High

	if current.left != nil && current.left.maxHigh > highest {
		highest = current.left.maxHigh
	}

	if current.right != nil && current.right.maxHigh > highest {
		highest = current.right.maxHigh
	}

	current.maxHigh = highest
}
