// Package trie provides an ordered prefix tree keyed by string path
// components.
//
// Each node is either a leaf carrying a value or an edge (interior node)
// leading to further components. Every node additionally tracks the number
// of leaves in the subtree below it, maintained incrementally on insert and
// graft, so recursive population counts are O(1) reads.
//
// Iteration order is the lexicographic order of component names, which makes
// traversal output independent of insertion order.
package trie

import "sort"

// Trie is a rooted ordered mapping from path component sequences to values.
//
// The zero value is not usable; call New.
type Trie[V any] struct {
	root node[V]
}

type node[V any] struct {
	children map[string]*node[V]

	// value is non-nil only for leaves.
	value *V

	// leaves counts leaf nodes at or below this node.
	leaves int
}

// New creates an empty trie.
func New[V any]() *Trie[V] {
	return &Trie[V]{}
}

// Len returns the total number of leaves.
func (t *Trie[V]) Len() int {
	return t.root.leaves
}

// Insert stores value at the given path, creating interior nodes as needed.
// Replacing an existing leaf does not change any count.
//
// An empty path is a programming error and panics: the root is always an
// edge, never a leaf.
func (t *Trie[V]) Insert(path []string, value V) {
	if len(path) == 0 {
		panic("trie: insert with empty path")
	}

	spine := make([]*node[V], 0, len(path))
	n := &t.root
	for _, component := range path {
		spine = append(spine, n)
		if n.children == nil {
			n.children = make(map[string]*node[V])
		}
		child, ok := n.children[component]
		if !ok {
			child = &node[V]{}
			n.children[component] = child
		}
		n = child
	}

	isNew := n.value == nil
	n.value = &value
	if isNew {
		n.leaves++
		for _, ancestor := range spine {
			ancestor.leaves++
		}
	}
}

// Get returns the leaf value stored at path.
func (t *Trie[V]) Get(path []string) (V, bool) {
	n := t.lookup(path)
	if n == nil || n.value == nil {
		var zero V
		return zero, false
	}
	return *n.value, true
}

// LeafCount returns the number of leaves at or below the node named by path
// and whether that node exists. An empty path addresses the root, so
// LeafCount(nil) equals (Len(), true).
func (t *Trie[V]) LeafCount(path []string) (int, bool) {
	n := t.lookup(path)
	if n == nil {
		return 0, false
	}
	return n.leaves, true
}

// Graft attaches the root of sub as the node named by path, creating
// interior nodes as needed and replacing whatever was there before.
// Ancestor leaf counts are adjusted by the difference.
//
// The subtree is adopted, not copied: sub must not be used afterwards.
func (t *Trie[V]) Graft(path []string, sub *Trie[V]) {
	if len(path) == 0 {
		panic("trie: graft with empty path")
	}

	spine := make([]*node[V], 0, len(path))
	n := &t.root
	for _, component := range path[:len(path)-1] {
		spine = append(spine, n)
		if n.children == nil {
			n.children = make(map[string]*node[V])
		}
		child, ok := n.children[component]
		if !ok {
			child = &node[V]{}
			n.children[component] = child
		}
		n = child
	}
	spine = append(spine, n)

	last := path[len(path)-1]
	if n.children == nil {
		n.children = make(map[string]*node[V])
	}

	replaced := 0
	if prev, ok := n.children[last]; ok {
		replaced = prev.leaves
	}
	n.children[last] = &sub.root

	delta := sub.root.leaves - replaced
	for _, ancestor := range spine {
		ancestor.leaves += delta
	}
}

// Walk visits every leaf in lexicographic component order. The path slice
// passed to fn is reused between calls and must not be retained.
//
// Returning a non-nil error from fn stops the walk and propagates the error.
func (t *Trie[V]) Walk(fn func(path []string, value V) error) error {
	return t.root.walk(nil, func(path []string, n *node[V]) error {
		if n.value == nil {
			return nil
		}
		return fn(path, *n.value)
	})
}

// WalkEdges visits every interior node except the root, in lexicographic
// component order, reporting its recursive leaf count. The path slice is
// reused between calls and must not be retained.
func (t *Trie[V]) WalkEdges(fn func(path []string, leafCount int) error) error {
	return t.root.walk(nil, func(path []string, n *node[V]) error {
		if len(path) == 0 || n.value != nil {
			return nil
		}
		return fn(path, n.leaves)
	})
}

func (t *Trie[V]) lookup(path []string) *node[V] {
	n := &t.root
	for _, component := range path {
		child, ok := n.children[component]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

func (n *node[V]) walk(path []string, fn func([]string, *node[V]) error) error {
	if err := fn(path, n); err != nil {
		return err
	}

	if len(n.children) == 0 {
		return nil
	}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := n.children[name].walk(append(path, name), fn); err != nil {
			return err
		}
	}
	return nil
}
