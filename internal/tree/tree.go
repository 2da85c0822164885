package tree

import (
	"sync"

	"github.com/luisOO/json-view/internal/jsondoc"
)

// Tree owns the navigable node graph for one document. The node child lists
// are the authoritative ownership structure; the arena is a best-effort
// index from canonical path to node, kept in step with loads and evictions.
// There is no parent back-pointer: a node's parent is found by truncating
// its path and looking it up.
type Tree struct {
	doc  *jsondoc.Document
	root *Node

	mu    sync.RWMutex
	arena map[string]*Node
	focus jsondoc.Path
}

// New builds a tree over doc with an unloaded root node.
func New(doc *jsondoc.Document) *Tree {
	root := newNode(jsondoc.RootPath, "$", doc.Root())
	t := &Tree{
		doc:   doc,
		root:  root,
		arena: map[string]*Node{root.Path.String(): root},
	}
	return t
}

// Document returns the underlying parsed document.
func (t *Tree) Document() *jsondoc.Document { return t.doc }

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Lookup finds a node by its canonical path string. Only nodes that are
// currently materialized (reachable from a loaded parent) are present.
func (t *Tree) Lookup(path string) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.arena[path]
	return n, ok
}

// Parent returns the parent of n via truncated-path lookup, or false for the
// root.
func (t *Tree) Parent(n *Node) (*Node, bool) {
	if n.Path.IsRoot() {
		return nil, false
	}
	return t.Lookup(n.Path.Parent().String())
}

// Commit attaches materialized children to n and registers them in the
// arena.
func (t *Tree) Commit(n *Node, children []*Node, partial bool) {
	n.FinishLoad(children, partial)
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range children {
		t.arena[c.Path.String()] = c
	}
}

// Evict drops n's materialized children, returning the node to Idle, and
// forgets the whole dropped subtree in the arena. It reports false when the
// node is protected (expanded, loading) or not loaded. Idempotent.
func (t *Tree) Evict(n *Node) bool {
	dropped, ok := n.evict()
	if !ok {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range dropped {
		t.forgetLocked(c)
	}
	return true
}

// forgetLocked removes c and all its materialized descendants from the
// arena.
func (t *Tree) forgetLocked(c *Node) {
	delete(t.arena, c.Path.String())
	for _, gc := range c.Children() {
		t.forgetLocked(gc)
	}
}

// SetFocus records the currently selected path. The focused node and every
// ancestor along its path to the root are exempt from eviction.
func (t *Tree) SetFocus(p jsondoc.Path) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.focus = p
}

// Focus returns the currently focused path.
func (t *Tree) Focus() jsondoc.Path {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.focus
}

// OnFocusPath reports whether n lies on the path from the root to the
// focused node (inclusive). When no focus is set it reports false.
func (t *Tree) OnFocusPath(n *Node) bool {
	t.mu.RLock()
	focus := t.focus
	t.mu.RUnlock()
	if focus == nil || len(n.Path) > len(focus) {
		return false
	}
	return n.Path.Equal(focus[:len(n.Path)])
}

// Walk visits every materialized node in depth-first order, root first. The
// visit function returns false to stop the walk.
func (t *Tree) Walk(fn func(*Node) bool) {
	var walk func(n *Node) bool
	walk = func(n *Node) bool {
		if !fn(n) {
			return false
		}
		for _, c := range n.Children() {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(t.root)
}

// CacheSize reports how many nodes are currently materialized.
func (t *Tree) CacheSize() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.arena)
}
