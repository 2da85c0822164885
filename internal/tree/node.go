// Package tree implements the lazily-expandable tree view over a parsed
// document. Nodes materialize their immediate children on demand and can be
// evicted back to their unloaded state to reclaim memory; the underlying
// document never changes, so eviction is always reversible.
package tree

import (
	"sync"
	"time"

	"github.com/luisOO/json-view/internal/jsondoc"
)

// State is the load state of a node. Transitions are serialized by the
// node's own mutex: Idle -> Loading -> {Loaded, Failed}, and Loaded -> Idle
// again on eviction.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateFailed
)

var stateStr = [...]string{
	StateIdle:    "idle",
	StateLoading: "loading",
	StateLoaded:  "loaded",
	StateFailed:  "failed",
}

func (s State) String() string {
	if int(s) >= len(stateStr) {
		return "unknown"
	}
	return stateStr[s]
}

// A Node is one navigable element of the tree view. Key, Kind, Display and
// ChildCount are fixed at creation; the load state, expansion flag and the
// materialized children are guarded by the node's mutex.
type Node struct {
	Path       jsondoc.Path
	Key        string // member key, or "[i]" for array elements
	Kind       jsondoc.Kind
	Display    string // truncated preview, or a summary count for containers
	ChildCount int    // declared cardinality, known without materializing

	mu         sync.Mutex
	state      State
	expanded   bool
	partial    bool
	children   []*Node
	loadErr    error
	lastAccess time.Time
}

// State reports the node's current load state.
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// CanExpand reports whether n is a container with at least one child.
func (n *Node) CanExpand() bool {
	return (n.Kind == jsondoc.Object || n.Kind == jsondoc.Array) && n.ChildCount > 0
}

// Expanded reports whether the node is currently expanded in the view.
func (n *Node) Expanded() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.expanded
}

// SetExpanded records the expansion flag. Expanded nodes are exempt from
// eviction.
func (n *Node) SetExpanded(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expanded = v
	if v {
		n.lastAccess = time.Now()
	}
}

// Children returns a snapshot of the materialized children, nil when the
// node is not loaded.
func (n *Node) Children() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StateLoaded {
		return nil
	}
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Partial reports whether the last materialization was truncated by the
// child limit. Re-expanding with a larger limit is required to see the rest.
func (n *Node) Partial() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.partial
}

// LoadErr returns the failure recorded by the last load attempt, if any.
func (n *Node) LoadErr() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loadErr
}

// LastAccess reports when the node was last expanded or its children last
// committed.
func (n *Node) LastAccess() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastAccess
}

// BeginLoad moves the node into the Loading state. It reports false if the
// node is already Loading or Loaded, in which case the caller must not start
// another materialization. A Failed node may retry.
func (n *Node) BeginLoad() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == StateLoading || n.state == StateLoaded {
		return false
	}
	n.state = StateLoading
	n.loadErr = nil
	return true
}

// FinishLoad commits materialized children and moves the node to Loaded.
func (n *Node) FinishLoad(children []*Node, partial bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.children = children
	n.partial = partial
	n.state = StateLoaded
	n.lastAccess = time.Now()
}

// FailLoad records a materialization failure. The node becomes Failed and is
// retryable.
func (n *Node) FailLoad(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.children = nil
	n.loadErr = err
	n.state = StateFailed
}

// CancelLoad returns a Loading node to Idle. Cancellation is a normal early
// exit, not a failure.
func (n *Node) CancelLoad() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == StateLoading {
		n.state = StateIdle
	}
}

// evict drops the materialized children and resets the node to Idle. It
// refuses nodes that are expanded, loading, or not loaded, and reports the
// dropped children so the arena can forget the subtree. Safe to call
// repeatedly.
func (n *Node) evict() ([]*Node, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StateLoaded || n.expanded {
		return nil, false
	}
	dropped := n.children
	n.children = nil
	n.partial = false
	n.state = StateIdle
	return dropped, true
}
