package tree

import (
	"context"
	"fmt"

	"github.com/luisOO/json-view/internal/jsondoc"
)

// DefaultChildLimit bounds how many children one materialization call
// produces. Wide fan-out nodes never force materializing everything at once;
// the result is marked partial instead.
const DefaultChildLimit = 1000

// cancelCheckStride is how many children are produced between context
// checks during materialization.
const cancelCheckStride = 500

// A ResolveError reports that a node's path does not resolve in the
// document. The affected node stays retryable.
type ResolveError struct {
	Path string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("path %s does not resolve", e.Path)
}

// Materialize produces the immediate children of the node at path, in source
// order, without recursing into grandchildren. At most limit children are
// produced (DefaultChildLimit if limit <= 0); partial reports whether the
// true cardinality exceeded the limit. Scalars yield no children.
//
// Each child's ChildCount comes from the element's declared length, so the
// cost is O(min(breadth, limit)), never O(subtree).
func (t *Tree) Materialize(ctx context.Context, path jsondoc.Path, limit int) (children []*Node, partial bool, err error) {
	if limit <= 0 {
		limit = DefaultChildLimit
	}
	e, ok := t.doc.Resolve(path)
	if !ok {
		return nil, false, &ResolveError{Path: path.String()}
	}

	total := e.Len()
	n := total
	if n > limit {
		n, partial = limit, true
	}
	if n == 0 {
		return nil, false, nil
	}

	children = make([]*Node, 0, n)
	switch e.Kind() {
	case jsondoc.Object:
		for i := 0; i < n; i++ {
			if err := checkCancel(ctx, i); err != nil {
				return nil, false, err
			}
			m := e.Member(i)
			children = append(children, newNode(path.Child(m.Key), m.Key, m.Value))
		}
	case jsondoc.Array:
		for i := 0; i < n; i++ {
			if err := checkCancel(ctx, i); err != nil {
				return nil, false, err
			}
			children = append(children, newNode(path.Item(i), fmt.Sprintf("[%d]", i), e.At(i)))
		}
	}
	return children, partial, nil
}

func checkCancel(ctx context.Context, i int) error {
	if i%cancelCheckStride != 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func newNode(path jsondoc.Path, key string, e *jsondoc.Element) *Node {
	return &Node{
		Path:       path,
		Key:        key,
		Kind:       e.Kind(),
		Display:    displayValue(e),
		ChildCount: e.Len(),
	}
}
