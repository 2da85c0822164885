package tree

import (
	"io"

	"github.com/creachadair/jtree"

	"github.com/luisOO/json-view/internal/jsondoc"
)

// Serialize writes the JSON text of the subtree rooted at n. It is the
// logical inverse of materialization: loaded containers are written from
// their child nodes in order, unloaded subtrees fall back to the document,
// and leaves emit their raw source text. The output is order-preserving and
// structurally equal to the input at n's path.
//
// A partially materialized node is written from the document, never from a
// truncated child list.
func (t *Tree) Serialize(w io.Writer, n *Node) error {
	e, ok := t.doc.Resolve(n.Path)
	if !ok {
		return &ResolveError{Path: n.Path.String()}
	}
	if n.State() == StateLoaded && !n.Partial() && e.IsContainer() {
		return t.serializeLoaded(w, n, e)
	}
	return writeElement(w, e)
}

func (t *Tree) serializeLoaded(w io.Writer, n *Node, e *jsondoc.Element) error {
	lb, rb := "{", "}"
	if n.Kind == jsondoc.Array {
		lb, rb = "[", "]"
	}
	if _, err := io.WriteString(w, lb); err != nil {
		return err
	}
	for i, c := range n.Children() {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if n.Kind == jsondoc.Object {
			if _, err := io.WriteString(w, jtree.Quote(c.Key)+":"); err != nil {
				return err
			}
		}
		if err := t.Serialize(w, c); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, rb)
	return err
}

// writeElement emits e directly from the document.
func writeElement(w io.Writer, e *jsondoc.Element) error {
	switch e.Kind() {
	case jsondoc.Object:
		if _, err := io.WriteString(w, "{"); err != nil {
			return err
		}
		for i := 0; i < e.Len(); i++ {
			if i > 0 {
				if _, err := io.WriteString(w, ","); err != nil {
					return err
				}
			}
			m := e.Member(i)
			if _, err := io.WriteString(w, jtree.Quote(m.Key)+":"); err != nil {
				return err
			}
			if err := writeElement(w, m.Value); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "}")
		return err
	case jsondoc.Array:
		if _, err := io.WriteString(w, "["); err != nil {
			return err
		}
		for i := 0; i < e.Len(); i++ {
			if i > 0 {
				if _, err := io.WriteString(w, ","); err != nil {
					return err
				}
			}
			if err := writeElement(w, e.At(i)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "]")
		return err
	default:
		_, err := io.WriteString(w, e.Text())
		return err
	}
}
