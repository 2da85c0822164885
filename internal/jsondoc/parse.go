package jsondoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/creachadair/jtree"
	"github.com/tailscale/hujson"
)

// Default parsing limits.
const (
	DefaultMaxDepth = 100
	DefaultMaxBytes = 512 << 20 // 512 MiB
)

// Options control parsing limits and input handling.
type Options struct {
	// MaxDepth caps container nesting. Exceeding it is a ParseError wrapping
	// ErrTooDeep. If zero, DefaultMaxDepth is used.
	MaxDepth int

	// MaxBytes caps the input size. Exceeding it fails with ErrTooLarge
	// before decoding begins. If zero, DefaultMaxBytes is used.
	MaxBytes int64

	// AllowComments standardizes JWCC input (comments, trailing commas)
	// before decoding.
	AllowComments bool
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

func (o Options) maxBytes() int64 {
	if o.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return o.MaxBytes
}

// Parse decodes data into a Document. The input must contain exactly one
// JSON value. In case of malformed input the returned error is a *ParseError;
// oversized input fails with ErrTooLarge before any decoding happens.
func Parse(data []byte, opts Options) (*Document, error) {
	if int64(len(data)) > opts.maxBytes() {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(data), opts.maxBytes())
	}
	size := int64(len(data))
	if opts.AllowComments {
		std, err := hujson.Standardize(data)
		if err != nil {
			return nil, &ParseError{Message: err.Error(), err: err}
		}
		data = std
	}

	h := &treeHandler{maxDepth: opts.maxDepth()}
	st := jtree.NewStream(bytes.NewReader(data))
	if err := st.ParseOne(h); err == io.EOF {
		return nil, &ParseError{Message: "empty input"}
	} else if err != nil {
		return nil, parseError(err)
	}
	if h.root == nil || len(h.stk) != 0 {
		return nil, &ParseError{Message: "incomplete value"}
	}
	if err := st.ParseOne(discardHandler{}); err != io.EOF {
		return nil, &ParseError{Message: "trailing data after value"}
	}
	return &Document{root: h.root, size: size}, nil
}

func parseError(err error) error {
	var serr *jtree.SyntaxError
	if errors.As(err, &serr) {
		return &ParseError{Line: serr.Location.Line, Column: serr.Location.Column, Message: serr.Message, err: err}
	}
	if errors.Is(err, ErrTooDeep) {
		return &ParseError{Message: err.Error(), err: err}
	}
	return &ParseError{Message: err.Error(), err: err}
}

// A treeHandler implements the jtree.Handler interface to construct the
// element tree for a single JSON value.
type treeHandler struct {
	root     *Element
	stk      []*Element // open containers, innermost last
	keys     []string   // pending member keys, one per open member
	tbuf     [][]byte
	maxDepth int
}

// intern interns a copy of text and returns a slice of the copy. Allocations
// are batched to reduce allocation overhead.
func (h *treeHandler) intern(text []byte) []byte {
	const bufBlockBytes = 8192

	if len(text) >= bufBlockBytes {
		return append([]byte(nil), text...)
	}

	i := 0
	for i < len(h.tbuf) {
		if len(h.tbuf[i])+len(text) < cap(h.tbuf[i]) {
			break
		}
		i++
	}
	if i == len(h.tbuf) {
		h.tbuf = append(h.tbuf, make([]byte, 0, bufBlockBytes))
	}
	s := len(h.tbuf[i])
	h.tbuf[i] = append(h.tbuf[i], text...)
	return h.tbuf[i][s : s+len(text)]
}

// attach places a completed element into its parent container, or records it
// as the root when no container is open.
func (h *treeHandler) attach(e *Element) {
	if len(h.stk) == 0 {
		h.root = e
		return
	}
	top := h.stk[len(h.stk)-1]
	switch top.kind {
	case Object:
		top.members = append(top.members, Member{Key: h.keys[len(h.keys)-1], Value: e})
	case Array:
		top.elems = append(top.elems, e)
	}
}

func (h *treeHandler) open(kind Kind) error {
	if len(h.stk) >= h.maxDepth {
		return fmt.Errorf("%w: nesting exceeds %d", ErrTooDeep, h.maxDepth)
	}
	h.stk = append(h.stk, &Element{kind: kind})
	return nil
}

func (h *treeHandler) close() error {
	top := h.stk[len(h.stk)-1]
	h.stk = h.stk[:len(h.stk)-1]
	h.attach(top)
	return nil
}

func (h *treeHandler) BeginObject(loc jtree.Anchor) error { return h.open(Object) }
func (h *treeHandler) EndObject(loc jtree.Anchor) error   { return h.close() }
func (h *treeHandler) BeginArray(loc jtree.Anchor) error  { return h.open(Array) }
func (h *treeHandler) EndArray(loc jtree.Anchor) error    { return h.close() }

func (h *treeHandler) BeginMember(loc jtree.Anchor) error {
	key, err := jtree.Unquote(loc.Text())
	if err != nil {
		return fmt.Errorf("invalid object key: %w", err)
	}
	h.keys = append(h.keys, string(key))
	return nil
}

func (h *treeHandler) EndMember(loc jtree.Anchor) error {
	h.keys = h.keys[:len(h.keys)-1]
	return nil
}

func (h *treeHandler) Value(loc jtree.Anchor) error {
	e := &Element{text: h.intern(loc.Text())}
	switch loc.Token() {
	case jtree.String:
		e.kind = String
	case jtree.Integer, jtree.Number:
		e.kind = Number
	case jtree.True, jtree.False:
		e.kind = Bool
		e.boolv = loc.Token() == jtree.True
	case jtree.Null:
		e.kind = Null
	default:
		return fmt.Errorf("unknown value %v", loc.Token())
	}
	h.attach(e)
	return nil
}

func (h *treeHandler) EndOfInput(loc jtree.Anchor) {}

// discardHandler ignores all parse events. It is used to verify that no
// second value follows the document.
type discardHandler struct{}

func (discardHandler) BeginObject(jtree.Anchor) error { return nil }
func (discardHandler) EndObject(jtree.Anchor) error   { return nil }
func (discardHandler) BeginArray(jtree.Anchor) error  { return nil }
func (discardHandler) EndArray(jtree.Anchor) error    { return nil }
func (discardHandler) BeginMember(jtree.Anchor) error { return nil }
func (discardHandler) EndMember(jtree.Anchor) error   { return nil }
func (discardHandler) Value(jtree.Anchor) error       { return nil }
func (discardHandler) EndOfInput(jtree.Anchor)        {}
