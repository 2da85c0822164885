// Package jsondoc parses JSON input into an immutable, random-access element
// tree and provides path-based navigation over it. A Document is decoded once
// and never mutated; all readers may share it freely.
package jsondoc

import (
	"github.com/creachadair/jtree"
)

// Kind enumerates the JSON value kinds.
type Kind byte

const (
	Invalid Kind = iota
	Object
	Array
	String
	Number
	Bool
	Null
)

var kindStr = [...]string{
	Invalid: "invalid",
	Object:  "object",
	Array:   "array",
	String:  "string",
	Number:  "number",
	Bool:    "bool",
	Null:    "null",
}

func (k Kind) String() string {
	if int(k) >= len(kindStr) {
		return kindStr[Invalid]
	}
	return kindStr[k]
}

// A Member is a single key-value pair belonging to an object element.
type Member struct {
	Key   string
	Value *Element
}

// An Element is one decoded JSON value. Elements are immutable after parsing.
type Element struct {
	kind    Kind
	text    []byte // raw source text of a scalar; strings keep their quotes
	members []Member
	elems   []*Element
	boolv   bool
}

// Kind reports the JSON kind of e.
func (e *Element) Kind() Kind { return e.kind }

// Len reports the number of immediate children of e: member count for an
// object, element count for an array, zero for scalars. It never descends
// into grandchildren.
func (e *Element) Len() int {
	switch e.kind {
	case Object:
		return len(e.members)
	case Array:
		return len(e.elems)
	}
	return 0
}

// IsContainer reports whether e is an object or array.
func (e *Element) IsContainer() bool { return e.kind == Object || e.kind == Array }

// Member returns the i-th member of an object element.
// It panics if e is not an object or i is out of range.
func (e *Element) Member(i int) Member { return e.members[i] }

// At returns the i-th element of an array element.
// It panics if e is not an array or i is out of range.
func (e *Element) At(i int) *Element { return e.elems[i] }

// Find returns the value of the first member of an object element with the
// given key, or false if no such member exists (or e is not an object).
func (e *Element) Find(key string) (*Element, bool) {
	for _, m := range e.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Text returns the raw source text of a scalar element. String elements
// include their surrounding quotes. Containers return "".
func (e *Element) Text() string { return string(e.text) }

// StringValue returns the decoded text of a string element, with quotes
// removed and escapes replaced. For any other kind it returns Text().
func (e *Element) StringValue() string {
	if e.kind != String {
		return e.Text()
	}
	dec, err := jtree.Unquote(e.text)
	if err != nil {
		return string(e.text)
	}
	return string(dec)
}

// BoolValue reports the value of a bool element, false otherwise.
func (e *Element) BoolValue() bool { return e.boolv }

// A Document owns the decoded element tree for one JSON input. It is
// immutable for its lifetime; replacing the input means parsing a new
// Document.
type Document struct {
	root *Element
	size int64
}

// Root returns the document's root element.
func (d *Document) Root() *Element { return d.root }

// Size reports the byte size of the source input.
func (d *Document) Size() int64 { return d.size }

// Resolve navigates from the root along p and returns the element there, or
// false if a key is missing or an index is out of range. Resolving the same
// path always yields the same element.
func (d *Document) Resolve(p Path) (*Element, bool) {
	cur := d.root
	for _, seg := range p {
		if cur == nil {
			return nil, false
		}
		if seg.IsKey {
			if cur.kind != Object {
				return nil, false
			}
			next, ok := cur.Find(seg.Key)
			if !ok {
				return nil, false
			}
			cur = next
		} else {
			if cur.kind != Array || seg.Index < 0 || seg.Index >= len(cur.elems) {
				return nil, false
			}
			cur = cur.elems[seg.Index]
		}
	}
	return cur, true
}
