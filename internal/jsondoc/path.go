package jsondoc

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// A Segment is a single step of a Path: either an object key or an array
// index.
type Segment struct {
	Key   string
	Index int
	IsKey bool
}

// A Path is an ordered sequence of segments identifying one location in a
// document, from the root. The empty path denotes the root. Paths are the
// canonical identity of tree nodes: they key the node arena, the search
// index, and eviction.
type Path []Segment

// RootPath is the path of the document root.
var RootPath = Path{}

// Child returns a copy of p extended with an object key segment.
func (p Path) Child(key string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Key: key, IsKey: true})
}

// Item returns a copy of p extended with an array index segment.
func (p Path) Item(i int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Index: i})
}

// Parent returns the path of p's parent. The root is its own parent.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1]
}

// IsRoot reports whether p denotes the document root.
func (p Path) IsRoot() bool { return len(p) == 0 }

// Equal reports whether p and q have equal segment sequences.
func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i, s := range p {
		if s != q[i] {
			return false
		}
	}
	return true
}

var wordRE = regexp.MustCompile(`^\w+$`)

// String renders p in its canonical form, e.g. $.users[3].name. Keys that are
// not plain words are quoted, e.g. $['odd key'].
func (p Path) String() string {
	var buf strings.Builder
	buf.WriteString("$")
	for _, s := range p {
		if !s.IsKey {
			fmt.Fprintf(&buf, "[%d]", s.Index)
		} else if wordRE.MatchString(s.Key) {
			buf.WriteString(".")
			buf.WriteString(s.Key)
		} else {
			fmt.Fprintf(&buf, "['%s']", strings.ReplaceAll(s.Key, "'", `\'`))
		}
	}
	return buf.String()
}

/*
ParsePath grammar, a strict subset of JSONPath:

	 expr = "$" steps
	steps = step [steps]
	 step = "." WORD
	 step = "[" INDEX "]"
	 step = "['" QTEXT "']"

	 WORD = RE `\w+`
	INDEX = RE `\d+`
	QTEXT = RE `([^']|\\')*`
*/
var (
	stepWordRE  = regexp.MustCompile(`^\.(\w+)`)
	stepIndexRE = regexp.MustCompile(`^\[(\d+)\]`)
	stepQuoteRE = regexp.MustCompile(`^\['((?:[^'\\]|\\.)*)'\]`)
)

// ParsePath parses the canonical path syntax produced by Path.String.
func ParsePath(s string) (Path, error) {
	t, ok := strings.CutPrefix(s, "$")
	if !ok {
		return nil, errors.New("missing root marker")
	}
	var p Path
	for t != "" {
		if m := stepWordRE.FindStringSubmatch(t); m != nil {
			p = append(p, Segment{Key: m[1], IsKey: true})
			t = t[len(m[0]):]
		} else if m := stepIndexRE.FindStringSubmatch(t); m != nil {
			i, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("invalid index: %w", err)
			}
			p = append(p, Segment{Index: i})
			t = t[len(m[0]):]
		} else if m := stepQuoteRE.FindStringSubmatch(t); m != nil {
			p = append(p, Segment{Key: strings.ReplaceAll(m[1], `\'`, "'"), IsKey: true})
			t = t[len(m[0]):]
		} else {
			return nil, fmt.Errorf("invalid path step at %q", t)
		}
	}
	return p, nil
}
