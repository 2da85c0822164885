// Package search maintains an inverted index over the materialized portion
// of the tree and answers literal, wildcard, regex and fuzzy queries with
// ranked results.
//
// The index reflects the tree at build time. Unloaded subtrees contribute
// nothing until they are loaded and the index is rebuilt; rebuilds are
// explicit and the whole index is swapped at once, so queries always run
// against a fixed snapshot.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/creachadair/mds/mapset"

	"github.com/luisOO/json-view/internal/jsondoc"
	"github.com/luisOO/json-view/internal/tree"
)

// Category tells which facet of a node a token was drawn from.
type Category byte

const (
	CatKey Category = iota
	CatValue
	CatPath
)

var catStr = [...]string{
	CatKey:   "key",
	CatValue: "value",
	CatPath:  "path",
}

func (c Category) String() string {
	if int(c) >= len(catStr) {
		return "unknown"
	}
	return catStr[c]
}

// ngram parameters: values longer than ngramMinLen runes also contribute
// every overlapping ngramLen-rune substring, so substring queries hit the
// buckets directly instead of re-scanning every value.
const (
	ngramLen    = 3
	ngramMinLen = 10
)

// buildCheckStride is how many nodes pass between context checks during an
// index build.
const buildCheckStride = 1024

// An entry is one indexed facet of one node.
type entry struct {
	path    string
	depth   int
	cat     Category
	content string // original-case text the tokens were drawn from
}

// Index is an immutable inverted index over materialized nodes. Tokens are
// lowercased; buckets hold offsets into the entry table.
type Index struct {
	entries []entry
	buckets map[string][]int
	nodes   int
	built   time.Time
}

// Nodes reports how many materialized nodes the index covers.
func (ix *Index) Nodes() int { return ix.nodes }

// BuiltAt reports when the index was built.
func (ix *Index) BuiltAt() time.Time { return ix.built }

// Build walks the currently materialized tree and indexes each node's key,
// leaf value and path. Cancellation is observed during the walk and returns
// ctx.Err() with no index.
func Build(ctx context.Context, tr *tree.Tree) (*Index, error) {
	ix := &Index{buckets: make(map[string][]int), built: time.Now()}
	doc := tr.Document()

	var walkErr error
	visited := 0
	tr.Walk(func(n *tree.Node) bool {
		visited++
		if visited%buildCheckStride == 0 {
			select {
			case <-ctx.Done():
				walkErr = ctx.Err()
				return false
			default:
			}
		}
		ix.addNode(n, leafValue(doc, n))
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return ix, nil
}

func isLeafKind(k jsondoc.Kind) bool {
	return k == jsondoc.String || k == jsondoc.Number || k == jsondoc.Bool || k == jsondoc.Null
}

// leafValue returns the full decoded value text of a leaf node. The node's
// Display is a bounded preview and cannot serve here: content past the
// preview cap must still be searchable.
func leafValue(doc *jsondoc.Document, n *tree.Node) string {
	if !isLeafKind(n.Kind) {
		return ""
	}
	e, ok := doc.Resolve(n.Path)
	if !ok {
		return ""
	}
	return e.StringValue()
}

func (ix *Index) addNode(n *tree.Node, value string) {
	ix.nodes++
	pathStr := n.Path.String()
	depth := len(n.Path)
	seen := mapset.New[string]()

	add := func(cat Category, content string, tokens ...string) {
		id := len(ix.entries)
		ix.entries = append(ix.entries, entry{path: pathStr, depth: depth, cat: cat, content: content})
		for _, tok := range tokens {
			if tok == "" || seen.Has(tok) {
				continue
			}
			seen.Add(tok)
			ix.buckets[tok] = append(ix.buckets[tok], id)
		}
	}

	if !n.Path.IsRoot() && n.Key != "" {
		add(CatKey, n.Key, strings.ToLower(n.Key))
	}

	// Long values also contribute n-grams for substring lookup.
	if value != "" {
		low := strings.ToLower(value)
		tokens := []string{low}
		if r := []rune(low); len(r) > ngramMinLen {
			for i := 0; i+ngramLen <= len(r); i++ {
				tokens = append(tokens, string(r[i:i+ngramLen]))
			}
		}
		add(CatValue, value, tokens...)
	}

	segTokens := []string{strings.ToLower(pathStr)}
	for _, seg := range n.Path {
		if seg.IsKey {
			segTokens = append(segTokens, strings.ToLower(seg.Key))
		}
	}
	add(CatPath, pathStr, segTokens...)
}
