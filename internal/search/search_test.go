package search

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luisOO/json-view/internal/jsondoc"
	"github.com/luisOO/json-view/internal/tree"
)

func newTree(t *testing.T, src string) *tree.Tree {
	t.Helper()
	d, err := jsondoc.Parse([]byte(src), jsondoc.Options{})
	require.NoError(t, err)
	return tree.New(d)
}

func expandAll(t *testing.T, tr *tree.Tree, n *tree.Node) {
	t.Helper()
	if !n.CanExpand() {
		return
	}
	children, partial, err := tr.Materialize(context.Background(), n.Path, 1<<20)
	require.NoError(t, err)
	require.True(t, n.BeginLoad())
	tr.Commit(n, children, partial)
	for _, c := range children {
		expandAll(t, tr, c)
	}
}

func buildAll(t *testing.T, src string) (*tree.Tree, *Index) {
	t.Helper()
	tr := newTree(t, src)
	expandAll(t, tr, tr.Root())
	ix, err := Build(context.Background(), tr)
	require.NoError(t, err)
	return tr, ix
}

func search(t *testing.T, ix *Index, text string, opts Options) []Result {
	t.Helper()
	res, err := ix.Search(context.Background(), text, opts)
	require.NoError(t, err)
	return res
}

func TestKeyRanksAboveValue(t *testing.T) {
	_, ix := buildAll(t, `{"foo": 1, "other": "foobar"}`)

	res := search(t, ix, "foo", Options{})
	require.NotEmpty(t, res)
	assert.Equal(t, CatKey, res[0].Category, "key matches outrank value matches")
	assert.Equal(t, "$.foo", res[0].Path)

	var sawValue bool
	for _, r := range res {
		if r.Category == CatValue {
			sawValue = true
			assert.Less(t, r.Score, res[0].Score)
		}
	}
	assert.True(t, sawValue, "the value match must also surface")
}

func TestExactMatchBonus(t *testing.T) {
	_, ix := buildAll(t, `{"a": {"name": 1}, "b": {"names": 2}}`)
	res := search(t, ix, "name", Options{Keys: true})
	require.Len(t, res, 2)
	assert.Equal(t, "$.a.name", res[0].Path, "exact key match ranks first")
}

func TestShallowBonus(t *testing.T) {
	_, ix := buildAll(t, `{"hit": {"deep": {"hit": 1}}}`)
	res := search(t, ix, "hit", Options{Keys: true})
	require.Len(t, res, 2)
	assert.Equal(t, "$.hit", res[0].Path, "shallower nodes rank higher")
}

func TestSubstringViaNgrams(t *testing.T) {
	_, ix := buildAll(t, `{"msg": "the quick brown fox jumps"}`)
	res := search(t, ix, "brown", Options{Values: true})
	require.Len(t, res, 1)
	assert.Equal(t, "$.msg", res[0].Path)
	assert.Equal(t, "brown", res[0].Match)
	assert.Contains(t, res[0].Context, "quick brown fox")
}

func TestCaseSensitivity(t *testing.T) {
	_, ix := buildAll(t, `{"Alpha": 1}`)

	res := search(t, ix, "alpha", Options{Keys: true})
	require.Len(t, res, 1, "insensitive by default")

	res = search(t, ix, "alpha", Options{Keys: true, CaseSensitive: true})
	assert.Empty(t, res)

	res = search(t, ix, "Alpha", Options{Keys: true, CaseSensitive: true})
	assert.Len(t, res, 1)
}

func TestWildcard(t *testing.T) {
	_, ix := buildAll(t, `{"foot": 1, "food": 2, "bar": 3}`)
	res := search(t, ix, "foo?", Options{Keys: true, Wildcard: true})
	require.Len(t, res, 2)

	res = search(t, ix, "f*", Options{Keys: true, Wildcard: true})
	require.Len(t, res, 2)

	res = search(t, ix, "*ar", Options{Keys: true, Wildcard: true})
	require.Len(t, res, 1)
	assert.Equal(t, "$.bar", res[0].Path)
}

func TestCaseSensitivePatterns(t *testing.T) {
	_, ix := buildAll(t, `{"Alpha": 1, "alpine": 2}`)

	// Uppercase literals in the pattern must still reach the lowercased
	// token buckets; case filtering happens on the original content.
	res := search(t, ix, "Alp.a", Options{Keys: true, Regex: true, CaseSensitive: true})
	require.Len(t, res, 1)
	assert.Equal(t, "$.Alpha", res[0].Path)

	res = search(t, ix, "Alp*", Options{Keys: true, Wildcard: true, CaseSensitive: true})
	require.Len(t, res, 1)
	assert.Equal(t, "$.Alpha", res[0].Path)

	res = search(t, ix, "alp*", Options{Keys: true, Wildcard: true, CaseSensitive: true})
	require.Len(t, res, 1)
	assert.Equal(t, "$.alpine", res[0].Path)

	res = search(t, ix, "Alp*", Options{Keys: true, Wildcard: true})
	assert.Len(t, res, 2, "insensitive mode matches both")
}

func TestLongValueIndexedBeyondPreview(t *testing.T) {
	pad := strings.Repeat("x", 150)
	_, ix := buildAll(t, `{"msg": "`+pad+` needletail"}`)

	res := search(t, ix, "needletail", Options{Values: true})
	require.Len(t, res, 1)
	assert.Equal(t, "$.msg", res[0].Path)
	assert.Equal(t, "needletail", res[0].Match)
}

func TestFoldedMatchOffsets(t *testing.T) {
	// ToLower(U+0130) grows by a byte; offsets must come from the original
	// text, not a lowered copy.
	_, ix := buildAll(t, `{"city": "İstanbul needle ahead"}`)

	res := search(t, ix, "needle", Options{Values: true})
	require.Len(t, res, 1)
	assert.Equal(t, "needle", res[0].Match)
	assert.Contains(t, res[0].Context, "needle ahead")
}

func TestRegex(t *testing.T) {
	_, ix := buildAll(t, `{"abc": 1, "abbc": 2, "xyz": 3}`)
	res := search(t, ix, "ab+c", Options{Keys: true, Regex: true})
	assert.Len(t, res, 2)
}

func TestBadPattern(t *testing.T) {
	_, ix := buildAll(t, `{"a": 1}`)
	_, err := ix.Search(context.Background(), "(unclosed", Options{Regex: true})
	assert.ErrorIs(t, err, ErrBadPattern)
}

func TestFuzzy(t *testing.T) {
	_, ix := buildAll(t, `{"connectTimeout": 1, "other": 2}`)
	res := search(t, ix, "conTime", Options{Keys: true, Fuzzy: true})
	require.NotEmpty(t, res)
	assert.Equal(t, "$.connectTimeout", res[0].Path)
}

func TestCategoryFilter(t *testing.T) {
	_, ix := buildAll(t, `{"foo": "foo"}`)

	res := search(t, ix, "foo", Options{Keys: true})
	require.Len(t, res, 1)
	assert.Equal(t, CatKey, res[0].Category)

	res = search(t, ix, "foo", Options{Values: true})
	require.Len(t, res, 1)
	assert.Equal(t, CatValue, res[0].Category)

	res = search(t, ix, "foo", Options{Paths: true})
	require.Len(t, res, 1)
	assert.Equal(t, CatPath, res[0].Category)
}

func TestPathSearch(t *testing.T) {
	_, ix := buildAll(t, `{"servers": [{"host": "a"}]}`)
	res := search(t, ix, "servers", Options{Paths: true})
	require.NotEmpty(t, res)
	for _, r := range res {
		assert.Equal(t, CatPath, r.Category)
	}
}

func TestLimitCap(t *testing.T) {
	_, ix := buildAll(t, `{"k1": 1, "k2": 2, "k3": 3, "k4": 4}`)
	res := search(t, ix, "k", Options{Keys: true, Limit: 2})
	assert.Len(t, res, 2)
}

func TestUnloadedSubtreesNotIndexed(t *testing.T) {
	tr := newTree(t, `{"loaded": {"inner": 1}, "hidden": {"secret": 2}}`)
	root := tr.Root()

	children, partial, err := tr.Materialize(context.Background(), root.Path, 0)
	require.NoError(t, err)
	require.True(t, root.BeginLoad())
	tr.Commit(root, children, partial)

	// Only "loaded" gets expanded; "hidden" stays deferred.
	loaded := children[0]
	lc, lp, err := tr.Materialize(context.Background(), loaded.Path, 0)
	require.NoError(t, err)
	require.True(t, loaded.BeginLoad())
	tr.Commit(loaded, lc, lp)

	ix, err := Build(context.Background(), tr)
	require.NoError(t, err)

	assert.NotEmpty(t, search(t, ix, "inner", Options{Keys: true}))
	assert.Empty(t, search(t, ix, "secret", Options{Keys: true}),
		"unexpanded subtrees contribute nothing until loaded and rebuilt")

	// After loading and an explicit rebuild, the subtree is searchable.
	hidden := children[1]
	hc, hp, err := tr.Materialize(context.Background(), hidden.Path, 0)
	require.NoError(t, err)
	require.True(t, hidden.BeginLoad())
	tr.Commit(hidden, hc, hp)

	ix2, err := Build(context.Background(), tr)
	require.NoError(t, err)
	assert.NotEmpty(t, search(t, ix2, "secret", Options{Keys: true}))
}

func TestBuildCancel(t *testing.T) {
	tr := newTree(t, wideDoc(t, 5000))
	expandAll(t, tr, tr.Root())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, tr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmptyQuery(t *testing.T) {
	_, ix := buildAll(t, `{"a": 1}`)
	res, err := ix.Search(context.Background(), "", Options{})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func wideDoc(t *testing.T, n int) string {
	t.Helper()
	b := []byte{'['}
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '0')
	}
	return string(append(b, ']'))
}
