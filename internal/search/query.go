package search

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/sahilm/fuzzy"
)

// Query errors.
var (
	ErrSearchTimeout = errors.New("search timed out")
	ErrBadPattern    = errors.New("invalid search pattern")
)

// DefaultLimit caps result counts; DefaultTimeout bounds query execution.
const (
	DefaultLimit   = 1000
	DefaultTimeout = 5 * time.Second
)

// Ranking constants: category weight dominates, exact matches get a bonus,
// and shallower nodes rank slightly higher.
const (
	weightKey   = 3.0
	weightValue = 2.0
	weightPath  = 1.0
	exactBonus  = 2.0
)

// contextRunes is how much surrounding text a result carries on each side
// of the match.
const contextRunes = 20

// timeoutCheckStride is how many buckets are scanned between deadline
// checks.
const timeoutCheckStride = 256

// Options control one query.
type Options struct {
	CaseSensitive bool
	Regex         bool // text is a regular expression
	Wildcard      bool // text uses * and ? wildcards, matched against whole tokens
	Fuzzy         bool // subsequence match, ranked by the fuzzy score

	// Category filter; all false means all categories.
	Keys, Values, Paths bool

	Limit   int           // maximum results; DefaultLimit if zero
	Timeout time.Duration // execution bound; DefaultTimeout if zero
}

func (o Options) wants(c Category) bool {
	if !o.Keys && !o.Values && !o.Paths {
		return true
	}
	switch c {
	case CatKey:
		return o.Keys
	case CatValue:
		return o.Values
	default:
		return o.Paths
	}
}

func (o Options) limit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// A Result is one ranked match.
type Result struct {
	Path     string
	Category Category
	Match    string // the matched substring
	Context  string // bounded window around the match
	Score    float64
}

// Search runs text against the index snapshot and returns ranked results.
// Plain mode is containment matching; wildcard and regex modes scan the
// token buckets with the compiled pattern under the execution bound; fuzzy
// mode ranks subsequence matches. A query that exceeds its bound fails with
// ErrSearchTimeout rather than hanging.
func (ix *Index) Search(ctx context.Context, text string, opts Options) ([]Result, error) {
	if text == "" {
		return nil, nil
	}
	deadline := time.Now().Add(opts.timeout())

	var ids map[int]bool
	var err error
	switch {
	case opts.Fuzzy:
		ids, err = ix.fuzzyCandidates(text, opts)
	case opts.Regex, opts.Wildcard:
		ids, err = ix.patternCandidates(ctx, text, opts, deadline)
	default:
		ids, err = ix.literalCandidates(ctx, text, opts, deadline)
	}
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(ids))
	for id := range ids {
		e := ix.entries[id]
		if !opts.wants(e.cat) {
			continue
		}
		if r, ok := scoreEntry(e, text, opts); ok {
			results = append(results, r)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})
	if len(results) > opts.limit() {
		results = results[:opts.limit()]
	}
	return results, nil
}

func (ix *Index) literalCandidates(ctx context.Context, text string, opts Options, deadline time.Time) (map[int]bool, error) {
	needle := strings.ToLower(text)
	ids := make(map[int]bool)

	// Short-cut: an n-gram of the needle addresses its buckets directly.
	if r := []rune(needle); len(r) >= ngramLen {
		if bucket, ok := ix.buckets[string(r[:ngramLen])]; ok {
			for _, id := range bucket {
				ids[id] = true
			}
		}
	}

	n := 0
	for tok, bucket := range ix.buckets {
		n++
		if n%timeoutCheckStride == 0 {
			if err := checkDeadline(ctx, deadline); err != nil {
				return nil, err
			}
		}
		if strings.Contains(tok, needle) {
			for _, id := range bucket {
				ids[id] = true
			}
		}
	}
	return ids, nil
}

func (ix *Index) patternCandidates(ctx context.Context, text string, opts Options, deadline time.Time) (map[int]bool, error) {
	expr := text
	if opts.Wildcard {
		expr = wildcardToRegexp(text)
	}
	// Tokens are stored lowercased, so the candidate scan is always
	// case-insensitive; scoreEntry re-verifies against the original-case
	// content when the query is case sensitive.
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPattern, err)
	}

	ids := make(map[int]bool)
	n := 0
	for tok, bucket := range ix.buckets {
		n++
		if n%timeoutCheckStride == 0 {
			if err := checkDeadline(ctx, deadline); err != nil {
				return nil, err
			}
		}
		if re.MatchString(tok) {
			for _, id := range bucket {
				ids[id] = true
			}
		}
	}
	return ids, nil
}

func (ix *Index) fuzzyCandidates(text string, opts Options) (map[int]bool, error) {
	contents := make([]string, len(ix.entries))
	for i, e := range ix.entries {
		contents[i] = e.content
	}
	ids := make(map[int]bool)
	for _, m := range fuzzy.Find(text, contents) {
		ids[m.Index] = true
	}
	return ids, nil
}

// wildcardToRegexp compiles a glob-ish pattern (* and ?) into an anchored
// regular expression matched against whole tokens.
func wildcardToRegexp(pat string) string {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pat {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return sb.String()
}

func checkDeadline(ctx context.Context, deadline time.Time) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if time.Now().After(deadline) {
		return ErrSearchTimeout
	}
	return nil
}

// scoreEntry verifies the match against the entry's original-case content
// and produces the ranked result. Entries surfaced via token buckets can
// still miss under case sensitivity; those are dropped here.
func scoreEntry(e entry, text string, opts Options) (Result, bool) {
	content := e.content
	var start, end int

	switch {
	case opts.Fuzzy:
		// Fuzzy candidates already matched; highlight from the first rune.
		start, end = 0, len(content)
	case opts.Regex, opts.Wildcard:
		expr := text
		if opts.Wildcard {
			expr = strings.TrimSuffix(strings.TrimPrefix(wildcardToRegexp(text), "^"), "$")
		}
		if !opts.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return Result{}, false
		}
		loc := re.FindStringIndex(content)
		if loc == nil {
			return Result{}, false
		}
		start, end = loc[0], loc[1]
	default:
		if opts.CaseSensitive {
			start = strings.Index(content, text)
			end = start + len(text)
		} else {
			start, end = indexFold(content, text)
		}
		if start < 0 {
			return Result{}, false
		}
	}

	score := catWeight(e.cat)
	if equalFold(content, text, opts.CaseSensitive) {
		score += exactBonus
	}
	score += 1.0 / float64(1+e.depth)

	return Result{
		Path:     e.path,
		Category: e.cat,
		Match:    content[start:end],
		Context:  contextWindow(content, start, end),
		Score:    score,
	}, true
}

func catWeight(c Category) float64 {
	switch c {
	case CatKey:
		return weightKey
	case CatValue:
		return weightValue
	default:
		return weightPath
	}
}

// indexFold returns the byte range [start, end) of the first case-folded
// occurrence of sub in s, or -1, -1. Offsets are computed against s itself:
// lowercasing can change a rune's byte length (U+0130 and friends), so byte
// offsets into a lowered copy do not transfer back.
func indexFold(s, sub string) (start, end int) {
	subR := []rune(sub)
	if len(subR) == 0 {
		return 0, 0
	}
	sR := []rune(s)
	for i := 0; i+len(subR) <= len(sR); i++ {
		ok := true
		for k, r := range subR {
			if !foldEq(sR[i+k], r) {
				ok = false
				break
			}
		}
		if ok {
			start = len(string(sR[:i]))
			return start, start + len(string(sR[i:i+len(subR)]))
		}
	}
	return -1, -1
}

func foldEq(a, b rune) bool {
	return a == b || unicode.ToLower(a) == unicode.ToLower(b)
}

func equalFold(a, b string, caseSensitive bool) bool {
	if caseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}

// contextWindow returns content clipped to contextRunes runes on each side
// of [start, end).
func contextWindow(content string, start, end int) string {
	r := []rune(content[:start])
	pre := len(r)
	lo := pre - contextRunes
	if lo < 0 {
		lo = 0
	}
	full := []rune(content)
	post := pre + len([]rune(content[start:end]))
	hi := post + contextRunes
	if hi > len(full) {
		hi = len(full)
	}
	return string(full[lo:hi])
}
