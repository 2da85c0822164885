package jsondoc

import (
	"context"
)

// StructureInfo holds aggregate statistics for a document, computed once by
// Analyze and read-only afterward.
type StructureInfo struct {
	TotalNodes int64
	MaxDepth   int
	Objects    int64
	Arrays     int64
	Strings    int64
	Numbers    int64
	Bools      int64
	Nulls      int64
	Bytes      int64
}

// cancelCheckInterval is how many visited elements pass between context
// checks during analysis.
const cancelCheckInterval = 4096

// analyzeFrame tracks one partially-visited container on the traversal stack.
type analyzeFrame struct {
	e    *Element
	next int
}

// Analyze walks the document depth-first and returns aggregate counters. The
// traversal is iterative, using O(max depth) auxiliary space and no
// accumulation beyond the counters. Cancellation is observed between visits;
// a cancelled analysis returns ctx.Err() and no partial result.
func Analyze(ctx context.Context, d *Document) (*StructureInfo, error) {
	info := &StructureInfo{Bytes: d.Size()}

	var stk []analyzeFrame
	visited := 0

	visit := func(e *Element, depth int) {
		info.TotalNodes++
		if depth > info.MaxDepth {
			info.MaxDepth = depth
		}
		switch e.kind {
		case Object:
			info.Objects++
		case Array:
			info.Arrays++
		case String:
			info.Strings++
		case Number:
			info.Numbers++
		case Bool:
			info.Bools++
		case Null:
			info.Nulls++
		}
	}

	visit(d.Root(), 0)
	if d.Root().IsContainer() {
		stk = append(stk, analyzeFrame{e: d.Root()})
	}
	for len(stk) > 0 {
		visited++
		if visited%cancelCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		top := &stk[len(stk)-1]
		if top.next >= top.e.Len() {
			stk = stk[:len(stk)-1]
			continue
		}
		var child *Element
		if top.e.kind == Object {
			child = top.e.Member(top.next).Value
		} else {
			child = top.e.At(top.next)
		}
		top.next++

		visit(child, len(stk))
		if child.IsContainer() {
			stk = append(stk, analyzeFrame{e: child})
		}
	}
	return info, nil
}
