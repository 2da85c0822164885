package tree

import (
	"fmt"

	"github.com/luisOO/json-view/internal/jsondoc"
)

// MaxPreviewLen bounds the display value of leaf nodes, in runes.
const MaxPreviewLen = 120

// displayValue renders the bounded preview shown beside a node: summary
// counts for containers, truncated text for leaves. It is a pure function of
// the element's kind and raw value.
func displayValue(e *jsondoc.Element) string {
	switch e.Kind() {
	case jsondoc.Object:
		return fmt.Sprintf("{%d fields}", e.Len())
	case jsondoc.Array:
		return fmt.Sprintf("[%d items]", e.Len())
	case jsondoc.String:
		return truncate(e.StringValue(), MaxPreviewLen)
	default:
		return truncate(e.Text(), MaxPreviewLen)
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
