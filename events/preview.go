package events

import "fmt"

// Preview bounds. Full values stay on the node output record for
// downstream resolution; events carry only a bounded rendering.
const (
	previewMaxString = 256
	previewMaxItems  = 8
)

// previewValue renders a bounded preview of a primary output: long strings
// are truncated with a length note, lists are capped with a count marker
// and map values are previewed recursively.
func previewValue(v any) any {
	switch val := v.(type) {
	case string:
		runes := []rune(val)
		if len(runes) <= previewMaxString {
			return val
		}
		return string(runes[:previewMaxString]) +
			fmt.Sprintf("... (%d more chars)", len(runes)-previewMaxString)
	case []any:
		if len(val) <= previewMaxItems {
			out := make([]any, len(val))
			for i, item := range val {
				out[i] = previewValue(item)
			}
			return out
		}
		out := make([]any, 0, previewMaxItems+1)
		for _, item := range val[:previewMaxItems] {
			out = append(out, previewValue(item))
		}
		return append(out, fmt.Sprintf("... %d more items", len(val)-previewMaxItems))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = previewValue(item)
		}
		return out
	default:
		return v
	}
}
