// Package resolver substitutes $node.output placeholder tokens in step
// parameters with values read from prior nodes' output envelopes. Dotted
// key paths are walked with JMESPath, falling back to the data sub-tree,
// the legacy field alias table and finally the tool-output adapter.
// Resolution never hard-fails: every miss is recorded and the raw token is
// preserved so the consumer can decide.
package resolver

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmespath/go-jmespath"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/logger"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/types"
)

// placeholderRE matches `$node.output` optionally followed by a dotted key
// path, e.g. `$search_node.output.data.primary`.
var placeholderRE = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)\.output(?:\.([A-Za-z_][A-Za-z0-9_.]*))?`)

// Outputs maps node id to its output record.
type Outputs map[string]*types.NodeOutput

// KeyAdapter produces a value for a key the producer's envelope did not
// supply. The tool-output adapter implements this.
type KeyAdapter interface {
	AdaptKey(source *types.NodeOutput, key string) (any, bool)
}

// Miss records one placeholder that could not be substituted.
type Miss struct {
	Token  string
	NodeID string
	Key    string
	Reason string
}

// Resolver substitutes placeholder tokens using the legacy alias table and
// an optional key adapter for shape repair.
type Resolver struct {
	legacy  map[string]string
	adapter KeyAdapter
}

// New creates a resolver. legacyFieldMap maps alias keys to canonical
// dotted paths (e.g. "results" -> "data.primary"); adapter may be nil.
func New(legacyFieldMap map[string]string, adapter KeyAdapter) *Resolver {
	return &Resolver{legacy: legacyFieldMap, adapter: adapter}
}

// ExtractReferences returns the node ids referenced by placeholders in a
// params tree. Used by the dependency analyzer.
func ExtractReferences(params map[string]any) []string {
	seen := make(map[string]bool)
	var ids []string
	walkStrings(params, func(s string) {
		for _, m := range placeholderRE.FindAllStringSubmatch(s, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				ids = append(ids, m[1])
			}
		}
	})
	return ids
}

// Resolve returns a new params tree with every placeholder substituted.
// The result is structurally identical to the input: same keys, same list
// lengths, every leaf either the original value or a substituted one.
func (r *Resolver) Resolve(params map[string]any, outputs Outputs) (map[string]any, []Miss) {
	var misses []Miss
	resolved := r.resolveMap(params, outputs, &misses)
	return resolved, misses
}

func (r *Resolver) resolveMap(m map[string]any, outputs Outputs, misses *[]Miss) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = r.resolveValue(v, outputs, misses)
	}
	return out
}

func (r *Resolver) resolveValue(v any, outputs Outputs, misses *[]Miss) any {
	switch val := v.(type) {
	case string:
		return r.resolveString(val, outputs, misses)
	case map[string]any:
		return r.resolveMap(val, outputs, misses)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.resolveValue(item, outputs, misses)
		}
		return out
	default:
		return v
	}
}

// resolveString substitutes placeholder tokens inside one string value.
// A token spanning the whole string keeps the substituted value's native
// type; embedded tokens are stringified and interpolated.
func (r *Resolver) resolveString(s string, outputs Outputs, misses *[]Miss) any {
	matches := placeholderRE.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	// Whole-string token preserves the native type.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		nodeID, key := submatches(s, matches[0])
		value, ok := r.lookup(nodeID, key, outputs, s, misses)
		if !ok {
			return s
		}
		return value
	}

	var b strings.Builder
	prev := 0
	for _, m := range matches {
		b.WriteString(s[prev:m[0]])
		token := s[m[0]:m[1]]
		nodeID, key := submatches(s, m)
		value, ok := r.lookup(nodeID, key, outputs, token, misses)
		if !ok {
			b.WriteString(token)
		} else {
			b.WriteString(stringify(value))
		}
		prev = m[1]
	}
	b.WriteString(s[prev:])
	return b.String()
}

// lookup resolves one token against the node outputs.
func (r *Resolver) lookup(nodeID, key string, outputs Outputs, token string, misses *[]Miss) (any, bool) {
	out, exists := outputs[nodeID]
	if !exists {
		r.recordMiss(misses, token, nodeID, key, "node has no output")
		return nil, false
	}

	if key == "" {
		return out.Primary(), true
	}

	// Direct dotted-path walk.
	if v, ok := searchPath(key, out.Value); ok {
		return v, true
	}
	// Retry under the data sub-tree.
	if v, ok := searchPath("data."+key, out.Value); ok {
		return v, true
	}
	// Legacy alias table.
	if canonical, aliased := r.legacy[key]; aliased {
		if v, ok := searchPath(canonical, out.Value); ok {
			return v, true
		}
	}
	// Last resort: ask the tool-output adapter to produce the key.
	if r.adapter != nil {
		if v, ok := r.adapter.AdaptKey(out, key); ok {
			return v, true
		}
	}

	r.recordMiss(misses, token, nodeID, key, "key not found in output")
	return nil, false
}

func (r *Resolver) recordMiss(misses *[]Miss, token, nodeID, key, reason string) {
	*misses = append(*misses, Miss{Token: token, NodeID: nodeID, Key: key, Reason: reason})
	logger.ResolutionMiss(token, nodeID, reason)
}

// searchPath walks a dotted key path through a value. It reports false for
// nil results so callers fall through to the next strategy.
func searchPath(path string, value any) (any, bool) {
	result, err := jmespath.Search(path, value)
	if err != nil || result == nil {
		// jmespath only traverses JSON-shaped containers; fall back to a
		// manual walk for maps holding in-memory objects.
		return manualWalk(path, value)
	}
	return result, true
}

func manualWalk(path string, value any) (any, bool) {
	current := value
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

func submatches(s string, m []int) (nodeID, key string) {
	nodeID = s[m[2]:m[3]]
	if m[4] >= 0 {
		key = s[m[4]:m[5]]
	}
	return nodeID, key
}

// stringify renders a substituted value for interpolation into a string
// parameter.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		if data, err := json.Marshal(val); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", val)
	}
}

func walkStrings(v any, fn func(string)) {
	switch val := v.(type) {
	case string:
		fn(val)
	case map[string]any:
		for _, item := range val {
			walkStrings(item, fn)
		}
	case []any:
		for _, item := range val {
			walkStrings(item, fn)
		}
	}
}
