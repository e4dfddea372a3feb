package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/envelope"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/tools"
)

// Document is one searchable corpus entry.
type Document struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

var searchSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string", "minLength": 1},
		"limit": {"type": "number"}
	},
	"required": ["query"]
}`)

// registerSearch registers the corpus search data source. Results are
// scored by query keyword hits over title and snippet.
func registerSearch(r *tools.Registry, cfg Config) error {
	corpus := cfg.Corpus
	return r.Register(&tools.Descriptor{
		Name:        "search",
		Version:     "1.0.0",
		Description: "Searches the local corpus and returns ranked results",
		Category:    tools.CategoryDataSource,
		Inputs: map[string]tools.SemanticType{
			"query": tools.SemString,
			"limit": tools.SemNumber,
		},
		Outputs:     []string{"data.primary", "data.counts"},
		InputSchema: searchSchema,
		Invoke: func(_ context.Context, params map[string]any) (*envelope.Envelope, error) {
			started := time.Now()
			query, _ := params["query"].(string)
			limit := intParam(params["limit"], 10)

			results := searchCorpus(corpus, query, limit)
			return envelope.New("search", "1.0.0", params, started).
				WithPrimary(results).
				WithCount("primary", float64(len(results))).
				WithSecondary("query", query).
				WithMessage(resultMessage(len(results))), nil
		},
	})
}

func searchCorpus(corpus []Document, query string, limit int) []any {
	terms := strings.Fields(strings.ToLower(query))

	type scored struct {
		doc   Document
		score int
	}
	var hits []scored
	for _, doc := range corpus {
		haystack := strings.ToLower(doc.Title + " " + doc.Snippet)
		score := 0
		for _, term := range terms {
			score += strings.Count(haystack, term)
		}
		if score > 0 {
			hits = append(hits, scored{doc: doc, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]any, len(hits))
	for i, h := range hits {
		out[i] = map[string]any{
			"title":   h.doc.Title,
			"url":     h.doc.URL,
			"snippet": h.doc.Snippet,
		}
	}
	return out
}

func resultMessage(n int) string {
	if n == 1 {
		return "found 1 result"
	}
	return fmt.Sprintf("found %d results", n)
}

func intParam(v any, fallback int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}
