package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/envelope"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/tools"
)

// registerReport registers the markdown report generator. It accepts
// search-result lists, plain strings or arbitrary maps as content and
// renders a titled markdown document.
func registerReport(r *tools.Registry, _ Config) error {
	return r.Register(&tools.Descriptor{
		Name:        "report",
		Version:     "1.0.0",
		Description: "Renders content into a markdown report",
		Category:    tools.CategoryDataProcessor,
		Inputs: map[string]tools.SemanticType{
			"content": tools.SemAny,
			"title":   tools.SemString,
		},
		Outputs: []string{"data.primary"},
		Invoke: func(_ context.Context, params map[string]any) (*envelope.Envelope, error) {
			started := time.Now()

			title, _ := params["title"].(string)
			if title == "" {
				title = "Report"
			}

			body := renderBody(params["content"])
			markdown := fmt.Sprintf("# %s\n\n%s\n", title, body)

			return envelope.New("report", "1.0.0", params, started).
				WithPrimary(markdown).
				WithCount("characters", float64(len(markdown))).
				WithMessage("report generated"), nil
		},
	})
}

func renderBody(content any) string {
	switch v := content.(type) {
	case nil:
		return "_No content provided._"
	case string:
		return v
	case []any:
		var b strings.Builder
		for _, item := range v {
			b.WriteString(renderItem(item))
		}
		return strings.TrimRight(b.String(), "\n")
	case map[string]any:
		return renderItem(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// renderItem formats one search-result-shaped map as a markdown section;
// anything else becomes a list entry.
func renderItem(item any) string {
	m, ok := item.(map[string]any)
	if !ok {
		return fmt.Sprintf("- %v\n", item)
	}

	title, _ := m["title"].(string)
	url, _ := m["url"].(string)
	snippet, _ := m["snippet"].(string)
	if title == "" {
		return fmt.Sprintf("- %v\n", m)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", title)
	if snippet != "" {
		fmt.Fprintf(&b, "%s\n\n", snippet)
	}
	if url != "" {
		fmt.Fprintf(&b, "Source: <%s>\n\n", url)
	}
	return b.String()
}
