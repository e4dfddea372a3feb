package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/config"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/types"
)

func categories() func(string) string {
	byTool := map[string]string{
		"search":        config.CategoryDataSource,
		"report":        config.CategoryDataProcessor,
		"image_rotator": config.CategoryDataProcessor,
		"file_writer":   config.CategoryFileOperator,
		"uploader":      config.CategoryStorage,
	}
	return func(toolType string) string {
		if cat, ok := byTool[toolType]; ok {
			return cat
		}
		return config.CategoryOther
	}
}

func newAnalyzer() *Analyzer {
	return NewAnalyzer(config.Default(), categories())
}

func pipeline(nodes ...types.NodeSpec) *types.PipelineSpec {
	return &types.PipelineSpec{PipelineID: "p1", Components: nodes}
}

func findEdge(edges []Edge, source, target string) *Edge {
	for i := range edges {
		if edges[i].Source == source && edges[i].Target == target {
			return &edges[i]
		}
	}
	return nil
}

func TestExactPlaceholderEdge(t *testing.T) {
	spec := pipeline(
		types.NodeSpec{ID: "search_node", ToolType: "search", Params: map[string]any{"query": "go"}},
		types.NodeSpec{ID: "report_node", ToolType: "report", Params: map[string]any{
			"content": "$search_node.output.data.primary",
		}},
	)

	edges := newAnalyzer().Analyze(spec)
	e := findEdge(edges, "search_node", "report_node")
	require.NotNil(t, e)
	assert.Equal(t, KindPlaceholder, e.Kind)
	assert.InDelta(t, 0.9, e.Confidence, 1e-9)
}

func TestFuzzySuffixMatch(t *testing.T) {
	// Reference $report_generator has no exact node; suffix stripping
	// should land it on "report".
	spec := pipeline(
		types.NodeSpec{ID: "report", ToolType: "report", Params: map[string]any{"topic": "x"}},
		types.NodeSpec{ID: "writer", ToolType: "file_writer", Params: map[string]any{
			"content": "$report_generator.output",
		}},
	)

	edges := newAnalyzer().Analyze(spec)
	e := findEdge(edges, "report", "writer")
	require.NotNil(t, e, "fuzzy match should resolve report_generator to report")
	assert.Equal(t, KindPlaceholder, e.Kind)
}

func TestKeywordJaccardMatch(t *testing.T) {
	spec := pipeline(
		types.NodeSpec{ID: "image_rotate_step", ToolType: "image_rotator", Params: map[string]any{"path": "a.png"}},
		types.NodeSpec{ID: "save_step", ToolType: "file_writer", Params: map[string]any{
			"images": "$rotate_image_step.output",
		}},
	)

	edges := newAnalyzer().Analyze(spec)
	e := findEdge(edges, "image_rotate_step", "save_step")
	require.NotNil(t, e, "keyword overlap should match rotate_image_step")
}

func TestDataFlowEdges(t *testing.T) {
	spec := pipeline(
		types.NodeSpec{ID: "fetch", ToolType: "search", Params: map[string]any{"query": "go"}},
		types.NodeSpec{ID: "write", ToolType: "file_writer", Params: map[string]any{"content": "static"}},
		types.NodeSpec{ID: "upload", ToolType: "uploader", Params: map[string]any{"path": "/tmp/x"}},
	)

	edges := newAnalyzer().Analyze(spec)

	e := findEdge(edges, "write", "upload")
	require.NotNil(t, e, "file_operator output path should feed storage input")
	assert.Equal(t, KindDataFlow, e.Kind)
	assert.GreaterOrEqual(t, e.Confidence, 0.6)

	assert.Nil(t, findEdge(edges, "upload", "write"), "no edge against category priority")
}

func TestMergeKeepsMaxConfidenceAndUnionsEvidence(t *testing.T) {
	// fetch -> write qualifies both as a placeholder edge and a data-flow
	// edge; the merged edge keeps the placeholder confidence.
	spec := pipeline(
		types.NodeSpec{ID: "fetch", ToolType: "search", Params: map[string]any{"query": "go"}},
		types.NodeSpec{ID: "write", ToolType: "file_writer", Params: map[string]any{
			"content": "$fetch.output",
		}},
	)

	edges := newAnalyzer().Analyze(spec)
	e := findEdge(edges, "fetch", "write")
	require.NotNil(t, e)
	assert.InDelta(t, 0.9, e.Confidence, 1e-9)
	assert.Equal(t, KindPlaceholder, e.Kind)
	assert.GreaterOrEqual(t, len(e.Evidence), 2)
}

func TestBuildOrderTopological(t *testing.T) {
	spec := pipeline(
		types.NodeSpec{ID: "upload", ToolType: "uploader", Params: map[string]any{"path": "$write.output"}},
		types.NodeSpec{ID: "write", ToolType: "file_writer", Params: map[string]any{"content": "$fetch.output"}},
		types.NodeSpec{ID: "fetch", ToolType: "search", Params: map[string]any{"query": "go"}},
	)
	edges := newAnalyzer().Analyze(spec)

	plan := BuildOrder(spec, edges, config.Default(), categories())
	assert.False(t, plan.Heuristic)
	assert.Equal(t, []string{"fetch", "write", "upload"}, plan.Order)
	assert.Empty(t, plan.Warnings)
}

func TestBuildOrderIgnoresLowConfidenceEdges(t *testing.T) {
	spec := pipeline(
		types.NodeSpec{ID: "a", ToolType: "search"},
		types.NodeSpec{ID: "b", ToolType: "search"},
	)
	edges := []Edge{{Source: "b", Target: "a", Confidence: 0.1, Kind: KindDataFlow}}

	plan := BuildOrder(spec, edges, config.Default(), categories())
	assert.False(t, plan.Heuristic)
	assert.Equal(t, []string{"a", "b"}, plan.Order, "low-confidence edge must not reorder")
}

func TestBuildOrderCycleFallsBackToHeuristic(t *testing.T) {
	spec := pipeline(
		types.NodeSpec{ID: "proc", ToolType: "report"},
		types.NodeSpec{ID: "src", ToolType: "search"},
		types.NodeSpec{ID: "sink", ToolType: "uploader"},
	)
	edges := []Edge{
		{Source: "proc", Target: "src", Confidence: 0.9, Kind: KindPlaceholder},
		{Source: "src", Target: "proc", Confidence: 0.9, Kind: KindPlaceholder},
	}

	plan := BuildOrder(spec, edges, config.Default(), categories())
	assert.True(t, plan.Heuristic)
	require.Len(t, plan.Order, 3)
	// Category priority puts the data source first and storage last.
	assert.Equal(t, "src", plan.Order[0])
	assert.Equal(t, "sink", plan.Order[2])
	assert.NotEmpty(t, plan.Warnings)
}

func TestBuildOrderCoversEveryNode(t *testing.T) {
	spec := pipeline(
		types.NodeSpec{ID: "isolated", ToolType: "unknown_tool"},
		types.NodeSpec{ID: "fetch", ToolType: "search", Params: map[string]any{"query": "x"}},
	)
	plan := BuildOrder(spec, newAnalyzer().Analyze(spec), config.Default(), categories())
	assert.ElementsMatch(t, []string{"isolated", "fetch"}, plan.Order)
}
