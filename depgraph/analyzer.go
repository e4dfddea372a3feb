// Package depgraph infers dependency edges between pipeline nodes and
// turns them into a validated execution order. Edges come from two passes:
// explicit placeholder references (high confidence, with fuzzy node-id
// matching) and tool-category data-flow semantics (medium confidence).
package depgraph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/config"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/logger"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/resolver"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/types"
)

// Edge kinds.
const (
	KindPlaceholder = "placeholder"
	KindDataFlow    = "data_flow_semantic"
)

// Confidence levels and acceptance thresholds.
const (
	placeholderConfidence = 0.9
	fuzzyAcceptScore      = 0.7
	categoryAcceptScore   = 0.5
	dataFlowMinScore      = 0.6
)

// Edge is one inferred dependency: source must run before target.
type Edge struct {
	Source     string
	Target     string
	Confidence float64
	Kind       string
	Evidence   []string
}

// Analyzer infers edges for a pipeline using the semantic tables and a
// category lookup for tool types.
type Analyzer struct {
	tables *config.Tables

	// categoryOf maps a tool type to its category name. Unknown tools
	// should map to config.CategoryOther.
	categoryOf func(toolType string) string
}

// NewAnalyzer creates an analyzer. categoryOf may be nil, in which case
// every tool falls into the "other" category.
func NewAnalyzer(tables *config.Tables, categoryOf func(toolType string) string) *Analyzer {
	if categoryOf == nil {
		categoryOf = func(string) string { return config.CategoryOther }
	}
	return &Analyzer{tables: tables, categoryOf: categoryOf}
}

// Analyze runs both inference passes and returns deduplicated edges. For a
// repeated (source, target) pair the max confidence wins and evidence is
// merged.
func (a *Analyzer) Analyze(spec *types.PipelineSpec) []Edge {
	merged := make(map[[2]string]*Edge)

	for _, e := range a.placeholderEdges(spec) {
		mergeEdge(merged, e)
	}
	for _, e := range a.dataFlowEdges(spec) {
		mergeEdge(merged, e)
	}

	edges := make([]Edge, 0, len(merged))
	for _, e := range merged {
		edges = append(edges, *e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges
}

func mergeEdge(merged map[[2]string]*Edge, e Edge) {
	key := [2]string{e.Source, e.Target}
	existing, ok := merged[key]
	if !ok {
		copied := e
		merged[key] = &copied
		return
	}
	if e.Confidence > existing.Confidence {
		existing.Confidence = e.Confidence
		existing.Kind = e.Kind
	}
	existing.Evidence = append(existing.Evidence, e.Evidence...)
}

// placeholderEdges extracts $ref.output tokens from every node's params and
// matches each reference against the pipeline's node ids, fuzzily when no
// exact id exists.
func (a *Analyzer) placeholderEdges(spec *types.PipelineSpec) []Edge {
	ids := make(map[string]bool, len(spec.Components))
	for _, n := range spec.Components {
		ids[n.ID] = true
	}

	var edges []Edge
	for _, node := range spec.Components {
		for _, ref := range resolver.ExtractReferences(node.Params) {
			if ref == node.ID {
				continue
			}
			if ids[ref] {
				edges = append(edges, Edge{
					Source:     ref,
					Target:     node.ID,
					Confidence: placeholderConfidence,
					Kind:       KindPlaceholder,
					Evidence:   []string{fmt.Sprintf("placeholder $%s.output in %s", ref, node.ID)},
				})
				continue
			}
			if match, evidence, ok := a.fuzzyMatch(ref, node.ID, spec); ok {
				edges = append(edges, Edge{
					Source:     match,
					Target:     node.ID,
					Confidence: placeholderConfidence,
					Kind:       KindPlaceholder,
					Evidence:   []string{evidence},
				})
				continue
			}
			logger.Debug("Placeholder reference matched no node",
				"reference", ref, "node", node.ID)
		}
	}
	return edges
}

// fuzzyMatch finds the best node id for an approximate placeholder
// reference. Tried in order: suffix-stripped identity, substring
// containment, keyword Jaccard above 0.7, then semantic category keyword
// overlap above 0.5.
func (a *Analyzer) fuzzyMatch(ref, consumer string, spec *types.PipelineSpec) (string, string, bool) {
	refNorm := a.stripSuffixes(ref)
	refWords := a.keywords(ref)

	bestID, bestScore := "", 0.0
	bestCatID, bestCatScore := "", 0.0
	for _, node := range spec.Components {
		if node.ID == consumer {
			continue
		}
		score := a.matchScore(refNorm, refWords, node.ID)
		if score > bestScore || (score == bestScore && node.ID < bestID) {
			bestID, bestScore = node.ID, score
		}

		// Category keywords cover references naming the tool rather than
		// the node, e.g. $image_rotator.output against node "rotate_step".
		catScore := jaccard(refWords, a.categoryKeywords(node))
		if catScore > bestCatScore || (catScore == bestCatScore && node.ID < bestCatID) {
			bestCatID, bestCatScore = node.ID, catScore
		}
	}

	if bestScore > fuzzyAcceptScore {
		return bestID, fmt.Sprintf("fuzzy match %q -> %q (%.2f) in %s", ref, bestID, bestScore, consumer), true
	}
	if bestCatScore > categoryAcceptScore {
		return bestCatID, fmt.Sprintf("category match %q -> %q (%.2f) in %s", ref, bestCatID, bestCatScore, consumer), true
	}
	return "", "", false
}

func (a *Analyzer) matchScore(refNorm string, refWords map[string]bool, candidate string) float64 {
	candNorm := a.stripSuffixes(candidate)
	if refNorm == candNorm {
		return 1.0
	}
	if strings.Contains(candNorm, refNorm) || strings.Contains(refNorm, candNorm) {
		return 0.8
	}
	return jaccard(refWords, a.keywords(candidate))
}

func (a *Analyzer) stripSuffixes(id string) string {
	for _, suffix := range a.tables.NodeSuffixes {
		if strings.HasSuffix(id, suffix) && len(id) > len(suffix) {
			return strings.TrimSuffix(id, suffix)
		}
	}
	return id
}

var wordSplitRE = regexp.MustCompile(`[_\-\s]+`)

// keywords splits an identifier into its stopword-filtered word set.
func (a *Analyzer) keywords(id string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range wordSplitRE.Split(strings.ToLower(id), -1) {
		if w == "" || a.isStopword(w) {
			continue
		}
		words[w] = true
	}
	return words
}

func (a *Analyzer) categoryKeywords(node types.NodeSpec) map[string]bool {
	words := a.keywords(node.ToolType)
	for w := range a.keywords(a.categoryOf(node.ToolType)) {
		words[w] = true
	}
	return words
}

func (a *Analyzer) isStopword(w string) bool {
	for _, s := range a.tables.Stopwords {
		if w == s {
			return true
		}
	}
	return false
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// dataFlowEdges infers medium-confidence edges from category input/output
// semantics. An edge A->B is added when some output semantic of A's
// category is compatible with an input semantic of B's category. To keep
// symmetric category pairs from producing trivial cycles, same-priority
// pairs follow the advisory spec order.
func (a *Analyzer) dataFlowEdges(spec *types.PipelineSpec) []Edge {
	var edges []Edge
	for i, src := range spec.Components {
		srcCat := a.categoryOf(src.ToolType)
		for j, dst := range spec.Components {
			if i == j {
				continue
			}
			dstCat := a.categoryOf(dst.ToolType)
			srcPrio := a.tables.CategoryPriority(srcCat)
			dstPrio := a.tables.CategoryPriority(dstCat)
			if srcPrio > dstPrio {
				continue
			}
			if srcPrio == dstPrio && i > j {
				continue
			}

			score := a.compatibility(srcCat, dstCat)
			if score < dataFlowMinScore {
				continue
			}
			edges = append(edges, Edge{
				Source:     src.ID,
				Target:     dst.ID,
				Confidence: score,
				Kind:       KindDataFlow,
				Evidence: []string{fmt.Sprintf("data flow %s(%s) -> %s(%s) (%.2f)",
					src.ID, srcCat, dst.ID, dstCat, score)},
			})
		}
	}
	return edges
}

// compatibility scores the best output/input semantic pairing between two
// categories. Direct matches score 0.9, content-to-path handoffs for
// writers and uploaders 0.75, path-to-content reads 0.7.
func (a *Analyzer) compatibility(srcCat, dstCat string) float64 {
	srcSem, okSrc := a.tables.Categories[srcCat]
	dstSem, okDst := a.tables.Categories[dstCat]
	if !okSrc || !okDst {
		return 0
	}

	best := 0.0
	for _, out := range srcSem.Outputs {
		for _, in := range dstSem.Inputs {
			score := pairScore(out, in, dstCat)
			if score > best {
				best = score
			}
		}
	}
	return best
}

func pairScore(out, in, dstCat string) float64 {
	if out == in && out != "any" {
		return 0.9
	}
	if out == config.SemanticFileContent && in == config.SemanticFilePath &&
		(dstCat == config.CategoryFileOperator || dstCat == config.CategoryStorage) {
		return 0.75
	}
	if out == config.SemanticFilePath && in == config.SemanticFileContent {
		return 0.7
	}
	return 0
}
