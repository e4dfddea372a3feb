package engine

import (
	"errors"
	"fmt"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/types"
)

// ErrBadSpec marks pipeline specifications that fail pre-execution
// validation.
var ErrBadSpec = errors.New("bad pipeline spec")

// validateSpec rejects malformed pipelines before any node runs: missing
// or duplicate node ids and unknown tool types.
func (e *Engine) validateSpec(spec *types.PipelineSpec) error {
	if spec == nil {
		return fmt.Errorf("%w: spec is nil", ErrBadSpec)
	}

	seen := make(map[string]bool, len(spec.Components))
	for i, node := range spec.Components {
		if node.ID == "" {
			return fmt.Errorf("%w: component %d has no id", ErrBadSpec, i)
		}
		if seen[node.ID] {
			return fmt.Errorf("%w: duplicate node id %q", ErrBadSpec, node.ID)
		}
		seen[node.ID] = true

		if node.ToolType == "" {
			return fmt.Errorf("%w: node %q has no tool_type", ErrBadSpec, node.ID)
		}
		if e.registry.Get(node.ToolType) == nil {
			return fmt.Errorf("%w: node %q references unknown tool %q",
				ErrBadSpec, node.ID, node.ToolType)
		}
	}
	return nil
}
