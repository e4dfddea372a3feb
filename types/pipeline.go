// Package types defines the shared data model for the orchestration engine:
// the declarative pipeline specification emitted by the natural-language
// planner and the per-node output records the executor feeds forward.
package types

import (
	"encoding/json"
	"fmt"
)

// PipelineSpec is the declarative plan for one request. It enumerates the
// tool invocations ("nodes") and their parameters. The component ordering is
// advisory only; the true execution order is computed from inferred
// dependencies.
type PipelineSpec struct {
	PipelineID string     `json:"pipeline_id"`
	Components []NodeSpec `json:"components"`
}

// NodeSpec describes a single tool invocation within a pipeline.
type NodeSpec struct {
	ID       string         `json:"id"`
	ToolType string         `json:"tool_type"`
	Params   map[string]any `json:"params"`
	Output   OutputHint     `json:"output"`
}

// OutputHint carries the planner's declared expectation about a node's
// output envelope. It is advisory: the engine uses it for primary
// projection and adapter targeting, never for validation.
type OutputHint struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// ParsePipelineSpec decodes a JSON pipeline specification.
func ParsePipelineSpec(data []byte) (*PipelineSpec, error) {
	var spec PipelineSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline spec: %w", err)
	}
	return &spec, nil
}

// NodeOutput records the result of one executed node. Records are created
// by the executor when a node finishes and live until the pipeline
// terminates; the executor is their sole owner.
type NodeOutput struct {
	// NodeID is the id of the node that produced this output.
	NodeID string

	// OutputType is the planner's declared output type hint.
	OutputType string

	// OutputKey is the planner's declared primary key hint.
	OutputKey string

	// Value is the full output envelope, or its primary projection for
	// tools that returned a bare value.
	Value any

	// Description is a human-readable summary for diagnostics.
	Description string
}

// Primary returns the node's primary projection: Value[OutputKey] when
// Value is a map containing OutputKey, otherwise Value itself.
func (n *NodeOutput) Primary() any {
	if n == nil {
		return nil
	}
	if m, ok := n.Value.(map[string]any); ok && n.OutputKey != "" {
		if v, exists := m[n.OutputKey]; exists {
			return v
		}
	}
	return n.Value
}
