// Package tools provides the engine's tool registry: descriptor
// registration, K8s-style manifest loading, JSON Schema argument validation
// and invocation with a guaranteed output envelope.
package tools

import (
	"context"
	"encoding/json"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/envelope"
)

// Category classifies tools for dependency inference and heuristic
// ordering.
type Category string

// Tool categories.
const (
	CategoryDataSource    Category = "data_source"
	CategoryDataProcessor Category = "data_processor"
	CategoryFileOperator  Category = "file_operator"
	CategoryStorage       Category = "storage"
	CategoryOther         Category = "other"
)

// SemanticType describes what a declared parameter or output means, beyond
// its wire type.
type SemanticType string

// Semantic types for declared inputs and outputs.
const (
	SemString      SemanticType = "string"
	SemNumber      SemanticType = "number"
	SemBoolean     SemanticType = "boolean"
	SemFilePath    SemanticType = "file_path"
	SemFileContent SemanticType = "file_content"
	SemURL         SemanticType = "url"
	SemImageRef    SemanticType = "image_ref"
	SemList        SemanticType = "list"
	SemMap         SemanticType = "map"
	SemAny         SemanticType = "any"
)

// InvokeFunc executes a tool. Implementations must honor ctx cancellation
// for long-running work and should return an envelope even on failure; a
// returned error is wrapped into an error envelope by the registry.
type InvokeFunc func(ctx context.Context, params map[string]any) (*envelope.Envelope, error)

// Descriptor is a normalized tool definition.
type Descriptor struct {
	Name        string   `json:"name" yaml:"name"`
	Version     string   `json:"version,omitempty" yaml:"version,omitempty"`
	Description string   `json:"description" yaml:"description"`
	Category    Category `json:"category" yaml:"category"`

	// Inputs maps parameter names to their semantic types.
	Inputs map[string]SemanticType `json:"inputs" yaml:"inputs"`

	// Outputs lists the envelope keys this tool populates
	// (e.g. "data.primary", "paths").
	Outputs []string `json:"outputs" yaml:"outputs"`

	// InputSchema optionally validates arguments (JSON Schema Draft-07).
	InputSchema json.RawMessage `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`

	// EngineConstraint is a semver range the engine version must satisfy
	// for the tool to register, e.g. ">= 1.0.0 < 2".
	EngineConstraint string `json:"engine_constraint,omitempty" yaml:"engine_constraint,omitempty"`

	// Invoker names the registered invoker for manifest-loaded tools.
	// Descriptors registered programmatically set Invoke directly.
	Invoker string `json:"invoker,omitempty" yaml:"invoker,omitempty"`

	// Invoke executes the tool. Not serialized.
	Invoke InvokeFunc `json:"-" yaml:"-"`
}

// InputSemantics returns the declared semantic type for a parameter,
// defaulting to SemAny.
func (d *Descriptor) InputSemantics(param string) SemanticType {
	if t, ok := d.Inputs[param]; ok {
		return t
	}
	return SemAny
}

// Manifest is a K8s-style tool configuration document.
type Manifest struct {
	APIVersion string            `json:"apiVersion" yaml:"apiVersion"`
	Kind       string            `json:"kind" yaml:"kind"`
	Metadata   metav1.ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Spec       Descriptor        `json:"spec" yaml:"spec"`
}

// manifestKind is the only accepted manifest kind.
const manifestKind = "Tool"
