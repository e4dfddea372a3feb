package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaValidator compiles and caches JSON Schemas for tool inputs.
type SchemaValidator struct {
	mu    sync.RWMutex
	cache map[string]*gojsonschema.Schema
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		cache: make(map[string]*gojsonschema.Schema),
	}
}

// Compile compiles and caches a tool's input schema under its name.
func (sv *SchemaValidator) Compile(tool string, schemaJSON json.RawMessage) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return err
	}
	sv.mu.Lock()
	sv.cache[tool] = schema
	sv.mu.Unlock()
	return nil
}

// ValidateArgs validates tool arguments against the compiled input schema.
// Tools without a compiled schema pass trivially.
func (sv *SchemaValidator) ValidateArgs(tool string, args json.RawMessage) error {
	sv.mu.RLock()
	schema, ok := sv.cache[tool]
	sv.mu.RUnlock()
	if !ok {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Errorf("validation error for tool %s: %w", tool, err)
	}
	if !result.Valid() {
		details := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			details[i] = desc.String()
		}
		return &ValidationError{
			Tool:   tool,
			Detail: fmt.Sprintf("argument validation failed: %v", details),
		}
	}
	return nil
}
