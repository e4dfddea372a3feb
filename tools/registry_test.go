package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/envelope"
)

func echoTool(_ context.Context, params map[string]any) (*envelope.Envelope, error) {
	return envelope.New("echo", "1.0.0", params, time.Now()).
		WithPrimary(params["value"]).
		WithMessage("echoed"), nil
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&Descriptor{
		Name:     "echo",
		Category: CategoryDataProcessor,
		Inputs:   map[string]SemanticType{"value": SemAny},
		Outputs:  []string{"data.primary"},
		Invoke:   echoTool,
	})
	require.NoError(t, err)

	d := r.Get("echo")
	require.NotNil(t, d)
	assert.Equal(t, CategoryDataProcessor, d.Category)
	assert.Equal(t, SemAny, d.InputSemantics("value"))
	assert.Equal(t, SemAny, d.InputSemantics("unknown_param"))

	assert.Nil(t, r.Get("nope"))

	cat, ok := r.Category("echo")
	assert.True(t, ok)
	assert.Equal(t, CategoryDataProcessor, cat)
	cat, ok = r.Category("nope")
	assert.False(t, ok)
	assert.Equal(t, CategoryOther, cat)
}

func TestRegisterRejectsDuplicatesAndEmptyNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Descriptor{Name: "a", Invoke: echoTool}))

	err := r.Register(&Descriptor{Name: "a", Invoke: echoTool})
	assert.ErrorIs(t, err, ErrDuplicateTool)

	assert.ErrorIs(t, r.Register(&Descriptor{Invoke: echoTool}), ErrToolNameRequired)
	assert.ErrorIs(t, r.Register(&Descriptor{Name: "b"}), ErrInvokerRequired)
}

func TestListSortedByName(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(&Descriptor{Name: name, Invoke: echoTool}))
	}
	var names []string
	for _, d := range r.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestInvokeAlwaysReturnsEnvelope(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Descriptor{Name: "echo", Invoke: echoTool}))

	env := r.Invoke(context.Background(), "echo", map[string]any{"value": "hi"})
	require.NotNil(t, env)
	assert.Equal(t, envelope.StatusSuccess, env.Status)
	assert.Equal(t, "hi", env.Data.Primary)

	// Unknown tool yields an error envelope, not a nil.
	env = r.Invoke(context.Background(), "missing", nil)
	require.NotNil(t, env)
	assert.True(t, env.IsError())
	assert.Contains(t, env.Error, "tool not found")
}

func TestInvokeWrapsErrorsAndPanics(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Descriptor{
		Name: "failing",
		Invoke: func(context.Context, map[string]any) (*envelope.Envelope, error) {
			return nil, errors.New("backend unavailable")
		},
	}))
	require.NoError(t, r.Register(&Descriptor{
		Name: "panicking",
		Invoke: func(context.Context, map[string]any) (*envelope.Envelope, error) {
			panic("boom")
		},
	}))
	require.NoError(t, r.Register(&Descriptor{
		Name: "nil_result",
		Invoke: func(context.Context, map[string]any) (*envelope.Envelope, error) {
			return nil, nil
		},
	}))

	env := r.Invoke(context.Background(), "failing", nil)
	assert.True(t, env.IsError())
	assert.Contains(t, env.Error, "backend unavailable")

	env = r.Invoke(context.Background(), "panicking", nil)
	assert.True(t, env.IsError())
	assert.Contains(t, env.Error, "panicked")

	env = r.Invoke(context.Background(), "nil_result", nil)
	assert.True(t, env.IsError())
	assert.Contains(t, env.Error, "no envelope")
}

func TestInvokeValidatesArgsAgainstSchema(t *testing.T) {
	r := NewRegistry()
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {"query": {"type": "string"}},
		"required": ["query"]
	}`)
	require.NoError(t, r.Register(&Descriptor{
		Name:        "search",
		InputSchema: schema,
		Invoke:      echoTool,
	}))

	env := r.Invoke(context.Background(), "search", map[string]any{})
	assert.True(t, env.IsError())
	assert.Contains(t, env.Error, "argument validation failed")

	env = r.Invoke(context.Background(), "search", map[string]any{"query": "q"})
	assert.False(t, env.IsError())
}

func TestEngineConstraint(t *testing.T) {
	r := NewRegistry()

	err := r.Register(&Descriptor{
		Name:             "modern",
		EngineConstraint: ">= 1.0.0",
		Invoke:           echoTool,
	})
	assert.NoError(t, err)

	err = r.Register(&Descriptor{
		Name:             "future",
		EngineConstraint: ">= 99.0.0",
		Invoke:           echoTool,
	})
	assert.ErrorIs(t, err, ErrEngineIncompatible)
}

func TestLoadManifestBytes(t *testing.T) {
	r := NewRegistry()
	r.RegisterInvoker("echo", echoTool)

	manifest := []byte(`
apiVersion: mcp-autogen/v1
kind: Tool
metadata:
  name: manifest_echo
spec:
  description: echoes its input
  category: data_processor
  invoker: echo
  inputs:
    value: any
  outputs: ["data.primary"]
`)
	require.NoError(t, r.LoadManifestBytes("echo.yaml", manifest))

	d := r.Get("manifest_echo")
	require.NotNil(t, d)
	assert.Equal(t, CategoryDataProcessor, d.Category)

	env := r.Invoke(context.Background(), "manifest_echo", map[string]any{"value": 7})
	assert.False(t, env.IsError())
}

func TestLoadManifestRejectsBadKindAndMissingName(t *testing.T) {
	r := NewRegistry()
	r.RegisterInvoker("echo", echoTool)

	err := r.LoadManifestBytes("bad.yaml", []byte("kind: NotATool\nmetadata:\n  name: x\n"))
	assert.ErrorIs(t, err, ErrInvalidManifest)

	err = r.LoadManifestBytes("anon.yaml", []byte("kind: Tool\nspec:\n  invoker: echo\n"))
	assert.ErrorIs(t, err, ErrInvalidManifest)

	err = r.LoadManifestBytes("orphan.yaml", []byte("kind: Tool\nmetadata:\n  name: y\nspec:\n  invoker: ghost\n"))
	assert.ErrorIs(t, err, ErrInvokerNotFound)
}
