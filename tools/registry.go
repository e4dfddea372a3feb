package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/envelope"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/logger"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/version"
)

// Registry manages tool descriptors and guarantees the envelope contract
// on invocation. Registration happens at process start; after that the
// registry is effectively read-only and requires no locking on the hot
// path beyond its internal map mutex.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]*Descriptor
	invokers  map[string]InvokeFunc
	validator *SchemaValidator
	engineVer *semver.Version
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	ver, err := semver.NewVersion(version.Engine)
	if err != nil {
		// Engine version is a compile-time constant; a parse failure is a
		// programming error.
		panic(fmt.Sprintf("invalid engine version %q: %v", version.Engine, err))
	}
	return &Registry{
		tools:     make(map[string]*Descriptor),
		invokers:  make(map[string]InvokeFunc),
		validator: NewSchemaValidator(),
		engineVer: ver,
	}
}

// RegisterInvoker makes a named invoker available to manifest-loaded tools.
func (r *Registry) RegisterInvoker(name string, fn InvokeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invokers[name] = fn
}

// Register adds a tool descriptor to the registry.
func (r *Registry) Register(d *Descriptor) error {
	if d == nil || d.Name == "" {
		return ErrToolNameRequired
	}
	if d.Category == "" {
		d.Category = CategoryOther
	}
	if err := r.checkEngineConstraint(d); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, d.Name)
	}
	if d.Invoke == nil {
		if d.Invoker == "" {
			return fmt.Errorf("%w: %s", ErrInvokerRequired, d.Name)
		}
		fn, ok := r.invokers[d.Invoker]
		if !ok {
			return fmt.Errorf("%w: %s wants %q", ErrInvokerNotFound, d.Name, d.Invoker)
		}
		d.Invoke = fn
	}

	// Compile the schema eagerly so registration surfaces schema bugs.
	if len(d.InputSchema) > 0 {
		if err := r.validator.Compile(d.Name, d.InputSchema); err != nil {
			return fmt.Errorf("invalid input schema for tool %s: %w", d.Name, err)
		}
	}

	r.tools[d.Name] = d
	logger.Debug("Tool registered", "tool", d.Name, "category", string(d.Category))
	return nil
}

// Get retrieves a tool descriptor by name, or nil if absent.
func (r *Registry) Get(name string) *Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Category returns the category for a tool type, defaulting to "other"
// for unknown tools.
func (r *Registry) Category(name string) (Category, bool) {
	if d := r.Get(name); d != nil {
		return d.Category, true
	}
	return CategoryOther, false
}

// Invoke executes a tool and always returns an envelope. Argument
// validation failures, returned errors and panics inside the tool are all
// wrapped into error envelopes; Invoke itself never fails.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]any) *envelope.Envelope {
	started := time.Now()

	d := r.Get(name)
	if d == nil {
		return envelope.NewError(name, "", params, started,
			fmt.Errorf("%w: %s", ErrToolNotFound, name))
	}

	if len(d.InputSchema) > 0 {
		if err := r.validateArgs(d, params); err != nil {
			return envelope.NewError(name, d.Version, params, started, err)
		}
	}

	env, err := r.invokeSafely(ctx, d, params)
	if err != nil {
		return envelope.NewError(name, d.Version, params, started, err)
	}
	if env == nil {
		return envelope.NewError(name, d.Version, params, started,
			fmt.Errorf("tool %s returned no envelope", name))
	}
	if env.Metadata.ToolName == "" {
		env.Metadata.ToolName = name
	}
	if env.Metadata.ProcessingTime == 0 {
		env.Metadata.ProcessingTime = time.Since(started).Seconds()
	}
	return env
}

// invokeSafely runs the tool, converting panics into errors.
func (r *Registry) invokeSafely(ctx context.Context, d *Descriptor, params map[string]any) (env *envelope.Envelope, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			env = nil
			err = fmt.Errorf("tool %s panicked: %v", d.Name, rec)
		}
	}()
	logger.ToolInvocation(d.Name, "", len(params))
	return d.Invoke(ctx, params)
}

// validateArgs checks params against the compiled input schema.
func (r *Registry) validateArgs(d *Descriptor, params map[string]any) error {
	raw, err := json.Marshal(sanitizeParams(params))
	if err != nil {
		return fmt.Errorf("cannot serialize params for tool %s: %w", d.Name, err)
	}
	return r.validator.ValidateArgs(d.Name, raw)
}

// sanitizeParams replaces non-serializable param values with opaque markers
// so schema validation never fails on in-memory objects.
func sanitizeParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if _, err := json.Marshal(v); err != nil {
			out[k] = envelope.OpaqueMarker(v)
			continue
		}
		out[k] = v
	}
	return out
}

// checkEngineConstraint validates the descriptor's semver range against the
// engine version.
func (r *Registry) checkEngineConstraint(d *Descriptor) error {
	if d.EngineConstraint == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(d.EngineConstraint)
	if err != nil {
		return fmt.Errorf("%w: tool %s constraint %q: %v", ErrInvalidManifest, d.Name, d.EngineConstraint, err)
	}
	if !constraint.Check(r.engineVer) {
		return fmt.Errorf("%w: tool %s requires %q, engine is %s",
			ErrEngineIncompatible, d.Name, d.EngineConstraint, version.Engine)
	}
	return nil
}

// LoadManifestBytes registers a tool from raw YAML or JSON manifest data.
// The filename parameter is used only for error reporting.
func (r *Registry) LoadManifestBytes(filename string, data []byte) error {
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("failed to parse tool manifest %s: %w", filename, err)
	}

	if manifest.Kind != manifestKind {
		return fmt.Errorf("%w: %s has kind %q, expected %q",
			ErrInvalidManifest, filename, manifest.Kind, manifestKind)
	}
	if manifest.Metadata.Name == "" {
		return fmt.Errorf("%w: %s is missing metadata.name", ErrInvalidManifest, filename)
	}

	// metadata.name is authoritative for manifest-loaded tools.
	spec := manifest.Spec
	spec.Name = manifest.Metadata.Name
	return r.Register(&spec)
}
