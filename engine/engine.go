// Package engine drives pipeline execution: it validates the spec, infers
// the execution order, walks the nodes resolving placeholders and adapting
// parameter shapes, invokes tools through the registry and streams progress
// events until exactly one terminal event closes the request.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/adapt"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/config"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/depgraph"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/depissue"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/envelope"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/events"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/logger"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/resolver"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/session"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/tools"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/types"
)

const defaultMaxConcurrent = 16

// Engine executes pipeline specifications. It is safe for concurrent use;
// each request carries its own session context and event sink.
type Engine struct {
	registry      *tools.Registry
	tables        *config.Tables
	resolver      *resolver.Resolver
	paramAdapter  *adapt.ParamAdapter
	outputAdapter *adapt.OutputAdapter
	bus           *events.Bus
	policy        depissue.Policy
	sem           *semaphore.Weighted
	tracer        trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithBus attaches a pub/sub bus; every emitted event is also published to
// it for observability listeners.
func WithBus(bus *events.Bus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithOutputAdapter replaces the default output adapter, e.g. to share a
// Redis-backed cache across replicas.
func WithOutputAdapter(oa *adapt.OutputAdapter) Option {
	return func(e *Engine) {
		e.outputAdapter = oa
	}
}

// WithParamAdapter replaces the default parameter adapter.
func WithParamAdapter(pa *adapt.ParamAdapter) Option {
	return func(e *Engine) {
		e.paramAdapter = pa
	}
}

// WithMaxConcurrent bounds the number of pipelines running at once.
// Default is 16.
func WithMaxConcurrent(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithDependencyPolicy sets the remediation policy for classified
// dependency issues.
func WithDependencyPolicy(p depissue.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// New creates an engine over a tool registry and semantic tables.
func New(registry *tools.Registry, tables *config.Tables, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		tables:   tables,
		sem:      semaphore.NewWeighted(defaultMaxConcurrent),
		tracer:   otel.Tracer("mcp-autogen/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.outputAdapter == nil {
		e.outputAdapter = adapt.NewOutputAdapter(tables)
	}
	if e.paramAdapter == nil {
		e.paramAdapter = adapt.NewParamAdapter()
	}
	e.resolver = resolver.New(tables.LegacyFieldMap, e.outputAdapter)
	return e
}

// OutputAdapter exposes the engine's output adapter for stats collection
// and transformer management.
func (e *Engine) OutputAdapter() *adapt.OutputAdapter {
	return e.outputAdapter
}

// categoryOf adapts the registry to the analyzer's category lookup.
func (e *Engine) categoryOf(toolType string) string {
	cat, _ := e.registry.Category(toolType)
	return string(cat)
}

// Run executes one pipeline. Exactly one terminal event is emitted on the
// session's sink; the returned error mirrors the terminal error event for
// programmatic callers.
func (e *Engine) Run(ctx context.Context, sess *session.Context, spec *types.PipelineSpec) error {
	emitter := events.NewEmitter(sess.Sink, e.bus, sess.RequestID, sess.Overrides.PartialsPerSecond)
	ctx = logger.WithRequestID(ctx, sess.RequestID)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		kind := events.KindCancelled
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = events.KindTimeout
		}
		_ = emitter.Error(kind, "pipeline not started: "+err.Error(), "", "")
		return fmt.Errorf("engine admission failed: %w", err)
	}
	defer e.sem.Release(1)

	if sess.Overrides.PipelineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sess.Overrides.PipelineTimeout)
		defer cancel()
	}

	pipelineID := ""
	if spec != nil {
		pipelineID = spec.PipelineID
	}
	ctx, span := e.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("pipeline.id", pipelineID),
			attribute.String("request.id", sess.RequestID),
		))
	defer span.End()

	err := e.run(ctx, emitter, sess, spec)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// run is the executor body; Run wraps it with admission, timeout and
// tracing concerns. Panics inside the executor become internal errors.
func (e *Engine) run(ctx context.Context, emitter *events.Emitter, sess *session.Context, spec *types.PipelineSpec) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("executor panic: %v", rec)
			logger.ErrorContext(ctx, "Executor panic", "error", err)
			_ = emitter.Error(events.KindInternal, err.Error(), "", "")
		}
	}()

	if verr := e.validateSpec(spec); verr != nil {
		_ = emitter.Error(events.KindBadSpec, verr.Error(), "", "")
		return verr
	}

	if len(spec.Components) == 0 {
		_ = emitter.Result("pipeline is empty", map[string]any{
			"pipeline_id": spec.PipelineID,
			"summaries":   []any{},
		})
		return nil
	}

	plan := e.plan(ctx, emitter, spec)

	outputs := make(resolver.Outputs, len(spec.Components))
	nodes := nodeIndex(spec)
	summaries := make([]map[string]any, 0, len(spec.Components))
	var lastEnvelope *envelope.Envelope

	for i, nodeID := range plan.Order {
		if cerr := ctx.Err(); cerr != nil {
			kind := events.KindCancelled
			if errors.Is(cerr, context.DeadlineExceeded) {
				kind = events.KindTimeout
			}
			_ = emitter.Error(kind, "pipeline terminated: "+cerr.Error(), nodeID, "")
			return cerr
		}

		node := nodes[nodeID]
		_ = emitter.Progress(nodeID, fmt.Sprintf("executing node %d/%d", i+1, len(plan.Order)),
			map[string]any{"tool_type": node.ToolType})

		env, nerr := e.runNode(ctx, emitter, sess, node, outputs)
		if nerr != nil {
			return nerr
		}

		lastEnvelope = env
		summaries = append(summaries, nodeSummary(node, env))
	}

	_ = emitter.Result("pipeline completed", map[string]any{
		"pipeline_id": spec.PipelineID,
		"primary":     finalPrimary(lastEnvelope),
		"summaries":   toAnySlice(summaries),
	})
	return nil
}

// plan computes the execution order, emitting planning status and the
// cycle warning when the heuristic fallback was used.
func (e *Engine) plan(ctx context.Context, emitter *events.Emitter, spec *types.PipelineSpec) *depgraph.Plan {
	_, span := e.tracer.Start(ctx, "pipeline.plan")
	defer span.End()

	analyzer := depgraph.NewAnalyzer(e.tables, e.categoryOf)
	edges := analyzer.Analyze(spec)
	plan := depgraph.BuildOrder(spec, edges, e.tables, e.categoryOf)

	data := map[string]any{"order": toAnyStrings(plan.Order), "edges": len(edges)}
	if len(plan.Warnings) > 0 {
		data["warnings"] = toAnyStrings(plan.Warnings)
	}
	_ = emitter.Status("planning", "execution order computed", data)

	if plan.Heuristic {
		_ = emitter.Status("planning", "dependency cycle detected, using heuristic order",
			map[string]any{"kind": string(events.KindCycleDetected)})
	}
	return plan
}

// runNode executes one node end to end: resolve, adapt, invoke, classify,
// store, emit. A non-nil error means a terminal event was emitted and the
// pipeline must stop.
func (e *Engine) runNode(ctx context.Context, emitter *events.Emitter, sess *session.Context, node types.NodeSpec, outputs resolver.Outputs) (*envelope.Envelope, error) {
	ctx, span := e.tracer.Start(ctx, "pipeline.node",
		trace.WithAttributes(
			attribute.String("node.id", node.ID),
			attribute.String("node.tool", node.ToolType),
		))
	defer span.End()

	_ = emitter.ToolStart(node.ID, node.ToolType)

	interval := sess.Overrides.HeartbeatInterval
	if interval <= 0 {
		interval = e.tables.Events.HeartbeatInterval
	}
	stopHeartbeat := events.NewHeartbeater(emitter, interval).Start(ctx, node.ID)
	defer stopHeartbeat()

	params, misses := e.resolver.Resolve(node.Params, outputs)
	for _, miss := range misses {
		// Unresolved placeholders are warnings until the tool rejects its
		// inputs.
		_ = emitter.Status(node.ID, "unresolved placeholder "+miss.Token, map[string]any{
			"kind":   string(events.KindUnresolvedPlaceholder),
			"token":  miss.Token,
			"reason": miss.Reason,
		})
	}

	if d := e.registry.Get(node.ToolType); d != nil {
		params = e.paramAdapter.Adapt(params, d)
	}

	toolCtx := ctx
	if sess.Overrides.ToolTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, sess.Overrides.ToolTimeout)
		defer cancel()
	}

	env := e.registry.Invoke(toolCtx, node.ToolType, params)
	stopHeartbeat()

	if env.IsError() {
		return nil, e.failNode(ctx, emitter, node, toolCtx, env)
	}

	outputs[node.ID] = &types.NodeOutput{
		NodeID:      node.ID,
		OutputType:  node.Output.Type,
		OutputKey:   node.Output.Key,
		Value:       env.AsMap(),
		Description: env.Message,
	}

	sanitized := env.Sanitized()
	_ = emitter.ToolResult(node.ID, string(env.Status), env.Message, sanitized.Data.Primary)
	return env, nil
}

// failNode classifies the failure, surfaces dependency issues and emits
// the terminal error event.
func (e *Engine) failNode(ctx context.Context, emitter *events.Emitter, node types.NodeSpec, toolCtx context.Context, env *envelope.Envelope) error {
	_ = emitter.ToolResult(node.ID, string(env.Status), env.Message, nil)

	if errors.Is(toolCtx.Err(), context.DeadlineExceeded) {
		msg := fmt.Sprintf("tool %s timed out: %s", node.ToolType, env.Error)
		_ = emitter.Error(events.KindTimeout, msg, node.ID, "")
		return errors.New(msg)
	}
	if errors.Is(toolCtx.Err(), context.Canceled) {
		msg := fmt.Sprintf("tool %s cancelled", node.ToolType)
		_ = emitter.Error(events.KindCancelled, msg, node.ID, "")
		return context.Canceled
	}

	issues := depissue.Classify(env.Error)
	remediation := ""
	for _, issue := range issues {
		_ = emitter.DependencyIssue(node.ID, issueData(issue))
		if issue.Kind == depissue.KindMissingPackage && remediation == "" && len(issue.InstallCommands) > 0 {
			remediation = issue.InstallCommands[0]
		}
		logger.WarnContext(ctx, "Dependency issue detected",
			"node", node.ID, "kind", string(issue.Kind), "package", issue.Package,
			"auto_install", e.policy.AutoInstall)
	}

	msg := fmt.Sprintf("node %s failed: %s", node.ID, env.Error)
	_ = emitter.Error(events.KindToolError, msg, node.ID, remediation)
	return errors.New(msg)
}

func issueData(issue depissue.Issue) map[string]any {
	data := map[string]any{
		"kind":                string(issue.Kind),
		"suggested_solutions": toAnyStrings(issue.SuggestedSolutions),
	}
	if issue.Package != "" {
		data["package"] = issue.Package
	}
	if len(issue.InstallCommands) > 0 {
		data["install_commands"] = toAnyStrings(issue.InstallCommands)
	}
	return data
}

func nodeIndex(spec *types.PipelineSpec) map[string]types.NodeSpec {
	nodes := make(map[string]types.NodeSpec, len(spec.Components))
	for _, n := range spec.Components {
		nodes[n.ID] = n
	}
	return nodes
}

func nodeSummary(node types.NodeSpec, env *envelope.Envelope) map[string]any {
	return map[string]any{
		"node_id":         node.ID,
		"tool_type":       node.ToolType,
		"status":          string(env.Status),
		"message":         env.Message,
		"processing_time": env.Metadata.ProcessingTime,
	}
}

// finalPrimary projects the last envelope's primary output for the result
// event, sanitized for serialization.
func finalPrimary(env *envelope.Envelope) any {
	if env == nil {
		return nil
	}
	return env.Sanitized().Data.Primary
}

func toAnyStrings(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func toAnySlice(in []map[string]any) []any {
	out := make([]any, len(in))
	for i, m := range in {
		out[i] = m
	}
	return out
}

// RunWithTimeout is a convenience wrapper applying a pipeline timeout from
// a plain duration instead of session overrides.
func (e *Engine) RunWithTimeout(ctx context.Context, sess *session.Context, spec *types.PipelineSpec, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return e.Run(ctx, sess, spec)
}
