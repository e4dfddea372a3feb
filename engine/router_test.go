package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/config"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/events"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/session"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/types"
)

func newTestRouter(t *testing.T, planner Planner) *Router {
	t.Helper()
	tr := newTestRun(t)

	chat := NewCannedChatHandler("I can run tool pipelines for you.")
	require.NoError(t, chat.AddRule(`(?i)^(hi|hello)`, "Hello! How can I help?"))

	r, err := NewRouter(tr.engine, planner, chat, config.Default().Router)
	require.NoError(t, err)
	return r
}

func staticPlanner(spec *types.PipelineSpec) Planner {
	return PlannerFunc(func(context.Context, string) (*types.PipelineSpec, error) {
		return spec, nil
	})
}

func drain(sess *session.Context) []*events.Event {
	var out []*events.Event
	for e := range sess.Sink.Events() {
		out = append(out, e)
	}
	return out
}

func TestClassify(t *testing.T) {
	r := newTestRouter(t, staticPlanner(nil))

	assert.Equal(t, ModeChat, r.Classify("hello"))
	assert.Equal(t, ModeChat, r.Classify("你好"))
	assert.Equal(t, ModeChat, r.Classify("thanks a lot"))
	assert.Equal(t, ModeTask, r.Classify("search for golang tutorials and write a report"))

	// A greeting prefix on a long input still routes to the engine.
	long := "hello, please research the history of container runtimes, " +
		"compare the top three and upload a markdown report"
	assert.Equal(t, ModeTask, r.Classify(long))
}

func TestHandleChatStreamsPartialsAndResult(t *testing.T) {
	r := newTestRouter(t, staticPlanner(nil))
	sess := session.New(events.NewSink(64, events.Block))

	require.NoError(t, r.Handle(context.Background(), sess, "hello"))

	evts := drain(sess)
	final := terminal(t, evts)
	assert.Equal(t, events.TypeResult, final.Type)
	assert.Equal(t, "Hello! How can I help?", final.Message)

	var accumulated string
	for _, e := range evts {
		if e.Type == events.TypePartial {
			accumulated = e.Data["accumulated_content"].(string)
		}
	}
	assert.Equal(t, "Hello! How can I help?", accumulated)
}

func TestHandleTaskRunsPipeline(t *testing.T) {
	spec := &types.PipelineSpec{
		PipelineID: "task",
		Components: []types.NodeSpec{
			{ID: "A", ToolType: "search", Params: map[string]any{"query": "golang"}},
		},
	}
	r := newTestRouter(t, staticPlanner(spec))
	sess := session.New(events.NewSink(64, events.Block))

	require.NoError(t, r.Handle(context.Background(), sess, "find golang articles and summarize them"))

	evts := drain(sess)
	assert.Equal(t, []string{"A"}, toolStartOrder(evts))
	assert.Equal(t, events.TypeResult, terminal(t, evts).Type)
}

func TestHandlePlannerFailureEmitsBadSpec(t *testing.T) {
	r := newTestRouter(t, PlannerFunc(func(context.Context, string) (*types.PipelineSpec, error) {
		return nil, errors.New("parser unavailable")
	}))
	sess := session.New(events.NewSink(64, events.Block))

	err := r.Handle(context.Background(), sess, "do a long research task about something")
	require.Error(t, err)

	final := terminal(t, drain(sess))
	assert.Equal(t, events.TypeError, final.Type)
	assert.Equal(t, string(events.KindBadSpec), final.Data["kind"])
}

func TestRouterWithoutChatHandlerAlwaysTasks(t *testing.T) {
	tr := newTestRun(t)
	r, err := NewRouter(tr.engine, staticPlanner(nil), nil, config.Default().Router)
	require.NoError(t, err)
	assert.Equal(t, ModeTask, r.Classify("hello"))
}
