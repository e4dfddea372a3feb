package prometheus

import (
	"sync"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/events"
)

// MetricsListener translates engine events into Prometheus metrics. It
// derives durations from event timestamps: a request's first event opens
// the pipeline window, tool_start opens a node window and the terminal
// event closes everything. Register it on the bus with SubscribeAll.
type MetricsListener struct {
	mu sync.Mutex

	// pipelineStart holds the first-seen timestamp per request.
	pipelineStart map[string]float64
	// nodeStart holds tool type and start timestamp per request and node.
	nodeStart map[nodeKey]nodeState
}

type nodeKey struct {
	requestID string
	nodeID    string
}

type nodeState struct {
	tool    string
	started float64
}

// NewMetricsListener creates a metrics listener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{
		pipelineStart: make(map[string]float64),
		nodeStart:     make(map[nodeKey]nodeState),
	}
}

// Handle processes one event. It is safe for concurrent use.
func (l *MetricsListener) Handle(event *events.Event) {
	if event == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	RecordEvent(string(event.Type))

	if _, seen := l.pipelineStart[event.RequestID]; !seen {
		l.pipelineStart[event.RequestID] = event.Timestamp
		RecordPipelineStart()
	}

	switch event.Type {
	case events.TypeToolStart:
		l.nodeStart[l.keyOf(event)] = nodeState{
			tool:    stringField(event.Data, "tool_type"),
			started: event.Timestamp,
		}

	case events.TypeToolResult:
		key := l.keyOf(event)
		if state, ok := l.nodeStart[key]; ok {
			delete(l.nodeStart, key)
			RecordNode(state.tool, stringField(event.Data, "status"), event.Timestamp-state.started)
		}

	case events.TypeStatus:
		if issue, ok := event.Data["dependency_issue"].(map[string]any); ok {
			RecordDependencyIssue(stringField(issue, "kind"))
		}

	case events.TypeResult, events.TypeError:
		l.closePipeline(event)
	}
}

// closePipeline records the pipeline duration and clears request state.
func (l *MetricsListener) closePipeline(event *events.Event) {
	started, ok := l.pipelineStart[event.RequestID]
	if !ok {
		return
	}
	delete(l.pipelineStart, event.RequestID)
	for key := range l.nodeStart {
		if key.requestID == event.RequestID {
			delete(l.nodeStart, key)
		}
	}

	status := "success"
	if event.Type == events.TypeError {
		status = "error"
	}
	RecordPipelineEnd(status, event.Timestamp-started)
}

func (l *MetricsListener) keyOf(event *events.Event) nodeKey {
	nodeID := stringField(event.Data, "node_id")
	if nodeID == "" {
		nodeID = event.Step
	}
	return nodeKey{requestID: event.RequestID, nodeID: nodeID}
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}
