package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/weathermcp/pkg/metrics"
)

// LatencyObserver logs a per-query timing breakdown once the query ends.
type LatencyObserver struct {
	mu     sync.Mutex
	traces map[string]*trace
	log    *slog.Logger
}

type trace struct {
	start        time.Time
	modelStarted time.Time
	toolStarted  time.Time
	model        time.Duration
	tools        time.Duration
	modelCalls   int
	toolCalls    int
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		traces: make(map[string]*trace),
		log:    log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	queryID := ev.Tag(metrics.TagQueryID)
	if queryID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.traces[queryID]
	if t == nil {
		t = &trace{start: ev.Time}
		o.traces[queryID] = t
	}
	switch ev.Name {
	case metrics.EventModelRequest:
		t.modelStarted = ev.Time
	case metrics.EventModelResponse:
		if !t.modelStarted.IsZero() {
			t.model += ev.Time.Sub(t.modelStarted)
			t.modelStarted = time.Time{}
		}
		t.modelCalls++
	case metrics.EventToolCall:
		t.toolStarted = ev.Time
	case metrics.EventToolResult:
		if !t.toolStarted.IsZero() {
			t.tools += ev.Time.Sub(t.toolStarted)
			t.toolStarted = time.Time{}
		}
		t.toolCalls++
	case metrics.EventQueryDone, metrics.EventQueryFailed:
		o.log.Info("query latency",
			"query_id", queryID,
			"session_id", ev.Tag(metrics.TagSessionID),
			"status", ev.Name,
			"total_ms", ev.Time.Sub(t.start).Milliseconds(),
			"model_ms", t.model.Milliseconds(),
			"tool_ms", t.tools.Milliseconds(),
			"model_calls", t.modelCalls,
			"tool_calls", t.toolCalls,
		)
		delete(o.traces, queryID)
	}
}

// Pending returns the number of queries still being tracked.
func (o *LatencyObserver) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.traces)
}
