package observers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/weathermcp/pkg/metrics"
)

const usageSuffix = ".usage.json"

type UsageSummary struct {
	SessionID     string `json:"session_id"`
	Queries       int    `json:"queries"`
	FailedQueries int    `json:"failed_queries"`
	ModelCalls    int    `json:"model_calls"`
	ToolCalls     int    `json:"tool_calls"`
	Tokens        int    `json:"llm_tokens"`
	RecordedAtUTC string `json:"recorded_at_utc,omitempty"`
}

// UsageObserver accumulates per-session counts and token usage. Close writes
// one <session>.usage.json per session when dir is set.
type UsageObserver struct {
	dir   string
	mu    sync.Mutex
	stats map[string]*UsageSummary
}

func NewUsageObserver(dir string) *UsageObserver {
	return &UsageObserver{dir: dir, stats: make(map[string]*UsageSummary)}
}

func (o *UsageObserver) RecordEvent(ev metrics.MetricsEvent) {
	id := ev.Tag(metrics.TagSessionID)
	if id == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	stat := o.stats[id]
	if stat == nil {
		stat = &UsageSummary{SessionID: id}
		o.stats[id] = stat
	}
	switch ev.Name {
	case metrics.EventQueryDone:
		stat.Queries++
	case metrics.EventQueryFailed:
		stat.Queries++
		stat.FailedQueries++
	case metrics.EventModelResponse:
		stat.ModelCalls++
		stat.Tokens += intField(ev.Fields, "tokens")
	case metrics.EventToolResult:
		stat.ToolCalls++
	}
}

// Summary returns a copy of the totals for a session.
func (o *UsageObserver) Summary(sessionID string) UsageSummary {
	o.mu.Lock()
	defer o.mu.Unlock()
	if stat := o.stats[sessionID]; stat != nil {
		return *stat
	}
	return UsageSummary{SessionID: sessionID}
}

func (o *UsageObserver) Close() error {
	if strings.TrimSpace(o.dir) == "" {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return err
	}
	var errOut error
	for id, stat := range o.stats {
		stat.RecordedAtUTC = time.Now().UTC().Format(time.RFC3339)
		b, err := json.MarshalIndent(stat, "", "  ")
		if err != nil {
			errOut = errors.Join(errOut, err)
			continue
		}
		path := filepath.Join(o.dir, sanitizeID(id)+usageSuffix)
		if err := os.WriteFile(path, b, 0o644); err != nil {
			errOut = errors.Join(errOut, err)
		}
	}
	return errOut
}

func intField(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

var _ metrics.Observer = (*UsageObserver)(nil)
