package observers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/weathermcp/pkg/metrics"
	"github.com/harunnryd/weathermcp/pkg/redact"
)

func event(name string, at time.Time, fields map[string]any) metrics.MetricsEvent {
	return metrics.MetricsEvent{
		Name:   name,
		Time:   at,
		Tags:   map[string]string{metrics.TagSessionID: "sess/1", metrics.TagQueryID: "q-1"},
		Fields: fields,
	}
}

func TestTimelineObserverWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	obs := NewTimelineObserver(dir)

	obs.RecordEvent(event(metrics.EventQueryStart, time.Now(), map[string]any{"query": "alerts in CA"}))
	obs.RecordEvent(event(metrics.EventQueryDone, time.Now(), nil))
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventQueryStart})
	if got := obs.Lines("sess/1"); got != 2 {
		t.Fatalf("expected 2 lines written, got %d", got)
	}
	if err := obs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "sess_1.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var first timelineEntry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Event != metrics.EventQueryStart || first.SessionID != "sess/1" || first.QueryID != "q-1" {
		t.Fatalf("unexpected entry %+v", first)
	}
	if first.Fields["query"] != "alerts in CA" {
		t.Fatalf("expected query field, got %v", first.Fields)
	}
}

func TestTimelineObserverRedactsFields(t *testing.T) {
	redact.SetEnabled(true)
	t.Cleanup(func() { redact.SetEnabled(false) })
	dir := t.TempDir()
	obs := NewTimelineObserver(dir)
	obs.RecordEvent(event(metrics.EventModelRequest, time.Now(), map[string]any{"body": "Bearer secret-token"}))
	_ = obs.Close()

	b, err := os.ReadFile(obs.Path("sess/1"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if strings.Contains(string(b), "secret-token") {
		t.Fatalf("token leaked into timeline: %s", b)
	}
}

func TestUsageObserverTotalsAndWrite(t *testing.T) {
	dir := t.TempDir()
	obs := NewUsageObserver(dir)
	now := time.Now()
	obs.RecordEvent(event(metrics.EventModelResponse, now, map[string]any{"tokens": 120}))
	obs.RecordEvent(event(metrics.EventToolResult, now, nil))
	obs.RecordEvent(event(metrics.EventModelResponse, now, map[string]any{"tokens": float64(30)}))
	obs.RecordEvent(event(metrics.EventQueryDone, now, nil))
	obs.RecordEvent(event(metrics.EventQueryFailed, now, nil))

	sum := obs.Summary("sess/1")
	if sum.Tokens != 150 || sum.ModelCalls != 2 || sum.ToolCalls != 1 {
		t.Fatalf("unexpected totals %+v", sum)
	}
	if sum.Queries != 2 || sum.FailedQueries != 1 {
		t.Fatalf("unexpected query counts %+v", sum)
	}
	if err := obs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "sess_1.usage.json"))
	if err != nil {
		t.Fatalf("read usage: %v", err)
	}
	var written UsageSummary
	if err := json.Unmarshal(b, &written); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if written.Tokens != 150 || written.RecordedAtUTC == "" {
		t.Fatalf("unexpected written summary %+v", written)
	}
}

func TestUsageObserverWithoutDir(t *testing.T) {
	obs := NewUsageObserver("")
	obs.RecordEvent(event(metrics.EventQueryDone, time.Now(), nil))
	if err := obs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if obs.Summary("missing").Queries != 0 {
		t.Fatalf("expected empty summary")
	}
}

func TestLatencyObserverLogsOnCompletion(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	obs := NewLatencyObserver(log)
	start := time.Now()
	obs.RecordEvent(event(metrics.EventQueryStart, start, nil))
	obs.RecordEvent(event(metrics.EventModelRequest, start, nil))
	obs.RecordEvent(event(metrics.EventModelResponse, start.Add(40*time.Millisecond), nil))
	obs.RecordEvent(event(metrics.EventToolCall, start.Add(50*time.Millisecond), nil))
	obs.RecordEvent(event(metrics.EventToolResult, start.Add(70*time.Millisecond), nil))
	if obs.Pending() != 1 {
		t.Fatalf("expected one pending query")
	}
	obs.RecordEvent(event(metrics.EventQueryDone, start.Add(100*time.Millisecond), nil))
	if obs.Pending() != 0 {
		t.Fatalf("expected query to be released")
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if entry["total_ms"] != float64(100) || entry["model_ms"] != float64(40) || entry["tool_ms"] != float64(20) {
		t.Fatalf("unexpected latency entry %v", entry)
	}
}

func TestMultiObserverFansOut(t *testing.T) {
	a := metrics.NewMemoryObserver()
	b := metrics.NewMemoryObserver()
	multi := NewMultiObserver(a, nil, b)
	multi.RecordEvent(event(metrics.EventQueryStart, time.Now(), nil))
	if a.Count(metrics.EventQueryStart) != 1 || b.Count(metrics.EventQueryStart) != 1 {
		t.Fatalf("expected both observers to receive the event")
	}
}

type closingObserver struct{ closed *bool }

func (c closingObserver) RecordEvent(metrics.MetricsEvent) {}
func (c closingObserver) Close() error { *c.closed = true; return nil }

func TestMultiObserverClosesMembers(t *testing.T) {
	var closed bool
	multi := NewMultiObserver(metrics.NewMemoryObserver(), closingObserver{closed: &closed})
	if err := multi.Close(); err != nil || !closed {
		t.Fatalf("expected closer member to be closed, err=%v", err)
	}
}

func TestLoggerObserverSkipsBelowDebug(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLoggerObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	obs.RecordEvent(event(metrics.EventToolCall, time.Now(), nil))
	if buf.Len() != 0 {
		t.Fatalf("expected no output at info level")
	}
	buf.Reset()
	obs = NewLoggerObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	obs.RecordEvent(event(metrics.EventToolCall, time.Now(), nil))
	if !strings.Contains(buf.String(), "msg=tool_call") || !strings.Contains(buf.String(), "component=metrics") {
		t.Fatalf("expected event in log, got %q", buf.String())
	}
}

func TestPurgeArtifacts(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.jsonl")
	fresh := filepath.Join(dir, "fresh.usage.json")
	notes := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, notes} {
		if err := os.WriteFile(p, []byte("{}\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	past := time.Now().Add(-72 * time.Hour)
	for _, p := range []string{old, notes} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	removed, err := PurgeArtifacts(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	for _, p := range []string{fresh, notes} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("%s should remain: %v", p, err)
		}
	}
}

func TestPurgeArtifactsMissingDir(t *testing.T) {
	removed, err := PurgeArtifacts(filepath.Join(t.TempDir(), "absent"), time.Hour)
	if err != nil || removed != 0 {
		t.Fatalf("expected no-op for missing dir, got %d, %v", removed, err)
	}
}
