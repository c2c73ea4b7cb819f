package observers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/weathermcp/pkg/metrics"
	"github.com/harunnryd/weathermcp/pkg/redact"
)

const timelineSuffix = ".jsonl"

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// TimelineObserver appends every event of a session to <dir>/<session>.jsonl.
// Events without a session id are ignored.
type TimelineObserver struct {
	dir string

	mu       sync.Mutex
	sessions map[string]*timelineFile
}

type timelineFile struct {
	f     *os.File
	enc   *json.Encoder
	lines int
}

type timelineEntry struct {
	Time      time.Time         `json:"time"`
	Event     string            `json:"event"`
	SessionID string            `json:"session_id"`
	QueryID   string            `json:"query_id,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	Fields    map[string]any    `json:"fields,omitempty"`
}

func NewTimelineObserver(dir string) *TimelineObserver {
	return &TimelineObserver{dir: dir, sessions: make(map[string]*timelineFile)}
}

func (o *TimelineObserver) RecordEvent(ev metrics.MetricsEvent) {
	sessionID := ev.Tag(metrics.TagSessionID)
	if sanitizeID(sessionID) == "" || strings.TrimSpace(o.dir) == "" {
		return
	}
	entry := timelineEntry{
		Time:      ev.Time.UTC(),
		Event:     ev.Name,
		SessionID: sessionID,
		QueryID:   ev.Tag(metrics.TagQueryID),
		Fields:    sanitizeFields(ev.Fields),
	}
	for k, v := range ev.Tags {
		if k == metrics.TagSessionID || k == metrics.TagQueryID {
			continue
		}
		if entry.Tags == nil {
			entry.Tags = make(map[string]string, len(ev.Tags))
		}
		entry.Tags[k] = v
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	tf, err := o.openLocked(sessionID)
	if err != nil {
		return
	}
	if tf.enc.Encode(entry) == nil {
		tf.lines++
	}
}

// Lines returns how many entries were written for a session since it was opened.
func (o *TimelineObserver) Lines(sessionID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if tf := o.sessions[sanitizeID(sessionID)]; tf != nil {
		return tf.lines
	}
	return 0
}

// Path returns the trace file for a session.
func (o *TimelineObserver) Path(sessionID string) string {
	return filepath.Join(o.dir, sanitizeID(sessionID)+timelineSuffix)
}

func (o *TimelineObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var errs []error
	for id, tf := range o.sessions {
		errs = append(errs, tf.f.Close())
		delete(o.sessions, id)
	}
	return errors.Join(errs...)
}

func (o *TimelineObserver) openLocked(sessionID string) (*timelineFile, error) {
	key := sanitizeID(sessionID)
	if tf := o.sessions[key]; tf != nil {
		return tf, nil
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(o.Path(sessionID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	tf := &timelineFile{f: f, enc: json.NewEncoder(f)}
	o.sessions[key] = tf
	return tf, nil
}

func sanitizeID(id string) string {
	return unsafeIDChars.ReplaceAllString(strings.TrimSpace(id), "_")
}

// sanitizeFields copies fields, passing string values through redact.
func sanitizeFields(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			v = redact.Text(s)
		}
		out[k] = v
	}
	return out
}

var _ metrics.Observer = (*TimelineObserver)(nil)
