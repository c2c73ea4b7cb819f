package metrics

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"
)

// JSONLObserver streams events as JSON lines through a slog JSON handler.
// Each line carries a sequence number, the event name, and "tags" and
// "fields" groups with keys in sorted order.
type JSONLObserver struct {
	h   slog.Handler
	seq atomic.Uint64
}

func NewJSONLObserver(w io.Writer) *JSONLObserver {
	if w == nil {
		w = io.Discard
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && (a.Key == slog.LevelKey || a.Key == slog.MessageKey) {
				return slog.Attr{}
			}
			return a
		},
	})
	return &JSONLObserver{h: h}
}

func (o *JSONLObserver) RecordEvent(ev MetricsEvent) {
	attrs := make([]slog.Attr, 0, 6)
	attrs = append(attrs,
		slog.Uint64("seq", o.seq.Add(1)),
		slog.String("name", ev.Name),
		slog.Time("time", ev.Time),
	)
	if ev.Value != 0 {
		attrs = append(attrs, slog.Float64("value", ev.Value))
	}
	if len(ev.Tags) > 0 {
		attrs = append(attrs, slog.Group("tags", sortedArgs(ev.Tags)...))
	}
	if len(ev.Fields) > 0 {
		attrs = append(attrs, slog.Group("fields", sortedArgs(ev.Fields)...))
	}
	// A zero record time keeps the handler from writing its own clock.
	r := slog.NewRecord(time.Time{}, slog.LevelInfo, "", 0)
	r.AddAttrs(attrs...)
	_ = o.h.Handle(context.Background(), r)
}

func sortedArgs[V any](m map[string]V) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		args = append(args, k, m[k])
	}
	return args
}
