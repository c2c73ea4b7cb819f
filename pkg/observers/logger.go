package observers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"

	"github.com/harunnryd/weathermcp/pkg/metrics"
)

// LoggerObserver writes each event as one debug record, which is how
// requests, responses and tool calls show up on the operator console.
type LoggerObserver struct {
	log *slog.Logger
}

func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LoggerObserver{log: log.With(slog.String("component", "metrics"))}
}

func (o *LoggerObserver) RecordEvent(ev metrics.MetricsEvent) {
	ctx := context.Background()
	if !o.log.Enabled(ctx, slog.LevelDebug) {
		return
	}
	attrs := make([]slog.Attr, 0, len(ev.Tags)+len(ev.Fields))
	for _, k := range sortedKeys(ev.Tags) {
		if k == "component" {
			continue
		}
		attrs = append(attrs, slog.String(k, ev.Tags[k]))
	}
	fields := sanitizeFields(ev.Fields)
	for _, k := range sortedKeys(fields) {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	o.log.LogAttrs(ctx, slog.LevelDebug, ev.Name, attrs...)
}

// MultiObserver fans events out to several observers in order.
type MultiObserver struct {
	list []metrics.Observer
}

func NewMultiObserver(list ...metrics.Observer) *MultiObserver {
	kept := make([]metrics.Observer, 0, len(list))
	for _, obs := range list {
		if obs != nil {
			kept = append(kept, obs)
		}
	}
	return &MultiObserver{list: kept}
}

func (m *MultiObserver) RecordEvent(ev metrics.MetricsEvent) {
	for _, obs := range m.list {
		obs.RecordEvent(ev)
	}
}

// Close closes every member implementing io.Closer and joins their errors.
func (m *MultiObserver) Close() error {
	var errs []error
	for _, obs := range m.list {
		if c, ok := obs.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
