package pump

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LogRecord is a compact, JSON-friendly snapshot of one log line, shaped
// for Pipeline.Snapshot rather than for console rendering.
type LogRecord struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// RingHandler is an slog.Handler that keeps only the last size records in
// memory and bumps warning/error counters as matching records pass
// through, exactly the bookkeeping the original pipeline's own logger
// subclass did in its handle() override. Pipelines attach one RingHandler
// per instance so their REST/diagnostic snapshot can show recent history
// without a log aggregator.
type RingHandler struct {
	mu      sync.Mutex
	size    int
	records []LogRecord
	start   int
	count   int
	onWarn  func()
	onError func()
	attrs   []slog.Attr
	group   string
}

// NewRingHandler returns a handler retaining the most recent size log
// records. onWarn/onError, if non-nil, are called whenever a record at
// that level (or, for onError, above) is handled — the hook a Pipeline
// uses to drive its warning/error metric counters purely from log
// traffic, the same single-source-of-truth bookkeeping the original
// pipeline's logger subclass performed in its handle() override.
func NewRingHandler(size int, onWarn, onError func()) *RingHandler {
	if size <= 0 {
		size = 50
	}
	return &RingHandler{
		size:    size,
		records: make([]LogRecord, size),
		onWarn:  onWarn,
		onError: onError,
	}
}

func (h *RingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *RingHandler) Handle(_ context.Context, r slog.Record) error {
	rec := LogRecord{Time: r.Time, Level: r.Level.String(), Message: r.Message}
	if len(h.attrs) > 0 || r.NumAttrs() > 0 {
		rec.Attrs = make(map[string]any, len(h.attrs)+r.NumAttrs())
		for _, a := range h.attrs {
			rec.Attrs[a.Key] = a.Value.Any()
		}
		r.Attrs(func(a slog.Attr) bool {
			rec.Attrs[a.Key] = a.Value.Any()
			return true
		})
	}

	h.mu.Lock()
	idx := (h.start + h.count) % h.size
	h.records[idx] = rec
	if h.count < h.size {
		h.count++
	} else {
		h.start = (h.start + 1) % h.size
	}
	h.mu.Unlock()

	switch {
	case r.Level >= slog.LevelError && h.onError != nil:
		h.onError()
	case r.Level >= slog.LevelWarn && h.onWarn != nil:
		h.onWarn()
	}
	return nil
}

func (h *RingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *RingHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.group = name
	return &clone
}

// Snapshot returns the retained records, oldest first.
func (h *RingHandler) Snapshot() []LogRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]LogRecord, h.count)
	for i := 0; i < h.count; i++ {
		out[i] = h.records[(h.start+i)%h.size]
	}
	return out
}
