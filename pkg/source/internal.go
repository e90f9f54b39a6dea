package source

import (
	"context"
	"sync"

	"github.com/streampump/pumpcore/pkg/metrics"
)

// Processor is the slice of Pipeline an Internal source needs: the
// ability to push one event through it. Pipeline (package pipeline)
// implements this.
type Processor interface {
	Process(ctx context.Context, event any) error
}

// Internal is the Source half of pipeline-to-pipeline composition: an
// unbounded FIFO queue fed by PutNowait (typically from a Tee processor
// in another pipeline) and drained into the owning Pipeline's Process.
// The queue is backed by a mutex-guarded growable slice plus a
// broadcast channel rather than a buffered Go channel, since Go channels
// have a fixed capacity and this source's queue must never block a
// producer the way `put_nowait` never blocks in the original.
type Internal struct {
	*Base
	pipeline Processor

	mu     sync.Mutex
	buf    []any
	notify chan struct{}

	depth *metrics.Gauge
}

// NewInternal returns an Internal source identified by id, draining into
// pipeline. If registry is non-nil, a "<id>.queue.depth" gauge tracks
// the current backlog.
func NewInternal(id string, pipeline Processor, registry *metrics.Registry) *Internal {
	in := &Internal{
		pipeline: pipeline,
		notify:   make(chan struct{}, 1),
	}
	if registry != nil {
		in.depth = registry.CreateGauge(id + ".queue.depth")
	}
	in.Base = NewBase(id, in.run)
	return in
}

// PutNowait appends event to the queue without blocking, waking the
// drain loop if it is idle.
func (in *Internal) PutNowait(event any) {
	in.mu.Lock()
	in.buf = append(in.buf, event)
	depth := len(in.buf)
	in.mu.Unlock()
	if in.depth != nil {
		in.depth.Set(float64(depth))
	}
	select {
	case in.notify <- struct{}{}:
	default:
	}
}

func (in *Internal) pop() (any, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.buf) == 0 {
		return nil, false
	}
	event := in.buf[0]
	in.buf = in.buf[1:]
	if in.depth != nil {
		in.depth.Set(float64(len(in.buf)))
	}
	return event, true
}

func (in *Internal) run(ctx context.Context) {
	for {
		event, ok := in.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-in.notify:
				continue
			}
		}
		if err := in.pipeline.Process(ctx, event); err != nil {
			if ctx.Err() != nil {
				return
			}
		}
	}
}
