// Package processor defines the three event-transformation stage
// contracts the pipeline chain walker dispatches to — Processor,
// Generator and Sink — plus the lazy Seq iterator a Generator expands
// into and the Tee processor used for pipeline-to-pipeline composition.
//
// The three contracts are distinguished by method name (Process /
// Generate / Write) rather than by a shared method with a tagged return,
// so the chain walker can recover which kind a stage is with a plain
// Go type-switch instead of reflecting on a returned union value.
package processor

import (
	"github.com/streampump/pumpcore/pkg/pump"
)

// Processor transforms one event into the next, or drops it by
// returning a nil event and a nil error.
type Processor interface {
	pump.Stage
	Process(ctx pump.Context, event any) (any, error)
}

// Generator transforms one event into a lazy, finite sequence of
// sub-events, opening a new chain depth. A Generator must not itself
// call a Pipeline's Process.
type Generator interface {
	pump.Stage
	Generate(ctx pump.Context, event any) (Seq, error)
}

// Sink consumes an event and terminates the chain.
type Sink interface {
	pump.Stage
	Write(ctx pump.Context, event any) error
}

// Seq is a pull-style lazy iterator over the sub-events a Generator
// produces. It is deliberately not a Go 1.23 range-over-func iterator so
// the module keeps building on the teacher's Go 1.21 floor.
type Seq interface {
	// Next returns the next sub-event. ok is false once the sequence is
	// exhausted; err stops iteration early and is routed to the
	// pipeline's error handling the same as any processor error.
	Next() (event any, ok bool, err error)
}

// sliceSeq adapts a pre-built slice of events to Seq.
type sliceSeq struct {
	events []any
	i      int
}

// FromSlice returns a Seq that yields each element of events in order.
func FromSlice(events []any) Seq { return &sliceSeq{events: events} }

func (s *sliceSeq) Next() (any, bool, error) {
	if s.i >= len(s.events) {
		return nil, false, nil
	}
	v := s.events[s.i]
	s.i++
	return v, true, nil
}

// FuncSeq adapts a pull function directly to Seq, for generators that
// want to compute sub-events on demand rather than materialising a
// slice up front.
type FuncSeq func() (event any, ok bool, err error)

func (f FuncSeq) Next() (any, bool, error) { return f() }
