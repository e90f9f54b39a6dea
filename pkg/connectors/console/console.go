// Package console is the simplest shipped Sink: it writes each event as a
// JSON line to stdout, the Go analogue of the teacher's stub/debug sink
// used in example pipelines.
package console

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/streampump/pumpcore/pkg/processor"
	"github.com/streampump/pumpcore/pkg/pump"
)

func init() {
	processor.Register("console", NewSink)
}

// Sink writes events to stdout, one JSON object per line.
type Sink struct {
	id string
	mu sync.Mutex
	w  *bufio.Writer
}

// NewSink builds a console Sink. No options are required.
func NewSink(app *pump.Application, id string, options map[string]string) (pump.Stage, error) {
	return &Sink{id: id, w: bufio.NewWriter(os.Stdout)}, nil
}

func (s *Sink) ID() string { return s.id }

func (s *Sink) Write(ctx pump.Context, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return pump.Soft(s.id, fmt.Errorf("marshal event: %w", err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(payload); err != nil {
		return pump.NewTransportError(s.id, err)
	}
	s.w.WriteByte('\n')
	return s.w.Flush()
}
