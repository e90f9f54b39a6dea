// Package file adapts the teacher's glob-based FileSource
// (`_examples/conduix-conduix/pipeline-core/pkg/source/file.go`) into a source.Source that reads
// newline-delimited JSON files once at Start and then stops, plus a
// processor.Sink that appends JSON lines to a file.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/streampump/pumpcore/pkg/config"
	"github.com/streampump/pumpcore/pkg/processor"
	"github.com/streampump/pumpcore/pkg/pump"
	"github.com/streampump/pumpcore/pkg/source"
)

func init() {
	source.Register("file", NewSource)
	processor.Register("file", NewSink)
}

// Source reads every line of every path matching a glob pattern as one
// JSON event, then stops — a bounded, one-shot Source rather than a
// polling one, matching the teacher's "read what's there" semantics.
type Source struct {
	*source.Base
	paths []string
}

// NewSource builds a file Source. Recognized options: path (a single
// glob pattern; if it matches nothing, path is used as a literal file
// name).
func NewSource(app *pump.Application, id string, target source.Processor, options map[string]string) (source.Source, error) {
	opts := config.Merge(nil, options)
	if opts["path"] == "" {
		return nil, pump.NewConfigError(id, "file source requires path")
	}
	matches, err := filepath.Glob(opts["path"])
	if err != nil {
		return nil, pump.NewConfigError(id, fmt.Sprintf("invalid glob pattern: %v", err))
	}
	if len(matches) == 0 {
		matches = []string{opts["path"]}
	}

	s := &Source{paths: matches}
	s.Base = source.NewBase(id, func(ctx context.Context) { s.run(ctx, target) })
	return s, nil
}

func (s *Source) run(ctx context.Context, target source.Processor) {
	for _, path := range s.paths {
		if err := s.readFile(ctx, path, target); err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Source) readFile(ctx context.Context, path string, target source.Processor) error {
	f, err := os.Open(path)
	if err != nil {
		return pump.NewTransportError(s.ID(), err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var data map[string]any
		if err := json.Unmarshal(line, &data); err != nil {
			data = map[string]any{"line": string(line)}
		}
		data["_file"] = path
		if err := target.Process(ctx, data); err != nil && ctx.Err() != nil {
			return err
		}
	}
	return scanner.Err()
}

// Sink appends each event, JSON-encoded one per line, to a file.
type Sink struct {
	id string
	f  *os.File
	w  *bufio.Writer
}

// NewSink builds a file Sink. Recognized options: path.
func NewSink(app *pump.Application, id string, options map[string]string) (pump.Stage, error) {
	opts := config.Merge(nil, options)
	if opts["path"] == "" {
		return nil, pump.NewConfigError(id, "file sink requires path")
	}
	f, err := os.OpenFile(opts["path"], os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, pump.NewConfigError(id, fmt.Sprintf("open file: %v", err))
	}
	return &Sink{id: id, f: f, w: bufio.NewWriter(f)}, nil
}

func (s *Sink) ID() string { return s.id }

func (s *Sink) Write(ctx pump.Context, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return pump.Soft(s.id, fmt.Errorf("marshal event: %w", err))
	}
	if _, err := s.w.Write(payload); err != nil {
		return pump.NewTransportError(s.id, err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return pump.NewTransportError(s.id, err)
	}
	return s.w.Flush()
}
