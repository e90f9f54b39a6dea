package service

import (
	"context"
	"testing"
	"time"

	"github.com/streampump/pumpcore/pkg/pipeline"
	"github.com/streampump/pumpcore/pkg/processor"
	"github.com/streampump/pumpcore/pkg/pump"
	"github.com/streampump/pumpcore/pkg/source"
)

func TestParseAddress(t *testing.T) {
	cases := []struct {
		addr         string
		pipelineId   string
		tail         string
		isSource     bool
	}{
		{"pipe1", "pipe1", "", false},
		{"pipe1.proc1", "pipe1", "proc1", false},
		{"pipe1.*src1", "pipe1", "src1", true},
	}
	for _, c := range cases {
		pid, tail, isSource := ParseAddress(c.addr)
		if pid != c.pipelineId || tail != c.tail || isSource != c.isSource {
			t.Fatalf("ParseAddress(%q) = %q, %q, %v; want %q, %q, %v",
				c.addr, pid, tail, isSource, c.pipelineId, c.tail, c.isSource)
		}
	}
}

func TestDuplicatePipelineRejected(t *testing.T) {
	app := pump.NewApplication(nil)
	svc := New(app)
	p1 := pipeline.New(app, "dup")
	p2 := pipeline.New(app, "dup")
	if err := svc.AddPipeline(p1); err != nil {
		t.Fatalf("AddPipeline(p1): %v", err)
	}
	if err := svc.AddPipeline(p2); err == nil {
		t.Fatalf("expected error registering duplicate pipeline id")
	}
}

type fakeLookup struct {
	id      string
	loaded  chan struct{}
	loadDur time.Duration
}

func (f *fakeLookup) Id() string { return f.id }
func (f *fakeLookup) Load(ctx context.Context) error {
	time.Sleep(f.loadDur)
	close(f.loaded)
	return nil
}
func (f *fakeLookup) Len() int                                   { return 0 }
func (f *fakeLookup) Get(ctx context.Context, key string) (any, bool) { return nil, false }
func (f *fakeLookup) Keys() []string                              { return nil }

type recordingSource struct {
	id       string
	loadedCh chan struct{}
	startOK  *bool
}

func (s *recordingSource) ID() string { return s.id }
func (s *recordingSource) Start(*pump.Loop) error {
	select {
	case <-s.loadedCh:
		*s.startOK = true
	default:
		*s.startOK = false
	}
	return nil
}
func (s *recordingSource) Stop()                    {}
func (s *recordingSource) Restart(*pump.Loop) error { return nil }

type sinkStage struct{}

func (sinkStage) ID() string                                    { return "sink" }
func (sinkStage) Write(ctx pump.Context, event any) error { return nil }

var _ processor.Sink = sinkStage{}

func TestLookupLoadsBeforePipelineStarts(t *testing.T) {
	app := pump.NewApplication(nil)
	svc := New(app)

	lk := &fakeLookup{id: "lk1", loaded: make(chan struct{}), loadDur: 20 * time.Millisecond}
	if err := svc.AddLookup(lk); err != nil {
		t.Fatalf("AddLookup: %v", err)
	}

	started := false
	src := &recordingSource{id: "src", loadedCh: lk.loaded, startOK: &started}
	p := pipeline.New(app, "p1")
	if err := p.Build([]source.Source{src}, sinkStage{}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := svc.AddPipeline(p); err != nil {
		t.Fatalf("AddPipeline: %v", err)
	}

	loop := app.Run()
	defer app.Shutdown()
	if err := svc.Start(loop); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !started {
		t.Fatalf("pipeline source started before the lookup's initial load completed")
	}
}

func TestLocateResolvesPipelineProcessorAndSource(t *testing.T) {
	app := pump.NewApplication(nil)
	svc := New(app)
	started := false
	src := &recordingSource{id: "src1", loadedCh: make(chan struct{}), startOK: &started}
	close(src.loadedCh)
	p := pipeline.New(app, "pipe1")
	if err := p.Build([]source.Source{src}, sinkStage{}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := svc.AddPipeline(p); err != nil {
		t.Fatalf("AddPipeline: %v", err)
	}

	if got, err := svc.Locate("pipe1"); err != nil || got != p {
		t.Fatalf("Locate(pipe1) = %v, %v", got, err)
	}
	if got, err := svc.Locate("pipe1.sink"); err != nil || got == nil {
		t.Fatalf("Locate(pipe1.sink) = %v, %v", got, err)
	}
	if got, err := svc.Locate("pipe1.*src1"); err != nil || got == nil {
		t.Fatalf("Locate(pipe1.*src1) = %v, %v", got, err)
	}
	if _, err := svc.Locate("missing"); err == nil {
		t.Fatalf("expected error for unknown pipeline")
	}
}
