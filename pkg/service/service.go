// Package service implements the process-wide Service registry: three
// disjoint namespaces (pipelines, connections, lookups), address-based
// Locate, and the startup/shutdown ordering from
// `original_source/bspump/service.py`'s `initialize`/`finalize` — await
// every Lookup's initial load, then start every pipeline; stop every
// pipeline concurrently, then close every connection.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/streampump/pumpcore/pkg/connection"
	"github.com/streampump/pumpcore/pkg/lookup"
	"github.com/streampump/pumpcore/pkg/pipeline"
	"github.com/streampump/pumpcore/pkg/pump"
)

// Service is the process-wide directory of Pipelines, Connections and
// Lookups.
type Service struct {
	app *pump.Application

	mu          sync.RWMutex
	pipelines   map[string]*pipeline.Pipeline
	connections map[string]connection.Connection
	lookups     map[string]lookup.Lookup
}

// New returns an empty Service bound to app.
func New(app *pump.Application) *Service {
	return &Service{
		app:         app,
		pipelines:   make(map[string]*pipeline.Pipeline),
		connections: make(map[string]connection.Connection),
		lookups:     make(map[string]lookup.Lookup),
	}
}

// AddPipeline registers p, rejecting a duplicate Id with a hard
// *pump.ConfigError.
func (s *Service) AddPipeline(p *pipeline.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.pipelines[p.Id()]; dup {
		return pump.NewConfigError(p.Id(), "duplicate pipeline id")
	}
	s.pipelines[p.Id()] = p
	return nil
}

// AddConnection registers c, rejecting a duplicate Id.
func (s *Service) AddConnection(c connection.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.connections[c.Id()]; dup {
		return pump.NewConfigError(c.Id(), "duplicate connection id")
	}
	s.connections[c.Id()] = c
	return nil
}

// AddLookup registers l, rejecting a duplicate Id.
func (s *Service) AddLookup(l lookup.Lookup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.lookups[l.Id()]; dup {
		return pump.NewConfigError(l.Id(), "duplicate lookup id")
	}
	s.lookups[l.Id()] = l
	return nil
}

// Pipeline returns the registered pipeline by id.
func (s *Service) Pipeline(id string) (*pipeline.Pipeline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pipelines[id]
	return p, ok
}

// Connection returns the registered connection by id.
func (s *Service) Connection(id string) (connection.Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.connections[id]
	return c, ok
}

// Lookup returns the registered lookup by id.
func (s *Service) Lookup(id string) (lookup.Lookup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lookups[id]
	return l, ok
}

// ParseAddress implements the address grammar: `pipeline` on its own
// names the pipeline; `pipeline.processor` names a chain stage;
// `pipeline.*source` (leading `*` in the tail) names a source. The
// address splits on the first dot only, so a processor id may itself
// contain dots.
func ParseAddress(addr string) (pipelineId, tail string, isSource bool) {
	idx := strings.Index(addr, ".")
	if idx < 0 {
		return addr, "", false
	}
	pipelineId = addr[:idx]
	rest := addr[idx+1:]
	if strings.HasPrefix(rest, "*") {
		return pipelineId, rest[1:], true
	}
	return pipelineId, rest, false
}

// Locate resolves addr to a Pipeline, a processor chain Stage, or a
// Source, per ParseAddress's grammar.
func (s *Service) Locate(addr string) (any, error) {
	pipelineId, tail, isSource := ParseAddress(addr)
	p, ok := s.Pipeline(pipelineId)
	if !ok {
		return nil, pump.NewConfigError(addr, fmt.Sprintf("no such pipeline %q", pipelineId))
	}
	if tail == "" {
		return p, nil
	}
	if isSource {
		src, ok := p.LocateSource(tail)
		if !ok {
			return nil, pump.NewConfigError(addr, fmt.Sprintf("pipeline %q has no source %q", pipelineId, tail))
		}
		return src, nil
	}
	proc, ok := p.LocateProcessor(tail)
	if !ok {
		return nil, pump.NewConfigError(addr, fmt.Sprintf("pipeline %q has no processor %q", pipelineId, tail))
	}
	return proc, nil
}

// Start opens every registered Connection, awaits every registered
// Lookup's initial Load, and only then starts every pipeline.
// Connections open first because a Lookup or pipeline stage may resolve
// one by id (app.Connection) and call through it during its own Load —
// a redis-backed Lookup.Fetcher, for instance, needs its Connection's
// client already dialed before FetchAll runs. Within that ordering this
// still preserves invariant 6 of the testable properties ("pipeline
// start is never observed before every lookup's initial load has
// completed"), just with Connection.Open moved ahead of it instead of
// the original service.py's initialize(), which never had a Connection
// phase of its own to order against.
func (s *Service) Start(loop *pump.Loop) error {
	s.mu.RLock()
	lookups := make([]lookup.Lookup, 0, len(s.lookups))
	for _, l := range s.lookups {
		lookups = append(lookups, l)
	}
	connections := make([]connection.Connection, 0, len(s.connections))
	for _, c := range s.connections {
		connections = append(connections, c)
	}
	pipelines := make([]*pipeline.Pipeline, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		pipelines = append(pipelines, p)
	}
	s.mu.RUnlock()

	for _, c := range connections {
		if err := c.Open(loop.Ctx); err != nil {
			return fmt.Errorf("service: open connection %s: %w", c.Id(), err)
		}
	}

	g, ctx := errgroup.WithContext(loop.Ctx)
	for _, l := range lookups {
		l := l
		g.Go(func() error { return l.Load(ctx) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("service: lookup load: %w", err)
	}

	for _, p := range pipelines {
		if err := p.Start(loop); err != nil {
			return fmt.Errorf("service: start pipeline %s: %w", p.Id(), err)
		}
	}
	return nil
}

// Shutdown stops every pipeline concurrently and awaits all, then closes
// every connection — the reverse of Start, mirroring `finalize()`.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	pipelines := make([]*pipeline.Pipeline, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		pipelines = append(pipelines, p)
	}
	connections := make([]connection.Connection, 0, len(s.connections))
	for _, c := range s.connections {
		connections = append(connections, c)
	}
	s.mu.RUnlock()

	var g errgroup.Group
	for _, p := range pipelines {
		p := p
		g.Go(func() error {
			p.Stop()
			return nil
		})
	}
	g.Wait()

	var firstErr error
	for _, c := range connections {
		if err := c.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("service: close connection %s: %w", c.Id(), err)
		}
	}
	return firstErr
}

// Snapshot returns a point-in-time introspection payload for every
// registered pipeline.
func (s *Service) Snapshot() []pipeline.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pipeline.Snapshot, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		out = append(out, p.Snapshot())
	}
	return out
}
