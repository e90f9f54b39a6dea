// Package metrics provides the small counter/gauge/duty-cycle registry
// every Pipeline publishes its own health numbers through, adapted from
// the counter bookkeeping in the teacher's executor.StatsCollector but
// generalized to the field-per-metric shape the pump runtime needs
// (Counter, Gauge and DutyCycle rather than one fixed statistics struct).
package metrics

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Counter is a monotonically increasing named value, such as the number
// of events a pipeline has accepted or dropped.
type Counter struct {
	name  string
	value atomic.Int64
}

// Add increments the counter by delta (delta may be negative to correct
// a prior over-count, though counters are conventionally non-decreasing).
func (c *Counter) Add(delta int64) { c.value.Add(delta) }

// Inc increments the counter by one.
func (c *Counter) Inc() { c.value.Inc() }

// Value returns the counter's current value.
func (c *Counter) Value() int64 { return c.value.Load() }

// Name returns the counter's registered name.
func (c *Counter) Name() string { return c.name }

// Gauge is a named value that can move in either direction, such as the
// current queue depth of an InternalSource.
type Gauge struct {
	name  string
	value atomic.Float64
}

// Set stores v as the gauge's current value.
func (g *Gauge) Set(v float64) { g.value.Store(v) }

// Value returns the gauge's current value.
func (g *Gauge) Value() float64 { return g.value.Load() }

// Name returns the gauge's registered name.
func (g *Gauge) Name() string { return g.name }

// DutyCycle tracks the fraction of wall-clock time a component spends
// busy versus idle, the same "ready ratio" the original pipeline exposed
// via its duty-cycle gauge so operators could see throttling pressure.
type DutyCycle struct {
	mu       sync.Mutex
	name     string
	busySum  time.Duration
	lastMark time.Time
	busy     bool
	window   time.Duration
	samples  []sample
}

type sample struct {
	at   time.Time
	busy time.Duration
	idle time.Duration
}

// NewDutyCycle returns a DutyCycle averaging over the given window.
func NewDutyCycle(name string, window time.Duration) *DutyCycle {
	if window <= 0 {
		window = time.Minute
	}
	return &DutyCycle{name: name, window: window, lastMark: time.Now()}
}

// MarkBusy transitions the duty cycle into the busy state as of now.
func (d *DutyCycle) MarkBusy() { d.mark(true) }

// MarkIdle transitions the duty cycle into the idle state as of now.
func (d *DutyCycle) MarkIdle() { d.mark(false) }

func (d *DutyCycle) mark(busy bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(d.lastMark)
	if d.busy {
		d.samples = append(d.samples, sample{at: now, busy: elapsed})
	} else {
		d.samples = append(d.samples, sample{at: now, idle: elapsed})
	}
	d.busy = busy
	d.lastMark = now
	d.trimLocked(now)
}

func (d *DutyCycle) trimLocked(now time.Time) {
	cutoff := now.Add(-d.window)
	i := 0
	for ; i < len(d.samples); i++ {
		if d.samples[i].at.After(cutoff) {
			break
		}
	}
	d.samples = d.samples[i:]
}

// Value returns the busy fraction (0..1) observed within the window.
func (d *DutyCycle) Value() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trimLocked(time.Now())
	var busy, idle time.Duration
	for _, s := range d.samples {
		busy += s.busy
		idle += s.idle
	}
	total := busy + idle
	if total == 0 {
		return 0
	}
	return float64(busy) / float64(total)
}

// Name returns the duty cycle's registered name.
func (d *DutyCycle) Name() string { return d.name }

// Registry owns a set of named counters, gauges and duty cycles scoped to
// one component (a Pipeline, a Connection, a Lookup). Each Create* call
// is idempotent by name so repeated setup code doesn't panic.
type Registry struct {
	mu         sync.Mutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	dutyCycles map[string]*DutyCycle
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		dutyCycles: make(map[string]*DutyCycle),
	}
}

// CreateCounter returns the named Counter, creating it on first use.
func (r *Registry) CreateCounter(name string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{name: name}
	r.counters[name] = c
	return c
}

// CreateGauge returns the named Gauge, creating it on first use.
func (r *Registry) CreateGauge(name string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: name}
	r.gauges[name] = g
	return g
}

// CreateDutyCycle returns the named DutyCycle, creating it on first use.
func (r *Registry) CreateDutyCycle(name string, window time.Duration) *DutyCycle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.dutyCycles[name]; ok {
		return d
	}
	d := NewDutyCycle(name, window)
	r.dutyCycles[name] = d
	return d
}

// Snapshot returns a flat name->value map of every registered metric,
// suitable for embedding in a diagnostic/REST payload.
func (r *Registry) Snapshot() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]float64, len(r.counters)+len(r.gauges)+len(r.dutyCycles))
	for name, c := range r.counters {
		out[name] = float64(c.Value())
	}
	for name, g := range r.gauges {
		out[name] = g.Value()
	}
	for name, d := range r.dutyCycles {
		out[name] = d.Value()
	}
	return out
}
