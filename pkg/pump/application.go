package pump

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streampump/pumpcore/pkg/metrics"
)

// Application is the process-wide host: it owns the Bus every component
// publishes lifecycle events on, the Metrics registry components create
// their counters/gauges under, and the root context/WaitGroup pair every
// Source's goroutine is started with. It is the Go realization of the
// event loop the original runtime assumed was already running.
type Application struct {
	Bus     *Bus
	Metrics *metrics.Registry
	Log     *slog.Logger

	// RunID uniquely identifies this process run; cmd/pump logs it at
	// startup. It is independent of the ids NewID returns.
	RunID string

	flushInterval time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	connMu sync.RWMutex
	conns  map[string]any
}

// NewApplication returns an Application ready to be started with Run.
// logger may be nil, in which case slog.Default() is used.
func NewApplication(logger *slog.Logger) *Application {
	if logger == nil {
		logger = slog.Default()
	}
	return &Application{
		Bus:           NewBus(),
		Metrics:       metrics.NewRegistry(),
		Log:           logger,
		RunID:         uuid.NewString(),
		flushInterval: 10 * time.Second,
		conns:         make(map[string]any),
	}
}

// RegisterConnection makes conn resolvable by id via Connection. Stored
// as `any` rather than `connection.Connection` because package
// connection already imports pump (for ConfigError), so pump can't
// import connection back without cycling; a lookup or processor that
// needs a specific Connection's methods (e.g. a shared Redis client)
// type-asserts the value it gets back from Connection.
func (a *Application) RegisterConnection(id string, conn any) {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	a.conns[id] = conn
}

// Connection resolves a previously registered connection by id, for
// stages built with only an id reference (e.g. a config option naming a
// shared Connection) rather than the Connection value itself.
func (a *Application) Connection(id string) (any, bool) {
	a.connMu.RLock()
	defer a.connMu.RUnlock()
	v, ok := a.conns[id]
	return v, ok
}

// NewID returns a fresh random identifier (a UUID string).
func NewID() string { return uuid.NewString() }

// WithFlushInterval overrides the interval at which Run publishes
// TopicMetricsFlush. It must be called before Run.
func (a *Application) WithFlushInterval(d time.Duration) *Application {
	a.flushInterval = d
	return a
}

// Loop bundles the context and WaitGroup every Source.Start receives, the
// Go analogue of "the event loop" a Python task was scheduled on.
type Loop struct {
	Ctx context.Context
	wg  *sync.WaitGroup
}

// Go runs fn in its own goroutine tracked by the Loop's WaitGroup, so the
// owning Application's shutdown can wait for every spawned task.
func (l *Loop) Go(fn func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
}

// Run starts the Application's background context and begins publishing
// periodic metrics-flush events until Shutdown is called. It does not
// block; callers start Sources/Pipelines against the returned Loop.
func (a *Application) Run() *Loop {
	a.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	a.ctx, a.cancel = ctx, cancel
	a.done = make(chan struct{})
	a.mu.Unlock()

	loop := &Loop{Ctx: ctx, wg: &a.wg}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.Bus.Publish(TopicMetricsFlush, MetricsFlushEvent{Values: a.Metrics.Snapshot()})
			}
		}
	}()

	return loop
}

// Shutdown cancels the Application's root context and waits for every
// goroutine started via the Loop returned by Run to finish.
func (a *Application) Shutdown() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	a.wg.Wait()
}
