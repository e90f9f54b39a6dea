package processor

import (
	"fmt"
	"sync"

	"github.com/streampump/pumpcore/pkg/pump"
)

// Constructor builds a chain stage — a Processor, Generator or Sink, all
// satisfying pump.Stage — from its configured options. Concrete processors
// and sinks register one per type name from an init() func.
type Constructor func(app *pump.Application, id string, options map[string]string) (pump.Stage, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register associates typeName with a Constructor.
func Register(typeName string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typeName] = ctor
}

// New looks up typeName's registered Constructor and invokes it.
func New(app *pump.Application, typeName, id string, options map[string]string) (pump.Stage, error) {
	registryMu.RLock()
	ctor, ok := registry[typeName]
	registryMu.RUnlock()
	if !ok {
		return nil, pump.NewConfigError(id, fmt.Sprintf("unknown processor type %q", typeName))
	}
	return ctor(app, id, options)
}
