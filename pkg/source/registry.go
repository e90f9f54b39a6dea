package source

import (
	"fmt"
	"sync"

	"github.com/streampump/pumpcore/pkg/pump"
)

// Constructor builds a Source from its configured options. target is the
// Processor the Source feeds every produced event into — in practice the
// owning pipeline.Pipeline. Connectors register one per type name from an
// init() func, mirroring `stream.NewSource`'s `switch cfg.Type` factory in
// the teacher, turned into a registration map so a connector package
// never has to be imported by name just to be wired into a config-driven
// Service.
type Constructor func(app *pump.Application, id string, target Processor, options map[string]string) (Source, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register associates typeName with a Constructor. Re-registering the same
// typeName overwrites the previous entry, which is convenient for tests
// that stub a connector out.
func Register(typeName string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typeName] = ctor
}

// New looks up typeName's registered Constructor and invokes it.
func New(app *pump.Application, typeName, id string, target Processor, options map[string]string) (Source, error) {
	registryMu.RLock()
	ctor, ok := registry[typeName]
	registryMu.RUnlock()
	if !ok {
		return nil, pump.NewConfigError(id, fmt.Sprintf("unknown source type %q", typeName))
	}
	return ctor(app, id, target, options)
}
