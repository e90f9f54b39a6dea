package lookup

import (
	"fmt"
	"sync"

	"github.com/streampump/pumpcore/pkg/pump"
)

// Constructor builds a Lookup from its configured options.
type Constructor func(app *pump.Application, id string, options map[string]string) (Lookup, error)

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
func New(app *pump.Application, typeName, id string, options map[string]string) (Lookup, error) {
	registryMu.RLock()
	ctor, ok := registry[typeName]
	registryMu.RUnlock()
	if !ok {
		return nil, pump.NewConfigError(id, fmt.Sprintf("unknown lookup type %q", typeName))
	}
	return ctor(app, id, options)
}
