// services/sensors/platform/platform.go
package platform

import (
	"sync"

	"tinygo.org/x/drivers"
)

// Factory maps configured bus ids ("i2c0", …) to live I²C instances.
// It satisfies the sensors service's bus factory contract.
type Factory struct {
	mu    sync.RWMutex
	buses map[string]drivers.I2C
}

func NewFactory() *Factory {
	return &Factory{buses: map[string]drivers.I2C{}}
}

// Add registers a bus under an id, replacing any previous instance.
func (f *Factory) Add(id string, bus drivers.I2C) *Factory {
	f.mu.Lock()
	f.buses[id] = bus
	f.mu.Unlock()
	return f
}

// ByID returns the bus registered under id.
func (f *Factory) ByID(id string) (drivers.I2C, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.buses[id]
	return b, ok
}
