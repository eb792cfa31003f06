// services/sensors/registry.go
package sensors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sensorhub-go/services/sensors/internal/consts"
	"sensorhub-go/types"
)

// BuildInput is provided to a sensor builder to construct an Adaptor and any
// ancillary requirements (bus usage, sampling policy).
type BuildInput struct {
	Ctx      context.Context
	Buses    I2CBusFactory
	SensorID string
	Type     string
	Params   any
	// Minimal BusRef shape; mirrors the config without pulling it in here.
	BusRef struct {
		Type string
		ID   string
	}
}

// BuildOutput is returned by a builder.
type BuildOutput struct {
	Adaptor     Adaptor
	BusID       string        // optional: bucket key for a shared worker (e.g. "i2c0")
	SampleEvery time.Duration // 0 if the sensor starts inactive
}

// Builder constructs an Adaptor from config and platform factories.
type Builder interface {
	Build(in BuildInput) (BuildOutput, error)
}

var (
	muBuilders sync.RWMutex
	builders   = map[string]Builder{}
)

// RegisterBuilder installs a builder for a given sensor type string.
// It panics on duplicate registration to catch mistakes at start-up.
func RegisterBuilder(sensorType string, b Builder) {
	muBuilders.Lock()
	defer muBuilders.Unlock()
	if sensorType == "" {
		panic("sensors: empty sensor type for builder")
	}
	if _, exists := builders[sensorType]; exists {
		panic(fmt.Sprintf("sensors: builder already registered for type %q", sensorType))
	}
	builders[sensorType] = b
}

// findBuilder looks up a registered builder by type.
func findBuilder(sensorType string) (Builder, bool) {
	muBuilders.RLock()
	defer muBuilders.RUnlock()
	b, ok := builders[sensorType]
	return b, ok
}

// builderFor resolves the builder serving a configured sensor type. A
// generic "magnetometer" entry is served by whichever fusion library
// variant the platform build ships with.
func builderFor(sensorType string) (Builder, bool) {
	if sensorType == string(types.TypeMagnetometer) {
		sensorType = consts.MagLib
	}
	return findBuilder(sensorType)
}
