// services/sensors/types.go
package sensors

import (
	"context"
	"time"

	"tinygo.org/x/drivers"

	"sensorhub-go/types"
)

// Reading is one datum for one sensor type.
type Reading struct {
	Type    types.Type // e.g. "uncali_pressure"
	Payload any        // JSON-serialisable payload (fixed-point, struct, etc.)
	TsMs    int64      // producer timestamp
}

// Sample is a batch of readings collected together.
type Sample []Reading

// Adaptor owns a concrete device/driver and exposes generic hooks.
// Adaptors must NOT touch the bus or spawn goroutines.
type Adaptor interface {
	ID() string
	// Descriptor is the static capability record published as retained
	// during registration.
	Descriptor() types.Descriptor
	// Trigger a measurement and return suggested wait until Collect.
	Trigger(ctx context.Context) (collectAfter time.Duration, err error)
	// Collect attempts to fetch a measurement batch; may return ErrNotReady.
	Collect(ctx context.Context) (Sample, error)
	// Optional pass-through control for driver-specific methods.
	// Return (nil, ErrUnsupported) if not implemented for a method.
	Control(method string, payload any) (result any, err error)
}

// WorkerConfig centralises timings and limits.
type WorkerConfig struct {
	TriggerTimeout time.Duration
	CollectTimeout time.Duration
	RetryBackoff   time.Duration
	MaxRetries     int
	InputQueueSize int
}

// MeasureReq asks the worker to trigger/collect for a given adaptor.
type MeasureReq struct {
	ID      string
	Adaptor Adaptor
	Prio    bool // true for read_now
}

// Result emitted by the worker.
type Result struct {
	ID     string
	Sample Sample
	Err    error
}

// ErrNotReady signals the worker to retry Collect after backoff.
var ErrNotReady = errNotReady{}

type errNotReady struct{}

func (errNotReady) Error() string { return "not ready" }

// ErrUnsupported for adaptor Control pass-through.
var ErrUnsupported = errUnsupported{}

type errUnsupported struct{}

func (errUnsupported) Error() string { return "unsupported" }

// I2CBusFactory injects configured I²C instances by id.
type I2CBusFactory interface {
	ByID(id string) (drivers.I2C, bool)
}
