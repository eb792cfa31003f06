// services/sensors/internal/consts/consts.go
package consts

import "sensorhub-go/types"

// Top-level topics
const (
	TokConfig  = "config"
	TokSensors = "sensors"
	TokSensor  = "sensor"
	TokInfo    = "info"
	TokState   = "state"
	TokValue   = "value"
	TokControl = "control"
	TokEvent   = "event"
	TokList    = "list"
)

// Control verbs
const (
	CtrlActivate   = "activate"
	CtrlDeactivate = "deactivate"
	CtrlSetRate    = "set_rate"
	CtrlReadNow    = "read_now"
	CtrlFlush      = "flush"
)

// MaxNumSensors bounds how many sensors the list builder will register.
// The framework allocates exactly this many descriptor slots.
const MaxNumSensors = 1

// MagLib selects the magnetometer fusion library variant the platform
// build ships with.
const MagLib = "ami"

// Per-type minimum sampling intervals, microseconds. Rate negotiation never
// grants a faster rate than these floors.
const (
	MagnetometerMinDelayUs  = 20000
	OrientationMinDelayUs   = 20000
	AccelerometerMinDelayUs = 10000
	GyroscopeMinDelayUs     = 10000
)

// Uncalibrated-pressure descriptor constants. These are fixed at build time
// and published verbatim during sensor registration.
const (
	UncaliPressureName       = "UNCALI_PRESSURE"
	UncaliPressureVendor     = "Bosch"
	UncaliPressureVersion    = 1
	UncaliPressureRange      = 1572.86 // hPa
	UncaliPressureResolution = 0.0016  // hPa
	UncaliPressurePowerMA    = 0
	UncaliPressureMinDelayUs = 20000
	UncaliPressureMaxDelayUs = 1000000

	UncaliPressureFIFOMaxCount     = 0
	UncaliPressureFIFOReserveCount = 0

	UncaliPressureFlags = types.FlagContinuousMode
)

// UncaliPressure returns the descriptor assembled from the constants above.
func UncaliPressure() types.Descriptor {
	return types.Descriptor{
		Name:             UncaliPressureName,
		Vendor:           UncaliPressureVendor,
		Version:          UncaliPressureVersion,
		Type:             types.TypeUncaliPressure,
		Range:            UncaliPressureRange,
		Resolution:       UncaliPressureResolution,
		PowerMA:          UncaliPressurePowerMA,
		MinDelayUs:       UncaliPressureMinDelayUs,
		MaxDelayUs:       UncaliPressureMaxDelayUs,
		FIFOMaxCount:     UncaliPressureFIFOMaxCount,
		FIFOReserveCount: UncaliPressureFIFOReserveCount,
		Flags:            UncaliPressureFlags,
	}
}

// MinDelayFor returns the per-type sampling floor in microseconds, or 0 when
// no floor applies to the type.
func MinDelayFor(t types.Type) int32 {
	switch t {
	case types.TypeMagnetometer:
		return MagnetometerMinDelayUs
	case types.TypeOrientation:
		return OrientationMinDelayUs
	case types.TypeAccelerometer:
		return AccelerometerMinDelayUs
	case types.TypeGyroscope:
		return GyroscopeMinDelayUs
	case types.TypeUncaliPressure:
		return UncaliPressureMinDelayUs
	}
	return 0
}
