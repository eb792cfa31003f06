package types

import "sensorhub-go/errcode"

// ------------------------
// Sensor types
// ------------------------

// Type identifies a sensor type on the bus and in configuration.
type Type string

const (
	TypeAccelerometer  Type = "accelerometer"
	TypeMagnetometer   Type = "magnetometer"
	TypeOrientation    Type = "orientation"
	TypeGyroscope      Type = "gyroscope"
	TypeUncaliPressure Type = "uncali_pressure"
)

// ------------------------
// Capability flags
// ------------------------

// Flags is the sensor capability bitmask published with a descriptor.
// Bit 0 is the wake-up flag; bits 1..3 carry the reporting mode.
type Flags uint32

const (
	FlagWakeUp Flags = 1 << 0

	reportingModeShift       = 1
	reportingModeMask  Flags = 0x7 << reportingModeShift

	FlagContinuousMode Flags = 0 << reportingModeShift
	FlagOnChangeMode   Flags = 1 << reportingModeShift
	FlagOneShotMode    Flags = 2 << reportingModeShift
	FlagSpecialMode    Flags = 3 << reportingModeShift
)

// ReportingMode extracts the reporting-mode bits.
func (f Flags) ReportingMode() Flags { return f & reportingModeMask }

// IsWakeUp reports whether the sensor can wake the SoC.
func (f Flags) IsWakeUp() bool { return f&FlagWakeUp != 0 }

// ------------------------
// Descriptor
// ------------------------

// Descriptor is the fixed metadata record describing one sensor's
// capabilities to the framework. Descriptors are values; once registered
// they are never mutated.
type Descriptor struct {
	Name       string  `json:"name"`   // human-readable sensor identifier
	Vendor     string  `json:"vendor"` // manufacturer
	Version    int     `json:"version"`
	Type       Type    `json:"type"`
	Range      float64 `json:"range"`      // max measurable value, sensor-native units
	Resolution float64 `json:"resolution"` // smallest distinguishable increment
	PowerMA    float64 `json:"power_ma"`   // active draw, mA

	MinDelayUs int32 `json:"min_delay_us"` // fastest sampling interval
	MaxDelayUs int32 `json:"max_delay_us"` // slowest sampling interval

	FIFOMaxCount     int `json:"fifo_max_count"` // 0 = no hardware FIFO
	FIFOReserveCount int `json:"fifo_reserve_count"`

	Flags Flags `json:"flags"`
}

// Validate reports authoring defects in a descriptor. A failure here means
// the build itself is wrong, not that anything happened at runtime.
func (d Descriptor) Validate() error {
	switch {
	case d.Name == "":
		return &errcode.E{C: errcode.BadDescriptor, Msg: "empty name"}
	case d.Vendor == "":
		return &errcode.E{C: errcode.BadDescriptor, Msg: "empty vendor: " + d.Name}
	case d.Version < 1:
		return &errcode.E{C: errcode.BadDescriptor, Msg: "version < 1: " + d.Name}
	case d.MinDelayUs <= 0:
		return &errcode.E{C: errcode.BadDescriptor, Msg: "min delay not positive: " + d.Name}
	case d.MaxDelayUs < d.MinDelayUs:
		return &errcode.E{C: errcode.BadDescriptor, Msg: "max delay below min delay: " + d.Name}
	case d.FIFOMaxCount < 0 || d.FIFOReserveCount < 0:
		return &errcode.E{C: errcode.BadDescriptor, Msg: "negative fifo count: " + d.Name}
	case d.FIFOReserveCount > d.FIFOMaxCount:
		return &errcode.E{C: errcode.BadDescriptor, Msg: "fifo reserve exceeds fifo max: " + d.Name}
	}
	return nil
}
