package types

// ------------------------
// Common hub state (retained)
// ------------------------

type HubState struct {
	Level  string `json:"level"`  // "idle", "ready", "stopped"
	Status string `json:"status"` // freeform short code
	TS     int64  `json:"ts_ms"`  // publish Unix ms
	Error  string `json:"error,omitempty"`
}

// Link is the link/state reported for a registered sensor.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type SensorStatus struct {
	Link  Link   `json:"link"`
	TS    int64  `json:"ts_ms"`
	Error string `json:"error,omitempty"` // machine-readable short code
}

// ------------------------
// Generic replies
// ------------------------

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// RateReply answers activate and set_rate with the granted period.
type RateReply struct {
	OK       bool  `json:"ok"`
	PeriodUs int32 `json:"period_us"`
	Adjusted bool  `json:"adjusted,omitempty"`
}

// FlushReply answers flush with the number of readings drained.
type FlushReply struct {
	OK      bool `json:"ok"`
	Flushed int  `json:"flushed"`
}

// ControlReply answers driver-specific pass-through verbs.
type ControlReply struct {
	OK     bool `json:"ok"`
	Result any  `json:"result,omitempty"`
}

// ------------------------
// Values
// ------------------------

// PressureValue is an uncalibrated pressure reading.
// Millipascals keep the payload integer-only (0.16 Pa device resolution).
type PressureValue struct {
	MilliPa int64 `json:"milli_pa"`
	// Die temperature in hundredths of a degree, as compensated alongside
	// the pressure word.
	CentiC int32 `json:"centi_c"`
	// Producer timestamp, Unix ms.
	TsMs int64 `json:"ts_ms"`
}

// Timestamp returns the producer timestamp carried in the value.
func (p PressureValue) Timestamp() int64 { return p.TsMs }
