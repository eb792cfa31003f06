package types

// Sensors service configuration supplied on topic "config/sensors".

type SensorsConfig struct {
	Sensors []SensorCfg `json:"sensors" yaml:"sensors"`
}

type SensorCfg struct {
	ID     string `json:"id" yaml:"id"`     // logical sensor id, e.g. "baro0"
	Type   string `json:"type" yaml:"type"` // builder type, e.g. "bmp280"
	BusRef BusRef `json:"bus_ref,omitempty" yaml:"bus_ref,omitempty"`
	Params any    `json:"params,omitempty" yaml:"params,omitempty"`

	// Initial sampling period in microseconds; 0 leaves the sensor
	// registered but inactive until a set_rate arrives.
	RateUs int32 `json:"rate_us,omitempty" yaml:"rate_us,omitempty"`
}

// BusRef identifies a named bus instance configured in the platform layer.
type BusRef struct {
	Type string `json:"type" yaml:"type"` // e.g. "i2c"
	ID   string `json:"id" yaml:"id"`     // e.g. "i2c0"
}
