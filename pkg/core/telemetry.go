// pkg/core/telemetry.go
package core

// TelemetrySample is one row of /api/telemetry/latest.
// Sensor readings are nullable; a missing reading is nil.
type TelemetrySample struct {
	Timestamp    Timestamp `json:"timestamp"`
	Yaw          *float64  `json:"yaw"`
	Pitch        *float64  `json:"pitch"`
	Roll         *float64  `json:"roll"`
	BatteryV     *float64  `json:"battery_v"`
	BatteryI     *float64  `json:"battery_i"`
	WaterTemp    *float64  `json:"water_temp"`
	InternalTemp *float64  `json:"internal_temp"`
	Turbidity    *float64  `json:"turbidity"`
	Leak         bool      `json:"leak"`
}

// SoftLimits are operator-facing limits published by the backend.
type SoftLimits struct {
	MaxPitch    float64 `json:"max_pitch"`
	MaxThrottle float64 `json:"max_throttle"`
}

// BackendConfig is the body of /api/config.
type BackendConfig struct {
	BatteryLowV  float64    `json:"battery_low_v"`
	TurbidityMax float64    `json:"turbidity_max"`
	SoftLimits   SoftLimits `json:"soft_limits"`
	Roles        []string   `json:"roles"`
}

// DefaultBackendConfig mirrors the values the vehicle backend ships with.
// It is used until /api/config has been fetched successfully.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		BatteryLowV:  14.6,
		TurbidityMax: 1.0,
		SoftLimits:   SoftLimits{MaxPitch: 20, MaxThrottle: 0.7},
		Roles:        []string{"viewer", "operator", "admin"},
	}
}

// Health is the body of /api/health.
type Health struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// Float returns a pointer to v. Handy for building samples in tests and demos.
func Float(v float64) *float64 {
	return &v
}
