// pkg/core/auto.go
package core

// Autonomy phases the console can request directly.
const (
	PhaseIdle    = "idle"
	PhaseArmed   = "armed"
	PhaseRunning = "running"
	PhasePaused  = "paused"
	PhaseAborted = "aborted"
)

// AutoState is the server-owned autonomy state.
type AutoState struct {
	IsEnabled bool      `json:"is_enabled"`
	Phase     string    `json:"phase"`
	Task      string    `json:"task"`
	Note      string    `json:"note"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// AutoStateUpdate is posted to /api/auto/state. Nil fields are left to the
// server's current value.
type AutoStateUpdate struct {
	IsEnabled bool    `json:"is_enabled"`
	Phase     string  `json:"phase"`
	Task      *string `json:"task,omitempty"`
	Note      *string `json:"note,omitempty"`
}

// Manual command names.
const (
	CommandManualControl = "manual_control"
	CommandStop          = "stop"
	CommandRecordClip    = "record_clip"
)

// ManualCommand is posted to /api/commands/manual. Axis fields are only
// present on manual_control.
type ManualCommand struct {
	Command    string   `json:"command"`
	Thruster   *float64 `json:"thruster,omitempty"`
	ServoUp    *float64 `json:"servo_up,omitempty"`
	ServoLeft  *float64 `json:"servo_left,omitempty"`
	ServoRight *float64 `json:"servo_right,omitempty"`
}

// Axes is the full four-axis manual control tuple.
type Axes struct {
	Thruster   float64 `json:"thruster"`
	ServoUp    float64 `json:"servo_up"`
	ServoLeft  float64 `json:"servo_left"`
	ServoRight float64 `json:"servo_right"`
}

// ManualControl builds a manual_control command carrying all four axes.
func ManualControl(a Axes) ManualCommand {
	return ManualCommand{
		Command:    CommandManualControl,
		Thruster:   Float(a.Thruster),
		ServoUp:    Float(a.ServoUp),
		ServoLeft:  Float(a.ServoLeft),
		ServoRight: Float(a.ServoRight),
	}
}

// CommandAck is the backend's reply to a manual command.
type CommandAck struct {
	Status  string `json:"status"`
	Command string `json:"command"`
}
