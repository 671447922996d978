package view

import (
	"fmt"
	"math"
	"strings"

	"github.com/md-najmul-hossain-nur/Submarine/pkg/core"
)

// Placeholder is shown for any reading the backend did not report.
const Placeholder = "--"

// Connect button labels and styles.
const (
	LabelConnect    = "Connect"
	LabelConnecting = "Connecting…"
	LabelConnected  = "Connected"
	LabelRetry      = "Retry Connect"
	StyleSuccess    = "success"
)

// Mode labels.
const (
	ModeManual = "Manual"
	ModeAuto   = "Auto"
)

// HealthFailedText replaces the health region when the probe fails.
const HealthFailedText = "Health check failed"

// Action names referenced by region controls.
const (
	ActionEventDelete   = "event.delete"
	ActionEventClear    = "event.clear"
	ActionMissionDelete = "mission.delete"
	ActionClipDelete    = "clip.delete"
	ActionClipClear     = "clip.clear"
	ActionTargetDelete  = "target.delete"
	ActionTargetMatch   = "target.match"
	ActionAutoArm       = "auto.arm"
	ActionAutoStart     = "auto.start"
	ActionAutoPause     = "auto.pause"
	ActionAutoAbort     = "auto.abort"
)

// FormatNumber renders v with the given number of decimals, or the
// placeholder when v is nil.
func FormatNumber(v *float64, digits int) string {
	if v == nil {
		return Placeholder
	}
	return fmt.Sprintf("%.*f", digits, *v)
}

func withUnit(v *float64, unit string) string {
	return FormatNumber(v, 2) + " " + unit
}

func formatTime(ts core.Timestamp, layout string) string {
	if ts.IsZero() {
		return Placeholder
	}
	return ts.Local().Format(layout)
}

const (
	clockLayout = "15:04:05"
	dateLayout  = "2006-01-02 15:04:05"
)

// Health builds the health region from a successful probe.
func Health(h core.Health) HealthView {
	return HealthView{OK: true, Text: "Server ok · " + h.Time}
}

// HealthFailed is the static failure region.
func HealthFailed() HealthView {
	return HealthView{Text: HealthFailedText}
}

// Header builds the battery and turbidity stats from the latest sample.
func Header(s core.TelemetrySample) HeaderView {
	return HeaderView{
		Battery:   withUnit(s.BatteryV, "V"),
		Turbidity: withUnit(s.Turbidity, "NTU"),
	}
}

// Telemetry alert names.
const (
	AlertBatteryLow    = "battery low"
	AlertTurbidityHigh = "turbidity high"
	AlertPitchLimit    = "pitch beyond limit"
	AlertLeak          = "leak detected"
)

// Telemetry builds the telemetry grid for the latest sample. Thresholds come
// from the backend config; a zero threshold disables its alert.
func Telemetry(s core.TelemetrySample, cfg core.BackendConfig) TelemetryView {
	batteryLow := s.BatteryV != nil && cfg.BatteryLowV > 0 && *s.BatteryV < cfg.BatteryLowV
	turbid := s.Turbidity != nil && cfg.TurbidityMax > 0 && *s.Turbidity > cfg.TurbidityMax
	pitched := s.Pitch != nil && cfg.SoftLimits.MaxPitch > 0 && math.Abs(*s.Pitch) > cfg.SoftLimits.MaxPitch

	leak := "False"
	if s.Leak {
		leak = "True"
	}

	v := TelemetryView{
		Time: formatTime(s.Timestamp, clockLayout),
		Fields: []Field{
			{Name: "Yaw", Value: withUnit(s.Yaw, "°")},
			{Name: "Pitch", Value: withUnit(s.Pitch, "°"), Alert: pitched},
			{Name: "Roll", Value: withUnit(s.Roll, "°")},
			{Name: "Battery V", Value: withUnit(s.BatteryV, "V"), Alert: batteryLow},
			{Name: "Battery I", Value: withUnit(s.BatteryI, "A")},
			{Name: "Water temp", Value: withUnit(s.WaterTemp, "°C")},
			{Name: "Internal temp", Value: withUnit(s.InternalTemp, "°C")},
			{Name: "Turbidity", Value: withUnit(s.Turbidity, "NTU"), Alert: turbid},
			{Name: "Leak", Value: leak, Alert: s.Leak},
		},
	}
	if batteryLow {
		v.Alerts = append(v.Alerts, AlertBatteryLow)
	}
	if turbid {
		v.Alerts = append(v.Alerts, AlertTurbidityHigh)
	}
	if pitched {
		v.Alerts = append(v.Alerts, AlertPitchLimit)
	}
	if s.Leak {
		v.Alerts = append(v.Alerts, AlertLeak)
	}
	return v
}

// Events builds the event list newest first from rows in server order.
func Events(rows []core.Event) EventsView {
	v := EventsView{
		Clear: Control{Action: ActionEventClear, Label: "Delete all"},
		Rows:  make([]EventRow, 0, len(rows)),
	}
	for i := len(rows) - 1; i >= 0; i-- {
		e := rows[i]
		v.Rows = append(v.Rows, EventRow{
			ID:      e.ID,
			Level:   strings.ToUpper(e.NormalizedLevel()),
			Time:    formatTime(e.Timestamp, clockLayout),
			Message: e.Message,
			Delete:  Control{Action: ActionEventDelete, ID: e.ID, Label: "Delete"},
		})
	}
	return v
}

// CurrentMission returns the mission the console treats as current: the
// first one in server order.
// TODO: switch to an explicit active flag once the backend exposes one.
func CurrentMission(missions []core.Mission) (core.Mission, bool) {
	if len(missions) == 0 {
		return core.Mission{}, false
	}
	return missions[0], true
}

// Missions builds the mission list in server order.
func Missions(missions []core.Mission) MissionsView {
	v := MissionsView{Rows: make([]MissionRow, 0, len(missions))}
	cur, hasCurrent := CurrentMission(missions)
	for _, m := range missions {
		v.Rows = append(v.Rows, MissionRow{
			ID:      m.ID,
			Name:    m.Name,
			Meta:    strings.Join([]string{m.Status, m.Mode, formatTime(m.CreatedAt, dateLayout)}, " · "),
			Delete:  Control{Action: ActionMissionDelete, ID: m.ID, Label: "Delete"},
			Current: hasCurrent && m.ID == cur.ID,
		})
	}
	return v
}

// MissionMode is the mode label implied by the mission list.
func MissionMode(missions []core.Mission) ModeView {
	if cur, ok := CurrentMission(missions); ok {
		return ModeView{Label: cur.Mode}
	}
	return ModeView{Label: ModeManual}
}

// Clips builds the clip list in server order.
func Clips(clips []core.VideoClip) ClipsView {
	v := ClipsView{
		Clear: Control{Action: ActionClipClear, Label: "Delete all"},
		Rows:  make([]ClipRow, 0, len(clips)),
	}
	for _, c := range clips {
		v.Rows = append(v.Rows, ClipRow{
			ID:     c.ID,
			Label:  c.Label,
			Time:   formatTime(c.Timestamp, dateLayout),
			URL:    c.URL,
			Delete: Control{Action: ActionClipDelete, ID: c.ID, Label: "Delete"},
		})
	}
	return v
}

// Targets builds the target list in server order.
func Targets(targets []core.Target) TargetsView {
	v := TargetsView{Rows: make([]TargetRow, 0, len(targets))}
	for _, t := range targets {
		status := "Pending"
		if t.Matched() {
			status = "Matched"
		}
		row := TargetRow{
			ID:     t.ID,
			Name:   t.DisplayName(),
			Meta:   fmt.Sprintf("%s · created %s · matched %s", status, formatTime(t.CreatedAt, dateLayout), formatTime(t.MatchedAt, dateLayout)),
			URL:    t.URL,
			Delete: Control{Action: ActionTargetDelete, ID: t.ID, Label: "Delete"},
		}
		if !t.Matched() {
			row.Match = &Control{Action: ActionTargetMatch, ID: t.ID, Label: "Mark matched"}
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

// Auto builds the auto panel. Abort reads active whenever autonomy is off.
func Auto(s core.AutoState) AutoView {
	on := s.IsEnabled
	return AutoView{
		Enabled: on,
		Phase:   s.Phase,
		Task:    s.Task,
		Note:    s.Note,
		Buttons: []Button{
			{Control: Control{Action: ActionAutoArm, Label: "Arm"}, Active: on && s.Phase == core.PhaseArmed},
			{Control: Control{Action: ActionAutoStart, Label: "Start"}, Active: on && s.Phase == core.PhaseRunning},
			{Control: Control{Action: ActionAutoPause, Label: "Pause"}, Active: on && s.Phase == core.PhasePaused},
			{Control: Control{Action: ActionAutoAbort, Label: "Abort"}, Active: !on || s.Phase == core.PhaseAborted},
		},
	}
}

// AutoMode is the mode label implied by the autonomy state.
func AutoMode(s core.AutoState) ModeView {
	if s.IsEnabled {
		return ModeView{Label: ModeAuto}
	}
	return ModeView{Label: ModeManual}
}

// Percent converts a slider value in [0,1] to a whole percentage in [0,100].
func Percent(v float64) int {
	p := int(math.Round(v * 100))
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// Manual builds the manual control panel.
func Manual(enabled bool, a core.Axes) ManualView {
	return ManualView{
		Enabled: enabled,
		Meters: Meters{
			Thruster:   Percent(a.Thruster),
			ServoUp:    Percent(a.ServoUp),
			ServoLeft:  Percent(a.ServoLeft),
			ServoRight: Percent(a.ServoRight),
		},
	}
}

// Connect button states.
func ConnectIdle() ConnectView       { return ConnectView{Label: LabelConnect} }
func ConnectInProgress() ConnectView { return ConnectView{Label: LabelConnecting, Disabled: true} }
func ConnectDone() ConnectView {
	return ConnectView{Label: LabelConnected, Disabled: true, Style: StyleSuccess}
}
func ConnectRetry() ConnectView { return ConnectView{Label: LabelRetry} }
