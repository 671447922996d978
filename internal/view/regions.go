// Package view holds the console's declarative view state. Each screen
// region has a plain view model; the sync engine and the command handlers
// build fresh models and hand them to a Store, which only publishes the
// regions whose content actually changed.
package view

// Region names one independently rendered part of the console.
type Region string

const (
	RegionHealth    Region = "health"
	RegionHeader    Region = "header"
	RegionMode      Region = "mode"
	RegionTelemetry Region = "telemetry"
	RegionEvents    Region = "events"
	RegionMissions  Region = "missions"
	RegionClips     Region = "clips"
	RegionTargets   Region = "targets"
	RegionAuto      Region = "auto"
	RegionManual    Region = "manual"
	RegionConnect   Region = "connect"
	RegionUpload    Region = "upload"
)

// Regions lists every region in render order.
var Regions = []Region{
	RegionConnect,
	RegionHealth,
	RegionHeader,
	RegionMode,
	RegionTelemetry,
	RegionAuto,
	RegionManual,
	RegionMissions,
	RegionEvents,
	RegionClips,
	RegionTargets,
	RegionUpload,
}

// Control is an operator affordance addressed by action name and row id.
// Controls carry no callbacks, so replacing a region never needs rebinding.
type Control struct {
	Action string `json:"action" yaml:"action"`
	ID     int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Label  string `json:"label" yaml:"label"`
}

type HealthView struct {
	OK   bool   `json:"ok" yaml:"ok"`
	Text string `json:"text" yaml:"text"`
}

// HeaderView holds the two header stats.
type HeaderView struct {
	Battery   string `json:"battery" yaml:"battery"`
	Turbidity string `json:"turbidity" yaml:"turbidity"`
}

type ModeView struct {
	Label string `json:"label" yaml:"label"`
}

// Field is one telemetry grid cell.
type Field struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
	Alert bool   `json:"alert,omitempty" yaml:"alert,omitempty"`
}

type TelemetryView struct {
	Time   string   `json:"time" yaml:"time"`
	Fields []Field  `json:"fields" yaml:"fields"`
	Alerts []string `json:"alerts,omitempty" yaml:"alerts,omitempty"`
}

type EventRow struct {
	ID      int64   `json:"id" yaml:"id"`
	Level   string  `json:"level" yaml:"level"`
	Time    string  `json:"time" yaml:"time"`
	Message string  `json:"message" yaml:"message"`
	Delete  Control `json:"delete" yaml:"delete"`
}

// EventsView lists events newest first.
type EventsView struct {
	Clear Control    `json:"clear" yaml:"clear"`
	Rows  []EventRow `json:"rows" yaml:"rows"`
}

type MissionRow struct {
	ID      int64   `json:"id" yaml:"id"`
	Name    string  `json:"name" yaml:"name"`
	Meta    string  `json:"meta" yaml:"meta"`
	Delete  Control `json:"delete" yaml:"delete"`
	Current bool    `json:"current,omitempty" yaml:"current,omitempty"`
}

type MissionsView struct {
	Rows []MissionRow `json:"rows" yaml:"rows"`
}

type ClipRow struct {
	ID     int64   `json:"id" yaml:"id"`
	Label  string  `json:"label" yaml:"label"`
	Time   string  `json:"time" yaml:"time"`
	URL    string  `json:"url" yaml:"url"`
	Delete Control `json:"delete" yaml:"delete"`
}

type ClipsView struct {
	Clear Control   `json:"clear" yaml:"clear"`
	Rows  []ClipRow `json:"rows" yaml:"rows"`
}

// TargetRow exposes Match only while the target is pending.
type TargetRow struct {
	ID     int64    `json:"id" yaml:"id"`
	Name   string   `json:"name" yaml:"name"`
	Meta   string   `json:"meta" yaml:"meta"`
	URL    string   `json:"url" yaml:"url"`
	Match  *Control `json:"match,omitempty" yaml:"match,omitempty"`
	Delete Control  `json:"delete" yaml:"delete"`
}

type TargetsView struct {
	Rows []TargetRow `json:"rows" yaml:"rows"`
}

// Button is a phase button of the auto panel.
type Button struct {
	Control `yaml:",inline"`
	Active  bool `json:"active" yaml:"active"`
}

type AutoView struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Phase   string   `json:"phase" yaml:"phase"`
	Task    string   `json:"task" yaml:"task"`
	Note    string   `json:"note" yaml:"note"`
	Buttons []Button `json:"buttons" yaml:"buttons"`
}

// Meters are slider positions as whole percentages.
type Meters struct {
	Thruster   int `json:"thruster" yaml:"thruster"`
	ServoUp    int `json:"servo_up" yaml:"servo_up"`
	ServoLeft  int `json:"servo_left" yaml:"servo_left"`
	ServoRight int `json:"servo_right" yaml:"servo_right"`
}

type ManualView struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Meters  Meters `json:"meters" yaml:"meters"`
}

// ConnectView is the connect button.
type ConnectView struct {
	Label    string `json:"label" yaml:"label"`
	Disabled bool   `json:"disabled" yaml:"disabled"`
	Style    string `json:"style,omitempty" yaml:"style,omitempty"`
}

// UploadView is the target upload form.
type UploadView struct {
	Path      string `json:"path" yaml:"path"`
	Label     string `json:"label" yaml:"label"`
	MissionID int64  `json:"mission_id,omitempty" yaml:"mission_id,omitempty"`
}
