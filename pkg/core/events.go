// pkg/core/events.go
package core

import "strings"

// Event levels.
const (
	LevelInfo     = "info"
	LevelWarn     = "warn"
	LevelCritical = "critical"
)

// Event is one entry of the backend's append-only event log.
type Event struct {
	ID        int64     `json:"id"`
	Timestamp Timestamp `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	MissionID *int64    `json:"mission_id,omitempty"`
}

// NormalizedLevel maps the raw level to one of the three known levels.
// Anything unknown or empty is treated as info.
func (e Event) NormalizedLevel() string {
	switch strings.ToLower(e.Level) {
	case LevelCritical:
		return LevelCritical
	case LevelWarn:
		return LevelWarn
	default:
		return LevelInfo
	}
}

// VideoClip is a recorded clip reference.
type VideoClip struct {
	ID        int64     `json:"id"`
	Timestamp Timestamp `json:"timestamp"`
	Label     string    `json:"label"`
	URL       string    `json:"url"`
	MissionID *int64    `json:"mission_id,omitempty"`
}

// Target statuses. The transition pending -> matched is one-way.
const (
	TargetPending = "pending"
	TargetMatched = "matched"
)

// Target is an uploaded target image.
type Target struct {
	ID        int64     `json:"id"`
	MissionID *int64    `json:"mission_id,omitempty"`
	Filename  string    `json:"filename"`
	Label     string    `json:"label"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	CreatedAt Timestamp `json:"created_at"`
	MatchedAt Timestamp `json:"matched_at"`
}

// Matched reports whether the target has been marked matched.
func (t Target) Matched() bool {
	return t.Status == TargetMatched
}

// DisplayName is the label, falling back to the stored filename.
func (t Target) DisplayName() string {
	if t.Label != "" {
		return t.Label
	}
	return t.Filename
}

// TargetUpload describes a target image to upload.
type TargetUpload struct {
	Path      string
	Label     string
	MissionID int64 // 0 means no mission
}
