// pkg/core/mission.go
package core

// Mission statuses and modes used when the console creates a mission.
const (
	MissionStatusPlanned = "planned"
	MissionModeManual    = "manual"
)

// Mission is one entry of /api/missions.
type Mission struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Mode      string    `json:"mode"`
	CreatedAt Timestamp `json:"created_at"`
}

// NewMission is the body posted to create a mission.
type NewMission struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Mode   string `json:"mode"`
}
