package recorder

import (
	"encoding/json"
	"time"

	"github.com/md-najmul-hossain-nur/Submarine/pkg/core"
	"gorm.io/datatypes"
)

// Models lists every table the flight log migrates.
var Models = []any{
	&TelemetryRecord{},
	&EventRecord{},
	&CommandRecord{},
}

// TelemetryRecord is one observed sample. Samples are keyed by their
// backend timestamp, so overlapping polls store each sample once.
type TelemetryRecord struct {
	ID           uint      `json:"id" gorm:"primarykey"`
	Timestamp    time.Time `json:"timestamp" gorm:"uniqueIndex;not null"`
	Yaw          *float64  `json:"yaw"`
	Pitch        *float64  `json:"pitch"`
	Roll         *float64  `json:"roll"`
	BatteryV     *float64  `json:"batteryV"`
	BatteryI     *float64  `json:"batteryI"`
	WaterTemp    *float64  `json:"waterTemp"`
	InternalTemp *float64  `json:"internalTemp"`
	Turbidity    *float64  `json:"turbidity"`
	Leak         bool      `json:"leak"`
	ObservedAt   time.Time `json:"observedAt" gorm:"autoCreateTime"`
}

func (TelemetryRecord) TableName() string { return "telemetry_samples" }

func telemetryRecord(s core.TelemetrySample) TelemetryRecord {
	return TelemetryRecord{
		Timestamp:    s.Timestamp.UTC(),
		Yaw:          s.Yaw,
		Pitch:        s.Pitch,
		Roll:         s.Roll,
		BatteryV:     s.BatteryV,
		BatteryI:     s.BatteryI,
		WaterTemp:    s.WaterTemp,
		InternalTemp: s.InternalTemp,
		Turbidity:    s.Turbidity,
		Leak:         s.Leak,
	}
}

// EventRecord mirrors a backend event under the backend's own id.
type EventRecord struct {
	ID         int64     `json:"id" gorm:"primarykey;autoIncrement:false"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
	Level      string    `json:"level" gorm:"size:16"`
	Message    string    `json:"message"`
	MissionID  *int64    `json:"missionId"`
	ObservedAt time.Time `json:"observedAt" gorm:"autoCreateTime"`
}

func (EventRecord) TableName() string { return "events" }

func eventRecord(e core.Event) EventRecord {
	return EventRecord{
		ID:        e.ID,
		Timestamp: e.Timestamp.UTC(),
		Level:     e.NormalizedLevel(),
		Message:   e.Message,
		MissionID: e.MissionID,
	}
}

// CommandRecord is one mutation sent by the console.
type CommandRecord struct {
	ID      uint           `json:"id" gorm:"primarykey"`
	SentAt  time.Time      `json:"sentAt" gorm:"index;not null"`
	Action  string         `json:"action" gorm:"size:64;index"`
	Payload datatypes.JSON `json:"payload"`
	OK      bool           `json:"ok"`
	Error   string         `json:"error"`
}

func (CommandRecord) TableName() string { return "commands" }

func commandRecord(at time.Time, action string, payload any, err error) CommandRecord {
	rec := CommandRecord{
		SentAt: at.UTC(),
		Action: action,
		OK:     err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	data, mErr := json.Marshal(payload)
	if mErr != nil {
		data = []byte("null")
	}
	rec.Payload = datatypes.JSON(data)
	return rec
}
