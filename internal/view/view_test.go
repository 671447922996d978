package view

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/md-najmul-hossain-nur/Submarine/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "--", FormatNumber(nil, 2))
	assert.Equal(t, "14.60", FormatNumber(core.Float(14.6), 2))
	assert.Equal(t, "3.1", FormatNumber(core.Float(3.14159), 1))
}

func TestTelemetry_PlaceholdersAndAlerts(t *testing.T) {
	s := core.TelemetrySample{
		BatteryV:  core.Float(14.1),
		Turbidity: core.Float(1.4),
		Pitch:     core.Float(-25),
		Leak:      true,
	}
	v := Telemetry(s, core.DefaultBackendConfig())

	byName := map[string]Field{}
	for _, f := range v.Fields {
		byName[f.Name] = f
	}
	assert.Equal(t, "-- °", byName["Yaw"].Value)
	assert.Equal(t, "14.10 V", byName["Battery V"].Value)
	assert.True(t, byName["Battery V"].Alert)
	assert.True(t, byName["Turbidity"].Alert)
	assert.True(t, byName["Pitch"].Alert)
	assert.Equal(t, "True", byName["Leak"].Value)
	assert.Equal(t, []string{AlertBatteryLow, AlertTurbidityHigh, AlertPitchLimit, AlertLeak}, v.Alerts)
	assert.Equal(t, Placeholder, v.Time)
}

func TestTelemetry_NoAlertsWithinLimits(t *testing.T) {
	s := core.TelemetrySample{BatteryV: core.Float(15.2), Turbidity: core.Float(0.4), Pitch: core.Float(5)}
	v := Telemetry(s, core.DefaultBackendConfig())
	assert.Empty(t, v.Alerts)
	assert.Equal(t, "False", v.Fields[len(v.Fields)-1].Value)

	// zero thresholds disable alerts
	assert.Empty(t, Telemetry(core.TelemetrySample{BatteryV: core.Float(1)}, core.BackendConfig{}).Alerts)
}

func TestHeader(t *testing.T) {
	h := Header(core.TelemetrySample{BatteryV: core.Float(15), Turbidity: nil})
	assert.Equal(t, HeaderView{Battery: "15.00 V", Turbidity: "-- NTU"}, h)
}

func TestEvents_NewestFirst(t *testing.T) {
	rows := []core.Event{
		{ID: 1, Level: "info", Message: "a"},
		{ID: 2, Level: "", Message: "b"},
		{ID: 3, Level: "critical", Message: "c"},
	}
	v := Events(rows)

	require.Len(t, v.Rows, 3)
	assert.Equal(t, int64(3), v.Rows[0].ID)
	assert.Equal(t, "CRITICAL", v.Rows[0].Level)
	assert.Equal(t, "INFO", v.Rows[1].Level)
	assert.Equal(t, Control{Action: ActionEventDelete, ID: 1, Label: "Delete"}, v.Rows[2].Delete)
	assert.Equal(t, ActionEventClear, v.Clear.Action)
	assert.Equal(t, int64(1), rows[0].ID, "input must not be reordered")
}

func TestMissions_EmptyAndCurrent(t *testing.T) {
	assert.Equal(t, ModeView{Label: ModeManual}, MissionMode(nil))
	assert.Empty(t, Missions([]core.Mission{}).Rows)

	ms := []core.Mission{
		{ID: 9, Name: "Dock", Status: "planned", Mode: "auto"},
		{ID: 4, Name: "Reef", Status: "done", Mode: "manual"},
	}
	assert.Equal(t, ModeView{Label: "auto"}, MissionMode(ms))

	v := Missions(ms)
	require.Len(t, v.Rows, 2)
	assert.True(t, v.Rows[0].Current)
	assert.False(t, v.Rows[1].Current)
	assert.Equal(t, "planned · auto · --", v.Rows[0].Meta)
}

func TestTargets_MatchOnlyWhenPending(t *testing.T) {
	created := core.NewTimestamp(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))
	v := Targets([]core.Target{
		{ID: 1, Filename: "a.png", Status: core.TargetPending, CreatedAt: created},
		{ID: 2, Label: "buoy", Status: core.TargetMatched, MatchedAt: created},
	})

	require.Len(t, v.Rows, 2)
	require.NotNil(t, v.Rows[0].Match)
	assert.Equal(t, ActionTargetMatch, v.Rows[0].Match.Action)
	assert.Equal(t, "a.png", v.Rows[0].Name)
	assert.Contains(t, v.Rows[0].Meta, "Pending")
	assert.Contains(t, v.Rows[0].Meta, "matched --")

	assert.Nil(t, v.Rows[1].Match)
	assert.Equal(t, "buoy", v.Rows[1].Name)
	assert.Contains(t, v.Rows[1].Meta, "Matched")
}

func activeButtons(v AutoView) []string {
	var out []string
	for _, b := range v.Buttons {
		if b.Active {
			out = append(out, b.Action)
		}
	}
	return out
}

func TestAuto_ButtonActivity(t *testing.T) {
	cases := []struct {
		state core.AutoState
		want  []string
	}{
		{core.AutoState{IsEnabled: true, Phase: core.PhaseRunning}, []string{ActionAutoStart}},
		{core.AutoState{IsEnabled: true, Phase: core.PhaseArmed}, []string{ActionAutoArm}},
		{core.AutoState{IsEnabled: true, Phase: core.PhasePaused}, []string{ActionAutoPause}},
		{core.AutoState{IsEnabled: true, Phase: core.PhaseAborted}, []string{ActionAutoAbort}},
		{core.AutoState{IsEnabled: false, Phase: core.PhaseRunning}, []string{ActionAutoAbort}},
		{core.AutoState{IsEnabled: true, Phase: core.PhaseIdle}, nil},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, activeButtons(Auto(tc.state)), "%+v", tc.state)
	}
	assert.Equal(t, ModeAuto, AutoMode(core.AutoState{IsEnabled: true}).Label)
	assert.Equal(t, ModeManual, AutoMode(core.AutoState{}).Label)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(0))
	assert.Equal(t, 50, Percent(0.504))
	assert.Equal(t, 51, Percent(0.506))
	assert.Equal(t, 100, Percent(1.3))
	assert.Equal(t, 0, Percent(-0.2))

	m := Manual(false, core.Axes{Thruster: 0.25, ServoRight: 1})
	assert.False(t, m.Enabled)
	assert.Equal(t, Meters{Thruster: 25, ServoRight: 100}, m.Meters)
}

func TestStore_PublishesOnlyChanges(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe(8)
	defer cancel()

	assert.True(t, s.Set(RegionMode, ModeView{Label: "Manual"}))
	assert.False(t, s.Set(RegionMode, ModeView{Label: "Manual"}))
	assert.True(t, s.Set(RegionMode, ModeView{Label: "Auto"}))
	assert.True(t, s.Set(RegionEvents, Events(nil)))
	assert.False(t, s.Set(RegionEvents, Events([]core.Event{})))

	assert.Equal(t, uint64(2), s.Version(RegionMode))
	assert.Equal(t, RegionMode, <-ch)
	assert.Equal(t, RegionMode, <-ch)
	assert.Equal(t, RegionEvents, <-ch)
	select {
	case r := <-ch:
		t.Fatalf("unexpected change for %s", r)
	default:
	}

	mode, ok := Lookup[ModeView](s, RegionMode)
	require.True(t, ok)
	assert.Equal(t, "Auto", mode.Label)

	_, ok = Lookup[HealthView](s, RegionMode)
	assert.False(t, ok)
	assert.Len(t, s.Snapshot(), 2)
}

func TestStore_UnsubscribeClosesChannel(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe(0)
	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.True(t, s.Set(RegionHealth, HealthFailed()))
}

func TestStore_UnsubscribeWhileSetting(t *testing.T) {
	s := NewStore()
	for round := 0; round < 20; round++ {
		ch, cancel := s.Subscribe(1)

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					s.Set(RegionHeader, HeaderView{Battery: strconv.Itoa(w*1000 + i)})
				}
			}(w)
		}
		go func() {
			for range ch {
			}
		}()
		cancel()
		wg.Wait()
	}
}
