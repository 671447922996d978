package control

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/md-najmul-hossain-nur/Submarine/internal/api"
	"github.com/md-najmul-hossain-nur/Submarine/internal/dispatcher"
	"github.com/md-najmul-hossain-nur/Submarine/internal/session"
	"github.com/md-najmul-hossain-nur/Submarine/internal/subtest"
	"github.com/md-najmul-hossain-nur/Submarine/internal/syncer"
	"github.com/md-najmul-hossain-nur/Submarine/internal/view"
	"github.com/md-najmul-hossain-nur/Submarine/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alerts struct {
	mu   sync.Mutex
	msgs []string
}

func (a *alerts) Alert(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgs = append(a.msgs, msg)
}

func (a *alerts) all() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.msgs...)
}

type prompter struct {
	answer string
	ok     bool
	asked  []string
}

func (p *prompter) Prompt(_ context.Context, q string) (string, bool) {
	p.asked = append(p.asked, q)
	return p.answer, p.ok
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type commandLog struct {
	mu      sync.Mutex
	actions []string
}

func (l *commandLog) RecordCommand(_ context.Context, action string, _ any, _ error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actions = append(l.actions, action)
}

type fixture struct {
	backend  *subtest.Backend
	store    *view.Store
	state    *session.State
	alerts   *alerts
	prompter *prompter
	commands *commandLog
	d        *dispatcher.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := subtest.New(t)
	client := api.New(b.URL())
	f := &fixture{
		backend:  b,
		store:    view.NewStore(),
		state:    session.New(),
		alerts:   &alerts{},
		prompter: &prompter{},
		commands: &commandLog{},
	}
	engine := syncer.New(client, f.store, f.state)
	ctrl := New(client, engine, f.store, f.state, f.alerts, f.prompter, WithCommandSink(f.commands))

	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)
	ctrl.Register(d)
	t.Cleanup(d.Close)
	f.d = d
	return f
}

func (f *fixture) do(t *testing.T, name string, args ...string) (any, error) {
	t.Helper()
	return f.d.Dispatch(context.Background(), dispatcher.Action{Name: name, Args: args})
}

// flush waits for queued manual input.
func (f *fixture) flush() {
	f.d.Close()
}

func id(n int64) string { return strconv.FormatInt(n, 10) }

func TestRegister_AllActions(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{
		ActionManualInput, ActionManualStop, ActionClipRecord,
		ActionAutoArm, ActionAutoStart, ActionAutoPause, ActionAutoAbort, ActionAutoSet,
		ActionMissionNew, ActionMissionDelete, ActionEventDelete, ActionEventClear,
		ActionClipDelete, ActionClipClear, ActionTargetDelete, ActionTargetMatch,
		ActionTargetUpload, ActionTargetMission, ActionRefresh,
	} {
		assert.True(t, f.d.HasHandler(name), name)
	}
}

func TestApplyAxes(t *testing.T) {
	a, err := ApplyAxes(core.Axes{ServoUp: 0.3}, []string{"thruster=0.5", "servo_right=2"})
	require.NoError(t, err)
	assert.Equal(t, core.Axes{Thruster: 0.5, ServoUp: 0.3, ServoRight: 1}, a)

	_, err = ApplyAxes(core.Axes{}, []string{"rudder=1"})
	assert.Error(t, err)
	_, err = ApplyAxes(core.Axes{}, []string{"thruster"})
	assert.Error(t, err)

	back, err := ApplyAxes(core.Axes{}, AxisArgs(a))
	require.NoError(t, err)
	assert.Equal(t, a, back)
}

func TestManualInput_SendsAllFourAxes(t *testing.T) {
	f := newFixture(t)

	_, err := f.do(t, ActionManualInput, "thruster=0.42")
	require.NoError(t, err)
	f.flush()

	reqs := f.backend.RequestsTo(http.MethodPost, "/api/commands/manual")
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"command":"manual_control","thruster":0.42,"servo_up":0,"servo_left":0,"servo_right":0}`, string(reqs[0].Body))

	mv, _ := view.Lookup[view.ManualView](f.store, view.RegionManual)
	assert.Equal(t, 42, mv.Meters.Thruster)
}

func TestManualInput_DisabledSendsNothing(t *testing.T) {
	f := newFixture(t)
	f.state.SetManualEnabled(false)

	_, err := f.do(t, ActionManualInput, "thruster=1")
	require.NoError(t, err) // queued
	_, err = f.do(t, ActionManualStop)
	assert.ErrorIs(t, err, ErrManualDisabled)
	f.flush()

	assert.Zero(t, f.backend.Count(http.MethodPost, "/api/commands/manual"))
	assert.Empty(t, f.alerts.all())
	assert.Equal(t, core.Axes{}, f.state.Axes())
}

func TestManualInput_MetersUpdateEvenOnFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail(http.MethodPost, "/api/commands/manual", 1)

	_, _ = f.do(t, ActionManualInput, "servo_left=0.25")
	f.flush()

	mv, _ := view.Lookup[view.ManualView](f.store, view.RegionManual)
	assert.Equal(t, 25, mv.Meters.ServoLeft)
	assert.Equal(t, []string{AlertManualFailed}, f.alerts.all())
}

func TestManualInput_BurstStaysOrdered(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 10; i++ {
		_, err := f.do(t, ActionManualInput, "thruster="+strconv.FormatFloat(float64(i)/10, 'f', -1, 64))
		require.NoError(t, err)
	}
	f.flush()

	reqs := f.backend.RequestsTo(http.MethodPost, "/api/commands/manual")
	require.Len(t, reqs, 10)
	for i, r := range reqs {
		assert.InDelta(t, float64(i+1)/10, r.JSON()["thruster"], 1e-9)
	}
}

func TestManualStop_OvertakesQueuedSliders(t *testing.T) {
	f := newFixture(t)
	f.backend.Delay(http.MethodPost, "/api/commands/manual", 50*time.Millisecond)

	for _, v := range []string{"0.3", "0.6", "0.9"} {
		_, err := f.do(t, ActionManualInput, AxisThruster+"="+v)
		require.NoError(t, err)
	}
	_, err := f.do(t, ActionManualStop)
	require.NoError(t, err)
	f.flush()

	reqs := f.backend.RequestsTo(http.MethodPost, "/api/commands/manual")
	require.NotEmpty(t, reqs)
	assert.LessOrEqual(t, len(reqs), 2, "at most the in-flight slider command precedes stop")
	assert.JSONEq(t, `{"command":"stop"}`, string(reqs[len(reqs)-1].Body))
	assert.Equal(t, core.Axes{}, f.state.Axes())
	mv, _ := view.Lookup[view.ManualView](f.store, view.RegionManual)
	assert.Equal(t, view.Meters{}, mv.Meters)
}

func TestManualInput_AfterStopStillSent(t *testing.T) {
	f := newFixture(t)
	_, err := f.do(t, ActionManualStop)
	require.NoError(t, err)
	_, err = f.do(t, ActionManualInput, AxisThruster+"=0.4")
	require.NoError(t, err)
	f.flush()

	reqs := f.backend.RequestsTo(http.MethodPost, "/api/commands/manual")
	require.Len(t, reqs, 2)
	assert.Equal(t, "stop", reqs[0].JSON()["command"])
	assert.InDelta(t, 0.4, reqs[1].JSON()["thruster"], 1e-9)
}

func TestManualStop_ExactBody(t *testing.T) {
	f := newFixture(t)
	f.state.SetAxes(core.Axes{Thruster: 0.8, ServoUp: 0.5})

	_, err := f.do(t, ActionManualStop)
	require.NoError(t, err)

	reqs := f.backend.RequestsTo(http.MethodPost, "/api/commands/manual")
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"command":"stop"}`, string(reqs[0].Body))
	assert.Equal(t, core.Axes{}, f.state.Axes())
	mv, _ := view.Lookup[view.ManualView](f.store, view.RegionManual)
	assert.Equal(t, view.Meters{}, mv.Meters)
}

func TestClipRecord_AllowedInAuto(t *testing.T) {
	f := newFixture(t)
	f.state.SetManualEnabled(false)

	_, err := f.do(t, ActionClipRecord)
	require.NoError(t, err)
	body := f.backend.RequestsTo(http.MethodPost, "/api/commands/manual")[0].Body
	assert.JSONEq(t, `{"command":"record_clip"}`, string(body))
	assert.Equal(t, []string{ActionClipRecord}, f.commands.actions)
}

func TestAutoButtons_CanonicalPairs(t *testing.T) {
	cases := map[string]string{
		ActionAutoArm:   `{"is_enabled":true,"phase":"armed"}`,
		ActionAutoStart: `{"is_enabled":true,"phase":"running"}`,
		ActionAutoPause: `{"is_enabled":true,"phase":"paused"}`,
		ActionAutoAbort: `{"is_enabled":false,"phase":"aborted"}`,
	}
	for action, want := range cases {
		t.Run(action, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.do(t, action)
			require.NoError(t, err)

			reqs := f.backend.RequestsTo(http.MethodPost, "/api/auto/state")
			require.Len(t, reqs, 1)
			assert.JSONEq(t, want, string(reqs[0].Body))
			assert.Equal(t, 1, f.backend.Count(http.MethodGet, "/api/auto/state"), "auto is re-synced")
		})
	}
}

func TestAutoStart_DisablesManualAfterResync(t *testing.T) {
	f := newFixture(t)

	_, err := f.do(t, ActionAutoStart)
	require.NoError(t, err)

	assert.False(t, f.state.ManualEnabled())
	mode, _ := view.Lookup[view.ModeView](f.store, view.RegionMode)
	assert.Equal(t, view.ModeAuto, mode.Label)
}

func TestAutoSet_ForcesEnabled(t *testing.T) {
	f := newFixture(t)

	_, err := f.do(t, ActionAutoSet, "running", "survey", "north", "wall")
	require.NoError(t, err)

	body := f.backend.RequestsTo(http.MethodPost, "/api/auto/state")[0].Body
	assert.JSONEq(t, `{"is_enabled":true,"phase":"running","task":"survey","note":"north wall"}`, string(body))

	_, err = f.do(t, ActionAutoSet)
	assert.Error(t, err)
	assert.Equal(t, 1, f.backend.Count(http.MethodPost, "/api/auto/state"))
}

func TestAuto_FailureAlertsWithoutRetry(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail(http.MethodPost, "/api/auto/state", 1)

	_, err := f.do(t, ActionAutoArm)
	require.Error(t, err)
	assert.Equal(t, []string{AlertAutoFailed}, f.alerts.all())
	assert.Equal(t, 1, f.backend.Count(http.MethodPost, "/api/auto/state"))
	assert.Zero(t, f.backend.Count(http.MethodGet, "/api/auto/state"))
}

func TestMissionNew_PromptsAndCreates(t *testing.T) {
	f := newFixture(t)
	f.prompter.answer, f.prompter.ok = "  Harbour  ", true

	_, err := f.do(t, ActionMissionNew)
	require.NoError(t, err)

	assert.Equal(t, []string{"Mission name?"}, f.prompter.asked)
	body := f.backend.RequestsTo(http.MethodPost, "/api/missions")[0].Body
	assert.JSONEq(t, `{"name":"Harbour","status":"planned","mode":"manual"}`, string(body))
	mv, _ := view.Lookup[view.MissionsView](f.store, view.RegionMissions)
	require.Len(t, mv.Rows, 1)
	assert.Equal(t, "Harbour", mv.Rows[0].Name)
}

func TestMissionNew_CancelledSendsNothing(t *testing.T) {
	f := newFixture(t)

	for _, p := range []prompter{{answer: "x", ok: false}, {answer: "   ", ok: true}} {
		*f.prompter = p
		_, err := f.do(t, ActionMissionNew)
		assert.ErrorIs(t, err, ErrCancelled)
	}
	assert.Zero(t, f.backend.Count(http.MethodPost, "/api/missions"))
	assert.Empty(t, f.alerts.all())
}

func TestMissionNew_NameFromArgs(t *testing.T) {
	f := newFixture(t)
	_, err := f.do(t, ActionMissionNew, "Reef", "sweep")
	require.NoError(t, err)
	assert.Empty(t, f.prompter.asked)
	assert.Equal(t, "Reef sweep", f.backend.RequestsTo(http.MethodPost, "/api/missions")[0].JSON()["name"])
}

func TestMissionNew_Failure(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail(http.MethodPost, "/api/missions", 1)
	_, err := f.do(t, ActionMissionNew, "Reef")
	require.Error(t, err)
	assert.Equal(t, []string{AlertCreateFailed}, f.alerts.all())
}

func TestMissionDelete_ResyncsMissionsAndEvents(t *testing.T) {
	f := newFixture(t)
	keep := f.backend.AddMission("Keep", "planned", "manual")
	gone := f.backend.AddMission("Gone", "planned", "manual")

	_, err := f.do(t, ActionMissionDelete, id(gone))
	require.NoError(t, err)

	mv, _ := view.Lookup[view.MissionsView](f.store, view.RegionMissions)
	require.Len(t, mv.Rows, 1)
	assert.Equal(t, keep, mv.Rows[0].ID)
	ev, _ := view.Lookup[view.EventsView](f.store, view.RegionEvents)
	require.NotEmpty(t, ev.Rows)
	assert.Equal(t, "Mission deleted: Gone", ev.Rows[0].Message)
}

func TestDelete_AbsentIDAlertsOnly(t *testing.T) {
	f := newFixture(t)
	f.backend.AddEvent(core.LevelInfo, "x")
	require.NoError(t, f.do2(ActionRefresh, "events"))
	before := f.store.Version(view.RegionEvents)

	_, err := f.do(t, ActionEventDelete, "999")
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
	assert.Equal(t, []string{AlertDeleteFailed}, f.alerts.all())
	assert.Equal(t, before, f.store.Version(view.RegionEvents))
}

func (f *fixture) do2(name string, args ...string) error {
	_, err := f.d.Dispatch(context.Background(), dispatcher.Action{Name: name, Args: args})
	return err
}

func TestDelete_InvalidIDSendsNothing(t *testing.T) {
	f := newFixture(t)

	for _, raw := range []string{"", "abc", "0", "-3", "1.5"} {
		_, err := f.do(t, ActionTargetDelete, raw)
		assert.Error(t, err, raw)
	}
	assert.Empty(t, f.backend.Requests())
	assert.Len(t, f.alerts.all(), 5)
}

func TestEventDeleteThenRefetchOmitsID(t *testing.T) {
	f := newFixture(t)
	a := f.backend.AddEvent(core.LevelInfo, "a")
	b := f.backend.AddEvent(core.LevelWarn, "b")

	_, err := f.do(t, ActionEventDelete, id(a))
	require.NoError(t, err)

	ev, _ := view.Lookup[view.EventsView](f.store, view.RegionEvents)
	require.Len(t, ev.Rows, 1)
	assert.Equal(t, b, ev.Rows[0].ID)
}

func TestEventClear(t *testing.T) {
	f := newFixture(t)
	f.backend.AddEvent(core.LevelInfo, "a")

	_, err := f.do(t, ActionEventClear)
	require.NoError(t, err)
	ev, _ := view.Lookup[view.EventsView](f.store, view.RegionEvents)
	assert.Empty(t, ev.Rows)

	f.backend.Fail(http.MethodDelete, "/api/events", 1)
	_, err = f.do(t, ActionEventClear)
	require.Error(t, err)
	assert.Equal(t, []string{AlertClearFailed}, f.alerts.all())
}

func TestClipDeleteAndClear(t *testing.T) {
	f := newFixture(t)
	c1 := f.backend.AddClip("one", "/c/1")
	f.backend.AddClip("two", "/c/2")

	_, err := f.do(t, ActionClipDelete, id(c1))
	require.NoError(t, err)
	cv, _ := view.Lookup[view.ClipsView](f.store, view.RegionClips)
	require.Len(t, cv.Rows, 1)
	assert.Equal(t, "two", cv.Rows[0].Label)

	_, err = f.do(t, ActionClipClear)
	require.NoError(t, err)
	cv, _ = view.Lookup[view.ClipsView](f.store, view.RegionClips)
	assert.Empty(t, cv.Rows)
}

func TestTargetMatch_RemovesMatchControl(t *testing.T) {
	f := newFixture(t)
	tid := f.backend.AddTarget("buoy", core.TargetPending)

	_, err := f.do(t, ActionTargetMatch, id(tid))
	require.NoError(t, err)

	tv, _ := view.Lookup[view.TargetsView](f.store, view.RegionTargets)
	require.Len(t, tv.Rows, 1)
	assert.Nil(t, tv.Rows[0].Match)
	assert.Equal(t, 1, f.backend.Count(http.MethodGet, "/api/events"))
}

func TestTargetMatch_Failure(t *testing.T) {
	f := newFixture(t)
	_, err := f.do(t, ActionTargetMatch, "77")
	require.Error(t, err)
	assert.Equal(t, []string{AlertMatchFailed}, f.alerts.all())
}

func TestTargetDelete(t *testing.T) {
	f := newFixture(t)
	tid := f.backend.AddTarget("buoy", core.TargetMatched)

	_, err := f.do(t, ActionTargetDelete, id(tid))
	require.NoError(t, err)
	tv, _ := view.Lookup[view.TargetsView](f.store, view.RegionTargets)
	assert.Empty(t, tv.Rows)
	ev, _ := view.Lookup[view.EventsView](f.store, view.RegionEvents)
	assert.Equal(t, "Target deleted: buoy", ev.Rows[0].Message)
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buoy.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))
	return path
}

func TestTargetUpload_SuccessClearsFormAndResyncsOnce(t *testing.T) {
	f := newFixture(t)
	mid := f.backend.AddMission("Dock", "planned", "manual")
	require.NoError(t, f.do2(ActionRefresh, "missions"))
	f.backend.Reset()

	path := writeImage(t)
	_, err := f.do(t, ActionTargetUpload, path, "red", "buoy")
	require.NoError(t, err)

	reqs := f.backend.RequestsTo(http.MethodPost, "/api/targets/upload")
	require.Len(t, reqs, 1)
	assert.Equal(t, "red buoy", reqs[0].Form["label"])
	assert.Equal(t, id(mid), reqs[0].Form["mission_id"])

	assert.Equal(t, 1, f.backend.Count(http.MethodGet, "/api/targets"))
	assert.Equal(t, 1, f.backend.Count(http.MethodGet, "/api/events"))

	form, _ := view.Lookup[view.UploadView](f.store, view.RegionUpload)
	assert.Equal(t, view.UploadView{MissionID: mid}, form)
}

func TestTargetUpload_FailureKeepsForm(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail(http.MethodPost, "/api/targets/upload", 1)
	path := writeImage(t)

	_, err := f.do(t, ActionTargetUpload, path, "red")
	require.Error(t, err)

	assert.Equal(t, []string{AlertUploadFailed}, f.alerts.all())
	form, _ := view.Lookup[view.UploadView](f.store, view.RegionUpload)
	assert.Equal(t, path, form.Path)
	assert.Equal(t, "red", form.Label)
	assert.Zero(t, f.backend.Count(http.MethodGet, "/api/targets"))
}

func TestTargetUpload_MissingPath(t *testing.T) {
	f := newFixture(t)
	_, err := f.do(t, ActionTargetUpload)
	require.Error(t, err)
	assert.Empty(t, f.backend.Requests())
}

func TestTargetMission_SetsUploadMission(t *testing.T) {
	f := newFixture(t)
	_, err := f.do(t, ActionTargetMission, "12")
	require.NoError(t, err)

	assert.Equal(t, int64(12), f.state.TargetMission())
	form, _ := view.Lookup[view.UploadView](f.store, view.RegionUpload)
	assert.Equal(t, int64(12), form.MissionID)
}

func TestRefresh_ValidatesNames(t *testing.T) {
	f := newFixture(t)
	_, err := f.do(t, ActionRefresh, "sonar")
	require.Error(t, err)
	assert.Empty(t, f.backend.Requests())
	require.Len(t, f.alerts.all(), 1)
	assert.Contains(t, f.alerts.all()[0], `Unknown resource "sonar"`)
	assert.Contains(t, f.alerts.all()[0], "telemetry")

	_, err = f.do(t, ActionRefresh, "clips", "targets")
	require.NoError(t, err)
	assert.Len(t, f.backend.Requests(), 2)
}
