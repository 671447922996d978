// Package control turns operator actions into backend mutations.
//
// Every action issues at most one mutating request, then re-syncs the
// regions it affects. A failed mutation raises a blocking alert and is
// never retried; polling carries on regardless.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/md-najmul-hossain-nur/Submarine/internal/dispatcher"
	"github.com/md-najmul-hossain-nur/Submarine/internal/metrics"
	"github.com/md-najmul-hossain-nur/Submarine/internal/session"
	"github.com/md-najmul-hossain-nur/Submarine/internal/syncer"
	"github.com/md-najmul-hossain-nur/Submarine/internal/view"
	"github.com/md-najmul-hossain-nur/Submarine/pkg/core"
)

// ErrManualDisabled is returned by manual actions while autonomy is on.
var ErrManualDisabled = errors.New("manual control disabled")

// ErrCancelled is returned when the operator dismisses a prompt.
var ErrCancelled = errors.New("cancelled by operator")

// Action names.
const (
	ActionManualInput   = "manual.input"
	ActionManualStop    = "manual.stop"
	ActionClipRecord    = "clip.record"
	ActionAutoArm       = view.ActionAutoArm
	ActionAutoStart     = view.ActionAutoStart
	ActionAutoPause     = view.ActionAutoPause
	ActionAutoAbort     = view.ActionAutoAbort
	ActionAutoSet       = "auto.set"
	ActionMissionNew    = "mission.new"
	ActionMissionDelete = view.ActionMissionDelete
	ActionEventDelete   = view.ActionEventDelete
	ActionEventClear    = view.ActionEventClear
	ActionClipDelete    = view.ActionClipDelete
	ActionClipClear     = view.ActionClipClear
	ActionTargetDelete  = view.ActionTargetDelete
	ActionTargetMatch   = view.ActionTargetMatch
	ActionTargetUpload  = "target.upload"
	ActionTargetMission = "target.mission"
	ActionRefresh       = "refresh"
)

// Alert messages shown to the operator.
const (
	AlertManualFailed = "Failed to send manual command"
	AlertAutoFailed   = "Auto state update failed"
	AlertDeleteFailed = "Delete failed"
	AlertClearFailed  = "Delete all failed"
	AlertUploadFailed = "Upload failed"
	AlertCreateFailed = "Mission create failed"
	AlertMatchFailed  = "Mark matched failed"
)

// Alerter shows a blocking message to the operator.
type Alerter interface {
	Alert(msg string)
}

// Prompter asks the operator for a line of text. ok is false when the
// operator cancelled.
type Prompter interface {
	Prompt(ctx context.Context, question string) (answer string, ok bool)
}

// API is the mutating side of the backend.
type API interface {
	SendManual(ctx context.Context, cmd core.ManualCommand) (core.CommandAck, error)
	SetAutoState(ctx context.Context, u core.AutoStateUpdate) (core.AutoState, error)
	CreateMission(ctx context.Context, m core.NewMission) error
	DeleteMission(ctx context.Context, id int64) error
	DeleteEvent(ctx context.Context, id int64) error
	DeleteAllEvents(ctx context.Context) error
	DeleteVideoClip(ctx context.Context, id int64) error
	DeleteAllVideoClips(ctx context.Context) error
	DeleteTarget(ctx context.Context, id int64) error
	MatchTarget(ctx context.Context, id int64) error
	UploadTarget(ctx context.Context, up core.TargetUpload) error
}

// Refresher re-syncs resources after a mutation.
type Refresher interface {
	Refresh(ctx context.Context, resources ...syncer.Resource) error
}

// CommandSink is told about every mutation the console sends.
type CommandSink interface {
	RecordCommand(ctx context.Context, action string, payload any, err error)
}

// Controller owns the action handlers.
type Controller struct {
	api      API
	sync     Refresher
	store    *view.Store
	state    *session.State
	alerter  Alerter
	prompter Prompter
	logger   *slog.Logger
	sinks    []CommandSink

	// manualMu serializes vehicle-bound slider and stop posts. stoppedAt is
	// the UnixNano of the last stop; slider input dispatched before it is
	// discarded so nothing queued can follow a stop to the vehicle.
	manualMu  sync.Mutex
	stoppedAt atomic.Int64
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithCommandSink(s CommandSink) Option {
	return func(c *Controller) {
		if s != nil {
			c.sinks = append(c.sinks, s)
		}
	}
}

// New creates a Controller.
func New(api API, sync Refresher, store *view.Store, state *session.State, alerter Alerter, prompter Prompter, opts ...Option) *Controller {
	c := &Controller{
		api:      api,
		sync:     sync,
		store:    store,
		state:    state,
		alerter:  alerter,
		prompter: prompter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register installs every action handler on d.
func (c *Controller) Register(d *dispatcher.Dispatcher) {
	// slider bursts must reach the vehicle in order
	d.Register(ActionManualInput, c.observed(ActionManualInput, c.handleManualInput),
		dispatcher.Buffered(32), dispatcher.Blocking(), dispatcher.Logged())

	handlers := map[string]dispatcher.HandlerFunc{
		ActionManualStop:    c.handleManualStop,
		ActionClipRecord:    c.handleClipRecord,
		ActionAutoArm:       c.autoPreset(true, core.PhaseArmed),
		ActionAutoStart:     c.autoPreset(true, core.PhaseRunning),
		ActionAutoPause:     c.autoPreset(true, core.PhasePaused),
		ActionAutoAbort:     c.autoPreset(false, core.PhaseAborted),
		ActionAutoSet:       c.handleAutoSet,
		ActionMissionNew:    c.handleMissionNew,
		ActionMissionDelete: c.handleMissionDelete,
		ActionEventDelete:   c.handleEventDelete,
		ActionEventClear:    c.handleEventClear,
		ActionClipDelete:    c.handleClipDelete,
		ActionClipClear:     c.handleClipClear,
		ActionTargetDelete:  c.handleTargetDelete,
		ActionTargetMatch:   c.handleTargetMatch,
		ActionTargetUpload:  c.handleTargetUpload,
		ActionTargetMission: c.handleTargetMission,
		ActionRefresh:       c.handleRefresh,
	}
	for name, h := range handlers {
		d.Register(name, c.observed(name, h), dispatcher.Logged())
	}
}

func (c *Controller) observed(name string, h dispatcher.HandlerFunc) dispatcher.HandlerFunc {
	return func(ctx context.Context, a dispatcher.Action) (any, error) {
		result, err := h(ctx, a)
		if !errors.Is(err, ErrManualDisabled) {
			metrics.ObserveCommand(name, err)
		}
		return result, err
	}
}

// fail alerts the operator and returns err wrapped with the alert text.
func (c *Controller) fail(alert string, err error) error {
	c.alerter.Alert(alert)
	return fmt.Errorf("%s: %w", alert, err)
}

func (c *Controller) record(ctx context.Context, action string, payload any, err error) {
	for _, s := range c.sinks {
		s.RecordCommand(ctx, action, payload, err)
	}
}

// resync refreshes resources; failures are already logged by the engine.
func (c *Controller) resync(ctx context.Context, resources ...syncer.Resource) {
	_ = c.sync.Refresh(ctx, resources...)
}

// parseID validates a positive integer id. Invalid input is alerted and
// nothing is sent.
func (c *Controller) parseID(a dispatcher.Action) (int64, error) {
	raw := a.Arg(0)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		msg := fmt.Sprintf("Invalid id: %q", raw)
		c.alerter.Alert(msg)
		return 0, errors.New(msg)
	}
	return id, nil
}
