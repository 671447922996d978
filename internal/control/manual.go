package control

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/md-najmul-hossain-nur/Submarine/internal/dispatcher"
	"github.com/md-najmul-hossain-nur/Submarine/internal/view"
	"github.com/md-najmul-hossain-nur/Submarine/pkg/core"
)

// Axis names accepted by manual.input as "name=value" arguments.
const (
	AxisThruster   = "thruster"
	AxisServoUp    = "servo_up"
	AxisServoLeft  = "servo_left"
	AxisServoRight = "servo_right"
)

// ApplyAxes merges "axis=value" pairs into base. Values are clamped to [0,1].
func ApplyAxes(base core.Axes, pairs []string) (core.Axes, error) {
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		if !ok {
			return base, fmt.Errorf("expected axis=value, got %q", p)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return base, fmt.Errorf("axis %s: %w", name, err)
		}
		v = min(max(v, 0), 1)
		switch name {
		case AxisThruster:
			base.Thruster = v
		case AxisServoUp:
			base.ServoUp = v
		case AxisServoLeft:
			base.ServoLeft = v
		case AxisServoRight:
			base.ServoRight = v
		default:
			return base, fmt.Errorf("unknown axis %q", name)
		}
	}
	return base, nil
}

// AxisArgs renders a as manual.input arguments.
func AxisArgs(a core.Axes) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		AxisThruster + "=" + f(a.Thruster),
		AxisServoUp + "=" + f(a.ServoUp),
		AxisServoLeft + "=" + f(a.ServoLeft),
		AxisServoRight + "=" + f(a.ServoRight),
	}
}

// handleManualInput moves the sliders and streams all four axes. Meters
// follow the sliders whether or not the request succeeds.
func (c *Controller) handleManualInput(ctx context.Context, a dispatcher.Action) (any, error) {
	if !c.state.ManualEnabled() {
		return nil, ErrManualDisabled
	}
	c.manualMu.Lock()
	defer c.manualMu.Unlock()
	if c.supersededByStop(a) {
		c.logger.Debug("Dropping slider input queued before stop", "args", a.Args)
		return nil, nil
	}
	axes, err := ApplyAxes(c.state.Axes(), a.Args)
	if err != nil {
		c.alerter.Alert("Invalid slider value")
		return nil, err
	}
	c.state.SetAxes(axes)
	c.store.Set(view.RegionManual, view.Manual(true, axes))

	cmd := core.ManualControl(axes)
	ack, err := c.api.SendManual(ctx, cmd)
	c.record(ctx, ActionManualInput, cmd, err)
	if err != nil {
		return nil, c.fail(AlertManualFailed, err)
	}
	return ack, nil
}

// handleManualStop zeroes the sliders and posts stop. Slider input still
// queued behind it is discarded; one already in flight finishes first.
func (c *Controller) handleManualStop(ctx context.Context, _ dispatcher.Action) (any, error) {
	if !c.state.ManualEnabled() {
		return nil, ErrManualDisabled
	}
	c.stoppedAt.Store(time.Now().UnixNano())
	c.manualMu.Lock()
	defer c.manualMu.Unlock()

	c.state.SetAxes(core.Axes{})
	c.store.Set(view.RegionManual, view.Manual(true, core.Axes{}))

	cmd := core.ManualCommand{Command: core.CommandStop}
	ack, err := c.api.SendManual(ctx, cmd)
	c.record(ctx, ActionManualStop, cmd, err)
	if err != nil {
		return nil, c.fail(AlertManualFailed, err)
	}
	return ack, nil
}

func (c *Controller) supersededByStop(a dispatcher.Action) bool {
	if a.Timestamp.IsZero() {
		return false
	}
	return a.Timestamp.UnixNano() <= c.stoppedAt.Load()
}

// handleClipRecord is allowed in either mode.
func (c *Controller) handleClipRecord(ctx context.Context, _ dispatcher.Action) (any, error) {
	cmd := core.ManualCommand{Command: core.CommandRecordClip}
	ack, err := c.api.SendManual(ctx, cmd)
	c.record(ctx, ActionClipRecord, cmd, err)
	if err != nil {
		return nil, c.fail(AlertManualFailed, err)
	}
	return ack, nil
}
