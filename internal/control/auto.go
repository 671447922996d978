package control

import (
	"context"
	"errors"
	"strings"

	"github.com/md-najmul-hossain-nur/Submarine/internal/dispatcher"
	"github.com/md-najmul-hossain-nur/Submarine/internal/syncer"
	"github.com/md-najmul-hossain-nur/Submarine/pkg/core"
)

func (c *Controller) autoPreset(enabled bool, phase string) dispatcher.HandlerFunc {
	return func(ctx context.Context, a dispatcher.Action) (any, error) {
		return c.submitAuto(ctx, a.Name, core.AutoStateUpdate{IsEnabled: enabled, Phase: phase})
	}
}

// handleAutoSet submits the auto form: args are phase, task and an optional
// free-text note. Submitting the form always enables autonomy.
func (c *Controller) handleAutoSet(ctx context.Context, a dispatcher.Action) (any, error) {
	phase := strings.TrimSpace(a.Arg(0))
	if phase == "" {
		c.alerter.Alert("Phase is required")
		return nil, errors.New("auto.set: empty phase")
	}
	task := a.Arg(1)
	var note string
	if len(a.Args) > 2 {
		note = strings.Join(a.Args[2:], " ")
	}
	return c.submitAuto(ctx, ActionAutoSet, core.AutoStateUpdate{
		IsEnabled: true,
		Phase:     phase,
		Task:      &task,
		Note:      &note,
	})
}

func (c *Controller) submitAuto(ctx context.Context, action string, u core.AutoStateUpdate) (any, error) {
	s, err := c.api.SetAutoState(ctx, u)
	c.record(ctx, action, u, err)
	if err != nil {
		return nil, c.fail(AlertAutoFailed, err)
	}
	c.resync(ctx, syncer.Auto)
	return s, nil
}
