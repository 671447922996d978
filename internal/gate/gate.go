// Package gate implements the manual connect action: one health probe
// against the configured backend, after which the sync engine is started.
package gate

import (
	"context"
	"log/slog"

	"github.com/md-najmul-hossain-nur/Submarine/internal/metrics"
	"github.com/md-najmul-hossain-nur/Submarine/internal/session"
	"github.com/md-najmul-hossain-nur/Submarine/internal/view"
	"github.com/md-najmul-hossain-nur/Submarine/pkg/core"
)

// AlertUnreachable is shown when the probe fails.
const AlertUnreachable = "Could not reach vehicle. Check Wi-Fi or token."

// Prober performs the health probe.
type Prober interface {
	Health(ctx context.Context) (core.Health, error)
}

// Starter starts polling. Start must be idempotent.
type Starter interface {
	Start(ctx context.Context) bool
}

type Alerter interface {
	Alert(msg string)
}

// Gate is the connection state machine.
type Gate struct {
	probe   Prober
	engine  Starter
	store   *view.Store
	state   *session.State
	alerter Alerter
	logger  *slog.Logger
}

// New creates a Gate and renders the initial connect button.
func New(probe Prober, engine Starter, store *view.Store, state *session.State, alerter Alerter, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		probe:   probe,
		engine:  engine,
		store:   store,
		state:   state,
		alerter: alerter,
		logger:  logger,
	}
	store.Set(view.RegionConnect, view.ConnectIdle())
	return g
}

// Connect runs one connect attempt. pollCtx bounds the lifetime of the poll
// loops started on success; ctx bounds the probe itself. It reports whether
// the session is connected afterwards. There is no automatic retry.
func (g *Gate) Connect(ctx, pollCtx context.Context) bool {
	if !g.state.BeginConnect() {
		g.logger.Debug("Connect ignored", "phase", g.state.Phase())
		return g.state.Phase() == session.Connected
	}
	g.store.Set(view.RegionConnect, view.ConnectInProgress())

	_, err := g.probe.Health(ctx)
	metrics.ObserveConnect(err)
	if err != nil {
		g.state.FinishConnect(false)
		g.store.Set(view.RegionConnect, view.ConnectRetry())
		g.logger.Warn("Connect failed", "error", err)
		g.alerter.Alert(AlertUnreachable)
		return false
	}

	g.state.FinishConnect(true)
	g.store.Set(view.RegionConnect, view.ConnectDone())
	g.logger.Info("Connected to vehicle")
	if !g.engine.Start(pollCtx) {
		g.logger.Debug("Sync engine already running")
	}
	return true
}
