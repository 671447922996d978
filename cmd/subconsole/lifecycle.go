package main

import (
	"context"
	"fmt"
	"time"

	"github.com/md-najmul-hossain-nur/Submarine/internal/console"
	"github.com/md-najmul-hossain-nur/Submarine/internal/dispatcher"
)

// App-level actions. The console's version command reaches actionVersion;
// actionFlush runs on quit.
const (
	actionVersion = console.ActionVersion
	actionFlush   = "app.flush"
)

// registerLifecycleHandlers registers app-level handlers with the dispatcher.
func registerLifecycleHandlers(d *dispatcher.Dispatcher, a *app) {
	d.Register(actionVersion, func(context.Context, dispatcher.Action) (any, error) {
		return fmt.Sprintf("%s %s (%s)", appName, Version, BuildDate), nil
	})

	// Flush pushes buffered flight log rows and OTel records out, so a
	// clean quit never loses the tail of the session.
	d.Register(actionFlush, func(ctx context.Context, _ dispatcher.Action) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if a.recorder != nil {
			if err := a.recorder.Flush(ctx); err != nil {
				return nil, err
			}
		}
		if a.otel != nil {
			if err := a.otel.Flush(ctx); err != nil {
				a.logger.Warn("Failed to flush OTel data", "error", err)
			}
		}
		return "ok", nil
	}, dispatcher.Logged())
}
