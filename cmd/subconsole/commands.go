package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/md-najmul-hossain-nur/Submarine/internal/gate"
	"github.com/md-najmul-hossain-nur/Submarine/internal/metrics"
	"github.com/md-najmul-hossain-nur/Submarine/internal/syncer"
	"github.com/md-najmul-hossain-nur/Submarine/internal/view"
	"gopkg.in/yaml.v3"
)

// probe runs one health check and prints the result line.
func probe(ctx context.Context, p gate.Prober, out io.Writer) error {
	h, err := p.Health(ctx)
	metrics.ObserveConnect(err)
	if err != nil {
		fmt.Fprintln(out, view.HealthFailedText)
		return err
	}
	fmt.Fprintln(out, view.Health(h).Text)
	return nil
}

// Refresher is the part of the sync engine snapshot needs.
type Refresher interface {
	Refresh(ctx context.Context, resources ...syncer.Resource) error
}

// snapshot refreshes every resource once and prints the view. Failed
// resources are logged and left out; it fails only when health fails,
// since then nothing else is trustworthy either.
func snapshot(ctx context.Context, r Refresher, store *view.Store, out io.Writer, asYAML bool, logger *slog.Logger) error {
	if err := r.Refresh(ctx, syncer.All...); err != nil {
		logger.Warn("Some resources failed to refresh", "error", err)
	}
	if hv, ok := view.Lookup[view.HealthView](store, view.RegionHealth); !ok || !hv.OK {
		return errors.New(view.HealthFailedText)
	}

	regions := make(map[string]any)
	for reg, v := range store.Snapshot() {
		regions[string(reg)] = v
	}

	if asYAML {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(regions); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(regions)
}
