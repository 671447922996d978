package syncer

import (
	"context"

	"github.com/md-najmul-hossain-nur/Submarine/internal/metrics"
	"github.com/md-najmul-hossain-nur/Submarine/internal/view"
)

// Health is the one resource whose failure is rendered: the region switches
// to a static failure text.
func (e *Engine) refreshHealth(ctx context.Context) (string, error) {
	h, err := e.api.Health(ctx)
	if err != nil {
		e.store.Set(view.RegionHealth, view.HealthFailed())
		return metrics.ResultError, err
	}
	e.store.Set(view.RegionHealth, view.Health(h))
	return metrics.ResultSuccess, nil
}

func (e *Engine) refreshConfig(ctx context.Context) (string, error) {
	cfg, err := e.api.Config(ctx)
	if err != nil {
		return metrics.ResultError, err
	}
	e.mu.Lock()
	e.config = cfg
	e.mu.Unlock()
	return metrics.ResultSuccess, nil
}

func (e *Engine) refreshTelemetry(ctx context.Context) (string, error) {
	rows, err := e.api.LatestTelemetry(ctx, e.settings.TelemetryLimit)
	if err != nil {
		return metrics.ResultError, err
	}
	if len(rows) == 0 {
		return metrics.ResultEmpty, nil
	}

	latest := rows[len(rows)-1]
	e.store.Set(view.RegionHeader, view.Header(latest))
	e.store.Set(view.RegionTelemetry, view.Telemetry(latest, e.BackendConfig()))

	for _, s := range e.telemetrySinks {
		s.WriteTelemetry(ctx, rows)
	}
	return metrics.ResultSuccess, nil
}

func (e *Engine) refreshEvents(ctx context.Context) (string, error) {
	rows, err := e.api.Events(ctx, e.settings.EventsLimit)
	if err != nil {
		return metrics.ResultError, err
	}
	e.store.Set(view.RegionEvents, view.Events(rows))

	for _, s := range e.eventSinks {
		s.WriteEvents(ctx, rows)
	}
	return metrics.ResultSuccess, nil
}

func (e *Engine) refreshMissions(ctx context.Context) (string, error) {
	missions, err := e.api.Missions(ctx)
	if err != nil {
		return metrics.ResultError, err
	}
	e.store.Set(view.RegionMissions, view.Missions(missions))
	e.store.Set(view.RegionMode, view.MissionMode(missions))

	var missionID int64
	if cur, ok := view.CurrentMission(missions); ok {
		missionID = cur.ID
	}
	e.state.SetTargetMission(missionID)
	form, _ := view.Lookup[view.UploadView](e.store, view.RegionUpload)
	form.MissionID = missionID
	e.store.Set(view.RegionUpload, form)
	return metrics.ResultSuccess, nil
}

func (e *Engine) refreshClips(ctx context.Context) (string, error) {
	clips, err := e.api.VideoClips(ctx)
	if err != nil {
		return metrics.ResultError, err
	}
	e.store.Set(view.RegionClips, view.Clips(clips))
	return metrics.ResultSuccess, nil
}

func (e *Engine) refreshTargets(ctx context.Context) (string, error) {
	targets, err := e.api.Targets(ctx)
	if err != nil {
		return metrics.ResultError, err
	}
	e.store.Set(view.RegionTargets, view.Targets(targets))
	return metrics.ResultSuccess, nil
}

// Autonomy owns the manual-control flag: manual input is accepted only while
// autonomy is off.
func (e *Engine) refreshAuto(ctx context.Context) (string, error) {
	s, err := e.api.AutoState(ctx)
	if err != nil {
		return metrics.ResultError, err
	}
	e.store.Set(view.RegionAuto, view.Auto(s))
	e.store.Set(view.RegionMode, view.AutoMode(s))

	manual := !s.IsEnabled
	if e.state.SetManualEnabled(manual) {
		e.logger.Info("Manual control toggled", "enabled", manual, "phase", s.Phase)
	}
	e.store.Set(view.RegionManual, view.Manual(manual, e.state.Axes()))
	return metrics.ResultSuccess, nil
}
