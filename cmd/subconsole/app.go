package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/md-najmul-hossain-nur/Submarine/internal/api"
	"github.com/md-najmul-hossain-nur/Submarine/internal/config"
	"github.com/md-najmul-hossain-nur/Submarine/internal/console"
	"github.com/md-najmul-hossain-nur/Submarine/internal/control"
	"github.com/md-najmul-hossain-nur/Submarine/internal/dispatcher"
	"github.com/md-najmul-hossain-nur/Submarine/internal/gate"
	"github.com/md-najmul-hossain-nur/Submarine/internal/influx"
	"github.com/md-najmul-hossain-nur/Submarine/internal/logging"
	"github.com/md-najmul-hossain-nur/Submarine/internal/metrics"
	"github.com/md-najmul-hossain-nur/Submarine/internal/mirror"
	"github.com/md-najmul-hossain-nur/Submarine/internal/monitor"
	intOtel "github.com/md-najmul-hossain-nur/Submarine/internal/otel"
	"github.com/md-najmul-hossain-nur/Submarine/internal/recorder"
	"github.com/md-najmul-hossain-nur/Submarine/internal/session"
	"github.com/md-najmul-hossain-nur/Submarine/internal/syncer"
	"github.com/md-najmul-hossain-nur/Submarine/internal/view"
	"github.com/rs/zerolog"
)

// app holds every long-lived component of one run.
type app struct {
	sessionStart time.Time

	slog    *logging.SlogManager
	logger  *slog.Logger
	zlog    zerolog.Logger
	otel    *intOtel.Provider
	logFile *os.File
	closers []func(context.Context) error

	state       *session.State
	store       *view.Store
	client      *api.Client
	probeClient *api.Client
	engine      *syncer.Engine

	recorder *recorder.Recorder
	influx   *influx.Manager
}

// newApp loads logging and storage sinks and builds the sync engine.
// Interactive runs log to a file so the terminal stays readable; the
// one-shot commands log to stderr.
func newApp(ctx context.Context, interactive bool) (*app, error) {
	a := &app{
		sessionStart: time.Now(),
		slog:         logging.NewSlogManager(),
		state:        session.New(),
		store:        view.NewStore(),
	}

	if err := a.setupLogging(interactive); err != nil {
		a.close()
		return nil, err
	}
	metrics.Init()

	apiCfg := config.GetAPIConfig()
	a.client = api.New(apiCfg.ServerURL, api.WithToken(apiCfg.OperatorToken), api.WithTimeout(apiCfg.Timeout))
	a.probeClient = a.client
	if apiCfg.ProbeURL != "" && strings.TrimRight(apiCfg.ProbeURL, "/") != a.client.BaseURL() {
		a.probeClient = api.New(apiCfg.ProbeURL, api.WithToken(apiCfg.OperatorToken), api.WithTimeout(apiCfg.Timeout))
	}

	poll := config.GetPollConfig()
	opts := []syncer.Option{
		syncer.WithLogger(a.logger),
		syncer.WithSettings(syncer.Settings{
			TelemetryInterval: poll.TelemetryInterval,
			EventsInterval:    poll.EventsInterval,
			AutoInterval:      poll.AutoInterval,
			TelemetryLimit:    poll.TelemetryLimit,
			EventsLimit:       poll.EventsLimit,
		}),
	}
	if interactive {
		opts = append(opts, a.setupSinks(ctx)...)
	}
	a.engine = syncer.New(a.client, a.store, a.state, opts...)
	return a, nil
}

func (a *app) setupLogging(interactive bool) error {
	level := config.GetString("logLevel")
	var out io.Writer = os.Stderr
	var otelOut io.Writer

	if interactive {
		logsDir := config.GetString("logsDir")
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return fmt.Errorf("creating logs dir: %w", err)
		}
		path := logging.LogFilePath(logsDir, appName, a.sessionStart)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		a.logFile = f
		out = f
		otelOut = f
	}

	otelCfg := config.GetOTelConfig()
	provider, err := intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		Version:      Version,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    otelOut,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	a.otel = provider

	ctxProvider := logging.SessionContext(a.state, func() string { return string(a.state.Phase()) })
	setupOpts := []logging.SetupOption{logging.WithContext(ctxProvider)}
	if config.GetBool("graylog.enabled") {
		setupOpts = append(setupOpts, logging.WithGraylog(config.GetString("graylog.address")))
	}
	if err := a.slog.Setup(out, level, provider.LoggerProvider(), setupOpts...); err != nil {
		// Graylog is optional; the other sinks are already live.
		a.slog.Logger().Warn("Graylog disabled", "error", err)
	}
	a.logger = a.slog.Logger()
	a.zlog = logging.NewZerolog(out, level, ctxProvider)
	return nil
}

// setupSinks opens the optional flight log and InfluxDB export. Either one
// failing only disables that sink.
func (a *app) setupSinks(ctx context.Context) []syncer.Option {
	var opts []syncer.Option

	if rc := config.GetRecorderConfig(); rc.Enabled {
		rec, err := recorder.New(recorder.Config{
			Driver:        rc.Driver,
			Path:          rc.Path,
			DSN:           rc.DSN,
			FlushInterval: rc.FlushInterval,
		}, a.zlog)
		if err != nil {
			a.logger.Error("Flight log disabled", "error", err)
		} else {
			a.recorder = rec
			a.closers = append(a.closers, rec.Close)
			opts = append(opts, syncer.WithTelemetrySink(rec), syncer.WithEventSink(rec))
		}
	}

	if ic := config.GetInfluxConfig(); ic.Enabled {
		m := influx.NewManager(influx.Config{
			Protocol:   ic.Protocol,
			Host:       ic.Host,
			Port:       ic.Port,
			Token:      ic.Token,
			Org:        ic.Org,
			Bucket:     ic.Bucket,
			BackupPath: filepath.Join(config.GetString("logsDir"), fmt.Sprintf("telemetry.%s.lp.gz", a.sessionStart.Format("20060102_150405"))),
			Vehicle:    config.GetString("api.serverUrl"),
		}, a.zlog)
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := m.Connect(connectCtx)
		cancel()
		if err != nil {
			a.logger.Error("InfluxDB export disabled", "error", err)
			_ = m.Close()
		} else {
			a.influx = m
			a.closers = append(a.closers, func(context.Context) error { return m.Close() })
			opts = append(opts, syncer.WithTelemetrySink(m))
		}
	}
	return opts
}

// runConsole wires the command side and runs the terminal until quit.
func (a *app) runConsole(ctx context.Context, in io.Reader, out io.Writer) error {
	d, err := dispatcher.New(logging.NewDispatcherLogger(a.zlog))
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	defer d.Close()

	con := console.New(in, out, a.store, a.logger)

	var ctlOpts []control.Option
	ctlOpts = append(ctlOpts, control.WithLogger(a.logger))
	if a.recorder != nil {
		ctlOpts = append(ctlOpts, control.WithCommandSink(a.recorder))
	}
	ctl := control.New(a.client, a.engine, a.store, a.state, con, con, ctlOpts...)
	ctl.Register(d)
	registerLifecycleHandlers(d, a)

	g := gate.New(a.probeClient, a.engine, a.store, a.state, con, a.logger)
	a.store.Set(view.RegionManual, view.Manual(a.state.ManualEnabled(), a.state.Axes()))
	a.store.Set(view.RegionUpload, view.UploadView{})

	if mc := config.GetMirrorConfig(); mc.Enabled {
		srv := mirror.New(a.store, a.logger)
		go func() {
			if err := srv.ListenAndServe(ctx, mc.Address); err != nil {
				a.logger.Error("Mirror server stopped", "error", err)
			}
		}()
	}

	if mon := config.GetMonitorConfig(); mon.StatusFile != "" {
		deps := monitor.Dependencies{
			Source:     a.engine,
			State:      a.state,
			LogManager: a.slog,
			Path:       mon.StatusFile,
			Interval:   mon.Interval,
		}
		if a.recorder != nil {
			deps.Pending = a.recorder.Pending
		}
		svc := monitor.NewService(deps)
		if err := svc.Start(); err != nil {
			a.logger.Error("Status monitor disabled", "error", err)
		} else {
			defer svc.Stop()
		}
	}

	if !config.GetBool("console.requireConnect") {
		a.engine.Start(ctx)
	}

	err = con.Run(ctx, d, g, ctx)
	if _, fErr := d.Dispatch(context.Background(), dispatcher.Action{Name: actionFlush}); fErr != nil {
		a.logger.Warn("Flush on exit failed", "error", fErr)
	}
	return err
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && a.logger != nil {
			a.logger.Warn("Shutdown step failed", "error", err)
		}
	}
	a.closers = nil
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil && a.logger != nil {
			a.logger.Warn("OTel shutdown failed", "error", err)
		}
	}
	_ = a.slog.Close(ctx)
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}
