// Package recorder keeps a local flight log of what the console observed
// and sent. Writes are queued and flushed in batches on a timer, so poll
// loops and command handlers never wait on the database.
package recorder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/md-najmul-hossain-nur/Submarine/internal/queue"
	"github.com/md-najmul-hossain-nur/Submarine/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultFlushInterval applies when Config.FlushInterval is zero.
const DefaultFlushInterval = 2 * time.Second

// maxPending bounds each queue while the database is unreachable.
const maxPending = 10000

// Config selects the database and flush cadence.
type Config struct {
	Driver        string
	Path          string
	DSN           string
	FlushInterval time.Duration
}

// Recorder persists telemetry, events and commands.
type Recorder struct {
	db  *gorm.DB
	log zerolog.Logger
	now func() time.Time

	interval  time.Duration
	telemetry *queue.Queue[TelemetryRecord]
	events    *queue.Queue[EventRecord]
	commands  *queue.Queue[CommandRecord]

	flushMu  sync.Mutex
	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New opens the database, migrates it and starts the flush loop.
func New(cfg Config, log zerolog.Logger) (*Recorder, error) {
	db, err := Open(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	r := NewWithDB(db, cfg.FlushInterval, log)
	r.Start()
	return r, nil
}

// NewWithDB wraps an already migrated database. The flush loop is not
// started; call Start, or Flush manually.
func NewWithDB(db *gorm.DB, interval time.Duration, log zerolog.Logger) *Recorder {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Recorder{
		db:        db,
		log:       log.With().Str("component", "recorder").Logger(),
		now:       time.Now,
		interval:  interval,
		telemetry: queue.NewBounded[TelemetryRecord](maxPending),
		events:    queue.NewBounded[EventRecord](maxPending),
		commands:  queue.NewBounded[CommandRecord](maxPending),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the flush loop until Close.
func (r *Recorder) Start() {
	if r.started.CompareAndSwap(false, true) {
		go r.loop()
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if err := r.Flush(context.Background()); err != nil {
				r.log.Error().Err(err).Msg("Flush failed, rows kept for next attempt")
			}
		}
	}
}

// WriteTelemetry queues samples. Samples without a timestamp cannot be
// deduplicated and are skipped.
func (r *Recorder) WriteTelemetry(_ context.Context, samples []core.TelemetrySample) {
	for _, s := range samples {
		if s.Timestamp.IsZero() {
			continue
		}
		r.telemetry.Push(telemetryRecord(s))
	}
}

// WriteEvents queues events.
func (r *Recorder) WriteEvents(_ context.Context, events []core.Event) {
	for _, e := range events {
		r.events.Push(eventRecord(e))
	}
}

// RecordCommand queues one sent mutation with its outcome.
func (r *Recorder) RecordCommand(_ context.Context, action string, payload any, err error) {
	r.commands.Push(commandRecord(r.now(), action, payload, err))
}

// Pending returns the number of rows waiting for the next flush.
func (r *Recorder) Pending() int {
	return r.telemetry.Len() + r.events.Len() + r.commands.Len()
}

// Flush writes every queued row. Rows of a failed table are requeued.
func (r *Recorder) Flush(ctx context.Context) error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	db := r.db.WithContext(ctx)
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(flushQueue(db, r.telemetry, "telemetry", clause.OnConflict{
		Columns:   []clause.Column{{Name: "timestamp"}},
		DoNothing: true,
	}, func(t TelemetryRecord) any { return t.Timestamp.UnixNano() }))
	keep(flushQueue(db, r.events, "events", clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"level", "message", "mission_id"}),
	}, func(e EventRecord) any { return e.ID }))
	keep(flushQueue[CommandRecord](db, r.commands, "commands", nil, nil))

	if firstErr == nil {
		r.log.Trace().Msg("Flushed flight log")
	}
	return firstErr
}

// flushQueue drains q into one batched insert. With a key func, rows are
// deduplicated first (last one wins); Postgres rejects an upsert that
// touches the same row twice in one statement.
func flushQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, conflict clause.Expression, key func(T) any) error {
	rows := q.Drain(0)
	if len(rows) == 0 {
		return nil
	}
	if key != nil {
		rows = dedupe(rows, key)
	}
	tx := db
	if conflict != nil {
		tx = tx.Clauses(conflict)
	}
	if err := tx.CreateInBatches(rows, 500).Error; err != nil {
		q.Requeue(rows)
		return fmt.Errorf("writing %d %s rows: %w", len(rows), name, err)
	}
	return nil
}

// Close stops the flush loop, writes what is left and closes the database.
func (r *Recorder) Close(ctx context.Context) error {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	if r.started.Load() {
		select {
		case <-r.done:
		case <-ctx.Done():
		}
	}
	err := r.Flush(ctx)
	if sqlDB, dbErr := r.db.DB(); dbErr == nil {
		if cErr := sqlDB.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}
	return err
}

func dedupe[T any](rows []T, key func(T) any) []T {
	last := make(map[any]int, len(rows))
	for i, row := range rows {
		last[key(row)] = i
	}
	if len(last) == len(rows) {
		return rows
	}
	out := make([]T, 0, len(last))
	for i, row := range rows {
		if last[key(row)] == i {
			out = append(out, row)
		}
	}
	return out
}
