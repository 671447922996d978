// Package influx exports telemetry samples to InfluxDB. When the server is
// unreachable at connect time, points are appended as gzip line protocol
// to a backup file instead, so they can be imported later.
package influx

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	protocol "github.com/influxdata/line-protocol"
	"github.com/md-najmul-hossain-nur/Submarine/pkg/core"
	"github.com/rs/zerolog"
)

// Measurement is the measurement name of exported samples.
const Measurement = "telemetry"

// retentionSeconds applies to a bucket created by Connect.
const retentionSeconds = 60 * 60 * 24 * 90

// Config selects the server and bucket.
type Config struct {
	Protocol   string
	Host       string
	Port       string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
	Vehicle    string // tag value, usually the backend address
}

// URL is the server address built from Protocol, Host and Port.
func (c Config) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// Manager handles the InfluxDB connection and writes.
type Manager struct {
	cfg    Config
	log    zerolog.Logger
	client influxdb2.Client
	writer influxdb2_api.WriteAPI

	mu         sync.Mutex
	backupFile *os.File
	backup     *gzip.Writer
	encoder    *protocol.Encoder
	valid      bool
	lastTime   time.Time
}

// NewManager creates a manager; call Connect before writing.
func NewManager(cfg Config, log zerolog.Logger) *Manager {
	return &Manager{
		cfg: cfg,
		log: log.With().Str("component", "influx").Logger(),
	}
}

// Connect pings the server and prepares the bucket. A failed ping
// switches the manager to the backup file.
func (m *Manager) Connect(ctx context.Context) error {
	m.client = influxdb2.NewClientWithOptions(
		m.cfg.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.log.Warn().Err(err).Str("backupPath", m.cfg.BackupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.ensureBucket(ctx); err != nil {
		return err
	}
	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.log.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.writer.Errors())

	m.mu.Lock()
	m.valid = true
	m.mu.Unlock()
	m.log.Info().Str("url", m.cfg.URL()).Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.cfg.BackupPath == "" {
		return fmt.Errorf("influxdb unreachable at %s and no backup path set", m.cfg.URL())
	}
	file, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.mu.Lock()
	m.backupFile = file
	m.backup = gzip.NewWriter(file)
	m.encoder = protocol.NewEncoder(m.backup)
	m.encoder.SetPrecision(time.Nanosecond)
	m.encoder.SetFieldTypeSupport(protocol.UintSupport)
	m.mu.Unlock()
	return nil
}

func (m *Manager) ensureBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.log.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("creating organization %s: %w", m.cfg.Org, err)
		}
	}

	if _, err := m.client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}
	m.log.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = m.client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: retentionSeconds,
	})
	if err != nil {
		return fmt.Errorf("creating bucket %s: %w", m.cfg.Bucket, err)
	}
	return nil
}

// Online reports whether points go to the server rather than the backup.
func (m *Manager) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// WriteTelemetry exports samples newer than the last exported one. Poll
// windows overlap, so older samples were already sent.
func (m *Manager) WriteTelemetry(_ context.Context, samples []core.TelemetrySample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range samples {
		if s.Timestamp.IsZero() || !s.Timestamp.After(m.lastTime) {
			continue
		}
		if err := m.writePoint(SamplePoint(s, m.cfg.Vehicle)); err != nil {
			m.log.Error().Err(err).Msg("Failed to export telemetry sample")
			return
		}
		m.lastTime = s.Timestamp.Time
	}
}

// writePoint requires m.mu.
func (m *Manager) writePoint(point *influxdb2_write.Point) error {
	if m.valid {
		m.writer.WritePoint(point)
		return nil
	}
	if m.encoder == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	if _, err := m.encoder.Encode(point); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// SamplePoint converts a sample. Missing readings are left out of the
// point rather than written as zero.
func SamplePoint(s core.TelemetrySample, vehicle string) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(Measurement).SetTime(s.Timestamp.Time)
	if vehicle != "" {
		p.AddTag("vehicle", vehicle)
	}
	fields := []struct {
		name  string
		value *float64
	}{
		{"yaw", s.Yaw},
		{"pitch", s.Pitch},
		{"roll", s.Roll},
		{"battery_v", s.BatteryV},
		{"battery_i", s.BatteryI},
		{"water_temp", s.WaterTemp},
		{"internal_temp", s.InternalTemp},
		{"turbidity", s.Turbidity},
	}
	for _, f := range fields {
		if f.value != nil {
			p.AddField(f.name, *f.value)
		}
	}
	p.AddField("leak", s.Leak)
	return p
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}
	var err error
	if m.backup != nil {
		err = m.backup.Close()
		if cErr := m.backupFile.Close(); err == nil {
			err = cErr
		}
		m.backup = nil
		m.encoder = nil
	}
	return err
}
