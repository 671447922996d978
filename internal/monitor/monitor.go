// Package monitor periodically writes a JSON status file describing
// connection phase and per-resource sync health, for operators tailing it
// from another terminal or a watchdog script.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/md-najmul-hossain-nur/Submarine/internal/logging"
	"github.com/md-najmul-hossain-nur/Submarine/internal/session"
	"github.com/md-najmul-hossain-nur/Submarine/internal/syncer"
)

// StatusSource reports per-resource sync health.
type StatusSource interface {
	Status() map[syncer.Resource]syncer.ResourceStatus
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source     StatusSource
	State      *session.State
	LogManager *logging.SlogManager
	Path       string
	Interval   time.Duration
	// Pending reports unflushed flight log rows; nil when the recorder is off.
	Pending func() int
}

// ResourceReport is one resource's line in the status file.
type ResourceReport struct {
	Resource    string     `json:"resource"`
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	Failures    int        `json:"failures"`
}

// Report is the status file body.
type Report struct {
	Time           time.Time        `json:"time"`
	Phase          string           `json:"phase"`
	PollingStarted bool             `json:"pollingStarted"`
	ManualEnabled  bool             `json:"manualEnabled"`
	PendingRows    *int             `json:"pendingRows,omitempty"`
	Resources      []ResourceReport `json:"resources"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Report builds the current status.
func (s *Service) Report() Report {
	r := Report{Time: time.Now().UTC()}
	if st := s.deps.State; st != nil {
		r.Phase = string(st.Phase())
		r.PollingStarted = st.PollingStarted()
		r.ManualEnabled = st.ManualEnabled()
	}
	if s.deps.Pending != nil {
		n := s.deps.Pending()
		r.PendingRows = &n
	}

	status := map[syncer.Resource]syncer.ResourceStatus{}
	if s.deps.Source != nil {
		status = s.deps.Source.Status()
	}
	for res, rs := range status {
		r.Resources = append(r.Resources, ResourceReport{
			Resource:    string(res),
			LastAttempt: timePtr(rs.LastAttempt),
			LastSuccess: timePtr(rs.LastSuccess),
			LastError:   rs.LastError,
			Failures:    rs.Failures,
		})
	}
	sort.Slice(r.Resources, func(i, j int) bool {
		return r.Resources[i].Resource < r.Resources[j].Resource
	})
	return r
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// WriteStatus writes the report atomically: a temp file is renamed over
// the status file so readers never see a partial document.
func (s *Service) WriteStatus() error {
	data, err := json.MarshalIndent(s.Report(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	dir := filepath.Dir(s.deps.Path)
	tmp, err := os.CreateTemp(dir, ".status-*")
	if err != nil {
		return fmt.Errorf("creating status file: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.deps.Path)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	if s.deps.Path == "" {
		return fmt.Errorf("status file path not set")
	}
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			if err := s.WriteStatus(); err != nil && s.deps.LogManager != nil {
				s.deps.LogManager.Logger().Error("Error writing status file", "error", err, "path", s.deps.Path)
			}
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}
