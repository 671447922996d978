// Package subtest provides an in-memory stand-in for the vehicle backend.
// It speaks the same HTTP contract and records every request so tests can
// assert on exactly what the console sent.
package subtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/md-najmul-hossain-nur/Submarine/pkg/core"
)

// Request is one recorded call.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
	Form   map[string]string // multipart fields, upload only
	File   []byte            // multipart image, upload only
}

// JSON decodes the recorded body into a generic map.
func (r Request) JSON() map[string]any {
	var m map[string]any
	_ = json.Unmarshal(r.Body, &m)
	return m
}

// Backend is a fake vehicle backend.
type Backend struct {
	Server *httptest.Server

	mu        sync.Mutex
	now       func() time.Time
	requests  []Request
	failures  map[string]int
	delays    map[string]time.Duration
	token     string
	seq       int64
	telemetry []core.TelemetrySample
	events    []core.Event
	missions  []core.Mission
	clips     []core.VideoClip
	targets   []core.Target
	auto      core.AutoState
	config    core.BackendConfig
	healthErr bool
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		now:      func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) },
		failures: make(map[string]int),
		delays:   make(map[string]time.Duration),
		auto:     core.AutoState{Phase: core.PhaseIdle, Task: "inspect"},
		config:   core.DefaultBackendConfig(),
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the base address of the fake backend.
func (b *Backend) URL() string {
	return b.Server.URL
}

// RequireToken makes every mutating request demand X-Operator-Token.
func (b *Backend) RequireToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = token
}

// Fail makes the next n requests matching "METHOD /path" answer 500.
func (b *Backend) Fail(method, path string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] += n
}

// Delay makes every request matching "METHOD /path" wait d before it is
// handled and recorded, like a slow vehicle link.
func (b *Backend) Delay(method, path string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delays[method+" "+path] = d
}

// FailHealth makes /api/health answer 503 until cleared.
func (b *Backend) FailHealth(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthErr = fail
}

// SetTelemetry replaces the telemetry rows (oldest first).
func (b *Backend) SetTelemetry(rows ...core.TelemetrySample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.telemetry = append([]core.TelemetrySample(nil), rows...)
}

// SetAutoState replaces the autonomy state.
func (b *Backend) SetAutoState(s core.AutoState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.auto = s
}

// AutoStateNow returns the current autonomy state.
func (b *Backend) AutoStateNow() core.AutoState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.auto
}

// SetConfig replaces /api/config.
func (b *Backend) SetConfig(cfg core.BackendConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.config = cfg
}

// AddEvent appends an event and returns its id.
func (b *Backend) AddEvent(level, message string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addEventLocked(level, message)
}

// AddMission inserts a mission at the head of the list (newest first, like the backend).
func (b *Backend) AddMission(name, status, mode string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	m := core.Mission{ID: b.seq, Name: name, Status: status, Mode: mode, CreatedAt: core.NewTimestamp(b.now())}
	b.missions = append([]core.Mission{m}, b.missions...)
	return m.ID
}

// AddClip inserts a video clip.
func (b *Backend) AddClip(label, url string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	c := core.VideoClip{ID: b.seq, Label: label, URL: url, Timestamp: core.NewTimestamp(b.now())}
	b.clips = append([]core.VideoClip{c}, b.clips...)
	return c.ID
}

// AddTarget inserts a target with the given status.
func (b *Backend) AddTarget(label, status string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	t := core.Target{
		ID:        b.seq,
		Label:     label,
		Filename:  label + ".png",
		URL:       "/static/uploads/" + label + ".png",
		Status:    status,
		CreatedAt: core.NewTimestamp(b.now()),
	}
	if status == core.TargetMatched {
		t.MatchedAt = core.NewTimestamp(b.now())
	}
	b.targets = append([]core.Target{t}, b.targets...)
	return t.ID
}

// Targets returns a copy of the stored targets.
func (b *Backend) Targets() []core.Target {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.Target(nil), b.targets...)
}

// Requests returns every recorded request.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// RequestsTo returns recorded requests for method and path (query ignored).
func (b *Backend) RequestsTo(method, path string) []Request {
	var out []Request
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Count is len(RequestsTo(method, path)).
func (b *Backend) Count(method, path string) int {
	return len(b.RequestsTo(method, path))
}

// Reset forgets recorded requests.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = nil
}

func (b *Backend) addEventLocked(level, message string) int64 {
	b.seq++
	b.events = append(b.events, core.Event{ID: b.seq, Level: level, Message: message, Timestamp: core.NewTimestamp(b.now())})
	return b.seq
}

func (b *Backend) record(r *http.Request) Request {
	rec := Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Header: r.Header.Clone()}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(10 << 20); err == nil {
			rec.Form = make(map[string]string)
			for k, v := range r.MultipartForm.Value {
				if len(v) > 0 {
					rec.Form[k] = v[0]
				}
			}
			if f, _, err := r.FormFile("image"); err == nil {
				rec.File, _ = io.ReadAll(f)
				f.Close()
			}
		}
	} else if r.Body != nil {
		rec.Body, _ = io.ReadAll(r.Body)
	}
	b.requests = append(b.requests, rec)
	return rec
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	delay := b.delays[r.Method+" "+r.URL.Path]
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rec := b.record(r)

	key := r.Method + " " + r.URL.Path
	if n := b.failures[key]; n > 0 {
		b.failures[key] = n - 1
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
		return
	}
	if r.Method != http.MethodGet && b.token != "" && r.Header.Get("X-Operator-Token") != b.token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	path := r.URL.Path
	switch {
	case path == "/api/health":
		if b.healthErr {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "down"})
			return
		}
		writeJSON(w, http.StatusOK, core.Health{Status: "ok", Time: b.now().Format("2006-01-02T15:04:05.000000")})
	case path == "/api/config":
		writeJSON(w, http.StatusOK, b.config)
	case path == "/api/telemetry/latest":
		rows := b.telemetry
		if n := limit(r, 50); n < len(rows) {
			rows = rows[len(rows)-n:]
		}
		writeJSON(w, http.StatusOK, nonNil(rows))
	case path == "/api/events":
		b.serveEvents(w, r)
	case strings.HasPrefix(path, "/api/events/"):
		b.deleteByID(w, r, "/api/events/", &b.events, "")
	case path == "/api/missions":
		b.serveMissions(w, r, rec)
	case strings.HasPrefix(path, "/api/missions/"):
		b.deleteByID(w, r, "/api/missions/", &b.missions, "Mission deleted")
	case path == "/api/video-clips":
		if r.Method == http.MethodDelete {
			b.clips = nil
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted_all"})
			return
		}
		writeJSON(w, http.StatusOK, nonNil(b.clips))
	case strings.HasPrefix(path, "/api/video-clips/"):
		b.deleteByID(w, r, "/api/video-clips/", &b.clips, "")
	case path == "/api/targets":
		writeJSON(w, http.StatusOK, nonNil(b.targets))
	case path == "/api/targets/upload":
		b.serveUpload(w, rec)
	case strings.HasPrefix(path, "/api/targets/") && strings.HasSuffix(path, "/match"):
		b.serveMatch(w, r)
	case strings.HasPrefix(path, "/api/targets/"):
		b.deleteByID(w, r, "/api/targets/", &b.targets, "Target deleted")
	case path == "/api/auto/state":
		b.serveAuto(w, r, rec)
	case path == "/api/commands/manual":
		var cmd core.ManualCommand
		_ = json.Unmarshal(rec.Body, &cmd)
		if cmd.Command == "" {
			cmd.Command = "manual"
		}
		b.addEventLocked(core.LevelInfo, "Manual command: "+cmd.Command)
		writeJSON(w, http.StatusOK, core.CommandAck{Status: "accepted", Command: cmd.Command})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (b *Backend) serveEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodDelete {
		b.events = nil
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted_all"})
		return
	}
	rows := b.events
	if n := limit(r, 30); n < len(rows) {
		rows = rows[len(rows)-n:]
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

func (b *Backend) serveMissions(w http.ResponseWriter, r *http.Request, rec Request) {
	if r.Method == http.MethodPost {
		var nm core.NewMission
		_ = json.Unmarshal(rec.Body, &nm)
		if nm.Name == "" {
			nm.Name = "Untitled Mission"
		}
		b.seq++
		m := core.Mission{ID: b.seq, Name: nm.Name, Status: nm.Status, Mode: nm.Mode, CreatedAt: core.NewTimestamp(b.now())}
		b.missions = append([]core.Mission{m}, b.missions...)
		b.addEventLocked(core.LevelInfo, "Mission created: "+m.Name)
	}
	writeJSON(w, http.StatusOK, nonNil(b.missions))
}

func (b *Backend) serveUpload(w http.ResponseWriter, rec Request) {
	if rec.File == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file"})
		return
	}
	b.seq++
	label := rec.Form["label"]
	if label == "" {
		label = fmt.Sprintf("target-%d", b.seq)
	}
	t := core.Target{
		ID:        b.seq,
		Label:     label,
		Filename:  label,
		URL:       "/static/uploads/" + label,
		Status:    core.TargetPending,
		CreatedAt: core.NewTimestamp(b.now()),
	}
	if id, err := strconv.ParseInt(rec.Form["mission_id"], 10, 64); err == nil {
		t.MissionID = &id
	}
	b.targets = append([]core.Target{t}, b.targets...)
	b.addEventLocked(core.LevelInfo, "Target image uploaded: "+label)
	writeJSON(w, http.StatusOK, map[string]any{"status": "uploaded", "id": t.ID, "url": t.URL})
}

func (b *Backend) serveMatch(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/targets/"), "/match")
	id, _ := strconv.ParseInt(raw, 10, 64)
	for i := range b.targets {
		if b.targets[i].ID == id {
			b.targets[i].Status = core.TargetMatched
			b.targets[i].MatchedAt = core.NewTimestamp(b.now())
			b.addEventLocked(core.LevelInfo, "Target matched: "+b.targets[i].Label)
			writeJSON(w, http.StatusOK, map[string]any{"status": "matched", "id": id})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func (b *Backend) serveAuto(w http.ResponseWriter, r *http.Request, rec Request) {
	if r.Method == http.MethodPost {
		var body map[string]any
		_ = json.Unmarshal(rec.Body, &body)
		if v, ok := body["is_enabled"].(bool); ok {
			b.auto.IsEnabled = v
		}
		if v, ok := body["phase"].(string); ok {
			b.auto.Phase = v
		}
		if v, ok := body["task"].(string); ok {
			b.auto.Task = v
		}
		if v, ok := body["note"].(string); ok {
			b.auto.Note = v
		}
		b.auto.UpdatedAt = core.NewTimestamp(b.now())
		b.addEventLocked(core.LevelInfo, fmt.Sprintf("Auto state updated → enabled=%t, phase=%s", b.auto.IsEnabled, b.auto.Phase))
	}
	writeJSON(w, http.StatusOK, b.auto)
}

// deleteByID removes the element whose id ends the path. Missing ids answer 404.
func (b *Backend) deleteByID(w http.ResponseWriter, r *http.Request, prefix string, rows any, audit string) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, prefix), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	var found bool
	var name string
	switch rs := rows.(type) {
	case *[]core.Event:
		*rs, found, _ = removeID(*rs, id, func(e core.Event) (int64, string) { return e.ID, e.Message })
	case *[]core.Mission:
		*rs, found, name = removeID(*rs, id, func(m core.Mission) (int64, string) { return m.ID, m.Name })
	case *[]core.VideoClip:
		*rs, found, _ = removeID(*rs, id, func(c core.VideoClip) (int64, string) { return c.ID, c.Label })
	case *[]core.Target:
		*rs, found, name = removeID(*rs, id, func(t core.Target) (int64, string) { return t.ID, t.Label })
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if audit != "" {
		b.addEventLocked(core.LevelWarn, audit+": "+name)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

func removeID[T any](rows []T, id int64, key func(T) (int64, string)) ([]T, bool, string) {
	out := rows[:0:0]
	var found bool
	var name string
	for _, row := range rows {
		rid, n := key(row)
		if rid == id {
			found, name = true, n
			continue
		}
		out = append(out, row)
	}
	return out, found, name
}

func limit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// SortedIDs is a small helper for assertions on collections.
func SortedIDs[T any](rows []T, id func(T) int64) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, id(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
