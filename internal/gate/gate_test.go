package gate

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/md-najmul-hossain-nur/Submarine/internal/api"
	"github.com/md-najmul-hossain-nur/Submarine/internal/session"
	"github.com/md-najmul-hossain-nur/Submarine/internal/subtest"
	"github.com/md-najmul-hossain-nur/Submarine/internal/view"
	"github.com/md-najmul-hossain-nur/Submarine/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alerts struct {
	mu   sync.Mutex
	msgs []string
}

func (a *alerts) Alert(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgs = append(a.msgs, msg)
}

// starter mimics the engine's once-only guard.
type starter struct {
	state *session.State
	calls int
	ran   int
}

func (s *starter) Start(context.Context) bool {
	s.calls++
	if !s.state.MarkPollingStarted() {
		return false
	}
	s.ran++
	return true
}

type fixture struct {
	backend *subtest.Backend
	store   *view.Store
	state   *session.State
	starter *starter
	alerts  *alerts
	gate    *Gate
}

func newFixture(t *testing.T, probeURL string) *fixture {
	f := &fixture{store: view.NewStore(), state: session.New(), alerts: &alerts{}}
	f.starter = &starter{state: f.state}
	if probeURL == "" {
		f.backend = subtest.New(t)
		probeURL = f.backend.URL()
	}
	f.gate = New(api.New(probeURL), f.starter, f.store, f.state, f.alerts, nil)
	return f
}

func (f *fixture) button(t *testing.T) view.ConnectView {
	t.Helper()
	v, ok := view.Lookup[view.ConnectView](f.store, view.RegionConnect)
	require.True(t, ok)
	return v
}

func TestNew_RendersIdleButton(t *testing.T) {
	f := newFixture(t, "")
	assert.Equal(t, view.ConnectIdle(), f.button(t))
	assert.Equal(t, session.Disconnected, f.state.Phase())
}

func TestConnect_Success(t *testing.T) {
	f := newFixture(t, "")

	ok := f.gate.Connect(context.Background(), context.Background())

	require.True(t, ok)
	assert.Equal(t, session.Connected, f.state.Phase())
	assert.Equal(t, view.ConnectView{Label: "Connected", Disabled: true, Style: view.StyleSuccess}, f.button(t))
	assert.Equal(t, 1, f.starter.ran)
	assert.Equal(t, 1, f.backend.Count(http.MethodGet, "/api/health"))
	assert.Empty(t, f.alerts.msgs)
}

func TestConnect_SecondCallDoesNotProbe(t *testing.T) {
	f := newFixture(t, "")
	require.True(t, f.gate.Connect(context.Background(), context.Background()))
	require.True(t, f.gate.Connect(context.Background(), context.Background()))

	assert.Equal(t, 1, f.backend.Count(http.MethodGet, "/api/health"))
	assert.Equal(t, 1, f.starter.calls)
}

func TestConnect_FailureReturnsToRetry(t *testing.T) {
	f := newFixture(t, "")
	f.backend.FailHealth(true)

	ok := f.gate.Connect(context.Background(), context.Background())

	assert.False(t, ok)
	assert.Equal(t, session.Disconnected, f.state.Phase())
	assert.Equal(t, view.ConnectView{Label: "Retry Connect"}, f.button(t))
	assert.Equal(t, []string{AlertUnreachable}, f.alerts.msgs)
	assert.Zero(t, f.starter.calls)

	// operator retries after the backend comes back
	f.backend.FailHealth(false)
	assert.True(t, f.gate.Connect(context.Background(), context.Background()))
	assert.Equal(t, 2, f.backend.Count(http.MethodGet, "/api/health"))
}

func TestConnect_Unreachable(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1")
	assert.False(t, f.gate.Connect(context.Background(), context.Background()))
	assert.Equal(t, view.LabelRetry, f.button(t).Label)
}

func TestConnect_AfterStartupPollingDoesNotDoubleStart(t *testing.T) {
	f := newFixture(t, "")
	require.True(t, f.starter.Start(context.Background())) // console startup

	require.True(t, f.gate.Connect(context.Background(), context.Background()))
	assert.Equal(t, 1, f.starter.ran)
	assert.Equal(t, 2, f.starter.calls)
}

type blockingProbe struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingProbe) Health(context.Context) (core.Health, error) {
	close(p.entered)
	<-p.release
	return core.Health{Status: "ok"}, nil
}

func TestConnect_InFlightShowsConnecting(t *testing.T) {
	store, state := view.NewStore(), session.New()
	probe := &blockingProbe{entered: make(chan struct{}), release: make(chan struct{})}
	g := New(probe, &starter{state: state}, store, state, &alerts{}, nil)

	done := make(chan bool)
	go func() { done <- g.Connect(context.Background(), context.Background()) }()
	<-probe.entered

	v, _ := view.Lookup[view.ConnectView](store, view.RegionConnect)
	assert.Equal(t, view.ConnectView{Label: "Connecting…", Disabled: true}, v)
	assert.False(t, g.Connect(context.Background(), context.Background()), "concurrent connect is refused")

	close(probe.release)
	assert.True(t, <-done)
}
