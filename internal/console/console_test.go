package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/md-najmul-hossain-nur/Submarine/internal/control"
	"github.com/md-najmul-hossain-nur/Submarine/internal/dispatcher"
	"github.com/md-najmul-hossain-nur/Submarine/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ control.Alerter  = (*Console)(nil)
	_ control.Prompter = (*Console)(nil)
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

type fakeDispatcher struct {
	mu      sync.Mutex
	actions []dispatcher.Action
	handle  func(ctx context.Context, a dispatcher.Action) (any, error)
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, a dispatcher.Action) (any, error) {
	f.mu.Lock()
	f.actions = append(f.actions, a)
	h := f.handle
	f.mu.Unlock()
	if h != nil {
		return h(ctx, a)
	}
	return nil, nil
}

func (f *fakeDispatcher) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.actions))
	for i, a := range f.actions {
		out[i] = a.Name
	}
	return out
}

type fakeGate struct {
	calls int
}

func (g *fakeGate) Connect(_, _ context.Context) bool {
	g.calls++
	return true
}

func runConsole(t *testing.T, input string, store *view.Store, d Dispatcher, g Connector) (*Console, *syncBuffer, error) {
	t.Helper()
	out := &syncBuffer{}
	c := New(strings.NewReader(input), out, store, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.Run(ctx, d, g, ctx)
	return c, out, err
}

func TestRun_DispatchesParsedCommands(t *testing.T) {
	d := &fakeDispatcher{}
	g := &fakeGate{}
	_, out, err := runConsole(t, "connect\nthruster 0.5\n\nbogus\nstop\nquit\nstop\n", view.NewStore(), d, g)
	require.NoError(t, err)

	assert.Equal(t, 1, g.calls)
	assert.Equal(t, []string{control.ActionManualInput, control.ActionManualStop}, d.names())
	assert.Equal(t, []string{"thruster=0.5"}, d.actions[0].Args)
	assert.Contains(t, out.String(), `unknown command "bogus"`)
}

func TestRun_EchoesVersionAndRefreshResults(t *testing.T) {
	d := &fakeDispatcher{handle: func(_ context.Context, a dispatcher.Action) (any, error) {
		switch a.Name {
		case ActionVersion:
			return "subconsole 1.2.3", nil
		case control.ActionRefresh:
			return "8 refreshed", nil
		}
		return "queued", nil
	}}
	_, out, err := runConsole(t, "version\nrefresh\nthruster 0.2\n", view.NewStore(), d, nil)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "subconsole 1.2.3\n")
	assert.Contains(t, out.String(), "8 refreshed\n")
	assert.NotContains(t, out.String(), "queued")
}

func TestRun_EOFEndsLoop(t *testing.T) {
	d := &fakeDispatcher{}
	_, _, err := runConsole(t, "record\n", view.NewStore(), d, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{control.ActionClipRecord}, d.names())
}

func TestRun_Help(t *testing.T) {
	_, out, err := runConsole(t, "help\n", view.NewStore(), &fakeDispatcher{}, nil)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "target upload <path>")
}

func TestRun_PromptReadsNextLine(t *testing.T) {
	var c *Console
	var answer string
	var answered bool
	d := &fakeDispatcher{}
	d.handle = func(ctx context.Context, a dispatcher.Action) (any, error) {
		if a.Name == control.ActionMissionNew {
			answer, answered = c.Prompt(ctx, "Mission name?")
		}
		return nil, nil
	}

	out := &syncBuffer{}
	c = New(strings.NewReader("mission new\nHarbour survey\nquit\n"), out, view.NewStore(), nil)
	require.NoError(t, c.Run(context.Background(), d, nil, context.Background()))

	assert.True(t, answered)
	assert.Equal(t, "Harbour survey", answer)
	assert.Contains(t, out.String(), "? Mission name?")
	assert.Equal(t, []string{control.ActionMissionNew}, d.names(), "the answer must not be parsed as a command")
}

func TestPrompt_EOFCancels(t *testing.T) {
	c := New(strings.NewReader(""), io.Discard, view.NewStore(), nil)
	_, ok := c.Prompt(context.Background(), "Mission name?")
	assert.False(t, ok)
}

func TestRun_ReportsManualDisabled(t *testing.T) {
	d := &fakeDispatcher{handle: func(context.Context, dispatcher.Action) (any, error) {
		return nil, control.ErrManualDisabled
	}}
	_, out, err := runConsole(t, "stop\n", view.NewStore(), d, nil)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "manual control is disabled")
}

func TestRun_RendersInitialAndChangedRegions(t *testing.T) {
	store := view.NewStore()
	store.Set(view.RegionConnect, view.ConnectIdle())

	pr, pw := io.Pipe()
	out := &syncBuffer{}
	c := New(pr, out, store, nil)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), &fakeDispatcher{}, nil, context.Background()) }()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[connect] Connect")
	}, time.Second, 5*time.Millisecond)

	store.Set(view.RegionMode, view.ModeView{Label: view.ModeAuto})
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[mode] "+view.ModeAuto)
	}, time.Second, 5*time.Millisecond)

	pw.Close()
	require.NoError(t, <-done)
}

func TestRun_ContextCancel(t *testing.T) {
	pr, _ := io.Pipe()
	c := New(pr, io.Discard, view.NewStore(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Run(ctx, &fakeDispatcher{}, nil, ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAlert(t *testing.T) {
	out := &syncBuffer{}
	c := New(strings.NewReader(""), out, view.NewStore(), nil)
	c.Alert(control.AlertUploadFailed)
	assert.Equal(t, "!! Upload failed\n", out.String())
}
