// Package console is the terminal front end: it reads one operator command
// per line, prints every view region as it changes, and shows alerts and
// prompts inline.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/md-najmul-hossain-nur/Submarine/internal/control"
	"github.com/md-najmul-hossain-nur/Submarine/internal/dispatcher"
	"github.com/md-najmul-hossain-nur/Submarine/internal/view"
)

// Dispatcher runs a named action.
type Dispatcher interface {
	Dispatch(ctx context.Context, a dispatcher.Action) (any, error)
}

// Connector runs one connection attempt.
type Connector interface {
	Connect(ctx, pollCtx context.Context) bool
}

// Console implements control.Alerter, control.Prompter and gate.Alerter.
type Console struct {
	out      io.Writer
	store    *view.Store
	logger   *slog.Logger
	renderer *Renderer

	mu    sync.Mutex // guards out and renderer
	lines chan string
	eof   chan struct{}
}

// New creates a console reading from in. Reading starts immediately so
// prompts raised before Run still see input.
func New(in io.Reader, out io.Writer, store *view.Store, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Console{
		out:      out,
		store:    store,
		logger:   logger,
		renderer: NewRenderer(),
		lines:    make(chan string),
		eof:      make(chan struct{}),
	}
	go c.read(in)
	return c
}

func (c *Console) read(in io.Reader) {
	defer close(c.eof)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		c.lines <- sc.Text()
	}
	if err := sc.Err(); err != nil {
		c.logger.Error("Reading console input failed", "error", err)
	}
}

// next returns the next input line; ok is false at EOF or cancellation.
func (c *Console) next(ctx context.Context) (string, bool) {
	select {
	case line := <-c.lines:
		return line, true
	case <-c.eof:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// Alert prints a highlighted message. It does not consume input, so
// alerts raised from background handlers never steal a command line.
func (c *Console) Alert(msg string) {
	c.printf("!! %s\n", msg)
}

// Prompt asks a question and returns the next input line. Only the command
// loop's own goroutine calls it, from a synchronous dispatch.
func (c *Console) Prompt(ctx context.Context, question string) (string, bool) {
	c.printf("? %s ", question)
	return c.next(ctx)
}

func (c *Console) render(r view.Region) {
	v, ok := c.store.Get(r)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderer.Render(c.out, r, v)
}

// Run renders the current view, then executes commands until quit, EOF or
// ctx is cancelled. pollCtx is handed to the connector and bounds polling.
func (c *Console) Run(ctx context.Context, d Dispatcher, g Connector, pollCtx context.Context) error {
	changes, unsubscribe := c.store.Subscribe(64)

	for _, r := range view.Regions {
		c.render(r)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for r := range changes {
			c.render(r)
		}
	}()
	defer wg.Wait()
	defer unsubscribe()

	c.printf("type help for commands\n")
	for {
		line, ok := c.next(ctx)
		if !ok {
			return ctx.Err()
		}
		cmd, err := Parse(line)
		if err != nil {
			c.printf("%v\n", err)
			continue
		}
		switch cmd.Kind {
		case KindNone:
		case KindHelp:
			c.printf("%s\n", Help)
		case KindQuit:
			return nil
		case KindConnect:
			if g == nil {
				c.printf("connect is not available\n")
				continue
			}
			g.Connect(ctx, pollCtx)
		case KindDispatch:
			c.execute(ctx, d, cmd)
		}
	}
}

func (c *Console) execute(ctx context.Context, d Dispatcher, cmd Command) {
	a := cmd.Action
	if a.Name == control.ActionTargetUpload {
		if fi, err := os.Stat(a.Arg(0)); err == nil {
			c.printf("uploading %s (%s)\n", fi.Name(), humanize.Bytes(uint64(fi.Size())))
		}
	}
	result, err := d.Dispatch(ctx, a)
	switch {
	case err == nil:
		if cmd.Echo && result != nil {
			c.printf("%v\n", result)
		}
	case errors.Is(err, control.ErrManualDisabled):
		c.printf("manual control is disabled while autonomy is on\n")
	case errors.Is(err, control.ErrCancelled):
		c.printf("cancelled\n")
	default:
		// handlers alert the operator themselves
		c.logger.Debug("Action failed", "action", a.Name, "error", err)
	}
}
