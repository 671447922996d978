package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/md-najmul-hossain-nur/Submarine/internal/config"
	"github.com/spf13/pflag"
)

// BuildDate and Version can be set at build time via ldflags.
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const appName = "subconsole"

const usage = `usage: subconsole [console|probe|snapshot] [flags]

  console   interactive operator console (default)
  probe     one health probe against api.probeUrl; exit status 0 or 1
  snapshot  refresh every resource once and print the view

flags:
`

type options struct {
	configDir string
	yaml      bool
	logLevel  string
	server    string
	token     string
	version   bool
}

func parseFlags(args []string) (options, string, error) {
	var o options
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	fs.StringVarP(&o.configDir, "config", "c", ".", "directory holding "+config.FileName+" and .env")
	fs.BoolVar(&o.yaml, "yaml", false, "print the snapshot as YAML instead of JSON")
	fs.StringVar(&o.logLevel, "log-level", "", "override logLevel")
	fs.StringVar(&o.server, "server", "", "override api.serverUrl and api.probeUrl")
	fs.StringVar(&o.token, "token", "", "override api.operatorToken")
	fs.BoolVarP(&o.version, "version", "v", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return o, "", err
	}

	cmd := "console"
	if fs.NArg() > 0 {
		cmd = strings.ToLower(fs.Arg(0))
	}
	switch cmd {
	case "console", "probe", "snapshot":
	default:
		fs.Usage()
		return o, "", fmt.Errorf("unknown command %q", cmd)
	}
	return o, cmd, nil
}

// applyOverrides copies command-line overrides into the config.
func applyOverrides(o options) {
	if o.logLevel != "" {
		config.Set("logLevel", o.logLevel)
	}
	if o.server != "" {
		config.Set("api.serverUrl", o.server)
		config.Set("api.probeUrl", o.server)
	}
	if o.token != "" {
		config.Set("api.operatorToken", o.token)
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	o, cmd, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if o.version {
		fmt.Printf("%s %s (%s)\n", appName, Version, BuildDate)
		return 0
	}

	cfgErr := config.Load(o.configDir)
	if cfgErr != nil && !errors.Is(cfgErr, config.ErrNoConfigFile) {
		fmt.Fprintln(os.Stderr, cfgErr)
		return 2
	}
	applyOverrides(o)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd == "console")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer a.close()
	if cfgErr != nil {
		a.logger.Warn("No config file, using defaults", "error", cfgErr)
	}

	switch cmd {
	case "probe":
		if err := probe(ctx, a.probeClient, os.Stdout); err != nil {
			a.logger.Error("Probe failed", "error", err)
			return 1
		}
		return 0
	case "snapshot":
		if err := snapshot(ctx, a.engine, a.store, os.Stdout, o.yaml, a.logger); err != nil {
			a.logger.Error("Snapshot failed", "error", err)
			return 1
		}
		return 0
	}

	if err := a.runConsole(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Console stopped", "error", err)
		return 1
	}
	return 0
}
