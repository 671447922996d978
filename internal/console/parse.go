package console

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/md-najmul-hossain-nur/Submarine/internal/control"
	"github.com/md-najmul-hossain-nur/Submarine/internal/dispatcher"
)

// Kind says what a parsed line asks the console to do.
type Kind int

const (
	KindNone Kind = iota
	KindDispatch
	KindConnect
	KindHelp
	KindQuit
)

// ActionVersion reports the build; the app registers its handler.
const ActionVersion = "app.version"

// Command is one parsed input line. Echo prints the handler's result.
type Command struct {
	Kind   Kind
	Action dispatcher.Action
	Echo   bool
}

// sliderAxes maps console slider names to manual.input axis names.
var sliderAxes = map[string]string{
	"thruster": control.AxisThruster,
	"up":       control.AxisServoUp,
	"left":     control.AxisServoLeft,
	"right":    control.AxisServoRight,
}

// simple maps argument-less words to actions.
var simple = map[string]string{
	"stop":   control.ActionManualStop,
	"record": control.ActionClipRecord,
	"arm":    control.ActionAutoArm,
	"start":  control.ActionAutoStart,
	"pause":  control.ActionAutoPause,
	"abort":  control.ActionAutoAbort,
}

// Help lists the input grammar.
const Help = `commands:
  connect                          probe the vehicle and start polling
  thruster|up|left|right <0..1>    move one slider
  sliders <t> <u> <l> <r>          move all four sliders
  stop                             zero the sliders and stop
  record                           record a video clip
  arm|start|pause|abort            autonomy phase
  auto <phase> <task> [note...]    set autonomy state
  mission new [name...]            create a mission
  mission rm <id>                  delete a mission
  event rm <id> | events clear     delete events
  clip rm <id> | clips clear       delete clips
  target rm <id>                   delete a target
  target match <id>                mark a target matched
  target upload <path> [label...]  upload a target image
  target mission <id>              mission for the next upload
  refresh [resource...]            re-sync now
  version                          show the console build
  help | quit`

func dispatch(name string, args ...string) Command {
	return Command{Kind: KindDispatch, Action: dispatcher.Action{Name: name, Args: args}}
}

// Parse turns one input line into a Command. Blank lines parse to KindNone.
func Parse(line string) (Command, error) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return Command{}, nil
	}
	head, rest := strings.ToLower(words[0]), words[1:]

	if name, ok := simple[head]; ok {
		if len(rest) != 0 {
			return Command{}, fmt.Errorf("%s takes no arguments", head)
		}
		return dispatch(name), nil
	}
	if axis, ok := sliderAxes[head]; ok {
		if len(rest) != 1 {
			return Command{}, fmt.Errorf("usage: %s <0..1>", head)
		}
		if err := checkLevel(rest[0]); err != nil {
			return Command{}, err
		}
		return dispatch(control.ActionManualInput, axis+"="+rest[0]), nil
	}

	switch head {
	case "connect":
		return Command{Kind: KindConnect}, nil
	case "help", "?":
		return Command{Kind: KindHelp}, nil
	case "quit", "exit":
		return Command{Kind: KindQuit}, nil
	case "sliders":
		if len(rest) != 4 {
			return Command{}, fmt.Errorf("usage: sliders <t> <u> <l> <r>")
		}
		axes := []string{control.AxisThruster, control.AxisServoUp, control.AxisServoLeft, control.AxisServoRight}
		args := make([]string, 4)
		for i, v := range rest {
			if err := checkLevel(v); err != nil {
				return Command{}, err
			}
			args[i] = axes[i] + "=" + v
		}
		return dispatch(control.ActionManualInput, args...), nil
	case "auto":
		if len(rest) < 2 {
			return Command{}, fmt.Errorf("usage: auto <phase> <task> [note...]")
		}
		return dispatch(control.ActionAutoSet, rest...), nil
	case "refresh":
		cmd := dispatch(control.ActionRefresh, rest...)
		cmd.Echo = true
		return cmd, nil
	case "version":
		if len(rest) != 0 {
			return Command{}, fmt.Errorf("version takes no arguments")
		}
		cmd := dispatch(ActionVersion)
		cmd.Echo = true
		return cmd, nil
	case "mission":
		return parseSub(head, rest, map[string]subCommand{
			"new": {action: control.ActionMissionNew, minArgs: 0, maxArgs: -1},
			"rm":  {action: control.ActionMissionDelete, minArgs: 1, maxArgs: 1},
		})
	case "event":
		return parseSub(head, rest, map[string]subCommand{
			"rm": {action: control.ActionEventDelete, minArgs: 1, maxArgs: 1},
		})
	case "events":
		return parseSub(head, rest, map[string]subCommand{
			"clear": {action: control.ActionEventClear},
		})
	case "clip":
		return parseSub(head, rest, map[string]subCommand{
			"rm": {action: control.ActionClipDelete, minArgs: 1, maxArgs: 1},
		})
	case "clips":
		return parseSub(head, rest, map[string]subCommand{
			"clear": {action: control.ActionClipClear},
		})
	case "target":
		return parseSub(head, rest, map[string]subCommand{
			"rm":      {action: control.ActionTargetDelete, minArgs: 1, maxArgs: 1},
			"match":   {action: control.ActionTargetMatch, minArgs: 1, maxArgs: 1},
			"upload":  {action: control.ActionTargetUpload, minArgs: 1, maxArgs: -1},
			"mission": {action: control.ActionTargetMission, minArgs: 1, maxArgs: 1},
		})
	}
	return Command{}, fmt.Errorf("unknown command %q (try help)", words[0])
}

type subCommand struct {
	action  string
	minArgs int
	maxArgs int // -1: unlimited
}

func parseSub(head string, rest []string, subs map[string]subCommand) (Command, error) {
	if len(rest) == 0 {
		return Command{}, fmt.Errorf("usage: %s %s", head, subNames(subs))
	}
	sub, ok := subs[strings.ToLower(rest[0])]
	if !ok {
		return Command{}, fmt.Errorf("unknown %s subcommand %q", head, rest[0])
	}
	args := rest[1:]
	if len(args) < sub.minArgs || (sub.maxArgs >= 0 && len(args) > sub.maxArgs) {
		return Command{}, fmt.Errorf("wrong number of arguments for %s %s", head, rest[0])
	}
	return dispatch(sub.action, args...), nil
}

func subNames(subs map[string]subCommand) string {
	names := make([]string, 0, len(subs))
	for n := range subs {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func checkLevel(raw string) error {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", raw)
	}
	if v < 0 || v > 1 {
		return fmt.Errorf("slider value %s out of range 0..1", raw)
	}
	return nil
}
