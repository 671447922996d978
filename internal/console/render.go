package console

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/md-najmul-hossain-nur/Submarine/internal/view"
)

// Renderer prints view regions as text blocks.
type Renderer struct {
	now     func() time.Time
	changed map[view.Region]time.Time
}

func NewRenderer() *Renderer {
	return &Renderer{now: time.Now, changed: make(map[view.Region]time.Time)}
}

// Render writes one region. Unknown values are printed with %+v.
func (r *Renderer) Render(w io.Writer, region view.Region, v any) {
	now := r.now()
	prev, seen := r.changed[region]
	r.changed[region] = now

	var b strings.Builder
	switch m := v.(type) {
	case view.ConnectView:
		state := ""
		if m.Disabled {
			state = " (busy)"
		}
		if m.Style == view.StyleSuccess {
			state = " ✓"
		}
		fmt.Fprintf(&b, "[connect] %s%s\n", m.Label, state)
	case view.HealthView:
		mark := "FAIL"
		if m.OK {
			mark = "OK"
		}
		fmt.Fprintf(&b, "[health] %s %s\n", mark, m.Text)
	case view.HeaderView:
		fmt.Fprintf(&b, "[header] battery %s · turbidity %s\n", m.Battery, m.Turbidity)
	case view.ModeView:
		fmt.Fprintf(&b, "[mode] %s\n", m.Label)
	case view.TelemetryView:
		since := ""
		if seen {
			since = fmt.Sprintf(" (previous update %s)", humanize.RelTime(prev, now, "earlier", "later"))
		}
		fmt.Fprintf(&b, "[telemetry] %s%s\n", m.Time, since)
		for _, f := range m.Fields {
			flag := " "
			if f.Alert {
				flag = "!"
			}
			fmt.Fprintf(&b, " %s %-14s %s\n", flag, f.Name, f.Value)
		}
		for _, a := range m.Alerts {
			fmt.Fprintf(&b, "  ALERT: %s\n", a)
		}
	case view.AutoView:
		state := "off"
		if m.Enabled {
			state = "on"
		}
		fmt.Fprintf(&b, "[auto] %s · phase %s · task %s", state, orDash(m.Phase), orDash(m.Task))
		if m.Note != "" {
			fmt.Fprintf(&b, " · %s", m.Note)
		}
		b.WriteString("\n ")
		for _, btn := range m.Buttons {
			if btn.Active {
				fmt.Fprintf(&b, " [%s]", strings.ToUpper(btn.Label))
			} else {
				fmt.Fprintf(&b, "  %s ", strings.ToLower(btn.Label))
			}
		}
		b.WriteString("\n")
	case view.ManualView:
		state := "enabled"
		if !m.Enabled {
			state = "disabled (autonomy on)"
		}
		fmt.Fprintf(&b, "[manual] %s · thruster %d%% · up %d%% · left %d%% · right %d%%\n",
			state, m.Meters.Thruster, m.Meters.ServoUp, m.Meters.ServoLeft, m.Meters.ServoRight)
	case view.MissionsView:
		fmt.Fprintf(&b, "[missions] %s\n", count(len(m.Rows), "mission"))
		for _, row := range m.Rows {
			cur := ""
			if row.Current {
				cur = " *"
			}
			fmt.Fprintf(&b, "  #%d %s · %s%s\n", row.ID, row.Name, row.Meta, cur)
		}
	case view.EventsView:
		fmt.Fprintf(&b, "[events] %s\n", count(len(m.Rows), "event"))
		for _, row := range m.Rows {
			fmt.Fprintf(&b, "  #%d %-8s %s %s\n", row.ID, row.Level, row.Time, row.Message)
		}
	case view.ClipsView:
		fmt.Fprintf(&b, "[clips] %s\n", count(len(m.Rows), "clip"))
		for _, row := range m.Rows {
			fmt.Fprintf(&b, "  #%d %s %s %s\n", row.ID, row.Time, row.Label, row.URL)
		}
	case view.TargetsView:
		fmt.Fprintf(&b, "[targets] %s\n", count(len(m.Rows), "target"))
		for _, row := range m.Rows {
			hint := ""
			if row.Match != nil {
				hint = fmt.Sprintf(" (target match %d)", row.ID)
			}
			fmt.Fprintf(&b, "  #%d %s · %s%s\n", row.ID, row.Name, row.Meta, hint)
		}
	case view.UploadView:
		mission := view.Placeholder
		if m.MissionID > 0 {
			mission = fmt.Sprintf("#%d", m.MissionID)
		}
		fmt.Fprintf(&b, "[upload] mission %s", mission)
		if m.Path != "" {
			fmt.Fprintf(&b, " · %s", m.Path)
		}
		if m.Label != "" {
			fmt.Fprintf(&b, " · %q", m.Label)
		}
		b.WriteString("\n")
	default:
		fmt.Fprintf(&b, "[%s] %+v\n", region, v)
	}
	io.WriteString(w, b.String())
}

func count(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}

func orDash(s string) string {
	if s == "" {
		return view.Placeholder
	}
	return s
}
