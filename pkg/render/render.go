// Package render draws environment snapshots for the terminal.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/boristopalov/openthechests/pkg/core"
	"github.com/boristopalov/openthechests/pkg/event"
	"github.com/boristopalov/openthechests/pkg/generator"
)

var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	warn    = lipgloss.Color("214")
	white   = lipgloss.Color("#FFFFFF")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(warn)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1)
)

var phaseStyles = map[string]lipgloss.Style{
	"inactive": mutedStyle,
	"active":   warnStyle,
	"ready":    accentStyle,
	"open":     successStyle,
}

// Snapshot renders a full step: header, context, box states and, when
// history is set, each pattern's latest batch.
func Snapshot(s core.Snapshot, history bool) string {
	var b strings.Builder

	header := fmt.Sprintf("step %d  t=%.3f  reward %+d", s.Step, s.Time, s.Reward)
	if s.LastAction != nil {
		header += "  action " + s.LastAction.String()
	}
	if s.Done {
		header += "  " + successStyle.Render("DONE")
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteByte('\n')
	b.WriteString(mutedStyle.Render("context ") + Event(s.Context))
	b.WriteByte('\n')

	rows := make([]string, 0, len(s.Boxes))
	for _, bx := range s.Boxes {
		style, ok := phaseStyles[bx.Phase]
		if !ok {
			style = mutedStyle
		}
		rows = append(rows, fmt.Sprintf("box %d  %s  %s",
			bx.ID, style.Render(fmt.Sprintf("%-8s", bx.Phase)),
			mutedStyle.Render(fmt.Sprintf("timeouts %d", bx.Deactivations))))
	}
	b.WriteString(panelStyle.Render(strings.Join(rows, "\n")))
	b.WriteByte('\n')

	if history {
		for i, h := range s.History {
			parts := make([]string, 0, len(h))
			for _, e := range h {
				parts = append(parts, Event(e))
			}
			fmt.Fprintf(&b, "%s %s\n", mutedStyle.Render(fmt.Sprintf("pattern %d:", i)), strings.Join(parts, " "))
		}
	}
	return b.String()
}

// Event renders one event compactly.
func Event(e event.Event) string {
	if e.IsEmpty() {
		return mutedStyle.Render("(none)")
	}
	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]string, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, k+"="+e.Attributes[k])
	}
	return fmt.Sprintf("%s{%s}%s",
		titleStyle.Render(e.Type), strings.Join(attrs, ","),
		mutedStyle.Render(fmt.Sprintf("[%.2f,%.2f)", e.Start, e.End)))
}

// TimelineLine renders one merged event with the signals it raised.
func TimelineLine(i int, e event.Event, signals generator.Signals) string {
	ids := make([]int, 0, len(signals))
	for id := range signals {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var sig []string
	for _, id := range ids {
		for _, s := range signals[id] {
			text := fmt.Sprintf("%d:%s", id, s)
			if s == generator.SignalSatisfied {
				text = accentStyle.Render(text)
			}
			sig = append(sig, text)
		}
	}
	return fmt.Sprintf("%4d  %s  %s", i, Event(e), strings.Join(sig, " "))
}
