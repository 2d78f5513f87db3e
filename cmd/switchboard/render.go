package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ShayCichocki/switchboard/internal/orchestrator"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

// panelStyles renders the synthesis of an answer.
type panelStyles struct {
	border      lipgloss.Style
	title       lipgloss.Style
	label       lipgloss.Style
	value       lipgloss.Style
	available   lipgloss.Style
	unavailable lipgloss.Style
	partial     lipgloss.Style
}

func newPanelStyles() panelStyles {
	return panelStyles{
		border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		available: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green
		unavailable: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red
		partial: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")), // Orange
	}
}

// renderSynthesis draws the findings, root cause and recommendation as a panel.
func renderSynthesis(rec models.SynthesisRecord, width int) string {
	s := newPanelStyles()
	var b strings.Builder

	b.WriteString(s.title.Render("Synthesis"))
	if rec.Partial {
		b.WriteString(" " + s.partial.Render("(partial)"))
	}
	b.WriteString("\n\n")

	if len(rec.Findings) == 0 {
		b.WriteString(s.label.Render("No specialists were consulted."))
		b.WriteString("\n")
	}
	for _, f := range rec.Findings {
		mark := s.available.Render("●")
		if !f.Available {
			mark = s.unavailable.Render("○")
		}
		name := f.DisplayName
		if name == "" {
			name = f.CapabilityID
		}
		fmt.Fprintf(&b, "%s %s %s\n", mark, s.title.Render(name), s.value.Render(f.Summary))
	}

	if rec.RootCause != "" {
		fmt.Fprintf(&b, "\n%s %s\n", s.label.Render("Root cause:"), s.value.Render(rec.RootCause))
	}
	if rec.RecommendedAction != "" {
		fmt.Fprintf(&b, "%s %s\n", s.label.Render("Recommended:"), s.value.Render(rec.RecommendedAction))
	}
	if len(rec.References) > 0 {
		fmt.Fprintf(&b, "%s %s\n", s.label.Render("References:"), s.value.Render(strings.Join(rec.References, ", ")))
	}

	style := s.border
	if width > 4 {
		style = style.Width(width - 2)
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

// printEvent writes one progress line for an orchestrator event.
func printEvent(w io.Writer, e orchestrator.Event) {
	switch e.Type {
	case orchestrator.EventDeliberation:
		fmt.Fprintf(w, "%s %s\n", color.CyanString("…"), e.Message)
	case orchestrator.EventCallStarted:
		fmt.Fprintf(w, "%s %s: %s\n", color.BlueString("→"), e.Tool, e.Question)
	case orchestrator.EventCallFinished:
		if e.Result == nil {
			return
		}
		if e.Result.Success {
			fmt.Fprintf(w, "%s %s (%s)\n", color.GreenString("✓"), e.Result.Label(), e.Result.Latency.Round(time.Millisecond))
		} else {
			fmt.Fprintf(w, "%s %s: %s\n", color.RedString("✗"), e.Result.Label(), e.Result.Outcome())
		}
	case orchestrator.EventFinalized:
		if e.Message != "" {
			fmt.Fprintf(w, "%s %s\n", color.YellowString("■"), e.Message)
		}
	}
}

// printStatus prints a status line with color
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}
