// Package ui renders run reports for the terminal. Output is styled with
// lipgloss when writing to a TTY and falls back to plain text otherwise.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/obstack/obstack/internal/bootstrap"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue).
			MarginTop(1)

	readyStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	failedStyle  = lipgloss.NewStyle().Foreground(colorRed)
	warningStyle = lipgloss.NewStyle().Foreground(colorYellow)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	checkMark = "[OK]"
	crossMark = "[!!]"
	warnMark  = "[??]"
	skipMark  = "[--]"
)

// Renderer writes a run report to an output stream.
type Renderer struct {
	out   io.Writer
	color bool
}

// NewRenderer builds a renderer for out. Styling is enabled only when out is
// a terminal and noColor is false.
func NewRenderer(out io.Writer, noColor bool) *Renderer {
	return &Renderer{out: out, color: !noColor && isTerminal(out)}
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Render writes the full report: a per-resource table in plan order, failure
// details, and a one-line summary.
func (r *Renderer) Render(report *bootstrap.Report) {
	fmt.Fprintln(r.out, r.style(titleStyle, "Bootstrap report"))
	fmt.Fprintln(r.out)

	nameWidth := 0
	for _, o := range report.Outcomes {
		if len(o.Name) > nameWidth {
			nameWidth = len(o.Name)
		}
	}

	for _, o := range report.Outcomes {
		mark, style := r.decorate(o.State)
		line := fmt.Sprintf("%s %-*s  %-19s  %s",
			mark, nameWidth, o.Name, o.State, formatDuration(o.Duration))
		fmt.Fprintln(r.out, r.style(style, line))
	}

	if failures := report.Failures(); len(failures) > 0 {
		fmt.Fprintln(r.out, r.style(sectionStyle, "Failures"))
		for _, o := range failures {
			detail := string(o.State)
			if o.Err != nil {
				detail = o.Err.Error()
			}
			fmt.Fprintf(r.out, "  %s: %s\n", o.Name, detail)
		}
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.summary(report))
}

func (r *Renderer) summary(report *bootstrap.Report) string {
	counts := report.Counts()
	parts := []string{
		fmt.Sprintf("%d ready", counts[bootstrap.StateReady]),
	}
	for _, s := range []bootstrap.State{
		bootstrap.StateFailed,
		bootstrap.StateReadinessTimedOut,
		bootstrap.StateSkipped,
		bootstrap.StateCancelled,
	} {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ToLower(string(s))))
		}
	}

	line := fmt.Sprintf("%s in %s", strings.Join(parts, ", "), formatDuration(report.Duration()))
	if report.Succeeded() {
		return r.style(readyStyle, line)
	}
	return r.style(failedStyle, line)
}

func (r *Renderer) decorate(s bootstrap.State) (string, lipgloss.Style) {
	switch s {
	case bootstrap.StateReady:
		return checkMark, readyStyle
	case bootstrap.StateFailed, bootstrap.StateCancelled:
		return crossMark, failedStyle
	case bootstrap.StateReadinessTimedOut:
		return warnMark, warningStyle
	default:
		return skipMark, dimStyle
	}
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(10 * time.Millisecond).String()
}
