// Package ui renders run status to the terminal. Purely cosmetic: nothing
// here affects processing or progress tracking.
package ui

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)

	// Note fields often carry HTML; strip tags before showing excerpts.
	htmlTags = regexp.MustCompile(`<[^>]+>`)
)

// Printer writes styled status output to a terminal stream.
type Printer struct {
	out io.Writer
}

// New creates a Printer writing to out.
func New(out io.Writer) *Printer {
	return &Printer{out: out}
}

// ConfigLine is one row of the run-configuration panel.
type ConfigLine struct {
	Label string
	Value string
	Dim   bool
}

// ConfigPanel renders the run configuration before processing starts.
func (p *Printer) ConfigPanel(lines []ConfigLine) {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		label := labelStyle.Render(fmt.Sprintf("%-15s", l.Label))
		value := l.Value
		if l.Dim {
			label = dimStyle.Render(fmt.Sprintf("%-15s", l.Label))
			value = dimStyle.Render(value)
		}
		b.WriteString(label + " " + value)
	}
	fmt.Fprintln(p.out, panelStyle.Render(titleStyle.Render("Run Configuration")+"\n"+b.String()))
}

// DryRunBanner warns that no notes will be modified.
func (p *Printer) DryRunBanner() {
	fmt.Fprintln(p.out, warnStyle.Render("*** DRY RUN: notes will NOT be modified ***"))
}

// Info prints a plain status line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Warn prints a highlighted warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.out, warnStyle.Render(fmt.Sprintf(format, args...)))
}

// NoteDone prints one line per processed note with its outcome.
func (p *Printer) NoteDone(index, total int, ok bool, ref, detail string) {
	counter := dimStyle.Render(fmt.Sprintf("[%d/%d]", index, total))
	mark := okStyle.Render("ok  ")
	if !ok {
		mark = failStyle.Render("fail")
	}
	line := fmt.Sprintf("%s %s %s", counter, mark, excerpt(ref, 60))
	if detail != "" {
		line += " " + dimStyle.Render(detail)
	}
	fmt.Fprintln(p.out, line)
}

// Summary is the run-end report.
type Summary struct {
	Succeeded       int
	Failed          int
	DryRun          bool
	Interrupted     bool
	ProgressSaved   bool // saving was enabled for the run
	ProgressUpdated bool // the progress file was written at least once
	ProgressPath    string
	TotalTracked    int
}

// Report renders the run-end summary panel.
func (p *Printer) Report(s Summary) {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Run Report") + "\n")
	b.WriteString(labelStyle.Render("Succeeded:") + " " + okStyle.Render(fmt.Sprintf("%d", s.Succeeded)) + "\n")
	b.WriteString(labelStyle.Render("Failed:   ") + " " + failStyle.Render(fmt.Sprintf("%d", s.Failed)))
	switch {
	case !s.ProgressSaved:
		b.WriteString("\n" + dimStyle.Render("Progress saving was disabled."))
	case s.ProgressUpdated:
		b.WriteString("\n" + labelStyle.Render("Tracked:  ") + fmt.Sprintf(" %d notes in %s", s.TotalTracked, s.ProgressPath))
	default:
		b.WriteString("\n" + dimStyle.Render("Progress file was not updated this run."))
	}
	if s.DryRun {
		b.WriteString("\n" + warnStyle.Render("Dry run finished; no notes were modified."))
	}
	if s.Interrupted {
		b.WriteString("\n" + warnStyle.Render("Run was interrupted before completing."))
	}
	fmt.Fprintln(p.out, panelStyle.Render(b.String()))
}

// excerpt strips markup and truncates a field value for display.
func excerpt(s string, max int) string {
	s = strings.TrimSpace(htmlTags.ReplaceAllString(s, ""))
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
