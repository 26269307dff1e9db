package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/verdict/runtime"
	"github.com/pithecene-io/verdict/types"
)

// Color palette.
var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// statusOrder lists statuses in the order the summary prints them.
var statusOrder = []types.Status{
	types.StatusPassed,
	types.StatusFailed,
	types.StatusSkipped,
	types.StatusPending,
	types.StatusUndefined,
	types.StatusAmbiguous,
}

// Styles renders the table-format run summary.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Box     lipgloss.Style
}

// NewStyles returns the summary styles. With noColor set every style is
// plain text.
func NewStyles(noColor bool) Styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return Styles{
			Title:   plain.Bold(true),
			Label:   plain.Width(12),
			Success: plain,
			Warning: plain,
			Error:   plain,
			Muted:   plain,
			Box:     plain.PaddingLeft(2),
		}
	}
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(primaryColor),
		Label:   lipgloss.NewStyle().Foreground(mutedColor).Width(12),
		Success: lipgloss.NewStyle().Bold(true).Foreground(successColor),
		Warning: lipgloss.NewStyle().Bold(true).Foreground(warningColor),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(errorColor),
		Muted:   lipgloss.NewStyle().Foreground(mutedColor),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(errorColor).
			Padding(0, 1),
	}
}

// Status styles a status by severity.
func (s Styles) Status(status types.Status) string {
	switch status {
	case types.StatusPassed:
		return s.Success.Render(string(status))
	case types.StatusSkipped, types.StatusPending, types.StatusUndefined:
		return s.Warning.Render(string(status))
	default:
		return s.Error.Render(string(status))
	}
}

// Report renders a run report as a human-readable summary.
func (s Styles) Report(r *runtime.RunReport) string {
	var b strings.Builder

	verdict := s.Success.Render("success")
	if !r.Success {
		verdict = s.Error.Render("failure")
	}

	b.WriteString(s.Title.Render("verdict run " + r.RunID))
	b.WriteString("\n")
	row := func(label, value string) {
		b.WriteString(s.Label.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}
	if r.Suite != "" {
		row("suite", r.Suite)
	}
	row("attempt", fmt.Sprint(r.Attempt))
	row("status", s.Status(r.Status))
	row("verdict", verdict)
	row("duration", (time.Duration(r.DurationMs) * time.Millisecond).String())
	row("events", fmt.Sprint(r.EventCount))
	if counts := s.counts(r.TestCases); counts != "" {
		row("scenarios", counts)
	}
	row("exit code", fmt.Sprint(r.ExitCode))

	if r.Message != "" {
		b.WriteString(s.Box.Render(strings.TrimRight(r.Message, "\n")))
		b.WriteString("\n")
	}
	return b.String()
}

func (s Styles) counts(byStatus map[types.Status]int) string {
	var parts []string
	for _, status := range statusOrder {
		if n := byStatus[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s.Status(status)))
		}
	}
	return strings.Join(parts, s.Muted.Render(", "))
}
