package tui

import "github.com/charmbracelet/lipgloss"

// Status vocabulary shown in the STATUS column. Terminal states first.
const (
	StatusPending   = "pending"
	StatusDone      = "done"
	StatusSatisfied = "satisfied"
	StatusPartial   = "partial"
	StatusFailed    = "failed"

	StatusPrereqs    = "prereqs"
	StatusChecking   = "checking"
	StatusInstalling = "installing"
	StatusValidating = "validating"
)

var (
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	statusStyles = map[string]lipgloss.Style{
		// Terminal states
		StatusDone:      lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		StatusSatisfied: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),

		// Active states
		StatusPrereqs:    lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		StatusChecking:   lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		StatusInstalling: lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		StatusValidating: lipgloss.NewStyle().Foreground(lipgloss.Color("4")),

		// Finished with warnings
		StatusPartial: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),

		// Error
		StatusFailed: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),

		// Pending
		StatusPending: lipgloss.NewStyle().Faint(true),
	}
)

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
