package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	primaryColor = lipgloss.Color("#A78BFA") // Purple
	workingColor = lipgloss.Color("#F59E0B") // Amber
	successColor = lipgloss.Color("#10B981") // Green
	errorColor   = lipgloss.Color("#F87171") // Red
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray
	borderColor  = lipgloss.Color("#6B7280") // Gray

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	outputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	statusIdleStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	statusRunningStyle = lipgloss.NewStyle().Foreground(workingColor)
	statusDoneStyle    = lipgloss.NewStyle().Foreground(successColor)
	statusErrorStyle   = lipgloss.NewStyle().Foreground(errorColor)

	promptStyle = lipgloss.NewStyle().Foreground(primaryColor)
	helpStyle   = lipgloss.NewStyle().Foreground(mutedColor)
)
