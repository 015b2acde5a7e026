package watch

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#7C3AED")
	goodColor    = lipgloss.Color("#10B981")
	badColor     = lipgloss.Color("#EF4444")
	warnColor    = lipgloss.Color("#F59E0B")
	textColor    = lipgloss.Color("#F9FAFB")
	mutedColor   = lipgloss.Color("#6B7280")
	borderColor  = lipgloss.Color("#374151")
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	lotStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)

	bidStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(goodColor)

	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)

	urgentStyle = lipgloss.NewStyle().Bold(true).Foreground(badColor)

	pausedStyle = lipgloss.NewStyle().Bold(true).Foreground(warnColor)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)
)
