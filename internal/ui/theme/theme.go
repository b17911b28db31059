// Package theme holds the terminal styles shared by coursewalk's reports.
package theme

import (
	"charm.land/lipgloss/v2"
)

// Color palette
var (
	Primary = lipgloss.Color("#8B5CF6") // Purple
	Done    = lipgloss.Color("#22C55E") // Green
	Pending = lipgloss.Color("#F97316") // Orange
	Text    = lipgloss.Color("#F8FAFC")
	TextDim = lipgloss.Color("#94A3B8")
	Track   = lipgloss.Color("#334155")
)

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Label = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Complete = lipgloss.NewStyle().
			Foreground(Done).
			Bold(true)

	Remaining = lipgloss.NewStyle().
			Foreground(Pending)
)

// Progress bar segments
var (
	ProgressFilled = lipgloss.NewStyle().
			Background(Done)

	ProgressEmpty = lipgloss.NewStyle().
			Background(Track)
)
