package tui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the onboarding screen.
var (
	ColorAccent = lipgloss.Color("#A78BFA")
	ColorRed    = lipgloss.Color("#FF5F5F")
	ColorGreen  = lipgloss.Color("#5FD787")
	ColorGray   = lipgloss.Color("#666666")
	ColorDim    = lipgloss.Color("#444444")
	ColorWhite  = lipgloss.Color("#FFFFFF")
)

var (
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	QuestionStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	HintStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DotCurrentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	DotDoneStyle    = lipgloss.NewStyle().Foreground(ColorGray)
	DotTodoStyle    = lipgloss.NewStyle().Foreground(ColorDim)

	WaveStyle = lipgloss.NewStyle().
			Foreground(ColorAccent)

	WavePausedStyle = lipgloss.NewStyle().
			Foreground(ColorDim)

	SpeakingStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	ToastStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	ToastErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	CompleteStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true).
			Padding(1, 2)
)
