package main

import "github.com/charmbracelet/lipgloss"

var (
	colorRed     = lipgloss.Color("#FF5F5F")
	colorGreen   = lipgloss.Color("#5FFF87")
	colorYellow  = lipgloss.Color("#FFD75F")
	colorCyan    = lipgloss.Color("#5FD7FF")
	colorGray    = lipgloss.Color("#808080")
	colorDimGray = lipgloss.Color("#4E4E4E")
	colorMagenta = lipgloss.Color("#D787FF")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	scenarioStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	stateStyles = map[string]lipgloss.Style{
		"idle":              lipgloss.NewStyle().Foreground(colorGray),
		"listening":         lipgloss.NewStyle().Foreground(colorGreen).Bold(true),
		"awaiting_response": lipgloss.NewStyle().Foreground(colorYellow).Bold(true),
		"speaking":          lipgloss.NewStyle().Foreground(colorMagenta).Bold(true),
	}

	userLabelStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	remoteLabelStyle = lipgloss.NewStyle().
				Foreground(colorMagenta).
				Bold(true)

	openTurnStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	dividerStyle = lipgloss.NewStyle().
			Foreground(colorDimGray)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	footerDescStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorMagenta)
)
