package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

const (
	colorAccent = lipgloss.Color("#3DDC84")
	colorMuted  = lipgloss.Color("#7A7A7A")
	colorError  = lipgloss.Color("#FF5F5F")
	colorBorder = lipgloss.Color("#444444")
)

type Styles struct {
	Title   lipgloss.Style
	Status  lipgloss.Style
	Message lipgloss.Style
	Error   lipgloss.Style
	Help    lipgloss.Style
	Prompt  lipgloss.Style
	Frame   lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1),
		Status:  lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1),
		Message: lipgloss.NewStyle().Padding(0, 1),
		Error:   lipgloss.NewStyle().Foreground(colorError).Padding(0, 1),
		Help:    lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1),
		Prompt:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent).Padding(0, 1),
		Frame:   lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(colorBorder),
	}
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#000000")).
		Background(colorAccent).
		Bold(false)
	return s
}
