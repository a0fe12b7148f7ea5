package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/siteatlas/pkg/render"
)

// styles are the lipgloss styles derived from the active render palette, so
// the chrome matches the canvas theme.
type styles struct {
	statusBar lipgloss.Style
	helpBox   lipgloss.Style
}

func newStyles(p render.Palette) styles {
	bg := lipgloss.Color(hexColor(p.Background))
	fg := lipgloss.Color(hexColor(p.Label))
	accent := lipgloss.Color(hexColor(p.FillHealthy))
	return styles{
		statusBar: lipgloss.NewStyle().
			Foreground(fg).
			Background(bg),
		helpBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2),
	}
}
