package output

import (
	"github.com/charmbracelet/lipgloss"
)

// Check result statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Styles holds the text styles used by commands.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	ID      lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1: r.NewStyle().Bold(true).Underline(true),
		Header2: r.NewStyle().Bold(true),
		Bold:    r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "245", Dark: "241"}),
		Success: r.NewStyle().Foreground(lipgloss.Color("2")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("3")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Info:    r.NewStyle().Foreground(lipgloss.Color("6")),
		ID:      r.NewStyle().Foreground(lipgloss.Color("4")),
	}
}

// Status renders a status marker.
func (s *Styles) Status(status string) string {
	switch status {
	case StatusSuccess:
		return s.Success.Render("✓")
	case StatusFailed:
		return s.Error.Render("✗")
	case StatusSkipped:
		return s.Muted.Render("-")
	}
	return s.Info.Render("•")
}
