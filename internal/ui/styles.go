package ui

import "github.com/charmbracelet/lipgloss"

// Color palette. A single cyan accent keeps the output calm; red and
// yellow are reserved for problems.
const (
	ColorCyan     = "45"  // primary accent
	ColorCyanDim  = "37"  // secondary labels
	ColorWhite    = "255" // headers
	ColorGray     = "245" // metadata
	ColorDarkGray = "238" // separators
	ColorRed      = "196" // errors
	ColorYellow   = "220" // warnings
)

// Styles holds the terminal styles used by CLI output.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Label   lipgloss.Style
	Score   lipgloss.Style
	Path    lipgloss.Style
}

// DefaultStyles returns the styled set for color terminals.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCyan)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Score:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCyanDim)),
		Path:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorCyan)),
	}
}

// NoColorStyles returns unstyled components for plain output.
func NoColorStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
		Label:   lipgloss.NewStyle(),
		Score:   lipgloss.NewStyle(),
		Path:    lipgloss.NewStyle(),
	}
}

// GetStyles returns the appropriate styles for the color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
