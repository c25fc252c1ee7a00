package chattui

import "github.com/charmbracelet/lipgloss"

// Theme holds the style tokens the chat TUI renders with.
type Theme struct {
	Name string

	Header       string
	Footer       string
	Muted        string
	Accent       string
	SelectedItem string

	Self   string
	Peer   string
	Online string
	Badge  string
}

// DefaultTheme is the baseline dark palette.
var DefaultTheme = Theme{
	Name:         "default",
	Header:       "111",
	Footer:       "110",
	Muted:        "245",
	Accent:       "75",
	SelectedItem: "75",
	Self:         "81",
	Peer:         "147",
	Online:       "41",
	Badge:        "203",
}

// LightTheme trades the dark palette for terminal-light colors.
var LightTheme = Theme{
	Name:         "light",
	Header:       "25",
	Footer:       "24",
	Muted:        "243",
	Accent:       "26",
	SelectedItem: "26",
	Self:         "19",
	Peer:         "90",
	Online:       "28",
	Badge:        "124",
}

func themeByName(name string) Theme {
	switch name {
	case "light":
		return LightTheme
	default:
		return DefaultTheme
	}
}

func (t Theme) headerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Header))
}

func (t Theme) footerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Footer))
}

func (t Theme) mutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted))
}

func (t Theme) selectedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.SelectedItem))
}

func (t Theme) selfStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Self))
}

func (t Theme) peerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Peer))
}

func (t Theme) onlineStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Online))
}

func (t Theme) badgeStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Badge))
}
