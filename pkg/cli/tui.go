package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/metastaff/voicekit/pkg/buffer"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Dimmed/help text color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Interim lipgloss.Style
	Final   lipgloss.Style
	Help    lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Interim: lipgloss.NewStyle().Foreground(t.Dim).Italic(true),
		Final:   lipgloss.NewStyle().Bold(true),
		Help:    lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// TranscriptView renders a live recognition transcript: a status line,
// the in-flight interim text, and the most recent settled lines.
type TranscriptView struct {
	Styles  Styles
	Title   string
	History *buffer.Ring[string]

	status  string
	interim string
}

// NewTranscriptView creates a view keeping the last historyLines
// settled transcripts.
func NewTranscriptView(title string, historyLines int) *TranscriptView {
	return &TranscriptView{
		Styles:  NewStyles(DefaultTheme),
		Title:   title,
		History: buffer.RingN[string](historyLines),
	}
}

// SetStatus updates the status line.
func (v *TranscriptView) SetStatus(status string) {
	v.status = status
}

// SetInterim updates the in-flight transcript line.
func (v *TranscriptView) SetInterim(text string) {
	v.interim = text
}

// Commit appends a settled transcript to the history and clears the
// interim line.
func (v *TranscriptView) Commit(text string) {
	v.History.Add(text)
	v.interim = ""
}

// Render draws the view as a multi-line string.
func (v *TranscriptView) Render() string {
	var b strings.Builder
	b.WriteString(v.Styles.Title.Render(v.Title))
	if v.status != "" {
		b.WriteString("  ")
		b.WriteString(v.Styles.Help.Render("[" + v.status + "]"))
	}
	b.WriteString("\n")

	for _, line := range v.History.Items() {
		b.WriteString(v.Styles.Label.Render("» "))
		b.WriteString(v.Styles.Final.Render(line))
		b.WriteString("\n")
	}
	if v.interim != "" {
		b.WriteString(v.Styles.Label.Render("… "))
		b.WriteString(v.Styles.Interim.Render(v.interim))
		b.WriteString("\n")
	}
	return b.String()
}
