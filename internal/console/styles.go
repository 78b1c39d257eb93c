package console

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used for command output.
type Styles struct {
	Score lipgloss.Style
	Text  lipgloss.Style
}

// NewStyles creates styles rendered for w. Colour is dropped automatically
// when w is not a colour terminal.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Score: r.NewStyle().Foreground(lipgloss.Color("#06B6D4")).Bold(true),
		Text:  r.NewStyle().Foreground(lipgloss.Color("#CDD6F4")),
	}
}

// Match renders one query result as "score  text".
func (s Styles) Match(score float64, text string) string {
	return s.Score.Render(fmt.Sprintf("%.4f", score)) + "  " + s.Text.Render(text)
}
