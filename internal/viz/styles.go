package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// styles are the lipgloss styles of one theme.
type styles struct {
	canvas    lipgloss.Style
	stats     lipgloss.Style
	header    lipgloss.Style
	label     lipgloss.Style
	value     lipgloss.Style
	graph     lipgloss.Style
	help      lipgloss.Style
	running   lipgloss.Style
	paused    lipgloss.Style
	recording lipgloss.Style
	failed    lipgloss.Style
	sparkHigh lipgloss.Style
	sparkMid  lipgloss.Style
	sparkLow  lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		canvas: lipgloss.NewStyle().Foreground(t.Secondary).Padding(1, 2),
		stats: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(t.Muted).
			Padding(1, 2).
			Width(45),
		header:    lipgloss.NewStyle().Foreground(t.Primary).Bold(true).MarginBottom(1),
		label:     lipgloss.NewStyle().Foreground(t.Muted).Width(12),
		value:     lipgloss.NewStyle().Foreground(t.Text),
		graph:     lipgloss.NewStyle().Foreground(t.Accent).Padding(1, 0),
		help:      lipgloss.NewStyle().Foreground(t.Muted).Italic(true).MarginTop(1),
		running:   lipgloss.NewStyle().Bold(true).Foreground(t.Success),
		paused:    lipgloss.NewStyle().Bold(true).Foreground(t.Warning),
		recording: lipgloss.NewStyle().Bold(true).Foreground(t.Error).Blink(true),
		failed:    lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		sparkHigh: lipgloss.NewStyle().Foreground(t.Success),
		sparkMid:  lipgloss.NewStyle().Foreground(t.Warning),
		sparkLow:  lipgloss.NewStyle().Foreground(t.Error),
	}
}

// AnimatedSpinner returns frame of animated spinner
func AnimatedSpinner(frame int) string {
	spinners := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return spinners[frame%len(spinners)]
}

// progressBar renders percent in [0, 1] as a filled bar of width cells.
func (s styles) progressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if percent > 0.8 {
		return s.sparkHigh.Render(bar)
	} else if percent > 0.4 {
		return s.sparkMid.Render(bar)
	}
	return s.sparkLow.Render(bar)
}

// Sparkline renders values as a row of block characters, sampled to fit
// width.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width < 1 {
		return strings.Repeat("─", max(width, 0))
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	step := len(values) / width
	if step < 1 {
		step = 1
	}

	var result strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / rng
		idx := int(norm * float64(len(chars)-1))
		idx = max(0, min(idx, len(chars)-1))
		result.WriteRune(chars[idx])
	}
	return result.String()
}
