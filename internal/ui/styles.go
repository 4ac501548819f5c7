package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	colorTitle  = lipgloss.Color("87")  // cyan
	colorFrame  = lipgloss.Color("39")  // blue
	colorGood   = lipgloss.Color("42")  // green
	colorFair   = lipgloss.Color("220") // yellow
	colorSlow   = lipgloss.Color("214") // orange
	colorBad    = lipgloss.Color("196") // red
	colorMuted  = lipgloss.Color("244") // gray
	colorEvents = lipgloss.Color("99")  // purple
	colorCount  = lipgloss.Color("207") // pink
)

// Layout constants
const (
	DefaultWidth  = 60
	MinWidth      = 30
	MaxWidth      = 100
	BorderPadding = 1
)

// ContentWidth clamps the terminal width into the range the blocks render well at
func ContentWidth(termWidth int) int {
	switch {
	case termWidth <= 0:
		return DefaultWidth
	case termWidth < MinWidth:
		return MinWidth
	case termWidth > MaxWidth:
		return MaxWidth
	default:
		return termWidth - 2*BorderPadding
	}
}

func block(border lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, BorderPadding)
}

func text(fg lipgloss.Color, bold bool) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(fg).Bold(bold)
}

// Block styles
var (
	HeaderStyle       = block(colorTitle).Foreground(colorTitle).Bold(true).Align(lipgloss.Center)
	ProgressStyle     = block(colorFrame)
	CounterBlockStyle = block(colorCount)
	EventBlockStyle   = block(colorEvents)
)

// Text styles
var (
	SuccessStyle     = text(colorGood, true)
	ErrorStyle       = text(colorBad, true)
	WarningStyle     = text(colorSlow, true)
	InfoStyle        = text(colorMuted, false).Italic(true)
	MetricLabelStyle = text(colorMuted, true)
	MetricValueStyle = text(colorGood, true)
)

// Elite and high anonymity share the good colour; transparent proxies leak
// the client address and are flagged.
var anonymityStyles = map[string]lipgloss.Style{
	"Elite":       text(colorGood, true),
	"High":        text(colorTitle, true),
	"Transparent": text(colorSlow, true),
}

// AnonymityStyle colours an anonymity level name
func AnonymityStyle(level string) lipgloss.Style {
	if style, ok := anonymityStyles[level]; ok {
		return style
	}
	return InfoStyle
}

// Latency bands run fast, good, slow, very slow
var latencyStyles = map[string]lipgloss.Style{
	"fast":      text(colorGood, false),
	"good":      text(colorFair, false),
	"slow":      text(colorSlow, false),
	"very slow": text(colorBad, false),
}

// LatencyStyle colours a latency by its band
func LatencyStyle(band string) lipgloss.Style {
	if style, ok := latencyStyles[band]; ok {
		return style
	}
	return InfoStyle
}

// AliveEvent formats the event line for a working proxy
func AliveEvent(key, protocol, anonymity string, latencyMs int, band string) string {
	return fmt.Sprintf("%s %s %s %s %s", IconSuccess, key, protocol,
		AnonymityStyle(anonymity).Render(anonymity),
		LatencyStyle(band).Render(fmt.Sprintf("%dms", latencyMs)))
}

// Status icons
const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconPaused  = "⏸"
)
