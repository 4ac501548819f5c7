package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
)

// Component interface for all renderable UI elements
type Component interface {
	Render() string
}

// HeaderComponent displays the application header
type HeaderComponent struct {
	Mode   ViewMode
	Paused bool
	Width  int
}

func (h *HeaderComponent) Render() string {
	title := "ProxyJudge"

	switch h.Mode {
	case ModeVerbose:
		title += " • Verbose"
	case ModeDebug:
		title += " • Debug"
	}
	if h.Paused {
		title += " " + IconPaused + " PAUSED"
	}

	return HeaderStyle.Width(h.Width).Render(title)
}

// ProgressComponent displays the progress bar with the scanned count
type ProgressComponent struct {
	Progress progress.Model
	Scanned  int64
	Total    int64
	ETA      time.Duration
	Width    int
}

func (p *ProgressComponent) Render() string {
	if p.Total == 0 {
		return ProgressStyle.Width(p.Width).Render(InfoStyle.Render("Waiting for candidates..."))
	}

	var b strings.Builder
	b.WriteString(p.Progress.ViewAs(float64(p.Scanned) / float64(p.Total)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%d/%d ", p.Scanned, p.Total))
	b.WriteString(MetricValueStyle.Render(fmt.Sprintf("%.1f%%", float64(p.Scanned)/float64(p.Total)*100)))
	if p.ETA > 0 {
		b.WriteString(InfoStyle.Render(fmt.Sprintf("  ETA %v", p.ETA.Round(time.Second))))
	}

	return ProgressStyle.Width(p.Width).Render(b.String())
}

// CountersComponent shows the live alive and anonymity counters
type CountersComponent struct {
	Alive       int64
	Anonymous   int64
	Dead        int64
	HTTP        int64
	SOCKS       int64
	Elite       int64
	High        int64
	Transparent int64
	Workers     int64
	Detailed    bool
	Width       int
}

func metric(label string, value int64) string {
	return fmt.Sprintf("%s %s", MetricLabelStyle.Render(label), MetricValueStyle.Render(fmt.Sprintf("%d", value)))
}

func level(name string, value int64) string {
	return fmt.Sprintf("%s %s", AnonymityStyle(name).Render(name+":"), MetricValueStyle.Render(fmt.Sprintf("%d", value)))
}

func (c *CountersComponent) Render() string {
	lines := []string{
		metric("Alive =", c.Alive) + " | " + metric("Anonymous =", c.Anonymous),
	}
	if c.Detailed {
		lines = append(lines,
			metric("HTTP:", c.HTTP)+"  "+metric("SOCKS:", c.SOCKS)+"  "+metric("Dead:", c.Dead),
			level("Elite", c.Elite)+"  "+level("High", c.High)+"  "+level("Transparent", c.Transparent),
			metric("Workers:", c.Workers),
		)
	}
	return CounterBlockStyle.Width(c.Width).Render(strings.Join(lines, "\n"))
}

// EventsComponent shows the tail of the event log
type EventsComponent struct {
	Events   []string
	MaxLines int
	Width    int
}

func (e *EventsComponent) Render() string {
	if len(e.Events) == 0 {
		return ""
	}

	maxLines := e.MaxLines
	if maxLines <= 0 {
		maxLines = 10
	}
	events := e.Events
	if len(events) > maxLines {
		events = events[len(events)-maxLines:]
	}

	var b strings.Builder
	for i, msg := range events {
		if i > 0 {
			b.WriteString("\n")
		}
		switch {
		case strings.HasPrefix(msg, IconSuccess):
			// alive lines carry their own colouring after the icon
			b.WriteString(SuccessStyle.Render(IconSuccess) + strings.TrimPrefix(msg, IconSuccess))
		case strings.HasPrefix(msg, IconError):
			b.WriteString(ErrorStyle.Render(msg))
		default:
			b.WriteString(InfoStyle.Render(msg))
		}
	}
	return EventBlockStyle.Width(e.Width).Render(b.String())
}

// FooterComponent displays help text and controls
type FooterComponent struct {
	Hints   []string
	Version string
}

func (f *FooterComponent) Render() string {
	hints := f.Hints
	if f.Version != "" {
		hints = append(hints, "v"+f.Version)
	}
	return InfoStyle.Render(strings.Join(hints, "  •  "))
}
