package ui

import (
	"strings"
	"time"
)

// Render draws the whole screen for the current state
func (v *View) Render() string {
	stats := v.Stats
	sections := []string{
		(&HeaderComponent{Mode: v.Mode, Paused: stats.Paused && !v.Finished, Width: v.Width}).Render(),
		(&ProgressComponent{
			Progress: v.Progress,
			Scanned:  stats.Scanned,
			Total:    stats.Total,
			ETA:      v.eta(),
			Width:    v.Width,
		}).Render(),
		(&CountersComponent{
			Alive:       stats.Alive,
			Anonymous:   stats.Anonymous,
			Dead:        stats.Dead,
			HTTP:        stats.HTTP,
			SOCKS:       stats.SOCKS,
			Elite:       stats.Elite,
			High:        stats.High,
			Transparent: stats.Transparent,
			Workers:     stats.ActiveWorkers,
			Detailed:    v.Mode != ModeDefault,
			Width:       v.Width,
		}).Render(),
	}

	if v.Mode != ModeDefault {
		lines := 5
		if v.Mode == ModeDebug {
			lines = 15
		}
		if events := (&EventsComponent{Events: v.Events, MaxLines: lines, Width: v.Width}).Render(); events != "" {
			sections = append(sections, events)
		}
	}

	if v.Finished && v.Summary != "" {
		sections = append(sections, SuccessStyle.Render(v.Summary))
	}
	if v.PendingReload {
		sections = append(sections, WarningStyle.Render("Configuration changed, applies to the next scan"))
	}

	sections = append(sections, (&FooterComponent{Hints: v.hints(), Version: v.Version}).Render())
	return strings.Join(sections, "\n")
}

func (v *View) eta() time.Duration {
	if v.Finished || v.Stats.Paused {
		return 0
	}
	return v.Stats.ETA
}

func (v *View) hints() []string {
	if v.Finished {
		return []string{"r rescan", "q quit"}
	}
	if v.Stats.Paused {
		return []string{"p resume", "q quit"}
	}
	return []string{"p pause", "q quit"}
}
