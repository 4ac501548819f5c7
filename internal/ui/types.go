package ui

import (
	"github.com/charmbracelet/bubbles/progress"

	"github.com/ResistanceIsUseless/proxyjudge/internal/scanner"
)

// ViewMode represents the display mode
type ViewMode int

const (
	ModeDefault ViewMode = iota
	ModeVerbose
	ModeDebug
)

const maxEvents = 50

// View is the terminal UI state for one scan run
type View struct {
	Progress progress.Model
	Stats    scanner.Stats
	Width    int

	// Set once the run has finished and the summary line is known
	Finished bool
	Summary  string

	// Config reloads waiting for the next run
	PendingReload bool

	Mode ViewMode

	// Most recent events, oldest first
	Events []string

	Version string
}

// NewView creates a new View with sensible defaults
func NewView() *View {
	return &View{
		Progress: progress.New(progress.WithDefaultGradient()),
		Width:    DefaultWidth,
		Mode:     ModeDefault,
	}
}

// SetMode sets the display mode
func (v *View) SetMode(verbose, debug bool) {
	switch {
	case debug:
		v.Mode = ModeDebug
	case verbose:
		v.Mode = ModeVerbose
	default:
		v.Mode = ModeDefault
	}
}

// SetWidth adapts the layout to the terminal width
func (v *View) SetWidth(termWidth int) {
	v.Width = ContentWidth(termWidth)
	v.Progress.Width = v.Width - 4*BorderPadding
}

// Update replaces the counters with a fresh snapshot
func (v *View) Update(stats scanner.Stats) {
	v.Stats = stats
}

// AddEvent appends a line to the event log, keeping only the latest entries
func (v *View) AddEvent(msg string) {
	v.Events = append(v.Events, msg)
	if len(v.Events) > maxEvents {
		v.Events = v.Events[len(v.Events)-maxEvents:]
	}
}

// Reset clears per-run state before a rescan
func (v *View) Reset() {
	v.Stats = scanner.Stats{}
	v.Finished = false
	v.Summary = ""
	v.Events = nil
}
