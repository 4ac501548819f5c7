package main

import (
	"context"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ResistanceIsUseless/proxyjudge/internal/output"
	"github.com/ResistanceIsUseless/proxyjudge/internal/ui"
)

// Define custom message types
type tickMsg time.Time
type startedMsg struct{ done <-chan struct{} }
type scanDoneMsg struct{}
type eventMsg string
type errMsg struct{ err error }

// model drives the terminal UI. Keys: p pauses, q quits, r rescans a
// finished list.
type model struct {
	ctx  context.Context
	app  *app
	view *ui.View

	running  bool
	quitting bool
	summary  output.SummaryOutput
	err      error
}

func newModel(ctx context.Context, a *app, view *ui.View) *model {
	return &model{ctx: ctx, app: a, view: view}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *model) start() tea.Cmd {
	m.running = true
	return func() tea.Msg {
		if err := m.app.startRun(m.ctx); err != nil {
			return errMsg{err}
		}
		return startedMsg{done: m.app.Done()}
	}
}

func waitDone(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return scanDoneMsg{}
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.start(), tick())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c":
			if !m.running {
				return m, tea.Quit
			}
			// Results are written once the in-flight probes return
			m.quitting = true
			m.app.Terminate()
			m.view.AddEvent("Stopping, waiting for in-flight probes...")
		case "p", "P", " ":
			if m.running {
				m.app.TogglePause()
			}
		case "r", "R":
			if !m.running && !m.quitting && m.err == nil {
				m.app.rescan()
				m.view.Reset()
				return m, m.start()
			}
		}

	case tea.WindowSizeMsg:
		m.view.SetWidth(msg.Width)

	case tickMsg:
		m.view.Update(m.app.Stats())
		m.view.PendingReload = m.app.reloadPending()
		return m, tick()

	case startedMsg:
		return m, waitDone(msg.done)

	case scanDoneMsg:
		m.running = false
		m.view.Update(m.app.Stats())
		summary, err := m.app.finish()
		m.summary = summary
		m.view.Finished = true
		m.view.Summary = output.FoundMessage(summary)
		if err != nil {
			m.err = err
			return m, tea.Quit
		}
		if m.quitting || m.ctx.Err() != nil {
			return m, tea.Quit
		}

	case eventMsg:
		m.view.AddEvent(string(msg))

	case errMsg:
		m.running = false
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m *model) View() string {
	return m.view.Render() + "\n"
}

// eventSink forwards log lines and probe events to the UI without ever
// blocking the caller. Lines are dropped while the buffer is full.
type eventSink struct {
	mutex  sync.Mutex
	closed bool
	events chan string
}

func newEventSink(size int) *eventSink {
	return &eventSink{events: make(chan string, size)}
}

func (e *eventSink) push(line string) {
	if e == nil {
		return
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.closed {
		return
	}
	select {
	case e.events <- line:
	default:
	}
}

// Write lets the sink back a logger
func (e *eventSink) Write(p []byte) (int, error) {
	e.push(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func (e *eventSink) attach(program *tea.Program) {
	if e == nil {
		return
	}
	go func() {
		for line := range e.events {
			program.Send(eventMsg(line))
		}
	}()
}

func (e *eventSink) close() {
	if e == nil {
		return
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
}
