// Package tui renders a live timer dashboard fed by the agent.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/and161185/tasktime/internal/timer"
)

// Agent is what the dashboard needs from the timer agent.
type Agent interface {
	Status(ctx context.Context) (timer.Status, error)
	PauseTask(ctx context.Context) (timer.Status, error)
	ResumeTask(ctx context.Context) (timer.Status, error)
	StartBreak(ctx context.Context) (timer.Status, error)
	StopBreak(ctx context.Context) (timer.Status, error)
	PauseBreak(ctx context.Context) (timer.Status, error)
	ResumeBreak(ctx context.Context) (timer.Status, error)
	Events(ctx context.Context, fn func(timer.Event) error) error
}

const (
	callTimeout = 3 * time.Second
	barWidth    = 30
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(1, 2)

	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7DC6F")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

type tickMsg time.Time

type statusMsg struct {
	st  timer.Status
	err error
}

type eventMsg timer.Event

type eventsClosedMsg struct{ err error }

// Model is the bubbletea model of the dashboard.
type Model struct {
	agent    Agent
	interval time.Duration

	status timer.Status
	loaded bool
	err    error
	notice string
	width  int
	since  time.Time
}

// New builds a Model polling agent every interval.
func New(agent Agent, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	return Model{agent: agent, interval: interval, since: time.Now()}
}

// Run starts the dashboard and blocks until the user quits or ctx ends. Agent events
// are shown as notices next to the polled status.
func Run(ctx context.Context, agent Agent, interval time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := tea.NewProgram(New(agent, interval), tea.WithContext(ctx), tea.WithAltScreen())
	go func() {
		err := agent.Events(ctx, func(e timer.Event) error {
			p.Send(eventMsg(e))
			return nil
		})
		if ctx.Err() == nil {
			p.Send(eventsClosedMsg{err: err})
		}
	}()
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// describe turns an agent event into a notice. Events that need no attention yield "".
func describe(e timer.Event) string {
	switch e.Kind {
	case timer.EventBreakAutoEnded:
		return "break auto-ended: the break window closed after " + timer.FormatHMS(e.Seconds)
	case timer.EventAssignmentFailed:
		if e.Message != "" {
			return e.Message
		}
		return fmt.Sprintf("could not register task %d", e.TaskID)
	case timer.EventDayRollover:
		return "new day: timers reset"
	case timer.EventStateRepaired:
		return "stored timer state was repaired"
	}
	return ""
}

func (m Model) call(fn func(context.Context) (timer.Status, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		st, err := fn(ctx)
		return statusMsg{st: st, err: err}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init fetches the first status and starts polling.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.call(m.agent.Status), m.tick())
}

// Update handles keys, polling ticks and agent replies.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.key(msg.String())
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		return m, tea.Batch(m.call(m.agent.Status), m.tick())
	case statusMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.status, m.loaded, m.err = msg.st, true, nil
	case eventMsg:
		e := timer.Event(msg)
		if e.At.Before(m.since) {
			return m, nil
		}
		if n := describe(e); n != "" {
			m.notice = n
			return m, m.call(m.agent.Status)
		}
	case eventsClosedMsg:
		m.notice = "live notifications unavailable"
		if msg.err != nil {
			m.notice += ": " + msg.err.Error()
		}
	}
	return m, nil
}

func (m Model) key(k string) (tea.Model, tea.Cmd) {
	st := m.status.State
	m.notice = ""
	switch k {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "p":
		switch {
		case st.ActiveTaskID == nil:
			m.notice = "no active task"
		case st.TaskPaused:
			return m, m.call(m.agent.ResumeTask)
		default:
			return m, m.call(m.agent.PauseTask)
		}
	case "b":
		if st.OnBreak {
			return m, m.call(m.agent.StopBreak)
		}
		return m, m.call(m.agent.StartBreak)
	case " ":
		switch {
		case !st.OnBreak:
			m.notice = "not on a break"
		case st.BreakPaused:
			return m, m.call(m.agent.ResumeBreak)
		default:
			return m, m.call(m.agent.PauseBreak)
		}
	}
	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("tasktime"))
	b.WriteString("\n\n")

	if !m.loaded {
		if m.err != nil {
			b.WriteString(idleStyle.Render("agent: " + m.err.Error()))
		} else {
			b.WriteString("Loading...")
		}
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(boxStyle.Render(m.body()))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(idleStyle.Render(m.err.Error()))
		b.WriteString("\n")
	} else if m.notice != "" {
		b.WriteString(pausedStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render("p pause/resume task · b start/stop break · space pause/resume break · q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) body() string {
	s := m.status
	st := s.State
	var lines []string

	lines = append(lines, fmt.Sprintf("Date     %s", st.LastActiveDate))
	switch {
	case st.ActiveTaskID != nil && st.TaskPaused:
		lines = append(lines, fmt.Sprintf("Task     #%d %s %s", *st.ActiveTaskID,
			pausedStyle.Render("paused"), timer.FormatHMS(st.TaskElapsed[*st.ActiveTaskID])))
	case st.ActiveTaskID != nil:
		lines = append(lines, fmt.Sprintf("Task     #%d %s %s", *st.ActiveTaskID,
			runningStyle.Render("running"), timer.FormatHMS(st.TaskElapsed[*st.ActiveTaskID])))
	default:
		lines = append(lines, "Task     "+idleStyle.Render("none"))
	}

	brk := timer.FormatHMS(s.Progress.BreakSeconds)
	switch {
	case st.OnBreak && st.BreakPaused:
		lines = append(lines, "Break    "+pausedStyle.Render("paused")+" "+brk)
	case st.OnBreak:
		lines = append(lines, "Break    "+runningStyle.Render("on break")+" "+brk)
	default:
		lines = append(lines, fmt.Sprintf("Break    %s (window %s)", brk, s.BreakWindow))
	}

	p := s.Progress
	lines = append(lines,
		fmt.Sprintf("Worked   %s of %s", timer.FormatHMS(p.WorkedSeconds), timer.FormatHMS(p.TargetSeconds)),
		fmt.Sprintf("Progress %s %5.1f%%", bar(p.Percent, barWidth), p.Percent),
	)
	if p.Complete {
		lines = append(lines, runningStyle.Render("Target reached"))
	} else {
		lines = append(lines, "Left     "+timer.FormatHMS(p.RemainingSeconds))
	}
	return strings.Join(lines, "\n")
}

func bar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
