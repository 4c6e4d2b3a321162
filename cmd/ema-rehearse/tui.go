package main

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-rehearse/core"
	"github.com/koscakluka/ema-rehearse/core/dictation"
)

const (
	pollInterval  = 100 * time.Millisecond
	noticeMaxAge  = 8 * time.Second
	headerHeight  = 3
	footerHeight  = 2
	defaultWidth  = 80
	defaultHeight = 24
)

type sessionController interface {
	Start(ctx context.Context, scenarioID string) error
	Stop()
	Reset()
	ChangeScenario(id string) error
	Scenarios() []orchestration.Scenario
	Scenario() orchestration.Scenario
	Title() string
	State() orchestration.SessionState
	VisibleTurns() []dictation.Turn
	Active() bool
}

type tickMsg time.Time

type sessionStartedMsg struct{ err error }

type sessionEndedMsg struct{}

type model struct {
	ctx        context.Context
	controller sessionController
	notices    *noticeBoard
	warnings   []string

	spinner  spinner.Model
	viewport viewport.Model

	title    string
	scenario orchestration.Scenario
	state    orchestration.SessionState
	turns    []dictation.Turn
	starting bool
	errText  string

	width  int
	height int
}

func newModel(ctx context.Context, controller sessionController, notices *noticeBoard, warnings []string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	m := model{
		ctx:        ctx,
		controller: controller,
		notices:    notices,
		warnings:   warnings,
		spinner:    s,
		viewport:   viewport.New(defaultWidth, defaultHeight-headerHeight-footerHeight),
		width:      defaultWidth,
		height:     defaultHeight,
	}
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tick(), m.spinner.Tick)
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-headerHeight-footerHeight)
		m.viewport.SetContent(renderTurns(m.turns, m.viewport.Width))
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case sessionStartedMsg:
		m.starting = false
		if msg.err != nil {
			m.errText = msg.err.Error()
		} else {
			m.errText = ""
		}
		m.refresh()
		return m, nil

	case sessionEndedMsg:
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controller.Stop()
		return m, tea.Quit

	case "s":
		if m.starting || m.controller.Active() {
			return m, nil
		}
		m.starting = true
		m.errText = ""
		return m, startSession(m.ctx, m.controller)

	case "x":
		return m, endSession(m.controller.Stop)

	case "r":
		m.errText = ""
		return m, endSession(m.controller.Reset)

	case "tab":
		if m.starting || m.controller.Active() {
			return m, nil
		}
		if next, ok := nextScenario(m.controller.Scenarios(), m.controller.Scenario().ID); ok {
			if err := m.controller.ChangeScenario(next); err != nil {
				m.errText = err.Error()
			}
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func startSession(ctx context.Context, controller sessionController) tea.Cmd {
	return func() tea.Msg {
		err := controller.Start(ctx, "")
		if errors.Is(err, orchestration.ErrSessionActive) || errors.Is(err, orchestration.ErrStartCancelled) {
			err = nil
		}
		return sessionStartedMsg{err: err}
	}
}

func endSession(end func()) tea.Cmd {
	return func() tea.Msg {
		end()
		return sessionEndedMsg{}
	}
}

func nextScenario(scenarios []orchestration.Scenario, current string) (string, bool) {
	if len(scenarios) == 0 {
		return "", false
	}
	i := slices.IndexFunc(scenarios, func(s orchestration.Scenario) bool { return s.ID == current })
	return scenarios[(i+1)%len(scenarios)].ID, true
}

// refresh pulls the controller state into the model.
func (m *model) refresh() {
	m.title = m.controller.Title()
	m.scenario = m.controller.Scenario()
	m.state = m.controller.State()

	turns := m.controller.VisibleTurns()
	if !slices.EqualFunc(turns, m.turns, sameTurn) {
		atBottom := m.viewport.AtBottom()
		m.turns = turns
		m.viewport.SetContent(renderTurns(turns, m.viewport.Width))
		if atBottom {
			m.viewport.GotoBottom()
		}
	}
}

func sameTurn(a, b dictation.Turn) bool {
	return a.ID == b.ID && a.Text == b.Text && a.Open == b.Open
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	if m.title != m.scenario.Title {
		b.WriteString(scenarioStyle.Render("  " + m.scenario.Title))
	}
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(dividerStyle.Render(strings.Repeat("─", max(1, m.width))))
	b.WriteString("\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.footer())

	return b.String()
}

func (m model) statusLine() string {
	state := m.state.String()
	style, ok := stateStyles[state]
	if !ok {
		style = lipgloss.NewStyle()
	}
	line := style.Render(state)
	switch {
	case m.starting:
		line = m.spinner.View() + " connecting"
	case m.state == orchestration.StateAwaitingResponse:
		line += " " + m.spinner.View()
	}

	if m.errText != "" {
		return line + "  " + errorStyle.Render(m.errText)
	}
	if notice := m.notices.latest(noticeMaxAge); notice != "" {
		return line + "  " + errorStyle.Render(notice)
	}
	if len(m.warnings) > 0 && m.state == orchestration.StateIdle {
		return line + "  " + warningStyle.Render(m.warnings[0])
	}
	return line
}

func (m model) footer() string {
	keys := []struct{ key, desc string }{
		{"s", "start"},
		{"x", "stop"},
		{"r", "reset"},
		{"tab", "scenario"},
		{"q", "quit"},
	}

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, footerKeyStyle.Render(k.key)+" "+footerDescStyle.Render(k.desc))
	}
	return strings.Join(parts, "  ")
}

// renderTurns lays out turns oldest first, wrapped to width.
func renderTurns(turns []dictation.Turn, width int) string {
	if width <= 0 {
		width = defaultWidth
	}

	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		label, labelStyle := "User: ", userLabelStyle
		if turn.Speaker == dictation.SpeakerRemote {
			label, labelStyle = "Remote: ", remoteLabelStyle
		}

		text := wordwrap.String(label+turn.Text, width)
		body := strings.TrimPrefix(text, label)
		if turn.Open {
			body = openTurnStyle.Render(body)
		}
		lines = append(lines, labelStyle.Render(label)+body)
	}
	return strings.Join(lines, "\n")
}
