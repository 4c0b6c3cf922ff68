package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	orchestration "github.com/jiroshimaya/fastvoicechat/core"
	"github.com/jiroshimaya/fastvoicechat/core/events"
)

const maxTranscriptLines = 500

var (
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	stateStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	assistantStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	backchannelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	noticeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	interimStyle     = lipgloss.NewStyle().Faint(true)
)

type eventMsg struct {
	event events.Event
}

// conversationDoneMsg is sent when the conversation loop returned.
type conversationDoneMsg struct {
	err error
}

type tuiModel struct {
	spinner  spinner.Model
	viewport viewport.Model
	width    int
	ready    bool

	state   string
	interim string
	lines   []string
	err     error
}

func newTUIModel() tuiModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return tuiModel{
		spinner: s,
		state:   orchestration.StateIdle.String(),
	}
}

func (m tuiModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := max(msg.Height-4, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case eventMsg:
		m.apply(msg.event)
		m.refresh()
		return m, nil
	case conversationDoneMsg:
		m.err = msg.err
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *tuiModel) apply(event events.Event) {
	switch e := event.(type) {
	case events.TurnStateChanged:
		m.state = e.To
	case events.UserTranscriptInterimUpdated:
		m.interim = e.Transcript
	case events.UserSpeechEnded:
		m.interim = ""
		if e.Transcript != "" {
			m.addLine(userStyle.Render("you: ") + e.Transcript)
		}
	case events.AssistantPlaybackStarted:
		if e.Role == "backchannel" {
			m.addLine(backchannelStyle.Render("bot: " + e.Text))
		} else {
			m.addLine(assistantStyle.Render("bot: ") + e.Text)
		}
	case events.TurnInterrupted:
		m.addLine(noticeStyle.Render("(interrupted)"))
	case events.TurnFailed:
		m.addLine(errorStyle.Render("error: " + e.Err.Error()))
	}
}

func (m *tuiModel) addLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxTranscriptLines {
		m.lines = m.lines[len(m.lines)-maxTranscriptLines:]
	}
}

func (m *tuiModel) refresh() {
	if !m.ready {
		return
	}
	content := strings.Join(m.lines, "\n")
	if m.width > 0 {
		content = wordwrap.String(content, m.width)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m tuiModel) View() string {
	if !m.ready {
		return "starting..."
	}

	header := headerStyle.Render("fastvoicechat") + "  " + m.spinner.View() + " " + stateStyle.Render(m.state)
	interim := interimStyle.Render("... " + m.interim)
	footer := "q to quit"
	if m.err != nil {
		footer = errorStyle.Render(fmt.Sprintf("stopped: %v", m.err))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), interim, footer)
}
