package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	orchestration "github.com/Omkar-Kubal/voice-cbt/core"
	"github.com/Omkar-Kubal/voice-cbt/core/conversations"
)

type phaseMsg struct {
	previous orchestration.Phase
	current  orchestration.Phase
}

type transcriptMsg string

type messageMsg conversations.Message

type errorMsg orchestration.SessionError

type connectionMsg orchestration.Connection

type historyMsg []conversations.Message

var (
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	systemStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	transcriptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Italic(true)
	helpStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type model struct {
	controller *orchestration.SessionController
	voiceReady bool

	viewport viewport.Model
	input    textinput.Model
	ready    bool
	width    int

	messages   []conversations.Message
	phase      orchestration.Phase
	transcript string
	connection orchestration.Connection
	lastError  *orchestration.SessionError
}

func newModel(controller *orchestration.SessionController, voiceReady bool) model {
	input := textinput.New()
	input.Placeholder = "Type how you're feeling..."
	input.Focus()

	return model{
		controller: controller,
		voiceReady: voiceReady,
		input:      input,
		phase:      orchestration.PhaseIdle,
		connection: orchestration.ConnectionConnected,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text != "" {
				m.controller.SendText(text)
				m.input.Reset()
			}
			return m, nil
		case "ctrl+v":
			if !m.voiceReady {
				return m, nil
			}
			if m.phase == orchestration.PhaseCapturing || m.phase == orchestration.PhaseTranscribing {
				m.controller.StopVoice()
			} else {
				m.controller.StartVoice()
			}
			return m, nil
		case "ctrl+x":
			m.controller.Cancel()
			return m, nil
		case "ctrl+l":
			m.controller.ClearConversation()
			m.messages = nil
			m.refreshViewport()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		viewportHeight := msg.Height - 5
		if viewportHeight < 1 {
			viewportHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
		m.refreshViewport()
		return m, nil

	case historyMsg:
		m.messages = msg
		m.refreshViewport()
		return m, nil

	case phaseMsg:
		m.phase = msg.current
		if msg.current == orchestration.PhaseIdle {
			m.transcript = ""
		}
		return m, nil

	case transcriptMsg:
		m.transcript = string(msg)
		return m, nil

	case messageMsg:
		m.messages = append(m.messages, conversations.Message(msg))
		m.refreshViewport()
		return m, nil

	case errorMsg:
		sessionError := orchestration.SessionError(msg)
		m.lastError = &sessionError
		return m, nil

	case connectionMsg:
		m.connection = orchestration.Connection(msg)
		if m.connection == orchestration.ConnectionConnected {
			m.lastError = nil
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.transcript != "" {
		b.WriteString(transcriptStyle.Render("… " + m.transcript))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.helpLine()))

	return b.String()
}

func (m *model) refreshViewport() {
	if !m.ready {
		return
	}

	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}

	var rendered []string
	for _, message := range m.messages {
		prefix := systemStyle.Render("therapist")
		if message.Speaker == conversations.SpeakerUser {
			prefix = userStyle.Render("you")
		}
		rendered = append(rendered, prefix+": "+wordwrap.String(message.Text, width-12))
	}

	m.viewport.SetContent(strings.Join(rendered, "\n\n"))
	m.viewport.GotoBottom()
}

func (m model) statusLine() string {
	status := fmt.Sprintf("voice-cbt · %s · %s", m.phase, m.connection)
	line := statusStyle.Render(status)
	if m.lastError != nil {
		line += "  " + errorStyle.Render(m.lastError.Message)
	}
	return line
}

func (m model) helpLine() string {
	parts := []string{"enter: send", "ctrl+x: cancel", "ctrl+l: clear", "esc: quit"}
	if m.voiceReady {
		parts = append([]string{"ctrl+v: talk/stop"}, parts...)
	}
	return strings.Join(parts, " · ")
}
