package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/geminivoice/internal/conversation"
	"github.com/diogo/geminivoice/internal/models"
	"github.com/diogo/geminivoice/internal/render"
)

// Controller is what the chat screen drives. *conversation.Controller
// satisfies it.
type Controller interface {
	Submit(ctx context.Context, text string) error
	ToggleVoiceInput()
	ToggleVoiceOutput()
	LastResponse() string
	State() conversation.State
	Subscribe(fn func(conversation.State))
}

var _ Controller = (*conversation.Controller)(nil)

type animationTickMsg time.Time

type (
	// stateMsg carries a controller state change into the event loop
	stateMsg conversation.State

	submitDoneMsg struct {
		err error
	}
	copiedMsg struct {
		err error
	}
	feedbackClearMsg struct{}
)

const feedbackTimeout = 2 * time.Second

// Model represents the chat TUI state. It never calls the controller from
// Update; every controller call runs inside a tea.Cmd.
type Model struct {
	ctx        context.Context
	ctrl       Controller
	modelName  string
	renderOpts render.Options
	copyText   func(string) error

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	state          conversation.State
	ready          bool
	err            error
	feedback       string
	animationFrame int

	width  int
	height int
}

// NewChatModel creates the chat screen for ctrl
func NewChatModel(ctx context.Context, ctrl Controller, modelName string, opts render.Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message, or press Ctrl+T to talk..."
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(currentTheme.Text)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(currentTheme.TextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = micOnStyle

	return Model{
		ctx:        ctx,
		ctrl:       ctrl,
		modelName:  modelName,
		renderOpts: opts,
		copyText:   clipboard.WriteAll,
		textarea:   ta,
		spinner:    s,
		state:      ctrl.State(),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func animationTick() tea.Cmd {
	return tea.Tick(time.Millisecond*80, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

func clearFeedback(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return feedbackClearMsg{}
	})
}

// inputDisabled reports whether typed input is currently refused
func (m Model) inputDisabled() bool {
	return m.state.IsLoading || m.state.IsListening
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 4
		inputHeight := 6
		statusHeight := 1
		padding := 2

		vpHeight := m.height - headerHeight - inputHeight - statusHeight - padding
		if vpHeight < 5 {
			vpHeight = 5
		}
		contentWidth := m.width - 4

		if !m.ready {
			m.viewport = viewport.New(contentWidth, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = contentWidth
			m.viewport.Height = vpHeight
		}
		m.textarea.SetWidth(contentWidth - 4)
		m.updateViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "ctrl+t":
			return m, m.toggleMic()

		case "ctrl+o":
			return m, m.toggleSpeaker()

		case "ctrl+y":
			return m, m.copyLast()

		case "enter":
			return m.handleEnter()
		}

	case stateMsg:
		wasBusy := m.state.IsLoading || m.state.IsListening
		m.state = conversation.State(msg)
		if m.inputDisabled() {
			m.textarea.Blur()
		} else {
			cmds = append(cmds, m.textarea.Focus())
		}
		if m.state.IsLoading || m.state.IsListening {
			m.err = nil
		}
		if !wasBusy && m.inputDisabled() {
			m.animationFrame = 0
			cmds = append(cmds, animationTick(), m.spinner.Tick)
		}
		m.updateViewport()
		m.viewport.GotoBottom()

	case submitDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, conversation.ErrSubmissionInFlight) {
			m.err = msg.err
		}

	case copiedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to copy to clipboard: %w", msg.err)
			return m, nil
		}
		m.feedback = "Copied last response to clipboard"
		return m, clearFeedback(feedbackTimeout)

	case feedbackClearMsg:
		m.feedback = ""

	case spinner.TickMsg:
		if m.state.IsListening || m.state.IsLoading {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case animationTickMsg:
		if m.state.IsLoading || m.state.IsListening {
			m.animationFrame++
			cmds = append(cmds, animationTick())
		}
	}

	// Only keys reach the textarea, and only while it accepts input
	if _, ok := msg.(tea.KeyMsg); ok && !m.inputDisabled() {
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.ready && scrollsViewport(msg) {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// scrollsViewport keeps typed characters such as space or j out of the
// viewport's pager bindings.
func scrollsViewport(msg tea.Msg) bool {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return true
	}
	switch key.String() {
	case "up", "down", "pgup", "pgdown":
		return true
	}
	return false
}

// handleEnter submits the typed text or runs a slash command
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	if m.inputDisabled() {
		return m, nil
	}
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}
	m.textarea.Reset()

	switch strings.ToLower(input) {
	case "exit", "quit", "/exit", "/quit":
		return m, tea.Quit
	case "/mic":
		return m, m.toggleMic()
	case "/speak":
		return m, m.toggleSpeaker()
	case "/copy":
		return m, m.copyLast()
	}

	m.err = nil
	return m, m.submit(input)
}

func (m Model) submit(text string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return submitDoneMsg{err: ctrl.Submit(ctx, text)}
	}
}

// toggleMic is ignored while a reply is loading
func (m Model) toggleMic() tea.Cmd {
	if m.state.IsLoading {
		return nil
	}
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.ToggleVoiceInput()
		return nil
	}
}

func (m Model) toggleSpeaker() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.ToggleVoiceOutput()
		return nil
	}
}

func (m Model) copyLast() tea.Cmd {
	ctrl, copyText := m.ctrl, m.copyText
	return func() tea.Msg {
		text := ctrl.LastResponse()
		if text == "" {
			return copiedMsg{err: errors.New("no response to copy")}
		}
		return copiedMsg{err: copyText(text)}
	}
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	var sections []string
	contentWidth := m.width - 4

	sections = append(sections, headerStyle.Width(contentWidth).Render(m.renderHeader()))

	var messagesContent string
	if len(m.state.Messages) == 0 {
		messagesContent = m.renderWelcome()
	} else {
		messagesContent = m.viewport.View()
	}
	sections = append(sections, messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(messagesContent))

	var inputContent string
	switch {
	case m.state.IsLoading:
		inputContent = m.renderLoadingAnimation()
	case m.state.IsListening:
		inputContent = m.renderListening()
	default:
		inputContent = lipgloss.JoinVertical(
			lipgloss.Left,
			inputLabelStyle.Render("You"),
			m.textarea.View(),
		)
	}
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(inputContent))

	sections = append(sections, m.renderStatusBar(contentWidth))

	if m.feedback != "" {
		sections = append(sections, feedbackStyle.Render("✓ "+m.feedback))
	}
	if m.err != nil {
		sections = append(sections, FormatError(m.err))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	speaker := speakerOffStyle.Render("🔇 voice off")
	if m.state.IsSpeakingEnabled {
		speaker = speakerOnStyle.Render("🔊 voice on")
	}

	parts := []string{
		titleStyle.Render("✦ Gemini Voice"),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(m.modelName),
		hintStyle.Render("  •  "),
		speaker,
	}
	if m.state.IsListening {
		parts = append(parts, hintStyle.Render("  •  "), micOnStyle.Render("🎤 listening"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
}

func (m Model) renderWelcome() string {
	width := m.viewport.Width - 4
	height := m.viewport.Height

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		"",
		welcomeIconStyle.Width(width).Render("✦"),
		"",
		welcomeTitleStyle.Width(width).Render("Welcome to Gemini Voice"),
		"",
		welcomeStyle.Width(width).Render("Type a message below or press Ctrl+T and speak"),
		"",
	)

	topPadding := (height - lipgloss.Height(content)) / 2
	if topPadding < 0 {
		topPadding = 0
	}
	return strings.Repeat("\n", topPadding) + content
}

// renderLoadingAnimation renders the wave shown while a reply streams
func (m Model) renderLoadingAnimation() string {
	dots := strings.Repeat("•", m.animationFrame/4%4)
	return lipgloss.JoinHorizontal(
		lipgloss.Center,
		Wave(m.animationFrame, 20),
		fg(currentTheme.Text).Render(" Gemini is replying "),
		hintStyle.Render(dots),
	)
}

func (m Model) renderListening() string {
	return lipgloss.JoinHorizontal(
		lipgloss.Center,
		m.spinner.View(),
		micOnStyle.Render(" Listening... "),
		hintStyle.Render("speak now, Ctrl+T to stop"),
	)
}

func (m Model) renderStatusBar(width int) string {
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"Ctrl+T", "Mic"},
		{"Ctrl+O", "Voice"},
		{"Ctrl+Y", "Copy"},
		{"Esc", "Quit"},
	}

	items := make([]string, 0, len(shortcuts))
	for _, s := range shortcuts {
		items = append(items, lipgloss.JoinHorizontal(
			lipgloss.Center,
			statusKeyStyle.Render(s.key),
			statusDescStyle.Render(" "+s.desc),
		))
	}

	bar := strings.Join(items, "  │  ")
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(bar)
}

// updateViewport re-renders the conversation into the viewport
func (m *Model) updateViewport() {
	if !m.ready {
		return
	}
	var content strings.Builder
	bubbleWidth := m.viewport.Width - 6
	opts := m.renderOpts.WithWidth(bubbleWidth - 4)
	last := len(m.state.Messages) - 1

	for i, msg := range m.state.Messages {
		if i > 0 {
			content.WriteString("\n")
		}

		if msg.Role == models.RoleUser {
			label := userLabelStyle.Render("⬤ You")
			bubble := userBubbleStyle.Width(bubbleWidth).Render(msg.Content)
			content.WriteString(label + "\n" + bubble)
		} else {
			label := assistantLabelStyle.Render("✦ Gemini")
			streaming := m.state.IsLoading && i == last
			bubble := assistantBubbleStyle.Width(bubbleWidth).Render(renderReply(msg.Content, opts, streaming))
			content.WriteString(label + "\n" + bubble)
		}
		content.WriteString("\n")
	}

	m.viewport.SetContent(content.String())
}

// renderReply renders assistant markdown, falling back to the raw text
func renderReply(content string, opts render.Options, streaming bool) string {
	if content == "" {
		if streaming {
			return pendingStyle.Render("…")
		}
		return ""
	}

	var (
		rendered string
		err      error
	)
	if streaming {
		rendered, err = render.Partial(content, opts)
	} else {
		rendered, err = render.Markdown(content, opts)
	}
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

// RunChat runs the chat screen until the user quits. Controller state
// changes are forwarded into the program as messages.
func RunChat(ctx context.Context, ctrl Controller, modelName string, opts render.Options) error {
	m := NewChatModel(ctx, ctrl, modelName, opts)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	ctrl.Subscribe(func(s conversation.State) {
		p.Send(stateMsg(s))
	})

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
