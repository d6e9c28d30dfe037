package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/geminivoice/internal/config"
	"github.com/diogo/geminivoice/internal/render"
	"github.com/diogo/geminivoice/internal/speech"
)

type configView int

const (
	viewMain configView = iota
	viewChoice
)

// setting is one row of the config menu. A nil choices func marks a
// boolean toggle.
type setting struct {
	key     string
	label   string
	choices func() []string
}

func configSettings() []setting {
	return []setting{
		{key: "default_model", label: "Default Model", choices: config.AvailableModels},
		{key: "speak_responses", label: "Speak Responses"},
		{key: "copy_to_clipboard", label: "Copy to Clipboard"},
		{key: "verbose", label: "Verbose Logging"},
		{key: "speech.synthesizer", label: "Voice Output", choices: func() []string {
			return append(append([]string{"auto"}, speech.Drivers()...), "none")
		}},
		{key: "speech.recognizer", label: "Voice Input", choices: func() []string {
			return []string{"auto", "deepgram", "none"}
		}},
		{key: "markdown.style", label: "Markdown Theme", choices: func() []string {
			styles := render.StandardStyles()
			names := make([]string, len(styles))
			for i, s := range styles {
				names[i] = s.Name
			}
			return names
		}},
		{key: "tui_theme", label: "TUI Theme", choices: ThemeNames},
	}
}

// ConfigModel is the interactive settings screen
type ConfigModel struct {
	config     config.Config
	configPath string
	save       func(config.Config) error
	settings   []setting

	view         configView
	cursor       int // main menu; len(settings) is Exit
	choiceCursor int

	feedback        string
	feedbackTimeout time.Duration

	width  int
	height int
	ready  bool
}

// NewConfigModel creates the settings screen. save persists every change.
func NewConfigModel(cfg config.Config, configPath string, save func(config.Config) error) ConfigModel {
	ApplyTheme(cfg.TUITheme)
	return ConfigModel{
		config:          cfg,
		configPath:      configPath,
		save:            save,
		settings:        configSettings(),
		view:            viewMain,
		feedbackTimeout: feedbackTimeout,
	}
}

// Init initializes the model
func (m ConfigModel) Init() tea.Cmd {
	return nil
}

// Config returns the configuration as edited so far
func (m ConfigModel) Config() config.Config {
	return m.config
}

// Update handles messages and updates the model
func (m ConfigModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case feedbackClearMsg:
		m.feedback = ""

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "esc":
			if m.view == viewChoice {
				m.view = viewMain
				return m, nil
			}
			return m, tea.Quit

		case "up", "k":
			m.move(-1)

		case "down", "j":
			m.move(1)

		case "enter", " ":
			return m.handleSelect()
		}
	}

	return m, nil
}

// move steps the active cursor with wraparound
func (m *ConfigModel) move(delta int) {
	if m.view == viewChoice {
		n := len(m.settings[m.cursor].choices())
		m.choiceCursor = (m.choiceCursor + delta + n) % n
		return
	}
	n := len(m.settings) + 1
	m.cursor = (m.cursor + delta + n) % n
}

func (m ConfigModel) handleSelect() (tea.Model, tea.Cmd) {
	if m.view == viewChoice {
		s := m.settings[m.cursor]
		value := s.choices()[m.choiceCursor]
		m.view = viewMain
		return m.apply(s, value)
	}

	if m.cursor == len(m.settings) {
		return m, tea.Quit
	}

	s := m.settings[m.cursor]
	current, _ := config.Get(m.config, s.key)
	if s.choices == nil {
		enabled, _ := strconv.ParseBool(current)
		return m.apply(s, strconv.FormatBool(!enabled))
	}

	m.choiceCursor = 0
	for i, c := range s.choices() {
		if c == current {
			m.choiceCursor = i
			break
		}
	}
	m.view = viewChoice
	return m, nil
}

// apply sets and saves one value, reporting the outcome as feedback
func (m ConfigModel) apply(s setting, value string) (tea.Model, tea.Cmd) {
	if err := config.Set(&m.config, s.key, value); err != nil {
		m.feedback = fmt.Sprintf("Error: %v", err)
		return m, clearFeedback(m.feedbackTimeout)
	}
	if s.key == "tui_theme" {
		ApplyTheme(value)
	}

	if err := m.save(m.config); err != nil {
		m.feedback = fmt.Sprintf("Error: %v", err)
	} else {
		m.feedback = fmt.Sprintf("%s set to %s", s.label, displayValue(s, value))
	}
	return m, clearFeedback(m.feedbackTimeout)
}

func displayValue(s setting, value string) string {
	if s.choices != nil {
		return value
	}
	if enabled, _ := strconv.ParseBool(value); enabled {
		return "enabled"
	}
	return "disabled"
}

// View renders the TUI
func (m ConfigModel) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	var sections []string

	header := configHeaderStyle.Width(contentWidth).Render(configTitleStyle.Render("✦ Configuration"))
	sections = append(sections, header)

	paths := lipgloss.JoinVertical(lipgloss.Left,
		configSectionTitleStyle.Render("Paths"),
		fmt.Sprintf("   Config:  %s", configPathStyle.Render(m.configPath)),
	)
	sections = append(sections, configPanelStyle.Width(contentWidth).Render(paths))

	var body string
	if m.view == viewChoice {
		body = m.renderChoices()
	} else {
		body = m.renderMainMenu()
	}
	sections = append(sections, configPanelStyle.Width(contentWidth).Render(body))

	if m.feedback != "" {
		sections = append(sections, feedbackStyle.Render("✓ "+m.feedback))
	}
	sections = append(sections, m.renderStatusBar(contentWidth))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func menuLine(selected bool, label string) (string, string) {
	if selected {
		return configCursorStyle.Render("▸ "), configMenuSelectedStyle.Render(label)
	}
	return "  ", configMenuItemStyle.Render(label)
}

func (m ConfigModel) renderMainMenu() string {
	labelWidth := 0
	for _, s := range m.settings {
		if len(s.label) > labelWidth {
			labelWidth = len(s.label)
		}
	}

	items := []string{configSectionTitleStyle.Render("Settings"), ""}
	for i, s := range m.settings {
		cursor, label := menuLine(m.cursor == i, s.label)
		current, _ := config.Get(m.config, s.key)

		var value string
		if s.choices == nil {
			value = renderBoolValue(current == "true")
		} else {
			value = configValueStyle.Render(current)
		}
		pad := strings.Repeat(" ", labelWidth-len(s.label)+4)
		items = append(items, cursor+label+pad+value)
	}

	items = append(items, "")
	cursor, label := menuLine(m.cursor == len(m.settings), "Exit")
	items = append(items, cursor+label)

	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (m ConfigModel) renderChoices() string {
	s := m.settings[m.cursor]
	current, _ := config.Get(m.config, s.key)

	items := []string{configSectionTitleStyle.Render("Select " + s.label), ""}
	for i, c := range s.choices() {
		cursor, label := menuLine(m.choiceCursor == i, c)
		line := cursor + label
		if c == current {
			line += configStatusOkStyle.Render(" (current)")
		}
		items = append(items, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func renderBoolValue(value bool) string {
	if value {
		return configEnabledStyle.Render("enabled")
	}
	return configDisabledStyle.Render("disabled")
}

func (m ConfigModel) renderStatusBar(width int) string {
	back := "Exit"
	if m.view == viewChoice {
		back = "Back"
	}
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"↑↓", "Navigate"},
		{"Enter", "Select"},
		{"Esc", back},
	}

	items := make([]string, 0, len(shortcuts))
	for _, s := range shortcuts {
		items = append(items, statusKeyStyle.Render(s.key)+statusDescStyle.Render(" "+s.desc))
	}
	return configStatusBarStyle.Width(width).Render(strings.Join(items, "  │  "))
}

// RunConfig runs the settings screen, saving to configPath
func RunConfig(cfg config.Config, configPath string) error {
	m := NewConfigModel(cfg, configPath, func(c config.Config) error {
		return config.SaveConfigTo(configPath, c)
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
