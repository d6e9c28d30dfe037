// Package tui provides the terminal user interface for geminivoice.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/geminivoice/internal/errors"
)

// Style variables, rebuilt by ApplyTheme
var (
	headerStyle   lipgloss.Style
	titleStyle    lipgloss.Style
	subtitleStyle lipgloss.Style
	hintStyle     lipgloss.Style

	messagesAreaStyle    lipgloss.Style
	userBubbleStyle      lipgloss.Style
	userLabelStyle       lipgloss.Style
	assistantBubbleStyle lipgloss.Style
	assistantLabelStyle  lipgloss.Style
	pendingStyle         lipgloss.Style

	inputPanelStyle lipgloss.Style
	inputLabelStyle lipgloss.Style
	loadingStyle    lipgloss.Style

	micOnStyle      lipgloss.Style
	speakerOnStyle  lipgloss.Style
	speakerOffStyle lipgloss.Style

	statusBarStyle  lipgloss.Style
	statusKeyStyle  lipgloss.Style
	statusDescStyle lipgloss.Style

	errorStyle    lipgloss.Style
	feedbackStyle lipgloss.Style

	welcomeStyle      lipgloss.Style
	welcomeTitleStyle lipgloss.Style
	welcomeIconStyle  lipgloss.Style

	configHeaderStyle       lipgloss.Style
	configTitleStyle        lipgloss.Style
	configPanelStyle        lipgloss.Style
	configSectionTitleStyle lipgloss.Style
	configMenuItemStyle     lipgloss.Style
	configMenuSelectedStyle lipgloss.Style
	configCursorStyle       lipgloss.Style
	configValueStyle        lipgloss.Style
	configEnabledStyle      lipgloss.Style
	configDisabledStyle     lipgloss.Style
	configPathStyle         lipgloss.Style
	configStatusOkStyle     lipgloss.Style
	configStatusBarStyle    lipgloss.Style
)

func init() {
	rebuildStyles()
}

// fg is a plain style with a foreground color
func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

// panel is a rounded box with a colored border
func panel(border lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(border)
}

func rebuildStyles() {
	t := currentTheme

	headerStyle = panel(t.Border).Padding(0, 2).MarginBottom(1)
	titleStyle = fg(t.Primary).Bold(true)
	subtitleStyle = fg(t.TextDim)
	hintStyle = fg(t.TextMute).Italic(true)

	// conversation
	messagesAreaStyle = panel(t.Border).Padding(1)
	userBubbleStyle = panel(t.Secondary).Padding(0, 1).MarginLeft(4)
	userLabelStyle = fg(t.Secondary).Bold(true).MarginLeft(4)
	assistantBubbleStyle = panel(t.Primary).Foreground(t.Text).Padding(0, 1).MarginRight(4)
	assistantLabelStyle = fg(t.Primary).Bold(true)
	pendingStyle = fg(t.TextDim).Italic(true)

	inputPanelStyle = panel(t.Border).Padding(0, 1).MarginTop(1)
	inputLabelStyle = fg(t.Primary).Bold(true).MarginRight(1)
	loadingStyle = fg(t.Accent).Bold(true)

	// voice indicators: a live microphone is drawn in the alert color
	micOnStyle = fg(t.Error).Bold(true)
	speakerOnStyle = fg(t.Secondary)
	speakerOffStyle = fg(t.TextDim)

	statusBarStyle = fg(t.TextMute).MarginTop(1)
	statusKeyStyle = fg(t.TextDim).Bold(true)
	statusDescStyle = fg(t.TextMute)

	errorStyle = fg(t.Error).Bold(true)
	feedbackStyle = fg(t.TextDim).Italic(true)

	welcomeStyle = panel(t.Primary).Padding(1, 2).MarginBottom(1).Align(lipgloss.Center)
	welcomeTitleStyle = fg(t.Primary).Bold(true).MarginBottom(1)
	welcomeIconStyle = fg(t.Accent).MarginBottom(1)

	// settings menu
	configHeaderStyle = fg(t.Primary).Bold(true).MarginBottom(1).Align(lipgloss.Center)
	configTitleStyle = fg(t.Text).Bold(true).MarginBottom(1).PaddingLeft(1)
	configPanelStyle = panel(t.Border).Padding(1, 2)
	configSectionTitleStyle = fg(t.Secondary).Bold(true).MarginTop(1)
	configMenuItemStyle = fg(t.Text).PaddingLeft(2)
	configMenuSelectedStyle = fg(t.Accent).Bold(true)
	configCursorStyle = fg(t.Accent)
	configValueStyle = fg(t.TextDim)
	configEnabledStyle = fg(t.Secondary)
	configDisabledStyle = fg(t.Error)
	configPathStyle = fg(t.TextMute).Italic(true)
	configStatusOkStyle = fg(t.Secondary)
	configStatusBarStyle = fg(t.TextMute).MarginTop(1).Align(lipgloss.Center)
}

// Hint returns a suggestion for resolving err, or "" when there is none.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.IsAuthError(err):
		return "Check GEMINI_API_KEY (or API_KEY) in your environment or .env file"
	case errors.IsRateLimitError(err):
		return "Usage limit reached. Try again later or pick another model with --model"
	case errors.IsTimeoutError(err):
		return "The request timed out. Try again"
	case errors.IsNetworkError(err):
		return "Check your internet connection and try again"
	case errors.IsBlockedError(err):
		return "The reply was blocked by the service. Rephrase and try again"
	case errors.IsCapabilityUnavailable(err):
		return "Run 'geminivoice voices' to see which speech capabilities were detected"
	}
	return ""
}

// FormatError returns a styled error message with the details carried by
// typed errors and a hint when one applies.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	dimStyle := fg(currentTheme.TextDim)

	var sb strings.Builder
	sb.WriteString(errorStyle.Render(fmt.Sprintf("✗ %v", err)))

	if status := errors.GetHTTPStatus(err); status > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  HTTP Status: %d", status)))
	}
	if endpoint := errors.GetEndpoint(err); endpoint != "" {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  Endpoint: %s", endpoint)))
	}
	if hint := Hint(err); hint != "" {
		sb.WriteString(dimStyle.Render("\n  Hint: " + hint))
	}

	return sb.String()
}
