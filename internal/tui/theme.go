package tui

import "github.com/charmbracelet/lipgloss"

// Theme is a color palette for the chat and config screens
type Theme struct {
	Name        string
	Description string

	Surface lipgloss.Color
	Border  lipgloss.Color

	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color

	Text     lipgloss.Color
	TextDim  lipgloss.Color
	TextMute lipgloss.Color
}

// DefaultThemeName is used when the configured theme is empty or unknown
const DefaultThemeName = "tokyonight"

var themes = []Theme{
	{
		Name:        "tokyonight",
		Description: "Tokyo Night, dark with blue accents",
		Surface:     "#24283b",
		Border:      "#414868",
		Primary:     "#7aa2f7",
		Secondary:   "#9ece6a",
		Accent:      "#bb9af7",
		Warning:     "#e0af68",
		Error:       "#f7768e",
		Text:        "#c0caf5",
		TextDim:     "#565f89",
		TextMute:    "#3b4261",
	},
	{
		Name:        "catppuccin",
		Description: "Catppuccin Mocha, warm pastels",
		Surface:     "#313244",
		Border:      "#45475a",
		Primary:     "#89b4fa",
		Secondary:   "#a6e3a1",
		Accent:      "#cba6f7",
		Warning:     "#f9e2af",
		Error:       "#f38ba8",
		Text:        "#cdd6f4",
		TextDim:     "#6c7086",
		TextMute:    "#45475a",
	},
	{
		Name:        "nord",
		Description: "Nord, cool arctic tones",
		Surface:     "#3b4252",
		Border:      "#4c566a",
		Primary:     "#88c0d0",
		Secondary:   "#a3be8c",
		Accent:      "#b48ead",
		Warning:     "#ebcb8b",
		Error:       "#bf616a",
		Text:        "#eceff4",
		TextDim:     "#7b88a1",
		TextMute:    "#4c566a",
	},
	{
		Name:        "dracula",
		Description: "Dracula, vibrant dark",
		Surface:     "#44475a",
		Border:      "#6272a4",
		Primary:     "#8be9fd",
		Secondary:   "#50fa7b",
		Accent:      "#ff79c6",
		Warning:     "#f1fa8c",
		Error:       "#ff5555",
		Text:        "#f8f8f2",
		TextDim:     "#6272a4",
		TextMute:    "#44475a",
	},
}

var currentTheme = themes[0]

// Themes returns the built-in palettes
func Themes() []Theme {
	return append([]Theme(nil), themes...)
}

// ThemeNames returns the names of the built-in palettes
func ThemeNames() []string {
	names := make([]string, len(themes))
	for i, t := range themes {
		names[i] = t.Name
	}
	return names
}

// ThemeByName looks up a built-in palette
func ThemeByName(name string) (Theme, bool) {
	for _, t := range themes {
		if t.Name == name {
			return t, true
		}
	}
	return Theme{}, false
}

// CurrentTheme returns the active palette
func CurrentTheme() Theme {
	return currentTheme
}

// ApplyTheme activates the named palette and rebuilds every style. An unknown
// name falls back to the default and reports false.
func ApplyTheme(name string) bool {
	theme, ok := ThemeByName(name)
	if !ok {
		theme, _ = ThemeByName(DefaultThemeName)
	}
	currentTheme = theme
	rebuildStyles()
	return ok
}
