// Package render turns assistant replies into terminal output: glamour-styled
// markdown for the transcript and plain text for the speech synthesizer.
package render

import (
	"os"

	"github.com/diogo/geminivoice/internal/config"
)

// StyleEnv overrides the configured markdown style when set.
const StyleEnv = "GLAMOUR_STYLE"

// Options configures the markdown renderer behavior.
type Options struct {
	// Width is the word wrap column (default: 80)
	Width int

	// Style is a glamour standard style name ("dark", "light", "dracula",
	// "tokyo-night", "notty", "ascii") or a path to a JSON style file
	Style string

	EnableEmoji      bool
	PreserveNewLines bool
	TableWrap        bool
	InlineTableLinks bool
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		Width:            80,
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
		InlineTableLinks: false,
	}
}

// OptionsFromConfig builds render options from the markdown section of the
// user configuration. GLAMOUR_STYLE wins over the configured style.
func OptionsFromConfig(md config.MarkdownConfig, width int) Options {
	opts := DefaultOptions()
	if md.Style != "" {
		opts.Style = md.Style
	}
	opts.EnableEmoji = md.EnableEmoji
	opts.PreserveNewLines = md.PreserveNewLines
	opts.TableWrap = md.TableWrap
	opts.InlineTableLinks = md.InlineTableLinks

	if style := os.Getenv(StyleEnv); style != "" {
		opts.Style = style
	}
	if width > 0 {
		opts.Width = width
	}
	return opts
}

// WithWidth returns Options with the specified width.
func (o Options) WithWidth(width int) Options {
	o.Width = width
	return o
}

// WithStyle returns Options with the specified style.
func (o Options) WithStyle(style string) Options {
	o.Style = style
	return o
}

// Style describes a glamour standard style
type Style struct {
	Name        string
	Description string
}

// StandardStyles lists the styles glamour ships with
func StandardStyles() []Style {
	return []Style{
		{"dark", "Dark background"},
		{"light", "Light background"},
		{"dracula", "Dracula palette"},
		{"tokyo-night", "Tokyo Night palette"},
		{"pink", "Pink accents"},
		{"ascii", "Plain ASCII, no colors"},
		{"notty", "No styling for dumb terminals"},
	}
}
