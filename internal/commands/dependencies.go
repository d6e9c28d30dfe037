package commands

import (
	"context"
	"io"
	"os"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/diogo/geminivoice/internal/api"
	"github.com/diogo/geminivoice/internal/config"
	"github.com/diogo/geminivoice/internal/conversation"
	"github.com/diogo/geminivoice/internal/logging"
	"github.com/diogo/geminivoice/internal/models"
	"github.com/diogo/geminivoice/internal/render"
	"github.com/diogo/geminivoice/internal/speech"
	"github.com/diogo/geminivoice/internal/tui"
)

// TUIInterface defines the methods required from the TUI package.
type TUIInterface interface {
	RunChat(ctx context.Context, ctrl tui.Controller, modelName string, opts render.Options) error
	RunConfig(cfg config.Config, configPath string) error
}

// VoiceAdapter is the speech capability handed to a chat controller.
// *speech.Adapter implements it.
type VoiceAdapter interface {
	conversation.VoiceAdapter
	CanListen() bool
	CanSpeak() bool
	Close()
}

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	// LoadConfig reads the user configuration.
	LoadConfig func() (config.Config, error)

	// ConfigPath locates the config file.
	ConfigPath func() (string, error)

	// OpenSession connects to the chat service. The returned func releases it.
	OpenSession func(cfg config.Config, model models.Model, instruction string, log zerolog.Logger) (api.ChatSessionInterface, func(), error)

	// NewVoice detects speech support for an interactive chat.
	NewVoice func(cfg config.Config, log zerolog.Logger) VoiceAdapter

	// DetectSynthesizer and DetectRecognizer probe single capabilities.
	DetectSynthesizer func(name string) (speech.Synthesizer, error)
	DetectRecognizer  func(cfg config.SpeechConfig, apiKey string, log zerolog.Logger) (speech.Recognizer, error)

	// ChatLogger opens the log sink for a TUI session, which owns the terminal.
	ChatLogger func(cfg config.Config, level string) (zerolog.Logger, func())

	// CopyText writes to the system clipboard.
	CopyText func(string) error

	// TUI is the terminal user interface.
	TUI TUIInterface

	// Stdin is read when StdinPiped reports redirected input.
	Stdin      io.Reader
	StdinPiped func() bool

	// TerminalWidth reports the width of stdout, or 0 when it is not a terminal.
	TerminalWidth func() int
}

// DefaultTUI is the production implementation of TUIInterface.
type DefaultTUI struct{}

func (d *DefaultTUI) RunChat(ctx context.Context, ctrl tui.Controller, modelName string, opts render.Options) error {
	return tui.RunChat(ctx, ctrl, modelName, opts)
}

func (d *DefaultTUI) RunConfig(cfg config.Config, configPath string) error {
	return tui.RunConfig(cfg, configPath)
}

// NewDependencies creates a new Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		LoadConfig:  config.LoadConfig,
		ConfigPath:  config.GetConfigPath,
		OpenSession: openSession,
		NewVoice: func(cfg config.Config, log zerolog.Logger) VoiceAdapter {
			return speech.NewAdapterFromConfig(cfg, log)
		},
		DetectSynthesizer: speech.DetectSynthesizer,
		DetectRecognizer:  speech.DetectRecognizer,
		ChatLogger:        fileLogger,
		CopyText:          clipboard.WriteAll,
		TUI:               &DefaultTUI{},
		Stdin:             os.Stdin,
		StdinPiped:        stdinPiped,
		TerminalWidth:     getTerminalWidth,
	}
}

// deps is the dependency set used by the package-level commands
var deps = NewDependencies()

func openSession(cfg config.Config, model models.Model, instruction string, log zerolog.Logger) (api.ChatSessionInterface, func(), error) {
	client, err := api.NewClient(cfg.APIKey, api.WithModel(model), api.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	return client.StartChat(instruction, model), client.Close, nil
}

// fileLogger logs to the configured log file, or nowhere if it cannot be opened
func fileLogger(cfg config.Config, level string) (zerolog.Logger, func()) {
	path, err := config.GetLogPath(cfg)
	if err != nil {
		return zerolog.Nop(), func() {}
	}
	log, closer, err := logging.NewFile(path, level)
	if err != nil {
		return zerolog.Nop(), func() {}
	}
	return log, func() { _ = closer.Close() }
}

func stdinPiped() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// getTerminalWidth returns the terminal width, or 0 when stdout is not a terminal
func getTerminalWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80 // default width
	}
	return width
}
