package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/diogo/geminivoice/internal/api"
	"github.com/diogo/geminivoice/internal/config"
	"github.com/diogo/geminivoice/internal/conversation"
	apierrors "github.com/diogo/geminivoice/internal/errors"
	"github.com/diogo/geminivoice/internal/logging"
	"github.com/diogo/geminivoice/internal/render"
	"github.com/diogo/geminivoice/internal/speech"
	"github.com/diogo/geminivoice/internal/tui"
)

// speechPollInterval is how often a spoken answer is checked for completion
const speechPollInterval = 100 * time.Millisecond

var (
	askSpeakFlag  bool
	askOutputFlag string
	askFileFlag   string
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Send a single prompt and stream the answer",
	Long: `Send a single prompt to Gemini and print the answer as it streams in.

The prompt comes from the argument, --file, or standard input. With --speak
the finished answer is also read aloud.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case askFileFlag != "":
			data, err := os.ReadFile(askFileFlag)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}
			return runAsk(cmd, string(data), askSpeakFlag)
		case len(args) > 0:
			return runAsk(cmd, args[0], askSpeakFlag)
		case deps.StdinPiped():
			data, err := io.ReadAll(deps.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			return runAsk(cmd, string(data), askSpeakFlag)
		}
		return fmt.Errorf("prompt cannot be empty")
	},
}

func init() {
	askCmd.Flags().BoolVarP(&askSpeakFlag, "speak", "s", false, "Read the answer aloud")
	askCmd.Flags().StringVarP(&askOutputFlag, "output", "o", "", "Save response to file instead of printing it")
	askCmd.Flags().StringVarP(&askFileFlag, "file", "f", "", "Read prompt from file")
}

// runAsk sends one prompt and prints the reply increment by increment.
// Decorations (spinner, status lines) only appear when stdout is a terminal.
func runAsk(cmd *cobra.Command, prompt string, speak bool) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return fmt.Errorf("prompt cannot be empty")
	}

	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	decorate := deps.TerminalWidth() > 0
	tui.ApplyTheme(cfg.TUITheme)

	log := zerolog.Nop()
	if verboseFlag || cfg.Verbose {
		log = logging.New(stderr, "debug")
	}

	instruction, personaModel, err := config.ResolveSystemInstruction(cfg, personaFlag)
	if err != nil {
		return fmt.Errorf("failed to load persona: %w", err)
	}
	model := getModel(cfg, personaModel)
	log.Debug().Str("model", model.Name).Str("persona", firstNonEmpty(personaFlag, cfg.Persona)).Msg("sending prompt")

	session, release, err := deps.OpenSession(cfg, model, instruction, log)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer release()

	ctx := commandContext(cmd)

	out := stdout
	if askOutputFlag != "" {
		out = io.Discard
	}

	var onFirst func()
	var spin *spinner
	if decorate {
		spin = newSpinner(stderr, "Waiting for Gemini")
		spin.start()
		onFirst = spin.stop
	}

	startTime := time.Now()
	reply, err := streamReply(ctx, session, prompt, out, onFirst)
	if spin != nil {
		spin.stop()
	}
	if err != nil {
		return err
	}
	log.Debug().Dur("took", time.Since(startTime).Round(time.Millisecond)).Int("chars", len(reply)).Msg("reply complete")

	if askOutputFlag != "" {
		if err := os.WriteFile(askOutputFlag, []byte(reply), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if decorate {
			fmt.Fprintln(stderr, successLine(fmt.Sprintf("Response saved to %s", askOutputFlag)))
		}
	} else if !strings.HasSuffix(reply, "\n") {
		fmt.Fprintln(stdout)
	}

	if cfg.CopyToClipboard && reply != "" {
		if err := deps.CopyText(reply); err != nil {
			fmt.Fprintln(stderr, warningLine(fmt.Sprintf("Failed to copy to clipboard: %v", err)))
		} else if decorate {
			fmt.Fprintln(stderr, successLine("Copied to clipboard"))
		}
	}

	if speak {
		speakReply(ctx, cfg, reply, stderr, decorate)
	}
	return nil
}

// streamReply writes each non-empty increment to w as it arrives and returns
// the full reply. onFirst runs before the first increment is written.
func streamReply(ctx context.Context, session api.ChatSessionInterface, prompt string, w io.Writer, onFirst func()) (string, error) {
	stream, err := session.StreamMessage(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to open reply stream: %w", err)
	}
	defer stream.Close()

	var acc conversation.Accumulator
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return acc.Text(), nil
		}
		if err != nil {
			return acc.Text(), fmt.Errorf("reply stream failed after %d increments: %w", acc.Received(), err)
		}
		if chunk.Text == "" {
			continue
		}
		if acc.Received() == 0 && onFirst != nil {
			onFirst()
		}
		acc.Append(chunk.Text)
		if _, err := io.WriteString(w, chunk.Text); err != nil {
			return acc.Text(), fmt.Errorf("failed to write reply: %w", err)
		}
	}
}

// speakReply reads the reply aloud and waits until speech finishes or ctx
// is cancelled. A missing synthesizer is reported, not fatal.
func speakReply(ctx context.Context, cfg config.Config, reply string, stderr io.Writer, decorate bool) {
	text := render.PlainText(reply)
	if text == "" {
		return
	}

	synth, err := deps.DetectSynthesizer(cfg.Speech.Synthesizer)
	if err != nil {
		fmt.Fprintln(stderr, formatErrorMessage(err, "Voice output unavailable"))
		return
	}

	voice := speech.Voice{Rate: cfg.Speech.Rate, Pitch: cfg.Speech.Pitch, Locale: cfg.Speech.Locale}
	if err := synth.Speak(text, voice); err != nil {
		fmt.Fprintln(stderr, formatErrorMessage(err, "Failed to speak"))
		return
	}

	var spin *spinner
	if decorate {
		spin = newSpinner(stderr, "Speaking")
		spin.start()
	}

	ticker := time.NewTicker(speechPollInterval)
	defer ticker.Stop()
	for synth.Speaking() {
		select {
		case <-ctx.Done():
			_ = synth.Cancel()
			if spin != nil {
				spin.stop()
			}
			return
		case <-ticker.C:
		}
	}
	if spin != nil {
		spin.succeed("Done")
	}
}

func successLine(msg string) string {
	return paint(tui.CurrentTheme().Secondary, "✓ "+msg)
}

func warningLine(msg string) string {
	return paint(tui.CurrentTheme().Warning, "⚠ "+msg)
}

// formatErrorMessage formats an error with additional context from structured errors
func formatErrorMessage(err error, context string) string {
	if err == nil {
		return ""
	}

	theme := tui.CurrentTheme()

	var sb strings.Builder
	sb.WriteString(paint(theme.Error, fmt.Sprintf("✗ %s: %v", context, err)))

	if status := apierrors.GetHTTPStatus(err); status > 0 {
		sb.WriteString(paint(theme.TextDim, fmt.Sprintf("\n  HTTP Status: %d", status)))
	}
	if endpoint := apierrors.GetEndpoint(err); endpoint != "" {
		sb.WriteString(paint(theme.TextDim, fmt.Sprintf("\n  Endpoint: %s", endpoint)))
	}
	if hint := tui.Hint(err); hint != "" {
		sb.WriteString(paint(theme.TextDim, "\n  Hint: "+hint))
	}

	return sb.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
