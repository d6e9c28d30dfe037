// Package commands provides CLI commands for geminivoice.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diogo/geminivoice/internal/config"
	"github.com/diogo/geminivoice/internal/models"
)

var (
	// Global flags
	modelFlag   string
	personaFlag string
	noSpeakFlag bool
	verboseFlag bool

	// Root-only flags
	fileFlag string

	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "geminivoice [prompt]",
	Short: "Voice-enabled terminal chat with Google Gemini",
	Long: `geminivoice is a terminal chat client for Google Gemini. Replies stream
into the conversation as they arrive and can be read aloud; the microphone
turns speech into messages.

Examples:
  geminivoice                           Start interactive chat
  geminivoice chat --persona tutor      Chat with a persona
  geminivoice "What is Go?"             Send a single prompt
  geminivoice ask --speak "Hi there"    Ask and read the answer aloud
  geminivoice -f prompt.md              Read prompt from file
  cat prompt.md | geminivoice           Read prompt from stdin
  geminivoice config set speech.rate 1.2
  geminivoice voices                    Show detected voice support`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Fprintf(cmd.OutOrStdout(), "geminivoice %s (built %s)\n", Version, BuildTime)
			return nil
		}

		if fileFlag != "" {
			data, err := os.ReadFile(fileFlag)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}
			return runAsk(cmd, string(data), false)
		}

		if deps.StdinPiped() {
			data, err := io.ReadAll(deps.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			return runAsk(cmd, string(data), false)
		}

		if len(args) > 0 {
			return runAsk(cmd, args[0], false)
		}

		// No input - start the conversation
		return runChat(cmd)
	},
}

// Execute runs the root command. Interrupts cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Error"))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Model to use (e.g., gemini-2.5-flash)")
	rootCmd.PersistentFlags().StringVarP(&personaFlag, "persona", "p", "", "Persona to use for the session")
	rootCmd.PersistentFlags().BoolVar(&noSpeakFlag, "no-speak", false, "Start with voice output turned off")
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "Enable debug logging")
	rootCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Read prompt from file")
	rootCmd.Flags().BoolP("version", "v", false, "Show version and exit")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(personaCmd)
	rootCmd.AddCommand(voicesCmd)
}

// getModel returns the model to use: flag, then persona preference, then config
func getModel(cfg config.Config, personaModel string) models.Model {
	if modelFlag != "" {
		return models.ModelFromName(modelFlag)
	}
	if personaModel != "" {
		return models.ModelFromName(personaModel)
	}
	return models.ModelFromName(cfg.DefaultModel)
}

// logLevel resolves the effective log level; --verbose and the verbose
// setting both force debug.
func logLevel(cfg config.Config) string {
	if verboseFlag || cfg.Verbose {
		return "debug"
	}
	return strings.TrimSpace(cfg.LogLevel)
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
