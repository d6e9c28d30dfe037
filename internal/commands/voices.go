package commands

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/diogo/geminivoice/internal/speech"
	"github.com/diogo/geminivoice/internal/tui"
)

// voiceSample is spoken by voices --test
const voiceSample = "Hello! Voice output is working."

var voicesTestFlag bool

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "Show detected speech capabilities",
	Long: `Report which speech synthesizer and recognizer geminivoice can use in this
environment, given the current configuration.

Voice output needs one of: ` + fmt.Sprint(speech.Drivers()) + `.
Voice input needs ffmpeg and DEEPGRAM_API_KEY.`,
	Args: cobra.NoArgs,
	RunE: runVoices,
}

func init() {
	voicesCmd.Flags().BoolVar(&voicesTestFlag, "test", false, "Speak a short sample with the detected synthesizer")
}

func runVoices(cmd *cobra.Command, args []string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	out := cmd.OutOrStdout()

	synth, synthErr := deps.DetectSynthesizer(cfg.Speech.Synthesizer)
	if synthErr != nil {
		printCapability(out, "Voice output", "", synthErr)
	} else {
		printCapability(out, "Voice output", synth.Name(), nil)
	}

	rec, recErr := deps.DetectRecognizer(cfg.Speech, cfg.DeepgramAPIKey, zerolog.Nop())
	if recErr != nil {
		printCapability(out, "Voice input", "", recErr)
	} else {
		printCapability(out, "Voice input", rec.Name(), nil)
	}
	fmt.Fprintf(out, "  Locale: %s\n", firstNonEmpty(cfg.Speech.Locale, speech.DefaultLocale))

	if voicesTestFlag {
		if synthErr != nil {
			return fmt.Errorf("cannot test voice output: %w", synthErr)
		}
		speakReply(commandContext(cmd), cfg, voiceSample, cmd.ErrOrStderr(), deps.TerminalWidth() > 0)
	}
	return nil
}

func printCapability(w io.Writer, label, name string, err error) {
	if err != nil {
		mark := paint(tui.CurrentTheme().Error, "✗")
		fmt.Fprintf(w, "%s %s: unavailable (%v)\n", mark, label, err)
		return
	}
	mark := paint(tui.CurrentTheme().Secondary, "✓")
	fmt.Fprintf(w, "%s %s: %s\n", mark, label, name)
}
