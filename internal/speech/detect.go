package speech

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/diogo/geminivoice/internal/config"
	apierrors "github.com/diogo/geminivoice/internal/errors"
)

// DetectRecognizer builds the recognizer selected by cfg.Recognizer. It
// returns a nil Recognizer and a CapabilityError when the environment lacks
// the API key or the capture command.
func DetectRecognizer(cfg config.SpeechConfig, apiKey string, log zerolog.Logger) (Recognizer, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Recognizer))
	switch name {
	case "none", "off":
		return nil, apierrors.NewCapabilityError("speech recognition", "disabled in config")
	case "", "auto", "deepgram":
	default:
		return nil, fmt.Errorf("unknown recognizer %q", cfg.Recognizer)
	}

	if strings.TrimSpace(apiKey) == "" {
		return nil, apierrors.NewCapabilityError("speech recognition", "DEEPGRAM_API_KEY is not set")
	}

	command := cfg.CaptureCommand
	if command == "" {
		command = "ffmpeg"
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return nil, apierrors.NewCapabilityError("speech recognition", command+" not found in PATH")
	}

	return NewDeepgramRecognizer(DeepgramConfig{
		APIKey:      apiKey,
		BaseURL:     cfg.DeepgramBaseURL,
		Model:       cfg.DeepgramModel,
		MaxListen:   time.Duration(cfg.MaxListenSeconds) * time.Second,
		SmartFormat: true,
		Audio: AudioConfig{
			InputFormat: cfg.InputFormat,
			InputDevice: cfg.InputDevice,
		},
	}, NewFFmpegCapture(path), log), nil
}

// NewAdapterFromConfig detects both capabilities and wraps them in an
// Adapter. Missing capabilities are logged, not fatal.
func NewAdapterFromConfig(cfg config.Config, log zerolog.Logger) *Adapter {
	rec, err := DetectRecognizer(cfg.Speech, cfg.DeepgramAPIKey, log)
	if err != nil {
		log.Info().Err(err).Msg("voice input unavailable")
	}
	synth, err := DetectSynthesizer(cfg.Speech.Synthesizer)
	if err != nil {
		log.Info().Err(err).Msg("voice output unavailable")
	}

	return NewAdapter(rec, synth,
		WithLocale(cfg.Speech.Locale),
		WithVoice(Voice{Rate: cfg.Speech.Rate, Pitch: cfg.Speech.Pitch, Locale: cfg.Speech.Locale}),
		WithAdapterLogger(log),
	)
}
