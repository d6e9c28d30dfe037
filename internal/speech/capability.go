// Package speech adapts the platform's speech recognition and synthesis
// capabilities behind a narrow interface. Either capability may be missing;
// the Adapter treats absence as a logged no-op.
package speech

import (
	"context"
	"fmt"
)

// DefaultLocale is the fixed recognition and synthesis locale
const DefaultLocale = "en-US"

// EventKind identifies a recognition callback
type EventKind int

const (
	EventStart EventKind = iota
	EventResult
	EventError
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventResult:
		return "result"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// RecognitionEvent is one notification from a recognition session.
// Transcript is set for EventResult, Err for EventError.
type RecognitionEvent struct {
	Kind       EventKind
	Transcript string
	Err        error
}

// RecognitionOptions configures one listening session
type RecognitionOptions struct {
	Locale         string
	Continuous     bool
	InterimResults bool
}

// DefaultRecognitionOptions is a one-shot, final-results-only session
func DefaultRecognitionOptions() RecognitionOptions {
	return RecognitionOptions{Locale: DefaultLocale}
}

// RecognitionSession is a running listening session
type RecognitionSession interface {
	// Stop ends the session. Speech already heard may be reported before Stop
	// returns; nothing is reported afterwards.
	Stop() error
}

// Recognizer turns speech into text. Start returns once the session is
// running; results arrive through emit, ending with EventEnd.
type Recognizer interface {
	Name() string
	Start(ctx context.Context, opts RecognitionOptions, emit func(RecognitionEvent)) (RecognitionSession, error)
}

// Voice holds the synthesis parameters. Rate and Pitch are relative, 1 is normal.
type Voice struct {
	Rate   float64
	Pitch  float64
	Locale string
}

// DefaultVoice speaks at normal rate and pitch in the default locale
func DefaultVoice() Voice {
	return Voice{Rate: 1, Pitch: 1, Locale: DefaultLocale}
}

// Synthesizer reads text aloud. Speak returns as soon as speech started;
// there is no completion callback.
type Synthesizer interface {
	Name() string
	Speak(text string, voice Voice) error
	Cancel() error
	Speaking() bool
}
