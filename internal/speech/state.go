package speech

// Phase is the lifecycle position of a listening session
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseListening
	PhaseFinalized // ended with a transcript waiting to be consumed
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseListening:
		return "listening"
	case PhaseFinalized:
		return "finalized"
	case PhaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// ListenState is the observable state of the listening lifecycle
type ListenState struct {
	Phase      Phase
	Transcript string
	Err        error
}

// Listening reports whether a session is active
func (s ListenState) Listening() bool {
	return s.Phase == PhaseListening
}

// Transition applies a recognition event to s.
//
// A start clears the previous transcript. Results only count while
// listening; the latest one wins. An error drops the transcript so nothing
// is submitted from a failed session. The end event settles the session into
// finalized (a transcript is present) or idle.
func Transition(s ListenState, ev RecognitionEvent) ListenState {
	switch ev.Kind {
	case EventStart:
		return ListenState{Phase: PhaseListening}

	case EventResult:
		if s.Phase != PhaseListening {
			return s
		}
		s.Transcript = ev.Transcript
		return s

	case EventError:
		if s.Phase != PhaseListening {
			return s
		}
		return ListenState{Phase: PhaseErrored, Err: ev.Err}

	case EventEnd:
		if s.Phase != PhaseListening {
			return s
		}
		if s.Transcript != "" {
			return ListenState{Phase: PhaseFinalized, Transcript: s.Transcript}
		}
		return ListenState{Phase: PhaseIdle}
	}
	return s
}
