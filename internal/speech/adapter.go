package speech

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Status is the listening state delivered to subscribers
type Status struct {
	Listening  bool
	Phase      Phase
	Transcript string
	Err        error
}

// Adapter owns at most one listening session and the speech output. It is
// safe for concurrent use. Subscribers receive status changes in order on a
// single goroutine and may call back into the Adapter.
type Adapter struct {
	recognizer Recognizer
	synth      Synthesizer
	opts       RecognitionOptions
	voice      Voice
	log        zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	session     RecognitionSession
	sessionID   uuid.UUID // uuid.Nil when no session is active
	state       ListenState
	final       string // finalized transcript not yet consumed
	subscribers []func(Status)
	pending     []Status
	closed      bool

	notify    chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// AdapterOption configures an Adapter
type AdapterOption func(*Adapter)

// WithVoice sets the synthesis rate, pitch and locale
func WithVoice(v Voice) AdapterOption {
	return func(a *Adapter) {
		if v.Rate > 0 {
			a.voice.Rate = v.Rate
		}
		if v.Pitch > 0 {
			a.voice.Pitch = v.Pitch
		}
		if v.Locale != "" {
			a.voice.Locale = v.Locale
		}
	}
}

// WithLocale sets the recognition locale
func WithLocale(locale string) AdapterOption {
	return func(a *Adapter) {
		if locale != "" {
			a.opts.Locale = locale
		}
	}
}

// WithAdapterLogger sets the logger
func WithAdapterLogger(log zerolog.Logger) AdapterOption {
	return func(a *Adapter) {
		a.log = log
	}
}

// NewAdapter creates an Adapter. recognizer and synth may be nil when the
// environment does not provide them.
func NewAdapter(recognizer Recognizer, synth Synthesizer, opts ...AdapterOption) *Adapter {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Adapter{
		recognizer: recognizer,
		synth:      synth,
		opts:       DefaultRecognitionOptions(),
		voice:      DefaultVoice(),
		log:        zerolog.Nop(),
		ctx:        ctx,
		cancel:     cancel,
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.wg.Add(1)
	go a.dispatch()
	return a
}

// CanListen reports whether speech recognition is available
func (a *Adapter) CanListen() bool { return a.recognizer != nil }

// CanSpeak reports whether speech synthesis is available
func (a *Adapter) CanSpeak() bool { return a.synth != nil }

// StartListening cancels speech output and any prior session, then starts a
// one-shot recognition session. Without a recognizer it only logs.
func (a *Adapter) StartListening() {
	a.CancelSpeech()

	if a.recognizer == nil {
		a.log.Warn().Str("capability", "speech recognition").Msg("not supported in this environment")
		return
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	prev := a.session
	id := uuid.New()
	a.session = nil
	a.sessionID = id
	a.applyLocked(RecognitionEvent{Kind: EventStart})
	a.mu.Unlock()

	if prev != nil {
		a.stopSession(prev)
	}

	a.log.Debug().Str("session", id.String()).Str("recognizer", a.recognizer.Name()).Msg("listening")
	session, err := a.recognizer.Start(a.ctx, a.opts, a.emitter(id))

	a.mu.Lock()
	if a.sessionID != id {
		// Stopped or replaced while starting, or already ended.
		a.mu.Unlock()
		if session != nil {
			a.stopSession(session)
		}
		return
	}
	if err != nil {
		a.sessionID = uuid.Nil
		a.applyLocked(RecognitionEvent{Kind: EventError, Err: err})
		a.mu.Unlock()
		a.log.Error().Err(err).Str("session", id.String()).Msg("failed to start recognition")
		return
	}
	a.session = session
	a.mu.Unlock()
}

// StopListening ends the active session. Speech the recognizer already
// heard is still delivered, so the session settles into finalized when a
// transcript is present. No-op when nothing is listening.
func (a *Adapter) StopListening() {
	a.stop(true)
}

// stop ends the active session. With keep false, events the session flushes
// while stopping are dropped and the state returns to idle.
func (a *Adapter) stop(keep bool) {
	a.mu.Lock()
	prev, id := a.session, a.sessionID
	if !keep {
		a.session = nil
		a.sessionID = uuid.Nil
		a.final = ""
		if a.state.Phase != PhaseIdle {
			a.state = ListenState{}
			a.publishLocked()
		}
	}
	a.mu.Unlock()

	if id == uuid.Nil && prev == nil {
		return
	}
	if prev != nil {
		a.stopSession(prev)
	}

	a.mu.Lock()
	if a.sessionID == id {
		// The session did not end itself while stopping.
		a.applyLocked(RecognitionEvent{Kind: EventEnd})
		a.session = nil
		a.sessionID = uuid.Nil
	}
	a.mu.Unlock()
	a.log.Debug().Str("session", id.String()).Bool("keep", keep).Msg("listening stopped")
}

// Speak requests synthesis of text. Without a synthesizer it only logs.
func (a *Adapter) Speak(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if a.synth == nil {
		a.log.Warn().Str("capability", "speech synthesis").Msg("not supported in this environment")
		return
	}
	if err := a.synth.Speak(text, a.voice); err != nil {
		a.log.Error().Err(err).Str("synthesizer", a.synth.Name()).Msg("speech synthesis failed")
	}
}

// CancelSpeech stops any utterance in progress
func (a *Adapter) CancelSpeech() {
	if a.synth == nil || !a.synth.Speaking() {
		return
	}
	if err := a.synth.Cancel(); err != nil {
		a.log.Error().Err(err).Msg("failed to cancel speech")
	}
}

// Speaking reports whether an utterance is in progress
func (a *Adapter) Speaking() bool {
	return a.synth != nil && a.synth.Speaking()
}

// IsListening reports whether a session is active
func (a *Adapter) IsListening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Listening()
}

// Transcript returns the text heard by the current or last session
func (a *Adapter) Transcript() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Transcript
}

// State returns the current listening state
func (a *Adapter) State() ListenState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// ConsumeTranscript returns the finalized transcript and clears it, so a
// transcript is handed out at most once. A transcript finalized before a new
// session started is still handed out.
func (a *Adapter) ConsumeTranscript() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.final == "" {
		return "", false
	}
	text := a.final
	a.final = ""
	if a.state.Phase == PhaseFinalized {
		a.state = ListenState{}
	}
	return text, true
}

// Subscribe registers fn for status changes
func (a *Adapter) Subscribe(fn func(Status)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subscribers = append(a.subscribers, fn)
}

// Close stops listening and speech, then waits for pending notifications.
// Speech heard by the active session is discarded.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {
		a.stop(false)
		a.CancelSpeech()

		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()

		a.cancel()
		close(a.done)
		a.wg.Wait()
	})
}

// emitter returns the callback for session id; events of any other session
// are dropped.
func (a *Adapter) emitter(id uuid.UUID) func(RecognitionEvent) {
	return func(ev RecognitionEvent) {
		a.mu.Lock()
		defer a.mu.Unlock()

		if a.sessionID != id {
			a.log.Debug().Str("session", id.String()).Stringer("event", ev.Kind).Msg("dropping stale recognition event")
			return
		}
		if ev.Kind == EventError {
			a.log.Warn().Err(ev.Err).Str("session", id.String()).Msg("recognition error")
		}

		a.applyLocked(ev)
		if !a.state.Listening() {
			a.session = nil
			a.sessionID = uuid.Nil
		}
	}
}

// applyLocked runs the transition and publishes real changes.
// MUST be called with a.mu held.
func (a *Adapter) applyLocked(ev RecognitionEvent) {
	next := Transition(a.state, ev)
	if next.Phase == a.state.Phase && next.Transcript == a.state.Transcript {
		return
	}
	if next.Phase == PhaseFinalized {
		a.final = next.Transcript
	}
	a.state = next
	a.publishLocked()
}

// publishLocked queues the current state for subscribers.
// MUST be called with a.mu held.
func (a *Adapter) publishLocked() {
	a.pending = append(a.pending, Status{
		Listening:  a.state.Listening(),
		Phase:      a.state.Phase,
		Transcript: a.state.Transcript,
		Err:        a.state.Err,
	})
	select {
	case a.notify <- struct{}{}:
	default:
	}
}

func (a *Adapter) dispatch() {
	defer a.wg.Done()
	for {
		select {
		case <-a.notify:
			a.flush()
		case <-a.done:
			a.flush()
			return
		}
	}
}

func (a *Adapter) flush() {
	for {
		a.mu.Lock()
		batch := a.pending
		a.pending = nil
		subs := append([]func(Status){}, a.subscribers...)
		a.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, status := range batch {
			for _, fn := range subs {
				fn(status)
			}
		}
	}
}

func (a *Adapter) stopSession(s RecognitionSession) {
	if err := s.Stop(); err != nil {
		a.log.Debug().Err(err).Msg("recognition session stop")
	}
}
