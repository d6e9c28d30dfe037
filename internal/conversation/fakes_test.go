package conversation

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/diogo/geminivoice/internal/api"
	"github.com/diogo/geminivoice/internal/models"
	"github.com/diogo/geminivoice/internal/speech"
)

// callLog records calls across fakes and observers in order
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) Count(call string) int {
	n := 0
	for _, c := range l.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// step is one scripted Recv result
type step struct {
	text string
	err  error
}

type fakeStream struct {
	steps  []step
	gate   chan struct{} // when set, each Recv waits for a token
	pos    int
	closed bool
}

func (s *fakeStream) Recv() (models.Chunk, error) {
	if s.gate != nil {
		<-s.gate
	}
	if s.pos >= len(s.steps) {
		return models.Chunk{}, io.EOF
	}
	st := s.steps[s.pos]
	s.pos++
	if st.err != nil {
		return models.Chunk{}, st.err
	}
	return models.Chunk{Text: st.text}, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeSession struct {
	log     *callLog
	stream  *fakeStream
	openErr error

	mu    sync.Mutex
	texts []string
}

func (s *fakeSession) StreamMessage(ctx context.Context, text string) (api.ResponseStream, error) {
	s.log.add("session.open")
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.stream, nil
}

func (s *fakeSession) GetModel() models.Model { return models.DefaultModel }

func (s *fakeSession) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// fakeVoice is a VoiceAdapter driven by the test
type fakeVoice struct {
	log *callLog

	mu         sync.Mutex
	listening  bool
	transcript string
	spoken     []string
	subs       []func(speech.Status)
}

func (v *fakeVoice) StartListening() {
	v.log.add("voice.start")
	v.mu.Lock()
	v.listening = true
	v.transcript = ""
	v.mu.Unlock()
}

func (v *fakeVoice) StopListening() {
	v.log.add("voice.stop")
	v.mu.Lock()
	v.listening = false
	v.mu.Unlock()
}

func (v *fakeVoice) Speak(text string) {
	v.log.add("voice.speak")
	v.mu.Lock()
	defer v.mu.Unlock()
	v.spoken = append(v.spoken, text)
}

func (v *fakeVoice) CancelSpeech() {
	v.log.add("voice.cancel")
}

func (v *fakeVoice) IsListening() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.listening
}

func (v *fakeVoice) ConsumeTranscript() (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.listening || v.transcript == "" {
		return "", false
	}
	t := v.transcript
	v.transcript = ""
	return t, true
}

func (v *fakeVoice) Subscribe(fn func(speech.Status)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.subs = append(v.subs, fn)
}

func (v *fakeVoice) Spoken() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.spoken...)
}

// publish delivers status to subscribers
func (v *fakeVoice) publish(status speech.Status) {
	v.mu.Lock()
	subs := append([]func(speech.Status){}, v.subs...)
	v.mu.Unlock()
	for _, fn := range subs {
		fn(status)
	}
}

// finalize ends the listening session with transcript
func (v *fakeVoice) finalize(transcript string) speech.Status {
	v.mu.Lock()
	v.listening = false
	v.transcript = transcript
	v.mu.Unlock()
	return speech.Status{Phase: speech.PhaseFinalized, Transcript: transcript}
}

// stateRecorder keeps every published state
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}
