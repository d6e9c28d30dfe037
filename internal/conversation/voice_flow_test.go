package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogo/geminivoice/internal/speech"
)

type scriptedRecognizer struct {
	mu    sync.Mutex
	emits []func(speech.RecognitionEvent)
}

func (r *scriptedRecognizer) Name() string { return "scripted" }

func (r *scriptedRecognizer) Start(ctx context.Context, opts speech.RecognitionOptions, emit func(speech.RecognitionEvent)) (speech.RecognitionSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emits = append(r.emits, emit)
	return stopFunc(func() error { return nil }), nil
}

func (r *scriptedRecognizer) emit(i int, ev speech.RecognitionEvent) {
	r.mu.Lock()
	fn := r.emits[i]
	r.mu.Unlock()
	fn(ev)
}

type stopFunc func() error

func (f stopFunc) Stop() error { return f() }

type quietSynth struct {
	mu       sync.Mutex
	speaking bool
	spoken   []string
}

func (s *quietSynth) Name() string { return "quiet" }

func (s *quietSynth) Speak(text string, v speech.Voice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = true
	s.spoken = append(s.spoken, text)
	return nil
}

func (s *quietSynth) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = false
	return nil
}

func (s *quietSynth) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

func (s *quietSynth) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func TestVoiceFlow_WithSpeechAdapter(t *testing.T) {
	rec := &scriptedRecognizer{}
	synth := &quietSynth{}
	adapter := speech.NewAdapter(rec, synth)
	defer adapter.Close()

	log := &callLog{}
	session := &fakeSession{log: log, stream: &fakeStream{steps: []step{{text: "Sunny"}, {text: " today."}}}}
	ctrl := New(session, adapter)

	// Speech in progress is cancelled when listening starts
	synth.speaking = true
	ctrl.ToggleVoiceInput()
	assert.False(t, synth.Speaking())
	require.Eventually(t, func() bool { return ctrl.State().IsListening }, time.Second, time.Millisecond)

	rec.emit(0, speech.RecognitionEvent{Kind: speech.EventResult, Transcript: "how is the weather"})
	rec.emit(0, speech.RecognitionEvent{Kind: speech.EventEnd})

	require.Eventually(t, func() bool { return len(session.Texts()) == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(synth.Spoken()) == 1 }, time.Second, time.Millisecond)
	ctrl.Wait()

	assert.Equal(t, []string{"how is the weather"}, session.Texts())
	assert.Equal(t, []string{"Sunny today."}, synth.Spoken())

	state := ctrl.State()
	assert.False(t, state.IsListening)
	assert.False(t, state.IsLoading)
	assert.Equal(t, "Sunny today.", ctrl.LastResponse())
}

func TestVoiceFlow_ManualStopSubmitsHeardSpeech(t *testing.T) {
	rec := &scriptedRecognizer{}
	adapter := speech.NewAdapter(rec, nil)
	defer adapter.Close()

	log := &callLog{}
	session := &fakeSession{log: log, stream: &fakeStream{steps: []step{{text: "Rain later."}}}}
	ctrl := New(session, adapter)

	ctrl.ToggleVoiceInput()
	rec.emit(0, speech.RecognitionEvent{Kind: speech.EventResult, Transcript: "what is the weather"})
	ctrl.ToggleVoiceInput()

	// The session is over; a late end changes nothing
	rec.emit(0, speech.RecognitionEvent{Kind: speech.EventEnd})

	require.Eventually(t, func() bool { return len(session.Texts()) == 1 }, time.Second, time.Millisecond)
	ctrl.Wait()

	assert.Equal(t, []string{"what is the weather"}, session.Texts())
	assert.False(t, ctrl.State().IsListening)
	assert.Equal(t, "Rain later.", ctrl.LastResponse())
}

func TestVoiceFlow_ManualStopWithoutSpeechSubmitsNothing(t *testing.T) {
	rec := &scriptedRecognizer{}
	adapter := speech.NewAdapter(rec, nil)
	defer adapter.Close()

	log := &callLog{}
	session := &fakeSession{log: log, stream: &fakeStream{}}
	ctrl := New(session, adapter)

	ctrl.ToggleVoiceInput()
	require.Eventually(t, func() bool { return ctrl.State().IsListening }, time.Second, time.Millisecond)
	ctrl.ToggleVoiceInput()

	require.Eventually(t, func() bool { return !ctrl.State().IsListening }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	ctrl.Wait()

	assert.Empty(t, session.Texts())
}

func TestVoiceFlow_TranscriptSurvivesQuickRestart(t *testing.T) {
	rec := &scriptedRecognizer{}
	adapter := speech.NewAdapter(rec, nil)
	defer adapter.Close()

	// Holds delivery of the finalized status until the next session started
	release := make(chan struct{})
	adapter.Subscribe(func(s speech.Status) {
		if s.Phase == speech.PhaseFinalized {
			<-release
		}
	})

	log := &callLog{}
	session := &fakeSession{log: log, stream: &fakeStream{steps: []step{{text: "Noon."}}}}
	ctrl := New(session, adapter)

	ctrl.ToggleVoiceInput()
	rec.emit(0, speech.RecognitionEvent{Kind: speech.EventResult, Transcript: "what time is it"})
	rec.emit(0, speech.RecognitionEvent{Kind: speech.EventEnd})

	ctrl.ToggleVoiceInput()
	require.True(t, adapter.IsListening())
	close(release)

	require.Eventually(t, func() bool { return len(session.Texts()) == 1 }, time.Second, time.Millisecond)
	ctrl.Wait()

	assert.Equal(t, []string{"what time is it"}, session.Texts())
}
