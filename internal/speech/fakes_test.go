package speech

import (
	"context"
	"sync"
)

// fakeSession is a recognition session whose events the test drives
type fakeSession struct {
	mu      sync.Mutex
	emit    func(RecognitionEvent)
	stopped bool
	onStop  func() // runs inside Stop, like a recognizer flushing
}

func (s *fakeSession) Stop() error {
	s.mu.Lock()
	s.stopped = true
	onStop := s.onStop
	s.onStop = nil
	s.mu.Unlock()

	if onStop != nil {
		onStop()
	}
	return nil
}

func (s *fakeSession) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *fakeSession) Emit(ev RecognitionEvent) {
	s.emit(ev)
}

// fakeRecognizer hands out fakeSessions and records the call order
type fakeRecognizer struct {
	mu       sync.Mutex
	sessions []*fakeSession
	opts     []RecognitionOptions
	startErr error
	log      *callLog
}

func (r *fakeRecognizer) Name() string { return "fake" }

func (r *fakeRecognizer) Start(ctx context.Context, opts RecognitionOptions, emit func(RecognitionEvent)) (RecognitionSession, error) {
	r.log.add("recognizer.start")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = append(r.opts, opts)
	if r.startErr != nil {
		return nil, r.startErr
	}
	s := &fakeSession{emit: emit}
	r.sessions = append(r.sessions, s)
	return s, nil
}

func (r *fakeRecognizer) Session(i int) *fakeSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[i]
}

// fakeSynth records utterances and cancellations
type fakeSynth struct {
	mu       sync.Mutex
	speaking bool
	spoken   []string
	voices   []Voice
	cancels  int
	log      *callLog
}

func (s *fakeSynth) Name() string { return "fake" }

func (s *fakeSynth) Speak(text string, voice Voice) error {
	s.log.add("synth.speak")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = true
	s.spoken = append(s.spoken, text)
	s.voices = append(s.voices, voice)
	return nil
}

func (s *fakeSynth) Cancel() error {
	s.log.add("synth.cancel")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = false
	s.cancels++
	return nil
}

func (s *fakeSynth) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// callLog records calls across fakes in order
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// statusRecorder collects dispatched statuses
type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *statusRecorder) record(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *statusRecorder) Phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	phases := make([]Phase, len(r.statuses))
	for i, s := range r.statuses {
		phases[i] = s.Phase
	}
	return phases
}

func (r *statusRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses)
}
