package commands

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/diogo/geminivoice/internal/api"
	"github.com/diogo/geminivoice/internal/config"
	"github.com/diogo/geminivoice/internal/models"
	"github.com/diogo/geminivoice/internal/render"
	"github.com/diogo/geminivoice/internal/speech"
	"github.com/diogo/geminivoice/internal/tui"
)

// fakeStream replays scripted chunks, then err (io.EOF when nil)
type fakeStream struct {
	chunks []string
	err    error
	pos    int
}

func (s *fakeStream) Recv() (models.Chunk, error) {
	if s.pos < len(s.chunks) {
		s.pos++
		return models.Chunk{Text: s.chunks[s.pos-1]}, nil
	}
	if s.err != nil {
		return models.Chunk{}, s.err
	}
	return models.Chunk{}, io.EOF
}

func (s *fakeStream) Close() error { return nil }

type fakeSession struct {
	mu        sync.Mutex
	chunks    []string
	streamErr error
	openErr   error
	prompts   []string
}

func (s *fakeSession) StreamMessage(ctx context.Context, text string) (api.ResponseStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, text)
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &fakeStream{chunks: s.chunks, err: s.streamErr}, nil
}

func (s *fakeSession) GetModel() models.Model { return models.DefaultModel }

func (s *fakeSession) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

type fakeVoice struct {
	mu     sync.Mutex
	spoken []string
	closed bool
}

func (v *fakeVoice) StartListening()                   {}
func (v *fakeVoice) StopListening()                    {}
func (v *fakeVoice) CancelSpeech()                     {}
func (v *fakeVoice) IsListening() bool                 { return false }
func (v *fakeVoice) ConsumeTranscript() (string, bool) { return "", false }
func (v *fakeVoice) Subscribe(func(speech.Status))     {}
func (v *fakeVoice) CanListen() bool                   { return false }
func (v *fakeVoice) CanSpeak() bool                    { return true }

func (v *fakeVoice) Speak(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.spoken = append(v.spoken, text)
}

func (v *fakeVoice) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
}

func (v *fakeVoice) Spoken() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.spoken...)
}

// fakeSynth finishes speaking immediately
type fakeSynth struct {
	mu     sync.Mutex
	spoken []string
	voices []speech.Voice
}

func (s *fakeSynth) Name() string { return "fake-tts" }

func (s *fakeSynth) Speak(text string, voice speech.Voice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	s.voices = append(s.voices, voice)
	return nil
}

func (s *fakeSynth) Cancel() error  { return nil }
func (s *fakeSynth) Speaking() bool { return false }

type fakeRecognizer struct{}

func (fakeRecognizer) Name() string { return "fake-stt" }

func (fakeRecognizer) Start(ctx context.Context, opts speech.RecognitionOptions, emit func(speech.RecognitionEvent)) (speech.RecognitionSession, error) {
	return nil, nil
}

type fakeTUI struct {
	chatCalls   int
	modelName   string
	opts        render.Options
	script      func(ctx context.Context, ctrl tui.Controller)
	chatErr     error
	configCalls int
	configPath  string
}

func (f *fakeTUI) RunChat(ctx context.Context, ctrl tui.Controller, modelName string, opts render.Options) error {
	f.chatCalls++
	f.modelName = modelName
	f.opts = opts
	if f.script != nil {
		f.script(ctx, ctrl)
	}
	return f.chatErr
}

func (f *fakeTUI) RunConfig(cfg config.Config, configPath string) error {
	f.configCalls++
	f.configPath = configPath
	return nil
}

// testEnv swaps the package dependencies for fakes rooted in a temp HOME
type testEnv struct {
	configPath   string
	session      *fakeSession
	voice        *fakeVoice
	synth        *fakeSynth
	tui          *fakeTUI
	synthErr     error
	recognizeErr error
	copyErr      error
	copied       []string
	instructions []string
	models       []models.Model
	stdin        string
	piped        bool
	width        int

	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GLAMOUR_STYLE", "")

	env := &testEnv{
		configPath: filepath.Join(home, ".geminivoice", "config.json"),
		session:    &fakeSession{chunks: []string{"Hello", " world"}},
		voice:      &fakeVoice{},
		synth:      &fakeSynth{},
		tui:        &fakeTUI{},
	}

	old := deps
	deps = &Dependencies{
		LoadConfig: func() (config.Config, error) { return config.LoadConfigFrom(env.configPath) },
		ConfigPath: func() (string, error) { return env.configPath, nil },
		OpenSession: func(cfg config.Config, model models.Model, instruction string, log zerolog.Logger) (api.ChatSessionInterface, func(), error) {
			env.models = append(env.models, model)
			env.instructions = append(env.instructions, instruction)
			return env.session, func() {}, nil
		},
		NewVoice: func(cfg config.Config, log zerolog.Logger) VoiceAdapter { return env.voice },
		DetectSynthesizer: func(name string) (speech.Synthesizer, error) {
			if env.synthErr != nil {
				return nil, env.synthErr
			}
			return env.synth, nil
		},
		DetectRecognizer: func(cfg config.SpeechConfig, apiKey string, log zerolog.Logger) (speech.Recognizer, error) {
			if env.recognizeErr != nil {
				return nil, env.recognizeErr
			}
			return fakeRecognizer{}, nil
		},
		ChatLogger: func(cfg config.Config, level string) (zerolog.Logger, func()) { return zerolog.Nop(), func() {} },
		CopyText: func(text string) error {
			if env.copyErr != nil {
				return env.copyErr
			}
			env.copied = append(env.copied, text)
			return nil
		},
		TUI:           env.tui,
		Stdin:         strings.NewReader(""),
		StdinPiped:    func() bool { return env.piped },
		TerminalWidth: func() int { return env.width },
	}
	t.Cleanup(func() { deps = old })

	resetFlags()
	t.Cleanup(resetFlags)
	return env
}

// saveConfig writes the defaults changed by mutate to the config file
func (e *testEnv) saveConfig(t *testing.T, mutate func(*config.Config)) {
	t.Helper()
	cfg := config.DefaultConfig()
	mutate(&cfg)
	if err := config.SaveConfigTo(e.configPath, cfg); err != nil {
		t.Fatal(err)
	}
}

// run executes the root command with args and returns its error
func (e *testEnv) run(args ...string) error {
	if args == nil {
		args = []string{}
	}
	deps.Stdin = strings.NewReader(e.stdin)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&e.stdout)
	rootCmd.SetErr(&e.stderr)
	rootCmd.SetIn(strings.NewReader(e.stdin))
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	}()
	return rootCmd.ExecuteContext(context.Background())
}

func resetFlags() {
	modelFlag, personaFlag, fileFlag = "", "", ""
	noSpeakFlag, verboseFlag = false, false
	askSpeakFlag, askOutputFlag, askFileFlag = false, "", ""
	voicesTestFlag = false
	personaDescriptionFlag, personaInstructionFlag = "", ""
	_ = rootCmd.Flags().Set("version", "false")
}
