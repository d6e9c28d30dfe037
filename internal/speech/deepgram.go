package speech

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/geminivoice/internal/errors"
)

// DefaultDeepgramBaseURL is the Deepgram REST root; the listen socket is derived from it
const DefaultDeepgramBaseURL = "https://api.deepgram.com/v1"

// ErrNoSpeech ends a session that heard nothing
var ErrNoSpeech = errors.New("no speech detected")

// audioFrameSize is 100ms of 16 kHz mono s16le
const audioFrameSize = 3200

// DeepgramConfig controls the Deepgram streaming recognizer
type DeepgramConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Audio       AudioConfig
	MaxListen   time.Duration // 0 means no limit
	EndpointMS  int           // silence that finalizes an utterance
	SmartFormat bool

	// FlushTimeout bounds how long Stop waits for the final results
	FlushTimeout time.Duration
}

// DeepgramRecognizer streams microphone audio to Deepgram and reports the
// first finalized utterance.
type DeepgramRecognizer struct {
	cfg    DeepgramConfig
	source AudioSource
	dialer *websocket.Dialer
	log    zerolog.Logger
}

// NewDeepgramRecognizer creates a recognizer reading audio from source
func NewDeepgramRecognizer(cfg DeepgramConfig, source AudioSource, log zerolog.Logger) *DeepgramRecognizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDeepgramBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.EndpointMS <= 0 {
		cfg.EndpointMS = 800
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 1500 * time.Millisecond
	}
	cfg.Audio = cfg.Audio.withDefaults()
	return &DeepgramRecognizer{
		cfg:    cfg,
		source: source,
		dialer: websocket.DefaultDialer,
		log:    log,
	}
}

// Name identifies the recognizer
func (r *DeepgramRecognizer) Name() string { return "deepgram" }

// Start connects to Deepgram, starts capture and begins streaming
func (r *DeepgramRecognizer) Start(ctx context.Context, opts RecognitionOptions, emit func(RecognitionEvent)) (RecognitionSession, error) {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return nil, apierrors.NewCapabilityError("speech recognition", "DEEPGRAM_API_KEY is not configured")
	}

	wsURL, err := buildListenURL(r.cfg, opts)
	if err != nil {
		return nil, err
	}

	var sessCtx context.Context
	var cancel context.CancelFunc
	if r.cfg.MaxListen > 0 {
		sessCtx, cancel = context.WithTimeout(ctx, r.cfg.MaxListen)
	} else {
		sessCtx, cancel = context.WithCancel(ctx)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, _, err := r.dialer.DialContext(sessCtx, wsURL, headers)
	if err != nil {
		cancel()
		return nil, apierrors.NewNetworkErrorWithEndpoint("connect", redactURL(wsURL), err)
	}

	audio, err := r.source.Start(sessCtx, r.cfg.Audio)
	if err != nil {
		cancel()
		_ = conn.Close()
		return nil, err
	}

	s := &deepgramSession{
		conn:         conn,
		audio:        audio,
		emit:         emit,
		cancel:       cancel,
		flushTimeout: r.cfg.FlushTimeout,
		finished:     make(chan struct{}),
		log:          r.log,
	}
	s.wg.Add(2)
	go s.writeLoop()
	go s.readLoop()
	go func() {
		<-sessCtx.Done()
		s.finish(nil)
	}()

	return s, nil
}

type deepgramSession struct {
	conn         *websocket.Conn
	audio        AudioStream
	emit         func(RecognitionEvent)
	cancel       context.CancelFunc
	flushTimeout time.Duration
	log          zerolog.Logger

	mu       sync.Mutex
	parts    []string
	stopping bool

	finishOnce sync.Once
	finished   chan struct{}
	wg         sync.WaitGroup
}

// Stop ends capture and lets Deepgram flush what it heard. The heard text is
// reported before Stop returns; a stopped session that heard nothing reports
// only EventEnd.
func (s *deepgramSession) Stop() error {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	// writeLoop sends CloseStream once capture ends
	if err := s.audio.Stop(); err != nil {
		s.log.Debug().Err(err).Msg("audio capture stop")
	}

	timer := time.NewTimer(s.flushTimeout)
	defer timer.Stop()
	select {
	case <-s.finished:
	case <-timer.C:
		s.log.Debug().Dur("timeout", s.flushTimeout).Msg("recognition flush timed out")
	}

	s.finish(nil)
	s.wg.Wait()
	return nil
}

// finish reports the outcome once and tears the session down. A nil err
// means the stream ended; the heard text decides between result and no-speech.
func (s *deepgramSession) finish(err error) {
	s.finishOnce.Do(func() {
		defer close(s.finished)

		s.mu.Lock()
		stopping := s.stopping
		s.mu.Unlock()

		transcript := s.transcript()
		switch {
		case err != nil && !stopping:
			s.emit(RecognitionEvent{Kind: EventError, Err: err})
		case transcript != "":
			s.emit(RecognitionEvent{Kind: EventResult, Transcript: transcript})
		case !stopping:
			s.emit(RecognitionEvent{Kind: EventError, Err: ErrNoSpeech})
		}
		s.emit(RecognitionEvent{Kind: EventEnd})
		s.teardown()
	})
}

func (s *deepgramSession) teardown() {
	s.cancel()
	if err := s.audio.Stop(); err != nil {
		s.log.Debug().Err(err).Msg("audio capture stop")
	}
	_ = s.conn.Close()
}

func (s *deepgramSession) transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.parts, " ")
}

func (s *deepgramSession) writeLoop() {
	defer s.wg.Done()

	buf := make([]byte, audioFrameSize)
	for {
		n, err := s.audio.Read(buf)
		if n > 0 {
			if werr := s.conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			break
		}
	}

	// Ask Deepgram to flush the final results
	_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
}

func (s *deepgramSession) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.finish(nil)
			} else {
				s.finish(fmt.Errorf("failed to read recognition event: %w", err))
			}
			return
		}

		if !gjson.ValidBytes(payload) {
			continue
		}
		msg := gjson.ParseBytes(payload)

		switch strings.ToLower(msg.Get("type").String()) {
		case "error":
			message := firstNonEmpty(msg.Get("description").String(), msg.Get("message").String(), "deepgram returned an unknown error")
			s.finish(errors.New(message))
			return

		case "utteranceend":
			if s.transcript() != "" {
				s.finish(nil)
				return
			}

		case "results", "":
			text := extractTranscript(msg)
			isFinal := msg.Get("is_final").Bool()
			if text != "" && isFinal {
				s.mu.Lock()
				s.parts = append(s.parts, text)
				s.mu.Unlock()
			}
			if msg.Get("speech_final").Bool() && s.transcript() != "" {
				s.finish(nil)
				return
			}
		}
	}
}

// extractTranscript reads the best alternative of a Results message
func extractTranscript(msg gjson.Result) string {
	if text := strings.TrimSpace(msg.Get("channel.alternatives.0.transcript").String()); text != "" {
		return text
	}
	return strings.TrimSpace(msg.Get("results.channels.0.alternatives.0.transcript").String())
}

func buildListenURL(cfg DeepgramConfig, opts RecognitionOptions) (string, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultDeepgramBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	audio := cfg.Audio.withDefaults()
	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(audio.SampleRate))
	query.Set("channels", strconv.Itoa(audio.Channels))
	query.Set("interim_results", strconv.FormatBool(opts.InterimResults))
	query.Set("smart_format", strconv.FormatBool(cfg.SmartFormat))
	if cfg.EndpointMS > 0 {
		query.Set("endpointing", strconv.Itoa(cfg.EndpointMS))
	}
	if opts.Locale != "" {
		query.Set("language", opts.Locale)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}

// redactURL drops the query for error messages
func redactURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
