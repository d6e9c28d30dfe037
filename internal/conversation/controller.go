package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/diogo/geminivoice/internal/api"
	"github.com/diogo/geminivoice/internal/models"
	"github.com/diogo/geminivoice/internal/speech"
)

// ErrSubmissionInFlight is returned by Submit while a reply is streaming
var ErrSubmissionInFlight = errors.New("a message is already being answered")

// VoiceAdapter is the speech capability the controller drives.
// *speech.Adapter implements it.
type VoiceAdapter interface {
	StartListening()
	StopListening()
	Speak(text string)
	CancelSpeech()
	IsListening() bool
	ConsumeTranscript() (string, bool)
	Subscribe(fn func(speech.Status))
}

// State is the observable state exposed to the presentation layer
type State struct {
	Messages          []models.Message
	IsLoading         bool
	IsSpeakingEnabled bool
	IsListening       bool
}

// LastMessage returns the newest message
func (s State) LastMessage() (models.Message, bool) {
	if len(s.Messages) == 0 {
		return models.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Controller is the single authority over the conversation and the
// submission lifecycle. Observers are called in order, once per change,
// while the controller lock is held; they must not call back into it.
type Controller struct {
	session      api.ChatSessionInterface
	voice        VoiceAdapter
	log          zerolog.Logger
	greeting     string
	errorMessage string
	speechText   func(string) string

	mu        sync.Mutex
	conv      *Conversation
	inFlight  bool
	loading   bool
	speaking  bool
	listening bool
	observers []func(State)

	wg sync.WaitGroup
}

// Option configures a Controller
type Option func(*Controller)

// WithGreeting sets the seeded assistant message; empty disables it
func WithGreeting(greeting string) Option {
	return func(c *Controller) {
		c.greeting = greeting
	}
}

// WithSpeakingEnabled sets the initial state of the voice output toggle
func WithSpeakingEnabled(enabled bool) Option {
	return func(c *Controller) {
		c.speaking = enabled
	}
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// WithSpeechText sets the transform applied to a completed reply before it
// is spoken, e.g. stripping markdown.
func WithSpeechText(fn func(string) string) Option {
	return func(c *Controller) {
		c.speechText = fn
	}
}

// WithErrorMessage sets the reply shown when a stream fails
func WithErrorMessage(msg string) Option {
	return func(c *Controller) {
		if msg != "" {
			c.errorMessage = msg
		}
	}
}

// New creates a Controller for session. It subscribes to voice so finalized
// transcripts are submitted like typed text.
func New(session api.ChatSessionInterface, voice VoiceAdapter, opts ...Option) *Controller {
	c := &Controller{
		session:      session,
		voice:        voice,
		log:          zerolog.Nop(),
		greeting:     models.Greeting,
		errorMessage: models.ErrorReply,
		speaking:     true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.voice == nil {
		c.voice = noVoice{}
	}

	c.conv = NewConversation(c.greeting)
	c.voice.Subscribe(c.HandleVoiceStatus)
	return c
}

// Submit sends text and streams the reply into the conversation. Blank text
// or a missing session is a no-op. A stream failure is reported in the
// conversation and also returned.
func (c *Controller) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" || c.session == nil {
		return nil
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrSubmissionInFlight
	}
	c.inFlight = true
	c.mu.Unlock()

	c.voice.StopListening()
	if heard, ok := c.voice.ConsumeTranscript(); ok {
		// Speech cut short by this submission is not sent on its own.
		c.log.Debug().Int("chars", len(heard)).Msg("discarding transcript")
	}
	c.voice.CancelSpeech()

	c.mu.Lock()
	c.conv.Append(models.Message{Role: models.RoleUser, Content: text})
	c.loading = true
	c.notifyLocked()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.loading = false
		c.inFlight = false
		c.notifyLocked()
		c.mu.Unlock()
	}()

	stream, err := c.session.StreamMessage(ctx, text)
	if err != nil {
		c.fail(err)
		return fmt.Errorf("failed to open reply stream: %w", err)
	}
	defer stream.Close()

	c.mu.Lock()
	placeholder := c.conv.Append(models.Message{Role: models.RoleAssistant, Content: ""})
	c.notifyLocked()
	c.mu.Unlock()

	var acc Accumulator
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.fail(err)
			return fmt.Errorf("reply stream failed after %d increments: %w", acc.Received(), err)
		}

		text := acc.Append(chunk.Text)
		c.mu.Lock()
		if err := c.conv.Commit(placeholder, text); err != nil {
			c.log.Error().Err(err).Msg("lost placeholder")
		}
		c.notifyLocked()
		c.mu.Unlock()
	}

	c.log.Debug().Int("increments", acc.Received()).Int("chars", len(acc.Text())).Msg("reply complete")

	c.mu.Lock()
	speak := c.speaking
	c.mu.Unlock()
	if speak {
		reply := acc.Text()
		if c.speechText != nil {
			reply = c.speechText(reply)
		}
		c.voice.Speak(reply)
	}
	return nil
}

// fail records a transport failure: an empty last message is replaced by
// the error reply, anything else keeps its content and the reply follows.
// An empty reply that completed normally looks the same as no reply.
func (c *Controller) fail(err error) {
	c.log.Error().Err(err).Msg("error sending message")

	c.mu.Lock()
	defer c.mu.Unlock()

	reply := models.Message{Role: models.RoleAssistant, Content: c.errorMessage}
	if last, ok := c.conv.Last(); ok && last.Content == "" {
		_ = c.conv.Replace(c.conv.Len()-1, reply)
	} else {
		c.conv.Append(reply)
	}
	c.notifyLocked()
}

// ToggleVoiceOutput flips voice output. Turning it off cancels speech
// before the new state is published.
func (c *Controller) ToggleVoiceOutput() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.speaking {
		c.voice.CancelSpeech()
	}
	c.speaking = !c.speaking
	c.notifyLocked()
}

// ToggleVoiceInput stops an active listening session or starts a new one
func (c *Controller) ToggleVoiceInput() {
	if c.voice.IsListening() {
		c.voice.StopListening()
		return
	}
	c.voice.StartListening()
}

// HandleVoiceStatus mirrors the listening flag and submits a finalized
// transcript. The transcript is consumed atomically, so it is submitted
// once however many statuses arrive.
func (c *Controller) HandleVoiceStatus(status speech.Status) {
	c.mu.Lock()
	if c.listening != status.Listening {
		c.listening = status.Listening
		c.notifyLocked()
	}
	c.mu.Unlock()

	if status.Listening {
		return
	}
	text, ok := c.voice.ConsumeTranscript()
	if !ok {
		return
	}

	c.log.Debug().Int("chars", len(text)).Msg("submitting transcript")
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Submit(context.Background(), text); errors.Is(err, ErrSubmissionInFlight) {
			c.log.Warn().Msg("dropped transcript while a reply is streaming")
		}
	}()
}

// Subscribe registers fn for every state change
func (c *Controller) Subscribe(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// State returns a snapshot of the observable state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// LastResponse returns the newest assistant message
func (c *Controller) LastResponse() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.conv.messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsAssistant() {
			return msgs[i].Content
		}
	}
	return ""
}

// Wait blocks until voice-triggered submissions have finished
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) snapshotLocked() State {
	return State{
		Messages:          c.conv.Messages(),
		IsLoading:         c.loading,
		IsSpeakingEnabled: c.speaking,
		IsListening:       c.listening,
	}
}

// notifyLocked MUST be called with c.mu held
func (c *Controller) notifyLocked() {
	if len(c.observers) == 0 {
		return
	}
	state := c.snapshotLocked()
	for _, fn := range c.observers {
		fn(state)
	}
}

// noVoice stands in when no adapter is given
type noVoice struct{}

func (noVoice) StartListening()                   {}
func (noVoice) StopListening()                    {}
func (noVoice) Speak(string)                      {}
func (noVoice) CancelSpeech()                     {}
func (noVoice) IsListening() bool                 { return false }
func (noVoice) ConsumeTranscript() (string, bool) { return "", false }
func (noVoice) Subscribe(func(speech.Status))     {}
