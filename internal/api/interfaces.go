package api

import (
	"context"

	"github.com/diogo/geminivoice/internal/models"
)

// ResponseStream yields the increments of one streamed reply. Recv returns
// io.EOF once the reply completed normally; any other error ends the stream.
type ResponseStream interface {
	Recv() (models.Chunk, error)
	Close() error
}

// ChatSessionInterface is what the conversation layer needs from a session
type ChatSessionInterface interface {
	StreamMessage(ctx context.Context, text string) (ResponseStream, error)
	GetModel() models.Model
}

// ChatClient opens chat sessions
type ChatClient interface {
	StartChat(systemInstruction string, model ...models.Model) *ChatSession
	GetModel() models.Model
	SetModel(model models.Model)
	IsClosed() bool
	Close()
}

var (
	_ ChatClient           = (*GeminiClient)(nil)
	_ ChatSessionInterface = (*ChatSession)(nil)
	_ ResponseStream       = (*sseStream)(nil)
)
