package models

// Content is one turn of the history sent to the chat service.
// Role is "user" or "model" as the service expects.
type Content struct {
	Role string
	Text string
}

// Transport roles
const (
	ContentRoleUser  = "user"
	ContentRoleModel = "model"
)

// Chunk is one increment of a streamed reply
type Chunk struct {
	Text         string
	FinishReason string // empty until the final chunk
	TotalTokens  int    // usage reported with the chunk, if any
}

// IsFinal reports whether the service marked this chunk as the last one
func (c Chunk) IsFinal() bool {
	return c.FinishReason != ""
}
