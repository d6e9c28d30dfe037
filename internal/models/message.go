package models

// Role identifies who authored a Message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message for display
type Message struct {
	Role    Role
	Content string
}

// IsAssistant reports whether the message was authored by the model
func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}
