// Package conversation owns the chat transcript and the submission
// lifecycle: streaming replies into the message list, the fallback on
// failure, and the coordination with voice input and output.
package conversation

import (
	"fmt"

	"github.com/diogo/geminivoice/internal/models"
)

// Conversation is the ordered message list of one session. It is not safe
// for concurrent use; the Controller serializes access.
type Conversation struct {
	messages []models.Message
}

// NewConversation seeds the list with an assistant greeting, if any
func NewConversation(greeting string) *Conversation {
	c := &Conversation{}
	if greeting != "" {
		c.Append(models.Message{Role: models.RoleAssistant, Content: greeting})
	}
	return c
}

// Append adds m and returns its index
func (c *Conversation) Append(m models.Message) int {
	c.messages = append(c.messages, m)
	return len(c.messages) - 1
}

// Commit overwrites the content of the message at index
func (c *Conversation) Commit(index int, content string) error {
	if index < 0 || index >= len(c.messages) {
		return fmt.Errorf("commit: index %d out of range [0,%d)", index, len(c.messages))
	}
	c.messages[index].Content = content
	return nil
}

// Replace swaps the message at index for m
func (c *Conversation) Replace(index int, m models.Message) error {
	if index < 0 || index >= len(c.messages) {
		return fmt.Errorf("replace: index %d out of range [0,%d)", index, len(c.messages))
	}
	c.messages[index] = m
	return nil
}

// Last returns the newest message
func (c *Conversation) Last() (models.Message, bool) {
	if len(c.messages) == 0 {
		return models.Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Len returns the number of messages
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Messages returns a copy of the list
func (c *Conversation) Messages() []models.Message {
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}
