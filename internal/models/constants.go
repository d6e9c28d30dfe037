// Package models contains data types and constants for the Gemini chat service.
package models

// Endpoints for the Gemini generative language API
const (
	EndpointBase = "https://generativelanguage.googleapis.com/v1beta"

	// MethodStreamGenerate is appended to the model path: {base}/models/{model}:streamGenerateContent
	MethodStreamGenerate = "streamGenerateContent"
)

// Conversation text shown to the user
const (
	// Greeting seeds every new conversation.
	Greeting = "Hello! I'm a dynamic AI chatbot. How can I assist you today?"

	// ErrorReply replaces or follows a reply whose stream failed.
	ErrorReply = "Sorry, I encountered an error. Please try again."

	// DefaultSystemInstruction is sent with every chat session.
	DefaultSystemInstruction = "You are a dynamic and helpful AI assistant. Your responses should be conversational, " +
		"intelligent, and context-aware. Maintain a friendly yet professional tone."
)

// Model identifies a hosted chat model
type Model struct {
	Name        string
	DisplayName string
}

// Available models
var (
	Model25Flash = Model{Name: "gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash"}
	Model25Pro   = Model{Name: "gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro"}
	Model20Flash = Model{Name: "gemini-2.0-flash", DisplayName: "Gemini 2.0 Flash"}

	// DefaultModel is the recommended default
	DefaultModel = Model25Flash
)

// AllModels returns a list of all known models
func AllModels() []Model {
	return []Model{Model25Flash, Model25Pro, Model20Flash}
}

// ModelFromName returns a Model by its name. Unknown names are passed through
// verbatim so newer models work without a release; an empty name yields DefaultModel.
func ModelFromName(name string) Model {
	switch name {
	case "":
		return DefaultModel
	case "flash", Model25Flash.Name:
		return Model25Flash
	case "pro", Model25Pro.Name:
		return Model25Pro
	case Model20Flash.Name:
		return Model20Flash
	default:
		return Model{Name: name, DisplayName: name}
	}
}

// DefaultHeaders returns the default headers for API requests
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type":    "application/json",
		"Accept":          "text/event-stream",
		"Accept-Language": "en-US,en;q=0.9",
		"User-Agent":      "geminivoice/0.1",
	}
}
