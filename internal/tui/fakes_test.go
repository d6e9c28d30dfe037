package tui

import (
	"context"
	"sync"

	"github.com/diogo/geminivoice/internal/conversation"
	"github.com/diogo/geminivoice/internal/models"
)

type fakeController struct {
	mu             sync.Mutex
	state          conversation.State
	last           string
	submitErr      error
	submitted      []string
	micToggles     int
	speakerToggles int
	subscribers    []func(conversation.State)
}

func newFakeController() *fakeController {
	return &fakeController{
		state: conversation.State{
			Messages:          []models.Message{{Role: models.RoleAssistant, Content: models.Greeting}},
			IsSpeakingEnabled: true,
		},
		last: models.Greeting,
	}
}

func (f *fakeController) Submit(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, text)
	return f.submitErr
}

func (f *fakeController) ToggleVoiceInput() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.micToggles++
}

func (f *fakeController) ToggleVoiceOutput() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speakerToggles++
}

func (f *fakeController) LastResponse() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeController) State() conversation.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) Subscribe(fn func(conversation.State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers = append(f.subscribers, fn)
}
