package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/geminivoice/internal/errors"
	"github.com/diogo/geminivoice/internal/models"
)

// maxErrorBody caps how much of a failed response is read for diagnostics
const maxErrorBody = 4096

// ChatSession maintains conversation context across messages
type ChatSession struct {
	client            *GeminiClient
	mu                sync.RWMutex // Protects model, systemInstruction, history
	model             models.Model
	systemInstruction string
	history           []models.Content
}

// StreamMessage sends text as the next user turn and returns the streamed
// reply. The turn and the full reply join the history only when the stream
// ends normally.
func (s *ChatSession) StreamMessage(ctx context.Context, text string) (ResponseStream, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}
	if s.client.IsClosed() {
		return nil, apierrors.ErrClientClosed
	}

	// Read current state with read lock
	s.mu.RLock()
	model := s.model
	payload := buildRequest(s.systemInstruction, s.history, text)
	s.mu.RUnlock()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build payload: %w", err)
	}

	endpoint := s.client.streamEndpoint(model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range models.DefaultHeaders() {
		req.Header.Set(key, value)
	}
	req.Header.Set("x-goog-api-key", s.client.apiKey)

	s.client.log.Debug().Str("model", model.Name).Int("history", len(payload.Contents)-1).Msg("opening reply stream")

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return nil, apierrors.NewNetworkErrorWithEndpoint("stream message", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		s.client.log.Warn().Int("status", resp.StatusCode).Str("model", model.Name).Msg("reply stream rejected")
		return nil, statusError(resp.StatusCode, endpoint, errorBody)
	}

	return newSSEStream(resp.Body, endpoint, func(reply string) {
		s.appendTurn(text, reply)
	}), nil
}

// appendTurn records a completed exchange
func (s *ChatSession) appendTurn(userText, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history,
		models.Content{Role: models.ContentRoleUser, Text: userText},
		models.Content{Role: models.ContentRoleModel, Text: reply},
	)
}

// History returns a copy of the turns exchanged so far
func (s *ChatSession) History() []models.Content {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Content, len(s.history))
	copy(result, s.history)
	return result
}

// SystemInstruction returns the instruction sent with every request
func (s *ChatSession) SystemInstruction() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.systemInstruction
}

// GetModel returns the session's model
func (s *ChatSession) GetModel() models.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// SetModel changes the session's model
func (s *ChatSession) SetModel(model models.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

type partPayload struct {
	Text string `json:"text"`
}

type contentPayload struct {
	Role  string        `json:"role,omitempty"`
	Parts []partPayload `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *contentPayload `json:"systemInstruction,omitempty"`
	Contents          []contentPayload `json:"contents"`
}

// buildRequest assembles the request body: instruction, history, new turn
func buildRequest(systemInstruction string, history []models.Content, text string) generateRequest {
	req := generateRequest{
		Contents: make([]contentPayload, 0, len(history)+1),
	}
	if systemInstruction != "" {
		req.SystemInstruction = &contentPayload{Parts: []partPayload{{Text: systemInstruction}}}
	}
	for _, turn := range history {
		req.Contents = append(req.Contents, contentPayload{
			Role:  turn.Role,
			Parts: []partPayload{{Text: turn.Text}},
		})
	}
	req.Contents = append(req.Contents, contentPayload{
		Role:  models.ContentRoleUser,
		Parts: []partPayload{{Text: text}},
	})
	return req
}

// statusError turns a non-200 response into a typed error. The service
// reports {"error": {"code", "message", "status"}}.
func statusError(statusCode int, endpoint string, body []byte) error {
	message := http.StatusText(statusCode)
	status := ""
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		if m := parsed.Get("error.message").String(); m != "" {
			message = m
		}
		status = parsed.Get("error.status").String()
	} else if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		message = trimmed
	}

	err := apierrors.FromStatus(statusCode, endpoint, message)
	if apiErr, ok := err.(*apierrors.APIError); ok {
		apiErr.Status = status
	}
	return err
}
