// Package api is the transport to the hosted Gemini chat service. It opens
// chat sessions and streams replies over server-sent events.
package api

import (
	"fmt"
	"strings"
	"sync"

	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"github.com/rs/zerolog"

	apierrors "github.com/diogo/geminivoice/internal/errors"
	"github.com/diogo/geminivoice/internal/models"
)

// DefaultTimeoutSeconds bounds a whole streamed reply, not a single chunk.
const DefaultTimeoutSeconds = 300

// GeminiClient is the main client for the Gemini chat service
type GeminiClient struct {
	httpClient     tls_client.HttpClient
	apiKey         string
	baseURL        string
	model          models.Model
	timeoutSeconds int
	log            zerolog.Logger
	mu             sync.RWMutex
	closed         bool
}

// ClientOption is a function that configures the client
type ClientOption func(*GeminiClient)

// WithModel sets the default model for the client
func WithModel(model models.Model) ClientOption {
	return func(c *GeminiClient) {
		c.model = model
	}
}

// WithBaseURL points the client at another API root (tests, proxies)
func WithBaseURL(baseURL string) ClientOption {
	return func(c *GeminiClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the TLS client, mainly for tests
func WithHTTPClient(httpClient tls_client.HttpClient) ClientOption {
	return func(c *GeminiClient) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the request timeout in seconds
func WithTimeout(seconds int) ClientOption {
	return func(c *GeminiClient) {
		if seconds > 0 {
			c.timeoutSeconds = seconds
		}
	}
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *GeminiClient) {
		c.log = log
	}
}

// NewClient creates a new GeminiClient authenticated with apiKey
func NewClient(apiKey string, opts ...ClientOption) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, apierrors.ErrNoAPIKey
	}

	client := &GeminiClient{
		apiKey:         apiKey,
		baseURL:        models.EndpointBase,
		model:          models.DefaultModel,
		timeoutSeconds: DefaultTimeoutSeconds,
		log:            zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		// Chrome profile for the TLS fingerprint, same as the browser would send
		options := []tls_client.HttpClientOption{
			tls_client.WithTimeoutSeconds(client.timeoutSeconds),
			tls_client.WithClientProfile(profiles.Chrome_120),
			tls_client.WithNotFollowRedirects(),
		}

		httpClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		client.httpClient = httpClient
	}

	return client, nil
}

// Close releases idle connections. Sessions fail to stream afterwards.
func (c *GeminiClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.httpClient.CloseIdleConnections()
}

// IsClosed returns whether the client is closed
func (c *GeminiClient) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// GetModel returns the default model
func (c *GeminiClient) GetModel() models.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// SetModel sets the default model
func (c *GeminiClient) SetModel(model models.Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

// GetHTTPClient returns the underlying HTTP client
func (c *GeminiClient) GetHTTPClient() tls_client.HttpClient {
	return c.httpClient
}

// StartChat opens a chat session with the given system instruction. The
// session uses the client's model unless one is passed.
func (c *GeminiClient) StartChat(systemInstruction string, model ...models.Model) *ChatSession {
	m := c.GetModel()
	if len(model) > 0 && model[0].Name != "" {
		m = model[0]
	}

	return &ChatSession{
		client:            c,
		model:             m,
		systemInstruction: systemInstruction,
	}
}

// streamEndpoint returns the SSE endpoint for model
func (c *GeminiClient) streamEndpoint(model models.Model) string {
	return fmt.Sprintf("%s/models/%s:%s?alt=sse", c.baseURL, model.Name, models.MethodStreamGenerate)
}
