package api

import (
	"context"
	"errors"
	"io"
	"testing"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/geminivoice/internal/errors"
	"github.com/diogo/geminivoice/internal/models"
)

func newTestSession(t *testing.T, mock *MockHttpClient) *ChatSession {
	t.Helper()
	client, err := NewClient("secret-key", WithHTTPClient(mock), WithBaseURL("https://api.test/v1beta"))
	if err != nil {
		t.Fatal(err)
	}
	return client.StartChat("system text")
}

func drain(t *testing.T, stream ResponseStream) ([]string, error) {
	t.Helper()
	var texts []string
	for {
		chunk, err := stream.Recv()
		if err != nil {
			return texts, err
		}
		texts = append(texts, chunk.Text)
	}
}

func TestStreamMessage_Request(t *testing.T) {
	mock := NewSSEMockClient(textEvent("ok"))
	session := newTestSession(t, mock)

	stream, err := session.StreamMessage(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("StreamMessage() error = %v", err)
	}
	defer stream.Close()

	req := mock.Requests[0]
	if req.Method != fhttp.MethodPost {
		t.Errorf("method = %s", req.Method)
	}
	if got := req.URL.String(); got != "https://api.test/v1beta/models/gemini-2.5-flash:streamGenerateContent?alt=sse" {
		t.Errorf("url = %s", got)
	}
	if got := req.Header.Get("x-goog-api-key"); got != "secret-key" {
		t.Errorf("api key header = %q", got)
	}
	if got := req.Header.Get("Accept"); got != "text/event-stream" {
		t.Errorf("accept header = %q", got)
	}

	body := gjson.Parse(mock.LastBody())
	if got := body.Get("systemInstruction.parts.0.text").String(); got != "system text" {
		t.Errorf("systemInstruction = %q", got)
	}
	if n := len(body.Get("contents").Array()); n != 1 {
		t.Fatalf("contents length = %d, want 1", n)
	}
	if got := body.Get("contents.0.role").String(); got != "user" {
		t.Errorf("role = %q", got)
	}
	if got := body.Get("contents.0.parts.0.text").String(); got != "Hello" {
		t.Errorf("text = %q", got)
	}
}

func TestStreamMessage_IncrementsInOrder(t *testing.T) {
	mock := NewSSEMockClient(textEvent("Hi"), textEvent(" there"), textEvent("!"))
	session := newTestSession(t, mock)

	stream, err := session.StreamMessage(context.Background(), "Hello")
	if err != nil {
		t.Fatal(err)
	}

	texts, err := drain(t, stream)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("terminal error = %v, want io.EOF", err)
	}
	want := []string{"Hi", " there", "!"}
	if len(texts) != len(want) {
		t.Fatalf("got %v, want %v", texts, want)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("increment %d = %q, want %q", i, texts[i], want[i])
		}
	}

	// Recv after completion stays at EOF
	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Errorf("Recv() after EOF = %v", err)
	}
}

func TestStreamMessage_HistoryOnlyAfterSuccess(t *testing.T) {
	mock := NewSSEMockClient(textEvent("Hi"), textEvent(" there"))
	session := newTestSession(t, mock)

	stream, _ := session.StreamMessage(context.Background(), "Hello")
	if _, err := stream.Recv(); err != nil {
		t.Fatal(err)
	}
	if len(session.History()) != 0 {
		t.Fatal("history must not change while streaming")
	}
	if _, err := drain(t, stream); !errors.Is(err, io.EOF) {
		t.Fatal(err)
	}

	history := session.History()
	want := []models.Content{
		{Role: models.ContentRoleUser, Text: "Hello"},
		{Role: models.ContentRoleModel, Text: "Hi there"},
	}
	if len(history) != len(want) {
		t.Fatalf("history = %v", history)
	}
	for i := range want {
		if history[i] != want[i] {
			t.Errorf("history[%d] = %v, want %v", i, history[i], want[i])
		}
	}

	// The next request carries the previous exchange
	stream, _ = session.StreamMessage(context.Background(), "Again")
	_, _ = drain(t, stream)
	body := gjson.Parse(mock.LastBody())
	if n := len(body.Get("contents").Array()); n != 3 {
		t.Fatalf("contents length = %d, want 3", n)
	}
	if got := body.Get("contents.1.role").String(); got != "model" {
		t.Errorf("contents.1.role = %q", got)
	}
	if got := body.Get("contents.2.parts.0.text").String(); got != "Again" {
		t.Errorf("contents.2 text = %q", got)
	}
}

func TestStreamMessage_FailedTurnNotRemembered(t *testing.T) {
	mock := NewSSEMockClient(textEvent("partial"), `{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`)
	session := newTestSession(t, mock)

	stream, _ := session.StreamMessage(context.Background(), "Hello")
	texts, err := drain(t, stream)
	if len(texts) != 1 || texts[0] != "partial" {
		t.Errorf("texts = %v", texts)
	}
	if statusOf(err) != 500 {
		t.Errorf("error = %v, want status 500", err)
	}
	if len(session.History()) != 0 {
		t.Error("failed turn must not be recorded")
	}
}

func TestStreamMessage_OpenErrors(t *testing.T) {
	t.Run("empty text", func(t *testing.T) {
		session := newTestSession(t, &MockHttpClient{})
		if _, err := session.StreamMessage(context.Background(), "  "); err == nil {
			t.Error("expected error for empty text")
		}
	})

	t.Run("closed client", func(t *testing.T) {
		mock := &MockHttpClient{}
		session := newTestSession(t, mock)
		session.client.Close()
		_, err := session.StreamMessage(context.Background(), "hi")
		if !errors.Is(err, apierrors.ErrClientClosed) {
			t.Errorf("error = %v, want ErrClientClosed", err)
		}
		if len(mock.Requests) != 0 {
			t.Error("closed client must not send requests")
		}
	})

	t.Run("network failure", func(t *testing.T) {
		session := newTestSession(t, NewMockHttpClientWithError(errors.New("connection refused")))
		_, err := session.StreamMessage(context.Background(), "hi")
		if !apierrors.IsNetworkError(err) {
			t.Errorf("error = %v, want NetworkError", err)
		}
	})

	t.Run("bad request", func(t *testing.T) {
		body := `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`
		session := newTestSession(t, NewMockHttpClient([]byte(body), 400))
		_, err := session.StreamMessage(context.Background(), "hi")

		var apiErr *apierrors.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error = %T %v, want APIError", err, err)
		}
		if apiErr.StatusCode != 400 || apiErr.Status != "INVALID_ARGUMENT" || apiErr.Message != "API key not valid" {
			t.Errorf("APIError = %+v", apiErr)
		}
	})

	t.Run("forbidden", func(t *testing.T) {
		session := newTestSession(t, NewMockHttpClient([]byte(`{"error":{"code":403,"message":"denied"}}`), 403))
		_, err := session.StreamMessage(context.Background(), "hi")
		if !apierrors.IsAuthError(err) {
			t.Errorf("error = %v, want auth error", err)
		}
	})

	t.Run("rate limited plain body", func(t *testing.T) {
		session := newTestSession(t, NewMockHttpClient([]byte("slow down"), 429))
		_, err := session.StreamMessage(context.Background(), "hi")
		if !apierrors.IsRateLimitError(err) {
			t.Errorf("error = %v, want rate limit", err)
		}
	})
}

func TestSession_SetModel(t *testing.T) {
	mock := NewSSEMockClient(textEvent("x"))
	session := newTestSession(t, mock)
	session.SetModel(models.Model25Pro)

	stream, err := session.StreamMessage(context.Background(), "hi")
	if err != nil {
		t.Fatal(err)
	}
	stream.Close()

	if got := mock.Requests[0].URL.Path; got != "/v1beta/models/gemini-2.5-pro:streamGenerateContent" {
		t.Errorf("path = %s", got)
	}
}

// statusOf returns the HTTP status carried by err
func statusOf(err error) int {
	return apierrors.GetHTTPStatus(err)
}
