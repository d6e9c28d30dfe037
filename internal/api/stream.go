package api

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/geminivoice/internal/errors"
	"github.com/diogo/geminivoice/internal/models"
)

// maxEventSize is the largest single SSE line accepted
const maxEventSize = 1 << 20

// sseStream reads the `data:` events of a streamGenerateContent?alt=sse reply
type sseStream struct {
	body     io.ReadCloser
	scanner  *bufio.Scanner
	endpoint string
	reply    strings.Builder
	onDone   func(reply string)

	mu     sync.Mutex // serializes Recv
	err    error      // sticky terminal error, io.EOF on success
	closed atomic.Bool
}

func newSSEStream(body io.ReadCloser, endpoint string, onDone func(string)) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &sseStream{
		body:     body,
		scanner:  scanner,
		endpoint: endpoint,
		onDone:   onDone,
	}
}

// Recv returns the next non-empty increment in delivery order
func (s *sseStream) Recv() (models.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return models.Chunk{}, s.err
	}
	if s.closed.Load() {
		return s.fail(io.ErrClosedPipe)
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			break
		}

		chunk, err := parseChunk(data, s.endpoint)
		if err != nil {
			return s.fail(err)
		}
		if chunk.Text == "" {
			continue
		}
		s.reply.WriteString(chunk.Text)
		return chunk, nil
	}

	if s.closed.Load() {
		return s.fail(io.ErrClosedPipe)
	}
	if err := s.scanner.Err(); err != nil {
		return s.fail(apierrors.NewNetworkErrorWithEndpoint("read stream", s.endpoint, err))
	}

	s.err = io.EOF
	_ = s.body.Close()
	if s.onDone != nil {
		s.onDone(s.reply.String())
	}
	return models.Chunk{}, io.EOF
}

func (s *sseStream) fail(err error) (models.Chunk, error) {
	s.err = err
	_ = s.body.Close()
	return models.Chunk{}, err
}

// Close abandons the stream and unblocks a Recv waiting on the body. The
// turn is not recorded unless Recv already returned io.EOF.
func (s *sseStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.body.Close()
}

// parseChunk decodes one event payload
func parseChunk(data, endpoint string) (models.Chunk, error) {
	if !gjson.Valid(data) {
		return models.Chunk{}, apierrors.NewParseError("invalid JSON in stream event", data)
	}
	parsed := gjson.Parse(data)

	if errObj := parsed.Get("error"); errObj.Exists() {
		apiErr := apierrors.NewAPIError(int(errObj.Get("code").Int()), endpoint, errObj.Get("message").String())
		apiErr.Status = errObj.Get("status").String()
		return models.Chunk{}, apiErr
	}

	if reason := parsed.Get("promptFeedback.blockReason").String(); reason != "" {
		return models.Chunk{}, apierrors.NewBlockedError(reason)
	}

	var text strings.Builder
	for _, part := range parsed.Get("candidates.0.content.parts").Array() {
		if part.Get("thought").Bool() {
			continue
		}
		text.WriteString(part.Get("text").String())
	}

	return models.Chunk{
		Text:         text.String(),
		FinishReason: parsed.Get("candidates.0.finishReason").String(),
		TotalTokens:  int(parsed.Get("usageMetadata.totalTokenCount").Int()),
	}, nil
}
