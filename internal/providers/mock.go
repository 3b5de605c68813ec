package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for tests: canned replies, scriptable failure,
// and a request counter. When a request asks for structured output and
// ResponseJSON is set, the reply parses as that JSON — which is what the
// example fetcher consumes.
type MockClient struct {
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // fail once more than this many requests have been made (0 = never)
	ResponseText string
	ResponseJSON json.RawMessage

	requestCount atomic.Int64
}

// NewMockClient creates a mock with a tiny latency and a plain-text reply.
func NewMockClient() *MockClient {
	return &MockClient{
		Latency:      time.Millisecond,
		ResponseText: "generated example output",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat answers a chat request with the configured canned behavior.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
		Attempts:  1,
	}

	if c.ShouldFail {
		return c.fail(result, start, "mock client configured to fail")
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return c.fail(result, start, fmt.Sprintf("mock client failed after %d requests", c.FailAfter))
	}

	select {
	case <-time.After(c.Latency):
	case <-ctx.Done():
		result.Success = false
		result.ErrorType = "context_cancelled"
		result.ErrorMessage = ctx.Err().Error()
		result.TotalTime = time.Since(start)
		return result, ctx.Err()
	}

	result.Success = true
	result.Content = c.ResponseText
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime

	// Rough 4-chars-per-token estimate, enough for accounting assertions.
	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4
	}
	result.PromptTokens = promptTokens
	result.CompletionTokens = len(c.ResponseText) / 4
	result.TotalTokens = result.PromptTokens + result.CompletionTokens

	if req.ResponseFormat != nil && len(c.ResponseJSON) > 0 {
		result.ParsedJSON = c.ResponseJSON
		result.Content = string(c.ResponseJSON)
	}

	return result, nil
}

// fail marks the result failed the way real providers do: both an error
// return and a populated ErrorType/ErrorMessage on the result.
func (c *MockClient) fail(result *ChatResult, start time.Time, msg string) (*ChatResult, error) {
	result.Success = false
	result.ErrorType = "mock_failure"
	result.ErrorMessage = msg
	result.TotalTime = time.Since(start)
	return result, fmt.Errorf("%s", msg)
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Reset resets the request counter.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
}

var _ LLMClient = (*MockClient)(nil)
