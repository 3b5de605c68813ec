package providers

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestMockClient(t *testing.T) {
	t.Run("basic chat", func(t *testing.T) {
		mock := NewMockClient()
		mock.ResponseText = "test answer"

		result, err := mock.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "test question"}},
			Model:    "test-model",
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if !result.Success {
			t.Error("expected success")
		}
		if result.Content != "test answer" {
			t.Errorf("Content = %q, want %q", result.Content, "test answer")
		}
		if result.ModelUsed != "test-model" {
			t.Errorf("ModelUsed = %q, want %q", result.ModelUsed, "test-model")
		}
		if result.TotalTokens == 0 {
			t.Error("expected nonzero token count")
		}
	})

	t.Run("configured failure", func(t *testing.T) {
		mock := NewMockClient()
		mock.ShouldFail = true

		result, err := mock.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "hi"}},
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if result.Success {
			t.Error("expected failure result")
		}
		if result.ErrorType != "mock_failure" {
			t.Errorf("ErrorType = %q, want mock_failure", result.ErrorType)
		}
	})

	t.Run("fail after N requests", func(t *testing.T) {
		mock := NewMockClient()
		mock.FailAfter = 2

		for i := 0; i < 2; i++ {
			if _, err := mock.Chat(context.Background(), &ChatRequest{
				Messages: []Message{{Role: "user", Content: "hi"}},
			}); err != nil {
				t.Fatalf("request %d failed early: %v", i+1, err)
			}
		}
		if _, err := mock.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "hi"}},
		}); err == nil {
			t.Fatal("expected failure on third request")
		}
	})

	t.Run("structured output", func(t *testing.T) {
		mock := NewMockClient()
		mock.ResponseJSON = json.RawMessage(`{"field": "value"}`)

		result, err := mock.Chat(context.Background(), &ChatRequest{
			Messages:       []Message{{Role: "user", Content: "hi"}},
			ResponseFormat: &ResponseFormat{Type: "json_object"},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if string(result.ParsedJSON) != `{"field": "value"}` {
			t.Errorf("ParsedJSON = %s", result.ParsedJSON)
		}
		if result.Content != `{"field": "value"}` {
			t.Errorf("Content = %q", result.Content)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		mock := NewMockClient()
		mock.Latency = time.Second

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := mock.Chat(ctx, &ChatRequest{
			Messages: []Message{{Role: "user", Content: "hi"}},
		})
		if err == nil {
			t.Fatal("expected context error")
		}
	})

	t.Run("request counting", func(t *testing.T) {
		mock := NewMockClient()

		for i := 0; i < 3; i++ {
			mock.Chat(context.Background(), &ChatRequest{
				Messages: []Message{{Role: "user", Content: "hi"}},
			})
		}
		if mock.RequestCount() != 3 {
			t.Errorf("RequestCount() = %d, want 3", mock.RequestCount())
		}

		mock.Reset()
		if mock.RequestCount() != 0 {
			t.Errorf("RequestCount() after Reset = %d, want 0", mock.RequestCount())
		}
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("consumes available tokens", func(t *testing.T) {
		rl := NewRateLimiter(10)

		consumed := 0
		for i := 0; i < 10; i++ {
			if rl.TryConsume() {
				consumed++
			}
		}
		if consumed != 10 {
			t.Errorf("consumed %d tokens, want 10", consumed)
		}
		if rl.TryConsume() {
			t.Error("expected bucket to be drained")
		}
	})

	t.Run("refills over time", func(t *testing.T) {
		rl := NewRateLimiter(100)

		for rl.TryConsume() {
		}

		time.Sleep(50 * time.Millisecond)
		if !rl.TryConsume() {
			t.Error("expected token after refill window")
		}
	})

	t.Run("wait blocks until token", func(t *testing.T) {
		rl := NewRateLimiter(50)

		for rl.TryConsume() {
		}

		start := time.Now()
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if time.Since(start) > time.Second {
			t.Error("Wait() took too long")
		}
	})

	t.Run("wait respects context", func(t *testing.T) {
		rl := NewRateLimiter(0.001)

		for rl.TryConsume() {
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		if err := rl.Wait(ctx); err == nil {
			t.Error("expected context deadline error")
		}
	})

	t.Run("record 429 drains tokens", func(t *testing.T) {
		rl := NewRateLimiter(10)

		rl.Record429(time.Second)
		if rl.TryConsume() {
			t.Error("expected tokens drained after 429")
		}

		status := rl.Status()
		if status.Last429Time.IsZero() {
			t.Error("expected Last429Time to be recorded")
		}
	})

	t.Run("status reports utilization", func(t *testing.T) {
		rl := NewRateLimiter(10)

		for i := 0; i < 5; i++ {
			rl.TryConsume()
		}

		status := rl.Status()
		if status.TotalConsumed != 5 {
			t.Errorf("TotalConsumed = %d, want 5", status.TotalConsumed)
		}
		if status.Utilization <= 0 {
			t.Errorf("Utilization = %f, want > 0", status.Utilization)
		}
	})
}
