package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func chatCompletionJSON(content string) string {
	resp := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-2024-08-06",
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     12,
			"completion_tokens": 3,
			"total_tokens":      15,
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestOpenAIChatSuccess(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON("hello there")))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{
		APIKey:       "test-key",
		DefaultModel: "gpt-4o",
		BaseURL:      server.URL,
		RateLimit:    100,
	})

	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "You are terse."},
			{Role: "user", Content: "Say hello."},
		},
		Temperature: 0.2,
		MaxTokens:   64,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !result.Success {
		t.Fatal("expected success result")
	}
	if result.Content != "hello there" {
		t.Fatalf("unexpected content: %q", result.Content)
	}
	if result.ModelUsed != "gpt-4o-2024-08-06" {
		t.Fatalf("unexpected model: %q", result.ModelUsed)
	}
	if result.TotalTokens != 15 {
		t.Fatalf("expected 15 total tokens, got %d", result.TotalTokens)
	}
	if result.Provider != OpenAIName {
		t.Fatalf("unexpected provider: %q", result.Provider)
	}
	if result.RequestID == "" {
		t.Fatal("expected generated request ID")
	}

	if got, _ := payload["model"].(string); got != "gpt-4o" {
		t.Fatalf("expected model gpt-4o, got %q", got)
	}
	msgs, _ := payload["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if got, _ := payload["temperature"].(float64); got != 0.2 {
		t.Fatalf("expected temperature 0.2, got %v", got)
	}
}

func TestOpenAIChatModelOverride(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON("ok")))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{
		APIKey:       "test-key",
		DefaultModel: "gpt-4o",
		BaseURL:      server.URL,
		RateLimit:    100,
	})

	_, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Model:    "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got, _ := payload["model"].(string); got != "gpt-4o-mini" {
		t.Fatalf("expected model override gpt-4o-mini, got %q", got)
	}
}

func TestOpenAIChatStructuredOutput(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON(`{"answer": 42}`)))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		RateLimit: 100,
	})

	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages:       []Message{{Role: "user", Content: "answer in JSON"}},
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.ErrorMessage)
	}
	if len(result.ParsedJSON) == 0 {
		t.Fatal("expected parsed JSON")
	}

	var parsed map[string]any
	if err := json.Unmarshal(result.ParsedJSON, &parsed); err != nil {
		t.Fatalf("parse ParsedJSON: %v", err)
	}
	if parsed["answer"] != float64(42) {
		t.Fatalf("unexpected parsed value: %v", parsed["answer"])
	}

	if rf, ok := payload["response_format"].(map[string]any); !ok || rf["type"] != "json_object" {
		t.Fatalf("expected response_format json_object in request, got %v", payload["response_format"])
	}
}

func TestOpenAIChatJSONSchemaFormat(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON(`{"name": "x"}`)))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		RateLimit: 100,
	})

	schema := json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}}}`)
	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "extract"}},
		ResponseFormat: &ResponseFormat{
			Type:       "json_schema",
			Name:       "extraction",
			JSONSchema: schema,
		},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.ErrorMessage)
	}

	rf, ok := payload["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_schema" {
		t.Fatalf("expected response_format json_schema in request, got %v", payload["response_format"])
	}
}

func TestOpenAIChatInvalidJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON("not json at all")))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		RateLimit: 100,
	})

	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages:       []Message{{Role: "user", Content: "answer in JSON"}},
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for unparseable structured output")
	}
	if result.ErrorType != "json_parse" {
		t.Fatalf("expected json_parse error type, got %q", result.ErrorType)
	}
}

func TestOpenAIChatAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error","param":"","code":""}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		RateLimit: 100,
	})

	result, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if result.Success {
		t.Fatal("expected failure result")
	}
	if result.ErrorType != "api_error" {
		t.Fatalf("expected api_error type, got %q", result.ErrorType)
	}
}

func TestOpenAIChatRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit","type":"rate_limit_error","param":"","code":"rate_limit"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		RateLimit: 100,
	})

	_, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	rle, ok := IsRateLimitError(err)
	if !ok {
		t.Fatalf("expected RateLimitError, got %T: %v", err, err)
	}
	if rle.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rle.StatusCode)
	}
	if rle.RetryAfter != time.Second {
		t.Fatalf("expected RetryAfter=1s, got %v", rle.RetryAfter)
	}
}
