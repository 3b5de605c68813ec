package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"healthy", http.StatusOK, false},
		{"unhealthy_500", http.StatusInternalServerError, true},
		{"unhealthy_503", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health-check" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := NewClient(server.URL)
			err := client.HealthCheck(context.Background())

			if (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnhealthy) {
				t.Errorf("expected ErrUnhealthy, got %v", err)
			}
		})
	}
}

func TestClient_HealthCheck_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestClient_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/graphql" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != "POST" {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content-type: %s", ct)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"Workflow": [{"_docID": "abc123", "name": "Test"}]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Execute(context.Background(), `{ Workflow { _docID name } }`, nil)

	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Error() != "" {
		t.Errorf("unexpected GraphQL error: %s", resp.Error())
	}

	docs := resp.Docs("Workflow")
	if len(docs) != 1 || docs[0]["name"] != "Test" {
		t.Errorf("unexpected docs: %+v", docs)
	}
}

func TestClient_Execute_WithVariables(t *testing.T) {
	var received GQLRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"Workflow": []}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	vars := map[string]any{"id": "test-id", "limit": 10}
	_, err := client.Execute(context.Background(), `query($id: String!) { Workflow(filter: {_docID: $id}) { name } }`, vars)

	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if received.Variables["id"] != "test-id" {
		t.Errorf("variables not sent: %+v", received.Variables)
	}
}

func TestClient_Execute_GraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errors": [{"message": "field not found"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Execute(context.Background(), `{ Bogus { x } }`, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Error() != "field not found" {
		t.Errorf("expected graphql error message, got %q", resp.Error())
	}
}

func TestClient_Execute_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Execute(context.Background(), `{ Workflow { _docID } }`, nil)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestClient_Create(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GQLRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		query = req.Query

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"create_Workflow": [{"_docID": "bae-123"}]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	docID, err := client.Create(context.Background(), "Workflow", map[string]any{
		"name": "order extraction",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if docID != "bae-123" {
		t.Errorf("expected docID bae-123, got %s", docID)
	}
	if !strings.Contains(query, "create_Workflow") {
		t.Errorf("unexpected mutation: %s", query)
	}
	if !strings.Contains(query, `name: "order extraction"`) {
		t.Errorf("input not interpolated: %s", query)
	}
}

func TestClient_Update_Delete(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GQLRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		queries = append(queries, req.Query)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if err := client.Update(context.Background(), "Prompt", "bae-1", map[string]any{"text": "hi"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := client.Delete(context.Background(), "Prompt", "bae-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if len(queries) != 2 ||
		!strings.Contains(queries[0], "update_Prompt") ||
		!strings.Contains(queries[1], "delete_Prompt") {
		t.Errorf("unexpected mutations: %v", queries)
	}
}

func TestValueToGraphQL_StringEscaping(t *testing.T) {
	// Strings with control characters must survive GraphQL interpolation.
	got, err := valueToGraphQL("line1\nline2\t\"quoted\"")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `"line1\nline2\t\"quoted\""` {
		t.Errorf("unexpected encoding: %s", got)
	}
}

func TestValueToGraphQL_StringSlice(t *testing.T) {
	got, err := valueToGraphQL([]string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `["a", "b"]` {
		t.Errorf("unexpected encoding: %s", got)
	}
}
