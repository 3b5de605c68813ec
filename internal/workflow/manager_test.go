package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"loom/internal/store"
)

// fakeDefra spins up a GraphQL endpoint whose responses are scripted by
// route. It records every query for assertions.
func fakeDefra(t *testing.T, route func(query string, vars map[string]any) (map[string]any, string)) (*store.Client, func() []string) {
	t.Helper()

	var mu sync.Mutex
	var queries []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}

		mu.Lock()
		queries = append(queries, req.Query)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		data, errMsg := route(req.Query, req.Variables)
		if errMsg != "" {
			json.NewEncoder(w).Encode(map[string]any{
				"errors": []map[string]any{{"message": errMsg}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	t.Cleanup(srv.Close)

	return store.NewClient(srv.URL), func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), queries...)
	}
}

func newTestManager(client *store.Client) *Manager {
	m := NewManager(client, nil)
	m.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func workflowDoc(docID, name string) map[string]any {
	return map[string]any{
		"_docID":     docID,
		"name":       name,
		"status":     StatusSetup,
		"tags":       []any{"extraction", "qa"},
		"llm_model":  "gpt-4o",
		"created_at": "2025-06-01T12:00:00Z",
		"updated_at": "2025-06-01T12:00:00Z",
	}
}

func TestManager_Create(t *testing.T) {
	client, getQueries := fakeDefra(t, func(query string, vars map[string]any) (map[string]any, string) {
		switch {
		case strings.Contains(query, "create_Workflow"):
			return map[string]any{"create_Workflow": []any{map[string]any{"_docID": "wf-1"}}}, ""
		case strings.Contains(query, "create_Prompt"):
			return map[string]any{"create_Prompt": []any{map[string]any{"_docID": "pr-1"}}}, ""
		}
		return nil, "unexpected query"
	})
	m := newTestManager(client)

	result, err := m.Create(context.Background(), CreateRequest{
		Name:     "order extraction",
		Tags:     []string{"extraction"},
		LLMModel: "gpt-4o",
		Prompt:   "Extract order fields from the given text.",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if result.Workflow.DocID != "wf-1" {
		t.Errorf("workflow DocID = %q, want wf-1", result.Workflow.DocID)
	}
	if result.Workflow.Status != StatusSetup {
		t.Errorf("status = %q, want %q", result.Workflow.Status, StatusSetup)
	}
	if result.Prompt.DocID != "pr-1" {
		t.Errorf("prompt DocID = %q, want pr-1", result.Prompt.DocID)
	}
	if result.Prompt.Version != 1 {
		t.Errorf("prompt version = %d, want 1", result.Prompt.Version)
	}

	queries := getQueries()
	if len(queries) != 2 {
		t.Fatalf("expected 2 mutations, got %d", len(queries))
	}
	if !strings.Contains(queries[1], `workflow_id: "wf-1"`) {
		t.Errorf("prompt mutation missing workflow link: %s", queries[1])
	}
}

func TestManager_CreateValidation(t *testing.T) {
	m := newTestManager(nil)

	if _, err := m.Create(context.Background(), CreateRequest{Prompt: "p"}); err == nil {
		t.Error("expected error for missing name")
	}
	if _, err := m.Create(context.Background(), CreateRequest{Name: "w"}); err == nil {
		t.Error("expected error for missing prompt")
	}
}

func TestManager_CreateRollsBackOnPromptFailure(t *testing.T) {
	client, getQueries := fakeDefra(t, func(query string, vars map[string]any) (map[string]any, string) {
		switch {
		case strings.Contains(query, "create_Workflow"):
			return map[string]any{"create_Workflow": []any{map[string]any{"_docID": "wf-1"}}}, ""
		case strings.Contains(query, "create_Prompt"):
			return nil, "prompt rejected"
		case strings.Contains(query, "delete_Workflow"):
			return map[string]any{"delete_Workflow": []any{map[string]any{"_docID": "wf-1"}}}, ""
		}
		return nil, "unexpected query"
	})
	m := newTestManager(client)

	_, err := m.Create(context.Background(), CreateRequest{
		Name:   "broken",
		Prompt: "p",
	})
	if err == nil {
		t.Fatal("expected error when prompt create fails")
	}

	deleted := false
	for _, q := range getQueries() {
		if strings.Contains(q, "delete_Workflow") && strings.Contains(q, "wf-1") {
			deleted = true
		}
	}
	if !deleted {
		t.Error("expected workflow rollback delete after prompt failure")
	}
}

func TestManager_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		client, _ := fakeDefra(t, func(query string, vars map[string]any) (map[string]any, string) {
			return map[string]any{"Workflow": []any{workflowDoc("wf-1", "order extraction")}}, ""
		})
		m := newTestManager(client)

		wf, err := m.Get(context.Background(), "wf-1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if wf.Name != "order extraction" {
			t.Errorf("Name = %q", wf.Name)
		}
		if len(wf.Tags) != 2 || wf.Tags[0] != "extraction" {
			t.Errorf("Tags = %v", wf.Tags)
		}
	})

	t.Run("not found", func(t *testing.T) {
		client, _ := fakeDefra(t, func(query string, vars map[string]any) (map[string]any, string) {
			return map[string]any{"Workflow": []any{}}, ""
		})
		m := newTestManager(client)

		_, err := m.Get(context.Background(), "missing")
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestManager_Update(t *testing.T) {
	t.Run("rejects unknown field", func(t *testing.T) {
		m := newTestManager(nil)
		if _, err := m.Update(context.Background(), "wf-1", map[string]any{"model_schema": "x"}); err == nil {
			t.Error("expected error for non-updatable field")
		}
	})

	t.Run("updates and reloads", func(t *testing.T) {
		updated := false
		client, getQueries := fakeDefra(t, func(query string, vars map[string]any) (map[string]any, string) {
			if strings.Contains(query, "update_Workflow") {
				updated = true
				return map[string]any{"update_Workflow": []any{map[string]any{"_docID": "wf-1"}}}, ""
			}
			name := "order extraction"
			if updated {
				name = "renamed"
			}
			return map[string]any{"Workflow": []any{workflowDoc("wf-1", name)}}, ""
		})
		m := newTestManager(client)

		wf, err := m.Update(context.Background(), "wf-1", map[string]any{"name": "renamed"})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if wf.Name != "renamed" {
			t.Errorf("Name = %q, want renamed", wf.Name)
		}

		found := false
		for _, q := range getQueries() {
			if strings.Contains(q, "update_Workflow") && strings.Contains(q, "updated_at") {
				found = true
			}
		}
		if !found {
			t.Error("update mutation should set updated_at")
		}
	})
}

func TestManager_Duplicate(t *testing.T) {
	client, _ := fakeDefra(t, func(query string, vars map[string]any) (map[string]any, string) {
		switch {
		case strings.Contains(query, "create_Workflow"):
			return map[string]any{"create_Workflow": []any{map[string]any{"_docID": "wf-2"}}}, ""
		case strings.Contains(query, "create_Prompt"):
			return map[string]any{"create_Prompt": []any{map[string]any{"_docID": "pr-2"}}}, ""
		case strings.Contains(query, "Prompt"):
			return map[string]any{"Prompt": []any{map[string]any{
				"_docID": "pr-1", "workflow_id": "wf-1", "text": "extract", "version": float64(3),
			}}}, ""
		}
		return map[string]any{"Workflow": []any{workflowDoc("wf-1", "order extraction")}}, ""
	})
	m := newTestManager(client)

	dup, err := m.Duplicate(context.Background(), "wf-1")
	if err != nil {
		t.Fatalf("Duplicate() error = %v", err)
	}
	if dup.DocID != "wf-2" {
		t.Errorf("DocID = %q, want wf-2", dup.DocID)
	}
	if !strings.HasPrefix(dup.Name, "order extraction (copy ") {
		t.Errorf("Name = %q, want copy suffix", dup.Name)
	}
	if dup.Status != StatusSetup {
		t.Errorf("Status = %q, want %q", dup.Status, StatusSetup)
	}
	if dup.LLMModel != "gpt-4o" {
		t.Errorf("LLMModel = %q, want copied", dup.LLMModel)
	}
}

func TestManager_Search(t *testing.T) {
	var captured string
	client, _ := fakeDefra(t, func(query string, vars map[string]any) (map[string]any, string) {
		captured = query
		return map[string]any{"Workflow": []any{
			workflowDoc("wf-1", "order extraction"),
			workflowDoc("wf-2", "qa generation"),
		}}, ""
	})
	m := newTestManager(client)

	results, err := m.Search(context.Background(), []string{"extraction", "qa"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !strings.Contains(captured, `_any`) || !strings.Contains(captured, `"extraction"`) {
		t.Errorf("search query missing tag filter: %s", captured)
	}

	// Without tags, no filter clause
	m.Search(context.Background(), nil)
	if strings.Contains(captured, "filter") {
		t.Errorf("tagless search should have no filter: %s", captured)
	}
}

func TestManager_SearchByName(t *testing.T) {
	var captured string
	client, _ := fakeDefra(t, func(query string, vars map[string]any) (map[string]any, string) {
		captured = query
		return map[string]any{"Workflow": []any{
			workflowDoc("wf-1", "order extraction"),
		}}, ""
	})
	m := newTestManager(client)

	results, err := m.SearchByName(context.Background(), "extract")
	if err != nil {
		t.Fatalf("SearchByName() error = %v", err)
	}
	if len(results) != 1 || results[0].DocID != "wf-1" {
		t.Fatalf("unexpected results: %+v", results)
	}
	// Substring match goes to the store as a wildcard _like, not equality.
	if !strings.Contains(captured, "name: {_like:") {
		t.Errorf("expected a _like name filter: %s", captured)
	}
}

func TestManager_Prompt(t *testing.T) {
	t.Run("get", func(t *testing.T) {
		client, _ := fakeDefra(t, func(query string, vars map[string]any) (map[string]any, string) {
			return map[string]any{"Prompt": []any{map[string]any{
				"_docID": "pr-1", "workflow_id": "wf-1", "text": "extract fields", "version": float64(2),
			}}}, ""
		})
		m := newTestManager(client)

		prompt, err := m.GetPrompt(context.Background(), "wf-1")
		if err != nil {
			t.Fatalf("GetPrompt() error = %v", err)
		}
		if prompt.Text != "extract fields" || prompt.Version != 2 {
			t.Errorf("prompt = %+v", prompt)
		}
	})

	t.Run("update bumps version", func(t *testing.T) {
		version := 2
		client, getQueries := fakeDefra(t, func(query string, vars map[string]any) (map[string]any, string) {
			if strings.Contains(query, "update_Prompt") {
				version = 3
				return map[string]any{"update_Prompt": []any{map[string]any{"_docID": "pr-1"}}}, ""
			}
			return map[string]any{"Prompt": []any{map[string]any{
				"_docID": "pr-1", "workflow_id": "wf-1", "text": "new text", "version": float64(version),
			}}}, ""
		})
		m := newTestManager(client)

		text := "new text"
		prompt, err := m.UpdatePrompt(context.Background(), "wf-1", &text, nil)
		if err != nil {
			t.Fatalf("UpdatePrompt() error = %v", err)
		}
		if prompt.Version != 3 {
			t.Errorf("Version = %d, want 3", prompt.Version)
		}

		found := false
		for _, q := range getQueries() {
			if strings.Contains(q, "update_Prompt") && strings.Contains(q, "version: 3") {
				found = true
			}
		}
		if !found {
			t.Error("update mutation should bump version to 3")
		}
	})

	t.Run("update with no changes returns current", func(t *testing.T) {
		client, getQueries := fakeDefra(t, func(query string, vars map[string]any) (map[string]any, string) {
			return map[string]any{"Prompt": []any{map[string]any{
				"_docID": "pr-1", "workflow_id": "wf-1", "text": "t", "version": float64(1),
			}}}, ""
		})
		m := newTestManager(client)

		if _, err := m.UpdatePrompt(context.Background(), "wf-1", nil, nil); err != nil {
			t.Fatalf("UpdatePrompt() error = %v", err)
		}
		for _, q := range getQueries() {
			if strings.Contains(q, "update_Prompt") {
				t.Error("no mutation expected for empty patch")
			}
		}
	})
}

func TestManager_UpsertExample(t *testing.T) {
	var captured string
	client, _ := fakeDefra(t, func(query string, vars map[string]any) (map[string]any, string) {
		captured = query
		return map[string]any{"upsert_Example": []any{map[string]any{"_docID": "ex-1"}}}, ""
	})
	m := newTestManager(client)

	ex, err := m.UpsertExample(context.Background(), "wf-1", Example{
		Input:  "What is AI?",
		Label:  "positive",
		Reason: "on topic",
	})
	if err != nil {
		t.Fatalf("UpsertExample() error = %v", err)
	}
	if ex.DocID != "ex-1" {
		t.Errorf("DocID = %q, want ex-1", ex.DocID)
	}
	if ex.WorkflowID != "wf-1" {
		t.Errorf("WorkflowID = %q, want wf-1", ex.WorkflowID)
	}
	if !strings.Contains(captured, "upsert_Example") {
		t.Errorf("expected upsert mutation, got: %s", captured)
	}
	if !strings.Contains(captured, `"What is AI?"`) {
		t.Errorf("mutation missing example input: %s", captured)
	}

	if _, err := m.UpsertExample(context.Background(), "wf-1", Example{}); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestManager_HasLabeledExamples(t *testing.T) {
	tests := []struct {
		name string
		docs []any
		want bool
	}{
		{
			name: "labeled",
			docs: []any{
				map[string]any{"_docID": "ex-1", "workflow_id": "wf-1", "input": "a", "label": "positive"},
				map[string]any{"_docID": "ex-2", "workflow_id": "wf-1", "input": "b", "label": ""},
			},
			want: true,
		},
		{
			name: "unlabeled only",
			docs: []any{
				map[string]any{"_docID": "ex-1", "workflow_id": "wf-1", "input": "a", "label": ""},
			},
			want: false,
		},
		{
			name: "no examples",
			docs: []any{},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := fakeDefra(t, func(query string, vars map[string]any) (map[string]any, string) {
				return map[string]any{"Example": tt.docs}, ""
			})
			m := newTestManager(client)

			got, err := m.HasLabeledExamples(context.Background(), "wf-1")
			if err != nil {
				t.Fatalf("HasLabeledExamples() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("HasLabeledExamples() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManager_SetModel(t *testing.T) {
	var captured []string
	client, _ := fakeDefra(t, func(query string, vars map[string]any) (map[string]any, string) {
		captured = append(captured, query)
		if strings.Contains(query, "update_Workflow") {
			return map[string]any{"update_Workflow": []any{map[string]any{"_docID": "wf-1"}}}, ""
		}
		return map[string]any{"Workflow": []any{workflowDoc("wf-1", "order extraction")}}, ""
	})
	m := newTestManager(client)

	err := m.SetModel(context.Background(), "wf-1",
		`{"question": "q"}`,
		"class Model(BaseModel):\n  question: str\n",
		`{"$defs": {}}`)
	if err != nil {
		t.Fatalf("SetModel() error = %v", err)
	}

	found := false
	for _, q := range captured {
		if strings.Contains(q, "model_descriptor") && strings.Contains(q, "sample_data") {
			found = true
		}
	}
	if !found {
		t.Error("expected model artifact fields in update mutation")
	}
}

func TestManager_AddUser(t *testing.T) {
	client, _ := fakeDefra(t, func(query string, vars map[string]any) (map[string]any, string) {
		return map[string]any{"create_User": []any{map[string]any{"_docID": "us-1"}}}, ""
	})
	m := newTestManager(client)

	user, err := m.AddUser(context.Background(), User{Username: "ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}
	if user.DocID != "us-1" {
		t.Errorf("DocID = %q, want us-1", user.DocID)
	}

	if _, err := m.AddUser(context.Background(), User{}); err == nil {
		t.Error("expected error for missing username")
	}
}
