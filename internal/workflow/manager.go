// Package workflow provides store-backed management of workflows and their
// prompts, examples, and users.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"loom/internal/store"
)

// Manager performs workflow CRUD against DefraDB.
type Manager struct {
	client *store.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a workflow manager.
func NewManager(client *store.Client, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		client: client,
		logger: logger.With("component", "workflow"),
		now:    time.Now,
	}
}

func (m *Manager) timestamp() string {
	return m.now().UTC().Format(time.RFC3339)
}

// CreateRequest creates a workflow and its prompt in one call.
type CreateRequest struct {
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Type          string    `json:"workflow_type,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	TotalExamples int       `json:"total_examples,omitempty"`
	LLMModel      string    `json:"llm_model,omitempty"`
	CreatedBy     string    `json:"created_by,omitempty"`
	Prompt        string    `json:"prompt"`
	Examples      []Example `json:"examples,omitempty"`
}

// CreateResult is the outcome of Create.
type CreateResult struct {
	Workflow Workflow  `json:"workflow"`
	Prompt   Prompt    `json:"prompt"`
	Examples []Example `json:"examples,omitempty"`
}

// Create creates a workflow together with its prompt and optional seed
// examples. If the prompt write fails the workflow document is deleted so a
// half-created workflow is not left behind.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("workflow prompt is required")
	}

	now := m.timestamp()
	wf := Workflow{
		Name:          req.Name,
		Description:   req.Description,
		Type:          req.Type,
		Tags:          req.Tags,
		Status:        StatusSetup,
		TotalExamples: req.TotalExamples,
		LLMModel:      req.LLMModel,
		CreatedBy:     req.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	wfID, err := m.client.Create(ctx, WorkflowCollection, workflowInput(wf))
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}
	wf.DocID = wfID

	prompt := Prompt{
		WorkflowID: wfID,
		Text:       req.Prompt,
		Version:    1,
		UpdatedAt:  now,
	}
	promptID, err := m.client.Create(ctx, PromptCollection, map[string]any{
		"workflow_id": prompt.WorkflowID,
		"text":        prompt.Text,
		"version":     prompt.Version,
		"updated_at":  prompt.UpdatedAt,
	})
	if err != nil {
		// Compensate: do not leave a workflow without a prompt.
		if delErr := m.client.Delete(ctx, WorkflowCollection, wfID); delErr != nil {
			m.logger.Error("failed to roll back workflow after prompt error",
				"workflow_id", wfID, "error", delErr)
		}
		return nil, fmt.Errorf("failed to create prompt: %w", err)
	}
	prompt.DocID = promptID

	result := &CreateResult{Workflow: wf, Prompt: prompt}
	for _, ex := range req.Examples {
		ex.WorkflowID = wfID
		ex.CreatedAt = now
		created, err := m.UpsertExample(ctx, wfID, ex)
		if err != nil {
			return nil, fmt.Errorf("failed to create example: %w", err)
		}
		result.Examples = append(result.Examples, *created)
	}

	m.logger.Info("created workflow", "workflow_id", wfID, "name", wf.Name)
	return result, nil
}

// Get retrieves a workflow by document ID.
func (m *Manager) Get(ctx context.Context, id string) (*Workflow, error) {
	resp, err := store.NewQuery(WorkflowCollection).
		Filter("_docID", id).
		Fields(workflowFields...).
		Execute(ctx, m.client)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	docs := resp.Docs(WorkflowCollection)
	if len(docs) == 0 {
		return nil, fmt.Errorf("workflow %s: %w", id, store.ErrNotFound)
	}
	return decodeDoc[Workflow](docs[0])
}

// updatableFields is the whitelist of fields Update accepts.
var updatableFields = map[string]bool{
	"name":           true,
	"description":    true,
	"workflow_type":  true,
	"tags":           true,
	"status":         true,
	"total_examples": true,
	"llm_model":      true,
}

// Update applies a partial update to a workflow and returns the new state.
func (m *Manager) Update(ctx context.Context, id string, updates map[string]any) (*Workflow, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	input := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		if !updatableFields[k] {
			return nil, fmt.Errorf("field not updatable: %s", k)
		}
		input[k] = v
	}
	input["updated_at"] = m.timestamp()

	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := m.client.Update(ctx, WorkflowCollection, id, input); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}
	return m.Get(ctx, id)
}

// Duplicate copies a workflow and its prompt into a new workflow. The copy's
// name carries a short unique suffix so repeated duplicates stay distinct.
func (m *Manager) Duplicate(ctx context.Context, id string) (*Workflow, error) {
	src, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := m.timestamp()
	dup := *src
	dup.DocID = ""
	dup.Name = fmt.Sprintf("%s (copy %s)", src.Name, uuid.New().String()[:8])
	dup.Status = StatusSetup
	dup.CreatedAt = now
	dup.UpdatedAt = now

	dupID, err := m.client.Create(ctx, WorkflowCollection, workflowInput(dup))
	if err != nil {
		return nil, fmt.Errorf("failed to duplicate workflow: %w", err)
	}
	dup.DocID = dupID

	if prompt, err := m.GetPrompt(ctx, id); err == nil {
		if _, err := m.client.Create(ctx, PromptCollection, map[string]any{
			"workflow_id": dupID,
			"text":        prompt.Text,
			"source":      prompt.Source,
			"version":     1,
			"updated_at":  now,
		}); err != nil {
			m.logger.Error("failed to copy prompt to duplicate",
				"workflow_id", dupID, "error", err)
		}
	}

	m.logger.Info("duplicated workflow", "source_id", id, "workflow_id", dupID)
	return &dup, nil
}

// Status returns the status string of a workflow.
func (m *Manager) Status(ctx context.Context, id string) (string, error) {
	wf, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return wf.Status, nil
}

// SearchByName returns workflows whose name contains the given substring.
func (m *Manager) SearchByName(ctx context.Context, name string) ([]Workflow, error) {
	resp, err := store.NewQuery(WorkflowCollection).
		FilterLike("name", "%"+name+"%").
		Fields(workflowFields...).
		Execute(ctx, m.client)
	if err != nil {
		return nil, fmt.Errorf("failed to search workflows: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	var out []Workflow
	for _, doc := range resp.Docs(WorkflowCollection) {
		wf, err := decodeDoc[Workflow](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *wf)
	}
	return out, nil
}

// Search returns workflows carrying any of the given tags. With no tags it
// returns all workflows.
func (m *Manager) Search(ctx context.Context, tags []string) ([]Workflow, error) {
	var filter string
	if len(tags) > 0 {
		conds := make([]string, 0, len(tags))
		for _, tag := range tags {
			conds = append(conds, fmt.Sprintf(`{tags: {_any: {_eq: %q}}}`, tag))
		}
		filter = fmt.Sprintf("(filter: {_or: [%s]})", strings.Join(conds, ", "))
	}

	query := fmt.Sprintf(`{ %s%s { %s } }`,
		WorkflowCollection, filter, strings.Join(workflowFields, " "))

	resp, err := m.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search workflows: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	var out []Workflow
	for _, doc := range resp.Docs(WorkflowCollection) {
		wf, err := decodeDoc[Workflow](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *wf)
	}
	return out, nil
}

// SetModel stores the synthesized model artifacts on a workflow.
func (m *Manager) SetModel(ctx context.Context, id, sampleData, descriptor, schema string) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	input := map[string]any{
		"sample_data":      sampleData,
		"model_descriptor": descriptor,
		"model_schema":     schema,
		"updated_at":       m.timestamp(),
	}
	if err := m.client.Update(ctx, WorkflowCollection, id, input); err != nil {
		return fmt.Errorf("failed to store model artifacts: %w", err)
	}
	return nil
}

// GetPrompt returns the prompt for a workflow.
func (m *Manager) GetPrompt(ctx context.Context, workflowID string) (*Prompt, error) {
	resp, err := store.NewQuery(PromptCollection).
		Filter("workflow_id", workflowID).
		Fields(promptFields...).
		Execute(ctx, m.client)
	if err != nil {
		return nil, fmt.Errorf("failed to query prompt: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	docs := resp.Docs(PromptCollection)
	if len(docs) == 0 {
		return nil, fmt.Errorf("prompt for workflow %s: %w", workflowID, store.ErrNotFound)
	}
	return decodeDoc[Prompt](docs[0])
}

// UpdatePrompt patches the prompt text and/or source, bumping the version.
// Nil fields are left unchanged.
func (m *Manager) UpdatePrompt(ctx context.Context, workflowID string, text, source *string) (*Prompt, error) {
	prompt, err := m.GetPrompt(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if text == nil && source == nil {
		return prompt, nil
	}

	input := map[string]any{
		"version":    prompt.Version + 1,
		"updated_at": m.timestamp(),
	}
	if text != nil {
		input["text"] = *text
	}
	if source != nil {
		input["source"] = *source
	}

	if err := m.client.Update(ctx, PromptCollection, prompt.DocID, input); err != nil {
		return nil, fmt.Errorf("failed to update prompt: %w", err)
	}
	return m.GetPrompt(ctx, workflowID)
}

// UpsertExample creates an example or, when one with the same input already
// exists for the workflow, updates its output, label and reason.
func (m *Manager) UpsertExample(ctx context.Context, workflowID string, ex Example) (*Example, error) {
	if strings.TrimSpace(ex.Input) == "" {
		return nil, fmt.Errorf("example input is required")
	}
	ex.WorkflowID = workflowID
	if ex.CreatedAt == "" {
		ex.CreatedAt = m.timestamp()
	}

	filter := map[string]any{
		"workflow_id": map[string]any{"_eq": workflowID},
		"input":       map[string]any{"_eq": ex.Input},
	}
	createInput := map[string]any{
		"workflow_id": ex.WorkflowID,
		"input":       ex.Input,
		"output":      ex.Output,
		"label":       ex.Label,
		"reason":      ex.Reason,
		"created_at":  ex.CreatedAt,
	}
	updateInput := map[string]any{
		"output": ex.Output,
		"label":  ex.Label,
		"reason": ex.Reason,
	}

	docID, err := m.client.Upsert(ctx, ExampleCollection, filter, createInput, updateInput)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert example: %w", err)
	}
	ex.DocID = docID
	return &ex, nil
}

// ListExamples returns all examples for a workflow.
func (m *Manager) ListExamples(ctx context.Context, workflowID string) ([]Example, error) {
	resp, err := store.NewQuery(ExampleCollection).
		Filter("workflow_id", workflowID).
		Fields(exampleFields...).
		Execute(ctx, m.client)
	if err != nil {
		return nil, fmt.Errorf("failed to query examples: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	var out []Example
	for _, doc := range resp.Docs(ExampleCollection) {
		ex, err := decodeDoc[Example](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *ex)
	}
	return out, nil
}

// HasLabeledExamples reports whether any example for the workflow carries a
// label. Drives the generate-vs-refine decision.
func (m *Manager) HasLabeledExamples(ctx context.Context, workflowID string) (bool, error) {
	examples, err := m.ListExamples(ctx, workflowID)
	if err != nil {
		return false, err
	}
	for _, ex := range examples {
		if ex.Label != "" {
			return true, nil
		}
	}
	return false, nil
}

// AddUser creates a user document.
func (m *Manager) AddUser(ctx context.Context, u User) (*User, error) {
	if strings.TrimSpace(u.Username) == "" {
		return nil, fmt.Errorf("username is required")
	}
	u.CreatedAt = m.timestamp()

	docID, err := m.client.Create(ctx, UserCollection, map[string]any{
		"username":   u.Username,
		"email":      u.Email,
		"role":       u.Role,
		"created_at": u.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	u.DocID = docID
	m.logger.Info("created user", "username", u.Username)
	return &u, nil
}

// workflowInput builds the mutation input for a workflow document.
func workflowInput(wf Workflow) map[string]any {
	input := map[string]any{
		"name":       wf.Name,
		"status":     wf.Status,
		"created_at": wf.CreatedAt,
		"updated_at": wf.UpdatedAt,
	}
	if wf.Description != "" {
		input["description"] = wf.Description
	}
	if wf.Type != "" {
		input["workflow_type"] = wf.Type
	}
	if len(wf.Tags) > 0 {
		input["tags"] = wf.Tags
	}
	if wf.TotalExamples > 0 {
		input["total_examples"] = wf.TotalExamples
	}
	if wf.LLMModel != "" {
		input["llm_model"] = wf.LLMModel
	}
	if wf.SampleData != "" {
		input["sample_data"] = wf.SampleData
	}
	if wf.ModelDescriptor != "" {
		input["model_descriptor"] = wf.ModelDescriptor
	}
	if wf.ModelSchema != "" {
		input["model_schema"] = wf.ModelSchema
	}
	if wf.CreatedBy != "" {
		input["created_by"] = wf.CreatedBy
	}
	return input
}
