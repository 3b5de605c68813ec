// Package tasks tracks batch-generation tasks and runs them on a worker pool.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"loom/internal/store"
)

// Task statuses.
const (
	StatusStarting  = "starting"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Collection is the DefraDB collection for task documents.
const Collection = "Task"

// Task is a task document. Main tasks have no parent; subtasks link to their
// parent via parent_id.
type Task struct {
	DocID       string `json:"_docID,omitempty"`
	WorkflowID  string `json:"workflow_id"`
	ParentID    string `json:"parent_id,omitempty"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Main        bool   `json:"main"`
	Result      string `json:"result,omitempty"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// Progress summarises main-task completion for a workflow.
type Progress struct {
	WorkflowID string  `json:"workflow_id"`
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Percent    float64 `json:"percent"`
}

var taskFields = []string{
	"_docID", "workflow_id", "parent_id", "name", "status", "main",
	"result", "error", "created_at", "completed_at",
}

// Store manages task documents. Reads go through the client; status updates
// flow through the async sink.
type Store struct {
	client *store.Client
	sink   *store.Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a task store.
func NewStore(client *store.Client, sink *store.Sink, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		sink:   sink,
		logger: logger.With("component", "tasks"),
		now:    time.Now,
	}
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// Create creates a main task for a workflow.
func (s *Store) Create(ctx context.Context, workflowID, name string) (*Task, error) {
	return s.create(ctx, workflowID, "", name, true)
}

// CreateSubtask creates a subtask under a parent task.
func (s *Store) CreateSubtask(ctx context.Context, workflowID, parentID, name string) (*Task, error) {
	return s.create(ctx, workflowID, parentID, name, false)
}

func (s *Store) create(ctx context.Context, workflowID, parentID, name string, main bool) (*Task, error) {
	task := Task{
		WorkflowID: workflowID,
		ParentID:   parentID,
		Name:       name,
		Status:     StatusStarting,
		Main:       main,
		CreatedAt:  s.timestamp(),
	}

	input := map[string]any{
		"workflow_id": task.WorkflowID,
		"name":        task.Name,
		"status":      task.Status,
		"main":        task.Main,
		"created_at":  task.CreatedAt,
	}
	if parentID != "" {
		input["parent_id"] = parentID
	}

	docID, err := s.client.Create(ctx, Collection, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	task.DocID = docID
	s.logger.Info("created task", "task_id", docID, "workflow_id", workflowID, "main", main)
	return &task, nil
}

// Get retrieves a task by document ID.
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	resp, err := store.NewQuery(Collection).
		Filter("_docID", id).
		Fields(taskFields...).
		Execute(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	docs := resp.Docs(Collection)
	if len(docs) == 0 {
		return nil, fmt.Errorf("task %s: %w", id, store.ErrNotFound)
	}

	b, err := json.Marshal(docs[0])
	if err != nil {
		return nil, err
	}
	var task Task
	if err := json.Unmarshal(b, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListMain returns all main tasks for a workflow.
func (s *Store) ListMain(ctx context.Context, workflowID string) ([]Task, error) {
	resp, err := store.NewQuery(Collection).
		Filter("workflow_id", workflowID).
		Filter("main", true).
		Fields(taskFields...).
		Execute(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	var out []Task
	for _, doc := range resp.Docs(Collection) {
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		var task Task
		if err := json.Unmarshal(b, &task); err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}

// ListUnfinished returns main tasks that never reached a terminal status,
// across all workflows. The server requeues these at startup so a restart
// doesn't strand queued batch generations.
func (s *Store) ListUnfinished(ctx context.Context) ([]Task, error) {
	resp, err := store.NewQuery(Collection).
		FilterIn("status", []string{StatusStarting, StatusRunning}).
		Filter("main", true).
		Fields(taskFields...).
		Execute(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("failed to query unfinished tasks: %w", err)
	}
	if errMsg := resp.Error(); errMsg != "" {
		return nil, fmt.Errorf("graphql error: %s", errMsg)
	}

	var out []Task
	for _, doc := range resp.Docs(Collection) {
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		var task Task
		if err := json.Unmarshal(b, &task); err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}

// Progress reports main-task completion for a workflow. A workflow with no
// main tasks is ErrNotFound, matching the 404 the progress endpoint returns.
func (s *Store) Progress(ctx context.Context, workflowID string) (*Progress, error) {
	mains, err := s.ListMain(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if len(mains) == 0 {
		return nil, fmt.Errorf("no tasks for workflow %s: %w", workflowID, store.ErrNotFound)
	}

	completed := 0
	for _, t := range mains {
		if t.Status == StatusCompleted {
			completed++
		}
	}

	return &Progress{
		WorkflowID: workflowID,
		Total:      len(mains),
		Completed:  completed,
		Percent:    float64(completed) / float64(len(mains)) * 100,
	}, nil
}

// MarkRunning updates a task to running through the sink.
func (s *Store) MarkRunning(task *Task) {
	task.Status = StatusRunning
	s.sendStatus(task.DocID, map[string]any{"status": StatusRunning})
}

// MarkCompleted records a successful result.
func (s *Store) MarkCompleted(task *Task, result string) {
	task.Status = StatusCompleted
	task.Result = result
	task.CompletedAt = s.timestamp()
	s.sendStatus(task.DocID, map[string]any{
		"status":       StatusCompleted,
		"result":       result,
		"completed_at": task.CompletedAt,
	})
}

// MarkFailed records a failure.
func (s *Store) MarkFailed(task *Task, taskErr error) {
	task.Status = StatusFailed
	task.Error = taskErr.Error()
	task.CompletedAt = s.timestamp()
	s.sendStatus(task.DocID, map[string]any{
		"status":       StatusFailed,
		"error":        taskErr.Error(),
		"completed_at": task.CompletedAt,
	})
}

func (s *Store) sendStatus(docID string, doc map[string]any) {
	if s.sink == nil {
		return
	}
	s.sink.Send(store.WriteOp{
		Collection: Collection,
		DocID:      docID,
		Document:   doc,
		Op:         store.OpUpdate,
	})
}
