package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"loom/internal/api"
	"loom/internal/store"
	"loom/internal/svcctx"
	"loom/internal/tasks"
)

// GenerateTaskResponse is the response for starting a batch-generation task.
type GenerateTaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// GenerateWorkflowEndpoint handles POST /api/workflows/{id}/generate.
// It creates a main task and queues it on the runner; generation happens
// asynchronously and progress is tracked through the task endpoints.
type GenerateWorkflowEndpoint struct{}

func (e *GenerateWorkflowEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/workflows/{id}/generate", e.handler
}

func (e *GenerateWorkflowEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Start batch generation
//	@Description	Create a generation task for the workflow and queue it. Returns 202 with the task ID.
//	@Tags			workflows
//	@Produce		json
//	@Param			id	path		string	true	"Workflow ID"
//	@Success		202	{object}	GenerateTaskResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		429	{object}	ErrorResponse
//	@Router			/api/workflows/{id}/generate [post]
func (e *GenerateWorkflowEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	wm := svcctx.WorkflowsFrom(r.Context())
	if _, err := wm.Get(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "workflow not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ts := svcctx.TasksFrom(r.Context())
	runner := svcctx.RunnerFrom(r.Context())
	if ts == nil || runner == nil {
		writeError(w, http.StatusServiceUnavailable, "task runner not initialized")
		return
	}

	task, err := ts.Create(r.Context(), id, fmt.Sprintf("Batch generation for workflow %s", id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := runner.Enqueue(task.DocID); err != nil {
		ts.MarkFailed(task, err)
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, GenerateTaskResponse{
		TaskID: task.DocID,
		Status: task.Status,
	})
}

func (e *GenerateWorkflowEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <workflow-id>",
		Short: "Start batch generation for a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp GenerateTaskResponse
			if err := client.Post(cmd.Context(), "/api/workflows/"+args[0]+"/generate", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetTaskEndpoint handles GET /api/tasks/{id}.
type GetTaskEndpoint struct{}

func (e *GetTaskEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/tasks/{id}", e.handler
}

func (e *GetTaskEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a task
//	@Tags			tasks
//	@Produce		json
//	@Param			id	path		string	true	"Task ID"
//	@Success		200	{object}	tasks.Task
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/tasks/{id} [get]
func (e *GetTaskEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	ts := svcctx.TasksFrom(r.Context())
	task, err := ts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (e *GetTaskEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <task-id>",
		Short: "Get a task by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp tasks.Task
			if err := client.Get(cmd.Context(), "/api/tasks/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ProgressEndpoint handles GET /api/workflows/{id}/progress.
type ProgressEndpoint struct{}

func (e *ProgressEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/workflows/{id}/progress", e.handler
}

func (e *ProgressEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get generation progress
//	@Description	Percentage of completed main tasks. 404 if the workflow has no tasks yet.
//	@Tags			workflows
//	@Produce		json
//	@Param			id	path		string	true	"Workflow ID"
//	@Success		200	{object}	tasks.Progress
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/workflows/{id}/progress [get]
func (e *ProgressEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	ts := svcctx.TasksFrom(r.Context())
	prog, err := ts.Progress(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no tasks for workflow")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, prog)
}

func (e *ProgressEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <workflow-id>",
		Short: "Get batch generation progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp tasks.Progress
			if err := client.Get(cmd.Context(), "/api/workflows/"+args[0]+"/progress", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
