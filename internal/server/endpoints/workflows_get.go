package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"loom/internal/api"
	"loom/internal/store"
	"loom/internal/svcctx"
)

// GetWorkflowEndpoint handles GET /api/workflows/{id}.
type GetWorkflowEndpoint struct{}

func (e *GetWorkflowEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/workflows/{id}", e.handler
}

func (e *GetWorkflowEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a workflow
//	@Tags			workflows
//	@Produce		json
//	@Param			id	path		string	true	"Workflow ID"
//	@Success		200	{object}	workflow.Workflow
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/workflows/{id} [get]
func (e *GetWorkflowEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	wm := svcctx.WorkflowsFrom(r.Context())
	wf, err := wm.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "workflow not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, wf)
}

func (e *GetWorkflowEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <workflow-id>",
		Short: "Get a workflow by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp map[string]any
			if err := client.Get(cmd.Context(), "/api/workflows/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// WorkflowStatusResponse is the response for the workflow status endpoint.
type WorkflowStatusResponse struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	// HasLabeledExamples reports whether any example carries a label, i.e.
	// whether iteration will refine rather than generate cold.
	HasLabeledExamples bool `json:"has_labeled_examples"`
}

// WorkflowStatusEndpoint handles GET /api/workflows/{id}/status.
type WorkflowStatusEndpoint struct{}

func (e *WorkflowStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/workflows/{id}/status", e.handler
}

func (e *WorkflowStatusEndpoint) RequiresInit() bool { return true }

func (e *WorkflowStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	wm := svcctx.WorkflowsFrom(r.Context())
	status, err := wm.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "workflow not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	labeled, err := wm.HasLabeledExamples(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, WorkflowStatusResponse{
		WorkflowID:         id,
		Status:             status,
		HasLabeledExamples: labeled,
	})
}

func (e *WorkflowStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <workflow-id>",
		Short: "Get a workflow's lifecycle status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp WorkflowStatusResponse
			if err := client.Get(cmd.Context(), "/api/workflows/"+args[0]+"/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
