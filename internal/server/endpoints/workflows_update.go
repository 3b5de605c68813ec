package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/api"
	"loom/internal/store"
	"loom/internal/svcctx"
)

// UpdateWorkflowEndpoint handles PATCH /api/workflows/{id}.
type UpdateWorkflowEndpoint struct{}

func (e *UpdateWorkflowEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/workflows/{id}", e.handler
}

func (e *UpdateWorkflowEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Update a workflow
//	@Description	Partially update workflow fields. Unknown fields are rejected.
//	@Tags			workflows
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Workflow ID"
//	@Param			request	body		map[string]any	true	"Fields to update"
//	@Success		200		{object}	workflow.Workflow
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/workflows/{id} [patch]
func (e *UpdateWorkflowEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	wm := svcctx.WorkflowsFrom(r.Context())
	wf, err := wm.Update(r.Context(), id, updates)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "workflow not found")
		case strings.Contains(err.Error(), "not updatable"):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, wf)
}

func (e *UpdateWorkflowEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		name   string
		status string
	)
	cmd := &cobra.Command{
		Use:   "update <workflow-id>",
		Short: "Update workflow fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates := map[string]any{}
			if name != "" {
				updates["name"] = name
			}
			if status != "" {
				updates["status"] = status
			}
			client := api.NewClient(getServerURL())
			var resp map[string]any
			if err := client.Patch(cmd.Context(), "/api/workflows/"+args[0], updates, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New workflow name")
	cmd.Flags().StringVar(&status, "status", "", "New workflow status")
	return cmd
}

// DuplicateWorkflowEndpoint handles POST /api/workflows/{id}/duplicate.
type DuplicateWorkflowEndpoint struct{}

func (e *DuplicateWorkflowEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/workflows/{id}/duplicate", e.handler
}

func (e *DuplicateWorkflowEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Duplicate a workflow
//	@Description	Copy a workflow and its current prompt into a fresh workflow in the setup state
//	@Tags			workflows
//	@Produce		json
//	@Param			id	path		string	true	"Workflow ID"
//	@Success		201	{object}	workflow.Workflow
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/workflows/{id}/duplicate [post]
func (e *DuplicateWorkflowEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	wm := svcctx.WorkflowsFrom(r.Context())
	dup, err := wm.Duplicate(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "workflow not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dup)
}

func (e *DuplicateWorkflowEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <workflow-id>",
		Short: "Duplicate a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp map[string]any
			if err := client.Post(cmd.Context(), "/api/workflows/"+args[0]+"/duplicate", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
