package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"loom/internal/api"
	"loom/internal/store"
	"loom/internal/svcctx"
	"loom/internal/workflow"
)

// GetPromptEndpoint handles GET /api/workflows/{id}/prompt.
type GetPromptEndpoint struct{}

func (e *GetPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/workflows/{id}/prompt", e.handler
}

func (e *GetPromptEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a workflow's prompt
//	@Tags			prompts
//	@Produce		json
//	@Param			id	path		string	true	"Workflow ID"
//	@Success		200	{object}	workflow.Prompt
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/workflows/{id}/prompt [get]
func (e *GetPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	wm := svcctx.WorkflowsFrom(r.Context())
	prompt, err := wm.GetPrompt(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "prompt not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, prompt)
}

func (e *GetPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <workflow-id>",
		Short: "Get a workflow's current prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp workflow.Prompt
			if err := client.Get(cmd.Context(), "/api/workflows/"+args[0]+"/prompt", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// UpdatePromptRequest is the request body for updating a prompt. Nil fields
// are left unchanged; any change bumps the prompt version.
type UpdatePromptRequest struct {
	Text   *string `json:"text,omitempty"`
	Source *string `json:"source,omitempty"`
}

// UpdatePromptEndpoint handles PATCH /api/workflows/{id}/prompt.
type UpdatePromptEndpoint struct{}

func (e *UpdatePromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/workflows/{id}/prompt", e.handler
}

func (e *UpdatePromptEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Update a workflow's prompt
//	@Description	Patch prompt text or source. Any change increments the prompt version.
//	@Tags			prompts
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Workflow ID"
//	@Param			request	body		UpdatePromptRequest	true	"Fields to update"
//	@Success		200		{object}	workflow.Prompt
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/workflows/{id}/prompt [patch]
func (e *UpdatePromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req UpdatePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wm := svcctx.WorkflowsFrom(r.Context())
	prompt, err := wm.UpdatePrompt(r.Context(), id, req.Text, req.Source)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "prompt not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, prompt)
}

func (e *UpdatePromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		text   string
		source string
	)
	cmd := &cobra.Command{
		Use:   "update <workflow-id>",
		Short: "Update a workflow's prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := UpdatePromptRequest{}
			if cmd.Flags().Changed("text") {
				req.Text = &text
			}
			if cmd.Flags().Changed("source") {
				req.Source = &source
			}
			client := api.NewClient(getServerURL())
			var resp workflow.Prompt
			if err := client.Patch(cmd.Context(), "/api/workflows/"+args[0]+"/prompt", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "New prompt text")
	cmd.Flags().StringVar(&source, "source", "", "Prompt source label")
	return cmd
}
