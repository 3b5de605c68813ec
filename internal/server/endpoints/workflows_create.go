package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"loom/internal/api"
	"loom/internal/svcctx"
	"loom/internal/workflow"
)

// CreateWorkflowRequest is the request body for creating a workflow.
type CreateWorkflowRequest struct {
	Name          string             `json:"name"`
	Description   string             `json:"description,omitempty"`
	Type          string             `json:"workflow_type,omitempty"`
	Tags          []string           `json:"tags,omitempty"`
	TotalExamples int                `json:"total_examples,omitempty"`
	LLMModel      string             `json:"llm_model,omitempty"`
	CreatedBy     string             `json:"created_by,omitempty"`
	Prompt        string             `json:"prompt"`
	Examples      []workflow.Example `json:"examples,omitempty"`
}

// CreateWorkflowResponse is the response for creating a workflow.
type CreateWorkflowResponse struct {
	Workflow *workflow.Workflow `json:"workflow"`
	Prompt   *workflow.Prompt   `json:"prompt"`
	Examples []workflow.Example `json:"examples,omitempty"`
}

// CreateWorkflowEndpoint handles POST /api/workflows.
type CreateWorkflowEndpoint struct{}

func (e *CreateWorkflowEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/workflows", e.handler
}

func (e *CreateWorkflowEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Create a workflow
//	@Description	Create a workflow together with its initial prompt and optional seed examples
//	@Tags			workflows
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateWorkflowRequest	true	"Workflow creation request"
//	@Success		201		{object}	CreateWorkflowResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/workflows [post]
func (e *CreateWorkflowEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wm := svcctx.WorkflowsFrom(r.Context())
	if wm == nil {
		writeError(w, http.StatusServiceUnavailable, "workflow manager not initialized")
		return
	}

	result, err := wm.Create(r.Context(), workflow.CreateRequest{
		Name:          req.Name,
		Description:   req.Description,
		Type:          req.Type,
		Tags:          req.Tags,
		TotalExamples: req.TotalExamples,
		LLMModel:      req.LLMModel,
		CreatedBy:     req.CreatedBy,
		Prompt:        req.Prompt,
		Examples:      req.Examples,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, CreateWorkflowResponse{
		Workflow: &result.Workflow,
		Prompt:   &result.Prompt,
		Examples: result.Examples,
	})
}

func (e *CreateWorkflowEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		name     string
		prompt   string
		tags     []string
		llmModel string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || prompt == "" {
				return fmt.Errorf("--name and --prompt are required")
			}
			client := api.NewClient(getServerURL())
			var resp CreateWorkflowResponse
			err := client.Post(cmd.Context(), "/api/workflows", CreateWorkflowRequest{
				Name:     name,
				Prompt:   prompt,
				Tags:     tags,
				LLMModel: llmModel,
			}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Workflow name (required)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Initial prompt text (required)")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Workflow tags")
	cmd.Flags().StringVar(&llmModel, "model", "", "LLM model override")
	return cmd
}
