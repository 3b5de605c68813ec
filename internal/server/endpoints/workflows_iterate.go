package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"loom/internal/api"
	"loom/internal/generate"
	"loom/internal/store"
	"loom/internal/svcctx"
)

// IterateRequest is the request body for an iteration pass.
type IterateRequest struct {
	Inputs []string `json:"inputs"`
}

// IterateWorkflowEndpoint handles POST /api/workflows/{id}/iterate.
type IterateWorkflowEndpoint struct{}

func (e *IterateWorkflowEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/workflows/{id}/iterate", e.handler
}

func (e *IterateWorkflowEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Run an iteration pass
//	@Description	Generate an output for every input. When labeled examples exist the pass refines using the labels.
//	@Tags			workflows
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Workflow ID"
//	@Param			request	body		IterateRequest	true	"Inputs to generate outputs for"
//	@Success		200		{object}	generate.IterateResult
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/workflows/{id}/iterate [post]
func (e *IterateWorkflowEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req IterateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Inputs) == 0 {
		writeError(w, http.StatusBadRequest, "inputs is required")
		return
	}

	fetcher := svcctx.FetcherFrom(r.Context())
	if fetcher == nil {
		writeError(w, http.StatusServiceUnavailable, "fetcher not initialized")
		return
	}

	result, err := fetcher.Iterate(r.Context(), id, req.Inputs)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "workflow not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (e *IterateWorkflowEndpoint) Command(getServerURL func() string) *cobra.Command {
	var inputs []string
	cmd := &cobra.Command{
		Use:   "iterate <workflow-id>",
		Short: "Generate or refine outputs for a set of inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(inputs) == 0 {
				return fmt.Errorf("at least one --input is required")
			}
			client := api.NewClient(getServerURL())
			var resp generate.IterateResult
			err := client.Post(cmd.Context(), "/api/workflows/"+args[0]+"/iterate", IterateRequest{Inputs: inputs}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input to generate an output for (repeatable)")
	return cmd
}
