package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"loom/internal/api"
	"loom/internal/store"
	"loom/internal/svcctx"
	"loom/internal/synth"
)

// SynthesizeRequest is the request body for schema synthesis.
type SynthesizeRequest struct {
	// Sample is a representative JSON document for the workflow's output.
	Sample json.RawMessage `json:"sample"`
}

// SynthesizeResponse is the response for schema synthesis.
type SynthesizeResponse struct {
	WorkflowID string          `json:"workflow_id"`
	Descriptor string          `json:"descriptor"`
	Schema     json.RawMessage `json:"schema"`
	Classes    int             `json:"classes"`
}

// SynthesizeEndpoint handles POST /api/workflows/{id}/synthesize.
// The sample document is run through the codegen pipeline; the resulting
// descriptor and JSON schema are stored on the workflow and drive all
// later generation calls.
type SynthesizeEndpoint struct{}

func (e *SynthesizeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/workflows/{id}/synthesize", e.handler
}

func (e *SynthesizeEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Synthesize a workflow data model
//	@Description	Derive a data model from a sample JSON document and attach it to the workflow
//	@Tags			workflows
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Workflow ID"
//	@Param			request	body		SynthesizeRequest	true	"Sample document"
//	@Success		200		{object}	SynthesizeResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/workflows/{id}/synthesize [post]
func (e *SynthesizeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req SynthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Sample) == 0 {
		writeError(w, http.StatusBadRequest, "sample is required")
		return
	}

	wm := svcctx.WorkflowsFrom(r.Context())
	if _, err := wm.Get(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "workflow not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	syn := svcctx.SynthesizerFrom(r.Context())
	if syn == nil {
		writeError(w, http.StatusServiceUnavailable, "synthesizer not initialized")
		return
	}

	var sample any
	if err := json.Unmarshal(req.Sample, &sample); err != nil {
		writeError(w, http.StatusBadRequest, "sample is not valid JSON")
		return
	}

	result, err := syn.Synthesize(r.Context(), sample)
	if err != nil {
		var stageErr *synth.StageError
		if errors.As(err, &stageErr) {
			writeError(w, http.StatusBadGateway, stageErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	schema, err := synth.BuildJSONSchema(result.Classes, synth.ModelClassName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := wm.SetModel(r.Context(), id, string(req.Sample), result.Descriptor, string(schema)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SynthesizeResponse{
		WorkflowID: id,
		Descriptor: result.Descriptor,
		Schema:     schema,
		Classes:    len(result.Classes),
	})
}

func (e *SynthesizeEndpoint) Command(getServerURL func() string) *cobra.Command {
	var sampleFile string
	cmd := &cobra.Command{
		Use:   "synthesize <workflow-id>",
		Short: "Derive a data model from a sample document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sample, err := os.ReadFile(sampleFile)
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			var resp SynthesizeResponse
			err = client.Post(cmd.Context(), "/api/workflows/"+args[0]+"/synthesize", SynthesizeRequest{Sample: sample}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&sampleFile, "sample", "", "Path to a sample JSON document (required)")
	cmd.MarkFlagRequired("sample")
	return cmd
}
