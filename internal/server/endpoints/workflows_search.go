package endpoints

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/api"
	"loom/internal/svcctx"
	"loom/internal/workflow"
)

// SearchWorkflowsResponse is the response for the workflow search endpoint.
type SearchWorkflowsResponse struct {
	Workflows []workflow.Workflow `json:"workflows"`
	Count     int                 `json:"count"`
}

// SearchWorkflowsEndpoint handles GET /api/workflows/search.
type SearchWorkflowsEndpoint struct{}

func (e *SearchWorkflowsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/workflows/search", e.handler
}

func (e *SearchWorkflowsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Search workflows
//	@Description	List workflows, filtered by tags (comma separated, any match) or by name substring
//	@Tags			workflows
//	@Produce		json
//	@Param			tags	query		string	false	"Comma-separated tags"
//	@Param			name	query		string	false	"Name substring"
//	@Success		200		{object}	SearchWorkflowsResponse
//	@Router			/api/workflows/search [get]
func (e *SearchWorkflowsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var tags []string
	if raw := r.URL.Query().Get("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	wm := svcctx.WorkflowsFrom(r.Context())

	var workflows []workflow.Workflow
	var err error
	if name := r.URL.Query().Get("name"); name != "" {
		workflows, err = wm.SearchByName(r.Context(), name)
	} else {
		workflows, err = wm.Search(r.Context(), tags)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SearchWorkflowsResponse{
		Workflows: workflows,
		Count:     len(workflows),
	})
}

func (e *SearchWorkflowsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		tags []string
		name string
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search workflows by tag or name",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/workflows/search"
			if name != "" {
				path += "?name=" + url.QueryEscape(name)
			} else if len(tags) > 0 {
				path += "?tags=" + strings.Join(tags, ",")
			}
			client := api.NewClient(getServerURL())
			var resp SearchWorkflowsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Tags to match (any)")
	cmd.Flags().StringVar(&name, "name", "", "Name substring to match")
	return cmd
}
