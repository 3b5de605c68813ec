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

// AddUserRequest is the request body for adding a user.
type AddUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

// AddUserEndpoint handles POST /api/users.
type AddUserEndpoint struct{}

func (e *AddUserEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/users", e.handler
}

func (e *AddUserEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Add a user
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		AddUserRequest	true	"User to add"
//	@Success		201		{object}	workflow.User
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/users [post]
func (e *AddUserEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req AddUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wm := svcctx.WorkflowsFrom(r.Context())
	user, err := wm.AddUser(r.Context(), workflow.User{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (e *AddUserEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		username string
		email    string
		role     string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return fmt.Errorf("--username is required")
			}
			client := api.NewClient(getServerURL())
			var resp workflow.User
			err := client.Post(cmd.Context(), "/api/users", AddUserRequest{
				Username: username,
				Email:    email,
				Role:     role,
			}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Username (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&role, "role", "", "User role")
	return cmd
}
