package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"loom/internal/api"
	"loom/internal/store"
	"loom/internal/svcctx"
)

// ConfigEntryRequest is the request body for creating or updating a
// workflow-config entry.
type ConfigEntryRequest struct {
	Key         string `json:"key,omitempty"`
	Value       any    `json:"value"`
	Description string `json:"description,omitempty"`
}

// CreateConfigEndpoint handles POST /api/config.
type CreateConfigEndpoint struct{}

func (e *CreateConfigEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/config", e.handler
}

func (e *CreateConfigEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Create a workflow-config entry
//	@Tags			config
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ConfigEntryRequest	true	"Config entry"
//	@Success		201		{object}	config.Entry
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/config [post]
func (e *CreateConfigEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ConfigEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	cc := svcctx.ConfigCacheFrom(r.Context())
	if cc == nil {
		writeError(w, http.StatusServiceUnavailable, "config cache not initialized")
		return
	}

	if err := cc.Set(r.Context(), req.Key, req.Value, req.Description); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entry, err := cc.Get(r.Context(), req.Key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

func (e *CreateConfigEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		key         string
		value       string
		description string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workflow-config entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				return fmt.Errorf("--key is required")
			}
			client := api.NewClient(getServerURL())
			var resp map[string]any
			err := client.Post(cmd.Context(), "/api/config", ConfigEntryRequest{
				Key:         key,
				Value:       value,
				Description: description,
			}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Config key (required)")
	cmd.Flags().StringVar(&value, "value", "", "Config value")
	cmd.Flags().StringVar(&description, "description", "", "Config description")
	return cmd
}

// GetConfigEndpoint handles GET /api/config/{key}. Reads go through the
// in-process cache; only the first read for a key hits the store.
type GetConfigEndpoint struct{}

func (e *GetConfigEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/config/{key}", e.handler
}

func (e *GetConfigEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a workflow-config entry
//	@Tags			config
//	@Produce		json
//	@Param			key	path		string	true	"Config key"
//	@Success		200	{object}	config.Entry
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/config/{key} [get]
func (e *GetConfigEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	cc := svcctx.ConfigCacheFrom(r.Context())
	entry, err := cc.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "config entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (e *GetConfigEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a workflow-config entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp map[string]any
			if err := client.Get(cmd.Context(), "/api/config/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// UpdateConfigEndpoint handles PATCH /api/config/{key}.
type UpdateConfigEndpoint struct{}

func (e *UpdateConfigEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/config/{key}", e.handler
}

func (e *UpdateConfigEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Update a workflow-config entry
//	@Tags			config
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string				true	"Config key"
//	@Param			request	body		ConfigEntryRequest	true	"New value"
//	@Success		200		{object}	config.Entry
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/config/{key} [patch]
func (e *UpdateConfigEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req ConfigEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cc := svcctx.ConfigCacheFrom(r.Context())
	if err := cc.Set(r.Context(), key, req.Value, req.Description); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entry, err := cc.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (e *UpdateConfigEndpoint) Command(getServerURL func() string) *cobra.Command {
	var value string
	cmd := &cobra.Command{
		Use:   "update <key>",
		Short: "Update a workflow-config entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp map[string]any
			err := client.Patch(cmd.Context(), "/api/config/"+args[0], ConfigEntryRequest{Value: value}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "New config value")
	return cmd
}

// ListConfigEndpoint handles GET /api/config.
type ListConfigEndpoint struct{}

func (e *ListConfigEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/config", e.handler
}

func (e *ListConfigEndpoint) RequiresInit() bool { return true }

func (e *ListConfigEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cs := svcctx.ConfigStoreFrom(r.Context())
	if cs == nil {
		writeError(w, http.StatusServiceUnavailable, "config store not initialized")
		return
	}

	entries, err := cs.GetAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (e *ListConfigEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all workflow-config entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp map[string]any
			if err := client.Get(cmd.Context(), "/api/config", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// DehydrateRequest is the request body for cache dehydration.
type DehydrateRequest struct {
	// Pattern matches cache keys: exact key, "prefix*", or "*" for all.
	Pattern string `json:"pattern"`
}

// DehydrateResponse reports what the dehydration removed.
type DehydrateResponse struct {
	Pattern string `json:"pattern"`
	Removed int    `json:"removed"`
}

// DehydrateCacheEndpoint handles POST /api/cache/dehydrate.
type DehydrateCacheEndpoint struct{}

func (e *DehydrateCacheEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/cache/dehydrate", e.handler
}

func (e *DehydrateCacheEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Dehydrate the config cache
//	@Description	Evict cached config entries matching a key pattern so the next read reloads from the store
//	@Tags			config
//	@Accept			json
//	@Produce		json
//	@Param			request	body		DehydrateRequest	true	"Key pattern"
//	@Success		200		{object}	DehydrateResponse
//	@Router			/api/cache/dehydrate [post]
func (e *DehydrateCacheEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req DehydrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cc := svcctx.ConfigCacheFrom(r.Context())
	if cc == nil {
		writeError(w, http.StatusServiceUnavailable, "config cache not initialized")
		return
	}

	removed := cc.Dehydrate(req.Pattern)
	writeJSON(w, http.StatusOK, DehydrateResponse{Pattern: req.Pattern, Removed: removed})
}

func (e *DehydrateCacheEndpoint) Command(getServerURL func() string) *cobra.Command {
	var pattern string
	cmd := &cobra.Command{
		Use:   "dehydrate",
		Short: "Evict cached config entries by key pattern",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DehydrateResponse
			err := client.Post(cmd.Context(), "/api/cache/dehydrate", DehydrateRequest{Pattern: pattern}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "*", "Key pattern (exact, prefix*, or *)")
	return cmd
}
