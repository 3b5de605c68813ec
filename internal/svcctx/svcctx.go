// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"loom/internal/cache"
	"loom/internal/config"
	"loom/internal/generate"
	"loom/internal/home"
	"loom/internal/providers"
	"loom/internal/store"
	"loom/internal/synth"
	"loom/internal/tasks"
	"loom/internal/workflow"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	StoreClient *store.Client
	StoreSink   *store.Sink
	Registry    *providers.Registry
	ConfigStore config.Store
	ConfigCache *cache.Cache
	Logger      *slog.Logger
	Home        *home.Dir
	Synthesizer *synth.Synthesizer
	Workflows   *workflow.Manager
	Tasks       *tasks.Store
	Runner      *tasks.Runner
	Fetcher     *generate.Fetcher
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreClientFrom extracts the DefraDB client from context.
func StoreClientFrom(ctx context.Context) *store.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.StoreClient
	}
	return nil
}

// StoreSinkFrom extracts the DefraDB write sink from context.
func StoreSinkFrom(ctx context.Context) *store.Sink {
	if s := ServicesFrom(ctx); s != nil {
		return s.StoreSink
	}
	return nil
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// ConfigStoreFrom extracts the workflow-config store from context.
func ConfigStoreFrom(ctx context.Context) config.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigStore
	}
	return nil
}

// ConfigCacheFrom extracts the workflow-config cache from context.
func ConfigCacheFrom(ctx context.Context) *cache.Cache {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigCache
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// SynthesizerFrom extracts the schema synthesizer from context.
func SynthesizerFrom(ctx context.Context) *synth.Synthesizer {
	if s := ServicesFrom(ctx); s != nil {
		return s.Synthesizer
	}
	return nil
}

// WorkflowsFrom extracts the workflow manager from context.
func WorkflowsFrom(ctx context.Context) *workflow.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Workflows
	}
	return nil
}

// TasksFrom extracts the task store from context.
func TasksFrom(ctx context.Context) *tasks.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Tasks
	}
	return nil
}

// RunnerFrom extracts the task runner from context.
func RunnerFrom(ctx context.Context) *tasks.Runner {
	if s := ServicesFrom(ctx); s != nil {
		return s.Runner
	}
	return nil
}

// FetcherFrom extracts the example fetcher from context.
func FetcherFrom(ctx context.Context) *generate.Fetcher {
	if s := ServicesFrom(ctx); s != nil {
		return s.Fetcher
	}
	return nil
}
