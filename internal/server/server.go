package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"loom/internal/api"
	"loom/internal/cache"
	"loom/internal/config"
	"loom/internal/generate"
	"loom/internal/home"
	"loom/internal/providers"
	"loom/internal/schema"
	"loom/internal/server/endpoints"
	"loom/internal/store"
	"loom/internal/svcctx"
	"loom/internal/synth"
	"loom/internal/tasks"
	"loom/internal/workflow"
)

// Server is the main Loom HTTP server.
// It manages the DefraDB container lifecycle - starting it on server start
// and stopping it on server shutdown.
type Server struct {
	httpServer   *http.Server
	defraManager *store.DockerManager
	storeClient  *store.Client
	sink         *store.Sink
	runner       *tasks.Runner
	registry     *providers.Registry
	configMgr    *config.Manager
	home         *home.Dir
	logger       *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Home is the loom home directory (scratch dir, DefraDB data)
	Home *home.Dir
	// DefraConfig holds DefraDB container settings
	DefraConfig store.DockerConfig
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		return nil, fmt.Errorf("home directory is required")
	}

	if cfg.DefraConfig.DataPath == "" {
		cfg.DefraConfig.DataPath = cfg.Home.DefraPath()
	}

	defraManager, err := store.NewDockerManager(cfg.DefraConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create defra manager: %w", err)
	}

	// Create provider registry
	registry := providers.NewRegistry()
	registry.SetLogger(cfg.Logger)

	// If config manager provided, set up providers and hot reload
	if cfg.ConfigManager != nil {
		registry.Reload(cfg.ConfigManager.Get().ToProviderRegistryConfig())

		// Watch for config changes
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			registry.Reload(c.ToProviderRegistryConfig())
			cfg.Logger.Info("provider registry reloaded from config")
		})
	}

	s := &Server{
		defraManager: defraManager,
		registry:     registry,
		configMgr:    cfg.ConfigManager,
		home:         cfg.Home,
		logger:       cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{DefraManager: defraManager}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // iterate calls block on the LLM
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server and DefraDB.
// It blocks until the context is cancelled or an error occurs.
// If an existing DefraDB container exists, it validates the configuration matches.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	// Validate any existing container matches our config
	if err := s.defraManager.ValidateExisting(ctx); err != nil {
		s.setNotRunning()
		return fmt.Errorf("existing DefraDB container incompatible: %w", err)
	}

	// Start DefraDB
	s.logger.Info("starting DefraDB")
	if err := s.defraManager.Start(ctx); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to start DefraDB: %w", err)
	}

	// Create client after DefraDB is up
	s.storeClient = store.NewClient(s.defraManager.URL())

	// Verify DefraDB is healthy
	if err := s.storeClient.HealthCheck(ctx); err != nil {
		_ = s.shutdown() // Clean up DefraDB on failure
		return fmt.Errorf("DefraDB health check failed: %w", err)
	}
	s.logger.Info("DefraDB is ready", "url", s.defraManager.URL())

	// Initialize schemas
	s.logger.Info("initializing schemas")
	if err := schema.Initialize(ctx, s.storeClient, s.logger); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	services, err := s.buildServices(ctx)
	if err != nil {
		_ = s.shutdown()
		return err
	}
	s.services = services

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown() // Clean up DefraDB on HTTP error
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// buildServices wires the domain services on top of the healthy store.
func (s *Server) buildServices(ctx context.Context) (*svcctx.Services, error) {
	s.sink = store.NewSink(store.SinkConfig{
		Client: s.storeClient,
		Logger: s.logger,
	})
	s.sink.Start(ctx)

	configStore := config.NewStore(s.storeClient)
	configCache := cache.New(configStore, s.logger)

	workflows := workflow.NewManager(s.storeClient, s.logger)
	taskStore := tasks.NewStore(s.storeClient, s.sink, s.logger)

	var (
		synthCfg config.SynthConfig
		defaults config.DefaultsCfg
	)
	if s.configMgr != nil {
		synthCfg = s.configMgr.Get().Synth
		defaults = s.configMgr.Get().Defaults
	}

	artifacts, err := synth.NewArtifactStore(s.home.ScratchPath(), s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}
	synthesizer := synth.NewSynthesizer(synth.SynthesizerConfig{
		Store: artifacts,
		Generator: synth.NewGenerator(synth.GeneratorConfig{
			Bin:     synthCfg.GeneratorBin,
			Timeout: time.Duration(synthCfg.TimeoutSeconds) * time.Second,
			Logger:  s.logger,
		}),
		Logger: s.logger,
	})

	fetcher, err := generate.NewFetcher(generate.FetcherConfig{
		Registry:  s.registry,
		Provider:  defaults.LLMProvider,
		Workflows: workflows,
		Logger:    s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}

	s.runner, err = tasks.NewRunner(tasks.RunnerConfig{
		Workers: defaults.MaxWorkers,
		Store:   taskStore,
		Logger:  s.logger,
		Run: func(ctx context.Context, task *tasks.Task) (string, error) {
			return fetcher.GenerateBatch(ctx, task.WorkflowID)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task runner: %w", err)
	}
	s.runner.Start(ctx)

	// Requeue tasks a previous process left unfinished.
	if unfinished, err := taskStore.ListUnfinished(ctx); err != nil {
		s.logger.Warn("failed to list unfinished tasks", "error", err)
	} else {
		for _, task := range unfinished {
			if err := s.runner.Enqueue(task.DocID); err != nil {
				s.logger.Warn("failed to requeue task", "task_id", task.DocID, "error", err)
				break
			}
		}
		if len(unfinished) > 0 {
			s.logger.Info("requeued unfinished tasks", "count", len(unfinished))
		}
	}

	return &svcctx.Services{
		StoreClient: s.storeClient,
		StoreSink:   s.sink,
		Registry:    s.registry,
		ConfigStore: configStore,
		ConfigCache: configCache,
		Logger:      s.logger,
		Home:        s.home,
		Synthesizer: synthesizer,
		Workflows:   workflows,
		Tasks:       taskStore,
		Runner:      s.runner,
		Fetcher:     fetcher,
	}, nil
}

// shutdown performs graceful shutdown of the HTTP server, the task runner,
// the write sink, and DefraDB, in that order.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Drain in-flight tasks, then flush pending writes
	if s.runner != nil {
		s.runner.Stop()
	}
	if s.sink != nil {
		s.sink.Stop()
	}

	// Stop DefraDB
	s.logger.Info("stopping DefraDB")
	if err := s.defraManager.Stop(shutdownCtx); err != nil {
		s.logger.Error("DefraDB stop error", "error", err)
	}

	// Close Docker client
	if err := s.defraManager.Close(); err != nil {
		s.logger.Error("DefraDB manager close error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// StoreClient returns the DefraDB client.
// Returns nil if the server hasn't started yet.
func (s *Server) StoreClient() *store.Client {
	return s.storeClient
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// PortString formats a numeric port for Config.Port.
func PortString(port int) string {
	return strconv.Itoa(port)
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the store or task runner aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.storeClient == nil || s.services == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
