package endpoints

import (
	"loom/internal/api"
	"loom/internal/store"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	DefraManager *store.DockerManager
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{DefraManager: cfg.DefraManager},

		// Workflow endpoints
		&CreateWorkflowEndpoint{},
		&GetWorkflowEndpoint{},
		&UpdateWorkflowEndpoint{},
		&DuplicateWorkflowEndpoint{},
		&SearchWorkflowsEndpoint{},
		&WorkflowStatusEndpoint{},

		// Model synthesis
		&SynthesizeEndpoint{},

		// Generation endpoints
		&IterateWorkflowEndpoint{},
		&GenerateWorkflowEndpoint{},
		&ProgressEndpoint{},
		&GetTaskEndpoint{},

		// Prompt endpoints
		&GetPromptEndpoint{},
		&UpdatePromptEndpoint{},

		// Workflow-config endpoints
		&ListConfigEndpoint{},
		&CreateConfigEndpoint{},
		&GetConfigEndpoint{},
		&UpdateConfigEndpoint{},
		&DehydrateCacheEndpoint{},

		// User endpoints
		&AddUserEndpoint{},
	}
}

// WorkflowCommands groups workflow commands under the "workflows" subcommand.
func WorkflowCommands() []api.Endpoint {
	return []api.Endpoint{
		&CreateWorkflowEndpoint{},
		&GetWorkflowEndpoint{},
		&UpdateWorkflowEndpoint{},
		&DuplicateWorkflowEndpoint{},
		&SearchWorkflowsEndpoint{},
		&WorkflowStatusEndpoint{},
		&SynthesizeEndpoint{},
		&IterateWorkflowEndpoint{},
		&GenerateWorkflowEndpoint{},
		&ProgressEndpoint{},
	}
}

// ConfigCommands groups config commands under the "config" subcommand.
func ConfigCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListConfigEndpoint{},
		&CreateConfigEndpoint{},
		&GetConfigEndpoint{},
		&UpdateConfigEndpoint{},
	}
}
