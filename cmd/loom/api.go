package main

import (
	"github.com/spf13/cobra"

	"loom/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Loom server via HTTP.

These commands require a running server (loom serve).
Use --server to specify a custom server URL.

Examples:
  loom api health                      # Check server health
  loom api workflows create --name x   # Create a workflow
  loom api workflows get <id>          # Get a specific workflow`,
}

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "Workflow management commands",
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Workflow prompt commands",
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Background task commands",
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Runtime configuration commands",
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "User management commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Workflows as subcommand group
	for _, ep := range endpoints.WorkflowCommands() {
		workflowsCmd.AddCommand(ep.Command(getServerURL))
	}

	// Prompt as subcommand group
	promptCmd.AddCommand((&endpoints.GetPromptEndpoint{}).Command(getServerURL))
	promptCmd.AddCommand((&endpoints.UpdatePromptEndpoint{}).Command(getServerURL))

	// Tasks as subcommand group
	tasksCmd.AddCommand((&endpoints.GetTaskEndpoint{}).Command(getServerURL))

	// Config as subcommand group, cache eviction alongside
	for _, ep := range endpoints.ConfigCommands() {
		configCmd.AddCommand(ep.Command(getServerURL))
	}
	configCmd.AddCommand((&endpoints.DehydrateCacheEndpoint{}).Command(getServerURL))

	// Users as subcommand group
	usersCmd.AddCommand((&endpoints.AddUserEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(workflowsCmd)
	apiCmd.AddCommand(promptCmd)
	apiCmd.AddCommand(tasksCmd)
	apiCmd.AddCommand(configCmd)
	apiCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(apiCmd)
}
