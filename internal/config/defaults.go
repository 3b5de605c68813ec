package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// DefaultEntries returns the default configuration entries.
// These are seeded into DefraDB on first run.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// LLM Providers
		// ===================
		{
			Key:         "providers.llm.openai.type",
			Value:       "openai",
			Description: "LLM provider type for OpenAI",
		},
		{
			Key:         "providers.llm.openai.model",
			Value:       "gpt-4o",
			Description: "Default model for OpenAI",
		},
		{
			Key:         "providers.llm.openai.api_key",
			Value:       "${OPENAI_API_KEY}",
			Description: "OpenAI API key (uses environment variable)",
		},
		{
			Key:         "providers.llm.openai.rate_limit",
			Value:       10.0,
			Description: "Rate limit in requests per second for OpenAI",
		},
		{
			Key:         "providers.llm.openai.enabled",
			Value:       true,
			Description: "Whether the OpenAI LLM provider is enabled",
		},
		{
			Key:         "providers.llm.openai.timeout_seconds",
			Value:       300,
			Description: "HTTP timeout in seconds for OpenAI requests",
		},
		{
			Key:         "providers.llm.openai.max_retries",
			Value:       5,
			Description: "Maximum retry attempts for failed OpenAI requests",
		},

		// ===================
		// Generation Defaults
		// ===================
		{
			Key:         "defaults.llm_provider",
			Value:       "openai",
			Description: "Default LLM provider used for data generation",
		},
		{
			Key:         "defaults.max_workers",
			Value:       10,
			Description: "Maximum concurrent task runner workers",
		},
		{
			Key:         "generation.temperature",
			Value:       0.7,
			Description: "Sampling temperature for generation calls",
		},
		{
			Key:         "generation.max_examples",
			Value:       10,
			Description: "Maximum labeled examples included per generation prompt",
		},
		{
			Key:         "generation.batch_size",
			Value:       5,
			Description: "Records produced per generation task",
		},

		// ===================
		// Schema Synthesis
		// ===================
		{
			Key:         "synth.generator_bin",
			Value:       "datamodel-codegen",
			Description: "External model generator binary",
		},
		{
			Key:         "synth.timeout_seconds",
			Value:       60,
			Description: "Timeout for a single generator run",
		},
	}
}

// SeedDefaults seeds default configuration entries into the store.
// This is idempotent - existing entries are not overwritten.
func SeedDefaults(ctx context.Context, store Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultEntries()
	seeded := 0
	skipped := 0

	for _, entry := range defaults {
		existing, err := store.Get(ctx, entry.Key)
		if err != nil {
			return fmt.Errorf("failed to check key %q: %w", entry.Key, err)
		}

		if existing != nil {
			skipped++
			continue
		}

		if err := store.Set(ctx, entry.Key, entry.Value, entry.Description); err != nil {
			return fmt.Errorf("failed to seed key %q: %w", entry.Key, err)
		}
		seeded++
	}

	if seeded > 0 {
		logger.Info("seeded default config entries", "seeded", seeded, "skipped", skipped)
	}
	return nil
}

// GetDefault returns the default value for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ResetToDefault resets a config key to its default value.
// Returns ErrNoDefault if no default exists for the key.
func ResetToDefault(ctx context.Context, store Store, key string) error {
	def := GetDefault(key)
	if def == nil {
		return fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return store.Set(ctx, key, def.Value, def.Description)
}
