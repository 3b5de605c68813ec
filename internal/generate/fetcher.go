// Package generate produces workflow example outputs through an LLM. A
// fetcher builds prompts from the workflow's prompt text, its synthesized
// model descriptor, and any labeled examples, then validates structured
// responses against the workflow's JSON schema.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"loom/internal/providers"
	"loom/internal/synth"
	"loom/internal/workflow"
)

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	Registry    *providers.Registry
	Provider    string // LLM provider name in the registry (default: "openai")
	Workflows   *workflow.Manager
	Temperature float64       // default: 0.7
	Timeout     time.Duration // per-request timeout (default: 120s)
	Logger      *slog.Logger
}

// Fetcher generates and refines workflow examples.
type Fetcher struct {
	registry    *providers.Registry
	provider    string
	workflows   *workflow.Manager
	temperature float64
	timeout     time.Duration
	logger      *slog.Logger
}

// NewFetcher creates a fetcher.
func NewFetcher(cfg FetcherConfig) (*Fetcher, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if cfg.Workflows == nil {
		return nil, fmt.Errorf("workflow manager is required")
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		registry:    cfg.Registry,
		provider:    cfg.Provider,
		workflows:   cfg.Workflows,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      logger.With("component", "fetcher"),
	}, nil
}

// IterateResult reports a single iteration pass over a workflow's inputs.
type IterateResult struct {
	WorkflowID string             `json:"workflow_id"`
	Refined    bool               `json:"refined"`
	Examples   []workflow.Example `json:"examples"`
}

// Iterate runs one generation pass: every input gets an example document and
// a freshly generated output. When labeled examples already exist the pass
// refines instead, feeding the labels back into the prompt. The workflow
// moves to the iterating status.
func (f *Fetcher) Iterate(ctx context.Context, workflowID string, inputs []string) (*IterateResult, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("at least one input is required")
	}

	wf, err := f.workflows.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	prompt, err := f.workflows.GetPrompt(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	existing, err := f.workflows.ListExamples(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	labeled := labeledOnly(existing)
	refine := len(labeled) > 0

	result := &IterateResult{WorkflowID: workflowID, Refined: refine}
	for _, input := range inputs {
		output, err := f.GenerateOrRefine(ctx, wf, prompt, labeled, input)
		if err != nil {
			return nil, fmt.Errorf("failed to generate output for input: %w", err)
		}
		ex, err := f.workflows.UpsertExample(ctx, workflowID, workflow.Example{
			Input:  input,
			Output: string(output),
		})
		if err != nil {
			return nil, err
		}
		result.Examples = append(result.Examples, *ex)
	}

	if wf.Status == workflow.StatusSetup {
		if _, err := f.workflows.Update(ctx, workflowID, map[string]any{
			"status": workflow.StatusIterating,
		}); err != nil {
			return nil, err
		}
	}

	f.logger.Info("iteration complete",
		"workflow_id", workflowID,
		"inputs", len(inputs),
		"refined", refine)
	return result, nil
}

// GenerateOrRefine produces one structured output for an input. When labeled
// examples are supplied they are replayed as prior conversation turns so the
// model can learn from the corrections.
func (f *Fetcher) GenerateOrRefine(ctx context.Context, wf *workflow.Workflow, prompt *workflow.Prompt, labeled []workflow.Example, input string) (json.RawMessage, error) {
	llm, err := f.registry.GetLLM(f.provider)
	if err != nil {
		return nil, fmt.Errorf("no LLM provider available: %w", err)
	}

	req := &providers.ChatRequest{
		Messages:    f.buildMessages(wf, prompt, labeled, input),
		Model:       wf.LLMModel,
		Temperature: f.temperature,
		Timeout:     f.timeout,
	}
	if wf.ModelSchema != "" {
		req.ResponseFormat = &providers.ResponseFormat{
			Type:       "json_schema",
			Name:       "workflow_output",
			JSONSchema: json.RawMessage(wf.ModelSchema),
		}
	} else {
		req.ResponseFormat = &providers.ResponseFormat{Type: "json_object"}
	}

	res, err := llm.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("generation failed (%s): %s", res.ErrorType, res.ErrorMessage)
	}
	if res.ParsedJSON == nil {
		return nil, fmt.Errorf("model returned non-JSON output")
	}

	if wf.ModelSchema != "" {
		if err := synth.ValidateAgainst(json.RawMessage(wf.ModelSchema), res.ParsedJSON); err != nil {
			return nil, fmt.Errorf("output does not match workflow schema: %w", err)
		}
	}

	f.logger.Debug("generated output",
		"workflow_id", wf.DocID,
		"model", res.ModelUsed,
		"tokens", res.TotalTokens)
	return res.ParsedJSON, nil
}

// GenerateBatch generates a workflow's full example set. It is the work
// behind a batch task and returns a JSON summary payload for the task result.
func (f *Fetcher) GenerateBatch(ctx context.Context, workflowID string) (string, error) {
	wf, err := f.workflows.Get(ctx, workflowID)
	if err != nil {
		return "", err
	}
	prompt, err := f.workflows.GetPrompt(ctx, workflowID)
	if err != nil {
		return "", err
	}

	existing, err := f.workflows.ListExamples(ctx, workflowID)
	if err != nil {
		return "", err
	}
	labeled := labeledOnly(existing)

	total := wf.TotalExamples
	if total <= 0 {
		total = 10
	}

	if _, err := f.workflows.Update(ctx, workflowID, map[string]any{
		"status": workflow.StatusGenerating,
	}); err != nil {
		return "", err
	}

	generated := 0
	for i := 0; i < total; i++ {
		input := fmt.Sprintf("generated example %d of %d", i+1, total)
		output, err := f.GenerateOrRefine(ctx, wf, prompt, labeled, input)
		if err != nil {
			return "", fmt.Errorf("batch stopped after %d examples: %w", generated, err)
		}
		if _, err := f.workflows.UpsertExample(ctx, workflowID, workflow.Example{
			Input:  input,
			Output: string(output),
		}); err != nil {
			return "", err
		}
		generated++
	}

	if _, err := f.workflows.Update(ctx, workflowID, map[string]any{
		"status": workflow.StatusComplete,
	}); err != nil {
		return "", err
	}

	summary, _ := json.Marshal(map[string]any{
		"workflow_id": workflowID,
		"generated":   generated,
		"refined":     len(labeled) > 0,
	})
	f.logger.Info("batch generation complete", "workflow_id", workflowID, "generated", generated)
	return string(summary), nil
}

func (f *Fetcher) buildMessages(wf *workflow.Workflow, prompt *workflow.Prompt, labeled []workflow.Example, input string) []providers.Message {
	var sys strings.Builder
	sys.WriteString("You generate structured data for a workflow. ")
	sys.WriteString("Respond with a single JSON object and nothing else.\n\n")
	sys.WriteString("Task instructions:\n")
	sys.WriteString(prompt.Text)
	if wf.ModelDescriptor != "" {
		sys.WriteString("\n\nThe output must follow this data model:\n")
		sys.WriteString(wf.ModelDescriptor)
	}

	messages := []providers.Message{{Role: "system", Content: sys.String()}}

	// Labeled examples replay as prior turns. Rejected outputs carry the
	// reason so the model avoids repeating the mistake.
	for _, ex := range labeled {
		messages = append(messages, providers.Message{Role: "user", Content: ex.Input})
		content := ex.Output
		if ex.Label == "rejected" && ex.Reason != "" {
			content = fmt.Sprintf("%s\n\n(This output was rejected: %s)", ex.Output, ex.Reason)
		}
		messages = append(messages, providers.Message{Role: "assistant", Content: content})
	}

	messages = append(messages, providers.Message{Role: "user", Content: input})
	return messages
}

func labeledOnly(examples []workflow.Example) []workflow.Example {
	var out []workflow.Example
	for _, ex := range examples {
		if ex.Label != "" {
			out = append(out, ex)
		}
	}
	return out
}
