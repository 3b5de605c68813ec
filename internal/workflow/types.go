package workflow

import "encoding/json"

// Workflow statuses.
const (
	StatusSetup      = "setup"
	StatusIterating  = "iterating"
	StatusGenerating = "generating"
	StatusComplete   = "complete"
)

// Collection names in DefraDB.
const (
	WorkflowCollection = "Workflow"
	PromptCollection   = "Prompt"
	ExampleCollection  = "Example"
	UserCollection     = "User"
)

// Workflow is a workflow document.
type Workflow struct {
	DocID           string   `json:"_docID,omitempty"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Type            string   `json:"workflow_type,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Status          string   `json:"status,omitempty"`
	TotalExamples   int      `json:"total_examples,omitempty"`
	LLMModel        string   `json:"llm_model,omitempty"`
	SampleData      string   `json:"sample_data,omitempty"`
	ModelDescriptor string   `json:"model_descriptor,omitempty"`
	ModelSchema     string   `json:"model_schema,omitempty"`
	CreatedBy       string   `json:"created_by,omitempty"`
	CreatedAt       string   `json:"created_at,omitempty"`
	UpdatedAt       string   `json:"updated_at,omitempty"`
}

// Prompt is the prompt attached to a workflow.
type Prompt struct {
	DocID      string `json:"_docID,omitempty"`
	WorkflowID string `json:"workflow_id"`
	Text       string `json:"text"`
	Source     string `json:"source,omitempty"`
	Version    int    `json:"version"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// Example is a labeled example attached to a workflow.
type Example struct {
	DocID      string `json:"_docID,omitempty"`
	WorkflowID string `json:"workflow_id"`
	Input      string `json:"input"`
	Output     string `json:"output,omitempty"`
	Label      string `json:"label,omitempty"`
	Reason     string `json:"reason,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// User is a user document.
type User struct {
	DocID     string `json:"_docID,omitempty"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Query field lists for each collection.
var (
	workflowFields = []string{
		"_docID", "name", "description", "workflow_type", "tags", "status",
		"total_examples", "llm_model", "sample_data", "model_descriptor",
		"model_schema", "created_by", "created_at", "updated_at",
	}
	promptFields  = []string{"_docID", "workflow_id", "text", "source", "version", "updated_at"}
	exampleFields = []string{"_docID", "workflow_id", "input", "output", "label", "reason", "created_at"}
)

// decodeDoc converts a GraphQL document map into a typed record.
func decodeDoc[T any](doc map[string]any) (*T, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
