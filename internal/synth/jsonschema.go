package synth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildJSONSchema converts a descriptor set into a JSON Schema document with
// one $defs entry per class and the root pointing at rootClass. Type labels
// map best-effort; a label that cannot be mapped constrains nothing, so
// schema construction never fails on an exotic annotation.
func BuildJSONSchema(descs []ClassDescriptor, rootClass string) (json.RawMessage, error) {
	byName := make(map[string]bool, len(descs))
	for _, d := range descs {
		byName[d.ClassName] = true
	}
	if !byName[rootClass] {
		return nil, fmt.Errorf("root class %q not among descriptors", rootClass)
	}

	defs := make(map[string]any, len(descs))
	for _, d := range descs {
		props := make(map[string]any, len(d.Fields))
		required := make([]string, 0, len(d.Fields))
		for _, f := range d.Fields {
			schema, optional := labelToSchema(f.TypeLabel, byName)
			props[f.Name] = schema
			if !optional {
				required = append(required, f.Name)
			}
		}
		def := map[string]any{
			"type":       "object",
			"properties": props,
		}
		if len(required) > 0 {
			def["required"] = required
		}
		defs[d.ClassName] = def
	}

	doc := map[string]any{
		"$ref":  "#/$defs/" + rootClass,
		"$defs": defs,
	}
	return json.Marshal(doc)
}

// ValidateAgainst compiles schemaRaw and validates a candidate JSON document
// against it. Used to check structured LLM output against a synthesized model.
func ValidateAgainst(schemaRaw, candidate json.RawMessage) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("model.json", bytes.NewReader(schemaRaw)); err != nil {
		return fmt.Errorf("failed to load model schema: %w", err)
	}
	schema, err := compiler.Compile("model.json")
	if err != nil {
		return fmt.Errorf("failed to compile model schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(candidate, &doc); err != nil {
		return fmt.Errorf("failed to decode candidate document: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("document does not match synthesized model: %w", err)
	}
	return nil
}

// labelToSchema maps a declared type label to a JSON Schema fragment.
// The second return reports whether the field is optional (Optional[...] or
// a "| None" union).
func labelToSchema(label string, classes map[string]bool) (any, bool) {
	label = strings.TrimSpace(label)

	if inner, ok := unwrap(label, "Optional"); ok {
		schema, _ := labelToSchema(inner, classes)
		return anyOfNull(schema), true
	}
	if strings.HasSuffix(label, "| None") {
		schema, _ := labelToSchema(strings.TrimSpace(strings.TrimSuffix(label, "| None")), classes)
		return anyOfNull(schema), true
	}

	if inner, ok := unwrap(label, "List"); ok {
		item, _ := labelToSchema(inner, classes)
		return map[string]any{"type": "array", "items": item}, false
	}
	if inner, ok := unwrap(label, "list"); ok {
		item, _ := labelToSchema(inner, classes)
		return map[string]any{"type": "array", "items": item}, false
	}
	if _, ok := unwrap(label, "Dict"); ok {
		return map[string]any{"type": "object"}, false
	}
	if _, ok := unwrap(label, "dict"); ok {
		return map[string]any{"type": "object"}, false
	}

	switch label {
	case "str":
		return map[string]any{"type": "string"}, false
	case "int":
		return map[string]any{"type": "integer"}, false
	case "float":
		return map[string]any{"type": "number"}, false
	case "bool":
		return map[string]any{"type": "boolean"}, false
	case "None", "NoneType":
		return map[string]any{"type": "null"}, false
	case "dict":
		return map[string]any{"type": "object"}, false
	case "list":
		return map[string]any{"type": "array"}, false
	}

	if classes[label] {
		return map[string]any{"$ref": "#/$defs/" + label}, false
	}

	// Unknown label: no constraint.
	return map[string]any{}, false
}

func unwrap(label, wrapper string) (string, bool) {
	if strings.HasPrefix(label, wrapper+"[") && strings.HasSuffix(label, "]") {
		return strings.TrimSpace(label[len(wrapper)+1 : len(label)-1]), true
	}
	return "", false
}

func anyOfNull(schema any) any {
	return map[string]any{
		"anyOf": []any{schema, map[string]any{"type": "null"}},
	}
}
