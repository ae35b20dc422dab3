package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildAddressJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We include it in the prompt as an output constraint and use it
// locally to validate the response.
func BuildAddressJSONSchema() map[string]any {
	addressProps := map[string]any{
		"full_address":  map[string]any{"type": "string", "minLength": 1},
		"street_number": map[string]any{"type": "string"},
		"street_name":   map[string]any{"type": "string"},
		"unit":          map[string]any{"type": "string"},
		"city":          map[string]any{"type": "string"},
		"county":        map[string]any{"type": "string"},
		"state":         map[string]any{"type": "string"},
		"zip_code":      map[string]any{"type": "string"},
		"confidence":    map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
		"grantee_name":  map[string]any{"type": "string"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"addresses": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties":           addressProps,
					"required":             []string{"full_address"},
				},
			},
		},
		"required": []string{"addresses"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
