package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// StructuredResult is the typed form of a model reply that followed the
// response-format instruction.
type StructuredResult struct {
	Description         string   `json:"description"`
	Steps               []string `json:"steps"`
	EstimatedComplexity string   `json:"estimatedComplexity"`
}

// responseSchema validates replies before they are surfaced as parsed
// results. Kept permissive on extra fields: models pad freely.
const responseSchema = `{
  "type": "object",
  "required": ["description", "steps"],
  "properties": {
    "description": {"type": "string"},
    "steps": {"type": "array", "items": {"type": "string"}},
    "estimatedComplexity": {"type": "string", "enum": ["low", "medium", "high"]}
  }
}`

// ResponseParser extracts and validates the structured JSON reply from raw
// model output. Safe for concurrent use.
type ResponseParser struct {
	schema *jsonschema.Schema
}

// NewResponseParser compiles the response schema.
// Panics on compile failure — the schema is a literal.
func NewResponseParser() *ResponseParser {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(responseSchema))
	if err != nil {
		panic(fmt.Sprintf("agent.NewResponseParser: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response.json", doc); err != nil {
		panic(fmt.Sprintf("agent.NewResponseParser: %v", err))
	}
	schema, err := compiler.Compile("response.json")
	if err != nil {
		panic(fmt.Sprintf("agent.NewResponseParser: %v", err))
	}
	return &ResponseParser{schema: schema}
}

// Parse extracts the first JSON object from raw output and validates it
// against the response schema. Failures mean the caller keeps the raw
// output only; they are never fatal.
func (p *ResponseParser) Parse(raw string) (*StructuredResult, error) {
	payload := extractJSONObject(raw)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("parse response JSON: %w", err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("response schema validation: %w", err)
	}

	var result StructuredResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decode response JSON: %w", err)
	}
	return &result, nil
}

// extractJSONObject returns the outermost {...} span of the text, which
// tolerates prose before and after the JSON body.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
