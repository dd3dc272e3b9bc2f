package summarizer

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed summary.schema.json
var summarySchemaJSON string

// ErrInvalidOutput means a payload does not match the summary schema.
var ErrInvalidOutput = errors.New("summary does not match schema")

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// DecodeSummary parses raw model output or a stored document into a Summary.
// Extra top-level fields are allowed so stored artifacts validate too.
func DecodeSummary(raw []byte) (*Summary, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode JSON: %w", ErrInvalidOutput, err)
	}
	if object, ok := value.(map[string]any); ok {
		if sentiment, ok := object["sentiment"].(string); ok {
			object["sentiment"] = strings.ToLower(strings.TrimSpace(sentiment))
		}
	}

	if err := ValidateValue(value); err != nil {
		return nil, err
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize summary JSON: %w", err)
	}
	var summary Summary
	if err := json.Unmarshal(normalized, &summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &summary, nil
}

// Validate checks an in-memory summary against the schema.
func Validate(summary *Summary) error {
	if summary == nil {
		return fmt.Errorf("%w: summary is nil", ErrInvalidOutput)
	}
	copied := *summary
	if copied.KeyPoints == nil {
		copied.KeyPoints = []string{}
	}
	raw, err := json.Marshal(copied)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}
	return ValidateValue(value)
}

// ValidateValue checks a decoded JSON value against the schema.
func ValidateValue(value any) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("load summary schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}
	return nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("summary.schema.json", strings.NewReader(summarySchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("summary.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}
	return value, nil
}

// stripFences removes a markdown code fence around model output.
func stripFences(body string) string {
	body = strings.TrimSpace(body)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}
