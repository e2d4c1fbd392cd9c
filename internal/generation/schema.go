package generation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"resume-builder/resume/model"
)

//go:embed content.schema.json
var contentSchemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func contentSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(contentSchemaJSON))
	})
	return compiledSchema, schemaErr
}

// SchemaJSON returns the JSON schema generated content must satisfy.
func SchemaJSON() string {
	return string(contentSchemaJSON)
}

// SchemaError lists the schema violations of a generated document.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "schema validation failed: " + strings.Join(e.Violations, "; ")
}

func (e *SchemaError) Unwrap() error { return ErrInvalidOutput }

// ParseContent validates raw provider output against the content schema and
// the edit rules, then decodes it. Entries without ids get fresh ones.
func ParseContent(raw []byte) (model.Content, error) {
	raw = stripFences(raw)
	if !json.Valid(raw) {
		return model.Content{}, fmt.Errorf("%w: not valid JSON", ErrInvalidOutput)
	}

	schema, err := contentSchema()
	if err != nil {
		return model.Content{}, fmt.Errorf("load content schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return model.Content{}, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if !res.Valid() {
		serr := &SchemaError{}
		for _, e := range res.Errors() {
			serr.Violations = append(serr.Violations, e.String())
		}
		return model.Content{}, serr
	}

	var content model.Content
	if err := json.Unmarshal(raw, &content); err != nil {
		return model.Content{}, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if err := content.Validate(); err != nil {
		return model.Content{}, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	content.EnsureIDs()
	return content, nil
}

func stripFences(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(trimmed, []byte("```")) {
		return trimmed
	}
	trimmed = bytes.TrimPrefix(trimmed, []byte("```json"))
	trimmed = bytes.TrimPrefix(trimmed, []byte("```"))
	trimmed = bytes.TrimSuffix(bytes.TrimSpace(trimmed), []byte("```"))
	return bytes.TrimSpace(trimmed)
}
