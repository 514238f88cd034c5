// Package schema provides JSON Schema validation for rule set documents.
//
// Schema validation is a structural pre-check that reports every problem in
// a document at once. The rules parser stays authoritative: a document that
// passes the schema can still be rejected by rules.Parser.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/solatis/launchrules/internal/types"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const rootSchema = "ruleset.json"

// SchemaError is a single schema violation.
type SchemaError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e SchemaError) String() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationError reports every violation found in one document.
// It wraps types.ErrMalformedInput.
type ValidationError struct {
	Errors []SchemaError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, se := range e.Errors {
		parts[i] = se.String()
	}
	return fmt.Sprintf("rule set failed schema validation: %s", strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return types.ErrMalformedInput
}

// Validator validates rule set documents against the embedded schema.
// It is safe for concurrent use.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded schemas.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()

	err := fs.WalkDir(schemaFS, "schemas", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		data, err := schemaFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read embedded schema %s: %w", path, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("parse embedded schema %s: %w", path, err)
		}
		if err := c.AddResource(strings.TrimPrefix(path, "schemas/"), doc); err != nil {
			return fmt.Errorf("add schema resource %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load embedded schemas: %w", err)
	}

	schema, err := c.Compile(rootSchema)
	if err != nil {
		return nil, fmt.Errorf("compile root schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks a raw JSON document. Returns nil, a *ValidationError, or
// an error wrapping types.ErrInvalidJSON.
func (v *Validator) Validate(data []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidJSON, err)
	}
	if errs := v.ValidateDocument(doc); len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// ValidateDocument validates an already-decoded document. Numbers may be
// json.Number, float64 or int64.
func (v *Validator) ValidateDocument(doc any) []SchemaError {
	err := v.schema.Validate(toSchemaValue(doc))
	if err == nil {
		return nil
	}

	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []SchemaError{{Message: err.Error()}}
	}
	return collectErrors(ve)
}

// toSchemaValue converts int64 leaves produced by rules.DecodeJSON into
// json.Number so the validator sees exact integers.
func toSchemaValue(v any) any {
	switch t := v.(type) {
	case int64:
		return json.Number(fmt.Sprintf("%d", t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = toSchemaValue(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = toSchemaValue(child)
		}
		return out
	default:
		return v
	}
}

// collectErrors recursively collects leaf validation errors.
func collectErrors(ve *jsonschema.ValidationError) []SchemaError {
	if len(ve.Causes) == 0 {
		path := ""
		if len(ve.InstanceLocation) > 0 {
			path = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		msg := ve.Error()
		if msg == "" {
			return nil
		}
		return []SchemaError{{Path: path, Message: msg}}
	}

	var errs []SchemaError
	for _, cause := range ve.Causes {
		errs = append(errs, collectErrors(cause)...)
	}
	return errs
}
