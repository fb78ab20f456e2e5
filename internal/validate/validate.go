// Package validate checks response bodies against JSON Schema documents.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	http "github.com/wesleyorama2/fling/http"
)

// ValidationErrors represents a collection of validation errors
type ValidationErrors []error

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Schema is a compiled JSON Schema. It is safe for concurrent use.
type Schema struct {
	schema *jsonschema.Schema
}

// Compile compiles a schema document. name identifies the schema in errors.
func Compile(name string, schema []byte) (*Schema, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource(name, bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	return &Schema{schema: compiled}, nil
}

// LoadFile reads and compiles a schema file
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading schema file: %w", err)
	}
	return Compile(filepath.Base(path), data)
}

// ValidateResponse validates the response body. A body that is not JSON
// yields the response's *http.DecodeError; schema violations yield
// ValidationErrors.
func (s *Schema) ValidateResponse(resp *http.Response) error {
	data, err := resp.JSON()
	if err != nil {
		return err
	}
	return s.validate(data)
}

// ValidateString validates a JSON document
func (s *Schema) ValidateString(jsonStr string) error {
	var data interface{}
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return s.validate(data)
}

func (s *Schema) validate(data interface{}) error {
	err := s.schema.Validate(data)
	if err == nil {
		return nil
	}

	if validationErr, ok := err.(*jsonschema.ValidationError); ok {
		if errs := extractValidationErrors(validationErr); len(errs) > 0 {
			return errs
		}
	}
	return ValidationErrors{err}
}

// extractValidationErrors flattens the leaf causes of a validation error
func extractValidationErrors(err *jsonschema.ValidationError) ValidationErrors {
	if len(err.Causes) == 0 {
		location := err.InstanceLocation
		if location == "" {
			location = "/"
		}
		return ValidationErrors{fmt.Errorf("validation error at %s: %s", location, err.Message)}
	}

	var errors ValidationErrors
	for _, cause := range err.Causes {
		errors = append(errors, extractValidationErrors(cause)...)
	}
	return errors
}
