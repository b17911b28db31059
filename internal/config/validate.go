package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "schema://coursewalk-config.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// ValidationError is a config document rejected by the schema.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// validateDocument checks a decoded YAML document against the embedded schema.
func validateDocument(doc any) error {
	compiled, err := getCompiledSchema()
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	// The validator expects JSON values; round-trip through encoding/json so
	// YAML integers and maps arrive in that shape.
	b, err := json.Marshal(doc)
	if err != nil {
		return &ValidationError{Err: fmt.Errorf("config is not representable as JSON: %w", err)}
	}
	var parsed any
	if err := json.Unmarshal(b, &parsed); err != nil {
		return &ValidationError{Err: err}
	}

	if err := compiled.Validate(parsed); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

func getCompiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		var def any
		if err := json.Unmarshal(schemaJSON, &def); err != nil {
			schemaErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, def); err != nil {
			schemaErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}
