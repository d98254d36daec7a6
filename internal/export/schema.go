package export

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/multierr"
)

//go:embed schema/measurements.yaml
var measurementsOpenAPI []byte

const documentSchemaName = "Document"

var documentSchema = sync.OnceValues(func() (*openapi3.Schema, error) {
	loader := openapi3.NewLoader()
	loader.Context = context.Background()
	doc, err := loader.LoadFromData(measurementsOpenAPI)
	if err != nil {
		return nil, fmt.Errorf("load measurements schema: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("measurements schema: %w", err)
	}
	if doc.Components == nil || doc.Components.Schemas[documentSchemaName] == nil {
		return nil, fmt.Errorf("measurements schema: missing %s component", documentSchemaName)
	}
	return doc.Components.Schemas[documentSchemaName].Value, nil
})

// ValidateJSON checks raw against the measurements document schema. Every
// violation is returned; source labels the errors.
func ValidateJSON(source string, raw []byte) error {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return &SchemaViolationError{Source: source, Reason: "not a valid JSON document: " + err.Error()}
	}
	schema, err := documentSchema()
	if err != nil {
		return err
	}
	if err := schema.VisitJSON(value, openapi3.MultiErrors()); err != nil {
		return violations(source, err)
	}
	return nil
}

// ValidateDocument checks an assembled document against the schema.
func ValidateDocument(doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return ValidateJSON("", raw)
}

func violations(source string, err error) error {
	var out error
	var walk func(err error)
	walk = func(err error) {
		switch e := err.(type) {
		case openapi3.MultiError:
			for _, inner := range e {
				walk(inner)
			}
		case *openapi3.SchemaError:
			out = multierr.Append(out, &SchemaViolationError{
				Source:  source,
				Pointer: "/" + strings.Join(e.JSONPointer(), "/"),
				Reason:  e.Reason,
			})
		default:
			out = multierr.Append(out, &SchemaViolationError{Source: source, Reason: err.Error()})
		}
	}
	walk(err)
	return out
}
