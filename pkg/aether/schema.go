package aether

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ConfigSchema is the JSON schema of the configuration payload.
//
//go:embed config.schema.json
var ConfigSchema []byte

// ErrSchemaViolation is returned when a payload does not satisfy ConfigSchema.
var ErrSchemaViolation = errors.New("configuration violates schema")

// SchemaError is one schema violation.
type SchemaError struct {
	Field       string
	Description string
}

// ValidateSchema checks a raw configuration payload against ConfigSchema and
// returns every violation found. A payload that is not JSON at all is an error.
func ValidateSchema(payload []byte) ([]SchemaError, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(ConfigSchema),
		gojsonschema.NewBytesLoader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("validate config payload: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	violations := make([]SchemaError, 0, len(result.Errors()))

	for _, resultErr := range result.Errors() {
		violations = append(violations, SchemaError{
			Field:       resultErr.Field(),
			Description: resultErr.Description(),
		})
	}

	return violations, nil
}

// CheckSchema is ValidateSchema folded into a single error wrapping ErrSchemaViolation.
func CheckSchema(payload []byte) error {
	violations, err := ValidateSchema(payload)
	if err != nil {
		return err
	}

	if len(violations) == 0 {
		return nil
	}

	parts := make([]string, len(violations))
	for idx, violation := range violations {
		parts[idx] = violation.Field + ": " + violation.Description
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(parts, "; "))
}
