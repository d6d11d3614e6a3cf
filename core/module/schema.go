package module

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateParams compiles schema (a decoded JSON Schema document) and
// validates params against it. A nil schema always passes. Grounded on
// the teacher's core/types Validator.compileSchema, simplified: module
// schemas are static and developer-authored, not user-supplied, so the
// teacher's remote-$ref security loader isn't needed here.
func ValidateParams(schema map[string]any, params map[string]any) error {
	if schema == nil {
		return nil
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encode module schema: %w", err)
	}
	const resourceURL = "schema://module-params.json"
	if err := compiler.AddResource(resourceURL, strings.NewReader(string(schemaJSON))); err != nil {
		return fmt.Errorf("load module schema: %w", err)
	}

	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		return fmt.Errorf("compile module schema: %w", err)
	}
	if err := compiled.Validate(params); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	return nil
}
