package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// FunctionSchema is the provider-neutral description of a tool: its name,
// description and the JSON schema of its parameters.
type FunctionSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ParameterMap returns the parameters schema decoded into a generic map, for
// providers that want to rebuild it in their own types.
func (s *FunctionSchema) ParameterMap() map[string]any {
	var m map[string]any
	if err := json.Unmarshal(s.Parameters, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

var reflector = &jsonschema.Reflector{
	// Providers expect a flat object schema with everything inlined.
	DoNotReference:            true,
	ExpandedStruct:            true,
	AllowAdditionalProperties: true,
}

// generateSchema reflects the parameter struct into a function schema.
func generateSchema(name, description string, typ reflect.Type) *FunctionSchema {
	s := reflector.ReflectFromType(typ)
	s.Version = ""
	s.ID = ""
	parameters, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal schema for %s: %v", name, err))
	}
	return &FunctionSchema{
		Name:        name,
		Description: description,
		Parameters:  parameters,
	}
}

// validateJSON checks that jsonData conforms to the parameters schema.
func validateJSON(schema *FunctionSchema, jsonData json.RawMessage) error {
	if schema == nil {
		return errors.New("schema error: missing function schema")
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema.Parameters),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("invalid JSON format: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var problems []string
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return errors.New(strings.Join(problems, "; "))
}
