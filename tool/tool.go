package tool

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

type Tool interface {
	// Label returns a nice human readable title for the tool.
	Label() string
	// Description returns the description of the tool.
	Description() string
	// FuncName returns the function name for the tool.
	FuncName() string
	// Parse validates the raw arguments against the tool's schema and decodes
	// them into the tool's parameter type.
	Parse(params json.RawMessage) (any, error)
	// Schema returns the JSON schema for the tool.
	Schema() *FunctionSchema
}

// Func returns a tool whose arguments decode into Params. The parameter
// schema is reflected from the struct once, on first use.
func Func[Params any](label, description, funcName string) Tool {
	var zeroParams Params
	schemaType := reflect.TypeOf(zeroParams)
	if schemaType.Kind() != reflect.Struct {
		panic("Params must be a struct")
	}
	var t *tool
	t = &tool{
		label:       label,
		description: description,
		schemaType:  schemaType,
		funcName:    funcName,
		parse: func(params json.RawMessage) (any, error) {
			if len(params) == 0 {
				params = json.RawMessage("{}")
			}
			if err := validateJSON(t.Schema(), params); err != nil {
				return nil, fmt.Errorf("validation error for %s: %w", funcName, err)
			}
			var p Params
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, fmt.Errorf("unmarshal error for %s: %w", funcName, err)
			}
			return p, nil
		},
	}
	return t
}

type tool struct {
	label, description, funcName string

	parse func(params json.RawMessage) (any, error)

	// Note: Lazily initialized.
	schema     *FunctionSchema
	schemaOnce sync.Once
	schemaType reflect.Type
}

func (t *tool) Label() string {
	return t.label
}

func (t *tool) Description() string {
	return t.description
}

func (t *tool) FuncName() string {
	return t.funcName
}

func (t *tool) Parse(params json.RawMessage) (any, error) {
	return t.parse(params)
}

func (t *tool) Schema() *FunctionSchema {
	t.schemaOnce.Do(func() {
		t.schema = generateSchema(t.funcName, t.description, t.schemaType)
	})
	return t.schema
}
