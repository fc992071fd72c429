package tool

import (
	"encoding/json"
	"fmt"
)

type Toolbox struct {
	tools map[string]Tool
	order []string
}

// Box returns a new Toolbox containing the given tools.
func Box(tools ...Tool) *Toolbox {
	t := &Toolbox{
		tools: make(map[string]Tool),
	}
	for _, tool := range tools {
		t.Add(tool)
	}
	return t
}

// Add adds a tool to the toolbox.
func (t *Toolbox) Add(tool Tool) {
	funcName := tool.FuncName()
	if _, ok := t.tools[funcName]; ok {
		panic(fmt.Sprintf("tool %q already exists", funcName))
	}
	t.tools[funcName] = tool
	t.order = append(t.order, funcName)
}

// Get returns the tool with the given function name, or nil.
func (t *Toolbox) Get(funcName string) Tool {
	return t.tools[funcName]
}

// All returns the tools in the order they were added.
func (t *Toolbox) All() []Tool {
	tools := make([]Tool, 0, len(t.order))
	for _, name := range t.order {
		tools = append(tools, t.tools[name])
	}
	return tools
}

// Parse looks up the tool and decodes the parameters with it.
func (t *Toolbox) Parse(funcName string, params json.RawMessage) (any, error) {
	tool := t.Get(funcName)
	if tool == nil {
		return nil, fmt.Errorf("tool %q not found", funcName)
	}
	return tool.Parse(params)
}

// Schema returns the function schemas for all tools in the toolbox.
func (t *Toolbox) Schema() []FunctionSchema {
	schemas := make([]FunctionSchema, 0, len(t.order))
	for _, tool := range t.All() {
		schemas = append(schemas, *tool.Schema())
	}
	return schemas
}
