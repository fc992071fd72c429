package dispatch

import (
	"os"

	"sigs.k8s.io/yaml"

	"github.com/blixt/calendar-assistant/llm"
	"github.com/blixt/calendar-assistant/tool"
)

// writeDebug dumps one request to a YAML file, overwriting the previous one.
func (d *Dispatcher) writeDebug(sent []llm.Message, received llm.Result, results []ToolResult) {
	if d.DebugFile == "" {
		return
	}
	var toolsSchema []tool.FunctionSchema
	if tools := d.client.Toolbox(); tools != nil {
		toolsSchema = tools.Schema()
	}
	debugData := map[string]any{
		// Prefixed with numbers so the keys remain in this order.
		"1_receivedMessage": received,
		"2_toolResults":     results,
		"3_sentMessages":    sent,
		"4_availableTools":  toolsSchema,
	}
	debugYAML, err := yaml.Marshal(debugData)
	if err != nil {
		d.log.Warn().Err(err).Msg("Failed to encode debug dump")
		return
	}
	if err := os.WriteFile(d.DebugFile, debugYAML, 0o644); err != nil {
		d.log.Warn().Err(err).Str("file", d.DebugFile).Msg("Failed to write debug dump")
	}
}
