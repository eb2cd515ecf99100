package config

import "cwmcp/internal/protocol"

// Capability is one row of the tool table built at startup.
type Capability struct {
	Tool     string
	PlanMode bool
	Enabled  bool
}

// Capabilities returns every tool in registration order with its enabled
// state. Plan-mode tools follow EnablePlanMode; the rest are always on.
func Capabilities(cfg Config) []Capability {
	rows := []Capability{
		{Tool: protocol.ToolNameRunGeneration},
		{Tool: protocol.ToolNameEdit},
		{Tool: protocol.ToolNameExportSession},
		{Tool: protocol.ToolNameOutlinePrompt, PlanMode: true},
		{Tool: protocol.ToolNameGenerateFromOutline, PlanMode: true},
		{Tool: protocol.ToolNameImportCode},
		{Tool: protocol.ToolNameExportCode},
	}
	for i := range rows {
		rows[i].Enabled = !rows[i].PlanMode || cfg.EnablePlanMode
	}
	return rows
}

// Enabled reports whether tool is exposed under cfg.
func Enabled(cfg Config, tool string) bool {
	for _, c := range Capabilities(cfg) {
		if c.Tool == tool {
			return c.Enabled
		}
	}
	return false
}
