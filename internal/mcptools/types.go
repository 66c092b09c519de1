package mcptools

import "github.com/dusk-indust/qacheck/internal/export"

// --- MCP Tool Types for the qacheck server mode (-serve-mcp) ---
// The MCP Go SDK derives each tool's JSON schema from these struct tags.

// ListStepsInput is the input for the list_steps MCP tool.
type ListStepsInput struct{}

// ListStepsOutput is the result of the list_steps MCP tool.
type ListStepsOutput struct {
	Steps []StepInfo `json:"steps"`
}

// StepInfo describes one declared step.
type StepInfo struct {
	Name     string   `json:"name"`
	Patterns []string `json:"patterns"`
	Kind     string   `json:"kind"` // "validator" or "script"
	Profile  string   `json:"profile,omitempty"`
	Script   string   `json:"script,omitempty"`
}

// ResolveFilesInput is the input for the resolve_files MCP tool.
type ResolveFilesInput struct {
	ChangedOnly bool `json:"changedOnly,omitempty" jsonschema:"only consider files changed against the baseline branch"`
}

// ResolveFilesOutput is the result of the resolve_files MCP tool.
type ResolveFilesOutput struct {
	Policy string               `json:"policy"`
	Groups []export.GroupExport `json:"groups"`
}

// RunStepsInput is the input for the run_steps MCP tool.
type RunStepsInput struct {
	Steps       []string `json:"steps,omitempty" jsonschema:"steps to run in order (default: all declared steps)"`
	ChangedOnly bool     `json:"changedOnly,omitempty" jsonschema:"only check files changed against the baseline branch"`
	Debug       bool     `json:"debug,omitempty" jsonschema:"export debug=1 to the tools"`
}

// RunStepsOutput is the result of the run_steps MCP tool.
type RunStepsOutput struct {
	Success bool     `json:"success"`
	Output  []string `json:"output"`
	Error   string   `json:"error,omitempty"`
}
