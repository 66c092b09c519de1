package mcptools

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/qacheck/internal/config"
	"github.com/dusk-indust/qacheck/internal/export"
	"github.com/dusk-indust/qacheck/internal/files"
	"github.com/dusk-indust/qacheck/internal/orchestrator"
	"github.com/dusk-indust/qacheck/internal/output"
)

// QAService handles MCP tool calls. Runs are serialized: a second run_steps
// call waits for the first to finish.
type QAService struct {
	cfg      *config.Config
	resolver orchestrator.Resolver
	exec     orchestrator.Orchestrator
	console  io.Writer

	runMu sync.Mutex
}

// NewQAService creates a QAService. Tool output is mirrored to console,
// which must not be the protocol stream.
func NewQAService(cfg *config.Config, resolver orchestrator.Resolver, exec orchestrator.Orchestrator, console io.Writer) *QAService {
	return &QAService{
		cfg:      cfg,
		resolver: resolver,
		exec:     exec,
		console:  console,
	}
}

// ListSteps returns the declared steps in declaration order.
func (s *QAService) ListSteps(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ListStepsInput,
) (*mcp.CallToolResult, ListStepsOutput, error) {
	out := ListStepsOutput{Steps: []StepInfo{}}
	for _, step := range s.cfg.Steps {
		info := StepInfo{
			Name:     step.Name,
			Patterns: append([]string{}, step.Patterns...),
			Kind:     "script",
			Script:   step.Script,
		}
		if step.IsValidator() {
			info.Kind = "validator"
			info.Profile = step.Profile
		}
		out.Steps = append(out.Steps, info)
	}
	return nil, out, nil
}

// ResolveFiles reports which files each pattern group would check.
func (s *QAService) ResolveFiles(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResolveFilesInput,
) (*mcp.CallToolResult, ResolveFilesOutput, error) {
	res, err := s.resolver.Resolve(ctx, files.PolicyFor(input.ChangedOnly))
	if err != nil {
		return nil, ResolveFilesOutput{}, fmt.Errorf("resolve_files: %w", err)
	}
	exported := export.Resolution(res)
	return nil, ResolveFilesOutput{Policy: exported.Policy, Groups: exported.Groups}, nil
}

// RunSteps executes steps and returns their plain-text output.
func (s *QAService) RunSteps(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunStepsInput,
) (*mcp.CallToolResult, RunStepsOutput, error) {
	steps := input.Steps
	if len(steps) == 0 {
		steps = s.cfg.StepNames()
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	lines := &lineCapture{next: output.NewBroadcaster(s.console)}
	opts := orchestrator.Options{
		Debug:  input.Debug,
		Policy: files.PolicyFor(input.ChangedOnly),
	}

	ok, err := s.exec.Execute(ctx, lines, opts, steps...)
	out := RunStepsOutput{Success: ok, Output: lines.lines}
	if out.Output == nil {
		out.Output = []string{}
	}
	if err != nil {
		out.Error = err.Error()
	}
	return nil, out, nil
}

// lineCapture records plain-text copies of every line it forwards.
type lineCapture struct {
	next  orchestrator.Printer
	lines []string
}

func (c *lineCapture) Write(line string) {
	c.lines = append(c.lines, output.StripANSI(line))
	c.next.Write(line)
}
