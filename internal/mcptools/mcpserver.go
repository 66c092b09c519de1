package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewQAMCPServer creates an MCP server with the qacheck tools registered:
// list_steps, resolve_files, and run_steps.
func NewQAMCPServer(svc *QAService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "qacheck",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_steps",
		Description: "List the QA steps declared in the configuration, in declaration order, with the pattern groups each one checks.",
	}, svc.ListSteps)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_files",
		Description: "Resolve the pattern groups to files, either over the whole tree or only over files changed against the baseline branch.",
	}, svc.ResolveFiles)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_steps",
		Description: "Run QA steps in the given order and return whether all checks passed along with the tool output.",
	}, svc.RunSteps)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
