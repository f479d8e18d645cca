// Agent dashboard MCP server.
// Exposes dashboard tools over MCP stdio transport.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcptools "github.com/chainops/agentdash/internal/mcp"
)

func main() {
	dashURL := os.Getenv("AGENTDASH_URL")
	if dashURL == "" {
		dashURL = "http://localhost:3001"
	}

	s := server.NewMCPServer(
		"agentdash",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	client := mcptools.NewClient(dashURL)
	mcptools.RegisterTools(s, client)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}
