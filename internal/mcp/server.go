// Package mcp provides the Model Context Protocol (MCP) server
// implementation.
//
// This package exposes the debug session through MCP tools that can be
// used by AI assistants and other MCP clients:
//
// Inspection (always available):
//   - debug_status: Session and script state
//   - debug_stack: The reconstructed source-level call stack
//   - debug_list_breakpoints: List current breakpoints
//   - debug_map_variable: Translate a generated variable name
//   - debug_map_field: Translate a generated field name
//
// Control (full mode only):
//   - debug_set_breakpoint: Set a breakpoint at a source coordinate
//   - debug_clear_breakpoint: Remove a breakpoint
//   - debug_pause: Pause execution
//   - debug_continue: Resume execution
//   - debug_step: Step over/into/out
//   - debug_run_to_line: Run to a source line
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/jsaot/debug/internal/config"
	"github.com/jsaot/debug/internal/debugger"
	"github.com/jsaot/debug/internal/version"
)

// Server wraps the MCP server around a single debug session
type Server struct {
	mcpServer *server.MCPServer
	debugger  *debugger.Debugger
	config    *config.Config
}

// NewServer creates a new MCP server exposing the given debug session
func NewServer(cfg *config.Config, dbg *debugger.Debugger) *Server {
	mcpServer := server.NewMCPServer(
		"jsaot-debug",
		version.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &Server{
		mcpServer: mcpServer,
		debugger:  dbg,
		config:    cfg,
	}

	s.registerTools()

	return s
}

// ServeStdio starts the server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// GetDebugger returns the underlying debug session
func (s *Server) GetDebugger() *debugger.Debugger {
	return s.debugger
}

// GetConfig returns the server configuration
func (s *Server) GetConfig() *config.Config {
	return s.config
}
