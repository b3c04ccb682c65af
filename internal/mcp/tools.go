package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers the debug tool API
func (s *Server) registerTools() {
	// Inspection (both modes)
	s.registerDebugStatus()
	s.registerDebugStack()
	s.registerDebugListBreakpoints()
	s.registerDebugMapVariable()
	s.registerDebugMapField()

	// Control (full mode only)
	if s.config.CanUseControlTools() {
		s.registerDebugSetBreakpoint()
		s.registerDebugClearBreakpoint()
		s.registerDebugPause()
		s.registerDebugContinue()
		s.registerDebugStep()
		s.registerDebugRunToLine()
	}
}

// Inspection Tools

func (s *Server) registerDebugStatus() {
	tool := mcp.NewTool("debug_status",
		mcp.WithDescription("Get the session state: attached/suspended flags and the scripts with loaded debug information."),
	)
	s.mcpServer.AddTool(tool, s.handleDebugStatus)
}

func (s *Server) registerDebugStack() {
	tool := mcp.NewTool("debug_stack",
		mcp.WithDescription("Get the source-level call stack while suspended. Each frame carries the Java source location, the owning method, and variables translated to their source names. Frames without mapping information appear as a single boundary frame."),
	)
	s.mcpServer.AddTool(tool, s.handleDebugStack)
}

func (s *Server) registerDebugListBreakpoints() {
	tool := mcp.NewTool("debug_list_breakpoints",
		mcp.WithDescription("List current breakpoints with their IDs, source coordinates, and validity."),
	)
	s.mcpServer.AddTool(tool, s.handleDebugListBreakpoints)
}

func (s *Server) registerDebugMapVariable() {
	tool := mcp.NewTool("debug_map_variable",
		mcp.WithDescription("Translate a generated (minified) variable name observed at a script location into the Java source names it may correspond to. Several names mean the mapping is ambiguous at that point."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("The generated variable name as it appears in the running script"),
		),
		mcp.WithString("script",
			mcp.Required(),
			mcp.Description("The script the variable was observed in"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("0-based line in the generated script"),
		),
		mcp.WithNumber("column",
			mcp.Description("0-based column in the generated script (default: 0)"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugMapVariable)
}

func (s *Server) registerDebugMapField() {
	tool := mcp.NewTool("debug_map_field",
		mcp.WithDescription("Translate a generated field identifier on a class into its Java source field name."),
		mcp.WithString("className",
			mcp.Required(),
			mcp.Description("Fully qualified Java class name, e.g. 'com.example.Main'"),
		),
		mcp.WithString("fieldName",
			mcp.Required(),
			mcp.Description("The generated field identifier as it appears at runtime"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugMapField)
}

// Control Tools (Full mode only)

func (s *Server) registerDebugSetBreakpoint() {
	tool := mcp.NewTool("debug_set_breakpoint",
		mcp.WithDescription("Set a breakpoint at a Java source coordinate. The breakpoint may start invalid if no loaded script covers the location yet; it becomes valid automatically when one does. Returns the breakpoint ID."),
		mcp.WithString("fileName",
			mcp.Required(),
			mcp.Description("The Java source file name, e.g. 'com/example/Main.java'"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("1-based source line"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugSetBreakpoint)
}

func (s *Server) registerDebugClearBreakpoint() {
	tool := mcp.NewTool("debug_clear_breakpoint",
		mcp.WithDescription("Remove a breakpoint by ID."),
		mcp.WithString("breakpointId",
			mcp.Required(),
			mcp.Description("The breakpoint ID from debug_set_breakpoint or debug_list_breakpoints"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugClearBreakpoint)
}

func (s *Server) registerDebugPause() {
	tool := mcp.NewTool("debug_pause",
		mcp.WithDescription("Pause execution. Use debug_stack afterwards to inspect state."),
	)
	s.mcpServer.AddTool(tool, s.handleDebugPause)
}

func (s *Server) registerDebugContinue() {
	tool := mcp.NewTool("debug_continue",
		mcp.WithDescription("Resume execution until the next breakpoint. Returns immediately."),
	)
	s.mcpServer.AddTool(tool, s.handleDebugContinue)
}

func (s *Server) registerDebugStep() {
	tool := mcp.NewTool("debug_step",
		mcp.WithDescription("Execute a step command. Use type='over' to step to the next line, 'into' to enter calls, 'out' to exit the current method."),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Step type: 'over', 'into', or 'out'"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugStep)
}

func (s *Server) registerDebugRunToLine() {
	tool := mcp.NewTool("debug_run_to_line",
		mcp.WithDescription("Run until execution reaches a Java source line, using temporary breakpoints that are discarded on the next resume. Only valid while suspended."),
		mcp.WithString("fileName",
			mcp.Required(),
			mcp.Description("The Java source file name"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("1-based source line to run to"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleDebugRunToLine)
}
