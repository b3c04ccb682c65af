package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jsaot/debug/internal/debugger"
	"github.com/jsaot/debug/internal/errors"
)

// Inspection Handlers

func (s *Server) handleDebugStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]interface{}{
		"attached":  s.debugger.IsAttached(),
		"suspended": s.debugger.IsSuspended(),
		"scripts":   s.debugger.Scripts(),
		"mode":      string(s.config.Mode),
	})
}

func (s *Server) handleDebugStack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.debugger.IsSuspended() {
		return mcp.NewToolResultError(errors.NotSuspended("debug_stack").Error()), nil
	}

	stack := s.debugger.CallStack()
	frames := make([]interface{}, 0, len(stack))
	for _, frame := range stack {
		frames = append(frames, frame.Info())
	}

	return jsonResult(map[string]interface{}{
		"frames": frames,
	})
}

func (s *Server) handleDebugListBreakpoints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bps := s.debugger.Breakpoints()
	infos := make([]interface{}, 0, len(bps))
	for _, bp := range bps {
		infos = append(infos, bp.Info())
	}

	return jsonResult(map[string]interface{}{
		"breakpoints": infos,
	})
}

func (s *Server) handleDebugMapVariable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("name",
			"Specify the generated variable name as observed in the running script.").Error()), nil
	}
	script, err := request.RequireString("script")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("script",
			"Specify the script the variable was observed in. Use debug_status to list known scripts.").Error()), nil
	}
	lineF, err := request.RequireFloat("line")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("line",
			"Specify the 0-based line in the generated script.").Error()), nil
	}
	line := int(lineF)
	column := 0
	if c, err := request.RequireFloat("column"); err == nil {
		column = int(c)
	}

	names := s.debugger.MapVariable(name, debugger.ScriptLocation{
		Script: script,
		Line:   line,
		Column: column,
	})

	return jsonResult(map[string]interface{}{
		"name":        name,
		"sourceNames": names,
		"ambiguous":   len(names) > 1,
	})
}

func (s *Server) handleDebugMapField(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	className, err := request.RequireString("className")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("className",
			"Specify the fully qualified Java class name.").Error()), nil
	}
	fieldName, err := request.RequireString("fieldName")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("fieldName",
			"Specify the generated field identifier.").Error()), nil
	}

	meaning, ok := s.debugger.MapField(className, fieldName)
	return jsonResult(map[string]interface{}{
		"className": className,
		"fieldName": fieldName,
		"meaning":   meaning,
		"found":     ok,
	})
}

// Control Handlers

func (s *Server) handleDebugSetBreakpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileName, err := request.RequireString("fileName")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("fileName",
			"Specify the Java source file name as recorded by the compiler.").Error()), nil
	}
	lineF, err := request.RequireFloat("line")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("line",
			"Specify the 1-based source line.").Error()), nil
	}
	line := int(lineF)
	if line < 1 {
		return mcp.NewToolResultError(errors.InvalidParameter("line", line, "a 1-based line number").Error()), nil
	}

	bp := s.debugger.CreateBreakpoint(fileName, line)
	return jsonResult(bp.Info())
}

func (s *Server) handleDebugClearBreakpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("breakpointId")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("breakpointId",
			"Specify the breakpoint ID. Use debug_list_breakpoints to see current breakpoints.").Error()), nil
	}

	bp := s.debugger.FindBreakpoint(id)
	if bp == nil {
		return mcp.NewToolResultError(errors.BreakpointNotFound(id).Error()), nil
	}
	bp.Destroy()

	return jsonResult(map[string]interface{}{
		"breakpointId": id,
		"status":       "removed",
	})
}

func (s *Server) handleDebugPause(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.debugger.IsAttached() {
		return mcp.NewToolResultError(errors.NotAttached("debug_pause").Error()), nil
	}
	s.debugger.Suspend()

	return jsonResult(map[string]interface{}{
		"status": "pause requested",
	})
}

func (s *Server) handleDebugContinue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.debugger.IsAttached() {
		return mcp.NewToolResultError(errors.NotAttached("debug_continue").Error()), nil
	}
	s.debugger.Resume()

	return jsonResult(map[string]interface{}{
		"status": "resumed",
	})
}

func (s *Server) handleDebugStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.debugger.IsSuspended() {
		return mcp.NewToolResultError(errors.NotSuspended("debug_step").Error()), nil
	}

	stepType, err := request.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("type",
			"Specify the step type: 'over', 'into', or 'out'.").Error()), nil
	}

	switch stepType {
	case "over":
		s.debugger.StepOver()
	case "into":
		s.debugger.StepInto()
	case "out":
		s.debugger.StepOut()
	default:
		return mcp.NewToolResultError(errors.InvalidParameter("type", stepType, "'over', 'into', or 'out'").Error()), nil
	}

	return jsonResult(map[string]interface{}{
		"status": "stepped",
		"type":   stepType,
	})
}

func (s *Server) handleDebugRunToLine(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.debugger.IsSuspended() {
		return mcp.NewToolResultError(errors.NotSuspended("debug_run_to_line").Error()), nil
	}

	fileName, err := request.RequireString("fileName")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("fileName",
			"Specify the Java source file name.").Error()), nil
	}
	lineF, err := request.RequireFloat("line")
	if err != nil {
		return mcp.NewToolResultError(errors.MissingParameter("line",
			"Specify the 1-based source line to run to.").Error()), nil
	}
	line := int(lineF)

	s.debugger.ContinueToLocation(fileName, line)

	return jsonResult(map[string]interface{}{
		"status":   "running",
		"fileName": fileName,
		"line":     line,
	})
}

func jsonResult(data interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
