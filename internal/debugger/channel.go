package debugger

import "github.com/jsaot/debug/internal/debuginfo"

// ScriptLocation is a generated-output coordinate within a named script
// loaded by the runtime.
type ScriptLocation struct {
	Script string `json:"script"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// RuntimeVariable is one raw variable observed in a runtime stack frame.
type RuntimeVariable struct {
	Name  string
	Value string
}

// RuntimeFrame is one raw stack level as reported by the runtime debug
// channel, ordered as the channel supplies them.
type RuntimeFrame struct {
	Location  ScriptLocation
	Variables []RuntimeVariable
}

// RuntimeBreakpoint is a low-level breakpoint owned by the runtime debug
// channel. Destroy releases the underlying runtime resource; it is safe to
// call more than once.
type RuntimeBreakpoint interface {
	Location() ScriptLocation
	Valid() bool
	Destroy()
}

// ChannelEvents receives asynchronous notifications from the runtime debug
// channel. Implementations are invoked from the channel's notification
// goroutine and must not block.
type ChannelEvents interface {
	Resumed()
	Paused()
	ScriptAdded(name string)
	Attached()
	Detached()
	BreakpointChanged(bp RuntimeBreakpoint)
}

// NopChannelEvents is a ChannelEvents with no-op handlers, intended for
// embedding by implementations that care about a subset of events.
type NopChannelEvents struct{}

func (NopChannelEvents) Resumed()                            {}
func (NopChannelEvents) Paused()                             {}
func (NopChannelEvents) ScriptAdded(string)                  {}
func (NopChannelEvents) Attached()                           {}
func (NopChannelEvents) Detached()                           {}
func (NopChannelEvents) BreakpointChanged(RuntimeBreakpoint) {}

// RuntimeChannel drives the running engine that executes the generated
// output. Control commands are fire-and-forget: outcomes arrive as events.
// CreateBreakpoint returns nil when the channel cannot place a breakpoint;
// callers treat that as a degraded state, not an error.
type RuntimeChannel interface {
	Suspend()
	Resume()
	StepInto()
	StepOut()
	StepOver()
	IsSuspended() bool
	IsAttached() bool
	Detach()
	CreateBreakpoint(loc ScriptLocation) RuntimeBreakpoint
	CallStack() []RuntimeFrame
	AddListener(l ChannelEvents)
}

// InformationProvider resolves the debug-information record for a script
// name, or nil when none is available. Implementations may perform I/O.
type InformationProvider interface {
	GetDebugInformation(script string) *debuginfo.Info
}
