// Package debugger implements the live debug session manager: it owns the
// set of loaded debug-information records, the breakpoint registry, and the
// reconstructed call stack, and drives the runtime debug channel that talks
// to the running engine.
//
// The session is a state machine over detached, attached/running, and
// attached/suspended. Transitions are driven solely by channel events and
// user commands; commands that do not apply in the current state are silent
// no-ops, and callers are expected to check IsAttached/IsSuspended first.
package debugger

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jsaot/debug/internal/debuginfo"
	"github.com/jsaot/debug/pkg/types"
)

// Debugger translates user-facing source coordinates into runtime
// breakpoints and runtime stack frames back into source coordinates.
// All methods are safe for concurrent use: channel events arrive on the
// channel's notification goroutine while user commands arrive from others.
type Debugger struct {
	channel  RuntimeChannel
	provider InformationProvider

	// ctlMu serializes control commands at the channel level; suspend,
	// resume, and the step variants must not interleave.
	ctlMu sync.Mutex

	mu                  sync.RWMutex
	infoByScript        map[string]*debuginfo.Info
	infoByFile          map[string]map[*debuginfo.Info]struct{}
	scriptByInfo        map[*debuginfo.Info]string
	breakpoints         map[*Breakpoint]struct{}
	breakpointByRuntime map[RuntimeBreakpoint]*Breakpoint

	listenerMu sync.RWMutex
	listeners  map[Listener]struct{}

	tempMu    sync.Mutex
	tempQueue []RuntimeBreakpoint

	stackMu   sync.Mutex
	callStack []*CallFrame
}

// New creates a Debugger over the given channel and provider and subscribes
// to the channel's events.
func New(channel RuntimeChannel, provider InformationProvider) *Debugger {
	d := &Debugger{
		channel:             channel,
		provider:            provider,
		infoByScript:        make(map[string]*debuginfo.Info),
		infoByFile:          make(map[string]map[*debuginfo.Info]struct{}),
		scriptByInfo:        make(map[*debuginfo.Info]string),
		breakpoints:         make(map[*Breakpoint]struct{}),
		breakpointByRuntime: make(map[RuntimeBreakpoint]*Breakpoint),
		listeners:           make(map[Listener]struct{}),
	}
	channel.AddListener(&channelAdapter{d})
	return d
}

// IsAttached reports whether the channel is attached to a running engine.
func (d *Debugger) IsAttached() bool { return d.channel.IsAttached() }

// IsSuspended reports whether execution is currently suspended.
func (d *Debugger) IsSuspended() bool { return d.channel.IsSuspended() }

// Detach disconnects from the engine.
func (d *Debugger) Detach() { d.channel.Detach() }

// Suspend asks the engine to pause execution. No-op while detached.
func (d *Debugger) Suspend() {
	d.ctlMu.Lock()
	defer d.ctlMu.Unlock()
	if !d.channel.IsAttached() {
		return
	}
	d.channel.Suspend()
}

// Resume asks the engine to continue execution. No-op while detached.
func (d *Debugger) Resume() {
	d.ctlMu.Lock()
	defer d.ctlMu.Unlock()
	if !d.channel.IsAttached() {
		return
	}
	d.channel.Resume()
}

// StepInto performs one step-into. No-op while detached.
func (d *Debugger) StepInto() { d.step(RuntimeChannel.StepInto) }

// StepOut performs one step-out. No-op while detached.
func (d *Debugger) StepOut() { d.step(RuntimeChannel.StepOut) }

// StepOver performs one step-over. No-op while detached.
func (d *Debugger) StepOver() { d.step(RuntimeChannel.StepOver) }

func (d *Debugger) step(op func(RuntimeChannel)) {
	d.ctlMu.Lock()
	defer d.ctlMu.Unlock()
	if !d.channel.IsAttached() {
		return
	}
	op(d.channel)
}

// ContinueToLocation places temporary breakpoints on every generated
// location matching (fileName, line) and resumes. The temporary breakpoints
// are destroyed on the next resume notification regardless of cause: this
// is best-effort run-to-cursor. No-op unless suspended.
func (d *Debugger) ContinueToLocation(fileName string, line int) {
	if !d.channel.IsSuspended() {
		return
	}
	for _, target := range d.generatedLocations(fileName, line) {
		if rb := d.channel.CreateBreakpoint(target); rb != nil {
			d.tempMu.Lock()
			d.tempQueue = append(d.tempQueue, rb)
			d.tempMu.Unlock()
		}
	}
	d.Resume()
}

// generatedLocations collects every generated location that maps to the
// source coordinate across all loaded records covering the file.
func (d *Debugger) generatedLocations(fileName string, line int) []ScriptLocation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []ScriptLocation
	for info := range d.infoByFile[fileName] {
		script := d.scriptByInfo[info]
		for _, loc := range info.GeneratedLocations(fileName, line) {
			out = append(out, ScriptLocation{Script: script, Line: loc.Line, Column: loc.Column})
		}
	}
	return out
}

// CreateBreakpoint creates a user-level breakpoint at the given source
// coordinate. The breakpoint may start out invalid if no loaded script
// covers the coordinate yet.
func (d *Debugger) CreateBreakpoint(fileName string, line int) *Breakpoint {
	bp := &Breakpoint{
		id:       uuid.NewString(),
		debugger: d,
		location: types.SourceLocation{FileName: fileName, Line: line},
	}
	d.mu.Lock()
	d.breakpoints[bp] = struct{}{}
	d.mu.Unlock()

	d.updateRuntimeBreakpoints(bp)
	d.updateBreakpointStatus(bp, false)
	return bp
}

// Breakpoints returns a snapshot of all current breakpoints.
func (d *Debugger) Breakpoints() []*Breakpoint {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Breakpoint, 0, len(d.breakpoints))
	for bp := range d.breakpoints {
		out = append(out, bp)
	}
	return out
}

// FindBreakpoint returns the breakpoint with the given ID, or nil.
func (d *Debugger) FindBreakpoint(id string) *Breakpoint {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for bp := range d.breakpoints {
		if bp.id == id {
			return bp
		}
	}
	return nil
}

// Scripts returns the names of all scripts with registered debug
// information.
func (d *Debugger) Scripts() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.infoByScript))
	for name := range d.infoByScript {
		out = append(out, name)
	}
	return out
}

func (d *Debugger) destroyBreakpoint(bp *Breakpoint) {
	d.mu.Lock()
	delete(d.breakpoints, bp)
	old := bp.takeRuntime()
	for _, rb := range old {
		delete(d.breakpointByRuntime, rb)
	}
	d.mu.Unlock()
	for _, rb := range old {
		rb.Destroy()
	}
}

// updateRuntimeBreakpoints recomputes a breakpoint's underlying runtime
// breakpoints from the currently loaded records. Channel failures simply
// leave the breakpoint with fewer underlying breakpoints. Recomputation of
// a single breakpoint is serialized; a breakpoint destroyed mid-recompute
// releases the fresh runtime breakpoints instead of installing them.
func (d *Debugger) updateRuntimeBreakpoints(bp *Breakpoint) {
	bp.updateMu.Lock()
	defer bp.updateMu.Unlock()

	d.mu.Lock()
	old := bp.takeRuntime()
	for _, rb := range old {
		delete(d.breakpointByRuntime, rb)
	}
	d.mu.Unlock()
	for _, rb := range old {
		rb.Destroy()
	}

	var created []RuntimeBreakpoint
	for _, target := range d.generatedLocations(bp.location.FileName, bp.location.Line) {
		rb := d.channel.CreateBreakpoint(target)
		if rb == nil {
			continue
		}
		created = append(created, rb)
	}

	d.mu.Lock()
	if _, live := d.breakpoints[bp]; !live {
		d.mu.Unlock()
		for _, rb := range created {
			rb.Destroy()
		}
		return
	}
	for _, rb := range created {
		d.breakpointByRuntime[rb] = bp
	}
	bp.setRuntime(created)
	d.mu.Unlock()
}

// updateBreakpointStatus recomputes the derived valid flag and, when it
// actually transitions and fire is set, notifies listeners.
func (d *Debugger) updateBreakpointStatus(bp *Breakpoint, fire bool) {
	valid := false
	for _, rb := range bp.snapshotRuntime() {
		if rb.Valid() {
			valid = true
			break
		}
	}
	if !bp.setValid(valid) {
		return
	}
	if fire {
		for _, l := range d.snapshotListeners() {
			l.BreakpointStatusChanged(bp)
		}
	}
}

// CallStack returns the reconstructed call stack, or nil when not
// suspended. The stack is computed lazily on first access after a pause and
// cached until the next resume; concurrent first readers may compute it
// redundantly but converge on one snapshot.
func (d *Debugger) CallStack() []*CallFrame {
	if !d.channel.IsSuspended() {
		return nil
	}
	d.stackMu.Lock()
	stack := d.callStack
	d.stackMu.Unlock()
	if stack == nil {
		stack = d.buildCallStack()
		d.stackMu.Lock()
		if d.callStack == nil {
			d.callStack = stack
		} else {
			stack = d.callStack
		}
		d.stackMu.Unlock()
	}
	out := make([]*CallFrame, len(stack))
	copy(out, stack)
	return out
}

// buildCallStack resolves each raw runtime frame through the owning
// script's record. Runs of consecutive unmapped frames collapse to their
// first frame, modeling a single synthetic boundary for library/native
// code.
func (d *Debugger) buildCallStack() []*CallFrame {
	var frames []*CallFrame
	wasEmpty := false
	for _, raw := range d.channel.CallStack() {
		d.mu.RLock()
		info := d.infoByScript[raw.Location.Script]
		d.mu.RUnlock()

		loc := types.EmptySourceLocation()
		if info != nil {
			loc = info.SourceLocationAt(raw.Location.Line, raw.Location.Column)
		}
		empty := loc.IsEmpty()
		var method *types.MethodReference
		if !empty {
			method = info.MethodAt(raw.Location.Line, raw.Location.Column)
		}
		if !empty || !wasEmpty {
			frames = append(frames, &CallFrame{
				location: loc,
				method:   method,
				vars:     newVariableView(d, raw.Location, raw.Variables),
			})
		}
		wasEmpty = empty
	}
	return frames
}

// MapVariable returns the source-level names a generated variable observed
// at the given location may correspond to; empty when the owning script has
// no usable debug information.
func (d *Debugger) MapVariable(name string, loc ScriptLocation) []string {
	d.mu.RLock()
	info := d.infoByScript[loc.Script]
	d.mu.RUnlock()
	if info == nil {
		return nil
	}
	return info.VariableMeaningAt(loc.Line, loc.Column, name)
}

// MapField resolves a runtime field identifier on a class against all
// loaded records, first match wins. Which record wins is unspecified when
// several define a meaning for the same class and field.
func (d *Debugger) MapField(className, fieldName string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, info := range d.infoByScript {
		if meaning, ok := info.FieldMeaning(className, fieldName); ok {
			return meaning, true
		}
	}
	return "", false
}

// addScript registers debug information for a newly observed script name.
// The first successful registration wins; every existing breakpoint is then
// recomputed against the new record.
func (d *Debugger) addScript(name string) {
	d.mu.RLock()
	_, known := d.infoByScript[name]
	d.mu.RUnlock()
	if known {
		return
	}

	info := d.provider.GetDebugInformation(name)
	if info == nil {
		return
	}

	d.mu.Lock()
	if _, raced := d.infoByScript[name]; raced {
		d.mu.Unlock()
		return
	}
	d.infoByScript[name] = info
	d.scriptByInfo[info] = name
	for _, file := range info.CoveredSourceFiles() {
		set := d.infoByFile[file]
		if set == nil {
			set = make(map[*debuginfo.Info]struct{})
			d.infoByFile[file] = set
		}
		set[info] = struct{}{}
	}
	d.mu.Unlock()

	for _, bp := range d.Breakpoints() {
		d.updateRuntimeBreakpoints(bp)
		d.updateBreakpointStatus(bp, true)
	}
}

func (d *Debugger) handleResumed() {
	d.tempMu.Lock()
	drained := d.tempQueue
	d.tempQueue = nil
	d.tempMu.Unlock()
	for _, rb := range drained {
		rb.Destroy()
	}
	for _, l := range d.snapshotListeners() {
		l.Resumed()
	}
}

func (d *Debugger) handlePaused() {
	d.stackMu.Lock()
	d.callStack = nil
	d.stackMu.Unlock()
	for _, l := range d.snapshotListeners() {
		l.Paused()
	}
}

func (d *Debugger) handleAttached() {
	for _, bp := range d.Breakpoints() {
		d.updateRuntimeBreakpoints(bp)
		d.updateBreakpointStatus(bp, false)
	}
	for _, l := range d.snapshotListeners() {
		l.Attached()
	}
}

func (d *Debugger) handleDetached() {
	for _, bp := range d.Breakpoints() {
		d.updateBreakpointStatus(bp, false)
	}
	for _, l := range d.snapshotListeners() {
		l.Detached()
	}
}

func (d *Debugger) handleBreakpointChanged(rb RuntimeBreakpoint) {
	d.mu.RLock()
	bp := d.breakpointByRuntime[rb]
	d.mu.RUnlock()
	if bp != nil {
		d.updateBreakpointStatus(bp, true)
	}
}

// channelAdapter dispatches channel events to the debugger's handlers.
type channelAdapter struct {
	d *Debugger
}

func (a *channelAdapter) Resumed()                               { a.d.handleResumed() }
func (a *channelAdapter) Paused()                                { a.d.handlePaused() }
func (a *channelAdapter) ScriptAdded(name string)                { a.d.addScript(name) }
func (a *channelAdapter) Attached()                              { a.d.handleAttached() }
func (a *channelAdapter) Detached()                              { a.d.handleDetached() }
func (a *channelAdapter) BreakpointChanged(rb RuntimeBreakpoint) { a.d.handleBreakpointChanged(rb) }
