package debugger

import (
	"sync"

	"github.com/jsaot/debug/pkg/types"
)

// Breakpoint is a user-level breakpoint identified by a source coordinate.
// It owns zero or more low-level runtime breakpoints, one per generated
// location matching the coordinate across all loaded scripts; the set is
// recomputed whenever a new script is observed. A breakpoint is valid while
// at least one underlying runtime breakpoint is valid.
type Breakpoint struct {
	id       string
	debugger *Debugger
	location types.SourceLocation

	// updateMu serializes runtime-breakpoint recomputation for this
	// breakpoint; it is never held together with the debugger's map lock
	// on the caller side of channel calls.
	updateMu sync.Mutex

	mu      sync.Mutex
	runtime []RuntimeBreakpoint
	valid   bool
}

// ID returns the breakpoint's stable identifier.
func (b *Breakpoint) ID() string { return b.id }

// Location returns the source coordinate the breakpoint was created at.
func (b *Breakpoint) Location() types.SourceLocation { return b.location }

// IsValid reports whether at least one underlying runtime breakpoint is
// currently valid.
func (b *Breakpoint) IsValid() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.valid
}

// Destroy removes the breakpoint and synchronously releases all of its
// underlying runtime breakpoints.
func (b *Breakpoint) Destroy() {
	b.debugger.destroyBreakpoint(b)
}

// Info returns a snapshot for external surfaces.
func (b *Breakpoint) Info() types.BreakpointInfo {
	return types.BreakpointInfo{
		ID:       b.id,
		FileName: b.location.FileName,
		Line:     b.location.Line,
		Valid:    b.IsValid(),
	}
}

// takeRuntime atomically detaches the current underlying set, leaving the
// breakpoint with none. Callers destroy the returned breakpoints outside
// the lock; the swap guarantees each runtime breakpoint is released once.
func (b *Breakpoint) takeRuntime() []RuntimeBreakpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	old := b.runtime
	b.runtime = nil
	return old
}

func (b *Breakpoint) setRuntime(rbs []RuntimeBreakpoint) {
	b.mu.Lock()
	b.runtime = rbs
	b.mu.Unlock()
}

func (b *Breakpoint) snapshotRuntime() []RuntimeBreakpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RuntimeBreakpoint, len(b.runtime))
	copy(out, b.runtime)
	return out
}

// setValid updates the derived flag and reports whether it changed.
func (b *Breakpoint) setValid(valid bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.valid == valid {
		return false
	}
	b.valid = valid
	return true
}
