package debugger

// Listener receives debugger lifecycle events. Callbacks fire on the
// channel's notification goroutine; implementations must not block and must
// not assume the debugger state is unchanged since the event was generated.
type Listener interface {
	Attached()
	Detached()
	Resumed()
	Paused()
	BreakpointStatusChanged(bp *Breakpoint)
}

// NopListener is a Listener with no-op handlers, intended for embedding.
type NopListener struct{}

func (NopListener) Attached()                           {}
func (NopListener) Detached()                           {}
func (NopListener) Resumed()                            {}
func (NopListener) Paused()                             {}
func (NopListener) BreakpointStatusChanged(*Breakpoint) {}

// AddListener registers a listener. Registration during an in-progress fire
// is safe; the new listener observes the next event.
func (d *Debugger) AddListener(l Listener) {
	d.listenerMu.Lock()
	d.listeners[l] = struct{}{}
	d.listenerMu.Unlock()
}

// RemoveListener unregisters a listener.
func (d *Debugger) RemoveListener(l Listener) {
	d.listenerMu.Lock()
	delete(d.listeners, l)
	d.listenerMu.Unlock()
}

// snapshotListeners returns a point-in-time copy of the listener set, so
// firing never iterates a mutating map.
func (d *Debugger) snapshotListeners() []Listener {
	d.listenerMu.RLock()
	defer d.listenerMu.RUnlock()
	out := make([]Listener, 0, len(d.listeners))
	for l := range d.listeners {
		out = append(out, l)
	}
	return out
}
