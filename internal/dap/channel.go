package dap

import (
	"log"
	"sync"
	"time"

	"github.com/google/go-dap"

	"github.com/jsaot/debug/internal/debugger"
)

// Channel adapts a DAP session to the debugger.RuntimeChannel interface.
//
// DAP manages breakpoints per source file: every setBreakpoints request
// replaces the file's whole set. The channel therefore keeps the current
// breakpoint list per script and re-sends the full list whenever a single
// breakpoint is created or destroyed, then matches the adapter's reply back
// to the list entries by position.
//
// DAP lines and columns are 1-based; generated-code coordinates on the
// channel boundary are 0-based.
type Channel struct {
	client *Client

	mu        sync.Mutex
	attached  bool
	suspended bool
	threadID  int
	scripts   []string
	byScript  map[string][]*runtimeBreakpoint

	listenerMu sync.RWMutex
	listeners  []debugger.ChannelEvents
}

// runtimeBreakpoint is one low-level breakpoint tracked by the channel.
type runtimeBreakpoint struct {
	channel *Channel
	loc     debugger.ScriptLocation

	mu        sync.Mutex
	dapID     int
	verified  bool
	destroyed bool
}

func (b *runtimeBreakpoint) Location() debugger.ScriptLocation { return b.loc }

func (b *runtimeBreakpoint) Valid() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.verified && !b.destroyed
}

func (b *runtimeBreakpoint) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	b.mu.Unlock()
	b.channel.removeBreakpoint(b)
}

// Connect establishes a DAP session with the adapter at the given TCP
// address and performs the attach handshake.
func Connect(address string) (*Channel, error) {
	transport, err := NewTCPTransport(address)
	if err != nil {
		return nil, err
	}
	return attach(NewClient(transport))
}

// NewChannel establishes a DAP session over an existing client. The caller
// must not have set the client's event handler.
func NewChannel(client *Client) (*Channel, error) {
	return attach(client)
}

func attach(client *Client) (*Channel, error) {
	ch := &Channel{
		client:   client,
		byScript: make(map[string][]*runtimeBreakpoint),
	}
	client.SetEventHandler(ch.handleEvent)

	if _, err := client.Initialize("jsaot-debug", "jsaot debug session"); err != nil {
		client.Close()
		return nil, err
	}
	if _, err := client.Attach(map[string]interface{}{}); err != nil {
		client.Close()
		return nil, err
	}
	if err := client.WaitInitialized(requestTimeout); err != nil {
		client.Close()
		return nil, err
	}
	if err := client.ConfigurationDone(); err != nil {
		client.Close()
		return nil, err
	}

	ch.mu.Lock()
	ch.attached = true
	ch.mu.Unlock()

	// Scripts the engine loaded before we attached still need to be
	// announced; they are recorded here and replayed to listeners as they
	// register.
	if sources, err := client.LoadedSources(); err == nil {
		for _, src := range sources {
			ch.addScript(sourceName(src))
		}
	}

	return ch, nil
}

// addScript records a loaded script once and announces it.
func (c *Channel) addScript(name string) {
	if name == "" {
		return
	}
	c.mu.Lock()
	for _, s := range c.scripts {
		if s == name {
			c.mu.Unlock()
			return
		}
	}
	c.scripts = append(c.scripts, name)
	c.mu.Unlock()
	c.fire(func(l debugger.ChannelEvents) { l.ScriptAdded(name) })
}

// handleEvent translates DAP events into channel events.
func (c *Channel) handleEvent(msg dap.Message) {
	switch m := msg.(type) {
	case *dap.StoppedEvent:
		c.mu.Lock()
		c.suspended = true
		if m.Body.ThreadId != 0 {
			c.threadID = m.Body.ThreadId
		}
		c.mu.Unlock()
		c.fire(func(l debugger.ChannelEvents) { l.Paused() })
	case *dap.ContinuedEvent:
		c.mu.Lock()
		wasSuspended := c.suspended
		c.suspended = false
		c.mu.Unlock()
		// Resume already fired for continues we initiated ourselves.
		if wasSuspended {
			c.fire(func(l debugger.ChannelEvents) { l.Resumed() })
		}
	case *dap.LoadedSourceEvent:
		if m.Body.Reason == "removed" {
			return
		}
		c.addScript(sourceName(m.Body.Source))
	case *dap.BreakpointEvent:
		c.handleBreakpointEvent(m)
	case *dap.TerminatedEvent, *dap.ExitedEvent:
		c.mu.Lock()
		wasAttached := c.attached
		c.attached = false
		c.suspended = false
		c.mu.Unlock()
		if wasAttached {
			c.fire(func(l debugger.ChannelEvents) { l.Detached() })
		}
	}
}

// handleBreakpointEvent updates the verified flag of the breakpoint the
// adapter reported about and notifies listeners.
func (c *Channel) handleBreakpointEvent(ev *dap.BreakpointEvent) {
	c.mu.Lock()
	var match *runtimeBreakpoint
	for _, list := range c.byScript {
		for _, rb := range list {
			rb.mu.Lock()
			found := rb.dapID == ev.Body.Breakpoint.Id
			rb.mu.Unlock()
			if found {
				match = rb
				break
			}
		}
		if match != nil {
			break
		}
	}
	c.mu.Unlock()

	if match == nil {
		return
	}
	match.mu.Lock()
	match.verified = ev.Body.Breakpoint.Verified
	match.mu.Unlock()
	c.fire(func(l debugger.ChannelEvents) { l.BreakpointChanged(match) })
}

func sourceName(src dap.Source) string {
	if src.Path != "" {
		return src.Path
	}
	return src.Name
}

// AddListener registers an event listener. A listener added to an already
// attached channel observes the attach and the known scripts immediately,
// so registration order relative to Connect does not matter.
func (c *Channel) AddListener(l debugger.ChannelEvents) {
	c.listenerMu.Lock()
	c.listeners = append(c.listeners, l)
	c.listenerMu.Unlock()

	c.mu.Lock()
	attached := c.attached
	scripts := append([]string(nil), c.scripts...)
	c.mu.Unlock()
	if attached {
		l.Attached()
		for _, s := range scripts {
			l.ScriptAdded(s)
		}
	}
}

func (c *Channel) fire(f func(debugger.ChannelEvents)) {
	c.listenerMu.RLock()
	ls := append([]debugger.ChannelEvents(nil), c.listeners...)
	c.listenerMu.RUnlock()
	for _, l := range ls {
		f(l)
	}
}

// IsAttached reports whether the session is live.
func (c *Channel) IsAttached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// IsSuspended reports whether the debuggee is stopped.
func (c *Channel) IsSuspended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspended
}

func (c *Channel) currentThread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadID
}

// Suspend asks the adapter to pause the debuggee.
func (c *Channel) Suspend() {
	if err := c.client.Pause(c.currentThread()); err != nil {
		log.Printf("DAP pause failed: %v", err)
	}
}

// Resume asks the adapter to continue the debuggee. The suspended flag
// flips eagerly; a continued event would arrive too late for callers that
// check IsSuspended right after.
func (c *Channel) Resume() {
	c.mu.Lock()
	c.suspended = false
	c.mu.Unlock()
	if err := c.client.Continue(c.currentThread()); err != nil {
		log.Printf("DAP continue failed: %v", err)
		return
	}
	c.fire(func(l debugger.ChannelEvents) { l.Resumed() })
}

// StepInto performs one step-into on the current thread.
func (c *Channel) StepInto() {
	if err := c.client.StepIn(c.currentThread()); err != nil {
		log.Printf("DAP stepIn failed: %v", err)
	}
}

// StepOut performs one step-out on the current thread.
func (c *Channel) StepOut() {
	if err := c.client.StepOut(c.currentThread()); err != nil {
		log.Printf("DAP stepOut failed: %v", err)
	}
}

// StepOver performs one step-over on the current thread.
func (c *Channel) StepOver() {
	if err := c.client.Next(c.currentThread()); err != nil {
		log.Printf("DAP next failed: %v", err)
	}
}

// Detach ends the session.
func (c *Channel) Detach() {
	c.mu.Lock()
	wasAttached := c.attached
	c.attached = false
	c.suspended = false
	c.mu.Unlock()
	if !wasAttached {
		return
	}
	if err := c.client.Disconnect(false); err != nil {
		log.Printf("DAP disconnect failed: %v", err)
	}
	c.fire(func(l debugger.ChannelEvents) { l.Detached() })
}

// Close detaches if needed and releases the underlying transport.
func (c *Channel) Close() error {
	c.Detach()
	return c.client.Close()
}

// CreateBreakpoint places a breakpoint at a generated-code coordinate.
// Returns nil when the adapter rejects the whole setBreakpoints request.
func (c *Channel) CreateBreakpoint(loc debugger.ScriptLocation) debugger.RuntimeBreakpoint {
	rb := &runtimeBreakpoint{channel: c, loc: loc}

	c.mu.Lock()
	c.byScript[loc.Script] = append(c.byScript[loc.Script], rb)
	list := append([]*runtimeBreakpoint(nil), c.byScript[loc.Script]...)
	c.mu.Unlock()

	if err := c.sendBreakpoints(loc.Script, list); err != nil {
		log.Printf("DAP setBreakpoints failed for %s: %v", loc.Script, err)
		c.mu.Lock()
		c.byScript[loc.Script] = removeFromList(c.byScript[loc.Script], rb)
		c.mu.Unlock()
		return nil
	}
	return rb
}

func (c *Channel) removeBreakpoint(rb *runtimeBreakpoint) {
	script := rb.loc.Script
	c.mu.Lock()
	c.byScript[script] = removeFromList(c.byScript[script], rb)
	list := append([]*runtimeBreakpoint(nil), c.byScript[script]...)
	c.mu.Unlock()

	if err := c.sendBreakpoints(script, list); err != nil {
		log.Printf("DAP setBreakpoints failed for %s: %v", script, err)
	}
}

func removeFromList(list []*runtimeBreakpoint, rb *runtimeBreakpoint) []*runtimeBreakpoint {
	for i, b := range list {
		if b == rb {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// sendBreakpoints pushes a script's full breakpoint list to the adapter and
// folds the reply back into the list entries. The adapter answers with one
// breakpoint per requested entry, in order.
func (c *Channel) sendBreakpoints(script string, list []*runtimeBreakpoint) error {
	reqs := make([]dap.SourceBreakpoint, len(list))
	for i, rb := range list {
		reqs[i] = dap.SourceBreakpoint{
			Line:   rb.loc.Line + 1,
			Column: rb.loc.Column + 1,
		}
	}

	resp, err := c.client.SetBreakpoints(dap.Source{Path: script}, reqs)
	if err != nil {
		return err
	}

	for i, rb := range list {
		rb.mu.Lock()
		if i < len(resp) {
			rb.dapID = resp[i].Id
			rb.verified = resp[i].Verified
		} else {
			rb.verified = false
		}
		rb.mu.Unlock()
	}
	return nil
}

// CallStack fetches the raw runtime stack for the stopped thread, top frame
// first, with the local variables of each frame.
func (c *Channel) CallStack() []debugger.RuntimeFrame {
	threadID := c.currentThread()
	frames, err := c.client.StackTrace(threadID, 0, 0)
	if err != nil {
		log.Printf("DAP stackTrace failed: %v", err)
		return nil
	}

	out := make([]debugger.RuntimeFrame, 0, len(frames))
	for _, frame := range frames {
		script := ""
		if frame.Source != nil {
			script = sourceName(*frame.Source)
		}
		rf := debugger.RuntimeFrame{
			Location: debugger.ScriptLocation{
				Script: script,
				Line:   frame.Line - 1,
				Column: frame.Column - 1,
			},
			Variables: c.frameVariables(frame.Id),
		}
		if rf.Location.Column < 0 {
			rf.Location.Column = 0
		}
		out = append(out, rf)
	}
	return out
}

// frameVariables collects a frame's local variables. Failures degrade to an
// empty variable list rather than failing the whole stack.
func (c *Channel) frameVariables(frameID int) []debugger.RuntimeVariable {
	scopes, err := c.client.Scopes(frameID)
	if err != nil {
		log.Printf("DAP scopes failed: %v", err)
		return nil
	}

	var out []debugger.RuntimeVariable
	for _, scope := range scopes {
		if scope.Expensive {
			continue
		}
		vars, err := c.client.Variables(scope.VariablesReference)
		if err != nil {
			log.Printf("DAP variables failed: %v", err)
			continue
		}
		for _, v := range vars {
			out = append(out, debugger.RuntimeVariable{Name: v.Name, Value: v.Value})
		}
	}
	return out
}

// WaitStopped polls until the debuggee reports as stopped or the timeout
// elapses; used by callers that need synchronous pause semantics.
func (c *Channel) WaitStopped(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.IsSuspended() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return c.IsSuspended()
}
