package debugger

import (
	"fmt"
	"sync"
	"testing"

	"github.com/jsaot/debug/internal/debuginfo"
	"github.com/jsaot/debug/pkg/types"
)

// fakeRuntimeBreakpoint records destruction and lets tests flip validity.
type fakeRuntimeBreakpoint struct {
	loc       ScriptLocation
	mu        sync.Mutex
	valid     bool
	destroyed bool
}

func (b *fakeRuntimeBreakpoint) Location() ScriptLocation { return b.loc }

func (b *fakeRuntimeBreakpoint) Valid() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.valid
}

func (b *fakeRuntimeBreakpoint) Destroy() {
	b.mu.Lock()
	b.destroyed = true
	b.mu.Unlock()
}

func (b *fakeRuntimeBreakpoint) isDestroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// fakeChannel is an in-process RuntimeChannel with scripted state.
type fakeChannel struct {
	mu          sync.Mutex
	attached    bool
	suspended   bool
	valid       bool // validity for newly created breakpoints
	stack       []RuntimeFrame
	created     []*fakeRuntimeBreakpoint
	listeners   []ChannelEvents
	resumeCalls int
	stackCalls  int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{attached: true, valid: true}
}

func (c *fakeChannel) Suspend() {
	c.mu.Lock()
	c.suspended = true
	c.mu.Unlock()
	c.fire(func(l ChannelEvents) { l.Paused() })
}

func (c *fakeChannel) Resume() {
	c.mu.Lock()
	c.suspended = false
	c.resumeCalls++
	c.mu.Unlock()
	c.fire(func(l ChannelEvents) { l.Resumed() })
}

func (c *fakeChannel) StepInto() { c.mu.Lock(); c.resumeCalls++; c.mu.Unlock() }
func (c *fakeChannel) StepOut()  { c.mu.Lock(); c.resumeCalls++; c.mu.Unlock() }
func (c *fakeChannel) StepOver() { c.mu.Lock(); c.resumeCalls++; c.mu.Unlock() }

func (c *fakeChannel) IsSuspended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspended
}

func (c *fakeChannel) IsAttached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

func (c *fakeChannel) Detach() {
	c.mu.Lock()
	c.attached = false
	c.suspended = false
	c.mu.Unlock()
	c.fire(func(l ChannelEvents) { l.Detached() })
}

func (c *fakeChannel) CreateBreakpoint(loc ScriptLocation) RuntimeBreakpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	rb := &fakeRuntimeBreakpoint{loc: loc, valid: c.valid}
	c.created = append(c.created, rb)
	return rb
}

func (c *fakeChannel) CallStack() []RuntimeFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stackCalls++
	return c.stack
}

func (c *fakeChannel) AddListener(l ChannelEvents) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

func (c *fakeChannel) fire(f func(ChannelEvents)) {
	c.mu.Lock()
	ls := append([]ChannelEvents(nil), c.listeners...)
	c.mu.Unlock()
	for _, l := range ls {
		f(l)
	}
}

func (c *fakeChannel) announceScript(name string) {
	c.fire(func(l ChannelEvents) { l.ScriptAdded(name) })
}

func (c *fakeChannel) changeBreakpoint(rb RuntimeBreakpoint) {
	c.fire(func(l ChannelEvents) { l.BreakpointChanged(rb) })
}

func (c *fakeChannel) setStack(frames []RuntimeFrame) {
	c.mu.Lock()
	c.stack = frames
	c.mu.Unlock()
}

func (c *fakeChannel) liveBreakpoints() []*fakeRuntimeBreakpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeRuntimeBreakpoint
	for _, rb := range c.created {
		if !rb.isDestroyed() {
			out = append(out, rb)
		}
	}
	return out
}

// mapProvider serves records from a map, counting lookups.
type mapProvider struct {
	mu      sync.Mutex
	records map[string]*debuginfo.Info
	calls   map[string]int
}

func newMapProvider() *mapProvider {
	return &mapProvider{records: make(map[string]*debuginfo.Info), calls: make(map[string]int)}
}

func (p *mapProvider) GetDebugInformation(script string) *debuginfo.Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[script]++
	return p.records[script]
}

// recordingListener counts events for assertion.
type recordingListener struct {
	NopListener
	mu       sync.Mutex
	resumed  int
	paused   int
	bpEvents []*Breakpoint
}

func (l *recordingListener) Resumed() { l.mu.Lock(); l.resumed++; l.mu.Unlock() }
func (l *recordingListener) Paused()  { l.mu.Lock(); l.paused++; l.mu.Unlock() }

func (l *recordingListener) BreakpointStatusChanged(bp *Breakpoint) {
	l.mu.Lock()
	l.bpEvents = append(l.bpEvents, bp)
	l.mu.Unlock()
}

func (l *recordingListener) breakpointEvents() []*Breakpoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Breakpoint(nil), l.bpEvents...)
}

// mainRecord maps Main.java line 10 to (5,0) and line 20 to (8,4), with a
// method and an ambiguous variable at the second location.
func mainRecord(t *testing.T) *debuginfo.Info {
	t.Helper()
	b := debuginfo.NewBuilder()
	if err := b.AddSourceLocation(gl(5, 0), sl("Main.java", 10)); err != nil {
		t.Fatal(err)
	}
	b.AddClass(gl(5, 0), "com.example.Main")
	b.AddMethod(gl(5, 0), "main", "([Ljava/lang/String;)V")
	if err := b.AddSourceLocation(gl(8, 4), sl("Main.java", 20)); err != nil {
		t.Fatal(err)
	}
	b.AddVariable(gl(8, 4), "a", "index")
	b.AddFieldMeaning("com.example.Main", "f0", "count")
	return b.Build()
}

func gl(line, col int) types.GeneratedLocation { return types.GeneratedLocation{Line: line, Column: col} }

func sl(file string, line int) types.SourceLocation {
	return types.SourceLocation{FileName: file, Line: line}
}

func newSession(t *testing.T) (*Debugger, *fakeChannel, *mapProvider) {
	t.Helper()
	ch := newFakeChannel()
	provider := newMapProvider()
	return New(ch, provider), ch, provider
}

func TestScriptRegistrationRecomputesBreakpoints(t *testing.T) {
	d, ch, provider := newSession(t)
	provider.records["main.js"] = mainRecord(t)

	bp := d.CreateBreakpoint("Main.java", 10)
	if bp.IsValid() {
		t.Fatal("breakpoint valid before any script is loaded")
	}
	if got := len(ch.liveBreakpoints()); got != 0 {
		t.Fatalf("got %d runtime breakpoints before script load, want 0", got)
	}

	ch.announceScript("main.js")

	if !bp.IsValid() {
		t.Fatal("breakpoint not valid after covering script loaded")
	}
	live := ch.liveBreakpoints()
	if len(live) != 1 {
		t.Fatalf("got %d runtime breakpoints, want 1", len(live))
	}
	want := ScriptLocation{Script: "main.js", Line: 5, Column: 0}
	if live[0].loc != want {
		t.Fatalf("runtime breakpoint at %+v, want %+v", live[0].loc, want)
	}
}

func TestScriptRegistrationFirstWins(t *testing.T) {
	d, ch, provider := newSession(t)
	provider.records["main.js"] = mainRecord(t)

	ch.announceScript("main.js")
	ch.announceScript("main.js")

	if got := provider.calls["main.js"]; got != 1 {
		t.Fatalf("provider queried %d times, want 1", got)
	}
	if got := d.Scripts(); len(got) != 1 || got[0] != "main.js" {
		t.Fatalf("Scripts() = %v, want [main.js]", got)
	}
}

func TestScriptWithoutRecordIgnored(t *testing.T) {
	d, ch, _ := newSession(t)
	ch.announceScript("vendor.js")
	if got := d.Scripts(); len(got) != 0 {
		t.Fatalf("Scripts() = %v, want empty", got)
	}
}

func TestBreakpointStatusEventFiresOnceOnTransition(t *testing.T) {
	d, ch, provider := newSession(t)
	provider.records["main.js"] = mainRecord(t)
	listener := &recordingListener{}
	d.AddListener(listener)

	bp := d.CreateBreakpoint("Main.java", 10)
	if got := listener.breakpointEvents(); len(got) != 0 {
		t.Fatalf("got %d status events at creation, want 0", len(got))
	}

	ch.announceScript("main.js")

	events := listener.breakpointEvents()
	if len(events) != 1 || events[0] != bp {
		t.Fatalf("got %d status events after script load, want exactly 1 for the breakpoint", len(events))
	}
}

func TestBreakpointChangedEventUpdatesValidity(t *testing.T) {
	d, ch, provider := newSession(t)
	provider.records["main.js"] = mainRecord(t)
	ch.announceScript("main.js")

	bp := d.CreateBreakpoint("Main.java", 10)
	if !bp.IsValid() {
		t.Fatal("breakpoint should start valid")
	}

	listener := &recordingListener{}
	d.AddListener(listener)

	live := ch.liveBreakpoints()
	if len(live) != 1 {
		t.Fatalf("got %d runtime breakpoints, want 1", len(live))
	}
	live[0].mu.Lock()
	live[0].valid = false
	live[0].mu.Unlock()
	ch.changeBreakpoint(live[0])

	if bp.IsValid() {
		t.Fatal("breakpoint still valid after runtime invalidation")
	}
	if got := len(listener.breakpointEvents()); got != 1 {
		t.Fatalf("got %d status events, want 1", got)
	}

	// Same state again must not re-fire.
	ch.changeBreakpoint(live[0])
	if got := len(listener.breakpointEvents()); got != 1 {
		t.Fatalf("got %d status events after redundant change, want still 1", got)
	}
}

func TestDestroyReleasesRuntimeBreakpoints(t *testing.T) {
	d, ch, provider := newSession(t)
	provider.records["main.js"] = mainRecord(t)
	ch.announceScript("main.js")

	bp := d.CreateBreakpoint("Main.java", 10)
	live := ch.liveBreakpoints()
	if len(live) != 1 {
		t.Fatalf("got %d runtime breakpoints, want 1", len(live))
	}

	bp.Destroy()

	if !live[0].isDestroyed() {
		t.Fatal("runtime breakpoint not destroyed")
	}
	if got := len(d.Breakpoints()); got != 0 {
		t.Fatalf("Breakpoints() has %d entries after destroy, want 0", got)
	}
}

func TestFindBreakpoint(t *testing.T) {
	d, _, _ := newSession(t)
	bp := d.CreateBreakpoint("Main.java", 10)
	if got := d.FindBreakpoint(bp.ID()); got != bp {
		t.Fatalf("FindBreakpoint(%q) = %v, want the created breakpoint", bp.ID(), got)
	}
	if got := d.FindBreakpoint("no-such-id"); got != nil {
		t.Fatalf("FindBreakpoint on unknown id = %v, want nil", got)
	}
}

func TestContinueToLocationDrainsTemporaries(t *testing.T) {
	d, ch, provider := newSession(t)
	provider.records["main.js"] = mainRecord(t)
	ch.announceScript("main.js")
	ch.Suspend()

	d.ContinueToLocation("Main.java", 20)

	ch.mu.Lock()
	resumes := ch.resumeCalls
	ch.mu.Unlock()
	if resumes != 1 {
		t.Fatalf("got %d resumes, want 1", resumes)
	}
	// The resume notification must have drained and destroyed the
	// temporary breakpoints.
	if got := len(ch.liveBreakpoints()); got != 0 {
		t.Fatalf("%d temporary breakpoints still live after resume, want 0", got)
	}
}

func TestContinueToLocationNoOpWhileRunning(t *testing.T) {
	d, ch, provider := newSession(t)
	provider.records["main.js"] = mainRecord(t)
	ch.announceScript("main.js")

	d.ContinueToLocation("Main.java", 20)

	ch.mu.Lock()
	resumes := ch.resumeCalls
	created := len(ch.created)
	ch.mu.Unlock()
	if resumes != 0 || created != 0 {
		t.Fatalf("got %d resumes and %d breakpoints while running, want 0 and 0", resumes, created)
	}
}

func TestControlCommandsNoOpWhileDetached(t *testing.T) {
	d, ch, _ := newSession(t)
	ch.Detach()

	d.Suspend()
	d.Resume()
	d.StepInto()
	d.StepOut()
	d.StepOver()

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.resumeCalls != 0 || ch.suspended {
		t.Fatalf("channel received commands while detached: resumes=%d suspended=%v",
			ch.resumeCalls, ch.suspended)
	}
}

func TestCallStackNilWhileRunning(t *testing.T) {
	d, _, _ := newSession(t)
	if got := d.CallStack(); got != nil {
		t.Fatalf("CallStack() = %v while running, want nil", got)
	}
}

func TestCallStackResolvesFrames(t *testing.T) {
	d, ch, provider := newSession(t)
	provider.records["main.js"] = mainRecord(t)
	ch.announceScript("main.js")
	ch.setStack([]RuntimeFrame{
		{Location: ScriptLocation{Script: "main.js", Line: 8, Column: 4},
			Variables: []RuntimeVariable{{Name: "a", Value: "3"}}},
		{Location: ScriptLocation{Script: "main.js", Line: 5, Column: 0}},
	})
	ch.Suspend()

	stack := d.CallStack()
	if len(stack) != 2 {
		t.Fatalf("got %d frames, want 2", len(stack))
	}
	if got := stack[0].Location(); got != sl("Main.java", 20) {
		t.Fatalf("frame 0 location = %+v, want Main.java:20", got)
	}
	if stack[1].Method() == nil || stack[1].Method().Name != "main" {
		t.Fatalf("frame 1 method = %+v, want main", stack[1].Method())
	}
	vars := stack[0].Variables().Variables()
	if len(vars) != 1 || len(vars[0].SourceNames) != 1 || vars[0].SourceNames[0] != "index" {
		t.Fatalf("frame 0 variables = %+v, want a->[index]", vars)
	}
}

func TestCallStackCollapsesEmptyRuns(t *testing.T) {
	d, ch, provider := newSession(t)
	provider.records["main.js"] = mainRecord(t)
	ch.announceScript("main.js")

	mapped := ScriptLocation{Script: "main.js", Line: 5, Column: 0}
	unmapped := ScriptLocation{Script: "vendor.js", Line: 1, Column: 0}
	// E E M E E E M collapses to E M E M.
	ch.setStack([]RuntimeFrame{
		{Location: unmapped}, {Location: unmapped},
		{Location: mapped},
		{Location: unmapped}, {Location: unmapped}, {Location: unmapped},
		{Location: mapped},
	})
	ch.Suspend()

	stack := d.CallStack()
	var shape []bool
	for _, f := range stack {
		shape = append(shape, f.Location().IsEmpty())
	}
	want := []bool{true, false, true, false}
	if fmt.Sprint(shape) != fmt.Sprint(want) {
		t.Fatalf("collapsed shape = %v, want %v", shape, want)
	}
}

func TestCallStackCachedUntilResume(t *testing.T) {
	d, ch, provider := newSession(t)
	provider.records["main.js"] = mainRecord(t)
	ch.announceScript("main.js")
	ch.setStack([]RuntimeFrame{{Location: ScriptLocation{Script: "main.js", Line: 5, Column: 0}}})
	ch.Suspend()

	d.CallStack()
	d.CallStack()
	ch.mu.Lock()
	calls := ch.stackCalls
	ch.mu.Unlock()
	if calls != 1 {
		t.Fatalf("channel stack fetched %d times, want 1 (cached)", calls)
	}

	ch.Resume()
	ch.Suspend()
	d.CallStack()
	ch.mu.Lock()
	calls = ch.stackCalls
	ch.mu.Unlock()
	if calls != 2 {
		t.Fatalf("channel stack fetched %d times after pause cycle, want 2", calls)
	}
}

func TestMapFieldFirstMatch(t *testing.T) {
	d, ch, provider := newSession(t)
	provider.records["main.js"] = mainRecord(t)
	ch.announceScript("main.js")

	meaning, ok := d.MapField("com.example.Main", "f0")
	if !ok || meaning != "count" {
		t.Fatalf("MapField = %q, %v; want count, true", meaning, ok)
	}
	if _, ok := d.MapField("com.example.Main", "f9"); ok {
		t.Fatal("MapField matched unknown field")
	}
}

func TestMapVariableUnknownScript(t *testing.T) {
	d, _, _ := newSession(t)
	if got := d.MapVariable("a", ScriptLocation{Script: "nope.js", Line: 1}); got != nil {
		t.Fatalf("MapVariable on unknown script = %v, want nil", got)
	}
}

func TestPauseResumeEventsReachListeners(t *testing.T) {
	d, ch, _ := newSession(t)
	listener := &recordingListener{}
	d.AddListener(listener)

	ch.Suspend()
	ch.Resume()

	listener.mu.Lock()
	defer listener.mu.Unlock()
	if listener.paused != 1 || listener.resumed != 1 {
		t.Fatalf("paused=%d resumed=%d, want 1 and 1", listener.paused, listener.resumed)
	}
}

func TestRemoveListener(t *testing.T) {
	d, ch, _ := newSession(t)
	listener := &recordingListener{}
	d.AddListener(listener)
	d.RemoveListener(listener)

	ch.Suspend()

	listener.mu.Lock()
	defer listener.mu.Unlock()
	if listener.paused != 0 {
		t.Fatalf("removed listener received %d pause events", listener.paused)
	}
}

func TestConcurrentBreakpointChurn(t *testing.T) {
	d, ch, provider := newSession(t)
	provider.records["main.js"] = mainRecord(t)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				bp := d.CreateBreakpoint("Main.java", 10)
				bp.Destroy()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ch.announceScript("main.js")
	}()
	wg.Wait()

	if got := len(d.Breakpoints()); got != 0 {
		t.Fatalf("%d breakpoints left after churn, want 0", got)
	}
	for _, rb := range ch.liveBreakpoints() {
		t.Fatalf("leaked runtime breakpoint at %+v", rb.loc)
	}
}
