package dap

import (
	"bufio"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-dap"

	"github.com/jsaot/debug/internal/debugger"
)

// fakeAdapter speaks just enough DAP to exercise the channel: one thread,
// one loaded script, all breakpoints verified.
type fakeAdapter struct {
	conn   net.Conn
	reader *bufio.Reader

	mu         sync.Mutex
	seq        int
	nextBPID   int
	lastSetBPs map[string][]dap.SourceBreakpoint
}

func startFakeAdapter(t *testing.T) (*fakeAdapter, net.Conn) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	a := &fakeAdapter{
		conn:       serverConn,
		reader:     bufio.NewReader(serverConn),
		nextBPID:   1,
		lastSetBPs: make(map[string][]dap.SourceBreakpoint),
	}
	go a.serve()
	t.Cleanup(func() { serverConn.Close() })
	return a, clientConn
}

func (a *fakeAdapter) send(msg dap.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	dap.WriteProtocolMessage(a.conn, msg)
}

func (a *fakeAdapter) nextSeq() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return a.seq
}

func (a *fakeAdapter) response(command string, requestSeq int) dap.Response {
	return dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: a.nextSeq(), Type: "response"},
		Command:         command,
		RequestSeq:      requestSeq,
		Success:         true,
	}
}

func (a *fakeAdapter) event(name string) dap.Event {
	return dap.Event{
		ProtocolMessage: dap.ProtocolMessage{Seq: a.nextSeq(), Type: "event"},
		Event:           name,
	}
}

func (a *fakeAdapter) serve() {
	for {
		msg, err := dap.ReadProtocolMessage(a.reader)
		if err != nil {
			return
		}
		switch req := msg.(type) {
		case *dap.InitializeRequest:
			a.send(&dap.InitializeResponse{
				Response: a.response("initialize", req.Seq),
				Body:     dap.Capabilities{SupportsConfigurationDoneRequest: true},
			})
		case *dap.AttachRequest:
			a.send(&dap.AttachResponse{Response: a.response("attach", req.Seq)})
			a.send(&dap.InitializedEvent{Event: a.event("initialized")})
		case *dap.ConfigurationDoneRequest:
			a.send(&dap.ConfigurationDoneResponse{Response: a.response("configurationDone", req.Seq)})
		case *dap.LoadedSourcesRequest:
			a.send(&dap.LoadedSourcesResponse{
				Response: a.response("loadedSources", req.Seq),
				Body: dap.LoadedSourcesResponseBody{
					Sources: []dap.Source{{Name: "main.js", Path: "main.js"}},
				},
			})
		case *dap.SetBreakpointsRequest:
			a.mu.Lock()
			a.lastSetBPs[req.Arguments.Source.Path] = req.Arguments.Breakpoints
			var bps []dap.Breakpoint
			for _, sb := range req.Arguments.Breakpoints {
				bps = append(bps, dap.Breakpoint{Id: a.nextBPID, Verified: true, Line: sb.Line})
				a.nextBPID++
			}
			a.mu.Unlock()
			a.send(&dap.SetBreakpointsResponse{
				Response: a.response("setBreakpoints", req.Seq),
				Body:     dap.SetBreakpointsResponseBody{Breakpoints: bps},
			})
		case *dap.PauseRequest:
			a.send(&dap.PauseResponse{Response: a.response("pause", req.Seq)})
			a.send(&dap.StoppedEvent{
				Event: a.event("stopped"),
				Body:  dap.StoppedEventBody{Reason: "pause", ThreadId: 1, AllThreadsStopped: true},
			})
		case *dap.ContinueRequest:
			a.send(&dap.ContinueResponse{
				Response: a.response("continue", req.Seq),
				Body:     dap.ContinueResponseBody{AllThreadsContinued: true},
			})
		case *dap.NextRequest:
			a.send(&dap.NextResponse{Response: a.response("next", req.Seq)})
		case *dap.StackTraceRequest:
			a.send(&dap.StackTraceResponse{
				Response: a.response("stackTrace", req.Seq),
				Body: dap.StackTraceResponseBody{
					StackFrames: []dap.StackFrame{{
						Id:     1,
						Name:   "entry",
						Source: &dap.Source{Path: "main.js"},
						Line:   6,
						Column: 1,
					}},
					TotalFrames: 1,
				},
			})
		case *dap.ScopesRequest:
			a.send(&dap.ScopesResponse{
				Response: a.response("scopes", req.Seq),
				Body: dap.ScopesResponseBody{
					Scopes: []dap.Scope{{Name: "Locals", VariablesReference: 100}},
				},
			})
		case *dap.VariablesRequest:
			a.send(&dap.VariablesResponse{
				Response: a.response("variables", req.Seq),
				Body: dap.VariablesResponseBody{
					Variables: []dap.Variable{{Name: "a", Value: "3"}},
				},
			})
		case *dap.ThreadsRequest:
			a.send(&dap.ThreadsResponse{
				Response: a.response("threads", req.Seq),
				Body:     dap.ThreadsResponseBody{Threads: []dap.Thread{{Id: 1, Name: "main"}}},
			})
		case *dap.DisconnectRequest:
			a.send(&dap.DisconnectResponse{Response: a.response("disconnect", req.Seq)})
		}
	}
}

func (a *fakeAdapter) breakpointsFor(script string) []dap.SourceBreakpoint {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]dap.SourceBreakpoint(nil), a.lastSetBPs[script]...)
}

// recordingEvents counts channel events for assertion.
type recordingEvents struct {
	debugger.NopChannelEvents
	mu       sync.Mutex
	attached int
	resumed  int
	paused   int
	scripts  []string
}

func (l *recordingEvents) Attached() { l.mu.Lock(); l.attached++; l.mu.Unlock() }
func (l *recordingEvents) Resumed()  { l.mu.Lock(); l.resumed++; l.mu.Unlock() }
func (l *recordingEvents) Paused()   { l.mu.Lock(); l.paused++; l.mu.Unlock() }

func (l *recordingEvents) ScriptAdded(name string) {
	l.mu.Lock()
	l.scripts = append(l.scripts, name)
	l.mu.Unlock()
}

func connectTestChannel(t *testing.T) (*Channel, *fakeAdapter) {
	t.Helper()
	adapter, clientConn := startFakeAdapter(t)
	ch, err := NewChannel(NewClient(NewTransport(clientConn)))
	if err != nil {
		t.Fatalf("attach handshake failed: %v", err)
	}
	t.Cleanup(func() { ch.Close() })
	return ch, adapter
}

func TestAttachHandshake(t *testing.T) {
	ch, _ := connectTestChannel(t)

	if !ch.IsAttached() {
		t.Fatal("channel not attached after handshake")
	}
	if ch.IsSuspended() {
		t.Fatal("channel suspended after handshake")
	}
}

func TestLateListenerObservesAttachAndScripts(t *testing.T) {
	ch, _ := connectTestChannel(t)

	events := &recordingEvents{}
	ch.AddListener(events)

	events.mu.Lock()
	defer events.mu.Unlock()
	if events.attached != 1 {
		t.Fatalf("attached fired %d times for late listener, want 1", events.attached)
	}
	if len(events.scripts) != 1 || events.scripts[0] != "main.js" {
		t.Fatalf("scripts replayed to late listener = %v, want [main.js]", events.scripts)
	}
}

func TestBreakpointBatchingPerScript(t *testing.T) {
	ch, adapter := connectTestChannel(t)

	loc1 := debugger.ScriptLocation{Script: "main.js", Line: 5, Column: 0}
	loc2 := debugger.ScriptLocation{Script: "main.js", Line: 10, Column: 4}

	rb1 := ch.CreateBreakpoint(loc1)
	if rb1 == nil {
		t.Fatal("CreateBreakpoint returned nil")
	}
	if !rb1.Valid() {
		t.Fatal("breakpoint not verified")
	}

	rb2 := ch.CreateBreakpoint(loc2)
	if rb2 == nil {
		t.Fatal("CreateBreakpoint returned nil")
	}

	// The adapter must have been sent the file's full list, 1-based.
	got := adapter.breakpointsFor("main.js")
	if len(got) != 2 || got[0].Line != 6 || got[1].Line != 11 {
		t.Fatalf("adapter breakpoint list = %+v, want lines 6 and 11", got)
	}

	rb1.Destroy()
	got = adapter.breakpointsFor("main.js")
	if len(got) != 1 || got[0].Line != 11 {
		t.Fatalf("adapter breakpoint list after destroy = %+v, want line 11 only", got)
	}
	if !rb2.Valid() {
		t.Fatal("surviving breakpoint lost validity after re-send")
	}
}

func TestSuspendReportsStoppedAndStack(t *testing.T) {
	ch, _ := connectTestChannel(t)
	events := &recordingEvents{}
	ch.AddListener(events)

	ch.Suspend()
	if !ch.WaitStopped(2 * time.Second) {
		t.Fatal("channel never reported suspended after pause")
	}

	stack := ch.CallStack()
	if len(stack) != 1 {
		t.Fatalf("got %d frames, want 1", len(stack))
	}
	want := debugger.ScriptLocation{Script: "main.js", Line: 5, Column: 0}
	if stack[0].Location != want {
		t.Fatalf("frame location = %+v, want %+v (0-based)", stack[0].Location, want)
	}
	if len(stack[0].Variables) != 1 || stack[0].Variables[0].Name != "a" {
		t.Fatalf("frame variables = %+v, want [a]", stack[0].Variables)
	}

	events.mu.Lock()
	defer events.mu.Unlock()
	if events.paused != 1 {
		t.Fatalf("paused fired %d times, want 1", events.paused)
	}
}

func TestResumeClearsSuspended(t *testing.T) {
	ch, _ := connectTestChannel(t)
	events := &recordingEvents{}
	ch.AddListener(events)

	ch.Suspend()
	if !ch.WaitStopped(2 * time.Second) {
		t.Fatal("channel never reported suspended")
	}

	ch.Resume()
	if ch.IsSuspended() {
		t.Fatal("channel still suspended after resume")
	}

	events.mu.Lock()
	defer events.mu.Unlock()
	if events.resumed != 1 {
		t.Fatalf("resumed fired %d times, want 1", events.resumed)
	}
}

func TestDetach(t *testing.T) {
	ch, _ := connectTestChannel(t)
	ch.Detach()
	if ch.IsAttached() {
		t.Fatal("channel still attached after detach")
	}
	// Idempotent.
	ch.Detach()
}
