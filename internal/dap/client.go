package dap

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/go-dap"
)

const requestTimeout = 10 * time.Second

// Client correlates DAP requests with their responses and forwards events.
// It covers the subset of the protocol the runtime channel needs.
type Client struct {
	transport *Transport

	pendingRequests map[int]chan dap.Message
	mu              sync.Mutex

	eventHandler func(dap.Message)

	capabilities dap.Capabilities

	initialized     chan struct{}
	initializedOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a client over the given transport and starts its read
// loop.
func NewClient(transport *Transport) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		transport:       transport,
		pendingRequests: make(map[int]chan dap.Message),
		initialized:     make(chan struct{}),
		ctx:             ctx,
		cancel:          cancel,
	}

	c.wg.Add(1)
	go c.readLoop()

	return c
}

// SetEventHandler sets the handler for DAP events. Must be called before
// any event can arrive, in practice right after NewClient.
func (c *Client) SetEventHandler(handler func(dap.Message)) {
	c.eventHandler = handler
}

// readLoop continuously reads messages from the transport.
func (c *Client) readLoop() {
	defer c.wg.Done()

	consecutiveErrors := 0
	const maxConsecutiveErrors = 5

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		msg, err := c.transport.Receive()
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
				consecutiveErrors++
				log.Printf("DAP transport error (attempt %d/%d): %v", consecutiveErrors, maxConsecutiveErrors, err)
				if consecutiveErrors >= maxConsecutiveErrors {
					log.Printf("DAP transport: too many consecutive errors, stopping read loop")
					return
				}
				continue
			}
		}

		consecutiveErrors = 0
		c.handleMessage(msg)
	}
}

// handleMessage routes responses to their waiting request and everything
// else to the event handler.
func (c *Client) handleMessage(msg dap.Message) {
	var requestSeq int
	var isResponse bool

	switch m := msg.(type) {
	case *dap.InitializeResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *dap.AttachResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *dap.DisconnectResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *dap.ConfigurationDoneResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *dap.ThreadsResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *dap.StackTraceResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *dap.ScopesResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *dap.VariablesResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *dap.SetBreakpointsResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *dap.ContinueResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *dap.NextResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *dap.StepInResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *dap.StepOutResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *dap.PauseResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *dap.LoadedSourcesResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *dap.ErrorResponse:
		requestSeq, isResponse = m.RequestSeq, true
	case *dap.InitializedEvent:
		c.initializedOnce.Do(func() {
			close(c.initialized)
		})
		if c.eventHandler != nil {
			c.eventHandler(msg)
		}
		return
	}

	if isResponse {
		c.mu.Lock()
		if ch, ok := c.pendingRequests[requestSeq]; ok {
			ch <- msg
			delete(c.pendingRequests, requestSeq)
		}
		c.mu.Unlock()
		return
	}

	if c.eventHandler != nil {
		c.eventHandler(msg)
	}
}

// sendRequest sends a request and waits for the response.
func (c *Client) sendRequest(req dap.RequestMessage, timeout time.Duration) (dap.Message, error) {
	seq := c.transport.NextSeq()
	req.GetRequest().Seq = seq

	respCh := make(chan dap.Message, 1)
	c.mu.Lock()
	c.pendingRequests[seq] = respCh
	c.mu.Unlock()

	if err := c.transport.Send(req); err != nil {
		c.mu.Lock()
		delete(c.pendingRequests, seq)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case resp := <-respCh:
		return resp, nil
	case <-time.After(timeout):
		c.mu.Lock()
		delete(c.pendingRequests, seq)
		c.mu.Unlock()
		return nil, fmt.Errorf("request timeout")
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}

// Initialize sends the initialize request and stores the adapter
// capabilities.
func (c *Client) Initialize(clientID, clientName string) (*dap.InitializeResponse, error) {
	req := &dap.InitializeRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "initialize",
		},
		Arguments: dap.InitializeRequestArguments{
			ClientID:                     clientID,
			ClientName:                   clientName,
			AdapterID:                    "jsaot-debug",
			Locale:                       "en-US",
			LinesStartAt1:                true,
			ColumnsStartAt1:              true,
			PathFormat:                   "path",
			SupportsVariableType:         true,
			SupportsRunInTerminalRequest: false,
		},
	}

	resp, err := c.sendRequest(req, requestTimeout)
	if err != nil {
		return nil, err
	}

	initResp, ok := resp.(*dap.InitializeResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	if !initResp.Success {
		return nil, fmt.Errorf("initialize failed: %s", initResp.Message)
	}

	c.capabilities = initResp.Body
	return initResp, nil
}

// WaitInitialized waits for the initialized event with a timeout.
func (c *Client) WaitInitialized(timeout time.Duration) error {
	select {
	case <-c.initialized:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for initialized event")
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// Attach sends an attach request.
func (c *Client) Attach(args map[string]interface{}) (*dap.AttachResponse, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attach args: %w", err)
	}

	req := &dap.AttachRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "attach",
		},
		Arguments: argsJSON,
	}

	resp, err := c.sendRequest(req, 30*time.Second)
	if err != nil {
		return nil, err
	}

	attachResp, ok := resp.(*dap.AttachResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	if !attachResp.Success {
		return nil, fmt.Errorf("attach failed: %s", attachResp.Message)
	}

	return attachResp, nil
}

// ConfigurationDone signals that configuration is complete.
func (c *Client) ConfigurationDone() error {
	req := &dap.ConfigurationDoneRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "configurationDone",
		},
	}

	resp, err := c.sendRequest(req, requestTimeout)
	if err != nil {
		return err
	}

	configResp, ok := resp.(*dap.ConfigurationDoneResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	if !configResp.Success {
		return fmt.Errorf("configurationDone failed: %s", configResp.Message)
	}
	return nil
}

// Disconnect ends the debug session.
func (c *Client) Disconnect(terminateDebuggee bool) error {
	req := &dap.DisconnectRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "disconnect",
		},
		Arguments: &dap.DisconnectArguments{
			TerminateDebuggee: terminateDebuggee,
		},
	}

	resp, err := c.sendRequest(req, requestTimeout)
	if err != nil {
		return err
	}

	disconnectResp, ok := resp.(*dap.DisconnectResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	if !disconnectResp.Success {
		return fmt.Errorf("disconnect failed: %s", disconnectResp.Message)
	}
	return nil
}

// Threads gets all threads.
func (c *Client) Threads() ([]dap.Thread, error) {
	req := &dap.ThreadsRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "threads",
		},
	}

	resp, err := c.sendRequest(req, requestTimeout)
	if err != nil {
		return nil, err
	}

	threadsResp, ok := resp.(*dap.ThreadsResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	if !threadsResp.Success {
		return nil, fmt.Errorf("threads request failed: %s", threadsResp.Message)
	}
	return threadsResp.Body.Threads, nil
}

// StackTrace gets the stack trace for a thread.
func (c *Client) StackTrace(threadID, startFrame, levels int) ([]dap.StackFrame, error) {
	req := &dap.StackTraceRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "stackTrace",
		},
		Arguments: dap.StackTraceArguments{
			ThreadId:   threadID,
			StartFrame: startFrame,
			Levels:     levels,
		},
	}

	resp, err := c.sendRequest(req, requestTimeout)
	if err != nil {
		return nil, err
	}

	stackResp, ok := resp.(*dap.StackTraceResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	if !stackResp.Success {
		return nil, fmt.Errorf("stackTrace request failed: %s", stackResp.Message)
	}
	return stackResp.Body.StackFrames, nil
}

// Scopes gets the scopes for a stack frame.
func (c *Client) Scopes(frameID int) ([]dap.Scope, error) {
	req := &dap.ScopesRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "scopes",
		},
		Arguments: dap.ScopesArguments{
			FrameId: frameID,
		},
	}

	resp, err := c.sendRequest(req, requestTimeout)
	if err != nil {
		return nil, err
	}

	scopesResp, ok := resp.(*dap.ScopesResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	if !scopesResp.Success {
		return nil, fmt.Errorf("scopes request failed: %s", scopesResp.Message)
	}
	return scopesResp.Body.Scopes, nil
}

// Variables gets variables for a reference.
func (c *Client) Variables(variablesRef int) ([]dap.Variable, error) {
	req := &dap.VariablesRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "variables",
		},
		Arguments: dap.VariablesArguments{
			VariablesReference: variablesRef,
		},
	}

	resp, err := c.sendRequest(req, requestTimeout)
	if err != nil {
		return nil, err
	}

	varsResp, ok := resp.(*dap.VariablesResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	if !varsResp.Success {
		return nil, fmt.Errorf("variables request failed: %s", varsResp.Message)
	}
	return varsResp.Body.Variables, nil
}

// SetBreakpoints replaces all breakpoints in a source file.
func (c *Client) SetBreakpoints(source dap.Source, breakpoints []dap.SourceBreakpoint) ([]dap.Breakpoint, error) {
	req := &dap.SetBreakpointsRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "setBreakpoints",
		},
		Arguments: dap.SetBreakpointsArguments{
			Source:      source,
			Breakpoints: breakpoints,
		},
	}

	resp, err := c.sendRequest(req, requestTimeout)
	if err != nil {
		return nil, err
	}

	bpResp, ok := resp.(*dap.SetBreakpointsResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	if !bpResp.Success {
		return nil, fmt.Errorf("setBreakpoints failed: %s", bpResp.Message)
	}
	return bpResp.Body.Breakpoints, nil
}

// LoadedSources gets the sources currently loaded by the debuggee.
func (c *Client) LoadedSources() ([]dap.Source, error) {
	req := &dap.LoadedSourcesRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "loadedSources",
		},
	}

	resp, err := c.sendRequest(req, requestTimeout)
	if err != nil {
		return nil, err
	}

	srcResp, ok := resp.(*dap.LoadedSourcesResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type: %T", resp)
	}
	if !srcResp.Success {
		return nil, fmt.Errorf("loadedSources request failed: %s", srcResp.Message)
	}
	return srcResp.Body.Sources, nil
}

// Continue continues execution.
func (c *Client) Continue(threadID int) error {
	req := &dap.ContinueRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "continue",
		},
		Arguments: dap.ContinueArguments{
			ThreadId: threadID,
		},
	}

	resp, err := c.sendRequest(req, requestTimeout)
	if err != nil {
		return err
	}

	contResp, ok := resp.(*dap.ContinueResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	if !contResp.Success {
		return fmt.Errorf("continue failed: %s", contResp.Message)
	}
	return nil
}

// Next steps over.
func (c *Client) Next(threadID int) error {
	req := &dap.NextRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "next",
		},
		Arguments: dap.NextArguments{
			ThreadId: threadID,
		},
	}

	resp, err := c.sendRequest(req, requestTimeout)
	if err != nil {
		return err
	}

	nextResp, ok := resp.(*dap.NextResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	if !nextResp.Success {
		return fmt.Errorf("next failed: %s", nextResp.Message)
	}
	return nil
}

// StepIn steps into.
func (c *Client) StepIn(threadID int) error {
	req := &dap.StepInRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "stepIn",
		},
		Arguments: dap.StepInArguments{
			ThreadId: threadID,
		},
	}

	resp, err := c.sendRequest(req, requestTimeout)
	if err != nil {
		return err
	}

	stepResp, ok := resp.(*dap.StepInResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	if !stepResp.Success {
		return fmt.Errorf("stepIn failed: %s", stepResp.Message)
	}
	return nil
}

// StepOut steps out.
func (c *Client) StepOut(threadID int) error {
	req := &dap.StepOutRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "stepOut",
		},
		Arguments: dap.StepOutArguments{
			ThreadId: threadID,
		},
	}

	resp, err := c.sendRequest(req, requestTimeout)
	if err != nil {
		return err
	}

	stepResp, ok := resp.(*dap.StepOutResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	if !stepResp.Success {
		return fmt.Errorf("stepOut failed: %s", stepResp.Message)
	}
	return nil
}

// Pause pauses execution.
func (c *Client) Pause(threadID int) error {
	req := &dap.PauseRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "pause",
		},
		Arguments: dap.PauseArguments{
			ThreadId: threadID,
		},
	}

	resp, err := c.sendRequest(req, requestTimeout)
	if err != nil {
		return err
	}

	pauseResp, ok := resp.(*dap.PauseResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	if !pauseResp.Success {
		return fmt.Errorf("pause failed: %s", pauseResp.Message)
	}
	return nil
}

// Capabilities returns the capabilities from the initialize response.
func (c *Client) Capabilities() dap.Capabilities {
	return c.capabilities
}

// Close shuts down the client.
func (c *Client) Close() error {
	c.cancel()
	err := c.transport.Close()
	c.wg.Wait()
	return err
}
