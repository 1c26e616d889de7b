package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// defaultHookTimeout bounds a hook callback invocation unless the matcher
// sets its own timeout.
const defaultHookTimeout = 60 * time.Second

// errChannelClosed resolves every pending correlation when the control
// channel shuts down, so no caller blocks forever.
var errChannelClosed = errors.New("control channel closed")

// channelOptions configures a controlChannel.
type channelOptions struct {
	CanUseTool        CanUseToolFunc
	Hooks             map[HookEvent][]HookMatcher
	ToolServers       map[string]*ToolServer
	InitializeTimeout float64
	Agents            map[string]AgentDefinition
	Logger            *slog.Logger
}

// hookRegistration binds one callback id to its handler and timeout for the
// lifetime of the session.
type hookRegistration struct {
	callback HookCallback
	timeout  time.Duration
}

// pendingRequest is a single-fulfillment correlation slot. It is resolved
// exactly once: by the matching control_response, or by channel shutdown.
type pendingRequest struct {
	once   sync.Once
	done   chan struct{}
	result map[string]any
	err    error
}

// resolve stores the outcome and closes done, first caller wins. The field
// writes are ordered before the close, so a waiter that returns from done
// reads a consistent outcome.
func (p *pendingRequest) resolve(result map[string]any, err error) {
	p.once.Do(func() {
		p.result = result
		p.err = err
		close(p.done)
	})
}

// streamItem is one entry of the consumer queue: a conversation message or
// a per-message error, in arrival order.
type streamItem struct {
	msg Message
	err error
}

// controlTransport is the slice of the transport the control channel needs.
type controlTransport interface {
	Write(data string) error
	Messages() <-chan rawMessage
	Errors() <-chan error
	LastError() error
	Close() error
	EndInput() error
	IsReady() bool
}

// controlChannel is the session's single authority for correlating outbound
// control requests with inbound responses, dispatching inbound control
// requests to registered handlers, and forwarding conversation messages to
// the consumer queue.
//
// Outbound writes go through the transport's write path, which is locked
// independently of the background read loop; a writer never waits on the
// reader and vice versa.
type controlChannel struct {
	transport controlTransport

	canUseTool  CanUseToolFunc
	hooks       map[HookEvent][]HookMatcher
	toolServers map[string]*ToolServer
	agents      map[string]AgentDefinition
	logger      *slog.Logger

	// Correlation state.
	pendingRequests sync.Map // request id -> *pendingRequest
	requestCounter  atomic.Int64

	// Hook registry; read-mostly after initialize.
	hookMu         sync.RWMutex
	hookCallbacks  map[string]hookRegistration
	nextCallbackID int

	// In-flight inbound requests, cancellable via control_cancel_request.
	inflightMu sync.Mutex
	inflight   map[string]context.CancelFunc

	items   chan streamItem
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  atomic.Bool
	writeMu sync.Mutex

	firstResultOnce sync.Once
	firstResultChan chan struct{}

	streamCloseTimeout float64
	initializeTimeout  float64

	initMu     sync.Mutex
	initResult map[string]any

	readErrMu sync.Mutex
	readErr   error
}

func newControlChannel(transport controlTransport, opts channelOptions) *controlChannel {
	timeout := opts.InitializeTimeout
	if timeout <= 0 {
		timeout = 60.0
	}

	streamCloseTimeout := 60.0
	if envVal := os.Getenv("CLAUDE_CODE_STREAM_CLOSE_TIMEOUT"); envVal != "" {
		if ms, err := strconv.ParseFloat(envVal, 64); err == nil {
			streamCloseTimeout = ms / 1000.0
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &controlChannel{
		transport:          transport,
		canUseTool:         opts.CanUseTool,
		hooks:              opts.Hooks,
		toolServers:        opts.ToolServers,
		agents:             opts.Agents,
		logger:             logger,
		hookCallbacks:      make(map[string]hookRegistration),
		inflight:           make(map[string]context.CancelFunc),
		items:              make(chan streamItem, 100),
		firstResultChan:    make(chan struct{}),
		streamCloseTimeout: streamCloseTimeout,
		initializeTimeout:  timeout,
	}
}

// start spawns the single background dispatch loop for this session.
func (c *controlChannel) start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.dispatch(loopCtx)
	return nil
}

func (c *controlChannel) dispatch(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.items)

	errChan := c.transport.Errors()

	for {
		select {
		case <-ctx.Done():
			if !c.closed.Load() {
				c.terminate(ctx.Err())
			}
			return

		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			if err != nil {
				c.terminate(err)
				return
			}

		case item, ok := <-c.transport.Messages():
			if !ok {
				// The stream ended. A recorded transport error is fatal;
				// a clean end still has to resolve every outstanding
				// correlation slot or its caller waits out the timeout.
				if err := c.transport.LastError(); err != nil {
					c.terminate(err)
				} else {
					c.failPendingRequests(errChannelClosed)
				}
				return
			}
			if c.closed.Load() {
				return
			}

			// Per-line decode failures ride the queue in order; the
			// stream keeps going.
			if item.err != nil {
				c.forward(ctx, streamItem{err: item.err})
				continue
			}

			msg, err := decodeMessage(item.data)
			if err != nil {
				c.forward(ctx, streamItem{err: err})
				continue
			}

			switch m := msg.(type) {
			case *ControlResponseMessage:
				if !c.resolvePending(m) {
					protoErr := newControlProtocolError(m.RequestID,
						fmt.Sprintf("control_response for unknown request_id %q: protocol desynchronized", m.RequestID))
					c.terminate(protoErr)
					return
				}

			case *ControlRequestMessage:
				go c.handleControlRequest(ctx, m)

			case *ControlCancelMessage:
				c.cancelInflight(m.RequestID)

			case *ResultMessage:
				c.firstResultOnce.Do(func() {
					close(c.firstResultChan)
				})
				c.forward(ctx, streamItem{msg: m})

			default:
				c.forward(ctx, streamItem{msg: msg})
			}
		}
	}
}

// terminate records the fatal error, resolves every outstanding correlation
// and tells the consumer. The queue send is best-effort: the error is
// always observable through err() after the queue closes.
func (c *controlChannel) terminate(err error) {
	c.setReadError(err)
	c.failPendingRequests(err)
	select {
	case c.items <- streamItem{err: err}:
	default:
	}
}

func (c *controlChannel) forward(ctx context.Context, item streamItem) {
	select {
	case c.items <- item:
	case <-ctx.Done():
	}
}

// resolvePending fulfils the correlation slot for a control response.
// Returns false when no outstanding request matches.
func (c *controlChannel) resolvePending(m *ControlResponseMessage) bool {
	val, ok := c.pendingRequests.Load(m.RequestID)
	if !ok {
		return false
	}
	pending := val.(*pendingRequest)
	if m.Subtype == "error" {
		pending.resolve(nil, fmt.Errorf("%s", m.Error))
	} else {
		pending.resolve(m.Response, nil)
	}
	return true
}

func (c *controlChannel) handleControlRequest(ctx context.Context, m *ControlRequestMessage) {
	reqCtx, cancel := context.WithCancel(ctx)
	c.trackInflight(m.RequestID, cancel)
	defer c.untrackInflight(m.RequestID)
	defer cancel()

	subtype, _ := m.Request["subtype"].(string)
	var responseData map[string]any
	var err error

	switch subtype {
	case "can_use_tool":
		responseData, err = c.handleCanUseTool(reqCtx, m.Request)
	case "hook_callback":
		responseData, err = c.handleHookCallback(reqCtx, m.Request)
	case "mcp_message":
		responseData, err = c.handleToolServerMessage(reqCtx, m.Request)
	default:
		err = fmt.Errorf("unsupported control request subtype: %s", subtype)
	}

	body := ControlResponseBody{RequestID: m.RequestID}
	if err != nil {
		body.Subtype = "error"
		body.Error = err.Error()
	} else {
		body.Subtype = "success"
		body.Response = responseData
	}

	data, _ := json.Marshal(ControlResponseEnvelope{Type: "control_response", Response: body})
	c.writeMu.Lock()
	_ = c.transport.Write(string(data) + "\n")
	c.writeMu.Unlock()
}

func (c *controlChannel) trackInflight(requestID string, cancel context.CancelFunc) {
	c.inflightMu.Lock()
	c.inflight[requestID] = cancel
	c.inflightMu.Unlock()
}

func (c *controlChannel) untrackInflight(requestID string) {
	c.inflightMu.Lock()
	delete(c.inflight, requestID)
	c.inflightMu.Unlock()
}

// cancelInflight cancels the handler servicing requestID. Ids with no
// in-flight handler are ignored: the handler already finished.
func (c *controlChannel) cancelInflight(requestID string) {
	c.inflightMu.Lock()
	cancel, ok := c.inflight[requestID]
	c.inflightMu.Unlock()
	if ok {
		cancel()
	}
}

func (c *controlChannel) handleCanUseTool(ctx context.Context, request map[string]any) (map[string]any, error) {
	if c.canUseTool == nil {
		return nil, fmt.Errorf("canUseTool callback is not provided")
	}

	toolName, _ := request["tool_name"].(string)
	input, _ := request["input"].(map[string]any)
	if input == nil {
		input = map[string]any{}
	}

	var suggestions []PermissionUpdate
	if rawSuggestions, ok := request["permission_suggestions"].([]any); ok {
		for _, raw := range rawSuggestions {
			if m, ok := raw.(map[string]any); ok {
				suggestions = append(suggestions, parsePermissionUpdate(m))
			}
		}
	}

	result, err := c.canUseTool(ctx, toolName, input, ToolPermissionContext{Suggestions: suggestions})
	if err != nil {
		return nil, err
	}

	switch r := result.(type) {
	case *PermissionResultAllow:
		resp := map[string]any{"behavior": "allow"}
		if r.UpdatedInput != nil {
			resp["updatedInput"] = r.UpdatedInput
		} else {
			resp["updatedInput"] = input
		}
		if r.UpdatedPermissions != nil {
			perms := make([]map[string]any, len(r.UpdatedPermissions))
			for i, p := range r.UpdatedPermissions {
				perms[i] = p.ToDict()
			}
			resp["updatedPermissions"] = perms
		}
		return resp, nil

	case *PermissionResultDeny:
		resp := map[string]any{
			"behavior": "deny",
			"message":  r.Message,
		}
		if r.Interrupt {
			resp["interrupt"] = true
		}
		return resp, nil

	default:
		return nil, fmt.Errorf("unexpected permission result type: %T", result)
	}
}

// handleHookCallback invokes the registered handler for the callback id,
// bounded by the registration's timeout. On timeout the reply is a success
// with an empty output, which the CLI treats as a non-blocking continue.
func (c *controlChannel) handleHookCallback(ctx context.Context, request map[string]any) (map[string]any, error) {
	callbackID, _ := request["callback_id"].(string)
	c.hookMu.RLock()
	reg, ok := c.hookCallbacks[callbackID]
	c.hookMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no hook callback found for ID: %s", callbackID)
	}

	var hookInput HookInput
	if rawInput, ok := request["input"].(map[string]any); ok {
		hookInput = parseHookInput(rawInput)
	}
	toolUseID, _ := request["tool_use_id"].(string)

	hookCtx, cancel := context.WithTimeout(ctx, reg.timeout)
	defer cancel()

	type hookReturn struct {
		output *HookJSONOutput
		err    error
	}
	done := make(chan hookReturn, 1)
	go func() {
		output, err := reg.callback(hookCtx, hookInput, toolUseID, HookContext{})
		done <- hookReturn{output, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if r.output == nil {
			return map[string]any{}, nil
		}
		return convertHookOutputForCLI(r.output), nil

	case <-hookCtx.Done():
		if errors.Is(hookCtx.Err(), context.DeadlineExceeded) {
			c.logger.Warn("hook callback timed out, replying with default decision",
				"callback_id", callbackID, "timeout", reg.timeout)
			return map[string]any{}, nil
		}
		return nil, hookCtx.Err()
	}
}

func (c *controlChannel) handleToolServerMessage(ctx context.Context, request map[string]any) (map[string]any, error) {
	serverName, _ := request["server_name"].(string)
	message, _ := request["message"].(map[string]any)

	if serverName == "" || message == nil {
		return nil, fmt.Errorf("missing server_name or message for MCP request")
	}

	server, ok := c.toolServers[serverName]
	if !ok {
		return map[string]any{
			"mcp_response": map[string]any{
				"jsonrpc": "2.0",
				"id":      message["id"],
				"error": map[string]any{
					"code":    -32601,
					"message": fmt.Sprintf("Server '%s' not found", serverName),
				},
			},
		}, nil
	}

	return map[string]any{"mcp_response": server.HandleMessage(ctx, message)}, nil
}

// sendControlRequest writes one control request and blocks until the
// correlated response arrives, the timeout elapses, or the channel dies.
func (c *controlChannel) sendControlRequest(ctx context.Context, request map[string]any, timeout float64) (map[string]any, error) {
	if err := c.err(); err != nil {
		return nil, err
	}

	counter := c.requestCounter.Add(1)
	requestID := fmt.Sprintf("req_%d_%s", counter, shortRequestToken())

	pending := &pendingRequest{done: make(chan struct{})}
	c.pendingRequests.Store(requestID, pending)
	defer c.pendingRequests.Delete(requestID)

	envelope := ControlRequestEnvelope{
		Type:      "control_request",
		RequestID: requestID,
		Request:   request,
	}
	data, _ := json.Marshal(envelope)

	c.writeMu.Lock()
	err := c.transport.Write(string(data) + "\n")
	c.writeMu.Unlock()
	if err != nil {
		// No response can ever arrive; the deferred delete reclaims
		// the slot so it cannot dangle.
		return nil, err
	}

	timer := time.NewTimer(time.Duration(timeout * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-pending.done:
		if pending.err != nil {
			return nil, pending.err
		}
		if pending.result == nil {
			return map[string]any{}, nil
		}
		return pending.result, nil
	case <-timer.C:
		subtype, _ := request["subtype"].(string)
		return nil, fmt.Errorf("control request timeout: %s", subtype)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// shortRequestToken returns the random component of a control request id.
func shortRequestToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// initialize registers the hook matchers, sends the initialize control
// request and waits for the handshake response. Callback ids are assigned
// monotonically: hook_0, hook_1, ...
func (c *controlChannel) initialize(ctx context.Context) (map[string]any, error) {
	hooksConfig := map[string]any{}
	if len(c.hooks) > 0 {
		c.hookMu.Lock()
		for event, matchers := range c.hooks {
			if len(matchers) == 0 {
				continue
			}
			var matcherConfigs []map[string]any
			for _, matcher := range matchers {
				timeout := defaultHookTimeout
				if matcher.Timeout != nil && *matcher.Timeout > 0 {
					timeout = time.Duration(*matcher.Timeout * float64(time.Second))
				}
				callbackIDs := make([]string, len(matcher.Hooks))
				for i, callback := range matcher.Hooks {
					callbackID := fmt.Sprintf("hook_%d", c.nextCallbackID)
					c.nextCallbackID++
					c.hookCallbacks[callbackID] = hookRegistration{
						callback: callback,
						timeout:  timeout,
					}
					callbackIDs[i] = callbackID
				}
				mc := map[string]any{
					"matcher":         matcher.Matcher,
					"hookCallbackIds": callbackIDs,
				}
				if matcher.Timeout != nil {
					mc["timeout"] = *matcher.Timeout
				}
				matcherConfigs = append(matcherConfigs, mc)
			}
			hooksConfig[string(event)] = matcherConfigs
		}
		c.hookMu.Unlock()
	}

	request := map[string]any{
		"subtype": "initialize",
		"hooks":   hooksConfig,
	}
	if len(c.agents) > 0 {
		request["agents"] = c.agents
	}

	resp, err := c.sendControlRequest(ctx, request, c.initializeTimeout)
	if err != nil {
		return nil, err
	}
	c.initMu.Lock()
	c.initResult = resp
	c.initMu.Unlock()
	return resp, nil
}

// initializationResult returns the stored initialize handshake payload
// (available tools, output style), or nil before initialize completed.
func (c *controlChannel) initializationResult() map[string]any {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	return c.initResult
}

func (c *controlChannel) interrupt(ctx context.Context) error {
	_, err := c.sendControlRequest(ctx, map[string]any{"subtype": "interrupt"}, 60.0)
	return err
}

func (c *controlChannel) setPermissionMode(ctx context.Context, mode string) error {
	_, err := c.sendControlRequest(ctx, map[string]any{
		"subtype": "set_permission_mode",
		"mode":    mode,
	}, 60.0)
	return err
}

func (c *controlChannel) setModel(ctx context.Context, model any) error {
	_, err := c.sendControlRequest(ctx, map[string]any{
		"subtype": "set_model",
		"model":   model,
	}, 60.0)
	return err
}

func (c *controlChannel) rewindFiles(ctx context.Context, userMessageID string) error {
	_, err := c.sendControlRequest(ctx, map[string]any{
		"subtype":         "rewind_files",
		"user_message_id": userMessageID,
	}, 60.0)
	return err
}

func (c *controlChannel) mcpStatus(ctx context.Context) (map[string]any, error) {
	return c.sendControlRequest(ctx, map[string]any{"subtype": "mcp_status"}, 60.0)
}

// receive returns the consumer queue. Items arrive in the exact order the
// child process emitted the underlying lines.
func (c *controlChannel) receive() <-chan streamItem {
	return c.items
}

// streamInput feeds caller-supplied messages to the child's stdin. When the
// input stream ends with hooks or tool servers live, stdin stays open until
// the first result so the CLI can still call back mid-turn.
func (c *controlChannel) streamInput(ctx context.Context, messages <-chan map[string]any) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				if len(c.toolServers) > 0 || len(c.hooks) > 0 {
					select {
					case <-c.firstResultChan:
					case <-time.After(time.Duration(c.streamCloseTimeout * float64(time.Second))):
					case <-ctx.Done():
					}
				}
				_ = c.transport.EndInput()
				return
			}
			if c.closed.Load() {
				return
			}
			data, _ := json.Marshal(msg)
			c.writeMu.Lock()
			_ = c.transport.Write(string(data) + "\n")
			c.writeMu.Unlock()
		}
	}
}

func (c *controlChannel) close() {
	c.closed.Store(true)
	c.failPendingRequests(errChannelClosed)
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	_ = c.transport.Close()
}

func (c *controlChannel) setReadError(err error) {
	if err == nil {
		return
	}
	c.readErrMu.Lock()
	defer c.readErrMu.Unlock()
	if c.readErr == nil {
		c.readErr = err
	}
}

func (c *controlChannel) err() error {
	c.readErrMu.Lock()
	defer c.readErrMu.Unlock()
	return c.readErr
}

// failPendingRequests resolves every outstanding correlation slot with err.
// A slot that races with a late response keeps whichever outcome landed
// first.
func (c *controlChannel) failPendingRequests(err error) {
	if err == nil {
		return
	}
	c.pendingRequests.Range(func(_, value any) bool {
		pending, ok := value.(*pendingRequest)
		if !ok {
			return true
		}
		pending.resolve(nil, err)
		return true
	})
}

// parsePermissionUpdate converts a raw map to a PermissionUpdate struct.
func parsePermissionUpdate(m map[string]any) PermissionUpdate {
	pu := PermissionUpdate{}
	if v, ok := m["type"].(string); ok {
		pu.Type = PermissionUpdateType(v)
	}
	if v, ok := m["behavior"].(string); ok {
		pu.Behavior = PermissionBehavior(v)
	}
	if v, ok := m["mode"].(string); ok {
		pu.Mode = PermissionMode(v)
	}
	if v, ok := m["destination"].(string); ok {
		pu.Destination = PermissionUpdateDestination(v)
	}
	if v, ok := m["directories"].([]any); ok {
		dirs := make([]string, 0, len(v))
		for _, d := range v {
			if s, ok := d.(string); ok {
				dirs = append(dirs, s)
			}
		}
		pu.Directories = dirs
	}
	if v, ok := m["rules"].([]any); ok {
		rules := make([]PermissionRuleValue, 0, len(v))
		for _, raw := range v {
			if rm, ok := raw.(map[string]any); ok {
				rule := PermissionRuleValue{}
				if tn, ok := rm["toolName"].(string); ok {
					rule.ToolName = tn
				}
				if rc, ok := rm["ruleContent"].(string); ok {
					rule.RuleContent = rc
				}
				rules = append(rules, rule)
			}
		}
		pu.Rules = rules
	}
	return pu
}

// parseHookInput converts a raw map to a HookInput without a json round-trip.
func parseHookInput(m map[string]any) HookInput {
	input := HookInput{}
	if v, ok := m["session_id"].(string); ok {
		input.SessionID = v
	}
	if v, ok := m["transcript_path"].(string); ok {
		input.TranscriptPath = v
	}
	if v, ok := m["cwd"].(string); ok {
		input.Cwd = v
	}
	if v, ok := m["permission_mode"].(string); ok {
		input.PermissionMode = v
	}
	if v, ok := m["hook_event_name"].(string); ok {
		input.HookEventName = v
	}
	if v, ok := m["tool_name"].(string); ok {
		input.ToolName = v
	}
	if v, ok := m["tool_input"].(map[string]any); ok {
		input.ToolInput = v
	}
	if v, ok := m["tool_use_id"].(string); ok {
		input.ToolUseID = v
	}
	if v := m["tool_response"]; v != nil {
		input.ToolResponse = v
	}
	if v, ok := m["error"].(string); ok {
		input.ErrorMsg = v
	}
	if v, ok := m["is_interrupt"].(bool); ok {
		input.IsInterrupt = &v
	}
	if v, ok := m["prompt"].(string); ok {
		input.Prompt = v
	}
	if v, ok := m["stop_hook_active"].(bool); ok {
		input.StopHookActive = v
	}
	if v, ok := m["agent_id"].(string); ok {
		input.AgentID = v
	}
	if v, ok := m["agent_transcript_path"].(string); ok {
		input.AgentTranscriptPath = v
	}
	if v, ok := m["agent_type"].(string); ok {
		input.AgentType = v
	}
	if v, ok := m["trigger"].(string); ok {
		input.Trigger = v
	}
	if v, ok := m["custom_instructions"].(string); ok {
		input.CustomInstructions = v
	}
	if v, ok := m["message"].(string); ok {
		input.NotificationMessage = v
	}
	if v, ok := m["title"].(string); ok {
		input.Title = v
	}
	if v, ok := m["notification_type"].(string); ok {
		input.NotificationType = v
	}
	if v, ok := m["permission_suggestions"].([]any); ok {
		input.PermissionSuggestions = v
	}
	return input
}

// convertHookOutputForCLI converts a HookJSONOutput to the CLI's wire shape.
func convertHookOutputForCLI(output *HookJSONOutput) map[string]any {
	result := map[string]any{}
	if output.Async != nil {
		result["async"] = *output.Async
	}
	if output.AsyncTimeout != nil {
		result["asyncTimeout"] = *output.AsyncTimeout
	}
	if output.Continue != nil {
		result["continue"] = *output.Continue
	}
	if output.SuppressOutput != nil {
		result["suppressOutput"] = *output.SuppressOutput
	}
	if output.StopReason != "" {
		result["stopReason"] = output.StopReason
	}
	if output.Decision != "" {
		result["decision"] = output.Decision
	}
	if output.SystemMessage != "" {
		result["systemMessage"] = output.SystemMessage
	}
	if output.Reason != "" {
		result["reason"] = output.Reason
	}
	if output.HookSpecificOutput != nil {
		hso := map[string]any{
			"hookEventName": output.HookSpecificOutput.HookEventName,
		}
		if output.HookSpecificOutput.PermissionDecision != "" {
			hso["permissionDecision"] = output.HookSpecificOutput.PermissionDecision
		}
		if output.HookSpecificOutput.PermissionDecisionReason != "" {
			hso["permissionDecisionReason"] = output.HookSpecificOutput.PermissionDecisionReason
		}
		if output.HookSpecificOutput.UpdatedInput != nil {
			hso["updatedInput"] = output.HookSpecificOutput.UpdatedInput
		}
		if output.HookSpecificOutput.UpdatedMCPToolOutput != nil {
			hso["updatedMCPToolOutput"] = output.HookSpecificOutput.UpdatedMCPToolOutput
		}
		if output.HookSpecificOutput.AdditionalContext != "" {
			hso["additionalContext"] = output.HookSpecificOutput.AdditionalContext
		}
		if output.HookSpecificOutput.Decision != nil {
			hso["decision"] = output.HookSpecificOutput.Decision
		}
		result["hookSpecificOutput"] = hso
	}
	return result
}
