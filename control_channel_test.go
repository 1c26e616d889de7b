package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTransport is an in-memory transport for control channel tests.
type mockTransport struct {
	msgChan chan rawMessage
	errChan chan error

	mu       sync.Mutex
	written  []string
	writeErr error
	closed   bool
	lastErr  error
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		msgChan: make(chan rawMessage, 100),
		errChan: make(chan error, 10),
	}
}

func (m *mockTransport) Write(data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = append(m.written, data)
	return nil
}

func (m *mockTransport) Messages() <-chan rawMessage { return m.msgChan }
func (m *mockTransport) Errors() <-chan error        { return m.errChan }
func (m *mockTransport) LastError() error            { return m.lastErr }
func (m *mockTransport) EndInput() error             { return nil }
func (m *mockTransport) IsReady() bool               { return true }

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockTransport) getWritten() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(m.written))
	copy(cp, m.written)
	return cp
}

// waitWritten polls until pred matches one written line, or fails the test.
func (m *mockTransport) waitWritten(t *testing.T, pred func(map[string]any) bool) map[string]any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for written message; got %v", m.getWritten())
		default:
		}
		for _, line := range m.getWritten() {
			var parsed map[string]any
			if err := json.Unmarshal([]byte(line), &parsed); err != nil {
				continue
			}
			if pred(parsed) {
				return parsed
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// respond injects a success control_response for the given request id.
func (m *mockTransport) respond(requestID string, body map[string]any) {
	m.msgChan <- rawMessage{data: map[string]any{
		"type": "control_response",
		"response": map[string]any{
			"subtype":    "success",
			"request_id": requestID,
			"response":   body,
		},
	}}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startChannel(t *testing.T, mt *mockTransport, opts channelOptions) *controlChannel {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	ch := newControlChannel(mt, opts)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, ch.start(ctx))
	t.Cleanup(ch.close)
	return ch
}

func TestControlRequestResponseCorrelation(t *testing.T) {
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{})

	resultCh := make(chan map[string]any, 1)
	errCh := make(chan error, 1)
	go func() {
		resp, err := ch.sendControlRequest(context.Background(),
			map[string]any{"subtype": "mcp_status"}, 5)
		resultCh <- resp
		errCh <- err
	}()

	sent := mt.waitWritten(t, func(m map[string]any) bool {
		return m["type"] == "control_request"
	})
	requestID, _ := sent["request_id"].(string)
	require.True(t, strings.HasPrefix(requestID, "req_"))

	mt.respond(requestID, map[string]any{"servers": []any{}})

	resp := <-resultCh
	require.NoError(t, <-errCh)
	assert.Contains(t, resp, "servers")
}

func TestControlRequestIDsAreUnique(t *testing.T) {
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{})

	const n = 5
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = ch.sendControlRequest(context.Background(),
				map[string]any{"subtype": "interrupt"}, 1)
		}()
	}

	seen := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for len(seen) < n {
		select {
		case <-deadline:
			t.Fatalf("only saw %d distinct request ids", len(seen))
		default:
		}
		for _, line := range mt.getWritten() {
			var parsed map[string]any
			if json.Unmarshal([]byte(line), &parsed) == nil {
				if id, _ := parsed["request_id"].(string); id != "" {
					seen[id] = true
				}
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	// Let the outstanding requests time out and drain.
	for i := 0; i < n; i++ {
		<-done
	}
}

func TestConcurrentResponsesResolveOutOfOrder(t *testing.T) {
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{})

	type outcome struct {
		resp map[string]any
		err  error
	}
	results := make(chan outcome, 2)
	send := func(subtype string) {
		resp, err := ch.sendControlRequest(context.Background(),
			map[string]any{"subtype": subtype}, 5)
		results <- outcome{resp, err}
	}
	go send("mcp_status")
	go send("interrupt")

	var ids []string
	mt.waitWritten(t, func(m map[string]any) bool {
		ids = ids[:0]
		for _, line := range mt.getWritten() {
			var parsed map[string]any
			if json.Unmarshal([]byte(line), &parsed) == nil {
				if id, _ := parsed["request_id"].(string); id != "" {
					ids = append(ids, id)
				}
			}
		}
		return len(ids) == 2
	})

	// Answer in reverse order of sending.
	mt.respond(ids[1], map[string]any{"n": float64(2)})
	mt.respond(ids[0], map[string]any{"n": float64(1)})

	first := <-results
	second := <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)
}

func TestControlRequestErrorResponse(t *testing.T) {
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{})

	errCh := make(chan error, 1)
	go func() {
		_, err := ch.sendControlRequest(context.Background(),
			map[string]any{"subtype": "set_model", "model": "bogus"}, 5)
		errCh <- err
	}()

	sent := mt.waitWritten(t, func(m map[string]any) bool {
		return m["type"] == "control_request"
	})
	requestID, _ := sent["request_id"].(string)

	mt.msgChan <- rawMessage{data: map[string]any{
		"type": "control_response",
		"response": map[string]any{
			"subtype":    "error",
			"request_id": requestID,
			"error":      "no such model",
		},
	}}

	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such model")
}

func TestControlRequestWriteFailure(t *testing.T) {
	mt := newMockTransport()
	mt.writeErr = fmt.Errorf("broken pipe")
	ch := startChannel(t, mt, channelOptions{})

	_, err := ch.sendControlRequest(context.Background(),
		map[string]any{"subtype": "interrupt"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")

	// The slot must not linger after a failed write.
	count := 0
	ch.pendingRequests.Range(func(_, _ any) bool { count++; return true })
	assert.Zero(t, count)
}

func TestCloseFailsPendingRequests(t *testing.T) {
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{})

	errCh := make(chan error, 1)
	go func() {
		_, err := ch.sendControlRequest(context.Background(),
			map[string]any{"subtype": "interrupt"}, 30)
		errCh <- err
	}()

	mt.waitWritten(t, func(m map[string]any) bool {
		return m["type"] == "control_request"
	})

	ch.close()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.ErrorIs(t, err, errChannelClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("pending request not resolved by close")
	}
}

func TestProcessEndFailsPendingRequests(t *testing.T) {
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{})

	errCh := make(chan error, 1)
	go func() {
		_, err := ch.sendControlRequest(context.Background(),
			map[string]any{"subtype": "interrupt"}, 30)
		errCh <- err
	}()

	mt.waitWritten(t, func(m map[string]any) bool {
		return m["type"] == "control_request"
	})

	// Clean process end: the message channel closes with no recorded error.
	close(mt.msgChan)

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.ErrorIs(t, err, errChannelClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("pending request not resolved when the stream ended")
	}
}

func TestProcessEndWithErrorFailsPendingRequests(t *testing.T) {
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{})

	errCh := make(chan error, 1)
	go func() {
		_, err := ch.sendControlRequest(context.Background(),
			map[string]any{"subtype": "interrupt"}, 30)
		errCh <- err
	}()

	mt.waitWritten(t, func(m map[string]any) bool {
		return m["type"] == "control_request"
	})

	exitErr := NewProcessError("Command failed with exit code 1", 1, "boom")
	mt.lastErr = exitErr
	close(mt.msgChan)

	select {
	case err := <-errCh:
		require.Error(t, err)
		var procErr *ProcessError
		assert.ErrorAs(t, err, &procErr)
	case <-time.After(2 * time.Second):
		t.Fatal("pending request not resolved when the stream ended")
	}

	var chErr *ProcessError
	require.Error(t, ch.err())
	assert.ErrorAs(t, ch.err(), &chErr)
}

func TestUnmatchedResponseIsFatal(t *testing.T) {
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{})

	mt.respond("req_999_deadbeef", map[string]any{})

	select {
	case item := <-ch.receive():
		require.Error(t, item.err)
		var protoErr *ControlProtocolError
		require.ErrorAs(t, item.err, &protoErr)
		assert.Equal(t, "req_999_deadbeef", protoErr.RequestID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected protocol error on consumer queue")
	}
}

func TestConversationMessagesForwardedInOrder(t *testing.T) {
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{})

	mt.msgChan <- rawMessage{data: map[string]any{
		"type": "assistant",
		"message": map[string]any{
			"model":   "claude-sonnet-4-5",
			"content": []any{map[string]any{"type": "text", "text": "one"}},
		},
	}}
	mt.msgChan <- rawMessage{err: &CLIJSONDecodeError{
		SDKError: SDKError{Message: "bad line"},
		Line:     "{oops",
	}}
	mt.msgChan <- rawMessage{data: map[string]any{
		"type":       "result",
		"subtype":    "success",
		"session_id": "sess-1",
	}}

	item := <-ch.receive()
	require.NoError(t, item.err)
	_, ok := item.msg.(*AssistantMessage)
	assert.True(t, ok)

	item = <-ch.receive()
	require.Error(t, item.err)
	var decodeErr *CLIJSONDecodeError
	assert.ErrorAs(t, item.err, &decodeErr)

	item = <-ch.receive()
	require.NoError(t, item.err)
	_, ok = item.msg.(*ResultMessage)
	assert.True(t, ok)
}

func TestCanUseToolDeny(t *testing.T) {
	mt := newMockTransport()
	_ = startChannel(t, mt, channelOptions{
		CanUseTool: func(ctx context.Context, toolName string, input map[string]any, permCtx ToolPermissionContext) (PermissionResult, error) {
			if toolName == "Bash" {
				return &PermissionResultDeny{Message: "denied", Interrupt: true}, nil
			}
			return &PermissionResultAllow{}, nil
		},
	})

	mt.msgChan <- rawMessage{data: map[string]any{
		"type":       "control_request",
		"request_id": "srv_1",
		"request": map[string]any{
			"subtype":   "can_use_tool",
			"tool_name": "Bash",
			"input":     map[string]any{"command": "rm -rf /"},
		},
	}}

	reply := mt.waitWritten(t, func(m map[string]any) bool {
		return m["type"] == "control_response"
	})
	response, _ := reply["response"].(map[string]any)
	require.NotNil(t, response)
	assert.Equal(t, "success", response["subtype"])
	assert.Equal(t, "srv_1", response["request_id"])

	inner, _ := response["response"].(map[string]any)
	require.NotNil(t, inner)
	assert.Equal(t, "deny", inner["behavior"])
	assert.Equal(t, "denied", inner["message"])
	assert.Equal(t, true, inner["interrupt"])
}

func TestCanUseToolAllowEchoesInput(t *testing.T) {
	mt := newMockTransport()
	_ = startChannel(t, mt, channelOptions{
		CanUseTool: func(ctx context.Context, toolName string, input map[string]any, permCtx ToolPermissionContext) (PermissionResult, error) {
			return &PermissionResultAllow{}, nil
		},
	})

	mt.msgChan <- rawMessage{data: map[string]any{
		"type":       "control_request",
		"request_id": "srv_2",
		"request": map[string]any{
			"subtype":   "can_use_tool",
			"tool_name": "Read",
			"input":     map[string]any{"path": "/etc/hosts"},
		},
	}}

	reply := mt.waitWritten(t, func(m map[string]any) bool {
		return m["type"] == "control_response"
	})
	response, _ := reply["response"].(map[string]any)
	inner, _ := response["response"].(map[string]any)
	require.NotNil(t, inner)
	assert.Equal(t, "allow", inner["behavior"])
	updated, _ := inner["updatedInput"].(map[string]any)
	assert.Equal(t, "/etc/hosts", updated["path"])
}

func TestCanUseToolWithoutCallback(t *testing.T) {
	mt := newMockTransport()
	_ = startChannel(t, mt, channelOptions{})

	mt.msgChan <- rawMessage{data: map[string]any{
		"type":       "control_request",
		"request_id": "srv_3",
		"request":    map[string]any{"subtype": "can_use_tool", "tool_name": "Bash"},
	}}

	reply := mt.waitWritten(t, func(m map[string]any) bool {
		return m["type"] == "control_response"
	})
	response, _ := reply["response"].(map[string]any)
	assert.Equal(t, "error", response["subtype"])
}

// runInitialize drives the initialize handshake against the mock so hook
// callbacks get registered.
func runInitialize(t *testing.T, mt *mockTransport, ch *controlChannel) map[string]any {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		_, err := ch.initialize(context.Background())
		done <- err
	}()

	sent := mt.waitWritten(t, func(m map[string]any) bool {
		req, _ := m["request"].(map[string]any)
		return req != nil && req["subtype"] == "initialize"
	})
	requestID, _ := sent["request_id"].(string)
	mt.respond(requestID, map[string]any{"commands": []any{}})

	require.NoError(t, <-done)
	return sent
}

func TestInitializeRegistersHookCallbacks(t *testing.T) {
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{
		Hooks: map[HookEvent][]HookMatcher{
			HookPreToolUse: {{
				Matcher: "Bash",
				Hooks: []HookCallback{
					func(ctx context.Context, input HookInput, toolUseID string, hookCtx HookContext) (*HookJSONOutput, error) {
						return nil, nil
					},
				},
			}},
		},
	})

	sent := runInitialize(t, mt, ch)

	req, _ := sent["request"].(map[string]any)
	hooks, _ := req["hooks"].(map[string]any)
	require.NotNil(t, hooks)
	matchers, _ := hooks["PreToolUse"].([]any)
	require.Len(t, matchers, 1)
	matcher, _ := matchers[0].(map[string]any)
	assert.Equal(t, "Bash", matcher["matcher"])
	callbackIDs, _ := matcher["hookCallbackIds"].([]any)
	require.Len(t, callbackIDs, 1)
	assert.Equal(t, "hook_0", callbackIDs[0])

	assert.NotNil(t, ch.initializationResult())
}

func TestHookCallbackRoundTrip(t *testing.T) {
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{
		Hooks: map[HookEvent][]HookMatcher{
			HookPreToolUse: {{
				Matcher: "Bash",
				Hooks: []HookCallback{
					func(ctx context.Context, input HookInput, toolUseID string, hookCtx HookContext) (*HookJSONOutput, error) {
						return &HookJSONOutput{
							HookSpecificOutput: &HookSpecificOutput{
								HookEventName:            "PreToolUse",
								PermissionDecision:       "deny",
								PermissionDecisionReason: "blocked command",
							},
						}, nil
					},
				},
			}},
		},
	})
	runInitialize(t, mt, ch)

	mt.msgChan <- rawMessage{data: map[string]any{
		"type":       "control_request",
		"request_id": "srv_hook_1",
		"request": map[string]any{
			"subtype":     "hook_callback",
			"callback_id": "hook_0",
			"input": map[string]any{
				"hook_event_name": "PreToolUse",
				"tool_name":       "Bash",
				"tool_input":      map[string]any{"command": "ls"},
			},
			"tool_use_id": "tu-1",
		},
	}}

	reply := mt.waitWritten(t, func(m map[string]any) bool {
		if m["type"] != "control_response" {
			return false
		}
		resp, _ := m["response"].(map[string]any)
		return resp != nil && resp["request_id"] == "srv_hook_1"
	})
	response, _ := reply["response"].(map[string]any)
	assert.Equal(t, "success", response["subtype"])
	inner, _ := response["response"].(map[string]any)
	hso, _ := inner["hookSpecificOutput"].(map[string]any)
	require.NotNil(t, hso)
	assert.Equal(t, "deny", hso["permissionDecision"])
	assert.Equal(t, "blocked command", hso["permissionDecisionReason"])
}

func TestHookCallbackTimeoutRepliesDefault(t *testing.T) {
	timeout := 0.05
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{
		Hooks: map[HookEvent][]HookMatcher{
			HookPreToolUse: {{
				Matcher: "Bash",
				Timeout: &timeout,
				Hooks: []HookCallback{
					func(ctx context.Context, input HookInput, toolUseID string, hookCtx HookContext) (*HookJSONOutput, error) {
						<-ctx.Done()
						return nil, ctx.Err()
					},
				},
			}},
		},
	})
	runInitialize(t, mt, ch)

	mt.msgChan <- rawMessage{data: map[string]any{
		"type":       "control_request",
		"request_id": "srv_hook_2",
		"request": map[string]any{
			"subtype":     "hook_callback",
			"callback_id": "hook_0",
		},
	}}

	reply := mt.waitWritten(t, func(m map[string]any) bool {
		if m["type"] != "control_response" {
			return false
		}
		resp, _ := m["response"].(map[string]any)
		return resp != nil && resp["request_id"] == "srv_hook_2"
	})
	response, _ := reply["response"].(map[string]any)
	// Timeout resolves as a non-blocking success, not an error.
	assert.Equal(t, "success", response["subtype"])
}

func TestHookCallbackUnknownID(t *testing.T) {
	mt := newMockTransport()
	_ = startChannel(t, mt, channelOptions{})

	mt.msgChan <- rawMessage{data: map[string]any{
		"type":       "control_request",
		"request_id": "srv_hook_3",
		"request": map[string]any{
			"subtype":     "hook_callback",
			"callback_id": "hook_42",
		},
	}}

	reply := mt.waitWritten(t, func(m map[string]any) bool {
		return m["type"] == "control_response"
	})
	response, _ := reply["response"].(map[string]any)
	assert.Equal(t, "error", response["subtype"])
	errText, _ := response["error"].(string)
	assert.Contains(t, errText, "hook_42")
}

func TestCancelInflightRequest(t *testing.T) {
	started := make(chan struct{})
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{
		Hooks: map[HookEvent][]HookMatcher{
			HookPreToolUse: {{
				Matcher: "Bash",
				Hooks: []HookCallback{
					func(ctx context.Context, input HookInput, toolUseID string, hookCtx HookContext) (*HookJSONOutput, error) {
						close(started)
						<-ctx.Done()
						return nil, ctx.Err()
					},
				},
			}},
		},
	})
	runInitialize(t, mt, ch)

	mt.msgChan <- rawMessage{data: map[string]any{
		"type":       "control_request",
		"request_id": "srv_hook_4",
		"request": map[string]any{
			"subtype":     "hook_callback",
			"callback_id": "hook_0",
		},
	}}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("hook never started")
	}

	mt.msgChan <- rawMessage{data: map[string]any{
		"type":       "control_cancel_request",
		"request_id": "srv_hook_4",
	}}

	reply := mt.waitWritten(t, func(m map[string]any) bool {
		if m["type"] != "control_response" {
			return false
		}
		resp, _ := m["response"].(map[string]any)
		return resp != nil && resp["request_id"] == "srv_hook_4"
	})
	response, _ := reply["response"].(map[string]any)
	assert.Equal(t, "error", response["subtype"])
}

func TestCancelUnknownRequestIsIgnored(t *testing.T) {
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{})

	mt.msgChan <- rawMessage{data: map[string]any{
		"type":       "control_cancel_request",
		"request_id": "srv_never_seen",
	}}
	mt.msgChan <- rawMessage{data: map[string]any{
		"type":       "result",
		"subtype":    "success",
		"session_id": "sess-1",
	}}

	// The channel keeps serving after the stray cancel.
	select {
	case item := <-ch.receive():
		require.NoError(t, item.err)
		_, ok := item.msg.(*ResultMessage)
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel stopped after stray cancel")
	}
}

func TestToolServerMessageRouting(t *testing.T) {
	server := NewToolServer("calc", "1.0.0",
		NewTool("add", "Adds numbers", nil,
			func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
				return TextResult("3"), nil
			}))

	mt := newMockTransport()
	_ = startChannel(t, mt, channelOptions{
		ToolServers: map[string]*ToolServer{"calc": server.Instance},
	})

	mt.msgChan <- rawMessage{data: map[string]any{
		"type":       "control_request",
		"request_id": "srv_mcp_1",
		"request": map[string]any{
			"subtype":     "mcp_message",
			"server_name": "calc",
			"message": map[string]any{
				"jsonrpc": "2.0",
				"id":      float64(1),
				"method":  "initialize",
			},
		},
	}}

	reply := mt.waitWritten(t, func(m map[string]any) bool {
		return m["type"] == "control_response"
	})
	response, _ := reply["response"].(map[string]any)
	assert.Equal(t, "success", response["subtype"])
	inner, _ := response["response"].(map[string]any)
	mcpResp, _ := inner["mcp_response"].(map[string]any)
	require.NotNil(t, mcpResp)
	result, _ := mcpResp["result"].(map[string]any)
	assert.Equal(t, mcpProtocolVersion, result["protocolVersion"])
}

func TestToolServerNotFound(t *testing.T) {
	mt := newMockTransport()
	_ = startChannel(t, mt, channelOptions{})

	mt.msgChan <- rawMessage{data: map[string]any{
		"type":       "control_request",
		"request_id": "srv_mcp_2",
		"request": map[string]any{
			"subtype":     "mcp_message",
			"server_name": "ghost",
			"message": map[string]any{
				"jsonrpc": "2.0",
				"id":      float64(7),
				"method":  "tools/list",
			},
		},
	}}

	reply := mt.waitWritten(t, func(m map[string]any) bool {
		return m["type"] == "control_response"
	})
	response, _ := reply["response"].(map[string]any)
	// Unknown server is a JSONRPC error, not a control protocol error.
	assert.Equal(t, "success", response["subtype"])
	inner, _ := response["response"].(map[string]any)
	mcpResp, _ := inner["mcp_response"].(map[string]any)
	errObj, _ := mcpResp["error"].(map[string]any)
	require.NotNil(t, errObj)
	assert.Contains(t, errObj["message"], "ghost")
}

func TestTransportErrorTerminatesChannel(t *testing.T) {
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{})

	mt.errChan <- NewProcessError("Command failed with exit code 1", 1, "boom")

	select {
	case item := <-ch.receive():
		require.Error(t, item.err)
		var procErr *ProcessError
		require.ErrorAs(t, item.err, &procErr)
		assert.Equal(t, 1, procErr.ExitCode)
	case <-time.After(2 * time.Second):
		t.Fatal("expected terminal error on consumer queue")
	}
	require.Error(t, ch.err())
}

func TestStreamInputForwardsAndEnds(t *testing.T) {
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{})

	input := make(chan map[string]any, 2)
	input <- map[string]any{"type": "user", "session_id": "s1"}
	input <- map[string]any{"type": "user", "session_id": "s1"}
	close(input)

	ch.streamInput(context.Background(), input)

	written := mt.getWritten()
	require.Len(t, written, 2)
	for _, line := range written {
		var parsed map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(line)), &parsed))
		assert.Equal(t, "user", parsed["type"])
	}
}

func TestPendingResolveFirstOutcomeWins(t *testing.T) {
	pending := &pendingRequest{done: make(chan struct{})}
	pending.resolve(map[string]any{"ok": true}, nil)
	pending.resolve(nil, errChannelClosed)

	<-pending.done
	assert.NoError(t, pending.err)
	assert.Equal(t, map[string]any{"ok": true}, pending.result)
}

func TestPendingResolveConcurrent(t *testing.T) {
	pending := &pendingRequest{done: make(chan struct{})}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			pending.resolve(map[string]any{"ok": true}, nil)
		}()
		go func() {
			defer wg.Done()
			pending.resolve(nil, errChannelClosed)
		}()
	}
	wg.Wait()

	<-pending.done
	if pending.err != nil {
		assert.ErrorIs(t, pending.err, errChannelClosed)
		assert.Nil(t, pending.result)
	} else {
		assert.Equal(t, map[string]any{"ok": true}, pending.result)
	}
}

func TestFailPendingIgnoresNil(t *testing.T) {
	mt := newMockTransport()
	ch := startChannel(t, mt, channelOptions{})
	ch.failPendingRequests(nil)
	assert.NoError(t, ch.err())
}

func TestParsePermissionUpdateFields(t *testing.T) {
	pu := parsePermissionUpdate(map[string]any{
		"type":        "addRules",
		"behavior":    "allow",
		"mode":        "acceptEdits",
		"destination": "session",
		"directories": []any{"/tmp", "/home"},
		"rules": []any{
			map[string]any{"toolName": "Bash", "ruleContent": "echo *"},
		},
	})

	assert.Equal(t, PermissionUpdateAddRules, pu.Type)
	assert.Equal(t, PermissionBehaviorAllow, pu.Behavior)
	assert.Equal(t, PermissionAcceptEdits, pu.Mode)
	assert.Equal(t, PermissionDestSession, pu.Destination)
	assert.Equal(t, []string{"/tmp", "/home"}, pu.Directories)
	require.Len(t, pu.Rules, 1)
	assert.Equal(t, "Bash", pu.Rules[0].ToolName)
}

func TestParseHookInputFields(t *testing.T) {
	input := parseHookInput(map[string]any{
		"session_id":      "sess-123",
		"cwd":             "/tmp",
		"hook_event_name": "PreToolUse",
		"tool_name":       "Bash",
		"tool_input":      map[string]any{"command": "ls"},
		"tool_use_id":     "tu-1",
		"is_interrupt":    true,
		"prompt":          "test prompt",
	})

	assert.Equal(t, "sess-123", input.SessionID)
	assert.Equal(t, "/tmp", input.Cwd)
	assert.Equal(t, "PreToolUse", input.HookEventName)
	assert.Equal(t, "Bash", input.ToolName)
	assert.Equal(t, "ls", input.ToolInput["command"])
	assert.Equal(t, "tu-1", input.ToolUseID)
	require.NotNil(t, input.IsInterrupt)
	assert.True(t, *input.IsInterrupt)
	assert.Equal(t, "test prompt", input.Prompt)
}

func TestConvertHookOutputForCLIFields(t *testing.T) {
	cont := true
	suppress := false
	output := &HookJSONOutput{
		Continue:       &cont,
		SuppressOutput: &suppress,
		StopReason:     "done",
		Decision:       "block",
		Reason:         "unsafe",
		HookSpecificOutput: &HookSpecificOutput{
			HookEventName:     "PreToolUse",
			AdditionalContext: "extra",
		},
	}

	result := convertHookOutputForCLI(output)
	assert.Equal(t, true, result["continue"])
	assert.Equal(t, false, result["suppressOutput"])
	assert.Equal(t, "done", result["stopReason"])
	assert.Equal(t, "block", result["decision"])
	assert.Equal(t, "unsafe", result["reason"])
	hso, _ := result["hookSpecificOutput"].(map[string]any)
	require.NotNil(t, hso)
	assert.Equal(t, "extra", hso["additionalContext"])
}

func TestConvertHookOutputSkipsUnsetFields(t *testing.T) {
	result := convertHookOutputForCLI(&HookJSONOutput{})
	assert.Empty(t, result)
}
