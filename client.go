package claude

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"sync"
)

// Client provides bidirectional, interactive conversations with Claude Code.
//
// Key features:
//   - Bidirectional: Send and receive messages at any time
//   - Stateful: Maintains conversation context across messages
//   - Interactive: Send follow-ups based on responses
//   - Control flow: Support for interrupts and session management
type Client struct {
	options *AgentOptions

	transport *subprocessTransport
	channel   *controlChannel

	mu     sync.Mutex
	closed bool
}

// NewClient creates a new Client with the given options.
func NewClient(opts ...Option) *Client {
	return &Client{
		options: applyOptions(opts),
	}
}

// Connect spawns the CLI process, starts the control channel and performs
// the initialize handshake.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	os.Setenv("CLAUDE_CODE_ENTRYPOINT", "sdk-go-client")

	configuredOptions := *c.options
	if configuredOptions.CanUseTool != nil {
		if configuredOptions.PermissionPromptToolName != "" {
			return &SDKError{Message: "can_use_tool callback cannot be used with permission_prompt_tool_name"}
		}
		configuredOptions.PermissionPromptToolName = "stdio"
	}

	c.transport = newSubprocessTransport(&configuredOptions)
	if err := c.transport.Connect(ctx); err != nil {
		return err
	}

	toolServers := make(map[string]*ToolServer)
	for name, config := range configuredOptions.McpServers {
		if sdkCfg, ok := config.(*McpSdkServerConfig); ok {
			toolServers[name] = sdkCfg.Instance
		}
	}

	c.channel = newControlChannel(c.transport, channelOptions{
		CanUseTool:        configuredOptions.CanUseTool,
		Hooks:             configuredOptions.Hooks,
		ToolServers:       toolServers,
		InitializeTimeout: resolveInitializeTimeout(),
		Agents:            configuredOptions.Agents,
		Logger:            configuredOptions.Logger,
	})

	if err := c.channel.start(ctx); err != nil {
		return err
	}

	if _, err := c.channel.initialize(ctx); err != nil {
		return err
	}

	return nil
}

// InitializationResult returns the handshake payload the CLI sent in reply
// to initialize (available commands, output style). Nil before Connect.
func (c *Client) InitializationResult() map[string]any {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return nil
	}
	return channel.initializationResult()
}

// Query sends a new message in the conversation.
func (c *Client) Query(ctx context.Context, prompt string) error {
	return c.QueryWithSession(ctx, prompt, "default")
}

// QueryWithSession sends a new string prompt with explicit session ID.
func (c *Client) QueryWithSession(ctx context.Context, prompt string, sessionID string) error {
	c.mu.Lock()
	if c.channel == nil || c.transport == nil {
		c.mu.Unlock()
		return &CLIConnectionError{SDKError: SDKError{Message: "Not connected. Call Connect() first."}}
	}
	c.mu.Unlock()
	if sessionID == "" {
		sessionID = "default"
	}

	message := map[string]any{
		"type":               "user",
		"message":            map[string]any{"role": "user", "content": prompt},
		"parent_tool_use_id": nil,
		"session_id":         sessionID,
	}
	data, _ := json.Marshal(message)
	return c.transport.Write(string(data) + "\n")
}

// QueryStream sends streaming messages with optional default session ID.
// Existing session_id on each message is preserved.
func (c *Client) QueryStream(ctx context.Context, messages <-chan map[string]any, defaultSessionID string) error {
	c.mu.Lock()
	if c.channel == nil || c.transport == nil {
		c.mu.Unlock()
		return &CLIConnectionError{SDKError: SDKError{Message: "Not connected. Call Connect() first."}}
	}
	c.mu.Unlock()
	if defaultSessionID == "" {
		defaultSessionID = "default"
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if msg == nil {
				continue
			}
			if _, exists := msg["session_id"]; !exists {
				msg["session_id"] = defaultSessionID
			}
			data, _ := json.Marshal(msg)
			if err := c.transport.Write(string(data) + "\n"); err != nil {
				return err
			}
		}
	}
}

// ReceiveMessages returns a channel that yields all messages from Claude.
func (c *Client) ReceiveMessages(ctx context.Context) <-chan Message {
	msgChan, _ := c.ReceiveMessagesWithErrors(ctx)
	return msgChan
}

// ReceiveMessagesWithErrors returns messages and an error channel. The
// first error ends the returned channels; when the error was a single bad
// line rather than a dead process, a later Receive call resumes from the
// next message.
func (c *Client) ReceiveMessagesWithErrors(ctx context.Context) (<-chan Message, <-chan error) {
	return c.receive(ctx, false)
}

// ReceiveResponse receives messages until a ResultMessage is received.
// The ResultMessage IS included in the yielded messages.
func (c *Client) ReceiveResponse(ctx context.Context) <-chan Message {
	msgChan, _ := c.ReceiveResponseWithErrors(ctx)
	return msgChan
}

// ReceiveResponseWithErrors receives until ResultMessage and returns an
// error channel with the same contract as ReceiveMessagesWithErrors.
func (c *Client) ReceiveResponseWithErrors(ctx context.Context) (<-chan Message, <-chan error) {
	return c.receive(ctx, true)
}

func (c *Client) receive(ctx context.Context, untilResult bool) (<-chan Message, <-chan error) {
	msgChan := make(chan Message, 100)
	errChan := make(chan error, 1)

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	go func() {
		defer close(msgChan)
		defer close(errChan)
		if channel == nil {
			errChan <- &CLIConnectionError{SDKError: SDKError{Message: "Not connected. Call Connect() first."}}
			return
		}
		for item := range channel.receive() {
			if item.err != nil {
				errChan <- item.err
				return
			}
			select {
			case msgChan <- item.msg:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
			if untilResult {
				if _, ok := item.msg.(*ResultMessage); ok {
					return
				}
			}
		}
		if err := channel.err(); err != nil {
			errChan <- err
		}
	}()
	return msgChan, errChan
}

// Interrupt sends an interrupt signal.
func (c *Client) Interrupt(ctx context.Context) error {
	if c.channel == nil {
		return &CLIConnectionError{SDKError: SDKError{Message: "Not connected. Call Connect() first."}}
	}
	return c.channel.interrupt(ctx)
}

// SetPermissionMode changes the permission mode during conversation.
func (c *Client) SetPermissionMode(ctx context.Context, mode PermissionMode) error {
	if c.channel == nil {
		return &CLIConnectionError{SDKError: SDKError{Message: "Not connected. Call Connect() first."}}
	}
	return c.channel.setPermissionMode(ctx, string(mode))
}

// SetModel changes the AI model during conversation.
func (c *Client) SetModel(ctx context.Context, model string) error {
	return c.SetModelOptional(ctx, &model)
}

// SetModelOptional changes model; nil means reset to CLI default model.
func (c *Client) SetModelOptional(ctx context.Context, model *string) error {
	if c.channel == nil {
		return &CLIConnectionError{SDKError: SDKError{Message: "Not connected. Call Connect() first."}}
	}
	if model == nil {
		return c.channel.setModel(ctx, nil)
	}
	return c.channel.setModel(ctx, *model)
}

// RewindFiles rewinds tracked files to a specific user message state. The
// session must have been started with file checkpointing enabled.
func (c *Client) RewindFiles(ctx context.Context, userMessageID string) error {
	if c.channel == nil {
		return &CLIConnectionError{SDKError: SDKError{Message: "Not connected. Call Connect() first."}}
	}
	return c.channel.rewindFiles(ctx, userMessageID)
}

// GetMCPStatus gets current MCP server connection status.
func (c *Client) GetMCPStatus(ctx context.Context) (map[string]any, error) {
	if c.channel == nil {
		return nil, &CLIConnectionError{SDKError: SDKError{Message: "Not connected. Call Connect() first."}}
	}
	return c.channel.mcpStatus(ctx)
}

// Close disconnects from Claude Code and cleans up resources.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.channel != nil {
		c.channel.close()
		c.channel = nil
	}
	c.transport = nil
	return nil
}

func resolveInitializeTimeout() float64 {
	const minTimeoutSeconds = 60.0
	raw := os.Getenv("CLAUDE_CODE_STREAM_CLOSE_TIMEOUT")
	if raw == "" {
		return minTimeoutSeconds
	}
	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return minTimeoutSeconds
	}
	timeoutSeconds := ms / 1000.0
	if timeoutSeconds < minTimeoutSeconds {
		return minTimeoutSeconds
	}
	return timeoutSeconds
}
