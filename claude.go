// Package claude provides a Go SDK for interacting with Claude Code.
//
// It offers both a simple one-shot Query function for stateless queries
// and a Client for interactive, bidirectional conversations.
//
// Quick start:
//
//	msgs, errs := claude.Query(ctx, "What is 2+2?",
//	    claude.WithModel("claude-sonnet-4-5"),
//	)
//	for msg := range msgs {
//	    if m, ok := msg.(*claude.AssistantMessage); ok {
//	        for _, block := range m.Content {
//	            if tb, ok := block.(*claude.TextBlock); ok {
//	                fmt.Println(tb.Text)
//	            }
//	        }
//	    }
//	}
//	if err := <-errs; err != nil {
//	    log.Fatal(err)
//	}
package claude

import (
	"context"
	"encoding/json"
	"os"
)

// Version is the SDK version.
const Version = "0.1.0"

// MinimumClaudeCodeVersion is the minimum required Claude Code version.
const MinimumClaudeCodeVersion = "2.0.0"

// Query performs a one-shot query to Claude Code and returns channels for
// messages and a final error.
//
// The messages channel yields Message values as they arrive. The error channel
// yields at most one error after all messages have been sent. Always drain the
// messages channel before reading the error channel.
func Query(ctx context.Context, prompt string, opts ...Option) (<-chan Message, <-chan error) {
	return runQuery(ctx, &prompt, nil, opts...)
}

// QueryStream performs a query with streaming input messages.
func QueryStream(ctx context.Context, input <-chan map[string]any, opts ...Option) (<-chan Message, <-chan error) {
	return runQuery(ctx, nil, input, opts...)
}

func runQuery(ctx context.Context, prompt *string, input <-chan map[string]any, opts ...Option) (<-chan Message, <-chan error) {
	msgChan := make(chan Message, 100)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)

		options := applyOptions(opts)
		os.Setenv("CLAUDE_CODE_ENTRYPOINT", "sdk-go")

		if options.CanUseTool != nil {
			if prompt != nil {
				errChan <- &SDKError{Message: "can_use_tool callback requires streaming input; use QueryStream instead of Query"}
				return
			}
			if options.PermissionPromptToolName != "" {
				errChan <- &SDKError{Message: "can_use_tool callback cannot be used with permission_prompt_tool_name"}
				return
			}
			options.PermissionPromptToolName = "stdio"
		}

		t := newSubprocessTransport(options)
		if err := t.Connect(ctx); err != nil {
			errChan <- err
			return
		}

		toolServers := make(map[string]*ToolServer)
		for name, config := range options.McpServers {
			if sdkCfg, ok := config.(*McpSdkServerConfig); ok {
				toolServers[name] = sdkCfg.Instance
			}
		}

		channel := newControlChannel(t, channelOptions{
			CanUseTool:        options.CanUseTool,
			Hooks:             options.Hooks,
			ToolServers:       toolServers,
			InitializeTimeout: 60,
			Agents:            options.Agents,
			Logger:            options.Logger,
		})
		started := false
		defer func() {
			if started {
				channel.close()
			}
		}()

		if err := channel.start(ctx); err != nil {
			errChan <- err
			return
		}
		started = true

		if _, err := channel.initialize(ctx); err != nil {
			errChan <- err
			return
		}

		if prompt != nil {
			userMsg := map[string]any{
				"type":               "user",
				"session_id":         "",
				"message":            map[string]any{"role": "user", "content": *prompt},
				"parent_tool_use_id": nil,
			}
			data, _ := json.Marshal(userMsg)
			if err := t.Write(string(data) + "\n"); err != nil {
				errChan <- err
				return
			}
			_ = t.EndInput()
		} else if input != nil {
			go channel.streamInput(ctx, input)
		}

		hadError := false
		for item := range channel.receive() {
			if item.err != nil {
				errChan <- item.err
				hadError = true
				break
			}
			select {
			case msgChan <- item.msg:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
		if !hadError {
			if transportErr := channel.err(); transportErr != nil {
				errChan <- transportErr
			}
		}
	}()

	return msgChan, errChan
}
