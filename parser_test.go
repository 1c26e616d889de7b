package claude

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUserMessageString(t *testing.T) {
	msg, err := decodeMessage(map[string]any{
		"type": "user",
		"message": map[string]any{
			"role":    "user",
			"content": "hello",
		},
	})
	require.NoError(t, err)

	user, ok := msg.(*UserMessage)
	require.True(t, ok)
	assert.Equal(t, "hello", user.Content)
}

func TestDecodeAssistantMessage(t *testing.T) {
	msg, err := decodeMessage(map[string]any{
		"type": "assistant",
		"message": map[string]any{
			"model": "claude-sonnet-4-5",
			"content": []any{
				map[string]any{"type": "text", "text": "hi there"},
			},
		},
	})
	require.NoError(t, err)

	assistant, ok := msg.(*AssistantMessage)
	require.True(t, ok)
	assert.Equal(t, "claude-sonnet-4-5", assistant.Model)
	require.Len(t, assistant.Content, 1)
	text, ok := assistant.Content[0].(*TextBlock)
	require.True(t, ok)
	assert.Equal(t, "hi there", text.Text)
}

func TestDecodeResultMessage(t *testing.T) {
	msg, err := decodeMessage(map[string]any{
		"type":        "result",
		"subtype":     "success",
		"duration_ms": float64(1500),
		"num_turns":   float64(2),
		"session_id":  "sess-1",
		"is_error":    false,
	})
	require.NoError(t, err)

	result, ok := msg.(*ResultMessage)
	require.True(t, ok)
	assert.Equal(t, "success", result.Subtype)
	assert.Equal(t, 1500, result.DurationMS)
	assert.Equal(t, 2, result.NumTurns)
	assert.Equal(t, "sess-1", result.SessionID)
	assert.False(t, result.IsError)
}

func TestDecodeControlRequest(t *testing.T) {
	msg, err := decodeMessage(map[string]any{
		"type":       "control_request",
		"request_id": "srv_1",
		"request": map[string]any{
			"subtype":   "can_use_tool",
			"tool_name": "Bash",
		},
	})
	require.NoError(t, err)

	req, ok := msg.(*ControlRequestMessage)
	require.True(t, ok)
	assert.Equal(t, "srv_1", req.RequestID)
	assert.Equal(t, "can_use_tool", req.Request["subtype"])
}

func TestDecodeControlRequestMissingID(t *testing.T) {
	_, err := decodeMessage(map[string]any{
		"type":    "control_request",
		"request": map[string]any{"subtype": "interrupt"},
	})
	require.Error(t, err)
	var parseErr *MessageParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestDecodeControlResponseSuccess(t *testing.T) {
	msg, err := decodeMessage(map[string]any{
		"type": "control_response",
		"response": map[string]any{
			"subtype":    "success",
			"request_id": "req_1_abc",
			"response":   map[string]any{"commands": []any{}},
		},
	})
	require.NoError(t, err)

	resp, ok := msg.(*ControlResponseMessage)
	require.True(t, ok)
	assert.Equal(t, "success", resp.Subtype)
	assert.Equal(t, "req_1_abc", resp.RequestID)
	assert.NotNil(t, resp.Response)
}

func TestDecodeControlResponseError(t *testing.T) {
	msg, err := decodeMessage(map[string]any{
		"type": "control_response",
		"response": map[string]any{
			"subtype":    "error",
			"request_id": "req_2_def",
			"error":      "something broke",
		},
	})
	require.NoError(t, err)

	resp, ok := msg.(*ControlResponseMessage)
	require.True(t, ok)
	assert.Equal(t, "error", resp.Subtype)
	assert.Equal(t, "something broke", resp.Error)
}

func TestDecodeControlCancel(t *testing.T) {
	msg, err := decodeMessage(map[string]any{
		"type":       "control_cancel_request",
		"request_id": "srv_9",
	})
	require.NoError(t, err)

	cancel, ok := msg.(*ControlCancelMessage)
	require.True(t, ok)
	assert.Equal(t, "srv_9", cancel.RequestID)
}

func TestDecodeStreamEvent(t *testing.T) {
	msg, err := decodeMessage(map[string]any{
		"type":       "stream_event",
		"uuid":       "u-1",
		"session_id": "sess-1",
		"event":      map[string]any{"type": "content_block_delta"},
	})
	require.NoError(t, err)

	event, ok := msg.(*StreamEvent)
	require.True(t, ok)
	assert.Equal(t, "u-1", event.UUID)
	assert.Equal(t, "content_block_delta", event.Event["type"])
}

func TestDecodeRateLimitEvent(t *testing.T) {
	msg, err := decodeMessage(map[string]any{
		"type":   "rate_limit_event",
		"status": "allowed",
	})
	require.NoError(t, err)

	_, ok := msg.(*RateLimitEvent)
	assert.True(t, ok)
}

func TestDecodeMissingType(t *testing.T) {
	_, err := decodeMessage(map[string]any{"foo": "bar"})
	require.Error(t, err)
	var parseErr *MessageParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := decodeMessage(map[string]any{"type": "galaxy_brain"})
	require.Error(t, err)
	var parseErr *MessageParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Error(), "galaxy_brain")
}

func TestDecodeIsPure(t *testing.T) {
	data := map[string]any{
		"type":       "control_cancel_request",
		"request_id": "srv_1",
	}
	first, err := decodeMessage(data)
	require.NoError(t, err)
	second, err := decodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
