package claude

// Wire types for the bidirectional control protocol between this SDK and
// the Claude Code CLI.

// ControlRequestType enumerates the control request subtypes.
type ControlRequestType string

const (
	ControlRequestInitialize        ControlRequestType = "initialize"
	ControlRequestCanUseTool        ControlRequestType = "can_use_tool"
	ControlRequestSetPermissionMode ControlRequestType = "set_permission_mode"
	ControlRequestHookCallback      ControlRequestType = "hook_callback"
	ControlRequestMcpMessage        ControlRequestType = "mcp_message"
	ControlRequestInterrupt         ControlRequestType = "interrupt"
	ControlRequestRewindFiles       ControlRequestType = "rewind_files"
	ControlRequestMcpStatus         ControlRequestType = "mcp_status"
	ControlRequestSetModel          ControlRequestType = "set_model"
)

// ControlRequestEnvelope is an outbound control_request on the wire.
type ControlRequestEnvelope struct {
	Type      string         `json:"type"` // "control_request"
	RequestID string         `json:"request_id"`
	Request   map[string]any `json:"request"`
}

// ControlResponseEnvelope is an outbound control_response on the wire,
// replying to a control request the CLI sent us.
type ControlResponseEnvelope struct {
	Type     string              `json:"type"` // "control_response"
	Response ControlResponseBody `json:"response"`
}

// ControlResponseBody is the body of a control response.
type ControlResponseBody struct {
	Subtype   string         `json:"subtype"` // "success" or "error"
	RequestID string         `json:"request_id"`
	Response  map[string]any `json:"response,omitempty"`
	Error     string         `json:"error,omitempty"`
}
