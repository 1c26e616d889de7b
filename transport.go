package claude

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BufferConfig controls the transport's line accumulation buffer. The buffer
// starts at InitialSize and doubles as lines grow; a single message larger
// than MaxMessageSize terminates the stream with a buffer-overflow error.
type BufferConfig struct {
	InitialSize    int
	MaxMessageSize int
}

const (
	defaultInitialBufferSize = 64 * 1024
	defaultMaxMessageSize    = 50 * 1024 * 1024
)

// stderrTailLines is how many trailing stderr lines are retained for
// inclusion in a ProcessError.
const stderrTailLines = 10

// rawMessage is one item of the transport's message stream: either a decoded
// JSON line or a per-line decode failure. Decode failures do not terminate
// the stream.
type rawMessage struct {
	data map[string]any
	err  error
}

// subprocessTransport drives the Claude Code CLI as a child process,
// exchanging line-delimited JSON over its standard streams.
//
// The stdin handle is guarded only by writeMu, never by anything the read
// loop holds, so writers and the background reader cannot block each other.
type subprocessTransport struct {
	options *AgentOptions
	cliPath string
	cwd     string
	logger  *slog.Logger
	bufCfg  BufferConfig

	process *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  io.ReadCloser

	msgChan chan rawMessage
	errChan chan error

	writeMu sync.Mutex
	ready   bool
	closed  bool
	cancel  context.CancelFunc

	errMu      sync.Mutex
	exitErr    error
	stderrTail []string
}

func newSubprocessTransport(options *AgentOptions) *subprocessTransport {
	cliPath := options.CLIPath
	if cliPath == "" {
		cliPath = findCLI()
	}

	bufCfg := BufferConfig{
		InitialSize:    defaultInitialBufferSize,
		MaxMessageSize: defaultMaxMessageSize,
	}
	if options.Buffer != nil {
		if options.Buffer.InitialSize > 0 {
			bufCfg.InitialSize = options.Buffer.InitialSize
		}
		if options.Buffer.MaxMessageSize > 0 {
			bufCfg.MaxMessageSize = options.Buffer.MaxMessageSize
		}
	} else if options.MaxBufferSize > 0 {
		bufCfg.MaxMessageSize = options.MaxBufferSize
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &subprocessTransport{
		options: options,
		cliPath: cliPath,
		cwd:     options.Cwd,
		logger:  logger,
		bufCfg:  bufCfg,
		msgChan: make(chan rawMessage, 100),
		errChan: make(chan error, 1),
	}
}

// findCLI resolves the Claude Code executable: explicit env override, then
// PATH, then well-known install locations. Returns "" when nothing is found.
func findCLI() string {
	if override := os.Getenv(CLIPathEnv); override != "" {
		if info, err := os.Stat(override); err == nil && !info.IsDir() {
			return override
		}
	}

	if path, err := exec.LookPath("claude"); err == nil {
		return path
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		filepath.Join(home, ".npm-global/bin/claude"),
		"/usr/local/bin/claude",
		"/opt/homebrew/bin/claude",
		filepath.Join(home, ".local/bin/claude"),
		filepath.Join(home, "node_modules/.bin/claude"),
		filepath.Join(home, ".yarn/bin/claude"),
		filepath.Join(home, ".claude/local/claude"),
	}
	for _, loc := range locations {
		if info, err := os.Stat(loc); err == nil && !info.IsDir() {
			return loc
		}
	}

	return ""
}

func (t *subprocessTransport) buildCommand() []string {
	cmd := []string{t.cliPath, "--output-format", "stream-json", "--verbose"}

	opts := t.options

	if opts.SystemPrompt != nil {
		cmd = append(cmd, "--system-prompt", *opts.SystemPrompt)
	} else if opts.SystemPromptPreset != nil {
		if opts.SystemPromptPreset.Append != "" {
			cmd = append(cmd, "--append-system-prompt", opts.SystemPromptPreset.Append)
		}
	} else {
		cmd = append(cmd, "--system-prompt", "")
	}

	if opts.ToolsPreset != nil {
		cmd = append(cmd, "--tools", "default")
	} else if opts.Tools != nil {
		cmd = append(cmd, "--tools", strings.Join(opts.Tools, ","))
	}

	if len(opts.AllowedTools) > 0 {
		cmd = append(cmd, "--allowedTools", strings.Join(opts.AllowedTools, ","))
	}

	if len(opts.DisallowedTools) > 0 {
		cmd = append(cmd, "--disallowedTools", strings.Join(opts.DisallowedTools, ","))
	}

	if opts.MaxTurns > 0 {
		cmd = append(cmd, "--max-turns", strconv.Itoa(opts.MaxTurns))
	}

	if opts.MaxBudgetUSD != nil {
		cmd = append(cmd, "--max-budget-usd", fmt.Sprintf("%g", *opts.MaxBudgetUSD))
	}

	if opts.Model != "" {
		cmd = append(cmd, "--model", opts.Model)
	}

	if opts.FallbackModel != "" {
		cmd = append(cmd, "--fallback-model", opts.FallbackModel)
	}

	if len(opts.Betas) > 0 {
		betas := make([]string, len(opts.Betas))
		for i, b := range opts.Betas {
			betas[i] = string(b)
		}
		cmd = append(cmd, "--betas", strings.Join(betas, ","))
	}

	if opts.PermissionPromptToolName != "" {
		cmd = append(cmd, "--permission-prompt-tool", opts.PermissionPromptToolName)
	}

	if opts.PermissionMode != "" {
		cmd = append(cmd, "--permission-mode", string(opts.PermissionMode))
	}

	if opts.ContinueConversation {
		cmd = append(cmd, "--continue")
	}

	if opts.Resume != "" {
		cmd = append(cmd, "--resume", opts.Resume)
	}

	if settings := t.buildSettingsValue(); settings != "" {
		cmd = append(cmd, "--settings", settings)
	}

	for _, dir := range opts.AddDirs {
		cmd = append(cmd, "--add-dir", dir)
	}

	if len(opts.McpServers) > 0 {
		serversForCLI := make(map[string]any, len(opts.McpServers))
		for name, config := range opts.McpServers {
			switch cfg := config.(type) {
			case *McpSdkServerConfig:
				// The instance stays in-process; the CLI only needs
				// the name to route mcp_message requests back.
				serversForCLI[name] = map[string]any{
					"type": cfg.Type,
					"name": cfg.Name,
				}
			case *McpStdioServerConfig:
				serversForCLI[name] = cfg
			case *McpSSEServerConfig:
				serversForCLI[name] = cfg
			case *McpHTTPServerConfig:
				serversForCLI[name] = cfg
			}
		}
		if len(serversForCLI) > 0 {
			data, _ := json.Marshal(map[string]any{"mcpServers": serversForCLI})
			cmd = append(cmd, "--mcp-config", string(data))
		}
	} else if opts.McpServersPath != "" {
		cmd = append(cmd, "--mcp-config", opts.McpServersPath)
	}

	if opts.IncludePartialMessages {
		cmd = append(cmd, "--include-partial-messages")
	}

	if opts.ForkSession {
		cmd = append(cmd, "--fork-session")
	}

	if opts.SettingSources != nil {
		sources := make([]string, len(opts.SettingSources))
		for i, s := range opts.SettingSources {
			sources[i] = string(s)
		}
		cmd = append(cmd, "--setting-sources", strings.Join(sources, ","))
	} else {
		cmd = append(cmd, "--setting-sources", "")
	}

	for _, plugin := range opts.Plugins {
		if plugin.Type == "local" {
			cmd = append(cmd, "--plugin-dir", plugin.Path)
		}
	}

	for flag, value := range opts.ExtraArgs {
		normalized := flag
		if !strings.HasPrefix(normalized, "--") {
			normalized = "--" + normalized
		}
		if value == nil {
			cmd = append(cmd, normalized)
		} else {
			cmd = append(cmd, normalized, *value)
		}
	}

	var maxThinkingTokens *int
	if opts.Thinking != nil {
		switch tc := opts.Thinking.(type) {
		case *ThinkingConfigAdaptive:
			if opts.MaxThinkingTokens == nil {
				v := 32000
				maxThinkingTokens = &v
			} else {
				maxThinkingTokens = opts.MaxThinkingTokens
			}
		case *ThinkingConfigEnabled:
			maxThinkingTokens = &tc.BudgetTokens
		case *ThinkingConfigDisabled:
			v := 0
			maxThinkingTokens = &v
		}
	} else {
		maxThinkingTokens = opts.MaxThinkingTokens
	}
	if maxThinkingTokens != nil {
		cmd = append(cmd, "--max-thinking-tokens", strconv.Itoa(*maxThinkingTokens))
	}

	if opts.Effort != "" {
		cmd = append(cmd, "--effort", string(opts.Effort))
	}

	if opts.OutputFormat != nil {
		if t, _ := opts.OutputFormat["type"].(string); t == "json_schema" {
			if schema, ok := opts.OutputFormat["schema"]; ok {
				data, _ := json.Marshal(schema)
				cmd = append(cmd, "--json-schema", string(data))
			}
		}
	}

	cmd = append(cmd, "--input-format", "stream-json")

	return cmd
}

func (t *subprocessTransport) buildSettingsValue() string {
	hasSettings := t.options.Settings != ""
	hasSandbox := t.options.Sandbox != nil

	if !hasSettings && !hasSandbox {
		return ""
	}
	if hasSettings && !hasSandbox {
		return t.options.Settings
	}

	settingsObj := map[string]any{}
	if hasSettings {
		s := strings.TrimSpace(t.options.Settings)
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
			_ = json.Unmarshal([]byte(s), &settingsObj)
		} else if data, err := os.ReadFile(s); err == nil {
			_ = json.Unmarshal(data, &settingsObj)
		}
	}
	if hasSandbox {
		settingsObj["sandbox"] = t.options.Sandbox
	}

	data, _ := json.Marshal(settingsObj)
	return string(data)
}

// checkCLIVersion probes `claude --version` and warns when the CLI is older
// than MinimumClaudeCodeVersion. Never fatal; failures to probe only warn.
func (t *subprocessTransport) checkCLIVersion(ctx context.Context) {
	if t.options.SkipVersionCheck || os.Getenv(SkipVersionCheckEnv) != "" {
		return
	}

	out, err := exec.CommandContext(ctx, t.cliPath, "--version").Output()
	if err != nil {
		t.logger.Warn("could not determine Claude Code version",
			"cli_path", t.cliPath, "error", err)
		return
	}

	version := parseCLIVersion(string(out))
	if version == "" {
		return
	}
	if !versionAtLeast(version, MinimumClaudeCodeVersion) {
		t.logger.Warn("Claude Code version is below the minimum supported; some features may not work",
			"cli_path", t.cliPath, "version", version, "minimum", MinimumClaudeCodeVersion)
	}
}

func (t *subprocessTransport) Connect(ctx context.Context) error {
	if t.closed {
		return &CLIConnectionError{SDKError: SDKError{Message: "Transport is closed"}}
	}
	if t.process != nil {
		return nil
	}

	if t.cliPath == "" {
		return &CLINotFoundError{
			CLIConnectionError: CLIConnectionError{SDKError: SDKError{
				Message: "Claude Code not found. Ensure 'claude' is on PATH or set " + CLIPathEnv,
			}},
		}
	}

	t.checkCLIVersion(ctx)

	cmd := t.buildCommand()
	t.process = exec.CommandContext(ctx, cmd[0], cmd[1:]...)
	if err := setProcessUser(t.process, t.options.User); err != nil {
		return &CLIConnectionError{SDKError: SDKError{Message: "Failed to configure process user", Cause: err}}
	}

	env := os.Environ()
	for k, v := range t.options.Env {
		env = append(env, k+"="+v)
	}
	env = append(env,
		"CLAUDE_CODE_ENTRYPOINT=sdk-go",
		"CLAUDE_AGENT_SDK_VERSION="+Version,
	)
	if t.options.EnableFileCheckpointing {
		env = append(env, "CLAUDE_CODE_ENABLE_SDK_FILE_CHECKPOINTING=true")
	}
	t.process.Env = env

	if t.cwd != "" {
		t.process.Dir = t.cwd
		t.process.Env = append(t.process.Env, "PWD="+t.cwd)
	}

	var err error
	t.stdin, err = t.process.StdinPipe()
	if err != nil {
		return &CLIConnectionError{SDKError: SDKError{Message: "Failed to create stdin pipe", Cause: err}}
	}
	t.stdout, err = t.process.StdoutPipe()
	if err != nil {
		return &CLIConnectionError{SDKError: SDKError{Message: "Failed to create stdout pipe", Cause: err}}
	}
	t.stderr, err = t.process.StderrPipe()
	if err != nil {
		return &CLIConnectionError{SDKError: SDKError{Message: "Failed to create stderr pipe", Cause: err}}
	}

	if err := t.process.Start(); err != nil {
		if os.IsNotExist(err) {
			return &CLINotFoundError{
				CLIConnectionError: CLIConnectionError{SDKError: SDKError{Message: "Claude Code not found at: " + t.cliPath, Cause: err}},
				CLIPath:            t.cliPath,
			}
		}
		return &CLIConnectionError{SDKError: SDKError{Message: "Failed to start Claude Code", Cause: err}}
	}

	var readCtx context.Context
	readCtx, t.cancel = context.WithCancel(context.Background())

	g, gctx := errgroup.WithContext(readCtx)
	g.Go(func() error { return t.readLines(gctx) })
	g.Go(func() error { t.readStderr(); return nil })

	go t.awaitExit(readCtx, g)

	t.ready = true
	return nil
}

// awaitExit reaps the reader goroutines and the child process, records the
// terminal error and closes the error channel exactly once.
func (t *subprocessTransport) awaitExit(ctx context.Context, g *errgroup.Group) {
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		t.setExitError(err)
	}

	if err := t.process.Wait(); err != nil && ctx.Err() == nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			t.setExitError(NewProcessError(
				fmt.Sprintf("Command failed with exit code %d", exitErr.ExitCode()),
				exitErr.ExitCode(),
				t.stderrSnapshot(),
			))
		} else {
			t.setExitError(&ProcessError{
				SDKError: SDKError{Message: "Claude Code process failed", Cause: err},
			})
		}
	}

	if err := t.LastError(); err != nil {
		t.signalError(err)
	}
	close(t.errChan)
}

// readLines is the transport read loop. One physical line is one message.
// The accumulation buffer starts at the configured initial size and doubles
// as needed; a line over MaxMessageSize aborts the stream with a
// buffer-overflow error and delivers no partial message. An individual line
// that fails JSON decoding is delivered as an in-order error item and the
// loop continues.
func (t *subprocessTransport) readLines(ctx context.Context) error {
	defer close(t.msgChan)

	reader := bufio.NewReaderSize(t.stdout, t.bufCfg.InitialSize)
	buf := make([]byte, 0, t.bufCfg.InitialSize)

	for {
		chunk, isPrefix, err := reader.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return t.failRead(&CLIJSONDecodeError{
				SDKError: SDKError{Message: "Failed reading JSON stream from CLI", Cause: err},
				Line:     string(buf),
			})
		}

		if len(buf)+len(chunk) > t.bufCfg.MaxMessageSize {
			return t.failRead(&CLIJSONDecodeError{
				SDKError: SDKError{
					Message: fmt.Sprintf("JSON message exceeded maximum buffer size of %d bytes", t.bufCfg.MaxMessageSize),
					Cause:   fmt.Errorf("message size %d exceeds limit %d", len(buf)+len(chunk), t.bufCfg.MaxMessageSize),
				},
				Line: string(buf),
			})
		}
		buf = growAppend(buf, chunk, t.bufCfg.MaxMessageSize)
		if isPrefix {
			continue
		}

		line := bytes.TrimSpace(buf)
		buf = buf[:0]
		if len(line) == 0 {
			continue
		}

		// Wrapper scripts sometimes print informational text to stdout
		// before the CLI's JSON payloads; skip anything without a brace.
		brace := bytes.IndexByte(line, '{')
		if brace < 0 {
			continue
		}
		line = line[brace:]

		var data map[string]any
		if err := json.Unmarshal(line, &data); err != nil {
			item := rawMessage{err: &CLIJSONDecodeError{
				SDKError: SDKError{Message: "Failed to decode JSON line from CLI", Cause: err},
				Line:     string(line),
			}}
			if !t.deliver(ctx, item) {
				return nil
			}
			continue
		}

		if !t.deliver(ctx, rawMessage{data: data}) {
			return nil
		}
	}
}

// failRead records err as the terminal stream error before the message
// channel closes. The child may still be alive, so awaitExit cannot be
// relied on to have recorded anything by the time consumers observe the end
// of the stream; LastError must already be set when that happens.
func (t *subprocessTransport) failRead(err error) error {
	t.setExitError(err)
	t.signalError(err)
	return err
}

func (t *subprocessTransport) deliver(ctx context.Context, item rawMessage) bool {
	select {
	case t.msgChan <- item:
		return true
	case <-ctx.Done():
		return false
	}
}

// growAppend appends chunk to buf, growing capacity by doubling up to max.
func growAppend(buf, chunk []byte, max int) []byte {
	needed := len(buf) + len(chunk)
	if needed > cap(buf) {
		newCap := cap(buf)
		if newCap == 0 {
			newCap = defaultInitialBufferSize
		}
		for newCap < needed {
			newCap *= 2
		}
		if newCap > max {
			newCap = max
		}
		grown := make([]byte, len(buf), newCap)
		copy(grown, buf)
		buf = grown
	}
	return append(buf, chunk...)
}

func (t *subprocessTransport) readStderr() {
	if t.stderr == nil {
		return
	}
	scanner := bufio.NewScanner(t.stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		t.recordStderr(line)
		if t.options.Stderr != nil {
			t.options.Stderr(line)
		}
	}
}

func (t *subprocessTransport) recordStderr(line string) {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	t.stderrTail = append(t.stderrTail, line)
	if len(t.stderrTail) > stderrTailLines {
		t.stderrTail = t.stderrTail[1:]
	}
}

func (t *subprocessTransport) stderrSnapshot() string {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return strings.Join(t.stderrTail, "\n")
}

func (t *subprocessTransport) Write(data string) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if !t.ready || t.stdin == nil {
		return &CLIConnectionError{SDKError: SDKError{Message: "Transport is not ready for writing"}}
	}
	if exitErr := t.LastError(); exitErr != nil {
		return &CLIConnectionError{
			SDKError: SDKError{Message: "Cannot write to process that exited with error", Cause: exitErr},
		}
	}

	if _, err := io.WriteString(t.stdin, data); err != nil {
		t.ready = false
		return &CLIConnectionError{SDKError: SDKError{Message: "Failed to write to process stdin", Cause: err}}
	}
	return nil
}

func (t *subprocessTransport) Messages() <-chan rawMessage {
	return t.msgChan
}

func (t *subprocessTransport) Errors() <-chan error {
	return t.errChan
}

func (t *subprocessTransport) LastError() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.exitErr
}

// EndInput closes the write half only; the child can finish its turn and
// keep emitting output.
func (t *subprocessTransport) EndInput() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.stdin != nil {
		err := t.stdin.Close()
		t.stdin = nil
		return err
	}
	return nil
}

func (t *subprocessTransport) IsReady() bool {
	return t.ready
}

// Close terminates the process and releases stream handles. Idempotent.
func (t *subprocessTransport) Close() error {
	t.writeMu.Lock()
	if t.closed {
		t.writeMu.Unlock()
		return nil
	}
	t.closed = true
	t.ready = false
	if t.stdin != nil {
		t.stdin.Close()
		t.stdin = nil
	}
	t.writeMu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	if t.process != nil && t.process.Process != nil {
		_ = t.process.Process.Kill()
	}

	return nil
}

func (t *subprocessTransport) setExitError(err error) {
	if err == nil {
		return
	}
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.exitErr == nil {
		t.exitErr = err
	}
}

func (t *subprocessTransport) signalError(err error) {
	if err == nil {
		return
	}
	select {
	case t.errChan <- err:
	default:
	}
}
