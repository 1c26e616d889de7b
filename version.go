package claude

import (
	"strconv"
	"strings"
)

// SkipVersionCheckEnv disables the CLI version handshake when set to any
// non-empty value.
const SkipVersionCheckEnv = "CLAUDE_AGENT_SDK_SKIP_VERSION_CHECK"

// CLIPathEnv overrides executable discovery with an explicit path.
const CLIPathEnv = "CLAUDE_CLI_PATH"

// parseCLIVersion extracts the version token from `claude --version` output,
// e.g. "2.0.13 (Claude Code)" -> "2.0.13".
func parseCLIVersion(output string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	token, _, _ := strings.Cut(strings.TrimSpace(line), " ")
	return strings.TrimSpace(token)
}

// versionAtLeast reports whether version is >= minimum, comparing up to
// three dotted numeric components. Malformed versions compare as 0.
func versionAtLeast(version, minimum string) bool {
	v := versionComponents(version)
	m := versionComponents(minimum)
	for i := 0; i < 3; i++ {
		if v[i] != m[i] {
			return v[i] > m[i]
		}
	}
	return true
}

func versionComponents(version string) [3]int {
	var out [3]int
	parts := strings.SplitN(strings.TrimSpace(version), ".", 4)
	for i := 0; i < 3 && i < len(parts); i++ {
		// Strip pre-release/build suffixes like "1-beta".
		numeric := parts[i]
		for j, r := range numeric {
			if r < '0' || r > '9' {
				numeric = numeric[:j]
				break
			}
		}
		n, err := strconv.Atoi(numeric)
		if err != nil {
			break
		}
		out[i] = n
	}
	return out
}
