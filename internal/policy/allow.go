package policy

import (
	"strings"

	clierr "github.com/alemendo/intent-cli/internal/errors"
)

// CheckCommandAllowed enforces the --enable-commands allowlist. An empty
// allowlist permits everything.
func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	normPath := normalizePath(commandPath)
	for _, allowed := range allowlist {
		if normalizePath(allowed) == normPath {
			return nil
		}
	}
	return clierr.NewReason(clierr.CodeBlocked, clierr.ReasonCommandBlocked,
		"command blocked by --enable-commands policy")
}

func normalizePath(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	return strings.Join(parts, " ")
}
