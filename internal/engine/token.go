package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/alemendo/intent-cli/internal/intent"
)

// TokenNamespace prefixes every confirm token so it is recognizable in
// transcripts and cannot be confused with a transaction hash.
const TokenNamespace = "CONFIRM"

// DeriveToken derives the confirm token binding one intent to one session and
// network. It is deterministic: no clock, no randomness, so re-deriving from a
// remembered session reproduces the exact token shown during analysis. The
// token is tamper-evident, not secret.
func DeriveToken(sessionID, network string, in intent.Intent) string {
	payload, err := json.Marshal(map[string]json.RawMessage{
		"intent":     json.RawMessage(intent.CanonicalJSON(in)),
		"network":    mustJSONString(network),
		"session_id": mustJSONString(sessionID),
	})
	if err != nil {
		payload = intent.CanonicalJSON(in)
	}
	sum := sha256.Sum256(payload)
	return TokenNamespace + "-" + strings.ToUpper(hex.EncodeToString(sum[:8]))
}

// TokenMatches reports whether a caller-supplied token is exactly the token
// derived for the given triple.
func TokenMatches(token, sessionID, network string, in intent.Intent) bool {
	return strings.TrimSpace(token) == DeriveToken(sessionID, network, in)
}

func mustJSONString(v string) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`""`)
	}
	return raw
}
