package engine

import (
	clierr "github.com/alemendo/intent-cli/internal/errors"
	"github.com/alemendo/intent-cli/internal/id"
	"github.com/alemendo/intent-cli/internal/intent"
)

// PolicyOracle is the queryable recipient/allowlist policy boundary. A nil
// check error means the intent is allowed.
type PolicyOracle interface {
	Check(network string, in intent.Intent) error
}

// AuthorizeRequest carries everything the safety gate needs to decide whether
// a mutating call may proceed. The gate runs strictly before any network call
// that could move funds.
type AuthorizeRequest struct {
	Network   string
	SessionID string
	Intent    intent.Intent
	// Confirmed is the caller's explicit confirmation flag. Nothing mutates
	// on a mainnet-like network without it.
	Confirmed bool
	// ProvidedToken is the confirm token passed back verbatim by the caller.
	ProvidedToken string
	// SessionContinuation is true only when the caller supplied no
	// session-overriding input and the remembered session's intent is
	// structurally identical to the intent about to execute.
	SessionContinuation bool
	Policy              PolicyOracle
}

// Authorize applies the gate ordering: testnet exemption, confirmation flag,
// token (or tokenless unambiguous session replay), then policy. The ordering
// is load-bearing; structural and replay checks happen before the policy
// oracle so a denial can never follow a partial effect.
func Authorize(req AuthorizeRequest) error {
	if !id.MainnetLike(req.Network) {
		return nil
	}

	expected := DeriveToken(req.SessionID, req.Network, req.Intent)

	if !req.Confirmed {
		return clierr.NewReason(clierr.CodeBlocked, clierr.ReasonConfirmationRequired,
			"mainnet execution requires --confirm; re-run with --confirm and the confirm token below").
			WithDetail("expected_token", expected)
	}

	// The continuation shortcut only covers the tokenless replay of the
	// remembered plan. A supplied token is always checked exactly, so a stale
	// token from a replaced plan can never ride a continuation.
	if !req.SessionContinuation || req.ProvidedToken != "" {
		if req.ProvidedToken != expected {
			return clierr.NewReason(clierr.CodeBlocked, clierr.ReasonInvalidConfirmToken,
				"confirm token does not match the plan on the table; re-run analysis to obtain a fresh token").
				WithDetail("expected_token", expected).
				WithDetail("received_token", req.ProvidedToken)
		}
	}

	if req.Policy != nil {
		if err := req.Policy.Check(req.Network, req.Intent); err != nil {
			return err
		}
	}
	return nil
}
