// Package engine is the guarded multi-phase execution workflow: it turns a
// loosely-specified intent into a safely-gated on-chain action through three
// caller-selected phases (analysis, simulate, execute).
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/alemendo/intent-cli/internal/adapter"
	"github.com/alemendo/intent-cli/internal/engine/session"
	clierr "github.com/alemendo/intent-cli/internal/errors"
	"github.com/alemendo/intent-cli/internal/id"
	"github.com/alemendo/intent-cli/internal/intent"
)

type Phase string

const (
	PhaseAnalysis Phase = "analysis"
	PhaseSimulate Phase = "simulate"
	PhaseExecute  Phase = "execute"
)

// Artifact statuses surfaced in phase details.
const (
	StatusDescribed     = "described"
	StatusPreviewed     = "previewed"
	StatusFailedPreview = "failed-preview"
	StatusSubmitted     = "submitted"
)

// CallParams are the raw inputs of one engine invocation.
type CallParams struct {
	SessionID    string
	Network      string
	Endpoint     string
	Sender       string
	Intent       intent.Params
	FreeText     string
	Confirmed    bool
	ConfirmToken string
	NoFallback   bool
}

// Artifact is the phase-specific payload of a call result.
type Artifact struct {
	Status       string            `json:"status"`
	SummaryLine  string            `json:"summary_line"`
	Path         string            `json:"path,omitempty"`
	UsedFallback bool              `json:"used_fallback,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
}

// Details is the audit metadata attached to every successful call.
type Details struct {
	SessionID                string             `json:"session_id"`
	Phase                    Phase              `json:"phase"`
	Network                  string             `json:"network"`
	IntentType               string             `json:"intent_type"`
	Intent                   map[string]string  `json:"intent"`
	NeedsMainnetConfirmation bool               `json:"needs_mainnet_confirmation"`
	ConfirmToken             string             `json:"confirm_token"`
	Artifacts                map[Phase]Artifact `json:"artifacts"`
}

// CallResult is what every phase returns on success.
type CallResult struct {
	SummaryText string
	Details     Details
	Warnings    []string
}

// Engine wires the normalizer, token codec, session store, safety gate, and
// execution adapters together. It imposes no timeouts and performs no retries
// beyond the adapter's single fallback hop.
type Engine struct {
	sessions session.Store
	registry *adapter.Registry
	policy   PolicyOracle
	newID    func() string
}

type Option func(*Engine)

// WithSessionIDFunc overrides session id generation, for tests.
func WithSessionIDFunc(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

func New(sessions session.Store, registry *adapter.Registry, policy PolicyOracle, opts ...Option) *Engine {
	e := &Engine{
		sessions: sessions,
		registry: registry,
		policy:   policy,
		newID:    func() string { return "s-" + uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Analyze normalizes the intent, derives its confirm token, remembers the
// session, and returns a description. It never touches the chain, so it is
// always safe to retry.
func (e *Engine) Analyze(ctx context.Context, params CallParams) (CallResult, error) {
	plan, err := e.plan(params)
	if err != nil {
		return CallResult{}, err
	}
	e.remember(plan)

	result := e.describe(PhaseAnalysis, plan)
	result.Details.Artifacts[PhaseAnalysis] = Artifact{
		Status:      StatusDescribed,
		SummaryLine: result.SummaryText,
	}
	return result, nil
}

// Simulate is Analyze plus a dry-run through the execution adapter. A preview
// failure is soft: the phase still succeeds with a failed-preview artifact,
// because a flaky quote endpoint must not look like a validation failure.
func (e *Engine) Simulate(ctx context.Context, params CallParams) (CallResult, error) {
	plan, err := e.plan(params)
	if err != nil {
		return CallResult{}, err
	}
	e.remember(plan)

	result := e.describe(PhaseSimulate, plan)

	pair, err := e.registry.Resolve(plan.intent.Kind())
	if err != nil {
		result.Details.Artifacts[PhaseSimulate] = Artifact{
			Status:      StatusFailedPreview,
			SummaryLine: err.Error(),
		}
		result.Warnings = append(result.Warnings, err.Error())
		return result, nil
	}

	run, err := adapter.Run(ctx, plan.request(), pair.Primary, pair.Fallback, !params.NoFallback, false)
	if err != nil {
		result.Details.Artifacts[PhaseSimulate] = Artifact{
			Status:      StatusFailedPreview,
			SummaryLine: fmt.Sprintf("preview failed: %v", err),
		}
		result.Warnings = append(result.Warnings, fmt.Sprintf("preview failed: %v", err))
		return result, nil
	}

	result.Warnings = append(result.Warnings, run.Warnings...)
	result.Details.Artifacts[PhaseSimulate] = Artifact{
		Status:       StatusPreviewed,
		SummaryLine:  run.Outcome.Summary,
		Path:         string(run.Path),
		UsedFallback: run.UsedFallback,
		Fields:       run.Outcome.Fields,
	}
	return result, nil
}

// Execute resolves the plan on the table, consults the safety gate, and only
// on allow invokes the adapter in mutating mode. Denials carry the gate's
// reason code and, where applicable, the expected confirm token.
func (e *Engine) Execute(ctx context.Context, params CallParams) (CallResult, error) {
	plan, continuation, err := e.resolveForExecute(params)
	if err != nil {
		return CallResult{}, err
	}

	gateErr := Authorize(AuthorizeRequest{
		Network:             plan.network,
		SessionID:           plan.sessionID,
		Intent:              plan.intent,
		Confirmed:           params.Confirmed,
		ProvidedToken:       strings.TrimSpace(params.ConfirmToken),
		SessionContinuation: continuation,
		Policy:              e.policy,
	})
	if gateErr != nil {
		return CallResult{}, gateErr
	}

	pair, err := e.registry.Resolve(plan.intent.Kind())
	if err != nil {
		return CallResult{}, err
	}

	run, err := adapter.Run(ctx, plan.request(), pair.Primary, pair.Fallback, !params.NoFallback, true)
	if err != nil {
		return CallResult{}, classifyExecutionError(err)
	}

	result := e.describe(PhaseExecute, plan)
	result.Warnings = append(result.Warnings, run.Warnings...)
	result.Details.Artifacts[PhaseExecute] = Artifact{
		Status:       StatusSubmitted,
		SummaryLine:  run.Outcome.Summary,
		Path:         string(run.Path),
		UsedFallback: run.UsedFallback,
		Fields:       run.Outcome.Fields,
	}
	result.SummaryText = run.Outcome.Summary
	return result, nil
}

// plan is the resolved input of one call: a session id, a network, and a
// canonical intent.
type planState struct {
	sessionID string
	network   string
	endpoint  string
	sender    string
	intent    intent.Intent
}

func (p planState) request() adapter.Request {
	return adapter.Request{
		Network:   p.network,
		Endpoint:  p.endpoint,
		Sender:    p.sender,
		Intent:    p.intent,
		SessionID: p.sessionID,
	}
}

func (e *Engine) plan(params CallParams) (planState, error) {
	normalized, err := intent.Normalize(params.Intent, params.FreeText)
	if err != nil {
		return planState{}, err
	}
	network, err := id.ParseNetwork(params.Network)
	if err != nil {
		return planState{}, err
	}
	sessionID := strings.TrimSpace(params.SessionID)
	if sessionID == "" {
		sessionID = e.newID()
	}
	return planState{
		sessionID: sessionID,
		network:   network.Slug,
		endpoint:  strings.TrimSpace(params.Endpoint),
		sender:    strings.TrimSpace(params.Sender),
		intent:    normalized,
	}, nil
}

func (e *Engine) remember(plan planState) {
	e.sessions.Remember(session.Session{
		ID:       plan.sessionID,
		Network:  plan.network,
		Intent:   plan.intent,
		Endpoint: plan.endpoint,
	})
}

// resolveForExecute finds the plan to run: the explicitly named session, or
// the latest session only when the caller supplied no fresh intent-affecting
// fields. Fresh fields force re-normalization and disable the continuation
// shortcut, so the confirm token must then match the new intent exactly.
func (e *Engine) resolveForExecute(params CallParams) (planState, bool, error) {
	fresh := hasFreshIntentFields(params)

	if fresh {
		plan, err := e.planForFreshExecute(params)
		return plan, false, err
	}

	var (
		stored session.Session
		found  bool
	)
	if sid := strings.TrimSpace(params.SessionID); sid != "" {
		stored, found = e.sessions.Read(sid)
	} else {
		stored, found = e.sessions.Latest()
	}
	if !found {
		return planState{}, false, clierr.NewReason(clierr.CodeUsage, clierr.ReasonSessionNotFound,
			"no remembered session to execute; run analysis or simulate first")
	}

	network := stored.Network
	continuation := true
	if explicit := strings.TrimSpace(params.Network); explicit != "" {
		parsed, err := id.ParseNetwork(explicit)
		if err != nil {
			return planState{}, false, err
		}
		if parsed.Slug != stored.Network {
			// A different network is session-overriding input: the shortcut
			// no longer applies and a token for the new triple is required.
			network = parsed.Slug
			continuation = false
		}
	}

	endpoint := stored.Endpoint
	if override := strings.TrimSpace(params.Endpoint); override != "" {
		endpoint = override
	}

	return planState{
		sessionID: stored.ID,
		network:   network,
		endpoint:  endpoint,
		sender:    strings.TrimSpace(params.Sender),
		intent:    stored.Intent,
	}, continuation, nil
}

func (e *Engine) planForFreshExecute(params CallParams) (planState, error) {
	plan, err := e.plan(params)
	if err == nil {
		return plan, nil
	}
	// Network may live on the remembered session rather than the fresh call.
	if params.Network == "" {
		if sid := strings.TrimSpace(params.SessionID); sid != "" {
			if stored, ok := e.sessions.Read(sid); ok {
				retry := params
				retry.Network = stored.Network
				return e.plan(retry)
			}
		}
	}
	return planState{}, err
}

func hasFreshIntentFields(params CallParams) bool {
	p := params.Intent
	if p.Action != "" || p.Token != "" || p.TokenOut != "" || p.Recipient != "" ||
		p.Amount != "" || p.Protocol != "" || p.ToNetwork != "" || p.OrderID != "" ||
		p.SlippageBps != "" {
		return true
	}
	hints := intent.ParseHints(params.FreeText)
	return hints.Action != "" || hints.Token != "" || hints.TokenOut != "" ||
		hints.Recipient != "" || hints.Amount != "" || hints.Protocol != "" ||
		hints.ToNetwork != "" || hints.OrderID != ""
}

func (e *Engine) describe(phase Phase, plan planState) CallResult {
	token := DeriveToken(plan.sessionID, plan.network, plan.intent)
	summary := summarizeIntent(plan.intent, plan.network)
	return CallResult{
		SummaryText: summary,
		Details: Details{
			SessionID:                plan.sessionID,
			Phase:                    phase,
			Network:                  plan.network,
			IntentType:               string(plan.intent.Kind()),
			Intent:                   intent.Fields(plan.intent),
			NeedsMainnetConfirmation: id.MainnetLike(plan.network),
			ConfirmToken:             token,
			Artifacts:                map[Phase]Artifact{},
		},
	}
}

func summarizeIntent(in intent.Intent, network string) string {
	fields := intent.Fields(in)
	switch in.Kind() {
	case intent.KindTransfer:
		return fmt.Sprintf("transfer %s %s to %s on %s", fields["amount"], fields["token"], fields["recipient"], network)
	case intent.KindSwap:
		return fmt.Sprintf("swap %s %s for %s on %s", fields["amount_in"], fields["token_in"], fields["token_out"], network)
	case intent.KindSupply:
		return fmt.Sprintf("supply %s %s to %s on %s", fields["amount"], fields["asset"], fields["protocol"], network)
	case intent.KindWithdraw:
		return fmt.Sprintf("withdraw %s %s from %s on %s", fields["amount"], fields["asset"], fields["protocol"], network)
	case intent.KindBridge:
		return fmt.Sprintf("bridge %s %s from %s to %s", fields["amount"], fields["asset"], network, fields["to_network"])
	case intent.KindCancel:
		return fmt.Sprintf("cancel order %s on %s", fields["order_id"], network)
	default:
		return fmt.Sprintf("%s on %s", in.Kind(), network)
	}
}

// classifyExecutionError attaches a retryable/fatal classification so callers
// know whether re-submitting is sane. The engine itself never auto-retries a
// mutating call.
func classifyExecutionError(err error) error {
	typed, ok := clierr.As(err)
	if !ok {
		return clierr.Wrap(clierr.CodeExecution, "execution failed", err)
	}
	retryable := typed.Code == clierr.CodeUnavailable || typed.Code == clierr.CodeRateLimited
	out := clierr.NewReason(clierr.CodeExecution, clierr.ReasonExecutionFailed, typed.Message).
		WithRetryable(retryable)
	out.Cause = typed.Cause
	if typed.Reason != "" {
		out.Reason = typed.Reason
	}
	for key, value := range typed.Details {
		out.WithDetail(key, value)
	}
	return out
}
