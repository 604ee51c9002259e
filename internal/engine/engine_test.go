package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alemendo/intent-cli/internal/adapter"
	"github.com/alemendo/intent-cli/internal/engine/session"
	clierr "github.com/alemendo/intent-cli/internal/errors"
	"github.com/alemendo/intent-cli/internal/intent"
)

type fakeEffecter struct {
	name       string
	previewErr error
	mutateErr  error
	previews   int
	mutations  int
}

func (f *fakeEffecter) Name() string { return f.name }

func (f *fakeEffecter) Preview(ctx context.Context, req adapter.Request) (adapter.Outcome, error) {
	f.previews++
	if f.previewErr != nil {
		return adapter.Outcome{}, f.previewErr
	}
	return adapter.Outcome{Summary: f.name + " preview ok", Fields: map[string]string{"path": f.name}}, nil
}

func (f *fakeEffecter) Mutate(ctx context.Context, req adapter.Request) (adapter.Outcome, error) {
	f.mutations++
	if f.mutateErr != nil {
		return adapter.Outcome{}, f.mutateErr
	}
	return adapter.Outcome{Summary: f.name + " submitted", Fields: map[string]string{"tx_hash": "0xfeed"}}, nil
}

type testHarness struct {
	engine   *Engine
	store    *session.MemoryStore
	primary  *fakeEffecter
	fallback *fakeEffecter
	oracle   *fakeOracle
}

func newTestHarness() *testHarness {
	store := session.NewMemoryStore()
	primary := &fakeEffecter{name: "sdk"}
	fallback := &fakeEffecter{name: "rpc"}
	oracle := &fakeOracle{}

	registry := adapter.NewRegistry()
	registry.Register(intent.KindTransfer, adapter.Pair{Primary: primary, Fallback: fallback})

	counter := 0
	eng := New(store, registry, oracle, WithSessionIDFunc(func() string {
		counter++
		return fmt.Sprintf("s-%d", counter)
	}))
	return &testHarness{engine: eng, store: store, primary: primary, fallback: fallback, oracle: oracle}
}

func transferParams(network, amount string) CallParams {
	return CallParams{
		Network: network,
		Intent: intent.Params{
			Action:    "transfer",
			Token:     "USDC",
			Recipient: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			Amount:    amount,
		},
	}
}

func TestAnalyzeDescribesAndRemembers(t *testing.T) {
	h := newTestHarness()
	result, err := h.engine.Analyze(context.Background(), transferParams("ethereum", "10000"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Details.SessionID == "" {
		t.Fatal("a session id must be minted")
	}
	if !result.Details.NeedsMainnetConfirmation {
		t.Fatal("ethereum must flag mainnet confirmation")
	}
	if result.Details.ConfirmToken == "" {
		t.Fatal("analysis must surface the confirm token")
	}
	if artifact := result.Details.Artifacts[PhaseAnalysis]; artifact.Status != StatusDescribed {
		t.Fatalf("artifact status = %q", artifact.Status)
	}
	if _, found := h.store.Read(result.Details.SessionID); !found {
		t.Fatal("analysis must remember the session")
	}
	if h.primary.previews+h.primary.mutations+h.fallback.previews+h.fallback.mutations != 0 {
		t.Fatal("analysis must never touch an adapter")
	}
}

func TestSimulateThenExecuteWithToken(t *testing.T) {
	h := newTestHarness()
	sim, err := h.engine.Simulate(context.Background(), transferParams("ethereum", "10000"))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if artifact := sim.Details.Artifacts[PhaseSimulate]; artifact.Status != StatusPreviewed {
		t.Fatalf("simulate artifact = %+v", artifact)
	}

	exec, err := h.engine.Execute(context.Background(), CallParams{
		SessionID:    sim.Details.SessionID,
		Confirmed:    true,
		ConfirmToken: sim.Details.ConfirmToken,
	})
	if err != nil {
		t.Fatalf("Execute after simulate: %v", err)
	}
	if artifact := exec.Details.Artifacts[PhaseExecute]; artifact.Status != StatusSubmitted {
		t.Fatalf("execute artifact = %+v", artifact)
	}
	if h.primary.mutations != 1 {
		t.Fatalf("primary mutations = %d", h.primary.mutations)
	}
}

func TestExecuteBareContinuationWithConfirmOnly(t *testing.T) {
	h := newTestHarness()
	sim, err := h.engine.Simulate(context.Background(), transferParams("ethereum", "10000"))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	// No session id, no token, no intent fields: the latest session is an
	// unambiguous continuation and only the confirmation flag is needed.
	_, err = h.engine.Execute(context.Background(), CallParams{Confirmed: true})
	if err != nil {
		t.Fatalf("bare continuation execute: %v", err)
	}
	if h.primary.mutations != 1 {
		t.Fatalf("primary mutations = %d", h.primary.mutations)
	}
	_ = sim
}

func TestExecuteContinuationWithStaleTokenDenied(t *testing.T) {
	h := newTestHarness()
	first, err := h.engine.Simulate(context.Background(), transferParams("ethereum", "10000"))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	// Replace the plan in the same session, then replay the old token on a
	// bare continuation. The new plan must not run.
	replaced := transferParams("ethereum", "20000")
	replaced.SessionID = first.Details.SessionID
	if _, err := h.engine.Simulate(context.Background(), replaced); err != nil {
		t.Fatalf("Simulate replacement: %v", err)
	}

	_, err = h.engine.Execute(context.Background(), CallParams{
		Confirmed:    true,
		ConfirmToken: first.Details.ConfirmToken,
	})
	typed, ok := clierr.As(err)
	if !ok || typed.Reason != clierr.ReasonInvalidConfirmToken {
		t.Fatalf("stale token on a continuation must deny: %v", err)
	}
	if typed.Details["received_token"] != first.Details.ConfirmToken {
		t.Fatalf("denial must echo the stale token: %+v", typed.Details)
	}
	if h.primary.mutations+h.fallback.mutations != 0 {
		t.Fatal("denial must precede any mutating call")
	}
}

func TestExecuteMainnetWithoutConfirmDenied(t *testing.T) {
	h := newTestHarness()
	if _, err := h.engine.Simulate(context.Background(), transferParams("ethereum", "10000")); err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	_, err := h.engine.Execute(context.Background(), CallParams{})
	if clierr.ReasonOf(err) != clierr.ReasonConfirmationRequired {
		t.Fatalf("expected confirmation denial, got %v", err)
	}
	if h.primary.mutations+h.fallback.mutations != 0 {
		t.Fatal("a denial must happen before any mutating call")
	}
}

func TestExecuteTestnetWithoutConfirm(t *testing.T) {
	h := newTestHarness()
	if _, err := h.engine.Simulate(context.Background(), transferParams("sepolia", "10000")); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if _, err := h.engine.Execute(context.Background(), CallParams{}); err != nil {
		t.Fatalf("testnet execute without confirm: %v", err)
	}
}

func TestExecuteFieldChangeInvalidatesToken(t *testing.T) {
	h := newTestHarness()
	sim, err := h.engine.Simulate(context.Background(), transferParams("ethereum", "10000"))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	changed := transferParams("ethereum", "20000")
	changed.SessionID = sim.Details.SessionID
	changed.Confirmed = true
	changed.ConfirmToken = sim.Details.ConfirmToken

	_, err = h.engine.Execute(context.Background(), changed)
	typed, ok := clierr.As(err)
	if !ok || typed.Reason != clierr.ReasonInvalidConfirmToken {
		t.Fatalf("changed amount with stale token must deny: %v", err)
	}
	if typed.Details["received_token"] != sim.Details.ConfirmToken {
		t.Fatalf("denial must echo the stale token: %+v", typed.Details)
	}
	if h.primary.mutations+h.fallback.mutations != 0 {
		t.Fatal("denial must precede any mutating call")
	}
}

func TestExecuteNoSession(t *testing.T) {
	h := newTestHarness()
	_, err := h.engine.Execute(context.Background(), CallParams{Confirmed: true})
	if clierr.ReasonOf(err) != clierr.ReasonSessionNotFound {
		t.Fatalf("expected session-not-found, got %v", err)
	}
}

func TestSimulatePreviewFailureIsSoft(t *testing.T) {
	h := newTestHarness()
	h.primary.previewErr = clierr.New(clierr.CodeUnavailable, "quote endpoint down")
	h.fallback.previewErr = clierr.New(clierr.CodeUnavailable, "rpc down")

	result, err := h.engine.Simulate(context.Background(), transferParams("ethereum", "10000"))
	if err != nil {
		t.Fatalf("simulate must not fail the phase on a preview error: %v", err)
	}
	artifact := result.Details.Artifacts[PhaseSimulate]
	if artifact.Status != StatusFailedPreview {
		t.Fatalf("artifact status = %q", artifact.Status)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("a failed preview must surface a warning")
	}
}

func TestExecuteFallbackSurfacesWarning(t *testing.T) {
	h := newTestHarness()
	h.primary.mutateErr = clierr.New(clierr.CodeUnavailable, "gateway down")

	sim, err := h.engine.Simulate(context.Background(), transferParams("sepolia", "10000"))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	result, err := h.engine.Execute(context.Background(), CallParams{SessionID: sim.Details.SessionID})
	if err != nil {
		t.Fatalf("Execute via fallback: %v", err)
	}
	artifact := result.Details.Artifacts[PhaseExecute]
	if !artifact.UsedFallback || artifact.Path != string(adapter.PathFallback) {
		t.Fatalf("fallback use must be recorded: %+v", artifact)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("fallback use must carry a warning")
	}
}

func TestExecuteNoFallbackPropagatesPrimaryError(t *testing.T) {
	h := newTestHarness()
	h.primary.mutateErr = clierr.New(clierr.CodeUnavailable, "gateway down")

	sim, err := h.engine.Simulate(context.Background(), transferParams("sepolia", "10000"))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	_, err = h.engine.Execute(context.Background(), CallParams{SessionID: sim.Details.SessionID, NoFallback: true})
	if err == nil {
		t.Fatal("expected execution failure")
	}
	typed, ok := clierr.As(err)
	if !ok || typed.Reason != clierr.ReasonExecutionFailed {
		t.Fatalf("expected execution-failed classification: %v", err)
	}
	if !typed.Retryable {
		t.Fatal("an unavailable-path failure must be classified retryable")
	}
	if h.fallback.mutations != 0 {
		t.Fatal("--no-fallback must keep the fallback idle")
	}
}

func TestExecuteUnregisteredKind(t *testing.T) {
	h := newTestHarness()
	params := CallParams{
		Network: "sepolia",
		Intent:  intent.Params{Action: "cancel", OrderID: "ord-1"},
	}
	_, err := h.engine.Execute(context.Background(), params)
	if err == nil {
		t.Fatal("expected error for unregistered intent kind")
	}
	var typed *clierr.Error
	if !errors.As(err, &typed) || typed.Code != clierr.CodeUnsupported {
		t.Fatalf("expected unsupported code, got %v", err)
	}
}
