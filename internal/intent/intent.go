package intent

import (
	"bytes"
	"encoding/json"
)

// Kind discriminates the intent union.
type Kind string

const (
	KindTransfer Kind = "transfer"
	KindSwap     Kind = "swap"
	KindSupply   Kind = "supply"
	KindWithdraw Kind = "withdraw"
	KindBridge   Kind = "bridge"
	KindCancel   Kind = "cancel"
)

// Intent is one validated, canonical action the caller wants performed. Each
// variant carries only the fields its action requires; all values are already
// validated at construction and never mutated afterwards. Equality is
// structural: two intents are the same iff their canonical JSON is identical.
type Intent interface {
	Kind() Kind
	// fields returns the canonical field map of the variant. Amounts are raw
	// base-unit integer strings; addresses are lowercased.
	fields() map[string]string
}

type Transfer struct {
	Token     string
	Recipient string
	Amount    string
}

func (Transfer) Kind() Kind { return KindTransfer }

func (t Transfer) fields() map[string]string {
	return map[string]string{"token": t.Token, "recipient": t.Recipient, "amount": t.Amount}
}

type Swap struct {
	TokenIn     string
	TokenOut    string
	AmountIn    string
	SlippageBps string
}

func (Swap) Kind() Kind { return KindSwap }

func (s Swap) fields() map[string]string {
	out := map[string]string{"token_in": s.TokenIn, "token_out": s.TokenOut, "amount_in": s.AmountIn}
	if s.SlippageBps != "" {
		out["slippage_bps"] = s.SlippageBps
	}
	return out
}

type Supply struct {
	Protocol string
	Asset    string
	Amount   string
}

func (Supply) Kind() Kind { return KindSupply }

func (s Supply) fields() map[string]string {
	return map[string]string{"protocol": s.Protocol, "asset": s.Asset, "amount": s.Amount}
}

type Withdraw struct {
	Protocol string
	Asset    string
	Amount   string
}

func (Withdraw) Kind() Kind { return KindWithdraw }

func (w Withdraw) fields() map[string]string {
	return map[string]string{"protocol": w.Protocol, "asset": w.Asset, "amount": w.Amount}
}

type Bridge struct {
	ToNetwork string
	Asset     string
	Amount    string
	Recipient string
}

func (Bridge) Kind() Kind { return KindBridge }

func (b Bridge) fields() map[string]string {
	out := map[string]string{"to_network": b.ToNetwork, "asset": b.Asset, "amount": b.Amount}
	if b.Recipient != "" {
		out["recipient"] = b.Recipient
	}
	return out
}

type Cancel struct {
	OrderID string
}

func (Cancel) Kind() Kind { return KindCancel }

func (c Cancel) fields() map[string]string {
	return map[string]string{"order_id": c.OrderID}
}

// CanonicalJSON serializes an intent deterministically: a flat string map with
// the kind folded in, marshalled with sorted keys. Structurally equal intents
// always produce identical bytes regardless of how they were built.
func CanonicalJSON(in Intent) []byte {
	if in == nil {
		return []byte("null")
	}
	flat := map[string]string{"kind": string(in.Kind())}
	for key, value := range in.fields() {
		flat[key] = value
	}
	// encoding/json sorts map keys, which is the determinism guarantee here.
	raw, err := json.Marshal(flat)
	if err != nil {
		return []byte("null")
	}
	return raw
}

// Equal reports structural equality between two intents.
func Equal(a, b Intent) bool {
	return bytes.Equal(CanonicalJSON(a), CanonicalJSON(b))
}

// Fields exposes the canonical field map for rendering and policy checks.
func Fields(in Intent) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in.fields()))
	for key, value := range in.fields() {
		out[key] = value
	}
	return out
}
