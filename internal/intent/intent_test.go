package intent

import (
	"bytes"
	"testing"
)

func TestCanonicalJSONDeterministic(t *testing.T) {
	a := Transfer{Token: "USDC", Recipient: addrA, Amount: "10000"}
	b := Transfer{Token: "USDC", Recipient: addrA, Amount: "10000"}
	if !bytes.Equal(CanonicalJSON(a), CanonicalJSON(b)) {
		t.Fatal("structurally equal intents must produce identical canonical bytes")
	}
	if !Equal(a, b) {
		t.Fatal("Equal must hold for identical intents")
	}

	c := Transfer{Token: "USDC", Recipient: addrA, Amount: "20000"}
	if Equal(a, c) {
		t.Fatal("different amounts must not be structurally equal")
	}
}

func TestCanonicalJSONIncludesKind(t *testing.T) {
	raw := CanonicalJSON(Cancel{OrderID: "ord-1"})
	if !bytes.Contains(raw, []byte(`"kind":"cancel"`)) {
		t.Fatalf("canonical JSON must fold the kind in: %s", raw)
	}
}

func TestCanonicalJSONOmitsEmptyOptionalFields(t *testing.T) {
	withSlippage := Swap{TokenIn: "USDC", TokenOut: "WETH", AmountIn: "5", SlippageBps: "50"}
	without := Swap{TokenIn: "USDC", TokenOut: "WETH", AmountIn: "5"}
	if Equal(withSlippage, without) {
		t.Fatal("slippage must participate in structural equality")
	}
	if bytes.Contains(CanonicalJSON(without), []byte("slippage_bps")) {
		t.Fatal("unset slippage must not appear in canonical JSON")
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	intents := []Intent{
		Transfer{Token: "USDC", Recipient: addrA, Amount: "10000"},
		Swap{TokenIn: "USDC", TokenOut: "WETH", AmountIn: "5", SlippageBps: "30"},
		Supply{Protocol: "aave", Asset: "USDC", Amount: "100"},
		Withdraw{Protocol: "aave", Asset: "USDC", Amount: "100"},
		Bridge{ToNetwork: "base", Asset: "USDC", Amount: "7", Recipient: addrB},
		Cancel{OrderID: "ord-9"},
	}
	for _, original := range intents {
		decoded, err := Decode(CanonicalJSON(original))
		if err != nil {
			t.Fatalf("Decode(%s): %v", original.Kind(), err)
		}
		if !Equal(original, decoded) {
			t.Fatalf("round trip lost information for %s:\n  original: %s\n  decoded:  %s",
				original.Kind(), CanonicalJSON(original), CanonicalJSON(decoded))
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if _, err := Decode([]byte(`{"kind":"teleport"}`)); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
