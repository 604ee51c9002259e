package intent

import "testing"

func TestParseHintsActionsAndFields(t *testing.T) {
	cases := []struct {
		text string
		want Hints
	}{
		{
			text: "send 2500 USDC to " + addrB,
			want: Hints{Action: "transfer", Token: "USDC", Recipient: addrB, Amount: "2500"},
		},
		{
			text: "swap 10000 USDC for WETH",
			want: Hints{Action: "swap", Token: "USDC", TokenOut: "WETH", Amount: "10000"},
		},
		{
			text: "deposit 500 DAI into aave",
			want: Hints{Action: "supply", Token: "DAI", Amount: "500", Protocol: "aave"},
		},
		{
			text: "bridge 42 USDC to base",
			want: Hints{Action: "bridge", Token: "USDC", Amount: "42", ToNetwork: "base"},
		},
		{
			text: "cancel order abc",
			want: Hints{Action: "cancel", OrderID: "abc"},
		},
		{
			text: "",
			want: Hints{},
		},
	}
	for _, tc := range cases {
		got := ParseHints(tc.text)
		got.Phase = "" // phase checked separately
		if got != tc.want {
			t.Fatalf("ParseHints(%q) = %+v, want %+v", tc.text, got, tc.want)
		}
	}
}

func TestParseHintsPhase(t *testing.T) {
	cases := []struct {
		text string
		want PhaseHint
	}{
		{text: "run it now", want: PhaseHintExecute},
		{text: "go ahead and send it", want: PhaseHintExecute},
		{text: "just preview this", want: PhaseHintSimulate},
		{text: "do a dry run first", want: PhaseHintSimulate},
		{text: "analyze this transfer", want: PhaseHintAnalyze},
		{text: "transfer 5 USDC", want: PhaseHintNone},
	}
	for _, tc := range cases {
		if got := ParseHints(tc.text).Phase; got != tc.want {
			t.Fatalf("ParseHints(%q).Phase = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestParseHintsNeverMatchesDecimalAmounts(t *testing.T) {
	cases := []string{
		"send 1.5 USDC to " + addrB,
		"swap 0.25 USDC for WETH",
		"1.5 for the road",
	}
	for _, text := range cases {
		if got := ParseHints(text).Amount; got != "" {
			t.Fatalf("ParseHints(%q).Amount = %q; digits of a decimal must not become a hint", text, got)
		}
	}

	// A separate bare integer in the same text is still fair game.
	if got := ParseHints("send 200 USDC, not 1.5").Amount; got != "200" {
		t.Fatalf("bare integer beside a decimal: Amount = %q, want 200", got)
	}
}

func TestContainsWord(t *testing.T) {
	if containsWord("sendoff party", "send") {
		t.Fatal("substring inside a longer word must not match")
	}
	if !containsWord("please send funds", "send") {
		t.Fatal("standalone word must match")
	}
}
