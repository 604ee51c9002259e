package intent

import (
	"encoding/json"
	"fmt"

	clierr "github.com/alemendo/intent-cli/internal/errors"
)

// Decode reconstructs an intent from its canonical JSON. Stored intents were
// validated at construction, so this only checks structure, not business
// rules.
func Decode(raw []byte) (Intent, error) {
	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "decode intent payload", err)
	}
	return FromFields(Kind(flat["kind"]), flat)
}

// FromFields rebuilds an intent variant from a canonical field map.
func FromFields(kind Kind, fields map[string]string) (Intent, error) {
	switch kind {
	case KindTransfer:
		return Transfer{
			Token:     fields["token"],
			Recipient: fields["recipient"],
			Amount:    fields["amount"],
		}, nil
	case KindSwap:
		return Swap{
			TokenIn:     fields["token_in"],
			TokenOut:    fields["token_out"],
			AmountIn:    fields["amount_in"],
			SlippageBps: fields["slippage_bps"],
		}, nil
	case KindSupply:
		return Supply{
			Protocol: fields["protocol"],
			Asset:    fields["asset"],
			Amount:   fields["amount"],
		}, nil
	case KindWithdraw:
		return Withdraw{
			Protocol: fields["protocol"],
			Asset:    fields["asset"],
			Amount:   fields["amount"],
		}, nil
	case KindBridge:
		return Bridge{
			ToNetwork: fields["to_network"],
			Asset:     fields["asset"],
			Amount:    fields["amount"],
			Recipient: fields["recipient"],
		}, nil
	case KindCancel:
		return Cancel{OrderID: fields["order_id"]}, nil
	default:
		return nil, clierr.New(clierr.CodeInternal, fmt.Sprintf("unknown intent kind %q in stored session", kind))
	}
}
