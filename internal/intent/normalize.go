package intent

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	clierr "github.com/alemendo/intent-cli/internal/errors"
	"github.com/alemendo/intent-cli/internal/id"
)

// Params are the explicit structured inputs of a call. Every field is
// optional at this layer; Normalize decides what the chosen action requires.
type Params struct {
	Action      string
	Token       string
	TokenOut    string
	Recipient   string
	Amount      string
	Protocol    string
	ToNetwork   string
	OrderID     string
	SlippageBps string
}

// Normalize merges explicit parameters with free-text hints into one
// validated intent. Resolution order per field: explicit wins, a hint fills a
// gap, and a conflicting hint loses silently because free text is advisory
// only. Pure function of its inputs.
func Normalize(params Params, freeText string) (Intent, error) {
	hints := ParseHints(freeText)
	merged := merge(params, hints)

	action := strings.ToLower(strings.TrimSpace(merged.Action))
	if action == "" {
		return nil, clierr.NewReason(clierr.CodeUsage, clierr.ReasonMissingFields,
			"action is required (transfer, swap, supply, withdraw, bridge, cancel)").
			WithDetail("missing", []string{"action"})
	}

	switch Kind(action) {
	case KindTransfer:
		return normalizeTransfer(merged)
	case KindSwap:
		return normalizeSwap(merged)
	case KindSupply:
		return normalizeSupply(merged)
	case KindWithdraw:
		return normalizeWithdraw(merged)
	case KindBridge:
		return normalizeBridge(merged)
	case KindCancel:
		return normalizeCancel(merged)
	default:
		return nil, clierr.NewReason(clierr.CodeUsage, clierr.ReasonInvalidFormat,
			fmt.Sprintf("unsupported action: %s", action))
	}
}

func merge(params Params, hints Hints) Params {
	out := params
	if out.Action == "" {
		out.Action = hints.Action
	}
	if out.Token == "" {
		out.Token = hints.Token
	}
	if out.TokenOut == "" {
		out.TokenOut = hints.TokenOut
	}
	if out.Recipient == "" {
		out.Recipient = hints.Recipient
	}
	if out.Amount == "" {
		out.Amount = hints.Amount
	}
	if out.Protocol == "" {
		out.Protocol = hints.Protocol
	}
	if out.ToNetwork == "" {
		out.ToNetwork = hints.ToNetwork
	}
	if out.OrderID == "" {
		out.OrderID = hints.OrderID
	}
	return out
}

func normalizeTransfer(p Params) (Intent, error) {
	if err := requireFields(map[string]string{
		"token":     p.Token,
		"recipient": p.Recipient,
		"amount":    p.Amount,
	}); err != nil {
		return nil, err
	}
	token, err := requireAddressOrSymbol("token", p.Token)
	if err != nil {
		return nil, err
	}
	recipient, err := requireAddress("recipient", p.Recipient)
	if err != nil {
		return nil, err
	}
	amount, err := id.RequireBaseUnits("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	if token == recipient {
		return nil, selfReferential("token", "recipient")
	}
	return Transfer{Token: token, Recipient: recipient, Amount: amount}, nil
}

func normalizeSwap(p Params) (Intent, error) {
	if err := requireFields(map[string]string{
		"token":     p.Token,
		"token-out": p.TokenOut,
		"amount":    p.Amount,
	}); err != nil {
		return nil, err
	}
	tokenIn, err := requireAddressOrSymbol("token", p.Token)
	if err != nil {
		return nil, err
	}
	tokenOut, err := requireAddressOrSymbol("token-out", p.TokenOut)
	if err != nil {
		return nil, err
	}
	amount, err := id.RequireBaseUnits("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	if tokenIn == tokenOut {
		return nil, selfReferential("token", "token-out")
	}
	slippage := strings.TrimSpace(p.SlippageBps)
	if slippage != "" {
		bps, convErr := strconv.ParseInt(slippage, 10, 64)
		if convErr != nil || bps <= 0 || bps > 10_000 {
			return nil, clierr.NewReason(clierr.CodeUsage, clierr.ReasonInvalidFormat,
				"slippage-bps must be an integer between 1 and 10000").WithDetail("field", "slippage-bps")
		}
		slippage = strconv.FormatInt(bps, 10)
	}
	return Swap{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amount, SlippageBps: slippage}, nil
}

func normalizeSupply(p Params) (Intent, error) {
	protocol, asset, amount, err := normalizeLendFields(p)
	if err != nil {
		return nil, err
	}
	return Supply{Protocol: protocol, Asset: asset, Amount: amount}, nil
}

func normalizeWithdraw(p Params) (Intent, error) {
	protocol, asset, amount, err := normalizeLendFields(p)
	if err != nil {
		return nil, err
	}
	return Withdraw{Protocol: protocol, Asset: asset, Amount: amount}, nil
}

func normalizeLendFields(p Params) (string, string, string, error) {
	if err := requireFields(map[string]string{
		"protocol": p.Protocol,
		"token":    p.Token,
		"amount":   p.Amount,
	}); err != nil {
		return "", "", "", err
	}
	asset, err := requireAddressOrSymbol("token", p.Token)
	if err != nil {
		return "", "", "", err
	}
	amount, err := id.RequireBaseUnits("amount", p.Amount)
	if err != nil {
		return "", "", "", err
	}
	return strings.ToLower(strings.TrimSpace(p.Protocol)), asset, amount, nil
}

func normalizeBridge(p Params) (Intent, error) {
	if err := requireFields(map[string]string{
		"to-network": p.ToNetwork,
		"token":      p.Token,
		"amount":     p.Amount,
	}); err != nil {
		return nil, err
	}
	destination, err := id.ParseNetwork(p.ToNetwork)
	if err != nil {
		return nil, err
	}
	asset, err := requireAddressOrSymbol("token", p.Token)
	if err != nil {
		return nil, err
	}
	amount, err := id.RequireBaseUnits("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	recipient := strings.TrimSpace(p.Recipient)
	if recipient != "" {
		recipient, err = requireAddress("recipient", recipient)
		if err != nil {
			return nil, err
		}
		if recipient == asset {
			return nil, selfReferential("token", "recipient")
		}
	}
	return Bridge{ToNetwork: destination.Slug, Asset: asset, Amount: amount, Recipient: recipient}, nil
}

func normalizeCancel(p Params) (Intent, error) {
	orderID := strings.TrimSpace(p.OrderID)
	if orderID == "" {
		return nil, missingFields([]string{"order-id"})
	}
	return Cancel{OrderID: orderID}, nil
}

func requireFields(fields map[string]string) error {
	missing := make([]string, 0, len(fields))
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return missingFields(missing)
}

func missingFields(fields []string) error {
	sort.Strings(fields)
	return clierr.NewReason(clierr.CodeUsage, clierr.ReasonMissingFields,
		fmt.Sprintf("missing required fields: %s", strings.Join(fields, ", "))).
		WithDetail("missing", fields)
}

func selfReferential(a, b string) error {
	return clierr.NewReason(clierr.CodeUsage, clierr.ReasonInvalidFormat,
		fmt.Sprintf("%s and %s must differ", a, b)).
		WithDetail("fields", []string{a, b})
}

func requireAddress(field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !id.ValidAddress(trimmed) {
		return "", clierr.NewReason(clierr.CodeUsage, clierr.ReasonInvalidFormat,
			field+" must be a 0x-prefixed 20-byte address").WithDetail("field", field)
	}
	return id.NormalizeAddress(trimmed), nil
}

// requireAddressOrSymbol accepts either a token contract address or a short
// uppercase symbol; symbols are resolved by the chain collaborators later.
func requireAddressOrSymbol(field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if id.ValidAddress(trimmed) {
		return id.NormalizeAddress(trimmed), nil
	}
	if symbolPattern.MatchString(trimmed) {
		return strings.ToUpper(trimmed), nil
	}
	return "", clierr.NewReason(clierr.CodeUsage, clierr.ReasonInvalidFormat,
		field+" must be a token address or symbol").WithDetail("field", field)
}
