package intent

import (
	"regexp"
	"strings"
)

// PhaseHint is the advisory phase a free-text continuation phrase suggests.
// Explicit phase selection always wins over a hint.
type PhaseHint string

const (
	PhaseHintNone     PhaseHint = ""
	PhaseHintAnalyze  PhaseHint = "analysis"
	PhaseHintSimulate PhaseHint = "simulate"
	PhaseHintExecute  PhaseHint = "execute"
)

// Hints is a partial intent extracted from free text. Every field is
// best-effort and advisory; Normalize only reads a hint when the explicit
// parameter is absent.
type Hints struct {
	Action    string
	Token     string
	TokenOut  string
	Recipient string
	Amount    string
	Protocol  string
	ToNetwork string
	OrderID   string
	Phase     PhaseHint
}

var (
	symbolPattern      = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]{1,9}$`)
	hintAddressPattern = regexp.MustCompile(`0x[0-9a-fA-F]{40}`)
	hintAmountPattern  = regexp.MustCompile(`(?:^|[^0-9.])([0-9]+)(?:[^0-9.]|$)`)
	hintOrderPattern   = regexp.MustCompile(`\border\s+([A-Za-z0-9_-]+)`)
	hintSymbolPattern  = regexp.MustCompile(`\b([A-Z][A-Z0-9]{1,9})\b`)
	hintPairPattern    = regexp.MustCompile(`\b([A-Z][A-Z0-9]{1,9})\s+(?:to|for|into)\s+([A-Z][A-Z0-9]{1,9})\b`)
	hintBridgePattern  = regexp.MustCompile(`\b(?:to|onto)\s+([a-z][a-z0-9-]+)\b`)
)

var actionKeywords = []struct {
	action string
	words  []string
}{
	{action: string(KindTransfer), words: []string{"transfer", "send", "pay"}},
	{action: string(KindSwap), words: []string{"swap", "trade", "exchange", "convert"}},
	{action: string(KindSupply), words: []string{"supply", "deposit", "lend"}},
	{action: string(KindWithdraw), words: []string{"withdraw", "redeem", "unstake"}},
	{action: string(KindBridge), words: []string{"bridge", "relocate"}},
	{action: string(KindCancel), words: []string{"cancel", "abort", "revoke"}},
}

var protocolKeywords = []string{"aave", "morpho", "compound", "spark", "kamino"}

// ParseHints extracts a partial intent from free text. Pure function; it never
// touches the network and never overrides an explicit parameter.
func ParseHints(text string) Hints {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Hints{}
	}
	lower := strings.ToLower(trimmed)

	hints := Hints{Phase: parsePhaseHint(lower)}

	for _, entry := range actionKeywords {
		for _, word := range entry.words {
			if containsWord(lower, word) {
				hints.Action = entry.action
				break
			}
		}
		if hints.Action != "" {
			break
		}
	}

	if address := hintAddressPattern.FindString(trimmed); address != "" {
		hints.Recipient = strings.ToLower(address)
	}

	// Amount hints only accept bare integers. Digits touching a decimal point
	// yield no hint at all; a decimal amount must never be truncated into a
	// smaller integer one.
	withoutAddresses := hintAddressPattern.ReplaceAllString(trimmed, " ")
	if match := hintAmountPattern.FindStringSubmatch(withoutAddresses); len(match) == 2 {
		hints.Amount = match[1]
	}

	if pair := hintPairPattern.FindStringSubmatch(trimmed); len(pair) == 3 {
		hints.Token = pair[1]
		hints.TokenOut = pair[2]
	} else if symbol := hintSymbolPattern.FindStringSubmatch(trimmed); len(symbol) == 2 {
		hints.Token = symbol[1]
	}

	for _, protocol := range protocolKeywords {
		if containsWord(lower, protocol) {
			hints.Protocol = protocol
			break
		}
	}

	if hints.Action == string(KindBridge) {
		if match := hintBridgePattern.FindStringSubmatch(lower); len(match) == 2 {
			hints.ToNetwork = match[1]
		}
	}

	if match := hintOrderPattern.FindStringSubmatch(trimmed); len(match) == 2 {
		hints.OrderID = match[1]
	}

	return hints
}

func parsePhaseHint(lower string) PhaseHint {
	switch {
	case strings.Contains(lower, "run it now"),
		strings.Contains(lower, "execute it"),
		strings.Contains(lower, "go ahead"),
		strings.Contains(lower, "do it"):
		return PhaseHintExecute
	case strings.Contains(lower, "just preview"),
		strings.Contains(lower, "dry run"),
		strings.Contains(lower, "simulate"):
		return PhaseHintSimulate
	case strings.Contains(lower, "analyze"),
		strings.Contains(lower, "explain"):
		return PhaseHintAnalyze
	default:
		return PhaseHintNone
	}
}

func containsWord(haystack, word string) bool {
	index := strings.Index(haystack, word)
	for index >= 0 {
		beforeOK := index == 0 || !isWordChar(haystack[index-1])
		after := index + len(word)
		afterOK := after >= len(haystack) || !isWordChar(haystack[after])
		if beforeOK && afterOK {
			return true
		}
		next := strings.Index(haystack[index+1:], word)
		if next < 0 {
			return false
		}
		index += 1 + next
	}
	return false
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
