package id

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	clierr "github.com/alemendo/intent-cli/internal/errors"
)

var evmAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Network identifies a chain and classifies whether actions on it carry real,
// non-reversible economic consequences. The classification is a static table,
// not runtime configuration.
type Network struct {
	Name        string
	Slug        string
	CAIP2       string
	EVMChainID  int64
	MainnetLike bool
}

func (n Network) IsZero() bool {
	return n.Slug == ""
}

var networkBySlug = map[string]Network{
	"ethereum":      {Name: "Ethereum", Slug: "ethereum", CAIP2: "eip155:1", EVMChainID: 1, MainnetLike: true},
	"mainnet":       {Name: "Ethereum", Slug: "ethereum", CAIP2: "eip155:1", EVMChainID: 1, MainnetLike: true},
	"base":          {Name: "Base", Slug: "base", CAIP2: "eip155:8453", EVMChainID: 8453, MainnetLike: true},
	"arbitrum":      {Name: "Arbitrum", Slug: "arbitrum", CAIP2: "eip155:42161", EVMChainID: 42161, MainnetLike: true},
	"optimism":      {Name: "Optimism", Slug: "optimism", CAIP2: "eip155:10", EVMChainID: 10, MainnetLike: true},
	"polygon":       {Name: "Polygon", Slug: "polygon", CAIP2: "eip155:137", EVMChainID: 137, MainnetLike: true},
	"avalanche":     {Name: "Avalanche", Slug: "avalanche", CAIP2: "eip155:43114", EVMChainID: 43114, MainnetLike: true},
	"bsc":           {Name: "BSC", Slug: "bsc", CAIP2: "eip155:56", EVMChainID: 56, MainnetLike: true},
	"sepolia":       {Name: "Sepolia", Slug: "sepolia", CAIP2: "eip155:11155111", EVMChainID: 11155111, MainnetLike: false},
	"holesky":       {Name: "Holesky", Slug: "holesky", CAIP2: "eip155:17000", EVMChainID: 17000, MainnetLike: false},
	"base-sepolia":  {Name: "Base Sepolia", Slug: "base-sepolia", CAIP2: "eip155:84532", EVMChainID: 84532, MainnetLike: false},
	"arb-sepolia":   {Name: "Arbitrum Sepolia", Slug: "arb-sepolia", CAIP2: "eip155:421614", EVMChainID: 421614, MainnetLike: false},
	"op-sepolia":    {Name: "Optimism Sepolia", Slug: "op-sepolia", CAIP2: "eip155:11155420", EVMChainID: 11155420, MainnetLike: false},
	"polygon-amoy":  {Name: "Polygon Amoy", Slug: "polygon-amoy", CAIP2: "eip155:80002", EVMChainID: 80002, MainnetLike: false},
	"local-devnet":  {Name: "Local Devnet", Slug: "local-devnet", CAIP2: "eip155:31337", EVMChainID: 31337, MainnetLike: false},
	"testnet":       {Name: "Sepolia", Slug: "sepolia", CAIP2: "eip155:11155111", EVMChainID: 11155111, MainnetLike: false},
	"goerli":        {Name: "Goerli", Slug: "goerli", CAIP2: "eip155:5", EVMChainID: 5, MainnetLike: false},
}

// ParseNetwork resolves a user-supplied network slug or CAIP-2 identifier.
func ParseNetwork(input string) (Network, error) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Network{}, clierr.NewReason(clierr.CodeUsage, clierr.ReasonMissingFields, "network is required")
	}
	if network, ok := networkBySlug[normalized]; ok {
		return network, nil
	}
	for _, network := range networkBySlug {
		if strings.EqualFold(network.CAIP2, normalized) {
			return network, nil
		}
	}
	return Network{}, clierr.NewReason(clierr.CodeUsage, clierr.ReasonInvalidFormat, fmt.Sprintf("unknown network: %s", input))
}

// MainnetLike reports whether the slug maps to a network with irreversible
// economic consequences. Unknown slugs are treated as mainnet-like so a typo
// never weakens the gate.
func MainnetLike(slug string) bool {
	network, err := ParseNetwork(slug)
	if err != nil {
		return true
	}
	return network.MainnetLike
}

// NetworkSlugs lists the known network slugs, sorted, for schema output.
func NetworkSlugs() []string {
	slugs := make([]string, 0, len(networkBySlug))
	seen := map[string]struct{}{}
	for _, network := range networkBySlug {
		if _, ok := seen[network.Slug]; ok {
			continue
		}
		seen[network.Slug] = struct{}{}
		slugs = append(slugs, network.Slug)
	}
	sort.Strings(slugs)
	return slugs
}

// ValidAddress reports whether the input is a well-formed EVM address.
func ValidAddress(input string) bool {
	return evmAddressPattern.MatchString(strings.TrimSpace(input))
}

// NormalizeAddress lowercases a validated address for structural comparison.
func NormalizeAddress(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}
