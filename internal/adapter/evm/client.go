// Package evm is the direct-RPC execution path: it builds, estimates, and
// submits transactions straight against a JSON-RPC endpoint, as the verified
// fallback behind the protocol gateway.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alemendo/intent-cli/internal/adapter"
	clierr "github.com/alemendo/intent-cli/internal/errors"
	"github.com/alemendo/intent-cli/internal/id"
)

// rpcClient is the slice of ethclient the effecter uses, extracted so tests
// can substitute a fake without a live endpoint.
type rpcClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Close()
}

// Effecter executes one intent kind over raw RPC.
type Effecter struct {
	builder   Builder
	signer    Signer
	endpoints map[string]string
	dial      func(ctx context.Context, url string) (rpcClient, error)
}

type Option func(*Effecter)

// WithDialFunc overrides RPC dialing, for tests.
func WithDialFunc(dial func(ctx context.Context, url string) (rpcClient, error)) Option {
	return func(e *Effecter) { e.dial = dial }
}

// New builds a direct-RPC effecter. endpoints maps network slug to RPC URL;
// a per-call endpoint override wins over the map.
func New(builder Builder, signer Signer, endpoints map[string]string, opts ...Option) *Effecter {
	e := &Effecter{
		builder:   builder,
		signer:    signer,
		endpoints: endpoints,
		dial: func(ctx context.Context, url string) (rpcClient, error) {
			client, err := ethclient.DialContext(ctx, url)
			if err != nil {
				return nil, clierr.Wrap(clierr.CodeUnavailable, "connect rpc", err)
			}
			return client, nil
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *Effecter) Name() string { return "direct-rpc" }

// Preview builds the plan and estimates it against the node without
// submitting anything.
func (e *Effecter) Preview(ctx context.Context, req adapter.Request) (adapter.Outcome, error) {
	client, plan, network, err := e.prepare(ctx, req)
	if err != nil {
		return adapter.Outcome{}, err
	}
	defer client.Close()

	from := e.sender(req)
	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &plan.To,
		Value: plan.Value,
		Data:  plan.Data,
	})
	if err != nil {
		return adapter.Outcome{}, clierr.Wrap(clierr.CodeUnavailable, "estimate gas", err)
	}
	tipCap, baseFee, err := feeContext(ctx, client)
	if err != nil {
		return adapter.Outcome{}, err
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tipCap)
	likelyFee := new(big.Int).Mul(new(big.Int).SetUint64(gas), new(big.Int).Add(baseFee, tipCap))

	return adapter.Outcome{
		Summary: fmt.Sprintf("%s (estimated gas %d)", plan.Description, gas),
		Fields: map[string]string{
			"network":          network.Slug,
			"target":           plan.To.Hex(),
			"gas_estimate":     fmt.Sprintf("%d", gas),
			"max_fee_per_gas":  feeCap.String(),
			"likely_fee_wei":   likelyFee.String(),
			"calldata_bytes":   fmt.Sprintf("%d", len(plan.Data)),
		},
	}, nil
}

// Mutate signs and broadcasts the plan. The safety gate has already run by
// the time this is reached.
func (e *Effecter) Mutate(ctx context.Context, req adapter.Request) (adapter.Outcome, error) {
	if e.signer == nil {
		return adapter.Outcome{}, clierr.New(clierr.CodeAuth,
			"direct RPC execution requires a configured signer (set "+EnvPrivateKey+")")
	}
	client, plan, network, err := e.prepare(ctx, req)
	if err != nil {
		return adapter.Outcome{}, err
	}
	defer client.Close()

	from := e.signer.Address()
	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return adapter.Outcome{}, clierr.Wrap(clierr.CodeUnavailable, "read pending nonce", err)
	}
	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &plan.To,
		Value: plan.Value,
		Data:  plan.Data,
	})
	if err != nil {
		return adapter.Outcome{}, clierr.Wrap(clierr.CodeUnavailable, "estimate gas", err)
	}
	tipCap, baseFee, err := feeContext(ctx, client)
	if err != nil {
		return adapter.Outcome{}, err
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tipCap)

	chainID := big.NewInt(network.EVMChainID)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas + gas/5,
		To:        &plan.To,
		Value:     plan.Value,
		Data:      plan.Data,
	})
	signed, err := e.signer.SignTx(chainID, tx)
	if err != nil {
		return adapter.Outcome{}, clierr.Wrap(clierr.CodeAuth, "sign transaction", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return adapter.Outcome{}, clierr.Wrap(clierr.CodeUnavailable, "broadcast transaction", err)
	}

	return adapter.Outcome{
		Summary: fmt.Sprintf("%s submitted as %s", plan.Description, signed.Hash().Hex()),
		Fields: map[string]string{
			"network": network.Slug,
			"tx_hash": signed.Hash().Hex(),
			"nonce":   fmt.Sprintf("%d", nonce),
		},
	}, nil
}

func (e *Effecter) prepare(ctx context.Context, req adapter.Request) (rpcClient, TxPlan, id.Network, error) {
	network, err := id.ParseNetwork(req.Network)
	if err != nil {
		return nil, TxPlan{}, id.Network{}, err
	}
	if network.EVMChainID == 0 {
		return nil, TxPlan{}, id.Network{}, clierr.New(clierr.CodeUnsupported,
			fmt.Sprintf("direct RPC path does not support network %s", network.Slug))
	}

	endpoint := strings.TrimSpace(req.Endpoint)
	if endpoint == "" {
		endpoint = e.endpoints[network.Slug]
	}
	if endpoint == "" {
		return nil, TxPlan{}, id.Network{}, clierr.New(clierr.CodeUnavailable,
			fmt.Sprintf("no RPC endpoint configured for %s", network.Slug))
	}

	plan, err := e.builder.Build(network.Slug, req.Intent, e.sender(req))
	if err != nil {
		return nil, TxPlan{}, id.Network{}, err
	}

	client, err := e.dial(ctx, endpoint)
	if err != nil {
		return nil, TxPlan{}, id.Network{}, err
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, TxPlan{}, id.Network{}, clierr.Wrap(clierr.CodeUnavailable, "read chain id", err)
	}
	if chainID.Int64() != network.EVMChainID {
		client.Close()
		return nil, TxPlan{}, id.Network{}, clierr.New(clierr.CodeUsage,
			fmt.Sprintf("endpoint chain id %d does not match network %s (%d)", chainID.Int64(), network.Slug, network.EVMChainID))
	}
	return client, plan, network, nil
}

func (e *Effecter) sender(req adapter.Request) common.Address {
	if e.signer != nil {
		return e.signer.Address()
	}
	if common.IsHexAddress(req.Sender) {
		return common.HexToAddress(req.Sender)
	}
	return common.Address{}
}

func feeContext(ctx context.Context, client rpcClient) (*big.Int, *big.Int, error) {
	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, clierr.Wrap(clierr.CodeUnavailable, "suggest gas tip", err)
	}
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, clierr.Wrap(clierr.CodeUnavailable, "read head block", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}
	return tipCap, baseFee, nil
}
