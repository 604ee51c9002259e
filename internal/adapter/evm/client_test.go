package evm

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alemendo/intent-cli/internal/adapter"
	clierr "github.com/alemendo/intent-cli/internal/errors"
	"github.com/alemendo/intent-cli/internal/intent"
)

const (
	tokenAddr     = "0x1111111111111111111111111111111111111111"
	recipientAddr = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

type fakeRPC struct {
	chainID   *big.Int
	gas       uint64
	tipCap    *big.Int
	baseFee   *big.Int
	nonce     uint64
	sendErr   error
	sent      *types.Transaction
	closed    bool
	dialedURL string
}

func (f *fakeRPC) ChainID(ctx context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeRPC) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return f.gas, nil
}

func (f *fakeRPC) SuggestGasTipCap(ctx context.Context) (*big.Int, error) { return f.tipCap, nil }

func (f *fakeRPC) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: f.baseFee}, nil
}

func (f *fakeRPC) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeRPC) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = tx
	return nil
}

func (f *fakeRPC) Close() { f.closed = true }

func newTestEffecter(rpc *fakeRPC, signer Signer) *Effecter {
	return New(TransferBuilder{}, signer, map[string]string{"sepolia": "https://rpc.test"},
		WithDialFunc(func(ctx context.Context, url string) (rpcClient, error) {
			rpc.dialedURL = url
			return rpc, nil
		}))
}

func testSigner(t *testing.T) Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &LocalSigner{privateKey: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

func transferRequest(token string) adapter.Request {
	return adapter.Request{
		Network: "sepolia",
		Sender:  recipientAddr,
		Intent:  intent.Transfer{Token: token, Recipient: recipientAddr, Amount: "10000"},
	}
}

func TestPreviewEstimates(t *testing.T) {
	rpc := &fakeRPC{
		chainID: big.NewInt(11155111),
		gas:     65000,
		tipCap:  big.NewInt(2_000_000_000),
		baseFee: big.NewInt(10_000_000_000),
	}
	effecter := newTestEffecter(rpc, nil)

	outcome, err := effecter.Preview(context.Background(), transferRequest(tokenAddr))
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if rpc.dialedURL != "https://rpc.test" {
		t.Fatalf("dialed %q, want configured endpoint", rpc.dialedURL)
	}
	if outcome.Fields["gas_estimate"] != "65000" {
		t.Fatalf("gas_estimate = %q", outcome.Fields["gas_estimate"])
	}
	// feeCap = 2*baseFee + tip, likely fee = gas * (baseFee + tip).
	if outcome.Fields["max_fee_per_gas"] != "22000000000" {
		t.Fatalf("max_fee_per_gas = %q", outcome.Fields["max_fee_per_gas"])
	}
	if outcome.Fields["likely_fee_wei"] != "780000000000000" {
		t.Fatalf("likely_fee_wei = %q", outcome.Fields["likely_fee_wei"])
	}
	if !rpc.closed {
		t.Fatal("rpc client must be closed after the call")
	}
}

func TestPreviewEndpointOverrideWins(t *testing.T) {
	rpc := &fakeRPC{chainID: big.NewInt(11155111), gas: 21000, tipCap: big.NewInt(1), baseFee: big.NewInt(1)}
	effecter := newTestEffecter(rpc, nil)

	req := transferRequest(tokenAddr)
	req.Endpoint = "https://override.test"
	if _, err := effecter.Preview(context.Background(), req); err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if rpc.dialedURL != "https://override.test" {
		t.Fatalf("dialed %q, want override", rpc.dialedURL)
	}
}

func TestPreviewChainIDMismatch(t *testing.T) {
	rpc := &fakeRPC{chainID: big.NewInt(1), gas: 21000, tipCap: big.NewInt(1), baseFee: big.NewInt(1)}
	effecter := newTestEffecter(rpc, nil)

	_, err := effecter.Preview(context.Background(), transferRequest(tokenAddr))
	if err == nil || !strings.Contains(err.Error(), "chain id") {
		t.Fatalf("expected chain id mismatch, got %v", err)
	}
	if !rpc.closed {
		t.Fatal("rpc client must be closed on mismatch")
	}
}

func TestPreviewSymbolTokenUnsupported(t *testing.T) {
	rpc := &fakeRPC{chainID: big.NewInt(11155111)}
	effecter := newTestEffecter(rpc, nil)

	_, err := effecter.Preview(context.Background(), transferRequest("USDC"))
	typed, ok := clierr.As(err)
	if !ok || typed.Code != clierr.CodeUnsupported {
		t.Fatalf("symbol token must be unsupported on the direct path: %v", err)
	}
}

func TestMutateRequiresSigner(t *testing.T) {
	rpc := &fakeRPC{chainID: big.NewInt(11155111)}
	effecter := newTestEffecter(rpc, nil)

	_, err := effecter.Mutate(context.Background(), transferRequest(tokenAddr))
	typed, ok := clierr.As(err)
	if !ok || typed.Code != clierr.CodeAuth {
		t.Fatalf("mutation without signer must be an auth error: %v", err)
	}
}

func TestMutateSignsAndBroadcasts(t *testing.T) {
	rpc := &fakeRPC{
		chainID: big.NewInt(11155111),
		gas:     65000,
		tipCap:  big.NewInt(2),
		baseFee: big.NewInt(10),
		nonce:   7,
	}
	effecter := newTestEffecter(rpc, testSigner(t))

	outcome, err := effecter.Mutate(context.Background(), transferRequest(tokenAddr))
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if rpc.sent == nil {
		t.Fatal("transaction was not broadcast")
	}
	if rpc.sent.Nonce() != 7 {
		t.Fatalf("nonce = %d", rpc.sent.Nonce())
	}
	if rpc.sent.Gas() != 65000+65000/5 {
		t.Fatalf("gas limit = %d, want headroom over the estimate", rpc.sent.Gas())
	}
	if outcome.Fields["tx_hash"] != rpc.sent.Hash().Hex() {
		t.Fatalf("tx_hash = %q", outcome.Fields["tx_hash"])
	}
}

func TestTransferBuilderCalldata(t *testing.T) {
	plan, err := TransferBuilder{}.Build("sepolia", intent.Transfer{
		Token:     tokenAddr,
		Recipient: recipientAddr,
		Amount:    "10000",
	}, common.Address{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if plan.To != common.HexToAddress(tokenAddr) {
		t.Fatalf("plan target = %s", plan.To.Hex())
	}
	// 4-byte selector + two 32-byte arguments.
	if len(plan.Data) != 4+32+32 {
		t.Fatalf("calldata length = %d", len(plan.Data))
	}
	if plan.Value.Sign() != 0 {
		t.Fatal("erc20 transfer must carry zero native value")
	}
}
