package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/alemendo/intent-cli/internal/errors"
	"github.com/alemendo/intent-cli/internal/intent"
)

// TxPlan is what a chain collaborator produces for one validated intent. The
// engine never inspects the payload; it only carries it to the RPC boundary.
type TxPlan struct {
	To          common.Address
	Data        []byte
	Value       *big.Int
	Description string
}

// Builder turns a validated intent into a transaction plan. One builder per
// intent kind; anything the builder cannot express is an Unsupported error so
// the adapter's fallback logic stays honest.
type Builder interface {
	Build(network string, in intent.Intent, sender common.Address) (TxPlan, error)
}

const erc20MinimalABI = `[
	{"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"approve","type":"function","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

var erc20ABI = mustABI(erc20MinimalABI)

// TransferBuilder plans ERC-20 transfers against the token contract named in
// the intent. Symbol-only tokens cannot be planned here; resolving a symbol
// to a contract address is the gateway path's job.
type TransferBuilder struct{}

func (TransferBuilder) Build(network string, in intent.Intent, sender common.Address) (TxPlan, error) {
	transfer, ok := in.(intent.Transfer)
	if !ok {
		return TxPlan{}, clierr.New(clierr.CodeInternal, "transfer builder received non-transfer intent")
	}
	if !common.IsHexAddress(transfer.Token) {
		return TxPlan{}, clierr.New(clierr.CodeUnsupported,
			fmt.Sprintf("direct RPC path needs a token contract address, got symbol %q", transfer.Token))
	}
	amount, ok := new(big.Int).SetString(transfer.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return TxPlan{}, clierr.New(clierr.CodeInternal, "transfer intent carries non-numeric amount")
	}
	data, err := erc20ABI.Pack("transfer", common.HexToAddress(transfer.Recipient), amount)
	if err != nil {
		return TxPlan{}, clierr.Wrap(clierr.CodeInternal, "pack transfer calldata", err)
	}
	return TxPlan{
		To:          common.HexToAddress(transfer.Token),
		Data:        data,
		Value:       big.NewInt(0),
		Description: fmt.Sprintf("erc20 transfer %s to %s", transfer.Amount, transfer.Recipient),
	}, nil
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
