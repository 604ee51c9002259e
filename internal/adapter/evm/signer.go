package evm

import (
	"crypto/ecdsa"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	clierr "github.com/alemendo/intent-cli/internal/errors"
)

// Signer is the custody boundary. Key management beyond the local env signer
// is out of scope; anything implementing this interface can be plugged in.
type Signer interface {
	Address() common.Address
	SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error)
}

const EnvPrivateKey = "INTENT_PRIVATE_KEY"

// LocalSigner signs with a hex private key taken from the environment.
type LocalSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

func (s *LocalSigner) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	if s == nil || s.privateKey == nil {
		return nil, clierr.New(clierr.CodeAuth, "local signer is not initialized")
	}
	signer := types.LatestSignerForChainID(chainID)
	return types.SignTx(tx, signer, s.privateKey)
}

// NewLocalSignerFromEnv loads INTENT_PRIVATE_KEY. It returns (nil, nil) when
// the variable is unset so read-only flows never demand a key.
func NewLocalSignerFromEnv() (*LocalSigner, error) {
	raw := strings.TrimSpace(os.Getenv(EnvPrivateKey))
	if raw == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeAuth, "parse private key", err)
	}
	return &LocalSigner{
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}
