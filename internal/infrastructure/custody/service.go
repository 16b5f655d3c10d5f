package custody

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
	"github.com/RoseGit/MasterBlockchain/pkg/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type service struct {
	basePath wallet.DerivationPath

	lock       *sync.Mutex
	cachedHash [sha256.Size]byte
	cached     *wallet.Wallet
}

// NewService returns a ports.KeyCustody deriving accounts along the given
// base path, or m/44'/60'/0'/0 if empty.
func NewService(basePath string) (ports.KeyCustody, error) {
	path := wallet.DefaultBaseDerivationPath
	if basePath != "" {
		p, err := wallet.ParseDerivationPath(basePath)
		if err != nil {
			return nil, fmt.Errorf("invalid base derivation path: %w", err)
		}
		path = p
	}
	return &service{basePath: path, lock: &sync.Mutex{}}, nil
}

func (s *service) ValidateSecret(secret string) error {
	if !wallet.IsMnemonicValid(secret) {
		return domain.ErrInvalidSecret
	}
	return nil
}

func (s *service) DeriveAddresses(secret string, count int) ([]string, error) {
	w, err := s.wallet(secret)
	if err != nil {
		return nil, err
	}
	return w.Addresses(count)
}

func (s *service) SignTransaction(
	secret string, index int, tx domain.TxRequest,
) ([]byte, error) {
	w, err := s.wallet(secret)
	if err != nil {
		return nil, err
	}
	if index < 0 {
		return nil, domain.ErrInvalidAccountIndex
	}

	var to *common.Address
	if tx.To != "" {
		addr := common.HexToAddress(tx.To)
		to = &addr
	}
	signed, err := w.SignTransaction(wallet.SignTransactionOpts{
		Index: uint32(index),
		Tx: &types.DynamicFeeTx{
			ChainID:   tx.ChainId,
			Nonce:     tx.Nonce,
			To:        to,
			Value:     tx.Value,
			Data:      tx.Data,
			Gas:       tx.Gas,
			GasTipCap: tx.MaxPriorityFeePerGas,
			GasFeeCap: tx.MaxFeePerGas,
		},
	})
	if err != nil {
		return nil, err
	}
	return signed.MarshalBinary()
}

func (s *service) SignTypedData(
	secret string, index int, typedData []byte,
) (string, error) {
	w, err := s.wallet(secret)
	if err != nil {
		return "", err
	}
	if index < 0 {
		return "", domain.ErrInvalidAccountIndex
	}
	sig, err := w.SignTypedData(wallet.SignTypedDataOpts{
		Index:     uint32(index),
		TypedData: typedData,
	})
	if err != nil {
		if errors.Is(err, wallet.ErrInvalidTypedData) || errors.Is(err, wallet.ErrNullTypedData) {
			return "", fmt.Errorf("%w: %v", domain.ErrInvalidParams, err)
		}
		return "", err
	}
	return sig, nil
}

// wallet restores the HD wallet of secret. The last restored wallet is kept
// in memory since seed stretching dominates the cost of every operation.
func (s *service) wallet(secret string) (*wallet.Wallet, error) {
	hash := sha256.Sum256([]byte(secret))

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.cached != nil && s.cachedHash == hash {
		return s.cached, nil
	}

	w, err := wallet.NewWalletFromMnemonic(wallet.NewWalletFromMnemonicOpts{
		Mnemonic: secret,
		BasePath: s.basePath,
	})
	if err != nil {
		if errors.Is(err, wallet.ErrNullMnemonic) || errors.Is(err, wallet.ErrInvalidMnemonic) {
			return nil, domain.ErrInvalidSecret
		}
		return nil, err
	}
	s.cached, s.cachedHash = w, hash
	return w, nil
}
