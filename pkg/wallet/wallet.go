package wallet

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

var (
	// ErrNullMnemonic ...
	ErrNullMnemonic = errors.New("mnemonic is null")
	// ErrNullMasterKey ...
	ErrNullMasterKey = errors.New("master key is null")
	// ErrNullDerivationPath ...
	ErrNullDerivationPath = errors.New("derivation path must not be null")
	// ErrNullTransaction ...
	ErrNullTransaction = errors.New("transaction must not be null")
	// ErrNullTypedData ...
	ErrNullTypedData = errors.New("typed data must not be null")

	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = errors.New("mnemonic is invalid")
	// ErrInvalidEntropySize ...
	ErrInvalidEntropySize = errors.New(
		"entropy size must be a multiple of 32 in the range [128,256]",
	)
	// ErrInvalidDerivationPath ...
	ErrInvalidDerivationPath = errors.New("invalid derivation path")
	// ErrInvalidTypedData ...
	ErrInvalidTypedData = errors.New("typed data is invalid")
	// ErrOutOfRangeAddressIndex ...
	ErrOutOfRangeAddressIndex = errors.New(
		"address index must be in the non-hardened range",
	)
	// ErrInvalidAccountsCount ...
	ErrInvalidAccountsCount = errors.New(
		"accounts count must be within the non-hardened index range",
	)
	// ErrMalformedDerivationPath ...
	ErrMalformedDerivationPath = errors.New(
		"path must not start or end with a '/' and " +
			"can optionally start with 'm/' for absolute paths",
	)
)

// Wallet is an Ethereum hierarchical deterministic wallet. It holds the
// extended key at the base derivation path from which every account key is
// derived by index.
type Wallet struct {
	mnemonic  string
	masterKey *hdkeychain.ExtendedKey
}

// NewWalletOpts is the struct given to the NewWallet method
type NewWalletOpts struct {
	EntropySize int
	// BasePath defaults to DefaultBaseDerivationPath.
	BasePath DerivationPath
}

// NewWallet creates a new wallet from a freshly generated mnemonic.
func NewWallet(opts NewWalletOpts) (*Wallet, error) {
	mnemonic, err := NewMnemonic(NewMnemonicOpts{EntropySize: opts.EntropySize})
	if err != nil {
		return nil, err
	}
	return NewWalletFromMnemonic(NewWalletFromMnemonicOpts{
		Mnemonic: mnemonic,
		BasePath: opts.BasePath,
	})
}

// NewWalletFromMnemonicOpts is the struct given to the NewWalletFromMnemonic
// method
type NewWalletFromMnemonicOpts struct {
	Mnemonic string
	// BasePath defaults to DefaultBaseDerivationPath.
	BasePath DerivationPath
}

func (o NewWalletFromMnemonicOpts) validate() error {
	if len(o.Mnemonic) <= 0 {
		return ErrNullMnemonic
	}
	if !IsMnemonicValid(o.Mnemonic) {
		return ErrInvalidMnemonic
	}
	return nil
}

// NewWalletFromMnemonic restores the wallet of the given mnemonic.
func NewWalletFromMnemonic(opts NewWalletFromMnemonicOpts) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	path := opts.BasePath
	if len(path) <= 0 {
		path = DefaultBaseDerivationPath
	}

	masterKey, err := accountsKey(opts.Mnemonic, path)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		mnemonic:  normalizeMnemonic(opts.Mnemonic),
		masterKey: masterKey,
	}, nil
}

func (w *Wallet) validate() error {
	if len(w.mnemonic) <= 0 {
		return ErrNullMnemonic
	}
	if w.masterKey == nil {
		return ErrNullMasterKey
	}
	return nil
}

// Mnemonic is getter for the wallet mnemonic
func (w *Wallet) Mnemonic() (string, error) {
	if err := w.validate(); err != nil {
		return "", err
	}
	return w.mnemonic, nil
}
