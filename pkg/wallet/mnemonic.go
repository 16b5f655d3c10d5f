package wallet

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"
)

const defaultEntropySize = 128

type NewMnemonicOpts struct {
	// EntropySize in bits, a multiple of 32 between 128 and 256.
	// Zero means 128, a 12 words phrase.
	EntropySize int
}

func (o NewMnemonicOpts) entropySize() (int, error) {
	switch size := o.EntropySize; {
	case size == 0:
		return defaultEntropySize, nil
	case size < 128, size > 256, size%32 != 0:
		return 0, ErrInvalidEntropySize
	default:
		return size, nil
	}
}

// NewMnemonic returns a new space separated mnemonic
func NewMnemonic(opts NewMnemonicOpts) (string, error) {
	size, err := opts.entropySize()
	if err != nil {
		return "", err
	}
	entropy, err := bip39.NewEntropy(size)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// IsMnemonicValid returns whether the mnemonic is a valid BIP-39 phrase.
// Extra whitespace between words is tolerated.
func IsMnemonicValid(mnemonic string) bool {
	return bip39.IsMnemonicValid(normalizeMnemonic(mnemonic))
}

func normalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}

// accountsKey derives the extended key at path from the BIP-39 seed of the
// mnemonic. Account keys are its direct children. No seed passphrase is used,
// so phrases restore the same accounts as in other wallets.
func accountsKey(mnemonic string, path DerivationPath) (*hdkeychain.ExtendedKey, error) {
	seed := bip39.NewSeed(normalizeMnemonic(mnemonic), "")

	// The network only affects the key serialization, never exposed here.
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	for _, index := range path {
		if key, err = key.Derive(index); err != nil {
			return nil, err
		}
	}
	return key, nil
}
