package wallet

import (
	"crypto/ecdsa"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DeriveSigningKeyOpts is the struct given to DeriveSigningKey method
type DeriveSigningKeyOpts struct {
	Index uint32
}

func (o DeriveSigningKeyOpts) validate() error {
	if o.Index >= hdkeychain.HardenedKeyStart {
		return ErrOutOfRangeAddressIndex
	}
	return nil
}

// DeriveSigningKey returns the private key of the account at the given
// index of the base derivation path.
func (w *Wallet) DeriveSigningKey(opts DeriveSigningKeyOpts) (*ecdsa.PrivateKey, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := w.validate(); err != nil {
		return nil, err
	}

	child, err := w.masterKey.Derive(opts.Index)
	if err != nil {
		return nil, err
	}
	privKey, err := child.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return toECDSA(privKey)
}

// toECDSA converts the derived key and wipes the intermediate copy.
func toECDSA(key *btcec.PrivateKey) (*ecdsa.PrivateKey, error) {
	defer key.Zero()
	return crypto.ToECDSA(key.Serialize())
}

// Address returns the checksummed address of the account at index.
func (w *Wallet) Address(index uint32) (string, error) {
	key, err := w.DeriveSigningKey(DeriveSigningKeyOpts{Index: index})
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

// Addresses returns the addresses of the accounts at indices 0..count-1.
func (w *Wallet) Addresses(count int) ([]string, error) {
	if count < 0 || uint64(count) > hdkeychain.HardenedKeyStart {
		return nil, ErrInvalidAccountsCount
	}
	addresses := make([]string, 0, count)
	for i := 0; i < count; i++ {
		addr, err := w.Address(uint32(i))
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// IsSameAddress compares two hex addresses regardless of their checksum.
func IsSameAddress(a, b string) bool {
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		return false
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}
