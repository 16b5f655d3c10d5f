package ports

import "github.com/RoseGit/MasterBlockchain/internal/core/domain"

// KeyCustody holds no state of its own: every call receives the secret
// phrase and the index of the account to use.
type KeyCustody interface {
	// ValidateSecret returns domain.ErrInvalidSecret for malformed phrases.
	ValidateSecret(secret string) error
	// DeriveAddresses returns the addresses at indices 0..count-1.
	DeriveAddresses(secret string, count int) ([]string, error)
	// SignTransaction signs the fee-market transaction with the key at index
	// and returns its binary encoding.
	SignTransaction(secret string, index int, tx domain.TxRequest) ([]byte, error)
	// SignTypedData signs an EIP-712 payload with the key at index and
	// returns the 0x-prefixed signature.
	SignTypedData(secret string, index int, typedData []byte) (string, error)
}
