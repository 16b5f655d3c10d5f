package wallet

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// SignTransactionOpts is the struct given to SignTransaction method
type SignTransactionOpts struct {
	Index uint32
	Tx    *types.DynamicFeeTx
}

func (o SignTransactionOpts) validate() error {
	if o.Tx == nil {
		return ErrNullTransaction
	}
	if o.Tx.ChainID == nil || o.Tx.ChainID.Sign() <= 0 {
		return fmt.Errorf("%w: missing chain id", ErrNullTransaction)
	}
	return nil
}

// SignTransaction signs the fee-market transaction with the key at the given
// index and returns the signed transaction.
func (w *Wallet) SignTransaction(opts SignTransactionOpts) (*types.Transaction, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	key, err := w.DeriveSigningKey(DeriveSigningKeyOpts{Index: opts.Index})
	if err != nil {
		return nil, err
	}

	tx := types.NewTx(opts.Tx)
	signer := types.LatestSignerForChainID(opts.Tx.ChainID)
	return types.SignTx(tx, signer, key)
}

// SignTypedDataOpts is the struct given to SignTypedData method
type SignTypedDataOpts struct {
	Index     uint32
	TypedData []byte
}

func (o SignTypedDataOpts) validate() error {
	if len(o.TypedData) <= 0 {
		return ErrNullTypedData
	}
	return nil
}

// SignTypedData signs the EIP-712 payload with the key at the given index.
// The returned signature is in the [R || S || V] format with V in {27, 28}.
func (w *Wallet) SignTypedData(opts SignTypedDataOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}
	hash, err := TypedDataHash(opts.TypedData)
	if err != nil {
		return "", err
	}
	key, err := w.DeriveSigningKey(DeriveSigningKeyOpts{Index: opts.Index})
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// TypedDataHash returns the EIP-712 digest of the JSON typed data. The
// EIP712Domain type is derived from the domain fields when not declared.
func TypedDataHash(typedData []byte) ([]byte, error) {
	var td apitypes.TypedData
	if err := json.Unmarshal(typedData, &td); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTypedData, err)
	}
	if td.PrimaryType == "" {
		return nil, fmt.Errorf("%w: missing primary type", ErrInvalidTypedData)
	}
	if _, ok := td.Types["EIP712Domain"]; !ok {
		if td.Types == nil {
			td.Types = apitypes.Types{}
		}
		td.Types["EIP712Domain"] = domainType(td.Domain)
	}

	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTypedData, err)
	}
	return hash, nil
}

func domainType(domain apitypes.TypedDataDomain) []apitypes.Type {
	fields := make([]apitypes.Type, 0, 5)
	if domain.Name != "" {
		fields = append(fields, apitypes.Type{Name: "name", Type: "string"})
	}
	if domain.Version != "" {
		fields = append(fields, apitypes.Type{Name: "version", Type: "string"})
	}
	if domain.ChainId != nil {
		fields = append(fields, apitypes.Type{Name: "chainId", Type: "uint256"})
	}
	if domain.VerifyingContract != "" {
		fields = append(fields, apitypes.Type{Name: "verifyingContract", Type: "address"})
	}
	if domain.Salt != "" {
		fields = append(fields, apitypes.Type{Name: "salt", Type: "bytes32"})
	}
	return fields
}
