package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TxParams are the eth_sendTransaction params as sent by dApps.
type TxParams struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to"`
	Value string `json:"value,omitempty"`
	Data  string `json:"data,omitempty"`
	Gas   string `json:"gas,omitempty"`
}

func (p TxParams) Validate() error {
	if p.To != "" && !common.IsHexAddress(p.To) {
		return fmt.Errorf("%w: invalid recipient address %q", ErrInvalidParams, p.To)
	}
	if _, err := p.ValueWei(); err != nil {
		return err
	}
	if _, err := p.Calldata(); err != nil {
		return err
	}
	if _, err := p.GasLimit(); err != nil {
		return err
	}
	return nil
}

// ValueWei returns the value to transfer, defaulting to zero.
func (p TxParams) ValueWei() (*big.Int, error) {
	if p.Value == "" || p.Value == "0x" {
		return big.NewInt(0), nil
	}
	v, ok := parseQuantity(p.Value)
	if !ok {
		return nil, fmt.Errorf("%w: value %q is not a hex quantity", ErrInvalidParams, p.Value)
	}
	return v, nil
}

// Calldata returns the decoded tx data, defaulting to empty.
func (p TxParams) Calldata() ([]byte, error) {
	if p.Data == "" || p.Data == "0x" {
		return nil, nil
	}
	data, err := hexutil.Decode(p.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrInvalidParams, err)
	}
	return data, nil
}

// GasLimit returns the caller provided gas limit, or zero when it must be
// estimated.
func (p TxParams) GasLimit() (uint64, error) {
	if p.Gas == "" {
		return 0, nil
	}
	gas, ok := parseQuantity(p.Gas)
	if !ok || !gas.IsUint64() {
		return 0, fmt.Errorf("%w: gas %q is not a hex quantity", ErrInvalidParams, p.Gas)
	}
	return gas.Uint64(), nil
}

// parseQuantity accepts 0x-prefixed hex numbers, leading zeros included.
func parseQuantity(s string) (*big.Int, bool) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, false
	}
	n, ok := new(big.Int).SetString(s[2:], 16)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

// FeeData are the EIP-1559 fee parameters suggested by the network.
type FeeData struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// TxRequest is a fully populated fee-market (type 2) transaction ready to be
// signed.
type TxRequest struct {
	ChainId              *big.Int
	Nonce                uint64
	To                   string
	Value                *big.Int
	Data                 []byte
	Gas                  uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}
