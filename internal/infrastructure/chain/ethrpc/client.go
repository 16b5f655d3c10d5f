package ethrpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
)

// defaultPriorityFee is used when the node does not suggest a tip.
var defaultPriorityFee = big.NewInt(1_000_000_000)

type client struct {
	endpoint string
	rpc      *ethclient.Client
	cb       *gobreaker.CircuitBreaker
	limiter  ratelimit.Limiter
	timeout  time.Duration
}

func (c *client) Endpoint() string {
	return c.endpoint
}

func (c *client) BalanceAt(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: invalid address %q", domain.ErrInvalidParams, address)
	}
	res, err := c.call(ctx, func(ctx context.Context) (interface{}, error) {
		return c.rpc.BalanceAt(ctx, common.HexToAddress(address), nil)
	})
	if err != nil {
		return nil, err
	}
	return res.(*big.Int), nil
}

// FeeData suggests the EIP-1559 fees like ethers does: the node's priority
// fee (1 gwei if unsupported) on top of twice the latest base fee.
func (c *client) FeeData(ctx context.Context) (domain.FeeData, error) {
	res, err := c.call(ctx, func(ctx context.Context) (interface{}, error) {
		return c.rpc.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		return domain.FeeData{}, err
	}
	header := res.(*types.Header)

	tip := new(big.Int).Set(defaultPriorityFee)
	res, err = c.call(ctx, func(ctx context.Context) (interface{}, error) {
		return c.rpc.SuggestGasTipCap(ctx)
	})
	if err == nil {
		tip = res.(*big.Int)
	}

	return feeData(header.BaseFee, tip), nil
}

func (c *client) PendingNonceAt(ctx context.Context, address string) (uint64, error) {
	res, err := c.call(ctx, func(ctx context.Context) (interface{}, error) {
		return c.rpc.PendingNonceAt(ctx, common.HexToAddress(address))
	})
	if err != nil {
		return 0, err
	}
	return res.(uint64), nil
}

func (c *client) EstimateGas(
	ctx context.Context, from string, params domain.TxParams,
) (uint64, error) {
	msg := ethereum.CallMsg{From: common.HexToAddress(from)}
	if params.To != "" {
		to := common.HexToAddress(params.To)
		msg.To = &to
	}
	value, err := params.ValueWei()
	if err != nil {
		return 0, err
	}
	data, err := params.Calldata()
	if err != nil {
		return 0, err
	}
	msg.Value, msg.Data = value, data

	res, err := c.call(ctx, func(ctx context.Context) (interface{}, error) {
		return c.rpc.EstimateGas(ctx, msg)
	})
	if err != nil {
		return 0, err
	}
	return res.(uint64), nil
}

func (c *client) SendRawTransaction(ctx context.Context, rawTx []byte) (string, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return "", err
	}
	if _, err := c.call(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, c.rpc.SendTransaction(ctx, tx)
	}); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// call paces and times out the request, and runs it through the breaker.
func (c *client) call(
	ctx context.Context, fn func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	c.limiter.Take()
	return c.cb.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return fn(ctx)
	})
}

func feeData(baseFee, tip *big.Int) domain.FeeData {
	if baseFee == nil {
		// Pre-London chains: the tip is the whole price.
		return domain.FeeData{
			MaxFeePerGas:         new(big.Int).Set(tip),
			MaxPriorityFeePerGas: new(big.Int).Set(tip),
		}
	}
	maxFee := new(big.Int).Mul(baseFee, big.NewInt(2))
	maxFee.Add(maxFee, tip)
	return domain.FeeData{
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: new(big.Int).Set(tip),
	}
}
