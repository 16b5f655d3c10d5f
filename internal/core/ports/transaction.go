package ports

import (
	"context"
	"math/big"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
)

// ChainClient is the external chain RPC collaborator bound to one endpoint.
type ChainClient interface {
	Endpoint() string
	BalanceAt(ctx context.Context, address string) (*big.Int, error)
	FeeData(ctx context.Context) (domain.FeeData, error)
	PendingNonceAt(ctx context.Context, address string) (uint64, error)
	EstimateGas(ctx context.Context, from string, params domain.TxParams) (uint64, error)
	// SendRawTransaction submits a signed transaction and returns its hash.
	SendRawTransaction(ctx context.Context, rawTx []byte) (string, error)
}

// ChainProvider hands out clients for the endpoint of the active chain.
type ChainProvider interface {
	Client(ctx context.Context, cfg domain.ChainConfig) (ChainClient, error)
}
