package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// SendTransaction asks the user to approve the transaction, then signs it
// with the active account as a fee-market transaction and submits it. It
// returns the transaction hash.
func (s *Service) SendTransaction(
	ctx context.Context, tx domain.TxParams, params json.RawMessage,
) (string, error) {
	state, err := s.loadState(ctx)
	if err != nil {
		return "", err
	}
	if !state.isConfigured() {
		return "", domain.ErrNotConfigured
	}
	if err := tx.Validate(); err != nil {
		return "", err
	}
	account, err := state.currentAccount()
	if err != nil {
		return "", err
	}
	chainId, err := domain.ParseChainId(state.chainId)
	if err != nil {
		return "", err
	}

	if err := s.requestApproval(ctx, domain.MethodSendTx, params, state.chainId); err != nil {
		return "", err
	}

	client, err := s.client(ctx, state.chainId)
	if err != nil {
		return "", err
	}
	endpoint := client.Endpoint()

	fees, err := client.FeeData(ctx)
	if err != nil {
		return "", networkError(endpoint, err)
	}
	nonce, err := client.PendingNonceAt(ctx, account.Address)
	if err != nil {
		return "", networkError(endpoint, err)
	}
	gas, _ := tx.GasLimit()
	if gas == 0 {
		if gas, err = client.EstimateGas(ctx, account.Address, tx); err != nil {
			return "", networkError(endpoint, err)
		}
	}
	value, _ := tx.ValueWei()
	data, _ := tx.Calldata()

	rawTx, err := s.custody.SignTransaction(state.secret, account.DerivationIndex, domain.TxRequest{
		ChainId:              chainId,
		Nonce:                nonce,
		To:                   tx.To,
		Value:                value,
		Data:                 data,
		Gas:                  gas,
		MaxFeePerGas:         fees.MaxFeePerGas,
		MaxPriorityFeePerGas: fees.MaxPriorityFeePerGas,
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	hash, err := client.SendRawTransaction(ctx, rawTx)
	if err != nil {
		return "", networkError(endpoint, err)
	}

	log.WithFields(log.Fields{
		"from":     account.Address,
		"chain_id": state.chainId,
		"tx_hash":  hash,
	}).Info("transaction submitted")
	return hash, nil
}

// SignTypedData asks the user to approve the EIP-712 payload and signs it
// with the active account, that must match address.
func (s *Service) SignTypedData(
	ctx context.Context, address string, typedData, params json.RawMessage,
) (string, error) {
	state, err := s.loadState(ctx)
	if err != nil {
		return "", err
	}
	if !state.isConfigured() {
		return "", domain.ErrNotConfigured
	}
	payload, err := typedDataPayload(typedData)
	if err != nil {
		return "", err
	}
	account, err := state.currentAccount()
	if err != nil {
		return "", err
	}

	if err := s.requestApproval(ctx, domain.MethodSignTypedData, params, state.chainId); err != nil {
		return "", err
	}

	derived, err := s.custody.DeriveAddresses(state.secret, account.DerivationIndex+1)
	if err != nil {
		return "", fmt.Errorf("failed to derive signer: %w", err)
	}
	if len(derived) <= account.DerivationIndex {
		return "", domain.ErrInvalidAccountIndex
	}
	if !strings.EqualFold(derived[account.DerivationIndex], address) {
		return "", domain.ErrSignerMismatch
	}

	sig, err := s.custody.SignTypedData(state.secret, account.DerivationIndex, payload)
	if err != nil {
		return "", fmt.Errorf("failed to sign typed data: %w", err)
	}

	log.WithField("signer", address).Info("typed data signed")
	return sig, nil
}

// typedDataPayload accepts the typed data either as an object or as its
// JSON-encoded string.
func typedDataPayload(typedData json.RawMessage) ([]byte, error) {
	typedData = bytes.TrimSpace(typedData)
	if len(typedData) <= 0 {
		return nil, fmt.Errorf("%w: missing typed data", domain.ErrInvalidParams)
	}
	if typedData[0] == '"' {
		var str string
		if err := json.Unmarshal(typedData, &str); err != nil {
			return nil, fmt.Errorf("%w: typed data: %v", domain.ErrInvalidParams, err)
		}
		typedData = []byte(str)
	}
	if !json.Valid(typedData) {
		return nil, fmt.Errorf("%w: typed data is not valid json", domain.ErrInvalidParams)
	}
	return typedData, nil
}

func (s *Service) client(ctx context.Context, chainId string) (ports.ChainClient, error) {
	cfg := s.endpoints.ChainConfig(chainId, s.fallbackEndpoint)
	client, err := s.chains.Client(ctx, cfg)
	if err != nil {
		return nil, networkError(cfg.RpcEndpoint, err)
	}
	return client, nil
}

func networkError(endpoint string, err error) error {
	var netErr *domain.NetworkError
	if errors.As(err, &netErr) {
		return err
	}
	return domain.NewNetworkError(endpoint, err)
}
