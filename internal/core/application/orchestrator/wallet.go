package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	log "github.com/sirupsen/logrus"
)

// DeriveAccounts returns the first count addresses of the secret phrase.
// Nothing is persisted.
func (s *Service) DeriveAccounts(secret string, count int) ([]string, error) {
	secret = strings.TrimSpace(secret)
	if err := s.custody.ValidateSecret(secret); err != nil {
		return nil, err
	}
	if count <= 0 {
		count = s.accountsCount
	}
	if count > domain.MaxAccountsCount {
		return nil, fmt.Errorf(
			"%w: cannot derive more than %d accounts",
			domain.ErrInvalidParams, domain.MaxAccountsCount,
		)
	}
	return s.custody.DeriveAddresses(secret, count)
}

// SetupWallet derives the accounts of the secret phrase and persists them
// together with the secret. The first account becomes the active one.
func (s *Service) SetupWallet(ctx context.Context, secret string, count int) ([]string, error) {
	accounts, err := s.DeriveAccounts(secret, count)
	if err != nil {
		return nil, err
	}

	if err := s.setJSON(ctx, domain.SecretKey, strings.TrimSpace(secret)); err != nil {
		return nil, err
	}
	if err := s.setJSON(ctx, domain.AccountsKey, accounts); err != nil {
		return nil, err
	}
	if err := s.setJSON(ctx, domain.CurrentAccountKey, formatIndex(0)); err != nil {
		return nil, err
	}

	var chainId string
	found, err := s.getJSON(ctx, domain.ChainIdKey, &chainId)
	if err != nil {
		return nil, err
	}
	if !found || chainId == "" {
		if err := s.setJSON(ctx, domain.ChainIdKey, s.defaultChainId); err != nil {
			return nil, err
		}
	}

	log.WithField("accounts", len(accounts)).Info("wallet configured")
	return accounts, nil
}

// SelectAccount makes the account at index the active one. Connected sites
// follow the change.
func (s *Service) SelectAccount(ctx context.Context, index int) (string, error) {
	var accounts domain.Accounts
	if _, err := s.getJSON(ctx, domain.AccountsKey, &accounts); err != nil {
		return "", err
	}
	if accounts.IsEmpty() {
		return "", domain.ErrNoAccounts
	}
	account, err := accounts.At(index)
	if err != nil {
		return "", err
	}
	if err := s.setJSON(ctx, domain.CurrentAccountKey, formatIndex(index)); err != nil {
		return "", err
	}
	log.WithField("account", account.Address).Info("active account changed")
	return account.Address, nil
}

// SwitchChain persists the new active chain and notifies every page
// context, even if the chain was already the active one.
func (s *Service) SwitchChain(ctx context.Context, chainId string) error {
	chainId = strings.TrimSpace(chainId)
	if err := domain.ValidateChainId(chainId); err != nil {
		return err
	}
	if err := s.setJSON(ctx, domain.ChainIdKey, chainId); err != nil {
		return err
	}
	log.WithField("chain_id", chainId).Info("active chain changed")
	s.broadcast(domain.EventChainChanged, chainId)
	return nil
}

// ChainId returns the persisted chain id verbatim.
func (s *Service) ChainId(ctx context.Context) (string, error) {
	return s.chainId(ctx)
}

// GetBalance returns the balance in wei of address, or of the active account
// if empty, as a hex quantity.
func (s *Service) GetBalance(ctx context.Context, address string) (string, error) {
	state, err := s.loadState(ctx)
	if err != nil {
		return "", err
	}
	if address == "" {
		if state.accounts.IsEmpty() {
			return "", domain.ErrNoAccounts
		}
		account, err := state.currentAccount()
		if err != nil {
			return "", err
		}
		address = account.Address
	}
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: invalid address %q", domain.ErrInvalidParams, address)
	}

	client, err := s.client(ctx, state.chainId)
	if err != nil {
		return "", err
	}
	balance, err := client.BalanceAt(ctx, address)
	if err != nil {
		return "", networkError(client.Endpoint(), err)
	}
	return hexutil.EncodeBig(balance), nil
}

// ChainConfig returns the active chain and the endpoint used to reach it.
func (s *Service) ChainConfig(ctx context.Context) (domain.ChainConfig, error) {
	chainId, err := s.chainId(ctx)
	if err != nil {
		return domain.ChainConfig{}, err
	}
	return s.endpoints.ChainConfig(chainId, s.fallbackEndpoint), nil
}
