package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
)

// walletState is a snapshot of the persisted wallet state.
type walletState struct {
	secret       string
	accounts     domain.Accounts
	accountIndex int
	chainId      string
}

func (w walletState) isConfigured() bool {
	return w.secret != ""
}

func (w walletState) currentAccount() (domain.Account, error) {
	return w.accounts.At(w.accountIndex)
}

func (s *Service) loadState(ctx context.Context) (walletState, error) {
	var state walletState

	if _, err := s.getJSON(ctx, domain.SecretKey, &state.secret); err != nil {
		return state, err
	}
	if _, err := s.getJSON(ctx, domain.AccountsKey, &state.accounts); err != nil {
		return state, err
	}
	index, err := s.accountIndex(ctx)
	if err != nil {
		return state, err
	}
	state.accountIndex = index
	chainId, err := s.chainId(ctx)
	if err != nil {
		return state, err
	}
	state.chainId = chainId
	return state, nil
}

func (s *Service) accountIndex(ctx context.Context) (int, error) {
	buf, err := s.store.Get(ctx, domain.CurrentAccountKey)
	if err != nil {
		if errors.Is(err, ports.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return parseIndex(buf)
}

func (s *Service) chainId(ctx context.Context) (string, error) {
	var chainId string
	found, err := s.getJSON(ctx, domain.ChainIdKey, &chainId)
	if err != nil {
		return "", err
	}
	if !found || chainId == "" {
		return s.defaultChainId, nil
	}
	return chainId, nil
}

func (s *Service) connectedSites(ctx context.Context) (domain.ConnectedSites, error) {
	sites := make(domain.ConnectedSites)
	if _, err := s.getJSON(ctx, domain.ConnectedSitesKey, &sites); err != nil {
		return nil, err
	}
	if sites == nil {
		sites = make(domain.ConnectedSites)
	}
	return sites, nil
}

func (s *Service) getJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	buf, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ports.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(buf, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Service) setJSON(ctx context.Context, key string, v interface{}) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.store.Set(ctx, key, buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// parseIndex accepts the account index either as a JSON number or as a
// decimal string. The wallet writes the string form.
func parseIndex(buf []byte) (int, error) {
	raw := strings.TrimSpace(string(buf))
	var str string
	if err := json.Unmarshal(buf, &str); err == nil {
		raw = strings.TrimSpace(str)
	}
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return 0, fmt.Errorf("%w: malformed stored index %q", domain.ErrInvalidAccountIndex, raw)
	}
	return index, nil
}

func formatIndex(index int) string {
	return strconv.Itoa(index)
}
