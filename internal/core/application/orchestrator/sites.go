package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// Accounts returns the account origin is connected to, or an empty list.
func (s *Service) Accounts(ctx context.Context, origin string) ([]string, error) {
	sites, err := s.connectedSites(ctx)
	if err != nil {
		return nil, err
	}
	if addr, ok := sites.Account(origin); ok {
		return []string{addr}, nil
	}
	return []string{}, nil
}

func (s *Service) connectSite(ctx context.Context, origin, account string) error {
	s.sitesLock.Lock()
	defer s.sitesLock.Unlock()

	sites, err := s.connectedSites(ctx)
	if err != nil {
		return err
	}
	sites.Connect(origin, account)
	return s.setJSON(ctx, domain.ConnectedSitesKey, sites)
}

// onStoreChange propagates changes of the active account to the connected
// sites and to every page context. Chain switches broadcast on their own.
func (s *Service) onStoreChange(change ports.StoreChange) {
	if change.NewValue == nil || bytes.Equal(change.OldValue, change.NewValue) {
		return
	}
	if change.Key == domain.CurrentAccountKey {
		s.onAccountChanged()
	}
}

// onAccountChanged reads the active account again instead of trusting the
// change: notifications of concurrent writes may arrive out of order, the
// last one handled must reflect the stored index.
func (s *Service) onAccountChanged() {
	ctx := context.Background()

	s.sitesLock.Lock()
	defer s.sitesLock.Unlock()

	index, err := s.accountIndex(ctx)
	if err != nil {
		log.WithError(err).Warn("ignoring malformed account index change")
		return
	}
	var accounts domain.Accounts
	if _, err := s.getJSON(ctx, domain.AccountsKey, &accounts); err != nil {
		log.WithError(err).Warn("failed to read accounts")
		return
	}
	account, err := accounts.At(index)
	if err != nil {
		log.WithError(err).WithField("index", index).Warn("active account out of range")
		return
	}

	sites, err := s.connectedSites(ctx)
	if err == nil && len(sites) > 0 {
		err = s.setJSON(ctx, domain.ConnectedSitesKey, sites.Repoint(account.Address))
	}
	if err != nil {
		log.WithError(err).Warn("failed to repoint connected sites")
	}

	s.broadcast(domain.EventAccountsChanged, []string{account.Address})
}

func (s *Service) broadcast(name string, data interface{}) {
	buf, err := json.Marshal(data)
	if err != nil {
		log.WithError(err).Warnf("failed to encode %s event", name)
		return
	}
	log.WithField("event", name).Debug("broadcasting event")
	s.broadcaster.Broadcast(ports.Event{Name: name, Data: buf})
}
