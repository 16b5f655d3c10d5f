package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/RoseGit/MasterBlockchain/internal/core/application/registry"
	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	log "github.com/sirupsen/logrus"
)

// RequestAccounts asks the user which account to disclose to origin. On
// approval the origin becomes a connected site bound to the chosen account.
func (s *Service) RequestAccounts(ctx context.Context, origin string) ([]string, error) {
	state, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}
	if state.accounts.IsEmpty() {
		return nil, domain.ErrNoAccounts
	}
	if _, err := state.currentAccount(); err != nil {
		return nil, err
	}

	origin = domain.NormalizeOrigin(origin)
	id, result := s.connections.Create(domain.PendingConnection{
		Origin:              origin,
		OfferedAccounts:     state.accounts,
		CurrentAccountIndex: state.accountIndex,
		CreatedAt:           time.Now(),
	})

	var record domain.ConnectionRecord
	s.connections.Update(id, func(p *domain.PendingConnection) {
		p.ID = id
		record = p.Record()
	})

	log.WithFields(log.Fields{
		"request_id": id,
		"origin":     origin,
	}).Info("connection requested")

	present(ctx, s, s.connections, presentation{
		kind:      domain.ConnectionWindow,
		id:        id,
		recordKey: domain.PendingConnectRequest,
		record:    record,
	}, func(p *domain.PendingConnection, windowID string) { p.WindowID = windowID })

	out := <-result
	if out.Err != nil {
		return nil, out.Err
	}

	if err := s.connectSite(ctx, origin, out.Value); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"origin":  origin,
		"account": out.Value,
	}).Info("site connected")
	return []string{out.Value}, nil
}

// HandleConnectResponse applies the surface's decision to the pending
// connection. An approval without account picks the one that was active when
// the request was made. It returns false when the connection already settled
// or never existed.
func (s *Service) HandleConnectResponse(
	requestID uint64, decision domain.ConnectDecision,
) bool {
	logger := log.WithField("request_id", requestID)

	if !decision.Approved {
		ok := s.connections.Reject(requestID, &domain.RejectionError{
			Kind:   domain.ErrUserRejectedConnection,
			Reason: decision.Reason,
		})
		if !ok {
			logger.Debug("ignoring decision for settled connection")
			return false
		}
		logger.Info("connection declined")
		return true
	}

	pending, _, ok := s.connections.Get(requestID)
	if !ok {
		logger.Debug("ignoring decision for settled connection")
		return false
	}

	account := decision.Account
	if account == "" {
		offered, err := pending.OfferedAccounts.At(pending.CurrentAccountIndex)
		if err != nil {
			return s.connections.Reject(requestID, err)
		}
		account = offered.Address
	}
	index := pending.OfferedAccounts.IndexOf(account)
	if index < 0 {
		logger.WithField("account", account).Warn("chosen account was not offered")
		return s.connections.Reject(requestID, domain.ErrInvalidAccountIndex)
	}

	if !s.connections.Resolve(requestID, pending.OfferedAccounts[index]) {
		logger.Debug("ignoring decision for settled connection")
		return false
	}
	logger.Info("connection approved")
	return true
}

func (s *Service) onConnectionSettled(st registry.Settlement[domain.PendingConnection]) {
	s.indicator.SetPending(domain.ConnectionWindow, st.Remaining)
	s.clearRecord(domain.PendingConnectRequest, st.ID, func(buf []byte) (uint64, error) {
		var r domain.ConnectionRecord
		err := json.Unmarshal(buf, &r)
		return r.RequestID, err
	})
	if st.Record.WindowID != "" {
		s.windows.Close(st.Record.WindowID)
	}
	if st.State == registry.TimedOut {
		log.WithFields(log.Fields{
			"request_id": st.ID,
			"origin":     st.Record.Origin,
		}).Warn("connection timed out")
	}
}
