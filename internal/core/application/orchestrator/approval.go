package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RoseGit/MasterBlockchain/internal/core/application/registry"
	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// requestApproval blocks until the user approves the signing request or the
// request is rejected or expires.
func (s *Service) requestApproval(
	ctx context.Context, method string, params json.RawMessage, chainId string,
) error {
	id, result := s.approvals.Create(domain.PendingApproval{
		Method:    method,
		Params:    params,
		ChainId:   chainId,
		CreatedAt: time.Now(),
	})

	var record domain.ApprovalRecord
	s.approvals.Update(id, func(p *domain.PendingApproval) {
		p.ID = id
		record = p.Record()
	})

	log.WithFields(log.Fields{
		"approval_id": id,
		"method":      method,
		"chain_id":    chainId,
	}).Info("approval requested")

	present(ctx, s, s.approvals, presentation{
		kind:      domain.ApprovalWindow,
		id:        id,
		recordKey: domain.PendingRequestKey,
		record:    record,
	}, func(p *domain.PendingApproval, windowID string) { p.WindowID = windowID })

	out := <-result
	return out.Err
}

// HandleSignResponse applies the surface's decision to the pending approval.
// It returns false when the approval already settled or never existed.
func (s *Service) HandleSignResponse(approvalID uint64, decision domain.Decision) bool {
	logger := log.WithField("approval_id", approvalID)

	var ok bool
	if decision.Approved {
		ok = s.approvals.Resolve(approvalID, struct{}{})
	} else {
		ok = s.approvals.Reject(approvalID, &domain.RejectionError{
			Kind:   domain.ErrUserRejectedApproval,
			Reason: decision.Reason,
		})
	}
	if !ok {
		logger.Debug("ignoring decision for settled approval")
		return false
	}
	logger.WithField("approved", decision.Approved).Info("approval decided")
	return true
}

func (s *Service) onApprovalSettled(st registry.Settlement[domain.PendingApproval]) {
	s.indicator.SetPending(domain.ApprovalWindow, st.Remaining)
	s.clearRecord(domain.PendingRequestKey, st.ID, func(buf []byte) (uint64, error) {
		var r domain.ApprovalRecord
		err := json.Unmarshal(buf, &r)
		return r.ApprovalID, err
	})
	if st.Record.WindowID != "" {
		s.windows.Close(st.Record.WindowID)
	}
	if st.State == registry.TimedOut {
		log.WithField("approval_id", st.ID).Warn("approval timed out")
	}
}

type presentation struct {
	kind      domain.WindowKind
	id        uint64
	recordKey string
	record    interface{}
}

// present persists the in-flight record and opens its window. Any failure
// rejects the pending record, so the waiter always gets an outcome.
func present[R, T any](
	ctx context.Context, s *Service, reg *registry.Registry[R, T],
	p presentation, setWindow func(record *R, windowID string),
) {
	logger := log.WithFields(log.Fields{"kind": p.kind, "request_id": p.id})

	request, err := json.Marshal(p.record)
	if err != nil {
		reg.Reject(p.id, fmt.Errorf("%w: %v", domain.ErrSurfaceUnavailable, err))
		return
	}

	s.recordsLock.Lock()
	err = s.store.Set(ctx, p.recordKey, request)
	s.recordsLock.Unlock()
	if err != nil {
		logger.WithError(err).Warn("failed to persist pending request")
		reg.Reject(p.id, fmt.Errorf("%w: %v", domain.ErrSurfaceUnavailable, err))
		return
	}

	windowID, err := s.windows.Open(ctx, ports.Window{
		Kind:      p.kind,
		RequestID: p.id,
		Request:   request,
	})
	if err != nil {
		logger.WithError(err).Warn("failed to open window")
		reg.Reject(p.id, fmt.Errorf("%w: %v", domain.ErrSurfaceUnavailable, err))
		return
	}

	stillPending := reg.Update(p.id, func(r *R) { setWindow(r, windowID) })
	if !stillPending {
		s.windows.Close(windowID)
		return
	}
	reg.MarkAwaiting(p.id)
}

// clearRecord removes the persisted in-flight record under key if it still
// refers to the settled request.
func (s *Service) clearRecord(
	key string, id uint64, recordID func([]byte) (uint64, error),
) {
	ctx := context.Background()
	s.recordsLock.Lock()
	defer s.recordsLock.Unlock()

	buf, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrKeyNotFound) {
			log.WithError(err).Warnf("failed to read %s", key)
		}
		return
	}
	if current, err := recordID(buf); err == nil && current != id {
		return
	}
	if err := s.store.Remove(ctx, key); err != nil {
		log.WithError(err).Warnf("failed to clear %s", key)
	}
}
