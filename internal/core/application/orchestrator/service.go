package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RoseGit/MasterBlockchain/internal/core/application/registry"
	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultFallbackEndpoint is used for chains without a configured
	// endpoint.
	DefaultFallbackEndpoint = "https://rpc.sepolia.org"
)

type approvalRegistry = registry.Registry[domain.PendingApproval, struct{}]
type connectionRegistry = registry.Registry[domain.PendingConnection, string]

// Options are the collaborators and tunables of the orchestrator.
type Options struct {
	Store       ports.Store
	Custody     ports.KeyCustody
	Chains      ports.ChainProvider
	Windows     ports.WindowManager
	Broadcaster ports.Broadcaster
	Indicator   ports.Indicator

	Endpoints        domain.Endpoints
	FallbackEndpoint string
	DefaultChainId   string

	ApprovalTimeout      time.Duration
	ConnectionTimeout    time.Duration
	DefaultAccountsCount int
}

func (o *Options) validate() error {
	if o.Store == nil {
		return fmt.Errorf("missing store")
	}
	if o.Custody == nil {
		return fmt.Errorf("missing key custody")
	}
	if o.Chains == nil {
		return fmt.Errorf("missing chain provider")
	}
	if o.Windows == nil {
		return fmt.Errorf("missing window manager")
	}
	if o.Broadcaster == nil {
		return fmt.Errorf("missing broadcaster")
	}
	if o.DefaultChainId == "" {
		o.DefaultChainId = domain.DefaultChainId
	}
	if err := domain.ValidateChainId(o.DefaultChainId); err != nil {
		return fmt.Errorf("default chain: %w", err)
	}
	if o.FallbackEndpoint == "" {
		o.FallbackEndpoint = DefaultFallbackEndpoint
	}
	if o.ApprovalTimeout <= 0 {
		o.ApprovalTimeout = domain.DefaultApprovalTimeout
	}
	if o.ConnectionTimeout <= 0 {
		o.ConnectionTimeout = domain.DefaultConnectionTimeout
	}
	if o.DefaultAccountsCount <= 0 {
		o.DefaultAccountsCount = domain.DefaultAccountsCount
	}
	if o.DefaultAccountsCount > domain.MaxAccountsCount {
		return fmt.Errorf(
			"default accounts count must not exceed %d", domain.MaxAccountsCount,
		)
	}
	if o.Indicator == nil {
		o.Indicator = noopIndicator{}
	}
	return nil
}

// Service is the single authority over the wallet state: it dispatches RPC
// methods, owns the pending approval and connection registries and the
// connected sites table.
type Service struct {
	store       ports.Store
	custody     ports.KeyCustody
	chains      ports.ChainProvider
	windows     ports.WindowManager
	broadcaster ports.Broadcaster
	indicator   ports.Indicator

	endpoints        domain.Endpoints
	fallbackEndpoint string
	defaultChainId   string
	accountsCount    int

	approvals   *approvalRegistry
	connections *connectionRegistry

	// sitesLock serializes read-modify-write cycles of the connected sites.
	sitesLock *sync.Mutex
	// recordsLock serializes writes of the in-flight request records.
	recordsLock *sync.Mutex

	unsubscribe func()
}

func NewService(opts Options) (*Service, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	svc := &Service{
		store:            opts.Store,
		custody:          opts.Custody,
		chains:           opts.Chains,
		windows:          opts.Windows,
		broadcaster:      opts.Broadcaster,
		indicator:        opts.Indicator,
		endpoints:        opts.Endpoints,
		fallbackEndpoint: opts.FallbackEndpoint,
		defaultChainId:   opts.DefaultChainId,
		accountsCount:    opts.DefaultAccountsCount,
		sitesLock:        &sync.Mutex{},
		recordsLock:      &sync.Mutex{},
	}

	svc.approvals = registry.New[domain.PendingApproval, struct{}](
		registry.Options[domain.PendingApproval]{
			Timeout:    opts.ApprovalTimeout,
			TimeoutErr: domain.ErrApprovalTimeout,
			OnCreate: func(_ uint64, count int) {
				svc.indicator.SetPending(domain.ApprovalWindow, count)
			},
			OnSettle: svc.onApprovalSettled,
		},
	)
	svc.connections = registry.New[domain.PendingConnection, string](
		registry.Options[domain.PendingConnection]{
			Timeout:    opts.ConnectionTimeout,
			TimeoutErr: domain.ErrConnectionTimeout,
			OnCreate: func(_ uint64, count int) {
				svc.indicator.SetPending(domain.ConnectionWindow, count)
			},
			OnSettle: svc.onConnectionSettled,
		},
	)

	return svc, nil
}

// Start subscribes to the store changes that must be propagated to page
// contexts and drops request records left over by a previous run: their
// callers are gone and cannot be answered anymore.
func (s *Service) Start(ctx context.Context) error {
	for _, key := range []string{domain.PendingRequestKey, domain.PendingConnectRequest} {
		if err := s.store.Remove(ctx, key); err != nil {
			return fmt.Errorf("failed to clear stale request record: %w", err)
		}
	}
	s.unsubscribe = s.store.Subscribe(s.onStoreChange)
	log.Debug("orchestrator started")
	return nil
}

// Stop rejects every pending request and stops listening to store changes.
func (s *Service) Stop() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	for _, id := range s.approvals.List() {
		s.approvals.Reject(id, domain.ErrWalletClosed)
	}
	for _, id := range s.connections.List() {
		s.connections.Reject(id, domain.ErrWalletClosed)
	}
	log.Debug("orchestrator stopped")
}

// PendingWindows returns the approval surface windows currently open.
func (s *Service) PendingWindows() []ports.OpenWindow {
	return s.windows.List()
}

type noopIndicator struct{}

func (noopIndicator) SetPending(domain.WindowKind, int) {}
