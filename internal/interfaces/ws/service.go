// Package wsinterface serves the websocket endpoints of the wallet daemon:
// /relay for page contexts and /surface for approval surfaces.
package wsinterface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/RoseGit/MasterBlockchain/internal/infrastructure/surface"
	"github.com/RoseGit/MasterBlockchain/internal/interfaces"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const (
	RelayPath   = "/relay"
	SurfacePath = "/surface"
	MetricsPath = "/metrics"

	shutdownTimeout = 5 * time.Second
)

// Wallet is the orchestrator as seen by the transport.
type Wallet interface {
	Dispatch(
		ctx context.Context, origin, method string, params json.RawMessage,
	) (interface{}, error)
	HandleConnectResponse(requestID uint64, decision domain.ConnectDecision) bool
	HandleSignResponse(approvalID uint64, decision domain.Decision) bool
	SelectAccount(ctx context.Context, index int) (string, error)
	SwitchChain(ctx context.Context, chainId string) error
	SetupWallet(ctx context.Context, secret string, count int) ([]string, error)
}

type ServiceOpts struct {
	// Address is where /relay and /surface are served.
	Address string
	// MetricsAddress is where /metrics is served, disabled if empty.
	MetricsAddress string

	Wallet  Wallet
	Hub     *Hub
	Windows *surface.Manager

	// OriginRateLimit is the number of RPC calls per second a page origin is
	// allowed, with bursts of OriginRateBurst. Zero disables the limit.
	OriginRateLimit float64
	OriginRateBurst int

	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

func (o ServiceOpts) validate() error {
	if o.Wallet == nil {
		return fmt.Errorf("missing wallet")
	}
	if o.Hub == nil {
		return fmt.Errorf("missing hub")
	}
	if o.Windows == nil {
		return fmt.Errorf("missing window manager")
	}
	if o.OriginRateLimit < 0 || o.OriginRateBurst < 0 {
		return fmt.Errorf("origin rate limit must not be negative")
	}
	if o.OriginRateLimit > 0 && o.OriginRateBurst == 0 {
		return fmt.Errorf("origin rate burst must be greater than zero")
	}
	if o.MetricsAddress != "" && o.Gatherer == nil {
		return fmt.Errorf("missing metrics gatherer")
	}
	return nil
}

type Service struct {
	opts    ServiceOpts
	limiter *originLimiter
	metrics *metrics

	relayUpgrader   websocket.Upgrader
	surfaceUpgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	lock          sync.Mutex
	sessions      map[*session]struct{}
	server        *http.Server
	metricsServer *http.Server
}

var _ interfaces.Service = (*Service)(nil)

func NewService(opts ServiceOpts) (*Service, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid opts: %s", err)
	}

	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		opts:    opts,
		limiter: newOriginLimiter(opts.OriginRateLimit, opts.OriginRateBurst),
		metrics: m,
		// Page contexts come from any site, the origin is only recorded.
		relayUpgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		// Surfaces are local tools: the default check refuses browser pages
		// of foreign origins.
		surfaceUpgrader: websocket.Upgrader{},
		ctx:             ctx,
		cancel:          cancel,
		sessions:        make(map[*session]struct{}),
	}, nil
}

// Handler returns the mux serving the websocket endpoints.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(RelayPath, s.serveRelay)
	mux.HandleFunc(SurfacePath, s.serveSurface)
	return mux
}

func (s *Service) Start() error {
	lis, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Address, err)
	}
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsServer *http.Server
	var metricsLis net.Listener
	if s.opts.MetricsAddress != "" {
		metricsLis, err = net.Listen("tcp", s.opts.MetricsAddress)
		if err != nil {
			lis.Close()
			return fmt.Errorf(
				"failed to listen on %s: %w", s.opts.MetricsAddress, err,
			)
		}
		mux := http.NewServeMux()
		mux.Handle(MetricsPath, promhttp.HandlerFor(
			s.opts.Gatherer, promhttp.HandlerOpts{},
		))
		metricsServer = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	s.lock.Lock()
	s.server = server
	s.metricsServer = metricsServer
	s.lock.Unlock()

	go serve(server, lis)
	log.Infof("relay and surface interface listening on %s", lis.Addr())
	if metricsServer != nil {
		go serve(metricsServer, metricsLis)
		log.Infof("metrics interface listening on %s", metricsLis.Addr())
	}
	return nil
}

func (s *Service) Stop() {
	s.cancel()

	s.lock.Lock()
	server, metricsServer := s.server, s.metricsServer
	sessions := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("failed to gracefully stop ws interface")
		}
	}
	// Hijacked connections are not tracked by the http server.
	for _, sess := range sessions {
		sess.close()
	}
	log.Debug("disabled relay and surface interface")

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("failed to gracefully stop metrics interface")
		}
		log.Debug("disabled metrics interface")
	}
}

func (s *Service) track(sess *session, endpoint string) func() {
	s.lock.Lock()
	s.sessions[sess] = struct{}{}
	s.lock.Unlock()
	s.metrics.sessions.WithLabelValues(endpoint).Inc()

	return func() {
		s.lock.Lock()
		delete(s.sessions, sess)
		s.lock.Unlock()
		s.metrics.sessions.WithLabelValues(endpoint).Dec()
		sess.close()
	}
}

func serve(server *http.Server, lis net.Listener) {
	if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("http server stopped")
	}
}
