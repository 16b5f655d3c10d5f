package wsinterface

import (
	"errors"
	"fmt"
	"time"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Methods are reported by name only if known, dApps may send anything.
var knownMethods = map[string]bool{
	domain.MethodDeriveAccounts: true,
	domain.MethodRequestAccount: true,
	domain.MethodAccounts:       true,
	domain.MethodChainId:        true,
	domain.MethodGetBalance:     true,
	domain.MethodSendTx:         true,
	domain.MethodSignTypedData:  true,
	domain.MethodSwitchChain:    true,
}

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	sessions *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletd",
			Name:      "rpc_requests_total",
			Help:      "RPC calls served, by method and outcome.",
		}, []string{"method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "walletd",
			Name:      "rpc_duration_seconds",
			Help:      "Time spent serving RPC calls, approvals included.",
			Buckets:   []float64{.01, .1, .5, 1, 5, 15, 30, 60, 120},
		}, []string{"method"}),
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "walletd",
			Name:      "sessions",
			Help:      "Connected websocket peers, by endpoint.",
		}, []string{"endpoint"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration, m.sessions} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *metrics) observe(method string, err error, elapsed time.Duration) {
	if !knownMethods[method] {
		method = "other"
	}
	m.requests.WithLabelValues(method, outcome(err)).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUserRejectedApproval),
		errors.Is(err, domain.ErrUserRejectedConnection):
		return "rejected"
	case errors.Is(err, domain.ErrApprovalTimeout),
		errors.Is(err, domain.ErrConnectionTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrNetwork):
		return "network_error"
	default:
		return "error"
	}
}
