// Package indicator exposes the number of requests waiting for a decision,
// the wallet badge, as a prometheus gauge.
package indicator

import (
	"fmt"
	"sync"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

type indicator struct {
	gauge *prometheus.GaugeVec

	lock   sync.Mutex
	counts map[domain.WindowKind]int
}

// NewIndicator registers the pending gauge on reg.
func NewIndicator(reg prometheus.Registerer) (ports.Indicator, error) {
	if reg == nil {
		return nil, fmt.Errorf("missing prometheus registerer")
	}

	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "walletd",
		Name:      "pending_requests",
		Help:      "Requests waiting for a decision on the approval surface.",
	}, []string{"kind"})
	if err := reg.Register(gauge); err != nil {
		return nil, fmt.Errorf("failed to register pending gauge: %w", err)
	}

	return &indicator{
		gauge:  gauge,
		counts: make(map[domain.WindowKind]int),
	}, nil
}

func (i *indicator) SetPending(kind domain.WindowKind, count int) {
	i.lock.Lock()
	prev := i.counts[kind]
	i.counts[kind] = count
	total := 0
	for _, c := range i.counts {
		total += c
	}
	i.lock.Unlock()

	i.gauge.WithLabelValues(string(kind)).Set(float64(count))
	if prev == count {
		return
	}

	badge := ""
	if total > 0 {
		badge = fmt.Sprint(total)
	}
	log.WithFields(log.Fields{
		"kind":  kind,
		"count": count,
		"badge": badge,
	}).Debug("pending requests changed")
}
