package ethrpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
	"github.com/RoseGit/MasterBlockchain/pkg/circuitbreaker"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
)

const (
	// DefaultRequestTimeout bounds every call to the node.
	DefaultRequestTimeout = 15 * time.Second
	// DefaultRateLimit is the max number of calls per second to one endpoint.
	DefaultRateLimit = 20
)

type Options struct {
	RateLimit      int
	RequestTimeout time.Duration
}

type provider struct {
	opts    Options
	lock    *sync.Mutex
	clients map[string]*client
}

// NewProvider returns a ports.ChainProvider handing out one long lived
// client per endpoint.
func NewProvider(opts Options) ports.ChainProvider {
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	return &provider{
		opts:    opts,
		lock:    &sync.Mutex{},
		clients: make(map[string]*client),
	}
}

func (p *provider) Client(
	ctx context.Context, cfg domain.ChainConfig,
) (ports.ChainClient, error) {
	if cfg.RpcEndpoint == "" {
		return nil, fmt.Errorf("missing rpc endpoint for chain %s", cfg.ChainId)
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	if c, ok := p.clients[cfg.RpcEndpoint]; ok {
		return c, nil
	}

	rpc, err := ethclient.DialContext(ctx, cfg.RpcEndpoint)
	if err != nil {
		return nil, err
	}
	c := &client{
		endpoint: cfg.RpcEndpoint,
		rpc:      rpc,
		cb:       circuitbreaker.NewCircuitBreaker(cfg.RpcEndpoint),
		limiter:  ratelimit.New(p.opts.RateLimit),
		timeout:  p.opts.RequestTimeout,
	}
	p.clients[cfg.RpcEndpoint] = c

	log.WithField("endpoint", cfg.RpcEndpoint).Debug("connected to chain rpc")
	return c, nil
}

// Close releases every client.
func Close(chains ports.ChainProvider) {
	p, ok := chains.(*provider)
	if !ok {
		return
	}
	p.lock.Lock()
	defer p.lock.Unlock()

	for endpoint, c := range p.clients {
		c.rpc.Close()
		delete(p.clients, endpoint)
	}
}
