// Package relay bridges a page channel and the wallet orchestrator: page
// requests are forwarded as RPC calls and answered on the channel, wallet
// events are forwarded to the page as they are.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/RoseGit/MasterBlockchain/pkg/pagechan"
	"github.com/RoseGit/MasterBlockchain/pkg/protocol"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Backend is the orchestrator side of the relay.
type Backend interface {
	// RPC forwards the call and returns its result.
	RPC(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)
	// Events returns the events pushed by the orchestrator. The channel is
	// closed when the backend goes away.
	Events() <-chan protocol.Message
}

type Relay struct {
	channel *pagechan.Channel
	backend Backend
}

func New(channel *pagechan.Channel, backend Backend) (*Relay, error) {
	if channel == nil {
		return nil, fmt.Errorf("missing page channel")
	}
	if backend == nil {
		return nil, fmt.Errorf("missing backend")
	}
	return &Relay{channel, backend}, nil
}

// Run relays messages until ctx is done or the backend goes away. In-flight
// requests are answered before Run returns.
func (r *Relay) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		lock     sync.Mutex
		stopped  bool
		inFlight sync.WaitGroup
	)
	stop := r.channel.Listen(func(msg protocol.PageMessage) {
		if msg.Type != protocol.TypeRequest {
			return
		}
		lock.Lock()
		defer lock.Unlock()
		// A dispatch racing with the shutdown must not grow the group
		// once it is being waited on.
		if stopped {
			return
		}
		inFlight.Add(1)
		go func() {
			defer inFlight.Done()
			r.forward(ctx, msg)
		}()
	})
	defer func() {
		stop()
		lock.Lock()
		stopped = true
		lock.Unlock()
		inFlight.Wait()
	}()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-r.backend.Events():
				if !ok {
					return fmt.Errorf("backend closed")
				}
				if ev.Type != protocol.TypeEvent {
					continue
				}
				if err := r.channel.Post(protocol.NewEvent(ev.EventName, ev.Data)); err != nil {
					return err
				}
			}
		}
	})
	return eg.Wait()
}

func (r *Relay) forward(ctx context.Context, req protocol.PageMessage) {
	logger := log.WithFields(log.Fields{"id": req.ID, "method": req.Method})

	resp := protocol.NewResponse(req.ID, nil, "")
	result, err := r.backend.RPC(ctx, req.Method, req.Params)
	if err != nil {
		logger.WithError(err).Debug("rpc call failed")
		resp.Error = err.Error()
	} else {
		resp.Result = result
	}

	if err := r.channel.Post(resp); err != nil {
		logger.WithError(err).Warn("failed to post response")
	}
}
