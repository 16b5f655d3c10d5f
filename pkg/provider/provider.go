// Package provider is the object handed to dApp code: an EIP-1193 style
// request/response API plus event subscriptions, talking to the wallet
// through the page channel only.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoseGit/MasterBlockchain/pkg/pagechan"
	"github.com/RoseGit/MasterBlockchain/pkg/protocol"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTimeout = 30 * time.Second

	DefaultName = "CodeCrypto Wallet"
	DefaultRDNS = "io.codecrypto.wallet"
	DefaultIcon = `data:image/svg+xml,<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32"><circle cx="16" cy="16" r="16" fill="%234CAF50"/></svg>`
)

// ErrRequestTimeout is returned when no response arrives in time.
var ErrRequestTimeout = errors.New(
	"request timeout, please check if the wallet is open",
)

// ErrClosed is returned by requests issued after Close.
var ErrClosed = errors.New("provider closed")

type RequestArguments struct {
	Method string
	Params interface{}
}

// Listener receives the data of an event.
type Listener func(data json.RawMessage)

// ListenerID identifies a registered listener.
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	fn Listener
}

type Option func(p *Provider)

// WithTimeout overrides the time a request waits for its response.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Provider) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithInfo overrides the announced provider metadata. The uuid is always
// generated.
func WithInfo(name, icon, rdns string) Option {
	return func(p *Provider) {
		p.info.Name, p.info.Icon, p.info.RDNS = name, icon, rdns
	}
}

type Provider struct {
	channel *pagechan.Channel
	timeout time.Duration
	info    protocol.ProviderInfo

	lastRequestID uint64

	lock           sync.Mutex
	waiters        map[uint64]chan protocol.PageMessage
	listeners      map[string][]listenerEntry
	lastListenerID ListenerID
	closed         bool

	stopListening func()
}

// New installs the provider on the page channel and announces it.
func New(channel *pagechan.Channel, opts ...Option) *Provider {
	p := &Provider{
		channel: channel,
		timeout: DefaultTimeout,
		info: protocol.ProviderInfo{
			UUID: uuid.New().String(),
			Name: DefaultName,
			Icon: DefaultIcon,
			RDNS: DefaultRDNS,
		},
		waiters:   make(map[uint64]chan protocol.PageMessage),
		listeners: make(map[string][]listenerEntry),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.stopListening = channel.Listen(p.onMessage)
	p.announce()
	return p
}

func (p *Provider) IsCodeCrypto() bool { return true }

// IsMetaMask is false so that dApps do not mistake the provider for
// MetaMask.
func (p *Provider) IsMetaMask() bool { return false }

func (p *Provider) Info() protocol.ProviderInfo {
	return p.info
}

// Request sends the call to the wallet and waits for its response, the
// provider timeout or the cancellation of ctx, whichever comes first.
func (p *Provider) Request(ctx context.Context, args RequestArguments) (json.RawMessage, error) {
	if args.Method == "" {
		return nil, fmt.Errorf("missing method")
	}
	params, err := encodeParams(args.Params)
	if err != nil {
		return nil, err
	}

	id := atomic.AddUint64(&p.lastRequestID, 1)
	waiter := make(chan protocol.PageMessage, 1)

	p.lock.Lock()
	if p.closed {
		p.lock.Unlock()
		return nil, ErrClosed
	}
	p.waiters[id] = waiter
	p.lock.Unlock()
	defer p.removeWaiter(id)

	if err := p.channel.Post(protocol.NewRequest(id, args.Method, params)); err != nil {
		return nil, err
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-waiter:
		if !ok {
			return nil, ErrClosed
		}
		if resp.Error != "" {
			return nil, protocol.RemoteError(resp.Error)
		}
		if len(resp.Result) <= 0 {
			return json.RawMessage("null"), nil
		}
		return resp.Result, nil
	case <-timer.C:
		log.WithField("method", args.Method).Warn("request timed out")
		return nil, ErrRequestTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// On registers the listener for the event.
func (p *Provider) On(event string, fn Listener) ListenerID {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.lastListenerID++
	id := p.lastListenerID
	p.listeners[event] = append(p.listeners[event], listenerEntry{id, fn})
	return id
}

func (p *Provider) RemoveListener(event string, id ListenerID) {
	p.lock.Lock()
	defer p.lock.Unlock()

	entries := p.listeners[event]
	for i, e := range entries {
		if e.id == id {
			p.listeners[event] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// RemoveAllListeners removes the listeners of the given events, or of every
// event if none is given.
func (p *Provider) RemoveAllListeners(events ...string) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if len(events) <= 0 {
		p.listeners = make(map[string][]listenerEntry)
		return
	}
	for _, e := range events {
		delete(p.listeners, e)
	}
}

// Close detaches the provider from the page channel and fails the pending
// requests.
func (p *Provider) Close() {
	p.lock.Lock()
	if p.closed {
		p.lock.Unlock()
		return
	}
	p.closed = true
	for id, w := range p.waiters {
		close(w)
		delete(p.waiters, id)
	}
	p.lock.Unlock()

	p.stopListening()
}

func (p *Provider) onMessage(msg protocol.PageMessage) {
	switch msg.Type {
	case protocol.TypeResponse:
		p.lock.Lock()
		if waiter, ok := p.waiters[msg.ID]; ok {
			delete(p.waiters, msg.ID)
			waiter <- msg
		}
		p.lock.Unlock()
	case protocol.TypeEvent:
		p.emit(msg.EventName, msg.Data)
	case protocol.TypeRequestProvider:
		p.announce()
	}
}

func (p *Provider) emit(event string, data json.RawMessage) {
	p.lock.Lock()
	entries := append([]listenerEntry{}, p.listeners[event]...)
	p.lock.Unlock()

	for _, e := range entries {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithField("event", event).Warnf("listener panicked: %v", r)
				}
			}()
			e.fn(data)
		}()
	}
}

func (p *Provider) announce() {
	info := p.info
	if err := p.channel.Post(protocol.PageMessage{
		Type:   protocol.TypeAnnounceProvider,
		Detail: &protocol.ProviderDetail{Info: info},
	}); err != nil {
		log.WithError(err).Debug("failed to announce provider")
	}
}

func (p *Provider) removeWaiter(id uint64) {
	p.lock.Lock()
	delete(p.waiters, id)
	p.lock.Unlock()
}

func encodeParams(params interface{}) (json.RawMessage, error) {
	if params == nil {
		return json.RawMessage("[]"), nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	buf, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	return buf, nil
}
