package orchestrator_test

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// **** Key custody ****

type mockCustody struct {
	mock.Mock
}

func (m *mockCustody) ValidateSecret(secret string) error {
	args := m.Called(secret)
	return args.Error(0)
}

func (m *mockCustody) DeriveAddresses(secret string, count int) ([]string, error) {
	args := m.Called(secret, count)

	var res []string
	if a := args.Get(0); a != nil {
		res = a.([]string)
	}
	return res, args.Error(1)
}

func (m *mockCustody) SignTransaction(
	secret string, index int, tx domain.TxRequest,
) ([]byte, error) {
	args := m.Called(secret, index, tx)

	var res []byte
	if a := args.Get(0); a != nil {
		res = a.([]byte)
	}
	return res, args.Error(1)
}

func (m *mockCustody) SignTypedData(
	secret string, index int, typedData []byte,
) (string, error) {
	args := m.Called(secret, index, typedData)

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res, args.Error(1)
}

// **** Chain ****

type mockChainProvider struct {
	mock.Mock
}

func (m *mockChainProvider) Client(
	ctx context.Context, cfg domain.ChainConfig,
) (ports.ChainClient, error) {
	args := m.Called(ctx, cfg)

	var res ports.ChainClient
	if a := args.Get(0); a != nil {
		res = a.(ports.ChainClient)
	}
	return res, args.Error(1)
}

type mockChainClient struct {
	mock.Mock
}

func (m *mockChainClient) Endpoint() string {
	args := m.Called()
	return args.String(0)
}

func (m *mockChainClient) BalanceAt(ctx context.Context, address string) (*big.Int, error) {
	args := m.Called(ctx, address)

	var res *big.Int
	if a := args.Get(0); a != nil {
		res = a.(*big.Int)
	}
	return res, args.Error(1)
}

func (m *mockChainClient) FeeData(ctx context.Context) (domain.FeeData, error) {
	args := m.Called(ctx)

	var res domain.FeeData
	if a := args.Get(0); a != nil {
		res = a.(domain.FeeData)
	}
	return res, args.Error(1)
}

func (m *mockChainClient) PendingNonceAt(ctx context.Context, address string) (uint64, error) {
	args := m.Called(ctx, address)

	var res uint64
	if a := args.Get(0); a != nil {
		res = a.(uint64)
	}
	return res, args.Error(1)
}

func (m *mockChainClient) EstimateGas(
	ctx context.Context, from string, params domain.TxParams,
) (uint64, error) {
	args := m.Called(ctx, from, params)

	var res uint64
	if a := args.Get(0); a != nil {
		res = a.(uint64)
	}
	return res, args.Error(1)
}

func (m *mockChainClient) SendRawTransaction(ctx context.Context, rawTx []byte) (string, error) {
	args := m.Called(ctx, rawTx)

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res, args.Error(1)
}

// **** Approval surface ****

type fakeWindows struct {
	lock    sync.Mutex
	count   int
	open    map[string]ports.Window
	closed  []string
	openErr error
	opened  chan ports.OpenWindow
}

func newFakeWindows() *fakeWindows {
	return &fakeWindows{
		open:   make(map[string]ports.Window),
		opened: make(chan ports.OpenWindow, 16),
	}
}

func (f *fakeWindows) Open(_ context.Context, w ports.Window) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.openErr != nil {
		return "", f.openErr
	}
	f.count++
	id := fmt.Sprintf("window-%d", f.count)
	f.open[id] = w
	f.opened <- ports.OpenWindow{ID: id, Window: w}
	return id, nil
}

func (f *fakeWindows) Close(windowID string) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if _, ok := f.open[windowID]; !ok {
		return
	}
	delete(f.open, windowID)
	f.closed = append(f.closed, windowID)
}

func (f *fakeWindows) List() []ports.OpenWindow {
	f.lock.Lock()
	defer f.lock.Unlock()

	list := make([]ports.OpenWindow, 0, len(f.open))
	for id, w := range f.open {
		list = append(list, ports.OpenWindow{ID: id, Window: w})
	}
	return list
}

func (f *fakeWindows) isClosed(windowID string) bool {
	f.lock.Lock()
	defer f.lock.Unlock()

	for _, id := range f.closed {
		if id == windowID {
			return true
		}
	}
	return false
}

type fakeBroadcaster struct {
	lock   sync.Mutex
	events []ports.Event
}

func (f *fakeBroadcaster) Broadcast(event ports.Event) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeBroadcaster) received() []ports.Event {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]ports.Event(nil), f.events...)
}

type fakeIndicator struct {
	lock   sync.Mutex
	counts map[domain.WindowKind][]int
}

func (f *fakeIndicator) SetPending(kind domain.WindowKind, count int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.counts == nil {
		f.counts = make(map[domain.WindowKind][]int)
	}
	f.counts[kind] = append(f.counts[kind], count)
}

func (f *fakeIndicator) history(kind domain.WindowKind) []int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]int(nil), f.counts[kind]...)
}

// **** Store ****

// heldStore delays the change notifications of the active account index so
// that tests can deliver them in any order.
type heldStore struct {
	ports.Store

	lock    sync.Mutex
	handler func(ports.StoreChange)
	held    []ports.StoreChange
}

func (h *heldStore) Subscribe(handler func(ports.StoreChange)) func() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.handler = handler
	return func() {
		h.lock.Lock()
		h.handler = nil
		h.lock.Unlock()
	}
}

func (h *heldStore) Set(ctx context.Context, key string, value []byte) error {
	old, _ := h.Store.Get(ctx, key)
	if err := h.Store.Set(ctx, key, value); err != nil {
		return err
	}
	change := ports.StoreChange{Key: key, OldValue: old, NewValue: value}

	h.lock.Lock()
	handler := h.handler
	if key == domain.CurrentAccountKey {
		h.held = append(h.held, change)
		handler = nil
	}
	h.lock.Unlock()

	if handler != nil {
		handler(change)
	}
	return nil
}

// releaseReversed delivers the held notifications, last write first.
func (h *heldStore) releaseReversed() {
	h.lock.Lock()
	held, handler := h.held, h.handler
	h.held = nil
	h.lock.Unlock()

	for i := len(held) - 1; i >= 0; i-- {
		handler(held[i])
	}
}
