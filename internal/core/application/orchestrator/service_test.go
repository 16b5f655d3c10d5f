package orchestrator_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/RoseGit/MasterBlockchain/internal/core/application/orchestrator"
	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
	"github.com/RoseGit/MasterBlockchain/internal/infrastructure/storage/db/inmemory"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	secret        = "test test test test test test test test test test test junk"
	localEndpoint = "http://127.0.0.1:8545"
	dappOrigin    = "https://app.example"
)

var (
	addr0 = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	addr1 = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

type testWallet struct {
	svc       *orchestrator.Service
	store     ports.Store
	custody   *mockCustody
	chains    *mockChainProvider
	client    *mockChainClient
	windows   *fakeWindows
	events    *fakeBroadcaster
	indicator *fakeIndicator
}

type callResult struct {
	value interface{}
	err   error
}

func newTestWallet(
	t *testing.T, configured bool, tune ...func(*orchestrator.Options),
) *testWallet {
	ctx := context.Background()
	w := &testWallet{
		store:     inmemory.NewStore(),
		custody:   &mockCustody{},
		chains:    &mockChainProvider{},
		client:    &mockChainClient{},
		windows:   newFakeWindows(),
		events:    &fakeBroadcaster{},
		indicator: &fakeIndicator{},
	}

	if configured {
		mustSet(t, w.store, domain.SecretKey, secret)
		mustSet(t, w.store, domain.AccountsKey, []string{addr0, addr1})
		mustSet(t, w.store, domain.CurrentAccountKey, "0")
	}

	opts := orchestrator.Options{
		Store:       w.store,
		Custody:     w.custody,
		Chains:      w.chains,
		Windows:     w.windows,
		Broadcaster: w.events,
		Indicator:   w.indicator,
		Endpoints:   domain.Endpoints{domain.DefaultChainId: localEndpoint},
	}
	for _, fn := range tune {
		fn(&opts)
	}

	svc, err := orchestrator.NewService(opts)
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx))
	t.Cleanup(svc.Stop)
	w.svc = svc

	w.chains.On("Client", mock.Anything, domain.ChainConfig{
		ChainId:     domain.DefaultChainId,
		RpcEndpoint: localEndpoint,
	}).Return(w.client, nil)
	w.client.On("Endpoint").Return(localEndpoint)

	return w
}

func (w *testWallet) call(origin, method, params string) <-chan callResult {
	done := make(chan callResult, 1)
	go func() {
		var raw json.RawMessage
		if params != "" {
			raw = json.RawMessage(params)
		}
		v, err := w.svc.Dispatch(context.Background(), origin, method, raw)
		done <- callResult{v, err}
	}()
	return done
}

func (w *testWallet) nextWindow(t *testing.T, kind domain.WindowKind) ports.OpenWindow {
	t.Helper()
	select {
	case win := <-w.windows.opened:
		require.Equal(t, kind, win.Kind)
		return win
	case <-time.After(2 * time.Second):
		t.Fatal("no window opened")
	}
	return ports.OpenWindow{}
}

func waitResult(t *testing.T, done <-chan callResult) callResult {
	t.Helper()
	select {
	case res := <-done:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("call did not return")
	}
	return callResult{}
}

func mustSet(t *testing.T, store ports.Store, key string, v interface{}) {
	buf, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), key, buf))
}

func mustGet(t *testing.T, store ports.Store, key string, v interface{}) {
	buf, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(buf, v))
}

func requireMissing(t *testing.T, store ports.Store, key string) {
	_, err := store.Get(context.Background(), key)
	require.ErrorIs(t, err, ports.ErrKeyNotFound)
}

func TestNewService(t *testing.T) {
	valid := orchestrator.Options{
		Store:       inmemory.NewStore(),
		Custody:     &mockCustody{},
		Chains:      &mockChainProvider{},
		Windows:     newFakeWindows(),
		Broadcaster: &fakeBroadcaster{},
	}

	tests := []struct {
		name string
		tune func(o *orchestrator.Options)
	}{
		{"missing store", func(o *orchestrator.Options) { o.Store = nil }},
		{"missing custody", func(o *orchestrator.Options) { o.Custody = nil }},
		{"missing chains", func(o *orchestrator.Options) { o.Chains = nil }},
		{"missing windows", func(o *orchestrator.Options) { o.Windows = nil }},
		{"missing broadcaster", func(o *orchestrator.Options) { o.Broadcaster = nil }},
		{"invalid default chain", func(o *orchestrator.Options) { o.DefaultChainId = "31337" }},
		{"too many default accounts", func(o *orchestrator.Options) {
			o.DefaultAccountsCount = domain.MaxAccountsCount + 1
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			tt.tune(&opts)
			_, err := orchestrator.NewService(opts)
			require.Error(t, err)
		})
	}

	svc, err := orchestrator.NewService(valid)
	require.NoError(t, err)
	chainId, err := svc.ChainId(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.DefaultChainId, chainId)
}

func TestAccountsOfUnknownOrigin(t *testing.T) {
	w := newTestWallet(t, true)

	res := waitResult(t, w.call(dappOrigin, domain.MethodAccounts, ""))
	require.NoError(t, res.err)
	require.Equal(t, []string{}, res.value)
}

func TestConnection(t *testing.T) {
	w := newTestWallet(t, true)
	ctx := context.Background()

	done := w.call(dappOrigin+"/some/page", domain.MethodRequestAccount, "[]")
	win := w.nextWindow(t, domain.ConnectionWindow)

	var record domain.ConnectionRecord
	require.NoError(t, json.Unmarshal(win.Request, &record))
	require.Equal(t, win.RequestID, record.RequestID)
	require.Equal(t, dappOrigin, record.Origin)
	require.Equal(t, []string{addr0, addr1}, record.Accounts)
	require.Zero(t, record.CurrentAccountIndex)

	var persisted domain.ConnectionRecord
	mustGet(t, w.store, domain.PendingConnectRequest, &persisted)
	require.Equal(t, record, persisted)

	require.True(t, w.svc.HandleConnectResponse(win.RequestID, domain.ConnectDecision{
		Approved: true,
		Account:  "0x70997970c51812dc3a010c7d01b50e0d17dc79c8",
	}))

	res := waitResult(t, done)
	require.NoError(t, res.err)
	require.Equal(t, []string{addr1}, res.value)

	require.True(t, w.windows.isClosed(win.ID))
	requireMissing(t, w.store, domain.PendingConnectRequest)
	require.Equal(t, []int{1, 0}, w.indicator.history(domain.ConnectionWindow))

	accounts, err := w.svc.Accounts(ctx, "https://APP.example:443")
	require.NoError(t, err)
	require.Equal(t, []string{addr1}, accounts)

	// A second decision for the same request changes nothing.
	require.False(t, w.svc.HandleConnectResponse(win.RequestID, domain.ConnectDecision{
		Approved: true, Account: addr0,
	}))

	t.Run("active account change repoints connected sites", func(t *testing.T) {
		account, err := w.svc.SelectAccount(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, addr1, account)
		account, err = w.svc.SelectAccount(ctx, 0)
		require.NoError(t, err)
		require.Equal(t, addr0, account)

		accounts, err := w.svc.Accounts(ctx, dappOrigin)
		require.NoError(t, err)
		require.Equal(t, []string{addr0}, accounts)

		var sites domain.ConnectedSites
		mustGet(t, w.store, domain.ConnectedSitesKey, &sites)
		require.Equal(t, domain.ConnectedSites{dappOrigin: addr0}, sites)

		events := w.events.received()
		require.NotEmpty(t, events)
		last := events[len(events)-1]
		require.Equal(t, domain.EventAccountsChanged, last.Name)
		require.JSONEq(t, `["`+addr0+`"]`, string(last.Data))
	})
}

func TestAccountChangesDeliveredOutOfOrder(t *testing.T) {
	held := &heldStore{}
	w := newTestWallet(t, true, func(o *orchestrator.Options) {
		held.Store = o.Store
		o.Store = held
	})
	ctx := context.Background()
	mustSet(t, w.store, domain.ConnectedSitesKey, domain.ConnectedSites{dappOrigin: addr0})

	_, err := w.svc.SelectAccount(ctx, 1)
	require.NoError(t, err)
	_, err = w.svc.SelectAccount(ctx, 0)
	require.NoError(t, err)

	// The switch to account 1 is the last notification handled.
	held.releaseReversed()

	accounts, err := w.svc.Accounts(ctx, dappOrigin)
	require.NoError(t, err)
	require.Equal(t, []string{addr0}, accounts)

	var sites domain.ConnectedSites
	mustGet(t, w.store, domain.ConnectedSitesKey, &sites)
	require.Equal(t, domain.ConnectedSites{dappOrigin: addr0}, sites)

	events := w.events.received()
	require.Len(t, events, 2)
	for _, ev := range events {
		require.Equal(t, domain.EventAccountsChanged, ev.Name)
		require.JSONEq(t, `["`+addr0+`"]`, string(ev.Data))
	}
}

func TestConnectionDefaultsToActiveAccount(t *testing.T) {
	w := newTestWallet(t, true)

	done := w.call(dappOrigin, domain.MethodRequestAccount, "")
	win := w.nextWindow(t, domain.ConnectionWindow)
	require.True(t, w.svc.HandleConnectResponse(win.RequestID, domain.ConnectDecision{
		Approved: true,
	}))

	res := waitResult(t, done)
	require.NoError(t, res.err)
	require.Equal(t, []string{addr0}, res.value)
}

func TestConnectionWithAccountNotOffered(t *testing.T) {
	w := newTestWallet(t, true)

	done := w.call(dappOrigin, domain.MethodRequestAccount, "")
	win := w.nextWindow(t, domain.ConnectionWindow)
	require.True(t, w.svc.HandleConnectResponse(win.RequestID, domain.ConnectDecision{
		Approved: true,
		Account:  "0x0000000000000000000000000000000000000001",
	}))

	res := waitResult(t, done)
	require.ErrorIs(t, res.err, domain.ErrInvalidAccountIndex)

	accounts, err := w.svc.Accounts(context.Background(), dappOrigin)
	require.NoError(t, err)
	require.Empty(t, accounts)
}

func TestConnectionDeclined(t *testing.T) {
	w := newTestWallet(t, true)

	done := w.call(dappOrigin, domain.MethodRequestAccount, "")
	win := w.nextWindow(t, domain.ConnectionWindow)
	require.True(t, w.svc.HandleConnectResponse(win.RequestID, domain.ConnectDecision{
		Reason: "not today",
	}))

	res := waitResult(t, done)
	require.ErrorIs(t, res.err, domain.ErrUserRejectedConnection)
	require.EqualError(t, res.err, "not today")

	accounts, err := w.svc.Accounts(context.Background(), dappOrigin)
	require.NoError(t, err)
	require.Empty(t, accounts)
	requireMissing(t, w.store, domain.ConnectedSitesKey)
}

func TestConnectionTimeout(t *testing.T) {
	w := newTestWallet(t, true, func(o *orchestrator.Options) {
		o.ConnectionTimeout = 50 * time.Millisecond
	})

	done := w.call(dappOrigin, domain.MethodRequestAccount, "")
	win := w.nextWindow(t, domain.ConnectionWindow)

	res := waitResult(t, done)
	require.ErrorIs(t, res.err, domain.ErrConnectionTimeout)

	require.False(t, w.svc.HandleConnectResponse(win.RequestID, domain.ConnectDecision{
		Approved: true, Account: addr0,
	}))
	require.Eventually(t, func() bool {
		return w.windows.isClosed(win.ID)
	}, time.Second, 10*time.Millisecond)
	requireMissing(t, w.store, domain.PendingConnectRequest)

	accounts, err := w.svc.Accounts(context.Background(), dappOrigin)
	require.NoError(t, err)
	require.Empty(t, accounts)
}

func TestConcurrentConnections(t *testing.T) {
	w := newTestWallet(t, true)

	origins := map[string]string{
		"https://a.example": addr0,
		"https://b.example": addr1,
	}
	results := map[string]<-chan callResult{}
	for origin := range origins {
		results[origin] = w.call(origin, domain.MethodRequestAccount, "")
	}

	ids := map[uint64]bool{}
	for i := 0; i < len(origins); i++ {
		win := w.nextWindow(t, domain.ConnectionWindow)
		require.False(t, ids[win.RequestID])
		ids[win.RequestID] = true

		var record domain.ConnectionRecord
		require.NoError(t, json.Unmarshal(win.Request, &record))
		require.True(t, w.svc.HandleConnectResponse(win.RequestID, domain.ConnectDecision{
			Approved: true, Account: origins[record.Origin],
		}))
	}

	for origin, done := range results {
		res := waitResult(t, done)
		require.NoError(t, res.err)
		require.Equal(t, []string{origins[origin]}, res.value)
	}

	var sites domain.ConnectedSites
	mustGet(t, w.store, domain.ConnectedSitesKey, &sites)
	require.Equal(t, domain.ConnectedSites(origins), sites)
}

func TestRequestAccountsWithoutAccounts(t *testing.T) {
	w := newTestWallet(t, false)

	res := waitResult(t, w.call(dappOrigin, domain.MethodRequestAccount, ""))
	require.ErrorIs(t, res.err, domain.ErrNoAccounts)
	require.Empty(t, w.windows.List())
	require.Empty(t, w.indicator.history(domain.ConnectionWindow))
}

func TestRequestAccountsWithoutSurface(t *testing.T) {
	w := newTestWallet(t, true)
	w.windows.openErr = errors.New("no display")

	res := waitResult(t, w.call(dappOrigin, domain.MethodRequestAccount, ""))
	require.ErrorIs(t, res.err, domain.ErrSurfaceUnavailable)
	requireMissing(t, w.store, domain.PendingConnectRequest)
}

const txParams = `[{"to":"0x70997970C51812dc3A010C7d01b50e0d17dc79C8","value":"0x3e8","gas":"0x5208"}]`

func TestSendTransaction(t *testing.T) {
	w := newTestWallet(t, true)

	w.client.On("FeeData", mock.Anything).Return(domain.FeeData{
		MaxFeePerGas:         big.NewInt(3_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(1_000_000_000),
	}, nil)
	w.client.On("PendingNonceAt", mock.Anything, addr0).Return(uint64(3), nil)
	w.custody.On("SignTransaction", secret, 0, mock.MatchedBy(func(tx domain.TxRequest) bool {
		return tx.ChainId.Cmp(big.NewInt(31337)) == 0 &&
			tx.Nonce == 3 &&
			tx.Gas == 21000 &&
			tx.To == addr1 &&
			tx.Value.Cmp(big.NewInt(1000)) == 0 &&
			tx.MaxFeePerGas.Cmp(big.NewInt(3_000_000_000)) == 0
	})).Return([]byte{0x02, 0xf8}, nil)
	w.client.On("SendRawTransaction", mock.Anything, []byte{0x02, 0xf8}).Return("0xhash", nil)

	done := w.call(dappOrigin, domain.MethodSendTx, txParams)
	win := w.nextWindow(t, domain.ApprovalWindow)

	var record domain.ApprovalRecord
	mustGet(t, w.store, domain.PendingRequestKey, &record)
	require.Equal(t, win.RequestID, record.ApprovalID)
	require.Equal(t, domain.MethodSendTx, record.Method)
	require.Equal(t, domain.DefaultChainId, record.ChainId)
	require.JSONEq(t, txParams, string(record.Params))

	require.True(t, w.svc.HandleSignResponse(win.RequestID, domain.Decision{Approved: true}))

	res := waitResult(t, done)
	require.NoError(t, res.err)
	require.Equal(t, "0xhash", res.value)

	w.client.AssertNotCalled(t, "EstimateGas", mock.Anything, mock.Anything, mock.Anything)
	w.custody.AssertExpectations(t)
	requireMissing(t, w.store, domain.PendingRequestKey)
	require.True(t, w.windows.isClosed(win.ID))
	require.Equal(t, []int{1, 0}, w.indicator.history(domain.ApprovalWindow))
	require.False(t, w.svc.HandleSignResponse(win.RequestID, domain.Decision{Approved: true}))
}

func TestSendTransactionEstimatesGas(t *testing.T) {
	w := newTestWallet(t, true)

	params := `[{"to":"0x70997970C51812dc3A010C7d01b50e0d17dc79C8","data":"0x01"}]`
	w.client.On("FeeData", mock.Anything).Return(domain.FeeData{
		MaxFeePerGas:         big.NewInt(2),
		MaxPriorityFeePerGas: big.NewInt(1),
	}, nil)
	w.client.On("PendingNonceAt", mock.Anything, addr0).Return(uint64(0), nil)
	w.client.On("EstimateGas", mock.Anything, addr0, mock.Anything).Return(uint64(50000), nil)
	w.custody.On("SignTransaction", secret, 0, mock.MatchedBy(func(tx domain.TxRequest) bool {
		return tx.Gas == 50000 && tx.Value.Sign() == 0 && len(tx.Data) == 1
	})).Return([]byte{0x02}, nil)
	w.client.On("SendRawTransaction", mock.Anything, []byte{0x02}).Return("0xhash", nil)

	done := w.call(dappOrigin, domain.MethodSendTx, params)
	win := w.nextWindow(t, domain.ApprovalWindow)
	require.True(t, w.svc.HandleSignResponse(win.RequestID, domain.Decision{Approved: true}))

	res := waitResult(t, done)
	require.NoError(t, res.err)
	w.client.AssertExpectations(t)
}

func TestSendTransactionRejected(t *testing.T) {
	w := newTestWallet(t, true)

	done := w.call(dappOrigin, domain.MethodSendTx, txParams)
	win := w.nextWindow(t, domain.ApprovalWindow)

	pending := w.svc.PendingWindows()
	require.Len(t, pending, 1)
	require.Equal(t, win.RequestID, pending[0].RequestID)

	require.True(t, w.svc.HandleSignResponse(win.RequestID, domain.Decision{}))

	res := waitResult(t, done)
	require.ErrorIs(t, res.err, domain.ErrUserRejectedApproval)
	require.EqualError(t, res.err, domain.ErrUserRejectedApproval.Error())

	w.client.AssertNotCalled(t, "FeeData", mock.Anything)
	w.custody.AssertNotCalled(t, "SignTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendTransactionTimeout(t *testing.T) {
	w := newTestWallet(t, true, func(o *orchestrator.Options) {
		o.ApprovalTimeout = 50 * time.Millisecond
	})

	done := w.call(dappOrigin, domain.MethodSendTx, txParams)
	win := w.nextWindow(t, domain.ApprovalWindow)

	res := waitResult(t, done)
	require.ErrorIs(t, res.err, domain.ErrApprovalTimeout)
	require.False(t, w.svc.HandleSignResponse(win.RequestID, domain.Decision{Approved: true}))
	w.client.AssertNotCalled(t, "FeeData", mock.Anything)
}

func TestSendTransactionNotConfigured(t *testing.T) {
	w := newTestWallet(t, false)

	res := waitResult(t, w.call(dappOrigin, domain.MethodSendTx, txParams))
	require.ErrorIs(t, res.err, domain.ErrNotConfigured)
	require.Empty(t, w.windows.List())
	require.Empty(t, w.indicator.history(domain.ApprovalWindow))
	requireMissing(t, w.store, domain.PendingRequestKey)
}

func TestSendTransactionNetworkError(t *testing.T) {
	w := newTestWallet(t, true)
	w.client.On("FeeData", mock.Anything).Return(nil, errors.New("connection refused"))

	done := w.call(dappOrigin, domain.MethodSendTx, txParams)
	win := w.nextWindow(t, domain.ApprovalWindow)
	require.True(t, w.svc.HandleSignResponse(win.RequestID, domain.Decision{Approved: true}))

	res := waitResult(t, done)
	require.ErrorIs(t, res.err, domain.ErrNetwork)
	var netErr *domain.NetworkError
	require.ErrorAs(t, res.err, &netErr)
	require.Equal(t, localEndpoint, netErr.Endpoint)
	w.custody.AssertNotCalled(t, "SignTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendTransactionInvalidParams(t *testing.T) {
	w := newTestWallet(t, true)

	res := waitResult(t, w.call(dappOrigin, domain.MethodSendTx, `[{"to":"0x1234"}]`))
	require.ErrorIs(t, res.err, domain.ErrInvalidParams)
	require.Empty(t, w.windows.List())
}

const typedData = `{"types":{"Mail":[{"name":"contents","type":"string"}]},"primaryType":"Mail","domain":{"name":"test"},"message":{"contents":"hi"}}`

func TestSignTypedData(t *testing.T) {
	w := newTestWallet(t, true)
	w.custody.On("DeriveAddresses", secret, 1).Return([]string{addr0}, nil)
	w.custody.On("SignTypedData", secret, 0, []byte(typedData)).Return("0xsig", nil)

	// Payload sent as its JSON string encoding.
	encoded, err := json.Marshal(typedData)
	require.NoError(t, err)
	params := `["0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266",` + string(encoded) + `]`

	done := w.call(dappOrigin, domain.MethodSignTypedData, params)
	win := w.nextWindow(t, domain.ApprovalWindow)

	var record domain.ApprovalRecord
	require.NoError(t, json.Unmarshal(win.Request, &record))
	require.Equal(t, domain.MethodSignTypedData, record.Method)

	require.True(t, w.svc.HandleSignResponse(win.RequestID, domain.Decision{Approved: true}))

	res := waitResult(t, done)
	require.NoError(t, res.err)
	require.Equal(t, "0xsig", res.value)
}

func TestSignTypedDataSignerMismatch(t *testing.T) {
	w := newTestWallet(t, true)
	w.custody.On("DeriveAddresses", secret, 1).Return([]string{addr0}, nil)

	params := `["` + addr1 + `",` + typedData + `]`
	done := w.call(dappOrigin, domain.MethodSignTypedData, params)
	win := w.nextWindow(t, domain.ApprovalWindow)
	require.True(t, w.svc.HandleSignResponse(win.RequestID, domain.Decision{Approved: true}))

	res := waitResult(t, done)
	require.ErrorIs(t, res.err, domain.ErrSignerMismatch)
	w.custody.AssertNotCalled(t, "SignTypedData", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignTypedDataNotConfigured(t *testing.T) {
	w := newTestWallet(t, false)

	params := `["` + addr0 + `",` + typedData + `]`
	res := waitResult(t, w.call(dappOrigin, domain.MethodSignTypedData, params))
	require.ErrorIs(t, res.err, domain.ErrNotConfigured)
	require.Empty(t, w.windows.List())
}

func TestSwitchChain(t *testing.T) {
	w := newTestWallet(t, false)

	res := waitResult(t, w.call(dappOrigin, domain.MethodSwitchChain, `[{"chainId":"0xaa36a7"}]`))
	require.NoError(t, res.err)
	require.Nil(t, res.value)

	res = waitResult(t, w.call(dappOrigin, domain.MethodChainId, ""))
	require.NoError(t, res.err)
	require.Equal(t, "0xaa36a7", res.value)

	events := w.events.received()
	require.Len(t, events, 1)
	require.Equal(t, domain.EventChainChanged, events[0].Name)
	require.JSONEq(t, `"0xaa36a7"`, string(events[0].Data))

	t.Run("same chain broadcasts again", func(t *testing.T) {
		res := waitResult(t, w.call(
			dappOrigin, domain.MethodSwitchChain, `[{"chainId":"0xaa36a7"}]`,
		))
		require.NoError(t, res.err)

		events := w.events.received()
		require.Len(t, events, 2)
		require.Equal(t, domain.EventChainChanged, events[1].Name)
		require.JSONEq(t, `"0xaa36a7"`, string(events[1].Data))
	})

	t.Run("invalid chain", func(t *testing.T) {
		for _, chainId := range []string{"", "0x", "11155111", "0xzz", "0x0"} {
			err := w.svc.SwitchChain(context.Background(), chainId)
			require.ErrorIs(t, err, domain.ErrInvalidChainId, chainId)
		}
		require.Len(t, w.events.received(), 2)
	})

	t.Run("endpoint follows the active chain", func(t *testing.T) {
		cfg, err := w.svc.ChainConfig(context.Background())
		require.NoError(t, err)
		require.Equal(t, domain.ChainConfig{
			ChainId:     "0xaa36a7",
			RpcEndpoint: orchestrator.DefaultFallbackEndpoint,
		}, cfg)
	})
}

func TestGetBalance(t *testing.T) {
	w := newTestWallet(t, true)
	oneEther, _ := new(big.Int).SetString("1000000000000000000", 10)
	w.client.On("BalanceAt", mock.Anything, addr0).Return(oneEther, nil)
	w.client.On("BalanceAt", mock.Anything, addr1).Return(nil, errors.New("timeout"))

	res := waitResult(t, w.call(dappOrigin, domain.MethodGetBalance, ""))
	require.NoError(t, res.err)
	require.Equal(t, "0xde0b6b3a7640000", res.value)

	res = waitResult(t, w.call(dappOrigin, domain.MethodGetBalance, `["`+addr1+`","latest"]`))
	require.ErrorIs(t, res.err, domain.ErrNetwork)

	res = waitResult(t, w.call(dappOrigin, domain.MethodGetBalance, `{"address":"0x"}`))
	require.ErrorIs(t, res.err, domain.ErrInvalidParams)

	res = waitResult(t, w.call(dappOrigin, domain.MethodGetBalance, `["not-an-address"]`))
	require.ErrorIs(t, res.err, domain.ErrInvalidParams)
	w.client.AssertNotCalled(t, "BalanceAt", mock.Anything, "not-an-address")
}

func TestGetBalanceWithoutAccounts(t *testing.T) {
	w := newTestWallet(t, false)

	res := waitResult(t, w.call(dappOrigin, domain.MethodGetBalance, "[]"))
	require.ErrorIs(t, res.err, domain.ErrNoAccounts)
}

func TestDeriveAccounts(t *testing.T) {
	w := newTestWallet(t, false)
	w.custody.On("ValidateSecret", secret).Return(nil)
	w.custody.On("ValidateSecret", "bad").Return(domain.ErrInvalidSecret)
	w.custody.On("DeriveAddresses", secret, domain.DefaultAccountsCount).
		Return([]string{addr0, addr1, "0x3", "0x4", "0x5"}, nil)
	w.custody.On("DeriveAddresses", secret, 2).Return([]string{addr0, addr1}, nil)

	res := waitResult(t, w.call(dappOrigin, domain.MethodDeriveAccounts, `["`+secret+`"]`))
	require.NoError(t, res.err)
	require.Len(t, res.value, domain.DefaultAccountsCount)

	res = waitResult(t, w.call(dappOrigin, domain.MethodDeriveAccounts, `["`+secret+`", 2]`))
	require.NoError(t, res.err)
	require.Equal(t, []string{addr0, addr1}, res.value)

	res = waitResult(t, w.call(dappOrigin, domain.MethodDeriveAccounts, `["bad"]`))
	require.ErrorIs(t, res.err, domain.ErrInvalidSecret)

	for _, count := range []string{"101", "9223372036854775807"} {
		res = waitResult(t, w.call(
			dappOrigin, domain.MethodDeriveAccounts, `["`+secret+`", `+count+`]`,
		))
		require.ErrorIs(t, res.err, domain.ErrInvalidParams, count)
	}
	w.custody.AssertNotCalled(t, "DeriveAddresses", secret, 101)

	// Deriving never touches the wallet state.
	requireMissing(t, w.store, domain.SecretKey)
	requireMissing(t, w.store, domain.AccountsKey)
}

func TestSetupWalletAndSelectAccount(t *testing.T) {
	w := newTestWallet(t, false)
	ctx := context.Background()
	w.custody.On("ValidateSecret", secret).Return(nil)
	w.custody.On("DeriveAddresses", secret, 2).Return([]string{addr0, addr1}, nil)

	_, err := w.svc.SelectAccount(ctx, 0)
	require.ErrorIs(t, err, domain.ErrNoAccounts)

	accounts, err := w.svc.SetupWallet(ctx, " "+secret+" ", 2)
	require.NoError(t, err)
	require.Equal(t, []string{addr0, addr1}, accounts)

	var stored string
	mustGet(t, w.store, domain.SecretKey, &stored)
	require.Equal(t, secret, stored)
	mustGet(t, w.store, domain.CurrentAccountKey, &stored)
	require.Equal(t, "0", stored)
	mustGet(t, w.store, domain.ChainIdKey, &stored)
	require.Equal(t, domain.DefaultChainId, stored)

	account, err := w.svc.SelectAccount(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, addr1, account)

	_, err = w.svc.SelectAccount(ctx, 2)
	require.ErrorIs(t, err, domain.ErrInvalidAccountIndex)

	events := w.events.received()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, domain.EventAccountsChanged, last.Name)
	require.JSONEq(t, `["`+addr1+`"]`, string(last.Data))
}

func TestUnknownMethod(t *testing.T) {
	w := newTestWallet(t, true)

	res := waitResult(t, w.call(dappOrigin, "eth_mine", ""))
	require.ErrorIs(t, res.err, domain.ErrMethodNotImplemented)
	require.Contains(t, res.err.Error(), "eth_mine")
}

func TestInvalidStoredAccountIndex(t *testing.T) {
	w := newTestWallet(t, true)
	mustSet(t, w.store, domain.CurrentAccountKey, "7")

	res := waitResult(t, w.call(dappOrigin, domain.MethodRequestAccount, ""))
	require.ErrorIs(t, res.err, domain.ErrInvalidAccountIndex)
	require.Empty(t, w.windows.List())
}

func TestStopRejectsPendingRequests(t *testing.T) {
	w := newTestWallet(t, true)

	connect := w.call(dappOrigin, domain.MethodRequestAccount, "")
	w.nextWindow(t, domain.ConnectionWindow)
	send := w.call(dappOrigin, domain.MethodSendTx, txParams)
	w.nextWindow(t, domain.ApprovalWindow)

	w.svc.Stop()

	require.ErrorIs(t, waitResult(t, connect).err, domain.ErrWalletClosed)
	require.ErrorIs(t, waitResult(t, send).err, domain.ErrWalletClosed)
	require.Empty(t, w.windows.List())
}

func TestStartClearsStaleRecords(t *testing.T) {
	store := inmemory.NewStore()
	mustSet(t, store, domain.PendingRequestKey, domain.ApprovalRecord{ApprovalID: 4})
	mustSet(t, store, domain.PendingConnectRequest, domain.ConnectionRecord{RequestID: 2})

	svc, err := orchestrator.NewService(orchestrator.Options{
		Store:       store,
		Custody:     &mockCustody{},
		Chains:      &mockChainProvider{},
		Windows:     newFakeWindows(),
		Broadcaster: &fakeBroadcaster{},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	requireMissing(t, store, domain.PendingRequestKey)
	requireMissing(t, store, domain.PendingConnectRequest)
}
