package registry_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RoseGit/MasterBlockchain/internal/core/application/registry"
	"github.com/stretchr/testify/require"
)

var errTimeout = errors.New("timeout")

type record struct {
	name string
}

func newRegistry(timeout time.Duration, settled *[]registry.Settlement[record]) *registry.Registry[record, string] {
	lock := &sync.Mutex{}
	return registry.New[record, string](registry.Options[record]{
		Timeout:    timeout,
		TimeoutErr: errTimeout,
		OnSettle: func(s registry.Settlement[record]) {
			lock.Lock()
			defer lock.Unlock()
			if settled != nil {
				*settled = append(*settled, s)
			}
		},
	})
}

func TestIdsAreMonotonic(t *testing.T) {
	reg := newRegistry(time.Minute, nil)

	var last uint64
	for i := 0; i < 10; i++ {
		id, _ := reg.Create(record{})
		require.Greater(t, id, last)
		last = id
	}
	// ids of settled records are never reused
	require.True(t, reg.Resolve(last, "ok"))
	id, _ := reg.Create(record{})
	require.Equal(t, last+1, id)
}

func TestResolve(t *testing.T) {
	var settled []registry.Settlement[record]
	reg := newRegistry(time.Minute, &settled)

	id, wait := reg.Create(record{"a"})
	require.True(t, reg.MarkAwaiting(id))
	_, state, ok := reg.Get(id)
	require.True(t, ok)
	require.Equal(t, registry.AwaitingDecision, state)

	require.True(t, reg.Resolve(id, "account"))

	out := <-wait
	require.NoError(t, out.Err)
	require.Equal(t, "account", out.Value)

	_, _, ok = reg.Get(id)
	require.False(t, ok)
	require.Zero(t, reg.Len())

	require.Len(t, settled, 1)
	require.Equal(t, registry.Approved, settled[0].State)
	require.Equal(t, "a", settled[0].Record.name)

	// any later transition is a no-op
	require.False(t, reg.Reject(id, errors.New("late")))
	require.False(t, reg.Expire(id))
	require.False(t, reg.Resolve(id, "again"))
	require.False(t, reg.MarkAwaiting(id))
	require.Len(t, settled, 1)

	_, more := <-wait
	require.False(t, more)
}

func TestReject(t *testing.T) {
	reg := newRegistry(time.Minute, nil)
	rejectErr := errors.New("user rejected")

	id, wait := reg.Create(record{})
	require.True(t, reg.Reject(id, rejectErr))

	out := <-wait
	require.ErrorIs(t, out.Err, rejectErr)
	require.Empty(t, out.Value)
	require.False(t, reg.Resolve(id, "late"))
}

func TestExpire(t *testing.T) {
	var settled []registry.Settlement[record]
	reg := newRegistry(20*time.Millisecond, &settled)

	id, wait := reg.Create(record{})

	select {
	case out := <-wait:
		require.ErrorIs(t, out.Err, errTimeout)
	case <-time.After(time.Second):
		t.Fatal("record did not expire")
	}

	_, _, ok := reg.Get(id)
	require.False(t, ok)
	require.False(t, reg.Resolve(id, "late"))
	require.Len(t, settled, 1)
	require.Equal(t, registry.TimedOut, settled[0].State)
}

func TestNoTimeout(t *testing.T) {
	reg := registry.New[record, string](registry.Options[record]{})

	id, wait := reg.Create(record{})
	select {
	case <-wait:
		t.Fatal("record must not settle on its own")
	case <-time.After(30 * time.Millisecond):
	}
	require.True(t, reg.Expire(id))
	out := <-wait
	require.ErrorIs(t, out.Err, registry.ErrExpired)
}

func TestIndependentRecords(t *testing.T) {
	reg := newRegistry(50*time.Millisecond, nil)

	first, waitFirst := reg.Create(record{"first"})
	second, waitSecond := reg.Create(record{"second"})
	require.NotEqual(t, first, second)

	require.True(t, reg.Resolve(first, "ok"))
	out := <-waitFirst
	require.Equal(t, "ok", out.Value)

	r, state, ok := reg.Get(second)
	require.True(t, ok)
	require.Equal(t, registry.Created, state)
	require.Equal(t, "second", r.name)

	out = <-waitSecond
	require.ErrorIs(t, out.Err, errTimeout)
}

func TestUpdate(t *testing.T) {
	reg := newRegistry(time.Minute, nil)

	id, _ := reg.Create(record{})
	require.True(t, reg.Update(id, func(r *record) { r.name = "window-1" }))
	r, _, _ := reg.Get(id)
	require.Equal(t, "window-1", r.name)

	reg.Reject(id, errors.New("no"))
	require.False(t, reg.Update(id, func(r *record) {}))
}

func TestExactlyOneTerminalTransition(t *testing.T) {
	var settled []registry.Settlement[record]
	reg := newRegistry(time.Millisecond, &settled)

	const n = 50
	waits := make([]<-chan registry.Outcome[string], 0, n)
	ids := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		id, wait := reg.Create(record{})
		ids = append(ids, id)
		waits = append(waits, wait)
	}

	wg := &sync.WaitGroup{}
	for _, id := range ids {
		id := id
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Resolve(id, "ok")
		}()
		go func() {
			defer wg.Done()
			reg.Reject(id, errors.New("no"))
		}()
	}
	wg.Wait()

	for _, wait := range waits {
		count := 0
		for range wait {
			count++
		}
		require.Equal(t, 1, count)
	}
	require.Len(t, settled, n)
	require.Zero(t, reg.Len())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "timed_out", registry.TimedOut.String())
	require.True(t, registry.Rejected.IsTerminal())
	require.False(t, registry.AwaitingDecision.IsTerminal())
}
