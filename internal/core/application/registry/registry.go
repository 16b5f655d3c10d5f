// Package registry holds the in-memory records of requests waiting for a
// human decision. Each record reaches exactly one terminal state: it is
// either approved, rejected or expired, whichever happens first.
package registry

import (
	"errors"
	"sync"
	"time"
)

// ErrExpired is the default error delivered to waiters whose record timed
// out.
var ErrExpired = errors.New("request expired")

type State int

const (
	Created State = iota
	AwaitingDecision
	Approved
	Rejected
	TimedOut
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case AwaitingDecision:
		return "awaiting_decision"
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

func (s State) IsTerminal() bool {
	return s >= Approved
}

// Outcome is delivered exactly once to the waiter of a record.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Settlement is passed to the OnSettle hook once a record left the registry.
type Settlement[R any] struct {
	ID        uint64
	Record    R
	State     State
	Remaining int
}

type Options[R any] struct {
	// Timeout after which a record expires. Zero disables expiration.
	Timeout time.Duration
	// TimeoutErr is delivered to the waiter on expiration.
	TimeoutErr error
	// OnCreate is invoked after a record is inserted, with the number of
	// records in the registry.
	OnCreate func(id uint64, count int)
	// OnSettle is invoked after a record reached its terminal state and
	// before its outcome is delivered.
	OnSettle func(s Settlement[R])
}

type entry[R, T any] struct {
	record R
	state  State
	timer  *time.Timer
	result chan Outcome[T]
}

// Registry owns records of type R whose waiters receive a T on approval.
type Registry[R, T any] struct {
	lock    sync.Mutex
	lastID  uint64
	entries map[uint64]*entry[R, T]
	opts    Options[R]
}

func New[R, T any](opts Options[R]) *Registry[R, T] {
	if opts.TimeoutErr == nil {
		opts.TimeoutErr = ErrExpired
	}
	return &Registry[R, T]{
		entries: make(map[uint64]*entry[R, T]),
		opts:    opts,
	}
}

// Create inserts a new record and starts its expiration timer. The returned
// channel receives the single outcome of the record.
func (r *Registry[R, T]) Create(record R) (uint64, <-chan Outcome[T]) {
	r.lock.Lock()
	r.lastID++
	id := r.lastID
	e := &entry[R, T]{
		record: record,
		state:  Created,
		result: make(chan Outcome[T], 1),
	}
	if r.opts.Timeout > 0 {
		e.timer = time.AfterFunc(r.opts.Timeout, func() { r.Expire(id) })
	}
	r.entries[id] = e
	count := len(r.entries)
	r.lock.Unlock()

	if r.opts.OnCreate != nil {
		r.opts.OnCreate(id, count)
	}
	return id, e.result
}

// MarkAwaiting moves a created record to AwaitingDecision.
func (r *Registry[R, T]) MarkAwaiting(id uint64) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	e, ok := r.entries[id]
	if !ok || e.state != Created {
		return false
	}
	e.state = AwaitingDecision
	return true
}

// Update mutates the record in place if still pending.
func (r *Registry[R, T]) Update(id uint64, fn func(record *R)) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}
	fn(&e.record)
	return true
}

// Get returns a pending record and its state.
func (r *Registry[R, T]) Get(id uint64) (R, State, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	e, ok := r.entries[id]
	if !ok {
		var zero R
		return zero, 0, false
	}
	return e.record, e.state, true
}

// List returns the ids of all pending records.
func (r *Registry[R, T]) List() []uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()

	ids := make([]uint64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry[R, T]) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.entries)
}

// Resolve approves the record. It returns false if the record already
// settled or never existed.
func (r *Registry[R, T]) Resolve(id uint64, value T) bool {
	return r.settle(id, Approved, Outcome[T]{Value: value})
}

// Reject rejects the record with the given error.
func (r *Registry[R, T]) Reject(id uint64, err error) bool {
	return r.settle(id, Rejected, Outcome[T]{Err: err})
}

// Expire times the record out.
func (r *Registry[R, T]) Expire(id uint64) bool {
	return r.settle(id, TimedOut, Outcome[T]{Err: r.opts.TimeoutErr})
}

func (r *Registry[R, T]) settle(id uint64, state State, out Outcome[T]) bool {
	r.lock.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.lock.Unlock()
		return false
	}
	delete(r.entries, id)
	if e.timer != nil {
		e.timer.Stop()
	}
	e.state = state
	remaining := len(r.entries)
	r.lock.Unlock()

	if r.opts.OnSettle != nil {
		r.opts.OnSettle(Settlement[R]{id, e.record, state, remaining})
	}
	e.result <- out
	close(e.result)
	return true
}
