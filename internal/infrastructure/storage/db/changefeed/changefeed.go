// Package changefeed fans store mutations out to the subscribed handlers.
package changefeed

import (
	"bytes"
	"sync"

	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
)

type Feed struct {
	lock     sync.RWMutex
	lastID   int
	handlers map[int]func(ports.StoreChange)
}

func New() *Feed {
	return &Feed{handlers: make(map[int]func(ports.StoreChange))}
}

// Subscribe registers handler and returns the func to remove it.
func (f *Feed) Subscribe(handler func(ports.StoreChange)) func() {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.lastID++
	id := f.lastID
	f.handlers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			f.lock.Lock()
			delete(f.handlers, id)
			f.lock.Unlock()
		})
	}
}

// Publish invokes every handler with the change, unless the value did not
// actually change.
func (f *Feed) Publish(change ports.StoreChange) {
	if change.OldValue == nil && change.NewValue == nil {
		return
	}
	if change.OldValue != nil && change.NewValue != nil &&
		bytes.Equal(change.OldValue, change.NewValue) {
		return
	}

	f.lock.RLock()
	handlers := make([]func(ports.StoreChange), 0, len(f.handlers))
	for id := 1; id <= f.lastID; id++ {
		if h, ok := f.handlers[id]; ok {
			handlers = append(handlers, h)
		}
	}
	f.lock.RUnlock()

	for _, h := range handlers {
		h(change)
	}
}
