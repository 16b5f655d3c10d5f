// Package pagechan is an in-process message channel with the semantics of a
// page's window.postMessage: posting never blocks, and every message is
// delivered in order to every listener on a single dispatch goroutine.
package pagechan

import (
	"errors"
	"sync"

	"github.com/RoseGit/MasterBlockchain/pkg/protocol"
	log "github.com/sirupsen/logrus"
)

// ErrClosed is returned when posting on a closed channel.
var ErrClosed = errors.New("page channel closed")

// Listener receives every message posted on the channel. It runs on the
// dispatch goroutine and must not block.
type Listener func(msg protocol.PageMessage)

type Channel struct {
	lock      sync.Mutex
	cond      *sync.Cond
	queue     []protocol.PageMessage
	lastID    int
	listeners map[int]Listener
	closed    bool
	done      chan struct{}
}

func New() *Channel {
	c := &Channel{
		listeners: make(map[int]Listener),
		done:      make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.lock)
	go c.dispatch()
	return c
}

// Post enqueues the message for delivery.
func (c *Channel) Post(msg protocol.PageMessage) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.queue = append(c.queue, msg)
	c.cond.Signal()
	return nil
}

// Listen registers a listener and returns the func to remove it.
func (c *Channel) Listen(l Listener) (cancel func()) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.lastID++
	id := c.lastID
	c.listeners[id] = l
	return func() {
		c.lock.Lock()
		delete(c.listeners, id)
		c.lock.Unlock()
	}
}

// Close stops the dispatch once the queued messages are delivered.
func (c *Channel) Close() {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return
	}
	c.closed = true
	c.cond.Signal()
	c.lock.Unlock()

	<-c.done
}

func (c *Channel) dispatch() {
	defer close(c.done)

	for {
		c.lock.Lock()
		for len(c.queue) <= 0 && !c.closed {
			c.cond.Wait()
		}
		if len(c.queue) <= 0 && c.closed {
			c.lock.Unlock()
			return
		}
		msg := c.queue[0]
		c.queue = c.queue[1:]
		listeners := c.snapshot()
		c.lock.Unlock()

		for _, l := range listeners {
			deliver(l, msg)
		}
	}
}

// snapshot returns the listeners in registration order. Must be called with
// the lock held.
func (c *Channel) snapshot() []Listener {
	listeners := make([]Listener, 0, len(c.listeners))
	for id := 1; id <= c.lastID; id++ {
		if l, ok := c.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	return listeners
}

func deliver(l Listener, msg protocol.PageMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("type", msg.Type).Warnf("page channel listener panicked: %v", r)
		}
	}()
	l(msg)
}
