package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/RoseGit/MasterBlockchain/pkg/protocol"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// ErrConnClosed is returned by calls on a closed connection.
var ErrConnClosed = errors.New("connection to wallet closed")

const pushBufferSize = 64

// Conn is a websocket connection to the wallet daemon. Calls are correlated
// with their replies by frame sequence number; anything else the daemon
// sends is a push.
type Conn struct {
	conn *websocket.Conn

	writeLock sync.Mutex

	lock    sync.Mutex
	lastSeq uint64
	waiters map[uint64]chan protocol.Frame
	closed  bool

	pushes chan protocol.Message
	done   chan struct{}
}

// Dial connects to the daemon endpoint at url presenting origin as the page
// origin.
func Dial(ctx context.Context, url, origin string) (*Conn, error) {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to wallet: %w", err)
	}

	c := &Conn{
		conn:    ws,
		waiters: make(map[uint64]chan protocol.Frame),
		pushes:  make(chan protocol.Message, pushBufferSize),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Send delivers the message and waits for its reply.
func (c *Conn) Send(ctx context.Context, msg protocol.Message) (protocol.Reply, error) {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return protocol.Reply{}, ErrConnClosed
	}
	c.lastSeq++
	seq := c.lastSeq
	waiter := make(chan protocol.Frame, 1)
	c.waiters[seq] = waiter
	c.lock.Unlock()

	defer func() {
		c.lock.Lock()
		delete(c.waiters, seq)
		c.lock.Unlock()
	}()

	frame, err := protocol.NewFrame(seq, false, msg)
	if err != nil {
		return protocol.Reply{}, err
	}
	if err := c.write(frame); err != nil {
		return protocol.Reply{}, err
	}

	select {
	case resp, ok := <-waiter:
		if !ok {
			return protocol.Reply{}, ErrConnClosed
		}
		var reply protocol.Reply
		if err := resp.Decode(&reply); err != nil {
			return protocol.Reply{}, err
		}
		return reply, nil
	case <-ctx.Done():
		return protocol.Reply{}, ctx.Err()
	}
}

// RPC implements Backend.
func (c *Conn) RPC(
	ctx context.Context, method string, params json.RawMessage,
) (json.RawMessage, error) {
	reply, err := c.Send(ctx, protocol.Message{
		Type:   protocol.TypeRPC,
		Method: method,
		Params: params,
	})
	if err != nil {
		return nil, err
	}
	if err := reply.Err(); err != nil {
		return nil, err
	}
	return reply.Result, nil
}

// Events implements Backend.
func (c *Conn) Events() <-chan protocol.Message {
	return c.pushes
}

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) Close() error {
	c.writeLock.Lock()
	c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	c.writeLock.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Conn) write(frame protocol.Frame) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	return c.conn.WriteJSON(frame)
}

func (c *Conn) readLoop() {
	defer c.shutdown()

	for {
		var frame protocol.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseNormalClosure, websocket.CloseGoingAway,
			) {
				log.WithError(err).Warn("wallet connection dropped")
			}
			return
		}

		if frame.Reply {
			c.lock.Lock()
			if waiter, ok := c.waiters[frame.Seq]; ok {
				delete(c.waiters, frame.Seq)
				waiter <- frame
			}
			c.lock.Unlock()
			continue
		}

		var msg protocol.Message
		if err := frame.Decode(&msg); err != nil {
			log.WithError(err).Debug("ignoring malformed push")
			continue
		}
		select {
		case c.pushes <- msg:
		default:
			log.WithField("type", msg.Type).Warn("push buffer full, dropping message")
		}
	}
}

func (c *Conn) shutdown() {
	c.lock.Lock()
	c.closed = true
	for seq, w := range c.waiters {
		close(w)
		delete(c.waiters, seq)
	}
	c.lock.Unlock()

	close(c.pushes)
	close(c.done)
}
