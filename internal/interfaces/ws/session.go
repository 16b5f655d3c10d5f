package wsinterface

import (
	"errors"
	"sync"
	"time"

	"github.com/RoseGit/MasterBlockchain/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
	sendBufferSize = 64
)

var (
	errSessionClosed = errors.New("session closed")
	errSessionSlow   = errors.New("session send buffer full")
)

// session is one websocket peer. Writes are serialized through the send
// queue so that pushes never block the caller.
type session struct {
	id     string
	origin string
	conn   *websocket.Conn

	send      chan protocol.Frame
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, origin string) *session {
	s := &session{
		id:     uuid.New().String(),
		origin: origin,
		conn:   conn,
		send:   make(chan protocol.Frame, sendBufferSize),
		done:   make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// Push delivers an unsolicited message to the peer.
func (s *session) Push(msg protocol.Message) error {
	frame, err := protocol.NewFrame(0, false, msg)
	if err != nil {
		return err
	}
	return s.enqueue(frame)
}

func (s *session) reply(seq uint64, reply protocol.Reply) {
	frame, err := protocol.NewFrame(seq, true, reply)
	if err != nil {
		log.WithError(err).Warn("failed to encode reply")
		return
	}
	if err := s.enqueue(frame); err != nil {
		log.WithError(err).WithField("session", s.id).Debug("reply dropped")
	}
}

func (s *session) enqueue(frame protocol.Frame) error {
	select {
	case <-s.done:
		return errSessionClosed
	default:
	}

	select {
	case s.send <- frame:
		return nil
	case <-s.done:
		return errSessionClosed
	default:
		return errSessionSlow
	}
}

func (s *session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(frame); err != nil {
				log.WithError(err).WithField("session", s.id).Debug("write failed")
				s.close()
				return
			}
		}
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
