package wsinterface

import (
	"sync"

	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
	"github.com/RoseGit/MasterBlockchain/pkg/protocol"
	log "github.com/sirupsen/logrus"
)

// Hub keeps the page contexts connected on the relay endpoint and fans
// wallet events out to them.
type Hub struct {
	lock     sync.RWMutex
	sessions map[string]*session
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*session)}
}

// Broadcast implements ports.Broadcaster. Contexts that cannot take the
// event are skipped.
func (h *Hub) Broadcast(event ports.Event) {
	msg := protocol.Message{
		Type:      protocol.TypeEvent,
		EventName: event.Name,
		Data:      event.Data,
	}

	h.lock.RLock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.lock.RUnlock()

	for _, s := range sessions {
		if err := s.Push(msg); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"session": s.id,
				"origin":  s.origin,
				"event":   event.Name,
			}).Debug("skipping page context")
		}
	}
}

// Len returns the number of connected page contexts.
func (h *Hub) Len() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.sessions)
}

func (h *Hub) add(s *session) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.sessions[s.id] = s
}

func (h *Hub) remove(s *session) {
	h.lock.Lock()
	defer h.lock.Unlock()
	delete(h.sessions, s.id)
}
