// Package surface keeps track of the approval windows requested by the
// orchestrator and forwards them to the attached approval surfaces.
package surface

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
	"github.com/RoseGit/MasterBlockchain/pkg/protocol"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Session is an attached approval surface.
type Session interface {
	Push(msg protocol.Message) error
}

type window struct {
	ports.OpenWindow
	seq uint64
}

type windowKey struct {
	kind      string
	requestID uint64
}

// Manager implements ports.WindowManager. Windows exist independently of
// the attached sessions: a surface attaching later receives the windows
// already open.
type Manager struct {
	lock     sync.RWMutex
	windows  map[string]window
	byKey    map[windowKey]string
	sessions map[uint64]Session
	nextID   uint64
	nextSeq  uint64
}

func NewManager() *Manager {
	return &Manager{
		windows:  make(map[string]window),
		byKey:    make(map[windowKey]string),
		sessions: make(map[uint64]Session),
	}
}

// Open returns the id of the window presenting w, reusing the one already
// open for the same kind and request id.
func (m *Manager) Open(_ context.Context, w ports.Window) (string, error) {
	key := windowKey{string(w.Kind), w.RequestID}

	m.lock.Lock()
	if id, ok := m.byKey[key]; ok {
		m.lock.Unlock()
		return id, nil
	}
	id := uuid.New().String()
	m.nextSeq++
	m.windows[id] = window{
		OpenWindow: ports.OpenWindow{ID: id, Window: w},
		seq:        m.nextSeq,
	}
	m.byKey[key] = id
	sessions := m.snapshot()
	m.lock.Unlock()

	log.WithFields(log.Fields{
		"window":  id,
		"kind":    w.Kind,
		"request": w.RequestID,
	}).Debug("window opened")

	push(sessions, openMessage(id, w))
	return id, nil
}

// Close is a no-op for unknown or already closed windows.
func (m *Manager) Close(windowID string) {
	m.lock.Lock()
	w, ok := m.windows[windowID]
	if !ok {
		m.lock.Unlock()
		return
	}
	delete(m.windows, windowID)
	delete(m.byKey, windowKey{string(w.Kind), w.RequestID})
	sessions := m.snapshot()
	m.lock.Unlock()

	log.WithField("window", windowID).Debug("window closed")

	push(sessions, protocol.Message{
		Type:     protocol.TypeWindowClose,
		WindowID: windowID,
	})
}

// List returns the open windows, oldest first.
func (m *Manager) List() []ports.OpenWindow {
	m.lock.RLock()
	list := make([]window, 0, len(m.windows))
	for _, w := range m.windows {
		list = append(list, w)
	}
	m.lock.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].seq < list[j].seq
	})

	windows := make([]ports.OpenWindow, 0, len(list))
	for _, w := range list {
		windows = append(windows, w.OpenWindow)
	}
	return windows
}

// Attach registers the session and replays the windows currently open.
func (m *Manager) Attach(s Session) (detach func()) {
	m.lock.Lock()
	m.nextID++
	id := m.nextID
	m.sessions[id] = s
	m.lock.Unlock()

	for _, w := range m.List() {
		if err := s.Push(openMessage(w.ID, w.Window)); err != nil {
			log.WithError(err).Debug("failed to replay window to surface")
			break
		}
	}

	once := &sync.Once{}
	return func() {
		once.Do(func() {
			m.lock.Lock()
			delete(m.sessions, id)
			m.lock.Unlock()
		})
	}
}

// Sessions returns the number of attached surfaces.
func (m *Manager) Sessions() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.sessions)
}

func (m *Manager) snapshot() []Session {
	sessions := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

func openMessage(id string, w ports.Window) protocol.Message {
	request := w.Request
	if len(request) == 0 {
		request = json.RawMessage("null")
	}
	return protocol.Message{
		Type:      protocol.TypeWindowOpen,
		WindowID:  id,
		Kind:      string(w.Kind),
		RequestID: w.RequestID,
		Request:   request,
	}
}

func push(sessions []Session, msg protocol.Message) {
	for _, s := range sessions {
		if err := s.Push(msg); err != nil {
			log.WithError(err).Debug("failed to push to surface")
		}
	}
}
