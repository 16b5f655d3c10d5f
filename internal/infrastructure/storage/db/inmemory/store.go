package inmemory

import (
	"context"
	"sync"

	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
	"github.com/RoseGit/MasterBlockchain/internal/infrastructure/storage/db/changefeed"
)

type store struct {
	lock   *sync.RWMutex
	values map[string][]byte
	feed   *changefeed.Feed
	closed bool
}

// NewStore returns a ports.Store that lives only as long as the process.
func NewStore() ports.Store {
	return &store{
		lock:   &sync.RWMutex{},
		values: make(map[string][]byte),
		feed:   changefeed.New(),
	}
}

func (s *store) Get(_ context.Context, key string) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	v, ok := s.values[key]
	if !ok {
		return nil, ports.ErrKeyNotFound
	}
	return append([]byte{}, v...), nil
}

func (s *store) Set(_ context.Context, key string, value []byte) error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return ErrStoreClosed
	}
	old := s.values[key]
	s.values[key] = append([]byte{}, value...)
	s.lock.Unlock()

	s.feed.Publish(ports.StoreChange{
		Key:      key,
		OldValue: old,
		NewValue: append([]byte{}, value...),
	})
	return nil
}

func (s *store) Remove(_ context.Context, key string) error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return ErrStoreClosed
	}
	old, ok := s.values[key]
	delete(s.values, key)
	s.lock.Unlock()

	if ok {
		s.feed.Publish(ports.StoreChange{Key: key, OldValue: old})
	}
	return nil
}

func (s *store) Subscribe(handler func(ports.StoreChange)) func() {
	return s.feed.Subscribe(handler)
}

func (s *store) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closed = true
	return nil
}
