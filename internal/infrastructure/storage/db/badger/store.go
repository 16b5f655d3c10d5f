package dbbadger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
	"github.com/RoseGit/MasterBlockchain/internal/infrastructure/storage/db/changefeed"
	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	"github.com/timshannon/badgerhold/v4"
)

type entry struct {
	Value []byte
}

type store struct {
	db   *badgerhold.Store
	lock *sync.Mutex
	feed *changefeed.Feed
}

// NewStore opens (or creates if not exists) the badger store in dbDir. An
// empty dbDir keeps the data in memory.
func NewStore(dbDir string, logger badger.Logger) (ports.Store, error) {
	db, err := createDb(dbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening wallet db: %w", err)
	}
	return &store{
		db:   db,
		lock: &sync.Mutex{},
		feed: changefeed.New(),
	}, nil
}

func (s *store) Get(_ context.Context, key string) ([]byte, error) {
	value, found, err := s.get(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ports.ErrKeyNotFound
	}
	return value, nil
}

func (s *store) Set(_ context.Context, key string, value []byte) error {
	s.lock.Lock()
	old, _, err := s.get(key)
	if err == nil {
		err = s.db.Upsert(key, entry{append([]byte{}, value...)})
	}
	s.lock.Unlock()
	if err != nil {
		return err
	}

	s.feed.Publish(ports.StoreChange{
		Key:      key,
		OldValue: old,
		NewValue: append([]byte{}, value...),
	})
	return nil
}

func (s *store) Remove(_ context.Context, key string) error {
	s.lock.Lock()
	old, found, err := s.get(key)
	if err == nil && found {
		err = s.db.Delete(key, entry{})
	}
	s.lock.Unlock()
	if err != nil {
		return err
	}

	if found {
		s.feed.Publish(ports.StoreChange{Key: key, OldValue: old})
	}
	return nil
}

func (s *store) Subscribe(handler func(ports.StoreChange)) func() {
	return s.feed.Subscribe(handler)
}

func (s *store) Close() error {
	return s.db.Close()
}

func (s *store) get(key string) ([]byte, bool, error) {
	var e entry
	if err := s.db.Get(key, &e); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if e.Value == nil {
		e.Value = []byte{}
	}
	return e.Value, true, nil
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger
	if dbDir == "" {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
