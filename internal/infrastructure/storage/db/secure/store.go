// Package secure decorates a store so that the values of a set of keys are
// encrypted at rest.
package secure

import (
	"context"
	"fmt"

	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
	"github.com/RoseGit/MasterBlockchain/pkg/securestore"
	log "github.com/sirupsen/logrus"
)

type store struct {
	ports.Store
	passphrase string
	keys       map[string]struct{}
}

// NewStore returns a ports.Store encrypting the values of keys with the
// passphrase before handing them to the wrapped store. Values stored in
// plain text before the encryption was enabled are still readable.
func NewStore(wrapped ports.Store, passphrase string, keys ...string) (ports.Store, error) {
	if wrapped == nil {
		return nil, fmt.Errorf("missing store")
	}
	if passphrase == "" {
		return nil, securestore.ErrNullPassphrase
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return &store{wrapped, passphrase, set}, nil
}

func (s *store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.open(key, value)
}

func (s *store) Set(ctx context.Context, key string, value []byte) error {
	if !s.isSecret(key) {
		return s.Store.Set(ctx, key, value)
	}
	cypher, err := securestore.Encrypt(securestore.EncryptOpts{
		PlainText:  value,
		Passphrase: s.passphrase,
	})
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	return s.Store.Set(ctx, key, cypher)
}

func (s *store) Subscribe(handler func(ports.StoreChange)) func() {
	return s.Store.Subscribe(func(change ports.StoreChange) {
		if s.isSecret(change.Key) {
			change.OldValue = s.openQuiet(change.Key, change.OldValue)
			change.NewValue = s.openQuiet(change.Key, change.NewValue)
		}
		handler(change)
	})
}

func (s *store) isSecret(key string) bool {
	_, ok := s.keys[key]
	return ok
}

func (s *store) open(key string, value []byte) ([]byte, error) {
	if !s.isSecret(key) || !securestore.IsEncrypted(value) {
		return value, nil
	}
	plain, err := securestore.Decrypt(securestore.DecryptOpts{
		CypherText: value,
		Passphrase: s.passphrase,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return plain, nil
}

func (s *store) openQuiet(key string, value []byte) []byte {
	if value == nil {
		return nil
	}
	plain, err := s.open(key, value)
	if err != nil {
		log.WithError(err).Warn("failed to decrypt store change")
		return nil
	}
	return plain
}
