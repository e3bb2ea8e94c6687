package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const sessionKeyPrefix = "session:"

// BadgerStore keeps sessions in BadgerDB. Expiry uses Badger's native TTL.
type BadgerStore struct {
	db       *badger.DB
	ttl      time.Duration
	inMemory bool
}

// OpenBadgerStore opens (or creates) a Badger database in dir.
func OpenBadgerStore(dir string, ttl time.Duration) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return openBadger(opts, ttl)
}

// OpenInMemoryBadgerStore opens a Badger database that lives only in memory.
func OpenInMemoryBadgerStore(ttl time.Duration) (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openBadger(opts, ttl)
}

func openBadger(opts badger.Options, ttl time.Duration) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for sessions: %w", err)
	}
	return &BadgerStore{db: db, ttl: ttl, inMemory: opts.InMemory}, nil
}

func sessionPrefix(id string) []byte {
	return []byte(sessionKeyPrefix + id + ":")
}

func sessionKey(id, key string) []byte {
	return []byte(sessionKeyPrefix + id + ":" + key)
}

func (s *BadgerStore) Get(_ context.Context, id, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get session value: %w", err)
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set writes value and re-arms the TTL on every other key of the session.
func (s *BadgerStore) Set(_ context.Context, id, key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		target := string(sessionKey(id, key))
		siblings := make(map[string][]byte)

		opts := badger.DefaultIteratorOptions
		prefix := sessionPrefix(id)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := string(item.KeyCopy(nil))
			if k == target {
				continue
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				it.Close()
				return fmt.Errorf("read session value: %w", err)
			}
			siblings[k] = v
		}
		it.Close()

		for k, v := range siblings {
			if err := txn.SetEntry(badger.NewEntry([]byte(k), v).WithTTL(s.ttl)); err != nil {
				return fmt.Errorf("refresh session value: %w", err)
			}
		}
		if err := txn.SetEntry(badger.NewEntry([]byte(target), value).WithTTL(s.ttl)); err != nil {
			return fmt.Errorf("set session value: %w", err)
		}
		return nil
	})
}

func (s *BadgerStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var keys [][]byte

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := sessionPrefix(id)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete session value: %w", err)
			}
		}
		return nil
	})
}

// Sweep runs value-log garbage collection to reclaim space held by expired
// entries. Badger hides expired keys on its own, so the count is always 0.
func (s *BadgerStore) Sweep(_ context.Context) (int, error) {
	if s.inMemory {
		return 0, nil
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("badger value log gc: %w", err)
		}
	}
}

func (s *BadgerStore) CheckReadiness(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger session store is closed")
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
