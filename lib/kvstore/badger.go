package kvstore

import (
	"context"

	"github.com/dgraph-io/badger/v4"
)

type BadgerStore struct {
	db *badger.DB
}

var _ Store = BadgerStore{}

func NewBadgerStore(db *badger.DB) BadgerStore {
	return BadgerStore{db: db}
}

// OpenBadger opens (or creates) a badger database at dir with logging
// silenced; badger's default logger is far too chatty for a cache.
func OpenBadger(dir string) (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
}

func (s BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	tx := s.db.NewTransaction(false)
	defer tx.Discard()

	item, err := tx.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (s BadgerStore) Set(ctx context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *badger.Txn) error {
		return tx.Set([]byte(key), value)
	})
}

func (s BadgerStore) Remove(ctx context.Context, key string) error {
	return s.db.Update(func(tx *badger.Txn) error {
		err := tx.Delete([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func (s BadgerStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
