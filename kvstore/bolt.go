package kvstore

import (
	"bytes"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
)

var stateBucket = []byte("avn-state")

var errEmptyKey = errors.New("empty key")

// boltStore is a persistent Database in a single bbolt bucket. Every call is
// its own bolt transaction; the runtime batches writes through an Overlay.
type boltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) a bbolt database file.
func OpenBolt(path string) (Database, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Get(key []byte) (val []byte, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		k, v := tx.Bucket(stateBucket).Cursor().Seek(key)
		if k != nil && bytes.Equal(k, key) {
			val = append([]byte{}, v...)
		}
		return nil
	})
	return val, err
}

func (s *boltStore) Has(key []byte) (ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		k, _ := tx.Bucket(stateBucket).Cursor().Seek(key)
		ok = k != nil && bytes.Equal(k, key)
		return nil
	})
	return ok, err
}

func (s *boltStore) Put(key, value []byte) error {
	if len(key) == 0 {
		return errEmptyKey
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Put(key, value)
	})
}

func (s *boltStore) Delete(key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Delete(key)
	})
}

// ForEach iterates within a read transaction; fn must not write to s.
func (s *boltStore) ForEach(prefix []byte, fn func(key, value []byte) bool) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(stateBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if !fn(k, v) {
				break
			}
		}
		return nil
	})
}

func (s *boltStore) Close() error {
	return s.db.Close()
}
