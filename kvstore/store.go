// Package kvstore is the key/value storage owned by the runtime state machine.
//
// Every bridge module keeps its state under its own key prefix (see Table).
// Extrinsics run against an Overlay and are committed only when they succeed,
// so a failed extrinsic leaves no partial writes behind.
package kvstore

import (
	"encoding"
	"errors"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
)

var ErrClosed = errors.New("store closed")

// Store is a flat, ordered key/value store.
type Store interface {
	// Get returns nil and no error when the key is absent.
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// ForEach visits the keys starting with prefix in ascending order until
	// fn returns false.
	ForEach(prefix []byte, fn func(key, value []byte) bool) error
}

// Database is a Store holding resources.
type Database interface {
	Store
	Close() error
}

// Key concatenates key parts.
func Key(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	key := make([]byte, 0, n)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

// GetBinary decodes the value under key into v and reports whether it exists.
func GetBinary(s Store, key []byte, v encoding.BinaryUnmarshaler) (bool, error) {
	raw, err := s.Get(key)
	if err != nil || raw == nil {
		return false, err
	}
	return true, v.UnmarshalBinary(raw)
}

// PutBinary encodes v under key.
func PutBinary(s Store, key []byte, v encoding.BinaryMarshaler) error {
	raw, err := v.MarshalBinary()
	if err != nil {
		return err
	}
	return s.Put(key, raw)
}

// GetU64 returns the big-endian counter under key, zero when absent.
func GetU64(s Store, key []byte) (uint64, error) {
	raw, err := s.Get(key)
	if err != nil || len(raw) != 8 {
		return 0, err
	}
	return bigendian.BytesToUint64(raw), nil
}

func PutU64(s Store, key []byte, v uint64) error {
	return s.Put(key, bigendian.Uint64ToBytes(v))
}

// DeletePrefix removes every key starting with prefix.
func DeletePrefix(s Store, prefix []byte) error {
	var keys [][]byte
	err := s.ForEach(prefix, func(key, _ []byte) bool {
		keys = append(keys, append([]byte(nil), key...))
		return true
	})
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
