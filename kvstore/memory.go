package kvstore

import (
	"bytes"

	"github.com/Fantom-foundation/lachesis-base/kvdb"
	"github.com/Fantom-foundation/lachesis-base/kvdb/memorydb"
	"github.com/Fantom-foundation/lachesis-base/kvdb/table"
)

// kvdbStore adapts a lachesis-base store.
type kvdbStore struct {
	db kvdb.Store
}

// NewMemory returns an empty in-memory database.
func NewMemory() Database {
	return Wrap(memorydb.New())
}

// Wrap adapts any lachesis-base store.
func Wrap(db kvdb.Store) Database {
	return &kvdbStore{db: db}
}

func (s *kvdbStore) Get(key []byte) ([]byte, error) {
	ok, err := s.db.Has(key)
	if err != nil || !ok {
		return nil, err
	}
	val, err := s.db.Get(key)
	if err != nil {
		return nil, err
	}
	if val == nil {
		val = []byte{}
	}
	return val, nil
}

func (s *kvdbStore) Has(key []byte) (bool, error) {
	return s.db.Has(key)
}

func (s *kvdbStore) Put(key, value []byte) error {
	return s.db.Put(key, value)
}

func (s *kvdbStore) Delete(key []byte) error {
	return s.db.Delete(key)
}

func (s *kvdbStore) ForEach(prefix []byte, fn func(key, value []byte) bool) error {
	it := s.db.NewIterator(prefix, nil)
	defer it.Release()
	for it.Next() {
		if !bytes.HasPrefix(it.Key(), prefix) {
			break
		}
		if !fn(it.Key(), it.Value()) {
			break
		}
	}
	return it.Error()
}

func (s *kvdbStore) Close() error {
	return s.db.Close()
}

// Table returns a view of s where every key is prefixed. Views of lachesis-base
// stores use its table package; other stores get an equivalent wrapper.
func Table(s Store, prefix []byte) Store {
	if k, ok := s.(*kvdbStore); ok {
		return &kvdbStore{db: table.New(k.db, prefix)}
	}
	return &prefixed{base: s, prefix: append([]byte(nil), prefix...)}
}

type prefixed struct {
	base   Store
	prefix []byte
}

func (p *prefixed) key(k []byte) []byte {
	return Key(p.prefix, k)
}

func (p *prefixed) Get(key []byte) ([]byte, error) {
	return p.base.Get(p.key(key))
}

func (p *prefixed) Has(key []byte) (bool, error) {
	return p.base.Has(p.key(key))
}

func (p *prefixed) Put(key, value []byte) error {
	return p.base.Put(p.key(key), value)
}

func (p *prefixed) Delete(key []byte) error {
	return p.base.Delete(p.key(key))
}

func (p *prefixed) ForEach(prefix []byte, fn func(key, value []byte) bool) error {
	return p.base.ForEach(p.key(prefix), func(key, value []byte) bool {
		return fn(key[len(p.prefix):], value)
	})
}
