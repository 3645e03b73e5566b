package kvstore

import (
	"bytes"
	"sort"
)

// Overlay buffers writes on top of a base store. Reads see the buffered
// writes. Nothing reaches the base until Commit.
type Overlay struct {
	base Store
	// a nil value marks a deletion
	writes map[string][]byte
}

func NewOverlay(base Store) *Overlay {
	return &Overlay{base: base, writes: make(map[string][]byte)}
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	if v, ok := o.writes[string(key)]; ok {
		if v == nil {
			return nil, nil
		}
		return append([]byte{}, v...), nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Has(key []byte) (bool, error) {
	if v, ok := o.writes[string(key)]; ok {
		return v != nil, nil
	}
	return o.base.Has(key)
}

func (o *Overlay) Put(key, value []byte) error {
	o.writes[string(key)] = append([]byte{}, value...)
	return nil
}

func (o *Overlay) Delete(key []byte) error {
	o.writes[string(key)] = nil
	return nil
}

type kv struct {
	key, value []byte
}

// ForEach merges the buffered writes into the base iteration.
func (o *Overlay) ForEach(prefix []byte, fn func(key, value []byte) bool) error {
	var merged []kv
	err := o.base.ForEach(prefix, func(key, value []byte) bool {
		if _, ok := o.writes[string(key)]; !ok {
			merged = append(merged, kv{append([]byte(nil), key...), append([]byte(nil), value...)})
		}
		return true
	})
	if err != nil {
		return err
	}
	for k, v := range o.writes {
		if v != nil && bytes.HasPrefix([]byte(k), prefix) {
			merged = append(merged, kv{[]byte(k), v})
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		return bytes.Compare(merged[i].key, merged[j].key) < 0
	})
	for _, e := range merged {
		if !fn(e.key, e.value) {
			break
		}
	}
	return nil
}

// Dirty reports whether there are buffered writes.
func (o *Overlay) Dirty() bool {
	return len(o.writes) != 0
}

// Commit flushes the buffered writes to the base in key order and resets the
// overlay.
func (o *Overlay) Commit() error {
	keys := make([]string, 0, len(o.writes))
	for k := range o.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var err error
		if v := o.writes[k]; v == nil {
			err = o.base.Delete([]byte(k))
		} else {
			err = o.base.Put([]byte(k), v)
		}
		if err != nil {
			return err
		}
	}
	o.Discard()
	return nil
}

// Discard drops the buffered writes.
func (o *Overlay) Discard() {
	o.writes = make(map[string][]byte)
}
