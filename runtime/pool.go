package runtime

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rony4d/go-avn-bridge/inter/validity"
)

var (
	ErrDuplicate = errors.New("duplicate extrinsic")
	ErrPoolFull  = errors.New("pool at capacity")
	ErrNoTags    = errors.New("extrinsic provides no tags")
)

// PoolConfig bounds the unsigned extrinsic pool.
type PoolConfig struct {
	MaxExtrinsics int
}

// DefaultPoolConfig returns the pool limits used by nodes.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MaxExtrinsics: 4096}
}

type entry struct {
	ext      Extrinsic
	hash     common.Hash
	tags     []string
	priority uint64
	// expires is the first block the entry is no longer valid in.
	expires idx.Block
	seq     uint64
}

// higher priority first, then arrival order
func lessPriority(a, b *entry) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.seq < b.seq
}

// Pool holds the admitted unsigned extrinsics until a block includes them.
// Extrinsics are deduplicated by the tags they provide and dropped once
// their longevity has passed.
type Pool struct {
	mu      sync.RWMutex
	cfg     PoolConfig
	entries map[common.Hash]*entry
	tags    map[string]common.Hash
	seq     uint64
}

func NewPool(cfg PoolConfig) *Pool {
	return &Pool{
		cfg:     cfg,
		entries: make(map[common.Hash]*entry),
		tags:    make(map[string]common.Hash),
	}
}

// ExtrinsicHash identifies an admitted extrinsic by the tags it provides.
func ExtrinsicHash(valid validity.ValidTransaction) common.Hash {
	tags := valid.Tags()
	sort.Strings(tags)
	return crypto.Keccak256Hash([]byte(strings.Join(tags, "\n")))
}

// Add admits ext at block now. An extrinsic providing a tag already in the
// pool is a duplicate. A full pool evicts its lowest priority entry when the
// newcomer ranks higher.
func (p *Pool) Add(ext Extrinsic, valid validity.ValidTransaction, now idx.Block) (common.Hash, error) {
	if len(valid.Provides) == 0 {
		return common.Hash{}, ErrNoTags
	}
	e := &entry{
		ext:      ext,
		hash:     ExtrinsicHash(valid),
		tags:     valid.Tags(),
		priority: valid.Priority,
		expires:  now + idx.Block(valid.Longevity),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tag := range e.tags {
		if _, ok := p.tags[tag]; ok {
			return e.hash, ErrDuplicate
		}
	}
	if p.cfg.MaxExtrinsics > 0 && len(p.entries) >= p.cfg.MaxExtrinsics {
		lowest := p.lowest()
		if lowest == nil || lowest.priority >= e.priority {
			return e.hash, ErrPoolFull
		}
		p.remove(lowest)
	}
	p.seq++
	e.seq = p.seq
	p.entries[e.hash] = e
	for _, tag := range e.tags {
		p.tags[tag] = e.hash
	}
	return e.hash, nil
}

func (p *Pool) lowest() *entry {
	var low *entry
	for _, e := range p.entries {
		if low == nil || lessPriority(low, e) {
			low = e
		}
	}
	return low
}

func (p *Pool) remove(e *entry) {
	delete(p.entries, e.hash)
	for _, tag := range e.tags {
		if p.tags[tag] == e.hash {
			delete(p.tags, tag)
		}
	}
}

// Remove drops the extrinsic with hash.
func (p *Pool) Remove(hash common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[hash]; ok {
		p.remove(e)
	}
}

// Prune drops the extrinsics no longer valid at block now and returns how
// many were dropped.
func (p *Pool) Prune(now idx.Block) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.entries {
		if now >= e.expires {
			p.remove(e)
			n++
		}
	}
	return n
}

// Pending returns the admitted extrinsics in inclusion order.
func (p *Pool) Pending() []Extrinsic {
	p.mu.RLock()
	ordered := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		ordered = append(ordered, e)
	}
	p.mu.RUnlock()

	sort.Slice(ordered, func(i, j int) bool { return lessPriority(ordered[i], ordered[j]) })
	out := make([]Extrinsic, len(ordered))
	for i, e := range ordered {
		out[i] = e.ext
		out[i].hash = e.hash
	}
	return out
}

func (p *Pool) Has(hash common.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.entries[hash]
	return ok
}

func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}
