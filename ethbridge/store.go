package ethbridge

import (
	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-avn-bridge/inter"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/discovery"
	"github.com/rony4d/go-avn-bridge/inter/eth"
	"github.com/rony4d/go-avn-bridge/inter/ethevents"
	"github.com/rony4d/go-avn-bridge/kvstore"
	"github.com/rony4d/go-avn-bridge/utils/cser"
)

var (
	instanceKey      = []byte("i")
	nextTxIDKey      = []byte("n")
	txLifetimeKey    = []byte("t")
	activeRequestKey = []byte("a")
	requestQueueKey  = []byte("q")
	senderCursorKey  = []byte("o")
	activeRangeKey   = []byte("r")
	pendingEventsKey = []byte("x")

	settledPrefix   = []byte("s")
	processedPrefix = []byte("e")
	partitionPrefix = []byte("v")
	latestPrefix    = []byte("b")
	offencePrefix   = []byte("f")
)

// store is the state of one bridge instance.
type store struct {
	kvstore.Store
}

func (s store) instance() (eth.EthBridgeInstance, error) {
	var in eth.EthBridgeInstance
	raw, err := s.Get(instanceKey)
	if err != nil || raw == nil {
		return in, err
	}
	err = cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		in = eth.ReadEthBridgeInstance(r)
		return nil
	})
	return in, err
}

func (s store) setInstance(in eth.EthBridgeInstance) error {
	raw, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		in.Write(w)
		return nil
	})
	if err != nil {
		return err
	}
	return s.Put(instanceKey, raw)
}

func (s store) nextTxID() (eth.EthereumId, error) {
	n, err := kvstore.GetU64(s, nextTxIDKey)
	return eth.EthereumId(n), err
}

func (s store) setNextTxID(id eth.EthereumId) error {
	return kvstore.PutU64(s, nextTxIDKey, uint64(id))
}

// useNextTxID returns the next id and moves the counter past it.
func (s store) useNextTxID() (eth.EthereumId, error) {
	id, err := s.nextTxID()
	if err != nil {
		return 0, err
	}
	return id, s.setNextTxID(id + 1)
}

func (s store) txLifetime() (uint64, error) {
	return kvstore.GetU64(s, txLifetimeKey)
}

func (s store) setTxLifetime(secs uint64) error {
	return kvstore.PutU64(s, txLifetimeKey, secs)
}

func (s store) activeRequest() (*inter.ActiveRequestData, error) {
	a := &inter.ActiveRequestData{}
	ok, err := kvstore.GetBinary(s, activeRequestKey, a)
	if err != nil || !ok {
		return nil, err
	}
	return a, nil
}

func (s store) setActiveRequest(a *inter.ActiveRequestData) error {
	return kvstore.PutBinary(s, activeRequestKey, a)
}

func (s store) killActiveRequest() error {
	return s.Delete(activeRequestKey)
}

func (s store) queue(limit int) ([]inter.Request, error) {
	raw, err := s.Get(requestQueueKey)
	if err != nil || raw == nil {
		return nil, err
	}
	return inter.UnmarshalRequestQueue(raw, limit)
}

func (s store) setQueue(q []inter.Request) error {
	if len(q) == 0 {
		return s.Delete(requestQueueKey)
	}
	raw, err := inter.MarshalRequestQueue(q)
	if err != nil {
		return err
	}
	return s.Put(requestQueueKey, raw)
}

func (s store) settled(txID eth.EthereumId) (*inter.TransactionData, error) {
	t := &inter.TransactionData{}
	ok, err := kvstore.GetBinary(s, kvstore.Key(settledPrefix, bigendian.Uint32ToBytes(txID)), t)
	if err != nil || !ok {
		return nil, err
	}
	return t, nil
}

func (s store) settle(txID eth.EthereumId, t *inter.TransactionData) error {
	return kvstore.PutBinary(s, kvstore.Key(settledPrefix, bigendian.Uint32ToBytes(txID)), t)
}

func (s store) senderRotation() (uint64, error) {
	return kvstore.GetU64(s, senderCursorKey)
}

func (s store) setSenderRotation(cursor uint64) error {
	return kvstore.PutU64(s, senderCursorKey, cursor)
}

func (s store) activeRange() (*discovery.ActiveEthRange, error) {
	raw, err := s.Get(activeRangeKey)
	if err != nil || raw == nil {
		return nil, err
	}
	var a discovery.ActiveEthRange
	err = cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		a = discovery.ReadActiveEthRange(r)
		return nil
	})
	return &a, err
}

func (s store) setActiveRange(a discovery.ActiveEthRange) error {
	raw, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		a.Write(w)
		return nil
	})
	if err != nil {
		return err
	}
	return s.Put(activeRangeKey, raw)
}

// pendingEvents are the transactions queued by the admin for the next range.
func (s store) pendingEvents() (discovery.AdditionalEvents, error) {
	pending, _ := discovery.NewAdditionalEvents()
	raw, err := s.Get(pendingEventsKey)
	if err != nil || raw == nil {
		return pending, err
	}
	err = cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		for i, n := 0, r.Len(discovery.AdditionalEventsLimit); i < n; i++ {
			if ok, _ := pending.Insert(r.Hash()); !ok {
				return cser.ErrNonCanonicalEncoding
			}
		}
		return nil
	})
	return pending, err
}

func (s store) setPendingEvents(pending discovery.AdditionalEvents) error {
	txs := pending.Items()
	if len(txs) == 0 {
		return s.Delete(pendingEventsKey)
	}
	raw, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.Len(len(txs))
		for _, h := range txs {
			w.Hash(h)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.Put(pendingEventsKey, raw)
}

// processed reports whether the event was processed and, if so, whether it
// was accepted.
func (s store) processed(id ethevents.EthEventId) (found, accepted bool, err error) {
	raw, err := s.Get(kvstore.Key(processedPrefix, id.Bytes()))
	if err != nil || raw == nil {
		return false, false, err
	}
	return true, len(raw) == 1 && raw[0] == 1, nil
}

func (s store) setProcessed(id ethevents.EthEventId, accepted bool) error {
	v := byte(0)
	if accepted {
		v = 1
	}
	return s.Put(kvstore.Key(processedPrefix, id.Bytes()), []byte{v})
}

func partitionSlot(rng discovery.EthBlockRange, partition uint16) []byte {
	return kvstore.Key(partitionPrefix, bigendian.Uint32ToBytes(rng.StartBlock), bigendian.Uint32ToBytes(rng.Length), bigendian.Uint32ToBytes(uint32(partition)))
}

func (s store) partition(rng discovery.EthBlockRange, index uint16, id common.Hash) (*discovery.EthereumEventsPartition, error) {
	raw, err := s.Get(kvstore.Key(partitionSlot(rng, index), id[:]))
	if err != nil || raw == nil {
		return nil, err
	}
	p := &discovery.EthereumEventsPartition{}
	return p, p.UnmarshalCSER(raw)
}

func (s store) putPartitionOnce(p discovery.EthereumEventsPartition) error {
	id := p.ID()
	key := kvstore.Key(partitionSlot(p.Range(), p.Partition()), id[:])
	ok, err := s.Has(key)
	if err != nil || ok {
		return err
	}
	raw, err := p.MarshalCSER()
	if err != nil {
		return err
	}
	return s.Put(key, raw)
}

// dropPartitions removes the stored bodies voted for a slot.
func (s store) dropPartitions(rng discovery.EthBlockRange, index uint16) error {
	return kvstore.DeletePrefix(s, partitionSlot(rng, index))
}

func (s store) latestBlockVote(who author.AccountID) (uint32, bool, error) {
	raw, err := s.Get(kvstore.Key(latestPrefix, who[:]))
	if err != nil || len(raw) != 4 {
		return 0, false, err
	}
	return bigendian.BytesToUint32(raw), true, nil
}

func (s store) setLatestBlockVote(who author.AccountID, block uint32) error {
	return s.Put(kvstore.Key(latestPrefix, who[:]), bigendian.Uint32ToBytes(block))
}

func (s store) latestBlockVotes() ([]uint32, error) {
	var votes []uint32
	err := s.ForEach(latestPrefix, func(_, value []byte) bool {
		if len(value) == 4 {
			votes = append(votes, bigendian.BytesToUint32(value))
		}
		return true
	})
	return votes, err
}

func (s store) dropLatestBlockVotes() error {
	return kvstore.DeletePrefix(s, latestPrefix)
}

func offenceKey(kind OffenceKind, txID eth.EthereumId) []byte {
	return kvstore.Key(offencePrefix, []byte{byte(kind)}, bigendian.Uint32ToBytes(txID))
}

func (s store) offenceReported(kind OffenceKind, txID eth.EthereumId) (bool, error) {
	return s.Has(offenceKey(kind, txID))
}

func (s store) setOffenceReported(kind OffenceKind, txID eth.EthereumId) error {
	return s.Put(offenceKey(kind, txID), []byte{1})
}

// dropRangePartitions removes the stored bodies of every partition of rng.
func (s store) dropRangePartitions(rng discovery.EthBlockRange) error {
	return kvstore.DeletePrefix(s, kvstore.Key(partitionPrefix, bigendian.Uint32ToBytes(rng.StartBlock), bigendian.Uint32ToBytes(rng.Length)))
}
