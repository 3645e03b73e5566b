package summary

import (
	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-avn-bridge/inter/eth"
	"github.com/rony4d/go-avn-bridge/kvstore"
	"github.com/rony4d/go-avn-bridge/utils/cser"
	"github.com/rony4d/go-avn-bridge/vote"
)

var (
	rootPrefix     = []byte("r")
	pendingPrefix  = []byte("p")
	approvedPrefix = []byte("a")
	txRootPrefix   = []byte("t")
	ingressKey     = []byte("c")
	nextBlockKey   = []byte("n")
)

type store struct {
	kvstore.Store
}

func rangeKey(from, to idx.Block) []byte {
	return kvstore.Key(bigendian.Uint64ToBytes(uint64(from)), bigendian.Uint64ToBytes(uint64(to)))
}

func rootKey(id vote.RootID) []byte {
	return kvstore.Key(rootPrefix, rangeKey(id.FromBlock, id.ToBlock), bigendian.Uint64ToBytes(id.IngressCounter))
}

func (d *RootData) MarshalBinary() ([]byte, error) {
	return cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.Hash(d.Hash)
		w.FixedBytes(d.Submitter[:])
		w.Bool(d.Validated)
		w.Bool(d.Finalised)
		w.OptionalU32(d.TxID)
		return nil
	})
}

func (d *RootData) UnmarshalBinary(raw []byte) error {
	return cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		d.Hash = r.Hash()
		r.FixedBytes(d.Submitter[:])
		d.Validated = r.Bool()
		d.Finalised = r.Bool()
		d.TxID = r.OptionalU32()
		return nil
	})
}

func (s store) root(id vote.RootID) (*RootData, error) {
	data := &RootData{}
	ok, err := kvstore.GetBinary(s, rootKey(id), data)
	if err != nil || !ok {
		return nil, err
	}
	return data, nil
}

func (s store) setRoot(id vote.RootID, data *RootData) error {
	return kvstore.PutBinary(s, rootKey(id), data)
}

// pending returns the ingress counter of the root awaiting approval for the
// range.
func (s store) pending(from, to idx.Block) (uint64, bool, error) {
	key := kvstore.Key(pendingPrefix, rangeKey(from, to))
	ok, err := s.Has(key)
	if err != nil || !ok {
		return 0, false, err
	}
	ingress, err := kvstore.GetU64(s, key)
	return ingress, true, err
}

func (s store) setPending(id vote.RootID) error {
	return kvstore.PutU64(s, kvstore.Key(pendingPrefix, rangeKey(id.FromBlock, id.ToBlock)), id.IngressCounter)
}

func (s store) dropPending(from, to idx.Block) error {
	return s.Delete(kvstore.Key(pendingPrefix, rangeKey(from, to)))
}

func (s store) approved(from, to idx.Block) (bool, error) {
	return s.Has(kvstore.Key(approvedPrefix, rangeKey(from, to)))
}

func (s store) setApproved(from, to idx.Block) error {
	return s.Put(kvstore.Key(approvedPrefix, rangeKey(from, to)), []byte{1})
}

func (s store) txRoot(txID eth.EthereumId) (vote.RootID, bool, error) {
	raw, err := s.Get(kvstore.Key(txRootPrefix, bigendian.Uint32ToBytes(txID)))
	if err != nil || raw == nil {
		return vote.RootID{}, false, err
	}
	var id vote.RootID
	err = cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		id.FromBlock = idx.Block(r.U64())
		id.ToBlock = idx.Block(r.U64())
		id.IngressCounter = r.U64()
		return nil
	})
	return id, err == nil, err
}

func (s store) setTxRoot(txID eth.EthereumId, id vote.RootID) error {
	raw, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.U64(uint64(id.FromBlock))
		w.U64(uint64(id.ToBlock))
		w.U64(id.IngressCounter)
		return nil
	})
	if err != nil {
		return err
	}
	return s.Put(kvstore.Key(txRootPrefix, bigendian.Uint32ToBytes(txID)), raw)
}

func (s store) dropTxRoot(txID eth.EthereumId) error {
	return s.Delete(kvstore.Key(txRootPrefix, bigendian.Uint32ToBytes(txID)))
}

func (s store) ingressCounter() (uint64, error) {
	return kvstore.GetU64(s, ingressKey)
}

func (s store) setIngressCounter(n uint64) error {
	return kvstore.PutU64(s, ingressKey, n)
}

func (s store) nextBlock() (idx.Block, error) {
	n, err := kvstore.GetU64(s, nextBlockKey)
	return idx.Block(n), err
}

func (s store) setNextBlock(b idx.Block) error {
	return kvstore.PutU64(s, nextBlockKey, uint64(b))
}
