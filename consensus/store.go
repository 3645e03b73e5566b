package consensus

import (
	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/kvstore"
	"github.com/rony4d/go-avn-bridge/utils/cser"
)

var (
	roundPrefix    = []byte("r")
	reporterPrefix = []byte("p")
	votesPrefix    = []byte("c")
	payloadPrefix  = []byte("h")
	lastPrefix     = []byte("l")
	knownFeedsKey  = []byte("k")
)

type store struct {
	kvstore.Store
}

func roundKey(feed FeedID, round uint32) []byte {
	return kvstore.Key(bigendian.Uint32ToBytes(feed), bigendian.Uint32ToBytes(round))
}

func (s store) round(feed FeedID) (uint32, error) {
	raw, err := s.Get(kvstore.Key(roundPrefix, bigendian.Uint32ToBytes(feed)))
	if err != nil || len(raw) != 4 {
		return 0, err
	}
	return bigendian.BytesToUint32(raw), nil
}

func (s store) setRound(feed FeedID, round uint32) error {
	return s.Put(kvstore.Key(roundPrefix, bigendian.Uint32ToBytes(feed)), bigendian.Uint32ToBytes(round))
}

func (s store) isReporter(feed FeedID, round uint32, who author.AccountID) (bool, error) {
	return s.Has(kvstore.Key(reporterPrefix, roundKey(feed, round), who[:]))
}

func (s store) setReporter(feed FeedID, round uint32, who author.AccountID) error {
	return s.Put(kvstore.Key(reporterPrefix, roundKey(feed, round), who[:]), []byte{1})
}

func (s store) votes(feed FeedID, round uint32, hash common.Hash) (uint32, error) {
	n, err := kvstore.GetU64(s, kvstore.Key(votesPrefix, roundKey(feed, round), hash[:]))
	return uint32(n), err
}

// vote increments the tally of hash and returns it.
func (s store) vote(feed FeedID, round uint32, hash common.Hash) (uint32, error) {
	key := kvstore.Key(votesPrefix, roundKey(feed, round), hash[:])
	n, err := kvstore.GetU64(s, key)
	if err != nil {
		return 0, err
	}
	n++
	return uint32(n), kvstore.PutU64(s, key, n)
}

func (s store) payload(feed FeedID, round uint32, hash common.Hash) ([]byte, error) {
	return s.Get(kvstore.Key(payloadPrefix, roundKey(feed, round), hash[:]))
}

func (s store) setPayloadOnce(feed FeedID, round uint32, hash common.Hash, payload []byte) error {
	key := kvstore.Key(payloadPrefix, roundKey(feed, round), hash[:])
	ok, err := s.Has(key)
	if err != nil || ok {
		return err
	}
	return s.Put(key, payload)
}

// dropRound removes the reporters, tallies and payloads of a closed round.
func (s store) dropRound(feed FeedID, round uint32) error {
	for _, prefix := range [][]byte{reporterPrefix, votesPrefix, payloadPrefix} {
		if err := kvstore.DeletePrefix(s, kvstore.Key(prefix, roundKey(feed, round))); err != nil {
			return err
		}
	}
	return nil
}

func (s store) lastSubmission(feed FeedID) (idx.Block, error) {
	n, err := kvstore.GetU64(s, kvstore.Key(lastPrefix, bigendian.Uint32ToBytes(feed)))
	return idx.Block(n), err
}

func (s store) setLastSubmission(feed FeedID, block idx.Block) error {
	return kvstore.PutU64(s, kvstore.Key(lastPrefix, bigendian.Uint32ToBytes(feed)), uint64(block))
}

func (s store) knownFeeds() ([]FeedID, error) {
	raw, err := s.Get(knownFeedsKey)
	if err != nil || len(raw) == 0 {
		return nil, err
	}
	var feeds []FeedID
	err = cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		n := r.Len(1 << 16)
		feeds = make([]FeedID, n)
		for i := range feeds {
			feeds[i] = r.U32()
		}
		return nil
	})
	return feeds, err
}

func (s store) setKnownFeeds(feeds []FeedID) error {
	raw, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.Len(len(feeds))
		for _, f := range feeds {
			w.U32(f)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.Put(knownFeedsKey, raw)
}
