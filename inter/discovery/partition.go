package discovery

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/blake2b"

	"github.com/rony4d/go-avn-bridge/inter/ethevents"
	"github.com/rony4d/go-avn-bridge/utils/cser"
)

// EventsBatchLimit is the maximum number of events in one partition.
const EventsBatchLimit = 32

var ErrTooManyEvents = errors.New("too many events in partition")

// DiscoveredEvent is an event seen in a given Ethereum block.
type DiscoveredEvent struct {
	Event ethevents.EthEvent
	Block uint64
}

// CompareDiscoveredEvents orders events by signature, then block, then
// transaction hash.
func CompareDiscoveredEvents(a, b DiscoveredEvent) int {
	if c := bytes.Compare(a.Event.EventID.Signature[:], b.Event.EventID.Signature[:]); c != 0 {
		return c
	}
	switch {
	case a.Block < b.Block:
		return -1
	case a.Block > b.Block:
		return 1
	}
	return bytes.Compare(a.Event.EventID.TransactionHash[:], b.Event.EventID.TransactionHash[:])
}

// sortEvents sorts a copy of events and drops entries that compare equal to
// their predecessor.
func sortEvents(events []DiscoveredEvent) []DiscoveredEvent {
	if len(events) == 0 {
		return nil
	}
	sorted := make([]DiscoveredEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return CompareDiscoveredEvents(sorted[i], sorted[j]) < 0
	})
	out := sorted[:0]
	for i, ev := range sorted {
		if i > 0 && CompareDiscoveredEvents(out[len(out)-1], ev) == 0 {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// EthereumEventsPartition is one chunk of the events discovered in a range.
// Partitions built by different validators from the same events are byte
// identical, which is what their votes compare.
type EthereumEventsPartition struct {
	rng       EthBlockRange
	partition uint16
	isLast    bool
	events    []DiscoveredEvent
}

// NewEthereumEventsPartition sorts and dedupes events, failing if more than
// EventsBatchLimit remain.
func NewEthereumEventsPartition(rng EthBlockRange, partition uint16, isLast bool, events []DiscoveredEvent) (EthereumEventsPartition, error) {
	sorted := sortEvents(events)
	if len(sorted) > EventsBatchLimit {
		return EthereumEventsPartition{}, fmt.Errorf("%w: %d", ErrTooManyEvents, len(sorted))
	}
	return EthereumEventsPartition{
		rng:       rng,
		partition: partition,
		isLast:    isLast,
		events:    sorted,
	}, nil
}

func (p EthereumEventsPartition) Range() EthBlockRange { return p.rng }

func (p EthereumEventsPartition) Partition() uint16 { return p.partition }

func (p EthereumEventsPartition) IsLast() bool { return p.isLast }

// Events returns a copy of the sorted events.
func (p EthereumEventsPartition) Events() []DiscoveredEvent {
	cp := make([]DiscoveredEvent, len(p.events))
	copy(cp, p.events)
	return cp
}

// ID is blake2b-256 over the canonical encoding.
func (p EthereumEventsPartition) ID() common.Hash {
	raw, err := p.MarshalCSER()
	if err != nil {
		return common.Hash{}
	}
	return common.Hash(blake2b.Sum256(raw))
}

func (p EthereumEventsPartition) Write(w *cser.Writer) {
	writeRange(w, p.rng)
	w.U16(p.partition)
	w.Bool(p.isLast)
	w.Len(len(p.events))
	for _, ev := range p.events {
		ev.Event.Write(w)
		w.U64(ev.Block)
	}
}

// ReadEthereumEventsPartition decodes a partition. Events must already be in
// canonical order.
func ReadEthereumEventsPartition(r *cser.Reader) EthereumEventsPartition {
	p := EthereumEventsPartition{
		rng:       readRange(r),
		partition: r.U16(),
		isLast:    r.Bool(),
	}
	n := r.Len(EventsBatchLimit)
	if n == 0 {
		return p
	}
	p.events = make([]DiscoveredEvent, n)
	for i := range p.events {
		p.events[i].Event = ethevents.ReadEthEvent(r)
		p.events[i].Block = r.U64()
		if i > 0 && CompareDiscoveredEvents(p.events[i-1], p.events[i]) >= 0 {
			panic(cser.ErrNonCanonicalEncoding)
		}
	}
	return p
}

func (p EthereumEventsPartition) MarshalCSER() ([]byte, error) {
	return cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		p.Write(w)
		return nil
	})
}

func (p *EthereumEventsPartition) UnmarshalCSER(raw []byte) error {
	return cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		*p = ReadEthereumEventsPartition(r)
		return nil
	})
}

// PartitionFactory splits the events of a range into partitions of at most
// EventsBatchLimit events, in canonical order. The last partition is flagged.
// A range without events still yields one empty, last partition so that its
// vote can complete.
func PartitionFactory(rng EthBlockRange, events []DiscoveredEvent) []EthereumEventsPartition {
	sorted := sortEvents(events)
	count := (len(sorted) + EventsBatchLimit - 1) / EventsBatchLimit
	if count == 0 {
		return []EthereumEventsPartition{{rng: rng, isLast: true}}
	}
	partitions := make([]EthereumEventsPartition, 0, count)
	for i := 0; i < count; i++ {
		end := (i + 1) * EventsBatchLimit
		if end > len(sorted) {
			end = len(sorted)
		}
		chunk := make([]DiscoveredEvent, end-i*EventsBatchLimit)
		copy(chunk, sorted[i*EventsBatchLimit:end])
		partitions = append(partitions, EthereumEventsPartition{
			rng:       rng,
			partition: uint16(i),
			isLast:    i == count-1,
			events:    chunk,
		})
	}
	return partitions
}

func writeRange(w *cser.Writer, r EthBlockRange) {
	w.U32(r.StartBlock)
	w.U32(r.Length)
}

func readRange(r *cser.Reader) EthBlockRange {
	return EthBlockRange{StartBlock: r.U32(), Length: r.U32()}
}
