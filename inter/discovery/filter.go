package discovery

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/ethevents"
	"github.com/rony4d/go-avn-bridge/utils/bounded"
	"github.com/rony4d/go-avn-bridge/utils/cser"
)

const (
	EventsTypesLimit      = 20
	AdditionalEventsLimit = 16
)

// EventsFilter is the set of event kinds a range is scanned for.
type EventsFilter = bounded.Set[ethevents.ValidEvent]

// AdditionalEvents holds Ethereum transaction hashes queued by the admin for
// inclusion in the next range.
type AdditionalEvents = bounded.Set[common.Hash]

func NewEventsFilter(events ...ethevents.ValidEvent) (EventsFilter, error) {
	return bounded.SetFrom(EventsTypesLimit, events)
}

// DefaultEventsFilter watches every known event.
func DefaultEventsFilter() EventsFilter {
	f, _ := NewEventsFilter(ethevents.AllEvents()...)
	return f
}

func NewAdditionalEvents(txs ...common.Hash) (AdditionalEvents, error) {
	return bounded.SetFrom(AdditionalEventsLimit, txs)
}

// ActiveEthRange is the range currently being voted on.
type ActiveEthRange struct {
	Range                  EthBlockRange
	Partition              uint16
	EventTypesFilter       EventsFilter
	AdditionalTransactions AdditionalEvents
}

func (a ActiveEthRange) Write(w *cser.Writer) {
	writeRange(w, a.Range)
	w.U16(a.Partition)
	filter := a.EventTypesFilter.Items()
	w.Len(len(filter))
	for _, e := range filter {
		w.U8(uint8(e))
	}
	txs := a.AdditionalTransactions.Items()
	w.Len(len(txs))
	for _, h := range txs {
		w.Hash(h)
	}
}

func ReadActiveEthRange(r *cser.Reader) ActiveEthRange {
	a := ActiveEthRange{
		Range:     readRange(r),
		Partition: r.U16(),
	}
	a.EventTypesFilter = bounded.NewSet[ethevents.ValidEvent](EventsTypesLimit)
	for i, n := 0, r.Len(EventsTypesLimit); i < n; i++ {
		e := ethevents.ValidEvent(r.U8())
		if !e.Valid() {
			panic(cser.ErrMalformedEncoding)
		}
		if ok, _ := a.EventTypesFilter.Insert(e); !ok {
			panic(cser.ErrNonCanonicalEncoding)
		}
	}
	a.AdditionalTransactions = bounded.NewSet[common.Hash](AdditionalEventsLimit)
	for i, n := 0, r.Len(AdditionalEventsLimit); i < n; i++ {
		if ok, _ := a.AdditionalTransactions.Insert(r.Hash()); !ok {
			panic(cser.ErrNonCanonicalEncoding)
		}
	}
	return a
}

// EncodeEthEventSubmissionData builds the payload a validator signs when
// submitting discovery data.
func EncodeEthEventSubmissionData(context []byte, account author.AccountID, data []byte) []byte {
	raw, _ := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.SliceBytes(context)
		w.FixedBytes(account[:])
		w.SliceBytes(data)
		return nil
	})
	return raw
}
