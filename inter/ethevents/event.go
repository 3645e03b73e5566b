package ethevents

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/rony4d/go-avn-bridge/utils/cser"
)

// EthEventId identifies an event by its topic0 and the transaction that
// emitted it. Only the bridge's own contracts are watched, so the contract
// address is not part of the id.
type EthEventId struct {
	Signature       common.Hash
	TransactionHash common.Hash
}

// Kind resolves the id's signature.
func (id EthEventId) Kind() (ValidEvent, bool) {
	return FromSignature(id.Signature)
}

// Bytes is the key used for processed-event bookkeeping.
func (id EthEventId) Bytes() []byte {
	return append(common.CopyBytes(id.Signature[:]), id.TransactionHash[:]...)
}

func (id EthEventId) String() string {
	return id.Signature.Hex()[:10] + "/" + id.TransactionHash.Hex()
}

// EthEvent is an event id together with its parsed payload.
type EthEvent struct {
	EventID EthEventId
	Data    EventData
}

// ParseLog builds an EthEvent from an Ethereum log. Unknown signatures fail
// with ErrUnknownEvent.
func ParseLog(l types.Log) (EthEvent, error) {
	if len(l.Topics) == 0 {
		return EthEvent{}, ErrNoTopics
	}
	kind, ok := FromSignature(l.Topics[0])
	if !ok {
		return EthEvent{}, ErrUnknownEvent
	}
	topics := make([][]byte, len(l.Topics))
	for i, t := range l.Topics {
		topics[i] = common.CopyBytes(t[:])
	}
	var data []byte
	if len(l.Data) != 0 {
		data = common.CopyBytes(l.Data)
	}
	payload, err := ParseEventData(kind, data, topics)
	if err != nil {
		return EthEvent{}, err
	}
	return EthEvent{
		EventID: EthEventId{Signature: l.Topics[0], TransactionHash: l.TxHash},
		Data:    payload,
	}, nil
}

// IsValid is false for events without payload rules satisfied.
func (e EthEvent) IsValid() bool {
	if e.Data == nil {
		return false
	}
	return e.Data.IsValid()
}

// Equal compares canonical encodings.
func (e EthEvent) Equal(o EthEvent) bool {
	a, errA := e.MarshalCSER()
	b, errB := o.MarshalCSER()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// MarshalCSER encodes the event canonically.
func (e EthEvent) MarshalCSER() ([]byte, error) {
	return cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		e.Write(w)
		return nil
	})
}

func (e *EthEvent) UnmarshalCSER(raw []byte) error {
	return cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		*e = ReadEthEvent(r)
		return nil
	})
}
