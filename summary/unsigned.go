package summary

import (
	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/validity"
	"github.com/rony4d/go-avn-bridge/utils/cser"
)

const (
	RecordSummaryContext = "record_summary_context"
	UnsignedTagPrefix    = "Summary"

	InvalidIngressCounterCode uint8 = 1
	SummaryNotFreeCode        uint8 = 2
)

// RecordPayload is what a validator signs to record a root.
func RecordPayload(toBlock idx.Block, rootHash common.Hash, ingress uint64) ([]byte, error) {
	return cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.SliceBytes([]byte(RecordSummaryContext))
		w.U64(uint64(toBlock))
		w.Hash(rootHash)
		w.U64(ingress)
		return nil
	})
}

// ValidateRecordUnsigned checks a root record before it enters the pool. Only
// one record per ingress counter is admitted.
func (m *Module) ValidateRecordUnsigned(toBlock idx.Block, rootHash common.Hash, ingress uint64, validator author.AccountID, sig author.Signature) (validity.ValidTransaction, error) {
	counter, err := m.store.ingressCounter()
	if err != nil {
		return validity.ValidTransaction{}, err
	}
	if counter+1 != ingress {
		return validity.ValidTransaction{}, validity.CustomCode(InvalidIngressCounterCode)
	}
	payload, err := RecordPayload(toBlock, rootHash, ingress)
	if err != nil || !m.chain.Validators().VerifySignature(validator, payload, sig) {
		return validity.ValidTransaction{}, validity.ErrBadProof
	}
	from, err := m.store.nextBlock()
	if err != nil {
		return validity.ValidTransaction{}, err
	}
	if toBlock >= from {
		_, pending, err := m.store.pending(from, toBlock)
		if err != nil {
			return validity.ValidTransaction{}, err
		}
		if pending {
			return validity.ValidTransaction{}, validity.CustomCode(SummaryNotFreeCode)
		}
	}
	tag := append([]byte(RecordSummaryContext), bigendian.Uint64ToBytes(ingress)...)
	return validity.New(UnsignedTagPrefix, m.chain.Rules().Voting.UnsignedLongevity, tag), nil
}
