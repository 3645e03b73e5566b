package consensus

import (
	"github.com/Fantom-foundation/lachesis-base/common/bigendian"

	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/validity"
	"github.com/rony4d/go-avn-bridge/utils/cser"
)

// Reasons an unsigned consensus call is refused.
const (
	PayloadTooLargeCode uint8 = 10
	BadSubmitProofCode  uint8 = 1
	BadClearProofCode   uint8 = 2
	SubmitTagPrefix           = "ConsensusSubmit"
	ClearTagPrefix            = "ConsensusClear"
)

// SubmitPayload is what a validator signs to submit payload in round.
func SubmitPayload(feed FeedID, payload []byte, round uint32) ([]byte, error) {
	return cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.SliceBytes([]byte(SubmitContext))
		w.U32(feed)
		w.SliceBytes(payload)
		w.U32(round)
		return nil
	})
}

// ClearPayload is what a validator signs to clear round.
func ClearPayload(feed FeedID, round uint32) ([]byte, error) {
	return cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.SliceBytes([]byte(ClearContext))
		w.U32(feed)
		w.U32(round)
		return nil
	})
}

func tag(ctx string, feed FeedID, round uint32, who author.AccountID) []byte {
	t := append([]byte(ctx), bigendian.Uint32ToBytes(feed)...)
	t = append(t, bigendian.Uint32ToBytes(round)...)
	return append(t, who[:]...)
}

// ValidateSubmitUnsigned checks a submission before it enters the pool.
func (e *Engine) ValidateSubmitUnsigned(feed FeedID, payload []byte, validator author.AccountID, sig author.Signature) (validity.ValidTransaction, error) {
	if uint32(len(payload)) > e.chain.Rules().Consensus.MaxPayloadLen {
		return validity.ValidTransaction{}, validity.CustomCode(PayloadTooLargeCode)
	}
	round, err := e.store.round(feed)
	if err != nil {
		return validity.ValidTransaction{}, err
	}
	signed, err := SubmitPayload(feed, payload, round)
	if err != nil || !e.chain.Validators().VerifySignature(validator, signed, sig) {
		return validity.ValidTransaction{}, validity.CustomCode(BadSubmitProofCode)
	}
	v := validity.New(SubmitTagPrefix, e.chain.Rules().Voting.UnsignedLongevity, tag(SubmitContext, feed, round, validator))
	v.Propagate = false
	return v, nil
}

// ValidateClearUnsigned checks a clear before it enters the pool.
func (e *Engine) ValidateClearUnsigned(feed FeedID, validator author.AccountID, sig author.Signature) (validity.ValidTransaction, error) {
	round, err := e.store.round(feed)
	if err != nil {
		return validity.ValidTransaction{}, err
	}
	signed, err := ClearPayload(feed, round)
	if err != nil || !e.chain.Validators().VerifySignature(validator, signed, sig) {
		return validity.ValidTransaction{}, validity.CustomCode(BadClearProofCode)
	}
	v := validity.New(ClearTagPrefix, e.chain.Rules().Voting.UnsignedLongevity, tag(ClearContext, feed, round, validator))
	v.Propagate = false
	return v, nil
}
