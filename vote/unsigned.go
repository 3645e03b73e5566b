package vote

import (
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/validity"
	"github.com/rony4d/go-avn-bridge/utils/cser"
)

const (
	ApproveVote = true
	RejectVote  = false
)

// Reasons an unsigned vote is refused.
const (
	ApproveVoteIsNotValid       uint8 = 2
	RejectVoteIsNotValid        uint8 = 3
	VoteSessionIsNotValid       uint8 = 4
	VotingSessionDataIsNotFound uint8 = 5
	UnsignedTagPrefix                 = "vote"
)

// ApprovePayload is what a validator signs to approve sub.
func ApprovePayload(sub Subject, ethEncodedData []byte, ethSignature author.Signature) ([]byte, error) {
	id, err := sub.SessionID()
	if err != nil {
		return nil, err
	}
	return cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.SliceBytes(sub.CastVoteContext())
		w.SliceBytes(id)
		w.Bool(ApproveVote)
		w.SliceBytes(ethEncodedData)
		w.FixedBytes(ethSignature[:])
		return nil
	})
}

// RejectPayload is what a validator signs to reject sub.
func RejectPayload(sub Subject) ([]byte, error) {
	id, err := sub.SessionID()
	if err != nil {
		return nil, err
	}
	return cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.SliceBytes(sub.CastVoteContext())
		w.SliceBytes(id)
		w.Bool(RejectVote)
		return nil
	})
}

// EndVotingPeriodPayload is what a validator signs to end an expired session.
func EndVotingPeriodPayload(sub Subject) ([]byte, error) {
	id, err := sub.SessionID()
	if err != nil {
		return nil, err
	}
	return cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.SliceBytes(sub.EndVotingPeriodContext())
		w.SliceBytes(id)
		return nil
	})
}

func voteTag(ctx, id []byte, approve bool, validator author.AccountID) []byte {
	tag := make([]byte, 0, len(ctx)+len(id)+1+len(validator))
	tag = append(tag, ctx...)
	tag = append(tag, id...)
	if approve {
		tag = append(tag, 1)
	} else {
		tag = append(tag, 0)
	}
	return append(tag, validator[:]...)
}

func (s *Sessions) admit(tag []byte) validity.ValidTransaction {
	return validity.New(UnsignedTagPrefix, s.chain.Rules().Voting.UnsignedLongevity, tag)
}

// ValidateApproveUnsigned checks an approve vote before it enters the pool.
// The Ethereum confirmation itself is checked when the vote is applied.
func (s *Sessions) ValidateApproveUnsigned(sub Subject, voter author.AccountID, ethSignature author.Signature, signature author.Signature) (validity.ValidTransaction, error) {
	if _, err := s.State(sub); err != nil {
		return validity.ValidTransaction{}, validity.CustomCode(VotingSessionDataIsNotFound)
	}
	if err := s.validateVote(sub, voter); err != nil {
		return validity.ValidTransaction{}, validity.CustomCode(ApproveVoteIsNotValid)
	}
	owner, err := s.owner(sub)
	if err != nil {
		return validity.ValidTransaction{}, validity.CustomCode(ApproveVoteIsNotValid)
	}
	ethData, err := owner.EthEncodedData(sub)
	if err != nil {
		return validity.ValidTransaction{}, validity.CustomCode(ApproveVoteIsNotValid)
	}
	payload, err := ApprovePayload(sub, ethData, ethSignature)
	if err != nil || !s.chain.Validators().VerifySignature(voter, payload, signature) {
		return validity.ValidTransaction{}, validity.ErrBadProof
	}
	id, _ := sub.SessionID()
	return s.admit(voteTag(sub.CastVoteContext(), id, ApproveVote, voter)), nil
}

// ValidateRejectUnsigned checks a reject vote before it enters the pool.
func (s *Sessions) ValidateRejectUnsigned(sub Subject, voter author.AccountID, signature author.Signature) (validity.ValidTransaction, error) {
	if _, err := s.State(sub); err != nil {
		return validity.ValidTransaction{}, validity.CustomCode(VotingSessionDataIsNotFound)
	}
	if err := s.validateVote(sub, voter); err != nil {
		return validity.ValidTransaction{}, validity.CustomCode(RejectVoteIsNotValid)
	}
	payload, err := RejectPayload(sub)
	if err != nil || !s.chain.Validators().VerifySignature(voter, payload, signature) {
		return validity.ValidTransaction{}, validity.ErrBadProof
	}
	id, _ := sub.SessionID()
	return s.admit(voteTag(sub.CastVoteContext(), id, RejectVote, voter)), nil
}

// ValidateEndVotingPeriodUnsigned checks an end-of-period extrinsic before it
// enters the pool.
func (s *Sessions) ValidateEndVotingPeriodUnsigned(sub Subject, sender author.AccountID, signature author.Signature) (validity.ValidTransaction, error) {
	if _, err := s.State(sub); err != nil {
		return validity.ValidTransaction{}, validity.CustomCode(VotingSessionDataIsNotFound)
	}
	if !s.IsValid(sub) {
		return validity.ValidTransaction{}, validity.CustomCode(VoteSessionIsNotValid)
	}
	payload, err := EndVotingPeriodPayload(sub)
	if err != nil || !s.chain.Validators().VerifySignature(sender, payload, signature) {
		return validity.ValidTransaction{}, validity.ErrBadProof
	}
	id, _ := sub.SessionID()
	tag := append(append(sub.EndVotingPeriodContext(), id...), sender[:]...)
	return s.admit(tag), nil
}
