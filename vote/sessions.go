// Package vote implements voting sessions: validators approve or reject a
// subject until one side reaches the threshold or the voting period ends.
//
// The modules owning the subjects (summary roots, validator actions, growth
// periods) plug in through the Owner interface; Sessions dispatches on the
// subject kind.
package vote

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-avn-bridge/avn"
	"github.com/rony4d/go-avn-bridge/inter"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/kvstore"
)

var (
	ErrNotAValidator           = errors.New("not a validator")
	ErrInvalidVote             = errors.New("invalid vote")
	ErrDuplicateVote           = errors.New("duplicate vote")
	ErrSessionNotFound         = errors.New("voting session data not found")
	ErrSessionExists           = errors.New("voting session already exists")
	ErrVotingSessionIsNotValid = errors.New("voting session is not valid")
	ErrErrorEndingVotingPeriod = errors.New("voting period cannot be ended yet")
	ErrInvalidECDSASignature   = errors.New("invalid ecdsa signature")
	ErrVectorBoundsExceeded    = errors.New("vector bounds exceeded")
	ErrNoOwner                 = errors.New("no module owns this subject kind")
)

// Owner is the module a kind of subject belongs to.
type Owner interface {
	// IsPending reports whether the subject still awaits the outcome of
	// its vote. A session is only valid while its subject is pending.
	IsPending(s Subject) bool
	// EthEncodedData returns the data approving validators confirm with
	// an Ethereum signature.
	EthEncodedData(s Subject) ([]byte, error)
	// EndVoting applies the outcome of a session. It must stop the subject
	// from being pending.
	EndVoting(s Subject, session *VotingSessionData, reporter author.AccountID) error
}

// Owners wires an Owner per subject kind.
type Owners struct {
	SummaryRoot     Owner
	ValidatorAction Owner
	Growth          Owner
}

// VoteAdded is deposited for every recorded vote.
type VoteAdded struct {
	Subject Subject
	Voter   author.AccountID
	Approve bool
}

func (VoteAdded) Module() string { return "voting" }
func (VoteAdded) Name() string   { return "VoteAdded" }

// VotingEnded is deposited when a session is closed.
type VotingEnded struct {
	Subject  Subject
	Approved bool
}

func (VotingEnded) Module() string { return "voting" }
func (VotingEnded) Name() string   { return "VotingEnded" }

// Sessions stores and drives voting sessions.
type Sessions struct {
	store  kvstore.Store
	chain  avn.Chain
	owners Owners
	sink   inter.EventSink
	log    *logrus.Entry
}

// New creates the session manager. store should be a table dedicated to
// voting sessions.
func New(store kvstore.Store, chain avn.Chain, owners Owners, sink inter.EventSink, log *logrus.Entry) *Sessions {
	return &Sessions{
		store:  store,
		chain:  chain,
		owners: owners,
		sink:   sink,
		log:    log.WithField("module", "voting"),
	}
}

func (s *Sessions) owner(sub Subject) (Owner, error) {
	var o Owner
	switch sub.Kind() {
	case KindSummaryRoot:
		o = s.owners.SummaryRoot
	case KindValidatorAction:
		o = s.owners.ValidatorAction
	case KindGrowth:
		o = s.owners.Growth
	default:
		return nil, ErrUnknownSubject
	}
	if o == nil {
		return nil, ErrNoOwner
	}
	return o, nil
}

// CreateSession opens a session for sub, lasting the configured voting
// period from the current block.
func (s *Sessions) CreateSession(sub Subject) (*VotingSessionData, error) {
	id, err := sub.SessionID()
	if err != nil {
		return nil, err
	}
	exists, err := s.store.Has(id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrSessionExists
	}
	now := s.chain.BlockNumber()
	rules := s.chain.Rules()
	threshold := s.chain.Validators().Quorum(rules.Formula())
	data := NewVotingSessionData(id, threshold, now+rules.Voting.VotingPeriod, now)
	if err := kvstore.PutBinary(s.store, id, data); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"subject": sub, "threshold": threshold}).Debug("Voting session created")
	return data, nil
}

// State returns the stored session of sub.
func (s *Sessions) State(sub Subject) (*VotingSessionData, error) {
	id, err := sub.SessionID()
	if err != nil {
		return nil, err
	}
	data := &VotingSessionData{}
	ok, err := kvstore.GetBinary(s.store, id, data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}
	return data, nil
}

// IsValid reports whether the session exists and its subject is pending.
func (s *Sessions) IsValid(sub Subject) bool {
	owner, err := s.owner(sub)
	if err != nil {
		return false
	}
	if _, err := s.State(sub); err != nil {
		return false
	}
	return owner.IsPending(sub)
}

// IsActive reports whether the session is valid and its voting period has
// not ended.
func (s *Sessions) IsActive(sub Subject) bool {
	data, err := s.State(sub)
	if err != nil {
		return false
	}
	return s.chain.BlockNumber() < data.EndOfVotingPeriod && s.IsValid(sub)
}

func (s *Sessions) validateVote(sub Subject, voter author.AccountID) error {
	if !s.chain.Validators().IsValidator(voter) {
		return ErrNotAValidator
	}
	if !s.IsActive(sub) {
		return ErrInvalidVote
	}
	data, err := s.State(sub)
	if err != nil {
		return err
	}
	if data.HasVoted(voter) {
		return ErrDuplicateVote
	}
	return nil
}

// ProcessApproveVote records an aye together with the voter's Ethereum
// confirmation of the subject's data, then ends the session if that settled
// it.
func (s *Sessions) ProcessApproveVote(sub Subject, voter author.AccountID, ethSignature author.Signature) error {
	if err := s.validateVote(sub, voter); err != nil {
		return err
	}
	owner, err := s.owner(sub)
	if err != nil {
		return err
	}
	ethData, err := owner.EthEncodedData(sub)
	if err != nil {
		return err
	}
	v, _ := s.chain.Validators().Get(voter)
	if !author.VerifyEthConfirmation(v, crypto.Keccak256Hash(ethData), ethSignature) {
		return ErrInvalidECDSASignature
	}

	data, err := s.State(sub)
	if err != nil {
		return err
	}
	if _, err := data.Ayes.Insert(voter); err != nil {
		return fmt.Errorf("%w: %v", ErrVectorBoundsExceeded, err)
	}
	if err := data.Confirmations.TryPush(ethSignature); err != nil {
		return fmt.Errorf("%w: %v", ErrVectorBoundsExceeded, err)
	}
	if err := kvstore.PutBinary(s.store, data.VotingSessionID, data); err != nil {
		return err
	}
	s.sink.Deposit(VoteAdded{Subject: sub, Voter: voter, Approve: ApproveVote})
	return s.endVotingIfOutcomeReached(sub, voter)
}

// ProcessRejectVote records a nay, then ends the session if that settled it.
func (s *Sessions) ProcessRejectVote(sub Subject, voter author.AccountID) error {
	if err := s.validateVote(sub, voter); err != nil {
		return err
	}
	data, err := s.State(sub)
	if err != nil {
		return err
	}
	if _, err := data.Nays.Insert(voter); err != nil {
		return fmt.Errorf("%w: %v", ErrVectorBoundsExceeded, err)
	}
	if err := kvstore.PutBinary(s.store, data.VotingSessionID, data); err != nil {
		return err
	}
	s.sink.Deposit(VoteAdded{Subject: sub, Voter: voter, Approve: RejectVote})
	return s.endVotingIfOutcomeReached(sub, voter)
}

func (s *Sessions) endVotingIfOutcomeReached(sub Subject, voter author.AccountID) error {
	data, err := s.State(sub)
	if err != nil {
		return err
	}
	if data.HasOutcome() && s.IsActive(sub) {
		return s.EndVoting(sub, voter)
	}
	return nil
}

// EndVoting closes a session that has an outcome or whose voting period is
// over, and hands the result to the owning module. The session data stays
// in storage as voting history.
func (s *Sessions) EndVoting(sub Subject, reporter author.AccountID) error {
	if !s.IsValid(sub) {
		return ErrVotingSessionIsNotValid
	}
	data, err := s.State(sub)
	if err != nil {
		return err
	}
	if !data.HasOutcome() && s.chain.BlockNumber() < data.EndOfVotingPeriod {
		return ErrErrorEndingVotingPeriod
	}
	owner, err := s.owner(sub)
	if err != nil {
		return err
	}
	if err := owner.EndVoting(sub, data, reporter); err != nil {
		return err
	}
	approved := data.IsApproved()
	s.sink.Deposit(VotingEnded{Subject: sub, Approved: approved})
	s.log.WithFields(logrus.Fields{
		"subject":  sub,
		"approved": approved,
		"ayes":     data.Ayes.Len(),
		"nays":     data.Nays.Len(),
	}).Info("Voting ended")
	return nil
}

// EndVotingPeriod is the extrinsic a validator submits once the voting period
// of a session without outcome is over.
func (s *Sessions) EndVotingPeriod(sub Subject, sender author.AccountID) error {
	return s.EndVoting(sub, sender)
}
