package vote

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/utils/cser"
)

// SessionIDLimit bounds the encoded session id.
const SessionIDLimit = 64

var ErrUnknownSubject = errors.New("unknown vote subject")

// Kind enumerates the subjects that can be voted on.
type Kind uint8

const (
	KindSummaryRoot Kind = iota + 1
	KindValidatorAction
	KindGrowth
)

func (k Kind) String() string {
	switch k {
	case KindSummaryRoot:
		return "SummaryRoot"
	case KindValidatorAction:
		return "ValidatorAction"
	case KindGrowth:
		return "Growth"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// RootID identifies a summary root awaiting approval.
type RootID struct {
	FromBlock      idx.Block
	ToBlock        idx.Block
	IngressCounter uint64
}

// ActionID identifies a validator registration or deregistration.
type ActionID struct {
	Account        author.AccountID
	IngressCounter uint64
}

// GrowthID identifies a growth period awaiting approval.
type GrowthID struct {
	Period         uint32
	IngressCounter uint64
}

// Subject is the thing a voting session decides on. Exactly one field is set.
type Subject struct {
	Root   *RootID
	Action *ActionID
	Growth *GrowthID
}

func RootSubject(id RootID) Subject {
	return Subject{Root: &id}
}

func ActionSubject(id ActionID) Subject {
	return Subject{Action: &id}
}

func GrowthSubject(id GrowthID) Subject {
	return Subject{Growth: &id}
}

// Kind returns 0 unless exactly one variant is set.
func (s Subject) Kind() Kind {
	var kind Kind
	n := 0
	if s.Root != nil {
		kind, n = KindSummaryRoot, n+1
	}
	if s.Action != nil {
		kind, n = KindValidatorAction, n+1
	}
	if s.Growth != nil {
		kind, n = KindGrowth, n+1
	}
	if n != 1 {
		return 0
	}
	return kind
}

// CastVoteContext is signed together with approve and reject votes.
func (s Subject) CastVoteContext() []byte {
	switch s.Kind() {
	case KindSummaryRoot:
		return []byte("root_casting_vote")
	case KindValidatorAction:
		return []byte("validators_manager_casting_vote")
	case KindGrowth:
		return []byte("growth_casting_vote")
	}
	return nil
}

// EndVotingPeriodContext is signed by validators ending an expired session.
func (s Subject) EndVotingPeriodContext() []byte {
	switch s.Kind() {
	case KindSummaryRoot:
		return []byte("root_end_voting_period")
	case KindValidatorAction:
		return []byte("validators_manager_end_voting_period")
	case KindGrowth:
		return []byte("growth_end_voting_period")
	}
	return nil
}

// SessionID is the canonical encoding of the subject. It keys the session
// in storage and appears in every signed vote.
func (s Subject) SessionID() ([]byte, error) {
	kind := s.Kind()
	if kind == 0 {
		return nil, ErrUnknownSubject
	}
	return cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.U8(uint8(kind))
		switch kind {
		case KindSummaryRoot:
			w.U64(uint64(s.Root.FromBlock))
			w.U64(uint64(s.Root.ToBlock))
			w.U64(s.Root.IngressCounter)
		case KindValidatorAction:
			w.FixedBytes(s.Action.Account[:])
			w.U64(s.Action.IngressCounter)
		case KindGrowth:
			w.U32(s.Growth.Period)
			w.U64(s.Growth.IngressCounter)
		}
		return nil
	})
}

// SubjectFromSessionID decodes a SessionID.
func SubjectFromSessionID(raw []byte) (Subject, error) {
	var s Subject
	err := cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		switch Kind(r.U8()) {
		case KindSummaryRoot:
			s = RootSubject(RootID{
				FromBlock:      idx.Block(r.U64()),
				ToBlock:        idx.Block(r.U64()),
				IngressCounter: r.U64(),
			})
		case KindValidatorAction:
			var id ActionID
			r.FixedBytes(id.Account[:])
			id.IngressCounter = r.U64()
			s = ActionSubject(id)
		case KindGrowth:
			s = GrowthSubject(GrowthID{Period: r.U32(), IngressCounter: r.U64()})
		default:
			return ErrUnknownSubject
		}
		return nil
	})
	return s, err
}

func (s Subject) String() string {
	switch s.Kind() {
	case KindSummaryRoot:
		return fmt.Sprintf("Root(%d-%d, %d)", s.Root.FromBlock, s.Root.ToBlock, s.Root.IngressCounter)
	case KindValidatorAction:
		return fmt.Sprintf("Action(%s, %d)", s.Action.Account.Short(), s.Action.IngressCounter)
	case KindGrowth:
		return fmt.Sprintf("Growth(%d, %d)", s.Growth.Period, s.Growth.IngressCounter)
	}
	return "Unknown"
}
