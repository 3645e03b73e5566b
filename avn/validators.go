package avn

import (
	"errors"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-avn-bridge/inter/author"
)

var (
	ErrNoValidatorsFound  = errors.New("no validators found")
	ErrDuplicateValidator = errors.New("duplicate validator")
	ErrInvalidValidator   = errors.New("validator has no usable key")
)

// ValidatorSet is the ordered, immutable set of active validators.
//
// The order is significant: the primary validator of a block and the
// rotation of Ethereum transaction senders both index into it.
type ValidatorSet struct {
	list      []author.Author
	byAccount map[author.AccountID]int
	byAddress map[common.Address]int
}

// NewValidatorSet builds a set, rejecting duplicate accounts or Ethereum
// addresses and keys that cannot be decoded.
func NewValidatorSet(validators []author.Author) (*ValidatorSet, error) {
	s := &ValidatorSet{
		list:      make([]author.Author, len(validators)),
		byAccount: make(map[author.AccountID]int, len(validators)),
		byAddress: make(map[common.Address]int, len(validators)),
	}
	for i, v := range validators {
		addr, err := v.EthAddress()
		if err != nil {
			return nil, ErrInvalidValidator
		}
		if _, ok := s.byAccount[v.Account]; ok {
			return nil, ErrDuplicateValidator
		}
		if _, ok := s.byAddress[addr]; ok {
			return nil, ErrDuplicateValidator
		}
		s.list[i] = author.Author{Account: v.Account, Key: v.Key.Copy()}
		s.byAccount[v.Account] = i
		s.byAddress[addr] = i
	}
	return s, nil
}

// Len returns the number of validators.
func (s *ValidatorSet) Len() int {
	return len(s.list)
}

// Count is Len as a vote count.
func (s *ValidatorSet) Count() uint32 {
	return uint32(len(s.list))
}

// Authors returns a copy of the ordered validator list.
func (s *ValidatorSet) Authors() []author.Author {
	cp := make([]author.Author, len(s.list))
	copy(cp, s.list)
	return cp
}

// IsValidator reports whether the account belongs to the set.
func (s *ValidatorSet) IsValidator(account author.AccountID) bool {
	_, ok := s.byAccount[account]
	return ok
}

// Get returns the validator registered under account.
func (s *ValidatorSet) Get(account author.AccountID) (author.Author, bool) {
	i, ok := s.byAccount[account]
	if !ok {
		return author.Author{}, false
	}
	return s.list[i], true
}

// ByEthAddress returns the validator whose key maps to addr.
func (s *ValidatorSet) ByEthAddress(addr common.Address) (author.Author, bool) {
	i, ok := s.byAddress[addr]
	if !ok {
		return author.Author{}, false
	}
	return s.list[i], true
}

// IsAuthor reports whether a is a validator with exactly this key.
func (s *ValidatorSet) IsAuthor(a author.Author) bool {
	v, ok := s.Get(a.Account)
	return ok && v.Key.String() == a.Key.String()
}

// Quorum applies f to the set size.
func (s *ValidatorSet) Quorum(f QuorumFormula) uint32 {
	return f.Quorum(s.Count())
}

// Supermajority applies f to the set size.
func (s *ValidatorSet) Supermajority(f QuorumFormula) uint32 {
	return f.Supermajority(s.Count())
}

// PrimaryValidator returns the validator in charge of the given block:
// validators[block % n].
func (s *ValidatorSet) PrimaryValidator(block idx.Block) (author.AccountID, error) {
	if len(s.list) == 0 {
		return author.AccountID{}, ErrNoValidatorsFound
	}
	return s.list[uint64(block)%uint64(len(s.list))].Account, nil
}

// SenderAt returns the sender selected by a rotation cursor.
func (s *ValidatorSet) SenderAt(cursor uint64) (author.AccountID, error) {
	if len(s.list) == 0 {
		return author.AccountID{}, ErrNoValidatorsFound
	}
	return s.list[cursor%uint64(len(s.list))].Account, nil
}

// SenderRotation hands out Ethereum transaction senders round-robin. The
// cursor is part of the runtime state; Load and Store persist it.
type SenderRotation struct {
	Load  func() uint64
	Store func(uint64)
}

// AdvancePrimaryValidatorForSending returns the next sender and moves the
// cursor past it. The cursor does not move when the set is empty.
func (r SenderRotation) AdvancePrimaryValidatorForSending(s *ValidatorSet) (author.AccountID, error) {
	cursor := r.Load()
	sender, err := s.SenderAt(cursor)
	if err != nil {
		return sender, err
	}
	r.Store(cursor + 1)
	return sender, nil
}

// PrimaryValidatorForSending returns the sender the next call to
// AdvancePrimaryValidatorForSending would hand out.
func (r SenderRotation) PrimaryValidatorForSending(s *ValidatorSet) (author.AccountID, error) {
	return s.SenderAt(r.Load())
}
