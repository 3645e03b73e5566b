package avn

import (
	"fmt"
	"strings"
)

// QuorumFormula maps a validator count to the vote thresholds used by every
// bridge component. It is injected through Rules so that all components of a
// node agree on the same thresholds.
type QuorumFormula interface {
	// Quorum is the number of matching votes that settles an outcome.
	Quorum(validators uint32) uint32
	// Supermajority is the number of Ethereum confirmations a lower proof
	// must carry before the bridge contract accepts it.
	Supermajority(validators uint32) uint32
}

// Quorum formula names accepted by Rules.Quorum.
const (
	OneThirdQuorumName = "one-third"
	BftQuorumName      = "bft"
)

// OneThirdQuorum is the AvN formula: quorum = n - floor(2n/3).
//
// With n = 10 validators, 4 matching votes settle an outcome, which leaves
// the 6 remaining validators unable to settle the opposite one.
type OneThirdQuorum struct{}

func (OneThirdQuorum) Quorum(n uint32) uint32 {
	return n - n*2/3
}

func (OneThirdQuorum) Supermajority(n uint32) uint32 {
	return supermajority(n)
}

// BftQuorum is the classic 2f+1 threshold with f = floor((n-1)/3).
type BftQuorum struct{}

func (BftQuorum) Quorum(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	f := (n - 1) / 3
	return 2*f + 1
}

func (BftQuorum) Supermajority(n uint32) uint32 {
	return supermajority(n)
}

// supermajority is n for fewer than 3 validators, floor(2n/3)+1 otherwise.
func supermajority(n uint32) uint32 {
	if n < 3 {
		return n
	}
	return n*2/3 + 1
}

// QuorumByName resolves a formula name as found in config files.
func QuorumByName(name string) (QuorumFormula, error) {
	switch strings.ToLower(name) {
	case "", OneThirdQuorumName:
		return OneThirdQuorum{}, nil
	case BftQuorumName:
		return BftQuorum{}, nil
	default:
		return nil, fmt.Errorf("unknown quorum formula %q", name)
	}
}
