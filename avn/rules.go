// Package avn defines the network rules of an AvN bridge deployment.
//
// This package provides:
//   - Network identification (main, test, fake)
//   - Bridge rules: request queue size, Ethereum transaction lifetime,
//     discovery range size
//   - Consensus rules: payload and feed limits, clearing timings
//   - Voting rules: voting period and unsigned transaction longevity
//   - Quorum formulas and the validator set with sender rotation
//
// The Rules type is the single source of every consensus-critical parameter.
// Every node of a network must run with identical Rules.
package avn

import (
	"encoding/json"
	"errors"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
)

// Network names
const (
	MainNetName = "main"
	TestNetName = "test"
	FakeNetName = "fake"
)

// Block timing of the AvN chain.
const (
	// SecsPerBlock is the target AvN block time.
	SecsPerBlock = 12

	// BlocksPerMinute converts wall-clock periods into block counts.
	BlocksPerMinute idx.Block = 60 / SecsPerBlock
)

var (
	ErrZeroRangeSize      = errors.New("eth block range size must be positive")
	ErrZeroQueueSize      = errors.New("request queue size must be positive")
	ErrZeroVotingPeriod   = errors.New("voting period must be positive")
	ErrPayloadLimitTooLow = errors.New("consensus payload limit must be positive")
)

// Rules describes the complete configuration of an AvN bridge network.
//
// Note: Copy() must be updated whenever a field holding a reference type
// is added.
type Rules struct {
	Name string // network name identifier ("main", "test", "fake")

	// Bridge options - request engine and event discovery
	Bridge BridgeRules

	// Consensus options - avn-consensus round engine
	Consensus ConsensusRules

	// Voting options - voting sessions
	Voting VotingRules

	// Quorum is the name of the quorum formula (see QuorumByName)
	Quorum string
}

// BridgeRules configures the Ethereum bridge request engine.
type BridgeRules struct {
	// EthTxLifetimeSecs is added to the current time to produce the expiry
	// of every outbound Ethereum transaction.
	EthTxLifetimeSecs uint64

	// MaxQueuedTxRequests bounds the FIFO of requests waiting behind the
	// active one. Requests beyond it fail with a queue-full error.
	MaxQueuedTxRequests uint32

	// EthBlockRangeSize is the length of every Ethereum block range scanned
	// for events.
	EthBlockRangeSize uint32
}

// ConsensusRules configures the round-based consensus engine.
type ConsensusRules struct {
	// MaxPayloadLen bounds a single submitted payload, in bytes.
	MaxPayloadLen uint32

	// MaxFeeds bounds the number of feeds with an open round.
	MaxFeeds uint32

	// RefreshRangeBlocks is the expected number of blocks between two
	// rounds of the same feed.
	RefreshRangeBlocks idx.Block

	// GracePeriod is the number of blocks after RefreshRangeBlocks that a
	// stalled round is left open before it may be cleared.
	GracePeriod idx.Block
}

// VotingRules configures voting sessions and unsigned transaction admission.
type VotingRules struct {
	// VotingPeriod is the number of blocks a voting session stays open.
	VotingPeriod idx.Block

	// UnsignedLongevity is the number of blocks an admitted unsigned
	// transaction stays valid in the pool.
	UnsignedLongevity uint64
}

// DefaultBridgeRules returns the bridge rules used on every network.
func DefaultBridgeRules() BridgeRules {
	return BridgeRules{
		EthTxLifetimeSecs:   60 * 30,
		MaxQueuedTxRequests: 100,
		EthBlockRangeSize:   20,
	}
}

// DefaultConsensusRules returns the consensus rules used on every network.
func DefaultConsensusRules() ConsensusRules {
	return ConsensusRules{
		MaxPayloadLen:      4096,
		MaxFeeds:           32,
		RefreshRangeBlocks: 10 * BlocksPerMinute,
		GracePeriod:        5 * BlocksPerMinute,
	}
}

// DefaultVotingRules returns the voting rules used on every network.
func DefaultVotingRules() VotingRules {
	return VotingRules{
		VotingPeriod:      30 * BlocksPerMinute,
		UnsignedLongevity: 64,
	}
}

// MainNetRules returns the rules of the production network.
func MainNetRules() Rules {
	return Rules{
		Name:      MainNetName,
		Bridge:    DefaultBridgeRules(),
		Consensus: DefaultConsensusRules(),
		Voting:    DefaultVotingRules(),
		Quorum:    OneThirdQuorumName,
	}
}

// TestNetRules returns the rules of the public test network. They only differ
// from main net by name.
func TestNetRules() Rules {
	r := MainNetRules()
	r.Name = TestNetName
	return r
}

// FakeNetRules returns rules for local networks and tests: short periods so
// that timeouts can be reached within a few blocks.
func FakeNetRules() Rules {
	r := MainNetRules()
	r.Name = FakeNetName
	r.Bridge.EthTxLifetimeSecs = 120
	r.Bridge.MaxQueuedTxRequests = 10
	r.Consensus.RefreshRangeBlocks = 10
	r.Consensus.GracePeriod = 5
	r.Voting.VotingPeriod = 2
	return r
}

// RulesByName returns the preset rules of a known network.
func RulesByName(name string) (Rules, bool) {
	switch name {
	case MainNetName:
		return MainNetRules(), true
	case TestNetName:
		return TestNetRules(), true
	case FakeNetName:
		return FakeNetRules(), true
	}
	return Rules{}, false
}

// Formula resolves the configured quorum formula. An unknown name falls back
// to OneThirdQuorum; Validate reports it.
func (r Rules) Formula() QuorumFormula {
	f, err := QuorumByName(r.Quorum)
	if err != nil {
		return OneThirdQuorum{}
	}
	return f
}

// Validate checks the rules for values that would stall the bridge.
func (r Rules) Validate() error {
	if r.Bridge.EthBlockRangeSize == 0 {
		return ErrZeroRangeSize
	}
	if r.Bridge.MaxQueuedTxRequests == 0 {
		return ErrZeroQueueSize
	}
	if r.Voting.VotingPeriod == 0 {
		return ErrZeroVotingPeriod
	}
	if r.Consensus.MaxPayloadLen == 0 {
		return ErrPayloadLimitTooLow
	}
	_, err := QuorumByName(r.Quorum)
	return err
}

// Copy returns a deep copy of the rules.
func (r Rules) Copy() Rules {
	// all fields are values
	return r
}

// String returns the rules as JSON.
func (r Rules) String() string {
	b, _ := json.Marshal(&r)
	return string(b)
}
