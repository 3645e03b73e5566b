package ethbridge

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-avn-bridge/inter/discovery"
	"github.com/rony4d/go-avn-bridge/inter/ethevents"
)

func (env *testEnv) instanceHash() common.Hash {
	in, err := env.bridge.Instance()
	require.NoError(env.t, err)
	return in.Hash()
}

func (env *testEnv) voteLatest(i int, block uint32) error {
	sig, err := env.signers[i].Sign(LatestBlockProof(env.instanceHash(), env.account(i), block))
	require.NoError(env.t, err)
	return env.bridge.SubmitLatestEthereumBlock(env.account(i), block, sig)
}

func (env *testEnv) vote(i int, p discovery.EthereumEventsPartition) error {
	signed, err := EventsProof(env.instanceHash(), env.account(i), p)
	require.NoError(env.t, err)
	sig, err := env.signers[i].Sign(signed)
	require.NoError(env.t, err)
	return env.bridge.SubmitEthereumEvents(env.account(i), p, sig)
}

// startRange votes the initial range [100..119] on a 4 validator network.
func (env *testEnv) startRange() discovery.EthBlockRange {
	for i, block := range []uint32{100, 200, 300} {
		require.NoError(env.t, env.voteLatest(i, block))
	}
	active, err := env.bridge.ActiveRange()
	require.NoError(env.t, err)
	require.NotNil(env.t, active)
	return active.Range
}

func (env *testEnv) partition(rng discovery.EthBlockRange, index uint16, isLast bool, events ...discovery.DiscoveredEvent) discovery.EthereumEventsPartition {
	p, err := discovery.NewEthereumEventsPartition(rng, index, isLast, events)
	require.NoError(env.t, err)
	return p
}

func txHash(i int64) common.Hash {
	return common.BigToHash(big.NewInt(i))
}

func lifted(tx int64, block uint64) discovery.DiscoveredEvent {
	return discovery.DiscoveredEvent{
		Event: ethevents.EthEvent{
			EventID: ethevents.EthEventId{Signature: ethevents.Lifted.Signature(), TransactionHash: txHash(tx)},
			Data: &ethevents.LiftedData{
				TokenContract:   common.Address{1},
				SenderAddress:   common.Address{2},
				ReceiverAddress: common.Hash{3},
				Amount:          big.NewInt(tx),
			},
		},
		Block: block,
	}
}

func nftMint(tx int64, block uint64) discovery.DiscoveredEvent {
	return discovery.DiscoveredEvent{
		Event: ethevents.EthEvent{
			EventID: ethevents.EthEventId{Signature: ethevents.NftMint.Signature(), TransactionHash: txHash(tx)},
			Data: &ethevents.NftMintData{
				BatchID:           big.NewInt(9),
				T2OwnerPublicKey:  common.Hash{4},
				SaleIndex:         1,
				UniqueExternalRef: []byte("ref"),
			},
		},
		Block: block,
	}
}

func TestChooseLatestBlock(t *testing.T) {
	for _, tc := range []struct {
		votes  []uint32
		quorum uint32
		want   uint32
	}{
		{[]uint32{100, 200, 300, 400}, 2, 300},
		{[]uint32{400, 100, 300, 200}, 3, 200},
		{[]uint32{7, 7, 1}, 2, 7},
		{[]uint32{5}, 3, 5},
		{[]uint32{5, 6}, 0, 6},
	} {
		require.Equal(t, tc.want, chooseLatestBlock(tc.votes, tc.quorum), "%v", tc.votes)
	}
}

func TestInitialRangeVoting(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)

	require.NoError(env.voteLatest(0, 100))
	voted, err := env.bridge.HasCastVote(env.account(0))
	require.NoError(err)
	require.True(voted)
	voted, err = env.bridge.HasCastVote(env.account(1))
	require.NoError(err)
	require.False(voted)

	require.ErrorIs(env.voteLatest(0, 150), ErrEventVoteExists)
	require.ErrorIs(env.voteLatest(1, 0), ErrInvalidEthereumBlock)
	forged, err := env.signers[1].Sign(LatestBlockProof(env.instanceHash(), env.account(2), 200))
	require.NoError(err)
	require.ErrorIs(env.bridge.SubmitLatestEthereumBlock(env.account(2), 200, forged), ErrInvalidSignature)

	require.NoError(env.voteLatest(1, 200))
	active, err := env.bridge.ActiveRange()
	require.NoError(err)
	require.Nil(active)

	require.NoError(env.voteLatest(2, 300))
	active, err = env.bridge.ActiveRange()
	require.NoError(err)
	require.NotNil(active)
	require.Equal(discovery.EthBlockRange{StartBlock: 100, Length: 20}, active.Range)
	require.Zero(active.Partition)
	require.Equal(len(ethevents.AllEvents()), active.EventTypesFilter.Len())

	set := eventsOf[InitialRangeSet](env.events)
	require.Len(set, 1)
	require.Equal(uint32(200), set[0].ChosenBlock)

	require.ErrorIs(env.voteLatest(3, 400), ErrVotingEnded)
	voted, err = env.bridge.HasCastVote(env.account(0))
	require.NoError(err)
	require.False(voted)
}

func TestInitialRangeTakesPendingEvents(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)

	require.NoError(env.bridge.QueueAdditionalEthereumEvent(txHash(42)))
	env.startRange()

	active, err := env.bridge.ActiveRange()
	require.NoError(err)
	require.Equal([]common.Hash{txHash(42)}, active.AdditionalTransactions.Items())
	pending, err := env.bridge.PendingAdditionalEvents()
	require.NoError(err)
	require.Empty(pending)
	require.ErrorIs(env.bridge.QueueAdditionalEthereumEvent(txHash(42)), ErrEventAlreadyQueued)
}

func TestEventsPartitionVoting(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)

	require.ErrorIs(env.vote(0, env.partition(discovery.EthBlockRange{StartBlock: 100, Length: 20}, 0, true)), ErrNoActiveRange)
	rng := env.startRange()

	invalid := lifted(2, 101)
	invalid.Event.Data.(*ethevents.LiftedData).ReceiverAddress = common.Hash{}
	unknown := discovery.DiscoveredEvent{
		Event: ethevents.EthEvent{EventID: ethevents.EthEventId{Signature: common.Hash{0xde, 0xad}, TransactionHash: txHash(3)}},
		Block: 102,
	}
	p0 := env.partition(rng, 0, false, lifted(1, 100), invalid, unknown)

	require.NoError(env.vote(0, p0))
	require.ErrorIs(env.vote(0, p0), ErrEventVoteExists)
	voted, err := env.bridge.HasCastVote(env.account(0))
	require.NoError(err)
	require.True(voted)
	require.Empty(env.token.got)

	require.NoError(env.vote(1, p0))
	require.Len(env.token.got, 1)
	require.Equal(txHash(1), env.token.got[0].EventID.TransactionHash)

	for _, tc := range []struct {
		ev       discovery.DiscoveredEvent
		accepted bool
	}{
		{lifted(1, 100), true},
		{invalid, false},
		{unknown, false},
	} {
		found, accepted, err := env.bridge.EventProcessed(tc.ev.Event.EventID)
		require.NoError(err)
		require.True(found)
		require.Equal(tc.accepted, accepted)
	}
	require.Len(eventsOf[EventAccepted](env.events), 1)
	require.Len(eventsOf[EventRejected](env.events), 2)

	active, err := env.bridge.ActiveRange()
	require.NoError(err)
	require.Equal(rng, active.Range)
	require.Equal(uint16(1), active.Partition)

	require.ErrorIs(env.vote(2, p0), ErrNonActiveEthereumRange)
	require.ErrorIs(env.vote(2, env.partition(rng, 2, true)), ErrEventBelongsInFutureRange)
	require.ErrorIs(env.vote(2, env.partition(rng.NextRange(), 0, true)), ErrEventBelongsInFutureRange)
	forged, err := EventsProof(env.instanceHash(), env.account(3), p0)
	require.NoError(err)
	sig, err := env.signers[2].Sign(forged)
	require.NoError(err)
	require.ErrorIs(env.bridge.SubmitEthereumEvents(env.account(3), p0, sig), ErrInvalidSignature)

	require.NoError(env.bridge.QueueAdditionalEthereumEvent(txHash(77)))
	pending, err := env.bridge.PendingAdditionalEvents()
	require.NoError(err)
	require.Equal([]common.Hash{txHash(77)}, pending)

	p1 := env.partition(rng, 1, true, lifted(1, 100), nftMint(5, 110))
	require.NoError(env.vote(2, p1))
	require.NoError(env.vote(3, p1))

	require.Len(env.token.got, 1)
	require.Len(env.nft.got, 1)
	require.Len(eventsOf[DuplicateEventSubmission](env.events), 1)

	active, err = env.bridge.ActiveRange()
	require.NoError(err)
	require.Equal(rng.NextRange(), active.Range)
	require.Zero(active.Partition)
	require.Equal([]common.Hash{txHash(77)}, active.AdditionalTransactions.Items())
	pending, err = env.bridge.PendingAdditionalEvents()
	require.NoError(err)
	require.Empty(pending)
	require.Len(eventsOf[ActiveRangeUpdated](env.events), 2)
}

func TestHandlerErrorRejectsEvent(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	env.token.fail = errors.New("paused")
	rng := env.startRange()

	ev := lifted(1, 100)
	p := env.partition(rng, 0, true, ev)
	require.NoError(env.vote(0, p))
	require.NoError(env.vote(1, p))

	found, accepted, err := env.bridge.EventProcessed(ev.Event.EventID)
	require.NoError(err)
	require.True(found)
	require.False(accepted)
	rejected := eventsOf[EventRejected](env.events)
	require.Len(rejected, 1)
	require.Equal("paused", rejected[0].Reason)
}

func TestEventWithoutHandlerIsRejected(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	rng := env.startRange()

	ev := discovery.DiscoveredEvent{
		Event: ethevents.EthEvent{
			EventID: ethevents.EthEventId{Signature: ethevents.AvtLowerClaimed.Signature(), TransactionHash: txHash(8)},
			Data:    &ethevents.AvtLowerClaimedData{LowerID: 3},
		},
		Block: 105,
	}
	env.bridge.handlers.Token = nil
	p := env.partition(rng, 0, true, ev)
	require.NoError(env.vote(0, p))
	require.NoError(env.vote(1, p))

	rejected := eventsOf[EventRejected](env.events)
	require.Len(rejected, 1)
	require.Equal(ev.Event.EventID, rejected[0].EventID)
}

func TestRestartEventDiscovery(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	require.ErrorIs(env.bridge.RestartEventDiscoveryOnRange(), ErrNoActiveRange)
	rng := env.startRange()

	p0 := env.partition(rng, 0, false, lifted(1, 100))
	require.NoError(env.vote(0, p0))
	require.NoError(env.vote(1, p0))
	p1 := env.partition(rng, 1, true, lifted(2, 101))
	require.NoError(env.vote(2, p1))

	require.NoError(env.bridge.RestartEventDiscoveryOnRange())
	active, err := env.bridge.ActiveRange()
	require.NoError(err)
	require.Equal(rng, active.Range)
	require.Zero(active.Partition)
	voted, err := env.bridge.HasCastVote(env.account(2))
	require.NoError(err)
	require.False(voted)
	require.Len(eventsOf[EventDiscoveryRestarted](env.events), 1)

	// events of the first pass stay processed
	require.NoError(env.vote(0, p0))
	require.NoError(env.vote(1, p0))
	require.Len(env.token.got, 1)
	require.Len(eventsOf[DuplicateEventSubmission](env.events), 1)
}
