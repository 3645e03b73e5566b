package ethbridge

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-avn-bridge/avn/genesis"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/discovery"
	"github.com/rony4d/go-avn-bridge/inter/eth"
)

type submitted struct {
	instance uint32
	account  author.AccountID
	block    uint32
	events   bool
}

type fakeSubmitter struct {
	got []submitted
}

func (s *fakeSubmitter) SubmitEthereumEvents(instance uint32, account author.AccountID, _ discovery.EthereumEventsPartition, _ author.Signature) error {
	s.got = append(s.got, submitted{instance: instance, account: account, events: true})
	return nil
}

func (s *fakeSubmitter) SubmitLatestEthereumBlock(instance uint32, account author.AccountID, block uint32, _ author.Signature) error {
	s.got = append(s.got, submitted{instance: instance, account: account, block: block})
	return nil
}

func newTestAPI(env *testEnv) (*API, *fakeSubmitter) {
	host := NewHost()
	host.Add(env.bridge)
	sub := &fakeSubmitter{}
	return NewAPI(host, sub), sub
}

func TestHost(t *testing.T) {
	require := require.New(t)
	host := NewHost()
	_, err := host.Default()
	require.ErrorIs(err, ErrUnknownInstance)

	a := newTestEnv(t, 4).bridge
	b := New(7, nil, Deps{})
	host.Add(b)
	host.Add(a)

	def, err := host.Default()
	require.NoError(err)
	require.Equal(uint32(7), def.ID())
	require.Equal([]uint32{0, 7}, host.IDs())
	require.Equal([]*Bridge{a, b}, host.Bridges())
	_, err = host.Get(3)
	require.ErrorIs(err, ErrUnknownInstance)
}

func TestAPIQueries(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	api, _ := newTestAPI(env)
	require.Equal(uint32(3), api.Version())

	authors, err := api.QueryAuthors()
	require.NoError(err)
	require.Len(authors, 4)
	require.Equal(env.account(0), authors[0].Account)

	contract, err := api.QueryBridgeContract(0)
	require.NoError(err)
	require.Equal(genesis.FakeBridgeContract, contract)
	_, err = api.QueryBridgeContract(1)
	require.ErrorIs(err, ErrUnknownInstance)

	instances, err := api.Instances()
	require.NoError(err)
	require.Equal(map[uint32]eth.EthBridgeInstance{0: genesis.FakeInstance()}, instances)

	active, err := api.QueryActiveBlockRange(0)
	require.NoError(err)
	require.Nil(active)
	txs, err := api.AdditionalTransactions(0)
	require.NoError(err)
	require.Empty(txs)

	env.sendPublishRoot()
	msgHash := env.active().Confirmation.MsgHash
	require.NoError(env.confirm(1))
	sigs, err := api.QuerySignatures(0, msgHash)
	require.NoError(err)
	require.Len(sigs, 1)
	sigs, err = api.QuerySignatures(0, common.Hash{1})
	require.NoError(err)
	require.Nil(sigs)

	proof, err := api.CreateLatestBlockProof(0, env.account(1), 300)
	require.NoError(err)
	require.Equal(LatestBlockProof(env.instanceHash(), env.account(1), 300), proof)
}

func TestAPIVotes(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	api, sub := newTestAPI(env)

	voted, err := api.QueryHasAuthorCastedVote(0, env.account(0))
	require.NoError(err)
	require.False(voted)
	require.NoError(env.voteLatest(0, 100))
	voted, err = api.QueryHasAuthorCastedVote(0, env.account(0))
	require.NoError(err)
	require.True(voted)

	require.NoError(api.SubmitLatestEthereumBlock(0, env.account(1), 200, author.Signature{}))
	require.ErrorIs(api.SubmitLatestEthereumBlock(4, env.account(1), 200, author.Signature{}), ErrUnknownInstance)

	require.NoError(env.bridge.QueueAdditionalEthereumEvent(txHash(5)))
	require.NoError(env.voteLatest(1, 200))
	require.NoError(env.voteLatest(2, 300))
	active, err := api.QueryActiveBlockRange(0)
	require.NoError(err)
	p := env.partition(active.Range, 0, true)
	proof, err := api.CreateProof(0, env.account(3), p)
	require.NoError(err)
	want, err := EventsProof(env.instanceHash(), env.account(3), p)
	require.NoError(err)
	require.Equal(want, proof)
	require.NoError(api.SubmitVote(0, env.account(3), p, author.Signature{}))

	txs, err := api.AdditionalTransactions(0)
	require.NoError(err)
	require.Equal([]common.Hash{txHash(5)}, txs)

	require.Equal([]submitted{
		{instance: 0, account: env.account(1), block: 200},
		{instance: 0, account: env.account(3), events: true},
	}, sub.got)
}

func TestLegacyAPI(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	api, sub := newTestAPI(env)
	legacy := api.Legacy()

	contract, err := legacy.QueryBridgeContract()
	require.NoError(err)
	require.Equal(genesis.FakeBridgeContract, contract)

	require.NoError(legacy.SubmitLatestEthereumBlock(env.account(0), 9, author.Signature{}))
	require.Equal([]submitted{{instance: 0, account: env.account(0), block: 9}}, sub.got)

	rng := env.startRange()
	active, err := legacy.QueryActiveBlockRange()
	require.NoError(err)
	require.Equal(rng, active.Range)
	voted, err := legacy.QueryHasAuthorCastedVote(env.account(0))
	require.NoError(err)
	require.False(voted)

	p := env.partition(rng, 0, true)
	proof, err := legacy.CreateProof(env.account(0), p)
	require.NoError(err)
	want, err := api.CreateProof(0, env.account(0), p)
	require.NoError(err)
	require.Equal(want, proof)
	require.NoError(legacy.SubmitVote(env.account(0), p, author.Signature{}))
	require.Len(sub.got, 2)

	txs, err := legacy.AdditionalTransactions()
	require.NoError(err)
	require.Empty(txs)
	sigs, err := legacy.QuerySignatures(common.Hash{})
	require.NoError(err)
	require.Empty(sigs)

	_, err = NewAPI(NewHost(), sub).Legacy().QueryBridgeContract()
	require.ErrorIs(err, ErrUnknownInstance)
}
