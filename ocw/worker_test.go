package ocw

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-avn-bridge/avn/genesis"
	"github.com/rony4d/go-avn-bridge/ethbridge"
	"github.com/rony4d/go-avn-bridge/inter"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/kvstore"
	"github.com/rony4d/go-avn-bridge/runtime"
	"github.com/rony4d/go-avn-bridge/summary"
	"github.com/rony4d/go-avn-bridge/vote"
)

// fakeEthereum is a bridge contract that settles every transaction it
// receives.
type fakeEthereum struct {
	mu   sync.Mutex
	head uint64
	sent []*types.Transaction
}

func (f *fakeEthereum) BlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeEthereum) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (f *fakeEthereum) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() == hash {
			return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (f *fakeEthereum) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return common.BigToHash(big.NewInt(0)).Bytes(), nil
	}
	return common.BigToHash(big.NewInt(1)).Bytes(), nil
}

func (f *fakeEthereum) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(11155111), nil
}

func (f *fakeEthereum) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeEthereum) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1e9), nil
}

func (f *fakeEthereum) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100000, nil
}

func (f *fakeEthereum) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

// nodeSubmitter admits the worker extrinsics straight into the node pool.
type nodeSubmitter struct {
	node *runtime.Node
	exts []runtime.Extrinsic
}

func (s *nodeSubmitter) Send(ext runtime.Extrinsic) error {
	s.exts = append(s.exts, ext)
	_, err := s.node.Submit(ext)
	return err
}

type testEnv struct {
	t       *testing.T
	signers []*author.Signer
	eth     *fakeEthereum
	node    *runtime.Node
	submit  *nodeSubmitter
	workers []*Worker
	events  []inter.Event
}

func newTestEnv(t *testing.T, n int) *testEnv {
	log := logrus.NewEntry(logrus.New())
	node, err := runtime.New(kvstore.NewMemory(), genesis.FakeGenesis(n), runtime.DefaultConfig(), runtime.Deps{Log: log})
	require.NoError(t, err)
	env := &testEnv{
		t:       t,
		signers: genesis.FakeSigners(n),
		eth:     &fakeEthereum{head: 1000},
		node:    node,
		submit:  &nodeSubmitter{node: node},
	}
	for i, s := range env.signers {
		w, err := New(DefaultConfig(), s, node, env.submit, env.eth, NewBroadcaster(env.eth, genesis.FakeKey(i+1)), nil, log)
		require.NoError(t, err)
		env.workers = append(env.workers, w)
	}
	return env
}

func (env *testEnv) account(i int) author.AccountID {
	return env.signers[i].Author().Account
}

func (env *testEnv) produce() *runtime.BlockResult {
	res, err := env.node.ProduceBlock()
	require.NoError(env.t, err)
	env.events = append(env.events, res.Events...)
	return res
}

func (env *testEnv) tick() {
	for _, w := range env.workers {
		w.Tick(context.Background())
	}
}

func (env *testEnv) bridge(v runtime.View) *ethbridge.Bridge {
	b, err := v.Host.Default()
	require.NoError(env.t, err)
	return b
}

func (env *testEnv) publishRoot(root common.Hash) vote.RootID {
	id := vote.RootID{FromBlock: 0, ToBlock: 5, IngressCounter: 1}
	sub := vote.RootSubject(id)

	payload, err := summary.RecordPayload(id.ToBlock, root, 1)
	require.NoError(env.t, err)
	sig, err := env.signers[0].Sign(payload)
	require.NoError(env.t, err)
	_, err = env.node.Submit(runtime.RecordSummary(id.ToBlock, root, 1, env.account(0), sig))
	require.NoError(env.t, err)
	env.produce()

	var data []byte
	require.NoError(env.t, env.node.Query(func(v runtime.View) (err error) {
		data, err = v.Summary.EthEncodedData(sub)
		return err
	}))
	for i := 0; i < 2; i++ {
		ethSig, err := env.signers[i].SignEthHash(crypto.Keccak256Hash(data))
		require.NoError(env.t, err)
		payload, err := vote.ApprovePayload(sub, data, ethSig)
		require.NoError(env.t, err)
		sig, err := env.signers[i].Sign(payload)
		require.NoError(env.t, err)
		_, err = env.node.Submit(runtime.ApproveVote(sub, env.account(i), ethSig, sig))
		require.NoError(env.t, err)
	}
	env.produce()
	return id
}

func countCalls(exts []runtime.Extrinsic, call runtime.Call) int {
	n := 0
	for _, ext := range exts {
		if ext.Call == call {
			n++
		}
	}
	return n
}

func TestWorkersStartEventDiscovery(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)

	env.tick()
	require.Equal(4, countCalls(env.submit.exts, runtime.CallSubmitLatestEthereumBlock))
	// a second tick before the block does not submit again
	env.tick()
	require.Equal(4, len(env.submit.exts))
	env.produce()

	require.NoError(env.node.Query(func(v runtime.View) error {
		active, err := env.bridge(v).ActiveRange()
		require.NoError(err)
		require.NotNil(active)
		require.LessOrEqual(active.Range.EndBlock(), uint32(980))
		return nil
	}))

	env.tick()
	require.Equal(4, countCalls(env.submit.exts, runtime.CallSubmitEthereumEvents))
	env.produce()

	require.NoError(env.node.Query(func(v runtime.View) error {
		active, err := env.bridge(v).ActiveRange()
		require.NoError(err)
		require.NotNil(active)
		require.EqualValues(0, active.Partition)
		return nil
	}))
	require.NotEmpty(eventsOf[ethbridge.ActiveRangeUpdated](env.events))
}

func TestWorkersPublishSummaryRoot(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	root := common.HexToHash("0xabcd")
	id := env.publishRoot(root)

	var published []summary.RootPublished
	for i := 0; i < 10 && len(published) == 0; i++ {
		env.tick()
		env.produce()
		published = eventsOf[summary.RootPublished](env.events)
	}
	require.Len(published, 1)
	require.True(published[0].Success)

	require.Len(env.eth.sent, 1)
	require.NoError(env.node.Query(func(v runtime.View) error {
		in, err := env.bridge(v).Instance()
		require.NoError(err)
		require.Equal(in.BridgeContract, *env.eth.sent[0].To())

		data, err := v.Summary.Root(id)
		require.NoError(err)
		require.True(data.Finalised)

		settled, err := env.bridge(v).SettledTransaction(published[0].TxID)
		require.NoError(err)
		require.True(settled.TxSucceeded)
		require.Equal(env.eth.sent[0].Hash(), settled.EthTxHash)
		return nil
	}))
	require.Equal(1, countCalls(env.submit.exts, runtime.CallAddEthTxHash))
	require.GreaterOrEqual(countCalls(env.submit.exts, runtime.CallAddCorroboration), 2)
}

func TestWorkerIdleWithoutValidatorKey(t *testing.T) {
	env := newTestEnv(t, 4)
	outsider := author.NewSigner(genesis.FakeKey(99))
	w, err := New(DefaultConfig(), outsider, env.node, env.submit, env.eth, nil, nil, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	w.Tick(context.Background())
	require.Empty(t, env.submit.exts)
}

func TestLocks(t *testing.T) {
	require := require.New(t)
	locks, err := NewLocks(2, time.Minute)
	require.NoError(err)
	now := time.Unix(1000, 0)
	locks.clock = func() time.Time { return now }

	require.True(locks.TryLock("a"))
	require.False(locks.TryLock("a"))
	locks.Unlock("a")
	require.True(locks.TryLock("a"))

	now = now.Add(time.Minute)
	require.True(locks.TryLock("a"))

	// the oldest name is forgotten past the size
	require.True(locks.TryLock("b"))
	require.True(locks.TryLock("c"))
	require.True(locks.TryLock("a"))
}

func eventsOf[T inter.Event](events []inter.Event) []T {
	var out []T
	for _, e := range events {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
