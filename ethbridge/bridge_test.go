package ethbridge

import (
	"bytes"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-avn-bridge/avn/genesis"
	"github.com/rony4d/go-avn-bridge/consensus"
	"github.com/rony4d/go-avn-bridge/inter"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/eth"
	"github.com/rony4d/go-avn-bridge/inter/ethevents"
	"github.com/rony4d/go-avn-bridge/kvstore"
)

type result struct {
	kind     inter.RequestKind
	id       eth.EthereumId
	callerID []byte
	success  bool
	data     []byte
	err      error
}

type notifier struct {
	results []result
	fail    error
}

func (n *notifier) ProcessResult(txID eth.EthereumId, callerID []byte, success bool) error {
	n.results = append(n.results, result{kind: inter.SendRequest, id: txID, callerID: callerID, success: success})
	return n.fail
}

func (n *notifier) ProcessLowerProofResult(lowerID eth.EthereumId, callerID []byte, proof []byte, err error) error {
	n.results = append(n.results, result{kind: inter.LowerProofRequest, id: lowerID, callerID: callerID, success: err == nil, data: proof, err: err})
	return n.fail
}

func (n *notifier) ProcessReadResult(readID eth.EthereumId, callerID []byte, res []byte, err error) error {
	n.results = append(n.results, result{kind: inter.ReadContractRequest, id: readID, callerID: callerID, success: err == nil, data: res, err: err})
	return n.fail
}

type handler struct {
	got  []ethevents.EthEvent
	fail error
}

func (h *handler) ProcessEvent(_ uint32, event ethevents.EthEvent, _ uint64) error {
	if h.fail != nil {
		return h.fail
	}
	h.got = append(h.got, event)
	return nil
}

type offences map[OffenceKind][]author.AccountID

func (o offences) ReportOffence(kind OffenceKind, offenders []author.AccountID) error {
	o[kind] = append(o[kind], offenders...)
	return nil
}

type testEnv struct {
	t        *testing.T
	chain    *genesis.StaticChain
	signers  []*author.Signer
	events   *inter.EventLog
	notify   *notifier
	token    *handler
	nft      *handler
	offences offences
	engine   *consensus.Engine
	bridge   *Bridge
}

func newTestEnv(t *testing.T, n int) *testEnv {
	chain, err := genesis.NewStaticChain(genesis.FakeGenesis(n))
	require.NoError(t, err)
	env := &testEnv{
		t:        t,
		chain:    chain,
		signers:  genesis.FakeSigners(n),
		events:   &inter.EventLog{},
		notify:   &notifier{},
		token:    &handler{},
		nft:      &handler{},
		offences: offences{},
	}
	log := logrus.NewEntry(logrus.New())
	db := kvstore.NewMemory()
	mux := consensus.NewMux()
	env.engine = consensus.New(kvstore.Table(db, []byte("c")), chain, mux, env.events, nil, log)
	env.bridge = New(0, kvstore.Table(db, []byte("b")), Deps{
		Chain:     chain,
		Consensus: env.engine,
		Notify:    env.notify,
		Handlers:  Handlers{Token: env.token, Nft: env.nft},
		Offences:  env.offences,
		Sink:      env.events,
		Log:       log,
	})
	mux.Handle(EventsFeed(0), env.bridge)
	require.NoError(t, env.bridge.Init(genesis.FakeInstance(), 1))
	return env
}

func (env *testEnv) account(i int) author.AccountID {
	return env.signers[i].Author().Account
}

func (env *testEnv) active() *inter.ActiveRequestData {
	active, err := env.bridge.ActiveRequest()
	require.NoError(env.t, err)
	require.NotNil(env.t, active)
	return active
}

func (env *testEnv) confirm(i int) error {
	active := env.active()
	sig, err := env.signers[i].SignEthHash(active.Confirmation.MsgHash)
	require.NoError(env.t, err)
	return env.bridge.AddConfirmation(active.Request.ID(), sig, env.account(i))
}

func (env *testEnv) corroborate(i int, succeeded, hashValid bool) error {
	active := env.active()
	return env.bridge.AddCorroboration(active.Request.ID(), succeeded, hashValid, env.account(i), active.TxData.ReplayAttempt)
}

func (env *testEnv) sendPublishRoot() eth.EthereumId {
	root := bytes.Repeat([]byte{0xab}, 32)
	txID, err := env.bridge.AddNewSendRequest([]byte(eth.MethodPublishRoot), []eth.Param{eth.NewParam(eth.Bytes32, root)}, []byte("summary"))
	require.NoError(env.t, err)
	return txID
}

func eventsOf[T inter.Event](log *inter.EventLog) []T {
	var out []T
	for _, e := range log.Events() {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func testLowerParams(lowerID uint32) eth.LowerParams {
	return eth.ConcatLowerData(
		lowerID,
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		big.NewInt(1000),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
		common.HexToHash("0x33"),
		1700000000,
	)
}

func TestSendRequestLifecycle(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 7)
	require.Equal(uint32(3), env.bridge.quorum())

	txID := env.sendPublishRoot()
	require.Equal(eth.EthereumId(1), txID)
	active := env.active()
	require.Equal(inter.SendRequest, active.Request.Kind())
	require.Equal(env.account(0), active.TxData.Sender)
	require.Len(active.TxData.EthTxParams, 3)
	require.Len(eventsOf[PublishToEthereum](env.events), 1)

	// the sender confirms by broadcasting
	require.NoError(env.confirm(0))
	require.Zero(env.active().Confirmation.Confirmations.Len())

	require.NoError(env.confirm(1))
	require.ErrorIs(env.confirm(1), ErrDuplicateConfirmation)

	sig, err := env.signers[2].SignEthHash(active.Confirmation.MsgHash)
	require.NoError(err)
	require.ErrorIs(env.bridge.AddConfirmation(txID, sig, env.account(3)), ErrInvalidECDSASignature)
	require.ErrorIs(env.bridge.AddConfirmation(txID+1, sig, env.account(2)), ErrInvalidRequestID)

	require.NoError(env.confirm(2))
	require.True(env.bridge.HasEnoughConfirmations(env.active()))
	require.NoError(env.confirm(3))
	require.Equal(2, env.active().Confirmation.Confirmations.Len())

	hash := common.HexToHash("0xfeed")
	require.ErrorIs(env.bridge.AddEthTxHash(txID, hash, env.account(1)), ErrEthTxHashMustBeSetBySender)
	require.NoError(env.bridge.AddEthTxHash(txID, hash, env.account(0)))
	require.ErrorIs(env.bridge.AddEthTxHash(txID, hash, env.account(0)), ErrEthTxHashAlreadySet)

	require.NoError(env.corroborate(1, true, true))
	require.NoError(env.corroborate(2, true, true))
	require.ErrorIs(env.corroborate(1, false, true), ErrDuplicateCorroboration)
	require.NoError(env.corroborate(3, false, true))
	require.Empty(env.notify.results)
	require.NoError(env.corroborate(4, true, true))

	require.Equal([]result{{kind: inter.SendRequest, id: txID, callerID: []byte("summary"), success: true}}, env.notify.results)
	active, err = env.bridge.ActiveRequest()
	require.NoError(err)
	require.Nil(active)

	settled, err := env.bridge.SettledTransaction(txID)
	require.NoError(err)
	require.NotNil(settled)
	require.True(settled.TxSucceeded)
	require.Equal(hash, settled.EthTxHash)
	require.Equal(env.account(0), settled.Sender)

	require.Equal([]author.AccountID{env.account(3)}, env.offences[ChallengeAttemptedOnSuccessfulTransaction])
	require.Len(eventsOf[OffenceReported](env.events), 1)
	require.Len(eventsOf[TransactionSettled](env.events), 1)

	require.ErrorIs(env.bridge.AddCorroboration(txID, true, true, env.account(5), 0), ErrNoActiveRequest)
}

func TestFailedTransactionSettles(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	txID := env.sendPublishRoot()

	require.NoError(env.corroborate(1, false, true))
	require.NoError(env.corroborate(2, false, true))

	require.Equal([]result{{kind: inter.SendRequest, id: txID, callerID: []byte("summary")}}, env.notify.results)
	settled, err := env.bridge.SettledTransaction(txID)
	require.NoError(err)
	require.False(settled.TxSucceeded)
	require.Empty(env.offences)
}

func TestReplayOnInvalidTxHash(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	txID := env.sendPublishRoot()
	first := env.active()

	env.chain.Advance(1)
	require.NoError(env.corroborate(1, false, false))
	require.NoError(env.corroborate(2, false, false))

	replayed := env.active()
	require.Equal(txID, replayed.Request.ID())
	require.Equal(uint16(1), replayed.TxData.ReplayAttempt)
	require.Equal(env.account(1), replayed.TxData.Sender)
	require.Greater(replayed.TxData.Expiry, first.TxData.Expiry)
	require.NotEqual(first.Confirmation.MsgHash, replayed.Confirmation.MsgHash)
	require.Zero(replayed.TxData.FailureCorroborations.Len())
	require.Len(eventsOf[ActiveRequestRetried](env.events), 1)
	require.Empty(env.notify.results)

	// a corroboration of the first attempt is ignored
	require.NoError(env.bridge.AddCorroboration(txID, false, false, env.account(3), 0))
	require.Zero(env.active().TxData.FailureCorroborations.Len())

	require.NoError(env.corroborate(2, true, true))
	require.NoError(env.corroborate(3, true, true))
	require.Len(env.notify.results, 1)
	require.True(env.notify.results[0].success)
}

func TestExpiredTransactionFails(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	txID := env.sendPublishRoot()
	expiry := env.active().TxData.Expiry
	lifetime, err := env.bridge.EthTxLifetimeSecs()
	require.NoError(err)
	require.Equal(uint64(120), lifetime)

	env.chain.Block = 21
	require.Equal(expiry+lifetime, env.chain.Now())
	env.bridge.OnInitialize(env.chain.Block)
	require.Empty(env.notify.results)

	env.chain.Advance(1)
	env.bridge.OnInitialize(env.chain.Block)
	require.Equal([]result{{kind: inter.SendRequest, id: txID, callerID: []byte("summary")}}, env.notify.results)
	settled := eventsOf[TransactionSettled](env.events)
	require.Len(settled, 1)
	require.False(settled[0].Succeeded)
}

func TestLowerProofRequest(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	params := testLowerParams(77)

	require.NoError(env.bridge.AddNewLowerProofRequest(77, params, []byte("lower")))
	active := env.active()
	require.Equal(eth.CreateLowerProofHash(params, genesis.FakeInstance().Domain()), active.Confirmation.MsgHash)

	// no implicit sender: a supermajority of confirmations is needed
	require.NoError(env.confirm(0))
	require.NoError(env.confirm(1))
	require.Empty(env.notify.results)
	require.NoError(env.confirm(2))

	require.Len(env.notify.results, 1)
	got := env.notify.results[0]
	require.Equal(inter.LowerProofRequest, got.kind)
	require.Equal(eth.EthereumId(77), got.id)
	require.NoError(got.err)
	require.True(bytes.HasPrefix(got.data, params[:]))
	require.Len(eventsOf[LowerProofCompleted](env.events), 1)

	active, err := env.bridge.ActiveRequest()
	require.NoError(err)
	require.Nil(active)
}

func TestLowerProofBadPadding(t *testing.T) {
	env := newTestEnv(t, 4)
	params := testLowerParams(1)
	params[25] = 1
	require.ErrorIs(t, env.bridge.AddNewLowerProofRequest(1, params, nil), ErrLowerParamsError)
}

func TestReadRequest(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	contract := common.HexToAddress("0x4444444444444444444444444444444444444444")
	params := []eth.Param{eth.NewParam(eth.Address, contract.Bytes())}

	readID, err := env.bridge.AddNewReadRequest(contract, []byte("balanceOf"), params, []byte("reader"), nil)
	require.NoError(err)
	require.Len(eventsOf[ReadContractRequested](env.events), 1)

	require.NoError(env.bridge.AddReadResult(readID, []byte("a"), env.account(0)))
	require.NoError(env.bridge.AddReadResult(readID, []byte("b"), env.account(1)))
	require.ErrorIs(env.bridge.AddReadResult(readID, []byte("a"), env.account(0)), ErrDuplicateReadResult)
	require.ErrorIs(env.bridge.AddReadResult(readID, make([]byte, inter.ReadResultLimit+1), env.account(2)), inter.ErrReadResultTooLong)
	require.Empty(env.notify.results)

	require.NoError(env.bridge.AddReadResult(readID, []byte("a"), env.account(2)))
	require.Equal([]result{{kind: inter.ReadContractRequest, id: readID, callerID: []byte("reader"), success: true, data: []byte("a")}}, env.notify.results)
}

func TestReadRequestWithoutConsensus(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	readID, err := env.bridge.AddNewReadRequest(common.Address{1}, []byte("totalSupply"), nil, nil, nil)
	require.NoError(err)

	for i, res := range []string{"a", "b", "c"} {
		require.NoError(env.bridge.AddReadResult(readID, []byte(res), env.account(i)))
	}
	require.Empty(env.notify.results)
	require.NoError(env.bridge.AddReadResult(readID, []byte("d"), env.account(3)))
	require.Len(env.notify.results, 1)
	require.ErrorIs(env.notify.results[0].err, ErrNoReadConsensus)
}

func TestQueueIsFIFO(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)

	txID := env.sendPublishRoot()
	require.NoError(env.bridge.AddNewLowerProofRequest(77, testLowerParams(77), []byte("lower")))
	readID, err := env.bridge.AddNewReadRequest(common.Address{1}, []byte("totalSupply"), nil, []byte("reader"), nil)
	require.NoError(err)
	queue, err := env.bridge.Queue()
	require.NoError(err)
	require.Len(queue, 2)

	for _, want := range []struct {
		kind inter.RequestKind
		id   eth.EthereumId
	}{
		{inter.SendRequest, txID},
		{inter.LowerProofRequest, 77},
		{inter.ReadContractRequest, readID},
	} {
		active := env.active()
		require.Equal(want.kind, active.Request.Kind())
		require.Equal(want.id, active.Request.ID())
		require.NoError(env.bridge.RemoveActiveRequest())
	}
	require.ErrorIs(env.bridge.RemoveActiveRequest(), ErrNoActiveRequest)

	require.Len(env.notify.results, 3)
	require.False(env.notify.results[0].success)
	require.Error(env.notify.results[1].err)
	require.Error(env.notify.results[2].err)
	require.Len(eventsOf[ActiveRequestRemoved](env.events), 3)
}

func TestQueuedRequestFailsToStart(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	bad := testLowerParams(5)
	bad[30] = 1

	env.sendPublishRoot()
	require.NoError(env.bridge.AddNewLowerProofRequest(5, bad, []byte("bad")))
	next := env.sendPublishRoot()

	require.NoError(env.bridge.RemoveActiveRequest())
	require.Equal(next, env.active().Request.ID())

	failed := eventsOf[RequestFailedToStart](env.events)
	require.Len(failed, 1)
	require.Equal(eth.EthereumId(5), failed[0].RequestID)
	require.Len(env.notify.results, 2)
	require.ErrorIs(env.notify.results[1].err, ErrLowerParamsError)
}

func TestQueueFull(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	limit := int(env.chain.Net.Bridge.MaxQueuedTxRequests)

	for i := 0; i <= limit; i++ {
		env.sendPublishRoot()
	}
	_, err := env.bridge.AddNewSendRequest([]byte(eth.MethodPublishRoot), nil, nil)
	require.ErrorIs(err, ErrTxRequestQueueFull)
	queue, err := env.bridge.Queue()
	require.NoError(err)
	require.Len(queue, limit)
}

func TestAddNewSendRequestErrors(t *testing.T) {
	env := newTestEnv(t, 4)
	tooMany := make([]eth.Param, inter.ParamsLimit+1)
	for i := range tooMany {
		tooMany[i] = eth.UintParam(eth.Uint32, uint64(i))
	}
	send := func(function []byte, params []eth.Param, callerID []byte) error {
		_, err := env.bridge.AddNewSendRequest(function, params, callerID)
		return err
	}

	for _, tc := range []struct {
		name string
		err  error
		want error
	}{
		{"not utf8", send([]byte{0xff, 0xfe}, nil, nil), ErrFunctionNameError},
		{"empty name", send(nil, nil, nil), ErrEmptyFunctionName},
		{"long name", send([]byte(strings.Repeat("a", inter.FunctionLimit+1)), nil, nil), inter.ErrExceedsFunctionNameLimit},
		{"too many params", send([]byte("f"), tooMany, nil), inter.ErrParamsLimitExceeded},
		{"long type", send([]byte("f"), []eth.Param{eth.NewParam("uint256000", []byte("1"))}, nil), inter.ErrTypeNameLengthExceeded},
		{"long caller id", send([]byte("f"), nil, make([]byte, inter.CallerIdLimit+1)), inter.ErrCallerIdLengthExceeded},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, tc.err, tc.want)
		})
	}
}

func TestNotificationFailure(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	env.sendPublishRoot()
	env.notify.fail = errors.New("caller gone")

	require.NoError(env.corroborate(1, true, true))
	require.ErrorIs(env.corroborate(2, true, true), ErrHandlePublishingResultFailed)
}

func TestNotificationsFanOut(t *testing.T) {
	a, b := &notifier{}, &notifier{fail: errors.New("b")}
	ns := Notifications{a, b}
	assert.EqualError(t, ns.ProcessResult(1, nil, true), "b")
	assert.Len(t, a.results, 1)
	assert.Len(t, b.results, 1)
	assert.NoError(t, Notifications(nil).ProcessReadResult(1, nil, nil, nil))
}
