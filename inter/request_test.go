package inter

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/eth"
	"github.com/rony4d/go-avn-bridge/utils/cser"
)

var testRoot = common.HexToHash("30b83f0d722d1d4308ab4660a72dbaf0a7392d5674eca3cd21d57256d42df7a0")

func testSend(t *testing.T, txID eth.EthereumId) *SendRequestData {
	req, err := NewSendRequest(txID, []byte("publishRoot"), []eth.Param{eth.NewParam(eth.Bytes32, testRoot[:])}, []byte("summary"))
	require.NoError(t, err)
	return req
}

func testLower(t *testing.T, lowerID eth.EthereumId) *LowerProofRequestData {
	params := eth.ConcatLowerData(lowerID, common.Address{3}, big.NewInt(1000), common.Address{2}, common.Hash{5}, 1_000_000_000)
	req, err := NewLowerProofRequest(lowerID, params, []byte("token-manager"))
	require.NoError(t, err)
	return req
}

func testRead(t *testing.T, readID eth.EthereumId) *ReadContractRequestData {
	block := uint32(17)
	req, err := NewReadContractRequest(readID, common.Address{7}, []byte("referenceRateUpdatedAt"), []eth.Param{eth.UintParam(eth.Uint32, 4)}, []byte("oracle"), &block)
	require.NoError(t, err)
	return req
}

func TestNewSendRequestBounds(t *testing.T) {
	name := []byte("publishRoot")
	for _, tc := range []struct {
		name     string
		function []byte
		params   []eth.Param
		caller   []byte
		err      error
	}{
		{"function name", bytes.Repeat([]byte{'a'}, FunctionLimit+1), nil, nil, ErrExceedsFunctionNameLimit},
		{"too many params", name, make([]eth.Param, ParamsLimit+1), nil, ErrParamsLimitExceeded},
		{"type name", name, []eth.Param{eth.NewParam(strings.Repeat("a", TypeLimit+1), []byte("1"))}, nil, ErrTypeNameLengthExceeded},
		{"value", name, []eth.Param{eth.NewParam(eth.Bytes, make([]byte, ValueLimit+1))}, nil, ErrValueLengthExceeded},
		{"caller id", name, nil, make([]byte, CallerIdLimit+1), ErrCallerIdLengthExceeded},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSendRequest(1, tc.function, tc.params, tc.caller)
			require.ErrorIs(t, err, tc.err)
		})
	}

	req, err := NewSendRequest(1, name, make([]eth.Param, ParamsLimit), nil)
	require.NoError(t, err)
	require.Len(t, req.Params, ParamsLimit)
}

func TestExtendParams(t *testing.T) {
	require := require.New(t)

	req := testSend(t, 42)
	extended, err := req.ExtendParams(1695811529)
	require.NoError(err)
	require.Equal([]eth.Param{
		eth.NewParam(eth.Bytes32, testRoot[:]),
		eth.UintParam(eth.Uint256, 1695811529),
		eth.UintParam(eth.Uint32, 42),
	}, extended)
	require.Len(req.Params, 1, "the request params are not modified")

	full, err := NewSendRequest(1, []byte("f"), make([]eth.Param, ParamsLimit-1), nil)
	require.NoError(err)
	_, err = full.ExtendParams(1)
	require.ErrorIs(err, ErrParamsLimitExceeded)
}

func TestRequestAccessors(t *testing.T) {
	require := require.New(t)

	send := SendReq(testSend(t, 1))
	lower := LowerProofReq(testLower(t, 2))
	read := ReadContractReq(testRead(t, 3))

	require.Equal(SendRequest, send.Kind())
	require.Equal(LowerProofRequest, lower.Kind())
	require.Equal(ReadContractRequest, read.Kind())

	require.True(send.IDMatches(1))
	require.False(send.IDMatches(2))
	require.True(lower.IDMatches(2))
	require.True(read.IDMatches(3))
	require.Equal([]byte("token-manager"), lower.CallerID())

	require.False(Request{}.Valid())
	require.False(Request{}.IDMatches(0))
	require.False(Request{Send: send.Send, LowerProof: lower.LowerProof}.Valid())
	require.Equal("LowerProof(2)", lower.String())
}

func TestActiveTx(t *testing.T) {
	require := require.New(t)

	active := &ActiveRequestData{Request: LowerProofReq(testLower(t, 1))}
	_, err := active.AsActiveTx()
	require.ErrorIs(err, ErrInvalidSendRequest)

	send := testSend(t, 1)
	params, err := send.ExtendParams(100)
	require.NoError(err)
	active = &ActiveRequestData{
		Request:      SendReq(send),
		Confirmation: NewActiveConfirmation(common.Hash{1}),
		TxData:       NewActiveEthTransaction(send.FunctionName, params, author.AccountID{9}, 100, 2),
	}
	tx, err := active.AsActiveTx()
	require.NoError(err)
	require.Equal(uint16(2), tx.ReplayAttempt)
	require.Same(send, tx.Request)

	acc := author.AccountID{1}
	require.False(tx.Data.HasCorroborated(acc))
	_, err = tx.Data.FailureCorroborations.Insert(acc)
	require.NoError(err)
	require.True(tx.Data.HasCorroborated(acc))
	require.False(tx.Data.HasCorroboratedHash(acc))
}

func TestConfirmationsConcatenated(t *testing.T) {
	require := require.New(t)

	c := NewActiveConfirmation(common.Hash{1})
	require.Empty(c.Concatenated())
	a, b := author.Signature{1}, author.Signature{2}
	_, err := c.Confirmations.Insert(a)
	require.NoError(err)
	_, err = c.Confirmations.Insert(b)
	require.NoError(err)
	require.Equal(append(a.Bytes(), b.Bytes()...), c.Concatenated())
}

func TestReadLeading(t *testing.T) {
	r := NewActiveRead()
	_, ok := r.Leading()
	require.False(t, ok)

	r.Tallies = []ReadResultTally{{Result: []byte{1}, Votes: 2}, {Result: []byte{2}, Votes: 3}, {Result: []byte{3}, Votes: 3}}
	best, ok := r.Leading()
	require.True(t, ok)
	require.Equal(t, []byte{2}, best.Result)
}

func TestRequestSerialization(t *testing.T) {
	for _, req := range []Request{
		SendReq(testSend(t, 1)),
		LowerProofReq(testLower(t, 2)),
		ReadContractReq(testRead(t, 3)),
	} {
		t.Run(req.Kind().String(), func(t *testing.T) {
			raw, err := req.MarshalBinary()
			require.NoError(t, err)

			var got Request
			require.NoError(t, got.UnmarshalBinary(raw))
			require.Equal(t, req, got)
		})
	}

	_, err := Request{}.MarshalBinary()
	require.ErrorIs(t, err, ErrUnknownRequest)

	raw, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.U8(9)
		return nil
	})
	require.NoError(t, err)
	var got Request
	require.ErrorIs(t, got.UnmarshalBinary(raw), ErrUnknownRequest)
}

func TestActiveRequestDataSerialization(t *testing.T) {
	require := require.New(t)

	send := testSend(t, 7)
	params, err := send.ExtendParams(1695811529)
	require.NoError(err)
	tx := NewActiveEthTransaction(send.FunctionName, params, author.AccountID{1}, 1695811529, 3)
	tx.EthTxHash = common.Hash{0xaa}
	_, err = tx.SuccessCorroborations.Insert(author.AccountID{2})
	require.NoError(err)
	_, err = tx.InvalidTxHashCorroborations.Insert(author.AccountID{3})
	require.NoError(err)
	conf := NewActiveConfirmation(common.Hash{0xbb})
	_, err = conf.Confirmations.Insert(author.Signature{1, 2, 3})
	require.NoError(err)

	read := NewActiveRead()
	_, err = read.Voters.Insert(author.AccountID{4})
	require.NoError(err)
	read.Tallies = []ReadResultTally{{Result: []byte{0, 1}, Votes: 1}}

	for name, active := range map[string]*ActiveRequestData{
		"send":  {Request: SendReq(send), Confirmation: conf, TxData: tx, LastUpdated: 12},
		"lower": {Request: LowerProofReq(testLower(t, 1)), Confirmation: NewActiveConfirmation(common.Hash{1}), LastUpdated: 1},
		"read":  {Request: ReadContractReq(testRead(t, 2)), Confirmation: NewActiveConfirmation(common.Hash{2}), ReadData: read},
	} {
		t.Run(name, func(t *testing.T) {
			raw, err := active.MarshalBinary()
			require.NoError(err)

			got := &ActiveRequestData{}
			require.NoError(got.UnmarshalBinary(raw))
			require.Equal(active, got)
		})
	}
}

func TestDuplicateCorroboratorIsMalformed(t *testing.T) {
	raw, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.Len(2)
		w.FixedBytes(make([]byte, 32))
		w.FixedBytes(make([]byte, 32))
		return nil
	})
	require.NoError(t, err)
	err = cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		readAccounts(r)
		return nil
	})
	require.Error(t, err)
}

func TestTransactionDataSerialization(t *testing.T) {
	td := &TransactionData{
		FunctionName: []byte("publishRoot"),
		Params:       []eth.Param{eth.NewParam(eth.Bytes32, testRoot[:])},
		Sender:       author.AccountID{1},
		EthTxHash:    common.Hash{2},
		TxSucceeded:  true,
	}
	raw, err := td.MarshalBinary()
	require.NoError(t, err)
	got := &TransactionData{}
	require.NoError(t, got.UnmarshalBinary(raw))
	require.Equal(t, td, got)
}

func TestRequestQueueSerialization(t *testing.T) {
	require := require.New(t)

	queue := []Request{SendReq(testSend(t, 1)), LowerProofReq(testLower(t, 1)), SendReq(testSend(t, 2))}
	raw, err := MarshalRequestQueue(queue)
	require.NoError(err)

	got, err := UnmarshalRequestQueue(raw, 10)
	require.NoError(err)
	require.Equal(queue, got)

	_, err = UnmarshalRequestQueue(raw, 2)
	require.Error(err)
}
