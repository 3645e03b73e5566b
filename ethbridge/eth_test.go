package ethbridge

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-avn-bridge/inter"
	"github.com/rony4d/go-avn-bridge/inter/eth"
)

func word(last byte, fill byte) []byte {
	w := bytes.Repeat([]byte{fill}, 32)
	w[31] = last
	return w
}

func TestDecodeCorroborateResult(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  []byte
		want TxStatus
		err  bool
	}{
		{"succeeded", word(1, 0), TxSucceeded, false},
		{"unresolved", word(0, 0), TxUnresolved, false},
		{"failed", word(0xff, 0xff), TxFailed, false},
		{"out of range", word(2, 0), TxUnresolved, true},
		{"minus two", word(0xfe, 0xff), TxUnresolved, true},
		{"short", []byte{1}, TxUnresolved, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeCorroborateResult(tc.raw)
			if tc.err {
				require.ErrorIs(t, err, ErrInvalidTxStatus)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseSendResponse(t *testing.T) {
	hash := common.HexToHash("0x8f2a1c3b00000000000000000000000000000000000000000000000000000abc")
	hexed := strings.TrimPrefix(hash.Hex(), "0x")

	for _, body := range []string{hash.Hex(), hexed, " " + hash.Hex() + "\n"} {
		got, err := ParseSendResponse([]byte(body))
		require.NoError(t, err, body)
		require.Equal(t, hash, got)
	}
	for _, body := range []string{"", "0x1234", strings.Repeat("zz", 32), hash.Hex() + "00"} {
		_, err := ParseSendResponse([]byte(body))
		require.ErrorIs(t, err, ErrInvalidSendResponse, body)
	}
}

func TestCalldata(t *testing.T) {
	require := require.New(t)

	data, err := CorroborateCalldata(12, 3600)
	require.NoError(err)
	selector := eth.FunctionSelector(CorroborateFunction, []eth.Param{eth.UintParam(eth.Uint32, 0), eth.UintParam(eth.Uint256, 0)})
	require.Equal(selector, data[:4])
	require.Len(data, 4+2*32)
	require.Equal(byte(12), data[4+31])

	params := testLowerParams(3)
	proof, err := EncodeLowerProof(params, []byte{1, 2, 3})
	require.NoError(err)
	require.Equal(params[:], proof[:len(params)])
	encoded, err := eth.EncodeParams([]eth.Param{eth.NewParam(eth.Bytes, []byte{1, 2, 3})})
	require.NoError(err)
	require.Equal(encoded, proof[len(params):])

	req, err := inter.NewReadContractRequest(4, common.Address{1}, []byte("totalSupply"), nil, nil, nil)
	require.NoError(err)
	read, err := ReadCalldata(req)
	require.NoError(err)
	require.Equal(eth.FunctionSelector("totalSupply", nil), read)
}

func TestSendCalldata(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	env.sendPublishRoot()
	require.NoError(env.confirm(1))

	tx, err := env.active().AsActiveTx()
	require.NoError(err)
	data, err := SendCalldata(tx)
	require.NoError(err)
	selector := eth.FunctionSelector(eth.MethodPublishRoot, []eth.Param{
		eth.NewParam(eth.Bytes32, nil),
		eth.NewParam(eth.Uint256, nil),
		eth.NewParam(eth.Uint32, nil),
		eth.NewParam(eth.Bytes, nil),
	})
	require.Equal(selector, data[:4])
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "failed", TxFailed.String())
	assert.Equal(t, "TxStatus(5)", TxStatus(5).String())
	assert.Equal(t, "ChallengeAttemptedOnSuccessfulTransaction", ChallengeAttemptedOnSuccessfulTransaction.String())
	assert.Equal(t, "QueueAdditionalEthereumEvent", QueueAdditionalEvent.String())
}
