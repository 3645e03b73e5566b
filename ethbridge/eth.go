package ethbridge

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/rony4d/go-avn-bridge/inter"
	"github.com/rony4d/go-avn-bridge/inter/eth"
)

// CorroborateFunction is the view the bridge contract answers with the
// status of a transaction.
const CorroborateFunction = "corroborate"

var (
	ErrInvalidSendResponse = errors.New("send response is not a transaction hash")
	ErrInvalidTxStatus     = errors.New("invalid corroborate result")
)

// TxStatus is the answer of the corroborate view.
type TxStatus int8

const (
	TxFailed     TxStatus = -1
	TxUnresolved TxStatus = 0
	TxSucceeded  TxStatus = 1
)

func (s TxStatus) String() string {
	switch s {
	case TxFailed:
		return "failed"
	case TxUnresolved:
		return "unresolved"
	case TxSucceeded:
		return "succeeded"
	}
	return fmt.Sprintf("TxStatus(%d)", int8(s))
}

// SendCalldata is what the sender broadcasts: the extended params followed by
// the concatenated confirmations.
func SendCalldata(tx inter.ActiveTransactionData) ([]byte, error) {
	params := append(append([]eth.Param{}, tx.Data.EthTxParams...), eth.NewParam(eth.Bytes, tx.Confirmation.Concatenated()))
	return eth.EncodeFunction(string(tx.Data.FunctionName), params)
}

// CorroborateCalldata asks the contract about txID.
func CorroborateCalldata(txID eth.EthereumId, expiry uint64) ([]byte, error) {
	return eth.EncodeFunction(CorroborateFunction, []eth.Param{
		eth.UintParam(eth.Uint32, uint64(txID)),
		eth.UintParam(eth.Uint256, expiry),
	})
}

// DecodeCorroborateResult reads the int8 returned by the corroborate view.
func DecodeCorroborateResult(raw []byte) (TxStatus, error) {
	if len(raw) != common.HashLength {
		return TxUnresolved, fmt.Errorf("%w: %d bytes", ErrInvalidTxStatus, len(raw))
	}
	v := math.S256(new(big.Int).SetBytes(raw))
	if !v.IsInt64() {
		return TxUnresolved, ErrInvalidTxStatus
	}
	switch s := TxStatus(v.Int64()); s {
	case TxFailed, TxUnresolved, TxSucceeded:
		if big.NewInt(int64(s)).Cmp(v) != 0 {
			return TxUnresolved, ErrInvalidTxStatus
		}
		return s, nil
	}
	return TxUnresolved, ErrInvalidTxStatus
}

// ParseSendResponse reads the hash an Ethereum gateway returns for a
// broadcast transaction: 64 hex digits, with or without 0x.
func ParseSendResponse(body []byte) (common.Hash, error) {
	s := strings.TrimPrefix(strings.TrimSpace(string(body)), "0x")
	if len(s) != 2*common.HashLength {
		return common.Hash{}, ErrInvalidSendResponse
	}
	raw, err := hexutil.Decode("0x" + s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrInvalidSendResponse, err)
	}
	return common.BytesToHash(raw), nil
}

// EncodeLowerProof is the claim data of a lower: the packed params followed
// by the ABI encoding of the concatenated confirmations.
func EncodeLowerProof(params eth.LowerParams, confirmations []byte) ([]byte, error) {
	encoded, err := eth.EncodeParams([]eth.Param{eth.NewParam(eth.Bytes, confirmations)})
	if err != nil {
		return nil, err
	}
	return append(common.CopyBytes(params[:]), encoded...), nil
}

// ReadCalldata is the view call of a read request.
func ReadCalldata(req *inter.ReadContractRequestData) ([]byte, error) {
	return eth.EncodeFunction(string(req.FunctionName), req.Params)
}
