package inter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/eth"
	"github.com/rony4d/go-avn-bridge/utils/bounded"
)

// Bounds of the request data.
const (
	FunctionLimit      = 32
	ParamsLimit        = 5
	TypeLimit          = 7
	ValueLimit         = 130
	CallerIdLimit      = 50
	ConfirmationsLimit = 100
	ReadResultLimit    = 1024
)

var (
	ErrExceedsFunctionNameLimit = errors.New("function name exceeds limit")
	ErrParamsLimitExceeded      = errors.New("params limit exceeded")
	ErrTypeNameLengthExceeded   = errors.New("type name length exceeded")
	ErrValueLengthExceeded      = errors.New("value length exceeded")
	ErrCallerIdLengthExceeded   = errors.New("caller id length exceeded")
	ErrReadResultTooLong        = errors.New("read result too long")
	ErrInvalidSendRequest       = errors.New("invalid send request")
	ErrUnknownRequest           = errors.New("unknown request kind")
)

// BoundParams checks every (type, value) pair and the number of pairs.
func BoundParams(params []eth.Param) error {
	for _, p := range params {
		if len(p.Type) > TypeLimit {
			return ErrTypeNameLengthExceeded
		}
		if len(p.Value) > ValueLimit {
			return ErrValueLengthExceeded
		}
	}
	if len(params) > ParamsLimit {
		return ErrParamsLimitExceeded
	}
	return nil
}

func copyParams(params []eth.Param) []eth.Param {
	if params == nil {
		return nil
	}
	cp := make([]eth.Param, len(params))
	for i, p := range params {
		cp[i] = eth.Param{Type: common.CopyBytes(p.Type), Value: common.CopyBytes(p.Value)}
	}
	return cp
}

func formatParams(params []eth.Param) string {
	s := make([]string, len(params))
	for i, p := range params {
		s[i] = p.String()
	}
	return "[" + strings.Join(s, ", ") + "]"
}

// SendRequestData describes a transaction to be sent to the bridge contract.
type SendRequestData struct {
	TxID         eth.EthereumId
	FunctionName []byte
	Params       []eth.Param
	CallerID     []byte
}

// NewSendRequest bounds the inputs of a send request.
func NewSendRequest(txID eth.EthereumId, function []byte, params []eth.Param, callerID []byte) (*SendRequestData, error) {
	if len(function) > FunctionLimit {
		return nil, ErrExceedsFunctionNameLimit
	}
	if err := BoundParams(params); err != nil {
		return nil, err
	}
	if len(callerID) > CallerIdLimit {
		return nil, ErrCallerIdLengthExceeded
	}
	return &SendRequestData{
		TxID:         txID,
		FunctionName: common.CopyBytes(function),
		Params:       copyParams(params),
		CallerID:     common.CopyBytes(callerID),
	}, nil
}

// ExtendParams appends the expiry and the tx id, which every bridge method
// takes after its own params. The result is bounded like the request params.
func (r *SendRequestData) ExtendParams(expiry uint64) ([]eth.Param, error) {
	extended := append(copyParams(r.Params),
		eth.UintParam(eth.Uint256, expiry),
		eth.UintParam(eth.Uint32, uint64(r.TxID)),
	)
	if err := BoundParams(extended); err != nil {
		return nil, err
	}
	return extended, nil
}

func (r *SendRequestData) String() string {
	return fmt.Sprintf("send{tx_id: %d, function: %s, params: %s, caller: %q}", r.TxID, r.FunctionName, formatParams(r.Params), r.CallerID)
}

// LowerProofRequestData asks validators to confirm a lower so it can be
// claimed on Ethereum.
type LowerProofRequestData struct {
	LowerID  eth.EthereumId
	Params   eth.LowerParams
	CallerID []byte
}

func NewLowerProofRequest(lowerID eth.EthereumId, params eth.LowerParams, callerID []byte) (*LowerProofRequestData, error) {
	if len(callerID) > CallerIdLimit {
		return nil, ErrCallerIdLengthExceeded
	}
	return &LowerProofRequestData{LowerID: lowerID, Params: params, CallerID: common.CopyBytes(callerID)}, nil
}

// ReadContractRequestData is a view call every validator executes against
// Ethereum. The call resolves once a quorum reports the same result.
type ReadContractRequestData struct {
	ReadID       eth.EthereumId
	Contract     common.Address
	FunctionName []byte
	Params       []eth.Param
	CallerID     []byte
	// EthBlock pins the call to a block; nil means latest.
	EthBlock *uint32
}

func NewReadContractRequest(readID eth.EthereumId, contract common.Address, function []byte, params []eth.Param, callerID []byte, ethBlock *uint32) (*ReadContractRequestData, error) {
	if len(function) > FunctionLimit {
		return nil, ErrExceedsFunctionNameLimit
	}
	if err := BoundParams(params); err != nil {
		return nil, err
	}
	if len(callerID) > CallerIdLimit {
		return nil, ErrCallerIdLengthExceeded
	}
	var block *uint32
	if ethBlock != nil {
		b := *ethBlock
		block = &b
	}
	return &ReadContractRequestData{
		ReadID:       readID,
		Contract:     contract,
		FunctionName: common.CopyBytes(function),
		Params:       copyParams(params),
		CallerID:     common.CopyBytes(callerID),
		EthBlock:     block,
	}, nil
}

// RequestKind tags the variant of a Request.
type RequestKind uint8

const (
	SendRequest RequestKind = iota
	LowerProofRequest
	ReadContractRequest
)

func (k RequestKind) String() string {
	switch k {
	case SendRequest:
		return "Send"
	case LowerProofRequest:
		return "LowerProof"
	case ReadContractRequest:
		return "ReadContract"
	}
	return fmt.Sprintf("RequestKind(%d)", uint8(k))
}

// Request holds exactly one of its variants.
type Request struct {
	Send       *SendRequestData
	LowerProof *LowerProofRequestData
	Read       *ReadContractRequestData
}

func SendReq(r *SendRequestData) Request                 { return Request{Send: r} }
func LowerProofReq(r *LowerProofRequestData) Request     { return Request{LowerProof: r} }
func ReadContractReq(r *ReadContractRequestData) Request { return Request{Read: r} }

func (r Request) Kind() RequestKind {
	switch {
	case r.Send != nil:
		return SendRequest
	case r.LowerProof != nil:
		return LowerProofRequest
	}
	return ReadContractRequest
}

// Valid reports whether exactly one variant is set.
func (r Request) Valid() bool {
	n := 0
	for _, set := range []bool{r.Send != nil, r.LowerProof != nil, r.Read != nil} {
		if set {
			n++
		}
	}
	return n == 1
}

// ID is the tx id, lower id or read id.
func (r Request) ID() eth.EthereumId {
	switch r.Kind() {
	case SendRequest:
		return r.Send.TxID
	case LowerProofRequest:
		return r.LowerProof.LowerID
	}
	return r.Read.ReadID
}

func (r Request) CallerID() []byte {
	switch r.Kind() {
	case SendRequest:
		return r.Send.CallerID
	case LowerProofRequest:
		return r.LowerProof.CallerID
	}
	return r.Read.CallerID
}

func (r Request) IDMatches(id eth.EthereumId) bool {
	return r.Valid() && r.ID() == id
}

func (r Request) String() string {
	return fmt.Sprintf("%s(%d)", r.Kind(), r.ID())
}

// ActiveConfirmation collects the Ethereum signatures over MsgHash.
type ActiveConfirmation struct {
	MsgHash       common.Hash
	Confirmations bounded.Set[author.Signature]
}

func NewActiveConfirmation(msgHash common.Hash) ActiveConfirmation {
	return ActiveConfirmation{MsgHash: msgHash, Confirmations: bounded.NewSet[author.Signature](ConfirmationsLimit)}
}

// Concatenated joins the confirmations in the order they were added.
func (c ActiveConfirmation) Concatenated() []byte {
	sigs := c.Confirmations.Items()
	out := make([]byte, 0, len(sigs)*author.SignatureLength)
	for _, s := range sigs {
		out = append(out, s[:]...)
	}
	return out
}

// ActiveEthTransaction is the per-transaction state of an active Send.
type ActiveEthTransaction struct {
	FunctionName []byte
	// EthTxParams are the request params extended with expiry and tx id.
	EthTxParams []eth.Param
	Sender      author.AccountID
	Expiry      uint64
	EthTxHash   common.Hash

	SuccessCorroborations       bounded.Set[author.AccountID]
	FailureCorroborations       bounded.Set[author.AccountID]
	ValidTxHashCorroborations   bounded.Set[author.AccountID]
	InvalidTxHashCorroborations bounded.Set[author.AccountID]

	TxSucceeded   bool
	ReplayAttempt uint16
}

func NewActiveEthTransaction(function []byte, params []eth.Param, sender author.AccountID, expiry uint64, replayAttempt uint16) *ActiveEthTransaction {
	return &ActiveEthTransaction{
		FunctionName:                common.CopyBytes(function),
		EthTxParams:                 copyParams(params),
		Sender:                      sender,
		Expiry:                      expiry,
		SuccessCorroborations:       bounded.NewSet[author.AccountID](ConfirmationsLimit),
		FailureCorroborations:       bounded.NewSet[author.AccountID](ConfirmationsLimit),
		ValidTxHashCorroborations:   bounded.NewSet[author.AccountID](ConfirmationsLimit),
		InvalidTxHashCorroborations: bounded.NewSet[author.AccountID](ConfirmationsLimit),
		ReplayAttempt:               replayAttempt,
	}
}

// HasCorroborated reports whether account already reported the outcome.
func (t *ActiveEthTransaction) HasCorroborated(account author.AccountID) bool {
	return t.SuccessCorroborations.Contains(account) || t.FailureCorroborations.Contains(account)
}

// HasCorroboratedHash reports whether account already judged the tx hash.
func (t *ActiveEthTransaction) HasCorroboratedHash(account author.AccountID) bool {
	return t.ValidTxHashCorroborations.Contains(account) || t.InvalidTxHashCorroborations.Contains(account)
}

// ReadResultTally counts the validators that reported Result.
type ReadResultTally struct {
	Result []byte
	Votes  uint32
}

// ActiveRead is the per-request state of an active ReadContract.
type ActiveRead struct {
	Voters  bounded.Set[author.AccountID]
	Tallies []ReadResultTally
}

func NewActiveRead() *ActiveRead {
	return &ActiveRead{Voters: bounded.NewSet[author.AccountID](ConfirmationsLimit)}
}

// Leading returns the result with the most votes. Ties resolve to the result
// reported first.
func (r *ActiveRead) Leading() (ReadResultTally, bool) {
	var best ReadResultTally
	found := false
	for _, t := range r.Tallies {
		if !found || t.Votes > best.Votes {
			best, found = t, true
		}
	}
	return best, found
}

// ActiveRequestData is the single request being processed.
type ActiveRequestData struct {
	Request      Request
	Confirmation ActiveConfirmation
	// TxData is set for Send requests only.
	TxData *ActiveEthTransaction
	// ReadData is set for ReadContract requests only.
	ReadData    *ActiveRead
	LastUpdated idx.Block
}

// ActiveTransactionData is an ActiveRequestData known to hold a Send.
type ActiveTransactionData struct {
	Request       *SendRequestData
	Confirmation  ActiveConfirmation
	Data          *ActiveEthTransaction
	ReplayAttempt uint16
}

// AsActiveTx narrows the active request to a Send.
func (a *ActiveRequestData) AsActiveTx() (ActiveTransactionData, error) {
	if a.TxData == nil || a.Request.Send == nil {
		return ActiveTransactionData{}, ErrInvalidSendRequest
	}
	return ActiveTransactionData{
		Request:       a.Request.Send,
		Confirmation:  a.Confirmation,
		Data:          a.TxData,
		ReplayAttempt: a.TxData.ReplayAttempt,
	}, nil
}

// TransactionData is kept for every settled Send.
type TransactionData struct {
	FunctionName []byte
	Params       []eth.Param
	Sender       author.AccountID
	EthTxHash    common.Hash
	TxSucceeded  bool
}
