package runtime

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-avn-bridge/consensus"
	"github.com/rony4d/go-avn-bridge/ethbridge"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/discovery"
	"github.com/rony4d/go-avn-bridge/inter/eth"
	"github.com/rony4d/go-avn-bridge/vote"
)

// Call tags the variant of an Extrinsic.
type Call uint8

const (
	CallSubmitEthereumEvents Call = iota + 1
	CallSubmitLatestEthereumBlock
	CallAddConfirmation
	CallAddEthTxHash
	CallAddCorroboration
	CallAddReadResult
	CallConsensusSubmit
	CallConsensusClear
	CallApproveVote
	CallRejectVote
	CallEndVotingPeriod
	CallRecordSummary
	CallAdmin
)

var callNames = map[Call]string{
	CallSubmitEthereumEvents:      "submit_ethereum_events",
	CallSubmitLatestEthereumBlock: "submit_latest_ethereum_block",
	CallAddConfirmation:           "add_confirmation",
	CallAddEthTxHash:              "add_eth_tx_hash",
	CallAddCorroboration:          "add_corroboration",
	CallAddReadResult:             "add_read_result",
	CallConsensusSubmit:           "consensus_submit",
	CallConsensusClear:            "consensus_clear",
	CallApproveVote:               "approve_vote",
	CallRejectVote:                "reject_vote",
	CallEndVotingPeriod:           "end_voting_period",
	CallRecordSummary:             "record_summary_calculation",
	CallAdmin:                     "admin",
}

func (c Call) String() string {
	if name, ok := callNames[c]; ok {
		return name
	}
	return fmt.Sprintf("call(%d)", uint8(c))
}

// Unsigned reports whether the call is submitted by a validator and
// admitted through unsigned validation.
func (c Call) Unsigned() bool {
	return c >= CallSubmitEthereumEvents && c < CallAdmin
}

// Extrinsic is one call into the runtime. Only the fields of its Call are
// read. Author and Signature identify the submitting validator of unsigned
// calls.
type Extrinsic struct {
	Call      Call
	Instance  uint32
	Author    author.AccountID
	Signature author.Signature

	Partition *discovery.EthereumEventsPartition
	EthBlock  uint32

	// RequestID is the tx, lower or read id the call refers to.
	RequestID     eth.EthereumId
	Confirmation  author.Signature
	EthTxHash     common.Hash
	Succeeded     bool
	HashValid     bool
	ReplayAttempt uint16
	ReadResult    []byte

	Feed    consensus.FeedID
	Payload []byte

	Subject      vote.Subject
	EthSignature author.Signature

	ToBlock        idx.Block
	RootHash       common.Hash
	IngressCounter uint64

	Admin *ethbridge.AdminSetting

	// set when the extrinsic is admitted to the pool
	hash common.Hash
}

// Hash is the pool identity of an admitted extrinsic.
func (e Extrinsic) Hash() common.Hash { return e.hash }

func (e Extrinsic) String() string {
	return fmt.Sprintf("%s(instance=%d, author=%s)", e.Call, e.Instance, e.Author.Short())
}

func SubmitEthereumEvents(instance uint32, account author.AccountID, partition discovery.EthereumEventsPartition, sig author.Signature) Extrinsic {
	return Extrinsic{Call: CallSubmitEthereumEvents, Instance: instance, Author: account, Partition: &partition, Signature: sig}
}

func SubmitLatestEthereumBlock(instance uint32, account author.AccountID, block uint32, sig author.Signature) Extrinsic {
	return Extrinsic{Call: CallSubmitLatestEthereumBlock, Instance: instance, Author: account, EthBlock: block, Signature: sig}
}

func AddConfirmation(instance uint32, id eth.EthereumId, confirmation author.Signature, account author.AccountID, sig author.Signature) Extrinsic {
	return Extrinsic{Call: CallAddConfirmation, Instance: instance, RequestID: id, Confirmation: confirmation, Author: account, Signature: sig}
}

func AddEthTxHash(instance uint32, txID eth.EthereumId, hash common.Hash, account author.AccountID, sig author.Signature) Extrinsic {
	return Extrinsic{Call: CallAddEthTxHash, Instance: instance, RequestID: txID, EthTxHash: hash, Author: account, Signature: sig}
}

func AddCorroboration(instance uint32, txID eth.EthereumId, succeeded, hashValid bool, account author.AccountID, replayAttempt uint16, sig author.Signature) Extrinsic {
	return Extrinsic{
		Call:          CallAddCorroboration,
		Instance:      instance,
		RequestID:     txID,
		Succeeded:     succeeded,
		HashValid:     hashValid,
		Author:        account,
		ReplayAttempt: replayAttempt,
		Signature:     sig,
	}
}

func AddReadResult(instance uint32, readID eth.EthereumId, result []byte, account author.AccountID, sig author.Signature) Extrinsic {
	return Extrinsic{Call: CallAddReadResult, Instance: instance, RequestID: readID, ReadResult: result, Author: account, Signature: sig}
}

func ConsensusSubmit(feed consensus.FeedID, payload []byte, account author.AccountID, sig author.Signature) Extrinsic {
	return Extrinsic{Call: CallConsensusSubmit, Feed: feed, Payload: payload, Author: account, Signature: sig}
}

func ConsensusClear(feed consensus.FeedID, account author.AccountID, sig author.Signature) Extrinsic {
	return Extrinsic{Call: CallConsensusClear, Feed: feed, Author: account, Signature: sig}
}

func ApproveVote(sub vote.Subject, account author.AccountID, ethSignature, sig author.Signature) Extrinsic {
	return Extrinsic{Call: CallApproveVote, Subject: sub, Author: account, EthSignature: ethSignature, Signature: sig}
}

func RejectVote(sub vote.Subject, account author.AccountID, sig author.Signature) Extrinsic {
	return Extrinsic{Call: CallRejectVote, Subject: sub, Author: account, Signature: sig}
}

func EndVotingPeriod(sub vote.Subject, account author.AccountID, sig author.Signature) Extrinsic {
	return Extrinsic{Call: CallEndVotingPeriod, Subject: sub, Author: account, Signature: sig}
}

func RecordSummary(toBlock idx.Block, rootHash common.Hash, ingress uint64, account author.AccountID, sig author.Signature) Extrinsic {
	return Extrinsic{Call: CallRecordSummary, ToBlock: toBlock, RootHash: rootHash, IngressCounter: ingress, Author: account, Signature: sig}
}

// Admin is a root call changing an instance's settings.
func Admin(instance uint32, setting ethbridge.AdminSetting) Extrinsic {
	return Extrinsic{Call: CallAdmin, Instance: instance, Admin: &setting}
}
