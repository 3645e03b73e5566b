package ethbridge

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/discovery"
	"github.com/rony4d/go-avn-bridge/inter/eth"
	"github.com/rony4d/go-avn-bridge/utils/cser"
)

// Contexts prefixed to every payload a validator signs for this module.
const (
	AddConfirmationContext          = "EthBridgeConfirmation"
	AddCorroborationContext         = "EthBridgeCorroboration"
	AddEthTxHashContext             = "EthBridgeEthTxHash"
	AddReadResultContext            = "EthBridgeReadResult"
	SubmitEthereumEventsHashContext = "EthBridgeDiscoveredEthEventsHash"
	SubmitLatestEthBlockContext     = "EthBridgeLatestEthereumBlockHash"
)

func proof(instance common.Hash, ctx string, fill func(w *cser.Writer)) []byte {
	raw, _ := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.Hash(instance)
		w.SliceBytes([]byte(ctx))
		fill(w)
		return nil
	})
	return raw
}

// ConfirmationProof is signed by a validator adding an Ethereum confirmation
// to request id.
func ConfirmationProof(instance common.Hash, id eth.EthereumId, confirmation author.Signature, account author.AccountID) []byte {
	return proof(instance, AddConfirmationContext, func(w *cser.Writer) {
		w.U32(id)
		w.FixedBytes(confirmation[:])
		w.FixedBytes(account[:])
	})
}

// EthTxHashProof is signed by the sender reporting the hash of the
// transaction it broadcast.
func EthTxHashProof(instance common.Hash, txID eth.EthereumId, hash common.Hash, account author.AccountID) []byte {
	return proof(instance, AddEthTxHashContext, func(w *cser.Writer) {
		w.U32(txID)
		w.Hash(hash)
		w.FixedBytes(account[:])
	})
}

// CorroborationProof is signed by a validator reporting the outcome of a
// transaction it checked on Ethereum.
func CorroborationProof(instance common.Hash, txID eth.EthereumId, succeeded, hashValid bool, account author.AccountID, replayAttempt uint16) []byte {
	return proof(instance, AddCorroborationContext, func(w *cser.Writer) {
		w.U32(txID)
		w.Bool(succeeded)
		w.Bool(hashValid)
		w.FixedBytes(account[:])
		w.U16(replayAttempt)
	})
}

// ReadResultProof is signed by a validator reporting the result of a
// contract read.
func ReadResultProof(instance common.Hash, readID eth.EthereumId, result []byte, account author.AccountID) []byte {
	return proof(instance, AddReadResultContext, func(w *cser.Writer) {
		w.U32(readID)
		w.SliceBytes(result)
		w.FixedBytes(account[:])
	})
}

// EventsProof is signed by a validator voting for a partition.
func EventsProof(instance common.Hash, account author.AccountID, partition discovery.EthereumEventsPartition) ([]byte, error) {
	raw, err := partition.MarshalCSER()
	if err != nil {
		return nil, err
	}
	ctx := append(common.CopyBytes(instance[:]), SubmitEthereumEventsHashContext...)
	return discovery.EncodeEthEventSubmissionData(ctx, account, raw), nil
}

// LatestBlockProof is signed by a validator voting for the first range.
func LatestBlockProof(instance common.Hash, account author.AccountID, block uint32) []byte {
	return proof(instance, SubmitLatestEthBlockContext, func(w *cser.Writer) {
		w.FixedBytes(account[:])
		w.U32(block)
	})
}
