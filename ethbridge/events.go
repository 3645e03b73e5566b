package ethbridge

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-avn-bridge/inter"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/discovery"
	"github.com/rony4d/go-avn-bridge/inter/eth"
	"github.com/rony4d/go-avn-bridge/inter/ethevents"
)

const moduleName = "eth-bridge"

// PublishToEthereum is deposited when a Send request becomes active.
type PublishToEthereum struct {
	Instance     uint32
	TxID         eth.EthereumId
	FunctionName []byte
	Params       []eth.Param
	CallerID     []byte
}

func (PublishToEthereum) Module() string { return moduleName }
func (PublishToEthereum) Name() string   { return "PublishToEthereum" }

// LowerProofRequested is deposited when a LowerProof request becomes active.
type LowerProofRequested struct {
	Instance uint32
	LowerID  eth.EthereumId
	CallerID []byte
}

func (LowerProofRequested) Module() string { return moduleName }
func (LowerProofRequested) Name() string   { return "LowerProofRequested" }

// ReadContractRequested is deposited when a ReadContract request becomes
// active.
type ReadContractRequested struct {
	Instance     uint32
	ReadID       eth.EthereumId
	Contract     common.Address
	FunctionName []byte
}

func (ReadContractRequested) Module() string { return moduleName }
func (ReadContractRequested) Name() string   { return "ReadContractRequested" }

// ActiveRequestRetried is deposited when a Send is set up again after its
// transaction hash was voted invalid.
type ActiveRequestRetried struct {
	Instance     uint32
	FunctionName []byte
	Params       []eth.Param
	CallerID     []byte
}

func (ActiveRequestRetried) Module() string { return moduleName }
func (ActiveRequestRetried) Name() string   { return "ActiveRequestRetried" }

type ActiveRequestRemoved struct {
	Instance  uint32
	RequestID eth.EthereumId
}

func (ActiveRequestRemoved) Module() string { return moduleName }
func (ActiveRequestRemoved) Name() string   { return "ActiveRequestRemoved" }

// RequestFailedToStart is deposited for a queued request that could not be
// made active. Its caller has been notified of the failure.
type RequestFailedToStart struct {
	Instance  uint32
	Kind      inter.RequestKind
	RequestID eth.EthereumId
	Reason    string
}

func (RequestFailedToStart) Module() string { return moduleName }
func (RequestFailedToStart) Name() string   { return "RequestFailedToStart" }

type TransactionSettled struct {
	Instance  uint32
	TxID      eth.EthereumId
	Succeeded bool
	EthTxHash common.Hash
}

func (TransactionSettled) Module() string { return moduleName }
func (TransactionSettled) Name() string   { return "TransactionSettled" }

type LowerProofCompleted struct {
	Instance uint32
	LowerID  eth.EthereumId
}

func (LowerProofCompleted) Module() string { return moduleName }
func (LowerProofCompleted) Name() string   { return "LowerProofCompleted" }

type ReadContractCompleted struct {
	Instance  uint32
	ReadID    eth.EthereumId
	Succeeded bool
}

func (ReadContractCompleted) Module() string { return moduleName }
func (ReadContractCompleted) Name() string   { return "ReadContractCompleted" }

// EventAccepted is deposited for every event handed to its owning module.
type EventAccepted struct {
	Instance uint32
	EventID  ethevents.EthEventId
}

func (EventAccepted) Module() string { return moduleName }
func (EventAccepted) Name() string   { return "EventAccepted" }

// EventRejected is terminal: a rejected event is never processed again.
type EventRejected struct {
	Instance uint32
	EventID  ethevents.EthEventId
	Reason   string
}

func (EventRejected) Module() string { return moduleName }
func (EventRejected) Name() string   { return "EventRejected" }

type DuplicateEventSubmission struct {
	Instance uint32
	EventID  ethevents.EthEventId
}

func (DuplicateEventSubmission) Module() string { return moduleName }
func (DuplicateEventSubmission) Name() string   { return "DuplicateEventSubmission" }

// ActiveRangeUpdated is deposited whenever the partition or the range being
// voted on moves.
type ActiveRangeUpdated struct {
	Instance  uint32
	Range     discovery.EthBlockRange
	Partition uint16
}

func (ActiveRangeUpdated) Module() string { return moduleName }
func (ActiveRangeUpdated) Name() string   { return "ActiveRangeUpdated" }

// InitialRangeSet is deposited when the latest block votes settle the first
// range.
type InitialRangeSet struct {
	Instance    uint32
	ChosenBlock uint32
	Range       discovery.EthBlockRange
}

func (InitialRangeSet) Module() string { return moduleName }
func (InitialRangeSet) Name() string   { return "InitialRangeSet" }

type EthTxLifetimeUpdated struct {
	Instance          uint32
	EthTxLifetimeSecs uint64
}

func (EthTxLifetimeUpdated) Module() string { return moduleName }
func (EthTxLifetimeUpdated) Name() string   { return "EthTxLifetimeUpdated" }

type EthTxIDUpdated struct {
	Instance uint32
	EthTxID  eth.EthereumId
}

func (EthTxIDUpdated) Module() string { return moduleName }
func (EthTxIDUpdated) Name() string   { return "EthTxIdUpdated" }

type AdditionalEventQueued struct {
	Instance        uint32
	TransactionHash common.Hash
}

func (AdditionalEventQueued) Module() string { return moduleName }
func (AdditionalEventQueued) Name() string   { return "AdditionalEventQueued" }

type EventDiscoveryRestarted struct {
	Instance uint32
	Range    discovery.EthBlockRange
}

func (EventDiscoveryRestarted) Module() string { return moduleName }
func (EventDiscoveryRestarted) Name() string   { return "EventDiscoveryRestarted" }

type BridgeInstanceUpdated struct {
	Instance uint32
	Bridge   eth.EthBridgeInstance
}

func (BridgeInstanceUpdated) Module() string { return moduleName }
func (BridgeInstanceUpdated) Name() string   { return "BridgeInstanceUpdated" }

// OffenceReported is deposited once per (offence, transaction).
type OffenceReported struct {
	Instance  uint32
	Offence   OffenceKind
	TxID      eth.EthereumId
	Offenders []author.AccountID
}

func (OffenceReported) Module() string { return moduleName }
func (OffenceReported) Name() string   { return "OffenceReported" }
