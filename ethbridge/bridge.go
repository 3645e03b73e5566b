// Package ethbridge drives the outbound requests and the inbound event
// discovery of one Ethereum bridge contract.
//
// Outbound, exactly one request (Send, LowerProof or ReadContract) is active
// at a time; the others wait in a bounded FIFO queue. A Send collects the
// validators' Ethereum confirmations, is broadcast by its designated sender
// and is settled by the corroborations of the other validators. A LowerProof
// only collects confirmations and yields the proof the lower is claimed with.
//
// Inbound, validators vote on partitions of the events found in the active
// Ethereum block range. Votes are tallied by the consensus engine; the
// winning partition's events are handed to the modules owning them.
package ethbridge

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-avn-bridge/avn"
	"github.com/rony4d/go-avn-bridge/consensus"
	"github.com/rony4d/go-avn-bridge/inter"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/eth"
	"github.com/rony4d/go-avn-bridge/inter/ethevents"
	"github.com/rony4d/go-avn-bridge/kvstore"
	"github.com/rony4d/go-avn-bridge/metrics"
)

// eventsFeedBase keeps the partition feeds clear of the feeds other modules
// open on the consensus engine.
const eventsFeedBase consensus.FeedID = 1 << 24

// EventsFeed is the consensus feed partition votes of instance are tallied
// on.
func EventsFeed(instance uint32) consensus.FeedID {
	return eventsFeedBase + instance
}

// BridgeInterfaceNotification is implemented by the modules that create
// requests. Each result is delivered exactly once with the caller id given
// when the request was created.
type BridgeInterfaceNotification interface {
	ProcessResult(txID eth.EthereumId, callerID []byte, success bool) error
	// ProcessLowerProofResult gets either the encoded proof or the error
	// that ended the request.
	ProcessLowerProofResult(lowerID eth.EthereumId, callerID []byte, proof []byte, err error) error
	ProcessReadResult(readID eth.EthereumId, callerID []byte, result []byte, err error) error
}

// Notifications fans a result out to several modules. Each module is
// expected to ignore caller ids it does not own. The first error is
// returned once every module has been notified.
type Notifications []BridgeInterfaceNotification

func (ns Notifications) ProcessResult(txID eth.EthereumId, callerID []byte, success bool) error {
	var first error
	for _, n := range ns {
		if err := n.ProcessResult(txID, callerID, success); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (ns Notifications) ProcessLowerProofResult(lowerID eth.EthereumId, callerID []byte, proof []byte, err error) error {
	var first error
	for _, n := range ns {
		if nerr := n.ProcessLowerProofResult(lowerID, callerID, proof, err); nerr != nil && first == nil {
			first = nerr
		}
	}
	return first
}

func (ns Notifications) ProcessReadResult(readID eth.EthereumId, callerID []byte, result []byte, err error) error {
	var first error
	for _, n := range ns {
		if nerr := n.ProcessReadResult(readID, callerID, result, err); nerr != nil && first == nil {
			first = nerr
		}
	}
	return first
}

// EventHandler is a module consuming accepted Ethereum events.
type EventHandler interface {
	ProcessEvent(instance uint32, event ethevents.EthEvent, ethBlock uint64) error
}

// Handlers routes each event kind to its owner: lifts and lower claims to the
// token manager, NFT events to the NFT manager, validator events to the
// validators manager.
type Handlers struct {
	Token      EventHandler
	Nft        EventHandler
	Validators EventHandler
}

func (h Handlers) For(kind ethevents.ValidEvent) EventHandler {
	switch {
	case kind.IsNftEvent():
		return h.Nft
	case kind == ethevents.AddedValidator:
		return h.Validators
	case kind == ethevents.Lifted, kind == ethevents.AvtGrowthLifted, kind == ethevents.AvtLowerClaimed:
		return h.Token
	}
	return nil
}

// OffenceReporter receives the validators that corroborated against the
// settled outcome of a transaction.
type OffenceReporter interface {
	ReportOffence(kind OffenceKind, offenders []author.AccountID) error
}

// Deps are the collaborators of a Bridge. Consensus, Chain and Sink are
// required.
type Deps struct {
	Chain     avn.Chain
	Consensus *consensus.Engine
	Notify    BridgeInterfaceNotification
	Handlers  Handlers
	Offences  OffenceReporter
	Sink      inter.EventSink
	Metrics   *metrics.Recorder
	Log       *logrus.Entry
}

// Bridge is one hosted bridge instance.
type Bridge struct {
	id        uint32
	store     store
	chain     avn.Chain
	consensus *consensus.Engine
	notify    BridgeInterfaceNotification
	handlers  Handlers
	offences  OffenceReporter
	sink      inter.EventSink
	metrics   *metrics.Recorder
	log       *logrus.Entry
}

// New opens instance id over a store table dedicated to it.
func New(id uint32, s kvstore.Store, deps Deps) *Bridge {
	log := deps.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	notify := deps.Notify
	if notify == nil {
		notify = Notifications(nil)
	}
	return &Bridge{
		id:        id,
		store:     store{s},
		chain:     deps.Chain,
		consensus: deps.Consensus,
		notify:    notify,
		handlers:  deps.Handlers,
		offences:  deps.Offences,
		sink:      deps.Sink,
		metrics:   deps.Metrics,
		log:       log.WithFields(logrus.Fields{"module": moduleName, "instance": id}),
	}
}

// Init writes the genesis state of the instance. It is a no-op for an
// instance that already has state.
func (b *Bridge) Init(instance eth.EthBridgeInstance, nextTxID eth.EthereumId) error {
	if !instance.IsValid() {
		return ErrInvalidInstance
	}
	if err := instance.CheckLimits(); err != nil {
		return err
	}
	ok, err := b.store.Has(instanceKey)
	if err != nil || ok {
		return err
	}
	if err := b.store.setInstance(instance); err != nil {
		return err
	}
	return b.store.setNextTxID(nextTxID)
}

func (b *Bridge) ID() uint32 { return b.id }

// Instance returns the bridge contract this instance talks to.
func (b *Bridge) Instance() (eth.EthBridgeInstance, error) {
	in, err := b.store.instance()
	if err != nil {
		return in, err
	}
	if !in.IsValid() {
		return in, ErrInvalidInstance
	}
	return in, nil
}

// EthTxLifetimeSecs is the admin override, or the network default.
func (b *Bridge) EthTxLifetimeSecs() (uint64, error) {
	secs, err := b.store.txLifetime()
	if err != nil || secs != 0 {
		return secs, err
	}
	return b.chain.Rules().Bridge.EthTxLifetimeSecs, nil
}

func (b *Bridge) NextTxID() (eth.EthereumId, error) {
	return b.store.nextTxID()
}

// ActiveRequest returns nil when the instance is idle.
func (b *Bridge) ActiveRequest() (*inter.ActiveRequestData, error) {
	return b.store.activeRequest()
}

// Queue returns the waiting requests in FIFO order.
func (b *Bridge) Queue() ([]inter.Request, error) {
	return b.store.queue(b.queueLimit())
}

// SettledTransaction returns nil for a tx id that is not settled.
func (b *Bridge) SettledTransaction(txID eth.EthereumId) (*inter.TransactionData, error) {
	return b.store.settled(txID)
}

func (b *Bridge) queueLimit() int {
	return int(b.chain.Rules().Bridge.MaxQueuedTxRequests)
}

func (b *Bridge) quorum() uint32 {
	return b.chain.Validators().Quorum(b.chain.Rules().Formula())
}

func (b *Bridge) supermajority() uint32 {
	return b.chain.Validators().Supermajority(b.chain.Rules().Formula())
}

// assignSender hands out the next sender of the rotation shared by every
// Send of the instance.
func (b *Bridge) assignSender() (author.AccountID, error) {
	var storeErr error
	rotation := avn.SenderRotation{
		Load: func() uint64 {
			cursor, err := b.store.senderRotation()
			if err != nil {
				storeErr = err
			}
			return cursor
		},
		Store: func(cursor uint64) {
			if err := b.store.setSenderRotation(cursor); err != nil {
				storeErr = err
			}
		},
	}
	sender, err := rotation.AdvancePrimaryValidatorForSending(b.chain.Validators())
	if err != nil {
		return sender, fmt.Errorf("%w: %v", ErrErrorAssigningSender, err)
	}
	return sender, storeErr
}

// PrimaryValidatorForSending is the sender the next Send will get.
func (b *Bridge) PrimaryValidatorForSending() (author.AccountID, error) {
	cursor, err := b.store.senderRotation()
	if err != nil {
		return author.AccountID{}, err
	}
	return b.chain.Validators().SenderAt(cursor)
}
