// Package summary tracks the summary roots of AvN block ranges. A root is
// recorded by a validator, voted on by all of them and, once approved,
// published to the bridge contract with publishRoot.
package summary

import (
	"bytes"
	"errors"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-avn-bridge/avn"
	"github.com/rony4d/go-avn-bridge/inter"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/eth"
	"github.com/rony4d/go-avn-bridge/kvstore"
	"github.com/rony4d/go-avn-bridge/vote"
)

const moduleName = "summary"

// PublishRootFunction is the bridge contract method approved roots are sent
// with.
const PublishRootFunction = "publishRoot"

// CallerID identifies the requests of this module on the bridge.
var CallerID = []byte("summary")

var (
	ErrInvalidIngressCounter    = errors.New("invalid ingress counter")
	ErrNotAValidator            = errors.New("not a validator")
	ErrInvalidRange             = errors.New("root range ends before it starts")
	ErrSummaryPendingOrApproved = errors.New("summary pending or approved")
	ErrRootDataNotFound         = errors.New("root data not found")
	ErrNoSessions               = errors.New("voting sessions not attached")
)

// Publisher creates the publishRoot request on the bridge.
type Publisher interface {
	AddNewSendRequest(function []byte, params []eth.Param, callerID []byte) (eth.EthereumId, error)
}

// SummaryCalculated is deposited when a root is recorded.
type SummaryCalculated struct {
	Root      vote.RootID
	RootHash  common.Hash
	Submitter author.AccountID
}

func (SummaryCalculated) Module() string { return moduleName }
func (SummaryCalculated) Name() string   { return "SummaryCalculated" }

// RootPassedValidation is deposited when the vote on a root is approved.
type RootPassedValidation struct {
	Root     vote.RootID
	RootHash common.Hash
}

func (RootPassedValidation) Module() string { return moduleName }
func (RootPassedValidation) Name() string   { return "RootPassedValidation" }

// RootPublished is deposited when the publishRoot transaction settled.
type RootPublished struct {
	Root    vote.RootID
	TxID    eth.EthereumId
	Success bool
}

func (RootPublished) Module() string { return moduleName }
func (RootPublished) Name() string   { return "RootPublished" }

// RootData is the stored state of a recorded root.
type RootData struct {
	Hash      common.Hash
	Submitter author.AccountID
	Validated bool
	Finalised bool
	// TxID is the publishRoot transaction, set once the root was sent.
	TxID *eth.EthereumId
}

// Module owns the summary roots. It is the vote.Owner of root subjects and
// receives the results of its publishRoot requests.
type Module struct {
	store     store
	chain     avn.Chain
	sessions  *vote.Sessions
	publisher Publisher
	sink      inter.EventSink
	log       *logrus.Entry
}

// New opens the module over a store table dedicated to it.
func New(s kvstore.Store, chain avn.Chain, publisher Publisher, sink inter.EventSink, log *logrus.Entry) *Module {
	return &Module{
		store:     store{s},
		chain:     chain,
		publisher: publisher,
		sink:      sink,
		log:       log.WithField("module", moduleName),
	}
}

// Attach sets the sessions roots are voted in. The sessions hold the module
// as their root owner, so they are built after it.
func (m *Module) Attach(sessions *vote.Sessions) {
	m.sessions = sessions
}

// IngressCounter is the number of roots recorded so far.
func (m *Module) IngressCounter() (uint64, error) {
	return m.store.ingressCounter()
}

// NextBlockToProcess is the first AvN block the next root covers.
func (m *Module) NextBlockToProcess() (idx.Block, error) {
	return m.store.nextBlock()
}

// Root returns the stored data of a recorded root.
func (m *Module) Root(id vote.RootID) (*RootData, error) {
	data, err := m.store.root(id)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrRootDataNotFound
	}
	return data, nil
}

// RecordSummaryCalculation records the root of the blocks from the next
// block to process up to toBlock and opens its voting session.
func (m *Module) RecordSummaryCalculation(toBlock idx.Block, rootHash common.Hash, ingress uint64, validator author.AccountID) (vote.RootID, error) {
	if m.sessions == nil {
		return vote.RootID{}, ErrNoSessions
	}
	counter, err := m.store.ingressCounter()
	if err != nil {
		return vote.RootID{}, err
	}
	if counter+1 != ingress {
		return vote.RootID{}, ErrInvalidIngressCounter
	}
	if !m.chain.Validators().IsValidator(validator) {
		return vote.RootID{}, ErrNotAValidator
	}
	from, err := m.store.nextBlock()
	if err != nil {
		return vote.RootID{}, err
	}
	if toBlock < from {
		return vote.RootID{}, ErrInvalidRange
	}
	id := vote.RootID{FromBlock: from, ToBlock: toBlock, IngressCounter: ingress}
	free, err := m.neitherPendingNorApproved(id)
	if err != nil {
		return id, err
	}
	if !free {
		return id, ErrSummaryPendingOrApproved
	}

	if err := m.store.setRoot(id, &RootData{Hash: rootHash, Submitter: validator}); err != nil {
		return id, err
	}
	if err := m.store.setPending(id); err != nil {
		return id, err
	}
	if err := m.store.setIngressCounter(ingress); err != nil {
		return id, err
	}
	if _, err := m.sessions.CreateSession(vote.RootSubject(id)); err != nil {
		return id, err
	}
	m.sink.Deposit(SummaryCalculated{Root: id, RootHash: rootHash, Submitter: validator})
	m.log.WithFields(logrus.Fields{"from": from, "to": toBlock, "root": rootHash}).Info("Summary calculated")
	return id, nil
}

func (m *Module) neitherPendingNorApproved(id vote.RootID) (bool, error) {
	_, pending, err := m.store.pending(id.FromBlock, id.ToBlock)
	if err != nil || pending {
		return false, err
	}
	approved, err := m.store.approved(id.FromBlock, id.ToBlock)
	return !approved, err
}

// IsPending reports whether sub is the root awaiting approval for its range.
func (m *Module) IsPending(sub vote.Subject) bool {
	if sub.Root == nil {
		return false
	}
	ingress, pending, err := m.store.pending(sub.Root.FromBlock, sub.Root.ToBlock)
	if err != nil || !pending || ingress != sub.Root.IngressCounter {
		return false
	}
	data, err := m.store.root(*sub.Root)
	return err == nil && data != nil && !data.Validated
}

// EthEncodedData is the ABI encoding of the root hash. Approving validators
// confirm it with their Ethereum key.
func (m *Module) EthEncodedData(sub vote.Subject) ([]byte, error) {
	if sub.Root == nil {
		return nil, vote.ErrUnknownSubject
	}
	data, err := m.Root(*sub.Root)
	if err != nil {
		return nil, err
	}
	return eth.EncodeParams([]eth.Param{eth.NewParam(eth.Bytes32, data.Hash[:])})
}

// EndVoting applies the outcome of a root's vote. An approved root that is
// not empty is sent to the bridge contract.
func (m *Module) EndVoting(sub vote.Subject, session *vote.VotingSessionData, _ author.AccountID) error {
	if sub.Root == nil {
		return vote.ErrUnknownSubject
	}
	id := *sub.Root
	data, err := m.Root(id)
	if err != nil {
		return err
	}
	if err := m.store.dropPending(id.FromBlock, id.ToBlock); err != nil {
		return err
	}
	if !session.IsApproved() {
		m.log.WithField("root", sub).Warn("Root rejected")
		return nil
	}

	data.Validated = true
	if err := m.store.setApproved(id.FromBlock, id.ToBlock); err != nil {
		return err
	}
	if err := m.store.setNextBlock(id.ToBlock + 1); err != nil {
		return err
	}
	if data.Hash != (common.Hash{}) {
		params := []eth.Param{eth.NewParam(eth.Bytes32, data.Hash[:])}
		txID, err := m.publisher.AddNewSendRequest([]byte(PublishRootFunction), params, CallerID)
		if err != nil {
			return err
		}
		data.TxID = &txID
		if err := m.store.setTxRoot(txID, id); err != nil {
			return err
		}
		m.sink.Deposit(RootPassedValidation{Root: id, RootHash: data.Hash})
	}
	return m.store.setRoot(id, data)
}

// ProcessResult finalises the root sent with txID.
func (m *Module) ProcessResult(txID eth.EthereumId, callerID []byte, success bool) error {
	if !bytes.Equal(callerID, CallerID) {
		return nil
	}
	id, ok, err := m.store.txRoot(txID)
	if err != nil || !ok {
		return err
	}
	m.sink.Deposit(RootPublished{Root: id, TxID: txID, Success: success})
	if !success {
		m.log.WithField("tx_id", txID).Error("Root failed to publish to Ethereum")
		return nil
	}
	data, err := m.Root(id)
	if err != nil {
		return err
	}
	data.Finalised = true
	if err := m.store.setRoot(id, data); err != nil {
		return err
	}
	m.log.WithField("tx_id", txID).Info("Root published to Ethereum")
	return m.store.dropTxRoot(txID)
}

func (m *Module) ProcessLowerProofResult(eth.EthereumId, []byte, []byte, error) error {
	return nil
}

func (m *Module) ProcessReadResult(eth.EthereumId, []byte, []byte, error) error {
	return nil
}
