// Package runtime is the deterministic state machine of a bridge node.
//
// A Node owns the key/value state, hosts the bridge instances, the consensus
// engine, the voting sessions and the summary module, and applies extrinsics
// one at a time. Each extrinsic runs on an overlay of the state that is
// committed only when the call succeeds; a failed call leaves neither writes
// nor events behind.
//
// Off-chain workers only talk to the node through its inbox channel and its
// read-only Query view.
package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-avn-bridge/avn"
	"github.com/rony4d/go-avn-bridge/avn/genesis"
	"github.com/rony4d/go-avn-bridge/consensus"
	"github.com/rony4d/go-avn-bridge/ethbridge"
	"github.com/rony4d/go-avn-bridge/inter"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/discovery"
	"github.com/rony4d/go-avn-bridge/inter/eth"
	"github.com/rony4d/go-avn-bridge/inter/iblockproc"
	"github.com/rony4d/go-avn-bridge/inter/validity"
	"github.com/rony4d/go-avn-bridge/kvstore"
	"github.com/rony4d/go-avn-bridge/metrics"
	"github.com/rony4d/go-avn-bridge/summary"
	"github.com/rony4d/go-avn-bridge/utils/cser"
	"github.com/rony4d/go-avn-bridge/vote"
)

var (
	ErrInboxFull     = errors.New("node inbox full")
	ErrNotRootCall   = errors.New("not a root call")
	ErrUnknownCall   = errors.New("unknown call")
	ErrMissingField  = errors.New("extrinsic misses a field of its call")
	ErrReservedFeed  = errors.New("feed is reserved for event partitions")
	ErrBlockNotFound = errors.New("block not found")
)

// Store tables of the runtime modules.
var (
	nodeTable      = []byte("n")
	consensusTable = []byte("c")
	votingTable    = []byte("v")
	summaryTable   = []byte("s")
	bridgeTable    = []byte("b")

	stateKey    = []byte("state")
	blockPrefix = []byte("blk")
)

// Config holds the node settings that do not affect consensus.
type Config struct {
	Pool PoolConfig
	// GenesisTime is the timestamp of block zero. Block n is n block times
	// later.
	GenesisTime uint64
	// InboxSize is the capacity of the extrinsic channel.
	InboxSize int
}

func DefaultConfig() Config {
	return Config{
		Pool:      DefaultPoolConfig(),
		InboxSize: 1024,
	}
}

// Deps are the modules the node hands results to.
type Deps struct {
	Handlers ethbridge.Handlers
	Offences ethbridge.OffenceReporter
	// Notify receive the results of requests created by modules outside
	// the node, next to the summary module.
	Notify []ethbridge.BridgeInterfaceNotification
	// Routers receive the winning payloads of generic consensus feeds.
	Routers map[consensus.FeedID]consensus.Router
	Metrics *metrics.Recorder
	Log     *logrus.Entry
}

// Node is a bridge runtime.
type Node struct {
	mu      sync.RWMutex
	cfg     Config
	overlay *kvstore.Overlay
	store   kvstore.Store
	state   iblockproc.BlockState
	// block and time describe the block being built, or the last block
	// between two blocks.
	block idx.Block
	time  uint64
	set   *avn.ValidatorSet
	rules avn.Rules

	host      *ethbridge.Host
	mux       *consensus.Mux
	consensus *consensus.Engine
	sessions  *vote.Sessions
	summary   *summary.Module
	api       *ethbridge.API

	pool   *Pool
	root   []Extrinsic
	events *inter.EventLog
	inbox  chan Extrinsic

	subsMu sync.Mutex
	subs   []chan<- idx.Block

	metrics *metrics.Recorder
	log     *logrus.Entry
}

// New opens a node over db, writing the genesis state when db is empty.
func New(db kvstore.Store, g genesis.Genesis, cfg Config, deps Deps) (*Node, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	set, err := g.ValidatorSet()
	if err != nil {
		return nil, err
	}
	log := deps.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	n := &Node{
		cfg:     cfg,
		overlay: kvstore.NewOverlay(db),
		set:     set,
		rules:   g.Rules,
		mux:     consensus.NewMux(),
		host:    ethbridge.NewHost(),
		pool:    NewPool(cfg.Pool),
		events:  &inter.EventLog{},
		inbox:   make(chan Extrinsic, cfg.InboxSize),
		metrics: deps.Metrics,
		log:     log.WithField("module", "runtime"),
	}
	n.store = kvstore.Table(n.overlay, nodeTable)
	for feed, r := range deps.Routers {
		n.mux.Handle(feed, r)
	}
	n.consensus = consensus.New(kvstore.Table(n.overlay, consensusTable), n, n.mux, n.events, deps.Metrics, log)
	n.summary = summary.New(kvstore.Table(n.overlay, summaryTable), n, defaultPublisher{n.host}, n.events, log)
	n.sessions = vote.New(kvstore.Table(n.overlay, votingTable), n, vote.Owners{SummaryRoot: n.summary}, n.events, log)
	n.summary.Attach(n.sessions)

	notify := append(ethbridge.Notifications{n.summary}, deps.Notify...)
	for _, in := range g.Instances {
		b := ethbridge.New(in.ID, kvstore.Table(n.overlay, kvstore.Key(bridgeTable, bigendian.Uint32ToBytes(in.ID))), ethbridge.Deps{
			Chain:     n,
			Consensus: n.consensus,
			Notify:    notify,
			Handlers:  deps.Handlers,
			Offences:  deps.Offences,
			Sink:      n.events,
			Metrics:   deps.Metrics,
			Log:       log,
		})
		n.host.Add(b)
		n.mux.Handle(ethbridge.EventsFeed(in.ID), b)
	}
	n.api = ethbridge.NewAPI(n.host, n.Inbox())

	if err := n.open(g); err != nil {
		return nil, err
	}
	return n, nil
}

// open loads the stored state or writes the genesis one.
func (n *Node) open(g genesis.Genesis) error {
	ok, err := kvstore.GetBinary(n.store, stateKey, &n.state)
	if err != nil {
		return err
	}
	if ok {
		n.block, n.time = n.state.LastBlock.Idx, n.state.LastBlock.Time
		n.log.WithField("block", n.block).Info("Runtime state loaded")
		return nil
	}

	for _, in := range g.Instances {
		b, err := n.host.Get(in.ID)
		if err != nil {
			return err
		}
		if err := b.Init(in.Instance, g.NextTxID); err != nil {
			return err
		}
	}
	n.time = n.cfg.GenesisTime
	n.state = iblockproc.BlockState{
		LastBlock: iblockproc.BlockCtx{Idx: 0, Time: n.time},
		Rules:     g.Rules,
	}
	for _, a := range n.set.Authors() {
		n.state.Validators = append(n.state.Validators, a.Account)
	}
	if err := kvstore.PutBinary(n.store, stateKey, &n.state); err != nil {
		return err
	}
	if err := n.overlay.Commit(); err != nil {
		return err
	}
	n.events.Reset()
	n.log.WithFields(logrus.Fields{"instances": len(g.Instances), "validators": n.set.Len()}).Info("Genesis state written")
	return nil
}

// The node is the avn.Chain of its modules. The methods are called with mu
// held.

func (n *Node) BlockNumber() idx.Block { return n.block }

func (n *Node) Now() uint64 { return n.time }

func (n *Node) Validators() *avn.ValidatorSet { return n.set }

func (n *Node) Rules() avn.Rules { return n.rules }

func (n *Node) blockTime(block idx.Block) uint64 {
	return n.cfg.GenesisTime + uint64(block)*avn.SecsPerBlock
}

// State returns a copy of the state after the last block.
func (n *Node) State() iblockproc.BlockState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state.Copy()
}

// Block returns a produced block.
func (n *Node) Block(number idx.Block) (*inter.Block, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	raw, err := n.store.Get(kvstore.Key(blockPrefix, bigendian.Uint64ToBytes(uint64(number))))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrBlockNotFound
	}
	blk := &inter.Block{}
	return blk, rlp.DecodeBytes(raw, blk)
}

// Submit validates an unsigned extrinsic against the current state and
// admits it to the pool.
func (n *Node) Submit(ext Extrinsic) (common.Hash, error) {
	if !ext.Call.Unsigned() {
		return common.Hash{}, validity.ErrCall
	}
	n.mu.RLock()
	valid, err := n.validate(ext)
	now := n.block
	n.mu.RUnlock()
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := n.pool.Add(ext, valid, now)
	if err != nil {
		return hash, err
	}
	n.metrics.PoolSize(n.pool.Len())
	n.log.WithFields(logrus.Fields{"call": ext.Call, "hash": hash}).Debug("Extrinsic admitted")
	return hash, nil
}

// Sudo schedules a root call for the next block.
func (n *Node) Sudo(ext Extrinsic) (common.Hash, error) {
	if ext.Call != CallAdmin || ext.Admin == nil {
		return common.Hash{}, ErrNotRootCall
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := n.host.Get(ext.Instance); err != nil {
		return common.Hash{}, err
	}
	raw, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.U64(uint64(n.block))
		w.U32(uint32(len(n.root)))
		w.U32(ext.Instance)
		w.U8(uint8(ext.Admin.Kind))
		w.U64(ext.Admin.EthTxLifetimeSecs)
		w.U32(ext.Admin.EthTxID)
		w.Hash(ext.Admin.TxHash)
		ext.Admin.Instance.Write(w)
		return nil
	})
	if err != nil {
		return common.Hash{}, err
	}
	ext.hash = crypto.Keccak256Hash(raw)
	n.root = append(n.root, ext)
	n.log.WithFields(logrus.Fields{"instance": ext.Instance, "setting": ext.Admin.Kind}).Info("Root call scheduled")
	return ext.hash, nil
}

// ProduceBlock builds the next block: it runs the block hooks, drops the
// expired pool extrinsics and applies the root calls and then the pool in
// priority order.
func (n *Node) ProduceBlock() (*BlockResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.events.Reset()
	n.block = n.state.LastBlock.Idx + 1
	n.time = n.blockTime(n.block)

	for _, b := range n.host.Bridges() {
		b.OnInitialize(n.block)
	}
	if err := n.overlay.Commit(); err != nil {
		return nil, err
	}

	pruned := n.pool.Prune(n.block)
	exts := append(n.root, n.pool.Pending()...)
	n.root = nil

	blk := inter.Block{Number: n.block, Time: n.time}
	receipts := make([]Receipt, 0, len(exts))
	for i, ext := range exts {
		r := n.apply(i, ext)
		if ext.Call.Unsigned() {
			n.pool.Remove(ext.hash)
		}
		receipts = append(receipts, r)
		blk.Extrinsics = append(blk.Extrinsics, r.Hash)
		if r.Code != ExecCodeOK {
			blk.SkippedExtrinsics = append(blk.SkippedExtrinsics, uint32(i))
		}
	}
	blk.Events = uint32(n.events.Len())

	state := n.state.Copy()
	state.LastBlock = iblockproc.BlockCtx{Idx: n.block, Time: n.time, ExtrinsicsRoot: blk.ExtrinsicsRoot()}
	state.Applied += uint64(len(exts) - len(blk.SkippedExtrinsics))
	state.Skipped += uint64(len(blk.SkippedExtrinsics))
	raw, err := rlp.EncodeToBytes(&blk)
	if err != nil {
		return nil, err
	}
	if err := n.store.Put(kvstore.Key(blockPrefix, bigendian.Uint64ToBytes(uint64(n.block))), raw); err != nil {
		return nil, err
	}
	if err := kvstore.PutBinary(n.store, stateKey, &state); err != nil {
		return nil, err
	}
	if err := n.overlay.Commit(); err != nil {
		return nil, err
	}
	n.state = state

	n.metrics.BlockHeight(uint64(n.block))
	n.metrics.PoolSize(n.pool.Len())
	n.log.WithFields(logrus.Fields{
		"block":      n.block,
		"extrinsics": len(exts),
		"skipped":    len(blk.SkippedExtrinsics),
		"events":     blk.Events,
		"pruned":     pruned,
		"state":      state.Hash(),
	}).Debug("Block produced")
	n.publish(n.block)
	return &BlockResult{Block: blk, Receipts: receipts, Events: n.events.Events()}, nil
}

// apply runs one extrinsic on the overlay and commits it on success.
func (n *Node) apply(index int, ext Extrinsic) Receipt {
	r := Receipt{Index: index, Call: ext.Call, Hash: ext.hash}
	mark := n.events.Len()
	var err error
	if ext.Call.Unsigned() {
		if _, err = n.validate(ext); err != nil {
			r.Code = ExecCodeInvalid
		}
	}
	if err == nil {
		if err = n.dispatch(ext); err == nil {
			err = n.overlay.Commit()
		}
		if err != nil {
			r.Code = ExecCodeFailed
		}
	}
	if err != nil {
		n.overlay.Discard()
		n.events.Truncate(mark)
		r.Error = err.Error()
		n.log.WithError(err).WithFields(logrus.Fields{"call": ext.Call, "author": ext.Author.Short()}).Debug("Extrinsic failed")
	}
	n.metrics.Extrinsic(ext.Call.String(), err)
	return r
}

// Inbox is the channel off-chain workers submit extrinsics on.
func (n *Node) Inbox() Inbox {
	return n.inbox
}

// SubscribeBlocks makes ch receive the number of every produced block. A
// subscriber that is not ready misses the block.
func (n *Node) SubscribeBlocks(ch chan<- idx.Block) {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	n.subs = append(n.subs, ch)
}

func (n *Node) publish(block idx.Block) {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- block:
		default:
		}
	}
}

// Run admits the extrinsics arriving on the inbox and produces a block every
// blockTime until ctx is done.
func (n *Node) Run(ctx context.Context, blockTime time.Duration) error {
	ticker := time.NewTicker(blockTime)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ext := <-n.inbox:
			if _, err := n.Submit(ext); err != nil {
				n.log.WithError(err).WithField("call", ext.Call).Debug("Extrinsic refused")
			}
		case <-ticker.C:
			if _, err := n.ProduceBlock(); err != nil {
				return err
			}
		}
	}
}

// View is the read-only access to the runtime off-chain workers get.
type View struct {
	Block     idx.Block
	Now       uint64
	Chain     avn.Chain
	Host      *ethbridge.Host
	API       *ethbridge.API
	Consensus *consensus.Engine
	Sessions  *vote.Sessions
	Summary   *summary.Module
}

// Query runs fn against the state after the last block. fn must not keep
// the view.
func (n *Node) Query(fn func(View) error) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return fn(View{
		Block:     n.block,
		Now:       n.time,
		Chain:     n,
		Host:      n.host,
		API:       n.api,
		Consensus: n.consensus,
		Sessions:  n.sessions,
		Summary:   n.summary,
	})
}

// Inbox feeds extrinsics to a running node without blocking. It is the
// Submitter of the runtime API.
type Inbox chan<- Extrinsic

func (in Inbox) Send(ext Extrinsic) error {
	select {
	case in <- ext:
		return nil
	default:
		return ErrInboxFull
	}
}

func (in Inbox) SubmitEthereumEvents(instance uint32, account author.AccountID, partition discovery.EthereumEventsPartition, sig author.Signature) error {
	return in.Send(SubmitEthereumEvents(instance, account, partition, sig))
}

func (in Inbox) SubmitLatestEthereumBlock(instance uint32, account author.AccountID, block uint32, sig author.Signature) error {
	return in.Send(SubmitLatestEthereumBlock(instance, account, block, sig))
}

// defaultPublisher sends the summary roots through the default instance.
type defaultPublisher struct {
	host *ethbridge.Host
}

func (p defaultPublisher) AddNewSendRequest(function []byte, params []eth.Param, callerID []byte) (eth.EthereumId, error) {
	b, err := p.host.Default()
	if err != nil {
		return 0, err
	}
	return b.AddNewSendRequest(function, params, callerID)
}
