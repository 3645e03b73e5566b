// Package ocw is the off-chain worker of a validator. On every runtime block
// it reads the bridge state, does the Ethereum side of the pending work and
// submits the signed results back to the runtime as unsigned extrinsics.
//
// Every task is idempotent within a lock window: a task that submitted its
// extrinsic keeps its lock until the runtime state moved on or the lock
// expired, and a task that failed releases it to retry on the next block.
package ocw

import (
	"context"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-avn-bridge/consensus"
	"github.com/rony4d/go-avn-bridge/inter"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/discovery"
	"github.com/rony4d/go-avn-bridge/inter/eth"
	"github.com/rony4d/go-avn-bridge/metrics"
	"github.com/rony4d/go-avn-bridge/runtime"
)

var (
	ErrNoBroadcaster = errors.New("no ethereum broadcaster configured")

	// errRetry releases the task lock without reporting a failure.
	errRetry = errors.New("retry on a later block")
)

// Runtime is the read side of a node.
type Runtime interface {
	Query(fn func(runtime.View) error) error
}

// Submitter takes the extrinsics of the worker.
type Submitter interface {
	Send(ext runtime.Extrinsic) error
}

type Config struct {
	// FinalityDepth is the number of blocks under the Ethereum head after
	// which a block is treated as final.
	FinalityDepth uint64
	// CacheSize bounds the task locks and the discovered events cache.
	CacheSize int
	LockTTL   time.Duration
	// CallTimeout bounds the Ethereum calls of one block.
	CallTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		FinalityDepth: 20,
		CacheSize:     1024,
		LockTTL:       5 * time.Minute,
		CallTimeout:   30 * time.Second,
	}
}

// Worker is the off-chain worker of one validator.
type Worker struct {
	cfg         Config
	signer      *author.Signer
	account     author.AccountID
	rt          Runtime
	submit      Submitter
	client      EthClient
	broadcaster *Broadcaster
	locks       *Locks
	// discovered events per range
	discovered *lru.Cache

	metrics *metrics.Recorder
	log     *logrus.Entry
}

// New creates a worker. broadcaster may be nil for a validator that never
// sends Ethereum transactions.
func New(cfg Config, signer *author.Signer, rt Runtime, submit Submitter, client EthClient, broadcaster *Broadcaster, m *metrics.Recorder, log *logrus.Entry) (*Worker, error) {
	locks, err := NewLocks(cfg.CacheSize, cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	discovered, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Worker{
		cfg:         cfg,
		signer:      signer,
		account:     signer.Author().Account,
		rt:          rt,
		submit:      submit,
		client:      client,
		broadcaster: broadcaster,
		locks:       locks,
		discovered:  discovered,
		metrics:     m,
		log:         log.WithField("module", "ocw"),
	}, nil
}

// instanceView is what the worker needs to know about one instance.
type instanceView struct {
	id          uint32
	instance    eth.EthBridgeInstance
	activeRange *discovery.ActiveEthRange
	voted       bool
	active      *inter.ActiveRequestData
	enough      bool
	now         uint64
}

type feedRound struct {
	feed  consensus.FeedID
	round uint32
}

type snapshot struct {
	block     idx.Block
	validator bool
	instances []instanceView
	clearable []feedRound
}

func (w *Worker) snapshot() (*snapshot, error) {
	snap := &snapshot{}
	err := w.rt.Query(func(v runtime.View) error {
		snap.block = v.Block
		snap.validator = v.Chain.Validators().IsValidator(w.account)
		if !snap.validator {
			return nil
		}
		for _, b := range v.Host.Bridges() {
			in := instanceView{id: b.ID(), now: v.Now}
			var err error
			if in.instance, err = b.Instance(); err != nil {
				return err
			}
			if in.activeRange, err = b.ActiveRange(); err != nil {
				return err
			}
			if in.voted, err = b.HasCastVote(w.account); err != nil {
				return err
			}
			if in.active, err = b.ActiveRequest(); err != nil {
				return err
			}
			if in.active != nil {
				in.enough = b.HasEnoughConfirmations(in.active)
			}
			snap.instances = append(snap.instances, in)
		}
		feeds, err := v.Consensus.ClearableFeeds(v.Block)
		if err != nil {
			return err
		}
		for _, feed := range feeds {
			round, err := v.Consensus.Round(feed)
			if err != nil {
				return err
			}
			snap.clearable = append(snap.clearable, feedRound{feed, round})
		}
		return nil
	})
	return snap, err
}

// Tick runs the tasks for the state after the last block.
func (w *Worker) Tick(ctx context.Context) {
	snap, err := w.snapshot()
	if err != nil {
		w.log.WithError(err).Error("Failed to read runtime state")
		return
	}
	if !snap.validator {
		w.log.WithField("account", w.account.Short()).Debug("Not a validator, idle")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
	defer cancel()
	for _, in := range snap.instances {
		w.run(ctx, "latest_block", in, w.voteLatestBlock)
		w.run(ctx, "events", in, w.voteEvents)
		w.run(ctx, "request", in, w.processRequest)
	}
	for _, fr := range snap.clearable {
		if err := w.clearFeed(fr); err != nil {
			w.metrics.OcwFailed("clear")
			w.log.WithError(err).WithField("feed", fr.feed).Warn("Off-chain task failed")
		}
	}
}

func (w *Worker) run(ctx context.Context, task string, in instanceView, fn func(context.Context, instanceView) error) {
	if err := fn(ctx, in); err != nil {
		w.metrics.OcwFailed(task)
		w.log.WithError(err).WithFields(logrus.Fields{"task": task, "instance": in.id}).Warn("Off-chain task failed")
	}
}

// Run ticks on every block received until ctx is done.
func (w *Worker) Run(ctx context.Context, blocks <-chan idx.Block) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case block := <-blocks:
			w.log.WithField("block", block).Trace("Off-chain tick")
			w.Tick(ctx)
		}
	}
}

// once runs fn unless the lock key is held. A failed fn releases the lock.
func (w *Worker) once(key string, fn func() error) error {
	if !w.locks.TryLock(key) {
		return nil
	}
	err := fn()
	if err != nil {
		w.locks.Unlock(key)
	}
	if err == errRetry {
		return nil
	}
	return err
}

func (w *Worker) send(ext runtime.Extrinsic) error {
	if err := w.submit.Send(ext); err != nil {
		return errors.Wrapf(err, "submit %s", ext.Call)
	}
	w.metrics.OcwSubmitted(ext.Call.String())
	w.log.WithFields(logrus.Fields{"call": ext.Call, "instance": ext.Instance}).Debug("Extrinsic submitted")
	return nil
}

func (w *Worker) sign(payload []byte) (author.Signature, error) {
	sig, err := w.signer.Sign(payload)
	return sig, errors.Wrap(err, "sign proof")
}
