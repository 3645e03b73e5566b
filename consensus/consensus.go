// Package consensus implements a round-based N-of-M agreement on opaque
// payloads, one independent round counter per feed.
//
// Validators submit a payload for the current round of a feed. Identical
// payloads are tallied together; the first payload whose tally reaches the
// quorum wins the round, is handed to the Router and the round advances.
// A feed that stalls can be cleared once its grace period has passed, which
// advances the round without a winner.
package consensus

import (
	"errors"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-avn-bridge/avn"
	"github.com/rony4d/go-avn-bridge/inter"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/kvstore"
	"github.com/rony4d/go-avn-bridge/metrics"
)

const (
	SubmitContext = "consensus_submit_context"
	ClearContext  = "consensus_clear_context"
)

var (
	ErrSubmitterNotAValidator    = errors.New("submitter is not a validator")
	ErrValidatorAlreadySubmitted = errors.New("validator already submitted for this round")
	ErrMissingPayload            = errors.New("missing payload")
	ErrGracePeriodNotPassed      = errors.New("grace period not passed")
	ErrPayloadTooLarge           = errors.New("payload too large")
	ErrTooManyFeeds              = errors.New("too many active feeds")
	ErrInvalidSignature          = errors.New("invalid signature")
)

// FeedID names an independent stream of rounds.
type FeedID = uint32

// Router receives the winning payload of every round.
type Router interface {
	OnConsensus(feed FeedID, payload []byte, round uint32) error
}

// RouterFunc adapts a function to Router.
type RouterFunc func(feed FeedID, payload []byte, round uint32) error

func (f RouterFunc) OnConsensus(feed FeedID, payload []byte, round uint32) error {
	return f(feed, payload, round)
}

// ConsensusReached is deposited when a round is won.
type ConsensusReached struct {
	Feed        FeedID
	Round       uint32
	PayloadHash common.Hash
}

func (ConsensusReached) Module() string { return "avn-consensus" }
func (ConsensusReached) Name() string   { return "ConsensusReached" }

// ConsensusCleared is deposited when a round is cleared without a winner.
type ConsensusCleared struct {
	Feed  FeedID
	Round uint32
}

func (ConsensusCleared) Module() string { return "avn-consensus" }
func (ConsensusCleared) Name() string   { return "ConsensusCleared" }

// Engine runs the rounds of every feed.
type Engine struct {
	store   store
	chain   avn.Chain
	router  Router
	sink    inter.EventSink
	metrics *metrics.Recorder
	log     *logrus.Entry
}

// New creates the engine over a store table dedicated to it.
func New(s kvstore.Store, chain avn.Chain, router Router, sink inter.EventSink, m *metrics.Recorder, log *logrus.Entry) *Engine {
	return &Engine{
		store:   store{s},
		chain:   chain,
		router:  router,
		sink:    sink,
		metrics: m,
		log:     log.WithField("module", "avn-consensus"),
	}
}

// Round returns the current round of feed.
func (e *Engine) Round(feed FeedID) (uint32, error) {
	return e.store.round(feed)
}

// KnownFeeds lists the feeds with an open round, in activation order.
func (e *Engine) KnownFeeds() ([]FeedID, error) {
	return e.store.knownFeeds()
}

// LastSubmissionBlock returns the block the grace period of feed counts from.
func (e *Engine) LastSubmissionBlock(feed FeedID) (idx.Block, error) {
	return e.store.lastSubmission(feed)
}

// HasSubmitted reports whether validator already submitted in the current
// round of feed.
func (e *Engine) HasSubmitted(feed FeedID, validator author.AccountID) (bool, error) {
	round, err := e.store.round(feed)
	if err != nil {
		return false, err
	}
	return e.store.isReporter(feed, round, validator)
}

// Votes returns the tally of payload in the current round of feed.
func (e *Engine) Votes(feed FeedID, payload []byte) (uint32, error) {
	round, err := e.store.round(feed)
	if err != nil {
		return 0, err
	}
	return e.store.votes(feed, round, crypto.Keccak256Hash(payload))
}

// Quorum is the number of identical submissions that wins a round.
func (e *Engine) Quorum() uint32 {
	return e.chain.Validators().Quorum(e.chain.Rules().Formula())
}

// Submit records the validator's payload for the current round of feed and
// closes the round when the payload reaches the quorum.
func (e *Engine) Submit(feed FeedID, payload []byte, validator author.AccountID, sig author.Signature) error {
	if !e.chain.Validators().IsValidator(validator) {
		return ErrSubmitterNotAValidator
	}
	round, err := e.store.round(feed)
	if err != nil {
		return err
	}
	if err := e.checkPayload(payload); err != nil {
		return err
	}
	signed, err := SubmitPayload(feed, payload, round)
	if err != nil {
		return err
	}
	if !e.chain.Validators().VerifySignature(validator, signed, sig) {
		return ErrInvalidSignature
	}
	return e.record(feed, round, payload, validator)
}

// Record is Submit for modules that checked the validator's proof
// themselves.
func (e *Engine) Record(feed FeedID, payload []byte, validator author.AccountID) error {
	if !e.chain.Validators().IsValidator(validator) {
		return ErrSubmitterNotAValidator
	}
	if err := e.checkPayload(payload); err != nil {
		return err
	}
	round, err := e.store.round(feed)
	if err != nil {
		return err
	}
	return e.record(feed, round, payload, validator)
}

func (e *Engine) checkPayload(payload []byte) error {
	if len(payload) == 0 {
		return ErrMissingPayload
	}
	if uint32(len(payload)) > e.chain.Rules().Consensus.MaxPayloadLen {
		return ErrPayloadTooLarge
	}
	return nil
}

func (e *Engine) record(feed FeedID, round uint32, payload []byte, validator author.AccountID) error {
	if err := e.activateFeed(feed); err != nil {
		return err
	}
	reported, err := e.store.isReporter(feed, round, validator)
	if err != nil {
		return err
	}
	if reported {
		return ErrValidatorAlreadySubmitted
	}
	if err := e.store.setReporter(feed, round, validator); err != nil {
		return err
	}

	hash := crypto.Keccak256Hash(payload)
	if err := e.store.setPayloadOnce(feed, round, hash, payload); err != nil {
		return err
	}
	count, err := e.store.vote(feed, round, hash)
	if err != nil {
		return err
	}
	if err := e.store.setLastSubmission(feed, e.chain.BlockNumber()); err != nil {
		return err
	}

	if count < e.Quorum() {
		return nil
	}
	return e.closeRound(feed, round, hash)
}

func (e *Engine) closeRound(feed FeedID, round uint32, hash common.Hash) error {
	stored, err := e.store.payload(feed, round, hash)
	if err != nil {
		return err
	}
	if stored == nil {
		return ErrMissingPayload
	}
	if err := e.router.OnConsensus(feed, stored, round); err != nil {
		return err
	}
	if err := e.advance(feed, round); err != nil {
		return err
	}
	e.sink.Deposit(ConsensusReached{Feed: feed, Round: round, PayloadHash: hash})
	e.metrics.ConsensusReached(feed)
	e.log.WithFields(logrus.Fields{"feed": feed, "round": round, "payload": hash}).Debug("Consensus reached")
	return nil
}

// Clearable reports whether the grace period of feed has passed at block now.
func (e *Engine) Clearable(feed FeedID, now idx.Block) (bool, error) {
	last, err := e.store.lastSubmission(feed)
	if err != nil {
		return false, err
	}
	rules := e.chain.Rules().Consensus
	return now >= last+rules.RefreshRangeBlocks+rules.GracePeriod, nil
}

// ClearableFeeds lists the known feeds whose grace period has passed.
func (e *Engine) ClearableFeeds(now idx.Block) ([]FeedID, error) {
	feeds, err := e.store.knownFeeds()
	if err != nil {
		return nil, err
	}
	var res []FeedID
	for _, feed := range feeds {
		ok, err := e.Clearable(feed, now)
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, feed)
		}
	}
	return res, nil
}

// ClearConsensus abandons the current round of a stalled feed. The router is
// not called.
func (e *Engine) ClearConsensus(feed FeedID, validator author.AccountID, sig author.Signature) error {
	if !e.chain.Validators().IsValidator(validator) {
		return ErrSubmitterNotAValidator
	}
	round, err := e.store.round(feed)
	if err != nil {
		return err
	}
	signed, err := ClearPayload(feed, round)
	if err != nil {
		return err
	}
	if !e.chain.Validators().VerifySignature(validator, signed, sig) {
		return ErrInvalidSignature
	}
	now := e.chain.BlockNumber()
	ok, err := e.Clearable(feed, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrGracePeriodNotPassed
	}

	refresh := e.chain.Rules().Consensus.RefreshRangeBlocks
	last := idx.Block(0)
	if now > refresh {
		last = now - refresh
	}
	if err := e.store.setLastSubmission(feed, last); err != nil {
		return err
	}
	if err := e.advance(feed, round); err != nil {
		return err
	}
	e.sink.Deposit(ConsensusCleared{Feed: feed, Round: round})
	e.metrics.ConsensusCleared(feed)
	e.log.WithFields(logrus.Fields{"feed": feed, "round": round}).Info("Consensus cleared")
	return nil
}

// Abandon closes the current round of feed without a winner and without a
// grace period. It serves modules resetting what the feed votes on.
func (e *Engine) Abandon(feed FeedID) error {
	round, err := e.store.round(feed)
	if err != nil {
		return err
	}
	if err := e.advance(feed, round); err != nil {
		return err
	}
	e.sink.Deposit(ConsensusCleared{Feed: feed, Round: round})
	e.metrics.ConsensusCleared(feed)
	e.log.WithFields(logrus.Fields{"feed": feed, "round": round}).Info("Consensus round abandoned")
	return nil
}

// advance bumps the round, drops the tallies of the old one and stops
// watching the feed.
func (e *Engine) advance(feed FeedID, round uint32) error {
	if err := e.store.setRound(feed, round+1); err != nil {
		return err
	}
	if err := e.store.dropRound(feed, round); err != nil {
		return err
	}
	return e.deactivateFeed(feed)
}

func (e *Engine) activateFeed(feed FeedID) error {
	feeds, err := e.store.knownFeeds()
	if err != nil {
		return err
	}
	for _, f := range feeds {
		if f == feed {
			return nil
		}
	}
	if uint32(len(feeds)) >= e.chain.Rules().Consensus.MaxFeeds {
		return ErrTooManyFeeds
	}
	return e.store.setKnownFeeds(append(feeds, feed))
}

func (e *Engine) deactivateFeed(feed FeedID) error {
	feeds, err := e.store.knownFeeds()
	if err != nil {
		return err
	}
	kept := feeds[:0]
	for _, f := range feeds {
		if f != feed {
			kept = append(kept, f)
		}
	}
	return e.store.setKnownFeeds(kept)
}
