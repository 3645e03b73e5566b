package ethbridge

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-avn-bridge/consensus"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/discovery"
	"github.com/rony4d/go-avn-bridge/inter/ethevents"
)

// Outcomes of an event, as counted by the metrics.
const (
	outcomeAccepted  = "accepted"
	outcomeRejected  = "rejected"
	outcomeDuplicate = "duplicate"
)

// ActiveRange returns nil until the initial range is voted.
func (b *Bridge) ActiveRange() (*discovery.ActiveEthRange, error) {
	return b.store.activeRange()
}

// PendingAdditionalEvents are the transactions queued for the next range.
func (b *Bridge) PendingAdditionalEvents() ([]common.Hash, error) {
	pending, err := b.store.pendingEvents()
	return pending.Items(), err
}

// EventProcessed reports whether the event was processed and whether it was
// accepted.
func (b *Bridge) EventProcessed(id ethevents.EthEventId) (found, accepted bool, err error) {
	return b.store.processed(id)
}

// SubmitEthereumEvents records the author's vote for a partition of the
// active range.
func (b *Bridge) SubmitEthereumEvents(account author.AccountID, partition discovery.EthereumEventsPartition, sig author.Signature) error {
	v, ok := b.chain.Validators().Get(account)
	if !ok {
		return ErrNotAValidator
	}
	active, err := b.store.activeRange()
	if err != nil {
		return err
	}
	if active == nil {
		return ErrNoActiveRange
	}
	instance, err := b.Instance()
	if err != nil {
		return err
	}
	signed, err := EventsProof(instance.Hash(), account, partition)
	if err != nil {
		return err
	}
	if !author.Verify(v, signed, sig) {
		return ErrInvalidSignature
	}
	if err := checkActivePartition(*active, partition); err != nil {
		return err
	}

	feed := EventsFeed(b.id)
	voted, err := b.consensus.HasSubmitted(feed, account)
	if err != nil {
		return err
	}
	if voted {
		return ErrEventVoteExists
	}
	if err := b.store.putPartitionOnce(partition); err != nil {
		return err
	}
	id := partition.ID()
	b.log.WithFields(logrus.Fields{
		"range":     partition.Range(),
		"partition": partition.Partition(),
		"id":        id,
		"events":    len(partition.Events()),
		"validator": account.Short(),
	}).Debug("Events partition vote")
	if err := b.consensus.Record(feed, id[:], account); err != nil {
		if errors.Is(err, consensus.ErrValidatorAlreadySubmitted) {
			return ErrEventVoteExists
		}
		return err
	}
	return nil
}

func checkActivePartition(active discovery.ActiveEthRange, p discovery.EthereumEventsPartition) error {
	rng := p.Range()
	if rng == active.Range && p.Partition() == active.Partition {
		return nil
	}
	if rng.StartBlock > active.Range.StartBlock || (rng == active.Range && p.Partition() > active.Partition) {
		return ErrEventBelongsInFutureRange
	}
	return ErrNonActiveEthereumRange
}

// OnConsensus processes the partition a quorum voted for and moves the
// active range on.
func (b *Bridge) OnConsensus(feed consensus.FeedID, payload []byte, round uint32) error {
	if feed != EventsFeed(b.id) {
		return fmt.Errorf("feed %d is not routed to bridge instance %d", feed, b.id)
	}
	active, err := b.store.activeRange()
	if err != nil {
		return err
	}
	if active == nil {
		return ErrNoActiveRange
	}
	id := common.BytesToHash(payload)
	p, err := b.store.partition(active.Range, active.Partition, id)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrPartitionNotFound
	}
	b.log.WithFields(logrus.Fields{"range": active.Range, "partition": active.Partition, "round": round, "id": id}).Info("Events partition accepted")

	for _, ev := range p.Events() {
		b.processEvent(*active, ev)
	}
	if err := b.store.dropPartitions(active.Range, active.Partition); err != nil {
		return err
	}
	return b.advanceRange(*active, p.IsLast())
}

// processEvent hands one event to its owner. Every outcome is final.
func (b *Bridge) processEvent(active discovery.ActiveEthRange, ev discovery.DiscoveredEvent) {
	id := ev.Event.EventID
	found, _, err := b.store.processed(id)
	if err != nil {
		b.log.WithError(err).WithField("event", id).Error("Failed to read processed events")
		return
	}
	if found {
		b.sink.Deposit(DuplicateEventSubmission{Instance: b.id, EventID: id})
		b.metrics.EventProcessed(outcomeDuplicate)
		b.log.WithField("event", id).Warn("Event already processed")
		return
	}
	reject := func(reason string) {
		if err := b.store.setProcessed(id, false); err != nil {
			b.log.WithError(err).Error("Failed to mark event processed")
		}
		b.sink.Deposit(EventRejected{Instance: b.id, EventID: id, Reason: reason})
		b.metrics.EventProcessed(outcomeRejected)
		b.log.WithFields(logrus.Fields{"event": id, "reason": reason}).Warn("Event rejected")
	}

	kind, ok := id.Kind()
	if !ok {
		reject("unknown event signature")
		return
	}
	if !active.EventTypesFilter.Contains(kind) && !active.AdditionalTransactions.Contains(id.TransactionHash) {
		reject(fmt.Sprintf("%s events are not watched", kind))
		return
	}
	if !ev.Event.IsValid() {
		reject("invalid event data")
		return
	}
	handler := b.handlers.For(kind)
	if handler == nil {
		reject(fmt.Sprintf("no handler for %s", kind))
		return
	}
	if err := handler.ProcessEvent(b.id, ev.Event, ev.Block); err != nil {
		reject(err.Error())
		return
	}
	if err := b.store.setProcessed(id, true); err != nil {
		b.log.WithError(err).Error("Failed to mark event processed")
	}
	b.sink.Deposit(EventAccepted{Instance: b.id, EventID: id})
	b.metrics.EventProcessed(outcomeAccepted)
	b.log.WithFields(logrus.Fields{"event": id, "kind": kind, "eth_block": ev.Block}).Info("Event accepted")
}

// advanceRange moves to the next partition, or to the next range once the
// last partition is done. The next range picks up the transactions queued
// by the admin.
func (b *Bridge) advanceRange(active discovery.ActiveEthRange, isLast bool) error {
	next := active
	if isLast {
		pending, err := b.store.pendingEvents()
		if err != nil {
			return err
		}
		next = discovery.ActiveEthRange{
			Range:                  active.Range.NextRange(),
			EventTypesFilter:       active.EventTypesFilter,
			AdditionalTransactions: pending,
		}
		if err := b.store.setPendingEvents(discovery.AdditionalEvents{}); err != nil {
			return err
		}
	} else {
		next.Partition++
	}
	if err := b.store.setActiveRange(next); err != nil {
		return err
	}
	b.sink.Deposit(ActiveRangeUpdated{Instance: b.id, Range: next.Range, Partition: next.Partition})
	b.log.WithFields(logrus.Fields{"range": next.Range, "partition": next.Partition}).Info("Active range updated")
	return nil
}

// SubmitLatestEthereumBlock records the author's view of the latest
// finalised Ethereum block. Once a supermajority voted, the initial range is
// set from the quorum-th highest block, which at least a quorum of
// validators has seen.
func (b *Bridge) SubmitLatestEthereumBlock(account author.AccountID, block uint32, sig author.Signature) error {
	v, ok := b.chain.Validators().Get(account)
	if !ok {
		return ErrNotAValidator
	}
	active, err := b.store.activeRange()
	if err != nil {
		return err
	}
	if active != nil {
		return ErrVotingEnded
	}
	instance, err := b.Instance()
	if err != nil {
		return err
	}
	if !author.Verify(v, LatestBlockProof(instance.Hash(), account, block), sig) {
		return ErrInvalidSignature
	}
	if block == 0 {
		return ErrInvalidEthereumBlock
	}
	_, voted, err := b.store.latestBlockVote(account)
	if err != nil {
		return err
	}
	if voted {
		return ErrEventVoteExists
	}
	if err := b.store.setLatestBlockVote(account, block); err != nil {
		return err
	}
	votes, err := b.store.latestBlockVotes()
	if err != nil {
		return err
	}
	b.log.WithFields(logrus.Fields{"block": block, "validator": account.Short(), "votes": len(votes)}).Debug("Latest block vote")
	if uint32(len(votes)) < b.supermajority() {
		return nil
	}
	return b.setInitialRange(chooseLatestBlock(votes, b.quorum()))
}

// chooseLatestBlock returns the quorum-th highest vote.
func chooseLatestBlock(votes []uint32, quorum uint32) uint32 {
	sorted := append([]uint32(nil), votes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	i := int(quorum) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	return sorted[i]
}

func (b *Bridge) setInitialRange(chosen uint32) error {
	rng, err := discovery.ComputeFinalisedBlockRangeForLatestEthereumBlock(chosen, b.chain.Rules().Bridge.EthBlockRangeSize)
	if err != nil {
		return err
	}
	pending, err := b.store.pendingEvents()
	if err != nil {
		return err
	}
	active := discovery.ActiveEthRange{
		Range:                  rng,
		EventTypesFilter:       discovery.DefaultEventsFilter(),
		AdditionalTransactions: pending,
	}
	if err := b.store.setActiveRange(active); err != nil {
		return err
	}
	if err := b.store.setPendingEvents(discovery.AdditionalEvents{}); err != nil {
		return err
	}
	if err := b.store.dropLatestBlockVotes(); err != nil {
		return err
	}
	b.sink.Deposit(InitialRangeSet{Instance: b.id, ChosenBlock: chosen, Range: rng})
	b.log.WithFields(logrus.Fields{"block": chosen, "range": rng}).Info("Initial range set")
	return nil
}

// HasCastVote reports whether account voted on what is being decided now:
// the active partition, or the initial range when none is active.
func (b *Bridge) HasCastVote(account author.AccountID) (bool, error) {
	active, err := b.store.activeRange()
	if err != nil {
		return false, err
	}
	if active == nil {
		_, voted, err := b.store.latestBlockVote(account)
		return voted, err
	}
	return b.consensus.HasSubmitted(EventsFeed(b.id), account)
}
