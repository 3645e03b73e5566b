package ethbridge

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-avn-bridge/inter/eth"
)

// AdminSettingKind tags the variant of an AdminSetting.
type AdminSettingKind uint8

const (
	SetEthTxLifetime AdminSettingKind = iota
	SetEthTxID
	RemoveActive
	QueueAdditionalEvent
	RestartEventDiscovery
	SetBridgeInstance
)

func (k AdminSettingKind) String() string {
	switch k {
	case SetEthTxLifetime:
		return "EthereumTransactionLifetimeSeconds"
	case SetEthTxID:
		return "EthereumTransactionId"
	case RemoveActive:
		return "RemoveActiveRequest"
	case QueueAdditionalEvent:
		return "QueueAdditionalEthereumEvent"
	case RestartEventDiscovery:
		return "RestartEventDiscoveryOnRange"
	case SetBridgeInstance:
		return "SetEthBridgeInstance"
	}
	return fmt.Sprintf("AdminSettingKind(%d)", uint8(k))
}

// AdminSetting is one root-only change to an instance. Only the field of
// its kind is read.
type AdminSetting struct {
	Kind              AdminSettingKind
	EthTxLifetimeSecs uint64
	EthTxID           eth.EthereumId
	TxHash            common.Hash
	Instance          eth.EthBridgeInstance
}

// SetAdminSetting applies setting.
func (b *Bridge) SetAdminSetting(setting AdminSetting) error {
	switch setting.Kind {
	case SetEthTxLifetime:
		return b.SetEthTxLifetimeSecs(setting.EthTxLifetimeSecs)
	case SetEthTxID:
		return b.SetEthTxID(setting.EthTxID)
	case RemoveActive:
		return b.RemoveActiveRequest()
	case QueueAdditionalEvent:
		return b.QueueAdditionalEthereumEvent(setting.TxHash)
	case RestartEventDiscovery:
		return b.RestartEventDiscoveryOnRange()
	case SetBridgeInstance:
		return b.SetEthBridgeInstance(setting.Instance)
	}
	return ErrInvalidAdminSetting
}

// SetEthTxLifetimeSecs changes the lifetime of the Sends set up from now on.
func (b *Bridge) SetEthTxLifetimeSecs(secs uint64) error {
	if secs == 0 {
		return ErrInvalidTxLifetime
	}
	if err := b.store.setTxLifetime(secs); err != nil {
		return err
	}
	b.sink.Deposit(EthTxLifetimeUpdated{Instance: b.id, EthTxLifetimeSecs: secs})
	b.log.WithField("secs", secs).Info("Ethereum transaction lifetime updated")
	return nil
}

// SetEthTxID moves the id counter, e.g. after a contract migration. An id
// that was already settled cannot be handed out again.
func (b *Bridge) SetEthTxID(id eth.EthereumId) error {
	settled, err := b.store.settled(id)
	if err != nil {
		return err
	}
	if settled != nil {
		return ErrTxIDInUse
	}
	if err := b.store.setNextTxID(id); err != nil {
		return err
	}
	b.sink.Deposit(EthTxIDUpdated{Instance: b.id, EthTxID: id})
	b.log.WithField("tx_id", id).Info("Next Ethereum transaction id updated")
	return nil
}

// QueueAdditionalEthereumEvent asks the validators to look at the events of
// a transaction outside the watched filter when scanning the next range.
func (b *Bridge) QueueAdditionalEthereumEvent(txHash common.Hash) error {
	active, err := b.store.activeRange()
	if err != nil {
		return err
	}
	if active != nil && active.AdditionalTransactions.Contains(txHash) {
		return ErrEventAlreadyQueued
	}
	pending, err := b.store.pendingEvents()
	if err != nil {
		return err
	}
	if pending.Contains(txHash) {
		return ErrEventAlreadyQueued
	}
	if _, err := pending.Insert(txHash); err != nil {
		return ErrAdditionalEventsFull
	}
	if err := b.store.setPendingEvents(pending); err != nil {
		return err
	}
	b.sink.Deposit(AdditionalEventQueued{Instance: b.id, TransactionHash: txHash})
	b.log.WithFields(logrus.Fields{"tx": txHash, "queued": pending.Len()}).Info("Additional Ethereum event queued")
	return nil
}

// RestartEventDiscoveryOnRange votes the active range again from its first
// partition. Votes cast so far are discarded.
func (b *Bridge) RestartEventDiscoveryOnRange() error {
	active, err := b.store.activeRange()
	if err != nil {
		return err
	}
	if active == nil {
		return ErrNoActiveRange
	}
	if err := b.consensus.Abandon(EventsFeed(b.id)); err != nil {
		return err
	}
	if err := b.store.dropRangePartitions(active.Range); err != nil {
		return err
	}
	active.Partition = 0
	if err := b.store.setActiveRange(*active); err != nil {
		return err
	}
	b.sink.Deposit(EventDiscoveryRestarted{Instance: b.id, Range: active.Range})
	b.log.WithField("range", active.Range).Warn("Event discovery restarted")
	return nil
}

// SetEthBridgeInstance points the instance at another contract. The active
// request keeps the message hash it was set up with.
func (b *Bridge) SetEthBridgeInstance(instance eth.EthBridgeInstance) error {
	if !instance.IsValid() {
		return ErrInvalidInstance
	}
	if err := instance.CheckLimits(); err != nil {
		return err
	}
	if err := b.store.setInstance(instance); err != nil {
		return err
	}
	b.sink.Deposit(BridgeInstanceUpdated{Instance: b.id, Bridge: instance})
	b.log.WithFields(logrus.Fields{"network": instance.Network, "contract": instance.BridgeContract}).Info("Bridge instance updated")
	return nil
}
