package ethbridge

import (
	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/discovery"
	"github.com/rony4d/go-avn-bridge/inter/eth"
	"github.com/rony4d/go-avn-bridge/inter/validity"
)

// UnsignedTagPrefix prefixes the pool tags of every bridge extrinsic.
const UnsignedTagPrefix = "EthBridge"

func (b *Bridge) verifyProof(account author.AccountID, payload func(instance common.Hash) ([]byte, error), sig author.Signature) error {
	v, ok := b.chain.Validators().Get(account)
	if !ok {
		return validity.ErrBadProof
	}
	instance, err := b.Instance()
	if err != nil {
		return err
	}
	signed, err := payload(instance.Hash())
	if err != nil || !author.Verify(v, signed, sig) {
		return validity.ErrBadProof
	}
	return nil
}

func (b *Bridge) admit(ctx string, account author.AccountID, parts ...[]byte) validity.ValidTransaction {
	tag := append([]byte(ctx), bigendian.Uint32ToBytes(b.id)...)
	for _, p := range parts {
		tag = append(tag, p...)
	}
	tag = append(tag, account[:]...)
	return validity.New(UnsignedTagPrefix, b.chain.Rules().Voting.UnsignedLongevity, tag)
}

func (b *Bridge) requireActive(id eth.EthereumId) error {
	if _, err := b.active(id); err != nil {
		return validity.ErrStale
	}
	return nil
}

func (b *Bridge) ValidateAddConfirmation(id eth.EthereumId, confirmation author.Signature, account author.AccountID, sig author.Signature) (validity.ValidTransaction, error) {
	err := b.verifyProof(account, func(instance common.Hash) ([]byte, error) {
		return ConfirmationProof(instance, id, confirmation, account), nil
	}, sig)
	if err != nil {
		return validity.ValidTransaction{}, err
	}
	if err := b.requireActive(id); err != nil {
		return validity.ValidTransaction{}, err
	}
	return b.admit(AddConfirmationContext, account, bigendian.Uint32ToBytes(id)), nil
}

func (b *Bridge) ValidateAddEthTxHash(txID eth.EthereumId, hash common.Hash, account author.AccountID, sig author.Signature) (validity.ValidTransaction, error) {
	err := b.verifyProof(account, func(instance common.Hash) ([]byte, error) {
		return EthTxHashProof(instance, txID, hash, account), nil
	}, sig)
	if err != nil {
		return validity.ValidTransaction{}, err
	}
	if err := b.requireActive(txID); err != nil {
		return validity.ValidTransaction{}, err
	}
	return b.admit(AddEthTxHashContext, account, bigendian.Uint32ToBytes(txID)), nil
}

func (b *Bridge) ValidateAddCorroboration(txID eth.EthereumId, succeeded, hashValid bool, account author.AccountID, replayAttempt uint16, sig author.Signature) (validity.ValidTransaction, error) {
	err := b.verifyProof(account, func(instance common.Hash) ([]byte, error) {
		return CorroborationProof(instance, txID, succeeded, hashValid, account, replayAttempt), nil
	}, sig)
	if err != nil {
		return validity.ValidTransaction{}, err
	}
	if err := b.requireActive(txID); err != nil {
		return validity.ValidTransaction{}, err
	}
	attempt := []byte{byte(replayAttempt >> 8), byte(replayAttempt)}
	return b.admit(AddCorroborationContext, account, bigendian.Uint32ToBytes(txID), attempt), nil
}

func (b *Bridge) ValidateAddReadResult(readID eth.EthereumId, result []byte, account author.AccountID, sig author.Signature) (validity.ValidTransaction, error) {
	err := b.verifyProof(account, func(instance common.Hash) ([]byte, error) {
		return ReadResultProof(instance, readID, result, account), nil
	}, sig)
	if err != nil {
		return validity.ValidTransaction{}, err
	}
	if err := b.requireActive(readID); err != nil {
		return validity.ValidTransaction{}, err
	}
	return b.admit(AddReadResultContext, account, bigendian.Uint32ToBytes(readID)), nil
}

// ValidateSubmitEthereumEvents admits a vote for the active partition only.
func (b *Bridge) ValidateSubmitEthereumEvents(account author.AccountID, partition discovery.EthereumEventsPartition, sig author.Signature) (validity.ValidTransaction, error) {
	err := b.verifyProof(account, func(instance common.Hash) ([]byte, error) {
		return EventsProof(instance, account, partition)
	}, sig)
	if err != nil {
		return validity.ValidTransaction{}, err
	}
	active, err := b.store.activeRange()
	if err != nil {
		return validity.ValidTransaction{}, err
	}
	if active == nil || checkActivePartition(*active, partition) != nil {
		return validity.ValidTransaction{}, validity.ErrStale
	}
	rng := partition.Range()
	slot := append(bigendian.Uint32ToBytes(rng.StartBlock), bigendian.Uint32ToBytes(rng.Length)...)
	slot = append(slot, bigendian.Uint32ToBytes(uint32(partition.Partition()))...)
	return b.admit(SubmitEthereumEventsHashContext, account, slot), nil
}

func (b *Bridge) ValidateSubmitLatestEthereumBlock(account author.AccountID, block uint32, sig author.Signature) (validity.ValidTransaction, error) {
	err := b.verifyProof(account, func(instance common.Hash) ([]byte, error) {
		return LatestBlockProof(instance, account, block), nil
	}, sig)
	if err != nil {
		return validity.ValidTransaction{}, err
	}
	active, err := b.store.activeRange()
	if err != nil {
		return validity.ValidTransaction{}, err
	}
	if active != nil {
		return validity.ValidTransaction{}, validity.ErrStale
	}
	return b.admit(SubmitLatestEthBlockContext, account), nil
}
