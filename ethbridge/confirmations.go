package ethbridge

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-avn-bridge/inter"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/eth"
	"github.com/rony4d/go-avn-bridge/utils/bounded"
)

// active returns the active request if its id is id.
func (b *Bridge) active(id eth.EthereumId) (*inter.ActiveRequestData, error) {
	active, err := b.store.activeRequest()
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNoActiveRequest
	}
	if !active.Request.IDMatches(id) {
		return nil, ErrInvalidRequestID
	}
	return active, nil
}

func (b *Bridge) activeTx(txID eth.EthereumId) (*inter.ActiveRequestData, inter.ActiveTransactionData, error) {
	active, err := b.active(txID)
	if err != nil {
		return nil, inter.ActiveTransactionData{}, err
	}
	tx, err := active.AsActiveTx()
	if err != nil {
		return nil, tx, ErrCorroborateCallFailed
	}
	return active, tx, nil
}

// AddConfirmation records a validator's Ethereum signature over the message
// hash of the active Send or LowerProof. Confirmations arriving once the
// threshold is met, and the sender's own, are accepted and ignored.
func (b *Bridge) AddConfirmation(id eth.EthereumId, confirmation author.Signature, account author.AccountID) error {
	active, err := b.active(id)
	if err != nil {
		return err
	}
	kind := active.Request.Kind()
	if kind == inter.ReadContractRequest {
		return ErrInvalidRequestID
	}
	v, ok := b.chain.Validators().Get(account)
	if !ok {
		return ErrNotAValidator
	}
	if b.HasEnoughConfirmations(active) {
		return nil
	}
	if kind == inter.SendRequest && active.TxData.Sender == account {
		return nil
	}
	if !author.VerifyEthConfirmation(v, active.Confirmation.MsgHash, confirmation) {
		return ErrInvalidECDSASignature
	}
	// a signature and its malleated twin recover to the same address
	addr, _ := v.EthAddress()
	for _, c := range active.Confirmation.Confirmations.Items() {
		if signer, err := author.RecoverEthSigner(active.Confirmation.MsgHash, c); err == nil && signer == addr {
			return ErrDuplicateConfirmation
		}
	}
	if _, err := active.Confirmation.Confirmations.Insert(confirmation); err != nil {
		return ErrExceedsConfirmationLimit
	}
	active.LastUpdated = b.chain.BlockNumber()
	if err := b.store.setActiveRequest(active); err != nil {
		return err
	}
	b.log.WithFields(logrus.Fields{"request": active.Request, "validator": account.Short(), "confirmations": active.Confirmation.Confirmations.Len()}).Debug("Confirmation added")

	if kind == inter.LowerProofRequest && b.HasEnoughConfirmations(active) {
		b.completeLowerProofRequest(active)
	}
	return nil
}

// Signatures returns the confirmations collected for the active request.
func (b *Bridge) Signatures() (common.Hash, []author.Signature, error) {
	active, err := b.store.activeRequest()
	if err != nil || active == nil {
		return common.Hash{}, nil, err
	}
	return active.Confirmation.MsgHash, active.Confirmation.Confirmations.Items(), nil
}

// AddEthTxHash records the hash of the broadcast transaction. Only the
// sender may set it, once.
func (b *Bridge) AddEthTxHash(txID eth.EthereumId, hash common.Hash, account author.AccountID) error {
	active, tx, err := b.activeTx(txID)
	if err != nil {
		return err
	}
	if tx.Data.Sender != account {
		return ErrEthTxHashMustBeSetBySender
	}
	if tx.Data.EthTxHash != (common.Hash{}) {
		return ErrEthTxHashAlreadySet
	}
	active.TxData.EthTxHash = hash
	active.LastUpdated = b.chain.BlockNumber()
	if err := b.store.setActiveRequest(active); err != nil {
		return err
	}
	b.log.WithFields(logrus.Fields{"tx_id": txID, "eth_tx": hash}).Info("Ethereum transaction hash set")
	return nil
}

// AddCorroboration records a validator's view of the active Send on
// Ethereum. A corroboration for an earlier attempt of a replayed request is
// ignored. Once a quorum agrees on success or failure the request is
// finalized.
func (b *Bridge) AddCorroboration(txID eth.EthereumId, succeeded, hashValid bool, account author.AccountID, replayAttempt uint16) error {
	active, tx, err := b.activeTx(txID)
	if err != nil {
		return err
	}
	if !b.chain.Validators().IsValidator(account) {
		return ErrNotAValidator
	}
	data := active.TxData
	if replayAttempt != data.ReplayAttempt {
		b.log.WithFields(logrus.Fields{"tx_id": txID, "attempt": replayAttempt, "current": data.ReplayAttempt}).Debug("Ignoring stale corroboration")
		return nil
	}
	if data.HasCorroborated(account) {
		return ErrDuplicateCorroboration
	}
	outcome := &data.FailureCorroborations
	if succeeded {
		outcome = &data.SuccessCorroborations
	}
	if _, err := outcome.Insert(account); err != nil {
		return ErrExceedsConfirmationLimit
	}
	if !data.HasCorroboratedHash(account) {
		hashes := &data.InvalidTxHashCorroborations
		if hashValid {
			hashes = &data.ValidTxHashCorroborations
		}
		if _, err := hashes.Insert(account); err != nil {
			return ErrExceedsConfirmationLimit
		}
	}
	active.LastUpdated = b.chain.BlockNumber()
	if err := b.store.setActiveRequest(active); err != nil {
		return err
	}
	b.log.WithFields(logrus.Fields{"tx_id": txID, "validator": account.Short(), "succeeded": succeeded, "hash_valid": hashValid}).Debug("Corroboration added")

	tx.Data = data
	quorum := b.quorum()
	switch {
	case uint32(data.SuccessCorroborations.Len()) >= quorum:
		return b.finalizeState(tx, true)
	case uint32(data.FailureCorroborations.Len()) >= quorum:
		return b.finalizeState(tx, false)
	}
	return nil
}

// completeLowerProofRequest hands the proof to the caller and moves on. A
// failed notification is logged: the proof can be rebuilt from the settled
// confirmations by the caller.
func (b *Bridge) completeLowerProofRequest(active *inter.ActiveRequestData) {
	req := active.Request.LowerProof
	proof, err := EncodeLowerProof(req.Params, active.Confirmation.Concatenated())
	if err != nil {
		b.log.WithError(err).WithField("lower_id", req.LowerID).Error("Failed to encode lower proof")
		b.notifyFailure(active.Request, err)
		b.processNextRequest()
		return
	}
	if err := b.notify.ProcessLowerProofResult(req.LowerID, req.CallerID, proof, nil); err != nil {
		b.log.WithError(err).WithField("lower_id", req.LowerID).Error("Failed to notify lower proof")
	}
	b.sink.Deposit(LowerProofCompleted{Instance: b.id, LowerID: req.LowerID})
	b.metrics.RequestCompleted(inter.LowerProofRequest.String(), true)
	b.log.WithField("lower_id", req.LowerID).Info("Lower proof completed")
	b.processNextRequest()
}

// AddReadResult records the result a validator got for the active read.
// The read completes when a quorum reported the same bytes and fails when
// no result can reach the quorum any more.
func (b *Bridge) AddReadResult(readID eth.EthereumId, result []byte, account author.AccountID) error {
	active, err := b.active(readID)
	if err != nil {
		return err
	}
	if active.Request.Kind() != inter.ReadContractRequest || active.ReadData == nil {
		return ErrInvalidRequestID
	}
	if !b.chain.Validators().IsValidator(account) {
		return ErrNotAValidator
	}
	if len(result) > inter.ReadResultLimit {
		return inter.ErrReadResultTooLong
	}
	read := active.ReadData
	if read.Voters.Contains(account) {
		return ErrDuplicateReadResult
	}
	if _, err := read.Voters.Insert(account); err != nil {
		if errors.Is(err, bounded.ErrCapacityExceeded) {
			return ErrExceedsConfirmationLimit
		}
		return err
	}
	counted := false
	for i := range read.Tallies {
		if string(read.Tallies[i].Result) == string(result) {
			read.Tallies[i].Votes++
			counted = true
			break
		}
	}
	if !counted {
		read.Tallies = append(read.Tallies, inter.ReadResultTally{Result: common.CopyBytes(result), Votes: 1})
	}
	active.LastUpdated = b.chain.BlockNumber()
	if err := b.store.setActiveRequest(active); err != nil {
		return err
	}

	req := active.Request.Read
	quorum := b.quorum()
	leading, _ := read.Leading()
	switch {
	case leading.Votes >= quorum:
		b.completeRead(req, leading.Result, nil)
	case leading.Votes+uint32(b.chain.Validators().Len()-read.Voters.Len()) < quorum:
		b.completeRead(req, nil, ErrNoReadConsensus)
	}
	return nil
}

func (b *Bridge) completeRead(req *inter.ReadContractRequestData, result []byte, cause error) {
	if err := b.notify.ProcessReadResult(req.ReadID, req.CallerID, result, cause); err != nil {
		b.log.WithError(err).WithField("read_id", req.ReadID).Error("Failed to notify read result")
	}
	b.sink.Deposit(ReadContractCompleted{Instance: b.id, ReadID: req.ReadID, Succeeded: cause == nil})
	b.metrics.RequestCompleted(inter.ReadContractRequest.String(), cause == nil)
	b.log.WithFields(logrus.Fields{"read_id": req.ReadID, "error": fmt.Sprint(cause)}).Info("Contract read completed")
	b.processNextRequest()
}
