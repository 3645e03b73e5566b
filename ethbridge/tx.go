package ethbridge

import (
	"fmt"
	"math"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-avn-bridge/inter"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/eth"
)

// setUpActiveTx makes req the active Send. replay is nil for a first attempt.
func (b *Bridge) setUpActiveTx(req *inter.SendRequestData, replay *uint16) error {
	lifetime, err := b.EthTxLifetimeSecs()
	if err != nil {
		return err
	}
	expiry := b.chain.Now() + lifetime
	params, err := req.ExtendParams(expiry)
	if err != nil {
		return err
	}
	instance, err := b.Instance()
	if err != nil {
		return err
	}
	msgHash, err := eth.CreateFunctionConfirmationHash(string(req.FunctionName), params, instance.Domain())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMsgHashError, err)
	}
	sender, err := b.assignSender()
	if err != nil {
		return err
	}
	attempt := uint16(0)
	if replay != nil {
		attempt = *replay
	}
	active := &inter.ActiveRequestData{
		Request:      inter.SendReq(req),
		Confirmation: inter.NewActiveConfirmation(msgHash),
		TxData:       inter.NewActiveEthTransaction(req.FunctionName, params, sender, expiry, attempt),
		LastUpdated:  b.chain.BlockNumber(),
	}
	if err := b.store.setActiveRequest(active); err != nil {
		return err
	}
	b.sink.Deposit(PublishToEthereum{
		Instance:     b.id,
		TxID:         req.TxID,
		FunctionName: req.FunctionName,
		Params:       req.Params,
		CallerID:     req.CallerID,
	})
	b.log.WithFields(logrus.Fields{
		"tx_id":    req.TxID,
		"function": string(req.FunctionName),
		"sender":   sender.Short(),
		"expiry":   expiry,
		"replay":   attempt,
	}).Info("Publishing to Ethereum")
	return nil
}

// replaySendRequest sets the request up again with a new expiry, sender and
// message hash.
func (b *Bridge) replaySendRequest(tx inter.ActiveTransactionData) {
	req := tx.Request
	b.sink.Deposit(ActiveRequestRetried{
		Instance:     b.id,
		FunctionName: req.FunctionName,
		Params:       req.Params,
		CallerID:     req.CallerID,
	})
	attempt := tx.ReplayAttempt
	if attempt < math.MaxUint16 {
		attempt++
	}
	if err := b.setUpActiveTx(req, &attempt); err != nil {
		b.log.WithError(err).WithField("tx_id", req.TxID).Error("Failed to replay request")
		b.notifyFailure(inter.SendReq(req), err)
		b.processNextRequest()
	}
}

// finalizeState settles the active Send once a quorum agreed on its outcome.
// A failed transaction whose hash a quorum found invalid was never mined, so
// it is replayed instead.
func (b *Bridge) finalizeState(tx inter.ActiveTransactionData, success bool) error {
	if !success && uint32(tx.Data.InvalidTxHashCorroborations.Len()) >= b.quorum() {
		b.replaySendRequest(tx)
		return nil
	}
	return b.completeTransaction(tx, success)
}

func (b *Bridge) completeTransaction(tx inter.ActiveTransactionData, success bool) error {
	req, data := tx.Request, tx.Data
	if err := b.notify.ProcessResult(req.TxID, req.CallerID, success); err != nil {
		return fmt.Errorf("%w: %v", ErrHandlePublishingResultFailed, err)
	}
	data.TxSucceeded = success

	if success && data.FailureCorroborations.Len() > 0 {
		b.reportOffence(ChallengeAttemptedOnSuccessfulTransaction, req.TxID, data.FailureCorroborations.Items())
	}
	if !success && data.SuccessCorroborations.Len() > 0 {
		b.reportOffence(ChallengeAttemptedOnUnsuccessfulTransaction, req.TxID, data.SuccessCorroborations.Items())
	}
	if uint32(data.InvalidTxHashCorroborations.Len()) >= b.quorum() {
		data.EthTxHash = common.Hash{}
	}

	settled := &inter.TransactionData{
		FunctionName: data.FunctionName,
		Params:       data.EthTxParams,
		Sender:       data.Sender,
		EthTxHash:    data.EthTxHash,
		TxSucceeded:  success,
	}
	if err := b.store.settle(req.TxID, settled); err != nil {
		return err
	}
	b.sink.Deposit(TransactionSettled{Instance: b.id, TxID: req.TxID, Succeeded: success, EthTxHash: data.EthTxHash})
	b.metrics.RequestCompleted(inter.SendRequest.String(), success)
	b.log.WithFields(logrus.Fields{"tx_id": req.TxID, "success": success, "eth_tx": data.EthTxHash}).Info("Transaction settled")
	b.processNextRequest()
	return nil
}

// OnInitialize runs at the start of every block. It fails an active Send
// that stayed unsettled for a whole lifetime past its expiry: by then every
// honest validator could have corroborated it.
func (b *Bridge) OnInitialize(block idx.Block) {
	active, err := b.store.activeRequest()
	if err != nil {
		b.log.WithError(err).Error("Failed to read the active request")
		return
	}
	if active == nil || active.Request.Kind() != inter.SendRequest {
		return
	}
	tx, err := active.AsActiveTx()
	if err != nil {
		return
	}
	lifetime, err := b.EthTxLifetimeSecs()
	if err != nil {
		return
	}
	if b.chain.Now() <= tx.Data.Expiry+lifetime {
		return
	}
	b.log.WithFields(logrus.Fields{"tx_id": tx.Request.TxID, "expiry": tx.Data.Expiry, "block": block}).Warn("Active transaction expired")
	if err := b.completeTransaction(tx, false); err != nil {
		b.log.WithError(err).Error("Failed to settle expired transaction")
	}
}

// reportOffence reports offenders once per offence and transaction.
func (b *Bridge) reportOffence(kind OffenceKind, txID eth.EthereumId, offenders []author.AccountID) {
	reported, err := b.store.offenceReported(kind, txID)
	if err != nil || reported {
		return
	}
	if b.offences != nil {
		if err := b.offences.ReportOffence(kind, offenders); err != nil {
			b.log.WithError(err).WithField("offence", kind).Error("Failed to report offence")
			return
		}
	}
	if err := b.store.setOffenceReported(kind, txID); err != nil {
		b.log.WithError(err).Error("Failed to record offence")
	}
	b.sink.Deposit(OffenceReported{Instance: b.id, Offence: kind, TxID: txID, Offenders: offenders})
	b.log.WithFields(logrus.Fields{"offence": kind, "tx_id": txID, "offenders": len(offenders)}).Warn("Offence reported")
}
