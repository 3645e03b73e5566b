package ethbridge

import (
	"fmt"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-avn-bridge/inter"
	"github.com/rony4d/go-avn-bridge/inter/eth"
)

var requestKinds = []string{
	inter.SendRequest.String(),
	inter.LowerProofRequest.String(),
	inter.ReadContractRequest.String(),
}

// AddNewSendRequest asks the validators to call function on the bridge
// contract. The request becomes active at once when the instance is idle and
// is queued otherwise.
func (b *Bridge) AddNewSendRequest(function []byte, params []eth.Param, callerID []byte) (eth.EthereumId, error) {
	if !utf8.Valid(function) {
		return 0, ErrFunctionNameError
	}
	if len(function) == 0 {
		return 0, ErrEmptyFunctionName
	}
	txID, err := b.store.useNextTxID()
	if err != nil {
		return 0, err
	}
	req, err := inter.NewSendRequest(txID, function, params, callerID)
	if err != nil {
		return 0, err
	}
	return txID, b.addNewRequest(inter.SendReq(req))
}

// AddNewLowerProofRequest asks the validators to confirm a lower. The lower
// id is chosen by the caller.
func (b *Bridge) AddNewLowerProofRequest(lowerID eth.EthereumId, params eth.LowerParams, callerID []byte) error {
	req, err := inter.NewLowerProofRequest(lowerID, params, callerID)
	if err != nil {
		return err
	}
	return b.addNewRequest(inter.LowerProofReq(req))
}

// AddNewReadRequest asks the validators to call a view function of contract,
// at ethBlock or at the latest block when nil.
func (b *Bridge) AddNewReadRequest(contract common.Address, function []byte, params []eth.Param, callerID []byte, ethBlock *uint32) (eth.EthereumId, error) {
	if !utf8.Valid(function) {
		return 0, ErrFunctionNameError
	}
	if len(function) == 0 {
		return 0, ErrEmptyFunctionName
	}
	readID, err := b.store.useNextTxID()
	if err != nil {
		return 0, err
	}
	req, err := inter.NewReadContractRequest(readID, contract, function, params, callerID, ethBlock)
	if err != nil {
		return 0, err
	}
	return readID, b.addNewRequest(inter.ReadContractReq(req))
}

func (b *Bridge) addNewRequest(req inter.Request) error {
	active, err := b.store.activeRequest()
	if err != nil {
		return err
	}
	if active == nil {
		return b.setUpActive(req)
	}
	limit := b.queueLimit()
	queue, err := b.store.queue(limit)
	if err != nil {
		return err
	}
	if len(queue) >= limit {
		return ErrTxRequestQueueFull
	}
	queue = append(queue, req)
	if err := b.store.setQueue(queue); err != nil {
		return err
	}
	b.metrics.QueueDepth(b.id, len(queue))
	b.log.WithFields(logrus.Fields{"request": req, "queued": len(queue)}).Debug("Request queued")
	return nil
}

func (b *Bridge) setUpActive(req inter.Request) error {
	var err error
	switch req.Kind() {
	case inter.SendRequest:
		err = b.setUpActiveTx(req.Send, nil)
	case inter.LowerProofRequest:
		err = b.setUpActiveLowerProof(req.LowerProof)
	case inter.ReadContractRequest:
		err = b.setUpActiveRead(req.Read)
	default:
		err = inter.ErrUnknownRequest
	}
	if err != nil {
		return err
	}
	b.metrics.ActiveRequest(b.id, requestKinds, req.Kind().String())
	return nil
}

func (b *Bridge) setUpActiveLowerProof(req *inter.LowerProofRequestData) error {
	if err := req.Params.Validate(); err != nil {
		return ErrLowerParamsError
	}
	instance, err := b.Instance()
	if err != nil {
		return err
	}
	active := &inter.ActiveRequestData{
		Request:      inter.LowerProofReq(req),
		Confirmation: inter.NewActiveConfirmation(eth.CreateLowerProofHash(req.Params, instance.Domain())),
		LastUpdated:  b.chain.BlockNumber(),
	}
	if err := b.store.setActiveRequest(active); err != nil {
		return err
	}
	b.sink.Deposit(LowerProofRequested{Instance: b.id, LowerID: req.LowerID, CallerID: req.CallerID})
	b.log.WithField("lower_id", req.LowerID).Info("Lower proof requested")
	return nil
}

func (b *Bridge) setUpActiveRead(req *inter.ReadContractRequestData) error {
	active := &inter.ActiveRequestData{
		Request:      inter.ReadContractReq(req),
		Confirmation: inter.NewActiveConfirmation(common.Hash{}),
		ReadData:     inter.NewActiveRead(),
		LastUpdated:  b.chain.BlockNumber(),
	}
	if err := b.store.setActiveRequest(active); err != nil {
		return err
	}
	b.sink.Deposit(ReadContractRequested{Instance: b.id, ReadID: req.ReadID, Contract: req.Contract, FunctionName: req.FunctionName})
	b.log.WithFields(logrus.Fields{"read_id": req.ReadID, "function": string(req.FunctionName)}).Info("Contract read requested")
	return nil
}

// HasEnoughConfirmations applies the threshold of the request kind. The
// sender of a Send confirms implicitly by broadcasting, so it needs one
// confirmation less than the quorum. A lower proof is checked by the contract
// against a supermajority.
func (b *Bridge) HasEnoughConfirmations(active *inter.ActiveRequestData) bool {
	switch active.Request.Kind() {
	case inter.SendRequest:
		return uint32(active.Confirmation.Confirmations.Len())+1 >= b.quorum()
	case inter.LowerProofRequest:
		return uint32(active.Confirmation.Confirmations.Len()) >= b.supermajority()
	}
	if active.ReadData == nil {
		return false
	}
	leading, ok := active.ReadData.Leading()
	return ok && leading.Votes >= b.quorum()
}

// processNextRequest drops the active request and makes the head of the
// queue active. A queued request that fails to set up is reported to its
// caller as failed and the next one is tried, so the instance always ends up
// with a valid active request or idle.
func (b *Bridge) processNextRequest() {
	if err := b.store.killActiveRequest(); err != nil {
		b.log.WithError(err).Error("Failed to remove the active request")
	}
	limit := b.queueLimit()
	for {
		queue, err := b.store.queue(limit)
		if err != nil {
			b.log.WithError(err).Error("Dropping unreadable request queue")
			queue = nil
		}
		if len(queue) == 0 {
			if err := b.store.setQueue(nil); err != nil {
				b.log.WithError(err).Error("Failed to clear the request queue")
			}
			b.metrics.QueueDepth(b.id, 0)
			b.metrics.ActiveRequest(b.id, requestKinds, "")
			return
		}
		next := queue[0]
		if err := b.store.setQueue(queue[1:]); err != nil {
			b.log.WithError(err).Error("Failed to dequeue request")
			return
		}
		b.metrics.QueueDepth(b.id, len(queue)-1)
		err = b.setUpActive(next)
		if err == nil {
			return
		}
		b.log.WithError(err).WithField("request", next).Warn("Queued request failed to start")
		b.sink.Deposit(RequestFailedToStart{Instance: b.id, Kind: next.Kind(), RequestID: next.ID(), Reason: err.Error()})
		b.notifyFailure(next, err)
	}
}

// notifyFailure reports a request that ended without a result. Notification
// errors are logged only: the request is gone either way.
func (b *Bridge) notifyFailure(req inter.Request, cause error) {
	var err error
	switch req.Kind() {
	case inter.SendRequest:
		err = b.notify.ProcessResult(req.ID(), req.CallerID(), false)
	case inter.LowerProofRequest:
		err = b.notify.ProcessLowerProofResult(req.ID(), req.CallerID(), nil, cause)
	case inter.ReadContractRequest:
		err = b.notify.ProcessReadResult(req.ID(), req.CallerID(), nil, cause)
	}
	b.metrics.RequestCompleted(req.Kind().String(), false)
	if err != nil {
		b.log.WithError(err).WithField("request", req).Error("Failed to notify request failure")
	}
}

// RemoveActiveRequest fails the active request and moves on to the next.
func (b *Bridge) RemoveActiveRequest() error {
	active, err := b.store.activeRequest()
	if err != nil {
		return err
	}
	if active == nil {
		return ErrNoActiveRequest
	}
	b.notifyFailure(active.Request, fmt.Errorf("request %d removed", active.Request.ID()))
	b.processNextRequest()
	b.sink.Deposit(ActiveRequestRemoved{Instance: b.id, RequestID: active.Request.ID()})
	b.log.WithField("request", active.Request).Warn("Active request removed")
	return nil
}
