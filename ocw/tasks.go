package ocw

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-avn-bridge/consensus"
	"github.com/rony4d/go-avn-bridge/ethbridge"
	"github.com/rony4d/go-avn-bridge/inter"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/discovery"
	"github.com/rony4d/go-avn-bridge/inter/ethevents"
	"github.com/rony4d/go-avn-bridge/runtime"
)

func (w *Worker) finalisedBlock(ctx context.Context) (uint32, error) {
	head, err := w.client.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "ethereum head")
	}
	if head < w.cfg.FinalityDepth {
		return 0, nil
	}
	final := head - w.cfg.FinalityDepth
	if final > uint64(^uint32(0)) {
		final = uint64(^uint32(0))
	}
	return uint32(final), nil
}

// voteLatestBlock proposes the finalised Ethereum head the first range is
// derived from.
func (w *Worker) voteLatestBlock(ctx context.Context, in instanceView) error {
	if in.activeRange != nil || in.voted {
		return nil
	}
	return w.once(fmt.Sprintf("latest/%d", in.id), func() error {
		final, err := w.finalisedBlock(ctx)
		if err != nil {
			return err
		}
		if final == 0 {
			return errRetry
		}
		sig, err := w.sign(ethbridge.LatestBlockProof(in.instance.Hash(), w.account, final))
		if err != nil {
			return err
		}
		return w.send(runtime.SubmitLatestEthereumBlock(in.id, w.account, final, sig))
	})
}

// voteEvents votes the active partition of the active range once the range
// is final on Ethereum.
func (w *Worker) voteEvents(ctx context.Context, in instanceView) error {
	if in.activeRange == nil || in.voted {
		return nil
	}
	active := in.activeRange
	rng := active.Range
	key := fmt.Sprintf("events/%d/%d/%d/%d", in.id, rng.StartBlock, rng.Length, active.Partition)
	return w.once(key, func() error {
		final, err := w.finalisedBlock(ctx)
		if err != nil {
			return err
		}
		if final < rng.EndBlock() {
			return errRetry
		}
		events, err := w.discover(ctx, in)
		if err != nil {
			return err
		}
		partitions := discovery.PartitionFactory(rng, events)
		if int(active.Partition) >= len(partitions) {
			return errors.Errorf("partition %d of range %s not discovered, %d partitions", active.Partition, rng, len(partitions))
		}
		p := partitions[active.Partition]
		proof, err := ethbridge.EventsProof(in.instance.Hash(), w.account, p)
		if err != nil {
			return err
		}
		sig, err := w.sign(proof)
		if err != nil {
			return err
		}
		w.log.WithFields(logrus.Fields{"instance": in.id, "range": rng, "partition": p.Partition(), "events": len(p.Events())}).Info("Voting events partition")
		return w.send(runtime.SubmitEthereumEvents(in.id, w.account, p, sig))
	})
}

// discover returns the events of the active range: the filtered logs of the
// bridge contract plus the bridge logs of the additional transactions.
func (w *Worker) discover(ctx context.Context, in instanceView) ([]discovery.DiscoveredEvent, error) {
	active := in.activeRange
	additional := active.AdditionalTransactions.Items()
	key := fmt.Sprintf("%d/%s/%x", in.id, active.Range, crypto.Keccak256Hash(hashesBytes(additional)))
	if cached, ok := w.discovered.Get(key); ok {
		return cached.([]discovery.DiscoveredEvent), nil
	}

	contract := in.instance.BridgeContract
	filter := active.EventTypesFilter.Items()
	topics := make([]common.Hash, len(filter))
	for i, e := range filter {
		topics[i] = e.Signature()
	}
	logs, err := w.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(uint64(active.Range.StartBlock)),
		ToBlock:   new(big.Int).SetUint64(uint64(active.Range.EndBlock())),
		Addresses: []common.Address{contract},
		Topics:    [][]common.Hash{topics},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "filter logs of range %s", active.Range)
	}
	for _, tx := range additional {
		receipt, err := w.client.TransactionReceipt(ctx, tx)
		if err != nil {
			return nil, errors.Wrapf(err, "receipt of additional transaction %s", tx)
		}
		for _, l := range receipt.Logs {
			if l.Address == contract {
				logs = append(logs, *l)
			}
		}
	}

	events := make([]discovery.DiscoveredEvent, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		ev, err := ethevents.ParseLog(l)
		if err != nil {
			w.log.WithError(err).WithFields(logrus.Fields{"tx": l.TxHash, "index": l.Index}).Debug("Skipping unparsable log")
			continue
		}
		events = append(events, discovery.DiscoveredEvent{Event: ev, Block: l.BlockNumber})
	}
	w.discovered.Add(key, events)
	return events, nil
}

func hashesBytes(hashes []common.Hash) []byte {
	out := make([]byte, 0, len(hashes)*common.HashLength)
	for _, h := range hashes {
		out = append(out, h[:]...)
	}
	return out
}

// processRequest does this validator's part of the active request.
func (w *Worker) processRequest(ctx context.Context, in instanceView) error {
	active := in.active
	if active == nil {
		return nil
	}
	switch active.Request.Kind() {
	case inter.SendRequest:
		if active.TxData == nil {
			return nil
		}
		if active.TxData.Sender == w.account {
			return w.sendTransaction(ctx, in)
		}
		if !in.enough {
			return w.confirm(in)
		}
		// the outcome is only final once the hash is known or the tx expired
		if active.TxData.EthTxHash == (common.Hash{}) && in.now <= active.TxData.Expiry {
			return nil
		}
		return w.corroborate(ctx, in)
	case inter.LowerProofRequest:
		if in.enough {
			return nil
		}
		return w.confirm(in)
	case inter.ReadContractRequest:
		return w.read(ctx, in)
	}
	return nil
}

func (w *Worker) requestKey(task string, in instanceView) string {
	attempt := uint16(0)
	if in.active.TxData != nil {
		attempt = in.active.TxData.ReplayAttempt
	}
	return fmt.Sprintf("%s/%d/%d/%d", task, in.id, in.active.Request.ID(), attempt)
}

func (w *Worker) hasConfirmed(active *inter.ActiveRequestData) bool {
	addr, err := w.signer.Author().EthAddress()
	if err != nil {
		return false
	}
	for _, c := range active.Confirmation.Confirmations.Items() {
		if signer, err := author.RecoverEthSigner(active.Confirmation.MsgHash, c); err == nil && signer == addr {
			return true
		}
	}
	return false
}

// confirm signs the message hash of the active Send or LowerProof.
func (w *Worker) confirm(in instanceView) error {
	active := in.active
	if w.hasConfirmed(active) {
		return nil
	}
	return w.once(w.requestKey("confirm", in), func() error {
		confirmation, err := w.signer.SignEthHash(active.Confirmation.MsgHash)
		if err != nil {
			return errors.Wrap(err, "sign confirmation")
		}
		id := active.Request.ID()
		sig, err := w.sign(ethbridge.ConfirmationProof(in.instance.Hash(), id, confirmation, w.account))
		if err != nil {
			return err
		}
		return w.send(runtime.AddConfirmation(in.id, id, confirmation, w.account, sig))
	})
}

// sendTransaction broadcasts the active Send once it has enough
// confirmations and reports its hash.
func (w *Worker) sendTransaction(ctx context.Context, in instanceView) error {
	active := in.active
	if !in.enough || active.TxData.EthTxHash != (common.Hash{}) {
		return nil
	}
	return w.once(w.requestKey("send", in), func() error {
		if w.broadcaster == nil {
			return ErrNoBroadcaster
		}
		tx, err := active.AsActiveTx()
		if err != nil {
			return err
		}
		data, err := ethbridge.SendCalldata(tx)
		if err != nil {
			return err
		}
		hash, err := w.broadcaster.Send(ctx, in.instance.BridgeContract, data)
		if err != nil {
			return err
		}
		id := active.Request.ID()
		w.log.WithFields(logrus.Fields{"instance": in.id, "tx_id": id, "eth_tx": hash}).Info("Ethereum transaction sent")
		sig, err := w.sign(ethbridge.EthTxHashProof(in.instance.Hash(), id, hash, w.account))
		if err != nil {
			return err
		}
		return w.send(runtime.AddEthTxHash(in.id, id, hash, w.account, sig))
	})
}

// corroborate reports the outcome of the active Send as the bridge contract
// sees it, and whether the reported tx hash agrees.
func (w *Worker) corroborate(ctx context.Context, in instanceView) error {
	active := in.active
	tx := active.TxData
	if tx.HasCorroborated(w.account) {
		return nil
	}
	return w.once(w.requestKey("corroborate", in), func() error {
		id := active.Request.ID()
		data, err := ethbridge.CorroborateCalldata(id, tx.Expiry)
		if err != nil {
			return err
		}
		contract := in.instance.BridgeContract
		raw, err := w.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
		if err != nil {
			return errors.Wrap(err, "corroborate call")
		}
		status, err := ethbridge.DecodeCorroborateResult(raw)
		if err != nil {
			return err
		}
		if status == ethbridge.TxUnresolved {
			return errRetry
		}
		succeeded := status == ethbridge.TxSucceeded
		hashValid := w.txHashValid(ctx, tx.EthTxHash, succeeded)
		sig, err := w.sign(ethbridge.CorroborationProof(in.instance.Hash(), id, succeeded, hashValid, w.account, tx.ReplayAttempt))
		if err != nil {
			return err
		}
		return w.send(runtime.AddCorroboration(in.id, id, succeeded, hashValid, w.account, tx.ReplayAttempt, sig))
	})
}

// txHashValid reports whether the receipt of hash agrees with the outcome.
// Without a hash only a failure is consistent.
func (w *Worker) txHashValid(ctx context.Context, hash common.Hash, succeeded bool) bool {
	if hash == (common.Hash{}) {
		return !succeeded
	}
	receipt, err := w.client.TransactionReceipt(ctx, hash)
	if err != nil || receipt == nil {
		return false
	}
	return (receipt.Status == types.ReceiptStatusSuccessful) == succeeded
}

// read runs the view call of the active read request.
func (w *Worker) read(ctx context.Context, in instanceView) error {
	active := in.active
	if active.ReadData != nil && active.ReadData.Voters.Contains(w.account) {
		return nil
	}
	return w.once(w.requestKey("read", in), func() error {
		req := active.Request.Read
		data, err := ethbridge.ReadCalldata(req)
		if err != nil {
			return err
		}
		var block *big.Int
		if req.EthBlock != nil {
			block = new(big.Int).SetUint64(uint64(*req.EthBlock))
		}
		result, err := w.client.CallContract(ctx, ethereum.CallMsg{To: &req.Contract, Data: data}, block)
		if err != nil {
			return errors.Wrapf(err, "read call %d", req.ReadID)
		}
		sig, err := w.sign(ethbridge.ReadResultProof(in.instance.Hash(), req.ReadID, result, w.account))
		if err != nil {
			return err
		}
		return w.send(runtime.AddReadResult(in.id, req.ReadID, result, w.account, sig))
	})
}

// clearFeed clears a consensus round whose grace period passed.
func (w *Worker) clearFeed(fr feedRound) error {
	return w.once(fmt.Sprintf("clear/%d/%d", fr.feed, fr.round), func() error {
		payload, err := consensus.ClearPayload(fr.feed, fr.round)
		if err != nil {
			return err
		}
		sig, err := w.sign(payload)
		if err != nil {
			return err
		}
		return w.send(runtime.ConsensusClear(fr.feed, w.account, sig))
	})
}
