package runtime

import (
	"github.com/rony4d/go-avn-bridge/consensus"
	"github.com/rony4d/go-avn-bridge/ethbridge"
	"github.com/rony4d/go-avn-bridge/inter/validity"
)

// reservedFeed reports whether feed carries the event partitions of a
// hosted instance. Those feeds only take submissions through the bridge.
func (n *Node) reservedFeed(feed consensus.FeedID) bool {
	for _, id := range n.host.IDs() {
		if feed == ethbridge.EventsFeed(id) {
			return true
		}
	}
	return false
}

// validate checks an unsigned extrinsic against the current state.
func (n *Node) validate(ext Extrinsic) (validity.ValidTransaction, error) {
	switch ext.Call {
	case CallConsensusSubmit:
		if n.reservedFeed(ext.Feed) {
			return validity.ValidTransaction{}, validity.ErrCall
		}
		return n.consensus.ValidateSubmitUnsigned(ext.Feed, ext.Payload, ext.Author, ext.Signature)
	case CallConsensusClear:
		return n.consensus.ValidateClearUnsigned(ext.Feed, ext.Author, ext.Signature)
	case CallApproveVote:
		return n.sessions.ValidateApproveUnsigned(ext.Subject, ext.Author, ext.EthSignature, ext.Signature)
	case CallRejectVote:
		return n.sessions.ValidateRejectUnsigned(ext.Subject, ext.Author, ext.Signature)
	case CallEndVotingPeriod:
		return n.sessions.ValidateEndVotingPeriodUnsigned(ext.Subject, ext.Author, ext.Signature)
	case CallRecordSummary:
		return n.summary.ValidateRecordUnsigned(ext.ToBlock, ext.RootHash, ext.IngressCounter, ext.Author, ext.Signature)
	}

	b, err := n.host.Get(ext.Instance)
	if err != nil {
		return validity.ValidTransaction{}, validity.ErrCall
	}
	switch ext.Call {
	case CallSubmitEthereumEvents:
		if ext.Partition == nil {
			return validity.ValidTransaction{}, validity.ErrCall
		}
		return b.ValidateSubmitEthereumEvents(ext.Author, *ext.Partition, ext.Signature)
	case CallSubmitLatestEthereumBlock:
		return b.ValidateSubmitLatestEthereumBlock(ext.Author, ext.EthBlock, ext.Signature)
	case CallAddConfirmation:
		return b.ValidateAddConfirmation(ext.RequestID, ext.Confirmation, ext.Author, ext.Signature)
	case CallAddEthTxHash:
		return b.ValidateAddEthTxHash(ext.RequestID, ext.EthTxHash, ext.Author, ext.Signature)
	case CallAddCorroboration:
		return b.ValidateAddCorroboration(ext.RequestID, ext.Succeeded, ext.HashValid, ext.Author, ext.ReplayAttempt, ext.Signature)
	case CallAddReadResult:
		return b.ValidateAddReadResult(ext.RequestID, ext.ReadResult, ext.Author, ext.Signature)
	}
	return validity.ValidTransaction{}, validity.ErrCall
}

// dispatch applies ext to the overlay.
func (n *Node) dispatch(ext Extrinsic) error {
	switch ext.Call {
	case CallConsensusSubmit:
		if n.reservedFeed(ext.Feed) {
			return ErrReservedFeed
		}
		return n.consensus.Submit(ext.Feed, ext.Payload, ext.Author, ext.Signature)
	case CallConsensusClear:
		return n.consensus.ClearConsensus(ext.Feed, ext.Author, ext.Signature)
	case CallApproveVote:
		return n.sessions.ProcessApproveVote(ext.Subject, ext.Author, ext.EthSignature)
	case CallRejectVote:
		return n.sessions.ProcessRejectVote(ext.Subject, ext.Author)
	case CallEndVotingPeriod:
		return n.sessions.EndVotingPeriod(ext.Subject, ext.Author)
	case CallRecordSummary:
		_, err := n.summary.RecordSummaryCalculation(ext.ToBlock, ext.RootHash, ext.IngressCounter, ext.Author)
		return err
	}

	b, err := n.host.Get(ext.Instance)
	if err != nil {
		return err
	}
	switch ext.Call {
	case CallSubmitEthereumEvents:
		if ext.Partition == nil {
			return ErrMissingField
		}
		return b.SubmitEthereumEvents(ext.Author, *ext.Partition, ext.Signature)
	case CallSubmitLatestEthereumBlock:
		return b.SubmitLatestEthereumBlock(ext.Author, ext.EthBlock, ext.Signature)
	case CallAddConfirmation:
		return b.AddConfirmation(ext.RequestID, ext.Confirmation, ext.Author)
	case CallAddEthTxHash:
		return b.AddEthTxHash(ext.RequestID, ext.EthTxHash, ext.Author)
	case CallAddCorroboration:
		return b.AddCorroboration(ext.RequestID, ext.Succeeded, ext.HashValid, ext.Author, ext.ReplayAttempt)
	case CallAddReadResult:
		return b.AddReadResult(ext.RequestID, ext.ReadResult, ext.Author)
	case CallAdmin:
		if ext.Admin == nil {
			return ErrMissingField
		}
		return b.SetAdminSetting(*ext.Admin)
	}
	return ErrUnknownCall
}
