package ethbridge

import "errors"

var (
	ErrFunctionNameError            = errors.New("function name is not valid utf-8")
	ErrEmptyFunctionName            = errors.New("empty function name")
	ErrTxRequestQueueFull           = errors.New("request queue is full")
	ErrErrorAssigningSender         = errors.New("error assigning sender")
	ErrMsgHashError                 = errors.New("error building confirmation hash")
	ErrLowerParamsError             = errors.New("invalid lower params")
	ErrNoActiveRequest              = errors.New("no active request")
	ErrInvalidRequestID             = errors.New("request id does not match the active request")
	ErrInvalidECDSASignature        = errors.New("invalid ecdsa signature")
	ErrDuplicateConfirmation        = errors.New("duplicate confirmation")
	ErrExceedsConfirmationLimit     = errors.New("confirmation limit exceeded")
	ErrEthTxHashAlreadySet          = errors.New("eth tx hash already set")
	ErrEthTxHashMustBeSetBySender   = errors.New("eth tx hash must be set by the sender")
	ErrDuplicateCorroboration       = errors.New("duplicate corroboration")
	ErrCorroborateCallFailed        = errors.New("request is not an active send")
	ErrHandlePublishingResultFailed = errors.New("publishing result notification failed")
	ErrDuplicateReadResult          = errors.New("duplicate read result")
	ErrNoReadConsensus              = errors.New("validators disagree on the read result")
	ErrTxExpired                    = errors.New("transaction expired before it was corroborated")

	ErrNotAValidator             = errors.New("author is not a validator")
	ErrInvalidSignature          = errors.New("invalid signature")
	ErrNonActiveEthereumRange    = errors.New("partition is not the active ethereum range")
	ErrEventBelongsInFutureRange = errors.New("event belongs in a future range")
	ErrEventVoteExists           = errors.New("author already voted")
	ErrEventAlreadyProcessed     = errors.New("event already processed")
	ErrVotingEnded               = errors.New("initial range voting has ended")
	ErrNoActiveRange             = errors.New("no active ethereum range")
	ErrPartitionNotFound         = errors.New("voted partition not found")
	ErrInvalidEthereumBlock      = errors.New("invalid ethereum block")

	ErrInvalidInstance      = errors.New("invalid bridge instance")
	ErrUnknownInstance      = errors.New("unknown bridge instance")
	ErrAdditionalEventsFull = errors.New("too many additional events queued")
	ErrEventAlreadyQueued   = errors.New("event already queued")
	ErrInvalidAdminSetting  = errors.New("invalid admin setting")
	ErrInvalidTxLifetime    = errors.New("eth tx lifetime must be positive")
	ErrTxIDInUse            = errors.New("tx id is already settled")
)
