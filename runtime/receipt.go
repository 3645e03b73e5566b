package runtime

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-avn-bridge/inter"
)

// ExecCode is the outcome of applying one extrinsic.
type ExecCode uint8

const (
	ExecCodeOK ExecCode = iota
	// ExecCodeInvalid marks an extrinsic that no longer passed validation
	// when its block was built.
	ExecCodeInvalid
	// ExecCodeFailed marks an extrinsic whose call returned an error.
	ExecCodeFailed
)

func (c ExecCode) String() string {
	switch c {
	case ExecCodeOK:
		return "ok"
	case ExecCodeInvalid:
		return "invalid"
	case ExecCodeFailed:
		return "failed"
	}
	return "unknown"
}

// Receipt reports how an extrinsic of a block was applied.
type Receipt struct {
	Index int
	Call  Call
	Hash  common.Hash
	Code  ExecCode
	Error string
}

// BlockResult is everything a produced block yields.
type BlockResult struct {
	Block    inter.Block
	Receipts []Receipt
	// Events are the events deposited by the block's hooks and by its
	// successful extrinsics.
	Events []inter.Event
}
