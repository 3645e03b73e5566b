// Package validity describes the outcome of admitting an unsigned extrinsic
// into the transaction pool.
package validity

import (
	"errors"
	"fmt"
	"math"
)

// MaxPriority is the priority every bridge extrinsic is admitted with.
const MaxPriority uint64 = math.MaxUint64

// InvalidKind classifies a rejection.
type InvalidKind uint8

const (
	// Custom carries a module specific reason code.
	Custom InvalidKind = iota
	// BadProof means the submitter's signature does not verify.
	BadProof
	// Call means the extrinsic is not one the validator accepts unsigned.
	Call
	// Stale means the extrinsic refers to state that has moved on.
	Stale
)

var kindNames = [...]string{"custom", "bad proof", "call", "stale"}

func (k InvalidKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// InvalidTransaction is the error returned when an extrinsic is refused.
type InvalidTransaction struct {
	Kind InvalidKind
	Code uint8
}

// CustomCode refuses with a module reason code.
func CustomCode(code uint8) *InvalidTransaction {
	return &InvalidTransaction{Kind: Custom, Code: code}
}

var (
	ErrBadProof = &InvalidTransaction{Kind: BadProof}
	ErrCall     = &InvalidTransaction{Kind: Call}
	ErrStale    = &InvalidTransaction{Kind: Stale}
)

func (e *InvalidTransaction) Error() string {
	if e.Kind == Custom {
		return fmt.Sprintf("invalid transaction: custom(%d)", e.Code)
	}
	return "invalid transaction: " + e.Kind.String()
}

// Is matches on kind and code, so CustomCode(2) is errors.Is CustomCode(2).
func (e *InvalidTransaction) Is(target error) bool {
	var t *InvalidTransaction
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

// ValidTransaction is an admission ticket.
type ValidTransaction struct {
	TagPrefix string
	Priority  uint64
	// Provides holds the tags that deduplicate the extrinsic in the pool.
	Provides [][]byte
	// Longevity is the number of blocks the extrinsic stays valid.
	Longevity uint64
	Propagate bool
}

// New starts a ticket with max priority and propagation on.
func New(tagPrefix string, longevity uint64, provides ...[]byte) ValidTransaction {
	return ValidTransaction{
		TagPrefix: tagPrefix,
		Priority:  MaxPriority,
		Provides:  provides,
		Longevity: longevity,
		Propagate: true,
	}
}

// Tags returns the provides tags with the prefix applied.
func (v ValidTransaction) Tags() []string {
	tags := make([]string, len(v.Provides))
	for i, p := range v.Provides {
		tags[i] = v.TagPrefix + ":" + string(p)
	}
	return tags
}
