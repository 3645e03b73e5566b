package ethbridge

import "fmt"

// OffenceID tags the offences of this module.
const OffenceID = "ethbridge:offence"

// OffenceKind is the reason validators are reported. Both kinds are slashed
// in full.
type OffenceKind uint8

const (
	// ChallengeAttemptedOnSuccessfulTransaction: a validator corroborated a
	// failure the quorum found successful.
	ChallengeAttemptedOnSuccessfulTransaction OffenceKind = iota + 1
	// ChallengeAttemptedOnUnsuccessfulTransaction: a validator corroborated a
	// success the quorum found failed.
	ChallengeAttemptedOnUnsuccessfulTransaction
)

// SlashFraction is the share of the offenders' stake at risk, in percent.
const SlashFraction = 100

func (k OffenceKind) String() string {
	switch k {
	case ChallengeAttemptedOnSuccessfulTransaction:
		return "ChallengeAttemptedOnSuccessfulTransaction"
	case ChallengeAttemptedOnUnsuccessfulTransaction:
		return "ChallengeAttemptedOnUnsuccessfulTransaction"
	}
	return fmt.Sprintf("OffenceKind(%d)", uint8(k))
}
