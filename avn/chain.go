package avn

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-avn-bridge/inter/author"
)

// Chain is the view of the runtime every bridge module runs against.
type Chain interface {
	// BlockNumber is the number of the block being built.
	BlockNumber() idx.Block
	// Now is the block timestamp in unix seconds.
	Now() uint64
	// Validators is the active validator set.
	Validators() *ValidatorSet
	Rules() Rules
}

// VerifySignature checks sig over payload against the key registered for
// account. Unknown accounts never verify.
func (s *ValidatorSet) VerifySignature(account author.AccountID, payload []byte, sig author.Signature) bool {
	v, ok := s.Get(account)
	return ok && author.Verify(v, payload, sig)
}
