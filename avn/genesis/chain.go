package genesis

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-avn-bridge/avn"
)

// StaticChain is an avn.Chain with a fixed validator set and a block number
// moved by hand. It serves tools and tests that run modules outside the
// runtime.
type StaticChain struct {
	Block idx.Block
	Set   *avn.ValidatorSet
	Net   avn.Rules
}

// NewStaticChain builds a chain over the genesis validators at block 1.
func NewStaticChain(g Genesis) (*StaticChain, error) {
	set, err := g.ValidatorSet()
	if err != nil {
		return nil, err
	}
	return &StaticChain{Block: 1, Set: set, Net: g.Rules}, nil
}

func (c *StaticChain) BlockNumber() idx.Block { return c.Block }

func (c *StaticChain) Now() uint64 { return uint64(c.Block) * avn.SecsPerBlock }

func (c *StaticChain) Validators() *avn.ValidatorSet { return c.Set }

func (c *StaticChain) Rules() avn.Rules { return c.Net }

// Advance moves the chain n blocks forward.
func (c *StaticChain) Advance(n idx.Block) {
	c.Block += n
}
