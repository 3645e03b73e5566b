// Package iblockproc holds the state the runtime carries from one block to
// the next. Modules keep their own state in the store; BlockState only
// records what block production itself needs.
package iblockproc

import (
	"crypto/sha256"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/rony4d/go-avn-bridge/avn"
	"github.com/rony4d/go-avn-bridge/inter/author"
)

// BlockCtx identifies a produced block.
type BlockCtx struct {
	Idx  idx.Block
	Time uint64
	// ExtrinsicsRoot commits to the extrinsics included in the block.
	ExtrinsicsRoot common.Hash
}

// BlockState is the state of the runtime after LastBlock.
type BlockState struct {
	LastBlock BlockCtx

	// Validators is the validator set in rotation order.
	Validators []author.AccountID

	// Applied and Skipped count the extrinsics included since genesis.
	Applied uint64
	Skipped uint64

	Rules avn.Rules
}

// Copy returns a deep copy.
func (bs BlockState) Copy() BlockState {
	cp := bs
	cp.Validators = make([]author.AccountID, len(bs.Validators))
	copy(cp.Validators, bs.Validators)
	cp.Rules = bs.Rules.Copy()
	return cp
}

// Hash is the SHA256 of the RLP-encoded state.
func (bs BlockState) Hash() hash.Hash {
	hasher := sha256.New()
	err := rlp.Encode(hasher, &bs)
	if err != nil {
		panic("can't hash: " + err.Error())
	}
	return hash.BytesToHash(hasher.Sum(nil))
}

func (bs *BlockState) MarshalBinary() ([]byte, error) {
	return rlp.EncodeToBytes(bs)
}

func (bs *BlockState) UnmarshalBinary(raw []byte) error {
	return rlp.DecodeBytes(raw, bs)
}
