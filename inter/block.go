package inter

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Block is the record of one runtime block.
type Block struct {
	Number idx.Block
	// Time is the block timestamp in unix seconds.
	Time uint64

	// Extrinsics lists every extrinsic included in the block, in order.
	Extrinsics []common.Hash

	// SkippedExtrinsics are the indexes of the included extrinsics that
	// failed and left no state behind.
	SkippedExtrinsics []uint32

	// Events is the number of events deposited in the block.
	Events uint32
}

// ExtrinsicsRoot commits to the ordered extrinsic list.
func (b *Block) ExtrinsicsRoot() common.Hash {
	if len(b.Extrinsics) == 0 {
		return common.Hash{}
	}
	buf := make([]byte, 0, len(b.Extrinsics)*common.HashLength)
	for _, h := range b.Extrinsics {
		buf = append(buf, h[:]...)
	}
	return crypto.Keccak256Hash(buf)
}

// EstimateSize returns the approximate encoded size of the block.
func (b *Block) EstimateSize() int {
	hashBytes := (len(b.Extrinsics) + 1) * 32
	skippedBytes := len(b.SkippedExtrinsics) * 4
	fixedBytes := 8 + 8 + 4
	return hashBytes + skippedBytes + fixedBytes
}

// FilterSkipped drops the items at the skipped indexes, which must be
// sorted.
func FilterSkipped[T any](items []T, skipped []uint32) []T {
	if len(skipped) == 0 {
		return items
	}
	skipCount := 0
	filtered := make([]T, 0, len(items))
	for i, it := range items {
		if skipCount < len(skipped) && skipped[skipCount] == uint32(i) {
			skipCount++
		} else {
			filtered = append(filtered, it)
		}
	}
	return filtered
}
