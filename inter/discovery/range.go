// Package discovery models the Ethereum block ranges validators scan for
// bridge events and the partitions they vote on.
package discovery

import (
	"errors"
	"fmt"
	"math"
)

// ErrZeroRangeLength is returned when a range length of zero is used to
// align blocks.
var ErrZeroRangeLength = errors.New("range length is zero")

// EthBlockRange is the window [StartBlock, StartBlock+Length).
type EthBlockRange struct {
	StartBlock uint32
	Length     uint32
}

// NextRange is the adjacent window of the same length.
func (r EthBlockRange) NextRange() EthBlockRange {
	return EthBlockRange{
		StartBlock: satAdd(r.StartBlock, r.Length),
		Length:     r.Length,
	}
}

// EndBlock is the last block inside the range.
func (r EthBlockRange) EndBlock() uint32 {
	end := satAdd(r.StartBlock, r.Length)
	if end == 0 {
		return 0
	}
	return end - 1
}

// Bounds returns the first and last blocks of the range.
func (r EthBlockRange) Bounds() (uint32, uint32) {
	return r.StartBlock, r.EndBlock()
}

func (r EthBlockRange) IsZero() bool {
	return r == EthBlockRange{}
}

// Contains reports whether block lies inside the range.
func (r EthBlockRange) Contains(block uint64) bool {
	return block >= uint64(r.StartBlock) && block <= uint64(r.EndBlock())
}

func (r EthBlockRange) String() string {
	return fmt.Sprintf("[%d..%d]", r.StartBlock, r.EndBlock())
}

// ComputeStartBlockFromFinalisedBlockNumber backs off 5 range lengths from the
// finalised head and aligns the result down to a multiple of rangeLength, so
// that workers observing slightly different heads agree on the same start.
func ComputeStartBlockFromFinalisedBlockNumber(ethereumBlock, rangeLength uint32) (uint32, error) {
	if rangeLength == 0 {
		return 0, ErrZeroRangeLength
	}
	calc := satSub(ethereumBlock, satMul(5, rangeLength))
	return calc - calc%rangeLength, nil
}

// ComputeFinalisedBlockRangeForLatestEthereumBlock is the first range to
// scan given the latest finalised block.
func ComputeFinalisedBlockRangeForLatestEthereumBlock(ethereumBlock, rangeLength uint32) (EthBlockRange, error) {
	start, err := ComputeStartBlockFromFinalisedBlockNumber(ethereumBlock, rangeLength)
	if err != nil {
		return EthBlockRange{}, err
	}
	return EthBlockRange{StartBlock: start, Length: rangeLength}, nil
}

func satAdd(a, b uint32) uint32 {
	if a > math.MaxUint32-b {
		return math.MaxUint32
	}
	return a + b
}

func satSub(a, b uint32) uint32 {
	if b > a {
		return 0
	}
	return a - b
}

func satMul(a, b uint32) uint32 {
	r := uint64(a) * uint64(b)
	if r > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(r)
}
