package eth

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LowerParamsSize is the packed size of the v2 lower params.
const LowerParamsSize = 116

// LowerParams packs the data of a lower:
//
//	[0..20)    token
//	[20..36)   zero padding
//	[36..52)   amount, u128 big endian
//	[52..72)   recipient
//	[72..76)   lower id, u32 big endian
//	[76..108)  tier-2 sender
//	[108..116) tier-2 timestamp, u64 big endian
type LowerParams [LowerParamsSize]byte

// ConcatLowerData packs the lower fields. amount must fit 128 bits.
func ConcatLowerData(lowerID uint32, token common.Address, amount *big.Int, recipient common.Address, t2Sender common.Hash, t2Timestamp uint64) LowerParams {
	var p LowerParams
	copy(p[0:20], token[:])
	amount.FillBytes(p[36:52])
	copy(p[52:72], recipient[:])
	binary.BigEndian.PutUint32(p[72:76], lowerID)
	copy(p[76:108], t2Sender[:])
	binary.BigEndian.PutUint64(p[108:116], t2Timestamp)
	return p
}

// LowerData unpacks the params.
func (p LowerParams) LowerData() LowerData {
	return LowerData{
		Token:       common.BytesToAddress(p[0:20]),
		Amount:      new(big.Int).SetBytes(p[36:52]),
		Recipient:   common.BytesToAddress(p[52:72]),
		LowerId:     binary.BigEndian.Uint32(p[72:76]),
		T2Sender:    common.BytesToHash(p[76:108]),
		T2Timestamp: binary.BigEndian.Uint64(p[108:116]),
	}
}

// CreateLowerProofHash is the EIP-712 hash validators confirm for a lower.
func CreateLowerProofHash(p LowerParams, domain Domain) common.Hash {
	return EIP712Hash(p.LowerData(), domain)
}

var ErrLowerParams = errors.New("invalid lower params")

// Validate rejects params whose amount padding is not zero.
func (p LowerParams) Validate() error {
	for _, b := range p[20:36] {
		if b != 0 {
			return ErrLowerParams
		}
	}
	return nil
}
