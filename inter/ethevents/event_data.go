package ethevents

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	wordLength     = 32
	halfWord       = 16
	u64Offset      = 24
	u32Offset      = 28
	addressPadding = 12
	// UUID string (32 hex chars and 4 dashes) inside an ABI string word pair
	externalRefLength = wordLength + 4
)

// EventData is the parsed payload of an event. The set of implementations is
// closed: one per ValidEvent plus EmptyEvent.
type EventData interface {
	// IsValid applies the business rules a parsed payload must satisfy.
	IsValid() bool
	dataTag() uint8
}

// Tags fix the position of each payload kind in the canonical encoding.
const (
	tagAddedValidator uint8 = iota
	tagLifted
	tagEmpty
	tagNftMint
	tagNftTransferTo
	tagNftCancelListing
	tagNftEndBatchListing
	tagAvtGrowthLifted
	tagAvtLowerClaimed
)

type EmptyEvent struct{}

func (EmptyEvent) IsValid() bool  { return true }
func (EmptyEvent) dataTag() uint8 { return tagEmpty }

// AddedValidatorData is emitted by LogValidatorRegistered.
type AddedValidatorData struct {
	EthPublicKey       [64]byte
	T2Address          common.Hash
	ValidatorAccountID *big.Int
}

func (d *AddedValidatorData) IsValid() bool {
	return d.EthPublicKey != [64]byte{} && d.T2Address != (common.Hash{}) &&
		d.ValidatorAccountID != nil && d.ValidatorAccountID.Sign() != 0
}

func (*AddedValidatorData) dataTag() uint8 { return tagAddedValidator }

// ParseAddedValidator expects:
//
//	data      - deposit (one word)
//	topics[1] - first half of the 64-byte Ethereum public key
//	topics[2] - second half of the public key
//	topics[3] - tier-2 address
func ParseAddedValidator(data []byte, topics [][]byte) (*AddedValidatorData, error) {
	if data == nil {
		return nil, parseErr(AddedValidator, ErrMissingData)
	}
	if len(data) != wordLength {
		return nil, parseErr(AddedValidator, ErrBadDataLength)
	}
	if len(topics) != 4 {
		return nil, parseErr(AddedValidator, ErrWrongTopicCount)
	}
	if !wordSized(topics[1:]...) {
		return nil, parseErr(AddedValidator, ErrBadTopicLength)
	}
	d := &AddedValidatorData{
		T2Address:          common.BytesToHash(topics[3]),
		ValidatorAccountID: new(big.Int).SetBytes(data),
	}
	copy(d.EthPublicKey[:wordLength], topics[1])
	copy(d.EthPublicKey[wordLength:], topics[2])
	return d, nil
}

// LiftedData is emitted by LogLifted.
type LiftedData struct {
	TokenContract   common.Address
	SenderAddress   common.Address
	ReceiverAddress common.Hash
	Amount          *big.Int
}

func (d *LiftedData) IsValid() bool {
	return d.TokenContract != (common.Address{}) && d.SenderAddress != (common.Address{}) &&
		d.ReceiverAddress != (common.Hash{})
}

func (*LiftedData) dataTag() uint8 { return tagLifted }

// ParseLifted expects:
//
//	data      - amount, which must fit 128 bits
//	topics[1] - token contract (left padded address)
//	topics[2] - lifter (left padded address)
//	topics[3] - tier-2 recipient key
func ParseLifted(data []byte, topics [][]byte) (*LiftedData, error) {
	if data == nil {
		return nil, parseErr(Lifted, ErrMissingData)
	}
	if len(data) != wordLength {
		return nil, parseErr(Lifted, ErrBadDataLength)
	}
	if len(topics) != 4 {
		return nil, parseErr(Lifted, ErrWrongTopicCount)
	}
	if !wordSized(topics[1:]...) {
		return nil, parseErr(Lifted, ErrBadTopicLength)
	}
	if !zero(data[:halfWord]) {
		return nil, parseErr(Lifted, ErrDataOverflow)
	}
	return &LiftedData{
		TokenContract:   common.BytesToAddress(topics[1][addressPadding:]),
		SenderAddress:   common.BytesToAddress(topics[2][addressPadding:]),
		ReceiverAddress: common.BytesToHash(topics[3]),
		Amount:          new(big.Int).SetBytes(data[halfWord:]),
	}, nil
}

// NftMintData is emitted by AvnMintTo.
type NftMintData struct {
	BatchID           *big.Int
	T2OwnerPublicKey  common.Hash
	SaleIndex         uint64
	UniqueExternalRef []byte
}

func (d *NftMintData) IsValid() bool {
	return d.BatchID != nil && d.BatchID.Sign() != 0 && d.T2OwnerPublicKey != (common.Hash{}) &&
		len(d.UniqueExternalRef) > 0
}

func (*NftMintData) dataTag() uint8 { return tagNftMint }

// ParseNftMint expects:
//
//	data      - ABI string: offset word, length word, then the UUID ref
//	topics[1] - batch id
//	topics[2] - sale index (u64 in the low bytes)
//	topics[3] - tier-2 owner key
func ParseNftMint(data []byte, topics [][]byte) (*NftMintData, error) {
	if data == nil {
		return nil, parseErr(NftMint, ErrMissingData)
	}
	if len(data) != 4*wordLength {
		return nil, parseErr(NftMint, ErrBadDataLength)
	}
	if len(topics) != 4 {
		return nil, parseErr(NftMint, ErrWrongTopicCount)
	}
	if !wordSized(topics[1:]...) {
		return nil, parseErr(NftMint, ErrBadTopicLength)
	}
	ref := common.CopyBytes(data[2*wordLength : 2*wordLength+externalRefLength])
	return &NftMintData{
		BatchID:           new(big.Int).SetBytes(topics[1]),
		SaleIndex:         binary.BigEndian.Uint64(topics[2][u64Offset:]),
		T2OwnerPublicKey:  common.BytesToHash(topics[3]),
		UniqueExternalRef: ref,
	}, nil
}

// NftTransferToData is emitted by AvnTransferTo.
type NftTransferToData struct {
	NftID                 *big.Int
	T2TransferToPublicKey common.Hash
	OpID                  uint64
}

func (d *NftTransferToData) IsValid() bool {
	return d.T2TransferToPublicKey != (common.Hash{})
}

func (*NftTransferToData) dataTag() uint8 { return tagNftTransferTo }

func ParseNftTransferTo(data []byte, topics [][]byte) (*NftTransferToData, error) {
	if data != nil {
		return nil, parseErr(NftTransferTo, ErrShouldOnlyHaveTopics)
	}
	if len(topics) != 4 {
		return nil, parseErr(NftTransferTo, ErrWrongTopicCount)
	}
	if !wordSized(topics[1:]...) {
		return nil, parseErr(NftTransferTo, ErrBadTopicLength)
	}
	return &NftTransferToData{
		NftID:                 new(big.Int).SetBytes(topics[1]),
		T2TransferToPublicKey: common.BytesToHash(topics[2]),
		OpID:                  binary.BigEndian.Uint64(topics[3][u64Offset:]),
	}, nil
}

// NftCancelListingData is emitted by AvnCancelNftListing.
type NftCancelListingData struct {
	NftID *big.Int
	OpID  uint64
}

func (*NftCancelListingData) IsValid() bool  { return true }
func (*NftCancelListingData) dataTag() uint8 { return tagNftCancelListing }

func ParseNftCancelListing(data []byte, topics [][]byte) (*NftCancelListingData, error) {
	if data != nil {
		return nil, parseErr(NftCancelListing, ErrShouldOnlyHaveTopics)
	}
	if len(topics) != 3 {
		return nil, parseErr(NftCancelListing, ErrWrongTopicCount)
	}
	if !wordSized(topics[1:]...) {
		return nil, parseErr(NftCancelListing, ErrBadTopicLength)
	}
	if !zero(topics[2][:u64Offset]) {
		return nil, parseErr(NftCancelListing, ErrDataOverflow)
	}
	return &NftCancelListingData{
		NftID: new(big.Int).SetBytes(topics[1]),
		OpID:  binary.BigEndian.Uint64(topics[2][u64Offset:]),
	}, nil
}

// NftEndBatchListingData is emitted by AvnEndBatchListing.
type NftEndBatchListingData struct {
	BatchID *big.Int
}

func (*NftEndBatchListingData) IsValid() bool  { return true }
func (*NftEndBatchListingData) dataTag() uint8 { return tagNftEndBatchListing }

func ParseNftEndBatchListing(data []byte, topics [][]byte) (*NftEndBatchListingData, error) {
	if data != nil {
		return nil, parseErr(NftEndBatchListing, ErrShouldOnlyHaveTopics)
	}
	if len(topics) != 2 {
		return nil, parseErr(NftEndBatchListing, ErrWrongTopicCount)
	}
	if !wordSized(topics[1]) {
		return nil, parseErr(NftEndBatchListing, ErrBadTopicLength)
	}
	return &NftEndBatchListingData{BatchID: new(big.Int).SetBytes(topics[1])}, nil
}

// AvtGrowthLiftedData is emitted by LogGrowth.
type AvtGrowthLiftedData struct {
	Amount *big.Int
	Period uint32
}

func (d *AvtGrowthLiftedData) IsValid() bool {
	return d.Amount != nil && d.Amount.Sign() > 0
}

func (*AvtGrowthLiftedData) dataTag() uint8 { return tagAvtGrowthLifted }

func ParseAvtGrowthLifted(data []byte, topics [][]byte) (*AvtGrowthLiftedData, error) {
	if data != nil {
		return nil, parseErr(AvtGrowthLifted, ErrShouldOnlyHaveTopics)
	}
	if len(topics) != 3 {
		return nil, parseErr(AvtGrowthLifted, ErrWrongTopicCount)
	}
	if !wordSized(topics[1:]...) {
		return nil, parseErr(AvtGrowthLifted, ErrBadTopicLength)
	}
	if !zero(topics[1][:halfWord]) {
		return nil, parseErr(AvtGrowthLifted, ErrDataOverflow)
	}
	return &AvtGrowthLiftedData{
		Amount: new(big.Int).SetBytes(topics[1][halfWord:]),
		Period: binary.BigEndian.Uint32(topics[2][u32Offset:]),
	}, nil
}

// AvtLowerClaimedData is emitted by LogLowerClaimed.
type AvtLowerClaimedData struct {
	LowerID uint32
}

func (*AvtLowerClaimedData) IsValid() bool  { return true }
func (*AvtLowerClaimedData) dataTag() uint8 { return tagAvtLowerClaimed }

func ParseAvtLowerClaimed(data []byte, topics [][]byte) (*AvtLowerClaimedData, error) {
	if data != nil {
		return nil, parseErr(AvtLowerClaimed, ErrMissingData)
	}
	if len(topics) != 2 {
		return nil, parseErr(AvtLowerClaimed, ErrWrongTopicCount)
	}
	if !wordSized(topics[1]) {
		return nil, parseErr(AvtLowerClaimed, ErrBadTopicLength)
	}
	return &AvtLowerClaimedData{LowerID: binary.BigEndian.Uint32(topics[1][u32Offset:])}, nil
}

// ParseEventData dispatches to the parser of the given kind. A nil data slice
// means the log carried no data.
func ParseEventData(kind ValidEvent, data []byte, topics [][]byte) (EventData, error) {
	switch kind {
	case AddedValidator:
		return checked[*AddedValidatorData](ParseAddedValidator(data, topics))
	case Lifted:
		return checked[*LiftedData](ParseLifted(data, topics))
	case NftMint:
		return checked[*NftMintData](ParseNftMint(data, topics))
	case NftTransferTo:
		return checked[*NftTransferToData](ParseNftTransferTo(data, topics))
	case NftCancelListing:
		return checked[*NftCancelListingData](ParseNftCancelListing(data, topics))
	case NftEndBatchListing:
		return checked[*NftEndBatchListingData](ParseNftEndBatchListing(data, topics))
	case AvtGrowthLifted:
		return checked[*AvtGrowthLiftedData](ParseAvtGrowthLifted(data, topics))
	case AvtLowerClaimed:
		return checked[*AvtLowerClaimedData](ParseAvtLowerClaimed(data, topics))
	}
	return nil, ErrUnknownEvent
}

func checked[T EventData](d T, err error) (EventData, error) {
	if err != nil {
		return nil, err
	}
	return d, nil
}

func wordSized(topics ...[]byte) bool {
	for _, t := range topics {
		if len(t) != wordLength {
			return false
		}
	}
	return true
}

func zero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}
