package ethevents

import (
	"math/big"

	"github.com/rony4d/go-avn-bridge/utils/cser"
)

const maxExternalRef = 128

// Write encodes the event: id, payload tag, payload fields.
func (e EthEvent) Write(w *cser.Writer) {
	w.Hash(e.EventID.Signature)
	w.Hash(e.EventID.TransactionHash)
	data := e.Data
	if data == nil {
		data = EmptyEvent{}
	}
	w.U8(data.dataTag())
	switch d := data.(type) {
	case *AddedValidatorData:
		w.FixedBytes(d.EthPublicKey[:])
		w.Hash(d.T2Address)
		w.BigInt(orZero(d.ValidatorAccountID))
	case *LiftedData:
		w.Address(d.TokenContract)
		w.Address(d.SenderAddress)
		w.Hash(d.ReceiverAddress)
		w.BigInt(orZero(d.Amount))
	case *NftMintData:
		w.BigInt(orZero(d.BatchID))
		w.Hash(d.T2OwnerPublicKey)
		w.U64(d.SaleIndex)
		w.SliceBytes(d.UniqueExternalRef)
	case *NftTransferToData:
		w.BigInt(orZero(d.NftID))
		w.Hash(d.T2TransferToPublicKey)
		w.U64(d.OpID)
	case *NftCancelListingData:
		w.BigInt(orZero(d.NftID))
		w.U64(d.OpID)
	case *NftEndBatchListingData:
		w.BigInt(orZero(d.BatchID))
	case *AvtGrowthLiftedData:
		w.BigInt(orZero(d.Amount))
		w.U32(d.Period)
	case *AvtLowerClaimedData:
		w.U32(d.LowerID)
	}
}

// ReadEthEvent decodes an event written by Write. Malformed input panics with
// a cser error, which cser.UnmarshalBinaryAdapter turns into an error.
func ReadEthEvent(r *cser.Reader) EthEvent {
	var e EthEvent
	e.EventID.Signature = r.Hash()
	e.EventID.TransactionHash = r.Hash()
	switch r.U8() {
	case tagEmpty:
		e.Data = EmptyEvent{}
	case tagAddedValidator:
		d := &AddedValidatorData{}
		r.FixedBytes(d.EthPublicKey[:])
		d.T2Address = r.Hash()
		d.ValidatorAccountID = r.BigInt()
		e.Data = d
	case tagLifted:
		d := &LiftedData{}
		d.TokenContract = r.Address()
		d.SenderAddress = r.Address()
		d.ReceiverAddress = r.Hash()
		d.Amount = r.BigInt()
		e.Data = d
	case tagNftMint:
		d := &NftMintData{}
		d.BatchID = r.BigInt()
		d.T2OwnerPublicKey = r.Hash()
		d.SaleIndex = r.U64()
		d.UniqueExternalRef = r.SliceBytes(maxExternalRef)
		e.Data = d
	case tagNftTransferTo:
		d := &NftTransferToData{}
		d.NftID = r.BigInt()
		d.T2TransferToPublicKey = r.Hash()
		d.OpID = r.U64()
		e.Data = d
	case tagNftCancelListing:
		d := &NftCancelListingData{}
		d.NftID = r.BigInt()
		d.OpID = r.U64()
		e.Data = d
	case tagNftEndBatchListing:
		e.Data = &NftEndBatchListingData{BatchID: r.BigInt()}
	case tagAvtGrowthLifted:
		d := &AvtGrowthLiftedData{}
		d.Amount = r.BigInt()
		d.Period = r.U32()
		e.Data = d
	case tagAvtLowerClaimed:
		e.Data = &AvtLowerClaimedData{LowerID: r.U32()}
	default:
		panic(cser.ErrMalformedEncoding)
	}
	return e
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
