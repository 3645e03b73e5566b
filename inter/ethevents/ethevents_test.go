package ethevents

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func word(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestSignaturesMatchDeclarations(t *testing.T) {
	for _, e := range AllEvents() {
		assert.Equal(t, computeSignature(e.Declaration()), e.Signature(), e.String())
		kind, ok := FromSignature(e.Signature())
		assert.True(t, ok)
		assert.Equal(t, e, kind)
	}
	_, ok := FromSignature(common.Hash{1})
	require.False(t, ok)
	require.Equal(t, "ValidEvent(200)", ValidEvent(200).String())
	require.True(t, NftMint.IsNftEvent())
	require.False(t, Lifted.IsNftEvent())
}

func TestParseLifted(t *testing.T) {
	amount := make([]byte, 32)
	amount[31] = 100
	topics := [][]byte{word(0), word(1), word(2), word(3)}

	t.Run("ok", func(t *testing.T) {
		d, err := ParseLifted(amount, topics)
		require.NoError(t, err)
		require.Equal(t, common.BytesToAddress(word(1)[12:]), d.TokenContract)
		require.Equal(t, common.BytesToAddress(word(2)[12:]), d.SenderAddress)
		require.Equal(t, common.BytesToHash(word(3)), d.ReceiverAddress)
		require.Equal(t, big.NewInt(100), d.Amount)
		require.True(t, d.IsValid())
	})
	t.Run("missing data", func(t *testing.T) {
		_, err := ParseLifted(nil, topics)
		require.ErrorIs(t, err, ErrMissingData)
	})
	t.Run("bad data length", func(t *testing.T) {
		_, err := ParseLifted(amount[:31], topics)
		require.ErrorIs(t, err, ErrBadDataLength)
	})
	t.Run("overflow", func(t *testing.T) {
		_, err := ParseLifted(word(1), topics)
		require.ErrorIs(t, err, ErrDataOverflow)
	})
	t.Run("wrong topic count", func(t *testing.T) {
		_, err := ParseLifted(amount, topics[:3])
		require.ErrorIs(t, err, ErrWrongTopicCount)
	})
	t.Run("short topic", func(t *testing.T) {
		_, err := ParseLifted(amount, [][]byte{word(0), word(1), word(2)[:16], word(3)})
		require.ErrorIs(t, err, ErrBadTopicLength)
		var perr *ParseError
		require.ErrorAs(t, err, &perr)
		require.Equal(t, Lifted, perr.Event)
	})
	t.Run("zero token is invalid", func(t *testing.T) {
		d, err := ParseLifted(amount, [][]byte{word(0), make([]byte, 32), word(2), word(3)})
		require.NoError(t, err)
		require.False(t, d.IsValid())
	})
}

func TestParseAddedValidator(t *testing.T) {
	d, err := ParseAddedValidator(word(9), [][]byte{word(0), word(1), word(2), word(3)})
	require.NoError(t, err)
	require.Equal(t, word(1), d.EthPublicKey[:32])
	require.Equal(t, word(2), d.EthPublicKey[32:])
	require.True(t, d.IsValid())

	_, err = ParseAddedValidator(word(9), [][]byte{word(0)})
	require.ErrorIs(t, err, ErrWrongTopicCount)
}

func TestParseNftEvents(t *testing.T) {
	ref := []byte("b1dc0452-8b2f-78ec-7e80-167002d11678")
	data := make([]byte, 128)
	copy(data[64:], ref)
	saleIndex := make([]byte, 32)
	saleIndex[31] = 7

	mint, err := ParseNftMint(data, [][]byte{word(0), word(1), saleIndex, word(3)})
	require.NoError(t, err)
	require.Equal(t, uint64(7), mint.SaleIndex)
	require.Equal(t, ref, mint.UniqueExternalRef)
	require.True(t, mint.IsValid())

	_, err = ParseNftTransferTo([]byte{1}, [][]byte{word(0), word(1), word(2), saleIndex})
	require.ErrorIs(t, err, ErrShouldOnlyHaveTopics)

	_, err = ParseNftCancelListing(nil, [][]byte{word(0), word(1), word(2)})
	require.ErrorIs(t, err, ErrDataOverflow)

	cancel, err := ParseNftCancelListing(nil, [][]byte{word(0), word(1), saleIndex})
	require.NoError(t, err)
	require.Equal(t, uint64(7), cancel.OpID)

	end, err := ParseNftEndBatchListing(nil, [][]byte{word(0), word(5)})
	require.NoError(t, err)
	require.Equal(t, new(big.Int).SetBytes(word(5)), end.BatchID)
}

func TestParseAvtGrowthLifted(t *testing.T) {
	amount := make([]byte, 32)
	amount[31] = 1
	period := make([]byte, 32)
	period[31] = 3

	d, err := ParseAvtGrowthLifted(nil, [][]byte{word(0), amount, period})
	require.NoError(t, err)
	require.Equal(t, uint32(3), d.Period)
	require.True(t, d.IsValid())

	_, err = ParseAvtGrowthLifted(nil, [][]byte{word(0), word(1), period})
	require.ErrorIs(t, err, ErrDataOverflow)

	d, err = ParseAvtGrowthLifted(nil, [][]byte{word(0), make([]byte, 32), period})
	require.NoError(t, err)
	require.False(t, d.IsValid())
}

func TestParseAvtLowerClaimed(t *testing.T) {
	d, err := ParseAvtLowerClaimed(nil, [][]byte{word(1), word(1)})
	require.NoError(t, err)
	require.Equal(t, uint32(0x01010101), d.LowerID)

	_, err = ParseAvtLowerClaimed([]byte{2}, [][]byte{word(1), word(1)})
	require.ErrorIs(t, err, ErrMissingData)
	_, err = ParseAvtLowerClaimed(nil, nil)
	require.ErrorIs(t, err, ErrWrongTopicCount)
	_, err = ParseAvtLowerClaimed(nil, [][]byte{word(1), word(1), word(1)})
	require.ErrorIs(t, err, ErrWrongTopicCount)
	_, err = ParseAvtLowerClaimed(nil, [][]byte{word(1), word(1)[:16]})
	require.ErrorIs(t, err, ErrBadTopicLength)
	_, err = ParseAvtLowerClaimed(nil, [][]byte{word(1), bytes.Repeat([]byte{1}, 64)})
	require.ErrorIs(t, err, ErrBadTopicLength)
}

func TestParseLog(t *testing.T) {
	require := require.New(t)
	lowerID := common.BigToHash(big.NewInt(42))
	txHash := common.Hash{0xaa}

	ev, err := ParseLog(types.Log{
		Topics: []common.Hash{AvtLowerClaimed.Signature(), lowerID},
		TxHash: txHash,
	})
	require.NoError(err)
	require.Equal(EthEventId{Signature: AvtLowerClaimed.Signature(), TransactionHash: txHash}, ev.EventID)
	require.Equal(&AvtLowerClaimedData{LowerID: 42}, ev.Data)
	require.True(ev.IsValid())

	_, err = ParseLog(types.Log{})
	require.ErrorIs(err, ErrNoTopics)
	_, err = ParseLog(types.Log{Topics: []common.Hash{{1}}})
	require.ErrorIs(err, ErrUnknownEvent)
}

func TestEthEventSerialization(t *testing.T) {
	require := require.New(t)
	events := []EthEvent{
		{EventID: EthEventId{Signature: Lifted.Signature(), TransactionHash: common.Hash{1}}, Data: &LiftedData{
			TokenContract:   common.Address{1},
			SenderAddress:   common.Address{2},
			ReceiverAddress: common.Hash{3},
			Amount:          big.NewInt(1000),
		}},
		{EventID: EthEventId{Signature: NftMint.Signature(), TransactionHash: common.Hash{2}}, Data: &NftMintData{
			BatchID:           big.NewInt(5),
			T2OwnerPublicKey:  common.Hash{4},
			SaleIndex:         9,
			UniqueExternalRef: []byte("ref"),
		}},
		{EventID: EthEventId{TransactionHash: common.Hash{3}}, Data: EmptyEvent{}},
	}
	for _, ev := range events {
		raw, err := ev.MarshalCSER()
		require.NoError(err)
		var decoded EthEvent
		require.NoError(decoded.UnmarshalCSER(raw))
		require.Equal(ev, decoded)
		require.True(ev.Equal(decoded))
	}
	require.False(events[0].Equal(events[1]))

	raw, err := events[2].MarshalCSER()
	require.NoError(err)
	raw[64] = 0xee
	var decoded EthEvent
	require.Error(decoded.UnmarshalCSER(raw))
}
