package bits

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWord struct {
	bits int
	v    uint
}

func bytesToFit(bits int) int {
	return (bits + 7) / 8
}

func roundTrip(t *testing.T, words []testWord) {
	arr := Array{make([]byte, 0, 16)}
	writer := NewWriter(&arr)
	total := 0
	for _, w := range words {
		writer.Write(w.bits, w.v)
		total += w.bits
	}
	require.Equal(t, bytesToFit(total), len(arr.Bytes))

	reader := NewReader(&arr)
	for i, w := range words {
		assert.Equal(t, w.v, reader.Read(w.bits), "word %d", i)
	}
	// padding of the last byte is always zero
	assert.Equal(t, uint(0), reader.Read(reader.NonReadBits()))
	assert.Equal(t, 0, reader.NonReadBytes())
}

func TestBitStream(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		roundTrip(t, nil)
	})
	t.Run("flags", func(t *testing.T) {
		// corroboration flags as written by the request serializer
		roundTrip(t, []testWord{{1, 1}, {1, 0}, {1, 1}, {1, 1}})
	})
	t.Run("length offsets", func(t *testing.T) {
		// U16, U32, U64 and U56 length offsets interleaved with flags
		roundTrip(t, []testWord{{1, 1}, {2, 3}, {3, 7}, {1, 0}, {3, 5}, {2, 0}})
	})
	t.Run("spans bytes", func(t *testing.T) {
		roundTrip(t, []testWord{{7, 0x55}, {5, 0x1f}, {8, 0xa5}, {9, 0x1ff}})
	})
	t.Run("random", func(t *testing.T) {
		r := rand.New(rand.NewSource(0))
		for n := 0; n < 50; n++ {
			words := make([]testWord, r.Intn(40))
			for i := range words {
				words[i].bits = 1 + r.Intn(16)
				words[i].v = uint(r.Intn(1 << words[i].bits))
			}
			roundTrip(t, words)
		}
	})
}

func TestReaderView(t *testing.T) {
	arr := Array{}
	w := NewWriter(&arr)
	w.Write(3, 5)
	w.Write(6, 33)

	r := NewReader(&arr)
	require.Equal(t, uint(5), r.View(3))
	require.Equal(t, uint(5), r.Read(3))
	require.Equal(t, uint(33), r.View(6))
	require.Equal(t, 13, r.NonReadBits())
	require.Equal(t, uint(33), r.Read(6))
}

func TestReadPastEnd(t *testing.T) {
	arr := Array{}
	NewWriter(&arr).Write(4, 9)
	r := NewReader(&arr)
	require.Panics(t, func() {
		r.Read(r.NonReadBits() + 1)
	})
}
