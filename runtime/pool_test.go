package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-avn-bridge/inter/validity"
)

func valid(tag string, priority, longevity uint64) validity.ValidTransaction {
	v := validity.New("test", longevity, []byte(tag))
	v.Priority = priority
	return v
}

func TestPoolOrdering(t *testing.T) {
	require := require.New(t)
	p := NewPool(DefaultPoolConfig())

	_, err := p.Add(Extrinsic{Call: CallConsensusSubmit}, valid("a", 1, 10), 0)
	require.NoError(err)
	_, err = p.Add(Extrinsic{Call: CallConsensusClear}, valid("b", 5, 10), 0)
	require.NoError(err)
	_, err = p.Add(Extrinsic{Call: CallApproveVote}, valid("c", 1, 10), 0)
	require.NoError(err)

	var calls []Call
	for _, ext := range p.Pending() {
		calls = append(calls, ext.Call)
		require.True(p.Has(ext.Hash()))
	}
	require.Equal([]Call{CallConsensusClear, CallConsensusSubmit, CallApproveVote}, calls)
}

func TestPoolDedupAndRemove(t *testing.T) {
	require := require.New(t)
	p := NewPool(DefaultPoolConfig())

	hash, err := p.Add(Extrinsic{}, valid("a", 1, 10), 0)
	require.NoError(err)
	_, err = p.Add(Extrinsic{}, valid("a", 9, 10), 0)
	require.ErrorIs(err, ErrDuplicate)
	_, err = p.Add(Extrinsic{}, validity.ValidTransaction{}, 0)
	require.ErrorIs(err, ErrNoTags)

	p.Remove(hash)
	require.Zero(p.Len())
	_, err = p.Add(Extrinsic{}, valid("a", 1, 10), 0)
	require.NoError(err)
}

func TestPoolPrune(t *testing.T) {
	require := require.New(t)
	p := NewPool(DefaultPoolConfig())

	_, err := p.Add(Extrinsic{}, valid("short", 1, 2), 5)
	require.NoError(err)
	_, err = p.Add(Extrinsic{}, valid("long", 1, 10), 5)
	require.NoError(err)

	require.Zero(p.Prune(6))
	require.Equal(1, p.Prune(7))
	require.Equal(1, p.Len())
	require.Equal(1, p.Prune(15))
	require.Zero(p.Len())
}

func TestPoolCapacity(t *testing.T) {
	require := require.New(t)
	p := NewPool(PoolConfig{MaxExtrinsics: 2})

	low, err := p.Add(Extrinsic{}, valid("low", 1, 10), 0)
	require.NoError(err)
	_, err = p.Add(Extrinsic{}, valid("mid", 5, 10), 0)
	require.NoError(err)

	_, err = p.Add(Extrinsic{}, valid("other-low", 1, 10), 0)
	require.ErrorIs(err, ErrPoolFull)

	_, err = p.Add(Extrinsic{}, valid("high", 9, 10), 0)
	require.NoError(err)
	require.Equal(2, p.Len())
	require.False(p.Has(low))
}
