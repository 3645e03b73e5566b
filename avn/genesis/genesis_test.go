package genesis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-avn-bridge/avn"
)

func TestFakeKeyIsDeterministic(t *testing.T) {
	require.Equal(t, FakeKey(1).D, FakeKey(1).D)
	require.NotEqual(t, FakeKey(1).D, FakeKey(2).D)
}

func TestFakeGenesis(t *testing.T) {
	require := require.New(t)

	gen := FakeGenesis(4)
	require.NoError(gen.Validate())
	require.Equal(avn.FakeNetName, gen.Rules.Name)

	set, err := gen.ValidatorSet()
	require.NoError(err)
	require.Equal(4, set.Len())
	for _, s := range FakeSigners(4) {
		require.True(set.IsAuthor(s.Author()))
	}

	def, err := gen.DefaultInstance()
	require.NoError(err)
	require.Equal(FakeInstance(), def.Instance)
}

func TestGenesisValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Genesis)
		want   error
	}{
		{"no validators", func(g *Genesis) { g.Validators = nil }, ErrNoGenesisValidator},
		{"duplicate validator", func(g *Genesis) { g.Validators[1] = g.Validators[0] }, avn.ErrDuplicateValidator},
		{"no instances", func(g *Genesis) { g.Instances = nil }, ErrNoInstances},
		{"duplicate instance", func(g *Genesis) { g.Instances = append(g.Instances, g.Instances[0]) }, ErrDuplicateInstance},
		{"invalid instance", func(g *Genesis) { g.Instances[0].Instance.Name = "" }, ErrInvalidInstance},
		{"rules", func(g *Genesis) { g.Rules.Bridge.EthBlockRangeSize = 0 }, avn.ErrZeroRangeSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := FakeGenesis(3)
			tt.modify(&gen)
			require.ErrorIs(t, gen.Validate(), tt.want)
		})
	}

	_, err := Genesis{}.DefaultInstance()
	require.ErrorIs(t, err, ErrNoInstances)
}
