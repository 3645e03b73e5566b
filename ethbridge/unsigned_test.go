package ethbridge

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-avn-bridge/avn/genesis"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/validity"
)

func TestValidateAddConfirmation(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	txID := env.sendPublishRoot()
	confirmation, err := env.signers[1].SignEthHash(env.active().Confirmation.MsgHash)
	require.NoError(err)

	sign := func(i int, id uint32, who author.AccountID) author.Signature {
		sig, err := env.signers[i].Sign(ConfirmationProof(env.instanceHash(), id, confirmation, who))
		require.NoError(err)
		return sig
	}

	valid, err := env.bridge.ValidateAddConfirmation(txID, confirmation, env.account(1), sign(1, txID, env.account(1)))
	require.NoError(err)
	require.Equal(UnsignedTagPrefix, valid.TagPrefix)
	require.True(valid.Propagate)
	require.Equal(env.chain.Net.Voting.UnsignedLongevity, valid.Longevity)

	other, err := env.bridge.ValidateAddConfirmation(txID, confirmation, env.account(2), sign(2, txID, env.account(2)))
	require.NoError(err)
	require.NotEqual(valid.Provides, other.Provides)

	_, err = env.bridge.ValidateAddConfirmation(txID, confirmation, env.account(1), sign(2, txID, env.account(1)))
	require.ErrorIs(err, validity.ErrBadProof)

	outsider := author.NewSigner(genesis.FakeKey(99))
	sig, err := outsider.Sign(ConfirmationProof(env.instanceHash(), txID, confirmation, outsider.Author().Account))
	require.NoError(err)
	_, err = env.bridge.ValidateAddConfirmation(txID, confirmation, outsider.Author().Account, sig)
	require.ErrorIs(err, validity.ErrBadProof)

	_, err = env.bridge.ValidateAddConfirmation(txID+1, confirmation, env.account(1), sign(1, txID+1, env.account(1)))
	require.ErrorIs(err, validity.ErrStale)
}

func TestValidateAddCorroboration(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	txID := env.sendPublishRoot()

	validate := func(attempt uint16) (validity.ValidTransaction, error) {
		sig, err := env.signers[2].Sign(CorroborationProof(env.instanceHash(), txID, true, true, env.account(2), attempt))
		require.NoError(err)
		return env.bridge.ValidateAddCorroboration(txID, true, true, env.account(2), attempt, sig)
	}
	first, err := validate(0)
	require.NoError(err)
	second, err := validate(1)
	require.NoError(err)
	require.NotEqual(first.Provides, second.Provides)

	sig, err := env.signers[2].Sign(CorroborationProof(env.instanceHash(), txID, true, true, env.account(2), 0))
	require.NoError(err)
	_, err = env.bridge.ValidateAddCorroboration(txID, false, true, env.account(2), 0, sig)
	require.ErrorIs(err, validity.ErrBadProof)
}

func TestValidateAddEthTxHashAndReadResult(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)
	txID := env.sendPublishRoot()
	hash := common.HexToHash("0x01")

	sig, err := env.signers[0].Sign(EthTxHashProof(env.instanceHash(), txID, hash, env.account(0)))
	require.NoError(err)
	_, err = env.bridge.ValidateAddEthTxHash(txID, hash, env.account(0), sig)
	require.NoError(err)

	// the read is queued behind the send
	readID, err := env.bridge.AddNewReadRequest(common.Address{1}, []byte("totalSupply"), nil, nil, nil)
	require.NoError(err)
	sig, err = env.signers[1].Sign(ReadResultProof(env.instanceHash(), readID, []byte("r"), env.account(1)))
	require.NoError(err)
	_, err = env.bridge.ValidateAddReadResult(readID, []byte("r"), env.account(1), sig)
	require.ErrorIs(err, validity.ErrStale)

	require.NoError(env.bridge.RemoveActiveRequest())
	_, err = env.bridge.ValidateAddReadResult(readID, []byte("r"), env.account(1), sig)
	require.NoError(err)
}

func TestValidateEventVotes(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t, 4)

	sig, err := env.signers[0].Sign(LatestBlockProof(env.instanceHash(), env.account(0), 100))
	require.NoError(err)
	_, err = env.bridge.ValidateSubmitLatestEthereumBlock(env.account(0), 100, sig)
	require.NoError(err)
	_, err = env.bridge.ValidateSubmitLatestEthereumBlock(env.account(0), 101, sig)
	require.ErrorIs(err, validity.ErrBadProof)

	rng := env.startRange()
	_, err = env.bridge.ValidateSubmitLatestEthereumBlock(env.account(0), 100, sig)
	require.ErrorIs(err, validity.ErrStale)

	validateVote := func(i int, index uint16) error {
		p := env.partition(rng, index, false, lifted(1, 100))
		signed, err := EventsProof(env.instanceHash(), env.account(i), p)
		require.NoError(err)
		sig, err := env.signers[i].Sign(signed)
		require.NoError(err)
		_, err = env.bridge.ValidateSubmitEthereumEvents(env.account(i), p, sig)
		return err
	}
	require.NoError(validateVote(3, 0))
	require.ErrorIs(validateVote(3, 1), validity.ErrStale)
}
