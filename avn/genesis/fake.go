package genesis

import (
	"crypto/ecdsa"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rony4d/go-avn-bridge/avn"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/eth"
)

// FakeBridgeContract is the bridge contract address of fake networks.
var FakeBridgeContract = common.HexToAddress("0x00000000000000000000000000000000000b71d6")

// FakeKey generates a deterministic fake private key for testing purposes.
//
// Given the same n it always returns the same key, so fake validators are
// reproducible across nodes and test runs. Key 0 is never used by
// FakeGenesis; validators are numbered from 1.
func FakeKey(n int) *ecdsa.PrivateKey {
	reader := rand.New(rand.NewSource(int64(n)))
	seed := make([]byte, 32)
	for {
		reader.Read(seed)
		// ToECDSA rejects zero and out-of-range scalars
		if key, err := crypto.ToECDSA(seed); err == nil {
			return key
		}
	}
}

// FakeSigners returns the signers of fake validators 1..n.
func FakeSigners(n int) []*author.Signer {
	signers := make([]*author.Signer, n)
	for i := range signers {
		signers[i] = author.NewSigner(FakeKey(i + 1))
	}
	return signers
}

// FakeInstance is the single bridge instance of fake networks.
func FakeInstance() eth.EthBridgeInstance {
	return eth.EthBridgeInstance{
		Network:        eth.Sepolia,
		BridgeContract: FakeBridgeContract,
		Name:           "AvnBridge",
		Version:        "1",
	}
}

// FakeGenesis builds a fake network with n validators and one bridge
// instance under id 0.
func FakeGenesis(n int) Genesis {
	signers := FakeSigners(n)
	validators := make([]author.Author, n)
	for i, s := range signers {
		validators[i] = s.Author()
	}
	return Genesis{
		Rules:      avn.FakeNetRules(),
		Validators: validators,
		Instances:  []Instance{{ID: 0, Instance: FakeInstance()}},
		NextTxID:   1,
	}
}
