// Package eth holds the Ethereum side primitives of the bridge: networks, the
// bridge contract instance, ABI encoding of request params, EIP-712 hashes and
// the packed lower params.
package eth

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/blake2b"

	"github.com/rony4d/go-avn-bridge/utils/cser"
)

// EthereumId is the id of an outbound request (tx id, lower id, read id).
type EthereumId = uint32

const instanceFieldLimit = 256

var ErrInstanceFieldTooLong = errors.New("bridge instance field too long")

// EthereumNetwork is identified by its chain id. Networks without a name are
// Custom.
type EthereumNetwork uint64

const (
	Ethereum EthereumNetwork = 1
	EWC      EthereumNetwork = 246
	Sepolia  EthereumNetwork = 11155111
	Holesky  EthereumNetwork = 17000
	Volta    EthereumNetwork = 73799
)

func (n EthereumNetwork) ChainID() uint64 {
	return uint64(n)
}

// IsCustom reports whether the chain id has no well-known name.
func (n EthereumNetwork) IsCustom() bool {
	switch n {
	case Ethereum, EWC, Sepolia, Holesky, Volta:
		return false
	}
	return true
}

func (n EthereumNetwork) String() string {
	switch n {
	case Ethereum:
		return "Ethereum"
	case EWC:
		return "EWC"
	case Sepolia:
		return "Sepolia"
	case Holesky:
		return "Holesky"
	case Volta:
		return "Volta"
	}
	return fmt.Sprintf("Custom(%d)", uint64(n))
}

// EthBridgeInstance identifies a deployed bridge contract. Its fields also form
// the EIP-712 domain confirmations are signed against; the salt is not part of
// the domain.
type EthBridgeInstance struct {
	Network        EthereumNetwork
	BridgeContract common.Address
	Name           string
	Version        string
	Salt           *common.Hash `toml:",omitempty"`
}

func (i EthBridgeInstance) IsValid() bool {
	return i.BridgeContract != (common.Address{}) && len(i.Name) > 0 && len(i.Version) > 0
}

// Hash is blake2b-256 over the canonical encoding. Signed proofs start with it
// so that a proof for one instance can't be replayed on another.
func (i EthBridgeInstance) Hash() common.Hash {
	raw, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		i.Write(w)
		return nil
	})
	if err != nil {
		return common.Hash{}
	}
	return common.Hash(blake2b.Sum256(raw))
}

func (i EthBridgeInstance) Write(w *cser.Writer) {
	w.U64(uint64(i.Network))
	w.Address(i.BridgeContract)
	w.SliceBytes([]byte(i.Name))
	w.SliceBytes([]byte(i.Version))
	w.Bool(i.Salt != nil)
	if i.Salt != nil {
		w.Hash(*i.Salt)
	}
}

func ReadEthBridgeInstance(r *cser.Reader) EthBridgeInstance {
	i := EthBridgeInstance{
		Network:        EthereumNetwork(r.U64()),
		BridgeContract: r.Address(),
		Name:           string(r.SliceBytes(instanceFieldLimit)),
		Version:        string(r.SliceBytes(instanceFieldLimit)),
	}
	if r.Bool() {
		salt := r.Hash()
		i.Salt = &salt
	}
	return i
}

// CheckLimits validates the bounded fields.
func (i EthBridgeInstance) CheckLimits() error {
	if len(i.Name) > instanceFieldLimit || len(i.Version) > instanceFieldLimit {
		return ErrInstanceFieldTooLong
	}
	return nil
}
