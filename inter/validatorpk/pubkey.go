// Package validatorpk holds a validator's public key in a typed, text-friendly
// form. Keys appear in genesis files and on the command line as 0x-prefixed hex
// with a leading type byte.
package validatorpk

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// FakePassword unlocks keys of fake (test) networks.
	FakePassword = "fakepassword"
)

var (
	ErrEmptyPubKey       = errors.New("empty pubkey")
	ErrUnsupportedPubKey = errors.New("unsupported pubkey type")
)

// PubKey is a validator public key.
type PubKey struct {
	Type uint8
	// Raw is the uncompressed 65-byte secp256k1 point for Secp256k1 keys.
	Raw []byte
}

// Types lists the supported key types.
var Types = struct {
	Secp256k1 uint8
}{
	Secp256k1: 0xc0,
}

// FromECDSA wraps an ECDSA public key.
func FromECDSA(pub *ecdsa.PublicKey) PubKey {
	return PubKey{
		Type: Types.Secp256k1,
		Raw:  crypto.FromECDSAPub(pub),
	}
}

func (pk PubKey) Empty() bool {
	return len(pk.Raw) == 0 && pk.Type == 0
}

func (pk PubKey) String() string {
	return "0x" + common.Bytes2Hex(pk.Bytes())
}

// Bytes returns [Type] ++ Raw.
func (pk PubKey) Bytes() []byte {
	return append([]byte{pk.Type}, pk.Raw...)
}

func (pk PubKey) Copy() PubKey {
	return PubKey{
		Type: pk.Type,
		Raw:  common.CopyBytes(pk.Raw),
	}
}

// ECDSA parses the raw key. Both compressed (33 bytes) and uncompressed
// (65 bytes) points are accepted.
func (pk PubKey) ECDSA() (*ecdsa.PublicKey, error) {
	if pk.Type != Types.Secp256k1 {
		return nil, ErrUnsupportedPubKey
	}
	if len(pk.Raw) == 33 {
		return crypto.DecompressPubkey(pk.Raw)
	}
	return crypto.UnmarshalPubkey(pk.Raw)
}

// Address is the Ethereum address controlled by the key. Ethereum
// confirmations are checked against it.
func (pk PubKey) Address() (common.Address, error) {
	pub, err := pk.ECDSA()
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func FromString(str string) (PubKey, error) {
	return FromBytes(common.FromHex(str))
}

func FromBytes(b []byte) (PubKey, error) {
	if len(b) == 0 {
		return PubKey{}, ErrEmptyPubKey
	}
	return PubKey{b[0], b[1:]}, nil
}

func (pk *PubKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *PubKey) UnmarshalText(input []byte) error {
	res, err := FromString(string(input))
	if err != nil {
		return err
	}
	*pk = res
	return nil
}
