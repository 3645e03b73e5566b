// Package author identifies the validators taking part in bridge consensus.
//
// A validator is known on-chain by its AccountID and signs with one secp256k1
// key. The same key signs runtime proofs (votes, corroborations, submissions)
// and Ethereum confirmations, which the bridge contract checks against the
// key's Ethereum address.
package author

import (
	"bytes"
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rony4d/go-avn-bridge/inter/validatorpk"
)

// SignatureLength is the size of a recoverable secp256k1 signature (r, s, v).
const SignatureLength = crypto.SignatureLength

var (
	ErrBadSignatureLength = errors.New("bad signature length")
	ErrBadRecoveryID      = errors.New("bad signature recovery id")
)

// Signed payloads may arrive wrapped by wallet tooling.
var (
	bytesPrefix = []byte("<Bytes>")
	bytesSuffix = []byte("</Bytes>")
)

// AccountID is the runtime account of a validator.
type AccountID [32]byte

// AccountIDFromPubKey derives the account id: keccak256 of the uncompressed
// point without its 0x04 prefix.
func AccountIDFromPubKey(pub *ecdsa.PublicKey) AccountID {
	return AccountID(crypto.Keccak256Hash(crypto.FromECDSAPub(pub)[1:]))
}

func (a AccountID) Bytes() []byte { return a[:] }

func (a AccountID) IsZero() bool { return a == AccountID{} }

func (a AccountID) String() string { return hexutil.Encode(a[:]) }

// Short is used in logs.
func (a AccountID) Short() string { return hexutil.Encode(a[:4]) }

func (a AccountID) MarshalText() ([]byte, error) {
	return hexutil.Bytes(a[:]).MarshalText()
}

func (a *AccountID) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("AccountID", input, a[:])
}

// Less orders account ids bytewise.
func (a AccountID) Less(b AccountID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// Signature is a recoverable secp256k1 signature.
type Signature [SignatureLength]byte

func (s Signature) Bytes() []byte { return s[:] }

func (s Signature) String() string { return hexutil.Encode(s[:]) }

// SignatureFromBytes copies b, which must be exactly 65 bytes long.
func SignatureFromBytes(b []byte) (s Signature, err error) {
	if len(b) != SignatureLength {
		return s, ErrBadSignatureLength
	}
	copy(s[:], b)
	return s, nil
}

// Author is a validator identity.
type Author struct {
	Account AccountID
	Key     validatorpk.PubKey
}

// EthAddress returns the Ethereum address of the author's key.
func (a Author) EthAddress() (common.Address, error) {
	return a.Key.Address()
}

// Verify checks that sig was produced by the author over payload. The payload
// is accepted both bare and wrapped in <Bytes>...</Bytes>.
func Verify(a Author, payload []byte, sig Signature) bool {
	addr, err := a.EthAddress()
	if err != nil {
		return false
	}
	if recovered, err := recoverAddress(crypto.Keccak256(payload), sig); err == nil && recovered == addr {
		return true
	}
	wrapped := make([]byte, 0, len(bytesPrefix)+len(payload)+len(bytesSuffix))
	wrapped = append(wrapped, bytesPrefix...)
	wrapped = append(wrapped, payload...)
	wrapped = append(wrapped, bytesSuffix...)
	recovered, err := recoverAddress(crypto.Keccak256(wrapped), sig)
	return err == nil && recovered == addr
}

// RecoverEthSigner returns the address that signed msgHash as an Ethereum
// personal message ("\x19Ethereum Signed Message:\n32" prefix). Both 0/1 and
// 27/28 recovery ids are accepted.
func RecoverEthSigner(msgHash common.Hash, sig Signature) (common.Address, error) {
	return recoverAddress(accounts.TextHash(msgHash[:]), sig)
}

// VerifyEthConfirmation checks an Ethereum confirmation against the author.
func VerifyEthConfirmation(a Author, msgHash common.Hash, sig Signature) bool {
	addr, err := a.EthAddress()
	if err != nil {
		return false
	}
	recovered, err := RecoverEthSigner(msgHash, sig)
	return err == nil && recovered == addr
}

func recoverAddress(digest []byte, sig Signature) (common.Address, error) {
	norm := sig
	switch norm[64] {
	case 0, 1:
	case 27, 28:
		norm[64] -= 27
	default:
		return common.Address{}, ErrBadRecoveryID
	}
	pub, err := crypto.SigToPub(digest, norm[:])
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
