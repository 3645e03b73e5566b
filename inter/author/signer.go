package author

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rony4d/go-avn-bridge/inter/validatorpk"
)

// Signer holds a validator's private key. Only off-chain workers and tests
// hold one.
type Signer struct {
	key    *ecdsa.PrivateKey
	author Author
}

func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key: key,
		author: Author{
			Account: AccountIDFromPubKey(&key.PublicKey),
			Key:     validatorpk.FromECDSA(&key.PublicKey),
		},
	}
}

// SignerFromHex parses a hex-encoded private key.
func SignerFromHex(hexkey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(hexkey)
	if err != nil {
		return nil, err
	}
	return NewSigner(key), nil
}

func (s *Signer) Author() Author { return s.author }

// Sign signs keccak256(payload).
func (s *Signer) Sign(payload []byte) (Signature, error) {
	return s.sign(crypto.Keccak256(payload))
}

// SignEthHash produces an Ethereum confirmation over msgHash, with a 27/28
// recovery id as the bridge contract expects.
func (s *Signer) SignEthHash(msgHash common.Hash) (Signature, error) {
	sig, err := s.sign(accounts.TextHash(msgHash[:]))
	if err != nil {
		return sig, err
	}
	sig[64] += 27
	return sig, nil
}

func (s *Signer) sign(digest []byte) (sig Signature, err error) {
	raw, err := crypto.Sign(digest, s.key)
	if err != nil {
		return sig, err
	}
	copy(sig[:], raw)
	return sig, nil
}
