package eth

import (
	"errors"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrMsgHash = errors.New("cannot build confirmation hash")

const domainType = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"

// Bridge contract methods whose confirmations are EIP-712 typed.
const (
	MethodPublishRoot   = "publishRoot"
	MethodTriggerGrowth = "triggerGrowth"
	MethodAddAuthor     = "addAuthor"
	MethodRemoveAuthor  = "removeAuthor"
)

const (
	publishRootType   = "PublishRoot(bytes32 rootHash,uint256 expiry,uint32 t2TxId)"
	triggerGrowthType = "TriggerGrowth(uint256 rewards,uint256 avgStaked,uint32 period,uint256 expiry,uint32 t2TxId)"
	addAuthorType     = "AddAuthor(bytes t1PubKey,bytes32 t2PubKey,uint256 expiry,uint32 t2TxId)"
	removeAuthorType  = "RemoveAuthor(bytes32 t2PubKey,bytes t1PubKey,uint256 expiry,uint32 t2TxId)"
	lowerDataType     = "LowerData(address token,uint256 amount,address recipient,uint32 lowerId,bytes32 t2Sender,uint64 t2Timestamp)"
)

// Domain is the EIP-712 domain of a bridge instance.
type Domain struct {
	Name              string
	Version           string
	ChainID           uint64
	VerifyingContract common.Address
}

func (i EthBridgeInstance) Domain() Domain {
	return Domain{
		Name:              i.Name,
		Version:           i.Version,
		ChainID:           i.Network.ChainID(),
		VerifyingContract: i.BridgeContract,
	}
}

// Separator is the domain separator hash.
func (d Domain) Separator() common.Hash {
	return structHash(domainType,
		crypto.Keccak256([]byte(d.Name)),
		crypto.Keccak256([]byte(d.Version)),
		uintWord(new(big.Int).SetUint64(d.ChainID)),
		addressWord(d.VerifyingContract),
	)
}

// SigningHash is keccak256(0x1901 ++ domain separator ++ struct hash).
func (d Domain) SigningHash(structHash common.Hash) common.Hash {
	sep := d.Separator()
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, sep[:], structHash[:])
}

// structHash hashes the type string followed by the already encoded words.
func structHash(typ string, words ...[]byte) common.Hash {
	parts := make([][]byte, 0, len(words)+1)
	parts = append(parts, crypto.Keccak256([]byte(typ)))
	parts = append(parts, words...)
	return crypto.Keccak256Hash(parts...)
}

func uintWord(v *big.Int) []byte {
	return math.U256Bytes(new(big.Int).Set(v))
}

func u64Word(v uint64) []byte {
	return uintWord(new(big.Int).SetUint64(v))
}

func addressWord(a common.Address) []byte {
	return common.LeftPadBytes(a[:], 32)
}

// PublishRoot is the typed data of publishRoot.
type PublishRoot struct {
	RootHash common.Hash
	Expiry   *big.Int
	T2TxId   uint32
}

func (s PublishRoot) StructHash() common.Hash {
	return structHash(publishRootType, s.RootHash[:], uintWord(s.Expiry), u64Word(uint64(s.T2TxId)))
}

type TriggerGrowth struct {
	Rewards   *big.Int
	AvgStaked *big.Int
	Period    uint32
	Expiry    *big.Int
	T2TxId    uint32
}

func (s TriggerGrowth) StructHash() common.Hash {
	return structHash(triggerGrowthType,
		uintWord(s.Rewards), uintWord(s.AvgStaked), u64Word(uint64(s.Period)),
		uintWord(s.Expiry), u64Word(uint64(s.T2TxId)))
}

type AddAuthor struct {
	T1PubKey []byte
	T2PubKey common.Hash
	Expiry   *big.Int
	T2TxId   uint32
}

func (s AddAuthor) StructHash() common.Hash {
	return structHash(addAuthorType,
		crypto.Keccak256(s.T1PubKey), s.T2PubKey[:], uintWord(s.Expiry), u64Word(uint64(s.T2TxId)))
}

type RemoveAuthor struct {
	T2PubKey common.Hash
	T1PubKey []byte
	Expiry   *big.Int
	T2TxId   uint32
}

func (s RemoveAuthor) StructHash() common.Hash {
	return structHash(removeAuthorType,
		s.T2PubKey[:], crypto.Keccak256(s.T1PubKey), uintWord(s.Expiry), u64Word(uint64(s.T2TxId)))
}

// LowerData is the typed data a lower proof confirms.
type LowerData struct {
	Token       common.Address
	Amount      *big.Int
	Recipient   common.Address
	LowerId     uint32
	T2Sender    common.Hash
	T2Timestamp uint64
}

func (s LowerData) StructHash() common.Hash {
	return structHash(lowerDataType,
		addressWord(s.Token), uintWord(s.Amount), addressWord(s.Recipient),
		u64Word(uint64(s.LowerId)), s.T2Sender[:], u64Word(s.T2Timestamp))
}

// Typed is implemented by the EIP-712 structs above.
type Typed interface {
	StructHash() common.Hash
}

// EIP712Hash is the digest validators sign for typed data.
func EIP712Hash(data Typed, domain Domain) common.Hash {
	return domain.SigningHash(data.StructHash())
}

// CreateFunctionConfirmationHash returns the hash validators confirm for a
// call to function with the params already extended with expiry and tx id.
// Known bridge methods use their EIP-712 struct; any other method confirms the
// keccak256 of the ABI encoded params.
func CreateFunctionConfirmationHash(function string, params []Param, domain Domain) (common.Hash, error) {
	var typed Typed
	switch function {
	case MethodPublishRoot:
		if len(params) != 3 || len(params[0].Value) != 32 {
			return common.Hash{}, ErrMsgHash
		}
		txID, expiry, err := txIDAndExpiry(params)
		if err != nil {
			return common.Hash{}, err
		}
		typed = PublishRoot{RootHash: common.BytesToHash(params[0].Value), Expiry: expiry, T2TxId: txID}
	case MethodTriggerGrowth:
		if len(params) != 5 {
			return common.Hash{}, ErrMsgHash
		}
		rewards, err1 := ParseUint(params[0].Value, 128)
		avgStaked, err2 := ParseUint(params[1].Value, 128)
		period, err3 := strconv.ParseUint(string(params[2].Value), 10, 32)
		if err1 != nil || err2 != nil || err3 != nil {
			return common.Hash{}, ErrMsgHash
		}
		txID, expiry, err := txIDAndExpiry(params)
		if err != nil {
			return common.Hash{}, err
		}
		typed = TriggerGrowth{Rewards: rewards, AvgStaked: avgStaked, Period: uint32(period), Expiry: expiry, T2TxId: txID}
	case MethodAddAuthor:
		if len(params) != 4 || len(params[1].Value) != 32 {
			return common.Hash{}, ErrMsgHash
		}
		txID, expiry, err := txIDAndExpiry(params)
		if err != nil {
			return common.Hash{}, err
		}
		typed = AddAuthor{T1PubKey: params[0].Value, T2PubKey: common.BytesToHash(params[1].Value), Expiry: expiry, T2TxId: txID}
	case MethodRemoveAuthor:
		if len(params) != 4 || len(params[0].Value) != 32 {
			return common.Hash{}, ErrMsgHash
		}
		txID, expiry, err := txIDAndExpiry(params)
		if err != nil {
			return common.Hash{}, err
		}
		typed = RemoveAuthor{T2PubKey: common.BytesToHash(params[0].Value), T1PubKey: params[1].Value, Expiry: expiry, T2TxId: txID}
	default:
		return HashParams(params)
	}
	return EIP712Hash(typed, domain), nil
}

// txIDAndExpiry reads the two trailing params appended to every request.
func txIDAndExpiry(params []Param) (uint32, *big.Int, error) {
	if len(params) < 2 {
		return 0, nil, ErrMsgHash
	}
	tail := params[len(params)-2:]
	expiry, err := strconv.ParseUint(string(tail[0].Value), 10, 64)
	if err != nil {
		return 0, nil, ErrMsgHash
	}
	txID, err := strconv.ParseUint(string(tail[1].Value), 10, 32)
	if err != nil {
		return 0, nil, ErrMsgHash
	}
	return uint32(txID), new(big.Int).SetUint64(expiry), nil
}
