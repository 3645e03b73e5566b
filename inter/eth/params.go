package eth

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Solidity type names accepted in request params.
const (
	Uint256 = "uint256"
	Uint128 = "uint128"
	Uint32  = "uint32"
	Bytes   = "bytes"
	Bytes32 = "bytes32"
	Address = "address"
)

var (
	ErrUnknownParamType = errors.New("unknown param type")
	ErrInvalidUint      = errors.New("invalid uint value")
	ErrInvalidBytes     = errors.New("invalid fixed bytes length")
	ErrInvalidAddress   = errors.New("invalid address length")
	ErrFunctionEncoding = errors.New("function encoding error")
)

// Param is a (type, value) pair. Uint values are decimal strings, byte values
// are raw bytes.
type Param struct {
	Type  []byte
	Value []byte
}

func NewParam(typ string, value []byte) Param {
	return Param{Type: []byte(typ), Value: value}
}

// UintParam formats v as a decimal uint param.
func UintParam(typ string, v uint64) Param {
	return Param{Type: []byte(typ), Value: []byte(strconv.FormatUint(v, 10))}
}

func (p Param) String() string {
	switch string(p.Type) {
	case Address, Bytes, Bytes32:
		return fmt.Sprintf("%s:0x%x", p.Type, p.Value)
	}
	return fmt.Sprintf("%s:%s", p.Type, p.Value)
}

func abiType(name []byte) (abi.Type, error) {
	switch string(name) {
	case Uint256, Uint128, Uint32, Bytes, Bytes32, Address:
		return abi.NewType(string(name), "", nil)
	}
	return abi.Type{}, fmt.Errorf("%w: %q", ErrUnknownParamType, name)
}

// abiValue converts a param value into the Go value the ABI packer expects for
// its type.
func abiValue(typ string, value []byte) (interface{}, error) {
	switch typ {
	case Uint32:
		v, err := strconv.ParseUint(string(value), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidUint, value)
		}
		return uint32(v), nil
	case Uint128, Uint256:
		bitsLimit := 256
		if typ == Uint128 {
			bitsLimit = 128
		}
		return ParseUint(value, bitsLimit)
	case Bytes:
		return common.CopyBytes(value), nil
	case Bytes32:
		if len(value) != 32 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidBytes, len(value))
		}
		var b [32]byte
		copy(b[:], value)
		return b, nil
	case Address:
		if len(value) != common.AddressLength {
			return nil, fmt.Errorf("%w: %d", ErrInvalidAddress, len(value))
		}
		return common.BytesToAddress(value), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownParamType, typ)
}

// ParseUint parses a decimal string that must fit in bitsLimit bits.
func ParseUint(value []byte, bitsLimit int) (*big.Int, error) {
	s := string(value)
	if len(s) == 0 || strings.TrimLeft(s, "0123456789") != "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUint, value)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.BitLen() > bitsLimit {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUint, value)
	}
	return v, nil
}

func pack(params []Param) (abi.Arguments, []interface{}, error) {
	args := make(abi.Arguments, 0, len(params))
	values := make([]interface{}, 0, len(params))
	for _, p := range params {
		t, err := abiType(p.Type)
		if err != nil {
			return nil, nil, err
		}
		v, err := abiValue(string(p.Type), p.Value)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, abi.Argument{Type: t})
		values = append(values, v)
	}
	return args, values, nil
}

// EncodeParams ABI-encodes the params as a tuple.
func EncodeParams(params []Param) ([]byte, error) {
	args, values, err := pack(params)
	if err != nil {
		return nil, err
	}
	out, err := args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFunctionEncoding, err)
	}
	return out, nil
}

// FunctionSelector is the first 4 bytes of keccak256("name(type,...)").
func FunctionSelector(name string, params []Param) []byte {
	types := make([]string, len(params))
	for i, p := range params {
		types[i] = string(p.Type)
	}
	sig := name + "(" + strings.Join(types, ",") + ")"
	return crypto.Keccak256([]byte(sig))[:4]
}

// EncodeFunction builds the calldata of a call to name with params.
func EncodeFunction(name string, params []Param) ([]byte, error) {
	encoded, err := EncodeParams(params)
	if err != nil {
		return nil, err
	}
	return append(FunctionSelector(name, params), encoded...), nil
}

// HashParams is keccak256 of the ABI encoding; the confirmation hash of
// methods without a typed EIP-712 struct.
func HashParams(params []Param) (common.Hash, error) {
	encoded, err := EncodeParams(params)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(encoded), nil
}
