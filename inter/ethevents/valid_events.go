// Package ethevents describes the Ethereum log events the bridge listens to
// and parses their topics and data into typed event payloads.
package ethevents

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ValidEvent is a kind of Ethereum event the bridge contracts emit.
type ValidEvent uint8

const (
	AddedValidator ValidEvent = iota
	Lifted
	NftMint
	NftTransferTo
	NftCancelListing
	NftEndBatchListing
	AvtGrowthLifted
	AvtLowerClaimed

	validEventsCount
)

// Keccak-256 of the event declarations. Keep the declarations next to the
// hashes: a hash alone can't be checked against a changed contract.
var signatures = [validEventsCount]common.Hash{
	// LogValidatorRegistered(bytes32,bytes32,bytes32,uint256)
	AddedValidator: common.HexToHash("ff083a6e395a67771f3c9108922bc274c27b38b48c210b0f6a8c5f4710c0494b"),
	// LogLifted(address,address,bytes32,uint256)
	Lifted: common.HexToHash("8964776336bc2fa8ecaaf70b6f8e8450807efb1ff78f8b87980707aa821f0ec0"),
	// AvnMintTo(uint256,uint64,bytes32,string)
	NftMint: common.HexToHash("242e8a2c5335295f6294a23543699a458e6d5ed7a5839f93cc420116e0a31f99"),
	// AvnTransferTo(uint256,bytes32,uint64)
	NftTransferTo: common.HexToHash("fff226ba128aca9718a568817388f3711cfeedd8c81cec4d02dcefc50f3c67bb"),
	// AvnCancelNftListing(uint256,uint64)
	NftCancelListing: common.HexToHash("eb0a71ca01b1505be834cafcd54b651d77eafd1ca915d21c0898575bcab53358"),
	// AvnEndBatchListing(uint256)
	NftEndBatchListing: common.HexToHash("20c46236a16e176bc83a795b3a64ad94e5db8bc92afc8cc6d3fd4a3864211f8f"),
	// LogGrowth(uint256,uint32)
	AvtGrowthLifted: common.HexToHash("3ad58a8dc1110baa37ad88a68db14181b4ef0c69192dfa7699a9588960eca7fd"),
	// LogLowerClaimed(uint32)
	AvtLowerClaimed: common.HexToHash("9853e4c075911a10a89a0f7a46bac6f8a246c4e9152480d16d86aa6a2391a4f1"),
}

var declarations = [validEventsCount]string{
	AddedValidator:     "LogValidatorRegistered(bytes32,bytes32,bytes32,uint256)",
	Lifted:             "LogLifted(address,address,bytes32,uint256)",
	NftMint:            "AvnMintTo(uint256,uint64,bytes32,string)",
	NftTransferTo:      "AvnTransferTo(uint256,bytes32,uint64)",
	NftCancelListing:   "AvnCancelNftListing(uint256,uint64)",
	NftEndBatchListing: "AvnEndBatchListing(uint256)",
	AvtGrowthLifted:    "LogGrowth(uint256,uint32)",
	AvtLowerClaimed:    "LogLowerClaimed(uint32)",
}

var names = [validEventsCount]string{
	AddedValidator:     "AddedValidator",
	Lifted:             "Lifted",
	NftMint:            "NftMint",
	NftTransferTo:      "NftTransferTo",
	NftCancelListing:   "NftCancelListing",
	NftEndBatchListing: "NftEndBatchListing",
	AvtGrowthLifted:    "AvtGrowthLifted",
	AvtLowerClaimed:    "AvtLowerClaimed",
}

// AllEvents lists every known kind in declaration order.
func AllEvents() []ValidEvent {
	all := make([]ValidEvent, 0, validEventsCount)
	for e := ValidEvent(0); e < validEventsCount; e++ {
		all = append(all, e)
	}
	return all
}

func (e ValidEvent) Valid() bool {
	return e < validEventsCount
}

// Signature is the event's topic0.
func (e ValidEvent) Signature() common.Hash {
	if !e.Valid() {
		return common.Hash{}
	}
	return signatures[e]
}

// Declaration is the Solidity event declaration hashed into the signature.
func (e ValidEvent) Declaration() string {
	if !e.Valid() {
		return ""
	}
	return declarations[e]
}

func (e ValidEvent) String() string {
	if !e.Valid() {
		return fmt.Sprintf("ValidEvent(%d)", uint8(e))
	}
	return names[e]
}

// IsNftEvent reports whether the event belongs to the NFT manager.
func (e ValidEvent) IsNftEvent() bool {
	switch e {
	case NftMint, NftTransferTo, NftCancelListing, NftEndBatchListing:
		return true
	}
	return false
}

// FromSignature resolves a topic0 to a known kind.
func FromSignature(sig common.Hash) (ValidEvent, bool) {
	for e, s := range signatures {
		if s == sig {
			return ValidEvent(e), true
		}
	}
	return 0, false
}

// computeSignature hashes a declaration; used by tests to keep the table honest.
func computeSignature(decl string) common.Hash {
	return crypto.Keccak256Hash([]byte(decl))
}
