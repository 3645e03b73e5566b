// Package genesis defines the initial state of a bridge network. Every node of
// a network must start from an identical Genesis.
//
// Key concepts:
//   - Rules: network parameters (see package avn)
//   - Validators: the initial ordered validator set
//   - Instances: the Ethereum bridge contracts hosted by the node; the first
//     one is the default instance used by legacy API calls
//   - NextTxID: the first Ethereum transaction id handed out
//
// Usage:
//
//	gen := genesis.Genesis{Rules: avn.MainNetRules(), Validators: ..., Instances: ...}
//	if err := gen.Validate(); err != nil { ... }
//
// Fake networks are generated with FakeGenesis.
package genesis

import (
	"errors"
	"fmt"

	"github.com/rony4d/go-avn-bridge/avn"
	"github.com/rony4d/go-avn-bridge/inter/author"
	"github.com/rony4d/go-avn-bridge/inter/eth"
)

var (
	ErrNoInstances        = errors.New("genesis has no bridge instance")
	ErrDuplicateInstance  = errors.New("duplicate bridge instance id")
	ErrInvalidInstance    = errors.New("invalid bridge instance")
	ErrNoGenesisValidator = errors.New("genesis has no validators")
)

// Instance is a bridge contract hosted under a numeric id.
type Instance struct {
	ID       uint32
	Instance eth.EthBridgeInstance
}

// Genesis is the initial state of a bridge network.
type Genesis struct {
	Rules avn.Rules

	// Validators is the initial validator set, in rotation order.
	Validators []author.Author

	// Instances lists the hosted bridge contracts. Instances[0] is the
	// default instance.
	Instances []Instance

	// NextTxID is the first Ethereum transaction id handed out.
	NextTxID eth.EthereumId
}

// DefaultInstance returns the instance used when a call names none.
func (g Genesis) DefaultInstance() (Instance, error) {
	if len(g.Instances) == 0 {
		return Instance{}, ErrNoInstances
	}
	return g.Instances[0], nil
}

// Validate checks the genesis for inconsistencies that would prevent the
// bridge from starting.
func (g Genesis) Validate() error {
	if err := g.Rules.Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	if len(g.Validators) == 0 {
		return ErrNoGenesisValidator
	}
	if _, err := avn.NewValidatorSet(g.Validators); err != nil {
		return fmt.Errorf("validators: %w", err)
	}
	if len(g.Instances) == 0 {
		return ErrNoInstances
	}
	seen := make(map[uint32]bool, len(g.Instances))
	for _, in := range g.Instances {
		if seen[in.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateInstance, in.ID)
		}
		seen[in.ID] = true
		if !in.Instance.IsValid() {
			return fmt.Errorf("%w: %d", ErrInvalidInstance, in.ID)
		}
		if err := in.Instance.CheckLimits(); err != nil {
			return fmt.Errorf("instance %d: %w", in.ID, err)
		}
	}
	return nil
}

// ValidatorSet builds the validator set of the genesis.
func (g Genesis) ValidatorSet() (*avn.ValidatorSet, error) {
	return avn.NewValidatorSet(g.Validators)
}
