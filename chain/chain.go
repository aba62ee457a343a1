// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain describes what the manager needs from a deployed chain and
// from the facility that deploys chains.
package chain

import (
	"context"
	"errors"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/stm/cut"
)

var (
	ErrNotManager        = errors.New("caller is not the chain manager")
	ErrNotDeployed       = errors.New("no chain deployed at address")
	ErrAlreadyDeployed   = errors.New("chain already deployed at address")
	ErrAlreadyFrozen     = errors.New("chain is already frozen")
	ErrNotFrozen         = errors.New("chain is not frozen")
	ErrInvalidFeeParams  = errors.New("invalid fee params")
	ErrInvalidRevert     = errors.New("cannot revert past the last executed batch")
	ErrZeroValidator     = errors.New("validator is zero")
	ErrUpgradeRejected   = errors.New("upgrade rejected by chain")
	ErrInvalidInitRecord = errors.New("invalid initializer record")
)

// PubdataPricingMode selects where a chain publishes its data.
type PubdataPricingMode uint8

const (
	Rollup PubdataPricingMode = iota
	Validium
)

// FeeParams are the batch-level fee parameters of a chain.
type FeeParams struct {
	PubdataPricingMode   PubdataPricingMode `json:"pubdataPricingMode"`
	BatchOverheadL1Gas   uint32             `json:"batchOverheadL1Gas"`
	MaxPubdataPerBatch   uint32             `json:"maxPubdataPerBatch"`
	MaxL2GasPerBatch     uint32             `json:"maxL2GasPerBatch"`
	PriorityTxMaxPubdata uint32             `json:"priorityTxMaxPubdata"`
	MinimalL2GasPrice    uint64             `json:"minimalL2GasPrice"`
}

// Verify checks the internal consistency of p.
func (p FeeParams) Verify() error {
	if p.MaxPubdataPerBatch < p.PriorityTxMaxPubdata {
		return ErrInvalidFeeParams
	}
	return nil
}

// Chain is a deployed chain as seen by its manager. Every mutating method is
// restricted to the manager, passed as caller.
type Chain interface {
	Address() common.Address

	GetAdmin(ctx context.Context) (common.Address, error)

	FreezeDiamond(ctx context.Context, caller common.Address) error
	UnfreezeDiamond(ctx context.Context, caller common.Address) error
	RevertBatches(ctx context.Context, caller common.Address, newLastBatch uint64) error
	ExecuteUpgrade(ctx context.Context, caller common.Address, c *cut.Cut) error
	ChangeFeeParams(ctx context.Context, caller common.Address, params FeeParams) error
	SetPriorityTxMaxGasLimit(ctx context.Context, caller common.Address, limit uint64) error
	SetValidator(ctx context.Context, caller common.Address, validator common.Address, active bool) error
	SetPorterAvailability(ctx context.Context, caller common.Address, available bool) error
}

// DeployRequest is everything that determines where and how a chain is
// deployed.
type DeployRequest struct {
	NetworkID uint64
	Salt      common.Hash
	Cut       *cut.Cut
}

// Deployer deploys chains at deterministic addresses.
type Deployer interface {
	// Address returns the address Deploy places req at, without deploying.
	Address(req *DeployRequest) common.Address
	// Deploy deploys a chain and runs the cut's initializer.
	Deploy(ctx context.Context, req *DeployRequest) (Chain, error)
	// Discard removes a chain deployed by a call that later failed.
	Discard(ctx context.Context, addr common.Address) error
	// Chain returns the chain deployed at addr.
	Chain(ctx context.Context, addr common.Address) (Chain, error)
}
