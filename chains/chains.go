// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chains

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/stm/upgrade"
)

// EventKind identifies what an Event reports.
type EventKind uint8

const (
	OwnershipTransferStarted EventKind = iota
	OwnershipTransferred
	NewPendingAdmin
	NewAdmin
	NewValidatorAuthority
	NewInitialCutHash
	NewUpgradeCutHash
	NewProtocolVersion
	NewChain
	GenesisUpgrade
)

func (k EventKind) String() string {
	switch k {
	case OwnershipTransferStarted:
		return "OwnershipTransferStarted"
	case OwnershipTransferred:
		return "OwnershipTransferred"
	case NewPendingAdmin:
		return "NewPendingAdmin"
	case NewAdmin:
		return "NewAdmin"
	case NewValidatorAuthority:
		return "NewValidatorAuthority"
	case NewInitialCutHash:
		return "NewInitialCutHash"
	case NewUpgradeCutHash:
		return "NewUpgradeCutHash"
	case NewProtocolVersion:
		return "NewProtocolVersion"
	case NewChain:
		return "NewChain"
	case GenesisUpgrade:
		return "GenesisUpgrade"
	default:
		return "Unknown"
	}
}

// Event is a committed state change. Old and New hold the previous and new
// value as a 32-byte word: addresses are left-padded, versions big-endian.
type Event struct {
	Kind    EventKind      `json:"kind"`
	ChainID uint64         `json:"chainID,omitempty"`
	Version uint64         `json:"version,omitempty"`
	Old     common.Hash    `json:"old"`
	New     common.Hash    `json:"new"`
	Address common.Address `json:"address,omitempty"`
	// Tx is the identity assignment sent to a new chain
	Tx *upgrade.L2CanonicalTransaction `json:"tx,omitempty"`
}

// OldAddress returns Old as an address.
func (e Event) OldAddress() common.Address {
	return common.BytesToAddress(e.Old.Bytes())
}

// NewAddress returns New as an address.
func (e Event) NewAddress() common.Address {
	return common.BytesToAddress(e.New.Bytes())
}

// NewVersion returns New as a version number.
func (e Event) NewVersion() uint64 {
	return new(uint256.Int).SetBytes(e.New.Bytes()).Uint64()
}

func addressEvent(kind EventKind, old, next common.Address) Event {
	return Event{
		Kind: kind,
		Old:  common.BytesToHash(old.Bytes()),
		New:  common.BytesToHash(next.Bytes()),
	}
}

func versionEvent(old, next uint64) Event {
	return Event{
		Kind: NewProtocolVersion,
		Old:  uint256.NewInt(old).Bytes32(),
		New:  uint256.NewInt(next).Bytes32(),
	}
}
