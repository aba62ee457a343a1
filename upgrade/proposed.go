// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package upgrade

import (
	"fmt"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/stm/cut"
	"github.com/luxfi/stm/utils/wrappers"
)

// VerifierParams are the recursion verification keys of the proof system.
type VerifierParams struct {
	RecursionNodeLevelVkHash    common.Hash `json:"recursionNodeLevelVkHash"`
	RecursionLeafLevelVkHash    common.Hash `json:"recursionLeafLevelVkHash"`
	RecursionCircuitsSetVksHash common.Hash `json:"recursionCircuitsSetVksHash"`
}

// ProposedUpgrade is the envelope applied by the upgrade logic module of a
// chain. Logic-module upgrades and the identity assignment share this shape.
type ProposedUpgrade struct {
	L2ProtocolUpgradeTx        L2CanonicalTransaction `json:"l2ProtocolUpgradeTx"`
	FactoryDeps                [][]byte               `json:"factoryDeps"`
	BootloaderHash             common.Hash            `json:"bootloaderHash"`
	DefaultAccountHash         common.Hash            `json:"defaultAccountHash"`
	Verifier                   common.Address         `json:"verifier"`
	VerifierParams             VerifierParams         `json:"verifierParams"`
	L1ContractsUpgradeCalldata []byte                 `json:"l1ContractsUpgradeCalldata"`
	PostUpgradeCalldata        []byte                 `json:"postUpgradeCalldata"`
	UpgradeTimestamp           uint64                 `json:"upgradeTimestamp"`
	NewProtocolVersion         uint64                 `json:"newProtocolVersion"`
}

// Bytes returns the canonical encoding of u.
func (u *ProposedUpgrade) Bytes() []byte {
	p := wrappers.NewPacker()
	u.L2ProtocolUpgradeTx.pack(p)
	p.PackUint64(uint64(len(u.FactoryDeps)))
	for _, dep := range u.FactoryDeps {
		p.PackBytes(dep)
	}
	p.PackHash(u.BootloaderHash)
	p.PackHash(u.DefaultAccountHash)
	p.PackAddress(u.Verifier)
	p.PackHash(u.VerifierParams.RecursionNodeLevelVkHash)
	p.PackHash(u.VerifierParams.RecursionLeafLevelVkHash)
	p.PackHash(u.VerifierParams.RecursionCircuitsSetVksHash)
	p.PackBytes(u.L1ContractsUpgradeCalldata)
	p.PackBytes(u.PostUpgradeCalldata)
	p.PackUint64(u.UpgradeTimestamp)
	p.PackUint64(u.NewProtocolVersion)
	return p.Bytes
}

// ParseProposedUpgrade decodes the envelope out of the initializer calldata of
// an upgrade cut. The calldata must start with the upgrade selector.
func ParseProposedUpgrade(calldata []byte) (*ProposedUpgrade, error) {
	if len(calldata) < wrappers.SelectorLen || cut.Selector(calldata[:wrappers.SelectorLen]) != UpgradeSelector {
		return nil, fmt.Errorf("%w: missing upgrade selector", ErrMalformed)
	}
	p := wrappers.NewUnpacker(calldata[wrappers.SelectorLen:])
	u := &ProposedUpgrade{}
	if err := u.L2ProtocolUpgradeTx.unpack(p); err != nil {
		return nil, fmt.Errorf("%w: l2 transaction: %w", ErrMalformed, err)
	}
	numDeps := p.UnpackUint64()
	if p.Errored() {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, p.Err)
	}
	if numDeps > maxFactoryDeps {
		return nil, fmt.Errorf("%w: %d factory deps exceeds %d", ErrMalformed, numDeps, maxFactoryDeps)
	}
	u.FactoryDeps = make([][]byte, 0, numDeps)
	for i := uint64(0); i < numDeps; i++ {
		u.FactoryDeps = append(u.FactoryDeps, p.UnpackLimitedBytes(maxDynamicLen))
	}
	u.BootloaderHash = p.UnpackHash()
	u.DefaultAccountHash = p.UnpackHash()
	u.Verifier = p.UnpackAddress()
	u.VerifierParams.RecursionNodeLevelVkHash = p.UnpackHash()
	u.VerifierParams.RecursionLeafLevelVkHash = p.UnpackHash()
	u.VerifierParams.RecursionCircuitsSetVksHash = p.UnpackHash()
	u.L1ContractsUpgradeCalldata = p.UnpackLimitedBytes(maxDynamicLen)
	u.PostUpgradeCalldata = p.UnpackLimitedBytes(maxDynamicLen)
	u.UpgradeTimestamp = p.UnpackUint64()
	u.NewProtocolVersion = p.UnpackUint64()
	if p.Errored() {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, p.Err)
	}
	if p.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, p.Remaining())
	}
	return u, nil
}
