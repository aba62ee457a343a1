// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package upgrade synthesizes the privileged cross-layer messages the manager
// sends to chains it creates.
package upgrade

import (
	"github.com/luxfi/geth/common"

	"github.com/luxfi/stm/cut"
	"github.com/luxfi/stm/utils/wrappers"
)

var (
	// SetChainIDSelector assigns the chain identity on the execution side
	SetChainIDSelector = cut.SelectorOf("setChainId(uint256)")
	// UpgradeSelector applies a ProposedUpgrade through the upgrade module
	UpgradeSelector = cut.SelectorOf("upgrade(ProposedUpgrade)")
)

// NewSetChainIDTx returns the system transaction that tells the execution side
// its chain id. The protocol version doubles as the nonce.
func NewSetChainIDTx(chainID, protocolVersion uint64) *L2CanonicalTransaction {
	p := wrappers.NewPacker()
	p.PackFixedBytes(SetChainIDSelector[:])
	p.PackUint64(chainID)

	return &L2CanonicalTransaction{
		TxType:                 SystemUpgradeTxType,
		From:                   ForceDeployer,
		To:                     SystemContext,
		GasLimit:               PriorityTxMaxGasLimit,
		GasPerPubdataByteLimit: RequiredGasPerPubdata,
		Nonce:                  protocolVersion,
		Data:                   p.Bytes,
		Signature:              []byte{},
		FactoryDeps:            []common.Hash{},
		PaymasterInput:         []byte{},
		ReservedDynamic:        []byte{},
	}
}

// NewChainIDUpgrade wraps the identity assignment in the generic upgrade
// envelope, with every unrelated field left empty, and returns the cut that
// applies it through genesisUpgrade.
func NewChainIDUpgrade(chainID, protocolVersion uint64, genesisUpgrade common.Address) (*cut.Cut, *L2CanonicalTransaction) {
	tx := NewSetChainIDTx(chainID, protocolVersion)
	proposed := &ProposedUpgrade{
		L2ProtocolUpgradeTx:        *tx,
		FactoryDeps:                [][]byte{},
		L1ContractsUpgradeCalldata: []byte{},
		PostUpgradeCalldata:        []byte{},
		UpgradeTimestamp:           0,
		NewProtocolVersion:         protocolVersion,
	}

	calldata := append(UpgradeSelector[:], proposed.Bytes()...)
	return &cut.Cut{
		FacetCuts:    []cut.FacetCut{},
		InitAddress:  genesisUpgrade,
		InitCalldata: calldata,
	}, tx
}

// ChainIDFromTx returns the chain id carried by a set-chain-id transaction.
func ChainIDFromTx(tx *L2CanonicalTransaction) (uint64, bool) {
	if len(tx.Data) != wrappers.SelectorLen+wrappers.WordLen ||
		cut.Selector(tx.Data[:wrappers.SelectorLen]) != SetChainIDSelector {
		return 0, false
	}
	p := wrappers.NewUnpacker(tx.Data[wrappers.SelectorLen:])
	chainID := p.UnpackUint64()
	return chainID, !p.Errored()
}
