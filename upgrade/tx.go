// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package upgrade

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/stm/utils/wrappers"
)

const (
	// SystemUpgradeTxType marks a transaction originated by governance rather
	// than an external signer
	SystemUpgradeTxType = 254
	// PriorityTxMaxGasLimit is the gas limit given to system upgrade transactions
	PriorityTxMaxGasLimit = 72_000_000
	// RequiredGasPerPubdata is the pubdata price the execution side requires
	RequiredGasPerPubdata = 800

	maxDynamicLen  = 1 << 20
	maxFactoryDeps = 64
)

var (
	// ForceDeployer is the system sender of upgrade transactions
	ForceDeployer = common.HexToAddress("0x0000000000000000000000000000000000008007")
	// SystemContext is the system contract that holds the chain identity
	SystemContext = common.HexToAddress("0x000000000000000000000000000000000000800b")

	ErrMalformed = errors.New("malformed upgrade payload")
)

// L2CanonicalTransaction is a transaction-shaped message the execution side
// runs as system-originated.
type L2CanonicalTransaction struct {
	TxType                 uint64         `json:"txType"`
	From                   common.Address `json:"from"`
	To                     common.Address `json:"to"`
	GasLimit               uint64         `json:"gasLimit"`
	GasPerPubdataByteLimit uint64         `json:"gasPerPubdataByteLimit"`
	MaxFeePerGas           uint256.Int    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas   uint256.Int    `json:"maxPriorityFeePerGas"`
	Paymaster              common.Address `json:"paymaster"`
	Nonce                  uint64         `json:"nonce"`
	Value                  uint256.Int    `json:"value"`
	Reserved               [4]uint256.Int `json:"reserved"`
	Data                   []byte         `json:"data"`
	Signature              []byte         `json:"signature"`
	FactoryDeps            []common.Hash  `json:"factoryDeps"`
	PaymasterInput         []byte         `json:"paymasterInput"`
	ReservedDynamic        []byte         `json:"reservedDynamic"`
}

func (tx *L2CanonicalTransaction) pack(p *wrappers.Packer) {
	p.PackUint64(tx.TxType)
	p.PackAddress(tx.From)
	p.PackAddress(tx.To)
	p.PackUint64(tx.GasLimit)
	p.PackUint64(tx.GasPerPubdataByteLimit)
	p.PackWord(&tx.MaxFeePerGas)
	p.PackWord(&tx.MaxPriorityFeePerGas)
	p.PackAddress(tx.Paymaster)
	p.PackUint64(tx.Nonce)
	p.PackWord(&tx.Value)
	for i := range tx.Reserved {
		p.PackWord(&tx.Reserved[i])
	}
	p.PackBytes(tx.Data)
	p.PackBytes(tx.Signature)
	p.PackUint64(uint64(len(tx.FactoryDeps)))
	for _, dep := range tx.FactoryDeps {
		p.PackHash(dep)
	}
	p.PackBytes(tx.PaymasterInput)
	p.PackBytes(tx.ReservedDynamic)
}

func (tx *L2CanonicalTransaction) unpack(p *wrappers.Packer) error {
	tx.TxType = p.UnpackUint64()
	tx.From = p.UnpackAddress()
	tx.To = p.UnpackAddress()
	tx.GasLimit = p.UnpackUint64()
	tx.GasPerPubdataByteLimit = p.UnpackUint64()
	tx.MaxFeePerGas = *p.UnpackWord()
	tx.MaxPriorityFeePerGas = *p.UnpackWord()
	tx.Paymaster = p.UnpackAddress()
	tx.Nonce = p.UnpackUint64()
	tx.Value = *p.UnpackWord()
	for i := range tx.Reserved {
		tx.Reserved[i] = *p.UnpackWord()
	}
	tx.Data = p.UnpackLimitedBytes(maxDynamicLen)
	tx.Signature = p.UnpackLimitedBytes(maxDynamicLen)
	numDeps := p.UnpackUint64()
	if p.Errored() {
		return p.Err
	}
	if numDeps > maxFactoryDeps {
		return fmt.Errorf("%d factory deps exceeds %d", numDeps, maxFactoryDeps)
	}
	tx.FactoryDeps = make([]common.Hash, 0, numDeps)
	for i := uint64(0); i < numDeps; i++ {
		tx.FactoryDeps = append(tx.FactoryDeps, p.UnpackHash())
	}
	tx.PaymasterInput = p.UnpackLimitedBytes(maxDynamicLen)
	tx.ReservedDynamic = p.UnpackLimitedBytes(maxDynamicLen)
	return p.Err
}

// Bytes returns the canonical encoding of tx.
func (tx *L2CanonicalTransaction) Bytes() []byte {
	p := wrappers.NewPacker()
	tx.pack(p)
	return p.Bytes
}

// Hash returns keccak256 of the canonical encoding.
func (tx *L2CanonicalTransaction) Hash() common.Hash {
	return common.Keccak256Hash(tx.Bytes())
}
