// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"fmt"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/stm/cut"
	"github.com/luxfi/stm/utils/wrappers"
)

const (
	// InitRecordFields is the number of fixed words in an InitRecord
	InitRecordFields = 9
	// InitRecordFixedLen is the byte length of the fixed part
	InitRecordFixedLen = InitRecordFields * wrappers.WordLen

	maxExtensionLen = cut.MaxInitCalldata
)

// InitializeSelector prefixes the initializer calldata of a new chain
var InitializeSelector = cut.SelectorOf("initialize(InitializeData)")

// InitRecord is the positional initializer a new chain parses. The order and
// width of the fields are part of the chain's ABI and must not change.
type InitRecord struct {
	ChainID            uint64         `json:"chainID"`
	Manager            common.Address `json:"manager"`
	Registry           common.Address `json:"registry"`
	ProtocolVersion    uint64         `json:"protocolVersion"`
	Admin              common.Address `json:"admin"`
	ValidatorAuthority common.Address `json:"validatorAuthority"`
	BaseToken          common.Address `json:"baseToken"`
	Bridge             common.Address `json:"bridge"`
	GenesisAnchor      common.Hash    `json:"genesisAnchor"`
	// Extension is the chain-specific initializer data carried by the cut
	Extension []byte `json:"extension"`
}

// Bytes returns the fixed words followed by the length-prefixed extension.
func (r *InitRecord) Bytes() []byte {
	p := wrappers.NewPacker()
	p.PackUint64(r.ChainID)
	p.PackAddress(r.Manager)
	p.PackAddress(r.Registry)
	p.PackUint64(r.ProtocolVersion)
	p.PackAddress(r.Admin)
	p.PackAddress(r.ValidatorAuthority)
	p.PackAddress(r.BaseToken)
	p.PackAddress(r.Bridge)
	p.PackHash(r.GenesisAnchor)
	p.PackBytes(r.Extension)
	return p.Bytes
}

// Calldata returns the initializer call a new chain runs on deployment.
func (r *InitRecord) Calldata() []byte {
	return append(InitializeSelector[:], r.Bytes()...)
}

// ParseInitRecord decodes an InitRecord.
func ParseInitRecord(b []byte) (*InitRecord, error) {
	p := wrappers.NewUnpacker(b)
	r := &InitRecord{
		ChainID:            p.UnpackUint64(),
		Manager:            p.UnpackAddress(),
		Registry:           p.UnpackAddress(),
		ProtocolVersion:    p.UnpackUint64(),
		Admin:              p.UnpackAddress(),
		ValidatorAuthority: p.UnpackAddress(),
		BaseToken:          p.UnpackAddress(),
		Bridge:             p.UnpackAddress(),
		GenesisAnchor:      p.UnpackHash(),
		Extension:          p.UnpackLimitedBytes(maxExtensionLen),
	}
	if p.Errored() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInitRecord, p.Err)
	}
	if p.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidInitRecord, p.Remaining())
	}
	return r, nil
}

// ParseInitCalldata decodes the record out of initializer calldata.
func ParseInitCalldata(calldata []byte) (*InitRecord, error) {
	if len(calldata) < wrappers.SelectorLen || cut.Selector(calldata[:wrappers.SelectorLen]) != InitializeSelector {
		return nil, fmt.Errorf("%w: missing initialize selector", ErrInvalidInitRecord)
	}
	return ParseInitRecord(calldata[wrappers.SelectorLen:])
}
