// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/luxfi/geth/common"

	"github.com/luxfi/stm/utils/wrappers"
)

// InitCode returns the creation code of a chain proxy: the proxy bytecode
// followed by its constructor arguments, the network id and the cut.
func InitCode(proxyCode []byte, req *DeployRequest) []byte {
	p := wrappers.NewPacker()
	p.PackFixedBytes(proxyCode)
	p.PackUint64(req.NetworkID)
	p.PackBytes(req.Cut.Bytes())
	return p.Bytes
}

// ComputeAddress returns the CREATE2 address at which factory would deploy
// req. It depends only on its arguments.
func ComputeAddress(factory common.Address, proxyCode []byte, req *DeployRequest) common.Address {
	return common.CreateAddress2(factory, req.Salt, common.Keccak256(InitCode(proxyCode, req)))
}
