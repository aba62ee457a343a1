// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chains

import "github.com/luxfi/stm/chain"

// Registrant can register the existence of a chain
type Registrant interface {
	// Called after a chain is created and its registration is committed,
	// with no manager lock held.
	RegisterChain(chainID uint64, c chain.Chain)
}
