// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chains

import "github.com/luxfi/stm/chain"

// ChainRegisterer is implemented by anything that exposes chains once they
// exist, such as the API server.
type ChainRegisterer interface {
	RegisterChain(chainID uint64, c chain.Chain) error
}

// registrantAdapter adapts a ChainRegisterer to implement chains.Registrant
type registrantAdapter struct {
	registerer ChainRegisterer
	onError    func(chainID uint64, err error)
}

// NewRegistrantAdapter creates an adapter that allows r to be used as a
// Registrant. Registration errors are passed to onError.
func NewRegistrantAdapter(r ChainRegisterer, onError func(chainID uint64, err error)) Registrant {
	return &registrantAdapter{
		registerer: r,
		onError:    onError,
	}
}

func (r *registrantAdapter) RegisterChain(chainID uint64, c chain.Chain) {
	if err := r.registerer.RegisterChain(chainID, c); err != nil && r.onError != nil {
		r.onError(chainID, err)
	}
}
