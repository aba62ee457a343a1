// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry maps chain ids to the address of the chain deployed for
// them.
package registry

import (
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/stm/utils/dbutil"
)

var (
	ErrZeroAddress  = errors.New("chain address is zero")
	ErrAddressInUse = errors.New("chain address is registered under another chain id")

	chainPrefix   = []byte("chain:")
	addressPrefix = []byte("address:")
)

// Binding is a change of the address registered for a chain id.
type Binding struct {
	ChainID uint64
	Old     common.Address
	New     common.Address
}

// Registry is a db backed chain id to address map, with a reverse index from
// address to chain id.
type Registry struct {
	db database.Database
}

// New returns a registry stored in db.
func New(db database.Database) *Registry {
	return &Registry{db: db}
}

// Get returns the address registered for chainID, or the zero address.
func (r *Registry) Get(chainID uint64) (common.Address, error) {
	return dbutil.GetAddress(r.db, chainKey(chainID))
}

// ChainID returns the chain id addr is registered under.
func (r *Registry) ChainID(addr common.Address) (uint64, bool, error) {
	has, err := r.db.Has(addressKey(addr))
	if err != nil || !has {
		return 0, false, err
	}
	chainID, err := dbutil.GetUint64(r.db, addressKey(addr))
	return chainID, err == nil, err
}

// Bind registers addr for chainID, replacing any previous registration. An
// address is registered under at most one chain id.
func (r *Registry) Bind(chainID uint64, addr common.Address) (Binding, error) {
	if addr == (common.Address{}) {
		return Binding{}, ErrZeroAddress
	}
	bound, ok, err := r.ChainID(addr)
	if err != nil {
		return Binding{}, err
	}
	if ok && bound != chainID {
		return Binding{}, fmt.Errorf("%w: %s is registered under %d", ErrAddressInUse, addr, bound)
	}
	old, err := r.Get(chainID)
	if err != nil {
		return Binding{}, err
	}
	if old != (common.Address{}) {
		if err := r.db.Delete(addressKey(old)); err != nil {
			return Binding{}, fmt.Errorf("failed to remove index of %s: %w", old, err)
		}
	}
	if err := dbutil.PutAddress(r.db, chainKey(chainID), addr); err != nil {
		return Binding{}, err
	}
	if err := dbutil.PutUint64(r.db, addressKey(addr), chainID); err != nil {
		return Binding{}, err
	}
	return Binding{
		ChainID: chainID,
		Old:     old,
		New:     addr,
	}, nil
}

// ChainIDs returns every registered chain id in ascending order.
func (r *Registry) ChainIDs() ([]uint64, error) {
	iter := r.db.NewIteratorWithPrefix(chainPrefix)
	defer iter.Release()

	var chainIDs []uint64
	for iter.Next() {
		chainID, err := dbutil.ParseUint64Key(iter.Key()[len(chainPrefix):])
		if err != nil {
			return nil, err
		}
		chainIDs = append(chainIDs, chainID)
	}
	return chainIDs, iter.Error()
}

func chainKey(chainID uint64) []byte {
	return dbutil.Key(chainPrefix, dbutil.Uint64Key(chainID))
}

func addressKey(addr common.Address) []byte {
	return dbutil.Key(addressPrefix, addr.Bytes())
}
