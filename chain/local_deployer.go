// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
)

var _ Deployer = (*LocalDeployer)(nil)

// LocalDeployer deploys Local chains at their CREATE2 addresses.
type LocalDeployer struct {
	factory   common.Address
	proxyCode []byte
	hook      Hook
	// db, if set, holds every deployed chain keyed by address
	db database.Database

	lock   sync.RWMutex
	chains map[common.Address]*Local
}

// NewLocalDeployer returns a deployer that derives addresses from factory and
// proxyCode. hook, if non-nil, is installed on every deployed chain.
func NewLocalDeployer(factory common.Address, proxyCode []byte, hook Hook) *LocalDeployer {
	return &LocalDeployer{
		factory:   factory,
		proxyCode: proxyCode,
		hook:      hook,
		chains:    make(map[common.Address]*Local),
	}
}

// LoadLocalDeployer returns a deployer that stores its chains in db, starting
// from the chains db already holds.
func LoadLocalDeployer(db database.Database, factory common.Address, proxyCode []byte, hook Hook) (*LocalDeployer, error) {
	d := NewLocalDeployer(factory, proxyCode, hook)
	d.db = db

	iter := db.NewIterator()
	defer iter.Release()

	for iter.Next() {
		addr := common.BytesToAddress(iter.Key())
		c, err := unmarshalLocal(iter.Value(), hook)
		if err != nil {
			return nil, fmt.Errorf("failed to load chain %s: %w", addr, err)
		}
		if c.address != addr {
			return nil, fmt.Errorf("chain stored at %s reports address %s", addr, c.address)
		}
		c.persist = d.persister(addr)
		d.chains[addr] = c
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *LocalDeployer) persister(addr common.Address) func([]byte) error {
	return func(b []byte) error {
		return d.db.Put(addr.Bytes(), b)
	}
}

func (d *LocalDeployer) Address(req *DeployRequest) common.Address {
	return ComputeAddress(d.factory, d.proxyCode, req)
}

func (d *LocalDeployer) Deploy(_ context.Context, req *DeployRequest) (Chain, error) {
	addr := d.Address(req)

	d.lock.Lock()
	defer d.lock.Unlock()

	if _, ok := d.chains[addr]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyDeployed, addr)
	}
	c, err := NewLocal(addr, req.Cut, d.hook)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chain at %s: %w", addr, err)
	}
	if d.db != nil {
		b, err := marshalLocal(c)
		if err != nil {
			return nil, err
		}
		c.persist = d.persister(addr)
		if err := c.persist(b); err != nil {
			return nil, fmt.Errorf("failed to store chain at %s: %w", addr, err)
		}
	}
	d.chains[addr] = c
	return c, nil
}

func (d *LocalDeployer) Discard(_ context.Context, addr common.Address) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if _, ok := d.chains[addr]; !ok {
		return fmt.Errorf("%w: %s", ErrNotDeployed, addr)
	}
	if d.db != nil {
		if err := d.db.Delete(addr.Bytes()); err != nil {
			return err
		}
	}
	delete(d.chains, addr)
	return nil
}

func (d *LocalDeployer) Chain(_ context.Context, addr common.Address) (Chain, error) {
	c, ok := d.Local(addr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotDeployed, addr)
	}
	return c, nil
}

// Local returns the concrete chain deployed at addr.
func (d *LocalDeployer) Local(addr common.Address) (*Local, bool) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	c, ok := d.chains[addr]
	return c, ok
}

// Len returns the number of deployed chains.
func (d *LocalDeployer) Len() int {
	d.lock.RLock()
	defer d.lock.RUnlock()

	return len(d.chains)
}
