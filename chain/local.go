// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/stm/cut"
	"github.com/luxfi/stm/upgrade"
	"github.com/luxfi/stm/utils/wrappers"
)

var _ Chain = (*Local)(nil)

// Hook is invoked at the start of every mutating call on a Local chain,
// with the context the call received. A non-nil error fails the call.
type Hook func(ctx context.Context, method string) error

type facet struct {
	address     common.Address
	isFreezable bool
}

// Local is an in-process chain. It applies cuts to a selector table and
// records every control call so that callers can observe their effect.
type Local struct {
	address common.Address
	hook    Hook
	// persist, if set, stores the encoded chain after every mutation
	persist func([]byte) error

	lock                  sync.RWMutex
	record                InitRecord
	status                Status
	facets                map[cut.Selector]facet
	totalBatchesCommitted uint64
	totalBatchesExecuted  uint64
	feeParams             FeeParams
	priorityTxMaxGasLimit uint64
	validators            map[common.Address]bool
	porterAvailable       bool
	protocolVersion       uint64
	l2ChainID             uint64
	upgradeTxs            []*upgrade.L2CanonicalTransaction
}

// NewLocal deploys a Local chain at address, applies c and runs its
// initializer.
func NewLocal(address common.Address, c *cut.Cut, hook Hook) (*Local, error) {
	record, err := ParseInitCalldata(c.InitCalldata)
	if err != nil {
		return nil, err
	}
	l := &Local{
		address:               address,
		hook:                  hook,
		record:                *record,
		status:                Active,
		facets:                make(map[cut.Selector]facet),
		validators:            make(map[common.Address]bool),
		priorityTxMaxGasLimit: upgrade.PriorityTxMaxGasLimit,
		protocolVersion:       record.ProtocolVersion,
	}
	if err := l.applyFacetCuts(c.FacetCuts); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Local) Address() common.Address {
	return l.address
}

func (l *Local) GetAdmin(context.Context) (common.Address, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.record.Admin, nil
}

func (l *Local) FreezeDiamond(ctx context.Context, caller common.Address) error {
	return l.mutate(ctx, caller, "freezeDiamond", func() error {
		if l.status == Frozen {
			return ErrAlreadyFrozen
		}
		l.status = Frozen
		return nil
	})
}

func (l *Local) UnfreezeDiamond(ctx context.Context, caller common.Address) error {
	return l.mutate(ctx, caller, "unfreezeDiamond", func() error {
		if l.status != Frozen {
			return ErrNotFrozen
		}
		l.status = Active
		return nil
	})
}

func (l *Local) RevertBatches(ctx context.Context, caller common.Address, newLastBatch uint64) error {
	return l.mutate(ctx, caller, "revertBatches", func() error {
		if newLastBatch < l.totalBatchesExecuted {
			return fmt.Errorf("%w: %d < %d", ErrInvalidRevert, newLastBatch, l.totalBatchesExecuted)
		}
		if newLastBatch < l.totalBatchesCommitted {
			l.totalBatchesCommitted = newLastBatch
		}
		return nil
	})
}

func (l *Local) ExecuteUpgrade(ctx context.Context, caller common.Address, c *cut.Cut) error {
	if c == nil {
		return fmt.Errorf("%w: missing cut", ErrUpgradeRejected)
	}
	return l.mutate(ctx, caller, "executeUpgrade", func() error {
		return l.executeUpgrade(c)
	})
}

func (l *Local) ChangeFeeParams(ctx context.Context, caller common.Address, params FeeParams) error {
	return l.mutate(ctx, caller, "changeFeeParams", func() error {
		if err := params.Verify(); err != nil {
			return err
		}
		l.feeParams = params
		return nil
	})
}

func (l *Local) SetPriorityTxMaxGasLimit(ctx context.Context, caller common.Address, limit uint64) error {
	return l.mutate(ctx, caller, "setPriorityTxMaxGasLimit", func() error {
		l.priorityTxMaxGasLimit = limit
		return nil
	})
}

func (l *Local) SetValidator(ctx context.Context, caller common.Address, validator common.Address, active bool) error {
	return l.mutate(ctx, caller, "setValidator", func() error {
		if validator == (common.Address{}) {
			return ErrZeroValidator
		}
		l.validators[validator] = active
		return nil
	})
}

func (l *Local) SetPorterAvailability(ctx context.Context, caller common.Address, available bool) error {
	return l.mutate(ctx, caller, "setPorterAvailability", func() error {
		l.porterAvailable = available
		return nil
	})
}

// SimulateBatches sets the batch counters of the chain.
func (l *Local) SimulateBatches(committed, executed uint64) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.apply(func() error {
		l.totalBatchesCommitted = committed
		l.totalBatchesExecuted = executed
		return nil
	})
}

// InitRecord returns the record the chain was initialized with.
func (l *Local) InitRecord() InitRecord {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.record
}

func (l *Local) Status() Status {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.status
}

func (l *Local) TotalBatchesCommitted() uint64 {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.totalBatchesCommitted
}

func (l *Local) FeeParams() FeeParams {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.feeParams
}

func (l *Local) PriorityTxMaxGasLimit() uint64 {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.priorityTxMaxGasLimit
}

func (l *Local) IsValidator(validator common.Address) bool {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.validators[validator]
}

func (l *Local) PorterAvailable() bool {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.porterAvailable
}

func (l *Local) ProtocolVersion() uint64 {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.protocolVersion
}

// L2ChainID returns the chain id assigned through an upgrade transaction, or
// zero if none was applied.
func (l *Local) L2ChainID() uint64 {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.l2ChainID
}

// UpgradeTxs returns the cross-layer transactions applied to the chain, in
// order.
func (l *Local) UpgradeTxs() []*upgrade.L2CanonicalTransaction {
	l.lock.RLock()
	defer l.lock.RUnlock()

	txs := make([]*upgrade.L2CanonicalTransaction, len(l.upgradeTxs))
	copy(txs, l.upgradeTxs)
	return txs
}

// Facet returns the address the selector routes to.
func (l *Local) Facet(selector cut.Selector) (common.Address, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	f, ok := l.facets[selector]
	return f.address, ok
}

func (l *Local) mutate(ctx context.Context, caller common.Address, method string, f func() error) error {
	if l.hook != nil {
		if err := l.hook(ctx, method); err != nil {
			return err
		}
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	if caller != l.record.Manager {
		return fmt.Errorf("%w: %s called by %s", ErrNotManager, method, caller)
	}
	return l.apply(f)
}

// apply runs f and stores the result. If the chain can't be stored, it is
// rolled back to its state before f. Must be called with the lock held.
func (l *Local) apply(f func() error) error {
	if l.persist == nil {
		return f()
	}

	prev := l.state()
	if err := f(); err != nil {
		return err
	}
	b, err := marshalLocal(l)
	if err == nil {
		err = l.persist(b)
	}
	if err != nil {
		if restoreErr := l.restore(prev); restoreErr != nil {
			return fmt.Errorf("failed to store chain %s: %w (rollback: %w)", l.address, err, restoreErr)
		}
		return fmt.Errorf("failed to store chain %s: %w", l.address, err)
	}
	return nil
}

// executeUpgrade applies c atomically: on error the chain is left untouched.
func (l *Local) executeUpgrade(c *cut.Cut) error {
	facets := make(map[cut.Selector]facet, len(l.facets))
	for selector, f := range l.facets {
		facets[selector] = f
	}
	if err := applyFacetCuts(facets, c.FacetCuts); err != nil {
		return err
	}

	if len(c.InitCalldata) == 0 {
		l.facets = facets
		return nil
	}
	if c.InitAddress == (common.Address{}) {
		return fmt.Errorf("%w: initializer calldata without address", ErrUpgradeRejected)
	}
	proposed, err := upgrade.ParseProposedUpgrade(c.InitCalldata)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpgradeRejected, err)
	}
	if proposed.NewProtocolVersion < l.protocolVersion {
		return fmt.Errorf("%w: protocol version %d below current %d",
			ErrUpgradeRejected, proposed.NewProtocolVersion, l.protocolVersion)
	}

	tx := proposed.L2ProtocolUpgradeTx
	if chainID, ok := upgrade.ChainIDFromTx(&tx); ok {
		if chainID != l.record.ChainID {
			return fmt.Errorf("%w: chain id %d does not match %d", ErrUpgradeRejected, chainID, l.record.ChainID)
		}
		l.l2ChainID = chainID
	}
	l.facets = facets
	l.protocolVersion = proposed.NewProtocolVersion
	l.upgradeTxs = append(l.upgradeTxs, &tx)
	return nil
}

func (l *Local) applyFacetCuts(cuts []cut.FacetCut) error {
	return applyFacetCuts(l.facets, cuts)
}

func applyFacetCuts(facets map[cut.Selector]facet, cuts []cut.FacetCut) error {
	for _, fc := range cuts {
		for _, selector := range fc.Selectors {
			_, exists := facets[selector]
			switch fc.Action {
			case cut.Add:
				if exists {
					return fmt.Errorf("%w: selector %x already added", ErrUpgradeRejected, selector[:wrappers.SelectorLen])
				}
				facets[selector] = facet{address: fc.Facet, isFreezable: fc.IsFreezable}
			case cut.Replace:
				if !exists {
					return fmt.Errorf("%w: selector %x not found", ErrUpgradeRejected, selector[:wrappers.SelectorLen])
				}
				facets[selector] = facet{address: fc.Facet, isFreezable: fc.IsFreezable}
			case cut.Remove:
				if !exists {
					return fmt.Errorf("%w: selector %x not found", ErrUpgradeRejected, selector[:wrappers.SelectorLen])
				}
				delete(facets, selector)
			default:
				return fmt.Errorf("%w: action %s", ErrUpgradeRejected, fc.Action)
			}
		}
	}
	return nil
}
