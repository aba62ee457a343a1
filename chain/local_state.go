// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"

	"github.com/luxfi/stm/cut"
	"github.com/luxfi/stm/upgrade"
)

// localState is the stored form of a Local chain.
type localState struct {
	Address               common.Address                    `json:"address"`
	Record                hexutil.Bytes                     `json:"record"`
	Status                Status                            `json:"status"`
	Facets                []facetState                      `json:"facets"`
	TotalBatchesCommitted uint64                            `json:"totalBatchesCommitted"`
	TotalBatchesExecuted  uint64                            `json:"totalBatchesExecuted"`
	FeeParams             FeeParams                         `json:"feeParams"`
	PriorityTxMaxGasLimit uint64                            `json:"priorityTxMaxGasLimit"`
	Validators            map[common.Address]bool           `json:"validators"`
	PorterAvailable       bool                              `json:"porterAvailable"`
	ProtocolVersion       uint64                            `json:"protocolVersion"`
	L2ChainID             uint64                            `json:"l2ChainID"`
	UpgradeTxs            []*upgrade.L2CanonicalTransaction `json:"upgradeTxs"`
}

type facetState struct {
	Selector    hexutil.Bytes  `json:"selector"`
	Address     common.Address `json:"address"`
	IsFreezable bool           `json:"isFreezable"`
}

// state captures l. Must be called with the lock held.
func (l *Local) state() *localState {
	s := &localState{
		Address:               l.address,
		Record:                l.record.Calldata(),
		Status:                l.status,
		Facets:                make([]facetState, 0, len(l.facets)),
		TotalBatchesCommitted: l.totalBatchesCommitted,
		TotalBatchesExecuted:  l.totalBatchesExecuted,
		FeeParams:             l.feeParams,
		PriorityTxMaxGasLimit: l.priorityTxMaxGasLimit,
		Validators:            make(map[common.Address]bool, len(l.validators)),
		PorterAvailable:       l.porterAvailable,
		ProtocolVersion:       l.protocolVersion,
		L2ChainID:             l.l2ChainID,
		UpgradeTxs:            slices.Clone(l.upgradeTxs),
	}
	for selector, f := range l.facets {
		s.Facets = append(s.Facets, facetState{
			Selector:    selector[:],
			Address:     f.address,
			IsFreezable: f.isFreezable,
		})
	}
	slices.SortFunc(s.Facets, func(a, b facetState) int {
		return bytes.Compare(a.Selector, b.Selector)
	})
	for validator, active := range l.validators {
		s.Validators[validator] = active
	}
	return s
}

// restore overwrites l with s. Must be called with the lock held.
func (l *Local) restore(s *localState) error {
	record, err := ParseInitCalldata(s.Record)
	if err != nil {
		return err
	}
	facets := make(map[cut.Selector]facet, len(s.Facets))
	for _, f := range s.Facets {
		if len(f.Selector) != len(cut.Selector{}) {
			return fmt.Errorf("%w: selector %x", ErrInvalidInitRecord, f.Selector)
		}
		facets[cut.Selector(f.Selector)] = facet{
			address:     f.Address,
			isFreezable: f.IsFreezable,
		}
	}
	validators := make(map[common.Address]bool, len(s.Validators))
	for validator, active := range s.Validators {
		validators[validator] = active
	}

	l.address = s.Address
	l.record = *record
	l.status = s.Status
	l.facets = facets
	l.totalBatchesCommitted = s.TotalBatchesCommitted
	l.totalBatchesExecuted = s.TotalBatchesExecuted
	l.feeParams = s.FeeParams
	l.priorityTxMaxGasLimit = s.PriorityTxMaxGasLimit
	l.validators = validators
	l.porterAvailable = s.PorterAvailable
	l.protocolVersion = s.ProtocolVersion
	l.l2ChainID = s.L2ChainID
	l.upgradeTxs = slices.Clone(s.UpgradeTxs)
	return nil
}

func marshalLocal(l *Local) ([]byte, error) {
	return json.Marshal(l.state())
}

func unmarshalLocal(b []byte, hook Hook) (*Local, error) {
	s := &localState{}
	if err := json.Unmarshal(b, s); err != nil {
		return nil, err
	}
	l := &Local{hook: hook}
	if err := l.restore(s); err != nil {
		return nil, err
	}
	return l, nil
}
