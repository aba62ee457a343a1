// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package genesis builds the commitment to batch zero that every chain created
// by the manager starts from.
package genesis

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/stm/utils/wrappers"
)

var (
	// EmptyPriorityOperationsHash is the rolling hash of an empty priority queue
	EmptyPriorityOperationsHash = common.Keccak256Hash(nil)
	// DefaultL2LogsTreeRoot is the log tree root of a batch without logs
	DefaultL2LogsTreeRoot = common.Hash{}

	ErrMissingBatchHash = errors.New("genesis batch hash is zero")
)

// StoredBatchInfo is the descriptor of a committed batch.
type StoredBatchInfo struct {
	BatchNumber                 uint64      `json:"batchNumber"`
	BatchHash                   common.Hash `json:"batchHash"`
	IndexRepeatedStorageChanges uint64      `json:"indexRepeatedStorageChanges"`
	NumberOfLayer1Txs           uint64      `json:"numberOfLayer1Txs"`
	PriorityOperationsHash      common.Hash `json:"priorityOperationsHash"`
	L2LogsTreeRoot              common.Hash `json:"l2LogsTreeRoot"`
	Timestamp                   uint64      `json:"timestamp"`
	Commitment                  common.Hash `json:"commitment"`
}

// Bytes returns the fixed-width encoding: eight words in field order.
func (b *StoredBatchInfo) Bytes() []byte {
	p := wrappers.NewPacker()
	p.PackUint64(b.BatchNumber)
	p.PackHash(b.BatchHash)
	p.PackUint64(b.IndexRepeatedStorageChanges)
	p.PackUint64(b.NumberOfLayer1Txs)
	p.PackHash(b.PriorityOperationsHash)
	p.PackHash(b.L2LogsTreeRoot)
	p.PackUint64(b.Timestamp)
	p.PackHash(b.Commitment)
	return p.Bytes
}

// Hash returns keccak256 of the encoding.
func (b *StoredBatchInfo) Hash() common.Hash {
	return common.Keccak256Hash(b.Bytes())
}

// Params are the externally supplied parts of batch zero.
type Params struct {
	// BatchHash is the genesis state root
	BatchHash common.Hash `json:"genesisBatchHash"`
	// IndexRepeatedStorageChanges is the first free storage index after genesis
	IndexRepeatedStorageChanges uint64 `json:"genesisIndexRepeatedStorageChanges"`
	// Commitment is the genesis batch commitment
	Commitment common.Hash `json:"genesisBatchCommitment"`
}

// NewBatchZero returns the canonical batch zero descriptor: index 0, no
// layer-1 transactions, empty priority queue, default log tree root and zero
// timestamp.
func NewBatchZero(params Params) (*StoredBatchInfo, error) {
	if params.BatchHash == (common.Hash{}) {
		return nil, ErrMissingBatchHash
	}
	return &StoredBatchInfo{
		BatchNumber:                 0,
		BatchHash:                   params.BatchHash,
		IndexRepeatedStorageChanges: params.IndexRepeatedStorageChanges,
		NumberOfLayer1Txs:           0,
		PriorityOperationsHash:      EmptyPriorityOperationsHash,
		L2LogsTreeRoot:              DefaultL2LogsTreeRoot,
		Timestamp:                   0,
		Commitment:                  params.Commitment,
	}, nil
}

// Anchor returns the hash of batch zero for params.
func Anchor(params Params) (common.Hash, error) {
	batch, err := NewBatchZero(params)
	if err != nil {
		return common.Hash{}, fmt.Errorf("couldn't build batch zero: %w", err)
	}
	return batch.Hash(), nil
}
