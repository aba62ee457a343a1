// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package genesis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/stm/utils/wrappers"
)

var testParams = Params{
	BatchHash:                   common.HexToHash("0x1111"),
	IndexRepeatedStorageChanges: 54,
	Commitment:                  common.HexToHash("0x2222"),
}

func TestBatchZeroIsCanonical(t *testing.T) {
	require := require.New(t)

	batch, err := NewBatchZero(testParams)
	require.NoError(err)
	require.Zero(batch.BatchNumber)
	require.Zero(batch.NumberOfLayer1Txs)
	require.Zero(batch.Timestamp)
	require.Equal(common.Keccak256Hash([]byte{}), batch.PriorityOperationsHash)
	require.Equal(common.Hash{}, batch.L2LogsTreeRoot)
	require.Len(batch.Bytes(), 8*wrappers.WordLen)
}

func TestAnchorDeterministic(t *testing.T) {
	require := require.New(t)

	a1, err := Anchor(testParams)
	require.NoError(err)
	a2, err := Anchor(testParams)
	require.NoError(err)
	require.Equal(a1, a2)

	batch, err := NewBatchZero(testParams)
	require.NoError(err)
	require.Equal(common.Keccak256Hash(batch.Bytes()), a1)

	changed := testParams
	changed.IndexRepeatedStorageChanges++
	a3, err := Anchor(changed)
	require.NoError(err)
	require.NotEqual(a1, a3)
}

func TestAnchorRequiresBatchHash(t *testing.T) {
	_, err := Anchor(Params{Commitment: common.HexToHash("0x01")})
	require.ErrorIs(t, err, ErrMissingBatchHash)
}
