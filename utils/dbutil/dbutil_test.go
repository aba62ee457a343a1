// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dbutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
)

func TestMissingKeysReadAsZero(t *testing.T) {
	require := require.New(t)
	db := memdb.New()

	addr, err := GetAddress(db, []byte("a"))
	require.NoError(err)
	require.Equal(common.Address{}, addr)

	h, err := GetHash(db, []byte("h"))
	require.NoError(err)
	require.Equal(common.Hash{}, h)

	v, err := GetUint64(db, []byte("v"))
	require.NoError(err)
	require.Zero(v)

	b, err := GetBool(db, []byte("b"))
	require.NoError(err)
	require.False(b)
}

func TestPutGet(t *testing.T) {
	require := require.New(t)
	db := memdb.New()

	addr := common.HexToAddress("0xabc")
	require.NoError(PutAddress(db, []byte("a"), addr))
	got, err := GetAddress(db, []byte("a"))
	require.NoError(err)
	require.Equal(addr, got)

	h := common.HexToHash("0x1234")
	require.NoError(PutHash(db, []byte("h"), h))
	gotHash, err := GetHash(db, []byte("h"))
	require.NoError(err)
	require.Equal(h, gotHash)

	require.NoError(PutUint64(db, []byte("v"), 99))
	gotVal, err := GetUint64(db, []byte("v"))
	require.NoError(err)
	require.Equal(uint64(99), gotVal)

	require.NoError(PutBool(db, []byte("b"), true))
	gotBool, err := GetBool(db, []byte("b"))
	require.NoError(err)
	require.True(gotBool)
}

func TestWrongLength(t *testing.T) {
	db := memdb.New()
	require.NoError(t, db.Put([]byte("a"), []byte{1, 2, 3}))

	_, err := GetAddress(db, []byte("a"))
	require.ErrorIs(t, err, errBadLength)
}

func TestUint64KeyOrdering(t *testing.T) {
	require.Less(t, string(Uint64Key(1)), string(Uint64Key(256)))
	require.Equal(t, []byte("p:x"), Key([]byte("p:"), []byte("x")))
}

func TestParseUint64Key(t *testing.T) {
	require := require.New(t)

	v, err := ParseUint64Key(Uint64Key(1 << 40))
	require.NoError(err)
	require.Equal(uint64(1<<40), v)

	_, err = ParseUint64Key([]byte{1})
	require.ErrorIs(err, errBadLength)
}
