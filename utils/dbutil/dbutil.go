// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dbutil reads and writes fixed-width values stored in a
// database.Database. Missing keys read as the zero value.
package dbutil

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
)

var errBadLength = errors.New("stored value has unexpected length")

// GetAddress returns the address stored at key, or the zero address.
func GetAddress(db database.KeyValueReader, key []byte) (common.Address, error) {
	b, err := get(db, key, common.AddressLength)
	if err != nil || b == nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(b), nil
}

// PutAddress stores addr at key.
func PutAddress(db database.KeyValueWriter, key []byte, addr common.Address) error {
	return db.Put(key, addr.Bytes())
}

// GetHash returns the hash stored at key, or the zero hash.
func GetHash(db database.KeyValueReader, key []byte) (common.Hash, error) {
	b, err := get(db, key, common.HashLength)
	if err != nil || b == nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(b), nil
}

// PutHash stores h at key.
func PutHash(db database.KeyValueWriter, key []byte, h common.Hash) error {
	return db.Put(key, h.Bytes())
}

// GetUint64 returns the integer stored at key, or 0.
func GetUint64(db database.KeyValueReader, key []byte) (uint64, error) {
	b, err := get(db, key, 8)
	if err != nil || b == nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// PutUint64 stores val at key.
func PutUint64(db database.KeyValueWriter, key []byte, val uint64) error {
	return db.Put(key, Uint64Key(val))
}

// GetBool returns whether key holds a true flag.
func GetBool(db database.KeyValueReader, key []byte) (bool, error) {
	b, err := get(db, key, 1)
	if err != nil || b == nil {
		return false, err
	}
	return b[0] == 1, nil
}

// PutBool stores a flag at key.
func PutBool(db database.KeyValueWriter, key []byte, val bool) error {
	if val {
		return db.Put(key, []byte{1})
	}
	return db.Put(key, []byte{0})
}

// Uint64Key encodes val big-endian so keys iterate in numeric order.
func Uint64Key(val uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, val)
	return b
}

// ParseUint64Key decodes a key written by Uint64Key.
func ParseUint64Key(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: key has %d bytes, want 8", errBadLength, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// Key concatenates a prefix and a suffix into a fresh slice.
func Key(prefix []byte, suffix []byte) []byte {
	key := make([]byte, 0, len(prefix)+len(suffix))
	key = append(key, prefix...)
	return append(key, suffix...)
}

func get(db database.KeyValueReader, key []byte, size int) ([]byte, error) {
	b, err := db.Get(key)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	case len(b) != size:
		return nil, fmt.Errorf("%w: key %x has %d bytes, want %d", errBadLength, key, len(b), size)
	}
	return b, nil
}
