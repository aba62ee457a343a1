// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wrappers

import (
	"errors"
	"math"

	"github.com/holiman/uint256"

	"github.com/luxfi/geth/common"
)

var (
	ErrInsufficientLength = errors.New("packer has insufficient length for input")
	errNegativeOffset     = errors.New("negative offset")
	errInvalidInput       = errors.New("input does not match expected format")
	errBadBool            = errors.New("unexpected value when unpacking bool")
	errOversized          = errors.New("size is larger than limit")
	errWordOverflow       = errors.New("word does not fit in 64 bits")
	errDirtyPadding       = errors.New("non-zero padding in address slot")
)

// BytesLen returns the packed length of a dynamic byte slice: one length word
// followed by the data padded up to a whole number of words.
func BytesLen(b []byte) int {
	return WordLen + paddedLen(len(b))
}

func paddedLen(n int) int {
	return (n + WordLen - 1) / WordLen * WordLen
}

// Packer packs and unpacks a byte array as a sequence of 32-byte big-endian
// slots. Scalars always occupy exactly one slot so positional decoders can
// rely on fixed offsets.
type Packer struct {
	Errs

	// The largest allowed size of expanding the byte array
	MaxSize int
	// The current byte array
	Bytes []byte
	// The offset that is being written to in the byte array
	Offset int
}

// NewPacker returns a packer for writing with no practical size limit.
func NewPacker() *Packer {
	return &Packer{MaxSize: math.MaxInt32}
}

// NewUnpacker returns a packer reading from b.
func NewUnpacker(b []byte) *Packer {
	return &Packer{Bytes: b, MaxSize: len(b)}
}

// PackWord appends a 256-bit word
func (p *Packer) PackWord(val *uint256.Int) {
	p.expand(WordLen)
	if p.Errored() {
		return
	}

	word := val.Bytes32()
	copy(p.Bytes[p.Offset:], word[:])
	p.Offset += WordLen
}

// UnpackWord unpacks a 256-bit word
func (p *Packer) UnpackWord() *uint256.Int {
	p.checkSpace(WordLen)
	if p.Errored() {
		return new(uint256.Int)
	}

	val := new(uint256.Int).SetBytes(p.Bytes[p.Offset : p.Offset+WordLen])
	p.Offset += WordLen
	return val
}

// PackUint64 appends val widened to a full word
func (p *Packer) PackUint64(val uint64) {
	p.PackWord(uint256.NewInt(val))
}

// UnpackUint64 unpacks a word that must fit in 64 bits
func (p *Packer) UnpackUint64() uint64 {
	val := p.UnpackWord()
	if !val.IsUint64() {
		p.Add(errWordOverflow)
		return 0
	}
	return val.Uint64()
}

// PackBool packs a bool as the word 0 or 1
func (p *Packer) PackBool(b bool) {
	if b {
		p.PackUint64(1)
	} else {
		p.PackUint64(0)
	}
}

// UnpackBool unpacks a bool
func (p *Packer) UnpackBool() bool {
	switch p.UnpackUint64() {
	case 0:
		return false
	case 1:
		return true
	default:
		p.Add(errBadBool)
		return false
	}
}

// PackAddress appends an address left-padded with zeros to a full word
func (p *Packer) PackAddress(addr common.Address) {
	p.expand(WordLen)
	if p.Errored() {
		return
	}

	clear(p.Bytes[p.Offset : p.Offset+addressPadding])
	copy(p.Bytes[p.Offset+addressPadding:], addr[:])
	p.Offset += WordLen
}

// UnpackAddress unpacks an address; the padding bytes must be zero
func (p *Packer) UnpackAddress() common.Address {
	p.checkSpace(WordLen)
	if p.Errored() {
		return common.Address{}
	}

	for _, b := range p.Bytes[p.Offset : p.Offset+addressPadding] {
		if b != 0 {
			p.Add(errDirtyPadding)
			return common.Address{}
		}
	}
	addr := common.BytesToAddress(p.Bytes[p.Offset+addressPadding : p.Offset+WordLen])
	p.Offset += WordLen
	return addr
}

// PackHash appends a 32-byte hash
func (p *Packer) PackHash(h common.Hash) {
	p.PackFixedBytes(h[:])
}

// UnpackHash unpacks a 32-byte hash
func (p *Packer) UnpackHash() common.Hash {
	return common.BytesToHash(p.UnpackFixedBytes(WordLen))
}

// PackFixedBytes appends a byte slice with no length descriptor and no padding
func (p *Packer) PackFixedBytes(bytes []byte) {
	p.expand(len(bytes))
	if p.Errored() {
		return
	}

	copy(p.Bytes[p.Offset:], bytes)
	p.Offset += len(bytes)
}

// UnpackFixedBytes unpacks a byte slice with no length descriptor
func (p *Packer) UnpackFixedBytes(size int) []byte {
	p.checkSpace(size)
	if p.Errored() {
		return nil
	}

	bytes := p.Bytes[p.Offset : p.Offset+size]
	p.Offset += size
	return bytes
}

// PackBytes appends a length word, the bytes, and zero padding up to the next
// word boundary
func (p *Packer) PackBytes(bytes []byte) {
	p.PackUint64(uint64(len(bytes)))
	p.PackFixedBytes(bytes)
	if pad := paddedLen(len(bytes)) - len(bytes); pad > 0 {
		p.PackFixedBytes(make([]byte, pad))
	}
}

// UnpackBytes unpacks a dynamic byte slice. The returned slice is a copy.
func (p *Packer) UnpackBytes() []byte {
	return p.UnpackLimitedBytes(math.MaxInt32)
}

// UnpackLimitedBytes unpacks a byte slice. If the size of the slice is greater
// than limit, adds errOversized to the packer and returns nil.
func (p *Packer) UnpackLimitedBytes(limit uint32) []byte {
	size := p.UnpackUint64()
	if p.Errored() {
		return nil
	}
	if size > uint64(limit) {
		p.Add(errOversized)
		return nil
	}
	padded := paddedLen(int(size))
	raw := p.UnpackFixedBytes(padded)
	if p.Errored() {
		return nil
	}
	for _, b := range raw[size:] {
		if b != 0 {
			p.Add(errInvalidInput)
			return nil
		}
	}
	return append([]byte{}, raw[:size]...)
}

// Remaining returns the number of unread bytes
func (p *Packer) Remaining() int {
	return len(p.Bytes) - p.Offset
}

// checkSpace requires that there is at least bytes of write space left in the
// byte array. If this is not true, an error is added to the packer.
func (p *Packer) checkSpace(bytes int) {
	switch {
	case p.Offset < 0:
		p.Add(errNegativeOffset)
	case bytes < 0:
		p.Add(errInvalidInput)
	case len(p.Bytes)-p.Offset < bytes:
		p.Add(ErrInsufficientLength)
	}
}

// expand ensures that there is bytes bytes left of space in the byte slice.
// If this is not allowed due to the maximum size, an error is added to the packer.
func (p *Packer) expand(bytes int) {
	neededSize := bytes + p.Offset
	switch {
	case neededSize <= len(p.Bytes):
		return
	case neededSize > p.MaxSize:
		p.Err = ErrInsufficientLength
		return
	case neededSize <= cap(p.Bytes):
		p.Bytes = p.Bytes[:neededSize]
		return
	default:
		p.Bytes = append(p.Bytes[:cap(p.Bytes)], make([]byte, neededSize-cap(p.Bytes))...)
	}
}
