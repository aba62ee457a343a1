// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cut defines the unit of upgrade: which logic modules a chain routes
// selectors to, plus an optional initializer call.
package cut

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/stm/utils/wrappers"
)

const (
	// MaxFacetCuts bounds the number of facet cuts a decoded payload may carry
	MaxFacetCuts = 256
	// MaxSelectors bounds the selectors of a single facet cut
	MaxSelectors = 1024
	// MaxInitCalldata bounds the initializer calldata
	MaxInitCalldata = 1 << 20
)

var (
	ErrMalformed     = errors.New("malformed cut payload")
	errUnknownAction = errors.New("unknown facet cut action")
	errTrailingBytes = errors.New("trailing bytes after cut payload")
	errDirtySelector = errors.New("non-zero padding after selector")
)

// Action is what a facet cut does to its selectors.
type Action uint8

const (
	Add Action = iota
	Replace
	Remove
)

func (a Action) String() string {
	switch a {
	case Add:
		return "add"
	case Replace:
		return "replace"
	case Remove:
		return "remove"
	default:
		return "unknown"
	}
}

// Selector is a 4-byte call selector.
type Selector [wrappers.SelectorLen]byte

// SelectorOf returns the selector of a canonical function signature.
func SelectorOf(signature string) Selector {
	var s Selector
	copy(s[:], common.Keccak256([]byte(signature)))
	return s
}

// FacetCut routes (or unroutes) a set of selectors to one logic module.
type FacetCut struct {
	Facet       common.Address `json:"facet"`
	Action      Action         `json:"action"`
	IsFreezable bool           `json:"isFreezable"`
	Selectors   []Selector     `json:"selectors"`
}

// Cut is a full upgrade description.
type Cut struct {
	FacetCuts    []FacetCut     `json:"facetCuts"`
	InitAddress  common.Address `json:"initAddress"`
	InitCalldata []byte         `json:"initCalldata"`
}

// Bytes returns the canonical encoding of c:
//
//	word(len(facetCuts))
//	per facet cut: address, word(action), word(isFreezable),
//	               word(len(selectors)), one left-aligned word per selector
//	address(initAddress)
//	bytes(initCalldata)
func (c *Cut) Bytes() []byte {
	p := wrappers.NewPacker()
	p.PackUint64(uint64(len(c.FacetCuts)))
	for _, fc := range c.FacetCuts {
		p.PackAddress(fc.Facet)
		p.PackUint64(uint64(fc.Action))
		p.PackBool(fc.IsFreezable)
		p.PackUint64(uint64(len(fc.Selectors)))
		for _, sel := range fc.Selectors {
			p.PackFixedBytes(sel[:])
			p.PackFixedBytes(make([]byte, wrappers.WordLen-wrappers.SelectorLen))
		}
	}
	p.PackAddress(c.InitAddress)
	p.PackBytes(c.InitCalldata)
	return p.Bytes
}

// Hash returns keccak256 of the canonical encoding.
func (c *Cut) Hash() common.Hash {
	return common.Keccak256Hash(c.Bytes())
}

// Parse decodes a canonical cut payload. The whole input must be consumed.
func Parse(b []byte) (*Cut, error) {
	p := wrappers.NewUnpacker(b)
	c := &Cut{}

	numCuts := p.UnpackUint64()
	if p.Errored() {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, p.Err)
	}
	if numCuts > MaxFacetCuts {
		return nil, fmt.Errorf("%w: %d facet cuts exceeds %d", ErrMalformed, numCuts, MaxFacetCuts)
	}
	for i := uint64(0); i < numCuts; i++ {
		fc, err := parseFacetCut(p)
		if err != nil {
			return nil, fmt.Errorf("%w: facet cut %d: %w", ErrMalformed, i, err)
		}
		c.FacetCuts = append(c.FacetCuts, fc)
	}
	c.InitAddress = p.UnpackAddress()
	c.InitCalldata = p.UnpackLimitedBytes(MaxInitCalldata)
	if p.Errored() {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, p.Err)
	}
	if p.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %w (%d)", ErrMalformed, errTrailingBytes, p.Remaining())
	}
	return c, nil
}

func parseFacetCut(p *wrappers.Packer) (FacetCut, error) {
	fc := FacetCut{
		Facet: p.UnpackAddress(),
	}
	action := p.UnpackUint64()
	fc.IsFreezable = p.UnpackBool()
	numSelectors := p.UnpackUint64()
	if p.Errored() {
		return FacetCut{}, p.Err
	}
	if action > uint64(Remove) {
		return FacetCut{}, fmt.Errorf("%w: %d", errUnknownAction, action)
	}
	fc.Action = Action(action)
	if numSelectors > MaxSelectors {
		return FacetCut{}, fmt.Errorf("%d selectors exceeds %d", numSelectors, MaxSelectors)
	}
	for j := uint64(0); j < numSelectors; j++ {
		word := p.UnpackFixedBytes(wrappers.WordLen)
		if p.Errored() {
			return FacetCut{}, p.Err
		}
		for _, pad := range word[wrappers.SelectorLen:] {
			if pad != 0 {
				return FacetCut{}, errDirtySelector
			}
		}
		var sel Selector
		copy(sel[:], word)
		fc.Selectors = append(fc.Selectors, sel)
	}
	return fc, nil
}
