// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wrappers provides the fixed-width word packer shared by every
// canonical encoding in this module.
package wrappers

const (
	// WordLen is the width of every packed slot
	WordLen = 32
	// AddressLen is the width of an identity inside its slot
	AddressLen = 20
	// SelectorLen is the width of a call selector
	SelectorLen = 4

	addressPadding = WordLen - AddressLen
)

// Errs collects errors during a series of operations.
type Errs struct {
	Err error
}

// Errored returns true if an error has been recorded.
func (errs *Errs) Errored() bool {
	return errs.Err != nil
}

// Add records the first non-nil error.
func (errs *Errs) Add(errors ...error) {
	if errs.Err == nil {
		for _, err := range errors {
			if err != nil {
				errs.Err = err
				break
			}
		}
	}
}
