// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

// Status is the operational state of a deployed chain
type Status uint8

const (
	Unknown Status = iota
	Active
	Frozen
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Active:
		return "Active"
	case Frozen:
		return "Frozen"
	default:
		return "Unknown"
	}
}
