// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package governance implements the owner/admin role state machine that gates
// every privileged manager operation.
//
// Both roles change hands in two steps. The current holder (or, for the admin
// role, either role holder) proposes a successor, and only that exact successor
// can accept. Accepting promotes the pending identity and clears the pending
// slot in the same write batch.
package governance

import (
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/stm/utils/dbutil"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyInitialized = errors.New("already initialized")

	ownerKey        = []byte("owner")
	pendingOwnerKey = []byte("pendingOwner")
	adminKey        = []byte("admin")
	pendingAdminKey = []byte("pendingAdmin")
	initializedKey  = []byte("initialized")
)

// Role names a governance slot.
type Role uint8

const (
	Owner Role = iota
	PendingOwner
	Admin
	PendingAdmin
)

func (r Role) String() string {
	switch r {
	case Owner:
		return "owner"
	case PendingOwner:
		return "pendingOwner"
	case Admin:
		return "admin"
	case PendingAdmin:
		return "pendingAdmin"
	default:
		return "unknown"
	}
}

func (r Role) key() []byte {
	switch r {
	case Owner:
		return ownerKey
	case PendingOwner:
		return pendingOwnerKey
	case Admin:
		return adminKey
	default:
		return pendingAdminKey
	}
}

// Change records the previous and new holder of a role.
type Change struct {
	Role Role
	Old  common.Address
	New  common.Address
}

// Roles stores the governance slots in db. Roles does not lock; callers
// serialize access and decide whether to commit the writes it makes.
type Roles struct {
	db database.Database
}

// New returns the role store backed by db.
func New(db database.Database) *Roles {
	return &Roles{db: db}
}

// Initialize sets the first owner. It can succeed exactly once per database.
func (r *Roles) Initialize(owner common.Address) (Change, error) {
	initialized, err := dbutil.GetBool(r.db, initializedKey)
	if err != nil {
		return Change{}, err
	}
	if initialized {
		return Change{}, ErrAlreadyInitialized
	}
	if owner == (common.Address{}) {
		return Change{}, fmt.Errorf("%w: owner is zero", ErrInvalidArgument)
	}
	if err := dbutil.PutBool(r.db, initializedKey, true); err != nil {
		return Change{}, err
	}
	return r.set(Owner, owner)
}

// Initialized reports whether Initialize has succeeded.
func (r *Roles) Initialized() (bool, error) {
	return dbutil.GetBool(r.db, initializedKey)
}

// Get returns the current holder of role.
func (r *Roles) Get(role Role) (common.Address, error) {
	return dbutil.GetAddress(r.db, role.key())
}

// RequireOwner fails unless caller is the owner.
func (r *Roles) RequireOwner(caller common.Address) error {
	owner, err := r.Get(Owner)
	if err != nil {
		return err
	}
	if caller == (common.Address{}) || caller != owner {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller)
	}
	return nil
}

// RequireOwnerOrAdmin fails unless caller holds the owner or admin role.
func (r *Roles) RequireOwnerOrAdmin(caller common.Address) error {
	if caller == (common.Address{}) {
		return fmt.Errorf("%w: zero caller", ErrUnauthorized)
	}
	owner, err := r.Get(Owner)
	if err != nil {
		return err
	}
	admin, err := r.Get(Admin)
	if err != nil {
		return err
	}
	if caller != owner && caller != admin {
		return fmt.Errorf("%w: %s is neither owner nor admin", ErrUnauthorized, caller)
	}
	return nil
}

// ProposeOwner records newOwner as the pending owner. Only the owner may
// propose; a later proposal replaces an earlier one.
func (r *Roles) ProposeOwner(caller, newOwner common.Address) (Change, error) {
	if err := r.RequireOwner(caller); err != nil {
		return Change{}, err
	}
	return r.set(PendingOwner, newOwner)
}

// AcceptOwner promotes the pending owner. caller must be that pending owner.
func (r *Roles) AcceptOwner(caller common.Address) (Change, error) {
	return r.accept(caller, PendingOwner, Owner)
}

// ProposeAdmin records newAdmin as the pending admin. The owner or the current
// admin may propose.
func (r *Roles) ProposeAdmin(caller, newAdmin common.Address) (Change, error) {
	if err := r.RequireOwnerOrAdmin(caller); err != nil {
		return Change{}, err
	}
	return r.set(PendingAdmin, newAdmin)
}

// AcceptAdmin promotes the pending admin. caller must be that pending admin.
func (r *Roles) AcceptAdmin(caller common.Address) (Change, error) {
	return r.accept(caller, PendingAdmin, Admin)
}

func (r *Roles) accept(caller common.Address, pendingRole, activeRole Role) (Change, error) {
	pending, err := r.Get(pendingRole)
	if err != nil {
		return Change{}, err
	}
	// An unset pending slot is the zero address, which no caller can be.
	if caller == (common.Address{}) || caller != pending {
		return Change{}, fmt.Errorf("%w: %s is not the %s", ErrUnauthorized, caller, pendingRole)
	}
	if err := dbutil.PutAddress(r.db, pendingRole.key(), common.Address{}); err != nil {
		return Change{}, err
	}
	return r.set(activeRole, pending)
}

func (r *Roles) set(role Role, addr common.Address) (Change, error) {
	old, err := r.Get(role)
	if err != nil {
		return Change{}, err
	}
	if err := dbutil.PutAddress(r.db, role.key(), addr); err != nil {
		return Change{}, err
	}
	return Change{Role: role, Old: old, New: addr}, nil
}
