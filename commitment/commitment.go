// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package commitment authorizes large upgrade payloads by hash.
//
// The owner publishes only keccak256(payload) ahead of time:
//
//  1. COMMIT: the hash is written to a mutable register (the initial cut, or
//     the upgrade cut keyed by the protocol version it upgrades from)
//  2. REVEAL: a consumer presents the full payload
//  3. VERIFY: the payload is accepted only if its hash equals the register
//     value at the time of the reveal
//
// Registers are overwritten, never deleted. Overwriting a register silently
// invalidates any reveal prepared against the previous value.
package commitment

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/stm/utils/dbutil"
)

var (
	ErrCommitmentMismatch = errors.New("revealed payload does not match commitment")

	initialCutKey      = []byte("initialCut")
	upgradeCutPrefix   = []byte("upgradeCut:")
	protocolVersionKey = []byte("protocolVersion")
)

// ComputeCommitment returns the commitment for payload: keccak256(payload).
func ComputeCommitment(payload []byte) common.Hash {
	return common.Keccak256Hash(payload)
}

// VerifyCommitment reports whether payload hashes to commitment. The zero
// hash is never a valid commitment.
func VerifyCommitment(commitment common.Hash, payload []byte) bool {
	return commitment != (common.Hash{}) && ComputeCommitment(payload) == commitment
}

// Change records an overwritten register.
type Change struct {
	Old common.Hash
	New common.Hash
}

// VersionChange records a protocol version update.
type VersionChange struct {
	Old uint64
	New uint64
}

// Store holds the commitment registers and the protocol version counter. It
// does not lock; callers serialize access.
type Store struct {
	db database.Database

	totalCommits    atomic.Uint64
	totalReveals    atomic.Uint64
	totalMismatches atomic.Uint64
}

// New returns a store backed by db.
func New(db database.Database) *Store {
	return &Store{db: db}
}

// InitialCutHash returns the commitment every newly created chain is checked
// against.
func (s *Store) InitialCutHash() (common.Hash, error) {
	return dbutil.GetHash(s.db, initialCutKey)
}

// UpgradeCutHash returns the commitment for upgrading from fromVersion.
func (s *Store) UpgradeCutHash(fromVersion uint64) (common.Hash, error) {
	return dbutil.GetHash(s.db, upgradeCutKey(fromVersion))
}

// SetInitialCutHash overwrites the initial cut commitment with the hash of
// payload.
func (s *Store) SetInitialCutHash(payload []byte) (Change, error) {
	return s.commit(initialCutKey, payload)
}

// SetUpgradeCutHash overwrites the commitment for fromVersion with the hash
// of payload.
func (s *Store) SetUpgradeCutHash(payload []byte, fromVersion uint64) (Change, error) {
	return s.commit(upgradeCutKey(fromVersion), payload)
}

// VerifyInitialCut checks payload against the current initial cut commitment.
func (s *Store) VerifyInitialCut(payload []byte) error {
	return s.reveal(initialCutKey, payload)
}

// VerifyUpgradeCut checks payload against the current commitment for
// fromVersion.
func (s *Store) VerifyUpgradeCut(payload []byte, fromVersion uint64) error {
	if err := s.reveal(upgradeCutKey(fromVersion), payload); err != nil {
		return fmt.Errorf("upgrade from version %d: %w", fromVersion, err)
	}
	return nil
}

// ProtocolVersion returns the current protocol version.
func (s *Store) ProtocolVersion() (uint64, error) {
	return dbutil.GetUint64(s.db, protocolVersionKey)
}

// SetProtocolVersion overwrites the protocol version. No ordering between the
// old and new value is enforced here.
func (s *Store) SetProtocolVersion(version uint64) (VersionChange, error) {
	old, err := s.ProtocolVersion()
	if err != nil {
		return VersionChange{}, err
	}
	if err := dbutil.PutUint64(s.db, protocolVersionKey, version); err != nil {
		return VersionChange{}, err
	}
	return VersionChange{Old: old, New: version}, nil
}

func (s *Store) commit(key []byte, payload []byte) (Change, error) {
	old, err := dbutil.GetHash(s.db, key)
	if err != nil {
		return Change{}, err
	}
	hash := ComputeCommitment(payload)
	if err := dbutil.PutHash(s.db, key, hash); err != nil {
		return Change{}, err
	}
	s.totalCommits.Add(1)
	return Change{Old: old, New: hash}, nil
}

func (s *Store) reveal(key []byte, payload []byte) error {
	stored, err := dbutil.GetHash(s.db, key)
	if err != nil {
		return err
	}
	s.totalReveals.Add(1)
	if !VerifyCommitment(stored, payload) {
		s.totalMismatches.Add(1)
		return fmt.Errorf("%w: have %s, payload hashes to %s",
			ErrCommitmentMismatch, stored, ComputeCommitment(payload))
	}
	return nil
}

func upgradeCutKey(fromVersion uint64) []byte {
	return dbutil.Key(upgradeCutPrefix, dbutil.Uint64Key(fromVersion))
}

// Stats are running totals since the store was created. Attempts that were
// later rolled back by the caller are still counted.
type Stats struct {
	TotalCommits    uint64 `json:"totalCommits"`
	TotalReveals    uint64 `json:"totalReveals"`
	TotalMismatches uint64 `json:"totalMismatches"`
}

// Statistics returns commit-reveal statistics.
func (s *Store) Statistics() Stats {
	return Stats{
		TotalCommits:    s.totalCommits.Load(),
		TotalReveals:    s.totalReveals.Load(),
		TotalMismatches: s.totalMismatches.Load(),
	}
}
