// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api exposes the chain manager over JSON-RPC 2.0.
//
// Mutating methods take the acting identity as an explicit caller. The
// service is meant for operators and local networks; it authenticates
// nothing itself.
package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/log"

	"github.com/luxfi/stm/chain"
	"github.com/luxfi/stm/chains"
	"github.com/luxfi/stm/commitment"
	"github.com/luxfi/stm/cut"
)

// EmptyReply indicates that an api doesn't have a response to return.
type EmptyReply struct{}

// Service is the JSON-RPC service of the manager
type Service struct {
	log     log.Logger
	manager chains.Manager
}

// NewService returns a handler serving the "stm" service.
func NewService(log log.Logger, manager chains.Manager) (http.Handler, error) {
	server := rpc.NewServer()
	codec := json2.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return server, server.RegisterService(
		&Service{
			log:     log,
			manager: manager,
		},
		"stm",
	)
}

func (s *Service) called(method string) {
	s.log.Debug("API called",
		log.String("service", "stm"),
		log.String("method", method),
	)
}

// GovernanceReply is the governance state of the manager
type GovernanceReply struct {
	Owner              common.Address `json:"owner"`
	PendingOwner       common.Address `json:"pendingOwner"`
	Admin              common.Address `json:"admin"`
	PendingAdmin       common.Address `json:"pendingAdmin"`
	ValidatorAuthority common.Address `json:"validatorAuthority"`
	GenesisUpgrade     common.Address `json:"genesisUpgrade"`
}

// GetGovernance returns the holders of every role
func (s *Service) GetGovernance(_ *http.Request, _ *struct{}, reply *GovernanceReply) error {
	s.called("getGovernance")

	var err error
	if reply.Owner, err = s.manager.Owner(); err != nil {
		return err
	}
	if reply.PendingOwner, err = s.manager.PendingOwner(); err != nil {
		return err
	}
	if reply.Admin, err = s.manager.Admin(); err != nil {
		return err
	}
	if reply.PendingAdmin, err = s.manager.PendingAdmin(); err != nil {
		return err
	}
	if reply.ValidatorAuthority, err = s.manager.ValidatorAuthority(); err != nil {
		return err
	}
	reply.GenesisUpgrade, err = s.manager.GenesisUpgrade()
	return err
}

// CommitmentsReply is the commitment state of the manager
type CommitmentsReply struct {
	ProtocolVersion hexutil.Uint64   `json:"protocolVersion"`
	InitialCutHash  common.Hash      `json:"initialCutHash"`
	UpgradeCutHash  common.Hash      `json:"upgradeCutHash"`
	GenesisAnchor   common.Hash      `json:"genesisAnchor"`
	Statistics      commitment.Stats `json:"statistics"`
}

// GetCommitmentsArgs are the arguments to GetCommitments
type GetCommitmentsArgs struct {
	// FromVersion selects the upgrade commitment to return
	FromVersion hexutil.Uint64 `json:"fromVersion"`
}

// GetCommitments returns the protocol version and the commitments
func (s *Service) GetCommitments(_ *http.Request, args *GetCommitmentsArgs, reply *CommitmentsReply) error {
	s.called("getCommitments")

	version, err := s.manager.ProtocolVersion()
	if err != nil {
		return err
	}
	reply.ProtocolVersion = hexutil.Uint64(version)
	if reply.InitialCutHash, err = s.manager.InitialCutHash(); err != nil {
		return err
	}
	if reply.UpgradeCutHash, err = s.manager.UpgradeCutHash(uint64(args.FromVersion)); err != nil {
		return err
	}
	if reply.GenesisAnchor, err = s.manager.GenesisAnchor(); err != nil {
		return err
	}
	reply.Statistics = s.manager.Statistics()
	return nil
}

// ChainArgs select a registered chain
type ChainArgs struct {
	ChainID hexutil.Uint64 `json:"chainID"`
}

// AddressReply is a single address
type AddressReply struct {
	Address common.Address `json:"address"`
}

// GetChain returns the address registered for a chain id
func (s *Service) GetChain(_ *http.Request, args *ChainArgs, reply *AddressReply) error {
	s.called("getChain")

	addr, err := s.manager.GetChain(uint64(args.ChainID))
	reply.Address = addr
	return err
}

// GetChainAdmin returns the admin reported by a registered chain
func (s *Service) GetChainAdmin(r *http.Request, args *ChainArgs, reply *AddressReply) error {
	s.called("getChainAdmin")

	addr, err := s.manager.GetChainAdmin(r.Context(), uint64(args.ChainID))
	reply.Address = addr
	return err
}

// ChainIDsReply lists registered chain ids
type ChainIDsReply struct {
	ChainIDs []hexutil.Uint64 `json:"chainIDs"`
}

// GetChainIDs returns every registered chain id in ascending order
func (s *Service) GetChainIDs(_ *http.Request, _ *struct{}, reply *ChainIDsReply) error {
	s.called("getChainIDs")

	chainIDs, err := s.manager.ChainIDs()
	if err != nil {
		return err
	}
	reply.ChainIDs = make([]hexutil.Uint64, len(chainIDs))
	for i, chainID := range chainIDs {
		reply.ChainIDs[i] = hexutil.Uint64(chainID)
	}
	return nil
}

// CreateChainArgs are the arguments to CreateChain and PredictChainAddress
type CreateChainArgs struct {
	Caller    common.Address `json:"caller"`
	ChainID   hexutil.Uint64 `json:"chainID"`
	BaseToken common.Address `json:"baseToken"`
	Bridge    common.Address `json:"bridge"`
	Admin     common.Address `json:"admin"`
	Cut       hexutil.Bytes  `json:"cut"`
}

func (a *CreateChainArgs) params() chains.CreateChainParams {
	return chains.CreateChainParams{
		ChainID:   uint64(a.ChainID),
		BaseToken: a.BaseToken,
		Bridge:    a.Bridge,
		Admin:     a.Admin,
		Cut:       a.Cut,
	}
}

// CreateChain deploys and registers a chain
func (s *Service) CreateChain(r *http.Request, args *CreateChainArgs, reply *AddressReply) error {
	s.called("createChain")

	addr, err := s.manager.CreateChain(r.Context(), args.Caller, args.params())
	reply.Address = addr
	return err
}

// PredictChainAddress returns the address CreateChain would deploy at
func (s *Service) PredictChainAddress(_ *http.Request, args *CreateChainArgs, reply *AddressReply) error {
	s.called("predictChainAddress")

	addr, err := s.manager.PredictChainAddress(args.params())
	reply.Address = addr
	return err
}

// CallerArgs identify the acting identity
type CallerArgs struct {
	Caller common.Address `json:"caller"`
}

// AddressArgs carry an identity to assign
type AddressArgs struct {
	Caller  common.Address `json:"caller"`
	Address common.Address `json:"address"`
}

// ProposeOwner nominates the next owner
func (s *Service) ProposeOwner(r *http.Request, args *AddressArgs, _ *EmptyReply) error {
	s.called("proposeOwner")
	return s.manager.ProposeOwner(r.Context(), args.Caller, args.Address)
}

// AcceptOwner completes an ownership transfer
func (s *Service) AcceptOwner(r *http.Request, args *CallerArgs, _ *EmptyReply) error {
	s.called("acceptOwner")
	return s.manager.AcceptOwner(r.Context(), args.Caller)
}

// ProposeAdmin nominates the next admin
func (s *Service) ProposeAdmin(r *http.Request, args *AddressArgs, _ *EmptyReply) error {
	s.called("proposeAdmin")
	return s.manager.ProposeAdmin(r.Context(), args.Caller, args.Address)
}

// AcceptAdmin completes an admin transfer
func (s *Service) AcceptAdmin(r *http.Request, args *CallerArgs, _ *EmptyReply) error {
	s.called("acceptAdmin")
	return s.manager.AcceptAdmin(r.Context(), args.Caller)
}

// SetValidatorAuthority replaces the validator authority of future chains
func (s *Service) SetValidatorAuthority(r *http.Request, args *AddressArgs, _ *EmptyReply) error {
	s.called("setValidatorAuthority")
	return s.manager.SetValidatorAuthority(r.Context(), args.Caller, args.Address)
}

// CommitArgs carry a payload to commit
type CommitArgs struct {
	Caller      common.Address `json:"caller"`
	Payload     hexutil.Bytes  `json:"payload"`
	FromVersion hexutil.Uint64 `json:"fromVersion"`
	ToVersion   hexutil.Uint64 `json:"toVersion"`
}

// SetInitialCutHash commits the initial cut of new chains
func (s *Service) SetInitialCutHash(r *http.Request, args *CommitArgs, _ *EmptyReply) error {
	s.called("setInitialCutHash")
	return s.manager.SetInitialCutHash(r.Context(), args.Caller, args.Payload)
}

// SetUpgradeCutHash commits the upgrade from FromVersion
func (s *Service) SetUpgradeCutHash(r *http.Request, args *CommitArgs, _ *EmptyReply) error {
	s.called("setUpgradeCutHash")
	return s.manager.SetUpgradeCutHash(r.Context(), args.Caller, args.Payload, uint64(args.FromVersion))
}

// SetNewVersionUpgrade commits the upgrade from FromVersion and moves to
// ToVersion
func (s *Service) SetNewVersionUpgrade(r *http.Request, args *CommitArgs, _ *EmptyReply) error {
	s.called("setNewVersionUpgrade")
	return s.manager.SetNewVersionUpgrade(r.Context(), args.Caller, args.Payload, uint64(args.FromVersion), uint64(args.ToVersion))
}

// RegisterChainArgs bind a chain deployed elsewhere
type RegisterChainArgs struct {
	Caller  common.Address `json:"caller"`
	ChainID hexutil.Uint64 `json:"chainID"`
	Address common.Address `json:"address"`
}

// RegisterExistingChain binds a chain id to an existing chain
func (s *Service) RegisterExistingChain(r *http.Request, args *RegisterChainArgs, _ *EmptyReply) error {
	s.called("registerExistingChain")
	return s.manager.RegisterExistingChain(r.Context(), args.Caller, uint64(args.ChainID), args.Address)
}

// ChainControlArgs are the arguments of the chain controls
type ChainControlArgs struct {
	Caller       common.Address  `json:"caller"`
	ChainID      hexutil.Uint64  `json:"chainID"`
	NewLastBatch hexutil.Uint64  `json:"newLastBatch"`
	FromVersion  hexutil.Uint64  `json:"fromVersion"`
	Cut          hexutil.Bytes   `json:"cut"`
	FeeParams    chain.FeeParams `json:"feeParams"`
	GasLimit     hexutil.Uint64  `json:"gasLimit"`
	Validator    common.Address  `json:"validator"`
	Active       bool            `json:"active"`
}

// FreezeChain freezes a chain
func (s *Service) FreezeChain(r *http.Request, args *ChainControlArgs, _ *EmptyReply) error {
	s.called("freezeChain")
	return s.manager.FreezeChain(r.Context(), args.Caller, uint64(args.ChainID))
}

// UnfreezeChain unfreezes a chain
func (s *Service) UnfreezeChain(r *http.Request, args *ChainControlArgs, _ *EmptyReply) error {
	s.called("unfreezeChain")
	return s.manager.UnfreezeChain(r.Context(), args.Caller, uint64(args.ChainID))
}

// RevertBatches reverts the unexecuted batches of a chain
func (s *Service) RevertBatches(r *http.Request, args *ChainControlArgs, _ *EmptyReply) error {
	s.called("revertBatches")
	return s.manager.RevertBatches(r.Context(), args.Caller, uint64(args.ChainID), uint64(args.NewLastBatch))
}

// ExecuteUpgrade applies a cut to a chain
func (s *Service) ExecuteUpgrade(r *http.Request, args *ChainControlArgs, _ *EmptyReply) error {
	s.called("executeUpgrade")

	c, err := cut.Parse(args.Cut)
	if err != nil {
		return fmt.Errorf("%w: %w", chains.ErrInvalidArgument, err)
	}
	return s.manager.ExecuteUpgrade(r.Context(), args.Caller, uint64(args.ChainID), c)
}

// UpgradeChainFromVersion applies the committed upgrade from FromVersion
func (s *Service) UpgradeChainFromVersion(r *http.Request, args *ChainControlArgs, _ *EmptyReply) error {
	s.called("upgradeChainFromVersion")
	return s.manager.UpgradeChainFromVersion(r.Context(), args.Caller, uint64(args.ChainID), uint64(args.FromVersion), args.Cut)
}

// ChangeFeeParams replaces the fee parameters of a chain
func (s *Service) ChangeFeeParams(r *http.Request, args *ChainControlArgs, _ *EmptyReply) error {
	s.called("changeFeeParams")
	return s.manager.ChangeFeeParams(r.Context(), args.Caller, uint64(args.ChainID), args.FeeParams)
}

// SetPriorityTxMaxGasLimit replaces the priority transaction gas limit of a
// chain
func (s *Service) SetPriorityTxMaxGasLimit(r *http.Request, args *ChainControlArgs, _ *EmptyReply) error {
	s.called("setPriorityTxMaxGasLimit")
	return s.manager.SetPriorityTxMaxGasLimit(r.Context(), args.Caller, uint64(args.ChainID), uint64(args.GasLimit))
}

// SetValidator adds or removes a validator of a chain
func (s *Service) SetValidator(r *http.Request, args *ChainControlArgs, _ *EmptyReply) error {
	s.called("setValidator")
	return s.manager.SetValidator(r.Context(), args.Caller, uint64(args.ChainID), args.Validator, args.Active)
}

// SetPorterAvailability toggles porter availability of a chain
func (s *Service) SetPorterAvailability(r *http.Request, args *ChainControlArgs, _ *EmptyReply) error {
	s.called("setPorterAvailability")
	return s.manager.SetPorterAvailability(r.Context(), args.Caller, uint64(args.ChainID), args.Active)
}
