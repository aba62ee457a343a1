// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chains

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/luxfi/cache"
	"github.com/luxfi/cache/lru"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/event"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/stm/chain"
	"github.com/luxfi/stm/commitment"
	"github.com/luxfi/stm/cut"
	"github.com/luxfi/stm/genesis"
	"github.com/luxfi/stm/governance"
	"github.com/luxfi/stm/registry"
	"github.com/luxfi/stm/upgrade"
	"github.com/luxfi/stm/utils/dbutil"
)

var (
	ErrUnauthorized       = governance.ErrUnauthorized
	ErrInvalidArgument    = governance.ErrInvalidArgument
	ErrAlreadyInitialized = governance.ErrAlreadyInitialized
	ErrCommitmentMismatch = commitment.ErrCommitmentMismatch

	ErrNotInitialized = errors.New("manager is not initialized")
	ErrUnknownChain   = errors.New("unknown chain")
	ErrReentrantCall  = errors.New("reentrant call into manager")

	errMissingDeployer = errors.New("missing chain deployer")
	errMissingDB       = errors.New("missing database")

	governancePrefix = []byte("governance")
	commitmentPrefix = []byte("commitment")
	registryPrefix   = []byte("registry")
	configPrefix     = []byte("config")

	genesisAnchorKey      = []byte("genesisAnchor")
	genesisUpgradeKey     = []byte("genesisUpgrade")
	validatorAuthorityKey = []byte("validatorAuthority")

	_ Manager = (*manager)(nil)
)

const chainCacheSize = 1024

// Manager manages the chains built on one set of logic modules.
// It can:
//   - Create a chain from a committed initial cut and register it
//   - Register a chain that was deployed elsewhere
//   - Forward operational controls to registered chains
//   - Run the owner/admin governance of all of the above
//
// Operations are totally ordered. Each one either commits all of its effects
// or none of them; events are published only for committed operations.
// Getters read the last committed state and never wait for a running
// operation. Events and registrations are delivered in commit order once the
// operation has released the manager, so subscribers and registrants may
// call back into it.
type Manager interface {
	// Initialize sets the owner and the values every created chain starts
	// from. It succeeds at most once.
	Initialize(ctx context.Context, params InitParams) error

	Owner() (common.Address, error)
	PendingOwner() (common.Address, error)
	Admin() (common.Address, error)
	PendingAdmin() (common.Address, error)
	ValidatorAuthority() (common.Address, error)
	GenesisUpgrade() (common.Address, error)
	GenesisAnchor() (common.Hash, error)
	ProtocolVersion() (uint64, error)
	InitialCutHash() (common.Hash, error)
	UpgradeCutHash(fromVersion uint64) (common.Hash, error)
	Statistics() commitment.Stats

	ProposeOwner(ctx context.Context, caller, newOwner common.Address) error
	AcceptOwner(ctx context.Context, caller common.Address) error
	ProposeAdmin(ctx context.Context, caller, newAdmin common.Address) error
	AcceptAdmin(ctx context.Context, caller common.Address) error

	SetValidatorAuthority(ctx context.Context, caller, authority common.Address) error
	SetInitialCutHash(ctx context.Context, caller common.Address, payload []byte) error
	SetUpgradeCutHash(ctx context.Context, caller common.Address, payload []byte, fromVersion uint64) error
	// SetNewVersionUpgrade commits payload as the upgrade from oldVersion and
	// moves the protocol version to newVersion in one operation.
	SetNewVersionUpgrade(ctx context.Context, caller common.Address, payload []byte, oldVersion, newVersion uint64) error

	// RegisterExistingChain binds chainID to a chain deployed elsewhere. An
	// address already registered under another chain id is rejected.
	RegisterExistingChain(ctx context.Context, caller common.Address, chainID uint64, addr common.Address) error
	// CreateChain deploys, registers and assigns the identity of a new chain.
	// Creating an already registered chain id is a no-op that returns the
	// registered address.
	CreateChain(ctx context.Context, caller common.Address, params CreateChainParams) (common.Address, error)
	// PredictChainAddress returns the address CreateChain would deploy params
	// at in the current state.
	PredictChainAddress(params CreateChainParams) (common.Address, error)

	GetChain(chainID uint64) (common.Address, error)
	ChainIDs() ([]uint64, error)
	GetChainAdmin(ctx context.Context, chainID uint64) (common.Address, error)

	FreezeChain(ctx context.Context, caller common.Address, chainID uint64) error
	UnfreezeChain(ctx context.Context, caller common.Address, chainID uint64) error
	RevertBatches(ctx context.Context, caller common.Address, chainID, newLastBatch uint64) error
	ExecuteUpgrade(ctx context.Context, caller common.Address, chainID uint64, c *cut.Cut) error
	// UpgradeChainFromVersion applies payload to the chain if it matches the
	// upgrade committed for fromVersion at the time of the call.
	UpgradeChainFromVersion(ctx context.Context, caller common.Address, chainID, fromVersion uint64, payload []byte) error
	ChangeFeeParams(ctx context.Context, caller common.Address, chainID uint64, params chain.FeeParams) error
	SetPriorityTxMaxGasLimit(ctx context.Context, caller common.Address, chainID, limit uint64) error
	SetValidator(ctx context.Context, caller common.Address, chainID uint64, validator common.Address, active bool) error
	SetPorterAvailability(ctx context.Context, caller common.Address, chainID uint64, available bool) error

	// Add a registrant [r]. Every time a chain is
	// created, [r].RegisterChain([new chain]) is called.
	AddRegistrant(Registrant)
	// SubscribeEvents delivers every committed Event to ch, in commit order.
	// Deliveries run without the manager lock, so ch may be unbuffered.
	SubscribeEvents(ch chan<- Event) event.Subscription
}

type ManagerConfig struct {
	Log        log.Logger
	Registerer metric.Registerer
	DB         database.Database
	Deployer   chain.Deployer

	// Self is the identity chains see as their manager
	Self common.Address
	// Registrar is the only identity allowed to create chains
	Registrar common.Address
	// NetworkID and Salt select the deployment addresses of new chains
	NetworkID uint64
	Salt      common.Hash
}

// InitParams are the one-time initialization values.
type InitParams struct {
	Owner              common.Address `json:"owner"`
	ValidatorAuthority common.Address `json:"validatorAuthority"`
	// GenesisUpgrade applies the identity assignment on new chains
	GenesisUpgrade  common.Address `json:"genesisUpgrade"`
	Genesis         genesis.Params `json:"genesis"`
	ProtocolVersion uint64         `json:"protocolVersion"`
	// InitialCut, if set, is committed as the initial cut
	InitialCut []byte `json:"initialCut,omitempty"`
}

// CreateChainParams describe a new chain.
type CreateChainParams struct {
	ChainID   uint64         `json:"chainID"`
	BaseToken common.Address `json:"baseToken"`
	Bridge    common.Address `json:"bridge"`
	Admin     common.Address `json:"admin"`
	// Cut is the revealed initial cut payload
	Cut []byte `json:"cut"`
}

// view is the manager state stored in one database.
type view struct {
	roles       *governance.Roles
	commitments *commitment.Store
	registry    *registry.Registry
	settings    database.Database
}

func newView(db database.Database) view {
	return view{
		roles:       governance.New(prefixdb.New(governancePrefix, db)),
		commitments: commitment.New(prefixdb.New(commitmentPrefix, db)),
		registry:    registry.New(prefixdb.New(registryPrefix, db)),
		settings:    prefixdb.New(configPrefix, db),
	}
}

type manager struct {
	config  ManagerConfig
	log     log.Logger
	metrics *managerMetrics

	// Note: The manager lock must be held when accessing the state below
	lock        sync.Mutex
	db          *versiondb.Database
	state       view
	registrants []Registrant

	// committed reads the last committed state straight from the database.
	// Getters use it without the manager lock.
	committed view

	// address -> deployed chain
	chainCache cache.Cacher[common.Address, chain.Chain]

	notifier notifier
	feed     event.Feed
}

// New returns a new Manager
func New(config *ManagerConfig) (Manager, error) {
	if config.DB == nil {
		return nil, errMissingDB
	}
	if config.Deployer == nil {
		return nil, errMissingDeployer
	}
	if config.Self == (common.Address{}) || config.Registrar == (common.Address{}) {
		return nil, fmt.Errorf("%w: manager and registrar identities must be set", ErrInvalidArgument)
	}

	logger := config.Log
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	registerer := config.Registerer
	if registerer == nil {
		registerer = metric.NewNoOpRegistry()
	}
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, fmt.Errorf("couldn't register manager metrics: %w", err)
	}

	vdb := versiondb.New(config.DB)
	mgr := &manager{
		config:     *config,
		log:        logger,
		metrics:    m,
		db:         vdb,
		state:      newView(vdb),
		committed:  newView(config.DB),
		chainCache: lru.NewCache[common.Address, chain.Chain](chainCacheSize),
	}

	version, err := mgr.committed.commitments.ProtocolVersion()
	if err != nil {
		return nil, err
	}
	chainIDs, err := mgr.committed.registry.ChainIDs()
	if err != nil {
		return nil, err
	}
	m.protocolVersion.Set(float64(version))
	m.registeredChains.Set(float64(len(chainIDs)))
	return mgr, nil
}

// op collects the effects of one operation that become visible only once it
// commits.
type op struct {
	ctx         context.Context
	events      []Event
	created     []chain.Chain
	createdIDs  []uint64
	onAbort     []func()
	onCommit    []func()
	initialized bool
}

func (o *op) emit(e Event) {
	o.events = append(o.events, e)
}

type guardKey struct{}

func (m *manager) guarded(ctx context.Context) bool {
	owner, _ := ctx.Value(guardKey{}).(*manager)
	return owner == m
}

// execute runs f as one atomic operation. External calls made by f receive
// o.ctx, which marks them as running inside this manager so that a callee
// re-entering a mutating operation or GetChainAdmin fails instead of
// deadlocking. Committed events and registrations are delivered after the
// manager lock is released.
func (m *manager) execute(ctx context.Context, requireInitialized bool, f func(o *op) error) error {
	if m.guarded(ctx) {
		return ErrReentrantCall
	}
	if err := m.commit(ctx, requireInitialized, f); err != nil {
		return err
	}
	m.notifier.deliver()
	return nil
}

func (m *manager) commit(ctx context.Context, requireInitialized bool, f func(o *op) error) (err error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	o := &op{ctx: context.WithValue(ctx, guardKey{}, m)}
	committed := false
	defer func() {
		if !committed {
			m.abort(o, err)
		}
	}()

	if err = m.run(o, requireInitialized, f); err != nil {
		return err
	}
	committed = true

	for _, commit := range o.onCommit {
		commit()
	}
	m.enqueue(o)
	return nil
}

// abort drops the uncommitted writes of o. err is nil if f panicked.
func (m *manager) abort(o *op, err error) {
	m.db.Abort()
	for i := len(o.onAbort) - 1; i >= 0; i-- {
		o.onAbort[i]()
	}
	if errors.Is(err, ErrCommitmentMismatch) {
		m.metrics.commitmentMismatches.Inc()
	}
}

// enqueue schedules the delivery of the effects of o. Must be called with
// the manager lock held so that deliveries follow commit order.
func (m *manager) enqueue(o *op) {
	for _, e := range o.events {
		m.notifier.enqueue(func() {
			m.feed.Send(e)
		})
	}
	registrants := slices.Clone(m.registrants)
	for i, c := range o.created {
		chainID := o.createdIDs[i]
		for _, r := range registrants {
			m.notifier.enqueue(func() {
				r.RegisterChain(chainID, c)
			})
		}
	}
}

func (m *manager) run(o *op, requireInitialized bool, f func(o *op) error) error {
	if requireInitialized {
		initialized, err := m.state.roles.Initialized()
		if err != nil {
			return err
		}
		if !initialized {
			return ErrNotInitialized
		}
	}
	if err := f(o); err != nil {
		return err
	}
	return m.db.Commit()
}

func (m *manager) Initialize(ctx context.Context, params InitParams) error {
	return m.execute(ctx, false, func(o *op) error {
		ownerChange, err := m.state.roles.Initialize(params.Owner)
		if err != nil {
			return err
		}
		if params.GenesisUpgrade == (common.Address{}) {
			return fmt.Errorf("%w: genesis upgrade is zero", ErrInvalidArgument)
		}
		anchor, err := genesis.Anchor(params.Genesis)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		if err := dbutil.PutHash(m.state.settings, genesisAnchorKey, anchor); err != nil {
			return err
		}
		if err := dbutil.PutAddress(m.state.settings, genesisUpgradeKey, params.GenesisUpgrade); err != nil {
			return err
		}
		o.emit(addressEvent(OwnershipTransferred, ownerChange.Old, ownerChange.New))

		if err := m.setValidatorAuthority(o, params.ValidatorAuthority); err != nil {
			return err
		}
		if err := m.setProtocolVersion(o, params.ProtocolVersion); err != nil {
			return err
		}
		if len(params.InitialCut) > 0 {
			if _, err := cut.Parse(params.InitialCut); err != nil {
				return fmt.Errorf("%w: initial cut: %w", ErrInvalidArgument, err)
			}
			if err := m.setInitialCutHash(o, params.InitialCut); err != nil {
				return err
			}
		}

		o.onCommit = append(o.onCommit, func() {
			m.log.Info("initialized chain manager",
				log.Stringer("owner", params.Owner),
				log.Stringer("genesisAnchor", anchor),
				log.Uint64("protocolVersion", params.ProtocolVersion),
			)
		})
		return nil
	})
}

func (m *manager) Owner() (common.Address, error) {
	return m.role(governance.Owner)
}

func (m *manager) PendingOwner() (common.Address, error) {
	return m.role(governance.PendingOwner)
}

func (m *manager) Admin() (common.Address, error) {
	return m.role(governance.Admin)
}

func (m *manager) PendingAdmin() (common.Address, error) {
	return m.role(governance.PendingAdmin)
}

func (m *manager) role(role governance.Role) (common.Address, error) {
	return m.committed.roles.Get(role)
}

func (m *manager) ValidatorAuthority() (common.Address, error) {
	return dbutil.GetAddress(m.committed.settings, validatorAuthorityKey)
}

func (m *manager) GenesisUpgrade() (common.Address, error) {
	return dbutil.GetAddress(m.committed.settings, genesisUpgradeKey)
}

func (m *manager) GenesisAnchor() (common.Hash, error) {
	return dbutil.GetHash(m.committed.settings, genesisAnchorKey)
}

func (m *manager) ProtocolVersion() (uint64, error) {
	return m.committed.commitments.ProtocolVersion()
}

func (m *manager) InitialCutHash() (common.Hash, error) {
	return m.committed.commitments.InitialCutHash()
}

func (m *manager) UpgradeCutHash(fromVersion uint64) (common.Hash, error) {
	return m.committed.commitments.UpgradeCutHash(fromVersion)
}

func (m *manager) Statistics() commitment.Stats {
	return m.state.commitments.Statistics()
}

func (m *manager) ProposeOwner(ctx context.Context, caller, newOwner common.Address) error {
	return m.execute(ctx, true, func(o *op) error {
		change, err := m.state.roles.ProposeOwner(caller, newOwner)
		if err != nil {
			return err
		}
		o.emit(addressEvent(OwnershipTransferStarted, change.Old, change.New))
		return nil
	})
}

func (m *manager) AcceptOwner(ctx context.Context, caller common.Address) error {
	return m.execute(ctx, true, func(o *op) error {
		change, err := m.state.roles.AcceptOwner(caller)
		if err != nil {
			return err
		}
		o.emit(addressEvent(OwnershipTransferred, change.Old, change.New))
		return nil
	})
}

func (m *manager) ProposeAdmin(ctx context.Context, caller, newAdmin common.Address) error {
	return m.execute(ctx, true, func(o *op) error {
		change, err := m.state.roles.ProposeAdmin(caller, newAdmin)
		if err != nil {
			return err
		}
		o.emit(addressEvent(NewPendingAdmin, change.Old, change.New))
		return nil
	})
}

func (m *manager) AcceptAdmin(ctx context.Context, caller common.Address) error {
	return m.execute(ctx, true, func(o *op) error {
		change, err := m.state.roles.AcceptAdmin(caller)
		if err != nil {
			return err
		}
		o.emit(addressEvent(NewAdmin, change.Old, change.New))
		return nil
	})
}

func (m *manager) SetValidatorAuthority(ctx context.Context, caller, authority common.Address) error {
	return m.execute(ctx, true, func(o *op) error {
		if err := m.state.roles.RequireOwner(caller); err != nil {
			return err
		}
		return m.setValidatorAuthority(o, authority)
	})
}

func (m *manager) setValidatorAuthority(o *op, authority common.Address) error {
	old, err := dbutil.GetAddress(m.state.settings, validatorAuthorityKey)
	if err != nil {
		return err
	}
	if err := dbutil.PutAddress(m.state.settings, validatorAuthorityKey, authority); err != nil {
		return err
	}
	o.emit(addressEvent(NewValidatorAuthority, old, authority))
	return nil
}

func (m *manager) SetInitialCutHash(ctx context.Context, caller common.Address, payload []byte) error {
	return m.execute(ctx, true, func(o *op) error {
		if err := m.state.roles.RequireOwner(caller); err != nil {
			return err
		}
		return m.setInitialCutHash(o, payload)
	})
}

func (m *manager) setInitialCutHash(o *op, payload []byte) error {
	change, err := m.state.commitments.SetInitialCutHash(payload)
	if err != nil {
		return err
	}
	o.emit(Event{
		Kind: NewInitialCutHash,
		Old:  change.Old,
		New:  change.New,
	})
	return nil
}

func (m *manager) SetUpgradeCutHash(ctx context.Context, caller common.Address, payload []byte, fromVersion uint64) error {
	return m.execute(ctx, true, func(o *op) error {
		if err := m.state.roles.RequireOwner(caller); err != nil {
			return err
		}
		return m.setUpgradeCutHash(o, payload, fromVersion)
	})
}

func (m *manager) setUpgradeCutHash(o *op, payload []byte, fromVersion uint64) error {
	change, err := m.state.commitments.SetUpgradeCutHash(payload, fromVersion)
	if err != nil {
		return err
	}
	o.emit(Event{
		Kind:    NewUpgradeCutHash,
		Version: fromVersion,
		Old:     change.Old,
		New:     change.New,
	})
	return nil
}

func (m *manager) SetNewVersionUpgrade(ctx context.Context, caller common.Address, payload []byte, oldVersion, newVersion uint64) error {
	return m.execute(ctx, true, func(o *op) error {
		if err := m.state.roles.RequireOwner(caller); err != nil {
			return err
		}
		if err := m.setUpgradeCutHash(o, payload, oldVersion); err != nil {
			return err
		}
		return m.setProtocolVersion(o, newVersion)
	})
}

func (m *manager) setProtocolVersion(o *op, version uint64) error {
	change, err := m.state.commitments.SetProtocolVersion(version)
	if err != nil {
		return err
	}
	o.emit(versionEvent(change.Old, change.New))
	o.onCommit = append(o.onCommit, func() {
		m.metrics.protocolVersion.Set(float64(change.New))
	})
	return nil
}

func (m *manager) RegisterExistingChain(ctx context.Context, caller common.Address, chainID uint64, addr common.Address) error {
	return m.execute(ctx, true, func(o *op) error {
		if err := m.state.roles.RequireOwner(caller); err != nil {
			return err
		}
		if chainID == 0 {
			return fmt.Errorf("%w: chain id is zero", ErrInvalidArgument)
		}
		if addr == (common.Address{}) {
			return fmt.Errorf("%w: chain address is zero", ErrInvalidArgument)
		}
		binding, err := m.bind(chainID, addr)
		if err != nil {
			return err
		}
		o.emit(Event{
			Kind:    NewChain,
			ChainID: chainID,
			Old:     common.BytesToHash(binding.Old.Bytes()),
			New:     common.BytesToHash(binding.New.Bytes()),
			Address: addr,
		})
		o.onCommit = append(o.onCommit, func() {
			m.metrics.chainsRegistered.Inc()
			if binding.Old == (common.Address{}) {
				m.metrics.registeredChains.Inc()
			}
			m.log.Info("registered existing chain",
				log.Uint64("chainID", chainID),
				log.Stringer("address", addr),
				log.Stringer("previous", binding.Old),
			)
		})
		return nil
	})
}

func (m *manager) bind(chainID uint64, addr common.Address) (registry.Binding, error) {
	binding, err := m.state.registry.Bind(chainID, addr)
	if errors.Is(err, registry.ErrAddressInUse) {
		return registry.Binding{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return binding, err
}

func (m *manager) CreateChain(ctx context.Context, caller common.Address, params CreateChainParams) (common.Address, error) {
	var addr common.Address
	err := m.execute(ctx, true, func(o *op) error {
		if caller != m.config.Registrar {
			return fmt.Errorf("%w: %s is not the registrar", ErrUnauthorized, caller)
		}

		existing, err := m.state.registry.Get(params.ChainID)
		if err != nil {
			return err
		}
		if existing != (common.Address{}) {
			addr = existing
			return nil
		}

		if err := m.state.commitments.VerifyInitialCut(params.Cut); err != nil {
			return err
		}
		req, record, err := m.deployRequest(m.state, params)
		if err != nil {
			return err
		}

		deployed, err := m.config.Deployer.Deploy(o.ctx, req)
		if err != nil {
			return fmt.Errorf("failed to deploy chain %d: %w", params.ChainID, err)
		}
		addr = deployed.Address()
		o.onAbort = append(o.onAbort, func() {
			m.chainCache.Evict(addr)
			if err := m.config.Deployer.Discard(context.Background(), addr); err != nil {
				m.log.Error("failed to discard chain",
					log.Uint64("chainID", params.ChainID),
					log.Stringer("address", addr),
					log.Err(err),
				)
			}
		})

		if _, err := m.bind(params.ChainID, addr); err != nil {
			return err
		}

		genesisUpgrade, err := dbutil.GetAddress(m.state.settings, genesisUpgradeKey)
		if err != nil {
			return err
		}
		upgradeCut, tx := upgrade.NewChainIDUpgrade(params.ChainID, record.ProtocolVersion, genesisUpgrade)
		if err := deployed.ExecuteUpgrade(o.ctx, m.config.Self, upgradeCut); err != nil {
			return fmt.Errorf("failed to assign chain id %d: %w", params.ChainID, err)
		}

		o.emit(Event{
			Kind:    NewChain,
			ChainID: params.ChainID,
			New:     common.BytesToHash(addr.Bytes()),
			Address: addr,
		})
		o.emit(Event{
			Kind:    GenesisUpgrade,
			ChainID: params.ChainID,
			Version: record.ProtocolVersion,
			Address: addr,
			Tx:      tx,
		})
		o.created = append(o.created, deployed)
		o.createdIDs = append(o.createdIDs, params.ChainID)
		o.onCommit = append(o.onCommit, func() {
			m.metrics.chainsCreated.Inc()
			m.metrics.upgradesDispatched.Inc()
			m.metrics.registeredChains.Inc()
			m.log.Info("created chain",
				log.Uint64("chainID", params.ChainID),
				log.Stringer("address", addr),
				log.Uint64("protocolVersion", record.ProtocolVersion),
				log.Stringer("upgradeTx", tx.Hash()),
			)
		})
		return nil
	})
	if err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

func (m *manager) PredictChainAddress(params CreateChainParams) (common.Address, error) {
	initialized, err := m.committed.roles.Initialized()
	if err != nil {
		return common.Address{}, err
	}
	if !initialized {
		return common.Address{}, ErrNotInitialized
	}
	req, _, err := m.deployRequest(m.committed, params)
	if err != nil {
		return common.Address{}, err
	}
	return m.config.Deployer.Address(req), nil
}

// deployRequest decodes the cut and builds the positional initializer every
// new chain parses, from the state in v.
func (m *manager) deployRequest(v view, params CreateChainParams) (*chain.DeployRequest, *chain.InitRecord, error) {
	if params.ChainID == 0 {
		return nil, nil, fmt.Errorf("%w: chain id is zero", ErrInvalidArgument)
	}
	if params.Admin == (common.Address{}) {
		return nil, nil, fmt.Errorf("%w: chain admin is zero", ErrInvalidArgument)
	}
	c, err := cut.Parse(params.Cut)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	version, err := v.commitments.ProtocolVersion()
	if err != nil {
		return nil, nil, err
	}
	authority, err := dbutil.GetAddress(v.settings, validatorAuthorityKey)
	if err != nil {
		return nil, nil, err
	}
	anchor, err := dbutil.GetHash(v.settings, genesisAnchorKey)
	if err != nil {
		return nil, nil, err
	}

	record := &chain.InitRecord{
		ChainID:            params.ChainID,
		Manager:            m.config.Self,
		Registry:           m.config.Registrar,
		ProtocolVersion:    version,
		Admin:              params.Admin,
		ValidatorAuthority: authority,
		BaseToken:          params.BaseToken,
		Bridge:             params.Bridge,
		GenesisAnchor:      anchor,
		Extension:          c.InitCalldata,
	}
	return &chain.DeployRequest{
		NetworkID: m.config.NetworkID,
		Salt:      m.config.Salt,
		Cut: &cut.Cut{
			FacetCuts:    c.FacetCuts,
			InitAddress:  c.InitAddress,
			InitCalldata: record.Calldata(),
		},
	}, record, nil
}

func (m *manager) GetChain(chainID uint64) (common.Address, error) {
	return m.committed.registry.Get(chainID)
}

func (m *manager) ChainIDs() ([]uint64, error) {
	return m.committed.registry.ChainIDs()
}

// GetChainAdmin calls out to the chain, which may be in the middle of an
// operation of this manager, so it is refused to callbacks.
func (m *manager) GetChainAdmin(ctx context.Context, chainID uint64) (common.Address, error) {
	if m.guarded(ctx) {
		return common.Address{}, ErrReentrantCall
	}

	c, err := m.resolve(ctx, m.committed, chainID)
	if err != nil {
		return common.Address{}, err
	}
	return c.GetAdmin(context.WithValue(ctx, guardKey{}, m))
}

func (m *manager) resolve(ctx context.Context, v view, chainID uint64) (chain.Chain, error) {
	addr, err := v.registry.Get(chainID)
	if err != nil {
		return nil, err
	}
	if addr == (common.Address{}) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}
	if c, ok := m.chainCache.Get(addr); ok {
		return c, nil
	}
	c, err := m.config.Deployer.Chain(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("couldn't resolve chain %d at %s: %w", chainID, addr, err)
	}
	m.chainCache.Put(addr, c)
	return c, nil
}

// forward runs f against the registered chain after authorize accepts caller.
func (m *manager) forward(
	ctx context.Context,
	caller common.Address,
	chainID uint64,
	authorize func(common.Address) error,
	method string,
	f func(ctx context.Context, c chain.Chain) error,
) error {
	return m.execute(ctx, true, func(o *op) error {
		if err := authorize(caller); err != nil {
			return err
		}
		c, err := m.resolve(o.ctx, m.state, chainID)
		if err != nil {
			return err
		}
		if err := f(o.ctx, c); err != nil {
			return fmt.Errorf("%s on chain %d failed: %w", method, chainID, err)
		}
		o.onCommit = append(o.onCommit, func() {
			m.log.Debug("forwarded chain operation",
				log.String("method", method),
				log.Uint64("chainID", chainID),
				log.Stringer("caller", caller),
			)
		})
		return nil
	})
}

func (m *manager) FreezeChain(ctx context.Context, caller common.Address, chainID uint64) error {
	return m.forward(ctx, caller, chainID, m.state.roles.RequireOwnerOrAdmin, "freezeDiamond",
		func(ctx context.Context, c chain.Chain) error {
			return c.FreezeDiamond(ctx, m.config.Self)
		},
	)
}

func (m *manager) UnfreezeChain(ctx context.Context, caller common.Address, chainID uint64) error {
	return m.forward(ctx, caller, chainID, m.state.roles.RequireOwnerOrAdmin, "unfreezeDiamond",
		func(ctx context.Context, c chain.Chain) error {
			return c.UnfreezeDiamond(ctx, m.config.Self)
		},
	)
}

func (m *manager) RevertBatches(ctx context.Context, caller common.Address, chainID, newLastBatch uint64) error {
	return m.forward(ctx, caller, chainID, m.state.roles.RequireOwnerOrAdmin, "revertBatches",
		func(ctx context.Context, c chain.Chain) error {
			return c.RevertBatches(ctx, m.config.Self, newLastBatch)
		},
	)
}

func (m *manager) ExecuteUpgrade(ctx context.Context, caller common.Address, chainID uint64, upgradeCut *cut.Cut) error {
	if upgradeCut == nil {
		return fmt.Errorf("%w: missing cut", ErrInvalidArgument)
	}
	err := m.forward(ctx, caller, chainID, m.state.roles.RequireOwner, "executeUpgrade",
		func(ctx context.Context, c chain.Chain) error {
			return c.ExecuteUpgrade(ctx, m.config.Self, upgradeCut)
		},
	)
	if err == nil {
		m.metrics.upgradesExecuted.Inc()
	}
	return err
}

func (m *manager) UpgradeChainFromVersion(ctx context.Context, caller common.Address, chainID, fromVersion uint64, payload []byte) error {
	err := m.forward(ctx, caller, chainID, m.state.roles.RequireOwner, "upgradeChainFromVersion",
		func(ctx context.Context, c chain.Chain) error {
			if err := m.state.commitments.VerifyUpgradeCut(payload, fromVersion); err != nil {
				return err
			}
			upgradeCut, err := cut.Parse(payload)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
			}
			return c.ExecuteUpgrade(ctx, m.config.Self, upgradeCut)
		},
	)
	if err == nil {
		m.metrics.upgradesExecuted.Inc()
	}
	return err
}

func (m *manager) ChangeFeeParams(ctx context.Context, caller common.Address, chainID uint64, params chain.FeeParams) error {
	return m.forward(ctx, caller, chainID, m.state.roles.RequireOwner, "changeFeeParams",
		func(ctx context.Context, c chain.Chain) error {
			return c.ChangeFeeParams(ctx, m.config.Self, params)
		},
	)
}

func (m *manager) SetPriorityTxMaxGasLimit(ctx context.Context, caller common.Address, chainID, limit uint64) error {
	return m.forward(ctx, caller, chainID, m.state.roles.RequireOwner, "setPriorityTxMaxGasLimit",
		func(ctx context.Context, c chain.Chain) error {
			return c.SetPriorityTxMaxGasLimit(ctx, m.config.Self, limit)
		},
	)
}

func (m *manager) SetValidator(ctx context.Context, caller common.Address, chainID uint64, validator common.Address, active bool) error {
	return m.forward(ctx, caller, chainID, m.state.roles.RequireOwnerOrAdmin, "setValidator",
		func(ctx context.Context, c chain.Chain) error {
			return c.SetValidator(ctx, m.config.Self, validator, active)
		},
	)
}

func (m *manager) SetPorterAvailability(ctx context.Context, caller common.Address, chainID uint64, available bool) error {
	return m.forward(ctx, caller, chainID, m.state.roles.RequireOwnerOrAdmin, "setPorterAvailability",
		func(ctx context.Context, c chain.Chain) error {
			return c.SetPorterAvailability(ctx, m.config.Self, available)
		},
	)
}

func (m *manager) AddRegistrant(r Registrant) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.registrants = append(m.registrants, r)
}

func (m *manager) SubscribeEvents(ch chan<- Event) event.Subscription {
	return m.feed.Subscribe(ch)
}
