// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chains

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/stm/chain"
	"github.com/luxfi/stm/chain/chainmock"
	"github.com/luxfi/stm/commitment"
	"github.com/luxfi/stm/cut"
	"github.com/luxfi/stm/genesis"
	"github.com/luxfi/stm/upgrade"
)

var (
	self               = common.HexToAddress("0x5e1f")
	registrar          = common.HexToAddress("0xb41d9e")
	owner              = common.HexToAddress("0x0111")
	admin              = common.HexToAddress("0x0222")
	stranger           = common.HexToAddress("0x0333")
	validatorAuthority = common.HexToAddress("0x0444")
	genesisUpgradeAddr = common.HexToAddress("0x0555")
	diamondInit        = common.HexToAddress("0x0666")
	gettersFacet       = common.HexToAddress("0x0777")
	adminFacet         = common.HexToAddress("0x0888")
	tokenA             = common.HexToAddress("0x0a0a")
	bridgeB            = common.HexToAddress("0x0b0b")
	adminC             = common.HexToAddress("0x0c0c")

	factory   = common.HexToAddress("0xfac7")
	proxyCode = []byte{0x60, 0x80, 0x60, 0x40, 0x52}
	salt      = common.HexToHash("0x01")

	getAdminSelector = cut.SelectorOf("getAdmin()")
	freezeSelector   = cut.SelectorOf("freezeDiamond()")

	genesisParams = genesis.Params{
		BatchHash:                   common.HexToHash("0x1234"),
		IndexRepeatedStorageChanges: 50,
		Commitment:                  common.HexToHash("0x5678"),
	}
)

const (
	networkID       = 96369
	protocolVersion = 24
)

func initialCut() *cut.Cut {
	return &cut.Cut{
		FacetCuts: []cut.FacetCut{
			{
				Facet:     gettersFacet,
				Action:    cut.Add,
				Selectors: []cut.Selector{getAdminSelector},
			},
			{
				Facet:       adminFacet,
				Action:      cut.Add,
				IsFreezable: true,
				Selectors:   []cut.Selector{freezeSelector},
			},
		},
		InitAddress:  diamondInit,
		InitCalldata: []byte("diamond init extension"),
	}
}

type fixture struct {
	manager  Manager
	deployer *chain.LocalDeployer
	events   chan Event
}

// newFixture returns an initialized manager whose event channel only
// contains events emitted after initialization.
func newFixture(t *testing.T, hook chain.Hook) *fixture {
	t.Helper()
	require := require.New(t)

	deployer := chain.NewLocalDeployer(factory, proxyCode, hook)
	m, err := New(&ManagerConfig{
		Log:        log.NewNoOpLogger(),
		Registerer: metric.NewRegistry(),
		DB:         memdb.New(),
		Deployer:   deployer,
		Self:       self,
		Registrar:  registrar,
		NetworkID:  networkID,
		Salt:       salt,
	})
	require.NoError(err)

	require.NoError(m.Initialize(context.Background(), InitParams{
		Owner:              owner,
		ValidatorAuthority: validatorAuthority,
		GenesisUpgrade:     genesisUpgradeAddr,
		Genesis:            genesisParams,
		ProtocolVersion:    protocolVersion,
		InitialCut:         initialCut().Bytes(),
	}))

	events := make(chan Event, 128)
	sub := m.SubscribeEvents(events)
	t.Cleanup(sub.Unsubscribe)

	return &fixture{
		manager:  m,
		deployer: deployer,
		events:   events,
	}
}

func (f *fixture) drain() []Event {
	var events []Event
	for {
		select {
		case e := <-f.events:
			events = append(events, e)
		default:
			return events
		}
	}
}

func (f *fixture) createChain(t *testing.T, chainID uint64) common.Address {
	t.Helper()

	addr, err := f.manager.CreateChain(context.Background(), registrar, CreateChainParams{
		ChainID:   chainID,
		BaseToken: tokenA,
		Bridge:    bridgeB,
		Admin:     adminC,
		Cut:       initialCut().Bytes(),
	})
	require.NoError(t, err)
	return addr
}

func (f *fixture) local(t *testing.T, chainID uint64) *chain.Local {
	t.Helper()

	addr, err := f.manager.GetChain(chainID)
	require.NoError(t, err)
	l, ok := f.deployer.Local(addr)
	require.True(t, ok)
	return l
}

func TestNewValidation(t *testing.T) {
	deployer := chain.NewLocalDeployer(factory, proxyCode, nil)
	tests := []struct {
		name        string
		config      ManagerConfig
		expectedErr error
	}{
		{
			name:        "missing db",
			config:      ManagerConfig{Deployer: deployer, Self: self, Registrar: registrar},
			expectedErr: errMissingDB,
		},
		{
			name:        "missing deployer",
			config:      ManagerConfig{DB: memdb.New(), Self: self, Registrar: registrar},
			expectedErr: errMissingDeployer,
		},
		{
			name:        "missing registrar",
			config:      ManagerConfig{DB: memdb.New(), Deployer: deployer, Self: self},
			expectedErr: ErrInvalidArgument,
		},
		{
			name:        "missing self",
			config:      ManagerConfig{DB: memdb.New(), Deployer: deployer, Registrar: registrar},
			expectedErr: ErrInvalidArgument,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := New(&test.config)
			require.ErrorIs(t, err, test.expectedErr)
		})
	}
}

func TestInitialize(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	m, err := New(&ManagerConfig{
		DB:        memdb.New(),
		Deployer:  chain.NewLocalDeployer(factory, proxyCode, nil),
		Self:      self,
		Registrar: registrar,
	})
	require.NoError(err)

	err = m.ProposeAdmin(ctx, owner, admin)
	require.ErrorIs(err, ErrNotInitialized)
	_, err = m.PredictChainAddress(CreateChainParams{ChainID: 7, Admin: adminC, Cut: initialCut().Bytes()})
	require.ErrorIs(err, ErrNotInitialized)

	params := InitParams{
		Owner:              owner,
		ValidatorAuthority: validatorAuthority,
		GenesisUpgrade:     genesisUpgradeAddr,
		Genesis:            genesisParams,
		ProtocolVersion:    protocolVersion,
		InitialCut:         initialCut().Bytes(),
	}

	bad := params
	bad.Owner = common.Address{}
	require.ErrorIs(m.Initialize(ctx, bad), ErrInvalidArgument)

	bad = params
	bad.Genesis.BatchHash = common.Hash{}
	require.ErrorIs(m.Initialize(ctx, bad), ErrInvalidArgument)

	bad = params
	bad.InitialCut = []byte{1, 2, 3}
	require.ErrorIs(m.Initialize(ctx, bad), ErrInvalidArgument)

	// failed attempts leave nothing behind
	gotOwner, err := m.Owner()
	require.NoError(err)
	require.Equal(common.Address{}, gotOwner)
	version, err := m.ProtocolVersion()
	require.NoError(err)
	require.Zero(version)

	require.NoError(m.Initialize(ctx, params))
	require.ErrorIs(m.Initialize(ctx, params), ErrAlreadyInitialized)

	gotOwner, err = m.Owner()
	require.NoError(err)
	require.Equal(owner, gotOwner)

	anchor, err := m.GenesisAnchor()
	require.NoError(err)
	expectedAnchor, err := genesis.Anchor(genesisParams)
	require.NoError(err)
	require.Equal(expectedAnchor, anchor)

	gotAuthority, err := m.ValidatorAuthority()
	require.NoError(err)
	require.Equal(validatorAuthority, gotAuthority)

	gotUpgrade, err := m.GenesisUpgrade()
	require.NoError(err)
	require.Equal(genesisUpgradeAddr, gotUpgrade)

	version, err = m.ProtocolVersion()
	require.NoError(err)
	require.Equal(uint64(protocolVersion), version)

	initialHash, err := m.InitialCutHash()
	require.NoError(err)
	require.Equal(initialCut().Hash(), initialHash)
}

func TestTwoStepAdminTransfer(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.manager

	first := common.HexToAddress("0xf1")
	second := common.HexToAddress("0xf2")

	require.ErrorIs(m.ProposeAdmin(ctx, stranger, first), ErrUnauthorized)
	require.NoError(m.ProposeAdmin(ctx, owner, first))
	require.NoError(m.ProposeAdmin(ctx, owner, second))

	pending, err := m.PendingAdmin()
	require.NoError(err)
	require.Equal(second, pending)

	// the superseded target, the owner and strangers cannot accept
	for _, caller := range []common.Address{first, owner, stranger, {}} {
		require.ErrorIs(m.AcceptAdmin(ctx, caller), ErrUnauthorized)

		pending, err := m.PendingAdmin()
		require.NoError(err)
		require.Equal(second, pending)
		current, err := m.Admin()
		require.NoError(err)
		require.Equal(common.Address{}, current)
	}

	require.NoError(m.AcceptAdmin(ctx, second))
	current, err := m.Admin()
	require.NoError(err)
	require.Equal(second, current)
	pending, err = m.PendingAdmin()
	require.NoError(err)
	require.Equal(common.Address{}, pending)

	// accepting twice fails: the pending slot is cleared
	require.ErrorIs(m.AcceptAdmin(ctx, second), ErrUnauthorized)

	// the admin may nominate its successor
	require.NoError(m.ProposeAdmin(ctx, second, first))

	events := f.drain()
	require.Len(events, 4)
	require.Equal(NewPendingAdmin, events[0].Kind)
	require.Equal(first, events[0].NewAddress())
	require.Equal(NewPendingAdmin, events[1].Kind)
	require.Equal(first, events[1].OldAddress())
	require.Equal(second, events[1].NewAddress())
	require.Equal(NewAdmin, events[2].Kind)
	require.Equal(common.Address{}, events[2].OldAddress())
	require.Equal(second, events[2].NewAddress())
	require.Equal(NewPendingAdmin, events[3].Kind)
}

func TestTwoStepOwnerTransfer(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.manager

	next := common.HexToAddress("0x0999")

	require.NoError(m.ProposeAdmin(ctx, owner, admin))
	require.NoError(m.AcceptAdmin(ctx, admin))

	// only the owner proposes owners
	require.ErrorIs(m.ProposeOwner(ctx, admin, next), ErrUnauthorized)
	require.NoError(m.ProposeOwner(ctx, owner, next))
	require.ErrorIs(m.AcceptOwner(ctx, owner), ErrUnauthorized)
	require.NoError(m.AcceptOwner(ctx, next))

	current, err := m.Owner()
	require.NoError(err)
	require.Equal(next, current)

	require.ErrorIs(m.SetInitialCutHash(ctx, owner, []byte("x")), ErrUnauthorized)
	require.NoError(m.SetInitialCutHash(ctx, next, []byte("x")))

	events := f.drain()
	require.Equal(OwnershipTransferStarted, events[2].Kind)
	require.Equal(OwnershipTransferred, events[3].Kind)
	require.Equal(owner, events[3].OldAddress())
	require.Equal(next, events[3].NewAddress())
}

func TestCommitmentIntegrity(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.manager

	payload := initialCut().Bytes()
	for i := range payload {
		flipped := make([]byte, len(payload))
		copy(flipped, payload)
		flipped[i] ^= 0x01

		_, err := m.CreateChain(ctx, registrar, CreateChainParams{
			ChainID:   7,
			BaseToken: tokenA,
			Bridge:    bridgeB,
			Admin:     adminC,
			Cut:       flipped,
		})
		require.ErrorIs(err, ErrCommitmentMismatch, "byte %d", i)
	}

	_, err := m.CreateChain(ctx, registrar, CreateChainParams{
		ChainID: 7,
		Admin:   adminC,
		Cut:     append(payload, 0),
	})
	require.ErrorIs(err, ErrCommitmentMismatch)

	// zero state change
	require.Zero(f.deployer.Len())
	addr, err := m.GetChain(7)
	require.NoError(err)
	require.Equal(common.Address{}, addr)
	ids, err := m.ChainIDs()
	require.NoError(err)
	require.Empty(ids)
	require.Empty(f.drain())

	stats := m.Statistics()
	require.Equal(uint64(len(payload)+1), stats.TotalMismatches)

	require.NotEqual(common.Address{}, f.createChain(t, 7))
}

func TestCreateChainEndToEnd(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.manager

	payload := []byte("X")
	x := initialCut()
	x.InitCalldata = payload
	require.NoError(m.SetInitialCutHash(ctx, owner, x.Bytes()))
	f.drain()

	params := CreateChainParams{
		ChainID:   7,
		BaseToken: tokenA,
		Bridge:    bridgeB,
		Admin:     adminC,
		Cut:       x.Bytes(),
	}
	predicted, err := m.PredictChainAddress(params)
	require.NoError(err)

	addr, err := m.CreateChain(ctx, registrar, params)
	require.NoError(err)
	require.Equal(predicted, addr)

	ids, err := m.ChainIDs()
	require.NoError(err)
	require.Equal([]uint64{7}, ids)
	registered, err := m.GetChain(7)
	require.NoError(err)
	require.Equal(addr, registered)

	events := f.drain()
	require.Len(events, 2)
	require.Equal(NewChain, events[0].Kind)
	require.Equal(uint64(7), events[0].ChainID)
	require.Equal(addr, events[0].Address)

	require.Equal(GenesisUpgrade, events[1].Kind)
	require.Equal(addr, events[1].Address)
	tx := events[1].Tx
	require.NotNil(tx)
	require.Equal(uint64(protocolVersion), tx.Nonce)
	require.Equal(upgrade.ForceDeployer, tx.From)
	require.Equal(upgrade.SystemContext, tx.To)
	chainID, ok := upgrade.ChainIDFromTx(tx)
	require.True(ok)
	require.Equal(uint64(7), chainID)

	l := f.local(t, 7)
	require.Equal(uint64(7), l.L2ChainID())
	txs := l.UpgradeTxs()
	require.Len(txs, 1)
	require.Equal(tx.Hash(), txs[0].Hash())

	anchor, err := m.GenesisAnchor()
	require.NoError(err)
	require.Equal(chain.InitRecord{
		ChainID:            7,
		Manager:            self,
		Registry:           registrar,
		ProtocolVersion:    protocolVersion,
		Admin:              adminC,
		ValidatorAuthority: validatorAuthority,
		BaseToken:          tokenA,
		Bridge:             bridgeB,
		GenesisAnchor:      anchor,
		Extension:          payload,
	}, l.InitRecord())

	chainAdmin, err := m.GetChainAdmin(ctx, 7)
	require.NoError(err)
	require.Equal(adminC, chainAdmin)

	// repeats with the same or a different payload are no-ops
	again, err := m.CreateChain(ctx, registrar, params)
	require.NoError(err)
	require.Equal(addr, again)

	params.Cut = []byte("not even a cut")
	again, err = m.CreateChain(ctx, registrar, params)
	require.NoError(err)
	require.Equal(addr, again)

	require.Equal(1, f.deployer.Len())
	require.Len(l.UpgradeTxs(), 1)
	require.Empty(f.drain())
}

func TestSetValidatorAuthority(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.manager

	next := common.HexToAddress("0x0999")
	require.ErrorIs(m.SetValidatorAuthority(ctx, stranger, next), ErrUnauthorized)
	require.Empty(f.drain())

	require.NoError(m.SetValidatorAuthority(ctx, owner, next))
	got, err := m.ValidatorAuthority()
	require.NoError(err)
	require.Equal(next, got)

	events := f.drain()
	require.Len(events, 1)
	require.Equal(NewValidatorAuthority, events[0].Kind)
	require.Equal(validatorAuthority, events[0].OldAddress())
	require.Equal(next, events[0].NewAddress())

	// chains created afterwards are initialized with the new authority
	f.createChain(t, 11)
	require.Equal(next, f.local(t, 11).InitRecord().ValidatorAuthority)
}

func TestCreateChainUsesCurrentProtocolVersion(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.manager

	require.NoError(m.SetNewVersionUpgrade(ctx, owner, []byte("upgrade"), protocolVersion, protocolVersion+1))
	f.createChain(t, 9)

	l := f.local(t, 9)
	require.Equal(uint64(protocolVersion+1), l.InitRecord().ProtocolVersion)
	txs := l.UpgradeTxs()
	require.Len(txs, 1)
	require.Equal(uint64(protocolVersion+1), txs[0].Nonce)
}

func TestCreateChainAuthorization(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)

	for _, caller := range []common.Address{owner, admin, stranger, self, {}} {
		_, err := f.manager.CreateChain(ctx, caller, CreateChainParams{
			ChainID: 7,
			Admin:   adminC,
			Cut:     initialCut().Bytes(),
		})
		require.ErrorIs(err, ErrUnauthorized)
	}
	require.Zero(f.deployer.Len())
}

func TestCreateChainInvalidArguments(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		params CreateChainParams
	}{
		{
			name:   "zero chain id",
			params: CreateChainParams{ChainID: 0, Admin: adminC, Cut: initialCut().Bytes()},
		},
		{
			name:   "zero admin",
			params: CreateChainParams{ChainID: 7, Cut: initialCut().Bytes()},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)
			f := newFixture(t, nil)

			_, err := f.manager.CreateChain(ctx, registrar, test.params)
			require.ErrorIs(err, ErrInvalidArgument)
			require.Zero(f.deployer.Len())
		})
	}
}

func TestCreateChainUndecodablePayload(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)

	garbage := []byte("committed but not a cut")
	require.NoError(f.manager.SetInitialCutHash(ctx, owner, garbage))

	_, err := f.manager.CreateChain(ctx, registrar, CreateChainParams{
		ChainID: 7,
		Admin:   adminC,
		Cut:     garbage,
	})
	require.ErrorIs(err, ErrInvalidArgument)
	require.ErrorIs(err, cut.ErrMalformed)
	require.Zero(f.deployer.Len())
}

func TestDeterministicAddress(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, nil)
	m := f.manager

	params := CreateChainParams{
		ChainID:   7,
		BaseToken: tokenA,
		Bridge:    bridgeB,
		Admin:     adminC,
		Cut:       initialCut().Bytes(),
	}
	before, err := m.PredictChainAddress(params)
	require.NoError(err)

	addr := f.createChain(t, 7)
	require.Equal(before, addr)

	after, err := m.PredictChainAddress(params)
	require.NoError(err)
	require.Equal(before, after)

	// the address is reproducible from the inputs alone
	l := f.local(t, 7)
	record := l.InitRecord()
	c := initialCut()
	c.InitCalldata = record.Calldata()
	require.Equal(addr, chain.ComputeAddress(factory, proxyCode, &chain.DeployRequest{
		NetworkID: networkID,
		Salt:      salt,
		Cut:       c,
	}))

	params.ChainID = 8
	other, err := m.PredictChainAddress(params)
	require.NoError(err)
	require.NotEqual(addr, other)
}

func TestSetNewVersionUpgradeAtomic(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.manager

	payload := []byte("upgrade 24 -> 25")
	require.ErrorIs(m.SetNewVersionUpgrade(ctx, admin, payload, 24, 25), ErrUnauthorized)

	version, err := m.ProtocolVersion()
	require.NoError(err)
	require.Equal(uint64(24), version)
	h, err := m.UpgradeCutHash(24)
	require.NoError(err)
	require.Equal(common.Hash{}, h)

	require.NoError(m.SetNewVersionUpgrade(ctx, owner, payload, 24, 25))
	version, err = m.ProtocolVersion()
	require.NoError(err)
	require.Equal(uint64(25), version)
	h, err = m.UpgradeCutHash(24)
	require.NoError(err)
	require.Equal(upgradeHash(payload), h)

	events := f.drain()
	require.Len(events, 2)
	require.Equal(NewUpgradeCutHash, events[0].Kind)
	require.Equal(uint64(24), events[0].Version)
	require.Equal(NewProtocolVersion, events[1].Kind)
	require.Equal(uint64(25), events[1].NewVersion())
}

func upgradeHash(payload []byte) common.Hash {
	return commitment.ComputeCommitment(payload)
}

func TestSetNewVersionUpgradeNeverTorn(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.manager

	const rounds = 50
	var eg errgroup.Group
	eg.Go(func() error {
		for v := uint64(protocolVersion); v < protocolVersion+rounds; v++ {
			if err := m.SetNewVersionUpgrade(ctx, owner, []byte{byte(v)}, v, v+1); err != nil {
				return err
			}
		}
		return nil
	})
	for range 4 {
		eg.Go(func() error {
			for range rounds {
				version, err := m.ProtocolVersion()
				if err != nil {
					return err
				}
				if version == protocolVersion {
					continue
				}
				h, err := m.UpgradeCutHash(version - 1)
				if err != nil {
					return err
				}
				if h != upgradeHash([]byte{byte(version - 1)}) {
					return errors.New("version visible without its commitment")
				}
			}
			return nil
		})
	}
	require.NoError(eg.Wait())
}

func TestUpgradeRevealRace(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.manager
	f.createChain(t, 7)

	newFacet := common.HexToAddress("0x0789")
	p1 := (&cut.Cut{FacetCuts: []cut.FacetCut{{
		Facet:     newFacet,
		Action:    cut.Replace,
		Selectors: []cut.Selector{getAdminSelector},
	}}}).Bytes()
	p2 := (&cut.Cut{FacetCuts: []cut.FacetCut{{
		Facet:     newFacet,
		Action:    cut.Replace,
		Selectors: []cut.Selector{freezeSelector},
	}}}).Bytes()

	require.NoError(m.SetUpgradeCutHash(ctx, owner, p1, protocolVersion))
	// the commitment is replaced between authoring and submitting the reveal
	require.NoError(m.SetUpgradeCutHash(ctx, owner, p2, protocolVersion))

	err := m.UpgradeChainFromVersion(ctx, owner, 7, protocolVersion, p1)
	require.ErrorIs(err, ErrCommitmentMismatch)
	l := f.local(t, 7)
	facet, _ := l.Facet(getAdminSelector)
	require.Equal(gettersFacet, facet)

	require.ErrorIs(m.UpgradeChainFromVersion(ctx, owner, 7, protocolVersion-1, p2), ErrCommitmentMismatch)
	require.ErrorIs(m.UpgradeChainFromVersion(ctx, admin, 7, protocolVersion, p2), ErrUnauthorized)

	require.NoError(m.UpgradeChainFromVersion(ctx, owner, 7, protocolVersion, p2))
	facet, _ = l.Facet(freezeSelector)
	require.Equal(newFacet, facet)
}

func TestRegisterExistingChain(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.manager

	addrA := common.HexToAddress("0xaaaa")
	addrB := common.HexToAddress("0xbbbb")

	require.ErrorIs(m.RegisterExistingChain(ctx, admin, 5, addrA), ErrUnauthorized)
	require.ErrorIs(m.RegisterExistingChain(ctx, owner, 0, addrA), ErrInvalidArgument)
	require.ErrorIs(m.RegisterExistingChain(ctx, owner, 5, common.Address{}), ErrInvalidArgument)

	require.NoError(m.RegisterExistingChain(ctx, owner, 5, addrA))
	// a later registration replaces the earlier one
	require.NoError(m.RegisterExistingChain(ctx, owner, 5, addrB))

	got, err := m.GetChain(5)
	require.NoError(err)
	require.Equal(addrB, got)

	// one address backs at most one chain id
	require.ErrorIs(m.RegisterExistingChain(ctx, owner, 6, addrB), ErrInvalidArgument)
	got, err = m.GetChain(6)
	require.NoError(err)
	require.Equal(common.Address{}, got)

	events := f.drain()
	require.Len(events, 2)
	require.Equal(NewChain, events[1].Kind)
	require.Equal(addrA, events[1].OldAddress())
	require.Equal(addrB, events[1].NewAddress())

	// the replaced address is free again
	require.NoError(m.RegisterExistingChain(ctx, owner, 6, addrA))
	require.Len(f.drain(), 1)

	// registered but unknown to the deployer
	_, err = m.GetChainAdmin(ctx, 5)
	require.ErrorIs(err, chain.ErrNotDeployed)

	// a registered id is never redeployed
	again, err := m.CreateChain(ctx, registrar, CreateChainParams{
		ChainID: 5,
		Admin:   adminC,
		Cut:     initialCut().Bytes(),
	})
	require.NoError(err)
	require.Equal(addrB, again)
	require.Zero(f.deployer.Len())
}

func TestPassThroughControls(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.manager

	require.NoError(t, m.ProposeAdmin(ctx, owner, admin))
	require.NoError(t, m.AcceptAdmin(ctx, admin))
	f.createChain(t, 7)
	l := f.local(t, 7)

	validator := common.HexToAddress("0xbeef")
	fees := chain.FeeParams{
		PubdataPricingMode:   chain.Rollup,
		BatchOverheadL1Gas:   1_000_000,
		MaxPubdataPerBatch:   120_000,
		MaxL2GasPerBatch:     80_000_000,
		PriorityTxMaxPubdata: 99_000,
		MinimalL2GasPrice:    250_000_000,
	}
	require.NoError(t, l.SimulateBatches(10, 2))

	tests := []struct {
		name      string
		ownerOnly bool
		call      func(caller common.Address, chainID uint64) error
		check     func(require *require.Assertions)
	}{
		{
			name: "freeze",
			call: func(caller common.Address, chainID uint64) error {
				return m.FreezeChain(ctx, caller, chainID)
			},
			check: func(require *require.Assertions) {
				require.Equal(chain.Frozen, l.Status())
			},
		},
		{
			name: "unfreeze",
			call: func(caller common.Address, chainID uint64) error {
				return m.UnfreezeChain(ctx, caller, chainID)
			},
			check: func(require *require.Assertions) {
				require.Equal(chain.Active, l.Status())
			},
		},
		{
			name: "revert batches",
			call: func(caller common.Address, chainID uint64) error {
				return m.RevertBatches(ctx, caller, chainID, 5)
			},
			check: func(require *require.Assertions) {
				require.Equal(uint64(5), l.TotalBatchesCommitted())
			},
		},
		{
			name: "set validator",
			call: func(caller common.Address, chainID uint64) error {
				return m.SetValidator(ctx, caller, chainID, validator, true)
			},
			check: func(require *require.Assertions) {
				require.True(l.IsValidator(validator))
			},
		},
		{
			name: "set porter availability",
			call: func(caller common.Address, chainID uint64) error {
				return m.SetPorterAvailability(ctx, caller, chainID, true)
			},
			check: func(require *require.Assertions) {
				require.True(l.PorterAvailable())
			},
		},
		{
			name:      "change fee params",
			ownerOnly: true,
			call: func(caller common.Address, chainID uint64) error {
				return m.ChangeFeeParams(ctx, caller, chainID, fees)
			},
			check: func(require *require.Assertions) {
				require.Equal(fees, l.FeeParams())
			},
		},
		{
			name:      "set priority tx max gas limit",
			ownerOnly: true,
			call: func(caller common.Address, chainID uint64) error {
				return m.SetPriorityTxMaxGasLimit(ctx, caller, chainID, 1_000)
			},
			check: func(require *require.Assertions) {
				require.Equal(uint64(1_000), l.PriorityTxMaxGasLimit())
			},
		},
		{
			name:      "execute upgrade",
			ownerOnly: true,
			call: func(caller common.Address, chainID uint64) error {
				return m.ExecuteUpgrade(ctx, caller, chainID, &cut.Cut{
					FacetCuts: []cut.FacetCut{{
						Action:    cut.Remove,
						Selectors: []cut.Selector{freezeSelector},
					}},
				})
			},
			check: func(require *require.Assertions) {
				_, ok := l.Facet(freezeSelector)
				require.False(ok)
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			require.ErrorIs(test.call(stranger, 7), ErrUnauthorized)
			require.ErrorIs(test.call(owner, 8), ErrUnknownChain)
			if test.ownerOnly {
				require.ErrorIs(test.call(admin, 7), ErrUnauthorized)
				require.NoError(test.call(owner, 7))
			} else {
				require.NoError(test.call(admin, 7))
			}
			test.check(require)
		})
	}

	// chain-side failures surface unchanged
	require.ErrorIs(t, m.RevertBatches(ctx, owner, 7, 1), chain.ErrInvalidRevert)
}

func TestReentrantCallRejected(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	var (
		m         Manager
		reentered error
	)
	hook := func(ctx context.Context, method string) error {
		switch method {
		case "freezeDiamond":
			reentered = m.UnfreezeChain(ctx, owner, 7)
			return reentered
		case "setPorterAvailability":
			_, reentered = m.GetChainAdmin(ctx, 7)
			return reentered
		default:
			return nil
		}
	}
	f := newFixture(t, hook)
	m = f.manager
	f.createChain(t, 7)
	l := f.local(t, 7)

	err := m.FreezeChain(ctx, owner, 7)
	require.ErrorIs(err, ErrReentrantCall)
	require.ErrorIs(reentered, ErrReentrantCall)
	require.Equal(chain.Active, l.Status())

	err = m.SetPorterAvailability(ctx, owner, 7, true)
	require.ErrorIs(err, ErrReentrantCall)
	require.False(l.PorterAvailable())

	// the manager is still usable afterwards
	require.NoError(m.SetValidator(ctx, owner, 7, stranger, true))
}

func TestCreateChainRollsBackFailedDispatch(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	errDispatch := errors.New("dispatch failed")
	failing := true
	hook := func(_ context.Context, method string) error {
		if failing && method == "executeUpgrade" {
			return errDispatch
		}
		return nil
	}
	f := newFixture(t, hook)
	m := f.manager

	params := CreateChainParams{
		ChainID:   7,
		BaseToken: tokenA,
		Bridge:    bridgeB,
		Admin:     adminC,
		Cut:       initialCut().Bytes(),
	}
	_, err := m.CreateChain(ctx, registrar, params)
	require.ErrorIs(err, errDispatch)

	require.Zero(f.deployer.Len())
	addr, err := m.GetChain(7)
	require.NoError(err)
	require.Equal(common.Address{}, addr)
	require.Empty(f.drain())

	failing = false
	addr, err = m.CreateChain(ctx, registrar, params)
	require.NoError(err)
	predicted, err := m.PredictChainAddress(params)
	require.NoError(err)
	require.Equal(predicted, addr)
	require.Len(f.drain(), 2)
}

func TestCreateChainWithMocks(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	errDeploy := errors.New("deploy failed")
	deployed := common.HexToAddress("0xd3")
	deployer := chainmock.NewDeployer(ctrl)
	c := chainmock.NewChain(ctrl)

	m, err := New(&ManagerConfig{
		DB:        memdb.New(),
		Deployer:  deployer,
		Self:      self,
		Registrar: registrar,
		NetworkID: networkID,
		Salt:      salt,
	})
	require.NoError(err)
	require.NoError(m.Initialize(ctx, InitParams{
		Owner:           owner,
		GenesisUpgrade:  genesisUpgradeAddr,
		Genesis:         genesisParams,
		ProtocolVersion: protocolVersion,
		InitialCut:      initialCut().Bytes(),
	}))
	params := CreateChainParams{
		ChainID: 7,
		Admin:   adminC,
		Cut:     initialCut().Bytes(),
	}

	// deployment failure
	deployer.EXPECT().Deploy(gomock.Any(), gomock.Any()).Return(nil, errDeploy)
	_, err = m.CreateChain(ctx, registrar, params)
	require.ErrorIs(err, errDeploy)

	// identity assignment failure discards the deployed chain
	errRejected := errors.New("rejected")
	gomock.InOrder(
		deployer.EXPECT().Deploy(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *chain.DeployRequest) (chain.Chain, error) {
				record, err := chain.ParseInitCalldata(req.Cut.InitCalldata)
				require.NoError(err)
				require.Equal(uint64(7), record.ChainID)
				require.Equal(self, record.Manager)
				require.Equal(uint64(networkID), req.NetworkID)
				require.Equal(salt, req.Salt)
				return c, nil
			},
		),
		c.EXPECT().Address().Return(deployed),
		c.EXPECT().ExecuteUpgrade(gomock.Any(), self, gomock.Any()).Return(errRejected),
		deployer.EXPECT().Discard(gomock.Any(), deployed).Return(nil),
	)
	_, err = m.CreateChain(ctx, registrar, params)
	require.ErrorIs(err, errRejected)

	addr, err := m.GetChain(7)
	require.NoError(err)
	require.Equal(common.Address{}, addr)

	// success
	gomock.InOrder(
		deployer.EXPECT().Deploy(gomock.Any(), gomock.Any()).Return(c, nil),
		c.EXPECT().Address().Return(deployed),
		c.EXPECT().ExecuteUpgrade(gomock.Any(), self, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ common.Address, upgradeCut *cut.Cut) error {
				require.Equal(genesisUpgradeAddr, upgradeCut.InitAddress)
				require.Empty(upgradeCut.FacetCuts)
				proposed, err := upgrade.ParseProposedUpgrade(upgradeCut.InitCalldata)
				require.NoError(err)
				require.Equal(uint64(protocolVersion), proposed.NewProtocolVersion)
				return nil
			},
		),
	)
	addr, err = m.CreateChain(ctx, registrar, params)
	require.NoError(err)
	require.Equal(deployed, addr)
}

type recordingRegistrant struct {
	chainIDs []uint64
	chains   []chain.Chain
}

func (r *recordingRegistrant) RegisterChain(chainID uint64, c chain.Chain) {
	r.chainIDs = append(r.chainIDs, chainID)
	r.chains = append(r.chains, c)
}

func TestRegistrantsNotifiedOnCreation(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, nil)

	r := &recordingRegistrant{}
	f.manager.AddRegistrant(r)

	addr := f.createChain(t, 7)
	f.createChain(t, 7)
	require.NoError(f.manager.RegisterExistingChain(context.Background(), owner, 9, common.HexToAddress("0x99")))

	require.Equal([]uint64{7}, r.chainIDs)
	require.Len(r.chains, 1)
	require.Equal(addr, r.chains[0].Address())
}

type failingRegisterer struct {
	err error
}

func (f failingRegisterer) RegisterChain(uint64, chain.Chain) error {
	return f.err
}

func TestRegistrantAdapter(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, nil)

	errRegister := errors.New("register failed")
	var (
		failedID  uint64
		failedErr error
	)
	f.manager.AddRegistrant(NewRegistrantAdapter(failingRegisterer{err: errRegister}, func(chainID uint64, err error) {
		failedID = chainID
		failedErr = err
	}))

	f.createChain(t, 11)
	require.Equal(uint64(11), failedID)
	require.ErrorIs(failedErr, errRegister)
}

func TestEventKindString(t *testing.T) {
	require := require.New(t)

	require.Equal("NewChain", NewChain.String())
	require.Equal("GenesisUpgrade", GenesisUpgrade.String())
	require.Equal("Unknown", EventKind(255).String())
}

func TestCreateChainRejectsAddressInUse(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.manager

	params := CreateChainParams{
		ChainID: 7,
		Admin:   adminC,
		Cut:     initialCut().Bytes(),
	}
	predicted, err := m.PredictChainAddress(params)
	require.NoError(err)
	require.NoError(m.RegisterExistingChain(ctx, owner, 9, predicted))

	_, err = m.CreateChain(ctx, registrar, params)
	require.ErrorIs(err, ErrInvalidArgument)
	require.Zero(f.deployer.Len())
	addr, err := m.GetChain(7)
	require.NoError(err)
	require.Equal(common.Address{}, addr)
}

func TestSubscriberMayCallBack(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.manager

	events := make(chan Event)
	sub := m.SubscribeEvents(events)
	defer sub.Unsubscribe()

	var eg errgroup.Group
	eg.Go(func() error {
		for e := range events {
			switch e.Kind {
			case NewChain:
				if err := m.SetValidator(ctx, owner, e.ChainID, stranger, true); err != nil {
					return err
				}
				if err := m.SetValidatorAuthority(ctx, owner, stranger); err != nil {
					return err
				}
			case NewValidatorAuthority:
				return nil
			}
		}
		return nil
	})

	f.createChain(t, 7)
	require.NoError(eg.Wait())
	require.True(f.local(t, 7).IsValidator(stranger))

	// delivered in commit order
	var kinds []EventKind
	for _, e := range f.drain() {
		kinds = append(kinds, e.Kind)
	}
	require.Equal([]EventKind{NewChain, GenesisUpgrade, NewValidatorAuthority}, kinds)
}

type freezingRegistrant struct {
	manager Manager
	err     error
}

func (r *freezingRegistrant) RegisterChain(chainID uint64, _ chain.Chain) {
	r.err = r.manager.FreezeChain(context.Background(), owner, chainID)
}

func TestRegistrantMayCallBack(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, nil)

	r := &freezingRegistrant{manager: f.manager}
	f.manager.AddRegistrant(r)

	f.createChain(t, 7)
	require.NoError(r.err)
	require.Equal(chain.Frozen, f.local(t, 7).Status())
}

func TestCallbacksReadCommittedState(t *testing.T) {
	require := require.New(t)

	var (
		m       Manager
		version uint64
		during  common.Address
		readErr error
	)
	hook := func(context.Context, string) error {
		if version, readErr = m.ProtocolVersion(); readErr != nil {
			return readErr
		}
		during, readErr = m.GetChain(7)
		return readErr
	}
	f := newFixture(t, hook)
	m = f.manager

	addr := f.createChain(t, 7)
	require.NoError(readErr)
	require.Equal(uint64(protocolVersion), version)
	// the registration was not committed yet when the chain was upgraded
	require.Equal(common.Address{}, during)

	require.NoError(m.FreezeChain(context.Background(), owner, 7))
	require.NoError(readErr)
	require.Equal(addr, during)
}

func TestExecuteUpgradeRejectsMissingCut(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	m := f.manager
	f.createChain(t, 7)

	require.ErrorIs(m.ExecuteUpgrade(ctx, owner, 7, nil), ErrInvalidArgument)
	require.NoError(m.FreezeChain(ctx, owner, 7))
}

func TestPanickingChainReleasesManager(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	hook := func(_ context.Context, method string) error {
		if method == "setPorterAvailability" {
			panic("chain failure")
		}
		return nil
	}
	f := newFixture(t, hook)
	m := f.manager
	f.createChain(t, 7)
	f.drain()

	require.Panics(func() {
		_ = m.SetPorterAvailability(ctx, owner, 7, true)
	})
	require.NoError(m.SetValidatorAuthority(ctx, owner, stranger))
	require.Len(f.drain(), 1)
}

func TestManagerRestart(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	db := memdb.New()

	open := func() (Manager, *chain.LocalDeployer) {
		deployer, err := chain.LoadLocalDeployer(prefixdb.New([]byte("deployer"), db), factory, proxyCode, nil)
		require.NoError(err)
		m, err := New(&ManagerConfig{
			DB:        prefixdb.New([]byte("manager"), db),
			Deployer:  deployer,
			Self:      self,
			Registrar: registrar,
			NetworkID: networkID,
			Salt:      salt,
		})
		require.NoError(err)
		return m, deployer
	}

	m, _ := open()
	require.NoError(m.Initialize(ctx, InitParams{
		Owner:           owner,
		GenesisUpgrade:  genesisUpgradeAddr,
		Genesis:         genesisParams,
		ProtocolVersion: protocolVersion,
		InitialCut:      initialCut().Bytes(),
	}))
	params := CreateChainParams{
		ChainID: 7,
		Admin:   adminC,
		Cut:     initialCut().Bytes(),
	}
	addr, err := m.CreateChain(ctx, registrar, params)
	require.NoError(err)
	require.NoError(m.FreezeChain(ctx, owner, 7))

	m, deployer := open()
	require.ErrorIs(m.Initialize(ctx, InitParams{Owner: owner}), ErrAlreadyInitialized)
	got, err := m.GetChain(7)
	require.NoError(err)
	require.Equal(addr, got)

	l, ok := deployer.Local(addr)
	require.True(ok)
	require.Equal(chain.Frozen, l.Status())
	require.Equal(uint64(7), l.L2ChainID())

	require.NoError(m.UnfreezeChain(ctx, owner, 7))
	require.Equal(chain.Active, l.Status())
	chainAdmin, err := m.GetChainAdmin(ctx, 7)
	require.NoError(err)
	require.Equal(adminC, chainAdmin)

	again, err := m.CreateChain(ctx, registrar, params)
	require.NoError(err)
	require.Equal(addr, again)
	require.Equal(1, deployer.Len())
}
