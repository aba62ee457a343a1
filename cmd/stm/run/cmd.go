// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/stm/api"
	"github.com/luxfi/stm/api/server"
	"github.com/luxfi/stm/chain"
	"github.com/luxfi/stm/chains"
)

const eventBufferSize = 256

var (
	managerPrefix  = []byte("manager")
	deployerPrefix = []byte("deployer")
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "run",
		Short: "Runs a chain manager over a local deployer",
		RunE:  runFunc,
	}
	flags := c.Flags()
	AddFlags(flags)
	return c
}

func runFunc(c *cobra.Command, args []string) error {
	config, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}
	return Run(c.Context(), log.NewLogger("stm"), config)
}

// Run serves the manager described by config until ctx is cancelled.
func Run(ctx context.Context, logger log.Logger, config *Config) error {
	db, err := openDB(config.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := metric.NewRegistry()
	m, deployer, err := NewManager(logger, registry, db, config)
	if err != nil {
		return err
	}

	if config.Initialize != nil {
		err := m.Initialize(ctx, config.Initialize.Params())
		switch {
		case errors.Is(err, chains.ErrAlreadyInitialized):
			logger.Info("manager already initialized")
		case err != nil:
			return fmt.Errorf("failed to initialize manager: %w", err)
		}
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(config.HTTPHost, strconv.Itoa(int(config.HTTPPort))))
	if err != nil {
		return err
	}
	apiServer, err := server.New(
		logger,
		listener,
		config.AllowedOrigins,
		config.ShutdownTimeout,
		registry,
		server.HTTPConfig{},
		config.AllowedHosts,
	)
	if err != nil {
		return err
	}

	service, err := api.NewService(logger, m)
	if err != nil {
		return err
	}
	if err := apiServer.AddRoute(service, "stm", ""); err != nil {
		return err
	}
	if err := ServeChains(ctx, logger, m, deployer, apiServer); err != nil {
		return err
	}

	m.AddRegistrant(chains.NewRegistrantAdapter(apiServer, func(chainID uint64, err error) {
		logger.Warn("failed to serve chain API",
			log.Uint64("chainID", chainID),
			log.Err(err),
		)
	}))

	events := make(chan chains.Event, eventBufferSize)
	sub := m.SubscribeEvents(events)
	defer sub.Unsubscribe()

	logger.Info("serving chain manager",
		log.Stringer("address", listener.Addr()),
		log.Stringer("self", config.Self),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := apiServer.Dispatch()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		return apiServer.Shutdown()
	})
	g.Go(func() error {
		return watchEvents(ctx, logger, m, config.ChainsFile, events, sub.Err())
	})
	return g.Wait()
}

// NewManager returns a manager over a local deployer, both stored in db and
// starting from whatever db already holds.
func NewManager(
	logger log.Logger,
	registerer metric.Registerer,
	db database.Database,
	config *Config,
) (chains.Manager, *chain.LocalDeployer, error) {
	deployer, err := chain.LoadLocalDeployer(
		prefixdb.New(deployerPrefix, db),
		config.Factory,
		config.ProxyCode,
		nil,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load deployed chains: %w", err)
	}
	m, err := chains.New(&chains.ManagerConfig{
		Log:        logger,
		Registerer: registerer,
		DB:         prefixdb.New(managerPrefix, db),
		Deployer:   deployer,
		Self:       config.Self,
		Registrar:  config.Registrar,
		NetworkID:  config.NetworkID,
		Salt:       config.Salt,
	})
	if err != nil {
		return nil, nil, err
	}
	return m, deployer, nil
}

// ServeChains registers the API of every registered chain the deployer
// holds. Chains registered from elsewhere have no local API and are skipped.
func ServeChains(
	ctx context.Context,
	logger log.Logger,
	m chains.Manager,
	deployer chain.Deployer,
	registerer chains.ChainRegisterer,
) error {
	chainIDs, err := m.ChainIDs()
	if err != nil {
		return err
	}
	for _, chainID := range chainIDs {
		addr, err := m.GetChain(chainID)
		if err != nil {
			return err
		}
		c, err := deployer.Chain(ctx, addr)
		if errors.Is(err, chain.ErrNotDeployed) {
			logger.Debug("skipping chain without local API",
				log.Uint64("chainID", chainID),
				log.Stringer("address", addr),
			)
			continue
		}
		if err != nil {
			return err
		}
		if err := registerer.RegisterChain(chainID, c); err != nil {
			return fmt.Errorf("failed to serve chain %d: %w", chainID, err)
		}
	}
	return nil
}

func openDB(dir string) (database.Database, error) {
	if dir == "" {
		return memdb.New(), nil
	}
	db, err := badgerdb.New(
		dir,
		nil, // configBytes - use default
		"",  // namespace
		nil, // metrics
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dir, err)
	}
	return db, nil
}

func watchEvents(
	ctx context.Context,
	logger log.Logger,
	m chains.Manager,
	chainsFile string,
	events <-chan chains.Event,
	errs <-chan error,
) error {
	for {
		select {
		case e := <-events:
			logger.Info("manager event",
				log.Stringer("kind", e.Kind),
				log.Uint64("chainID", e.ChainID),
				log.Stringer("address", e.Address),
			)
			if e.Kind != chains.NewChain || chainsFile == "" {
				continue
			}
			if err := ExportChains(m, chainsFile); err != nil {
				logger.Warn("failed to export chains",
					log.String("path", chainsFile),
					log.Err(err),
				)
			}
		case err := <-errs:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

// ChainEntry is one registered chain in the exported chains file
type ChainEntry struct {
	ChainID uint64         `json:"chainID"`
	Address common.Address `json:"address"`
}

// ExportChains atomically replaces path with the registered chains of m.
func ExportChains(m chains.Manager, path string) error {
	chainIDs, err := m.ChainIDs()
	if err != nil {
		return err
	}
	entries := make([]ChainEntry, len(chainIDs))
	for i, chainID := range chainIDs {
		addr, err := m.GetChain(chainID)
		if err != nil {
			return err
		}
		entries[i] = ChainEntry{
			ChainID: chainID,
			Address: addr,
		}
	}
	b, err := json.MarshalIndent(entries, "", "\t")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, b, 0o644)
}
