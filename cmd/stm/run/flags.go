// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"

	"github.com/luxfi/stm/chains"
	"github.com/luxfi/stm/genesis"
)

const (
	ConfigFileKey      = "config-file"
	HTTPHostKey        = "http-host"
	HTTPPortKey        = "http-port"
	DataDirKey         = "data-dir"
	AllowedOriginsKey  = "http-allowed-origins"
	AllowedHostsKey    = "http-allowed-hosts"
	ShutdownTimeoutKey = "http-shutdown-timeout"
	ChainsFileKey      = "chains-file"
)

var errMissingConfigFile = errors.New("missing config file")

func AddFlags(flags *pflag.FlagSet) {
	flags.String(ConfigFileKey, "", "JSON file describing the manager (required)")
	flags.String(HTTPHostKey, "127.0.0.1", "Address the API server listens on")
	flags.Uint16(HTTPPortKey, 9660, "Port the API server listens on")
	flags.String(DataDirKey, "", "Directory of the manager database; in-memory when empty")
	flags.StringSlice(AllowedOriginsKey, []string{"*"}, "Origins allowed to make API calls")
	flags.StringSlice(AllowedHostsKey, []string{"localhost"}, "Hosts the API server answers to")
	flags.Duration(ShutdownTimeoutKey, 10*time.Second, "Maximum duration to wait for API calls to finish on shutdown")
	flags.String(ChainsFileKey, "", "File rewritten with the registered chains after every registration")
}

// InitConfig initializes a fresh manager. It is ignored once the manager
// stored in the data directory has been initialized.
type InitConfig struct {
	Owner              common.Address `json:"owner"`
	ValidatorAuthority common.Address `json:"validatorAuthority"`
	GenesisUpgrade     common.Address `json:"genesisUpgrade"`
	Genesis            genesis.Params `json:"genesis"`
	ProtocolVersion    uint64         `json:"protocolVersion"`
	InitialCut         hexutil.Bytes  `json:"initialCut"`
}

func (c *InitConfig) Params() chains.InitParams {
	return chains.InitParams{
		Owner:              c.Owner,
		ValidatorAuthority: c.ValidatorAuthority,
		GenesisUpgrade:     c.GenesisUpgrade,
		Genesis:            c.Genesis,
		ProtocolVersion:    c.ProtocolVersion,
		InitialCut:         c.InitialCut,
	}
}

// FileConfig is the content of the config file
type FileConfig struct {
	NetworkID uint64         `json:"networkID"`
	Self      common.Address `json:"self"`
	Registrar common.Address `json:"registrar"`
	Salt      common.Hash    `json:"salt"`
	// Factory and ProxyCode determine the addresses of deployed chains
	Factory    common.Address `json:"factory"`
	ProxyCode  hexutil.Bytes  `json:"proxyCode"`
	Initialize *InitConfig    `json:"initialize"`
}

type Config struct {
	FileConfig

	HTTPHost        string
	HTTPPort        uint16
	DataDir         string
	AllowedOrigins  []string
	AllowedHosts    []string
	ShutdownTimeout time.Duration
	ChainsFile      string
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	configFile, err := flags.GetString(ConfigFileKey)
	if err != nil {
		return nil, err
	}
	if configFile == "" {
		return nil, errMissingConfigFile
	}
	fileConfig, err := ReadFileConfig(configFile)
	if err != nil {
		return nil, err
	}

	httpHost, err := flags.GetString(HTTPHostKey)
	if err != nil {
		return nil, err
	}

	httpPort, err := flags.GetUint16(HTTPPortKey)
	if err != nil {
		return nil, err
	}

	dataDir, err := flags.GetString(DataDirKey)
	if err != nil {
		return nil, err
	}

	allowedOrigins, err := flags.GetStringSlice(AllowedOriginsKey)
	if err != nil {
		return nil, err
	}

	allowedHosts, err := flags.GetStringSlice(AllowedHostsKey)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := flags.GetDuration(ShutdownTimeoutKey)
	if err != nil {
		return nil, err
	}

	chainsFile, err := flags.GetString(ChainsFileKey)
	if err != nil {
		return nil, err
	}

	return &Config{
		FileConfig:      *fileConfig,
		HTTPHost:        httpHost,
		HTTPPort:        httpPort,
		DataDir:         dataDir,
		AllowedOrigins:  allowedOrigins,
		AllowedHosts:    allowedHosts,
		ShutdownTimeout: shutdownTimeout,
		ChainsFile:      chainsFile,
	}, nil
}

func ReadFileConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config := &FileConfig{}
	if err := json.Unmarshal(b, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return config, nil
}
