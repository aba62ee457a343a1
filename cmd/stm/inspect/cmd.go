// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package inspect computes manager values offline.
package inspect

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"

	"github.com/luxfi/stm/chain"
	"github.com/luxfi/stm/commitment"
	"github.com/luxfi/stm/cut"
)

const (
	FactoryKey   = "factory"
	ProxyCodeKey = "proxy-code"
	NetworkIDKey = "network-id"
	SaltKey      = "salt"
	CutKey       = "cut"
)

func AddressCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "address",
		Short: "Prints the address a deploy cut is created at",
		RunE:  addressFunc,
	}
	flags := c.Flags()
	flags.String(FactoryKey, "", "Address of the deploying factory")
	flags.String(ProxyCodeKey, "0x", "Hex encoded proxy creation code")
	flags.Uint64(NetworkIDKey, 0, "Network the chain is deployed on")
	flags.String(SaltKey, common.Hash{}.Hex(), "Deployment salt")
	flags.String(CutKey, "", "Hex encoded deploy cut (required)")
	return c
}

func addressFunc(c *cobra.Command, _ []string) error {
	flags := c.Flags()

	factoryStr, err := flags.GetString(FactoryKey)
	if err != nil {
		return err
	}
	if !common.IsHexAddress(factoryStr) {
		return fmt.Errorf("invalid factory address %q", factoryStr)
	}

	proxyCodeStr, err := flags.GetString(ProxyCodeKey)
	if err != nil {
		return err
	}
	proxyCode, err := hexutil.Decode(proxyCodeStr)
	if err != nil {
		return fmt.Errorf("invalid proxy code: %w", err)
	}

	networkID, err := flags.GetUint64(NetworkIDKey)
	if err != nil {
		return err
	}

	saltStr, err := flags.GetString(SaltKey)
	if err != nil {
		return err
	}

	deployCut, err := parseCut(c)
	if err != nil {
		return err
	}

	addr := chain.ComputeAddress(common.HexToAddress(factoryStr), proxyCode, &chain.DeployRequest{
		NetworkID: networkID,
		Salt:      common.HexToHash(saltStr),
		Cut:       deployCut,
	})
	fmt.Fprintln(c.OutOrStdout(), addr.Hex())
	return nil
}

func HashCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "hash",
		Short: "Prints the commitment of a cut",
		RunE:  hashFunc,
	}
	c.Flags().String(CutKey, "", "Hex encoded cut (required)")
	return c
}

func hashFunc(c *cobra.Command, _ []string) error {
	payload, err := cutBytes(c)
	if err != nil {
		return err
	}
	// the payload must be a well formed cut to ever be revealed
	if _, err := cut.Parse(payload); err != nil {
		return err
	}
	fmt.Fprintln(c.OutOrStdout(), commitment.ComputeCommitment(payload).Hex())
	return nil
}

func cutBytes(c *cobra.Command) ([]byte, error) {
	cutStr, err := c.Flags().GetString(CutKey)
	if err != nil {
		return nil, err
	}
	payload, err := hexutil.Decode(cutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid cut: %w", err)
	}
	return payload, nil
}

func parseCut(c *cobra.Command) (*cut.Cut, error) {
	payload, err := cutBytes(c)
	if err != nil {
		return nil, err
	}
	return cut.Parse(payload)
}
