// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/stm/chain"
	"github.com/luxfi/stm/chains"
	"github.com/luxfi/stm/cut"
	"github.com/luxfi/stm/genesis"
)

var (
	self      = common.HexToAddress("0x5e1f")
	registrar = common.HexToAddress("0xb41d9e")
	owner     = common.HexToAddress("0x0111")
	admin     = common.HexToAddress("0x0222")
	stranger  = common.HexToAddress("0x0333")
	chainOps  = common.HexToAddress("0x0c0c")
	factory   = common.HexToAddress("0xfac7")
)

func testCut() *cut.Cut {
	return &cut.Cut{
		FacetCuts: []cut.FacetCut{{
			Facet:     common.HexToAddress("0x0777"),
			Action:    cut.Add,
			Selectors: []cut.Selector{cut.SelectorOf("getAdmin()")},
		}},
		InitAddress:  common.HexToAddress("0x0666"),
		InitCalldata: []byte("init"),
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *chain.LocalDeployer) {
	t.Helper()
	require := require.New(t)

	deployer := chain.NewLocalDeployer(factory, []byte{0x60, 0x80}, nil)
	m, err := chains.New(&chains.ManagerConfig{
		Log:        log.NewNoOpLogger(),
		Registerer: metric.NewRegistry(),
		DB:         memdb.New(),
		Deployer:   deployer,
		Self:       self,
		Registrar:  registrar,
		NetworkID:  1,
		Salt:       common.HexToHash("0x01"),
	})
	require.NoError(err)
	require.NoError(m.Initialize(context.Background(), chains.InitParams{
		Owner:              owner,
		ValidatorAuthority: common.HexToAddress("0x0444"),
		GenesisUpgrade:     common.HexToAddress("0x0555"),
		Genesis: genesis.Params{
			BatchHash:                   common.HexToHash("0x1234"),
			IndexRepeatedStorageChanges: 1,
			Commitment:                  common.HexToHash("0x5678"),
		},
		ProtocolVersion: 3,
		InitialCut:      testCut().Bytes(),
	}))

	handler, err := NewService(log.NewNoOpLogger(), m)
	require.NoError(err)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, deployer
}

func call(t *testing.T, url, method string, args, reply interface{}) error {
	t.Helper()
	require := require.New(t)

	body, err := json2.EncodeClientRequest(method, args)
	require.NoError(err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(err)
	defer resp.Body.Close()

	return json2.DecodeClientResponse(resp.Body, reply)
}

func TestServiceGovernance(t *testing.T) {
	require := require.New(t)
	server, _ := newTestServer(t)

	require.NoError(call(t, server.URL, "stm.ProposeAdmin", &AddressArgs{
		Caller:  owner,
		Address: admin,
	}, &EmptyReply{}))

	reply := GovernanceReply{}
	require.NoError(call(t, server.URL, "stm.GetGovernance", &struct{}{}, &reply))
	require.Equal(owner, reply.Owner)
	require.Equal(admin, reply.PendingAdmin)
	require.Equal(common.Address{}, reply.Admin)

	require.NoError(call(t, server.URL, "stm.AcceptAdmin", &CallerArgs{Caller: admin}, &EmptyReply{}))
	require.NoError(call(t, server.URL, "stm.GetGovernance", &struct{}{}, &reply))
	require.Equal(admin, reply.Admin)
	require.Equal(common.Address{}, reply.PendingAdmin)
}

func TestServiceRejectsUnauthorizedCaller(t *testing.T) {
	require := require.New(t)
	server, _ := newTestServer(t)

	err := call(t, server.URL, "stm.ProposeOwner", &AddressArgs{
		Caller:  stranger,
		Address: stranger,
	}, &EmptyReply{})
	require.ErrorContains(err, chains.ErrUnauthorized.Error())
}

func TestServiceCreateChain(t *testing.T) {
	require := require.New(t)
	server, deployer := newTestServer(t)

	args := &CreateChainArgs{
		Caller:    registrar,
		ChainID:   7,
		BaseToken: common.HexToAddress("0x0a0a"),
		Bridge:    common.HexToAddress("0x0b0b"),
		Admin:     chainOps,
		Cut:       testCut().Bytes(),
	}

	predicted := AddressReply{}
	require.NoError(call(t, server.URL, "stm.PredictChainAddress", args, &predicted))

	created := AddressReply{}
	require.NoError(call(t, server.URL, "stm.CreateChain", args, &created))
	require.Equal(predicted.Address, created.Address)
	require.Equal(1, deployer.Len())

	got := AddressReply{}
	require.NoError(call(t, server.URL, "stm.GetChain", &ChainArgs{ChainID: 7}, &got))
	require.Equal(created.Address, got.Address)

	chainAdmin := AddressReply{}
	require.NoError(call(t, server.URL, "stm.GetChainAdmin", &ChainArgs{ChainID: 7}, &chainAdmin))
	require.Equal(chainOps, chainAdmin.Address)

	ids := ChainIDsReply{}
	require.NoError(call(t, server.URL, "stm.GetChainIDs", &struct{}{}, &ids))
	require.Equal([]hexutil.Uint64{7}, ids.ChainIDs)

	require.NoError(call(t, server.URL, "stm.FreezeChain", &ChainControlArgs{
		Caller:  owner,
		ChainID: 7,
	}, &EmptyReply{}))
	l, ok := deployer.Local(created.Address)
	require.True(ok)
	require.Equal(chain.Frozen, l.Status())
}

func TestServiceCommitments(t *testing.T) {
	require := require.New(t)
	server, _ := newTestServer(t)

	payload := []byte("upgrade payload")
	require.NoError(call(t, server.URL, "stm.SetNewVersionUpgrade", &CommitArgs{
		Caller:      owner,
		Payload:     payload,
		FromVersion: 3,
		ToVersion:   4,
	}, &EmptyReply{}))

	reply := CommitmentsReply{}
	require.NoError(call(t, server.URL, "stm.GetCommitments", &GetCommitmentsArgs{FromVersion: 3}, &reply))
	require.Equal(hexutil.Uint64(4), reply.ProtocolVersion)
	require.NotEqual(common.Hash{}, reply.UpgradeCutHash)
	require.Equal(testCut().Hash(), reply.InitialCutHash)
	require.NotEqual(common.Hash{}, reply.GenesisAnchor)
}

func TestServiceRejectsBadCut(t *testing.T) {
	require := require.New(t)
	server, _ := newTestServer(t)

	err := call(t, server.URL, "stm.ExecuteUpgrade", &ChainControlArgs{
		Caller:  owner,
		ChainID: 7,
		Cut:     []byte{0x01},
	}, &EmptyReply{})
	require.ErrorContains(err, chains.ErrInvalidArgument.Error())
}

func TestChainService(t *testing.T) {
	require := require.New(t)

	deployer := chain.NewLocalDeployer(factory, []byte{0x60}, nil)
	// a deployed chain answers getAdmin with the admin of its init record
	record := &chain.InitRecord{ChainID: 9, Manager: self, Admin: chainOps}
	c := testCut()
	c.InitCalldata = record.Calldata()
	deployed, err := deployer.Deploy(context.Background(), &chain.DeployRequest{NetworkID: 1, Cut: c})
	require.NoError(err)

	handler, err := NewChainService(log.NewNoOpLogger(), 9, deployed)
	require.NoError(err)
	server := httptest.NewServer(handler)
	defer server.Close()

	reply := ChainInfoReply{}
	require.NoError(call(t, server.URL, "chain.GetInfo", &struct{}{}, &reply))
	require.Equal(uint64(9), reply.ChainID)
	require.Equal(deployed.Address().Hex(), reply.Address)
	require.Equal(chainOps.Hex(), reply.Admin)
}
