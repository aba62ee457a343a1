// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/stm/api"
	"github.com/luxfi/stm/chain"
	"github.com/luxfi/stm/chains"
	"github.com/luxfi/stm/cut"
)

func newTestServer(t *testing.T, allowedHosts []string) *server {
	t.Helper()

	s, err := New(
		log.NewNoOpLogger(),
		nil,
		[]string{"*"},
		time.Second,
		metric.NewRegistry(),
		HTTPConfig{},
		allowedHosts,
	)
	require.NoError(t, err)
	return s.(*server)
}

func deployChain(t *testing.T, chainID uint64, admin common.Address) chain.Chain {
	t.Helper()

	record := &chain.InitRecord{ChainID: chainID, Admin: admin}
	deployer := chain.NewLocalDeployer(common.HexToAddress("0xfac7"), []byte{0x60}, nil)
	c, err := deployer.Deploy(context.Background(), &chain.DeployRequest{
		NetworkID: 1,
		Cut: &cut.Cut{
			InitAddress:  common.HexToAddress("0x0666"),
			InitCalldata: record.Calldata(),
		},
	})
	require.NoError(t, err)
	return c
}

func post(t *testing.T, handler http.Handler, url, method string, reply interface{}) error {
	t.Helper()

	body, err := json2.EncodeClientRequest(method, &struct{}{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	return json2.DecodeClientResponse(w.Body, reply)
}

func TestRegisterChain(t *testing.T) {
	require := require.New(t)

	s := newTestServer(t, []string{"*"})
	admin := common.HexToAddress("0x0c0c")
	c := deployChain(t, 7, admin)

	// registration through the manager's registrant adapter
	var failed bool
	registrant := chains.NewRegistrantAdapter(s, func(uint64, error) { failed = true })
	registrant.RegisterChain(7, c)
	require.False(failed)

	reply := api.ChainInfoReply{}
	require.NoError(post(t, s.srv.Handler, "/ext/chains/7", "chain.GetInfo", &reply))
	require.Equal(uint64(7), reply.ChainID)
	require.Equal(c.Address().Hex(), reply.Address)
	require.Equal(admin.Hex(), reply.Admin)

	// a chain id is served at most once
	registrant.RegisterChain(7, c)
	require.True(failed)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, []string{"*"})

	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ext/chains/8", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddRouteDuplicate(t *testing.T) {
	require := require.New(t)

	s := newTestServer(t, []string{"*"})
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	require.NoError(s.AddRoute(handler, "stm", ""))
	require.Error(s.AddRoute(handler, "stm", ""))
	require.NoError(s.AddRoute(handler, "stm", "/v2"))

	for _, path := range []string{"/ext/stm", "/ext/stm/v2"} {
		w := httptest.NewRecorder()
		s.srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(http.StatusTeapot, w.Code)
	}
}

func TestFilterInvalidHosts(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name         string
		allowedHosts []string
		host         string
		expectedCode int
	}{
		{
			name:         "wildcard",
			allowedHosts: []string{"*"},
			host:         "example.com",
			expectedCode: http.StatusTeapot,
		},
		{
			name:         "allowed host with port",
			allowedHosts: []string{"localhost"},
			host:         "LocalHost:9650",
			expectedCode: http.StatusTeapot,
		},
		{
			name:         "ip host",
			allowedHosts: []string{"localhost"},
			host:         "127.0.0.1:9650",
			expectedCode: http.StatusTeapot,
		},
		{
			name:         "empty host",
			allowedHosts: []string{"localhost"},
			host:         "",
			expectedCode: http.StatusTeapot,
		},
		{
			name:         "disallowed host",
			allowedHosts: []string{"localhost"},
			host:         "example.com",
			expectedCode: http.StatusForbidden,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Host = test.host
			w := httptest.NewRecorder()
			filterInvalidHosts(handler, test.allowedHosts).ServeHTTP(w, req)
			require.Equal(t, test.expectedCode, w.Code)
		})
	}
}
