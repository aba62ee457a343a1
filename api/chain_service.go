// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"net/http"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"

	"github.com/luxfi/log"

	"github.com/luxfi/stm/chain"
)

// ChainService serves the read-only view of one created chain
type ChainService struct {
	log     log.Logger
	chainID uint64
	chain   chain.Chain
}

// NewChainService returns a handler serving the "chain" service for c.
func NewChainService(log log.Logger, chainID uint64, c chain.Chain) (http.Handler, error) {
	server := rpc.NewServer()
	codec := json2.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return server, server.RegisterService(
		&ChainService{
			log:     log,
			chainID: chainID,
			chain:   c,
		},
		"chain",
	)
}

// ChainInfoReply describes a chain
type ChainInfoReply struct {
	ChainID uint64 `json:"chainID"`
	Address string `json:"address"`
	Admin   string `json:"admin"`
}

// GetInfo returns the address and the admin of the chain
func (s *ChainService) GetInfo(r *http.Request, _ *struct{}, reply *ChainInfoReply) error {
	s.log.Debug("API called",
		log.String("service", "chain"),
		log.String("method", "getInfo"),
		log.Uint64("chainID", s.chainID),
	)

	admin, err := s.chain.GetAdmin(r.Context())
	if err != nil {
		return err
	}
	reply.ChainID = s.chainID
	reply.Address = s.chain.Address().Hex()
	reply.Admin = admin.Hex()
	return nil
}
