package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/pkg/log"
	"github.com/nervosnetwork/ckb-go/types"
)

var logger = log.NewModuleLogger(log.RPC)

// envelope is the response shape every handler below writes: exactly
// one of Result or Error is set, never both. This is a deliberately
// narrower wire format than JSON-RPC 2.0 (no id, no batching, one
// method per route instead of one endpoint dispatching by method
// name) — ample for the handful of calls this module implements, and
// easy to grow into the full spec later without breaking a client that
// only reads result/error.
type envelope struct {
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func writeResult(w http.ResponseWriter, result interface{}, err error) {
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		logger.Debug("rpc call failed", "err", err)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(envelope{Error: err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(envelope{Result: result})
}

// Server exposes BlockChainAPI over HTTP, one POST route per method,
// via httprouter.
type Server struct {
	api    *BlockChainAPI
	router *httprouter.Router
}

func NewServer(api *BlockChainAPI) *Server {
	s := &Server{api: api, router: httprouter.New()}
	s.router.POST("/get_tip_header", s.handleGetTipHeader)
	s.router.POST("/get_header", s.handleGetHeader)
	s.router.POST("/get_header_by_number", s.handleGetHeaderByNumber)
	s.router.POST("/get_block", s.handleGetBlock)
	s.router.POST("/get_block_by_number", s.handleGetBlockByNumber)
	s.router.POST("/get_transaction", s.handleGetTransaction)
	s.router.POST("/get_live_cell", s.handleGetLiveCell)
	s.router.POST("/send_transaction", s.handleSendTransaction)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleGetTipHeader(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	result, err := s.api.GetTipHeader()
	writeResult(w, result, err)
}

type hashRequest struct {
	Hash common.Hash `json:"hash"`
}

func (s *Server) handleGetHeader(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req hashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, nil, err)
		return
	}
	result, err := s.api.GetHeader(req.Hash)
	writeResult(w, result, err)
}

type numberRequest struct {
	Number HexUint64 `json:"number"`
}

func (s *Server) handleGetHeaderByNumber(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req numberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, nil, err)
		return
	}
	result, err := s.api.GetHeaderByNumber(uint64(req.Number))
	writeResult(w, result, err)
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req hashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, nil, err)
		return
	}
	result, err := s.api.GetBlock(req.Hash)
	writeResult(w, result, err)
}

func (s *Server) handleGetBlockByNumber(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req numberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, nil, err)
		return
	}
	result, err := s.api.GetBlockByNumber(uint64(req.Number))
	writeResult(w, result, err)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req hashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, nil, err)
		return
	}
	result, err := s.api.GetTransaction(req.Hash)
	writeResult(w, result, err)
}

type liveCellRequest struct {
	OutPoint types.OutPoint `json:"out_point"`
}

func (s *Server) handleGetLiveCell(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req liveCellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, nil, err)
		return
	}
	result, err := s.api.GetLiveCell(req.OutPoint)
	writeResult(w, result, err)
}

type sendTransactionRequest struct {
	Transaction *types.Transaction `json:"transaction"`
}

func (s *Server) handleSendTransaction(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req sendTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, nil, err)
		return
	}
	hash, err := s.api.SendTransaction(req.Transaction)
	if err != nil {
		writeResult(w, nil, err)
		return
	}
	writeResult(w, hash, nil)
}
