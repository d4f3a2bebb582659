package rpc

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nervosnetwork/ckb-go/types"
)

func TestServerGetTipHeaderRoute(t *testing.T) {
	b := newFakeBackend()
	h := testHeader(3)
	b.tipHash, b.tipNumber = h.Hash(), 3
	b.headers[h.Hash()] = h

	srv := NewServer(NewBlockChainAPI(b))
	req := httptest.NewRequest("POST", "/get_tip_header", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.Empty(t, env.Error)
	require.NotNil(t, env.Result)
}

func TestServerGetLiveCellUnknownOutPointReportsError(t *testing.T) {
	b := newFakeBackend()
	srv := NewServer(NewBlockChainAPI(b))

	body, err := json.Marshal(liveCellRequest{OutPoint: types.OutPoint{Index: 1}})
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/get_live_cell", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.Equal(t, errNotFound.Error(), env.Error)
}

func TestServerSendTransactionRoute(t *testing.T) {
	b := newFakeBackend()
	srv := NewServer(NewBlockChainAPI(b))

	tx := &types.Transaction{Inputs: []*types.CellInput{{PreviousCell: types.NullOutPoint}}}
	body, err := json.Marshal(sendTransactionRequest{Transaction: tx})
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/send_transaction", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.Empty(t, env.Error)
	require.Len(t, b.submitted, 1)
}
