package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/types"
)

type fakeBackend struct {
	tipHash    common.Hash
	tipNumber  uint64
	headers    map[common.Hash]*types.Header
	byNumber   map[uint64]common.Hash
	blocks     map[common.Hash]*types.Block
	poolTxs    map[common.Hash]*types.Transaction
	cells      map[types.OutPoint]*cellsetRecord
	cellData   map[types.OutPoint][]byte
	submitted  []*types.Transaction
	submitErr  error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		headers:  make(map[common.Hash]*types.Header),
		byNumber: make(map[uint64]common.Hash),
		blocks:   make(map[common.Hash]*types.Block),
		poolTxs:  make(map[common.Hash]*types.Transaction),
		cells:    make(map[types.OutPoint]*cellsetRecord),
		cellData: make(map[types.OutPoint][]byte),
	}
}

func (f *fakeBackend) Tip() (common.Hash, uint64) { return f.tipHash, f.tipNumber }

func (f *fakeBackend) HeaderByHash(hash common.Hash) (*types.Header, bool) {
	h, ok := f.headers[hash]
	return h, ok
}

func (f *fakeBackend) HeaderByNumber(number uint64) (*types.Header, bool) {
	hash, ok := f.byNumber[number]
	if !ok {
		return nil, false
	}
	return f.HeaderByHash(hash)
}

func (f *fakeBackend) BlockByHash(hash common.Hash) (*types.Block, bool) {
	b, ok := f.blocks[hash]
	return b, ok
}

func (f *fakeBackend) BlockByNumber(number uint64) (*types.Block, bool) {
	hash, ok := f.byNumber[number]
	if !ok {
		return nil, false
	}
	return f.BlockByHash(hash)
}

func (f *fakeBackend) LiveCell(op types.OutPoint) (*cellsetRecord, []byte, bool) {
	rec, ok := f.cells[op]
	if !ok {
		return nil, nil, false
	}
	return rec, f.cellData[op], true
}

func (f *fakeBackend) PoolTransaction(hash common.Hash) (*types.Transaction, bool) {
	tx, ok := f.poolTxs[hash]
	return tx, ok
}

func (f *fakeBackend) SubmitTransaction(tx *types.Transaction) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, tx)
	return nil
}

func testHeader(number uint64) *types.Header {
	return &types.Header{Number: number, Epoch: types.PackEpoch(0, 0, 1000)}
}

func TestGetTipHeaderReturnsCurrentTip(t *testing.T) {
	b := newFakeBackend()
	h := testHeader(5)
	b.tipHash, b.tipNumber = h.Hash(), 5
	b.headers[h.Hash()] = h

	api := NewBlockChainAPI(b)
	view, err := api.GetTipHeader()
	require.NoError(t, err)
	require.Equal(t, HexUint64(5), view.Number)
}

func TestGetHeaderByNumberNotFound(t *testing.T) {
	api := NewBlockChainAPI(newFakeBackend())
	_, err := api.GetHeaderByNumber(42)
	require.ErrorIs(t, err, errNotFound)
}

func TestGetBlockByNumberRoundTripsTransactions(t *testing.T) {
	b := newFakeBackend()
	h := testHeader(1)
	tx := &types.Transaction{Inputs: []*types.CellInput{{PreviousCell: types.NullOutPoint}}}
	block := &types.Block{Header: h, Transactions: []*types.Transaction{tx}}
	b.byNumber[1] = h.Hash()
	b.blocks[h.Hash()] = block

	api := NewBlockChainAPI(b)
	view, err := api.GetBlockByNumber(1)
	require.NoError(t, err)
	require.Len(t, view.Transactions, 1)
	require.Equal(t, tx.Hash(), view.Transactions[0].Hash)
}

func TestGetLiveCellReturnsOutputAndData(t *testing.T) {
	b := newFakeBackend()
	op := types.OutPoint{Index: 0}
	out := &types.CellOutput{Capacity: 1000, Lock: &types.Script{}}
	b.cells[op] = &cellsetRecord{Output: out, CreatedBy: 7}
	b.cellData[op] = []byte("payload")

	api := NewBlockChainAPI(b)
	view, err := api.GetLiveCell(op)
	require.NoError(t, err)
	require.Equal(t, HexUint64(1000), view.Output.Capacity)
	require.Equal(t, HexBytes("payload"), view.OutputData)
	require.Equal(t, HexUint64(7), view.CreatedBy)
}

func TestGetLiveCellNotFoundForUnknownOutPoint(t *testing.T) {
	api := NewBlockChainAPI(newFakeBackend())
	_, err := api.GetLiveCell(types.OutPoint{Index: 99})
	require.ErrorIs(t, err, errNotFound)
}

func TestSendTransactionSubmitsAndReturnsHash(t *testing.T) {
	b := newFakeBackend()
	api := NewBlockChainAPI(b)
	tx := &types.Transaction{Inputs: []*types.CellInput{{PreviousCell: types.NullOutPoint}}}

	hash, err := api.SendTransaction(tx)
	require.NoError(t, err)
	require.Equal(t, tx.Hash(), hash)
	require.Len(t, b.submitted, 1)
}

func TestSendTransactionPropagatesSubmitError(t *testing.T) {
	b := newFakeBackend()
	b.submitErr = errNotFound
	api := NewBlockChainAPI(b)

	_, err := api.SendTransaction(&types.Transaction{})
	require.Error(t, err)
}
