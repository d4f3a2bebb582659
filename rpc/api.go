package rpc

import (
	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/types"
)

// BlockChainAPI offers read access to canonical chain state plus
// transaction submission, mirroring the shape of the teacher's
// PublicBlockChainAPI: a thin struct wrapping a Backend, one method per
// RPC call, no method touching Backend's concrete type.
type BlockChainAPI struct {
	b Backend
}

func NewBlockChainAPI(b Backend) *BlockChainAPI {
	return &BlockChainAPI{b: b}
}

// GetTipHeader returns the current canonical tip's header.
func (a *BlockChainAPI) GetTipHeader() (*HeaderView, error) {
	hash, _ := a.b.Tip()
	h, ok := a.b.HeaderByHash(hash)
	if !ok {
		return nil, errNotFound
	}
	return newHeaderView(h), nil
}

// GetHeader returns the header identified by hash.
func (a *BlockChainAPI) GetHeader(hash common.Hash) (*HeaderView, error) {
	h, ok := a.b.HeaderByHash(hash)
	if !ok {
		return nil, errNotFound
	}
	return newHeaderView(h), nil
}

// GetHeaderByNumber returns the canonical header at number.
func (a *BlockChainAPI) GetHeaderByNumber(number uint64) (*HeaderView, error) {
	h, ok := a.b.HeaderByNumber(number)
	if !ok {
		return nil, errNotFound
	}
	return newHeaderView(h), nil
}

// GetBlock returns the full block identified by hash.
func (a *BlockChainAPI) GetBlock(hash common.Hash) (*BlockView, error) {
	b, ok := a.b.BlockByHash(hash)
	if !ok {
		return nil, errNotFound
	}
	return newBlockView(b), nil
}

// GetBlockByNumber returns the canonical block at number.
func (a *BlockChainAPI) GetBlockByNumber(number uint64) (*BlockView, error) {
	b, ok := a.b.BlockByNumber(number)
	if !ok {
		return nil, errNotFound
	}
	return newBlockView(b), nil
}

// GetTransaction returns a pending, gap or proposed transaction known to
// the pool. A committed transaction is only available through the block
// that contains it (GetBlock/GetBlockByNumber): this module's pool
// keeps only a short recently-committed cache for reorg replay, not a
// durable transaction index (see txpool's own DESIGN.md entry).
func (a *BlockChainAPI) GetTransaction(hash common.Hash) (*TransactionView, error) {
	tx, ok := a.b.PoolTransaction(hash)
	if !ok {
		return nil, errNotFound
	}
	return newTransactionView(tx), nil
}

// GetLiveCell returns a cell's current output and data if it is still
// unspent.
func (a *BlockChainAPI) GetLiveCell(op types.OutPoint) (*LiveCellView, error) {
	rec, data, ok := a.b.LiveCell(op)
	if !ok {
		return nil, errNotFound
	}
	return &LiveCellView{
		Output: &CellOutputView{
			Capacity: HexUint64(rec.Output.Capacity),
			Lock:     newScriptView(rec.Output.Lock),
			Type:     newScriptView(rec.Output.Type),
		},
		OutputData: data,
		DataHash:   rec.DataHash,
		IsCellbase: rec.IsCellbase,
		CreatedBy:  HexUint64(rec.CreatedBy),
	}, nil
}

// SendTransaction submits tx to the pool and returns its hash once
// admitted.
func (a *BlockChainAPI) SendTransaction(tx *types.Transaction) (common.Hash, error) {
	if err := a.b.SubmitTransaction(tx); err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}
