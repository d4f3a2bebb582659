// Package rpc is the node's read-mostly JSON query surface: get_tip_header,
// get_block(_by_number), get_transaction, get_live_cell, and
// send_transaction, the small slice of CKB's RPC surface this module
// implements end to end. The rest of the real surface (indexer queries,
// pool/network introspection, experiment/debug methods) is out of scope;
// Backend and BlockChainAPI are written so adding one is a matter of
// another interface method and another API method next to these, the
// same shape api.PublicBlockChainAPI uses.
package rpc

import (
	"github.com/nervosnetwork/ckb-go/chain"
	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/txpool"
	"github.com/nervosnetwork/ckb-go/types"
)

// Backend is the narrow slice of node state BlockChainAPI needs,
// independent of whichever concrete chain/pool the caller wires in
// (tests bind a fake; cmd/ckbnode binds the real *chain.Chain and
// *txpool.Pool).
type Backend interface {
	Tip() (common.Hash, uint64)
	HeaderByHash(hash common.Hash) (*types.Header, bool)
	HeaderByNumber(number uint64) (*types.Header, bool)
	BlockByHash(hash common.Hash) (*types.Block, bool)
	BlockByNumber(number uint64) (*types.Block, bool)
	LiveCell(op types.OutPoint) (*cellsetRecord, []byte, bool)
	PoolTransaction(hash common.Hash) (*types.Transaction, bool)
	SubmitTransaction(tx *types.Transaction) error
}

// cellsetRecord mirrors the fields BlockChainAPI's view needs from
// cellset.Record without this package importing cellset directly for
// just a struct literal; nodeBackend's LiveCell fills it in from the
// real type.
type cellsetRecord struct {
	Output     *types.CellOutput
	DataHash   common.Hash
	IsCellbase bool
	CreatedBy  uint64
}

// nodeBackend adapts the real node services to Backend. It is the only
// piece of this package that imports chain/txpool concretely.
type nodeBackend struct {
	chain *chain.Chain
	pool  *txpool.Pool
}

// NewNodeBackend wires the running node's chain and pool into a Backend.
func NewNodeBackend(c *chain.Chain, p *txpool.Pool) Backend {
	return &nodeBackend{chain: c, pool: p}
}

func (b *nodeBackend) Tip() (common.Hash, uint64) { return b.chain.Tip() }

func (b *nodeBackend) HeaderByHash(hash common.Hash) (*types.Header, bool) {
	return b.chain.HeaderByHash(hash)
}

func (b *nodeBackend) HeaderByNumber(number uint64) (*types.Header, bool) {
	return b.chain.HeaderByNumber(number)
}

func (b *nodeBackend) BlockByHash(hash common.Hash) (*types.Block, bool) {
	return b.chain.BlockByHash(hash)
}

func (b *nodeBackend) BlockByNumber(number uint64) (*types.Block, bool) {
	return b.chain.BlockByNumber(number)
}

func (b *nodeBackend) LiveCell(op types.OutPoint) (*cellsetRecord, []byte, bool) {
	rec, data, ok := b.chain.LiveCell(op)
	if !ok {
		return nil, nil, false
	}
	return &cellsetRecord{Output: rec.Output, DataHash: rec.DataHash, IsCellbase: rec.IsCellbase, CreatedBy: rec.CreatedBy}, data, true
}

func (b *nodeBackend) PoolTransaction(hash common.Hash) (*types.Transaction, bool) {
	tx := b.pool.Get(hash)
	return tx, tx != nil
}

func (b *nodeBackend) SubmitTransaction(tx *types.Transaction) error {
	return b.pool.Submit(tx)
}
