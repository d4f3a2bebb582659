package chain

import (
	"github.com/nervosnetwork/ckb-go/cellset"
	"github.com/nervosnetwork/ckb-go/store"
	"github.com/nervosnetwork/ckb-go/types"
	"github.com/nervosnetwork/ckb-go/verifier"
)

// cellDataSource bridges cellset's by-outpoint cell metadata to the actual
// data bytes verifier.DataSource needs. cellset.Record only carries a
// DataHash reference (§4.1 "addressed by hash, not inlined"), so the chain
// service is the one that persists and serves the bytes those hashes name.
// It content-addresses them in the same CellDataDB column family cellset
// already spills its own outpoint-keyed records into; the two keyspaces
// never collide because outPointKey hashes txhash+index while this hashes
// the data itself, and a Manager column family is just a keyspace, not a
// single-schema table.
// cells is typed as the narrow verifier.CellSource interface rather than
// the concrete *cellset.Set so the same data source can be built against
// either the live set (block processing, under Chain's lock) or a
// point-in-time *cellset.Snapshot (TipContext, which hands a Context to
// a caller outside that lock).
type cellDataSource struct {
	cells verifier.CellSource
	db    store.Manager
}

func newCellDataSource(cells verifier.CellSource, db store.Manager) *cellDataSource {
	return &cellDataSource{cells: cells, db: db}
}

func (d *cellDataSource) CellData(op types.OutPoint) ([]byte, bool) {
	rec, ok := d.cells.Get(op)
	if !ok {
		return nil, false
	}
	if rec.DataLen == 0 {
		return []byte{}, true
	}
	data, err := d.db.Get(store.CellDataDB, rec.DataHash[:])
	if err != nil {
		return nil, false
	}
	return data, true
}

// putCellData persists every output data blob of block, content-addressed
// by its hash, so a CellData lookup can still resolve cells long after the
// block that created them has scrolled out of the hot set.
func putCellData(db store.Manager, block *types.Block) error {
	for _, tx := range block.Transactions {
		for i := range tx.Outputs {
			data := dataAt(tx, i)
			if len(data) == 0 {
				continue
			}
			h := types.Hash256(data)
			if err := db.Put(store.CellDataDB, h[:], data); err != nil {
				return err
			}
		}
	}
	return nil
}

func dataAt(tx *types.Transaction, i int) []byte {
	if i < len(tx.OutputsData) {
		return tx.OutputsData[i]
	}
	return nil
}

// buildIntraBlockIndex returns, for each transaction index i, the map of
// cells (and their data) produced by transactions *earlier* in the same
// block (§4.3 stage 2's "produced earlier in the same block" allowance —
// never later, so index i never sees index i's own or any later tx's
// outputs). Building every index's cumulative view up front lets
// verifier.VerifyTransactionsParallel's worker pool call resolveCtx(i)
// concurrently without racing on shared mutable state.
func buildIntraBlockIndex(block *types.Block) (cellsByIndex []map[types.OutPoint]*cellset.Record, dataByIndex []map[types.OutPoint][]byte) {
	n := len(block.Transactions)
	cellsByIndex = make([]map[types.OutPoint]*cellset.Record, n)
	dataByIndex = make([]map[types.OutPoint][]byte, n)
	number := block.Number()

	cumCells := make(map[types.OutPoint]*cellset.Record)
	cumData := make(map[types.OutPoint][]byte)

	for i, tx := range block.Transactions {
		cellsByIndex[i] = cumCells
		dataByIndex[i] = cumData

		next := make(map[types.OutPoint]*cellset.Record, len(cumCells)+len(tx.Outputs))
		for k, v := range cumCells {
			next[k] = v
		}
		nextData := make(map[types.OutPoint][]byte, len(cumData)+len(tx.Outputs))
		for k, v := range cumData {
			nextData[k] = v
		}

		txHash := tx.Hash()
		isCellbase := tx.IsCellbase()
		for oi, out := range tx.Outputs {
			op := types.OutPoint{TxHash: txHash, Index: uint32(oi)}
			d := dataAt(tx, oi)
			next[op] = &cellset.Record{
				Output:     out,
				DataHash:   types.Hash256(d),
				DataLen:    uint64(len(d)),
				IsCellbase: isCellbase,
				CreatedBy:  number,
			}
			nextData[op] = d
		}
		cumCells, cumData = next, nextData
	}
	return cellsByIndex, dataByIndex
}
