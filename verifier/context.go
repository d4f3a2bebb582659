package verifier

import (
	"github.com/nervosnetwork/ckb-go/cellset"
	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/types"
)

// CellSource resolves an OutPoint to its live-cell record; satisfied by
// both *cellset.Set and *cellset.Snapshot.
type CellSource interface {
	Get(op types.OutPoint) (*cellset.Record, bool)
}

// DataSource loads a cell's data blob on demand, kept separate from
// CellSource because the cell-set index deliberately only addresses
// data by hash (§4.1).
type DataSource interface {
	CellData(op types.OutPoint) ([]byte, bool)
}

// HeaderSource answers the header-index lookups resolution and the
// since/epoch/uncle checks need.
type HeaderSource interface {
	HeaderByHash(h common.Hash) (*types.Header, bool)
	HeaderByNumber(n uint64) (*types.Header, bool)
}

// Context is the resolution context a verification pass runs against: a
// specific tip's cell set and header index, plus whatever cells an
// earlier transaction in the same block already produced (§4.3 stage 2
// "unless the output is produced earlier in the same block").
type Context struct {
	Cells   CellSource
	Data    DataSource
	Headers HeaderSource

	// TargetBlockNumber is the height the transaction is being
	// validated for inclusion at (absolute block-number since checks
	// compare against this).
	TargetBlockNumber uint64
	CurrentEpochNumber uint64
	MedianTimePast     uint64

	IntraBlockCells map[types.OutPoint]*cellset.Record
	IntraBlockData  map[types.OutPoint][]byte
}

func (c *Context) resolveCell(op types.OutPoint) (*cellset.Record, []byte, bool) {
	if rec, ok := c.IntraBlockCells[op]; ok {
		return rec, c.IntraBlockData[op], true
	}
	rec, ok := c.Cells.Get(op)
	if !ok {
		return nil, nil, false
	}
	data, _ := c.Data.CellData(op)
	return rec, data, true
}

// epochNumberAt returns the epoch number in effect when block n was
// created, used by the cellbase maturity and relative-epoch since
// checks.
func (c *Context) epochNumberAt(n uint64) (uint64, bool) {
	h, ok := c.Headers.HeaderByNumber(n)
	if !ok {
		return 0, false
	}
	return h.Epoch.Number(), true
}

func (c *Context) timestampAt(n uint64) (uint64, bool) {
	h, ok := c.Headers.HeaderByNumber(n)
	if !ok {
		return 0, false
	}
	return h.Timestamp, true
}
