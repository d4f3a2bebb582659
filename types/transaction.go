package types

import (
	"encoding/binary"

	"github.com/nervosnetwork/ckb-go/common"
)

// DepType distinguishes a single dependency cell from a dep-group cell
// whose data is itself a list of OutPoints to expand (§3).
type DepType uint8

const (
	DepTypeCode DepType = iota
	DepTypeDepGroup
)

// CellDep references a cell the transaction's scripts may read (§3).
type CellDep struct {
	OutPoint OutPoint
	DepType  DepType
}

func (d CellDep) serialize() []byte {
	buf := d.OutPoint.serialize()
	return append(buf, byte(d.DepType))
}

// Transaction is the protocol's atomic state-transition unit (§3).
//
// OutputsData is parallel to Outputs: OutputsData[i] is the data blob of
// Outputs[i]. Witnesses is parallel to Inputs for script-consumed byte
// strings, with any extra entries available to type scripts / header_deps
// per convention.
type Transaction struct {
	Version     uint32
	CellDeps    []CellDep
	HeaderDeps  []common.Hash
	Inputs      []*CellInput
	Outputs     []*CellOutput
	OutputsData [][]byte
	Witnesses   [][]byte
}

// IsCellbase reports whether this is a block's reward-issuing first
// transaction: exactly one input with a null previous_output (§3).
func (tx *Transaction) IsCellbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].PreviousCell.IsNull()
}

// serializeBody encodes everything except the witnesses, which is what
// the transaction hash covers (§3: witnesses are excluded from Hash so a
// signature can be attached without changing the tx's identity; the
// witness root instead feeds the header's CBMT alongside the tx-hash
// root, per §3 "transactions_root").
func (tx *Transaction) serializeBody() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, tx.Version)

	for _, d := range tx.CellDeps {
		buf = append(buf, d.serialize()...)
	}
	for _, h := range tx.HeaderDeps {
		buf = append(buf, h[:]...)
	}
	for _, in := range tx.Inputs {
		buf = append(buf, in.serialize()...)
	}
	for _, out := range tx.Outputs {
		buf = append(buf, out.serialize()...)
	}
	for _, d := range tx.OutputsData {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(d)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, d...)
	}
	return buf
}

// Hash is the transaction's identity: it excludes witnesses so that
// witness-only edits (e.g. adding a signature) don't change the hash used
// in OutPoints, proposals, and cell_deps.
func (tx *Transaction) Hash() common.Hash {
	return Hash256(tx.serializeBody())
}

// WitnessHash covers the full transaction including witnesses; it is the
// key the script-verification cache uses (§4.3: "cached verdicts keyed by
// the transaction's witness hash skip re-execution for unchanged
// content").
func (tx *Transaction) WitnessHash() common.Hash {
	buf := tx.serializeBody()
	for _, w := range tx.Witnesses {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(w)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, w...)
	}
	return Hash256(buf)
}

// ProposalShortID is the 10-byte truncated hash a proposal references a
// transaction by (§3 "proposals").
type ProposalShortID [10]byte

// ShortID derives tx's proposal short id from its hash.
func (tx *Transaction) ShortID() ProposalShortID {
	h := tx.Hash()
	var id ProposalShortID
	copy(id[:], h[:10])
	return id
}

// SerializedSize is the approximate on-wire size used for fee-rate and
// block-size accounting (§4.5, §7 "oversized block").
func (tx *Transaction) SerializedSize() uint64 {
	size := len(tx.serializeBody())
	for _, w := range tx.Witnesses {
		size += 4 + len(w)
	}
	return uint64(size)
}

// OutputCapacitySum sums all output capacities, erroring on overflow
// (§4.3 stage 1 "no overflow when summing capacities").
func (tx *Transaction) OutputCapacitySum() (uint64, bool) {
	var sum uint64
	for _, out := range tx.Outputs {
		next := sum + out.Capacity
		if next < sum {
			return 0, false
		}
		sum = next
	}
	return sum, true
}
