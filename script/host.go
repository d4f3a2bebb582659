package script

import (
	"encoding/binary"

	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/types"
)

// ExecEnv is everything a transaction's scripts may read, resolved ahead
// of time by the verifier (§4.3's resolution stage): the cell metadata
// and data blob for every input and dep, plus the headers named by
// header_deps. Script groups never resolve anything themselves; they
// only slice into this.
type ExecEnv struct {
	Tx *types.Transaction

	Inputs     ResolvedInputs
	InputsData [][]byte

	Deps     ResolvedInputs
	DepsData [][]byte

	HeaderDeps []*types.Header
}

// host implements HostAPI for one group invocation: LoadScriptHash and
// the SourceGroupInput/SourceGroupOutput cases are relative to group.
type host struct {
	env   *ExecEnv
	group *Group
}

func (h *host) LoadScriptHash() [32]byte {
	return [32]byte(h.group.ScriptHash)
}

func (h *host) cellAt(source Source, index int) (*types.CellOutput, []byte, bool) {
	switch source {
	case SourceInput:
		if index < 0 || index >= len(h.env.Inputs) || h.env.Inputs[index] == nil {
			return nil, nil, false
		}
		var data []byte
		if index < len(h.env.InputsData) {
			data = h.env.InputsData[index]
		}
		return h.env.Inputs[index].Output, data, true
	case SourceOutput:
		if index < 0 || index >= len(h.env.Tx.Outputs) {
			return nil, nil, false
		}
		var data []byte
		if index < len(h.env.Tx.OutputsData) {
			data = h.env.Tx.OutputsData[index]
		}
		return h.env.Tx.Outputs[index], data, true
	case SourceDep:
		if index < 0 || index >= len(h.env.Deps) || h.env.Deps[index] == nil {
			return nil, nil, false
		}
		var data []byte
		if index < len(h.env.DepsData) {
			data = h.env.DepsData[index]
		}
		return h.env.Deps[index].Output, data, true
	case SourceGroupInput:
		if index < 0 || index >= len(h.group.InputIndices) {
			return nil, nil, false
		}
		return h.cellAt(SourceInput, h.group.InputIndices[index])
	case SourceGroupOutput:
		if index < 0 || index >= len(h.group.OutputIndices) {
			return nil, nil, false
		}
		return h.cellAt(SourceOutput, h.group.OutputIndices[index])
	default:
		return nil, nil, false
	}
}

func (h *host) LoadCell(source Source, index int, field Field) ([]byte, bool, error) {
	cell, data, ok := h.cellAt(source, index)
	if !ok {
		return nil, false, ErrIndexOutOfBounds
	}

	switch field {
	case FieldCapacity:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], cell.Capacity)
		return buf[:], false, nil
	case FieldDataHash:
		h := types.Hash256(data)
		return h[:], false, nil
	case FieldLock:
		return encodeScript(cell.Lock), false, nil
	case FieldLockHash:
		h := cell.Lock.Hash()
		return h[:], false, nil
	case FieldType:
		if cell.Type == nil {
			return nil, false, ErrFieldAbsent
		}
		return encodeScript(cell.Type), false, nil
	case FieldTypeHash:
		if cell.Type == nil {
			return nil, false, ErrFieldAbsent
		}
		h := cell.Type.Hash()
		return h[:], false, nil
	case FieldOccupiedCapacity:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], cell.OccupiedBytes(len(data)))
		return buf[:], false, nil
	default:
		return nil, false, ErrUnknownField
	}
}

func (h *host) LoadCellData(source Source, index, offset, length int) ([]byte, bool, error) {
	_, data, ok := h.cellAt(source, index)
	if !ok {
		return nil, false, ErrIndexOutOfBounds
	}
	return slice(data, offset, length)
}

func (h *host) LoadWitness(index, offset, length int) ([]byte, bool, error) {
	if index < 0 || index >= len(h.env.Tx.Witnesses) {
		return nil, false, ErrIndexOutOfBounds
	}
	return slice(h.env.Tx.Witnesses[index], offset, length)
}

func (h *host) LoadTransaction() ([]byte, bool, error) {
	return encodeTransaction(h.env.Tx), false, nil
}

func (h *host) LoadHeader(index, offset, length int) ([]byte, bool, error) {
	if index < 0 || index >= len(h.env.HeaderDeps) {
		return nil, false, ErrIndexOutOfBounds
	}
	return slice(encodeHeader(h.env.HeaderDeps[index]), offset, length)
}

func (h *host) Debug(msg string) {
	logger.Debug("script debug", "hash", h.group.ScriptHash.Hex(), "msg", msg)
}

// slice applies a syscall's (offset, length) window to data, reporting
// truncation when fewer bytes were available than requested (§4.2:
// "each syscall returns partial reads with an explicit truncation
// indicator").
func slice(data []byte, offset, length int) ([]byte, bool, error) {
	if offset < 0 || offset > len(data) {
		return nil, false, ErrIndexOutOfBounds
	}
	end := offset + length
	truncated := false
	if length < 0 || end > len(data) {
		end = len(data)
		truncated = true
	}
	return data[offset:end], truncated, nil
}

func encodeScript(s *types.Script) []byte {
	buf := make([]byte, 0, common.HashLength+1+8+len(s.Args))
	buf = append(buf, s.CodeHash[:]...)
	buf = append(buf, byte(s.HashType))
	var ln [8]byte
	binary.LittleEndian.PutUint64(ln[:], uint64(len(s.Args)))
	buf = append(buf, ln[:]...)
	buf = append(buf, s.Args...)
	return buf
}

func encodeTransaction(tx *types.Transaction) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, tx.Version)
	for _, d := range tx.CellDeps {
		buf = append(buf, d.OutPoint.TxHash[:]...)
		var idx [4]byte
		binary.LittleEndian.PutUint32(idx[:], d.OutPoint.Index)
		buf = append(buf, idx[:]...)
		buf = append(buf, byte(d.DepType))
	}
	for _, hd := range tx.HeaderDeps {
		buf = append(buf, hd[:]...)
	}
	for _, in := range tx.Inputs {
		var s [8]byte
		binary.LittleEndian.PutUint64(s[:], uint64(in.Since))
		buf = append(buf, s[:]...)
		buf = append(buf, in.PreviousCell.TxHash[:]...)
		var idx [4]byte
		binary.LittleEndian.PutUint32(idx[:], in.PreviousCell.Index)
		buf = append(buf, idx[:]...)
	}
	for _, out := range tx.Outputs {
		buf = append(buf, encodeScript(out.Lock)...)
		if out.Type != nil {
			buf = append(buf, encodeScript(out.Type)...)
		}
	}
	for _, w := range tx.Witnesses {
		var ln [4]byte
		binary.LittleEndian.PutUint32(ln[:], uint32(len(w)))
		buf = append(buf, ln[:]...)
		buf = append(buf, w...)
	}
	return buf
}

func encodeHeader(h *types.Header) []byte {
	buf := make([]byte, 0, 128)
	var u32 [4]byte
	var u64 [8]byte

	binary.LittleEndian.PutUint32(u32[:], h.Version)
	buf = append(buf, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], uint32(h.CompactTarget))
	buf = append(buf, u32[:]...)
	binary.LittleEndian.PutUint64(u64[:], h.Timestamp)
	buf = append(buf, u64[:]...)
	binary.LittleEndian.PutUint64(u64[:], h.Number)
	buf = append(buf, u64[:]...)
	binary.LittleEndian.PutUint64(u64[:], uint64(h.Epoch))
	buf = append(buf, u64[:]...)
	buf = append(buf, h.ParentHash[:]...)
	buf = append(buf, h.TransactionsRoot[:]...)
	buf = append(buf, h.ProposalsHash[:]...)
	buf = append(buf, h.UnclesHash[:]...)
	dao := h.Dao.Serialize()
	buf = append(buf, dao[:]...)
	buf = append(buf, h.Nonce[:]...)
	return buf
}
