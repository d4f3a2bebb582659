// Package cellset is the in-memory index of live cells over the canonical
// tip (§4.1): a mapping from OutPoint to a compact record, backed by an
// LRU hot set with spill-to-storage eviction once the index grows past
// its size cap.
package cellset

import (
	"encoding/binary"
	"fmt"

	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/types"
)

// Record is the compact per-cell entry the index carries: enough to
// validate an input without reloading the full transaction that created
// it. The cell's data blob is addressed by hash, not inlined, so a
// 1 MiB data cell doesn't bloat the hot set.
type Record struct {
	Output     *types.CellOutput
	DataHash   common.Hash
	DataLen    uint64
	IsCellbase bool
	CreatedBy  uint64 // block number
}

func outPointKey(op types.OutPoint) common.Hash {
	buf := make([]byte, common.HashLength+4)
	copy(buf, op.TxHash[:])
	binary.BigEndian.PutUint32(buf[common.HashLength:], op.Index)
	return types.Hash256(buf)
}

// encode serializes a Record for the storage adapter's CellDataDB and the
// fastcache spill layer; both want plain bytes, not Go pointers.
func (r *Record) encode() []byte {
	lock := r.Output.Lock
	typ := r.Output.Type

	buf := make([]byte, 0, 128+len(lock.Args))
	var tmp [8]byte

	binary.LittleEndian.PutUint64(tmp[:], r.Output.Capacity)
	buf = append(buf, tmp[:]...)

	buf = appendScript(buf, lock)
	if typ != nil {
		buf = append(buf, 1)
		buf = appendScript(buf, typ)
	} else {
		buf = append(buf, 0)
	}

	buf = append(buf, r.DataHash[:]...)
	binary.LittleEndian.PutUint64(tmp[:], r.DataLen)
	buf = append(buf, tmp[:]...)

	if r.IsCellbase {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	binary.LittleEndian.PutUint64(tmp[:], r.CreatedBy)
	buf = append(buf, tmp[:]...)

	return buf
}

func appendScript(buf []byte, s *types.Script) []byte {
	var tmp [8]byte
	buf = append(buf, s.CodeHash[:]...)
	buf = append(buf, byte(s.HashType))
	binary.LittleEndian.PutUint64(tmp[:], uint64(len(s.Args)))
	buf = append(buf, tmp[:]...)
	buf = append(buf, s.Args...)
	return buf
}

func decodeRecord(buf []byte) (*Record, error) {
	r := &Record{Output: &types.CellOutput{}}
	pos := 0

	readU64 := func() (uint64, error) {
		if pos+8 > len(buf) {
			return 0, fmt.Errorf("cellset: truncated record at offset %d", pos)
		}
		v := binary.LittleEndian.Uint64(buf[pos : pos+8])
		pos += 8
		return v, nil
	}
	readScript := func() (*types.Script, error) {
		if pos+common.HashLength+1+8 > len(buf) {
			return nil, fmt.Errorf("cellset: truncated script at offset %d", pos)
		}
		s := &types.Script{}
		copy(s.CodeHash[:], buf[pos:pos+common.HashLength])
		pos += common.HashLength
		s.HashType = types.HashType(buf[pos])
		pos++
		n, err := readU64()
		if err != nil {
			return nil, err
		}
		if pos+int(n) > len(buf) {
			return nil, fmt.Errorf("cellset: truncated script args at offset %d", pos)
		}
		s.Args = append([]byte(nil), buf[pos:pos+int(n)]...)
		pos += int(n)
		return s, nil
	}

	capacity, err := readU64()
	if err != nil {
		return nil, err
	}
	r.Output.Capacity = capacity

	lock, err := readScript()
	if err != nil {
		return nil, err
	}
	r.Output.Lock = lock

	if pos >= len(buf) {
		return nil, fmt.Errorf("cellset: truncated record, missing type flag")
	}
	hasType := buf[pos]
	pos++
	if hasType == 1 {
		typ, err := readScript()
		if err != nil {
			return nil, err
		}
		r.Output.Type = typ
	}

	if pos+common.HashLength > len(buf) {
		return nil, fmt.Errorf("cellset: truncated record, missing data hash")
	}
	copy(r.DataHash[:], buf[pos:pos+common.HashLength])
	pos += common.HashLength

	dataLen, err := readU64()
	if err != nil {
		return nil, err
	}
	r.DataLen = dataLen

	if pos >= len(buf) {
		return nil, fmt.Errorf("cellset: truncated record, missing cellbase flag")
	}
	r.IsCellbase = buf[pos] == 1
	pos++

	createdBy, err := readU64()
	if err != nil {
		return nil, err
	}
	r.CreatedBy = createdBy

	return r, nil
}
