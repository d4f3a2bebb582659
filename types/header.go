package types

import (
	"encoding/binary"

	"github.com/nervosnetwork/ckb-go/common"
)

// Header is a block's fixed-size metadata (§3).
type Header struct {
	Version          uint32
	CompactTarget    CompactTarget
	Timestamp        uint64 // milliseconds since epoch
	Number           uint64
	Epoch            EpochNumberWithFraction
	ParentHash       common.Hash
	TransactionsRoot common.Hash // CBMT over tx hashes and witness hashes
	ProposalsHash    common.Hash
	UnclesHash       common.Hash
	Dao              DaoField
	Nonce            [16]byte
}

func (h *Header) serialize() []byte {
	buf := make([]byte, 0, 4+4+8+8+8+32*4+32+16)
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

	daoBuf := h.Dao.Serialize()
	buf = append(buf, daoBuf[:]...)
	buf = append(buf, h.Nonce[:]...)
	return buf
}

// Hash is the header's identity and the value PoW is checked against
// (§4.4 "apply the hash function to the header serialization").
func (h *Header) Hash() common.Hash {
	return Hash256(h.serialize())
}

// MeetsTarget reports whether h's hash, read as a big-endian 256-bit
// integer, is numerically <= the target decoded from CompactTarget
// (§4.4 non-contextual PoW check).
func (h *Header) MeetsTarget() bool {
	hash := h.Hash()
	target := h.CompactTarget.ToTarget()
	for i := 0; i < common.HashLength; i++ {
		if hash[i] < target[i] {
			return true
		}
		if hash[i] > target[i] {
			return false
		}
	}
	return true
}
