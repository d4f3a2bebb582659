package types

import "math/bits"

// EpochNumberWithFraction packs which epoch a block belongs to and its
// fractional position within it: length:16 | index:16 | number:24 (§3).
// The remaining 8 high bits are reserved.
type EpochNumberWithFraction uint64

func PackEpoch(number, index, length uint64) EpochNumberWithFraction {
	return EpochNumberWithFraction((length&0xffff)<<40 | (index&0xffff)<<24 | (number & 0xffffff))
}

func (e EpochNumberWithFraction) Number() uint64 { return uint64(e) & 0xffffff }
func (e EpochNumberWithFraction) Index() uint64   { return (uint64(e) >> 24) & 0xffff }
func (e EpochNumberWithFraction) Length() uint64  { return (uint64(e) >> 40) & 0xffff }

// IsFullyElapsed reports whether this field points at the last block of
// its epoch (index == length-1), the point at which the next block
// starts a new epoch.
func (e EpochNumberWithFraction) IsFullyElapsed() bool {
	return e.Length() > 0 && e.Index()+1 == e.Length()
}

// DaoField is the header's packed issuance/occupied-capacity accumulator
// (§3 GLOSSARY "DAO field"): C is cumulative issuance, AR is the
// accumulated secondary-issuance rate (fixed-point, scaled by 1e16), S is
// cumulative occupied capacity of live cells, U is cumulative
// unoccupied (freely spendable) capacity. Together they let a withdrawal
// compute its payout without replaying the whole chain (§8 scenario 5).
type DaoField struct {
	C  uint64
	AR uint64
	S  uint64
	U  uint64
}

// Serialize packs C, AR, S and U as consecutive little-endian uint64s.
func (d DaoField) Serialize() [32]byte {
	var buf [32]byte
	putU64(buf[0:8], d.C)
	putU64(buf[8:16], d.AR)
	putU64(buf[16:24], d.S)
	putU64(buf[24:32], d.U)
	return buf
}

func DeserializeDao(buf [32]byte) DaoField {
	return DaoField{
		C:  getU64(buf[0:8]),
		AR: getU64(buf[8:16]),
		S:  getU64(buf[16:24]),
		U:  getU64(buf[24:32]),
	}
}

// arScale is the fixed-point scale AR is expressed in.
const arScale = uint64(1e16)

// WithdrawCapacity computes the maximum a deposit may withdraw given the
// AR recorded at deposit time and at withdrawal time (§8 scenario 5:
// "computed maximum withdraw equals deposit * (accumulated secondary
// issuance factor)").
func WithdrawCapacity(depositCapacity uint64, depositAR, withdrawAR uint64) uint64 {
	if depositAR == 0 {
		return depositCapacity
	}
	// depositCapacity * withdrawAR / depositAR, computed at 128-bit
	// precision so a large deposit times the AR ratio cannot overflow.
	hi, lo := bits.Mul64(depositCapacity, withdrawAR)
	q, _ := bits.Div64(hi, lo, depositAR)
	return q
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

