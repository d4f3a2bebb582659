package types

import (
	"encoding/binary"
	"math/big"

	"github.com/nervosnetwork/ckb-go/common"
)

// HashType selects how a Script's CodeHash is matched against a dependency
// cell, per §3: `data` hashes the dependency's data blob; `type` matches
// the dependency's type-script hash, enabling upgradeable code.
type HashType uint8

const (
	HashTypeData HashType = iota
	HashTypeType
)

func (t HashType) String() string {
	if t == HashTypeType {
		return "type"
	}
	return "data"
}

// Script is a lock or type program: (code_hash, hash_type, args), §3.
type Script struct {
	CodeHash common.Hash
	HashType HashType
	Args     []byte
}

// Hash returns the script's own identity hash, used as the grouping key
// for the Script Engine Host (§4.2: "all input lock scripts sharing a
// hash run once").
func (s *Script) Hash() common.Hash {
	if s == nil {
		return common.Hash{}
	}
	return Hash256(s.serialize())
}

func (s *Script) serialize() []byte {
	buf := make([]byte, 0, common.HashLength+1+len(s.Args))
	buf = append(buf, s.CodeHash[:]...)
	buf = append(buf, byte(s.HashType))
	buf = append(buf, s.Args...)
	return buf
}

// Equal reports whether two scripts (by value, not by hash) are identical;
// used when grouping script invocations by code_hash+hash_type+args.
func (s *Script) Equal(o *Script) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.CodeHash != o.CodeHash || s.HashType != o.HashType {
		return false
	}
	if len(s.Args) != len(o.Args) {
		return false
	}
	for i := range s.Args {
		if s.Args[i] != o.Args[i] {
			return false
		}
	}
	return true
}

// CompactTarget packs a difficulty target in the same base-256 floating
// form as the header field of the same name (§3).
type CompactTarget uint32

// ToTarget expands a compact_target into the full 256-bit target a
// header's PoW hash must not exceed, the inverse of the miner's packing.
func (c CompactTarget) ToTarget() [32]byte {
	exponent := uint32(c) >> 24
	mantissa := uint32(c) & 0x00ffffff

	var target [32]byte
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		binary.BigEndian.PutUint32(target[28:], mantissa)
		return target
	}
	shiftBytes := int(exponent) - 3
	if shiftBytes > 29 {
		// Degenerate target; treat as maximally permissive rather than
		// indexing out of bounds.
		for i := range target {
			target[i] = 0xff
		}
		return target
	}
	idx := 32 - shiftBytes - 3
	target[idx] = byte(mantissa >> 16)
	target[idx+1] = byte(mantissa >> 8)
	target[idx+2] = byte(mantissa)
	return target
}

var maxTargetNumerator = func() *big.Int {
	n := new(big.Int).Lsh(big.NewInt(1), 256)
	return n.Sub(n, big.NewInt(1))
}()

// Difficulty is (2^256 - 1) / target, the per-block weight fork choice
// accumulates (§4.6 "sum of per-block targets, compared in extended
// integer arithmetic"). A degenerate zero target is treated as
// maximally easy rather than dividing by zero.
func (c CompactTarget) Difficulty() *big.Int {
	target := c.ToTarget()
	targetInt := new(big.Int).SetBytes(target[:])
	if targetInt.Sign() == 0 {
		return new(big.Int).Set(maxTargetNumerator)
	}
	return new(big.Int).Div(maxTargetNumerator, targetInt)
}
