package types

import (
	"encoding/binary"

	"github.com/nervosnetwork/ckb-go/common"
)

// OutPoint identifies a cell: the hash of the transaction that created it
// and the index of the output within that transaction (§3).
type OutPoint struct {
	TxHash common.Hash
	Index  uint32
}

// IsNull reports whether op is the cellbase's null previous_output
// sentinel (§3: "a single input with a null previous_output").
func (op OutPoint) IsNull() bool {
	return op.TxHash.IsZero() && op.Index == 0xffffffff
}

// NullOutPoint is the sentinel previous_output every cellbase input uses.
var NullOutPoint = OutPoint{Index: 0xffffffff}

func (op OutPoint) serialize() []byte {
	buf := make([]byte, common.HashLength+4)
	copy(buf, op.TxHash[:])
	binary.LittleEndian.PutUint32(buf[common.HashLength:], op.Index)
	return buf
}

// SinceFlag identifies which of the four encodings a Since value carries,
// packed into its top byte (§3, GLOSSARY "since").
type SinceFlag uint8

const (
	SinceFlagMask     uint64 = 0xe0 << 56
	SinceValueMask    uint64 = 0x00ffffffffffffff
	SinceRelativeFlag uint64 = 1 << 63
	SinceMetricMask   uint64 = 0x60 << 56 // bits 61-62 select the metric
)

// SinceMetric selects what a Since value is measured against.
type SinceMetric uint8

const (
	SinceMetricBlockNumber SinceMetric = iota
	SinceMetricEpoch
	SinceMetricTimestamp // median-time-past, §3/§9
)

// Since encodes an input's valid-since constraint: absolute or relative,
// against block number, epoch-with-fraction, or median-time-past (§3).
type Since uint64

func (s Since) IsRelative() bool { return uint64(s)&SinceRelativeFlag != 0 }

func (s Since) Metric() SinceMetric {
	switch (uint64(s) >> 61) & 0x3 {
	case 0:
		return SinceMetricBlockNumber
	case 1:
		return SinceMetricEpoch
	default:
		return SinceMetricTimestamp
	}
}

// Value returns the 56-bit payload: a block number, a packed epoch value,
// or a timestamp in seconds depending on Metric().
func (s Since) Value() uint64 { return uint64(s) & SinceValueMask }

// EpochValue decodes the epoch-with-fraction payload into (number, index,
// length), mirroring the header's packed epoch field (§3).
func (s Since) EpochValue() (number, index, length uint64) {
	v := s.Value()
	length = (v >> 40) & 0xffff
	index = (v >> 24) & 0xffff
	number = v & 0xffffff
	return
}

// CellInput is an input reference plus its since constraint (§3).
type CellInput struct {
	Since        Since
	PreviousCell OutPoint
}

func (in *CellInput) serialize() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(in.Since))
	return append(buf, in.PreviousCell.serialize()...)
}

// CellOutput is the atomic state unit (§3): capacity, an optional data
// blob carried out-of-band in Transaction.OutputsData, a mandatory lock
// script, and an optional type script.
type CellOutput struct {
	Capacity uint64
	Lock     *Script
	Type     *Script
}

// OccupiedBytes is the serialized footprint this cell must have enough
// capacity to pay for, at ByteCapacityUnit per byte (§3 "cells below a
// minimum occupancy ratio are invalid").
func (c *CellOutput) OccupiedBytes(dataLen int) uint64 {
	// 8 for capacity + lock script + optional type script + its data.
	n := 8 + len(c.Lock.serialize())
	if c.Type != nil {
		n += len(c.Type.serialize())
	}
	n += dataLen
	return uint64(n)
}

func (c *CellOutput) serialize() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, c.Capacity)
	buf = append(buf, c.Lock.serialize()...)
	if c.Type != nil {
		buf = append(buf, 1)
		buf = append(buf, c.Type.serialize()...)
	} else {
		buf = append(buf, 0)
	}
	return buf
}
