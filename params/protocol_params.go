// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package params collects the chain-wide consensus constants: the knobs
// that §4.2-§4.7 and §8 pin to concrete values rather than leaving to
// per-node configuration.
package params

import "time"

const (
	// ByteCapacityUnit is how many capacity units one byte of occupied
	// cell storage costs, per §3 ("10^8 units map to 1 byte").
	ByteCapacityUnit uint64 = 100_000_000

	// TxVersion is the only transaction format version this node's
	// consensus rules accept (§4.3 stage 1 "version match").
	TxVersion uint32 = 0

	// BlockVersionMax bounds a header's version field (§4.4 "version <=
	// max"); raised only by a future consensus upgrade.
	BlockVersionMax uint32 = 0

	// TxMaxSize bounds a single transaction's serialized size.
	TxMaxSize uint64 = 512 * 1024

	// BlockMaxBytes bounds a block's serialized size (oversized-block
	// BlockError in §7).
	BlockMaxBytes uint64 = 2 * 1024 * 1024

	// BlockCycleLimit is the aggregate script-execution cycle budget for
	// one block (§4.4, §8 "Block at the cycle limit passes; at limit+1
	// fails").
	BlockCycleLimit uint64 = 5_000_000_000

	// TxCycleLimit bounds a single transaction's script cycles so one
	// pathological tx cannot exhaust the whole block budget alone.
	TxCycleLimit uint64 = 3_500_000_000

	// ScriptGroupBaseCycles is the fixed per-group charge the syscall
	// layer levies before any instruction executes (§4.2).
	ScriptGroupBaseCycles uint64 = 3_500

	// CellbaseMaturity is the number of epochs a cellbase output must
	// wait before it is spendable (§3, §8 "Cellbase maturity").
	CellbaseMaturity uint64 = 4

	// ProposalWindowClosest/Farthest define [N-farthest, N-closest]
	// (§3, §8 scenario 2: closest=2, farthest=12 in the test seed).
	ProposalWindowClosest  uint64 = 2
	ProposalWindowFarthest uint64 = 10

	// MedianTimeBlockCount is the window used for median-time-past,
	// fixed at 37 per §9.
	MedianTimeBlockCount = 37

	// MaxUnclesPerBlock caps the uncle list (§4.4).
	MaxUnclesPerBlock = 2

	// MaxBlockProposalsLimit caps how many proposal short ids one block
	// may carry, bounding packaging work in §4.5.
	MaxBlockProposalsLimit = 1500

	// EpochDurationTarget is the real-time length an epoch's difficulty
	// is tuned to track (§3 "Epoch length adjusts to track a target
	// real-time duration").
	EpochDurationTarget = 4 * time.Hour

	// GenesisEpochLength seeds the very first epoch before any
	// adjustment has data to work from.
	GenesisEpochLength uint64 = 1000

	// MaxEpochLengthAdjustRate bounds how far one adjustment may move
	// the epoch length in a single step (numerator/denominator).
	MaxEpochLengthAdjustRateNum uint64 = 2
	MaxEpochLengthAdjustRateDen uint64 = 1

	// TxPoolMinFeeRate is the default minimum fee-rate floor
	// (base units per 1000 serialized bytes, §4.5).
	TxPoolMinFeeRate uint64 = 1000

	// TxPoolMaxAncestors is the default cap on an in-pool ancestor
	// chain's length (§4.5, §8 scenario 4 uses 125 as an example cap).
	TxPoolMaxAncestors = 125

	// TxPoolMaxTxSizeBytes and TxPoolMaxCycles bound total pool memory
	// and cycle usage (§4.5 "reject if it would push pool memory or
	// cycle totals over configured caps").
	TxPoolMaxTxSizeBytes uint64 = 180 * 1024 * 1024
	TxPoolMaxCycles      uint64 = 20_000_000_000

	// IBDTimestampLagThreshold is how far behind wall clock the tip may
	// lag before Initial Block Download engages (§4.7).
	IBDTimestampLagThreshold = 24 * time.Hour

	// MaxHeadersPerLocator bounds a single headers-first response
	// (§4.7 "MAX_HEADERS").
	MaxHeadersPerLocator = 2000

	// PeerInFlightCapPerPeer and PeerInFlightCapGlobal bound the
	// block-in-flight map (§5 backpressure, §8 invariant).
	PeerInFlightCapPerPeer = 16
	PeerInFlightCapGlobal  = 128

	// PeerMisbehaviorBanThreshold is the cumulative score at which a
	// peer is disconnected and banned (§4.7).
	PeerMisbehaviorBanThreshold = 100
	MisbehaviorScoreMinor       = 10
	MisbehaviorScoreMajor       = 50

	// WireCompressionThresholdBytes is the body-size cutoff above which
	// the wire protocol compresses a message (§6, §9).
	WireCompressionThresholdBytes = 2048

	// WireDecompressedSizeCap prevents a decompression bomb (§9).
	WireDecompressedSizeCap = 64 * 1024 * 1024
)
