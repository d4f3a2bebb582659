package sync

import (
	"time"

	"github.com/nervosnetwork/ckb-go/params"
)

// Config are the tunable parameters of the synchronizer and relay loops.
type Config struct {
	// MaxHeaders bounds a single headers-first response (§4.7 "MAX_HEADERS").
	MaxHeaders int

	// PeerInFlightCap and GlobalInFlightCap bound the block-in-flight map
	// (§5 backpressure, §8 invariant).
	PeerInFlightCap  int
	GlobalInFlightCap int

	// IBDLagThreshold is how far behind wall clock the tip may lag before
	// Initial Block Download engages (§4.7).
	IBDLagThreshold time.Duration

	// BlockRequestTimeout is the deadline an in-flight block request is
	// given before its slot is reassigned and the peer's misbehavior
	// score incremented (§4.7, §5 "Cancellation").
	BlockRequestTimeout time.Duration

	// MisbehaviorBanThreshold is the cumulative score at which a peer is
	// disconnected and banned (§4.7).
	MisbehaviorBanThreshold int

	// KnownBlockCacheSize and KnownTxFilterCapacity bound the per-peer
	// dedup structures relay uses to avoid echoing announcements back to
	// the peer that sent them (§5 "never shared across peers").
	KnownBlockCacheSize   int
	KnownTxFilterCapacity uint64

	// TickInterval paces the scheduler and IBD-check loop.
	TickInterval time.Duration
}

// DefaultConfig seeds every field from the chain-wide consensus constants
// in params, the same sanitize-and-default shape chain.Config and
// txpool.Config already follow.
var DefaultConfig = Config{
	MaxHeaders:            params.MaxHeadersPerLocator,
	PeerInFlightCap:       params.PeerInFlightCapPerPeer,
	GlobalInFlightCap:     params.PeerInFlightCapGlobal,
	IBDLagThreshold:       params.IBDTimestampLagThreshold,
	BlockRequestTimeout:   20 * time.Second,
	MisbehaviorBanThreshold: params.PeerMisbehaviorBanThreshold,
	KnownBlockCacheSize:   1024,
	KnownTxFilterCapacity: 50000,
	TickInterval:          2 * time.Second,
}

// sanitize corrects unreasonable values and logs what it changed, following
// the sanitize-and-warn pattern applied uniformly across this module.
func (c Config) sanitize() Config {
	conf := c
	if conf.MaxHeaders <= 0 {
		logger.Error("sanitizing invalid sync max headers", "provided", conf.MaxHeaders, "updated", DefaultConfig.MaxHeaders)
		conf.MaxHeaders = DefaultConfig.MaxHeaders
	}
	if conf.PeerInFlightCap <= 0 {
		logger.Error("sanitizing invalid sync per-peer in-flight cap", "provided", conf.PeerInFlightCap, "updated", DefaultConfig.PeerInFlightCap)
		conf.PeerInFlightCap = DefaultConfig.PeerInFlightCap
	}
	if conf.GlobalInFlightCap < conf.PeerInFlightCap {
		logger.Error("sanitizing invalid sync global in-flight cap", "provided", conf.GlobalInFlightCap, "updated", DefaultConfig.GlobalInFlightCap)
		conf.GlobalInFlightCap = DefaultConfig.GlobalInFlightCap
	}
	if conf.BlockRequestTimeout <= 0 {
		logger.Error("sanitizing invalid sync block request timeout", "provided", conf.BlockRequestTimeout, "updated", DefaultConfig.BlockRequestTimeout)
		conf.BlockRequestTimeout = DefaultConfig.BlockRequestTimeout
	}
	if conf.MisbehaviorBanThreshold <= 0 {
		logger.Error("sanitizing invalid sync misbehavior ban threshold", "provided", conf.MisbehaviorBanThreshold, "updated", DefaultConfig.MisbehaviorBanThreshold)
		conf.MisbehaviorBanThreshold = DefaultConfig.MisbehaviorBanThreshold
	}
	if conf.KnownBlockCacheSize <= 0 {
		conf.KnownBlockCacheSize = DefaultConfig.KnownBlockCacheSize
	}
	if conf.KnownTxFilterCapacity == 0 {
		conf.KnownTxFilterCapacity = DefaultConfig.KnownTxFilterCapacity
	}
	if conf.TickInterval <= 0 {
		conf.TickInterval = DefaultConfig.TickInterval
	}
	return conf
}
