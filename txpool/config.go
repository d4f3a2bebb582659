package txpool

import (
	"time"

	"github.com/nervosnetwork/ckb-go/params"
)

// Config are the tunable parameters of the transaction pool (§4.5).
type Config struct {
	// MinFeeRate is the minimum fee, in base units per 1000 serialized
	// bytes, a transaction must pay to be admitted.
	MinFeeRate uint64

	// MaxAncestors caps how long an in-pool parent-before-child chain
	// may grow before a new descendant is refused.
	MaxAncestors int

	// MaxPoolSizeBytes and MaxCycles bound the pool's total memory and
	// script-cycle footprint.
	MaxPoolSizeBytes uint64
	MaxCycles        uint64

	// ExpireAfter is how long an entry may sit in the pool, across all
	// states, before the reap loop evicts it as stale.
	ExpireAfter time.Duration

	// ReapInterval is how often the expiry sweep runs.
	ReapInterval time.Duration
}

// DefaultConfig mirrors the teacher's DefaultBridgeTxPoolConfig: every
// field seeded from the chain-wide consensus defaults in params, with a
// reap cadence tuned for a pool holding thousands of entries.
var DefaultConfig = Config{
	MinFeeRate:       params.TxPoolMinFeeRate,
	MaxAncestors:     params.TxPoolMaxAncestors,
	MaxPoolSizeBytes: params.TxPoolMaxTxSizeBytes,
	MaxCycles:        params.TxPoolMaxCycles,
	ExpireAfter:      72 * time.Hour,
	ReapInterval:     time.Minute,
}

// sanitize checks the provided configuration and corrects anything
// unreasonable, logging what it changed (§4.5, following the teacher's
// BridgeTxPoolConfig.sanitize shape).
func (c Config) sanitize() Config {
	conf := c
	if conf.MinFeeRate == 0 {
		logger.Error("sanitizing invalid txpool min fee rate", "provided", conf.MinFeeRate, "updated", DefaultConfig.MinFeeRate)
		conf.MinFeeRate = DefaultConfig.MinFeeRate
	}
	if conf.MaxAncestors <= 0 {
		logger.Error("sanitizing invalid txpool max ancestors", "provided", conf.MaxAncestors, "updated", DefaultConfig.MaxAncestors)
		conf.MaxAncestors = DefaultConfig.MaxAncestors
	}
	if conf.MaxPoolSizeBytes == 0 {
		logger.Error("sanitizing invalid txpool max size", "provided", conf.MaxPoolSizeBytes, "updated", DefaultConfig.MaxPoolSizeBytes)
		conf.MaxPoolSizeBytes = DefaultConfig.MaxPoolSizeBytes
	}
	if conf.MaxCycles == 0 {
		logger.Error("sanitizing invalid txpool max cycles", "provided", conf.MaxCycles, "updated", DefaultConfig.MaxCycles)
		conf.MaxCycles = DefaultConfig.MaxCycles
	}
	if conf.ExpireAfter < time.Minute {
		logger.Error("sanitizing invalid txpool expiry", "provided", conf.ExpireAfter, "updated", DefaultConfig.ExpireAfter)
		conf.ExpireAfter = DefaultConfig.ExpireAfter
	}
	if conf.ReapInterval < time.Second {
		logger.Error("sanitizing invalid txpool reap interval", "provided", conf.ReapInterval, "updated", DefaultConfig.ReapInterval)
		conf.ReapInterval = DefaultConfig.ReapInterval
	}
	return conf
}
