package chain

import "github.com/nervosnetwork/ckb-go/cellset"

// Config are the tunable parameters of the chain service.
type Config struct {
	// Cells sizes the Cell Set index the chain service owns exclusively.
	Cells cellset.Config

	// TipEventBufferSize bounds each subscriber's new-tip channel.
	TipEventBufferSize int
}

// DefaultConfig mirrors the rest of this module's sanitize-and-default
// pattern (§4.5's Config.sanitize, applied here per SUPPLEMENTED
// FEATURES "config sanitize-and-warn applied uniformly").
var DefaultConfig = Config{
	TipEventBufferSize: 16,
}

func (c Config) sanitize() Config {
	conf := c
	if conf.TipEventBufferSize <= 0 {
		logger.Error("sanitizing invalid chain tip event buffer size", "provided", conf.TipEventBufferSize, "updated", DefaultConfig.TipEventBufferSize)
		conf.TipEventBufferSize = DefaultConfig.TipEventBufferSize
	}
	return conf
}
