package sync

import "github.com/rcrowley/go-metrics"

var (
	peerCountGauge       = metrics.NewRegisteredGauge("sync/peers", nil)
	headersReceivedMeter = metrics.NewRegisteredMeter("sync/headers/received", nil)
	blocksReceivedMeter  = metrics.NewRegisteredMeter("sync/blocks/received", nil)
	blockTimeoutCounter  = metrics.NewRegisteredCounter("sync/blocks/timeout", nil)
	peerBannedCounter    = metrics.NewRegisteredCounter("sync/peers/banned", nil)
	inFlightGauge        = metrics.NewRegisteredGauge("sync/blocks/inflight", nil)
	txAnnouncedMeter     = metrics.NewRegisteredMeter("sync/relay/tx_announced", nil)
	blockAnnouncedMeter  = metrics.NewRegisteredMeter("sync/relay/block_announced", nil)
)
