package main

import (
	"net/http"
	"time"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// prometheusBridge periodically copies every gauge, counter, and meter
// registered against go-metrics' DefaultRegistry (sync/metrics.go,
// txpool/pool.go's pool size/cycle gauges) into prometheus gauges, the
// same role the teacher's metrics/prometheus.NewPrometheusProvider
// plays for its own node (that bridge package is internal to the
// teacher's tree and wasn't part of this module's retrieval pack, so
// this is a from-scratch reconstruction of the same periodic-copy
// idiom rather than a port of its code).
type prometheusBridge struct {
	interval time.Duration
	gauges   map[string]prometheus.Gauge
	stopCh   chan struct{}
}

func newPrometheusBridge(interval time.Duration) *prometheusBridge {
	return &prometheusBridge{interval: interval, gauges: make(map[string]prometheus.Gauge), stopCh: make(chan struct{})}
}

func (b *prometheusBridge) start() {
	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-b.stopCh:
				return
			case <-ticker.C:
				b.sync()
			}
		}
	}()
}

func (b *prometheusBridge) stop() { close(b.stopCh) }

func (b *prometheusBridge) sync() {
	gometrics.DefaultRegistry.Each(func(name string, i interface{}) {
		value, ok := sampleValue(i)
		if !ok {
			return
		}
		g, ok := b.gauges[name]
		if !ok {
			g = prometheus.NewGauge(prometheus.GaugeOpts{Name: sanitizeMetricName(name), Help: name})
			if err := prometheus.Register(g); err != nil {
				logger.Debug("prometheus metric already registered", "name", name, "err", err)
				return
			}
			b.gauges[name] = g
		}
		g.Set(value)
	})
}

func sampleValue(i interface{}) (float64, bool) {
	switch m := i.(type) {
	case gometrics.Gauge:
		return float64(m.Value()), true
	case gometrics.Counter:
		return float64(m.Count()), true
	case gometrics.Meter:
		return m.Rate1(), true
	default:
		return 0, false
	}
}

func sanitizeMetricName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return "ckbnode_" + string(out)
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
