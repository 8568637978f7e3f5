// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stream results recorded in whytree_relay_streams_total.
const (
	resultOK       = "ok"
	resultError    = "error"
	resultRejected = "rejected"
	resultAborted  = "aborted"
)

// metrics are registered on a per-server registry so several servers can
// coexist in one process.
type metrics struct {
	registry *prometheus.Registry

	streams        *prometheus.CounterVec
	chunks         prometheus.Counter
	active         prometheus.Gauge
	streamDuration prometheus.Histogram
	prompts        *prometheus.CounterVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &metrics{
		registry: reg,
		streams: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whytree",
			Subsystem: "relay",
			Name:      "streams_total",
			Help:      "Relayed completion streams by result.",
		}, []string{"result"}),
		chunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "whytree",
			Subsystem: "relay",
			Name:      "chunks_total",
			Help:      "Text chunks forwarded to clients.",
		}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "whytree",
			Subsystem: "relay",
			Name:      "active_streams",
			Help:      "Streams currently being relayed.",
		}),
		streamDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "whytree",
			Subsystem: "relay",
			Name:      "stream_duration_seconds",
			Help:      "Time from request to [DONE] or failure.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		prompts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whytree",
			Subsystem: "relay",
			Name:      "prompts_total",
			Help:      "Quota redemptions by result.",
		}, []string{"result"}),
	}
}
