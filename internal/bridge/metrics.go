package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Rejection reasons
const (
	reasonBadPayload    = "bad_payload"
	reasonUnauthorized  = "unauthorized"
	reasonUnknownDevice = "unknown_device"
	reasonPublish       = "publish_failed"
)

type metrics struct {
	registry   *prometheus.Registry
	received   prometheus.Counter
	rejected   *prometheus.CounterVec
	published  prometheus.Counter
	dropped    prometheus.Counter
	lastUpdate *prometheus.GaugeVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vegehub_bridge_payloads_received_total",
			Help: "Update payloads received from hubs.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vegehub_bridge_payloads_rejected_total",
			Help: "Update payloads rejected, by reason.",
		}, []string{"reason"}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vegehub_bridge_states_published_total",
			Help: "Device states handed to the publisher.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vegehub_bridge_readings_dropped_total",
			Help: "Readings dropped because calibration rejected them.",
		}),
		lastUpdate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vegehub_bridge_last_update_timestamp_seconds",
			Help: "Unix time of the last accepted payload per hub.",
		}, []string{"mac"}),
	}

	m.registry.MustRegister(
		m.received, m.rejected, m.published, m.dropped, m.lastUpdate,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
