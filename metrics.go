// Package rilio provides a multiplexing client for a length-prefixed,
// request/response telephony control protocol over a stream socket.
/*
 * Copyright (c) 2025-2026, the rilio authors. All rights reserved.
 */
package rilio

import "github.com/prometheus/client_golang/prometheus"

// Metrics is a Channel's own prometheus.Collector. It is never registered
// against the global registry by this package (library code must not
// mutate global state); callers who run a /metrics endpoint register it
// themselves via Channel.Metrics().
type Metrics struct {
	requestsSubmitted prometheus.Counter
	responses         *prometheus.CounterVec
	timeouts          prometheus.Counter
	cancellations     prometheus.Counter
	unsolicited       *prometheus.CounterVec
	bytesWritten      prometheus.Counter
	errors            prometheus.Counter
	inFlightGauge     prometheus.Gauge
}

// NewMetrics builds an unregistered Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		requestsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rilio_requests_submitted_total",
			Help: "Requests submitted to the channel.",
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rilio_responses_total",
			Help: "Solicited responses received, by status class (ok, peer_error, other).",
		}, []string{"class"}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rilio_timeouts_total",
			Help: "Requests that reached their deadline unanswered.",
		}),
		cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rilio_cancellations_total",
			Help: "Requests cancelled, via Cancel or CancelAll.",
		}),
		unsolicited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rilio_unsolicited_events_total",
			Help: "Unsolicited events received, by event code.",
		}, []string{"code"}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rilio_bytes_written_total",
			Help: "Bytes written to the wire, including per-request headers.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rilio_errors_total",
			Help: "Transport and framing errors that terminated the connection.",
		}),
		inFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rilio_in_flight",
			Help: "Requests currently awaiting a response.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(m, ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.requestsSubmitted.Collect(ch)
	m.responses.Collect(ch)
	m.timeouts.Collect(ch)
	m.cancellations.Collect(ch)
	m.unsolicited.Collect(ch)
	m.bytesWritten.Collect(ch)
	m.errors.Collect(ch)
	m.inFlightGauge.Collect(ch)
}
