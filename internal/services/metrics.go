package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lfmx_lastfm_requests_total",
		Help: "Last.fm API requests by method and outcome (ok, error, rejected).",
	}, []string{"method", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lfmx_lastfm_request_duration_seconds",
		Help:    "Last.fm API request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lfmx_lastfm_breaker_state",
		Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
	}, []string{"name"})
)
