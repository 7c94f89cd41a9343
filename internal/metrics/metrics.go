// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QRGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kms_qr_generated_total",
		Help: "QR codes generated and uploaded.",
	})

	QRGenerateFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kms_qr_generate_failures_total",
		Help: "QR generation failures by stage.",
	}, []string{"stage"})

	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kms_qr_scans_total",
		Help: "Scan resolutions by result.",
	}, []string{"result"})

	ScanLogFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kms_scan_log_failures_total",
		Help: "Scan events that could not be queued or stored.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kms_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"method", "route", "code"})
)
