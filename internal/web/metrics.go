// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the review API. All observe
// methods are nil-safe so handlers work without metrics in tests.
type Metrics struct {
	// Full review processing latency by outcome ("complete", "failed")
	ProcessLatency *prometheus.HistogramVec

	// Reviews processed by outcome
	ReviewsProcessed *prometheus.CounterVec

	// Issues found by severity
	IssuesFound *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all review metrics
// registered on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		ProcessLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docconform_review_process_duration_seconds",
			Help:    "Duration of full review processing including text extraction",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),

		ReviewsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docconform_reviews_processed_total",
			Help: "Total reviews processed by outcome",
		}, []string{"outcome"}),

		IssuesFound: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docconform_issues_found_total",
			Help: "Total validation issues found by severity",
		}, []string{"severity"}),
	}
}

// ObserveProcess records one processing run.
func (m *Metrics) ObserveProcess(outcome string, d time.Duration) {
	if m != nil {
		m.ProcessLatency.WithLabelValues(outcome).Observe(d.Seconds())
		m.ReviewsProcessed.WithLabelValues(outcome).Inc()
	}
}

// AddIssues records issues found during a run.
func (m *Metrics) AddIssues(severity string, count int) {
	if m != nil && count > 0 {
		m.IssuesFound.WithLabelValues(severity).Add(float64(count))
	}
}
