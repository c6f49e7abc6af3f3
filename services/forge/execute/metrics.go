// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package execute

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for plan execution.
//
// Thread Safety: Safe for concurrent use (Prometheus metrics are thread-safe).
type Metrics struct {
	// ExecutionsTotal counts plan executions by outcome.
	ExecutionsTotal *prometheus.CounterVec

	// FilesAppliedTotal counts successfully applied file modifications.
	FilesAppliedTotal prometheus.Counter

	// FileFailuresTotal counts per-file apply failures.
	FileFailuresTotal prometheus.Counter

	// RollbacksTotal counts rollbacks by trigger.
	RollbacksTotal *prometheus.CounterVec

	// ExecutionDurationSeconds measures end-to-end plan execution time.
	ExecutionDurationSeconds *prometheus.HistogramVec
}

// NewMetrics creates and registers all execution metrics.
//
// Outputs:
//   - *Metrics: The created metrics. Never nil.
func NewMetrics() *Metrics {
	return &Metrics{
		ExecutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "forge",
				Subsystem: "execute",
				Name:      "executions_total",
				Help:      "Total plan executions by outcome",
			},
			[]string{"outcome"},
		),

		FilesAppliedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "forge",
				Subsystem: "execute",
				Name:      "files_applied_total",
				Help:      "Total successfully applied file modifications",
			},
		),

		FileFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "forge",
				Subsystem: "execute",
				Name:      "file_failures_total",
				Help:      "Total per-file apply failures",
			},
		),

		RollbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "forge",
				Subsystem: "execute",
				Name:      "rollbacks_total",
				Help:      "Total rollbacks by trigger",
			},
			[]string{"trigger"},
		),

		ExecutionDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "forge",
				Subsystem: "execute",
				Name:      "duration_seconds",
				Help:      "End-to-end plan execution time",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"strategy"},
		),
	}
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// defaultMetrics returns the process-wide metrics instance. promauto
// registers with the default registerer, so creation must happen once.
func defaultMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = NewMetrics()
	})
	return sharedMetrics
}
