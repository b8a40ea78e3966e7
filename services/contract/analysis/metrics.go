// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tracerName is the OTel tracer name for the analysis package.
const tracerName = "contract.analysis"

// Package-level Prometheus metrics for contract analysis.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// analysesTotal counts computed analyses. Cache hits are not counted.
	//
	// Labels:
	//   - status: "success" or "error"
	analysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contract",
			Subsystem: "analysis",
			Name:      "analyses_total",
			Help:      "Total number of member analyses computed.",
		},
		[]string{"status"},
	)

	// analysisDuration measures the time to compute one analysis.
	analysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "contract",
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Duration of member analyses in seconds.",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		},
	)

	// cacheLookupsTotal counts analysis cache lookups.
	//
	// Labels:
	//   - result: "hit", "miss" or "shared" (joined an in-flight computation)
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contract",
			Subsystem: "analysis",
			Name:      "cache_lookups_total",
			Help:      "Total analysis cache lookups by result.",
		},
		[]string{"result"},
	)

	// verdictsTotal counts applicability verdicts.
	//
	// Labels:
	//   - valid: "true" or "false"
	verdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contract",
			Subsystem: "analysis",
			Name:      "verdicts_total",
			Help:      "Total applicability verdicts by outcome.",
		},
		[]string{"valid"},
	)

	// inapplicableTotal counts records dropped by FilterApplicable.
	//
	// Labels:
	//   - code: "DB01" (parameter) or "DB02" (return value)
	inapplicableTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contract",
			Subsystem: "analysis",
			Name:      "inapplicable_records_total",
			Help:      "Total contract records dropped because the annotation was misapplied.",
		},
		[]string{"code"},
	)
)
