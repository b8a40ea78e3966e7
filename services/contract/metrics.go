// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package contract

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	// reloadsTotal counts catalog loads.
	//
	// Labels:
	//   - status: success, unchanged or error
	reloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contract",
		Subsystem: "service",
		Name:      "catalog_reloads_total",
		Help:      "Catalog loads by outcome.",
	}, []string{"status"})

	// catalogTypes is the number of declared types in the current catalog.
	catalogTypes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "contract",
		Subsystem: "service",
		Name:      "catalog_types",
		Help:      "Declared types in the loaded catalog.",
	})

	// requestsTotal counts HTTP requests.
	//
	// Labels:
	//   - handler: the handler name
	//   - code: the HTTP status code
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contract",
		Subsystem: "service",
		Name:      "requests_total",
		Help:      "HTTP requests by handler and status code.",
	}, []string{"handler", "code"})

	// reportStoreTotal counts report store lookups.
	//
	// Labels:
	//   - result: hit, miss or error
	reportStoreTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contract",
		Subsystem: "service",
		Name:      "report_store_total",
		Help:      "Report store lookups by result.",
	}, []string{"result"})
)

var meter = otel.Meter("contract.service")

// operationDuration times Analyze and Report through the OpenTelemetry
// meter, exported by whichever MeterProvider the binary installs.
//
// Attributes:
//   - operation: analyze or report
var operationDuration metric.Float64Histogram

func init() {
	var err error
	operationDuration, err = meter.Float64Histogram("contract.service.operation.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of service analyses."),
	)
	if err != nil {
		otel.Handle(err)
	}
}
