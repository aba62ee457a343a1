// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"net/http"
	"time"

	"github.com/luxfi/metric"

	"github.com/luxfi/stm/utils/wrappers"
)

const routeLabel = "route"

var routeLabels = []string{routeLabel}

type serverMetrics struct {
	requests metric.CounterVec
	duration metric.CounterVec
	inflight metric.Gauge
}

func newMetrics(registerer metric.Registerer) (*serverMetrics, error) {
	m := &serverMetrics{
		requests: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "api_requests",
				Help: "number of API requests served",
			},
			routeLabels,
		),
		duration: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "api_request_duration",
				Help: "time (in ns) spent serving API requests",
			},
			routeLabels,
		),
		inflight: metric.NewGauge(metric.GaugeOpts{
			Name: "api_requests_inflight",
			Help: "number of API requests being served",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(metric.AsCollector(m.requests)),
		registerer.Register(metric.AsCollector(m.duration)),
		registerer.Register(metric.AsCollector(m.inflight)),
	)
	return m, errs.Err
}

func (m *serverMetrics) wrapHandler(route string, handler http.Handler) http.Handler {
	labels := metric.Labels{
		routeLabel: route,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inflight.Inc()
		start := time.Now()

		handler.ServeHTTP(w, r)

		m.duration.With(labels).Add(float64(time.Since(start)))
		m.requests.With(labels).Inc()
		m.inflight.Dec()
	})
}
