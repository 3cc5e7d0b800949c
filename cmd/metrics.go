package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	parseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triphistory_parse_errors_total",
		Help: "Number of non-fatal parse errors encountered, by kind.",
	}, []string{"kind"})

	tripsFinalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triphistory_trips_finalized_total",
		Help: "Number of trips written to the output logbook across all runs.",
	})

	tripsInFlightGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triphistory_trips_in_flight",
		Help: "Number of trips in the most recent run's logbook whose last row is still EN_ROUTE_TO.",
	})
)

// startMetricsServer serves /metrics on --metrics-addr if set, and
// returns a function that shuts it down. A no-op if the flag is
// empty, so instrumentation never affects a plain CLI invocation.
func startMetricsServer() func() {
	if metricsAddr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: metricsAddr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Warn("metrics server stopped")
		}
	}()

	return func() {
		server.Shutdown(context.Background())
	}
}
