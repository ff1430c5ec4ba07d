package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/NitinDabar/e2ee-chat/internal/relay"
)

// NewRelayServer builds the relay HTTP server: an in-memory hub behind the
// chi router, with relay, Go runtime and process metrics on /metrics.
func NewRelayServer(cfg RelayConfig, logger zerolog.Logger) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := relay.NewMetrics(reg)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      relay.NewRouter(relay.NewHub(metrics), metrics, reg, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
