// Package prometheus exposes the pipeline's run metrics on a dedicated
// registry and serves them over a scrape endpoint.
package prometheus

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/regioflow/internal/config"
	"github.com/turtacn/regioflow/internal/infrastructure/monitoring/logging"
)

const namespace = "regioflow"

// commodityDurationBuckets cover the observed per-commodity range: small
// commodities finish in well under a second, large ones take minutes.
var commodityDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// Collector implements regionalization.Metrics over a private registry so
// tests and embedded callers never collide with the default registry.
type Collector struct {
	registry *prometheus.Registry

	commoditiesTotal  *prometheus.CounterVec
	commodityDuration prometheus.Histogram
	nodesCreated      *prometheus.CounterVec
	relinkedTotal     prometheus.Counter
	dataGapsTotal     prometheus.Counter
}

// NewCollector registers the pipeline metrics on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		commoditiesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commodities_processed_total",
			Help:      "Commodities finished, by outcome.",
		}, []string{"outcome"}),
		commodityDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commodity_duration_seconds",
			Help:      "Wall time spent regionalizing one commodity.",
			Buckets:   commodityDurationBuckets,
		}),
		nodesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_created_total",
			Help:      "Regionalized nodes created, by node type.",
		}, []string{"node_type"}),
		relinkedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_relinked_total",
			Help:      "Second-order exchanges retargeted to consumption markets.",
		}),
		dataGapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_gaps_total",
			Help:      "Recoverable defaults taken for missing input data.",
		}),
	}

	c.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		c.commoditiesTotal,
		c.commodityDuration,
		c.nodesCreated,
		c.relinkedTotal,
		c.dataGapsTotal,
	)
	return c
}

// CommodityProcessed implements regionalization.Metrics.
func (c *Collector) CommodityProcessed(outcome string) {
	c.commoditiesTotal.WithLabelValues(outcome).Inc()
}

// CommodityDuration implements regionalization.Metrics.
func (c *Collector) CommodityDuration(d time.Duration) {
	c.commodityDuration.Observe(d.Seconds())
}

// NodesCreated implements regionalization.Metrics.
func (c *Collector) NodesCreated(nodeType string, n int) {
	c.nodesCreated.WithLabelValues(nodeType).Add(float64(n))
}

// ExchangesRelinked implements regionalization.Metrics.
func (c *Collector) ExchangesRelinked(n int) {
	c.relinkedTotal.Add(float64(n))
}

// DataGap implements regionalization.Metrics.
func (c *Collector) DataGap() {
	c.dataGapsTotal.Inc()
}

// Handler returns the scrape handler for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry for test assertions.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Server serves the scrape endpoint while a run is in flight.
type Server struct {
	srv *http.Server
	log logging.Logger
}

// NewServer builds the metrics HTTP server from its config section.
func NewServer(cfg config.MetricsConfig, collector *Collector, log logging.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, collector.Handler())
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.Named("metrics"),
	}
}

// Start listens in the background.  Listener failures are logged, not
// fatal: a busy metrics port must not abort a regionalization run.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics endpoint listening", logging.String("address", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Warn("metrics endpoint stopped", logging.Err(err))
		}
	}()
}

// Shutdown drains the endpoint.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
