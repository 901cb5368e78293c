package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// HealthFunc reports whether a dependency is usable
type HealthFunc func(ctx context.Context) error

// CombineHealth runs the checks in order and reports the first failure
func CombineHealth(checks ...HealthFunc) HealthFunc {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// OpsServer serves /metrics and /healthz for the running process
type OpsServer struct {
	registry   *prometheus.Registry
	heartbeats *prometheus.GaugeVec
	server     *http.Server
	health     HealthFunc
}

// NewOpsServer builds the registry with Go runtime, process and pool collectors
func NewOpsServer(addr string, pool *pgxpool.Pool, health HealthFunc) *OpsServer {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if pool != nil {
		registry.MustRegister(newPoolCollector(pool))
	}

	heartbeats := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "settlement",
		Name:      "worker_last_run_timestamp_seconds",
		Help:      "Unix time of the last completed run of each background worker.",
	}, []string{"worker"})
	registry.MustRegister(heartbeats)

	s := &OpsServer{
		registry:   registry,
		heartbeats: heartbeats,
		health:     health,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", s.handleHealth)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Heartbeat records that a worker finished a run
func (s *OpsServer) Heartbeat(worker string) {
	s.heartbeats.WithLabelValues(worker).SetToCurrentTime()
}

// Handler exposes the mux for tests
func (s *OpsServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *OpsServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health != nil {
		if err := s.health(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "unhealthy: %v", err)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Start serves in the background
func (s *OpsServer) Start() {
	go func() {
		log.WithField("addr", s.server.Addr).Info("Ops server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Ops server stopped")
		}
	}()
}

// Shutdown stops the server
func (s *OpsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// poolCollector exports pgxpool statistics
type poolCollector struct {
	pool          *pgxpool.Pool
	totalConns    *prometheus.Desc
	idleConns     *prometheus.Desc
	acquiredConns *prometheus.Desc
	acquireCount  *prometheus.Desc
	acquireWait   *prometheus.Desc
}

func newPoolCollector(pool *pgxpool.Pool) *poolCollector {
	return &poolCollector{
		pool:          pool,
		totalConns:    prometheus.NewDesc("settlement_db_pool_total_conns", "Total connections in the pool.", nil, nil),
		idleConns:     prometheus.NewDesc("settlement_db_pool_idle_conns", "Idle connections in the pool.", nil, nil),
		acquiredConns: prometheus.NewDesc("settlement_db_pool_acquired_conns", "Connections currently checked out.", nil, nil),
		acquireCount:  prometheus.NewDesc("settlement_db_pool_acquire_total", "Successful connection acquisitions.", nil, nil),
		acquireWait:   prometheus.NewDesc("settlement_db_pool_acquire_wait_seconds_total", "Time spent waiting for a connection.", nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalConns
	ch <- c.idleConns
	ch <- c.acquiredConns
	ch <- c.acquireCount
	ch <- c.acquireWait
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(stat.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.acquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.acquireCount, prometheus.CounterValue, float64(stat.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.acquireWait, prometheus.CounterValue, stat.AcquireDuration().Seconds())
}
