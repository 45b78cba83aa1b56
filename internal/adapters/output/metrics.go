package output

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/closecrowd/blockwatch/internal/domain"
)

// Metrics implements ports.Observer over Prometheus counters and optionally
// serves a scrape endpoint plus a readiness probe.
type Metrics struct {
	linesTotal       prometheus.Counter
	violationsTotal  *prometheus.CounterVec
	blockedTotal     prometheus.Counter
	blockErrorsTotal prometheus.Counter
	rotationsTotal   prometheus.Counter

	registry *prometheus.Registry
	server   *http.Server
}

func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		linesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Log lines read from the source, including noise.",
		}),
		violationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_total",
			Help:      "Classified violations by kind.",
		}, []string{"kind"}),
		blockedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocked_total",
			Help:      "Successful blocklist insertions.",
		}),
		blockErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_errors_total",
			Help:      "Blocklist insertions that failed and were absorbed.",
		}),
		rotationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rotations_total",
			Help:      "Audit log rotations performed.",
		}),
	}
}

func (m *Metrics) LineRead() { m.linesTotal.Inc() }

func (m *Metrics) Violation(kind domain.Kind) {
	m.violationsTotal.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) Blocked() { m.blockedTotal.Inc() }

func (m *Metrics) BlockFailed() { m.blockErrorsTotal.Inc() }

func (m *Metrics) Rotated() { m.rotationsTotal.Inc() }

// StartServer exposes /metrics and /ready on addr. Best effort: a busy port
// is logged, not fatal, matching the rest of the pipeline's attitude to
// non-core failures.
func (m *Metrics) StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	m.server = &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	log.Debug().Str("addr", addr).Msg("metrics server started")
}

func (m *Metrics) StopServer() {
	if m.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = m.server.Shutdown(ctx)
}
