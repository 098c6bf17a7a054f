package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	apperrors "codeberg.org/mutker/npumon/internal/errors"
	"codeberg.org/mutker/npumon/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "npumon"

type service struct {
	registry     *prometheus.Registry
	ticks        prometheus.Counter
	written      prometheus.Counter
	readErrors   *prometheus.CounterVec
	writeErrors  prometheus.Counter
	tickDuration prometheus.Histogram
	server       *http.Server
	logger       logger.Logger
}

// No-op implementation
type noopCollector struct{}

// Nop returns a Collector that drops every event.
func Nop() Collector {
	return &noopCollector{}
}

// NewService returns a Prometheus-backed Collector serving cfg.Path on
// cfg.Addr, or a no-op Collector when metrics are disabled.
func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := apperrors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Metrics collection disabled, using no-op collector")
		return Nop(), nil
	}

	s, err := newService(prometheus.NewRegistry(), log)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, errFactory.Wrap(ErrListen, err)
	}

	path := cfg.Path
	if path == "" {
		path = defaultPath
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics endpoint stopped")
		}
	}()

	log.Info().
		Str("addr", listener.Addr().String()).
		Str("path", path).
		Msg("Metrics endpoint listening")

	return s, nil
}

func newService(registry *prometheus.Registry, log logger.Logger) (*service, error) {
	s := &service{
		registry: registry,
		logger:   log,
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Completed collection ticks.",
		}),
		written: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Records persisted to the sink.",
		}),
		readErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metric_read_errors_total",
			Help:      "Device samples skipped because a metric read failed.",
		}, []string{"device"}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_write_errors_total",
			Help:      "Records that could not be written to the sink.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent sampling and recording all devices in a tick.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	for _, c := range []prometheus.Collector{s.ticks, s.written, s.readErrors, s.writeErrors, s.tickDuration} {
		if err := registry.Register(c); err != nil {
			return nil, apperrors.New().Wrap(ErrRegister, err)
		}
	}

	return s, nil
}

func (s *service) TickCompleted(d time.Duration) {
	s.ticks.Inc()
	s.tickDuration.Observe(d.Seconds())
}

func (s *service) RecordWritten() {
	s.written.Inc()
}

func (s *service) MetricReadFailed(device int) {
	s.readErrors.WithLabelValues(strconv.Itoa(device)).Inc()
}

func (s *service) SinkWriteFailed() {
	s.writeErrors.Inc()
}

func (s *service) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return apperrors.New().Wrap(ErrServiceShutdown, err)
	}

	return nil
}

func (*noopCollector) TickCompleted(time.Duration) {}
func (*noopCollector) RecordWritten()              {}
func (*noopCollector) MetricReadFailed(int)        {}
func (*noopCollector) SinkWriteFailed()            {}
func (*noopCollector) Close() error                { return nil }
