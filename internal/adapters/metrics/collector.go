// Package metrics exports decoder and dispatcher counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/tickship/internal/ports"
	"github.com/bft-labs/tickship/pkg/frame"
	"github.com/bft-labs/tickship/pkg/log"
)

const namespace = "tickship"

// Collector implements ports.Metrics with Prometheus counters.
type Collector struct {
	gatherer prometheus.Gatherer

	bytes        prometheus.Counter
	frames       prometheus.Counter
	records      prometheus.Counter
	rejected     prometheus.Counter
	nested       prometheus.Counter
	abandoned    prometheus.Counter
	strayClosers prometheus.Counter

	dropped    prometheus.Counter
	persisted  prometheus.Counter
	failed     prometheus.Counter
	flushes    prometheus.Counter
	reconnects prometheus.Counter
	queueDepth prometheus.Gauge
}

var _ ports.Metrics = (*Collector)(nil)

func counter(subsystem, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

// NewCollector creates the collectors and registers them with reg.
// A nil reg uses a fresh registry.
func NewCollector(reg *prometheus.Registry) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		gatherer: reg,

		bytes:        counter("decoder", "bytes_total", "Bytes fed to the frame decoder."),
		frames:       counter("decoder", "frames_total", "Frames closed by a ']' delimiter."),
		records:      counter("decoder", "records_total", "Frames accepted and emitted as records."),
		rejected:     counter("decoder", "rejected_total", "Frames dropped by validation."),
		nested:       counter("decoder", "nested_open_total", "Open delimiters seen inside an open frame."),
		abandoned:    counter("decoder", "abandoned_total", "Open frames dropped for exceeding the size limit."),
		strayClosers: counter("decoder", "stray_closers_total", "Close delimiters seen outside a frame."),

		dropped:    counter("dispatch", "dropped_total", "Records dropped because the queue was full."),
		persisted:  counter("dispatch", "persisted_total", "Records written by the sink."),
		failed:     counter("dispatch", "failed_total", "Records the sink failed to write."),
		flushes:    counter("dispatch", "flushes_total", "Sink flushes."),
		reconnects: counter("ingest", "reconnects_total", "Reconnect attempts to the upstream feed."),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Records waiting in the persistence queue.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.bytes, c.frames, c.records, c.rejected, c.nested, c.abandoned, c.strayClosers,
		c.dropped, c.persisted, c.failed, c.flushes, c.reconnects, c.queueDepth,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveDecoder adds decoder counter deltas.
func (c *Collector) ObserveDecoder(d frame.Stats) {
	c.bytes.Add(float64(d.Bytes))
	c.frames.Add(float64(d.Frames))
	c.records.Add(float64(d.Records))
	c.rejected.Add(float64(d.Rejected))
	c.nested.Add(float64(d.Nested))
	c.abandoned.Add(float64(d.Abandoned))
	c.strayClosers.Add(float64(d.StrayClosers))
}

// RecordDropped counts one dropped record.
func (c *Collector) RecordDropped() {
	c.dropped.Inc()
}

// ObserveFlush counts one flush.
func (c *Collector) ObserveFlush(persisted, failed int) {
	c.flushes.Inc()
	c.persisted.Add(float64(persisted))
	c.failed.Add(float64(failed))
}

// Reconnect counts one reconnect attempt.
func (c *Collector) Reconnect() {
	c.reconnects.Inc()
}

// SetQueueDepth sets the queue depth gauge.
func (c *Collector) SetQueueDepth(n int) {
	c.queueDepth.Set(float64(n))
}

// Handler returns the /metrics HTTP handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string, logger log.Logger) error {
	logger = log.OrNoop(logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listener started", log.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
