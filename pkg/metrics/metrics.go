package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

// Collector owns a private registry so tests can build as many as they like
type Collector struct {
	reg *prometheus.Registry

	ObservationsIngested  *prometheus.CounterVec // source label: json|csv|gtfsrt|signal
	ObservationsRejected  *prometheus.CounterVec // source label: json|csv|gtfsrt|signal
	TrajectoriesBuilt     prometheus.Counter
	TrajectoriesDiscarded prometheus.Counter
	DuplicatesDropped     prometheus.Counter
	TripsBuilt            prometheus.Counter
	TripsDiscarded        prometheus.Counter
	SummaryRecords        prometheus.Counter
	PipelineRuns          *prometheus.CounterVec // outcome label: ok|error
	PipelineDuration      prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ObservationsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trajectory_observations_ingested_total",
			Help: "Observations accepted into a dataset.",
		}, []string{"source"}),
		ObservationsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trajectory_observation_batches_rejected_total",
			Help: "Observation batches rejected as invalid input.",
		}, []string{"source"}),
		TrajectoriesBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trajectory_trajectories_built_total",
			Help: "Trajectories kept after minimum length filtering.",
		}),
		TrajectoriesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trajectory_trajectories_discarded_total",
			Help: "Trajectories dropped by minimum length filtering.",
		}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trajectory_duplicate_timestamps_dropped_total",
			Help: "Observations dropped for repeating a timestamp within a trajectory.",
		}),
		TripsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trajectory_trips_built_total",
			Help: "Trips produced by gap splitting.",
		}),
		TripsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trajectory_trips_discarded_total",
			Help: "Segments dropped by gap splitting for having fewer than two points.",
		}),
		SummaryRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trajectory_summary_records_total",
			Help: "Summary records emitted.",
		}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trajectory_pipeline_runs_total",
			Help: "Summary pipeline runs by outcome.",
		}, []string{"outcome"}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trajectory_pipeline_duration_seconds",
			Help:    "Duration of a summary pipeline run.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trajectory_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trajectory_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trajectory_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trajectory_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.ObservationsIngested, c.ObservationsRejected,
		c.TrajectoriesBuilt, c.TrajectoriesDiscarded, c.DuplicatesDropped,
		c.TripsBuilt, c.TripsDiscarded, c.SummaryRecords,
		c.PipelineRuns, c.PipelineDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
	)
	return c
}

// Registry exposes the underlying registry, mostly for tests
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// ObserveIngest counts an accepted batch
func (c *Collector) ObserveIngest(source string, n int) {
	c.ObservationsIngested.WithLabelValues(source).Add(float64(n))
}

// ObserveRejected counts a batch refused at ingestion
func (c *Collector) ObserveRejected(source string) {
	c.ObservationsRejected.WithLabelValues(source).Inc()
}

// ObservePipeline records the outcome of one summary run
func (c *Collector) ObservePipeline(report trajectory.Report, records int, d time.Duration, err error) {
	c.PipelineDuration.Observe(d.Seconds())
	if err != nil {
		c.PipelineRuns.WithLabelValues("error").Inc()
		return
	}
	c.PipelineRuns.WithLabelValues("ok").Inc()
	c.TrajectoriesBuilt.Add(float64(report.Trajectories))
	c.TrajectoriesDiscarded.Add(float64(report.DiscardedTrajectories))
	c.DuplicatesDropped.Add(float64(report.DuplicatesDropped))
	c.TripsBuilt.Add(float64(report.Trips))
	c.TripsDiscarded.Add(float64(report.DiscardedTrips))
	c.SummaryRecords.Add(float64(records))
}

// The methods below satisfy publisher.PublisherMetrics.

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
		return
	}
	c.NATSConnected.Set(0)
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on addr. It stops when ctx
// is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("Metrics listening", "addr", addr)
	return srv
}
