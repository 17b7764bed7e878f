package trajectory

import (
	"context"
	"log/slog"
	"time"
)

// Config is the caller-facing configuration of a summarization run.
type Config struct {
	GroupKey     string        `json:"group_key,omitempty"`
	MinLength    MinLength     `json:"min_length"`
	GapThreshold time.Duration `json:"gap_threshold"`
	Metric       Metric        `json:"metric,omitempty"`
	Aggregations AggSpec       `json:"aggregations,omitempty"`
	WKT          bool          `json:"wkt,omitempty"`
}

func (c Config) Validate() error {
	if err := c.MinLength.Validate(); err != nil {
		return err
	}
	if err := validateThreshold(c.GapThreshold); err != nil {
		return err
	}
	if _, err := ParseMetric(string(c.Metric)); err != nil {
		return err
	}
	return c.Aggregations.Validate()
}

// Report carries the counters of a run. Discards are expected data-quality
// outcomes rather than failures.
type Report struct {
	Observations          int `json:"observations"`
	Trajectories          int `json:"trajectories"`
	DiscardedTrajectories int `json:"discarded_trajectories"`
	DuplicatesDropped     int `json:"duplicates_dropped"`
	Trips                 int `json:"trips"`
	DiscardedTrips        int `json:"discarded_trips"`
	RenamedTrips          int `json:"renamed_trips,omitempty"`
}

type Result struct {
	Records []SummaryRecord `json:"records"`
	Report  Report          `json:"report"`
}

// Pipeline runs build, split and summarize with a fixed configuration.
type Pipeline struct {
	logger *slog.Logger
	cfg    Config
	key    GroupKey
	metric Metric
}

func NewPipeline(logger *slog.Logger, cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	metric, _ := ParseMetric(string(cfg.Metric))
	return &Pipeline{
		logger: logger,
		cfg:    cfg,
		key:    ParseGroupKey(cfg.GroupKey),
		metric: metric,
	}, nil
}

func (p *Pipeline) Config() Config { return p.cfg }

// Build groups observations into trajectories.
func (p *Pipeline) Build(observations []Observation) (BuildResult, error) {
	return Build(observations, BuildConfig{
		GroupKey:  p.key,
		MinLength: p.cfg.MinLength,
		Metric:    p.metric,
	})
}

// SplitAndSummarize splits trajectories into trips and summarizes them. ctx
// is checked before each trajectory and each trip.
func (p *Pipeline) SplitAndSummarize(ctx context.Context, trajectories []Trajectory) ([]SummaryRecord, Report, error) {
	var report Report
	records := make([]SummaryRecord, 0, len(trajectories))
	opts := SummaryOptions{Metric: p.metric, WKT: p.cfg.WKT}

	for _, traj := range trajectories {
		if err := ctx.Err(); err != nil {
			return nil, Report{}, err
		}
		trips, discarded, err := SplitTrajectory(traj, p.cfg.GapThreshold)
		if err != nil {
			return nil, Report{}, err
		}
		report.Trips += len(trips)
		report.DiscardedTrips += discarded

		for _, trip := range trips {
			if err := ctx.Err(); err != nil {
				return nil, Report{}, err
			}
			rec, err := SummarizeTrip(trip, p.cfg.Aggregations, opts)
			if err != nil {
				p.logger.Warn("Failed to summarize trip", "tripID", trip.ID, "error", err)
				return nil, Report{}, err
			}
			records = append(records, rec)
		}
	}
	return records, report, nil
}

// Run executes the whole pipeline over observations.
func (p *Pipeline) Run(ctx context.Context, observations []Observation) (*Result, error) {
	start := time.Now()
	p.logger.Debug("Building trajectories", "observations", len(observations), "groupKey", p.key.Name())

	built, err := p.Build(observations)
	if err != nil {
		return nil, err
	}

	records, report, err := p.SplitAndSummarize(ctx, built.Trajectories)
	if err != nil {
		return nil, err
	}
	report.RenamedTrips = UniqueTripIDs(records)
	report.Observations = len(observations)
	report.Trajectories = len(built.Trajectories)
	report.DiscardedTrajectories = built.Discarded
	report.DuplicatesDropped = built.DuplicatesDropped

	p.logger.Info("Pipeline completed",
		"observations", report.Observations,
		"trajectories", report.Trajectories,
		"discardedTrajectories", report.DiscardedTrajectories,
		"trips", report.Trips,
		"discardedTrips", report.DiscardedTrips,
		"duration", time.Since(start),
	)
	return &Result{Records: records, Report: report}, nil
}
