package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/leowmjw/go-temporal-trajectory/pkg/storage"
	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

// Application error types carried across the Temporal boundary so callers
// can tell validation failures from infrastructure failures.
const (
	ErrTypeInvalidInput           = "InvalidInputError"
	ErrTypeInvalidConfig          = "InvalidConfigError"
	ErrTypeUnsupportedAggregation = "UnsupportedAggregationError"
)

// Activities interface defines all the activities used by workflows
type Activities interface {
	AppendObservationsActivity(ctx context.Context, datasetID string, signal ObservationSignal) (int, error)
	LoadObservationsActivity(ctx context.Context, datasetID string, timeRange *trajectory.TimeRange) ([]trajectory.Observation, error)
	BuildTrajectoriesActivity(ctx context.Context, request SummaryRequest, observations []trajectory.Observation) (*trajectory.BuildResult, error)
	SummarizeActivity(ctx context.Context, request SummaryRequest, trajectories []trajectory.Trajectory) (*ChunkResult, error)
	SummarizeChunkActivity(ctx context.Context, request SummaryRequest, chunk TrajectoryChunk) (*ChunkResult, error)
	PublishSummariesActivity(ctx context.Context, datasetID string, records []trajectory.SummaryRecord) (int, error)
}

// Publisher sends summary records downstream
type Publisher interface {
	PublishSummaries(datasetID string, records []trajectory.SummaryRecord) (int, error)
}

// IngestObserver is told about every persisted or refused batch
type IngestObserver interface {
	ObserveIngest(source string, n int)
	ObserveRejected(source string)
}

// ActivitiesImpl implements the Activities interface
type ActivitiesImpl struct {
	logger    *slog.Logger
	store     storage.Store
	publisher Publisher
	observer  IngestObserver
}

// NewActivitiesImpl creates a new activities implementation. publisher and
// observer may be nil.
func NewActivitiesImpl(logger *slog.Logger, store storage.Store, publisher Publisher, observer IngestObserver) *ActivitiesImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivitiesImpl{
		logger:    logger,
		store:     store,
		publisher: publisher,
		observer:  observer,
	}
}

// AppendObservationsActivity persists a batch and returns the number stored
func (a *ActivitiesImpl) AppendObservationsActivity(ctx context.Context, datasetID string, signal ObservationSignal) (int, error) {
	a.logger.Info("Appending observations", "datasetID", datasetID, "source", signal.Source, "count", len(signal.Observations))

	if err := a.store.Append(ctx, datasetID, signal.Observations); err != nil {
		a.logger.Error("Failed to append observations", "datasetID", datasetID, "error", err)
		if a.observer != nil && errors.Is(err, trajectory.ErrInvalidInput) {
			a.observer.ObserveRejected(signal.Source)
		}
		return 0, asApplicationError(fmt.Errorf("failed to append observations: %w", err))
	}
	if a.observer != nil {
		a.observer.ObserveIngest(signal.Source, len(signal.Observations))
	}
	return len(signal.Observations), nil
}

// LoadObservationsActivity loads a dataset in ingestion order
func (a *ActivitiesImpl) LoadObservationsActivity(ctx context.Context, datasetID string, timeRange *trajectory.TimeRange) ([]trajectory.Observation, error) {
	a.logger.Info("Loading observations", "datasetID", datasetID, "timeRange", timeRange)

	obs, err := a.store.Load(ctx, datasetID, timeRange)
	if err != nil {
		a.logger.Error("Failed to load observations", "error", err)
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}

	a.logger.Info("Successfully loaded observations", "datasetID", datasetID, "count", len(obs))
	return obs, nil
}

// BuildTrajectoriesActivity groups observations into trajectories
func (a *ActivitiesImpl) BuildTrajectoriesActivity(ctx context.Context, request SummaryRequest, observations []trajectory.Observation) (*trajectory.BuildResult, error) {
	p, err := a.pipeline(request)
	if err != nil {
		return nil, err
	}
	result, err := p.Build(observations)
	if err != nil {
		a.logger.Error("Failed to build trajectories", "datasetID", request.DatasetID, "error", err)
		return nil, asApplicationError(err)
	}
	a.logger.Info("Built trajectories",
		"datasetID", request.DatasetID,
		"trajectories", len(result.Trajectories),
		"discarded", result.Discarded,
		"duplicatesDropped", result.DuplicatesDropped,
	)
	return &result, nil
}

// SummarizeActivity splits and summarizes all trajectories in one go
func (a *ActivitiesImpl) SummarizeActivity(ctx context.Context, request SummaryRequest, trajectories []trajectory.Trajectory) (*ChunkResult, error) {
	return a.SummarizeChunkActivity(ctx, request, TrajectoryChunk{
		ID:           request.DatasetID,
		TotalChunks:  1,
		Trajectories: trajectories,
	})
}

// SummarizeChunkActivity splits and summarizes one chunk of trajectories,
// heartbeating progress after each trajectory.
func (a *ActivitiesImpl) SummarizeChunkActivity(ctx context.Context, request SummaryRequest, chunk TrajectoryChunk) (*ChunkResult, error) {
	a.logger.Info("Summarizing chunk", "chunkID", chunk.ID, "trajectories", len(chunk.Trajectories))

	p, err := a.pipeline(request)
	if err != nil {
		return nil, err
	}

	progress := ProgressInfo{
		TotalTrajectories: len(chunk.Trajectories),
		ChunkIndex:        chunk.ChunkIndex,
		TotalChunks:       chunk.TotalChunks,
	}
	result := &ChunkResult{ChunkIndex: chunk.ChunkIndex, Records: []trajectory.SummaryRecord{}}
	for i, traj := range chunk.Trajectories {
		records, report, err := p.SplitAndSummarize(ctx, []trajectory.Trajectory{traj})
		if err != nil {
			a.logger.Error("Failed to summarize trajectory", "chunkID", chunk.ID, "trajectoryID", traj.ID, "error", err)
			return nil, asApplicationError(err)
		}
		result.Records = append(result.Records, records...)
		result.Report.Trips += report.Trips
		result.Report.DiscardedTrips += report.DiscardedTrips

		progress.ProcessedTrajectories = i + 1
		activity.RecordHeartbeat(ctx, progress)
	}

	a.logger.Info("Successfully summarized chunk", "chunkID", chunk.ID, "records", len(result.Records))
	return result, nil
}

// PublishSummariesActivity hands records to the configured publisher
func (a *ActivitiesImpl) PublishSummariesActivity(ctx context.Context, datasetID string, records []trajectory.SummaryRecord) (int, error) {
	if a.publisher == nil {
		return 0, temporal.NewNonRetryableApplicationError("no summary publisher configured", "PublisherUnavailable", nil)
	}
	n, err := a.publisher.PublishSummaries(datasetID, records)
	if err != nil {
		a.logger.Error("Failed to publish summaries", "datasetID", datasetID, "published", n, "error", err)
		return n, fmt.Errorf("failed to publish summaries: %w", err)
	}
	a.logger.Info("Published summaries", "datasetID", datasetID, "count", n)
	return n, nil
}

func (a *ActivitiesImpl) pipeline(request SummaryRequest) (*trajectory.Pipeline, error) {
	cfg, err := request.PipelineConfig()
	if err != nil {
		return nil, asApplicationError(err)
	}
	p, err := trajectory.NewPipeline(a.logger, cfg)
	if err != nil {
		return nil, asApplicationError(err)
	}
	return p, nil
}

// asApplicationError marks validation failures as non-retryable. Other
// errors are returned unchanged and follow the retry policy.
func asApplicationError(err error) error {
	var errType string
	switch {
	case errors.Is(err, trajectory.ErrInvalidInput):
		errType = ErrTypeInvalidInput
	case errors.Is(err, trajectory.ErrInvalidConfig):
		errType = ErrTypeInvalidConfig
	case errors.Is(err, trajectory.ErrUnsupportedAggregation):
		errType = ErrTypeUnsupportedAggregation
	default:
		return err
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), errType, err)
}

// IsValidationError reports whether err, possibly returned by a Temporal
// client, carries one of the validation error types anywhere in its chain.
func IsValidationError(err error) bool {
	if trajectory.IsDeterministic(err) {
		return true
	}
	for ; err != nil; err = errors.Unwrap(err) {
		appErr, ok := err.(*temporal.ApplicationError)
		if !ok {
			continue
		}
		switch appErr.Type() {
		case ErrTypeInvalidInput, ErrTypeInvalidConfig, ErrTypeUnsupportedAggregation:
			return true
		}
	}
	return false
}
