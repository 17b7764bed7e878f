package temporal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

// IngestionWorkflow appends observation batches for one dataset
func IngestionWorkflow(ctx workflow.Context, datasetID string) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting ingestion workflow", "datasetID", datasetID)

	state := IngestionWorkflowState{
		DatasetID:   datasetID,
		LastBatchAt: workflow.Now(ctx),
	}

	ao := workflow.ActivityOptions{
		ScheduleToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	signalChan := workflow.GetSignalChannel(ctx, ObservationSignalName)

	appendBatch := func(signal ObservationSignal) {
		var stored int
		err := workflow.ExecuteActivity(ctx, AppendObservationsActivityName, datasetID, signal).Get(ctx, &stored)
		if err != nil {
			// a rejected batch must not stop ingestion for the dataset
			logger.Error("Failed to append observations", "error", err)
			state.RejectedBatches++
			return
		}
		state.ObservationCount += stored
		state.LastBatchAt = workflow.Now(ctx)
	}

	for {
		var signal ObservationSignal
		signalChan.Receive(ctx, &signal)
		logger.Info("Received observations", "count", len(signal.Observations), "source", signal.Source)
		appendBatch(signal)

		// Check if we should continue as new to avoid unbounded history
		if state.ObservationCount >= DefaultContinueAsNewThreshold {
			// drain what is already buffered so no batch is lost
			for signalChan.ReceiveAsync(&signal) {
				appendBatch(signal)
			}
			logger.Info("Continuing as new", "observationCount", state.ObservationCount)
			return workflow.NewContinueAsNewError(ctx, IngestionWorkflow, datasetID)
		}
	}
}

// SummaryWorkflow loads a dataset, builds trajectories, splits them into
// trips and summarizes each trip. Records come back in trajectory order
// whatever the processing mode.
func SummaryWorkflow(ctx workflow.Context, request SummaryRequest) (*SummaryResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting summary workflow", "datasetID", request.DatasetID)

	if err := request.Validate(); err != nil {
		return nil, asApplicationError(err)
	}

	ao := workflow.ActivityOptions{
		ScheduleToCloseTimeout: 5 * time.Minute,
		HeartbeatTimeout:       time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	// Step 1: Load observations from storage
	var observations []trajectory.Observation
	err := workflow.ExecuteActivity(ctx, LoadObservationsActivityName, request.DatasetID, request.TimeRange).Get(ctx, &observations)
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}

	// Step 2: Group into trajectories
	var built trajectory.BuildResult
	err = workflow.ExecuteActivity(ctx, BuildTrajectoriesActivityName, request, observations).Get(ctx, &built)
	if err != nil {
		return nil, fmt.Errorf("failed to build trajectories: %w", err)
	}

	// Step 3: Split and summarize
	// Choose processing mode based on request or automatic detection
	result := &SummaryResult{DatasetID: request.DatasetID, Mode: request.ProcessingMode}
	var chunks []ChunkResult

	switch {
	case request.ProcessingMode == ProcessingModeConcurrent,
		request.ProcessingMode == ProcessingModeAuto && len(built.Trajectories) > request.chunkSize():
		logger.Info("Using concurrent processing", "trajectories", len(built.Trajectories))
		result.Mode = ProcessingModeConcurrent
		chunks, err = summarizeConcurrently(ctx, request, built.Trajectories)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize trajectories concurrently: %w", err)
		}
	default:
		logger.Info("Using single-threaded processing", "trajectories", len(built.Trajectories))
		result.Mode = ProcessingModeSingle
		var single ChunkResult
		err = workflow.ExecuteActivity(ctx, SummarizeActivityName, request, built.Trajectories).Get(ctx, &single)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize trajectories: %w", err)
		}
		chunks = []ChunkResult{single}
	}

	result.Chunks = len(chunks)
	result.Records = []trajectory.SummaryRecord{}
	for _, c := range chunks {
		result.Records = append(result.Records, c.Records...)
		result.Report.Trips += c.Report.Trips
		result.Report.DiscardedTrips += c.Report.DiscardedTrips
	}
	result.Report.RenamedTrips = trajectory.UniqueTripIDs(result.Records)
	result.Report.Observations = len(observations)
	result.Report.Trajectories = len(built.Trajectories)
	result.Report.DiscardedTrajectories = built.Discarded
	result.Report.DuplicatesDropped = built.DuplicatesDropped

	// Step 4: Optionally publish
	if request.Publish && len(result.Records) > 0 {
		err = workflow.ExecuteActivity(ctx, PublishSummariesActivityName, request.DatasetID, result.Records).Get(ctx, &result.Published)
		if err != nil {
			// publishing is best effort; the summaries are still returned
			logger.Warn("Failed to publish summaries", "error", err)
			result.PublishError = err.Error()
		}
	}

	logger.Info("Summary completed",
		"records", len(result.Records),
		"trips", result.Report.Trips,
		"discardedTrips", result.Report.DiscardedTrips,
		"mode", result.Mode,
	)
	return result, nil
}

// summarizeConcurrently fans chunks out as activities, at most
// MaxConcurrency at a time, and collects results in chunk order.
func summarizeConcurrently(ctx workflow.Context, request SummaryRequest, trajs []trajectory.Trajectory) ([]ChunkResult, error) {
	logger := workflow.GetLogger(ctx)
	chunks := chunkTrajectories(workflow.GetInfo(ctx).WorkflowExecution.ID, trajs, request.chunkSize())
	results := make([]ChunkResult, len(chunks))

	for start := 0; start < len(chunks); start += MaxConcurrency {
		end := min(start+MaxConcurrency, len(chunks))
		futures := make([]workflow.Future, 0, end-start)
		for _, chunk := range chunks[start:end] {
			futures = append(futures, workflow.ExecuteActivity(ctx, SummarizeChunkActivityName, request, chunk))
		}
		for i, f := range futures {
			if err := f.Get(ctx, &results[start+i]); err != nil {
				logger.Error("Chunk failed", "chunkID", chunks[start+i].ID, "error", err)
				return nil, err
			}
		}
		logger.Info("Chunks completed", "completed", end, "total", len(chunks))
	}
	return results, nil
}

// Utility functions for workflow IDs

// GenerateIngestionWorkflowID creates a workflow ID for ingestion. There is
// one long-running ingestion workflow per dataset.
func GenerateIngestionWorkflowID(datasetID string) string {
	return IngestionWorkflowIDPrefix + datasetID
}

// GenerateSummaryWorkflowID creates a unique workflow ID for a summary run
func GenerateSummaryWorkflowID(datasetID string) string {
	return fmt.Sprintf("%s%s-%s", SummaryWorkflowIDPrefix, datasetID, uuid.NewString())
}
