package temporal

import (
	"fmt"
	"strings"
	"time"

	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

const (
	// Workflow IDs
	IngestionWorkflowIDPrefix = "trajectory-ingest-"
	SummaryWorkflowIDPrefix   = "trajectory-summary-"

	// Signal names
	ObservationSignalName = "observation-signal"

	// Activity names
	AppendObservationsActivityName = "append-observations"
	LoadObservationsActivityName   = "load-observations"
	BuildTrajectoriesActivityName  = "build-trajectories"
	SummarizeActivityName          = "summarize-trajectories"
	SummarizeChunkActivityName     = "summarize-trajectory-chunk"
	PublishSummariesActivityName   = "publish-summaries"

	// Default values
	DefaultContinueAsNewThreshold = 1000 // observations before ContinueAsNew
	DefaultChunkSize              = 100  // trajectories per concurrent chunk
	MaxConcurrency                = 10   // chunk activities in flight

	DefaultTaskQueue = "trajectory-task-queue"
)

// Processing modes for the split and summarize stage
const (
	ProcessingModeAuto       = ""
	ProcessingModeSingle     = "single"
	ProcessingModeConcurrent = "concurrent"
)

// ObservationSignal carries a batch of observations into an ingestion
// workflow. Source labels the decoder that produced them (json, csv, gtfsrt).
type ObservationSignal struct {
	Source       string                   `json:"source,omitempty"`
	Observations []trajectory.Observation `json:"observations"`
}

// SummaryRequest describes a summarization run over a stored dataset
type SummaryRequest struct {
	DatasetID      string                `json:"dataset_id"`
	GroupKey       string                `json:"group_key,omitempty"`
	MinLength      trajectory.MinLength  `json:"min_length,omitempty"`
	GapThreshold   string                `json:"gap_threshold"`
	Metric         string                `json:"metric,omitempty"`
	Aggregations   map[string][]string   `json:"aggregations,omitempty"`
	TimeRange      *trajectory.TimeRange `json:"time_range,omitempty"`
	ProcessingMode string                `json:"processing_mode,omitempty"`
	ChunkSize      int                   `json:"chunk_size,omitempty"`
	Publish        bool                  `json:"publish,omitempty"`
	WKT            bool                  `json:"wkt,omitempty"`
}

// PipelineConfig converts the wire form into a validated pipeline
// configuration.
func (r SummaryRequest) PipelineConfig() (trajectory.Config, error) {
	if strings.TrimSpace(r.GapThreshold) == "" {
		return trajectory.Config{}, &trajectory.InvalidConfigError{Field: "gap_threshold", Reason: "is required"}
	}
	threshold, err := time.ParseDuration(r.GapThreshold)
	if err != nil {
		return trajectory.Config{}, &trajectory.InvalidConfigError{Field: "gap_threshold", Reason: err.Error()}
	}
	metric, err := trajectory.ParseMetric(r.Metric)
	if err != nil {
		return trajectory.Config{}, err
	}
	spec, err := trajectory.ParseAggSpec(r.Aggregations)
	if err != nil {
		return trajectory.Config{}, err
	}
	cfg := trajectory.Config{
		GroupKey:     r.GroupKey,
		MinLength:    r.MinLength,
		GapThreshold: threshold,
		Metric:       metric,
		Aggregations: spec,
		WKT:          r.WKT,
	}
	if err := cfg.Validate(); err != nil {
		return trajectory.Config{}, err
	}
	return cfg, nil
}

// Validate checks the request without running anything
func (r SummaryRequest) Validate() error {
	if strings.TrimSpace(r.DatasetID) == "" {
		return &trajectory.InvalidConfigError{Field: "dataset_id", Reason: "is required"}
	}
	switch r.ProcessingMode {
	case ProcessingModeAuto, ProcessingModeSingle, ProcessingModeConcurrent:
	default:
		return &trajectory.InvalidConfigError{
			Field:  "processing_mode",
			Reason: fmt.Sprintf("unknown mode %q", r.ProcessingMode),
		}
	}
	if r.ChunkSize < 0 {
		return &trajectory.InvalidConfigError{Field: "chunk_size", Reason: "must not be negative"}
	}
	if r.TimeRange != nil && r.TimeRange.End.Before(r.TimeRange.Start) {
		return &trajectory.InvalidConfigError{Field: "time_range", Reason: "end before start"}
	}
	_, err := r.PipelineConfig()
	return err
}

func (r SummaryRequest) chunkSize() int {
	if r.ChunkSize > 0 {
		return r.ChunkSize
	}
	return DefaultChunkSize
}

// SummaryResult is returned by SummaryWorkflow
type SummaryResult struct {
	DatasetID    string                     `json:"dataset_id"`
	Records      []trajectory.SummaryRecord `json:"records"`
	Report       trajectory.Report          `json:"report"`
	Mode         string                     `json:"mode"`
	Chunks       int                        `json:"chunks,omitempty"`
	Published    int                        `json:"published,omitempty"`
	PublishError string                     `json:"publish_error,omitempty"`
}

// TrajectoryChunk is the unit of work of the concurrent mode
type TrajectoryChunk struct {
	ID           string                  `json:"id"`
	ChunkIndex   int                     `json:"chunk_index"`
	TotalChunks  int                     `json:"total_chunks"`
	Trajectories []trajectory.Trajectory `json:"trajectories"`
}

// ChunkResult holds the records of one chunk, in trajectory order
type ChunkResult struct {
	ChunkIndex int                        `json:"chunk_index"`
	Records    []trajectory.SummaryRecord `json:"records"`
	Report     trajectory.Report          `json:"report"`
}

// ProgressInfo is recorded as the heartbeat of chunk activities
type ProgressInfo struct {
	TotalTrajectories     int `json:"total_trajectories"`
	ProcessedTrajectories int `json:"processed_trajectories"`
	ChunkIndex            int `json:"chunk_index"`
	TotalChunks           int `json:"total_chunks"`
}

// IngestionWorkflowState represents the state of an ingestion workflow
type IngestionWorkflowState struct {
	DatasetID        string    `json:"dataset_id"`
	ObservationCount int       `json:"observation_count"`
	RejectedBatches  int       `json:"rejected_batches"`
	LastBatchAt      time.Time `json:"last_batch_at"`
}

// chunkTrajectories splits trajectories into consecutive chunks of at most
// size elements, preserving order.
func chunkTrajectories(prefix string, trajs []trajectory.Trajectory, size int) []TrajectoryChunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	total := (len(trajs) + size - 1) / size
	chunks := make([]TrajectoryChunk, 0, total)
	for i := 0; i < len(trajs); i += size {
		end := min(i+size, len(trajs))
		idx := len(chunks)
		chunks = append(chunks, TrajectoryChunk{
			ID:           fmt.Sprintf("%s-chunk-%d", prefix, idx),
			ChunkIndex:   idx,
			TotalChunks:  total,
			Trajectories: trajs[i:end],
		})
	}
	return chunks
}
