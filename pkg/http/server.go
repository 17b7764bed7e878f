package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/leowmjw/go-temporal-trajectory/pkg/hcl"
	"github.com/leowmjw/go-temporal-trajectory/pkg/ingest"
	"github.com/leowmjw/go-temporal-trajectory/pkg/metrics"
	"github.com/leowmjw/go-temporal-trajectory/pkg/temporal"
	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

// maxBodyBytes bounds observation and pipeline uploads.
const maxBodyBytes = 64 << 20

// Server represents the HTTP server for the trajectory service
type Server struct {
	logger         *slog.Logger
	temporalClient client.Client
	addr           string
	taskQueue      string
	metrics        *metrics.Collector
}

// Option customises a Server
type Option func(*Server)

// WithTaskQueue sets the task queue workflows are started on
func WithTaskQueue(queue string) Option {
	return func(s *Server) {
		if queue != "" {
			s.taskQueue = queue
		}
	}
}

// WithMetrics records pipeline outcomes and serves GET /metrics
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// NewServer creates a new HTTP server
func NewServer(logger *slog.Logger, temporalClient client.Client, addr string, opts ...Option) *Server {
	s := &Server{
		logger:         logger,
		temporalClient: temporalClient,
		addr:           addr,
		taskQueue:      temporal.DefaultTaskQueue,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the handler with every endpoint registered
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /datasets/{id}/observations", s.handleIngestObservations)
	mux.HandleFunc("POST /datasets/{id}/gtfsrt", s.handleIngestGTFSRT)
	mux.HandleFunc("POST /datasets/{id}/summaries", s.handleSummaries)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return s.loggingMiddleware(mux)
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.Routes(),
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// mappingFromQuery starts from the preset named by ?mapping= (default or
// ais) and lets the individual field parameters override it.
func mappingFromQuery(r *http.Request) (ingest.FieldMapping, error) {
	q := r.URL.Query()
	var m ingest.FieldMapping
	switch q.Get("mapping") {
	case "", "default":
		m = ingest.DefaultMapping()
	case "ais":
		m = ingest.AISMapping()
	default:
		return m, fmt.Errorf("unknown mapping %q", q.Get("mapping"))
	}
	overrides := map[string]*string{
		"object_field": &m.ObjectField,
		"time_field":   &m.TimeField,
		"time_layout":  &m.TimeLayout,
		"x_field":      &m.XField,
		"y_field":      &m.YField,
	}
	for name, dst := range overrides {
		if v := q.Get(name); v != "" {
			*dst = v
		}
	}
	return m, nil
}

// Observation ingestion endpoint. Accepts a CSV file or a JSON array of
// records and forwards the decoded batch to the dataset's ingestion workflow.
func (s *Server) handleIngestObservations(w http.ResponseWriter, r *http.Request) {
	datasetID := r.PathValue("id")
	if datasetID == "" {
		s.respondError(w, http.StatusBadRequest, "dataset ID is required")
		return
	}

	mapping, err := mappingFromQuery(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	decoder, err := ingest.NewDecoder(mapping)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	contentType, err := hcl.DetectContentType(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var (
		observations []trajectory.Observation
		source       string
	)
	switch contentType {
	case hcl.ContentTypeCSV:
		source = "csv"
		observations, err = decoder.DecodeCSV(r.Body)
	default:
		source = "json"
		var body []byte
		body, err = io.ReadAll(r.Body)
		if err == nil {
			observations, err = decoder.DecodeJSON(body)
		}
	}
	if err != nil {
		s.rejectBatch(w, source, err.Error())
		return
	}

	s.signalObservations(w, r, datasetID, source, observations, nil)
}

// GTFS-Realtime ingestion endpoint. The body is a protobuf FeedMessage.
func (s *Server) handleIngestGTFSRT(w http.ResponseWriter, r *http.Request) {
	datasetID := r.PathValue("id")
	if datasetID == "" {
		s.respondError(w, http.StatusBadRequest, "dataset ID is required")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	observations, stats, err := ingest.DecodeVehiclePositions(body)
	if err != nil {
		s.rejectBatch(w, "gtfsrt", err.Error())
		return
	}

	s.signalObservations(w, r, datasetID, "gtfsrt", observations, &stats)
}

// rejectBatch answers 400 for an upload whose observations were refused
func (s *Server) rejectBatch(w http.ResponseWriter, source, message string) {
	if s.metrics != nil {
		s.metrics.ObserveRejected(source)
	}
	s.respondError(w, http.StatusBadRequest, message)
}

func (s *Server) signalObservations(w http.ResponseWriter, r *http.Request, datasetID, source string, observations []trajectory.Observation, stats *ingest.FeedStats) {
	if len(observations) == 0 {
		s.rejectBatch(w, source, "at least one observation is required")
		return
	}
	if err := trajectory.Validate(observations); err != nil {
		s.rejectBatch(w, source, err.Error())
		return
	}

	s.logger.Info("Ingesting observations", "datasetID", datasetID, "source", source, "count", len(observations))

	workflowID := temporal.GenerateIngestionWorkflowID(datasetID)
	signal := temporal.ObservationSignal{
		Source:       source,
		Observations: observations,
	}

	// SignalWithStart creates the ingestion workflow on first use
	_, err := s.temporalClient.SignalWithStartWorkflow(
		r.Context(),
		workflowID,
		temporal.ObservationSignalName,
		signal,
		client.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: s.taskQueue,
		},
		temporal.IngestionWorkflow,
		datasetID,
	)
	if err != nil {
		s.logger.Error("Failed to signal workflow", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to process observations")
		return
	}

	response := map[string]interface{}{
		"message":           "observations queued for processing",
		"dataset_id":        datasetID,
		"source":            source,
		"observation_count": len(observations),
	}
	if stats != nil {
		response["feed"] = stats
	}
	s.respondJSON(w, http.StatusAccepted, response)
}

// decodeSummaryRequest reads a JSON or HCL pipeline from the body.
func (s *Server) decodeSummaryRequest(r *http.Request) (*temporal.SummaryRequest, error) {
	contentType, err := hcl.DetectContentType(r)
	if err != nil {
		return nil, err
	}

	if contentType == hcl.ContentTypeHCL {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req, err := hcl.ParseHCLPipeline(string(body))
		if err != nil {
			return nil, fmt.Errorf("invalid HCL: %w", err)
		}
		return req, nil
	}

	var req temporal.SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	return &req, nil
}

// Summary endpoint. Runs the summary workflow for the dataset and waits for
// its records. ?format=csv returns the summary table instead of JSON.
func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	datasetID := r.PathValue("id")
	if datasetID == "" {
		s.respondError(w, http.StatusBadRequest, "dataset ID is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	request, err := s.decodeSummaryRequest(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	request.DatasetID = datasetID

	// Reject bad configurations before a workflow is started
	if err := request.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("Processing summary request", "datasetID", datasetID,
		"gapThreshold", request.GapThreshold, "mode", request.ProcessingMode)

	workflowID := temporal.GenerateSummaryWorkflowID(datasetID)
	start := time.Now()

	workflowRun, err := s.temporalClient.ExecuteWorkflow(
		r.Context(),
		client.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: s.taskQueue,
		},
		temporal.SummaryWorkflow,
		*request,
	)
	if err != nil {
		s.logger.Error("Failed to start summary workflow", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to start summary")
		return
	}

	var result *temporal.SummaryResult
	err = workflowRun.Get(r.Context(), &result)
	if s.metrics != nil {
		var report trajectory.Report
		var records int
		if result != nil {
			report, records = result.Report, len(result.Records)
		}
		s.metrics.ObservePipeline(report, records, time.Since(start), err)
	}
	if err != nil {
		s.logger.Error("Summary workflow failed", "error", err)
		if temporal.IsValidationError(err) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, "summary execution failed")
		return
	}

	s.logger.Info("Summary completed", "datasetID", datasetID, "trips", len(result.Records), "mode", result.Mode)

	if r.URL.Query().Get("format") == "csv" {
		s.respondCSV(w, request, result)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) respondCSV(w http.ResponseWriter, request *temporal.SummaryRequest, result *temporal.SummaryResult) {
	cfg, err := request.PipelineConfig()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := trajectory.NewTable(result.Records, cfg.Aggregations, cfg.WKT).WriteCSV(&buf); err != nil {
		s.logger.Error("Failed to write CSV", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to render summary table")
		return
	}
	w.Header().Set("Content-Type", hcl.ContentTypeCSV)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": trajectory.Info().Version,
		"time":    time.Now().Format(time.RFC3339),
	})
}

// Middleware for request logging
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.statusCode,
			"duration", time.Since(start),
			"user_agent", r.UserAgent(),
		)
	})
}

// Response helpers
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.logger.Warn("HTTP error response", "status", status, "message", message)
	s.respondJSON(w, status, map[string]string{"error": message})
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
