// Command trajsum summarizes a file of observations into trips, either
// locally or by running the summary workflow on a Temporal cluster.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"

	"github.com/leowmjw/go-temporal-trajectory/pkg/hcl"
	"github.com/leowmjw/go-temporal-trajectory/pkg/ingest"
	"github.com/leowmjw/go-temporal-trajectory/pkg/temporal"
	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

type options struct {
	pipeline  string
	input     string
	format    string
	mapping   string
	output    string
	remote    string
	namespace string
	taskQueue string
	wkt       bool
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	var opts options
	flag.StringVar(&opts.pipeline, "pipeline", "", "Path to pipeline HCL file, HCL directory or JSON file (required)")
	flag.StringVar(&opts.input, "input", "", "Observation file for local runs (- for stdin)")
	flag.StringVar(&opts.format, "format", "csv", "Input format: csv, json or gtfsrt")
	flag.StringVar(&opts.mapping, "mapping", "default", "Field mapping preset: default or ais")
	flag.StringVar(&opts.output, "output", "table", "Output format: table, csv or json")
	flag.StringVar(&opts.remote, "remote", "", "Temporal address; when set the dataset is summarized by the workflow")
	flag.StringVar(&opts.namespace, "namespace", "default", "Temporal namespace")
	flag.StringVar(&opts.taskQueue, "task-queue", temporal.DefaultTaskQueue, "Temporal task queue")
	flag.BoolVar(&opts.wkt, "wkt", false, "Add a measured WKT line string per trip")
	flag.Parse()

	if opts.pipeline == "" {
		logger.Error("Pipeline parameter is required")
		flag.Usage()
		os.Exit(1)
	}

	request, err := hcl.LoadPipeline(opts.pipeline)
	if err != nil {
		logger.Error("Failed to load pipeline", "error", err)
		os.Exit(1)
	}
	if opts.wkt {
		request.WKT = true
	}

	ctx := context.Background()
	var result *temporal.SummaryResult
	if opts.remote != "" {
		result, err = runRemote(ctx, opts, request, logger)
	} else {
		result, err = runLocal(ctx, opts, request, logger)
	}
	if err != nil {
		logger.Error("Summary failed", "error", err)
		os.Exit(1)
	}

	if err := writeResult(os.Stdout, opts.output, request, result); err != nil {
		logger.Error("Failed to write result", "error", err)
		os.Exit(1)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func decodeObservations(opts options, data []byte) ([]trajectory.Observation, error) {
	if opts.format == "gtfsrt" {
		obs, _, err := ingest.DecodeVehiclePositions(data)
		return obs, err
	}

	mapping := ingest.DefaultMapping()
	switch opts.mapping {
	case "default":
	case "ais":
		mapping = ingest.AISMapping()
	default:
		return nil, fmt.Errorf("unknown mapping %q", opts.mapping)
	}
	decoder, err := ingest.NewDecoder(mapping)
	if err != nil {
		return nil, err
	}

	switch opts.format {
	case "csv":
		return decoder.DecodeCSV(bytes.NewReader(data))
	case "json":
		return decoder.DecodeJSON(data)
	}
	return nil, fmt.Errorf("unknown input format %q", opts.format)
}

// runLocal executes the pipeline in process.
func runLocal(ctx context.Context, opts options, request *temporal.SummaryRequest, logger *slog.Logger) (*temporal.SummaryResult, error) {
	if opts.input == "" {
		return nil, fmt.Errorf("-input is required for local runs")
	}
	cfg, err := request.PipelineConfig()
	if err != nil {
		return nil, err
	}

	data, err := readInput(opts.input)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	observations, err := decodeObservations(opts, data)
	if err != nil {
		return nil, err
	}

	points := trajectory.NewPointStore()
	if err := points.Add(observations...); err != nil {
		return nil, err
	}
	if request.TimeRange != nil {
		observations = points.Range(request.TimeRange.Start, request.TimeRange.End)
	} else {
		observations = points.All()
	}
	logger.Info("Loaded observations", "count", len(observations), "objects", len(points.Objects()))

	pipeline, err := trajectory.NewPipeline(logger, cfg)
	if err != nil {
		return nil, err
	}
	res, err := pipeline.Run(ctx, observations)
	if err != nil {
		return nil, err
	}
	return &temporal.SummaryResult{
		DatasetID: request.DatasetID,
		Records:   res.Records,
		Report:    res.Report,
		Mode:      "local",
		Chunks:    1,
	}, nil
}

// runRemote summarizes a dataset already ingested through the service.
func runRemote(ctx context.Context, opts options, request *temporal.SummaryRequest, logger *slog.Logger) (*temporal.SummaryResult, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	c, err := client.Dial(client.Options{
		HostPort:  opts.remote,
		Namespace: opts.namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create Temporal client: %w", err)
	}
	defer c.Close()

	workflowID := temporal.GenerateSummaryWorkflowID(request.DatasetID)
	logger.Info("Executing summary workflow", "workflow_id", workflowID, "dataset_id", request.DatasetID)

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: opts.taskQueue,
	}, temporal.SummaryWorkflow, *request)
	if err != nil {
		return nil, fmt.Errorf("failed to execute summary workflow: %w", err)
	}

	var result *temporal.SummaryResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to get summary result: %w", err)
	}
	return result, nil
}

func writeResult(w io.Writer, format string, request *temporal.SummaryRequest, result *temporal.SummaryResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	cfg, err := request.PipelineConfig()
	if err != nil {
		return err
	}
	table := trajectory.NewTable(result.Records, cfg.Aggregations, cfg.WKT)
	switch format {
	case "csv":
		return table.WriteCSV(w)
	case "table":
		if err := table.WriteText(w); err != nil {
			return err
		}
		r := result.Report
		_, err := fmt.Fprintf(w, "\n%d observations, %d trajectories (%d discarded), %d trips (%d discarded)\n",
			r.Observations, r.Trajectories, r.DiscardedTrajectories, r.Trips, r.DiscardedTrips)
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}
