package hcl

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/leowmjw/go-temporal-trajectory/pkg/temporal"
	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

// HCLPipeline represents the HCL pipeline structure
type HCLPipeline struct {
	DatasetID      *string        `hcl:"dataset_id,optional"`
	GroupKey       *string        `hcl:"group_key,optional"`
	GapThreshold   *string        `hcl:"gap_threshold,optional"`
	Metric         *string        `hcl:"metric,optional"`
	ProcessingMode *string        `hcl:"processing_mode,optional"`
	ChunkSize      *int           `hcl:"chunk_size,optional"`
	Publish        *bool          `hcl:"publish,optional"`
	WKT            *bool          `hcl:"wkt,optional"`
	MinLength      *HCLMinLength  `hcl:"min_length,block"`
	TimeRange      *HCLTimeRange  `hcl:"time_range,block"`
	Aggregates     []HCLAggregate `hcl:"aggregate,block"`
}

// HCLMinLength mirrors trajectory.MinLength
type HCLMinLength struct {
	Points   *int     `hcl:"points,optional"`
	Distance *float64 `hcl:"distance,optional"`
}

// HCLTimeRange restricts the observations loaded for a run
type HCLTimeRange struct {
	Start string `hcl:"start"`
	End   string `hcl:"end"`
}

// HCLAggregate lists the functions computed over one attribute
type HCLAggregate struct {
	Attribute string   `hcl:"attribute,label"`
	Functions []string `hcl:"functions"`
}

// newEvalContext creates the evaluation context with helper functions.
// timestamp() validates an RFC3339 string and normalises it to UTC.
func newEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{},
		Functions: map[string]function.Function{
			"timestamp": function.New(&function.Spec{
				Params: []function.Parameter{
					{
						Name: "timestamp",
						Type: cty.String,
					},
				},
				Type: function.StaticReturnType(cty.String),
				Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
					t, err := time.Parse(time.RFC3339, args[0].AsString())
					if err != nil {
						return cty.NilVal, err
					}
					return cty.StringVal(t.UTC().Format(time.RFC3339Nano)), nil
				},
			}),
		},
	}
}

// ParseHCLPipeline parses HCL content and converts it to a temporal.SummaryRequest
func ParseHCLPipeline(hclContent string) (*temporal.SummaryRequest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL([]byte(hclContent), "pipeline.hcl")
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %s", diags.Error())
	}
	return parsePipelineBody(file.Body)
}

// parsePipelineBody decodes a single or merged body. Unknown attributes and
// blocks are reported by the decoder.
func parsePipelineBody(body hcl.Body) (*temporal.SummaryRequest, error) {
	evalCtx := newEvalContext()

	var pipeline HCLPipeline
	diags := gohcl.DecodeBody(body, evalCtx, &pipeline)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL body: %s", diags.Error())
	}
	return convertHCLPipeline(&pipeline)
}

// convertHCLPipeline converts the decoded HCL structures to a request.
// Several aggregate blocks for the same attribute are concatenated in the
// order they appear.
func convertHCLPipeline(p *HCLPipeline) (*temporal.SummaryRequest, error) {
	req := &temporal.SummaryRequest{}

	if p.DatasetID != nil {
		req.DatasetID = *p.DatasetID
	}
	if p.GroupKey != nil {
		req.GroupKey = *p.GroupKey
	}
	if p.GapThreshold != nil {
		req.GapThreshold = *p.GapThreshold
	}
	if p.Metric != nil {
		req.Metric = *p.Metric
	}
	if p.ProcessingMode != nil {
		req.ProcessingMode = *p.ProcessingMode
	}
	if p.ChunkSize != nil {
		req.ChunkSize = *p.ChunkSize
	}
	if p.Publish != nil {
		req.Publish = *p.Publish
	}
	if p.WKT != nil {
		req.WKT = *p.WKT
	}

	if p.MinLength != nil {
		if p.MinLength.Points != nil {
			req.MinLength.Points = *p.MinLength.Points
		}
		if p.MinLength.Distance != nil {
			req.MinLength.Distance = *p.MinLength.Distance
		}
	}

	if len(p.Aggregates) > 0 {
		req.Aggregations = make(map[string][]string, len(p.Aggregates))
		for _, agg := range p.Aggregates {
			req.Aggregations[agg.Attribute] = append(req.Aggregations[agg.Attribute], agg.Functions...)
		}
	}

	// Parse time range
	if p.TimeRange != nil {
		start, err := time.Parse(time.RFC3339, p.TimeRange.Start)
		if err != nil {
			return nil, fmt.Errorf("failed to parse start time: %w", err)
		}

		end, err := time.Parse(time.RFC3339, p.TimeRange.End)
		if err != nil {
			return nil, fmt.Errorf("failed to parse end time: %w", err)
		}

		req.TimeRange = &trajectory.TimeRange{
			Start: start.UTC(),
			End:   end.UTC(),
		}
	}

	return req, nil
}

// IsHCL attempts to detect if the given content is in HCL format
func IsHCL(content []byte) bool {
	_, diags := hclsyntax.ParseConfig(content, "", hcl.Pos{Line: 1, Column: 1})
	return !diags.HasErrors()
}
