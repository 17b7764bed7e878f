package trajectory

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"
)

// SummaryOptions tunes how records are computed. WKT adds the measured
// line string of each trip.
type SummaryOptions struct {
	Metric Metric
	WKT    bool
}

// Summarize produces one record per trip, in the order of trips. If any trip
// fails to aggregate no records are returned.
func Summarize(trips []Trajectory, spec AggSpec, opts SummaryOptions) ([]SummaryRecord, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	records := make([]SummaryRecord, 0, len(trips))
	for i, trip := range trips {
		if len(trip.Observations) == 0 {
			return nil, &InvalidInputError{Index: i, Field: "observations", Reason: "trip has no observations"}
		}
		rec, err := SummarizeTrip(trip, spec, opts)
		if err != nil {
			return nil, fmt.Errorf("trip %s: %w", trip.ID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// SummarizeTrip builds the summary record of a single non-empty trip.
func SummarizeTrip(trip Trajectory, spec AggSpec, opts SummaryOptions) (SummaryRecord, error) {
	metric := opts.Metric.orDefault()
	fields, err := Aggregate(trip, spec)
	if err != nil {
		return SummaryRecord{}, err
	}
	rec := SummaryRecord{
		TripID:           trip.ID,
		ObjectID:         trip.ObjectID,
		ParentID:         trip.ParentID,
		Geometry:         LineFrom(trip.Positions()),
		StartTime:        trip.StartTime(),
		EndTime:          trip.EndTime(),
		Duration:         trip.Duration(),
		NumPoints:        trip.Len(),
		Length:           trip.Length(metric),
		Direction:        trip.Direction(metric),
		BBox:             trip.BBox(),
		SamplingInterval: trip.SamplingInterval(),
		Aggregates:       fields,
	}
	if opts.WKT {
		rec.WKT = trip.LineStringMWKT()
	}
	return rec, nil
}

// Fixed leading columns of a summary table.
var baseColumns = []string{"traj_id", "object_id", "start_time", "end_time", "geometry", "length", "direction"}

// Table is the tabular form of a set of summary records: the fixed columns
// followed by one column per (attribute, function) pair.
type Table struct {
	Columns []string  `json:"columns"`
	Rows    [][]Value `json:"rows"`
}

// NewTable lays records out under the columns implied by spec. With wkt set
// a wkt column follows the fixed ones.
func NewTable(records []SummaryRecord, spec AggSpec, wkt bool) *Table {
	aggCols := spec.Columns()
	columns := append([]string{}, baseColumns...)
	if wkt {
		columns = append(columns, "wkt")
	}
	t := &Table{
		Columns: append(columns, aggCols...),
		Rows:    make([][]Value, 0, len(records)),
	}
	for _, r := range records {
		row := []Value{
			StringValue(r.TripID),
			StringValue(r.ObjectID),
			TimeValue(r.StartTime),
			TimeValue(r.EndTime),
			StringValue(r.Geometry.WKT()),
			NumberValue(r.Length),
			NumberValue(r.Direction),
		}
		if wkt {
			row = append(row, StringValue(r.WKT))
		}
		for _, col := range aggCols {
			v, _ := r.Aggregate(col)
			row = append(row, v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func cell(v Value) string {
	if t, ok := v.Time(); ok {
		return t.UTC().Format(time.RFC3339)
	}
	if f, ok := v.Float(); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return v.String()
}

// WriteCSV writes the table with a header row. Nulls become empty cells.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = cell(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteText writes an aligned plain text rendering of the table.
func (t *Table) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, c := range t.Columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw)
	for _, row := range t.Rows {
		for i, v := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, cell(v))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
