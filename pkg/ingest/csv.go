package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

// columns holds header positions resolved once per CSV stream
type columns struct {
	object, time, x, y int
	attrs              map[int]string
}

func (d *Decoder) resolveColumns(header []string) (columns, error) {
	cols := columns{object: -1, time: -1, x: -1, y: -1, attrs: make(map[int]string)}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch name {
		case d.mapping.ObjectField:
			cols.object = i
		case d.mapping.TimeField:
			cols.time = i
		case d.mapping.XField:
			cols.x = i
		case d.mapping.YField:
			cols.y = i
		default:
			cols.attrs[i] = name
		}
	}
	required := []struct {
		idx  int
		name string
	}{
		{cols.object, d.mapping.ObjectField},
		{cols.time, d.mapping.TimeField},
		{cols.x, d.mapping.XField},
		{cols.y, d.mapping.YField},
	}
	for _, r := range required {
		if r.idx < 0 {
			return cols, &trajectory.InvalidInputError{Index: -1, Field: r.name, Reason: "column not found in header"}
		}
	}
	return cols, nil
}

// DecodeCSV reads a CSV stream with a header row. Row indices in errors are
// zero-based and exclude the header.
func (d *Decoder) DecodeCSV(r io.Reader) ([]trajectory.Observation, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols, err := d.resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var out []trajectory.Observation
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &trajectory.InvalidInputError{Index: row, Field: "row", Reason: err.Error()}
		}
		obs, err := d.decodeRow(row, cols, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, nil
}

func (d *Decoder) decodeRow(row int, cols columns, rec []string) (trajectory.Observation, error) {
	var obs trajectory.Observation

	id := strings.TrimSpace(rec[cols.object])
	if id == "" {
		return obs, &trajectory.InvalidInputError{Index: row, Field: d.mapping.ObjectField, Reason: "is missing"}
	}
	ts, err := d.parseTime(row, rec[cols.time])
	if err != nil {
		return obs, err
	}
	x, err := coordinate(row, d.mapping.XField, rec[cols.x])
	if err != nil {
		return obs, err
	}
	y, err := coordinate(row, d.mapping.YField, rec[cols.y])
	if err != nil {
		return obs, err
	}

	obs = trajectory.Observation{
		ObjectID:  id,
		Timestamp: ts,
		Position:  trajectory.Position{X: x, Y: y},
		Attrs:     make(map[string]trajectory.Value, len(cols.attrs)),
	}
	for i, name := range cols.attrs {
		obs.Attrs[name] = cellValue(rec[i])
	}
	return obs, nil
}

// cellValue parses a CSV cell: empty is null, numeric text is a number and
// anything else stays a string.
func cellValue(s string) trajectory.Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return trajectory.NullValue()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return trajectory.NumberValue(f)
	}
	return trajectory.StringValue(s)
}
