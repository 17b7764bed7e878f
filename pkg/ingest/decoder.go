package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

// AISTimeLayout is the day-first timestamp layout used by AIS exports.
const AISTimeLayout = "02/01/2006 15:04:05"

// FieldMapping names the source fields that carry the required parts of an
// observation. Every other field becomes an attribute.
type FieldMapping struct {
	ObjectField string `json:"object_field" yaml:"object_field"`
	TimeField   string `json:"time_field" yaml:"time_field"`
	TimeLayout  string `json:"time_layout,omitempty" yaml:"time_layout"`
	XField      string `json:"x_field" yaml:"x_field"`
	YField      string `json:"y_field" yaml:"y_field"`
}

// DefaultMapping reads object_id, timestamp (RFC 3339), x and y.
func DefaultMapping() FieldMapping {
	return FieldMapping{
		ObjectField: "object_id",
		TimeField:   "timestamp",
		TimeLayout:  time.RFC3339,
		XField:      "x",
		YField:      "y",
	}
}

// AISMapping matches the column names of Danish Maritime Authority AIS
// extracts.
func AISMapping() FieldMapping {
	return FieldMapping{
		ObjectField: "MMSI",
		TimeField:   "Timestamp",
		TimeLayout:  AISTimeLayout,
		XField:      "Lon",
		YField:      "Lat",
	}
}

// Decoder converts raw records into observations according to a mapping
// that is validated once at construction.
type Decoder struct {
	mapping  FieldMapping
	location *time.Location
	reserved map[string]bool
}

func NewDecoder(mapping FieldMapping) (*Decoder, error) {
	fields := map[string]string{
		"object_field": mapping.ObjectField,
		"time_field":   mapping.TimeField,
		"x_field":      mapping.XField,
		"y_field":      mapping.YField,
	}
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			return nil, &trajectory.InvalidConfigError{Field: name, Reason: "must not be empty"}
		}
	}
	if mapping.TimeLayout == "" {
		mapping.TimeLayout = time.RFC3339
	}
	return &Decoder{
		mapping:  mapping,
		location: time.UTC,
		reserved: map[string]bool{
			mapping.ObjectField: true,
			mapping.TimeField:   true,
			mapping.XField:      true,
			mapping.YField:      true,
		},
	}, nil
}

// WithLocation sets the zone used for layouts without an offset.
func (d *Decoder) WithLocation(loc *time.Location) *Decoder {
	cp := *d
	cp.location = loc
	return &cp
}

func (d *Decoder) Mapping() FieldMapping { return d.mapping }

// DecodeRecord converts one decoded JSON object. index is reported in
// errors.
func (d *Decoder) DecodeRecord(index int, record map[string]any) (trajectory.Observation, error) {
	var obs trajectory.Observation

	id, err := d.objectID(index, record[d.mapping.ObjectField])
	if err != nil {
		return obs, err
	}
	ts, err := d.timestamp(index, record[d.mapping.TimeField])
	if err != nil {
		return obs, err
	}
	x, err := coordinate(index, d.mapping.XField, record[d.mapping.XField])
	if err != nil {
		return obs, err
	}
	y, err := coordinate(index, d.mapping.YField, record[d.mapping.YField])
	if err != nil {
		return obs, err
	}

	obs = trajectory.Observation{
		ObjectID:  id,
		Timestamp: ts,
		Position:  trajectory.Position{X: x, Y: y},
	}
	for k, v := range record {
		if d.reserved[k] {
			continue
		}
		if obs.Attrs == nil {
			obs.Attrs = make(map[string]trajectory.Value)
		}
		obs.Attrs[k] = trajectory.ValueOf(v)
	}
	return obs, nil
}

// DecodeJSON decodes either a JSON array of objects or a single object.
func (d *Decoder) DecodeJSON(data []byte) ([]trajectory.Observation, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var record map[string]any
		if err := dec.Decode(&record); err != nil {
			return nil, &trajectory.InvalidInputError{Index: 0, Field: "body", Reason: err.Error()}
		}
		obs, err := d.DecodeRecord(0, record)
		if err != nil {
			return nil, err
		}
		return []trajectory.Observation{obs}, nil
	}

	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, &trajectory.InvalidInputError{Index: -1, Field: "body", Reason: err.Error()}
	}
	out := make([]trajectory.Observation, 0, len(records))
	for i, r := range records {
		obs, err := d.DecodeRecord(i, r)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, nil
}

// DecodeRawRecords decodes individually encoded JSON objects.
func (d *Decoder) DecodeRawRecords(raw [][]byte) ([]trajectory.Observation, error) {
	out := make([]trajectory.Observation, 0, len(raw))
	for i, r := range raw {
		dec := json.NewDecoder(bytes.NewReader(r))
		dec.UseNumber()
		var record map[string]any
		if err := dec.Decode(&record); err != nil {
			return nil, &trajectory.InvalidInputError{Index: i, Field: "record", Reason: err.Error()}
		}
		obs, err := d.DecodeRecord(i, record)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, nil
}

func (d *Decoder) objectID(index int, v any) (string, error) {
	var id string
	switch x := v.(type) {
	case string:
		id = strings.TrimSpace(x)
	case json.Number:
		id = x.String()
	case float64:
		id = strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
	default:
		id = fmt.Sprint(x)
	}
	if id == "" {
		return "", &trajectory.InvalidInputError{Index: index, Field: d.mapping.ObjectField, Reason: "is missing"}
	}
	return id, nil
}

func (d *Decoder) timestamp(index int, v any) (time.Time, error) {
	field := d.mapping.TimeField
	switch x := v.(type) {
	case string:
		return d.parseTime(index, x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return time.Time{}, &trajectory.InvalidInputError{Index: index, Field: field, Reason: "is not a unix time"}
		}
		return unixSeconds(f), nil
	case float64:
		return unixSeconds(x), nil
	case nil:
		return time.Time{}, &trajectory.InvalidInputError{Index: index, Field: field, Reason: "is missing"}
	}
	return time.Time{}, &trajectory.InvalidInputError{Index: index, Field: field, Reason: fmt.Sprintf("has unsupported type %T", v)}
}

func (d *Decoder) parseTime(index int, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &trajectory.InvalidInputError{Index: index, Field: d.mapping.TimeField, Reason: "is missing"}
	}
	t, err := time.ParseInLocation(d.mapping.TimeLayout, s, d.location)
	if err != nil {
		return time.Time{}, &trajectory.InvalidInputError{
			Index:  index,
			Field:  d.mapping.TimeField,
			Reason: fmt.Sprintf("does not match layout %q", d.mapping.TimeLayout),
		}
	}
	return t, nil
}

func unixSeconds(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func coordinate(index int, field string, v any) (float64, error) {
	var (
		f   float64
		err error
	)
	switch x := v.(type) {
	case json.Number:
		f, err = x.Float64()
	case float64:
		f = x
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(x), 64)
	case nil:
		return 0, &trajectory.InvalidInputError{Index: index, Field: field, Reason: "is missing"}
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &trajectory.InvalidInputError{Index: index, Field: field, Reason: "is not a finite number"}
	}
	return f, nil
}
