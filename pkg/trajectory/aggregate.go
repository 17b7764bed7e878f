package trajectory

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// AggKind enumerates the supported aggregation functions
type AggKind uint8

const (
	AggMin AggKind = iota + 1
	AggMax
	AggMean
	AggMode
	AggQuantile
	AggMedian
	AggSum
	AggCount
	AggStd
	AggFirst
	AggLast
)

var aggNames = map[string]AggKind{
	"min":    AggMin,
	"max":    AggMax,
	"mean":   AggMean,
	"mode":   AggMode,
	"median": AggMedian,
	"sum":    AggSum,
	"count":  AggCount,
	"std":    AggStd,
	"first":  AggFirst,
	"last":   AggLast,
}

// quantileName accepts q followed by plain decimal digits, e.g. q5, q05 or
// q99.9.
var quantileName = regexp.MustCompile(`^q([0-9]+(\.[0-9]+)?)$`)

// Aggregation is one aggregation function. P is only meaningful for
// AggQuantile and lies in the open interval (0, 100). Label keeps a quantile
// name whose spelling differs from the canonical one, such as q05.
type Aggregation struct {
	Kind  AggKind
	P     float64
	Label string
}

// Quantile returns the q<p> aggregation.
func Quantile(p float64) (Aggregation, error) {
	if math.IsNaN(p) || p <= 0 || p >= 100 {
		return Aggregation{}, &UnsupportedAggregationError{Name: "q" + strconv.FormatFloat(p, 'f', -1, 64)}
	}
	return Aggregation{Kind: AggQuantile, P: p}, nil
}

// Name is the function name used in column headers, e.g. "mean" or "q95".
func (a Aggregation) Name() string {
	if a.Kind == AggQuantile {
		if a.Label != "" {
			return a.Label
		}
		return "q" + strconv.FormatFloat(a.P, 'f', -1, 64)
	}
	for name, k := range aggNames {
		if k == a.Kind {
			return name
		}
	}
	return "unknown(" + strconv.Itoa(int(a.Kind)) + ")"
}

func (a Aggregation) String() string { return a.Name() }

// ParseAggregation parses a function name. attribute is only used to name
// the offending entry in the error.
func ParseAggregation(attribute, name string) (Aggregation, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if k, ok := aggNames[n]; ok {
		return Aggregation{Kind: k}, nil
	}
	if m := quantileName.FindStringSubmatch(n); m != nil {
		p, err := strconv.ParseFloat(m[1], 64)
		if err == nil && p > 0 && p < 100 {
			agg := Aggregation{Kind: AggQuantile, P: p}
			if agg.Name() != n {
				agg.Label = n
			}
			return agg, nil
		}
	}
	return Aggregation{}, &UnsupportedAggregationError{Attribute: attribute, Name: name}
}

func (a Aggregation) MarshalText() ([]byte, error) {
	if a.Kind == 0 {
		return nil, fmt.Errorf("cannot encode zero aggregation")
	}
	return []byte(a.Name()), nil
}

func (a *Aggregation) UnmarshalText(text []byte) error {
	parsed, err := ParseAggregation("", string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// AttributeAggregations lists the functions to compute over one attribute
type AttributeAggregations struct {
	Attribute string        `json:"attribute"`
	Functions []Aggregation `json:"functions"`
}

// AggSpec is an ordered aggregation spec. Column order follows the slice.
type AggSpec []AttributeAggregations

// ParseAggSpec parses an attribute -> function names mapping. Attributes are
// sorted so the resulting column order is deterministic. The first unknown
// function name aborts parsing.
func ParseAggSpec(raw map[string][]string) (AggSpec, error) {
	attrs := make([]string, 0, len(raw))
	for attr := range raw {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	spec := make(AggSpec, 0, len(attrs))
	for _, attr := range attrs {
		if strings.TrimSpace(attr) == "" {
			return nil, &InvalidConfigError{Field: "agg_spec", Reason: "attribute name must not be empty"}
		}
		names := raw[attr]
		if len(names) == 0 {
			return nil, &InvalidConfigError{Field: "agg_spec." + attr, Reason: "no aggregation functions listed"}
		}
		entry := AttributeAggregations{Attribute: attr, Functions: make([]Aggregation, 0, len(names))}
		for _, name := range names {
			agg, err := ParseAggregation(attr, name)
			if err != nil {
				return nil, err
			}
			entry.Functions = append(entry.Functions, agg)
		}
		spec = append(spec, entry)
	}
	return spec, nil
}

// Validate checks a spec built in code rather than parsed.
func (s AggSpec) Validate() error {
	for _, entry := range s {
		if strings.TrimSpace(entry.Attribute) == "" {
			return &InvalidConfigError{Field: "agg_spec", Reason: "attribute name must not be empty"}
		}
		for _, f := range entry.Functions {
			switch {
			case f.Kind == AggQuantile:
				if _, err := Quantile(f.P); err != nil {
					return &UnsupportedAggregationError{Attribute: entry.Attribute, Name: f.Name()}
				}
			case f.Kind < AggMin || f.Kind > AggLast:
				return &UnsupportedAggregationError{Attribute: entry.Attribute, Name: f.Name()}
			}
		}
	}
	return nil
}

// Columns returns the output column names, <attribute>_<function>.
func (s AggSpec) Columns() []string {
	var cols []string
	for _, entry := range s {
		for _, f := range entry.Functions {
			cols = append(cols, columnName(entry.Attribute, f))
		}
	}
	return cols
}

func columnName(attr string, a Aggregation) string {
	return attr + "_" + a.Name()
}

// Aggregate computes every column of spec over trip. Any failure aborts the
// whole call and no fields are returned.
func Aggregate(trip Trajectory, spec AggSpec) ([]Field, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	var fields []Field
	for _, entry := range spec {
		values := collect(trip.Observations, entry.Attribute)
		for _, f := range entry.Functions {
			v, err := apply(f, entry.Attribute, values)
			if err != nil {
				return nil, err
			}
			fields = append(fields, Field{Name: columnName(entry.Attribute, f), Value: v})
		}
	}
	return fields, nil
}

// collect gathers the non-null values of attr in observation order.
func collect(obs []Observation, attr string) []Value {
	var values []Value
	for _, o := range obs {
		if v := o.Attrs[attr]; !v.IsNull() {
			values = append(values, v)
		}
	}
	return values
}

func apply(f Aggregation, attr string, values []Value) (Value, error) {
	if len(values) == 0 {
		return NullValue(), nil
	}
	switch f.Kind {
	case AggCount:
		return NumberValue(float64(len(values))), nil
	case AggFirst:
		return values[0], nil
	case AggLast:
		return values[len(values)-1], nil
	case AggMode:
		return mode(values), nil
	case AggMin, AggMax:
		return extreme(f, attr, values)
	}

	nums, err := numbers(f, attr, values)
	if err != nil {
		return NullValue(), err
	}
	switch f.Kind {
	case AggMean:
		return NumberValue(stat.Mean(nums, nil)), nil
	case AggSum:
		return NumberValue(floats.Sum(nums)), nil
	case AggStd:
		if len(nums) < 2 {
			return NullValue(), nil
		}
		return NumberValue(stat.StdDev(nums, nil)), nil
	case AggMedian:
		return NumberValue(percentile(nums, 50)), nil
	case AggQuantile:
		return NumberValue(percentile(nums, f.P)), nil
	}
	return NullValue(), &UnsupportedAggregationError{Attribute: attr, Name: f.Name()}
}

func numbers(f Aggregation, attr string, values []Value) ([]float64, error) {
	nums := make([]float64, len(values))
	for i, v := range values {
		n, ok := v.Float()
		if !ok {
			return nil, &InvalidConfigError{
				Field:  attr,
				Reason: fmt.Sprintf("%s requires numeric values, found %s", f.Name(), v.Kind()),
			}
		}
		nums[i] = n
	}
	return nums, nil
}

// extreme handles min and max, which accept any single orderable kind.
func extreme(f Aggregation, attr string, values []Value) (Value, error) {
	kind := values[0].Kind()
	for _, v := range values {
		if !v.orderable() {
			return NullValue(), &InvalidConfigError{
				Field:  attr,
				Reason: fmt.Sprintf("%s is not defined for %s values", f.Name(), v.Kind()),
			}
		}
		if v.Kind() != kind {
			return NullValue(), &InvalidConfigError{
				Field:  attr,
				Reason: fmt.Sprintf("%s over mixed %s and %s values", f.Name(), kind, v.Kind()),
			}
		}
	}

	if kind == KindNumber {
		nums, _ := numbers(f, attr, values)
		if f.Kind == AggMin {
			return NumberValue(floats.Min(nums)), nil
		}
		return NumberValue(floats.Max(nums)), nil
	}

	best := values[0]
	for _, v := range values[1:] {
		c := compareValues(v, best)
		if (f.Kind == AggMin && c < 0) || (f.Kind == AggMax && c > 0) {
			best = v
		}
	}
	return best, nil
}

// mode returns the most frequent value; ties go to the value seen first.
func mode(values []Value) Value {
	counts := make(map[valueKey]int, len(values))
	order := make([]Value, 0, len(values))
	for _, v := range values {
		k := v.key()
		if counts[k] == 0 {
			order = append(order, v)
		}
		counts[k]++
	}
	best := order[0]
	bestCount := counts[best.key()]
	for _, v := range order[1:] {
		if c := counts[v.key()]; c > bestCount {
			best, bestCount = v, c
		}
	}
	return best
}

// percentile interpolates linearly at rank p/100*(n-1) of the sorted values.
func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := rank - float64(lower)
	return sorted[lower] + weight*(sorted[upper]-sorted[lower])
}
