package trajectory

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tripWith(name string, values ...Value) Trajectory {
	minutes := make([]int, len(values))
	for i := range minutes {
		minutes[i] = i
	}
	return Trajectory{ID: "trip", ObjectID: "X", Observations: withAttr(fixes("X", minutes...), name, values...)}
}

func numbersOf(fs ...float64) []Value {
	out := make([]Value, len(fs))
	for i, f := range fs {
		out[i] = NumberValue(f)
	}
	return out
}

func mustSpec(t *testing.T, raw map[string][]string) AggSpec {
	t.Helper()
	spec, err := ParseAggSpec(raw)
	require.NoError(t, err)
	return spec
}

func TestQuantileInterpolation(t *testing.T) {
	tests := []struct {
		values   []float64
		name     string
		expected float64
	}{
		{[]float64{1, 2, 3, 4}, "q50", 2.5},
		{[]float64{1, 2, 3}, "q50", 2},
		{[]float64{4, 1, 3, 2}, "q25", 1.75},
		{[]float64{10}, "q95", 10},
		{[]float64{1, 2, 3, 4, 5}, "q2.5", 1.1},
	}

	for _, tt := range tests {
		trip := tripWith("v", numbersOf(tt.values...)...)
		fields, err := Aggregate(trip, mustSpec(t, map[string][]string{"v": {tt.name}}))
		require.NoError(t, err)
		require.Len(t, fields, 1)
		got, ok := fields[0].Value.Float()
		require.True(t, ok)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("%s over %v: expected %v, got %v", tt.name, tt.values, tt.expected, got)
		}
	}
}

func TestModeTieBreaksOnFirstSeen(t *testing.T) {
	spec := mustSpec(t, map[string][]string{"ship": {"mode"}})

	fields, err := Aggregate(tripWith("ship", StringValue("A"), StringValue("A"), StringValue("B")), spec)
	require.NoError(t, err)
	assert.Equal(t, StringValue("A"), fields[0].Value)

	fields, err = Aggregate(tripWith("ship", StringValue("A"), StringValue("B")), spec)
	require.NoError(t, err)
	assert.Equal(t, StringValue("A"), fields[0].Value)

	fields, err = Aggregate(tripWith("ship", StringValue("B"), StringValue("A"), StringValue("A"), StringValue("B")), spec)
	require.NoError(t, err)
	assert.Equal(t, StringValue("B"), fields[0].Value)
}

func TestAggregateColumnsAndOrder(t *testing.T) {
	trip := tripWith("SOG", numbersOf(3, 1, 2)...)
	trip.Observations = withAttr(trip.Observations, "ShipType", StringValue("Cargo"), StringValue("Tanker"), StringValue("Cargo"))

	spec := mustSpec(t, map[string][]string{
		"SOG":      {"min", "max", "mean", "q95"},
		"ShipType": {"mode"},
	})
	fields, err := Aggregate(trip, spec)
	require.NoError(t, err)

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"SOG_min", "SOG_max", "SOG_mean", "SOG_q95", "ShipType_mode"}, names)
	assert.Equal(t, NumberValue(1), fields[0].Value)
	assert.Equal(t, NumberValue(3), fields[1].Value)
	assert.Equal(t, NumberValue(2), fields[2].Value)
	assert.Equal(t, StringValue("Cargo"), fields[4].Value)
}

func TestAggregateSupplementaryFunctions(t *testing.T) {
	trip := tripWith("v", numbersOf(2, 4, 4, 4, 5, 5, 7, 9)...)
	spec := mustSpec(t, map[string][]string{"v": {"sum", "count", "median", "first", "last", "std"}})

	fields, err := Aggregate(trip, spec)
	require.NoError(t, err)
	assert.Equal(t, NumberValue(40), fields[0].Value)
	assert.Equal(t, NumberValue(8), fields[1].Value)
	assert.Equal(t, NumberValue(4.5), fields[2].Value)
	assert.Equal(t, NumberValue(2), fields[3].Value)
	assert.Equal(t, NumberValue(9), fields[4].Value)
	std, _ := fields[5].Value.Float()
	assert.InDelta(t, 2.138089935, std, 1e-6)
}

func TestAggregateMissingAttributeIsNull(t *testing.T) {
	trip := tripWith("SOG", numbersOf(1, 2)...)
	fields, err := Aggregate(trip, mustSpec(t, map[string][]string{"Draught": {"mean", "mode"}}))
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.True(t, fields[0].Value.IsNull())
	assert.True(t, fields[1].Value.IsNull())
}

func TestAggregateSkipsNulls(t *testing.T) {
	trip := tripWith("v", NumberValue(1), NullValue(), NumberValue(3))
	fields, err := Aggregate(trip, mustSpec(t, map[string][]string{"v": {"mean", "count"}}))
	require.NoError(t, err)
	assert.Equal(t, NumberValue(2), fields[0].Value)
	assert.Equal(t, NumberValue(2), fields[1].Value)
}

func TestMinMaxOrderableKinds(t *testing.T) {
	spec := mustSpec(t, map[string][]string{"v": {"min", "max"}})

	fields, err := Aggregate(tripWith("v", StringValue("b"), StringValue("a"), StringValue("c")), spec)
	require.NoError(t, err)
	assert.Equal(t, StringValue("a"), fields[0].Value)
	assert.Equal(t, StringValue("c"), fields[1].Value)

	t0 := baseTime
	fields, err = Aggregate(tripWith("v", TimeValue(t0.Add(time.Hour)), TimeValue(t0)), spec)
	require.NoError(t, err)
	assert.Equal(t, TimeValue(t0), fields[0].Value)

	_, err = Aggregate(tripWith("v", BoolValue(true), BoolValue(false)), spec)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Aggregate(tripWith("v", NumberValue(1), StringValue("a")), spec)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNumericAggregationRejectsStrings(t *testing.T) {
	trip := tripWith("v", StringValue("1"), StringValue("2"))
	fields, err := Aggregate(trip, mustSpec(t, map[string][]string{"v": {"mode", "mean"}}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Nil(t, fields, "no partial results on failure")
}

func TestParseAggregation(t *testing.T) {
	valid := map[string]Aggregation{
		"min":   {Kind: AggMin},
		" MAX ": {Kind: AggMax},
		"mean":  {Kind: AggMean},
		"mode":  {Kind: AggMode},
		"q5":    {Kind: AggQuantile, P: 5},
		"q99.9": {Kind: AggQuantile, P: 99.9},
		"q05":   {Kind: AggQuantile, P: 5, Label: "q05"},
		"q50.0": {Kind: AggQuantile, P: 50, Label: "q50.0"},
	}
	for name, want := range valid {
		got, err := ParseAggregation("attr", name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	for _, name := range []string{
		"p99x", "q", "q0", "q100", "q-5", "qabc", "avg", "",
		"q1e1", "q0x1p4", "q+50", "q5.", "q.5", "qinf", "qnan", "q 5",
	} {
		_, err := ParseAggregation("attr", name)
		var unsupported *UnsupportedAggregationError
		require.ErrorAs(t, err, &unsupported, name)
		assert.Equal(t, "attr", unsupported.Attribute)
		assert.Equal(t, name, unsupported.Name)
	}
}

func TestQuantileColumnKeepsWrittenName(t *testing.T) {
	spec, err := ParseAggSpec(map[string][]string{"SOG": {"q05", "q95"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"SOG_q05", "SOG_q95"}, spec.Columns())

	fields, err := Aggregate(tripWith("SOG", numbersOf(1, 2, 3)...), spec)
	require.NoError(t, err)
	assert.Equal(t, "SOG_q05", fields[0].Name)
}

func TestParseAggSpecFailsFast(t *testing.T) {
	_, err := ParseAggSpec(map[string][]string{
		"SOG":      {"mean"},
		"ShipType": {"mode", "p99x"},
	})
	assert.ErrorIs(t, err, ErrUnsupportedAggregation)
	assert.Contains(t, err.Error(), "p99x")

	_, err = ParseAggSpec(map[string][]string{"SOG": {}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAggSpecValidateRejectsHandBuiltQuantile(t *testing.T) {
	spec := AggSpec{{Attribute: "v", Functions: []Aggregation{{Kind: AggQuantile, P: 150}}}}
	_, err := Aggregate(tripWith("v", numbersOf(1, 2)...), spec)
	assert.ErrorIs(t, err, ErrUnsupportedAggregation)
}

func TestAggregationTextRoundTrip(t *testing.T) {
	q, err := Quantile(95)
	require.NoError(t, err)
	text, err := q.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "q95", string(text))

	var back Aggregation
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, q, back)
}

func TestAggregateDoesNotMutateObservations(t *testing.T) {
	trip := tripWith("v", numbersOf(3, 1, 2)...)
	_, err := Aggregate(trip, mustSpec(t, map[string][]string{"v": {"q50", "min"}}))
	require.NoError(t, err)
	assert.Equal(t, NumberValue(3), trip.Observations[0].Attr("v"))
	assert.Equal(t, NumberValue(1), trip.Observations[1].Attr("v"))
}
