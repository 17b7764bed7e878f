package trajectory

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOf(t *testing.T) {
	assert.Equal(t, NumberValue(3), ValueOf(3))
	assert.Equal(t, NumberValue(1.5), ValueOf(json.Number("1.5")))
	assert.Equal(t, StringValue("Cargo"), ValueOf("Cargo"))
	assert.Equal(t, BoolValue(true), ValueOf(true))
	assert.True(t, ValueOf(nil).IsNull())
}

func TestValueEqualComparesInstants(t *testing.T) {
	utc := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("UTC+2", 2*60*60))
	assert.True(t, TimeValue(utc).Equal(TimeValue(local)))
	assert.False(t, NumberValue(1).Equal(StringValue("1")))
	assert.True(t, NumberValue(math.NaN()).Equal(NumberValue(math.NaN())))
}

func TestObservationJSONPreservesKinds(t *testing.T) {
	obs := Observation{
		ObjectID:  "219001559",
		Timestamp: baseTime,
		Position:  Position{X: 11.8, Y: 57.7},
		Attrs: map[string]Value{
			"SOG":      NumberValue(12.3),
			"ShipType": StringValue("Cargo"),
			"Moored":   BoolValue(false),
			"ETA":      TimeValue(baseTime.Add(time.Hour)),
			"Draught":  NullValue(),
		},
	}
	data, err := json.Marshal(obs)
	require.NoError(t, err)

	var back Observation
	require.NoError(t, json.Unmarshal(data, &back))
	for name, want := range obs.Attrs {
		assert.True(t, want.Equal(back.Attrs[name]), name)
		assert.Equal(t, want.Kind(), back.Attrs[name].Kind(), name)
	}

	_, err = json.Marshal(NumberValue(math.Inf(1)))
	assert.Error(t, err)
}
