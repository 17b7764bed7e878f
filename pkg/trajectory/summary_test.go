package trajectory

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeOneRecordPerTripInOrder(t *testing.T) {
	trips := []Trajectory{
		trajectoryOf("b", 0, 1, 2),
		trajectoryOf("a", 10, 11),
	}
	spec := mustSpec(t, map[string][]string{"SOG": {"max"}})

	records, err := Summarize(trips, spec, SummaryOptions{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "b", records[0].TripID)
	assert.Equal(t, "a", records[1].TripID)

	first := records[0]
	assert.Equal(t, baseTime, first.StartTime)
	assert.Equal(t, baseTime.Add(2*time.Minute), first.EndTime)
	assert.Equal(t, 2*time.Minute, first.Duration)
	assert.Equal(t, 3, first.NumPoints)
	assert.Equal(t, LineStringGeometry, first.Geometry.Type)
	assert.Equal(t, []Position{{0, 0}, {1, 0}, {2, 0}}, first.Geometry.Coordinates)
	assert.InDelta(t, 2.0, first.Length, 1e-9)
	assert.InDelta(t, 90.0, first.Direction, 1e-9)
	assert.Equal(t, BBox{MinX: 0, MinY: 0, MaxX: 2, MaxY: 0}, first.BBox)
	assert.Equal(t, time.Minute, first.SamplingInterval)
	assert.Empty(t, first.WKT)

	v, ok := first.Aggregate("SOG_max")
	require.True(t, ok)
	assert.Equal(t, NumberValue(2), v)
}

func TestSummarizeStationaryTripDegradesToPoint(t *testing.T) {
	trip := trajectoryOf("still", 0, 1, 2)
	for i := range trip.Observations {
		trip.Observations[i].Position = Position{X: 5, Y: 5}
	}

	records, err := Summarize([]Trajectory{trip}, nil, SummaryOptions{})
	require.NoError(t, err)
	assert.Equal(t, PointGeometry, records[0].Geometry.Type)
	assert.Equal(t, "POINT (5 5)", records[0].Geometry.WKT())
	assert.Zero(t, records[0].Length)
}

func TestSummarizeFailsWithoutPartialRecords(t *testing.T) {
	good := trajectoryOf("good", 0, 1)
	bad := trajectoryOf("bad", 0, 1)
	bad.Observations = withAttr(bad.Observations, "SOG", StringValue("fast"), StringValue("slow"))

	records, err := Summarize([]Trajectory{good, bad}, mustSpec(t, map[string][]string{"SOG": {"mean"}}), SummaryOptions{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, records)
}

func TestSummarizeRejectsEmptyTrip(t *testing.T) {
	_, err := Summarize([]Trajectory{{ID: "empty"}}, nil, SummaryOptions{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTableColumnsAndCSV(t *testing.T) {
	trips := []Trajectory{trajectoryOf("X_0", 0, 1)}
	spec := mustSpec(t, map[string][]string{"SOG": {"mean", "q50"}, "Draught": {"max"}})

	records, err := Summarize(trips, spec, SummaryOptions{})
	require.NoError(t, err)

	table := NewTable(records, spec, false)
	assert.Equal(t, []string{
		"traj_id", "object_id", "start_time", "end_time", "geometry", "length", "direction",
		"Draught_max", "SOG_mean", "SOG_q50",
	}, table.Columns)
	require.Len(t, table.Rows, 1)
	assert.True(t, table.Rows[0][7].IsNull())

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `X_0,X,2017-07-01T00:00:00Z,2017-07-01T00:01:00Z,"LINESTRING (0 0, 1 0)",1,90,,0.5,0.5`, lines[1])
}

func TestTableWriteText(t *testing.T) {
	records, err := Summarize([]Trajectory{trajectoryOf("X", 0, 1)}, nil, SummaryOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewTable(records, nil, false).WriteText(&buf))
	assert.Contains(t, buf.String(), "traj_id")
	assert.Contains(t, buf.String(), "LINESTRING (0 0, 1 0)")
}

func TestSummarizeWithWKT(t *testing.T) {
	trips := []Trajectory{trajectoryOf("X", 0, 1)}
	spec := mustSpec(t, map[string][]string{"SOG": {"max"}})

	records, err := Summarize(trips, spec, SummaryOptions{WKT: true})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "LINESTRING M (0 0 1498867200, 1 0 1498867260)", records[0].WKT)

	table := NewTable(records, spec, true)
	assert.Equal(t, []string{
		"traj_id", "object_id", "start_time", "end_time", "geometry", "length", "direction",
		"wkt", "SOG_max",
	}, table.Columns)

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `X,X,2017-07-01T00:00:00Z,2017-07-01T00:01:00Z,"LINESTRING (0 0, 1 0)",1,90,"LINESTRING M (0 0 1498867200, 1 0 1498867260)",1`, lines[1])
}
