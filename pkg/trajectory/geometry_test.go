package trajectory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineDistanceAndBearing(t *testing.T) {
	origin := Position{X: 0, Y: 0}
	north := Position{X: 0, Y: 1}
	east := Position{X: 1, Y: 0}

	assert.InDelta(t, 111195.08, Haversine.Distance(origin, north), 1.0)
	assert.InDelta(t, 0.0, Haversine.Bearing(origin, north), 1e-9)
	assert.InDelta(t, 90.0, Haversine.Bearing(origin, east), 1e-9)
	assert.InDelta(t, 180.0, Haversine.Bearing(north, origin), 1e-9)
}

func TestEuclideanBearing(t *testing.T) {
	o := Position{}
	assert.InDelta(t, 0.0, Euclidean.Bearing(o, Position{X: 0, Y: 1}), 1e-9)
	assert.InDelta(t, 90.0, Euclidean.Bearing(o, Position{X: 1, Y: 0}), 1e-9)
	assert.InDelta(t, 180.0, Euclidean.Bearing(o, Position{X: 0, Y: -1}), 1e-9)
	assert.InDelta(t, 270.0, Euclidean.Bearing(o, Position{X: -1, Y: 0}), 1e-9)
	assert.InDelta(t, 5.0, Euclidean.Distance(o, Position{X: 3, Y: 4}), 1e-9)
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, Euclidean, m)

	m, err = ParseMetric("Haversine")
	require.NoError(t, err)
	assert.Equal(t, Haversine, m)

	_, err = ParseMetric("manhattan")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLineFromCollapsesRepeats(t *testing.T) {
	g := LineFrom([]Position{{0, 0}, {0, 0}, {1, 1}, {1, 1}, {0, 0}})
	assert.Equal(t, LineStringGeometry, g.Type)
	assert.Equal(t, "LINESTRING (0 0, 1 1, 0 0)", g.WKT())

	p := LineFrom([]Position{{2.5, -1}})
	assert.Equal(t, "POINT (2.5 -1)", p.WKT())

	assert.Equal(t, "LINESTRING EMPTY", LineFrom(nil).WKT())
}

func TestLineStringMWKT(t *testing.T) {
	traj := trajectoryOf("X", 0, 1)
	assert.Equal(t, "LINESTRING M (0 0 1498867200, 1 0 1498867260)", traj.LineStringMWKT())
}

func TestTrajectoryAccessors(t *testing.T) {
	traj := trajectoryOf("X", 0, 1, 3, 4)
	assert.True(t, traj.IsValid())
	assert.Equal(t, BBox{MinX: 0, MinY: 0, MaxX: 3, MaxY: 0}, traj.BBox())
	assert.Equal(t, int64(60), int64(traj.SamplingInterval().Seconds()))

	assert.False(t, trajectoryOf("Y", 0).IsValid())
}
