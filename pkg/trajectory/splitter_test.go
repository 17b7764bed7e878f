package trajectory

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFortyMinuteGap(t *testing.T) {
	traj := trajectoryOf("X", 0, 10, 50, 60, 70)

	result, err := Split([]Trajectory{traj}, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, result.Trips, 2)

	first, second := result.Trips[0], result.Trips[1]
	assert.Equal(t, "X_0", first.ID)
	assert.Equal(t, "X_1", second.ID)
	assert.Equal(t, "X", first.ParentID)
	assert.Equal(t, "X", second.ObjectID)

	assert.Equal(t, []time.Time{baseTime, baseTime.Add(10 * time.Minute)}, timestamps(first))
	assert.Equal(t, []time.Time{
		baseTime.Add(50 * time.Minute),
		baseTime.Add(60 * time.Minute),
		baseTime.Add(70 * time.Minute),
	}, timestamps(second))
	assert.Zero(t, result.Discarded)
}

func TestSplitIsAPartition(t *testing.T) {
	traj := trajectoryOf("X", 0, 1, 2, 40, 41, 90, 91, 92)

	result, err := Split([]Trajectory{traj}, 10*time.Minute)
	require.NoError(t, err)

	var joined []Observation
	for _, trip := range result.Trips {
		joined = append(joined, trip.Observations...)
	}
	if diff := cmp.Diff(traj.Observations, joined); diff != "" {
		t.Errorf("trips do not partition the trajectory (-want +got):\n%s", diff)
	}
}

func TestSplitIsIdempotent(t *testing.T) {
	trajs := []Trajectory{
		trajectoryOf("X", 0, 1, 2, 40, 41),
		trajectoryOf("Y", 0, 5, 10),
	}
	threshold := 10 * time.Minute

	once, err := Split(trajs, threshold)
	require.NoError(t, err)
	twice, err := Split(once.Trips, threshold)
	require.NoError(t, err)

	if diff := cmp.Diff(once.Trips, twice.Trips); diff != "" {
		t.Errorf("re-splitting changed trips (-first +second):\n%s", diff)
	}
	assert.Zero(t, twice.Discarded)
}

func TestSplitDropsSinglePointTrips(t *testing.T) {
	traj := trajectoryOf("X", 0, 1, 60, 120, 121)

	result, err := Split([]Trajectory{traj}, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, result.Trips, 2)
	assert.Equal(t, "X_0", result.Trips[0].ID)
	assert.Equal(t, "X_2", result.Trips[1].ID, "segment numbering counts dropped segments")
	assert.Equal(t, 1, result.Discarded)
}

func TestSplitEdgeCases(t *testing.T) {
	t.Run("short trajectory yields no trips", func(t *testing.T) {
		result, err := Split([]Trajectory{trajectoryOf("X", 0)}, time.Minute)
		require.NoError(t, err)
		assert.Empty(t, result.Trips)
	})

	t.Run("zero threshold splits every gap", func(t *testing.T) {
		result, err := Split([]Trajectory{trajectoryOf("X", 0, 1, 2, 3)}, 0)
		require.NoError(t, err)
		assert.Empty(t, result.Trips)
		assert.Equal(t, 4, result.Discarded)
	})

	t.Run("negative threshold", func(t *testing.T) {
		_, err := Split([]Trajectory{trajectoryOf("X", 0, 1)}, -time.Second)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("gap equal to threshold does not split", func(t *testing.T) {
		result, err := Split([]Trajectory{trajectoryOf("X", 0, 30, 60)}, 30*time.Minute)
		require.NoError(t, err)
		require.Len(t, result.Trips, 1)
		assert.Equal(t, "X", result.Trips[0].ID)
	})
}

func TestSplitTripCountBound(t *testing.T) {
	var trajs []Trajectory
	total := 0
	for _, minutes := range [][]int{{0, 1, 2}, {0, 50, 100, 101}, {0, 1, 40, 41, 80, 81}} {
		traj := trajectoryOf("T", minutes...)
		total += traj.Len()
		trajs = append(trajs, traj)
	}
	result, err := Split(trajs, 30*time.Minute)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Trips), total/2)
}

func TestSplitTripsDoNotShareStorage(t *testing.T) {
	traj := trajectoryOf("X", 0, 1, 2)
	result, err := Split([]Trajectory{traj}, time.Hour)
	require.NoError(t, err)
	require.Len(t, result.Trips, 1)

	result.Trips[0].Observations[0].ObjectID = "changed"
	assert.Equal(t, "X", traj.Observations[0].ObjectID)
}

func TestGaps(t *testing.T) {
	gaps, err := Gaps(trajectoryOf("X", 0, 10, 50, 60), 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, 40*time.Minute, gaps[0].Duration)
	assert.Equal(t, baseTime.Add(10*time.Minute), gaps[0].After)
	assert.Equal(t, 2, gaps[0].Index)
}

func TestSplitKeepsTripIDsUnique(t *testing.T) {
	cut := trajectoryOf("X", 0, 10, 50, 60)
	raw := trajectoryOf("X_1", 0, 5)

	result, err := Split([]Trajectory{cut, raw}, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, result.Trips, 3)

	ids := []string{result.Trips[0].ID, result.Trips[1].ID, result.Trips[2].ID}
	assert.Equal(t, []string{"X_0", "X_1", "X_1#2"}, ids)
	assert.Equal(t, "X_1", result.Trips[2].ObjectID)
}

func TestUniqueTripIDsAvoidsExistingSuffixes(t *testing.T) {
	records := []SummaryRecord{{TripID: "A"}, {TripID: "A"}, {TripID: "A#2"}, {TripID: "A"}}
	assert.Equal(t, 2, UniqueTripIDs(records))
	assert.Equal(t, "A", records[0].TripID)
	assert.Equal(t, "A#3", records[1].TripID)
	assert.Equal(t, "A#2", records[2].TripID)
	assert.Equal(t, "A#4", records[3].TripID)
}

func timestamps(traj Trajectory) []time.Time {
	out := make([]time.Time, traj.Len())
	for i, o := range traj.Observations {
		out[i] = o.Timestamp
	}
	return out
}
