package trajectory

import (
	"slices"
	"strconv"
	"time"
)

// SplitResult holds the trips in input order and the number of segments
// dropped for having fewer than two observations.
type SplitResult struct {
	Trips     []Trajectory `json:"trips"`
	Discarded int          `json:"discarded"`
}

// Gap is a detected observation gap between two consecutive fixes. Index is
// the position of the fix that follows the gap.
type Gap struct {
	Index    int           `json:"index"`
	After    time.Time     `json:"after"`
	Before   time.Time     `json:"before"`
	Duration time.Duration `json:"duration"`
}

func validateThreshold(threshold time.Duration) error {
	if threshold < 0 {
		return &InvalidConfigError{Field: "gap_threshold", Reason: "must not be negative"}
	}
	return nil
}

// Split cuts each trajectory wherever consecutive observations are more
// than threshold apart.
func Split(trajectories []Trajectory, threshold time.Duration) (SplitResult, error) {
	if err := validateThreshold(threshold); err != nil {
		return SplitResult{}, err
	}
	var result SplitResult
	for _, traj := range trajectories {
		trips, discarded := splitOne(traj, threshold)
		result.Trips = append(result.Trips, trips...)
		result.Discarded += discarded
	}
	ids := make([]string, len(result.Trips))
	for i, trip := range result.Trips {
		ids[i] = trip.ID
	}
	uniqueIDs(ids)
	for i := range result.Trips {
		result.Trips[i].ID = ids[i]
	}
	return result, nil
}

// SplitTrajectory splits a single trajectory. See Split.
func SplitTrajectory(traj Trajectory, threshold time.Duration) ([]Trajectory, int, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, 0, err
	}
	trips, discarded := splitOne(traj, threshold)
	return trips, discarded, nil
}

// splitOne returns the trips of traj and how many segments were dropped.
// An uncut trajectory keeps its id so splitting is idempotent; cut segments
// are named <id>_<n> with n counted before short segments are dropped.
func splitOne(traj Trajectory, threshold time.Duration) ([]Trajectory, int) {
	obs := traj.Observations
	if len(obs) < 2 {
		if len(obs) == 1 {
			return nil, 1
		}
		return nil, 0
	}

	parent := traj.ParentID
	if parent == "" {
		parent = traj.ID
	}

	gaps, _ := Gaps(traj, threshold)
	bounds := make([][2]int, 0, len(gaps)+1)
	start := 0
	for _, g := range gaps {
		bounds = append(bounds, [2]int{start, g.Index})
		start = g.Index
	}
	bounds = append(bounds, [2]int{start, len(obs)})

	if len(bounds) == 1 {
		return []Trajectory{{
			ID:           traj.ID,
			ObjectID:     traj.ObjectID,
			ParentID:     parent,
			Observations: slices.Clone(obs),
		}}, 0
	}

	var (
		trips     []Trajectory
		discarded int
	)
	for n, b := range bounds {
		trip := Trajectory{
			ID:           traj.ID + "_" + strconv.Itoa(n),
			ObjectID:     traj.ObjectID,
			ParentID:     traj.ID,
			Observations: obs[b[0]:b[1]],
		}
		if !trip.IsValid() {
			discarded++
			continue
		}
		trip.Observations = slices.Clone(trip.Observations)
		trips = append(trips, trip)
	}
	return trips, discarded
}

// Gaps lists the gaps in traj that exceed threshold.
func Gaps(traj Trajectory, threshold time.Duration) ([]Gap, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	var gaps []Gap
	obs := traj.Observations
	for i := 0; i < len(obs)-1; i++ {
		if d := obs[i+1].Timestamp.Sub(obs[i].Timestamp); d > threshold {
			gaps = append(gaps, Gap{Index: i + 1, After: obs[i].Timestamp, Before: obs[i+1].Timestamp, Duration: d})
		}
	}
	return gaps, nil
}

// uniqueIDs rewrites ids in place so no two entries are equal. The first
// occurrence keeps its id and later ones get a #<k> suffix that is not
// already in use. It returns how many ids were rewritten.
func uniqueIDs(ids []string) int {
	taken := make(map[string]bool, len(ids))
	for _, id := range ids {
		taken[id] = true
	}
	seen := make(map[string]bool, len(ids))
	renamed := 0
	for i, id := range ids {
		if !seen[id] {
			seen[id] = true
			continue
		}
		k := 2
		candidate := id + "#" + strconv.Itoa(k)
		for taken[candidate] {
			k++
			candidate = id + "#" + strconv.Itoa(k)
		}
		taken[candidate] = true
		seen[candidate] = true
		ids[i] = candidate
		renamed++
	}
	return renamed
}

// UniqueTripIDs makes the trip ids of records distinct, in place, keeping
// the first occurrence of each id. A cut trip named X_1 can otherwise clash
// with an object whose own id is X_1.
func UniqueTripIDs(records []SummaryRecord) int {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.TripID
	}
	renamed := uniqueIDs(ids)
	for i := range records {
		records[i].TripID = ids[i]
	}
	return renamed
}
