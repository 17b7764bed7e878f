package trajectory

import (
	"sort"
	"time"
)

// Position is a planar or geographic coordinate. For geographic data X is
// longitude and Y is latitude, in degrees.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Observation is a single timestamped position fix for a moving object
type Observation struct {
	ObjectID  string           `json:"object_id"`
	Timestamp time.Time        `json:"timestamp"`
	Position  Position         `json:"position"`
	Attrs     map[string]Value `json:"attrs,omitempty"`
	Seq       uint64           `json:"seq"`
}

// Attr returns the named attribute, or a null Value when it is absent.
func (o Observation) Attr(name string) Value {
	return o.Attrs[name]
}

// Trajectory is an ordered observation sequence for one object with strictly
// increasing timestamps. Trips produced by the splitter are Trajectories
// with ParentID set.
type Trajectory struct {
	ID           string        `json:"id"`
	ObjectID     string        `json:"object_id"`
	ParentID     string        `json:"parent_id,omitempty"`
	Observations []Observation `json:"observations"`
}

func (t Trajectory) Len() int { return len(t.Observations) }

func (t Trajectory) StartTime() time.Time {
	if len(t.Observations) == 0 {
		return time.Time{}
	}
	return t.Observations[0].Timestamp
}

func (t Trajectory) EndTime() time.Time {
	if len(t.Observations) == 0 {
		return time.Time{}
	}
	return t.Observations[len(t.Observations)-1].Timestamp
}

func (t Trajectory) Duration() time.Duration {
	return t.EndTime().Sub(t.StartTime())
}

// IsValid reports whether the trajectory has at least two observations and
// a start strictly before its end.
func (t Trajectory) IsValid() bool {
	return len(t.Observations) >= 2 && t.StartTime().Before(t.EndTime())
}

func (t Trajectory) Positions() []Position {
	out := make([]Position, len(t.Observations))
	for i, o := range t.Observations {
		out[i] = o.Position
	}
	return out
}

// Length is the sum of the distances between consecutive positions.
func (t Trajectory) Length(m Metric) float64 {
	var total float64
	for i := 1; i < len(t.Observations); i++ {
		total += m.Distance(t.Observations[i-1].Position, t.Observations[i].Position)
	}
	return total
}

// Direction is the bearing in degrees from the first to the last position.
func (t Trajectory) Direction(m Metric) float64 {
	if len(t.Observations) < 2 {
		return 0
	}
	return m.Bearing(t.Observations[0].Position, t.Observations[len(t.Observations)-1].Position)
}

// BBox returns the bounding box of all positions.
func (t Trajectory) BBox() BBox {
	return boundsOf(t.Positions())
}

// SamplingInterval is the median time between consecutive observations.
func (t Trajectory) SamplingInterval() time.Duration {
	if len(t.Observations) < 2 {
		return 0
	}
	deltas := make([]time.Duration, 0, len(t.Observations)-1)
	for i := 1; i < len(t.Observations); i++ {
		deltas = append(deltas, t.Observations[i].Timestamp.Sub(t.Observations[i-1].Timestamp))
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	mid := len(deltas) / 2
	if len(deltas)%2 == 1 {
		return deltas[mid]
	}
	return (deltas[mid-1] + deltas[mid]) / 2
}

// LineStringMWKT renders the trajectory as a measured line string whose M
// coordinate is the observation time in unix seconds.
func (t Trajectory) LineStringMWKT() string {
	return lineStringMWKT(t.Observations)
}

// Field is one named aggregate column in a summary record.
type Field struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// SummaryRecord is the per-trip output row. WKT is only set when the run
// asked for measured line strings.
type SummaryRecord struct {
	TripID           string        `json:"traj_id"`
	ObjectID         string        `json:"object_id"`
	ParentID         string        `json:"parent_id,omitempty"`
	Geometry         Geometry      `json:"geometry"`
	WKT              string        `json:"wkt,omitempty"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	Duration         time.Duration `json:"duration"`
	NumPoints        int           `json:"num_points"`
	Length           float64       `json:"length"`
	Direction        float64       `json:"direction"`
	BBox             BBox          `json:"bbox"`
	SamplingInterval time.Duration `json:"sampling_interval"`
	Aggregates       []Field       `json:"aggregates,omitempty"`
}

// Aggregate looks up an aggregate column by name.
func (r SummaryRecord) Aggregate(name string) (Value, bool) {
	for _, f := range r.Aggregates {
		if f.Name == name {
			return f.Value, true
		}
	}
	return NullValue(), false
}

// TimeRange is an inclusive time interval
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies within the range. A nil range contains
// every instant.
func (r *TimeRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	return !t.Before(r.Start) && !t.After(r.End)
}
