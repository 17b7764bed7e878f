package trajectory

import "time"

var baseTime = time.Date(2017, 7, 1, 0, 0, 0, 0, time.UTC)

// fixes builds observations for one object at the given minute offsets,
// moving one unit along X per fix.
func fixes(id string, minutes ...int) []Observation {
	obs := make([]Observation, len(minutes))
	for i, m := range minutes {
		obs[i] = Observation{
			ObjectID:  id,
			Timestamp: baseTime.Add(time.Duration(m) * time.Minute),
			Position:  Position{X: float64(i), Y: 0},
			Attrs: map[string]Value{
				"SOG": NumberValue(float64(i)),
			},
		}
	}
	return obs
}

func trajectoryOf(id string, minutes ...int) Trajectory {
	return Trajectory{ID: id, ObjectID: id, Observations: fixes(id, minutes...)}
}

func withAttr(obs []Observation, name string, values ...Value) []Observation {
	for i := range obs {
		attrs := map[string]Value{}
		for k, v := range obs[i].Attrs {
			attrs[k] = v
		}
		if i < len(values) {
			attrs[name] = values[i]
		}
		obs[i].Attrs = attrs
	}
	return obs
}
