package trajectory

import (
	"sort"
	"strings"
)

// GroupKey extracts the grouping key from an observation. It is resolved
// once from a field name so that building does no per-observation lookups
// by name.
type GroupKey struct {
	name string
	fn   func(Observation) (string, bool)
}

// ByObjectID groups observations by their object id
func ByObjectID() GroupKey {
	return GroupKey{
		name: "object_id",
		fn: func(o Observation) (string, bool) {
			return o.ObjectID, o.ObjectID != ""
		},
	}
}

// ByAttribute groups observations by the string form of a non-null attribute
func ByAttribute(name string) GroupKey {
	return GroupKey{
		name: name,
		fn: func(o Observation) (string, bool) {
			v := o.Attrs[name]
			if v.IsNull() {
				return "", false
			}
			s := v.String()
			return s, s != ""
		},
	}
}

// ParseGroupKey resolves a group_key field name. "", "id" and "object_id"
// select the object id; anything else is an attribute name.
func ParseGroupKey(field string) GroupKey {
	switch strings.TrimSpace(field) {
	case "", "id", "object_id":
		return ByObjectID()
	}
	return ByAttribute(strings.TrimSpace(field))
}

func (k GroupKey) Name() string {
	if k.fn == nil {
		return "object_id"
	}
	return k.name
}

func (k GroupKey) resolve() GroupKey {
	if k.fn == nil {
		return ByObjectID()
	}
	return k
}

// MinLength sets the thresholds below which a trajectory is discarded
type MinLength struct {
	Points   int     `json:"points,omitempty"`
	Distance float64 `json:"distance,omitempty"`
}

func (m MinLength) Validate() error {
	if m.Points < 0 {
		return &InvalidConfigError{Field: "min_length.points", Reason: "must not be negative"}
	}
	if m.Distance < 0 {
		return &InvalidConfigError{Field: "min_length.distance", Reason: "must not be negative"}
	}
	return nil
}

type BuildConfig struct {
	GroupKey  GroupKey
	MinLength MinLength
	Metric    Metric
}

// BuildResult holds the trajectories in ascending key order plus the
// data-quality counters gathered while building.
type BuildResult struct {
	Trajectories      []Trajectory `json:"trajectories"`
	Discarded         int          `json:"discarded"`
	DuplicatesDropped int          `json:"duplicates_dropped"`
}

// Build groups observations, orders each group by time and drops groups
// that are too short to form a trajectory. Ties on timestamp keep ingestion
// order and only the first observation at a given instant is retained.
func Build(observations []Observation, cfg BuildConfig) (BuildResult, error) {
	if err := cfg.MinLength.Validate(); err != nil {
		return BuildResult{}, err
	}
	key := cfg.GroupKey.resolve()
	metric := cfg.Metric.orDefault()

	groups := make(map[string][]Observation)
	for i, o := range observations {
		if o.Timestamp.IsZero() {
			return BuildResult{}, &InvalidInputError{Index: i, Field: "timestamp", Reason: "is missing"}
		}
		k, ok := key.fn(o)
		if !ok {
			return BuildResult{}, &InvalidInputError{Index: i, Field: key.Name(), Reason: "is missing"}
		}
		groups[k] = append(groups[k], o)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var result BuildResult
	result.Trajectories = make([]Trajectory, 0, len(keys))
	for _, k := range keys {
		obs := groups[k]
		sort.SliceStable(obs, func(i, j int) bool {
			if obs[i].Timestamp.Equal(obs[j].Timestamp) {
				return obs[i].Seq < obs[j].Seq
			}
			return obs[i].Timestamp.Before(obs[j].Timestamp)
		})

		deduped := obs[:1]
		for _, o := range obs[1:] {
			if o.Timestamp.Equal(deduped[len(deduped)-1].Timestamp) {
				result.DuplicatesDropped++
				continue
			}
			deduped = append(deduped, o)
		}

		traj := Trajectory{
			ID:           k,
			ObjectID:     deduped[0].ObjectID,
			Observations: deduped,
		}
		if len(deduped) < 2 || len(deduped) < cfg.MinLength.Points ||
			(cfg.MinLength.Distance > 0 && traj.Length(metric) < cfg.MinLength.Distance) {
			result.Discarded++
			continue
		}
		result.Trajectories = append(result.Trajectories, traj)
	}
	return result, nil
}
