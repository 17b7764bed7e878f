package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leowmjw/go-temporal-trajectory/pkg/storage"
	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

var t0 = time.Date(2017, 7, 1, 0, 0, 0, 0, time.UTC)

// observationsFor builds fixes for id at the given minute offsets. X and
// SOG both follow the fix index.
func observationsFor(id string, minutes ...int) []trajectory.Observation {
	obs := make([]trajectory.Observation, len(minutes))
	for i, m := range minutes {
		obs[i] = trajectory.Observation{
			ObjectID:  id,
			Timestamp: t0.Add(time.Duration(m) * time.Minute),
			Position:  trajectory.Position{X: float64(i), Y: 0},
			Attrs: map[string]trajectory.Value{
				"SOG":    trajectory.NumberValue(float64(i)),
				"Status": trajectory.StringValue("Under way"),
			},
		}
	}
	return obs
}

// seededStore returns a memory store holding count objects, each with two
// trips separated by a 40 minute gap.
func seededStore(datasetID string, count int) *storage.MemoryStore {
	st := storage.NewMemoryStore()
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("vessel-%03d", i)
		if err := st.Append(context.Background(), datasetID, observationsFor(id, 0, 10, 20, 60, 70)); err != nil {
			panic(err)
		}
	}
	return st
}

type recordingPublisher struct {
	mu      sync.Mutex
	records map[string][]trajectory.SummaryRecord
	err     error
}

func (p *recordingPublisher) PublishSummaries(datasetID string, records []trajectory.SummaryRecord) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	if p.records == nil {
		p.records = map[string][]trajectory.SummaryRecord{}
	}
	p.records[datasetID] = append(p.records[datasetID], records...)
	return len(records), nil
}

type countingObserver struct {
	mu       sync.Mutex
	counts   map[string]int
	rejected map[string]int
}

func (o *countingObserver) ObserveIngest(source string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[source] += n
}

func (o *countingObserver) ObserveRejected(source string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rejected == nil {
		o.rejected = map[string]int{}
	}
	o.rejected[source]++
}

func tripIDs(records []trajectory.SummaryRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.TripID
	}
	return ids
}
