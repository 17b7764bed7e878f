package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

// MemoryStore keeps one PointStore per dataset
type MemoryStore struct {
	mu       sync.RWMutex
	datasets map[string]*trajectory.PointStore
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		datasets: make(map[string]*trajectory.PointStore),
	}
}

func (m *MemoryStore) dataset(id string, create bool) *trajectory.PointStore {
	m.mu.RLock()
	ps, ok := m.datasets[id]
	m.mu.RUnlock()
	if ok || !create {
		return ps
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ps, ok = m.datasets[id]; !ok {
		ps = trajectory.NewPointStore()
		m.datasets[id] = ps
	}
	return ps
}

func (m *MemoryStore) Append(ctx context.Context, datasetID string, obs []trajectory.Observation) error {
	return m.dataset(datasetID, true).Add(obs...)
}

func (m *MemoryStore) Load(ctx context.Context, datasetID string, timeRange *trajectory.TimeRange) ([]trajectory.Observation, error) {
	ps := m.dataset(datasetID, false)
	if ps == nil {
		return []trajectory.Observation{}, nil
	}
	if timeRange == nil {
		return ps.All(), nil
	}
	return ps.Range(timeRange.Start, timeRange.End), nil
}

func (m *MemoryStore) Count(ctx context.Context, datasetID string) (int, error) {
	ps := m.dataset(datasetID, false)
	if ps == nil {
		return 0, nil
	}
	return ps.Len(), nil
}

func (m *MemoryStore) Datasets(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.datasets))
	for id := range m.datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) Close() error { return nil }
