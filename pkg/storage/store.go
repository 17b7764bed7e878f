package storage

import (
	"context"
	"fmt"

	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

// Store persists observations per dataset. Append assigns ingestion
// sequence numbers; Load returns observations in that order.
type Store interface {
	Append(ctx context.Context, datasetID string, obs []trajectory.Observation) error
	Load(ctx context.Context, datasetID string, timeRange *trajectory.TimeRange) ([]trajectory.Observation, error)
	Count(ctx context.Context, datasetID string) (int, error)
	Datasets(ctx context.Context) ([]string, error)
	Close() error
}

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Open returns the store for driver. path is ignored by the memory driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(path)
	}
	return nil, fmt.Errorf("unknown storage driver %q", driver)
}
