package hcl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/leowmjw/go-temporal-trajectory/pkg/temporal"
)

// AssertRequestsEqual compares two SummaryRequest objects for equality in tests
func AssertRequestsEqual(t *testing.T, expected, actual *temporal.SummaryRequest) {
	t.Helper()
	assert.Equal(t, expected.DatasetID, actual.DatasetID)
	assert.Equal(t, expected.GroupKey, actual.GroupKey)
	assert.Equal(t, expected.GapThreshold, actual.GapThreshold)
	assert.Equal(t, expected.Metric, actual.Metric)
	assert.Equal(t, expected.MinLength, actual.MinLength)
	assert.Equal(t, expected.ProcessingMode, actual.ProcessingMode)
	assert.Equal(t, expected.ChunkSize, actual.ChunkSize)
	assert.Equal(t, expected.Publish, actual.Publish)
	assert.Equal(t, expected.WKT, actual.WKT)
	assert.Equal(t, expected.Aggregations, actual.Aggregations)

	// Compare time ranges if present
	if expected.TimeRange != nil && actual.TimeRange != nil {
		// Compare times, allowing for potential timezone differences
		assert.Equal(t, expected.TimeRange.Start.UTC().Format(time.RFC3339), actual.TimeRange.Start.UTC().Format(time.RFC3339))
		assert.Equal(t, expected.TimeRange.End.UTC().Format(time.RFC3339), actual.TimeRange.End.UTC().Format(time.RFC3339))
	} else {
		assert.Equal(t, expected.TimeRange == nil, actual.TimeRange == nil)
	}
}
