package publisher

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

type mockConn struct {
	mock.Mock
}

func (m *mockConn) Publish(subject string, data []byte) error {
	return m.Called(subject, data).Error(0)
}

func (m *mockConn) Flush() error { return m.Called().Error(0) }
func (m *mockConn) Drain() error { return m.Called().Error(0) }
func (m *mockConn) Close()       { m.Called() }

type countingMetrics struct {
	published, errs, observed int
}

func (c *countingMetrics) NATSPublishedInc()              { c.published++ }
func (c *countingMetrics) NATSPublishErrInc()             { c.errs++ }
func (c *countingMetrics) PublishObserve(_ time.Duration) { c.observed++ }
func (c *countingMetrics) NATSSetConnected(_ bool)        {}

func record(tripID, objectID string) trajectory.SummaryRecord {
	start := time.Date(2017, 7, 1, 0, 0, 0, 0, time.UTC)
	return trajectory.SummaryRecord{
		TripID:    tripID,
		ObjectID:  objectID,
		ParentID:  objectID,
		Geometry:  trajectory.LineFrom([]trajectory.Position{{X: 0, Y: 0}, {X: 1, Y: 0}}),
		StartTime: start,
		EndTime:   start.Add(10 * time.Minute),
		Duration:  10 * time.Minute,
		NumPoints: 2,
		Length:    1,
		Direction: 90,
		Aggregates: []trajectory.Field{
			{Name: "SOG_mean", Value: trajectory.NumberValue(4.5)},
		},
	}
}

func TestSubjectSanitizesTokens(t *testing.T) {
	p := NewWithConn(&mockConn{}, "trajectory.summaries", false, nil, nil)
	assert.Equal(t, "trajectory.summaries.ais_2017.vessel_1", p.Subject("ais.2017", "vessel 1"))
	assert.Equal(t, "trajectory.summaries._._", p.Subject("", "  "))
}

func TestPublishSummaries(t *testing.T) {
	conn := &mockConn{}
	var payload []byte
	conn.On("Publish", "summaries.ais.244010219", mock.Anything).
		Run(func(args mock.Arguments) { payload = args.Get(1).([]byte) }).
		Return(nil).Once()
	conn.On("Flush").Return(nil).Once()

	m := &countingMetrics{}
	p := NewWithConn(conn, "summaries", true, m, nil)

	n, err := p.PublishSummaries("ais", []trajectory.SummaryRecord{record("244010219_1", "244010219")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, m.published)
	assert.Equal(t, 1, m.observed)
	conn.AssertExpectations(t)

	var msg SummaryMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, "244010219_1", msg.TripID)
	assert.Equal(t, "LINESTRING (0 0, 1 0)", msg.Geometry)
	assert.Equal(t, 600.0, msg.Duration)
	assert.Equal(t, trajectory.NumberValue(4.5), msg.Values["SOG_mean"])
}

func TestPublishSummariesStopsOnError(t *testing.T) {
	conn := &mockConn{}
	conn.On("Publish", "s.ais.A", mock.Anything).Return(nil).Once()
	conn.On("Publish", "s.ais.B", mock.Anything).Return(errors.New("nats: connection closed")).Once()

	m := &countingMetrics{}
	p := NewWithConn(conn, "s", false, m, nil)

	n, err := p.PublishSummaries("ais", []trajectory.SummaryRecord{
		record("A", "A"), record("B", "B"), record("C", "C"),
	})
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, m.errs)
	conn.AssertNotCalled(t, "Flush")
	conn.AssertExpectations(t)
}

func TestClose(t *testing.T) {
	conn := &mockConn{}
	conn.On("Drain").Return(nil).Once()
	conn.On("Close").Once()

	NewWithConn(conn, "s", false, nil, nil).Close()
	conn.AssertExpectations(t)
}
