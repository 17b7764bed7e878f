package publisher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

// Conn is the subset of *nats.Conn the publisher needs
type Conn interface {
	Publish(subject string, data []byte) error
	Flush() error
	Drain() error
	Close()
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// NATSPublisher emits one message per summary record on
// <prefix>.<dataset>.<object>.
type NATSPublisher struct {
	nc          Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
	logger      *slog.Logger
}

func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("trajectory-summaries"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Info("NATS closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return NewWithConn(nc, prefix, logSubjects, m, logger), nil
}

// NewWithConn wraps an existing connection
func NewWithConn(nc Conn, prefix string, logSubjects bool, m PublisherMetrics, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logSubjects: logSubjects, metrics: m, logger: logger}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// SummaryMessage is the JSON payload of a published record
type SummaryMessage struct {
	DatasetID string                      `json:"datasetId"`
	TripID    string                      `json:"tripId"`
	ObjectID  string                      `json:"objectId"`
	ParentID  string                      `json:"parentId,omitempty"`
	Geometry  string                      `json:"geometry"`
	WKT       string                      `json:"wkt,omitempty"`
	StartTime time.Time                   `json:"startTime"`
	EndTime   time.Time                   `json:"endTime"`
	Duration  float64                     `json:"durationSeconds"`
	NumPoints int                         `json:"numPoints"`
	Length    float64                     `json:"length"`
	Direction float64                     `json:"direction"`
	Values    map[string]trajectory.Value `json:"values,omitempty"`
}

func NewSummaryMessage(datasetID string, rec trajectory.SummaryRecord) SummaryMessage {
	msg := SummaryMessage{
		DatasetID: datasetID,
		TripID:    rec.TripID,
		ObjectID:  rec.ObjectID,
		ParentID:  rec.ParentID,
		Geometry:  rec.Geometry.WKT(),
		WKT:       rec.WKT,
		StartTime: rec.StartTime,
		EndTime:   rec.EndTime,
		Duration:  rec.Duration.Seconds(),
		NumPoints: rec.NumPoints,
		Length:    rec.Length,
		Direction: rec.Direction,
	}
	if len(rec.Aggregates) > 0 {
		msg.Values = make(map[string]trajectory.Value, len(rec.Aggregates))
		for _, f := range rec.Aggregates {
			msg.Values[f.Name] = f.Value
		}
	}
	return msg
}

// Subject returns the subject a record of objectID is published on
func (p *NATSPublisher) Subject(datasetID, objectID string) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, subjectToken(datasetID), subjectToken(objectID))
}

func (p *NATSPublisher) PublishSummary(datasetID string, rec trajectory.SummaryRecord) error {
	subject := p.Subject(datasetID, rec.ObjectID)
	b, err := json.Marshal(NewSummaryMessage(datasetID, rec))
	if err != nil {
		return err
	}
	if p.logSubjects {
		p.logger.Debug("NATS publish", "subject", subject)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

// PublishSummaries publishes every record and flushes. It stops at the
// first failure and reports how many records went out.
func (p *NATSPublisher) PublishSummaries(datasetID string, records []trajectory.SummaryRecord) (int, error) {
	for i, rec := range records {
		if err := p.PublishSummary(datasetID, rec); err != nil {
			return i, fmt.Errorf("publish %s: %w", rec.TripID, err)
		}
	}
	if err := p.nc.Flush(); err != nil {
		return len(records), fmt.Errorf("flush: %w", err)
	}
	return len(records), nil
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
