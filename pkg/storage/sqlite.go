package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore persists observations in a single SQLite table. Attributes
// are kept as a JSON object so value kinds survive the round trip.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, datasetID string, obs []trajectory.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	// validate up front so a bad record leaves the table untouched
	if err := trajectory.Validate(obs); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var next int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM observations WHERE dataset_id = ?`, datasetID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (dataset_id, seq, object_id, ts_unix_nano, x, y, attrs)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range obs {
		var attrs sql.NullString
		if len(o.Attrs) > 0 {
			b, err := json.Marshal(o.Attrs)
			if err != nil {
				return &trajectory.InvalidInputError{Index: i, Field: "attrs", Reason: err.Error()}
			}
			attrs = sql.NullString{String: string(b), Valid: true}
		}
		_, err := stmt.ExecContext(ctx, datasetID, next+int64(i), o.ObjectID,
			o.Timestamp.UnixNano(), o.Position.X, o.Position.Y, attrs)
		if err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, datasetID string, timeRange *trajectory.TimeRange) ([]trajectory.Observation, error) {
	query := `SELECT seq, object_id, ts_unix_nano, x, y, attrs FROM observations WHERE dataset_id = ?`
	args := []any{datasetID}
	if timeRange != nil {
		query += ` AND ts_unix_nano BETWEEN ? AND ?`
		args = append(args, timeRange.Start.UnixNano(), timeRange.End.UnixNano())
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	out := []trajectory.Observation{}
	for rows.Next() {
		var (
			o     trajectory.Observation
			seq   int64
			ns    int64
			attrs sql.NullString
		)
		if err := rows.Scan(&seq, &o.ObjectID, &ns, &o.Position.X, &o.Position.Y, &attrs); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Seq = uint64(seq)
		o.Timestamp = time.Unix(0, ns).UTC()
		if attrs.Valid {
			if err := json.Unmarshal([]byte(attrs.String), &o.Attrs); err != nil {
				return nil, fmt.Errorf("decode attrs of seq %d: %w", seq, err)
			}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context, datasetID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations WHERE dataset_id = ?`, datasetID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Datasets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT dataset_id FROM observations ORDER BY dataset_id`)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
