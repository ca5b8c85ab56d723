package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/reportcat/internal/report"
)

// QueryObserver records query latency.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// QueryStore executes compiled report SQL and returns positional rows.
type QueryStore struct {
	db       *sqlx.DB
	observer QueryObserver
	label    string
}

// QueryLabel tags report query latency samples.
const QueryLabel = "report_query"

// NewQueryStore constructs a store over db. observer may be nil.
func NewQueryStore(db *sqlx.DB, observer QueryObserver) *QueryStore {
	return &QueryStore{db: db, observer: observer, label: QueryLabel}
}

// Query runs query with "?" bind variables rebound for the driver. A "?"
// inside a quoted literal is not a bind variable. Byte slices are returned as
// strings. No rows yields nil.
func (s *QueryStore) Query(ctx context.Context, query string, args ...interface{}) ([][]interface{}, error) {
	start := time.Now()
	defer func() {
		if s.observer != nil {
			s.observer.ObserveDBQuery(s.label, time.Since(start))
		}
	}()

	rows, err := s.db.QueryxContext(ctx, s.rebind(query), s.bindArgs(args)...)
	if err != nil {
		return nil, fmt.Errorf("execute report query: %w", err)
	}
	defer rows.Close()

	var out [][]interface{}
	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		for i, v := range row {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report rows: %w", err)
	}
	return out, nil
}

func (s *QueryStore) rebind(query string) string {
	masked, unmask := report.MaskLiterals(query)
	return unmask(s.db.Rebind(masked))
}

// bindArgs passes dates to sqlite as ISO text so they compare with date().
func (s *QueryStore) bindArgs(args []interface{}) []interface{} {
	if s.db.DriverName() != "sqlite" {
		return args
	}
	out := make([]interface{}, len(args))
	for i, arg := range args {
		if t, ok := arg.(time.Time); ok && t.Equal(t.Truncate(24*time.Hour)) {
			out[i] = t.Format("2006-01-02")
			continue
		}
		out[i] = arg
	}
	return out
}
