package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// queryer is the statement surface shared by *sql.DB, *sql.Tx and the
// instrumented wrapper. Engine code only ever talks to a queryer.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// StatementHook observes every statement that passes through the engine,
// after it completes. For row queries err is the error known at the time
// the row is returned.
type StatementHook func(query string, elapsed time.Duration, err error)

// instrumentedQueryer times statements, records them in the query histogram
// and logs the ones at or above the slow threshold.
type instrumentedQueryer struct {
	next      queryer
	threshold time.Duration
	logger    zerolog.Logger
	hook      StatementHook
}

func instrument(next queryer, threshold time.Duration, logger zerolog.Logger, hook StatementHook) queryer {
	return &instrumentedQueryer{next: next, threshold: threshold, logger: logger, hook: hook}
}

func (q *instrumentedQueryer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := q.next.ExecContext(ctx, query, args...)
	q.observe("exec", query, start, err)
	return res, err
}

func (q *instrumentedQueryer) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := q.next.QueryContext(ctx, query, args...)
	q.observe("query", query, start, err)
	return rows, err
}

func (q *instrumentedQueryer) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := q.next.QueryRowContext(ctx, query, args...)
	q.observe("query_row", query, start, row.Err())
	return row
}

func (q *instrumentedQueryer) observe(kind, query string, start time.Time, err error) {
	elapsed := time.Since(start)
	queryDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if q.threshold > 0 && elapsed >= q.threshold {
		slowQueries.Inc()
		ev := q.logger.Warn().
			Str("kind", kind).
			Dur("elapsed", elapsed).
			Str("query", compactSQL(query))
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("slow query")
	}
	if q.hook != nil {
		q.hook(query, elapsed, err)
	}
}

// compactSQL collapses whitespace so multi-line DDL logs on one line.
func compactSQL(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
