package infra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SQLExecutor is the query surface shared by the pool, a transaction and the runner.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// UserScoper runs a unit of work with row-level security bound to one user.
type UserScoper interface {
	InUserScope(ctx context.Context, userID string, fn func(q SQLExecutor) error) error
}

var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ErrMarker is returned for statements that lack a valid "--sql <uuid>" first line.
var ErrMarker = errors.New("sql marker missing or invalid")

const qSetUserScope = `--sql 0f6c2f4e-5b8a-4d0e-9a41-3c7e1f2d9b10
select set_config('app.user_id', $1::text, true);
`

// SQLRunner validates statement markers and logs every call against the pool
// or, inside InUserScope, against the scoped transaction.
type SQLRunner struct {
	Pool   *pgxpool.Pool
	Logger zerolog.Logger

	conn SQLExecutor
}

func NewSQLRunner(pool *pgxpool.Pool, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{Pool: pool, Logger: logger}
}

func (r *SQLRunner) target() SQLExecutor {
	if r.conn != nil {
		return r.conn
	}
	return r.Pool
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	r.Logger.Debug().Msgf("sql[%s] exec", marker)
	tag, err := r.target().Exec(ctx, trimmed, args...)
	if err != nil {
		r.Logger.Error().Err(err).Msgf("sql[%s] error", marker)
		return tag, err
	}
	r.Logger.Debug().Int64("rows", tag.RowsAffected()).Msgf("sql[%s] ok", marker)
	return tag, nil
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	r.Logger.Debug().Msgf("sql[%s] query_row", marker)
	row := r.target().QueryRow(ctx, trimmed, args...)
	return loggingRow{row: row, logger: r.Logger, marker: marker}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug().Msgf("sql[%s] query", marker)
	rows, err := r.target().Query(ctx, trimmed, args...)
	if err != nil {
		r.Logger.Error().Err(err).Msgf("sql[%s] error", marker)
		return nil, err
	}
	return loggingRows{Rows: rows, logger: r.Logger, marker: marker}, nil
}

// InUserScope opens a transaction, sets app.user_id for its duration and hands
// fn a runner bound to it. The transaction commits when fn returns nil.
func (r *SQLRunner) InUserScope(ctx context.Context, userID string, fn func(q SQLExecutor) error) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user scope: empty user id")
	}
	if r.Pool == nil {
		return fmt.Errorf("user scope: pool not configured")
	}
	return pgx.BeginFunc(ctx, r.Pool, func(tx pgx.Tx) error {
		scoped := &SQLRunner{Pool: r.Pool, Logger: r.Logger.With().Str("user_id", userID).Logger(), conn: tx}
		if _, err := scoped.Exec(ctx, qSetUserScope, userID); err != nil {
			return fmt.Errorf("user scope: %w", err)
		}
		return fn(scoped)
	})
}

type loggingRow struct {
	row    pgx.Row
	logger zerolog.Logger
	marker string
}

func (l loggingRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		l.logger.Error().Err(err).Msgf("sql[%s] scan error", l.marker)
	}
	return err
}

type loggingRows struct {
	pgx.Rows
	logger zerolog.Logger
	marker string
}

func (l loggingRows) Close() {
	l.Rows.Close()
	if err := l.Rows.Err(); err != nil {
		l.logger.Error().Err(err).Msgf("sql[%s] rows error", l.marker)
	}
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(dest ...any) error {
	return e.err
}

// extractMarker splits a statement into its marker id and the executable body.
func extractMarker(query string) (string, string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", "", errors.New("empty query")
	}
	lines := strings.Split(trimmed, "\n")
	markerLine := strings.TrimSpace(lines[0])
	if !markerRegexp.MatchString(markerLine) {
		return "", "", ErrMarker
	}
	return strings.TrimPrefix(markerLine, "--sql "), strings.Join(lines[1:], "\n"), nil
}

// ExtractMarker exposes marker parsing for statement linting.
func ExtractMarker(query string) (string, error) {
	marker, _, err := extractMarker(query)
	return marker, err
}

var (
	_ SQLExecutor = (*SQLRunner)(nil)
	_ UserScoper  = (*SQLRunner)(nil)
)
