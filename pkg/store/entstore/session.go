package entstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ncruces/go-sqlite3"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/errmodel"
	"github.com/wilhg/metadata/pkg/store"
)

const pgUniqueViolation = "23505"

// Session implements store.Session on one pinned connection.
type Session struct {
	conn    *sql.Conn
	tx      *sql.Tx
	dialect string
	locked  bool
	span    trace.Span
}

var _ store.Session = (*Session)(nil)

func (s *Session) begin(ctx context.Context) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	s.tx = tx
	return nil
}

// Commit commits the current transaction and starts the next one.
func (s *Session) Commit(ctx context.Context) error {
	if s.tx == nil {
		return errors.New("session is closed")
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return s.begin(ctx)
}

// Close rolls back uncommitted work, releases the maintainer lock and
// returns the connection to the pool.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	defer s.span.End()
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	if s.locked {
		if _, err := s.conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", store.MaintainerLockID); err != nil {
			s.span.RecordError(err)
		}
		s.locked = false
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// TryMaintainerLock takes pg_try_advisory_lock. SQLite serializes writers
// itself and always reports the lock as held.
func (s *Session) TryMaintainerLock(ctx context.Context) (bool, error) {
	if s.dialect != dialect.Postgres {
		return true, nil
	}
	if s.locked {
		return true, nil
	}
	var ok bool
	if err := s.tx.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", store.MaintainerLockID).Scan(&ok); err != nil {
		return false, fmt.Errorf("advisory lock: %w", err)
	}
	s.locked = ok
	return ok, nil
}

// TryXactLock hashes key onto the advisory lock space.
func (s *Session) TryXactLock(ctx context.Context, key string) (bool, error) {
	if s.dialect != dialect.Postgres {
		return true, nil
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	var ok bool
	if err := s.tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1)", int64(h.Sum64())).Scan(&ok); err != nil {
		return false, fmt.Errorf("advisory xact lock: %w", err)
	}
	return ok, nil
}

func (s *Session) builder() *entsql.DialectBuilder { return entsql.Dialect(s.dialect) }

func (s *Session) exec(ctx context.Context, q entsql.Querier) (sql.Result, error) {
	query, args := q.Query()
	return s.tx.ExecContext(ctx, query, args...)
}

func (s *Session) query(ctx context.Context, q entsql.Querier) (*sql.Rows, error) {
	query, args := q.Query()
	return s.tx.QueryContext(ctx, query, args...)
}

// insertID runs an insert and returns the generated id.
func (s *Session) insertID(ctx context.Context, ib *entsql.InsertBuilder) (int64, error) {
	if s.dialect == dialect.Postgres {
		query, args := ib.Returning("id").Query()
		var id int64
		if err := s.tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := s.exec(ctx, ib)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) || errors.Is(err, sqlite3.CONSTRAINT_PRIMARYKEY)
}

// mapErr turns unique violations into conflicts and wraps everything else.
func mapErr(err error, what string, ctx map[string]any) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return errmodel.Conflict(what+" already exists", ctx, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func notFound(err error, what string, ctx map[string]any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errmodel.NotFound(what+" not found", ctx)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func withStatus(sel *entsql.Selector, f store.StatusFilter) *entsql.Selector {
	switch {
	case f.Status == "":
		return sel
	case f.Negate:
		return sel.Where(entsql.NEQ("status", string(f.Status)))
	default:
		return sel.Where(entsql.EQ("status", string(f.Status)))
	}
}

func scanStatus(raw string, updated timestamp, rev int64) (domain.Lifecycle, error) {
	st, err := domain.ParseStatus(raw)
	if err != nil {
		return domain.Lifecycle{}, err
	}
	return domain.Lifecycle{Status: st, StatusUpdatedAt: updated.Time, Revision: rev}, nil
}

// timestamp scans both native timestamps and the text form SQLite keeps.
type timestamp struct{ time.Time }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("unsupported time value %T", src)
}

func (t *timestamp) parse(s string) error {
	for _, layout := range timeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v.UTC()
			return nil
		}
	}
	return fmt.Errorf("unsupported time format %q", s)
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Session) queryRow(ctx context.Context, q entsql.Querier) *sql.Row {
	query, args := q.Query()
	return s.tx.QueryRowContext(ctx, query, args...)
}

// collect drains rows before the caller issues follow-up queries; pgx
// cannot interleave result sets on one connection.
func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
