package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/msomdec/quill/internal/domain"
	"github.com/msomdec/quill/internal/repository/sqlite/migrations"
)

const tracerName = "github.com/msomdec/quill/internal/repository/sqlite"

// DB wraps the SQLite handle and hands out the repositories built on it.
type DB struct {
	SqlDB  *sql.DB
	x      *sqlx.DB
	tracer trace.Tracer
}

var (
	_ domain.Database   = (*DB)(nil)
	_ domain.Scoper     = (*DB)(nil)
	_ domain.Transactor = (*DB)(nil)
)

// New opens a SQLite database at the given path and configures it for use.
// WAL mode, foreign keys and a busy timeout are set through the DSN so that
// every pooled connection carries them. Transactions take the write lock up
// front so a read-then-write transaction waits on busy_timeout instead of
// failing on a stale snapshot.
func New(dbPath string) (*DB, error) {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_txlock", "immediate")
	dsn := "file:" + dbPath + "?" + q.Encode()

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(4)

	if err := sqlDB.PingContext(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{
		SqlDB:  sqlDB,
		x:      sqlx.NewDb(sqlDB, "sqlite"),
		tracer: otel.Tracer(tracerName),
	}, nil
}

// Migrate applies the embedded schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, db.SqlDB)
}

func (db *DB) Close() error {
	return db.SqlDB.Close()
}

func (db *DB) Users() *UserRepository       { return &UserRepository{db: db} }
func (db *DB) Posts() *PostRepository       { return &PostRepository{db: db} }
func (db *DB) Comments() *CommentRepository { return &CommentRepository{db: db} }

type scopeKey struct{}

// scope is the connection state attached to a request context.
type scope struct {
	conn *sqlx.Conn
	tx   *sqlx.Tx
}

// executor is the query surface shared by *sqlx.DB, *sqlx.Conn and *sqlx.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

func scopeFrom(ctx context.Context) *scope {
	s, _ := ctx.Value(scopeKey{}).(*scope)
	return s
}

// exec returns the innermost handle bound to ctx: the open transaction, then
// the pinned connection, then the pool.
func (db *DB) exec(ctx context.Context) executor {
	if s := scopeFrom(ctx); s != nil {
		if s.tx != nil {
			return s.tx
		}
		return s.conn
	}
	return db.x
}

// Acquire pins one pooled connection to the returned context. Calling it on
// an already scoped context is a no-op.
func (db *DB) Acquire(ctx context.Context) (context.Context, func(), error) {
	if scopeFrom(ctx) != nil {
		return ctx, func() {}, nil
	}
	conn, err := db.x.Connx(ctx)
	if err != nil {
		return ctx, func() {}, fmt.Errorf("acquire connection: %w", err)
	}
	release := func() {
		if err := conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			slog.Warn("release connection", "error", err)
		}
	}
	return context.WithValue(ctx, scopeKey{}, &scope{conn: conn}), release, nil
}

// InTx runs fn in a transaction on the context's pinned connection, or on a
// pool connection when ctx is not scoped. Nested calls join the outer
// transaction.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s := scopeFrom(ctx)
	if s != nil && s.tx != nil {
		return fn(ctx)
	}

	var (
		tx  *sqlx.Tx
		err error
	)
	if s != nil {
		tx, err = s.conn.BeginTxx(ctx, nil)
	} else {
		tx, err = db.x.BeginTxx(ctx, nil)
	}
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inner := &scope{tx: tx}
	if s != nil {
		inner.conn = s.conn
	}
	if err := fn(context.WithValue(ctx, scopeKey{}, inner)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (db *DB) startSpan(ctx context.Context, operation, table string) (context.Context, trace.Span) {
	return db.tracer.Start(ctx, operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "sqlite"),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
		),
	)
}

// endSpan closes the span. ErrNotFound is an expected outcome, not a failure.
func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func isUniqueConstraintError(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// Ping checks that the database answers.
func (db *DB) Ping(ctx context.Context) error {
	return db.SqlDB.PingContext(ctx)
}
