package sqlite_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msomdec/quill/internal/domain"
	"github.com/msomdec/quill/internal/repository/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *sqlite.DB, name, email string) *domain.User {
	t.Helper()
	u := &domain.User{Name: name, Email: email, PasswordHash: "hash"}
	require.NoError(t, db.Users().Create(context.Background(), u))
	return u
}

func createPost(t *testing.T, db *sqlite.DB, author *domain.User, title string, published time.Time) *domain.Post {
	t.Helper()
	p := &domain.Post{
		Title:          title,
		Subtitle:       title + " subtitle",
		Body:           "<p>" + title + "</p>",
		AuthorID:       author.ID,
		AuthorName:     author.Name,
		ImageReference: "https://example.com/" + title + ".jpg",
		PublishDate:    published,
	}
	require.NoError(t, db.Posts().Create(context.Background(), p))
	return p
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNew(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := sqlite.New(dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	require.NoError(t, err, "database file was not created")

	var fkEnabled int
	require.NoError(t, db.SqlDB.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled))
	assert.Equal(t, 1, fkEnabled)

	var mode string
	require.NoError(t, db.SqlDB.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestMigrateIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Migrate(ctx))

	var count int
	require.NoError(t, db.SqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 3, count)
}

func TestInTx_CommitsOnSuccess(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.InTx(ctx, func(ctx context.Context) error {
		return db.Users().Create(ctx, &domain.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "h"})
	})
	require.NoError(t, err)

	n, err := db.Users().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.InTx(ctx, func(ctx context.Context) error {
		if err := db.Users().Create(ctx, &domain.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "h"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := db.Users().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "insert should have been rolled back")
}

func TestInTx_NestedJoinsOuter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.InTx(ctx, func(ctx context.Context) error {
		inner := db.InTx(ctx, func(ctx context.Context) error {
			return db.Users().Create(ctx, &domain.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "h"})
		})
		require.NoError(t, inner)
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := db.Users().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "inner write should roll back with the outer transaction")
}

func TestAcquire_PinsConnectionUntilRelease(t *testing.T) {
	db := newTestDB(t)

	scoped, release, err := db.Acquire(context.Background())
	require.NoError(t, err)

	before := db.SqlDB.Stats().InUse
	assert.GreaterOrEqual(t, before, 1)

	err = db.InTx(scoped, func(ctx context.Context) error {
		return db.Users().Create(ctx, &domain.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "h"})
	})
	require.NoError(t, err)

	_, err = db.Users().GetByEmail(scoped, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, before, db.SqlDB.Stats().InUse, "scoped calls must reuse the pinned connection")

	release()
	assert.Zero(t, db.SqlDB.Stats().InUse)
}

func TestAcquire_NestedIsNoop(t *testing.T) {
	db := newTestDB(t)

	scoped, release, err := db.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	again, releaseAgain, err := db.Acquire(scoped)
	require.NoError(t, err)
	releaseAgain()

	_, err = db.Users().Count(again)
	require.NoError(t, err, "inner release must not close the outer connection")
}
