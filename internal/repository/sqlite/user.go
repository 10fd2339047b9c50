package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/msomdec/quill/internal/domain"
)

// UserRepository implements domain.UserRepository using SQLite.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite-backed UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

type userRow struct {
	ID           int64     `db:"user_id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r userRow) toDomain() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         domain.Role(r.Role),
		CreatedAt:    r.CreatedAt,
	}
}

var userColumns = []string{"user_id", "name", "email", "password_hash", "role", "created_at"}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (err error) {
	ctx, span := r.db.startSpan(ctx, "user.create", "user")
	defer func() { endSpan(span, err) }()

	if user.Role == "" {
		user.Role = domain.RoleMember
	}
	now := time.Now().UTC()
	query, args, err := sq.Insert("user").
		Columns("name", "email", "password_hash", "role", "created_at").
		Values(user.Name, user.Email, user.PasswordHash, string(user.Role), now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user: %w", err)
	}

	result, err := r.db.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (_ *domain.User, err error) {
	ctx, span := r.db.startSpan(ctx, "user.get_by_id", "user")
	defer func() { endSpan(span, err) }()

	return r.getOne(ctx, sq.Eq{"user_id": id})
}

// GetByEmail matches case-insensitively; the email column is COLLATE NOCASE.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (_ *domain.User, err error) {
	ctx, span := r.db.startSpan(ctx, "user.get_by_email", "user")
	defer func() { endSpan(span, err) }()

	return r.getOne(ctx, sq.Eq{"email": email})
}

func (r *UserRepository) getOne(ctx context.Context, where sq.Eq) (*domain.User, error) {
	query, args, err := sq.Select(userColumns...).From("user").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user: %w", err)
	}

	var row userRow
	if err := r.db.exec(ctx).GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return row.toDomain(), nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) (err error) {
	ctx, span := r.db.startSpan(ctx, "user.update_password_hash", "user")
	defer func() { endSpan(span, err) }()

	query, args, err := sq.Update("user").Set("password_hash", hash).Where(sq.Eq{"user_id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update user: %w", err)
	}

	result, err := r.db.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Count(ctx context.Context) (n int, err error) {
	ctx, span := r.db.startSpan(ctx, "user.count", "user")
	defer func() { endSpan(span, err) }()

	if err := r.db.exec(ctx).GetContext(ctx, &n, "SELECT COUNT(*) FROM user"); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
