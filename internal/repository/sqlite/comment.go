package sqlite

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/msomdec/quill/internal/domain"
)

// CommentRepository implements domain.CommentRepository using SQLite.
type CommentRepository struct {
	db *DB
}

// NewCommentRepository creates a new SQLite-backed CommentRepository.
func NewCommentRepository(db *DB) *CommentRepository {
	return &CommentRepository{db: db}
}

type commentRow struct {
	ID          int64     `db:"comment_id"`
	PostID      int64     `db:"post_id"`
	UserID      int64     `db:"user_id"`
	Text        string    `db:"text"`
	CreatedAt   time.Time `db:"created_at"`
	AuthorName  string    `db:"author_name"`
	AuthorEmail string    `db:"author_email"`
}

// Create appends a comment. The caller checks that the post exists.
func (r *CommentRepository) Create(ctx context.Context, comment *domain.Comment) (err error) {
	ctx, span := r.db.startSpan(ctx, "comments.create", "comments")
	defer func() { endSpan(span, err) }()

	now := time.Now().UTC()
	query, args, err := sq.Insert("comments").
		Columns("text", "user_id", "post_id", "created_at").
		Values(comment.Text, comment.UserID, comment.PostID, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert comment: %w", err)
	}

	result, err := r.db.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get comment id: %w", err)
	}

	comment.ID = id
	comment.CreatedAt = now
	return nil
}

// ListByPost returns the post's comments in insertion order, each joined
// with its author's name and email.
func (r *CommentRepository) ListByPost(ctx context.Context, postID int64) (_ []domain.CommentWithAuthor, err error) {
	ctx, span := r.db.startSpan(ctx, "comments.list_by_post", "comments")
	defer func() { endSpan(span, err) }()

	query, args, err := sq.Select(
		"c.comment_id", "c.post_id", "c.user_id", "c.text", "c.created_at",
		"u.name AS author_name", "u.email AS author_email",
	).
		From("comments c").
		Join("user u ON u.user_id = c.user_id").
		Where(sq.Eq{"c.post_id": postID}).
		OrderBy("c.comment_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list comments: %w", err)
	}

	var rows []commentRow
	if err := r.db.exec(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	comments := make([]domain.CommentWithAuthor, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, domain.CommentWithAuthor{
			Comment: domain.Comment{
				ID:        row.ID,
				PostID:    row.PostID,
				UserID:    row.UserID,
				Text:      row.Text,
				CreatedAt: row.CreatedAt,
			},
			AuthorName:  row.AuthorName,
			AuthorEmail: row.AuthorEmail,
		})
	}
	return comments, nil
}
