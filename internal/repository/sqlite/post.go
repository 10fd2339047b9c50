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

// PostRepository implements domain.PostRepository using SQLite.
type PostRepository struct {
	db *DB
}

// NewPostRepository creates a new SQLite-backed PostRepository.
func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db}
}

type postRow struct {
	ID             int64     `db:"post_id"`
	Title          string    `db:"title"`
	Subtitle       string    `db:"subtitle"`
	Body           string    `db:"body"`
	AuthorID       int64     `db:"author_id"`
	AuthorName     string    `db:"author_name"`
	ImageReference string    `db:"image_reference"`
	PublishDate    string    `db:"publish_date"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r postRow) toDomain() (domain.Post, error) {
	published, err := time.Parse(domain.PublishDateLayout, r.PublishDate)
	if err != nil {
		return domain.Post{}, fmt.Errorf("parse publish date of post %d: %w", r.ID, err)
	}
	return domain.Post{
		ID:             r.ID,
		Title:          r.Title,
		Subtitle:       r.Subtitle,
		Body:           r.Body,
		AuthorID:       r.AuthorID,
		AuthorName:     r.AuthorName,
		ImageReference: r.ImageReference,
		PublishDate:    published,
		CreatedAt:      r.CreatedAt,
	}, nil
}

// selectPosts joins the author so the displayed name follows the user row.
func selectPosts() sq.SelectBuilder {
	return sq.Select(
		"p.post_id", "p.title", "p.subtitle", "p.body", "p.author_id",
		"COALESCE(u.name, p.author) AS author_name",
		"p.image_reference", "p.publish_date", "p.created_at",
	).
		From("blog_table p").
		LeftJoin("user u ON u.user_id = p.author_id")
}

func (r *PostRepository) List(ctx context.Context) (_ []domain.Post, err error) {
	ctx, span := r.db.startSpan(ctx, "blog_table.list", "blog_table")
	defer func() { endSpan(span, err) }()

	query, args, err := selectPosts().OrderBy("p.publish_date DESC", "p.post_id DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list posts: %w", err)
	}

	var rows []postRow
	if err := r.db.exec(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	posts := make([]domain.Post, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func (r *PostRepository) GetByID(ctx context.Context, id int64) (_ *domain.Post, err error) {
	ctx, span := r.db.startSpan(ctx, "blog_table.get_by_id", "blog_table")
	defer func() { endSpan(span, err) }()

	query, args, err := selectPosts().Where(sq.Eq{"p.post_id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get post: %w", err)
	}

	var row postRow
	if err := r.db.exec(ctx).GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}

	p, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts the post. post.AuthorName is stored as the legacy author
// column so the name survives if the user row is ever missing.
func (r *PostRepository) Create(ctx context.Context, post *domain.Post) (err error) {
	ctx, span := r.db.startSpan(ctx, "blog_table.create", "blog_table")
	defer func() { endSpan(span, err) }()

	now := time.Now().UTC()
	query, args, err := sq.Insert("blog_table").
		Columns("title", "subtitle", "body", "author", "author_id", "image_reference", "publish_date", "created_at").
		Values(post.Title, post.Subtitle, post.Body, post.AuthorName, post.AuthorID,
			post.ImageReference, post.PublishDate.Format(domain.PublishDateLayout), now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert post: %w", err)
	}

	result, err := r.db.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get post id: %w", err)
	}

	post.ID = id
	post.CreatedAt = now
	return nil
}

// Update replaces every mutable field. The author is not mutable.
func (r *PostRepository) Update(ctx context.Context, post *domain.Post) (err error) {
	ctx, span := r.db.startSpan(ctx, "blog_table.update", "blog_table")
	defer func() { endSpan(span, err) }()

	query, args, err := sq.Update("blog_table").
		SetMap(map[string]any{
			"title":           post.Title,
			"subtitle":        post.Subtitle,
			"body":            post.Body,
			"image_reference": post.ImageReference,
			"publish_date":    post.PublishDate.Format(domain.PublishDateLayout),
		}).
		Where(sq.Eq{"post_id": post.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update post: %w", err)
	}

	result, err := r.db.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
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

func (r *PostRepository) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := r.db.startSpan(ctx, "blog_table.delete", "blog_table")
	defer func() { endSpan(span, err) }()

	query, args, err := sq.Delete("blog_table").Where(sq.Eq{"post_id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete post: %w", err)
	}
	if _, err := r.db.exec(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

func (r *PostRepository) Exists(ctx context.Context, id int64) (_ bool, err error) {
	ctx, span := r.db.startSpan(ctx, "blog_table.exists", "blog_table")
	defer func() { endSpan(span, err) }()

	var n int
	err = r.db.exec(ctx).GetContext(ctx, &n,
		"SELECT EXISTS (SELECT 1 FROM blog_table WHERE post_id = ?)", id)
	if err != nil {
		return false, fmt.Errorf("check post exists: %w", err)
	}
	return n == 1, nil
}
