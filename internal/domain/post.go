package domain

import (
	"context"
	"time"
)

// PublishDateLayout is the wire and storage format of Post.PublishDate.
const PublishDateLayout = "2006-01-02"

// Post is a blog entry. AuthorName is resolved from the author's user row
// and falls back to the name recorded when the post was written.
type Post struct {
	ID             int64
	Title          string
	Subtitle       string
	Body           string
	AuthorID       int64
	AuthorName     string
	ImageReference string
	PublishDate    time.Time
	CreatedAt      time.Time
}

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	// List returns every post, newest publish date first.
	List(ctx context.Context) ([]Post, error)
	GetByID(ctx context.Context, id int64) (*Post, error)
	Create(ctx context.Context, post *Post) error
	Update(ctx context.Context, post *Post) error
	// Delete removes the post. Deleting a missing post is not an error.
	Delete(ctx context.Context, id int64) error
	Exists(ctx context.Context, id int64) (bool, error)
}
