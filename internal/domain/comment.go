package domain

import (
	"context"
	"time"
)

type Comment struct {
	ID        int64
	PostID    int64
	UserID    int64
	Text      string
	CreatedAt time.Time
}

// CommentWithAuthor is a comment joined with its author's display data.
type CommentWithAuthor struct {
	Comment
	AuthorName  string
	AuthorEmail string
}

// CommentRepository defines persistence operations for comments.
// Comments are append-only.
type CommentRepository interface {
	Create(ctx context.Context, comment *Comment) error
	ListByPost(ctx context.Context, postID int64) ([]CommentWithAuthor, error)
}
