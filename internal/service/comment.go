package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/msomdec/quill/internal/domain"
)

// CommentService handles comment creation and listing.
type CommentService struct {
	comments domain.CommentRepository
	posts    domain.PostRepository
	tx       domain.Transactor
}

// NewCommentService creates a new CommentService.
func NewCommentService(comments domain.CommentRepository, posts domain.PostRepository, tx domain.Transactor) *CommentService {
	return &CommentService{comments: comments, posts: posts, tx: tx}
}

// ListForPost returns the post's comments in the order they were written.
func (s *CommentService) ListForPost(ctx context.Context, postID int64) ([]domain.CommentWithAuthor, error) {
	return s.comments.ListByPost(ctx, postID)
}

// Create appends a comment by userID to the post. The post must exist.
func (s *CommentService) Create(ctx context.Context, postID, userID int64, text string) (*domain.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: comment text is required", domain.ErrInvalidInput)
	}

	comment := &domain.Comment{PostID: postID, UserID: userID, Text: text}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		exists, err := s.posts.Exists(ctx, postID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return s.comments.Create(ctx, comment)
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}
