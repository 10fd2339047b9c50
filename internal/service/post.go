package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/msomdec/quill/internal/domain"
)

// PostInput carries the editable fields of a post as submitted by a form.
type PostInput struct {
	Title          string
	Subtitle       string
	Body           string
	ImageReference string
	PublishDate    string // YYYY-MM-DD
}

// PostInputFrom returns the input that reproduces p, for pre-filling forms.
func PostInputFrom(p *domain.Post) PostInput {
	return PostInput{
		Title:          p.Title,
		Subtitle:       p.Subtitle,
		Body:           p.Body,
		ImageReference: p.ImageReference,
		PublishDate:    p.PublishDate.Format(domain.PublishDateLayout),
	}
}

func (in PostInput) validate() (domain.Post, error) {
	p := domain.Post{
		Title:          strings.TrimSpace(in.Title),
		Subtitle:       strings.TrimSpace(in.Subtitle),
		Body:           strings.TrimSpace(in.Body),
		ImageReference: strings.TrimSpace(in.ImageReference),
	}
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"title", p.Title},
		{"subtitle", p.Subtitle},
		{"body", p.Body},
		{"image URL", p.ImageReference},
		{"publish date", strings.TrimSpace(in.PublishDate)},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return domain.Post{}, fmt.Errorf("%w: %s required", domain.ErrInvalidInput, strings.Join(missing, ", "))
	}

	published, err := time.Parse(domain.PublishDateLayout, strings.TrimSpace(in.PublishDate))
	if err != nil {
		return domain.Post{}, fmt.Errorf("%w: publish date must be YYYY-MM-DD", domain.ErrInvalidInput)
	}
	p.PublishDate = published
	return p, nil
}

// PostService handles blog post operations. Callers enforce admin
// authorization before calling the mutating methods.
type PostService struct {
	posts domain.PostRepository
	tx    domain.Transactor
}

// NewPostService creates a new PostService.
func NewPostService(posts domain.PostRepository, tx domain.Transactor) *PostService {
	return &PostService{posts: posts, tx: tx}
}

// List returns all posts, newest publish date first.
func (s *PostService) List(ctx context.Context) ([]domain.Post, error) {
	return s.posts.List(ctx)
}

func (s *PostService) Get(ctx context.Context, id int64) (*domain.Post, error) {
	return s.posts.GetByID(ctx, id)
}

// Create validates the input and stores a post written by author.
func (s *PostService) Create(ctx context.Context, author *domain.User, in PostInput) (*domain.Post, error) {
	if author == nil {
		return nil, domain.ErrUnauthorized
	}
	post, err := in.validate()
	if err != nil {
		return nil, err
	}
	post.AuthorID = author.ID
	post.AuthorName = author.Name

	if err := s.posts.Create(ctx, &post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return &post, nil
}

// Update replaces every editable field of the post.
func (s *PostService) Update(ctx context.Context, id int64, in PostInput) (*domain.Post, error) {
	post, err := in.validate()
	if err != nil {
		return nil, err
	}
	post.ID = id

	var updated *domain.Post
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.posts.Update(ctx, &post); err != nil {
			return err
		}
		p, err := s.posts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the post. Deleting an absent post succeeds; its comments
// are left orphaned.
func (s *PostService) Delete(ctx context.Context, id int64) error {
	return s.posts.Delete(ctx, id)
}
