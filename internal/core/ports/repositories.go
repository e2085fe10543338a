package ports

import (
	"context"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
)

// PostRepository stores feed posts.
type PostRepository interface {
	List(ctx context.Context) ([]domain.Post, error)
	GetByID(ctx context.Context, id string) (*domain.Post, error)
	// Update applies fn to the stored post atomically and returns the result.
	Update(ctx context.Context, id string, fn func(p *domain.Post)) (*domain.Post, error)
}
