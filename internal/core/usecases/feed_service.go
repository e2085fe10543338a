package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/ports"
)

const feedCacheKey = "posts:feed"

// FeedService handles help-request posts.
type FeedService struct {
	posts ports.PostRepository
	cache ports.CacheService
}

// NewFeedService creates a new FeedService. cache may be nil.
func NewFeedService(posts ports.PostRepository, cache ports.CacheService) *FeedService {
	return &FeedService{posts: posts, cache: cache}
}

// List returns the feed, newest first as stored.
func (s *FeedService) List(ctx context.Context) ([]domain.Post, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, feedCacheKey); err == nil {
			var posts []domain.Post
			if err := json.Unmarshal(data, &posts); err == nil {
				return posts, nil
			}
		}
	}

	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, err
	}

	// Short TTL: likes and comments change often.
	if s.cache != nil {
		if data, err := json.Marshal(posts); err == nil {
			_ = s.cache.Set(ctx, feedCacheKey, data, 30)
		}
	}
	return posts, nil
}

// Get returns a single post.
func (s *FeedService) Get(ctx context.Context, id string) (*domain.Post, error) {
	return s.posts.GetByID(ctx, id)
}

// Accept marks the post as accepted by the current helper and counts it
// as a like, as the feed's accept button does.
func (s *FeedService) Accept(ctx context.Context, id string) (*domain.Post, error) {
	return s.update(ctx, id, func(p *domain.Post) {
		p.Likes++
		p.Accepted = true
	})
}

// Withdraw undoes Accept.
func (s *FeedService) Withdraw(ctx context.Context, id string) (*domain.Post, error) {
	return s.update(ctx, id, func(p *domain.Post) {
		if !p.Accepted {
			return
		}
		p.Accepted = false
		if p.Likes > 0 {
			p.Likes--
		}
	})
}

// Like increments the like counter.
func (s *FeedService) Like(ctx context.Context, id string) (*domain.Post, error) {
	return s.update(ctx, id, func(p *domain.Post) { p.Likes++ })
}

// Comment increments the comment counter.
func (s *FeedService) Comment(ctx context.Context, id string) (*domain.Post, error) {
	return s.update(ctx, id, func(p *domain.Post) { p.Comments++ })
}

func (s *FeedService) update(ctx context.Context, id string, fn func(p *domain.Post)) (*domain.Post, error) {
	post, err := s.posts.Update(ctx, id, fn)
	if err != nil {
		return nil, fmt.Errorf("update post %s: %w", id, err)
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, feedCacheKey)
	}
	return post, nil
}
