// Package memory holds in-process implementations of the core ports.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/ports"
)

// PostRepo implements ports.PostRepository over a slice, keeping feed order.
type PostRepo struct {
	mu    sync.RWMutex
	posts []domain.Post
}

var _ ports.PostRepository = (*PostRepo)(nil)

// NewPostRepo creates a repository holding posts in the given order.
func NewPostRepo(posts ...domain.Post) *PostRepo {
	r := &PostRepo{posts: make([]domain.Post, len(posts))}
	copy(r.posts, posts)
	return r
}

// NewSeededPostRepo returns a repository pre-filled with the demo feed.
func NewSeededPostRepo() *PostRepo {
	return NewPostRepo(SeedPosts()...)
}

// SeedPosts returns the demo feed with fresh IDs.
func SeedPosts() []domain.Post {
	return []domain.Post{
		{
			ID:        uuid.NewString(),
			Username:  "Maishan Nadis",
			Timestamp: "2m",
			Content:   "Lost cat near Kalabagan Please keep an eye out!",
			Likes:     4,
			Comments:  2,
			Address:   "Mirpur DOHS, Dhaka",
			Location:  &domain.GeoPoint{Lat: 23.8380, Lon: 90.3753},
		},
		{
			ID:        uuid.NewString(),
			Username:  "Faiza Tashmeah",
			Timestamp: "15m",
			Content:   "Anyone has a charger-fan I can borrow this afternoon?",
			Likes:     1,
			Comments:  5,
			Address:   "Dhanmondi 27, Dhaka",
			Location:  &domain.GeoPoint{Lat: 23.7561, Lon: 90.3742},
		},
		{
			ID:        uuid.NewString(),
			Username:  "Safwat Bushra",
			Timestamp: "1h",
			Content:   "Need a Math tutor for my cousin. Any recommendations?",
			Likes:     12,
			Comments:  3,
			Address:   "Sutrapur, Old Dhaka",
			Location:  &domain.GeoPoint{Lat: 23.7104, Lon: 90.4074},
		},
	}
}

// List returns a copy of every post in feed order.
func (r *PostRepo) List(ctx context.Context) ([]domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Post, len(r.posts))
	copy(out, r.posts)
	return out, nil
}

// GetByID returns a copy of the post with the given ID.
func (r *PostRepo) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	p := r.posts[i]
	return &p, nil
}

// Update applies fn to the stored post under the write lock.
func (r *PostRepo) Update(ctx context.Context, id string, fn func(p *domain.Post)) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	fn(&r.posts[i])
	r.posts[i].ID = id
	p := r.posts[i]
	return &p, nil
}

func (r *PostRepo) indexLocked(id string) int {
	for i := range r.posts {
		if r.posts[i].ID == id {
			return i
		}
	}
	return -1
}
