package memory

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
)

func TestPostRepo_SeedAndUpdate(t *testing.T) {
	r := NewSeededPostRepo()
	ctx := context.Background()

	posts, err := r.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 3 {
		t.Fatalf("expected 3 seeded posts, got %d", len(posts))
	}
	for _, p := range posts {
		if p.Location == nil || p.Location.Validate() != nil {
			t.Errorf("post %s has no usable location", p.Username)
		}
	}

	id := posts[2].ID
	updated, err := r.Update(ctx, id, func(p *domain.Post) { p.Likes++ })
	if err != nil {
		t.Fatal(err)
	}
	if updated.Likes != 13 {
		t.Errorf("expected 13 likes, got %d", updated.Likes)
	}

	// returned copies do not alias storage
	updated.Likes = 0
	again, _ := r.GetByID(ctx, id)
	if again.Likes != 13 {
		t.Errorf("storage aliased: likes = %d", again.Likes)
	}
}

func TestPostRepo_NotFound(t *testing.T) {
	r := NewPostRepo()
	if _, err := r.GetByID(context.Background(), "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.Update(context.Background(), "x", func(*domain.Post) {}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPositionProvider_EmitAndCancel(t *testing.T) {
	p := NewPositionProvider()
	var got []domain.GeoPoint
	cancel, err := p.Subscribe(context.Background(), domain.DeliveryPolicy{}, func(g domain.GeoPoint) {
		got = append(got, g)
	})
	if err != nil {
		t.Fatal(err)
	}

	fix := domain.GeoPoint{Lat: 23.8, Lon: 90.4}
	p.Emit(fix)
	p.Emit(domain.GeoPoint{Lat: math.NaN()})
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	last, ok, _ := p.LastKnown(context.Background())
	if !ok || last != fix {
		t.Errorf("last known = %+v %v, want the last valid fix", last, ok)
	}

	cancel()
	cancel()
	p.Emit(fix)
	if len(got) != 2 {
		t.Errorf("delivery after cancel")
	}
	if p.Subscribers() != 0 {
		t.Errorf("expected no subscribers")
	}
}

func TestPositionProvider_Unavailable(t *testing.T) {
	p := NewPositionProvider()
	p.SetUnavailable(true)
	_, err := p.Subscribe(context.Background(), domain.DeliveryPolicy{}, func(domain.GeoPoint) {})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}
