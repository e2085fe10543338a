package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/ports"
)

// --- Mock PositionProvider ---

type fakeProvider struct {
	mu           sync.Mutex
	lastKnown    *domain.GeoPoint
	lastKnownErr error
	subscribeErr error
	sinks        map[int]func(domain.GeoPoint)
	next         int
	subscribes   int
	cancels      int
	policies     []domain.DeliveryPolicy
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{sinks: make(map[int]func(domain.GeoPoint))}
}

func (f *fakeProvider) LastKnown(ctx context.Context) (domain.GeoPoint, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastKnownErr != nil {
		return domain.GeoPoint{}, false, f.lastKnownErr
	}
	if f.lastKnown == nil {
		return domain.GeoPoint{}, false, nil
	}
	return *f.lastKnown, true, nil
}

func (f *fakeProvider) Subscribe(ctx context.Context, policy domain.DeliveryPolicy, onFix func(domain.GeoPoint)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.policies = append(f.policies, policy)
	id := f.next
	f.next++
	f.sinks[id] = onFix
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.sinks, id)
			f.cancels++
		})
	}, nil
}

func (f *fakeProvider) setLastKnown(p domain.GeoPoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastKnown = &p
}

func (f *fakeProvider) setSubscribeErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeErr = err
}

// emit pushes p to every live sink, the way a provider goroutine would.
func (f *fakeProvider) emit(p domain.GeoPoint) {
	f.mu.Lock()
	sinks := make([]func(domain.GeoPoint), 0, len(f.sinks))
	for _, s := range f.sinks {
		sinks = append(sinks, s)
	}
	f.mu.Unlock()
	for _, s := range sinks {
		s(p)
	}
}

func (f *fakeProvider) counts() (subscribes, cancels, live int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes, f.cancels, len(f.sinks)
}

// --- Mock PermissionGate ---

type staticGate struct {
	mu     sync.Mutex
	status domain.PermissionStatus
}

func (g *staticGate) CurrentStatus() domain.PermissionStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *staticGate) RequestPermission(onResult func(granted bool)) {}

func (g *staticGate) Watch(fn func(domain.PermissionStatus)) func() { return func() {} }

// --- Mock Dispatcher ---

// manualDispatcher queues tasks until run is called.
type manualDispatcher struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
}

func (d *manualDispatcher) Post(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.tasks = append(d.tasks, fn)
	return true
}

func (d *manualDispatcher) run() int {
	d.mu.Lock()
	tasks := d.tasks
	d.tasks = nil
	d.mu.Unlock()
	for _, t := range tasks {
		t()
	}
	return len(tasks)
}

// --- Mock MarkerPresenter ---

type upsertCall struct {
	label string
	point domain.GeoPoint
}

type recordingPresenter struct {
	mu      sync.Mutex
	upserts []upsertCall
	prunes  [][]string
}

func (r *recordingPresenter) Upsert(label string, p domain.GeoPoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts = append(r.upserts, upsertCall{label: label, point: p})
}

func (r *recordingPresenter) RemoveAllExcept(labels ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prunes = append(r.prunes, labels)
}

func (r *recordingPresenter) upsertsFor(label string) []domain.GeoPoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.GeoPoint
	for _, u := range r.upserts {
		if u.label == label {
			out = append(out, u.point)
		}
	}
	return out
}

// --- Mock MarkerSurface ---

type fakeSurface struct {
	recordingPresenter
}

func (s *fakeSurface) Markers() []domain.Marker { return nil }

func (s *fakeSurface) Viewport() domain.Bounds { return domain.Bounds{} }

func newFakeSurface(domain.RequesterTarget) ports.MarkerSurface { return &fakeSurface{} }

// --- Mock EventPublisher ---

type recordingPublisher struct {
	mu       sync.Mutex
	states   map[string][]domain.TrackingState
	prompts  []string
	matches  []*domain.Match
	matchErr error
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{states: make(map[string][]domain.TrackingState)}
}

func (p *recordingPublisher) PublishTrackingState(ctx context.Context, sessionID string, st domain.TrackingState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[sessionID] = append(p.states[sessionID], st)
	return nil
}

func (p *recordingPublisher) PublishMatch(ctx context.Context, m *domain.Match) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.matchErr != nil {
		return p.matchErr
	}
	p.matches = append(p.matches, m)
	return nil
}

func (p *recordingPublisher) PublishPermissionPrompt(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, sessionID)
	return nil
}

func (p *recordingPublisher) phases(sessionID string) []domain.TrackingPhase {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.TrackingPhase, 0, len(p.states[sessionID]))
	for _, st := range p.states[sessionID] {
		out = append(out, st.Phase)
	}
	return out
}

// --- Mock CacheService ---

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte), ttls: make(map[string]int)}
}

func (c *mapCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (c *mapCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttlSeconds
	return nil
}

func (c *mapCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *mapCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// --- Mock PostRepository ---

type mockPostRepo struct {
	mu    sync.Mutex
	posts map[string]*domain.Post
	lists int
}

func newMockPostRepo(posts ...domain.Post) *mockPostRepo {
	r := &mockPostRepo{posts: make(map[string]*domain.Post)}
	for i := range posts {
		p := posts[i]
		r.posts[p.ID] = &p
	}
	return r
}

func (r *mockPostRepo) List(ctx context.Context) ([]domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	out := make([]domain.Post, 0, len(r.posts))
	for _, p := range r.posts {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *mockPostRepo) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (r *mockPostRepo) Update(ctx context.Context, id string, fn func(p *domain.Post)) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	fn(p)
	cp := *p
	return &cp, nil
}
