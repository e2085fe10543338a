package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/ports"
)

// PositionProvider is a push-driven provider fed through Emit, used in
// development and by the simulator endpoint.
type PositionProvider struct {
	mu          sync.Mutex
	last        *domain.GeoPoint
	unavailable bool
	sinks       map[uint64]func(domain.GeoPoint)
	next        uint64
}

var _ ports.PositionProvider = (*PositionProvider)(nil)

// NewPositionProvider creates an available provider without a cached fix.
func NewPositionProvider() *PositionProvider {
	return &PositionProvider{sinks: make(map[uint64]func(domain.GeoPoint))}
}

// LastKnown returns the last valid emitted or seeded fix.
func (p *PositionProvider) LastKnown(ctx context.Context) (domain.GeoPoint, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return domain.GeoPoint{}, false, nil
	}
	return *p.last, true, nil
}

// Subscribe registers onFix until cancel is called.
func (p *PositionProvider) Subscribe(ctx context.Context, policy domain.DeliveryPolicy, onFix func(domain.GeoPoint)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unavailable {
		return nil, fmt.Errorf("memory provider: %w", domain.ErrProviderUnavailable)
	}
	id := p.next
	p.next++
	p.sinks[id] = onFix

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.sinks, id)
			p.mu.Unlock()
		})
	}, nil
}

// Emit delivers fix to every subscriber on the calling goroutine.
func (p *PositionProvider) Emit(fix domain.GeoPoint) {
	p.mu.Lock()
	if fix.Validate() == nil {
		p.last = &fix
	}
	sinks := make([]func(domain.GeoPoint), 0, len(p.sinks))
	for _, s := range p.sinks {
		sinks = append(sinks, s)
	}
	p.mu.Unlock()

	for _, s := range sinks {
		s(fix)
	}
}

// SetLastKnown seeds the cached fix.
func (p *PositionProvider) SetLastKnown(fix domain.GeoPoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = &fix
}

// SetUnavailable makes new subscriptions fail, as a disabled location service would.
func (p *PositionProvider) SetUnavailable(unavailable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unavailable = unavailable
}

// Subscribers reports the number of live subscriptions.
func (p *PositionProvider) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sinks)
}
