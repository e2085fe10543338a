package natsadapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/ports"
)

// PositionSource implements ports.PositionProvider over location.fix.<device>.
type PositionSource struct {
	conn   *nats.Conn
	device string

	mu   sync.Mutex
	last *domain.GeoPoint
}

var _ ports.PositionProvider = (*PositionSource)(nil)

// NewPositionSource reads fixes published for device.
func NewPositionSource(conn *nats.Conn, device string) *PositionSource {
	return &PositionSource{conn: conn, device: device}
}

// LastKnown returns the last valid fix received on this source.
func (s *PositionSource) LastKnown(ctx context.Context) (domain.GeoPoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return domain.GeoPoint{}, false, nil
	}
	return *s.last, true, nil
}

// Subscribe starts a core NATS subscription on the device subject.
func (s *PositionSource) Subscribe(ctx context.Context, policy domain.DeliveryPolicy, onFix func(domain.GeoPoint)) (func(), error) {
	if s.conn == nil || !s.conn.IsConnected() {
		return nil, fmt.Errorf("nats: %w", domain.ErrProviderUnavailable)
	}

	// messages may arrive before Subscribe returns; hold them back until then
	ready := make(chan struct{})
	sub, err := s.conn.Subscribe(SubjectFix+s.device, func(msg *nats.Msg) {
		<-ready
		fix, err := DecodeFix(msg)
		if err != nil {
			slog.Debug("dropping malformed fix", "subject", msg.Subject, "error", err)
			return
		}
		if fix.Point.Validate() == nil {
			s.mu.Lock()
			p := fix.Point
			s.last = &p
			s.mu.Unlock()
		}
		onFix(fix.Point)
	})
	if err != nil {
		close(ready)
		return nil, fmt.Errorf("nats subscribe: %w: %v", domain.ErrProviderUnavailable, err)
	}
	close(ready)

	var once sync.Once
	return func() {
		once.Do(func() { _ = sub.Unsubscribe() })
	}, nil
}
