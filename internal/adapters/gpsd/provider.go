// Package gpsd reads position fixes from a gpsd daemon over its JSON
// socket protocol.
package gpsd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/ports"
)

const watchCommand = "?WATCH={\"enable\":true,\"json\":true}\n"

// tpvMessage is gpsd's time-position-velocity report.
type tpvMessage struct {
	Class string  `json:"class"`
	Mode  int     `json:"mode"`
	Time  string  `json:"time"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// Provider implements ports.PositionProvider against gpsd. gpsd reports at
// its own cadence; delivery hints are applied by the subscriber.
type Provider struct {
	addr           string
	dialTimeout    time.Duration
	reconnectDelay time.Duration

	mu   sync.Mutex
	last *domain.GeoPoint
}

var _ ports.PositionProvider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithReconnectDelay sets the pause between reconnect attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(p *Provider) { p.reconnectDelay = d }
}

// NewProvider creates a provider for the gpsd daemon at addr (host:port).
func NewProvider(addr string, opts ...Option) *Provider {
	p := &Provider{
		addr:           addr,
		dialTimeout:    3 * time.Second,
		reconnectDelay: 2 * time.Second,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// LastKnown returns the most recent 2D/3D fix seen on any stream.
func (p *Provider) LastKnown(ctx context.Context) (domain.GeoPoint, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return domain.GeoPoint{}, false, nil
	}
	return *p.last, true, nil
}

// Subscribe connects to gpsd and streams fixes until cancel is called. The
// first connection must succeed; later drops are retried in the background.
func (p *Provider) Subscribe(ctx context.Context, policy domain.DeliveryPolicy, onFix func(domain.GeoPoint)) (func(), error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("gpsd %s: %w: %v", p.addr, domain.ErrProviderUnavailable, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.run(runCtx, conn, onFix)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}, nil
}

func (p *Provider) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: p.dialTimeout}
	return d.DialContext(ctx, "tcp", p.addr)
}

func (p *Provider) run(ctx context.Context, conn net.Conn, onFix func(domain.GeoPoint)) {
	for {
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		err := p.read(conn, onFix)
		stop()
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		slog.Warn("gpsd stream ended, reconnecting", "addr", p.addr, "error", err)

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.reconnectDelay):
			}
			conn, err = p.dial(ctx)
			if err == nil {
				break
			}
			slog.Warn("gpsd reconnect failed", "addr", p.addr, "error", err)
		}
		slog.Info("gpsd reconnected", "addr", p.addr)
	}
}

// read enables watch mode and forwards fixes until the connection ends.
func (p *Provider) read(conn net.Conn, onFix func(domain.GeoPoint)) error {
	if _, err := conn.Write([]byte(watchCommand)); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var msg tpvMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		// mode 2 is a 2D fix, 3 is 3D; below that lat/lon are meaningless
		if msg.Class != "TPV" || msg.Mode < 2 {
			continue
		}

		fix := domain.GeoPoint{Lat: msg.Lat, Lon: msg.Lon}
		if fix.Validate() == nil {
			p.mu.Lock()
			p.last = &fix
			p.mu.Unlock()
		}
		onFix(fix)
	}
	return scanner.Err()
}
