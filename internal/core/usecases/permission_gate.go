package usecases

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/ports"
	"github.com/samirrijal/neighborhelper/internal/pkg/metrics"
)

// ConsentGate implements ports.PermissionGate for a single screen. The user's
// decision arrives through Resolve; results are delivered on the dispatcher.
type ConsentGate struct {
	dispatcher ports.Dispatcher
	prompter   ports.ConsentPrompter
	autoGrant  bool

	mu       sync.Mutex
	status   domain.PermissionStatus
	pending  []func(granted bool)
	watchers map[int]func(domain.PermissionStatus)
	nextID   int
}

// ConsentGateOption configures a ConsentGate.
type ConsentGateOption func(*ConsentGate)

// WithPrompter sets the sink that shows the consent prompt.
func WithPrompter(p ports.ConsentPrompter) ConsentGateOption {
	return func(g *ConsentGate) { g.prompter = p }
}

// WithAutoGrant answers every request with "granted" without prompting.
func WithAutoGrant(auto bool) ConsentGateOption {
	return func(g *ConsentGate) { g.autoGrant = auto }
}

// WithInitialStatus seeds the status, e.g. when the platform already granted access.
func WithInitialStatus(s domain.PermissionStatus) ConsentGateOption {
	return func(g *ConsentGate) { g.status = s }
}

// NewConsentGate creates a gate delivering results on dispatcher.
func NewConsentGate(dispatcher ports.Dispatcher, opts ...ConsentGateOption) *ConsentGate {
	g := &ConsentGate{
		dispatcher: dispatcher,
		watchers:   make(map[int]func(domain.PermissionStatus)),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// CurrentStatus returns the current permission status.
func (g *ConsentGate) CurrentStatus() domain.PermissionStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// RequestPermission queues onResult until the user decides.
func (g *ConsentGate) RequestPermission(onResult func(granted bool)) {
	g.mu.Lock()
	g.pending = append(g.pending, onResult)
	first := len(g.pending) == 1
	g.mu.Unlock()

	if g.autoGrant {
		g.Resolve(true)
		return
	}
	if first && g.prompter != nil {
		if err := g.prompter.Prompt(context.Background()); err != nil {
			slog.Warn("consent prompt failed", "error", err)
		}
	}
}

// Pending reports whether a request is waiting for the user's decision.
func (g *ConsentGate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending) > 0
}

// Resolve records the user's decision and answers every pending request.
// With nothing pending it changes nothing and returns false.
func (g *ConsentGate) Resolve(granted bool) bool {
	status := domain.PermissionDenied
	if granted {
		status = domain.PermissionGranted
	}

	g.mu.Lock()
	if len(g.pending) == 0 {
		g.mu.Unlock()
		return false
	}
	callbacks := g.pending
	g.pending = nil
	changed := g.status != status
	g.status = status
	watchers := g.snapshotWatchersLocked()
	g.mu.Unlock()

	metrics.PermissionResults.WithLabelValues(status.String()).Inc()

	for _, cb := range callbacks {
		cb := cb
		if !g.dispatcher.Post(func() { cb(granted) }) {
			slog.Debug("permission result dropped, dispatcher closed")
		}
	}
	if changed {
		g.notify(watchers, status)
	}
	return true
}

// Revoke models the platform withdrawing a previously granted permission.
func (g *ConsentGate) Revoke() {
	g.mu.Lock()
	if g.status != domain.PermissionGranted {
		g.mu.Unlock()
		return
	}
	g.status = domain.PermissionDenied
	watchers := g.snapshotWatchersLocked()
	g.mu.Unlock()

	metrics.PermissionResults.WithLabelValues("revoked").Inc()
	g.notify(watchers, domain.PermissionDenied)
}

// Watch registers fn for status changes. fn runs on the dispatcher.
func (g *ConsentGate) Watch(fn func(domain.PermissionStatus)) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.watchers[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.watchers, id)
		g.mu.Unlock()
	}
}

func (g *ConsentGate) snapshotWatchersLocked() []func(domain.PermissionStatus) {
	out := make([]func(domain.PermissionStatus), 0, len(g.watchers))
	for _, w := range g.watchers {
		out = append(out, w)
	}
	return out
}

func (g *ConsentGate) notify(watchers []func(domain.PermissionStatus), status domain.PermissionStatus) {
	for _, w := range watchers {
		w := w
		g.dispatcher.Post(func() { w(status) })
	}
}
