package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/ports"
	"github.com/samirrijal/neighborhelper/internal/pkg/dispatch"
	"github.com/samirrijal/neighborhelper/internal/pkg/metrics"
)

// LocationSubscriber starts and stops position subscriptions.
// *LocationSubscription implements it.
type LocationSubscriber interface {
	Start(ctx context.Context, onPosition func(domain.GeoPoint), policy domain.DeliveryPolicy) (domain.SubscriptionHandle, error)
	Stop(h domain.SubscriptionHandle)
}

// TrackingOptions configures a TrackingController.
type TrackingOptions struct {
	Policy domain.DeliveryPolicy
	// Strict panics when a second subscription is started while one is live.
	Strict bool
	Now    func() time.Time
}

// TrackingController drives the live-location screen: permission, the
// position subscription, distance to the requester and the user's marker.
// All state is confined to the loop goroutine.
type TrackingController struct {
	loop    *dispatch.Loop
	gate    ports.PermissionGate
	subs    LocationSubscriber
	markers ports.MarkerPresenter
	target  domain.RequesterTarget
	opts    TrackingOptions
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// loop-confined
	alive     bool
	state     domain.TrackingState
	handle    domain.SubscriptionHandle
	gen       uint64
	unwatch   func()
	observers map[int]func(domain.TrackingState)
	nextObs   int

	snapshot    atomic.Pointer[domain.TrackingState]
	disposeOnce sync.Once
}

// NewTrackingController creates a controller in AwaitingPermission and
// places the requester marker. The controller takes ownership of loop and
// closes it on Dispose.
func NewTrackingController(
	loop *dispatch.Loop,
	gate ports.PermissionGate,
	subs LocationSubscriber,
	markers ports.MarkerPresenter,
	target domain.RequesterTarget,
	opts TrackingOptions,
) *TrackingController {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &TrackingController{
		loop:      loop,
		gate:      gate,
		subs:      subs,
		markers:   markers,
		target:    target,
		opts:      opts,
		log:       slog.Default().With("requester", target.Label),
		ctx:       ctx,
		cancel:    cancel,
		alive:     true,
		observers: make(map[int]func(domain.TrackingState)),
		state: domain.TrackingState{
			Phase:      domain.PhaseAwaitingPermission,
			Permission: gate.CurrentStatus(),
			UpdatedAt:  opts.Now(),
		},
	}
	initial := c.state
	c.snapshot.Store(&initial)

	// written once, never moved
	markers.Upsert(target.Label, target.Point)

	c.unwatch = gate.Watch(func(status domain.PermissionStatus) {
		c.loop.Post(func() { c.onPermissionChanged(status) })
	})
	return c
}

// Target returns the requester this controller measures against.
func (c *TrackingController) Target() domain.RequesterTarget {
	return c.target
}

// State returns the latest snapshot. Safe from any goroutine.
func (c *TrackingController) State() domain.TrackingState {
	return *c.snapshot.Load()
}

// Start begins tracking if permission is already granted, otherwise asks for it.
func (c *TrackingController) Start() {
	c.loop.Call(func() {
		if !c.alive || c.state.Phase != domain.PhaseAwaitingPermission {
			return
		}
		if c.gate.CurrentStatus() == domain.PermissionGranted {
			c.enterTracking()
			return
		}
		c.requestPermission()
	})
}

// Retry re-requests permission after a denial, or restarts the subscription
// when the position provider was unavailable.
func (c *TrackingController) Retry() {
	c.loop.Call(func() {
		if !c.alive {
			return
		}
		switch {
		case c.state.Phase == domain.PhaseDenied:
			c.state.Phase = domain.PhaseAwaitingPermission
			c.publish()
			c.requestPermission()
		case c.state.Phase == domain.PhaseTracking && c.state.Unavailable:
			c.stopSubscription()
			c.state.Unavailable = false
			c.startSubscription()
			c.publish()
		}
	})
}

// Observe registers fn to receive every new snapshot. fn runs on the
// controller's loop and must not call Start, Retry, Observe or Dispose.
func (c *TrackingController) Observe(fn func(domain.TrackingState)) (cancel func()) {
	id := -1
	c.loop.Call(func() {
		if !c.alive {
			return
		}
		id = c.nextObs
		c.nextObs++
		c.observers[id] = fn
	})
	return func() {
		if id < 0 {
			return
		}
		c.loop.Post(func() { delete(c.observers, id) })
	}
}

// Dispose stops the subscription and makes every later callback a no-op.
// It is synchronous and idempotent.
func (c *TrackingController) Dispose() {
	c.disposeOnce.Do(func() {
		c.loop.Call(func() {
			c.alive = false
			c.stopSubscription()
			if c.unwatch != nil {
				c.unwatch()
				c.unwatch = nil
			}
			c.state.Phase = domain.PhaseDisposed
			c.publish()
			c.observers = nil
		})
		c.cancel()
		c.loop.Close()
		c.log.Debug("tracking controller disposed")
	})
}

func (c *TrackingController) requestPermission() {
	c.gate.RequestPermission(func(granted bool) {
		c.loop.Post(func() { c.onPermissionResult(granted) })
	})
}

func (c *TrackingController) onPermissionResult(granted bool) {
	if !c.alive || c.state.Phase != domain.PhaseAwaitingPermission {
		return
	}
	if granted {
		c.enterTracking()
		return
	}
	c.log.Info("location permission denied")
	c.state.Phase = domain.PhaseDenied
	c.state.Permission = domain.PermissionDenied
	c.publish()
}

func (c *TrackingController) onPermissionChanged(status domain.PermissionStatus) {
	if !c.alive {
		return
	}
	if status != domain.PermissionDenied || c.state.Phase != domain.PhaseTracking {
		return
	}
	c.log.Info("location permission revoked while tracking")
	c.stopSubscription()
	c.state = domain.TrackingState{
		Phase:      domain.PhaseDenied,
		Permission: domain.PermissionDenied,
	}
	c.publish()
}

func (c *TrackingController) enterTracking() {
	c.state = domain.TrackingState{
		Phase:      domain.PhaseTracking,
		Permission: domain.PermissionGranted,
	}
	c.markers.RemoveAllExcept(c.target.Label, domain.UserMarkerLabel)
	c.startSubscription()
	c.publish()
}

func (c *TrackingController) startSubscription() {
	if c.handle.Valid() {
		err := fmt.Errorf("tracking %q: %w", c.target.Label, domain.ErrSubscriptionActive)
		if c.opts.Strict {
			panic(err)
		}
		c.log.Error("second location subscription requested", "error", err)
		c.stopSubscription()
	}

	c.gen++
	gen := c.gen
	h, err := c.subs.Start(c.ctx, func(p domain.GeoPoint) {
		c.loop.Post(func() { c.onPosition(gen, p) })
	}, c.opts.Policy)

	switch {
	case err == nil:
		c.handle = h
	case errors.Is(err, domain.ErrPermissionDenied):
		// permission flipped between the result and the start
		c.state.Phase = domain.PhaseDenied
		c.state.Permission = domain.PermissionDenied
	case errors.Is(err, domain.ErrSubscriptionActive):
		if c.opts.Strict {
			panic(err)
		}
		c.log.Error("location subscription already active", "error", err)
	default:
		c.log.Warn("position provider unavailable", "error", err)
		metrics.ProviderUnavailable.Inc()
		c.state.Unavailable = true
		c.state.LastUserPosition = nil
	}
}

func (c *TrackingController) stopSubscription() {
	if !c.handle.Valid() {
		return
	}
	c.subs.Stop(c.handle)
	c.handle = domain.SubscriptionHandle{}
}

func (c *TrackingController) onPosition(gen uint64, p domain.GeoPoint) {
	if !c.alive || gen != c.gen || !c.handle.Valid() || c.state.Phase != domain.PhaseTracking {
		return
	}

	d, err := DistanceKm(c.target.Point, p)
	if err != nil {
		c.log.Warn("ignoring malformed position", "error", err)
		metrics.StaleDistances.Inc()
		c.state.Stale = true
		c.publish()
		return
	}
	metrics.DistanceComputations.Inc()

	pos := p
	c.state.LastUserPosition = &pos
	c.state.DistanceKm = &d
	c.state.Stale = false
	c.state.Unavailable = false
	c.markers.Upsert(domain.UserMarkerLabel, p)
	c.publish()
}

func (c *TrackingController) publish() {
	c.state.UpdatedAt = c.opts.Now()
	snap := c.state
	c.snapshot.Store(&snap)
	for _, fn := range c.observers {
		fn(snap)
	}
}
