// Package home keeps a local view of all ADAX rooms and reconciles requested changes with the backend.
//
// Reads never call the backend: they return the last fetched Home, with all requested changes applied ("ideal state").
// Changes are queued and written to the backend in one batch on the next tick of the Reconciler.
package home

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clambin/adax-bridge/internal/adax"
	"github.com/clambin/adax-bridge/pkg/pubsub"
)

// Client is the part of the ADAX API the Reconciler uses.
type Client interface {
	HomeGetter
	Control(ctx context.Context, updates []adax.RoomUpdate) error
}

type Configuration struct {
	// Tick is the interval between two reconciliation ticks.
	Tick time.Duration
	// CacheTTL is how long a fetched Home is used before Discover fetches a new one.
	CacheTTL time.Duration
	// MaxPollingInterval is the maximum age of the Home when no changes are pending.
	MaxPollingInterval time.Duration
}

var DefaultConfiguration = Configuration{
	Tick:               3 * time.Second,
	CacheTTL:           time.Minute,
	MaxPollingInterval: time.Minute,
}

// Reconciler owns the Home cache and the queue of requested changes. Each tick, it writes any pending changes to the
// backend and refreshes the Home. Subscribers receive the ideal Home each time it changes.
type Reconciler struct {
	*pubsub.Publisher[adax.Home]
	client        Client
	cache         *Cache
	queue         *Queue
	configuration Configuration
	logger        *slog.Logger
	busy          atomic.Bool
	refresh       chan struct{}
	ticks         sync.WaitGroup
}

func New(client Client, configuration Configuration, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		Publisher:     pubsub.New[adax.Home](logger.With("component", "pubsub")),
		client:        client,
		cache:         NewCache(client, configuration.CacheTTL, logger.With("component", "cache")),
		queue:         NewQueue(),
		configuration: configuration,
		logger:        logger,
		refresh:       make(chan struct{}, 1),
	}
}

func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Debug("started", "tick", r.configuration.Tick, "maxPollingInterval", r.configuration.MaxPollingInterval)
	defer r.logger.Debug("stopped")

	ticker := time.NewTicker(r.configuration.Tick)
	defer ticker.Stop()
	defer r.ticks.Wait()

	r.startTick(ctx, false)
	var force bool
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-r.refresh:
			force = true
		}
		// a requested refresh is kept until a tick runs
		if r.startTick(ctx, force) {
			force = false
		}
	}
}

// startTick runs a tick in the background, unless the previous one is still running.
func (r *Reconciler) startTick(ctx context.Context, force bool) bool {
	if !r.busy.CompareAndSwap(false, true) {
		r.logger.Debug("previous tick still running. skipping")
		return false
	}
	r.ticks.Add(1)
	go func() {
		defer r.ticks.Done()
		defer r.busy.Store(false)
		r.tick(ctx, force)
	}()
	return true
}

// Tick runs one reconciliation tick. It returns false if another tick was already running.
func (r *Reconciler) Tick(ctx context.Context) bool {
	if !r.busy.CompareAndSwap(false, true) {
		return false
	}
	defer r.busy.Store(false)
	r.tick(ctx, false)
	return true
}

func (r *Reconciler) tick(ctx context.Context, force bool) {
	switch {
	case r.queue.Len() > 0:
		r.flush(ctx)
	case force || r.cache.Age() > r.configuration.MaxPollingInterval:
		if _, err := r.cache.Refresh(ctx, true); err != nil {
			r.logError("failed to refresh home", err)
			return
		}
		r.Publish(r.GetHome())
	}
}

// flush writes all pending changes in one batch and reconciles the queue with the refreshed Home.
func (r *Reconciler) flush(ctx context.Context) {
	batch := r.queue.Pending()
	r.logger.Debug("writing pending changes", "count", len(batch))
	if err := r.client.Control(ctx, batch); err != nil {
		r.logError("failed to write pending changes", err)
		return
	}
	home, err := r.cache.Refresh(ctx, true)
	if err != nil {
		r.logError("failed to refresh home", err)
		return
	}
	if reconciled := r.queue.Reconcile(home); len(reconciled) > 0 {
		r.logger.Debug("changes reconciled", "rooms", reconciled, "pending", r.queue.Len())
	}
	r.Publish(r.GetHome())
}

func (r *Reconciler) logError(msg string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	var authErr *adax.AuthError
	if errors.As(err, &authErr) {
		msg += ": authentication failed"
	}
	r.logger.Error(msg, "err", err)
}

// GetHome returns the last known Home, with all requested changes applied. It never calls the backend.
func (r *Reconciler) GetHome() adax.Home {
	return IdealState(r.cache.Home(), r.queue.Overrides())
}

// SetRoom requests a change for a room. The change is written to the backend on the next tick. Any earlier request
// for the same room is replaced. SetRoom returns the requested change.
func (r *Reconciler) SetRoom(id int, state adax.RoomState) adax.RoomUpdate {
	update := r.queue.Set(id, state)
	r.logger.Debug("room change requested", "update", update)
	r.Publish(r.GetHome())
	return update
}

// Discover returns all known rooms. It calls the backend only if the cached Home is older than the cache TTL.
// An error is returned only if no rooms are known.
func (r *Reconciler) Discover(ctx context.Context) ([]adax.Room, error) {
	if _, err := r.cache.Refresh(ctx, false); err != nil {
		if rooms := r.GetHome().Rooms; len(rooms) > 0 {
			r.logger.Warn("failed to refresh home. using cached rooms", "err", err)
			return rooms, nil
		}
		return nil, err
	}
	return r.GetHome().Rooms, nil
}

// Refresh requests an immediate refresh of the Home. It does not block.
func (r *Reconciler) Refresh() {
	select {
	case r.refresh <- struct{}{}:
	default:
	}
}

// PendingChanges returns the number of changes not yet reflected by the backend.
func (r *Reconciler) PendingChanges() int {
	return r.queue.Len()
}

// Updated returns when the Home was last refreshed.
func (r *Reconciler) Updated() time.Time {
	return r.cache.Updated()
}
