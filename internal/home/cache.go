package home

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/clambin/adax-bridge/internal/adax"
)

// HomeGetter fetches the current state of all rooms from the backend.
type HomeGetter interface {
	GetHome(ctx context.Context) (adax.Home, error)
}

// Cache holds the last Home fetched from the backend. Home is only ever replaced as a whole.
type Cache struct {
	getter    HomeGetter
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time
	jitter    func(time.Time) time.Duration
	home      adax.Home
	updated   time.Time
	lock      sync.RWMutex
	fetchLock sync.Mutex
}

func NewCache(getter HomeGetter, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		getter: getter,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		jitter: defaultJitter,
	}
}

// defaultJitter spreads calls from clients polling at the same cadence over a few seconds.
func defaultJitter(now time.Time) time.Duration {
	return time.Duration(now.Second()%3) * time.Second
}

// Refresh fetches a new Home from the backend, unless force is false and the cached Home is younger than the TTL.
//
// If the fetch fails, Refresh returns the cached (stale) Home, together with the error. The cached Home is never cleared.
func (c *Cache) Refresh(ctx context.Context, force bool) (adax.Home, error) {
	c.fetchLock.Lock()
	defer c.fetchLock.Unlock()

	if !force && c.Age() < c.ttl {
		return c.Home(), nil
	}

	if delay := c.jitter(c.now()); delay > 0 {
		c.logger.Debug("delaying refresh", "delay", delay)
		select {
		case <-ctx.Done():
			return c.Home(), ctx.Err()
		case <-time.After(delay):
		}
	}

	home, err := c.getter.GetHome(ctx)
	if err != nil {
		return c.Home(), err
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.home = home
	c.updated = c.now()
	c.logger.Debug("home refreshed", "home", home)
	return home, nil
}

// Home returns the cached Home.
func (c *Cache) Home() adax.Home {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.home
}

// Updated returns the time of the last successful refresh. Zero if the cache was never refreshed.
func (c *Cache) Updated() time.Time {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.updated
}

// Age returns the time since the last successful refresh.
func (c *Cache) Age() time.Duration {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.updated.IsZero() {
		return math.MaxInt64
	}
	return c.now().Sub(c.updated)
}
