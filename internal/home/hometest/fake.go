// Package hometest provides a fake Reconciler for testing consumers of the ideal Home.
package hometest

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/clambin/adax-bridge/internal/adax"
	"github.com/clambin/adax-bridge/internal/home"
	"github.com/clambin/adax-bridge/pkg/pubsub"
)

// Fake behaves like a Reconciler whose backend applies every change immediately. Refresh publishes the ideal Home.
type Fake struct {
	*pubsub.Publisher[adax.Home]
	home      adax.Home
	overrides map[int]adax.RoomState
	updates   []adax.RoomUpdate
	pending   int
	refreshes int
	updated   time.Time
	err       error
	lock      sync.Mutex
}

func New(rooms ...adax.Room) *Fake {
	return &Fake{
		Publisher: pubsub.New[adax.Home](slog.New(slog.DiscardHandler)),
		home:      adax.Home{Rooms: rooms},
		overrides: make(map[int]adax.RoomState),
		updated:   time.Date(2024, time.December, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *Fake) GetHome() adax.Home {
	f.lock.Lock()
	defer f.lock.Unlock()
	return home.IdealState(f.home, f.overrides)
}

func (f *Fake) SetRoom(id int, state adax.RoomState) adax.RoomUpdate {
	f.lock.Lock()
	update := adax.RoomUpdate{ID: id, RoomState: state}
	f.overrides[id] = state
	f.updates = append(f.updates, update)
	f.pending++
	f.lock.Unlock()
	f.Publish(f.GetHome())
	return update
}

func (f *Fake) Discover(_ context.Context) ([]adax.Room, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return home.IdealState(f.home, f.overrides).Rooms, nil
}

func (f *Fake) Refresh() {
	f.lock.Lock()
	f.refreshes++
	f.lock.Unlock()
	f.Publish(f.GetHome())
}

// Tick publishes the ideal Home and marks all changes as reconciled.
func (f *Fake) Tick(_ context.Context) bool {
	f.lock.Lock()
	f.pending = 0
	f.lock.Unlock()
	f.Publish(f.GetHome())
	return true
}

func (f *Fake) PendingChanges() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.pending
}

func (f *Fake) Updated() time.Time {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.updated
}

// SetRooms replaces all rooms and publishes the resulting ideal Home.
func (f *Fake) SetRooms(rooms ...adax.Room) {
	f.lock.Lock()
	f.home = adax.Home{Rooms: rooms}
	f.lock.Unlock()
	f.Publish(f.GetHome())
}

// SetError makes Discover fail with err.
func (f *Fake) SetError(err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.err = err
}

// Updates returns all changes received through SetRoom.
func (f *Fake) Updates() []adax.RoomUpdate {
	f.lock.Lock()
	defer f.lock.Unlock()
	return slices.Clone(f.updates)
}

// Refreshes returns the number of calls to Refresh.
func (f *Fake) Refreshes() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.refreshes
}
