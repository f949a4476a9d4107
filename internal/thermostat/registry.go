package thermostat

import (
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/clambin/adax-bridge/internal/adax"
	"github.com/clambin/go-common/set"
)

// Registry keeps one Thermostat for each discovered room.
type Registry struct {
	controller  Controller
	logger      *slog.Logger
	thermostats map[int]*Thermostat
	lock        sync.RWMutex
}

func NewRegistry(controller Controller, logger *slog.Logger) *Registry {
	return &Registry{
		controller:  controller,
		logger:      logger,
		thermostats: make(map[int]*Thermostat),
	}
}

// Sync adds a Thermostat for each new room and removes the ones for rooms that are no longer present.
// It returns the IDs of the rooms that were added and removed.
func (r *Registry) Sync(rooms []adax.Room) (added []int, removed []int) {
	r.lock.Lock()
	defer r.lock.Unlock()

	current := set.New[int]()
	for _, room := range rooms {
		current.Add(room.ID)
		if _, ok := r.thermostats[room.ID]; !ok {
			r.thermostats[room.ID] = New(room.ID, r.controller, r.logger.With("room", room.Label()))
			added = append(added, room.ID)
			r.logger.Info("room discovered", "id", room.ID, "name", room.Name)
		}
	}
	for id := range r.thermostats {
		if !current.Contains(id) {
			delete(r.thermostats, id)
			removed = append(removed, id)
			r.logger.Info("room removed", "id", id)
		}
	}
	slices.Sort(added)
	slices.Sort(removed)
	return added, removed
}

// Get returns the Thermostat for the room ID.
func (r *Registry) Get(id int) (*Thermostat, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	t, ok := r.thermostats[id]
	return t, ok
}

// Lookup returns the Thermostat for a room, specified by name or ID.
func (r *Registry) Lookup(nameOrID string) (*Thermostat, bool) {
	if room, ok := r.controller.GetHome().LookupRoom(nameOrID); ok {
		return r.Get(room.ID)
	}
	if id, err := strconv.Atoi(nameOrID); err == nil {
		return r.Get(id)
	}
	return nil, false
}

// Thermostats returns all thermostats, ordered by room ID.
func (r *Registry) Thermostats() []*Thermostat {
	r.lock.RLock()
	defer r.lock.RUnlock()
	thermostats := make([]*Thermostat, 0, len(r.thermostats))
	for _, t := range r.thermostats {
		thermostats = append(thermostats, t)
	}
	slices.SortFunc(thermostats, func(a, b *Thermostat) int { return a.id - b.id })
	return thermostats
}
