package home

import (
	"maps"
	"sync"

	"github.com/clambin/adax-bridge/internal/adax"
	"github.com/clambin/go-common/set"
)

// Queue holds the requested state of each room (its override) and which of those overrides still need to be written
// to the backend (pending). Reconciled overrides stay in place, so readers keep seeing them.
type Queue struct {
	overrides map[int]adax.RoomState
	pending   set.Set[int]
	lock      sync.Mutex
}

func NewQueue() *Queue {
	return &Queue{
		overrides: make(map[int]adax.RoomState),
		pending:   set.New[int](),
	}
}

// Set replaces the override for the room and marks it as pending.
func (q *Queue) Set(id int, state adax.RoomState) adax.RoomUpdate {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.overrides[id] = state
	q.pending.Add(id)
	return adax.RoomUpdate{ID: id, RoomState: state}
}

// Pending returns all pending overrides, ordered by room ID.
func (q *Queue) Pending() []adax.RoomUpdate {
	q.lock.Lock()
	defer q.lock.Unlock()
	ids := q.pending.ListOrdered()
	updates := make([]adax.RoomUpdate, 0, len(ids))
	for _, id := range ids {
		updates = append(updates, adax.RoomUpdate{ID: id, RoomState: q.overrides[id]})
	}
	return updates
}

// Len returns the number of pending overrides.
func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.pending)
}

// Overrides returns a copy of all overrides, pending or not.
func (q *Queue) Overrides() map[int]adax.RoomState {
	q.lock.Lock()
	defer q.lock.Unlock()
	return maps.Clone(q.overrides)
}

// Reconcile removes every pending override that home already reflects. Overrides for rooms that are no longer
// in home are removed altogether. Reconcile returns the IDs of the rooms that are no longer pending.
func (q *Queue) Reconcile(home adax.Home) []int {
	q.lock.Lock()
	defer q.lock.Unlock()

	var reconciled []int
	for _, id := range q.pending.ListOrdered() {
		room, ok := home.GetRoom(id)
		if !ok {
			delete(q.overrides, id)
		} else if !applied(q.overrides[id], room) {
			continue
		}
		q.pending.Remove(id)
		reconciled = append(reconciled, id)
	}
	return reconciled
}

// applied returns true if the room reflects the override. The target temperature decides, if the override sets one.
func applied(state adax.RoomState, room adax.Room) bool {
	switch {
	case state.TargetTemperature != nil:
		return room.TargetTemperature == *state.TargetTemperature
	case state.HeatingEnabled != nil:
		return room.HeatingEnabled == *state.HeatingEnabled
	default:
		return true
	}
}
