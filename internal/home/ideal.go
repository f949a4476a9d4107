package home

import "github.com/clambin/adax-bridge/internal/adax"

// IdealState returns a copy of home, with the overrides applied to their rooms. The returned Rooms never share
// memory with home.
func IdealState(home adax.Home, overrides map[int]adax.RoomState) adax.Home {
	if home.Rooms == nil {
		return home
	}
	rooms := make([]adax.Room, len(home.Rooms))
	for i, room := range home.Rooms {
		if override, ok := overrides[room.ID]; ok {
			room = override.Apply(room)
		}
		rooms[i] = room
	}
	return adax.Home{Rooms: rooms}
}
