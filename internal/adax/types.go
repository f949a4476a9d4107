package adax

import (
	"log/slog"
	"strconv"
)

// Room is the state of one heater, as reported by the ADAX API.
// Temperatures are expressed in hundredths of a degree Celsius.
type Room struct {
	ID                int    `json:"id"`
	Name              string `json:"name,omitempty"`
	HeatingEnabled    bool   `json:"heatingEnabled"`
	Temperature       int    `json:"temperature"`
	TargetTemperature int    `json:"targetTemperature"`
}

// Label returns the name of the room, or its ID if the room has no name.
func (r Room) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return strconv.Itoa(r.ID)
}

func (r Room) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("id", r.ID),
		slog.Bool("heating", r.HeatingEnabled),
		slog.Int("temperature", r.Temperature),
		slog.Int("target", r.TargetTemperature),
	)
}

// Home is a snapshot of all rooms.
type Home struct {
	Rooms []Room `json:"rooms"`
}

// GetRoom returns the room with the specified ID.
func (h Home) GetRoom(id int) (Room, bool) {
	for _, room := range h.Rooms {
		if room.ID == id {
			return room, true
		}
	}
	return Room{}, false
}

// LookupRoom returns the room with the specified name. If no room has that name, the name is treated as a room ID.
func (h Home) LookupRoom(nameOrID string) (Room, bool) {
	for _, room := range h.Rooms {
		if room.Name == nameOrID {
			return room, true
		}
	}
	if id, err := strconv.Atoi(nameOrID); err == nil {
		return h.GetRoom(id)
	}
	return Room{}, false
}

func (h Home) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(h.Rooms))
	for _, room := range h.Rooms {
		attrs = append(attrs, slog.Any("room_"+strconv.Itoa(room.ID), room))
	}
	return slog.GroupValue(attrs...)
}

// RoomState is a partial Room: the fields a client may request to change. Nil fields are left untouched.
type RoomState struct {
	HeatingEnabled    *bool `json:"heatingEnabled,omitempty"`
	TargetTemperature *int  `json:"targetTemperature,omitempty"`
}

// Apply returns room with the fields of the RoomState substituted.
func (s RoomState) Apply(room Room) Room {
	if s.HeatingEnabled != nil {
		room.HeatingEnabled = *s.HeatingEnabled
	}
	if s.TargetTemperature != nil {
		room.TargetTemperature = *s.TargetTemperature
	}
	return room
}

// IsZero returns true if the RoomState doesn't change anything.
func (s RoomState) IsZero() bool {
	return s.HeatingEnabled == nil && s.TargetTemperature == nil
}

func (s RoomState) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 2)
	if s.HeatingEnabled != nil {
		attrs = append(attrs, slog.Bool("heating", *s.HeatingEnabled))
	}
	if s.TargetTemperature != nil {
		attrs = append(attrs, slog.Int("target", *s.TargetTemperature))
	}
	return slog.GroupValue(attrs...)
}

// RoomUpdate is a requested change for one room. A batch of RoomUpdates is sent to the control endpoint.
type RoomUpdate struct {
	ID int `json:"id"`
	RoomState
}

func (u RoomUpdate) LogValue() slog.Value {
	return slog.GroupValue(slog.Int("id", u.ID), slog.Any("state", u.RoomState))
}

// VarP returns a pointer to the value.
func VarP[T any](v T) *T {
	return &v
}
