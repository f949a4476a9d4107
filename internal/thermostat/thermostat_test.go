package thermostat

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/clambin/adax-bridge/internal/adax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	home    adax.Home
	updates []adax.RoomUpdate
	lock    sync.Mutex
}

func (f *fakeController) GetHome() adax.Home {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.home
}

func (f *fakeController) SetRoom(id int, state adax.RoomState) adax.RoomUpdate {
	f.lock.Lock()
	defer f.lock.Unlock()
	update := adax.RoomUpdate{ID: id, RoomState: state}
	f.updates = append(f.updates, update)
	return update
}

func TestCurrentTemperature(t *testing.T) {
	tests := []struct {
		hundredths int
		want       float64
	}{
		{hundredths: 0, want: MinTemperature},
		{hundredths: 2000, want: 20},
		{hundredths: 2056, want: 20.6},
		{hundredths: 2044, want: 20.4},
		{hundredths: 310, want: 3.1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, CurrentTemperature(tt.hundredths), 0.001, tt.hundredths)
	}
}

func TestTargetTemperature(t *testing.T) {
	tests := []struct {
		hundredths int
		want       float64
	}{
		{hundredths: 0, want: MinTemperature},
		{hundredths: 2000, want: 20},
		{hundredths: 2024, want: 20},
		{hundredths: 2025, want: 20.5},
		{hundredths: 2080, want: 21},
		{hundredths: 9000, want: MaxTemperature},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, TargetTemperature(tt.hundredths), 0.001, tt.hundredths)
	}
}

func TestHeatingState(t *testing.T) {
	tests := []struct {
		name        string
		room        adax.Room
		wantCurrent HeatingState
		wantTarget  HeatingState
	}{
		{name: "heating", room: adax.Room{HeatingEnabled: true, Temperature: 1800, TargetTemperature: 2000}, wantCurrent: Heat, wantTarget: Heat},
		{name: "target reached", room: adax.Room{HeatingEnabled: true, Temperature: 2000, TargetTemperature: 2000}, wantCurrent: Off, wantTarget: Heat},
		{name: "disabled", room: adax.Room{HeatingEnabled: false, Temperature: 1800, TargetTemperature: 2000}, wantCurrent: Off, wantTarget: Off},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCurrent, CurrentHeatingState(tt.room))
			assert.Equal(t, tt.wantTarget, TargetHeatingState(tt.room))
		})
	}
}

func TestParseHeatingState(t *testing.T) {
	for input, want := range map[string]HeatingState{"heat": Heat, "ON": Heat, "Off": Off} {
		got, err := ParseHeatingState(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
	_, err := ParseHeatingState("cool")
	assert.Error(t, err)

	var s struct {
		Mode HeatingState `json:"mode"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"mode":"heat"}`), &s))
	assert.Equal(t, Heat, s.Mode)
	assert.Error(t, json.Unmarshal([]byte(`{"mode":"auto"}`), &s))

	body, err := json.Marshal(NewState(adax.Room{ID: 1, HeatingEnabled: true, Temperature: 1800, TargetTemperature: 2000}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"1","currentTemperature":18,"targetTemperature":20,"heatingEnabled":true,"currentHeatingState":"heat","targetHeatingState":"heat"}`, string(body))
}

func TestThermostat_SetTargetTemperature(t *testing.T) {
	tests := []struct {
		name    string
		celsius float64
		want    int
	}{
		{name: "in range", celsius: 21.5, want: 2150},
		{name: "rounded", celsius: 21.3, want: 2150},
		{name: "too low", celsius: 2, want: 500},
		{name: "too high", celsius: 40, want: 3500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c fakeController
			th := New(1, &c, slog.New(slog.DiscardHandler))
			update := th.SetTargetTemperature(tt.celsius)
			assert.Equal(t, adax.RoomUpdate{ID: 1, RoomState: adax.RoomState{
				TargetTemperature: adax.VarP(tt.want),
				HeatingEnabled:    adax.VarP(true),
			}}, update)
			assert.Len(t, c.updates, 1)
		})
	}
}

func TestThermostat_SetTargetHeatingState(t *testing.T) {
	c := fakeController{home: adax.Home{Rooms: []adax.Room{
		{ID: 1, Temperature: 1937, TargetTemperature: 2200},
		{ID: 2, Temperature: 0, TargetTemperature: 2200},
	}}}

	update := New(1, &c, slog.New(slog.DiscardHandler)).SetTargetHeatingState(Heat)
	assert.Equal(t, adax.RoomState{TargetTemperature: adax.VarP(1950), HeatingEnabled: adax.VarP(true)}, update.RoomState)

	update = New(2, &c, slog.New(slog.DiscardHandler)).SetTargetHeatingState(Heat)
	assert.Equal(t, adax.RoomState{TargetTemperature: adax.VarP(500), HeatingEnabled: adax.VarP(true)}, update.RoomState)

	update = New(1, &c, slog.New(slog.DiscardHandler)).SetTargetHeatingState(Off)
	assert.Equal(t, adax.RoomState{HeatingEnabled: adax.VarP(false)}, update.RoomState)
}

func TestThermostat_State(t *testing.T) {
	c := fakeController{home: adax.Home{Rooms: []adax.Room{
		{ID: 1, Name: "living", HeatingEnabled: true, Temperature: 1937, TargetTemperature: 2200},
	}}}

	state, ok := New(1, &c, slog.New(slog.DiscardHandler)).State()
	require.True(t, ok)
	assert.Equal(t, State{
		ID:                  1,
		Name:                "living",
		CurrentTemperature:  19.4,
		TargetTemperature:   22,
		HeatingEnabled:      true,
		CurrentHeatingState: Heat,
		TargetHeatingState:  Heat,
	}, state)

	_, ok = New(2, &c, slog.New(slog.DiscardHandler)).State()
	assert.False(t, ok)
}
