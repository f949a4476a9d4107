// Package thermostat presents an ADAX room as a thermostat: temperatures in degrees Celsius and a heating state,
// instead of the backend's hundredths of a degree.
package thermostat

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/clambin/adax-bridge/internal/adax"
)

const (
	MinTemperature  = 5.0
	MaxTemperature  = 35.0
	TemperatureStep = 0.5
)

// Controller gives access to the ideal state of all rooms and queues changes.
type Controller interface {
	GetHome() adax.Home
	SetRoom(id int, state adax.RoomState) adax.RoomUpdate
}

// HeatingState is either Off or Heat.
type HeatingState int

const (
	Off HeatingState = iota
	Heat
)

var heatingStateNames = []string{"off", "heat"}

func (s HeatingState) String() string {
	if s < Off || s > Heat {
		return fmt.Sprintf("HeatingState(%d)", s)
	}
	return heatingStateNames[s]
}

// ParseHeatingState accepts "heat"/"on" and "off", in any case.
func ParseHeatingState(s string) (HeatingState, error) {
	switch strings.ToLower(s) {
	case "heat", "on":
		return Heat, nil
	case "off":
		return Off, nil
	default:
		return Off, fmt.Errorf("invalid heating state: %q", s)
	}
}

func (s HeatingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *HeatingState) UnmarshalText(text []byte) (err error) {
	*s, err = ParseHeatingState(string(text))
	return err
}

// State is the thermostat view of a room.
type State struct {
	ID                  int          `json:"id" yaml:"id"`
	Name                string       `json:"name" yaml:"name"`
	CurrentTemperature  float64      `json:"currentTemperature" yaml:"currentTemperature"`
	TargetTemperature   float64      `json:"targetTemperature" yaml:"targetTemperature"`
	HeatingEnabled      bool         `json:"heatingEnabled" yaml:"heatingEnabled"`
	CurrentHeatingState HeatingState `json:"currentHeatingState" yaml:"currentHeatingState"`
	TargetHeatingState  HeatingState `json:"targetHeatingState" yaml:"targetHeatingState"`
}

func NewState(room adax.Room) State {
	return State{
		ID:                  room.ID,
		Name:                room.Label(),
		CurrentTemperature:  CurrentTemperature(room.Temperature),
		TargetTemperature:   TargetTemperature(room.TargetTemperature),
		HeatingEnabled:      room.HeatingEnabled,
		CurrentHeatingState: CurrentHeatingState(room),
		TargetHeatingState:  TargetHeatingState(room),
	}
}

// CurrentTemperature converts the measured temperature to degrees Celsius, with one decimal.
// A room that doesn't report a temperature is shown at the minimum temperature.
func CurrentTemperature(hundredths int) float64 {
	if hundredths == 0 {
		return MinTemperature
	}
	return math.Round(float64(hundredths)/10) / 10
}

// TargetTemperature converts the target temperature to degrees Celsius, rounded to the temperature step.
func TargetTemperature(hundredths int) float64 {
	return clamp(roundToStep(float64(hundredths) / 100))
}

// CurrentHeatingState returns Heat if heating is enabled and the room is below its target temperature.
func CurrentHeatingState(room adax.Room) HeatingState {
	if room.HeatingEnabled && room.TargetTemperature > room.Temperature {
		return Heat
	}
	return Off
}

// TargetHeatingState returns Heat if heating is enabled.
func TargetHeatingState(room adax.Room) HeatingState {
	if room.HeatingEnabled {
		return Heat
	}
	return Off
}

func roundToStep(celsius float64) float64 {
	return math.Round(celsius/TemperatureStep) * TemperatureStep
}

func clamp(celsius float64) float64 {
	return min(max(celsius, MinTemperature), MaxTemperature)
}

func toHundredths(celsius float64) int {
	return int(math.Round(celsius * 100))
}

// Thermostat controls one room.
type Thermostat struct {
	id         int
	controller Controller
	logger     *slog.Logger
}

func New(id int, controller Controller, logger *slog.Logger) *Thermostat {
	return &Thermostat{id: id, controller: controller, logger: logger}
}

func (t *Thermostat) ID() int {
	return t.id
}

// State returns the current state of the room. It returns false if the room is unknown.
func (t *Thermostat) State() (State, bool) {
	room, ok := t.controller.GetHome().GetRoom(t.id)
	if !ok {
		return State{}, false
	}
	return NewState(room), true
}

// SetTargetTemperature sets the target temperature of the room and enables heating.
// The temperature is limited to the supported range and rounded to the temperature step.
func (t *Thermostat) SetTargetTemperature(celsius float64) adax.RoomUpdate {
	celsius = clamp(roundToStep(celsius))
	t.logger.Debug("setting target temperature", "id", t.id, "target", celsius)
	return t.controller.SetRoom(t.id, adax.RoomState{
		TargetTemperature: adax.VarP(toHundredths(celsius)),
		HeatingEnabled:    adax.VarP(true),
	})
}

// SetTargetHeatingState switches heating off, or on. When switched on, the target temperature is set to the room's
// current temperature.
func (t *Thermostat) SetTargetHeatingState(state HeatingState) adax.RoomUpdate {
	t.logger.Debug("setting heating state", "id", t.id, "state", state)
	if state == Off {
		return t.controller.SetRoom(t.id, adax.RoomState{HeatingEnabled: adax.VarP(false)})
	}
	var target float64
	if room, ok := t.controller.GetHome().GetRoom(t.id); ok {
		target = float64(room.Temperature) / 100
	}
	return t.controller.SetRoom(t.id, adax.RoomState{
		TargetTemperature: adax.VarP(toHundredths(clamp(roundToStep(target)))),
		HeatingEnabled:    adax.VarP(true),
	})
}
