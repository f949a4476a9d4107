package server

import (
	"net/http"
	"strconv"

	"github.com/clambin/adax-bridge/internal/adax"
	"github.com/clambin/adax-bridge/internal/thermostat"
	"github.com/gin-gonic/gin"
)

const (
	errInvalidID     = "invalid room id"
	errRoomNotFound  = "room not found"
	errInvalidBody   = "invalid body: "
	errNothingToSet  = "invalid body: targetTemperature or heatingEnabled required"
	errTargetHeating = "invalid body: targetTemperature requires heating to be enabled"
)

// roomRequest is the body of a PATCH request. Temperatures are in degrees Celsius.
type roomRequest struct {
	TargetTemperature *float64 `json:"targetTemperature"`
	HeatingEnabled    *bool    `json:"heatingEnabled"`
}

func states(home adax.Home) []thermostat.State {
	result := make([]thermostat.State, 0, len(home.Rooms))
	for _, room := range home.Rooms {
		result = append(result, thermostat.NewState(room))
	}
	return result
}

func (s *Server) getRooms(c *gin.Context) {
	c.JSON(http.StatusOK, states(s.controller.GetHome()))
}

func (s *Server) getRoom(c *gin.Context) {
	room, ok := s.lookupRoom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, thermostat.NewState(room))
}

func (s *Server) patchRoom(c *gin.Context) {
	room, ok := s.lookupRoom(c)
	if !ok {
		return
	}

	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody + err.Error()})
		return
	}

	t := thermostat.New(room.ID, s.controller, s.logger.With("room", room.Label()))
	var update adax.RoomUpdate
	switch {
	case req.TargetTemperature != nil && req.HeatingEnabled != nil && !*req.HeatingEnabled:
		c.JSON(http.StatusBadRequest, gin.H{"error": errTargetHeating})
		return
	case req.TargetTemperature != nil:
		update = t.SetTargetTemperature(*req.TargetTemperature)
	case req.HeatingEnabled != nil && *req.HeatingEnabled:
		update = t.SetTargetHeatingState(thermostat.Heat)
	case req.HeatingEnabled != nil:
		update = t.SetTargetHeatingState(thermostat.Off)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": errNothingToSet})
		return
	}
	c.JSON(http.StatusAccepted, update)
}

func (s *Server) refresh(c *gin.Context) {
	s.controller.Refresh()
	c.JSON(http.StatusAccepted, gin.H{"status": "refreshing"})
}

// lookupRoom returns the room specified by the id parameter. If the room doesn't exist, it writes the error response.
func (s *Server) lookupRoom(c *gin.Context) (adax.Room, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidID})
		return adax.Room{}, false
	}
	room, ok := s.controller.GetHome().GetRoom(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errRoomNotFound})
	}
	return room, ok
}
