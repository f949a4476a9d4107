package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultPrefix = "adax"

	statusOnline  = "online"
	statusOffline = "offline"
)

// topics builds the topics used by the bridge:
//
//	<prefix>/status            online|offline (retained)
//	<prefix>/rooms/<id>/state  state of the room (retained)
//	<prefix>/rooms/<id>/set    commands for the room
type topics struct {
	prefix string
}

func (t topics) base() string {
	if t.prefix == "" {
		return DefaultPrefix
	}
	return t.prefix
}

func (t topics) status() string {
	return t.base() + "/status"
}

func (t topics) state(id int) string {
	return fmt.Sprintf("%s/rooms/%d/state", t.base(), id)
}

func (t topics) allSet() string {
	return t.base() + "/rooms/+/set"
}

// roomID returns the room ID of a set topic.
func (t topics) roomID(topic string) (int, error) {
	rest, ok := strings.CutPrefix(topic, t.base()+"/rooms/")
	if !ok {
		return 0, fmt.Errorf("invalid topic: %s", topic)
	}
	id, ok := strings.CutSuffix(rest, "/set")
	if !ok {
		return 0, fmt.Errorf("invalid topic: %s", topic)
	}
	roomID, err := strconv.Atoi(id)
	if err != nil {
		return 0, fmt.Errorf("invalid room id in topic %s: %w", topic, err)
	}
	return roomID, nil
}
