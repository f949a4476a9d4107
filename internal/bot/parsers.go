package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/clambin/adax-bridge/internal/thermostat"
)

type setRoomCommand struct {
	room        string
	mode        *thermostat.HeatingState
	temperature float64
}

const setRoomUsage = "Usage: /setroom <room> <temperature|on|off>"

func parseSetRoom(args ...string) (setRoomCommand, error) {
	if len(args) != 2 {
		return setRoomCommand{}, fmt.Errorf("missing parameters\n%s", setRoomUsage)
	}

	cmd := setRoomCommand{room: args[0]}
	if mode, err := thermostat.ParseHeatingState(args[1]); err == nil {
		cmd.mode = &mode
		return cmd, nil
	}

	var err error
	if cmd.temperature, err = strconv.ParseFloat(args[1], 64); err != nil {
		return setRoomCommand{}, fmt.Errorf("invalid target temperature: %q\n%s", args[1], setRoomUsage)
	}
	return cmd, nil
}

var tokenizer = regexp.MustCompile(`[^\s"]+|"([^"]*)"`)

// tokenizeText splits the input in words. Quoted text is a single word.
func tokenizeText(input string) []string {
	cleanInput := input
	for _, quote := range []string{"“", "”", "'"} {
		cleanInput = strings.ReplaceAll(cleanInput, quote, "\"")
	}
	output := tokenizer.FindAllString(cleanInput, -1)

	for index, word := range output {
		output[index] = strings.Trim(word, "\"")
	}
	return output
}
