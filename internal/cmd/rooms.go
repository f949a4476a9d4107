package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/clambin/adax-bridge/internal/adax"
	"github.com/clambin/adax-bridge/internal/home"
	"github.com/clambin/adax-bridge/internal/thermostat"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	roomsCmd = cobra.Command{
		Use:   "rooms",
		Short: "Show all rooms",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := newReconciler(viper.GetViper())
			return showRooms(cmd.Context(), r, yaml.NewEncoder(os.Stdout))
		},
	}
	setCmd = cobra.Command{
		Use:   "set <id>",
		Short: "Change the heating of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid room id: %q", args[0])
			}
			r := newReconciler(viper.GetViper())
			return setRoom(cmd.Context(), r, id, setArgs, yaml.NewEncoder(os.Stdout))
		},
	}
	setArgs setRoomArgs
)

func init() {
	setCmd.Flags().Float64Var(&setArgs.target, "target", 0, "Target temperature (ºC)")
	setCmd.Flags().StringVar(&setArgs.heating, "heating", "", "Switch heating on or off")
}

// newReconciler returns a Reconciler for one-off commands. Its metrics are discarded.
func newReconciler(cfg *viper.Viper) *home.Reconciler {
	logger := slog.Default()
	return home.New(newClient(cfg, prometheus.NewRegistry(), logger), configuration(cfg), logger.With("component", "reconciler"))
}

type Encoder interface {
	Encode(any) error
}

type Discoverer interface {
	Discover(context.Context) ([]adax.Room, error)
}

func showRooms(ctx context.Context, d Discoverer, e Encoder) error {
	rooms, err := d.Discover(ctx)
	if err != nil {
		return fmt.Errorf("adax: %w", err)
	}
	states := make([]thermostat.State, len(rooms))
	for i, room := range rooms {
		states[i] = thermostat.NewState(room)
	}
	return e.Encode(states)
}

type setRoomArgs struct {
	target  float64
	heating string
}

// Controller queues a change and reconciles it in a single tick.
type Controller interface {
	Discoverer
	thermostat.Controller
	Tick(context.Context) bool
	PendingChanges() int
}

var (
	errNoChange    = errors.New("specify a target temperature or a heating state")
	errUnconfirmed = errors.New("change not confirmed by ADAX")
)

func setRoom(ctx context.Context, c Controller, id int, args setRoomArgs, e Encoder) error {
	if args.target == 0 && args.heating == "" {
		return errNoChange
	}
	if _, err := c.Discover(ctx); err != nil {
		return fmt.Errorf("adax: %w", err)
	}
	if _, ok := c.GetHome().GetRoom(id); !ok {
		return fmt.Errorf("room not found: %d", id)
	}

	t := thermostat.New(id, c, slog.Default())
	switch {
	case args.target != 0:
		t.SetTargetTemperature(args.target)
	default:
		state, err := thermostat.ParseHeatingState(args.heating)
		if err != nil {
			return err
		}
		t.SetTargetHeatingState(state)
	}

	c.Tick(ctx)
	state, ok := t.State()
	if !ok {
		return fmt.Errorf("room not found: %d", id)
	}
	if err := e.Encode(state); err != nil {
		return err
	}
	// the change was not written, or ADAX does not report it yet
	if c.PendingChanges() > 0 {
		return fmt.Errorf("room %d: %w", id, errUnconfirmed)
	}
	return nil
}
