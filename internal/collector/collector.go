package collector

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/clambin/adax-bridge/internal/adax"
	"github.com/clambin/adax-bridge/internal/thermostat"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	adaxRoomTemperatureCelsius = prometheus.NewDesc(
		prometheus.BuildFQName("adax", "room", "temperature_celsius"),
		"Current temperature of this room in degrees celsius",
		[]string{"room", "id"},
		nil,
	)
	adaxRoomTargetTemperatureCelsius = prometheus.NewDesc(
		prometheus.BuildFQName("adax", "room", "target_temperature_celsius"),
		"Target temperature of this room in degrees celsius",
		[]string{"room", "id"},
		nil,
	)
	adaxRoomHeatingEnabled = prometheus.NewDesc(
		prometheus.BuildFQName("adax", "room", "heating_enabled"),
		"1 if heating is enabled in this room",
		[]string{"room", "id"},
		nil,
	)
	adaxRoomHeating = prometheus.NewDesc(
		prometheus.BuildFQName("adax", "room", "heating"),
		"1 if this room is heating, i.e. heating is enabled and the room is below its target temperature",
		[]string{"room", "id"},
		nil,
	)
	adaxPendingChanges = prometheus.NewDesc(
		prometheus.BuildFQName("adax", "", "pending_changes"),
		"Number of requested changes not yet confirmed by the ADAX API",
		nil,
		nil,
	)
)

// Source publishes Home updates.
type Source interface {
	GetHome() adax.Home
	Subscribe() chan adax.Home
	Unsubscribe(chan adax.Home)
	PendingChanges() int
}

type Collector struct {
	Source Source
	Logger *slog.Logger
	lock   sync.RWMutex
	home   *adax.Home
}

func (c *Collector) Run(ctx context.Context) error {
	c.Logger.Debug("started")
	defer c.Logger.Debug("stopped")

	ch := c.Source.Subscribe()
	defer c.Source.Unsubscribe(ch)

	if home := c.Source.GetHome(); len(home.Rooms) > 0 {
		c.update(home)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case home := <-ch:
			c.update(home)
		}
	}
}

func (c *Collector) update(home adax.Home) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.home = &home
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- adaxRoomTemperatureCelsius
	ch <- adaxRoomTargetTemperatureCelsius
	ch <- adaxRoomHeatingEnabled
	ch <- adaxRoomHeating
	ch <- adaxPendingChanges
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.home == nil {
		return
	}
	for _, room := range c.home.Rooms {
		c.collectRoom(ch, room)
	}
	ch <- prometheus.MustNewConstMetric(adaxPendingChanges, prometheus.GaugeValue, float64(c.Source.PendingChanges()))
}

func (c *Collector) collectRoom(ch chan<- prometheus.Metric, room adax.Room) {
	name, id := room.Label(), strconv.Itoa(room.ID)
	ch <- prometheus.MustNewConstMetric(adaxRoomTemperatureCelsius, prometheus.GaugeValue, float64(room.Temperature)/100, name, id)
	ch <- prometheus.MustNewConstMetric(adaxRoomTargetTemperatureCelsius, prometheus.GaugeValue, float64(room.TargetTemperature)/100, name, id)
	ch <- prometheus.MustNewConstMetric(adaxRoomHeatingEnabled, prometheus.GaugeValue, boolValue(room.HeatingEnabled), name, id)
	ch <- prometheus.MustNewConstMetric(adaxRoomHeating, prometheus.GaugeValue, boolValue(thermostat.CurrentHeatingState(room) == thermostat.Heat), name, id)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
