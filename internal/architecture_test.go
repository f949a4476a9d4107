package internal

import (
	"testing"

	"github.com/kcmvp/archunit"
)

func TestArchitecture(t *testing.T) {
	core := archunit.Packages("core", []string{".../internal/adax/...", ".../internal/home/...", ".../internal/thermostat/..."})
	adapters := archunit.Packages("adapters", []string{
		".../internal/server/...",
		".../internal/mqtt/...",
		".../internal/bot/...",
		".../internal/collector/...",
		".../internal/health/...",
		".../internal/cmd/...",
	})

	if err := core.ShouldNotReferLayers(adapters); err != nil {
		t.Errorf("core packages depend on adapters: %v", err)
	}
}

func TestThermostatPackage(t *testing.T) {
	thermostat := archunit.Packages("thermostat", []string{".../internal/thermostat"})
	if len(thermostat.Packages()) == 0 {
		t.Error("thermostat package not found")
	}
}
