//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/notnil/hkgsafety/canbus"
	"github.com/notnil/hkgsafety/internal/config"
)

// openBuses dials every configured interface. Vehicle buses are wrapped in a
// debug-level frame logger; the upstream interfaces are joined into one
// group keyed by the vehicle bus they serve. The returned func closes
// everything and takes down interfaces this call brought up.
func openBuses(ctx context.Context, cfg config.BusesConfig, logger *slog.Logger) (map[int]canbus.Bus, canbus.Bus, func(), error) {
	vehicle, err := cfg.Map()
	if err != nil {
		return nil, nil, nil, err
	}
	upstream, err := cfg.UpstreamMap()
	if err != nil {
		return nil, nil, nil, err
	}

	var (
		opened  []canbus.Bus
		raised  []string
		members = make(map[int]canbus.Bus, len(upstream))
	)
	closeAll := func() {
		for _, b := range opened {
			_ = b.Close()
		}
		for _, iface := range raised {
			if err := canbus.SetInterfaceDown(iface); err != nil {
				logger.Warn("interface down failed", "iface", iface, "error", err)
			}
		}
	}
	fail := func(err error) (map[int]canbus.Bus, canbus.Bus, func(), error) {
		for _, b := range members {
			_ = b.Close()
		}
		closeAll()
		return nil, nil, nil, err
	}

	dial := func(iface string, idx int, vehicleSide bool) (canbus.Bus, error) {
		if cfg.BringUp {
			up, err := bringUp(iface, cfg, vehicleSide)
			if err != nil {
				return nil, err
			}
			if up {
				raised = append(raised, iface)
				logger.Info("interface brought up", "iface", iface)
			}
		}
		b, err := canbus.DialSocketCAN(ctx, iface, idx)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", iface, err)
		}
		return b, nil
	}

	buses := make(map[int]canbus.Bus, len(vehicle))
	for idx, iface := range vehicle {
		b, err := dial(iface, idx, true)
		if err != nil {
			return fail(err)
		}
		opened = append(opened, b)
		buses[idx] = canbus.NewLoggedBus(b, logger.With("iface", iface), slog.LevelDebug, canbus.LogAll, nil)
	}

	var up canbus.Bus
	if len(upstream) > 0 {
		for idx, iface := range upstream {
			b, err := dial(iface, idx, false)
			if err != nil {
				return fail(err)
			}
			members[idx] = b
		}
		g := canbus.NewGroup(members)
		members = nil
		opened = append(opened, g)
		up = g
	}
	return buses, up, closeAll, nil
}

// bringUp sets iface up if it is down and reports whether it did. Vehicle
// interfaces get the configured bitrate and restart-ms first; upstream ones
// are usually virtual and take no CAN timing.
func bringUp(iface string, cfg config.BusesConfig, vehicleSide bool) (bool, error) {
	up, err := canbus.IsInterfaceUp(iface)
	if err != nil {
		return false, fmt.Errorf("interface %s: %w", iface, err)
	}
	if up {
		return false, nil
	}
	if vehicleSide {
		bitrate, restart := cfg.Bitrate, cfg.RestartMs
		opts := canbus.LinuxCANInterfaceOptions{Bitrate: &bitrate, RestartMs: &restart}
		if err := canbus.ConfigureLinuxCANInterface(iface, opts); err != nil {
			return false, err
		}
	}
	if err := canbus.SetInterfaceUp(iface); err != nil {
		return false, err
	}
	return true, nil
}
