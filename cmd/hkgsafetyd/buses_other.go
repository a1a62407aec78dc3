//go:build !linux

package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/notnil/hkgsafety/canbus"
	"github.com/notnil/hkgsafety/internal/config"
)

func openBuses(context.Context, config.BusesConfig, *slog.Logger) (map[int]canbus.Bus, canbus.Bus, func(), error) {
	return nil, nil, nil, errors.New("SocketCAN interfaces require Linux")
}
