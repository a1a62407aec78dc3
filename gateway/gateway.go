// Package gateway runs a safety Session between the vehicle CAN buses and the
// compute module.
//
// Every frame received on a vehicle bus is validated by the session, handed
// to the compute module and relayed to the buses the session selects. Every
// frame the compute module proposes is checked by the session before it is
// placed on its target bus. A ticker re-evaluates message timeliness so that a
// silent bus disengages controls even without traffic.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/notnil/hkgsafety"
	"github.com/notnil/hkgsafety/canbus"
)

var (
	// ErrBlocked is returned by Transmit when the session rejects a frame.
	ErrBlocked = errors.New("gateway: transmit blocked")
	// ErrNoBus is returned for frames addressed to a bus the gateway does not
	// drive.
	ErrNoBus = errors.New("gateway: no such bus")
)

// DefaultTickInterval is how often message timeliness is re-evaluated when
// Config.TickInterval is zero.
const DefaultTickInterval = 100 * time.Millisecond

// Config wires a gateway to its buses.
type Config struct {
	// Buses are the vehicle buses by index. Received frames are stamped
	// with the index.
	Buses map[int]canbus.Bus

	// Upstream is the compute module side. Frames received on it carry the
	// target bus in Frame.Bus; vehicle frames are sent to it with their
	// source bus. Optional.
	Upstream canbus.Bus

	Logger       *slog.Logger
	Registerer   prometheus.Registerer
	TickInterval time.Duration
}

// Gateway serializes all session access behind one mutex.
type Gateway struct {
	mu      sync.Mutex
	session *hkgsafety.Session

	buses    map[int]canbus.Bus
	upstream canbus.Bus
	logger   *slog.Logger
	metrics  *Metrics
	warn     *rate.Limiter
	tick     time.Duration

	// Validated inbound frames are looped through tap into mux for
	// Subscribe.
	tapBus *canbus.LoopbackBus
	tap    canbus.Bus
	mux    *canbus.Mux
}

// New returns a gateway around an initialized session.
func New(s *hkgsafety.Session, cfg Config) (*Gateway, error) {
	if s == nil {
		return nil, errors.New("gateway: nil session")
	}
	if s.Variant() == hkgsafety.VariantUninitialized {
		return nil, errors.New("gateway: session not initialized")
	}
	if len(cfg.Buses) == 0 {
		return nil, errors.New("gateway: no vehicle buses")
	}
	for idx := range cfg.Buses {
		if idx < 0 || idx > 7 {
			return nil, fmt.Errorf("gateway: bus index %d out of range", idx)
		}
	}
	g := &Gateway{
		session:  s,
		buses:    cfg.Buses,
		upstream: cfg.Upstream,
		logger:   cfg.Logger,
		metrics:  NewMetrics(cfg.Registerer),
		warn:     rate.NewLimiter(rate.Every(time.Second), 5),
		tick:     cfg.TickInterval,
	}
	if g.logger == nil {
		g.logger = slog.New(slog.DiscardHandler)
	}
	if g.tick <= 0 {
		g.tick = DefaultTickInterval
	}
	g.tapBus = canbus.NewLoopbackBus()
	g.tap = g.tapBus.Open()
	g.mux = canbus.NewMux(g.tapBus.Open())
	return g, nil
}

// Subscribe delivers inbound vehicle frames that passed validation and match
// filter. Frames are dropped while the channel is full. The channel is closed
// by cancel or when Run returns.
func (g *Gateway) Subscribe(filter canbus.FrameFilter, buffer int) (<-chan canbus.Frame, func()) {
	return g.mux.Subscribe(filter, buffer)
}

// Metrics returns the gateway instruments.
func (g *Gateway) Metrics() *Metrics { return g.metrics }

// Snapshot returns the session state.
func (g *Gateway) Snapshot() hkgsafety.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.Snapshot()
}

// Run pumps frames until ctx is done or a bus fails. It returns nil on
// cancellation.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("gateway started", "buses", len(g.buses), "upstream", g.upstream != nil, "tick", g.tick)
	defer g.logger.Info("gateway stopped")
	defer g.closeTap()

	grp, gctx := errgroup.WithContext(ctx)
	for idx, b := range g.buses {
		grp.Go(func() error { return g.pumpVehicle(gctx, idx, b) })
	}
	if g.upstream != nil {
		grp.Go(func() error { return g.pumpUpstream(gctx) })
	}
	grp.Go(func() error { return g.runTicker(gctx) })

	err := grp.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (g *Gateway) pumpVehicle(ctx context.Context, idx int, b canbus.Bus) error {
	for {
		f, err := b.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("gateway: receive bus %d: %w", idx, err)
		}
		f.Bus = idx
		if err := g.Inbound(ctx, f); err != nil {
			return err
		}
	}
}

// Inbound processes one frame received on a vehicle bus: it is validated,
// passed upstream and relayed.
func (g *Gateway) Inbound(ctx context.Context, f canbus.Frame) error {
	g.mu.Lock()
	valid := g.session.Receive(f)
	targets := g.session.Forward(f.Bus, f.ID)
	snap := g.session.Snapshot()
	g.mu.Unlock()

	g.metrics.observeRx(f.Bus, valid)
	g.metrics.observeForward(f.Bus, targets)
	g.metrics.observeState(snap)

	if valid {
		err := g.tap.Send(ctx, f)
		if err != nil && !errors.Is(err, canbus.ErrClosed) && !g.sendFailed(ctx, "tap", f, err) {
			return nil
		}
	}
	if g.upstream != nil {
		if err := g.upstream.Send(ctx, f); err != nil && !g.sendFailed(ctx, "upstream", f, err) {
			return nil
		}
	}
	for _, to := range targets.Buses() {
		b, ok := g.buses[to]
		if !ok {
			continue
		}
		if err := b.Send(ctx, f.OnBus(to)); err != nil && !g.sendFailed(ctx, "forward", f, err) {
			return nil
		}
	}
	return nil
}

// sendFailed logs a failed send and reports whether processing should go on.
func (g *Gateway) sendFailed(ctx context.Context, op string, f canbus.Frame, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if g.warn.Allow() {
		g.logger.Warn("gateway send failed", "op", op, "bus", f.Bus, "id", f.ID, "error", err)
	}
	return true
}

func (g *Gateway) pumpUpstream(ctx context.Context) error {
	for {
		f, err := g.upstream.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("gateway: receive upstream: %w", err)
		}
		err = g.Transmit(ctx, f)
		switch {
		case err == nil, errors.Is(err, ErrBlocked), errors.Is(err, ErrNoBus):
		case ctx.Err() != nil:
			return nil
		default:
			if g.warn.Allow() {
				g.logger.Warn("gateway transmit failed", "bus", f.Bus, "id", f.ID, "error", err)
			}
		}
	}
}

// Transmit places a compute module frame on bus f.Bus if the session allows
// it.
func (g *Gateway) Transmit(ctx context.Context, f canbus.Frame) error {
	b, ok := g.buses[f.Bus]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoBus, f.Bus)
	}

	g.mu.Lock()
	allowed := g.session.Transmit(f)
	g.mu.Unlock()

	g.metrics.observeTx(f.Bus, allowed)
	if !allowed {
		if g.warn.Allow() {
			g.logger.Warn("transmit blocked", "bus", f.Bus, "id", f.ID, "frame", f.String())
		}
		return fmt.Errorf("%w: %s on bus %d", ErrBlocked, f, f.Bus)
	}
	return b.Send(ctx, f)
}

func (g *Gateway) closeTap() {
	_ = g.mux.Close()
	_ = g.tapBus.Close()
}

func (g *Gateway) runTicker(ctx context.Context) error {
	t := time.NewTicker(g.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			g.Tick()
		}
	}
}

// Tick re-evaluates message timeliness and refreshes the state gauges.
func (g *Gateway) Tick() bool {
	g.mu.Lock()
	valid := g.session.Tick()
	snap := g.session.Snapshot()
	g.mu.Unlock()

	g.metrics.observeState(snap)
	return valid
}
