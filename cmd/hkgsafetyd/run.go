package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/notnil/hkgsafety"
	"github.com/notnil/hkgsafety/canbus"
	"github.com/notnil/hkgsafety/gateway"
	"github.com/notnil/hkgsafety/hkg"
	"github.com/notnil/hkgsafety/internal/config"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the safety gateway on SocketCAN interfaces",
	Args:  cobra.NoArgs,
	RunE:  runGateway,
}

var (
	watchTerms []string
	watchBuses []int
)

func init() {
	runCmd.Flags().StringSliceVar(&watchTerms, "watch", nil,
		"log validated inbound frames matching these identifiers, ranges (0x400-0x4FF), masks (0x500/0x700) or exclusions (!0x340)")
	runCmd.Flags().IntSliceVar(&watchBuses, "watch-bus", nil, "only log frames from these buses")
}

// watchFilter combines the identifier terms with the bus list. A nil filter
// with ok set watches everything; ok is false when no watch was asked for.
func watchFilter(terms []string, buses []int) (filter canbus.FrameFilter, ok bool, err error) {
	if len(terms) == 0 && len(buses) == 0 {
		return nil, false, nil
	}
	filter, err = canbus.ParseFilter(terms...)
	if err != nil {
		return nil, false, fmt.Errorf("--watch: %w", err)
	}
	var onBus canbus.FrameFilter
	for _, b := range buses {
		if b < 0 || b > 7 {
			return nil, false, fmt.Errorf("--watch-bus: bus %d out of range", b)
		}
		onBus = canbus.Or(onBus, canbus.ByBus(b))
	}
	return canbus.And(filter, onBus), true, nil
}

// watchFrames logs every subscribed frame until ctx is done.
func watchFrames(ctx context.Context, gw *gateway.Gateway, filter canbus.FrameFilter, logger *slog.Logger) error {
	frames, cancel := gw.Subscribe(filter, 64)
	defer cancel()
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			logger.Info("frame", "bus", f.Bus, "name", hkg.Name(f.ID), "frame", f.String())
		case <-ctx.Done():
			return nil
		}
	}
}

func runGateway(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	watch, watching, err := watchFilter(watchTerms, watchBuses)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	logger = logger.With("session", uuid.NewString())

	hooks, err := cfg.Safety.HookSet()
	if err != nil {
		return err
	}
	session := hkgsafety.NewSession(hkgsafety.WithLogger(logger.With("component", "safety")))
	if _, err := session.Setup(hooks, cfg.Safety.Param()); err != nil {
		return err
	}

	ctx := cmd.Context()
	buses, upstream, closeBuses, err := openBuses(ctx, cfg.Buses, logger)
	if err != nil {
		return err
	}
	defer closeBuses()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gw, err := gateway.New(session, gateway.Config{
		Buses:        buses,
		Upstream:     upstream,
		Logger:       logger.With("component", "gateway"),
		Registerer:   reg,
		TickInterval: cfg.Gateway.TickInterval,
	})
	if err != nil {
		return err
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return gw.Run(gctx) })
	if watching {
		grp.Go(func() error { return watchFrames(gctx, gw, watch, logger.With("component", "watch")) })
	}

	if cfg.Metrics.Enabled {
		srv := newMetricsServer(cfg.Metrics, reg)
		grp.Go(func() error {
			logger.Info("metrics listening", "addr", srv.Addr, "path", cfg.Metrics.Path)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		grp.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return grp.Wait()
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
