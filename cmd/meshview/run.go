package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/config"
	"github.com/Faultbox/meshview/internal/logger"
	"github.com/Faultbox/meshview/internal/metrics"
	"github.com/Faultbox/meshview/internal/transport"
	"github.com/Faultbox/meshview/internal/viewer"
)

// run starts the viewer with its transports and blocks until it stops.
func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== meshview ===", zap.String("version", Version))
	logger.Sugar.Debugf("Config: %+v", cfg)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen, logger.Named("metrics")); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	var v *viewer.Viewer
	opts := []viewer.Option{viewer.WithLogger(logger.Log), viewer.WithMetrics(m)}
	if !cfg.Viewer.Headless {
		h, err := newHost(cfg, logger.Named("host"))
		if err != nil {
			return fmt.Errorf("failed to create window: %w", err)
		}
		defer h.Close()
		opts = append(opts,
			viewer.WithRenderer(h.renderer),
			viewer.WithFrameHook(func() bool { return h.poll(v) }),
			viewer.WithPresentHook(h.window.SwapBuffers),
		)
	}

	v, err := viewer.New(ctx, cfg, opts...)
	if err != nil {
		return err
	}

	log := logger.Named("transport")
	ws := transport.NewWebSocket(cfg.Server, v, log)
	outs := []transport.Outbound{ws}
	go func() {
		if err := ws.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("websocket transport stopped", zap.Error(err))
		}
	}()
	if cfg.NATS.Enabled {
		nc := transport.NewNATS(cfg.NATS, v, log)
		outs = append(outs, nc)
		go func() {
			if err := nc.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("nats transport stopped", zap.Error(err))
			}
		}()
	}
	go transport.Forward(ctx, v.Events(), log, outs...)

	if err := v.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("viewer closed normally")
	return nil
}
