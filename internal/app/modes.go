package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/launchpad/internal/server"
	"github.com/alanyoungcy/launchpad/internal/server/handler"
	"github.com/alanyoungcy/launchpad/internal/server/ws"
)

const shutdownTimeout = 5 * time.Second

// ServerMode initializes the protocol config and serves the HTTP API and the
// websocket hub until ctx ends.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	if err := a.ensureProtocol(ctx, deps); err != nil {
		return fmt.Errorf("server mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// ArchiveMode periodically exports settled campaigns to object storage.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiveLoop(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the HTTP server and, when enabled, the archive loop.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.ServerEnabled() {
		if err := a.ensureProtocol(ctx, deps); err != nil {
			return fmt.Errorf("full mode: %w", err)
		}
		a.startHTTPServer(gctx, g, deps)
	}
	if a.cfg.ArchiveEnabled() {
		a.startArchiveLoop(gctx, g, deps)
	}
	return g.Wait()
}

// ensureProtocol loads the protocol config, creating it on first start.
func (a *App) ensureProtocol(ctx context.Context, deps *Dependencies) error {
	admin, err := resolveAdmin(a.cfg.Protocol, a.logger)
	if err != nil {
		return err
	}
	cfg, err := deps.Service.EnsureProtocol(ctx, admin, uint8(a.cfg.Protocol.MaxSlotsPerBid))
	if err != nil {
		return fmt.Errorf("ensure protocol: %w", err)
	}
	a.logger.InfoContext(ctx, "protocol ready",
		slog.String("admin", cfg.Admin.Hex()),
		slog.Int("max_slots_per_bid", int(cfg.MaxSlotsPerBid)),
	)
	return nil
}

// startHTTPServer adds the websocket hub and the HTTP server to g. The server
// is shut down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	svc := deps.Service
	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.Checks, a.logger),
		Campaigns: handler.NewCampaignHandler(svc, a.logger),
		Bids:      handler.NewBidHandler(svc, a.logger),
		Protocol:  handler.NewProtocolHandler(svc, a.logger),
		Accounts:  handler.NewAccountHandler(svc, a.logger),
		Audit:     handler.NewAuditHandler(deps.Audit, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		MaxSkew:     a.cfg.Server.MaxSkew.Duration,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, server.Guards{Limiter: deps.RateLimiter, Replays: deps.Replays}, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startArchiveLoop runs the campaign archiver once at start and then on
// every interval tick. A failed pass is logged and retried next tick.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		a.logger.WarnContext(ctx, "archive loop disabled: archiver not wired")
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			start := time.Now()
			n, err := deps.Archiver.ArchiveSettled(ctx)
			switch {
			case err != nil && ctx.Err() != nil:
				return nil
			case err != nil:
				a.logger.ErrorContext(ctx, "archive pass failed",
					slog.String("error", err.Error()),
				)
			default:
				a.logger.InfoContext(ctx, "archive pass complete",
					slog.Int64("campaigns", n),
					slog.Duration("elapsed", time.Since(start)),
				)
			}

			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
}
