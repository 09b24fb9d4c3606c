package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/desertthunder/compuse/internal/server"
	"github.com/desertthunder/compuse/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the JSON API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	addr := cmd.String("addr")
	if addr == "" {
		addr = net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	}

	var limiter *server.ClientLimiter
	if r.config.Server.RateLimit > 0 {
		limiter = server.NewClientLimiter(r.config.Server.RateLimit, r.config.Server.Burst)
	}

	editor := tasks.NewDraftEngine(s.drafts, s.clips, nil, r.logger)
	api := server.NewAPI(s.drafts, s.clips, editor, r.logger)

	srv, err := server.Listen(addr, server.NewRouter(api, r.logger, limiter), r.logger)
	if err != nil {
		return err
	}

	r.writePlain("✓ Serving on %s\n", srv.URL())
	if cmd.Bool("open") {
		if err := r.openBrowser(srv.URL() + "/api/keys"); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
