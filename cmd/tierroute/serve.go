package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zen-systems/tierroute/pkg/app"
	"github.com/zen-systems/tierroute/pkg/config"
	"github.com/zen-systems/tierroute/pkg/server"
	"github.com/zen-systems/tierroute/pkg/store"
)

func serveCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP routing service",
		Long: `Serves POST /route, GET /stats, GET /logs, POST /config/keys, GET /health,
and GET /metrics. The routing file is watched and reloaded on change, and
old decision records are removed on the configured cleanup schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			rc := a.Routing()
			if _, ok := a.Store.(store.Cleaner); ok && rc.Sink.RetentionDays > 0 {
				sched, err := app.NewScheduler(a, rc.Sink.CleanupSchedule)
				if err != nil {
					return err
				}
				sched.Start()
				defer sched.Stop()
			}

			if cfg.RoutingPath != "" {
				go watchRouting(ctx, a, cfg.RoutingPath)
			}

			if listen == "" {
				listen = rc.Server.Listen
			}
			srv := server.New(server.Config{
				Listen:    listen,
				RateLimit: rc.Server.RateLimit,
				Burst:     rc.Server.Burst,
			}, a.Engine, a.Store, a, log.Logger)

			log.Info().
				Strs("backends", a.Registry.Names()).
				Strs("providers", cfg.Credentials.Configured()).
				Str("strategy", rc.Classifier.Strategy).
				Str("sink", rc.Sink.Driver).
				Msg("tierroute starting")
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides routing config)")
	return cmd
}

func watchRouting(ctx context.Context, a *app.App, path string) {
	err := config.Watch(ctx, path, log.Logger, func(rc *config.RoutingConfig) {
		if err := a.ApplyRouting(ctx, rc); err != nil {
			log.Error().Err(err).Str("path", path).Msg("routing reload rejected")
		}
	})
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("routing file watch stopped")
	}
}
