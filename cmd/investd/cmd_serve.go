package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpapi "github.com/ze-codes/invest-agent/internal/interfaces/http"
)

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only snapshot API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			checks := map[string]httpapi.HealthChecker{
				"postgres": func(ctx context.Context) error {
					_, err := a.series.LatestFetch(ctx, "_health")
					return err
				},
			}
			if a.cache != nil {
				checks["redis"] = a.cache.Ping
			}

			serverCfg := httpapi.ServerConfig{
				Host:         a.cfg.Server.Host,
				Port:         a.cfg.Server.Port,
				ReadTimeout:  a.cfg.Server.ReadTimeout,
				WriteTimeout: a.cfg.Server.WriteTimeout,
				IdleTimeout:  a.cfg.Server.IdleTimeout,
			}
			if host != "" {
				serverCfg.Host = host
			}
			if port != 0 {
				serverCfg.Port = port
			}

			server := httpapi.NewServer(serverCfg, httpapi.NewHandlers(a.engine, checks), a.prom)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("forced shutdown")
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Bind host override (default from config, local-only)")
	cmd.Flags().IntVar(&port, "port", 0, "Bind port override")
	return cmd
}
