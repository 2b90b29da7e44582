package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/akila/media-converter/handlers"
)

const shutdownTimeout = 10 * time.Second

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conversion HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if servePort != "" {
			cfg.Port = servePort
		}
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}

		// Leftovers from a previous run that crashed mid request.
		if n, err := a.ws.Sweep(cfg.ArtifactTTL); err != nil {
			log.Warn().Err(err).Msg("startup sweep failed")
		} else if n > 0 {
			log.Info().Int("removed", n).Msg("stale artifacts swept")
		}

		h := handlers.NewConversionHandler(a.dispatcher, a.ws, a.table, cfg.MaxUploadBytes, log)
		srv := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      handlers.NewRouter(h, log, cfg.CORSAllowedOrigins),
			ReadTimeout:  cfg.HTTPReadTimeout,
			WriteTimeout: cfg.HTTPWriteTimeout,
			IdleTimeout:  cfg.HTTPIdleTimeout,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Str("work_dir", a.ws.Root()).Msg("server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			log.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			return a.ws.RunJanitor(gctx, cfg.SweepInterval, cfg.ArtifactTTL)
		})

		if err := g.Wait(); err != nil {
			return err
		}
		log.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "listen port (overrides PORT)")
}
