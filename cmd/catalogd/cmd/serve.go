package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wardenhq/warden/internal/bunx"
	"github.com/wardenhq/warden/internal/catalog/models"
	"github.com/wardenhq/warden/internal/catalog/repository"
	"github.com/wardenhq/warden/internal/catalog/server"
	"github.com/wardenhq/warden/internal/catalog/service"
	"github.com/wardenhq/warden/internal/logging"
	"github.com/wardenhq/warden/internal/redisx"
	"github.com/wardenhq/warden/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the catalog HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logging.New(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)
		models.RegisterModels(db)
		log.Info("connected to database")

		rdb, err := redisx.NewClient(cmd.Context(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		cache := redisx.NewCache(rdb, log)
		log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

		svc := service.NewService(
			repository.NewBunResourceRepository(db),
			repository.NewBunAccessRepository(db),
			repository.NewBunGroupRepository(db),
			repository.NewBunConflictRepository(db),
			cache,
			service.TTLs{
				Conflicts:     cfg.ConflictsTTL,
				GroupAccesses: cfg.GroupAccessesTTL,
				AccessGroups:  cfg.AccessGroupsTTL,
			},
			log,
		)

		metrics := telemetry.New("catalog")
		srv := server.New(svc, log, metrics,
			server.ReadyCheck{Name: "database", Probe: db.PingContext},
			server.ReadyCheck{Name: "redis", Probe: cache.Ping},
		)

		httpServer := &http.Server{
			Addr:    cfg.ServerAddr,
			Handler: srv.Router(),
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info("catalog service listening", zap.String("addr", cfg.ServerAddr))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
