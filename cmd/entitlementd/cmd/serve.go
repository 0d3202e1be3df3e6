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
	"github.com/wardenhq/warden/internal/entitlement/consumer"
	"github.com/wardenhq/warden/internal/entitlement/publisher"
	"github.com/wardenhq/warden/internal/entitlement/repository"
	"github.com/wardenhq/warden/internal/entitlement/server"
	"github.com/wardenhq/warden/internal/entitlement/service"
	"github.com/wardenhq/warden/internal/logging"
	"github.com/wardenhq/warden/internal/mq"
	"github.com/wardenhq/warden/internal/redisx"
	"github.com/wardenhq/warden/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the entitlement HTTP server and result consumer",
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
		log.Info("connected to database")

		rdb, err := redisx.NewClient(cmd.Context(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		cache := redisx.NewCache(rdb, log)
		log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

		broker, err := mq.Dial(cfg.AMQPURL, log)
		if err != nil {
			return fmt.Errorf("failed to connect to broker: %w", err)
		}
		defer broker.Close()
		log.Info("connected to broker")

		metrics := telemetry.New("entitlement")

		jobs, err := publisher.New(broker, cfg.ValidationQueue, metrics, log)
		if err != nil {
			return fmt.Errorf("failed to open job publisher: %w", err)
		}
		defer jobs.Close()

		svc := service.NewService(
			repository.NewBunUserRepository(db),
			repository.NewBunEntitlementRepository(db),
			jobs,
			cache,
			cfg.UserGroupsTTL,
			log,
		)

		srv := server.New(svc, log, metrics,
			server.ReadyCheck{Name: "database", Probe: db.PingContext},
			server.ReadyCheck{Name: "redis", Probe: cache.Ping},
			server.ReadyCheck{Name: "broker", Probe: func(context.Context) error {
				if broker.IsClosed() {
					return errors.New("connection closed")
				}
				return nil
			}},
		)

		httpServer := &http.Server{
			Addr:    cfg.ServerAddr,
			Handler: srv.Router(),
		}

		results := consumer.New(svc, cfg.ResultQueue, metrics, log)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info("entitlement service listening", zap.String("addr", cfg.ServerAddr))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			return results.Run(ctx, broker)
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
