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

	"github.com/wardenhq/warden/internal/logging"
	"github.com/wardenhq/warden/internal/mq"
	"github.com/wardenhq/warden/internal/redisx"
	"github.com/wardenhq/warden/internal/telemetry"
	"github.com/wardenhq/warden/internal/validation/client"
	"github.com/wardenhq/warden/internal/validation/engine"
	"github.com/wardenhq/warden/internal/validation/server"
	"github.com/wardenhq/warden/internal/validation/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the validation worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logging.New(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

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

		metrics := telemetry.New("validation")

		catalog := client.NewCatalog(cfg.CatalogURL, cfg.HTTPTimeout, cache,
			client.CatalogTTLs{
				Conflicts:    cfg.ConflictsTTL,
				AccessGroups: cfg.AccessGroupsTTL,
			}, log)
		entitlement := client.NewEntitlement(cfg.EntitlementURL, cfg.HTTPTimeout, cache,
			cfg.UserGroupsTTL, log)

		results, err := broker.NewPublisher(cfg.ResultQueue)
		if err != nil {
			return fmt.Errorf("failed to open result publisher: %w", err)
		}
		defer results.Close()

		eng := engine.New(catalog, entitlement, log)
		w := worker.New(eng, results, cfg.ValidationQueue, cfg.ResultQueue, metrics, log)

		srv := server.New(log, metrics,
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

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info("validation service listening", zap.String("addr", cfg.ServerAddr))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			return w.Run(ctx, broker)
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
