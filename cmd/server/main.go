package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nathanyu/account-ledger/internal/config"
	"github.com/nathanyu/account-ledger/internal/domain"
	"github.com/nathanyu/account-ledger/internal/engine"
	"github.com/nathanyu/account-ledger/internal/handler"
	"github.com/nathanyu/account-ledger/internal/middleware"
	"github.com/nathanyu/account-ledger/internal/notify"
	"github.com/nathanyu/account-ledger/internal/queue"
	"github.com/nathanyu/account-ledger/internal/store"
	"github.com/nathanyu/account-ledger/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const serviceName = "account-ledger"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "In-memory account ledger with an HTTP transfer API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}

			telemetry.InitLogger(serviceName, cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg); err != nil {
				slog.Error("service failed", slog.Any("error", err))
				return err
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")

	flags := cmd.Flags()
	flags.Int("port", 8080, "HTTP server port")
	flags.Int("metrics-port", 9090, "Metrics server port")
	flags.String("gin-mode", "release", "Gin mode (debug/release)")
	flags.String("nats-url", "", "NATS server URL, empty disables NATS")
	flags.String("redis-addr", "", "Redis address, empty disables the stream notifier")

	bindFlags(v, cmd, map[string]string{
		"port":         "port",
		"metrics_port": "metrics-port",
		"gin_mode":     "gin-mode",
		"nats.url":     "nats-url",
		"redis.addr":   "redis-addr",
	})

	cmd.AddCommand(newTransferCmd(v, &cfgFile))
	return cmd
}

// newTransferCmd sends one transfer command to a running ledger over NATS.
func newTransferCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	var (
		natsURL string
		req     domain.TransferCommand
		amount  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Send a transfer command to the ledger over NATS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			req.Amount = parsed

			if natsURL == "" {
				cfg, err := config.Load(v, *cfgFile)
				if err != nil {
					return err
				}
				natsURL = cfg.NATS.URL
			}
			if natsURL == "" {
				return errors.New("no NATS URL configured, set --nats-url or LEDGER_NATS_URL")
			}

			client, err := queue.NewNATSClient(natsURL)
			if err != nil {
				return err
			}
			defer client.Close()

			return sendTransfer(client, req, timeout, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&natsURL, "nats-url", "", "NATS server URL (default from config)")
	flags.StringVar(&req.TransferID, "transfer-id", "", "transfer id (generated when empty)")
	flags.StringVar(&req.SourceAccountID, "source", "", "source account id")
	flags.StringVar(&req.TargetAccountID, "target", "", "target account id")
	flags.StringVar(&amount, "amount", "", "amount to transfer, e.g. 150.55")
	flags.DurationVar(&timeout, "timeout", 5*time.Second, "time to wait for the reply")
	for _, name := range []string{"source", "target", "amount"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

// commandPublisher is the request/reply side of queue.NATSClient.
type commandPublisher interface {
	PublishCommand(cmd domain.TransferCommand, timeout time.Duration) (*queue.CommandResponse, error)
}

func sendTransfer(client commandPublisher, cmd domain.TransferCommand, timeout time.Duration, out io.Writer) error {
	if cmd.TransferID == "" {
		cmd.TransferID = uuid.Must(uuid.NewV7()).String()
	}

	resp, err := client.PublishCommand(cmd, timeout)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("transfer %s rejected (%s): %s", cmd.TransferID, resp.ErrorKind, resp.Error)
	}

	fmt.Fprintf(out, "transfer %s completed: %s from %s to %s\n",
		cmd.TransferID, cmd.Amount.String(), cmd.SourceAccountID, cmd.TargetAccountID)
	return nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting account ledger service",
		slog.Int("port", cfg.Port),
		slog.Int("metrics_port", cfg.MetricsPort),
		slog.String("environment", cfg.Environment),
	)

	cleanup, err := telemetry.InitTracer(serviceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		slog.Warn("failed to initialize tracer", slog.Any("error", err))
	} else {
		defer cleanup()
	}

	gin.SetMode(cfg.GinMode)
	if err := handler.RegisterValidators(); err != nil {
		return err
	}

	// 1. Account store
	accounts := store.NewAccountStore()

	// 2. Notification collaborators
	notifiers := notify.Multi{notify.NewLogNotifier(nil)}
	breakerCfg := notify.BreakerConfig{
		ConsecutiveFailures: cfg.Breaker.MaxFailures,
		Timeout:             cfg.Breaker.Timeout,
		MaxRequests:         cfg.Breaker.MaxRequests,
	}

	var natsClient *queue.NATSClient
	if cfg.NATS.URL != "" {
		slog.Info("connecting to NATS", slog.String("url", cfg.NATS.URL))
		natsClient, err = queue.NewNATSClient(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer natsClient.Close()

		notifiers = append(notifiers, notify.NewBreaker("nats",
			notify.NewNATSNotifier(natsClient.GetConn(), cfg.NATS.EventSubject), breakerCfg))
	}

	if cfg.Redis.Addr != "" {
		slog.Info("connecting to Redis", slog.String("addr", cfg.Redis.Addr))
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}

		notifiers = append(notifiers, notify.NewBreaker("redis",
			notify.NewRedisNotifier(rdb, cfg.Redis.Stream, cfg.Redis.MaxLen), breakerCfg))
	}

	// 3. Transfer engine
	transferEngine := engine.NewTransferEngine(accounts, notifiers)

	// 4. NATS command consumer
	if natsClient != nil {
		consumer := queue.NewTransferConsumer(transferEngine, natsClient.GetConn())
		if err := consumer.Start(); err != nil {
			return err
		}
		defer consumer.Stop()
	}

	// 5. HTTP API
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Tracing())
	router.Use(middleware.Metrics())
	handler.SetupRoutes(router, handler.NewHandler(accounts, transferEngine))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// 6. Metrics server (separate port for Prometheus scraping)
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP server listening", slog.Int("port", cfg.Port))
		return serve(srv)
	})
	g.Go(func() error {
		slog.Info("metrics server listening", slog.Int("port", cfg.MetricsPort))
		return serve(metricsSrv)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		return errors.Join(
			shutdown(shutdownCtx, "HTTP", srv),
			shutdown(shutdownCtx, "metrics", metricsSrv),
		)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("service stopped")
	return nil
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s: %w", srv.Addr, err)
	}
	return nil
}

func shutdown(ctx context.Context, name string, srv *http.Server) error {
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s server forced to shutdown: %w", name, err)
	}
	return nil
}
