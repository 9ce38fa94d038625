package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/amount"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/api"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/auth"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/config"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/events"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/gateway"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/inventory"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/job"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/lock"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/repository"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/service"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/telemetry"
)

func serveCmd() *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, gRPC health endpoint and background jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer telemetry.Shutdown(context.Background())

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return serve(cmd.Context(), cfg, skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply migrations on startup")
	return cmd
}

func serve(parent context.Context, cfg *config.Config, skipMigrate bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry.Logger.Info("Starting acquirer gateway", zap.String("version", Version))

	db, err := openDB(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if !skipMigrate {
		if err := repository.Migrate(db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	repo := repository.NewOrderRepository(db)

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name(telemetry.ServiceName))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	publisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer publisher.Close()

	method, err := cfg.Gateway.Method()
	if err != nil {
		return err
	}
	tokens, err := auth.NewManager(auth.Options{
		SigningKey: []byte(cfg.Auth.SigningKey),
		Issuer:     cfg.Auth.Issuer,
		TTL:        cfg.Auth.TokenTTL,
		Leeway:     cfg.Auth.Leeway,
	})
	if err != nil {
		return err
	}

	gw := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		AccountID: cfg.Gateway.AccountID,
		SecretKey: cfg.Gateway.SecretKey,
	}, &http.Client{Timeout: cfg.Gateway.Timeout})

	locker := lock.NewRedisLocker(redisClient, "")
	codec := amount.NewCodec(cfg.Gateway.PriceDecimals)
	storefront := service.Storefront{
		BaseURL:           cfg.Storefront.BaseURL,
		OrderReceivedPath: cfg.Storefront.OrderReceivedPath,
	}

	machine := service.NewStateMachine(repo, inventory.NewNatsInventory(nc, cfg.NATS.Timeout), publisher)
	checkout := service.NewCheckout(repo, gw, machine, locker, service.CheckoutConfig{
		Method:   method,
		CardForm: cfg.Gateway.CardForm,
		Recipient: gateway.Recipient{
			Name:      cfg.Gateway.RecipientName,
			Reference: cfg.Gateway.RecipientReference,
		},
		Codec:           codec,
		MerchantSideURL: cfg.Gateway.MerchantSideURL,
		Storefront:      storefront,
	})
	reconciler := service.NewReconciler(repo, machine, locker, storefront, cfg.Callback.ReplayTTL)
	admin := service.NewAdmin(repo, gw, machine, locker, codec)
	renewals := service.NewRecurringCharger(repo, gw, machine, locker, codec)

	// bind before anything is started so a busy port fails cleanly
	var (
		grpcServer *grpc.Server
		healthSrv  *health.Server
		grpcLis    net.Listener
	)
	if cfg.GRPC.Enabled {
		grpcServer, healthSrv, grpcLis, err = listenHealth(cfg.GRPC.Addr)
		if err != nil {
			return err
		}
	}

	scheduler := job.NewScheduler()
	if _, err := scheduler.Register(cfg.Jobs.PendingReturnSweep, job.NewPendingReturnSweeper(repo, cfg.Jobs.PendingReturnTTL)); err != nil {
		if grpcLis != nil {
			grpcLis.Close()
		}
		return fmt.Errorf("failed to register sweeper: %w", err)
	}
	scheduler.Start()

	router := api.NewRouter(api.Deps{
		Orders:     repo,
		Checkout:   checkout,
		Reconciler: reconciler,
		Admin:      admin,
		Renewals:   renewals,
		Tokens:     tokens,
	})
	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	errCh := make(chan error, 2)
	go func() {
		telemetry.Logger.Info("HTTP server starting", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if grpcServer != nil {
		go func() {
			telemetry.Logger.Info("gRPC health server starting", zap.String("addr", cfg.GRPC.Addr))
			if err := grpcServer.Serve(grpcLis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		telemetry.Logger.Info("Shutting down")
	case runErr = <-errCh:
		telemetry.Logger.Error("Server failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if grpcServer != nil {
		healthSrv.Shutdown()
		grpcServer.GracefulStop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		telemetry.Logger.Warn("Jobs still running at shutdown")
	}

	telemetry.Logger.Info("Server exited")
	return runErr
}

// listenHealth binds addr and registers the standard gRPC health service on
// a server that is not serving yet.
func listenHealth(addr string) (*grpc.Server, *health.Server, net.Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(telemetry.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthSrv)
	return srv, healthSrv, lis, nil
}
