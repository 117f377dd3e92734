package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"public-feed/auth"
	"public-feed/contract"
	"public-feed/delivery"
	"public-feed/infrastructure/grpc/server"
	"public-feed/internal"
	"public-feed/media"
	"public-feed/moderation"
	"public-feed/observability"
	pb "public-feed/proto/feedpb"
	"public-feed/repositories"
	"public-feed/repositories/redisstore"
	"public-feed/retention"
	"public-feed/runtime"
	"public-feed/runtime/workers"
	"public-feed/services"
	"public-feed/validation"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	grpc3 "github.com/mama165/sdk-go/grpc"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Feed terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// stores is the pair of stores of the selected backend plus its cleanup.
type stores struct {
	messages contract.MessageStore
	medias   contract.MediaStore
	close    func()
}

func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("invalid config: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Stores
	st, err := openStores(ctx, config, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer st.close()

	// 3. Submission path
	registry := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(registry)
	if err != nil {
		return exitRuntime, fmt.Errorf("metrics: %w", err)
	}
	terms, err := config.DenyListTerms()
	if err != nil {
		return exitConfig, err
	}
	moderator, err := moderation.NewModerator(terms, config.ModerationNormalize, logger)
	if err != nil {
		return exitConfig, fmt.Errorf("deny-list: %w", err)
	}
	if len(moderator.Terms()) == 0 {
		logger.Warn("Deny-list is empty, every message is allowed")
	}
	logger.Info("Moderation ready", "terms", len(moderator.Terms()), "normalize", config.ModerationNormalize)
	gate := moderation.NewGate(moderator)
	compressor, err := media.NewCompressor(config.MediaConstraints())
	if err != nil {
		return exitConfig, err
	}
	pipeline, err := delivery.NewPipeline(
		validation.NewValidator(config.MaxAuthorLength, config.MaxBodyLength),
		gate, compressor, st.messages, st.medias, config.Delivery(), logger,
		delivery.WithMetrics(metrics),
	)
	if err != nil {
		return exitConfig, err
	}

	// 4. Live feed and retention, supervised
	synchronizer := runtime.NewFeedSynchronizer(st.messages, config.MaxMessages, logger, metrics)
	sweeper, err := retention.NewSweeper(st.messages, st.medias, config.MaxMessages, logger, metrics)
	if err != nil {
		return exitConfig, err
	}
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(synchronizer, workers.NewSweepWorker(sweeper, config.SweepInterval, logger))
	if config.DenyListPath != "" {
		sup.Add(workers.NewDenyListWorker(gate, config.DenyListTerms, config.ModerationNormalize,
			config.DenyListReloadInterval, logger))
	}

	// 5. gRPC Server Setup
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s := grpc.NewServer(
		grpc.ForceServerCodec(pb.Codec{}),
		grpc.MaxRecvMsgSize(config.MaxRequestBytes),
		grpc.ChainUnaryInterceptor(
			grpc3.UnaryLoggingInterceptor(logger),
			auth.AdminInterceptor([]byte(config.AdminSecret)),
		))
	feedService := services.NewFeedService(pipeline, synchronizer, sweeper, st.messages, st.medias, logger)
	limiter := server.NewPeerLimiter(rate.Limit(config.SubmitRate), config.SubmitBurst)
	pb.RegisterFeedServiceServer(s, server.NewFeedServer(logger, feedService, limiter))
	if config.AdminSecret == "" {
		logger.Warn("ADMIN_SECRET is empty, admin calls are disabled")
	}

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.MetricsPort),
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 6. Run until a signal or the first failure
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sup.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting gRPC server", "address", address, "backend", config.StoreBackend, "at", time.Now().UTC())
		if err := s.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting metrics server", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")
		s.GracefulStop()
		sup.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return exitRuntime, err
	}
	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

func openStores(ctx context.Context, config internal.Config, logger *slog.Logger) (stores, error) {
	switch config.StoreBackend {
	case internal.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis is not reachable yet, the feed starts degraded", "address", config.RedisAddr, "error", err)
		}
		return stores{
			messages: redisstore.NewMessageStore(client, logger, redisstore.WithNamespace(config.RedisNamespace)),
			medias:   redisstore.NewMediaStore(client, logger, config.RedisNamespace),
			close: func() {
				logger.Info("Closing Redis client...")
				_ = client.Close()
			},
		}, nil
	default:
		db, err := badger.Open(buildBadgerOpts(ctx, config, logger))
		if err != nil {
			return stores{}, fmt.Errorf("database opening failed: %w", err)
		}
		messages, err := repositories.NewMessageStore(db, logger)
		if err != nil {
			_ = db.Close()
			return stores{}, err
		}
		return stores{
			messages: messages,
			medias:   repositories.NewMediaStore(db, logger),
			close: func() {
				logger.Info("Closing BadgerDB...")
				_ = messages.Close()
				_ = db.Close()
			},
		}, nil
	}
}

func buildBadgerOpts(ctx context.Context, config internal.Config, logger *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
