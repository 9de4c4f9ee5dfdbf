// Command trustd serves the device trust engine over HTTP, with a gRPC
// health endpoint alongside.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/trustmesh/internal/credential"
	"github.com/jmerrifield20/trustmesh/internal/discovery"
	"github.com/jmerrifield20/trustmesh/internal/handler"
	"github.com/jmerrifield20/trustmesh/internal/health"
	"github.com/jmerrifield20/trustmesh/internal/ledger"
	"github.com/jmerrifield20/trustmesh/internal/trust"
	"github.com/jmerrifield20/trustmesh/internal/webhooks"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

const healthService = "trustmesh.TrustEngine"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("trustd exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	cfg, err := loadConfig(viper.New(), logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Storage ──────────────────────────────────────────────────────────────
	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	if err := be.ledger.Verify(ctx); err != nil {
		logger.Warn("ledger integrity check FAILED", zap.Error(err))
	} else {
		n, _ := be.ledger.Len(ctx)
		root, _ := be.ledger.Root(ctx)
		logger.Info("ledger verified",
			zap.String("backend", cfg.Backend),
			zap.Int("blocks", n),
			zap.String("root", root),
		)
	}

	dir, err := credential.Open(ctx, be.store, logger)
	if err != nil {
		return fmt.Errorf("open credential directory: %w", err)
	}

	// ── Webhooks ─────────────────────────────────────────────────────────────
	notifier := webhooks.NewNotifier(cfg.Webhooks, logger)
	notifier.SetMetricsRecorder(handler.RecordWebhookDelivery)
	defer notifier.Close()
	if len(cfg.Webhooks) > 0 {
		logger.Info("webhook subscriptions configured", zap.Int("count", len(cfg.Webhooks)))
	}

	// ── Trust Engine ─────────────────────────────────────────────────────────
	sink := trust.FanOut{trust.NewLogSink(logger), handler.MetricsSink{}, notifier}
	engine := trust.NewEngine(cfg.Trust, dir, be.ledger, logger, trust.WithSink(sink))

	if be.persistent {
		n, err := engine.Restore(ctx)
		if err != nil {
			return fmt.Errorf("restore trust state: %w", err)
		}
		logger.Info("trust state restored from ledger", zap.Int("devices", n))
	}

	var checkpointer *ledger.Checkpointer
	if cfg.CheckpointKey != "" {
		checkpointer = ledger.NewCheckpointer(be.ledger, []byte(cfg.CheckpointKey), cfg.CheckpointIssuer, cfg.CheckpointTTL)
	} else {
		logger.Info("ledger checkpoints disabled (set checkpoint.key to enable)")
	}

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(cfg.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}))
	router.Use(handler.SecurityHeaders())
	router.Use(handler.BodyLimit(1 << 20))
	if cfg.RateLimitRPS > 0 {
		router.Use(handler.RateLimiter(ctx, cfg.RateLimitRPS, int(cfg.RateLimitRPS*2)))
	}
	router.Use(handler.PrometheusMiddleware())
	router.Use(handler.RequestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/api/v1")
	handler.NewDeviceHandler(engine, logger).Register(v1)
	handler.NewLedgerHandler(be.ledger, checkpointer, logger).Register(v1)
	if cfg.DiscoveryEnabled {
		scanner := discovery.NewScanner(logger,
			discovery.WithTimeout(cfg.DiscoveryTimeout),
			discovery.WithPrivileged(cfg.DiscoveryPrivileged),
		)
		handler.NewDiscoveryHandler(scanner, engine, cfg.DiscoveryTarget, logger).Register(v1)
		logger.Info("network discovery enabled", zap.String("default_target", cfg.DiscoveryTarget))
	}

	// ── gRPC health ──────────────────────────────────────────────────────────
	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("gRPC listen on :%d: %w", cfg.GRPCPort, err)
	}
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(loggingInterceptor(logger)),
	)
	healthSvc := grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSvc)
	healthSvc.SetServingStatus(healthService, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	// ── Ledger watchdog ──────────────────────────────────────────────────────
	watchdog := health.New(be.ledger, health.Config{
		CheckInterval: cfg.WatchdogInterval,
		FailThreshold: cfg.WatchdogFailThreshold,
	}, logger)
	watchdog.SetMetricsRecord(handler.SetLedgerIntact)
	watchdog.SetWebhookDispatch(notifier.Dispatch)
	watchdog.SetStatusFunc(func(serving bool) {
		st := grpc_health_v1.HealthCheckResponse_SERVING
		if !serving {
			st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
		healthSvc.SetServingStatus(healthService, st)
	})
	watchdog.Check(ctx)
	go watchdog.Start(ctx)

	// ── Start servers ────────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("trustd HTTP listening", zap.Int("port", cfg.HTTPPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("trustd gRPC health listening", zap.Int("port", cfg.GRPCPort))
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Fatal("gRPC serve error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	<-quit
	logger.Info("shutting down trustd...")
	healthSvc.Shutdown()
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	logger.Info("trustd stopped")
	return nil
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// loggingInterceptor returns a gRPC unary server interceptor that logs each call.
func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}
