package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/0gfoundation/0g-game-economy/internal/api"
	"github.com/0gfoundation/0g-game-economy/internal/auth"
	"github.com/0gfoundation/0g-game-economy/internal/authority"
	"github.com/0gfoundation/0g-game-economy/internal/chain"
	"github.com/0gfoundation/0g-game-economy/internal/config"
	"github.com/0gfoundation/0g-game-economy/internal/economy"
	"github.com/0gfoundation/0g-game-economy/internal/events"
	"github.com/0gfoundation/0g-game-economy/internal/relayer"
	"github.com/0gfoundation/0g-game-economy/internal/voucher"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis ─────────────────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}

	// ── Authority key + economy ───────────────────────────────────────────────
	issuer, eco, err := setup(ctx, cfg, rdb, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	log.Info("economy ready",
		zap.String("owner", eco.Owner.Hex()),
		zap.String("authority", issuer.Address().Hex()),
		zap.Stringer("host", eco.Host),
	)

	// ── Withdrawal relayer ────────────────────────────────────────────────────
	if cfg.Relayer.Enabled {
		opts := relayer.Options{
			QueueKey:  voucher.WithdrawQueueKey(eco.Vault.Address()),
			DLQKey:    voucher.WithdrawDLQKey(eco.Vault.Address()),
			BlockTime: time.Duration(cfg.Relayer.BlockSec) * time.Second,
			BatchSize: cfg.Relayer.BatchSize,
		}
		go relayer.Run(ctx, opts, rdb, relayer.NewVaultSubmitter(eco.Host, eco.Vault, issuer.Address()), log)
	}

	// ── gRPC health ───────────────────────────────────────────────────────────
	gsrv, hs := newHealthServer()
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal("gRPC listen failed", zap.Error(err))
	}
	go func() {
		log.Info("gRPC health server starting", zap.Int("port", cfg.Server.GRPCPort))
		if err := gsrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("gRPC server error", zap.Error(err))
		}
	}()

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := newRouter(eco, rdb, log)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	hs.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	gsrv.GracefulStop()
	log.Info("shutdown complete")
}

// setup loads the authority key and deploys the economy into a fresh host
// whose events are mirrored to Redis.
func setup(ctx context.Context, cfg *config.Config, rdb *redis.Client, log *zap.Logger) (*authority.Issuer, *economy.Economy, error) {
	key, err := authority.LoadKey(cfg.Chain.AuthorityKey)
	if err != nil {
		return nil, nil, fmt.Errorf("authority key: %w", err)
	}
	issuer := authority.NewIssuer(key, rdb)

	owner := issuer.Address()
	if cfg.Chain.Owner != "" {
		if !common.IsHexAddress(cfg.Chain.Owner) {
			return nil, nil, fmt.Errorf("invalid OWNER_ADDRESS %q", cfg.Chain.Owner)
		}
		owner = common.HexToAddress(cfg.Chain.Owner)
	}

	host := chain.NewHost(big.NewInt(cfg.Chain.ChainID), log)
	host.AddSink(events.NewRedisSink(rdb, cfg.Relayer.EventStream))

	eco, err := economy.Deploy(ctx, host, owner, issuer.Address(), cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("economy deploy: %w", err)
	}
	return issuer, eco, nil
}

func newHealthServer() (*grpc.Server, *health.Server) {
	hs := health.NewServer()
	gsrv := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(gsrv, hs)
	return gsrv, hs
}

func newRouter(eco *economy.Economy, rdb *redis.Client, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	api.NewHandler(eco, log).Register(r.Group("/api", auth.Middleware(rdb)), r.Group("/view"))
	return r
}
